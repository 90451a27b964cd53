// Package submitter drives the provider's login form.
package submitter

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgnsrekt/holdings_agent/internal/browser"
	"github.com/dgnsrekt/holdings_agent/internal/pagesignal"
)

// Page is the subset of the browser tab the submitter needs.
type Page interface {
	URL(ctx context.Context) (string, error)
	WaitInteractable(ctx context.Context, selector string, timeout time.Duration) error
	SetField(ctx context.Context, selector, value string) error
	PressEnter(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string, force bool) error
	Frames(ctx context.Context) ([]browser.Frame, error)
	ClickInFrame(ctx context.Context, index int, selector string) error
	ClickFrame(ctx context.Context, index int) error
}

// Selectors locate the login form controls.
type Selectors struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Submit   string `yaml:"submit"`
	// Checkbox is queried inside a challenge frame.
	Checkbox string `yaml:"checkbox"`
}

// DefaultSelectors returns the selectors for the provider's login form.
func DefaultSelectors() Selectors {
	return Selectors{
		Email:    `input[name="email"]`,
		Password: `input[name="password"]`,
		Submit:   `button[type="submit"]`,
		Checkbox: `input[type="checkbox"], [role="checkbox"], .ctp-checkbox-label, #recaptcha-anchor`,
	}
}

// Strategy names the submit interaction that was used last.
type Strategy string

const (
	StrategyNone      Strategy = ""
	StrategyKeystroke Strategy = "keystroke"
	StrategyClick     Strategy = "click"
	StrategyForced    Strategy = "forced_click"
)

// Result is the outcome of a submit call.
type Result struct {
	OK        bool     `json:"ok"`
	Message   string   `json:"message"`
	Strategy  Strategy `json:"strategy,omitempty"`
	Challenge Step     `json:"challenge"`
}

// Submitter fills and submits the login form.
type Submitter struct {
	sel          Selectors
	markers      pagesignal.Markers
	settleDelay  time.Duration
	fieldTimeout time.Duration
}

// New creates a Submitter. Zero durations fall back to 3s settle and 10s field wait.
func New(sel Selectors, markers pagesignal.Markers, settleDelay, fieldTimeout time.Duration) *Submitter {
	if settleDelay <= 0 {
		settleDelay = 3 * time.Second
	}
	if fieldTimeout <= 0 {
		fieldTimeout = 10 * time.Second
	}
	return &Submitter{sel: sel, markers: markers, settleDelay: settleDelay, fieldTimeout: fieldTimeout}
}

// Submit fills the credentials and submits the form. Keystroke submission is
// tried first; if the page is still on the login route after the settle
// delay, a challenge dismissal is attempted and the submit control is
// activated directly. The chain runs at most once per call.
func (s *Submitter) Submit(ctx context.Context, page Page, username, password string) Result {
	slog.Info("submitter waiting for login form", "selector", s.sel.Email)
	if err := page.WaitInteractable(ctx, s.sel.Email, s.fieldTimeout); err != nil {
		slog.Warn("submitter email field not interactable", "error", err)
		return Result{Message: "Login Automation Failed: email field not found: " + err.Error()}
	}
	if err := page.SetField(ctx, s.sel.Email, username); err != nil {
		return Result{Message: "Login Automation Failed: enter email: " + err.Error()}
	}
	if err := page.SetField(ctx, s.sel.Password, password); err != nil {
		return Result{Message: "Login Automation Failed: enter password: " + err.Error()}
	}

	slog.Info("submitter keystroke submit")
	keyErr := page.PressEnter(ctx, s.sel.Password)
	if keyErr != nil {
		slog.Warn("submitter keystroke submit failed", "error", keyErr)
	} else {
		if err := s.settle(ctx); err != nil {
			return Result{Message: "Login Automation Failed: " + err.Error(), Strategy: StrategyKeystroke}
		}
		if left, err := s.leftLogin(ctx, page); err == nil && left {
			return Result{OK: true, Message: "Login submitted. Check status.", Strategy: StrategyKeystroke, Challenge: notApplicable("form submitted")}
		}
	}

	challenge := s.DismissChallenge(ctx, page)

	slog.Info("submitter click submit", "selector", s.sel.Submit, "challenge", challenge.Outcome)
	strategy, err := s.activate(ctx, page)
	if err != nil {
		slog.Warn("submitter click submit failed", "error", err)
		if keyErr != nil {
			return Result{Message: "Login Automation Failed: " + err.Error(), Challenge: challenge}
		}
		// The keystroke did go through; leave the outcome to classification.
		return Result{OK: true, Message: "Login submitted. Check status.", Strategy: StrategyKeystroke, Challenge: challenge}
	}
	if err := s.settle(ctx); err != nil {
		return Result{Message: "Login Automation Failed: " + err.Error(), Strategy: strategy, Challenge: challenge}
	}
	return Result{OK: true, Message: "Login submitted. Check status.", Strategy: strategy, Challenge: challenge}
}

// Resubmit makes one dismissal attempt on a pending challenge and, when it
// succeeded, activates the submit control again.
func (s *Submitter) Resubmit(ctx context.Context, page Page) (Step, Result) {
	step := s.DismissChallenge(ctx, page)
	if step.Outcome != Succeeded {
		return step, Result{Message: "challenge not dismissed: " + step.Detail, Challenge: step}
	}
	strategy, err := s.activate(ctx, page)
	if err != nil {
		slog.Warn("submitter resubmit click failed", "error", err)
		return step, Result{Message: "resubmit failed: " + err.Error(), Challenge: step}
	}
	if err := s.settle(ctx); err != nil {
		return step, Result{Message: "resubmit interrupted: " + err.Error(), Strategy: strategy, Challenge: step}
	}
	return step, Result{OK: true, Message: "Challenge dismissed, login resubmitted.", Strategy: strategy, Challenge: step}
}

// activate clicks the submit control natively and falls back to a forced
// script click when the native one fails, e.g. under an overlay.
func (s *Submitter) activate(ctx context.Context, page Page) (Strategy, error) {
	err := page.Click(ctx, s.sel.Submit, false)
	if err == nil {
		return StrategyClick, nil
	}
	if ctx.Err() != nil {
		return StrategyNone, err
	}
	slog.Debug("submitter native click failed, forcing", "error", err)
	if err := page.Click(ctx, s.sel.Submit, true); err != nil {
		return StrategyNone, err
	}
	return StrategyForced, nil
}

func (s *Submitter) leftLogin(ctx context.Context, page Page) (bool, error) {
	u, err := page.URL(ctx)
	if err != nil {
		slog.Debug("submitter url read failed", "error", err)
		return false, err
	}
	return !pagesignal.IsLoginRoute(u, s.markers), nil
}

func (s *Submitter) settle(ctx context.Context) error {
	select {
	case <-time.After(s.settleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
