// Package session owns the single browser session used to sign in to the
// provider. All operations on a Controller are serialized; Close interrupts
// whatever operation is in flight before taking its turn.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/holdings_agent/internal/browser"
	"github.com/dgnsrekt/holdings_agent/internal/holdings"
	"github.com/dgnsrekt/holdings_agent/internal/pagesignal"
	"github.com/dgnsrekt/holdings_agent/internal/snapshot"
	"github.com/dgnsrekt/holdings_agent/internal/submitter"
)

const (
	msgAlreadyActive = "already active"
	msgNotStarted    = "not started"
	msgOpened        = "Browser opened (Headless). Waiting for login."
	msgSubmitted     = "Login submitted. Check status."
	msgErrorState    = "session in error state, close it first"
	msgNotLoggedIn   = "not logged in"
	msgNoHoldings    = "no holdings found"
)

// Page is the browser tab as seen by the controller.
type Page interface {
	submitter.Page
	Navigate(ctx context.Context, url string) error
	BodyText(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
	// Err is non-nil once the tab can no longer be used.
	Err() error
}

// LaunchFunc acquires a new browser tab.
type LaunchFunc func(ctx context.Context) (Page, error)

// SnapshotSaver persists screenshots.
type SnapshotSaver interface {
	Put(meta snapshot.Meta, image []byte) (snapshot.Meta, error)
}

// Credentials are optional; both fields must be set for a login attempt.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) present() bool { return c.Username != "" && c.Password != "" }

// Options configure a Controller.
type Options struct {
	LoginURL  string
	Markers   pagesignal.Markers
	Submitter *submitter.Submitter
	Holdings  holdings.Options
	// ReadTimeout bounds a single page read during Status, Holdings and Screenshot.
	ReadTimeout time.Duration
	Snapshots   SnapshotSaver
	Observer    Observer
	// CaptureOnFailure stores a screenshot when the session enters REJECTED or CHALLENGE.
	CaptureOnFailure bool
}

type StartResult struct {
	OK      bool   `json:"ok"`
	State   State  `json:"state"`
	Message string `json:"message"`
	Fault   Fault  `json:"fault,omitempty"`
}

type StatusResult struct {
	Authenticated bool              `json:"authenticated"`
	State         State             `json:"state"`
	Signal        pagesignal.Signal `json:"signal,omitempty"`
	Message       string            `json:"message"`
	Fault         Fault             `json:"fault,omitempty"`
}

type HoldingsResult struct {
	Holdings []holdings.Record `json:"holdings"`
	Message  string            `json:"message"`
	Fault    Fault             `json:"fault,omitempty"`
}

// Controller drives one browser session through the login flow.
type Controller struct {
	launch LaunchFunc
	opts   Options

	mu        sync.Mutex
	state     State
	page      Page
	verdict   pagesignal.Verdict
	url       string
	cause     error
	startedAt time.Time

	opMu  sync.Mutex
	opSeq uint64
	ops   map[uint64]context.CancelFunc

	view atomic.Pointer[Info]
}

// NewController creates a Controller in the UNSTARTED state.
func NewController(launch LaunchFunc, opts Options) *Controller {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.Submitter == nil {
		opts.Submitter = submitter.New(submitter.DefaultSelectors(), opts.Markers, 0, 0)
	}
	c := &Controller{
		launch: launch,
		opts:   opts,
		state:  Unstarted,
		ops:    make(map[uint64]context.CancelFunc),
	}
	c.publish()
	return c
}

// Start launches a browser, opens the login page and, when credentials are
// given, submits them and classifies the result once.
func (c *Controller) Start(ctx context.Context, creds Credentials) StartResult {
	ctx, done := c.begin(ctx)
	defer done()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.page != nil && c.state.live() {
		slog.Info("session start ignored, already active", "state", c.state)
		return StartResult{OK: true, State: c.state, Message: msgAlreadyActive}
	}
	if c.state == Errored {
		return StartResult{State: c.state, Message: msgErrorState, Fault: FaultSession}
	}

	slog.Info("session start", "login_url", c.opts.LoginURL, "with_credentials", creds.present())
	page, err := c.launch(ctx)
	if err != nil {
		slog.Error("session browser launch failed", "error", err)
		return StartResult{State: c.state, Message: "Failed to start browser: " + err.Error(), Fault: FaultResource}
	}
	c.page = page
	c.startedAt = time.Now().UTC()
	c.cause = nil
	c.verdict = pagesignal.Verdict{}

	if err := page.Navigate(ctx, c.opts.LoginURL); err != nil {
		if ctx.Err() != nil && page.Err() == nil {
			slog.Info("session start interrupted", "error", err)
			c.release()
			c.publish()
			return StartResult{State: c.state, Message: "start interrupted: " + err.Error()}
		}
		c.fail(fmt.Errorf("open login page: %w", err))
		return StartResult{State: c.state, Message: "Failed to open login page: " + err.Error(), Fault: FaultSession}
	}
	c.url = c.opts.LoginURL

	if !creds.present() {
		c.transition(Launching, "", msgOpened)
		return StartResult{OK: true, State: c.state, Message: msgOpened}
	}

	c.transition(Submitting, "", "submitting credentials")
	res := c.opts.Submitter.Submit(ctx, page, creds.Username, creds.Password)
	slog.Info("session credentials submitted", "ok", res.OK, "strategy", res.Strategy, "challenge", res.Challenge.Outcome)
	if !res.OK {
		if page.Err() != nil {
			c.fail(page.Err())
			return StartResult{State: c.state, Message: res.Message, Fault: FaultSession}
		}
		return StartResult{State: c.state, Message: res.Message}
	}

	verdict, err := c.observe(ctx)
	if err != nil {
		if c.fatal(err) {
			return StartResult{State: c.state, Message: "session error: " + err.Error(), Fault: FaultSession}
		}
		slog.Warn("session classify after submit failed", "error", err)
		return StartResult{OK: true, State: c.state, Message: msgSubmitted}
	}
	c.apply(ctx, verdict)

	msg, fault := statusMessage(c.state, c.url)
	if c.state == Submitting {
		msg = msgSubmitted
	}
	return StartResult{OK: c.state != Rejected, State: c.state, Message: msg, Fault: fault}
}

// Status reads the live page once and advances the state machine.
func (c *Controller) Status(ctx context.Context) StatusResult {
	ctx, done := c.begin(ctx)
	defer done()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Errored {
		return StatusResult{State: c.state, Message: "session error: " + errString(c.cause), Fault: FaultSession}
	}
	if c.page == nil {
		return StatusResult{State: c.state, Message: msgNotStarted}
	}

	verdict, err := c.observe(ctx)
	if err != nil {
		if c.fatal(err) {
			return StatusResult{State: c.state, Message: "session error: " + err.Error(), Fault: FaultSession}
		}
		slog.Warn("session status read failed", "error", err)
		return StatusResult{State: c.state, Message: "error reading session: " + err.Error(), Fault: FaultTransientRead}
	}

	if c.state == Challenge && verdict.Signal == pagesignal.ChallengePresent {
		step, res := c.opts.Submitter.Resubmit(ctx, c.page)
		slog.Info("session challenge resubmit", "outcome", step.Outcome, "ok", res.OK, "detail", step.Detail)
		if res.OK {
			c.verdict = verdict
			c.transition(Submitting, verdict.Signal, res.Message)
			return StatusResult{State: c.state, Signal: verdict.Signal, Message: res.Message}
		}
	}

	c.apply(ctx, verdict)
	msg, fault := statusMessage(c.state, c.url)
	return StatusResult{
		Authenticated: c.state == Authenticated,
		State:         c.state,
		Signal:        verdict.Signal,
		Message:       msg,
		Fault:         fault,
	}
}

// Holdings reads the rendered page and extracts positions. It fails with
// NOT_AUTHENTICATED, without touching the browser, unless the session is
// AUTHENTICATED.
func (c *Controller) Holdings(ctx context.Context) (HoldingsResult, error) {
	ctx, done := c.begin(ctx)
	defer done()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Authenticated || c.page == nil {
		return HoldingsResult{}, newError(CodeNotAuthenticated, msgNotLoggedIn, nil)
	}

	readCtx, cancel := context.WithTimeout(ctx, c.opts.ReadTimeout)
	defer cancel()
	markup, err := c.page.HTML(readCtx)
	if err != nil {
		if c.fatal(err) {
			return HoldingsResult{}, newError(CodeSessionFault, "browser session lost", err)
		}
		return HoldingsResult{}, newError(CodeTransientRead, "error reading holdings page", err)
	}

	records, err := holdings.Extract(markup, c.opts.Holdings)
	if err != nil {
		return HoldingsResult{}, newError(CodeTransientRead, "rendered page could not be parsed", err)
	}
	slog.Info("session holdings extracted", "count", len(records))
	if len(records) == 0 {
		return HoldingsResult{Holdings: records, Message: msgNoHoldings, Fault: FaultExtractionEmpty}, nil
	}
	return HoldingsResult{Holdings: records, Message: fmt.Sprintf("found %d holdings", len(records))}, nil
}

// Screenshot captures the live page into the snapshot store.
func (c *Controller) Screenshot(ctx context.Context, notes string) (snapshot.Meta, error) {
	ctx, done := c.begin(ctx)
	defer done()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.page == nil {
		return snapshot.Meta{}, newError(CodeNoSession, msgNotStarted, nil)
	}
	if c.opts.Snapshots == nil {
		return snapshot.Meta{}, newError(CodeResourceFault, "snapshot store not configured", nil)
	}
	meta, err := c.capture(ctx, notes)
	if err != nil {
		if c.fatal(err) {
			return snapshot.Meta{}, newError(CodeSessionFault, "browser session lost", err)
		}
		return snapshot.Meta{}, newError(CodeTransientRead, "capture screenshot", err)
	}
	return meta, nil
}

// Close interrupts any in-flight operation, releases the browser and moves
// to CLOSED. It is safe to call at any time and more than once.
func (c *Controller) Close() {
	c.cancelOps()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.release()
	if c.state == Unstarted || c.state == Closed {
		return
	}
	c.cause = nil
	c.transition(Closed, "", "session closed")
}

// Info returns the last published view of the session. It never waits for
// an in-flight operation.
func (c *Controller) Info() Info {
	return *c.view.Load()
}

func (c *Controller) observe(ctx context.Context) (pagesignal.Verdict, error) {
	readCtx, cancel := context.WithTimeout(ctx, c.opts.ReadTimeout)
	defer cancel()

	url, err := c.page.URL(readCtx)
	if err != nil {
		return pagesignal.Verdict{}, fmt.Errorf("read url: %w", err)
	}
	c.url = url
	body, err := c.page.BodyText(readCtx)
	if err != nil {
		return pagesignal.Verdict{}, fmt.Errorf("read body: %w", err)
	}
	frames, err := c.page.Frames(readCtx)
	if err != nil {
		return pagesignal.Verdict{}, fmt.Errorf("read frames: %w", err)
	}
	labels := make([]string, 0, len(frames))
	for _, f := range frames {
		labels = append(labels, f.Label())
	}

	v := pagesignal.Classify(pagesignal.Observation{URL: url, Body: body, Frames: labels}, c.opts.Markers)
	slog.Debug("session classified", "url", url, "signal", v.Signal, "reason", v.Reason)
	return v, nil
}

func (c *Controller) apply(ctx context.Context, v pagesignal.Verdict) {
	c.verdict = v
	to := next(c.state, v.Signal)
	if to == c.state {
		c.publish()
		return
	}
	msg, _ := statusMessage(to, c.url)
	c.transition(to, v.Signal, msg)

	if c.opts.CaptureOnFailure && (to == Rejected || to == Challenge) && c.opts.Snapshots != nil {
		if _, err := c.capture(ctx, "automatic capture on "+string(to)); err != nil {
			slog.Warn("session failure capture failed", "state", to, "error", err)
		}
	}
}

func (c *Controller) capture(ctx context.Context, notes string) (snapshot.Meta, error) {
	readCtx, cancel := context.WithTimeout(ctx, c.opts.ReadTimeout)
	defer cancel()
	img, err := c.page.Screenshot(readCtx)
	if err != nil {
		return snapshot.Meta{}, err
	}
	meta, err := c.opts.Snapshots.Put(snapshot.Meta{State: string(c.state), URL: c.url, Format: "png", Notes: notes}, img)
	if err != nil {
		return snapshot.Meta{}, err
	}
	slog.Info("session screenshot stored", "snapshot_id", meta.ID, "state", c.state)
	return meta, nil
}

// fatal moves the session to ERROR when the tab itself is gone. A cancelled
// context is reported as fatal only if the tab died with it.
func (c *Controller) fatal(err error) bool {
	if c.page == nil {
		return false
	}
	if pageErr := c.page.Err(); pageErr != nil || errors.Is(err, browser.ErrClosed) {
		if pageErr == nil {
			pageErr = err
		}
		c.fail(pageErr)
		return true
	}
	return false
}

func (c *Controller) fail(cause error) {
	slog.Error("session fault", "state", c.state, "error", cause)
	c.cause = cause
	c.release()
	c.transition(Errored, "", "session error: "+cause.Error())
}

func (c *Controller) release() {
	if c.page == nil {
		return
	}
	if err := c.page.Close(); err != nil {
		slog.Debug("session browser close failed", "error", err)
	}
	c.page = nil
}

func (c *Controller) transition(to State, sig pagesignal.Signal, msg string) {
	from := c.state
	c.state = to
	slog.Info("session transition", "from", from, "to", to, "signal", sig)
	c.publish()
	if c.opts.Observer != nil && from != to {
		c.opts.Observer.SessionChanged(Transition{From: from, To: to, Signal: sig, Message: msg, At: time.Now().UTC()})
	}
}

func (c *Controller) publish() {
	info := Info{
		State:     c.state,
		Signal:    c.verdict.Signal,
		Reason:    c.verdict.Reason,
		URL:       c.url,
		UpdatedAt: time.Now().UTC(),
	}
	if !c.startedAt.IsZero() && c.page != nil {
		started := c.startedAt
		info.StartedAt = &started
	}
	c.view.Store(&info)
}

// begin registers a cancelable operation so Close can interrupt it.
func (c *Controller) begin(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	c.opMu.Lock()
	c.opSeq++
	id := c.opSeq
	c.ops[id] = cancel
	c.opMu.Unlock()
	return ctx, func() {
		c.opMu.Lock()
		delete(c.ops, id)
		c.opMu.Unlock()
		cancel()
	}
}

func (c *Controller) cancelOps() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	for _, cancel := range c.ops {
		cancel()
	}
}

func errString(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
