package submitter

import (
	"context"
	"log/slog"

	"github.com/dgnsrekt/holdings_agent/internal/pagesignal"
)

// Outcome is the result of a best-effort step.
type Outcome string

const (
	NotApplicable Outcome = "not_applicable"
	Succeeded     Outcome = "succeeded"
	// FailedIgnored means the step was attempted, did not work, and the
	// caller carries on regardless.
	FailedIgnored Outcome = "failed_ignored"
)

// Step records a best-effort step and why it ended the way it did.
type Step struct {
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}

func notApplicable(detail string) Step { return Step{Outcome: NotApplicable, Detail: detail} }

// DismissChallenge looks for an iframe labelled like a security challenge and
// makes a single trivial interaction with it: a checkbox-like control inside
// the frame, or failing that the frame itself. It never returns an error; an
// unresolved challenge surfaces later through classification.
func (s *Submitter) DismissChallenge(ctx context.Context, page Page) Step {
	frames, err := page.Frames(ctx)
	if err != nil {
		slog.Debug("submitter frame scan failed", "error", err)
		return Step{Outcome: FailedIgnored, Detail: "frame scan: " + err.Error()}
	}

	index := -1
	label := ""
	for _, f := range frames {
		if pagesignal.IsChallengeFrame(f.Label(), s.markers) {
			index, label = f.Index, f.Label()
			break
		}
	}
	if index < 0 {
		return notApplicable("no challenge frame")
	}

	slog.Info("submitter challenge frame found", "index", index, "label", label)
	checkboxErr := page.ClickInFrame(ctx, index, s.sel.Checkbox)
	if checkboxErr == nil {
		return Step{Outcome: Succeeded, Detail: "checkbox clicked"}
	}
	slog.Debug("submitter challenge checkbox click failed", "error", checkboxErr)

	if err := page.ClickFrame(ctx, index); err != nil {
		slog.Debug("submitter challenge frame click failed", "error", err)
		return Step{Outcome: FailedIgnored, Detail: "checkbox: " + checkboxErr.Error() + "; frame: " + err.Error()}
	}
	return Step{Outcome: Succeeded, Detail: "frame clicked"}
}
