package session

import (
	"time"

	"github.com/dgnsrekt/holdings_agent/internal/pagesignal"
)

// State is a step of the login lifecycle.
type State string

const (
	Unstarted     State = "UNSTARTED"
	Launching     State = "LAUNCHING"
	Submitting    State = "SUBMITTING"
	Challenge     State = "CHALLENGE"
	AwaitingMFA   State = "AWAITING_MFA"
	Authenticated State = "AUTHENTICATED"
	Rejected      State = "REJECTED"
	Errored       State = "ERROR"
	Closed        State = "CLOSED"
)

// live reports whether a browser handle is expected to exist in s.
func (s State) live() bool {
	switch s {
	case Launching, Submitting, Challenge, AwaitingMFA, Authenticated, Rejected:
		return true
	}
	return false
}

// next returns the state reached from s on signal. Only SUBMITTING and the
// waiting states react to signals; terminal states keep their value.
func next(s State, sig pagesignal.Signal) State {
	switch s {
	case Submitting:
		switch sig {
		case pagesignal.MFARequired:
			return AwaitingMFA
		case pagesignal.ChallengePresent:
			return Challenge
		case pagesignal.CredentialsRejected:
			return Rejected
		case pagesignal.Authenticated:
			return Authenticated
		}
	case Challenge:
		// The challenge went away on its own or was solved by a human.
		if sig != pagesignal.ChallengePresent {
			return next(Submitting, sig)
		}
	case AwaitingMFA, Launching:
		if sig == pagesignal.Authenticated {
			return Authenticated
		}
	}
	return s
}

// Transition is reported to an Observer on every state change.
type Transition struct {
	From    State             `json:"from"`
	To      State             `json:"to"`
	Signal  pagesignal.Signal `json:"signal,omitempty"`
	Message string            `json:"message"`
	At      time.Time         `json:"at"`
}

// Observer receives state changes. Calls happen with the controller lock
// held and must not block or call back into the controller.
type Observer interface {
	SessionChanged(Transition)
}

// Observers fans a transition out to each non-nil observer in order.
type Observers []Observer

func (o Observers) SessionChanged(t Transition) {
	for _, obs := range o {
		if obs != nil {
			obs.SessionChanged(t)
		}
	}
}

// Info is a read-only view of the controller.
type Info struct {
	State     State             `json:"state"`
	Signal    pagesignal.Signal `json:"signal,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	URL       string            `json:"url,omitempty"`
	StartedAt *time.Time        `json:"started_at,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func statusMessage(s State, url string) (string, Fault) {
	switch s {
	case Launching:
		return "Browser open, no credentials submitted", FaultNone
	case Submitting:
		return "waiting for login (url: " + url + ")", FaultNone
	case Challenge:
		return "Security challenge present", FaultChallenge
	case AwaitingMFA:
		return "MFA Required", FaultNone
	case Authenticated:
		return "Login Detected", FaultNone
	case Rejected:
		return "Login Failed: Invalid Credentials", FaultLoginRejected
	}
	return string(s), FaultNone
}
