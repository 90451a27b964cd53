// Package pagesignal maps what the browser currently shows to a small set of
// named signals that drive the login state machine.
//
// The provider's markup is not under our control and changes without notice,
// so classification works on URL segments and keywords rather than fixed
// selectors. Results are probabilistic by nature.
package pagesignal

import (
	"net/url"
	"strings"
)

// Signal is a classified interpretation of the current page.
type Signal string

const (
	Authenticated       Signal = "authenticated"
	MFARequired         Signal = "mfa-required"
	CredentialsRejected Signal = "credentials-rejected"
	ChallengePresent    Signal = "challenge-present"
	Indeterminate       Signal = "indeterminate"
)

// Observation is the browser-visible state at one point in time.
type Observation struct {
	URL string
	// Body is the visible text of the document body.
	Body string
	// Frames holds one label per embedded frame (title, name and src).
	Frames []string
}

// Verdict is a signal plus the reason it was chosen.
type Verdict struct {
	Signal Signal `json:"signal"`
	Reason string `json:"reason"`
}

// Markers are the keywords used by Classify. All matching is case-insensitive.
type Markers struct {
	AuthenticatedSegments []string `yaml:"authenticated_segments"`
	MFASegments           []string `yaml:"mfa_segments"`
	LoginRoutes           []string `yaml:"login_routes"`
	RejectionTerms        []string `yaml:"rejection_terms"`
	ChallengeFrameHints   []string `yaml:"challenge_frame_hints"`
	ChallengePhrases      []string `yaml:"challenge_phrases"`
}

// DefaultMarkers returns the markers for the brokerage web app as it is today.
func DefaultMarkers() Markers {
	return Markers{
		AuthenticatedSegments: []string{"dashboard", "portfolio"},
		MFASegments:           []string{"mfa", "otp", "two-factor", "verify-code"},
		LoginRoutes:           []string{"/log-in", "/login", "/sign-in"},
		RejectionTerms:        []string{"incorrect", "invalid", "verify your email"},
		ChallengeFrameHints:   []string{"captcha", "challenge", "turnstile", "security check"},
		ChallengePhrases:      []string{"verify you are human", "are you a robot"},
	}
}

// Classify returns the first matching signal in priority order: authenticated,
// MFA, rejected credentials, challenge, indeterminate.
func Classify(obs Observation, m Markers) Verdict {
	route := routeOf(obs.URL)
	body := strings.ToLower(obs.Body)

	if seg, ok := containsAny(route, m.AuthenticatedSegments); ok {
		return Verdict{Signal: Authenticated, Reason: "url contains " + seg}
	}
	if seg, ok := containsAny(route, m.MFASegments); ok {
		return Verdict{Signal: MFARequired, Reason: "url contains " + seg}
	}
	if IsLoginRoute(obs.URL, m) {
		if term, ok := containsAny(body, m.RejectionTerms); ok {
			return Verdict{Signal: CredentialsRejected, Reason: "login page shows " + term}
		}
	}
	for _, label := range obs.Frames {
		if hint, ok := containsAny(strings.ToLower(label), m.ChallengeFrameHints); ok {
			return Verdict{Signal: ChallengePresent, Reason: "frame matches " + hint}
		}
	}
	if phrase, ok := containsAny(body, m.ChallengePhrases); ok {
		return Verdict{Signal: ChallengePresent, Reason: "page shows " + phrase}
	}
	return Verdict{Signal: Indeterminate, Reason: "no marker matched"}
}

// IsLoginRoute reports whether rawURL still points at a login route.
func IsLoginRoute(rawURL string, m Markers) bool {
	_, ok := containsAny(routeOf(rawURL), m.LoginRoutes)
	return ok
}

// IsChallengeFrame reports whether a frame label looks like a security challenge.
func IsChallengeFrame(label string, m Markers) bool {
	_, ok := containsAny(strings.ToLower(label), m.ChallengeFrameHints)
	return ok
}

// routeOf returns the lower-cased path plus fragment of rawURL. SPA routers
// sometimes keep the route in the fragment. Unparseable input is used as-is.
func routeOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.ToLower(rawURL)
	}
	route := u.Path
	if u.Fragment != "" {
		route += "#" + u.Fragment
	}
	return strings.ToLower(route)
}

func containsAny(s string, needles []string) (string, bool) {
	for _, n := range needles {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && strings.Contains(s, n) {
			return n, true
		}
	}
	return "", false
}
