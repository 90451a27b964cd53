package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/holdings_agent/internal/holdings"
	"github.com/dgnsrekt/holdings_agent/internal/pagesignal"
	"github.com/dgnsrekt/holdings_agent/internal/submitter"
)

// DefaultLoginURL is the provider's sign-in page.
const DefaultLoginURL = "https://app.superhero.com.au/log-in"

// Provider describes the brokerage web application: where to sign in, how
// to read the page state and how to find holdings.
type Provider struct {
	LoginURL  string              `yaml:"login_url"`
	Markers   pagesignal.Markers  `yaml:"markers"`
	Selectors submitter.Selectors `yaml:"selectors"`
	Holdings  holdings.Options    `yaml:"holdings"`
}

// DefaultProvider returns the built-in provider profile.
func DefaultProvider() Provider {
	return Provider{
		LoginURL:  DefaultLoginURL,
		Markers:   pagesignal.DefaultMarkers(),
		Selectors: submitter.DefaultSelectors(),
		Holdings:  holdings.DefaultOptions(),
	}
}

// LoadProvider overlays the YAML file at path on DefaultProvider. Keys absent
// from the file keep their defaults; a list in the file replaces the default
// list. A missing file yields the defaults.
func LoadProvider(path string) (Provider, error) {
	p := DefaultProvider()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("provider profile not found, using defaults", "path", path)
			return p, nil
		}
		return Provider{}, fmt.Errorf("provider config: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Provider{}, fmt.Errorf("provider config: %w", err)
	}
	if err := p.validate(); err != nil {
		return Provider{}, fmt.Errorf("provider config: %w", err)
	}
	return p, nil
}

func (p Provider) validate() error {
	if !strings.HasPrefix(p.LoginURL, "http://") && !strings.HasPrefix(p.LoginURL, "https://") {
		return fmt.Errorf("login_url must be an http(s) url, got %q", p.LoginURL)
	}
	if p.Selectors.Email == "" || p.Selectors.Password == "" || p.Selectors.Submit == "" {
		return errors.New("selectors.email, selectors.password and selectors.submit are required")
	}
	if len(p.Markers.LoginRoutes) == 0 {
		return errors.New("markers.login_routes must not be empty")
	}
	return nil
}
