// Package notify pushes ntfy notifications when the login flow needs a human.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/holdings_agent/internal/session"
)

const sendTimeout = 10 * time.Second

// Notifier posts attention messages to an ntfy topic. It implements
// session.Observer.
type Notifier struct {
	client   *http.Client
	endpoint string
	inflight sync.WaitGroup
}

// New returns a Notifier for endpoint. A nil client uses http.DefaultClient.
func New(endpoint string, client *http.Client) *Notifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Notifier{client: client, endpoint: endpoint}
}

// SessionChanged sends a notification in the background when the session
// enters a state that only a person can resolve.
func (n *Notifier) SessionChanged(t session.Transition) {
	msg, ok := attentionMessage(t)
	if !ok {
		return
	}
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		err := Send(ctx, n.client, n.endpoint, msg)
		if err != nil {
			slog.Warn("notify send failed", "state", t.To, "error", err)
		} else {
			slog.Info("notify sent", "state", t.To)
		}
	}()
}

// Flush waits for background sends already started.
func (n *Notifier) Flush() {
	n.inflight.Wait()
}

func attentionMessage(t session.Transition) (string, bool) {
	switch t.To {
	case session.AwaitingMFA:
		return "Brokerage login is waiting for an MFA code. Complete it in the agent's browser session.", true
	case session.Challenge:
		return "Brokerage login is blocked by a security challenge: " + t.Message, true
	case session.Errored:
		return "Brokerage session failed: " + t.Message, true
	}
	return "", false
}

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	if endpoint == "" {
		return errors.New("ntfy endpoint is empty")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
