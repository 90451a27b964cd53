package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/holdings_agent/internal/holdings"
	"github.com/dgnsrekt/holdings_agent/internal/relay"
	"github.com/dgnsrekt/holdings_agent/internal/session"
	"github.com/dgnsrekt/holdings_agent/internal/snapshot"
)

type stubService struct {
	state    session.State
	username string
	closed   int
}

func (s *stubService) StartSession(ctx context.Context, username, password string) (session.StartResult, error) {
	if (username == "") != (password == "") {
		return session.StartResult{}, &session.CodedError{Code: session.CodeValidation, Message: "password is required"}
	}
	s.username = username
	return session.StartResult{OK: true, State: session.Submitting, Message: "Login submitted. Check status."}, nil
}
func (s *stubService) PollStatus(ctx context.Context) (session.StatusResult, error) {
	return session.StatusResult{State: s.state, Message: "MFA Required"}, nil
}
func (s *stubService) FetchHoldings(ctx context.Context) (session.HoldingsResult, error) {
	if s.state != session.Authenticated {
		return session.HoldingsResult{}, &session.CodedError{Code: session.CodeNotAuthenticated, Message: "not logged in"}
	}
	return session.HoldingsResult{
		Holdings: []holdings.Record{{Ticker: "BHP", RawRow: []string{"BHP", "100", "$45.20"}, Source: holdings.SourceStructured}},
		Message:  "found 1 holdings",
	}, nil
}
func (s *stubService) CloseSession(ctx context.Context) error { s.closed++; return nil }
func (s *stubService) SessionInfo(ctx context.Context) (session.Info, error) {
	return session.Info{State: s.state}, nil
}
func (s *stubService) Screenshot(ctx context.Context, notes string) (snapshot.Meta, error) {
	return snapshot.Meta{}, &session.CodedError{Code: session.CodeNoSession, Message: "not started"}
}
func (s *stubService) ListSnapshots(ctx context.Context) ([]snapshot.Meta, error) { return nil, nil }
func (s *stubService) GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error) {
	return snapshot.Meta{}, &session.CodedError{Code: session.CodeSnapshotNotFound, Message: "snapshot not found: " + id}
}
func (s *stubService) ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error) {
	return []byte("img"), "png", nil
}
func (s *stubService) DeleteSnapshot(ctx context.Context, id string) error { return nil }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDocsDarkMode(t *testing.T) {
	h := NewServer(&stubService{}, nil)
	w := do(t, h, http.MethodGet, "/docs", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
	for _, route := range []string{"POST /api/v1/session", "GET /api/v1/session/status", "GET /api/v1/holdings", "DELETE /api/v1/session", `href="/docs/events"`} {
		if !strings.Contains(w.Body.String(), route) {
			t.Errorf("docs missing %q", route)
		}
	}
}

func TestEventsDocsServed(t *testing.T) {
	h := NewServer(&stubService{}, relay.NewBroker())
	w := do(t, h, http.MethodGet, "/docs/events", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/api/v1/session/ws") {
		t.Fatalf("GET /docs/events = %d; want events page", w.Code)
	}
}

func TestFetchHoldingsNotLoggedIn(t *testing.T) {
	h := NewServer(&stubService{state: session.AwaitingMFA}, nil)
	w := do(t, h, http.MethodGet, "/api/v1/holdings", "")

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d; want %d", w.Code, http.StatusConflict)
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() = %v", err)
	}
	if body.Detail != "not logged in" {
		t.Fatalf("detail = %q; want %q", body.Detail, "not logged in")
	}
}

func TestFetchHoldingsAuthenticated(t *testing.T) {
	h := NewServer(&stubService{state: session.Authenticated}, nil)
	w := do(t, h, http.MethodGet, "/api/v1/holdings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200: %s", w.Code, w.Body.String())
	}
	var body struct {
		Holdings []holdings.Record `json:"holdings"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() = %v", err)
	}
	if len(body.Holdings) != 1 || body.Holdings[0].Ticker != "BHP" {
		t.Fatalf("holdings = %+v; want BHP", body.Holdings)
	}
}

func TestStartSessionRoutes(t *testing.T) {
	svc := &stubService{}
	h := NewServer(svc, nil)

	w := do(t, h, http.MethodPost, "/api/v1/session", `{"username":"user@example.com","password":"secret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/session = %d; want 200: %s", w.Code, w.Body.String())
	}
	var res session.StartResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("json.Unmarshal() = %v", err)
	}
	if !res.OK || res.State != session.Submitting || svc.username != "user@example.com" {
		t.Fatalf("start result = %+v (username %q)", res, svc.username)
	}

	w = do(t, h, http.MethodPost, "/api/v1/session", `{"username":"user@example.com"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST without password = %d; want 400", w.Code)
	}

	w = do(t, h, http.MethodDelete, "/api/v1/session", "")
	if w.Code != http.StatusOK || svc.closed != 1 {
		t.Fatalf("DELETE /api/v1/session = %d closed=%d; want 200 and one close", w.Code, svc.closed)
	}
}

func TestMapErrStatusCodes(t *testing.T) {
	h := NewServer(&stubService{}, nil)

	if w := do(t, h, http.MethodPost, "/api/v1/session/screenshot", `{}`); w.Code != http.StatusConflict {
		t.Fatalf("screenshot without session = %d; want 409", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/snapshots/abc/metadata", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing snapshot = %d; want 404", w.Code)
	}

	tests := map[string]int{
		session.CodeTransientRead: http.StatusServiceUnavailable,
		session.CodeResourceFault: http.StatusBadGateway,
		session.CodeSessionFault:  http.StatusBadGateway,
		"SOMETHING_ELSE":          http.StatusInternalServerError,
	}
	for code, want := range tests {
		err := mapErr(&session.CodedError{Code: code, Message: "x"})
		se, ok := err.(interface{ GetStatus() int })
		if !ok {
			t.Fatalf("mapErr(%s) = %T; want huma status error", code, err)
		}
		if se.GetStatus() != want {
			t.Fatalf("mapErr(%s) status = %d; want %d", code, se.GetStatus(), want)
		}
	}
}

func TestSnapshotImageContentType(t *testing.T) {
	h := NewServer(&stubService{}, nil)
	w := do(t, h, http.MethodGet, "/api/v1/snapshots/abc/image", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type = %q; want image/png", ct)
	}
	if w.Body.String() != "img" {
		t.Fatalf("body = %q; want raw image bytes", w.Body.String())
	}
}
