package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/holdings_agent/internal/relay"
	"github.com/dgnsrekt/holdings_agent/internal/session"
	"github.com/dgnsrekt/holdings_agent/internal/snapshot"
)

type Service interface {
	StartSession(ctx context.Context, username, password string) (session.StartResult, error)
	PollStatus(ctx context.Context) (session.StatusResult, error)
	FetchHoldings(ctx context.Context) (session.HoldingsResult, error)
	CloseSession(ctx context.Context) error
	SessionInfo(ctx context.Context) (session.Info, error)
	Screenshot(ctx context.Context, notes string) (snapshot.Meta, error)
	ListSnapshots(ctx context.Context) ([]snapshot.Meta, error)
	GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error)
	ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// NewServer builds the control API. A nil broker disables the event stream routes.
func NewServer(svc Service, broker *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Holdings Agent API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", serveHTML(docsHTML))
	router.Get("/docs/events", serveHTML(eventsDocsHTML))
	if broker != nil {
		router.Get("/api/v1/session/events", relay.SSEHandler(broker))
		router.Get("/api/v1/session/ws", relay.WebSocketHandler(broker))
	}

	registerHealthHandlers(api, broker)
	registerSessionHandlers(api, svc)
	registerSnapshotHandlers(api, svc)

	return router
}

func serveHTML(page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(page)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	}
}

func registerHealthHandlers(api huma.API, broker *relay.Broker) {
	type healthOutput struct {
		Body struct {
			Status        string `json:"status"`
			StreamClients int    `json:"stream_clients"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			if broker != nil {
				out.Body.StreamClients = broker.ClientCount()
			}
			return out, nil
		})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *session.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case session.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case session.CodeNotAuthenticated, session.CodeNoSession:
			return huma.Error409Conflict(coded.Message)
		case session.CodeSnapshotNotFound:
			return huma.Error404NotFound(coded.Message)
		case session.CodeTransientRead:
			return huma.Error503ServiceUnavailable(coded.Message)
		case session.CodeResourceFault, session.CodeSessionFault:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
