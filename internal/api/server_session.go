package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/holdings_agent/internal/holdings"
	"github.com/dgnsrekt/holdings_agent/internal/session"
	"github.com/dgnsrekt/holdings_agent/internal/snapshot"
)

func registerSessionHandlers(api huma.API, svc Service) {
	type startOutput struct {
		Body session.StartResult
	}
	huma.Register(api, huma.Operation{OperationID: "start-session", Method: http.MethodPost, Path: "/api/v1/session", Summary: "Start the brokerage session", Description: "Launches the headless browser and opens the login page. When both username and password are given they are submitted and the result classified once. A live session is left untouched and reported as \"already active\".", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Username string `json:"username,omitempty" doc:"Login email; requires password"`
				Password string `json:"password,omitempty" doc:"Login password; requires username"`
			}
		}) (*startOutput, error) {
			res, err := svc.StartSession(ctx, input.Body.Username, input.Body.Password)
			if err != nil {
				return nil, mapErr(err)
			}
			return &startOutput{Body: res}, nil
		})

	type statusOutput struct {
		Body session.StatusResult
	}
	huma.Register(api, huma.Operation{OperationID: "poll-status", Method: http.MethodGet, Path: "/api/v1/session/status", Summary: "Poll login status", Description: "Reads the live page once and advances the session state.", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			res, err := svc.PollStatus(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: res}, nil
		})

	type infoOutput struct {
		Body session.Info
	}
	huma.Register(api, huma.Operation{OperationID: "session-info", Method: http.MethodGet, Path: "/api/v1/session", Summary: "Session info", Description: "Returns the last known session state without touching the browser.", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*infoOutput, error) {
			info, err := svc.SessionInfo(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &infoOutput{Body: info}, nil
		})

	type closeOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "close-session", Method: http.MethodDelete, Path: "/api/v1/session", Summary: "Close the brokerage session", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*closeOutput, error) {
			if err := svc.CloseSession(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &closeOutput{}
			out.Body.Status = "closed"
			return out, nil
		})

	type holdingsOutput struct {
		Body struct {
			Holdings []holdings.Record `json:"holdings"`
			Message  string            `json:"message"`
			Fault    session.Fault     `json:"fault,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "fetch-holdings", Method: http.MethodGet, Path: "/api/v1/holdings", Summary: "Extract holdings", Description: "Best-effort extraction from the rendered portfolio page. Requires an authenticated session.", Tags: []string{"Holdings"}},
		func(ctx context.Context, input *struct{}) (*holdingsOutput, error) {
			res, err := svc.FetchHoldings(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &holdingsOutput{}
			out.Body.Holdings = res.Holdings
			if out.Body.Holdings == nil {
				out.Body.Holdings = []holdings.Record{}
			}
			out.Body.Message = res.Message
			out.Body.Fault = res.Fault
			return out, nil
		})

	type screenshotOutput struct {
		Body struct {
			Snapshot snapshot.Meta `json:"snapshot"`
			URL      string        `json:"url"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "session-screenshot", Method: http.MethodPost, Path: "/api/v1/session/screenshot", Summary: "Capture the session page", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Notes string `json:"notes,omitempty" doc:"Free-form annotation for the snapshot"`
			}
		}) (*screenshotOutput, error) {
			meta, err := svc.Screenshot(ctx, input.Body.Notes)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &screenshotOutput{}
			out.Body.Snapshot = meta
			out.Body.URL = "/api/v1/snapshots/" + meta.ID + "/image"
			return out, nil
		})
}
