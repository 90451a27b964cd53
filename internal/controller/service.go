package controller

import (
	"context"
	"errors"
	"strings"

	"github.com/dgnsrekt/holdings_agent/internal/session"
	"github.com/dgnsrekt/holdings_agent/internal/snapshot"
)

// Session is the part of session.Controller the service drives.
type Session interface {
	Start(ctx context.Context, creds session.Credentials) session.StartResult
	Status(ctx context.Context) session.StatusResult
	Holdings(ctx context.Context) (session.HoldingsResult, error)
	Screenshot(ctx context.Context, notes string) (snapshot.Meta, error)
	Close()
	Info() session.Info
}

// Service wraps the brokerage session and the snapshot store for the API.
type Service struct {
	sess  Session
	snaps *snapshot.Store
}

func NewService(sess Session, snaps *snapshot.Store) *Service {
	return &Service{sess: sess, snaps: snaps}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &session.CodedError{Code: session.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

// StartSession opens the login page and submits credentials when both are
// given. Supplying only one of them is a validation error.
func (s *Service) StartSession(ctx context.Context, username, password string) (session.StartResult, error) {
	username = strings.TrimSpace(username)
	if username != "" || password != "" {
		if err := s.requireNonEmpty(username, "username"); err != nil {
			return session.StartResult{}, err
		}
		if err := s.requireNonEmpty(password, "password"); err != nil {
			return session.StartResult{}, err
		}
	}
	return s.sess.Start(ctx, session.Credentials{Username: username, Password: password}), nil
}

func (s *Service) PollStatus(ctx context.Context) (session.StatusResult, error) {
	return s.sess.Status(ctx), nil
}

func (s *Service) FetchHoldings(ctx context.Context) (session.HoldingsResult, error) {
	return s.sess.Holdings(ctx)
}

func (s *Service) CloseSession(ctx context.Context) error {
	s.sess.Close()
	return nil
}

func (s *Service) SessionInfo(ctx context.Context) (session.Info, error) {
	return s.sess.Info(), nil
}

func (s *Service) Screenshot(ctx context.Context, notes string) (snapshot.Meta, error) {
	return s.sess.Screenshot(ctx, strings.TrimSpace(notes))
}

// --- Snapshot methods ---

func (s *Service) ListSnapshots(ctx context.Context) ([]snapshot.Meta, error) {
	return s.snaps.List()
}

func (s *Service) GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error) {
	if err := s.requireNonEmpty(id, "snapshot_id"); err != nil {
		return snapshot.Meta{}, err
	}
	meta, err := s.snaps.Get(strings.TrimSpace(id))
	if err != nil {
		return snapshot.Meta{}, snapshotErr(err)
	}
	return meta, nil
}

func (s *Service) ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error) {
	if err := s.requireNonEmpty(id, "snapshot_id"); err != nil {
		return nil, "", err
	}
	data, format, err := s.snaps.ReadImage(strings.TrimSpace(id))
	if err != nil {
		return nil, "", snapshotErr(err)
	}
	return data, format, nil
}

func (s *Service) DeleteSnapshot(ctx context.Context, id string) error {
	if err := s.requireNonEmpty(id, "snapshot_id"); err != nil {
		return err
	}
	if err := s.snaps.Delete(strings.TrimSpace(id)); err != nil {
		return snapshotErr(err)
	}
	return nil
}

func snapshotErr(err error) error {
	switch {
	case errors.Is(err, snapshot.ErrInvalidID):
		return &session.CodedError{Code: session.CodeValidation, Message: err.Error()}
	case errors.Is(err, snapshot.ErrNotFound):
		return &session.CodedError{Code: session.CodeSnapshotNotFound, Message: err.Error()}
	}
	return err
}
