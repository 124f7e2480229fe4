package services

import (
	"context"

	"go.uber.org/zap"

	"audio-transcriber/internal/api/v1/dto"
	"audio-transcriber/internal/app/intake"
	"audio-transcriber/internal/app/logging"
	"audio-transcriber/internal/app/session"
	"audio-transcriber/internal/app/workflow"
)

// SessionServiceImpl implements SessionService on top of a session.Store
type SessionServiceImpl struct {
	store  *session.Store
	logger *zap.Logger
}

// NewSessionService creates a new session service
func NewSessionService(store *session.Store, logger *zap.Logger) SessionService {
	return &SessionServiceImpl{
		store:  store,
		logger: logging.OrNop(logger),
	}
}

func (s *SessionServiceImpl) CreateSession(ctx context.Context) (*dto.SessionResponse, error) {
	sess := s.store.Create()
	return toSessionResponse(sess), nil
}

func (s *SessionServiceImpl) GetSession(ctx context.Context, id string) (*dto.SessionResponse, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, ToAPIError(err)
	}
	return toSessionResponse(sess), nil
}

func (s *SessionServiceImpl) DeleteSession(ctx context.Context, id string) error {
	return ToAPIError(s.store.Delete(id))
}

func (s *SessionServiceImpl) SelectFile(ctx context.Context, id string, candidate intake.FileCandidate) (workflow.Snapshot, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return sess.Controller.Select(candidate)
}

func (s *SessionServiceImpl) RemoveFile(ctx context.Context, id string) (workflow.Snapshot, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return sess.Controller.Remove(), nil
}

func (s *SessionServiceImpl) Submit(ctx context.Context, id string) (workflow.Snapshot, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	snap, err := sess.Controller.Submit()
	if err == nil {
		s.logger.Debug("Session submitted transcription",
			zap.String("session_id", id),
			zap.String("transcription_id", snap.RequestID),
		)
	}
	return snap, err
}

func (s *SessionServiceImpl) Controller(ctx context.Context, id string) (*workflow.Controller, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, ToAPIError(err)
	}
	return sess.Controller, nil
}

func toSessionResponse(sess *session.Session) *dto.SessionResponse {
	return &dto.SessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Snapshot:  sess.Controller.Snapshot(),
	}
}
