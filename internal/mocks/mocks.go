package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"skill-exchange/internal/auth"
	"skill-exchange/internal/models"
	"skill-exchange/internal/repositories"
	"skill-exchange/internal/services"
)

type RequestRepositoryMock struct {
	mock.Mock
}

func (m *RequestRepositoryMock) CreateRequest(ctx context.Context, req models.SkillRequest) (models.SkillRequest, error) {
	args := m.Called(ctx, req)
	var out models.SkillRequest
	if val := args.Get(0); val != nil {
		out = val.(models.SkillRequest)
	}
	return out, args.Error(1)
}

func (m *RequestRepositoryMock) GetRequest(ctx context.Context, requestID string) (models.SkillRequest, error) {
	args := m.Called(ctx, requestID)
	var out models.SkillRequest
	if val := args.Get(0); val != nil {
		out = val.(models.SkillRequest)
	}
	return out, args.Error(1)
}

func (m *RequestRepositoryMock) ListIncoming(ctx context.Context, userID string, statuses []models.RequestStatus) ([]models.SkillRequest, error) {
	args := m.Called(ctx, userID, statuses)
	var list []models.SkillRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.SkillRequest)
	}
	return list, args.Error(1)
}

func (m *RequestRepositoryMock) ListOutgoing(ctx context.Context, userID string, statuses []models.RequestStatus) ([]models.SkillRequest, error) {
	args := m.Called(ctx, userID, statuses)
	var list []models.SkillRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.SkillRequest)
	}
	return list, args.Error(1)
}

// Resolve applies derive itself when the expectation returns a nil
// session for an accept, mirroring the transactional repositories.
func (m *RequestRepositoryMock) Resolve(ctx context.Context, requestID string, status models.RequestStatus, derive repositories.SessionDeriver) (models.SkillRequest, *models.SkillSession, error) {
	args := m.Called(ctx, requestID, status, mock.Anything)
	var req models.SkillRequest
	if val := args.Get(0); val != nil {
		req = val.(models.SkillRequest)
	}
	var session *models.SkillSession
	if val := args.Get(1); val != nil {
		session = val.(*models.SkillSession)
	}
	if session == nil && derive != nil && args.Error(2) == nil {
		s := derive(req)
		session = &s
	}
	return req, session, args.Error(2)
}

func (m *RequestRepositoryMock) ListAcceptedWithoutSession(ctx context.Context, limit int) ([]models.SkillRequest, error) {
	args := m.Called(ctx, limit)
	var list []models.SkillRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.SkillRequest)
	}
	return list, args.Error(1)
}

type SessionRepositoryMock struct {
	mock.Mock
}

func (m *SessionRepositoryMock) CreateSession(ctx context.Context, s models.SkillSession) (models.SkillSession, error) {
	args := m.Called(ctx, s)
	var out models.SkillSession
	if val := args.Get(0); val != nil {
		out = val.(models.SkillSession)
	}
	return out, args.Error(1)
}

func (m *SessionRepositoryMock) GetSession(ctx context.Context, sessionID string) (models.SkillSession, error) {
	args := m.Called(ctx, sessionID)
	var out models.SkillSession
	if val := args.Get(0); val != nil {
		out = val.(models.SkillSession)
	}
	return out, args.Error(1)
}

func (m *SessionRepositoryMock) ListSessionsForUser(ctx context.Context, userID string, status models.SessionStatus) ([]models.SkillSession, error) {
	args := m.Called(ctx, userID, status)
	var list []models.SkillSession
	if val := args.Get(0); val != nil {
		list = val.([]models.SkillSession)
	}
	return list, args.Error(1)
}

func (m *SessionRepositoryMock) CompleteSession(ctx context.Context, sessionID string) (models.SkillSession, error) {
	args := m.Called(ctx, sessionID)
	var out models.SkillSession
	if val := args.Get(0); val != nil {
		out = val.(models.SkillSession)
	}
	return out, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListSessionMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	args := m.Called(ctx, sessionID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var u models.User
	if val := args.Get(0); val != nil {
		u = val.(models.User)
	}
	return u, args.Error(1)
}

func (m *DirectoryMock) QueryUsers(ctx context.Context, q models.UserQuery) ([]models.User, error) {
	args := m.Called(ctx, q)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type AuthenticatorMock struct {
	mock.Mock
}

func (m *AuthenticatorMock) ValidateToken(ctx context.Context, token string) (auth.Session, error) {
	args := m.Called(ctx, token)
	var s auth.Session
	if val := args.Get(0); val != nil {
		s = val.(auth.Session)
	}
	return s, args.Error(1)
}

var (
	_ repositories.RequestRepository = (*RequestRepositoryMock)(nil)
	_ repositories.SessionRepository = (*SessionRepositoryMock)(nil)
	_ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
	_ services.Directory             = (*DirectoryMock)(nil)
)
