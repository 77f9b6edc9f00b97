// Package memory holds in-process implementations of the repository
// interfaces. They keep the same guarded transitions as the Postgres
// repositories and are used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"skill-exchange/internal/models"
	"skill-exchange/internal/repositories"
)

// Store implements RequestRepository, SessionRepository and
// MessageRepository over one mutex, so Resolve is atomic like a
// database transaction.
type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	requests map[string]models.SkillRequest
	sessions map[string]models.SkillSession
	byReq    map[string]string
	messages map[string][]models.Message
	seq      int64
}

// NewStore creates an empty store. now defaults to time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:      now,
		requests: make(map[string]models.SkillRequest),
		sessions: make(map[string]models.SkillSession),
		byReq:    make(map[string]string),
		messages: make(map[string][]models.Message),
	}
}

func (s *Store) CreateRequest(_ context.Context, req models.SkillRequest) (models.SkillRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	req.CreatedAt = now
	req.UpdatedAt = now
	req.RespondedAt = nil
	s.requests[req.ID] = req
	return req, nil
}

func (s *Store) GetRequest(_ context.Context, requestID string) (models.SkillRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[requestID]
	if !ok {
		return models.SkillRequest{}, repositories.ErrRequestNotFound
	}
	return req, nil
}

func (s *Store) ListIncoming(_ context.Context, userID string, statuses []models.RequestStatus) ([]models.SkillRequest, error) {
	return s.listRequests(func(r models.SkillRequest) bool { return r.ToUser == userID }, statuses), nil
}

func (s *Store) ListOutgoing(_ context.Context, userID string, statuses []models.RequestStatus) ([]models.SkillRequest, error) {
	return s.listRequests(func(r models.SkillRequest) bool { return r.FromUser == userID }, statuses), nil
}

func (s *Store) listRequests(match func(models.SkillRequest) bool, statuses []models.RequestStatus) []models.SkillRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.SkillRequest{}
	for _, r := range s.requests {
		if match(r) && r.MatchesStatus(statuses...) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) Resolve(_ context.Context, requestID string, status models.RequestStatus, derive repositories.SessionDeriver) (models.SkillRequest, *models.SkillSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return models.SkillRequest{}, nil, repositories.ErrRequestNotFound
	}
	if !req.IsPending() {
		return models.SkillRequest{}, nil, repositories.ErrRequestNotPending
	}

	now := s.now()
	req.Status = status
	req.RespondedAt = &now
	req.UpdatedAt = now

	var session *models.SkillSession
	if derive != nil {
		created := s.insertSessionLocked(derive(req))
		session = &created
	}
	s.requests[requestID] = req
	return req, session, nil
}

func (s *Store) ListAcceptedWithoutSession(_ context.Context, limit int) ([]models.SkillRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.SkillRequest{}
	for _, r := range s.requests {
		if r.Status != models.RequestStatusAccepted {
			continue
		}
		if _, ok := s.byReq[r.ID]; ok {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkAcceptedWithoutSession records an accepted request with no session,
// reproducing a half-applied accept written outside a transaction.
func (s *Store) MarkAcceptedWithoutSession(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return
	}
	now := s.now()
	req.Status = models.RequestStatusAccepted
	req.RespondedAt = &now
	req.UpdatedAt = now
	s.requests[requestID] = req
}

func (s *Store) CreateSession(_ context.Context, session models.SkillSession) (models.SkillSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertSessionLocked(session), nil
}

func (s *Store) insertSessionLocked(session models.SkillSession) models.SkillSession {
	if id, ok := s.byReq[session.RequestID]; ok && session.RequestID != "" {
		return s.sessions[id]
	}
	session.CreatedAt = s.now()
	session.CompletedAt = nil
	session.Participants = append([]string(nil), session.Participants...)
	s.sessions[session.ID] = session
	if session.RequestID != "" {
		s.byReq[session.RequestID] = session.ID
	}
	return session
}

func (s *Store) GetSession(_ context.Context, sessionID string) (models.SkillSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return models.SkillSession{}, repositories.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) ListSessionsForUser(_ context.Context, userID string, status models.SessionStatus) ([]models.SkillSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.SkillSession{}
	for _, session := range s.sessions {
		if session.Status == status && session.HasParticipant(userID) {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) CompleteSession(_ context.Context, sessionID string) (models.SkillSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return models.SkillSession{}, repositories.ErrSessionNotFound
	}
	if !session.IsActive() {
		return models.SkillSession{}, repositories.ErrSessionNotActive
	}
	now := s.now()
	session.Status = models.SessionStatusCompleted
	session.CompletedAt = &now
	s.sessions[sessionID] = session
	return session, nil
}

func (s *Store) CreateMessage(_ context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	msg.Seq = s.seq
	msg.CreatedAt = s.now()
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return msg, nil
}

func (s *Store) ListSessionMessages(_ context.Context, sessionID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := append([]models.Message{}, s.messages[sessionID]...)
	models.SortMessages(msgs)
	return msgs, nil
}

var (
	_ repositories.RequestRepository = (*Store)(nil)
	_ repositories.SessionRepository = (*Store)(nil)
	_ repositories.MessageRepository = (*Store)(nil)
)
