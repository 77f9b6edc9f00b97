package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"skill-exchange/internal/auth"
	"skill-exchange/internal/live"
	"skill-exchange/internal/models"
	"skill-exchange/internal/observability"
	"skill-exchange/internal/repositories"
)

// Ledger owns skill requests: submission, the single accept/reject
// response and per-user inbox/outbox listings.
type Ledger struct {
	requests  repositories.RequestRepository
	registry  *Registry
	directory Directory
	notifier
}

func NewLedger(requests repositories.RequestRepository, registry *Registry, directory Directory, opts Options) *Ledger {
	return &Ledger{
		requests:  requests,
		registry:  registry,
		directory: directory,
		notifier:  notifier{opts: opts.withDefaults()},
	}
}

// Submit records a pending request from actor to toUser.
func (l *Ledger) Submit(ctx context.Context, actor auth.Session, toUser, skillRequested, skillOffered string) (models.SkillRequest, error) {
	toUser = strings.TrimSpace(toUser)
	skillRequested = strings.TrimSpace(skillRequested)
	skillOffered = strings.TrimSpace(skillOffered)

	switch {
	case !actor.Valid():
		return models.SkillRequest{}, validationError("requester is required")
	case toUser == "":
		return models.SkillRequest{}, validationError("recipient is required")
	case toUser == actor.UserID:
		return models.SkillRequest{}, validationError("cannot send a request to yourself")
	case skillRequested == "":
		return models.SkillRequest{}, validationError("requested skill is required")
	case skillOffered == "":
		return models.SkillRequest{}, validationError("offered skill is required")
	}

	recipient, err := l.directory.GetUser(ctx, toUser)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.SkillRequest{}, ErrUserNotFound
		}
		return models.SkillRequest{}, storeError("lookup recipient", err)
	}

	fromName := actor.Name()
	requester, err := l.directory.GetUser(ctx, actor.UserID)
	switch {
	case err == nil && requester.Name() != "":
		fromName = requester.Name()
	case err != nil && !errors.Is(err, ErrNotFound):
		return models.SkillRequest{}, storeError("lookup requester", err)
	}

	created, err := l.requests.CreateRequest(ctx, models.SkillRequest{
		ID:             l.opts.NewID(),
		FromUser:       actor.UserID,
		FromUserName:   fromName,
		ToUser:         recipient.ID,
		ToUserName:     recipient.Name(),
		SkillRequested: skillRequested,
		SkillOffered:   skillOffered,
		Status:         models.RequestStatusPending,
	})
	if err != nil {
		return models.SkillRequest{}, storeError("create request", err)
	}

	observability.IncRequestSubmitted()
	l.opts.Logger.Info("skill request submitted",
		zap.String("request_id", created.ID),
		zap.String("from_user", created.FromUser),
		zap.String("to_user", created.ToUser))
	l.changed(ctx, live.IncomingTopic(created.ToUser), live.OutgoingTopic(created.FromUser))
	l.emit(ctx, "skill_request.created", actor.UserID, created)
	return created, nil
}

// Get returns a request the viewer sent or received.
func (l *Ledger) Get(ctx context.Context, viewerID, requestID string) (models.SkillRequest, error) {
	req, err := l.requests.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrRequestNotFound) {
			return models.SkillRequest{}, ErrNotFound
		}
		return models.SkillRequest{}, storeError("get request", err)
	}
	if !req.Involves(viewerID) {
		return models.SkillRequest{}, ErrForbidden
	}
	return req, nil
}

// Respond resolves a pending request on behalf of its recipient. Accepting
// stores the request's session in the same step; the session is nil for a
// rejection.
func (l *Ledger) Respond(ctx context.Context, actor auth.Session, requestID string, decision models.Decision) (models.SkillRequest, *models.SkillSession, error) {
	status, ok := decision.Status()
	if !ok {
		return models.SkillRequest{}, nil, validationError("decision must be accept or reject")
	}

	req, err := l.Get(ctx, actor.UserID, requestID)
	if err != nil {
		return models.SkillRequest{}, nil, err
	}
	if req.ToUser != actor.UserID {
		return models.SkillRequest{}, nil, ErrForbidden
	}
	if !req.IsPending() {
		return models.SkillRequest{}, nil, ErrInvalidState
	}

	var derive repositories.SessionDeriver
	if status == models.RequestStatusAccepted {
		derive = l.registry.Derive
	}

	resolved, session, err := l.requests.Resolve(ctx, requestID, status, derive)
	switch {
	case errors.Is(err, repositories.ErrRequestNotFound):
		return models.SkillRequest{}, nil, ErrNotFound
	case errors.Is(err, repositories.ErrRequestNotPending):
		return models.SkillRequest{}, nil, ErrInvalidState
	case err != nil:
		return models.SkillRequest{}, nil, storeError("resolve request", err)
	}

	observability.IncRequestResponse(string(resolved.Status))
	fields := []zap.Field{
		zap.String("request_id", resolved.ID),
		zap.String("status", string(resolved.Status)),
	}
	topics := []live.Topic{live.IncomingTopic(resolved.ToUser), live.OutgoingTopic(resolved.FromUser)}
	if session != nil {
		fields = append(fields, zap.String("session_id", session.ID))
		topics = append(topics, live.SessionsTopic(session.TeacherUserID), live.SessionsTopic(session.LearnerUserID))
	}
	l.opts.Logger.Info("skill request resolved", fields...)
	l.changed(ctx, topics...)
	l.emit(ctx, "skill_request."+string(resolved.Status), actor.UserID, resolved)
	if session != nil {
		l.emit(ctx, "skill_session.created", actor.UserID, *session)
	}
	return resolved, session, nil
}

// ListIncoming returns requests addressed to userID, newest first. An
// empty statuses list returns every status.
func (l *Ledger) ListIncoming(ctx context.Context, userID string, statuses []models.RequestStatus) ([]models.SkillRequest, error) {
	if err := checkListArgs(userID, statuses); err != nil {
		return nil, err
	}
	reqs, err := l.requests.ListIncoming(ctx, userID, statuses)
	if err != nil {
		return nil, storeError("list incoming requests", err)
	}
	return reqs, nil
}

// ListOutgoing returns requests sent by userID, newest first.
func (l *Ledger) ListOutgoing(ctx context.Context, userID string, statuses []models.RequestStatus) ([]models.SkillRequest, error) {
	if err := checkListArgs(userID, statuses); err != nil {
		return nil, err
	}
	reqs, err := l.requests.ListOutgoing(ctx, userID, statuses)
	if err != nil {
		return nil, storeError("list outgoing requests", err)
	}
	return reqs, nil
}

func (l *Ledger) WatchIncoming(ctx context.Context, userID string, statuses []models.RequestStatus, onUpdate func([]models.SkillRequest), onError ErrorFunc) (live.Cancel, error) {
	if err := checkListArgs(userID, statuses); err != nil {
		return nil, err
	}
	load := func(ctx context.Context) ([]models.SkillRequest, error) {
		return l.ListIncoming(ctx, userID, statuses)
	}
	return live.Watch(ctx, l.opts.Broker, live.IncomingTopic(userID), load, onUpdate, l.watchOptions("requests_incoming", onError)), nil
}

func (l *Ledger) WatchOutgoing(ctx context.Context, userID string, statuses []models.RequestStatus, onUpdate func([]models.SkillRequest), onError ErrorFunc) (live.Cancel, error) {
	if err := checkListArgs(userID, statuses); err != nil {
		return nil, err
	}
	load := func(ctx context.Context) ([]models.SkillRequest, error) {
		return l.ListOutgoing(ctx, userID, statuses)
	}
	return live.Watch(ctx, l.opts.Broker, live.OutgoingTopic(userID), load, onUpdate, l.watchOptions("requests_outgoing", onError)), nil
}

// BrowseUsers lists directory users matching q, never including the
// caller.
func (l *Ledger) BrowseUsers(ctx context.Context, actor auth.Session, q models.UserQuery) ([]models.User, error) {
	if q.Kind != "" && q.Kind != models.SkillKindTeach && q.Kind != models.SkillKindLearn {
		return nil, validationError("kind must be teach or learn")
	}
	q.Skill = strings.TrimSpace(q.Skill)
	q.ExcludeID = actor.UserID
	users, err := l.directory.QueryUsers(ctx, q)
	if err != nil {
		return nil, storeError("query users", err)
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if q.Matches(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

func checkListArgs(userID string, statuses []models.RequestStatus) error {
	if strings.TrimSpace(userID) == "" {
		return validationError("user id is required")
	}
	for _, s := range statuses {
		if !s.Valid() {
			return validationError("unknown request status " + string(s))
		}
	}
	return nil
}
