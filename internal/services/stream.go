package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"skill-exchange/internal/auth"
	"skill-exchange/internal/live"
	"skill-exchange/internal/models"
	"skill-exchange/internal/observability"
	"skill-exchange/internal/repositories"
)

// MaxMessageLength is the longest message text accepted, in characters.
const MaxMessageLength = 500

// Stream is the per-session chat log.
type Stream struct {
	messages repositories.MessageRepository
	registry *Registry
	notifier
}

func NewStream(messages repositories.MessageRepository, registry *Registry, opts Options) *Stream {
	return &Stream{messages: messages, registry: registry, notifier: notifier{opts: opts.withDefaults()}}
}

// Send appends a message from actor to an active session they take part
// in. The sender name falls back to the name stored on the session.
func (s *Stream) Send(ctx context.Context, actor auth.Session, sessionID, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, validationError("message text is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return models.Message{}, validationError("message text exceeds 500 characters")
	}

	session, err := s.registry.Get(ctx, actor.UserID, sessionID)
	if err != nil {
		return models.Message{}, err
	}
	if !session.IsActive() {
		return models.Message{}, ErrInvalidState
	}

	name := actor.Name()
	if name == "" {
		name = session.NameOf(actor.UserID)
	}

	msg, err := s.messages.CreateMessage(ctx, models.Message{
		ID:         s.opts.NewID(),
		SessionID:  session.ID,
		SenderID:   actor.UserID,
		SenderName: name,
		Text:       text,
	})
	if err != nil {
		return models.Message{}, storeError("create message", err)
	}

	observability.IncMessageSent()
	s.changed(ctx, live.MessagesTopic(session.ID))
	s.emit(ctx, "message.sent", actor.UserID, msg)
	return msg, nil
}

// History returns a session's messages, oldest first.
func (s *Stream) History(ctx context.Context, viewerID, sessionID string) ([]models.Message, error) {
	if _, err := s.registry.Get(ctx, viewerID, sessionID); err != nil {
		return nil, err
	}
	return s.load(ctx, sessionID)
}

// Subscribe pushes the full history now and after every new message.
func (s *Stream) Subscribe(ctx context.Context, viewerID, sessionID string, onUpdate func([]models.Message), onError ErrorFunc) (live.Cancel, error) {
	if _, err := s.registry.Get(ctx, viewerID, sessionID); err != nil {
		return nil, err
	}
	load := func(ctx context.Context) ([]models.Message, error) {
		return s.load(ctx, sessionID)
	}
	return live.Watch(ctx, s.opts.Broker, live.MessagesTopic(sessionID), load, onUpdate, s.watchOptions("messages", onError)), nil
}

func (s *Stream) load(ctx context.Context, sessionID string) ([]models.Message, error) {
	msgs, err := s.messages.ListSessionMessages(ctx, sessionID)
	if err != nil {
		return nil, storeError("list messages", err)
	}
	models.SortMessages(msgs)
	return msgs, nil
}

// Services bundles the ledger, registry and stream over one set of
// Options so they share a broker and feed.
type Services struct {
	Ledger   *Ledger
	Registry *Registry
	Stream   *Stream
}

func New(requests repositories.RequestRepository, sessions repositories.SessionRepository, messages repositories.MessageRepository, directory Directory, opts Options) *Services {
	opts = opts.withDefaults()
	registry := NewRegistry(sessions, opts)
	return &Services{
		Ledger:   NewLedger(requests, registry, directory, opts),
		Registry: registry,
		Stream:   NewStream(messages, registry, opts),
	}
}
