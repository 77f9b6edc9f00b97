package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"skill-exchange/internal/auth"
	"skill-exchange/internal/live"
	"skill-exchange/internal/models"
	"skill-exchange/internal/repositories/memory"
)

type fakeDirectory struct {
	users map[string]models.User
	err   error
}

func (d *fakeDirectory) GetUser(_ context.Context, userID string) (models.User, error) {
	if d.err != nil {
		return models.User{}, d.err
	}
	u, ok := d.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return u, nil
}

func (d *fakeDirectory) QueryUsers(_ context.Context, q models.UserQuery) ([]models.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := make([]models.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type eventRecorder struct {
	mu    sync.Mutex
	names []string
}

func (r *eventRecorder) Publish(_ context.Context, routingKey string, _ any, _ map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, routingKey)
	return nil
}

func (r *eventRecorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

type fixture struct {
	*Services
	store  *memory.Store
	events *eventRecorder
	dir    *fakeDirectory
}

var (
	alice = auth.Session{UserID: "alice", DisplayName: "Alice"}
	bob   = auth.Session{UserID: "bob", DisplayName: "Bob"}
	carol = auth.Session{UserID: "carol", DisplayName: "Carol"}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var (
		mu   sync.Mutex
		tick int
	)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	var ids int
	store := memory.NewStore(now)
	events := &eventRecorder{}
	dir := &fakeDirectory{users: map[string]models.User{
		"alice": {ID: "alice", DisplayName: "Alice", TeachSkills: []string{"Guitar"}, LearnSkills: []string{"Spanish"}},
		"bob":   {ID: "bob", DisplayName: "Bob", TeachSkills: []string{"Spanish"}, LearnSkills: []string{"Guitar"}},
		"carol": {ID: "carol", Email: "carol@example.com", TeachSkills: []string{"Chess"}},
	}}
	svc := New(store, store, store, dir, Options{
		Broker: live.NewBroker(),
		Events: events,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
		RetryInterval:    time.Millisecond,
		MaxRetryInterval: 5 * time.Millisecond,
	})
	return &fixture{Services: svc, store: store, events: events, dir: dir}
}

func (f *fixture) acceptedSession(t *testing.T) models.SkillSession {
	t.Helper()
	ctx := context.Background()
	req, err := f.Ledger.Submit(ctx, alice, "bob", "Spanish", "Guitar")
	require.NoError(t, err)
	_, session, err := f.Ledger.Respond(ctx, bob, req.ID, models.DecisionAccept)
	require.NoError(t, err)
	require.NotNil(t, session)
	return *session
}

func TestSubmitAndAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.Ledger.Submit(ctx, alice, "bob", " Spanish ", "Guitar")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Equal(t, "Spanish", req.SkillRequested)
	assert.Equal(t, "Alice", req.FromUserName)
	assert.Equal(t, "Bob", req.ToUserName)

	incoming, err := f.Ledger.ListIncoming(ctx, "bob", []models.RequestStatus{models.RequestStatusPending})
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, req.ID, incoming[0].ID)

	resolved, session, err := f.Ledger.Respond(ctx, bob, req.ID, models.DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, resolved.Status)
	assert.NotNil(t, resolved.RespondedAt)
	require.NotNil(t, session)
	assert.Equal(t, req.ID, session.RequestID)
	assert.Equal(t, "bob", session.TeacherUserID)
	assert.Equal(t, "alice", session.LearnerUserID)
	assert.Equal(t, "Spanish", session.TeacherTeaches)
	assert.Equal(t, "Guitar", session.LearnerTeaches)
	assert.ElementsMatch(t, []string{"alice", "bob"}, []string(session.Participants))

	outgoing, err := f.Ledger.ListOutgoing(ctx, "alice", nil)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, models.RequestStatusAccepted, outgoing[0].Status)

	pending, err := f.Ledger.ListIncoming(ctx, "bob", []models.RequestStatus{models.RequestStatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)

	for _, user := range []string{"alice", "bob"} {
		active, err := f.Registry.ListActive(ctx, user)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, session.ID, active[0].ID)
	}

	assert.Equal(t, []string{"skill_request.created", "skill_request.accepted", "skill_session.created"}, f.events.Names())
}

func TestRejectCreatesNoSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.Ledger.Submit(ctx, alice, "bob", "Spanish", "Guitar")
	require.NoError(t, err)

	resolved, session, err := f.Ledger.Respond(ctx, bob, req.ID, models.DecisionReject)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, models.RequestStatusRejected, resolved.Status)

	active, err := f.Registry.ListActive(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRespondTwiceIsInvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.Ledger.Submit(ctx, alice, "bob", "Spanish", "Guitar")
	require.NoError(t, err)
	_, _, err = f.Ledger.Respond(ctx, bob, req.ID, models.DecisionAccept)
	require.NoError(t, err)

	_, _, err = f.Ledger.Respond(ctx, bob, req.ID, models.DecisionReject)
	assert.ErrorIs(t, err, ErrInvalidState)

	active, err := f.Registry.ListActive(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestRespondRequiresRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.Ledger.Submit(ctx, alice, "bob", "Spanish", "Guitar")
	require.NoError(t, err)

	_, _, err = f.Ledger.Respond(ctx, alice, req.ID, models.DecisionAccept)
	assert.ErrorIs(t, err, ErrForbidden)
	_, _, err = f.Ledger.Respond(ctx, carol, req.ID, models.DecisionAccept)
	assert.ErrorIs(t, err, ErrForbidden)
	_, _, err = f.Ledger.Respond(ctx, bob, "missing", models.DecisionAccept)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = f.Ledger.Respond(ctx, bob, req.ID, models.Decision("maybe"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]struct {
		actor          auth.Session
		to, want, give string
		err            error
	}{
		"anonymous":         {actor: auth.Session{}, to: "bob", want: "Spanish", give: "Guitar", err: ErrValidation},
		"self":              {actor: alice, to: "alice", want: "Spanish", give: "Guitar", err: ErrValidation},
		"blank wanted":      {actor: alice, to: "bob", want: "  ", give: "Guitar", err: ErrValidation},
		"blank offered":     {actor: alice, to: "bob", want: "Spanish", give: "", err: ErrValidation},
		"unknown recipient": {actor: alice, to: "zed", want: "Spanish", give: "Guitar", err: ErrNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.Ledger.Submit(ctx, tc.actor, tc.to, tc.want, tc.give)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	outgoing, err := f.Ledger.ListOutgoing(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Empty(t, outgoing)
}

func TestSubmitDirectoryOutageIsTransient(t *testing.T) {
	f := newFixture(t)
	f.dir.err = status.Error(codes.Unavailable, "directory down")

	_, err := f.Ledger.Submit(context.Background(), alice, "bob", "Spanish", "Guitar")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestSendMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.acceptedSession(t)

	_, err := f.Stream.Send(ctx, alice, session.ID, "hola")
	require.NoError(t, err)
	_, err = f.Stream.Send(ctx, bob, session.ID, strings.Repeat("é", MaxMessageLength))
	require.NoError(t, err)

	_, err = f.Stream.Send(ctx, bob, session.ID, strings.Repeat("a", MaxMessageLength+1))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.Stream.Send(ctx, bob, session.ID, " \n\t")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.Stream.Send(ctx, carol, session.ID, "hi")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.Stream.Send(ctx, alice, "missing", "hi")
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := f.Stream.History(ctx, "bob", session.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hola", history[0].Text)
	assert.Equal(t, "Alice", history[0].SenderName)
	assert.Equal(t, "bob", history[1].SenderID)
	assert.Less(t, history[0].Seq, history[1].Seq)
}

func TestSendFallsBackToSessionName(t *testing.T) {
	f := newFixture(t)
	session := f.acceptedSession(t)

	msg, err := f.Stream.Send(context.Background(), auth.Session{UserID: "bob"}, session.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Bob", msg.SenderName)
}

func TestMarkCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.acceptedSession(t)

	_, err := f.Registry.MarkCompleted(ctx, carol, session.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	done, err := f.Registry.MarkCompleted(ctx, alice, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	_, err = f.Registry.MarkCompleted(ctx, bob, session.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.Stream.Send(ctx, bob, session.ID, "still there?")
	assert.ErrorIs(t, err, ErrInvalidState)

	active, err := f.Registry.ListActive(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, active)
	completed, err := f.Registry.ListCompleted(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, session.ID, completed[0].ID)
}

func TestCreateFromRequestIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.acceptedSession(t)

	req, err := f.store.GetRequest(ctx, session.RequestID)
	require.NoError(t, err)

	again, err := f.Registry.CreateFromRequest(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, session.ID, again.ID)

	req.Status = models.RequestStatusPending
	_, err = f.Registry.CreateFromRequest(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSubscribeStreamsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.acceptedSession(t)

	updates := make(chan []models.Message, 16)
	cancel, err := f.Stream.Subscribe(ctx, "alice", session.ID, func(msgs []models.Message) {
		updates <- msgs
	}, nil)
	require.NoError(t, err)
	defer cancel()

	select {
	case msgs := <-updates:
		assert.Empty(t, msgs)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	_, err = f.Stream.Send(ctx, bob, session.ID, "first")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case msgs := <-updates:
			return len(msgs) == 1 && msgs[0].Text == "first"
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	_, err = f.Stream.Subscribe(ctx, "carol", session.ID, func([]models.Message) {}, nil)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestWatchIncomingSeesNewRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updates := make(chan []models.SkillRequest, 16)
	cancel, err := f.Ledger.WatchIncoming(ctx, "bob", []models.RequestStatus{models.RequestStatusPending}, func(reqs []models.SkillRequest) {
		updates <- reqs
	}, nil)
	require.NoError(t, err)
	defer cancel()

	req, err := f.Ledger.Submit(ctx, alice, "bob", "Spanish", "Guitar")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case reqs := <-updates:
			return len(reqs) == 1 && reqs[0].ID == req.ID
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	_, _, err = f.Ledger.Respond(ctx, bob, req.ID, models.DecisionReject)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case reqs := <-updates:
			return len(reqs) == 0
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestWatchActiveSeesAcceptedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updates := make(chan []models.SkillSession, 16)
	cancel, err := f.Registry.WatchActive(ctx, "alice", func(sessions []models.SkillSession) {
		updates <- sessions
	}, nil)
	require.NoError(t, err)
	defer cancel()

	session := f.acceptedSession(t)

	require.Eventually(t, func() bool {
		select {
		case sessions := <-updates:
			return len(sessions) == 1 && sessions[0].ID == session.ID
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	_, err = f.Registry.WatchActive(ctx, " ", func([]models.SkillSession) {}, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBrowseUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	users, err := f.Ledger.BrowseUsers(ctx, alice, models.UserQuery{Skill: "spanish", Kind: models.SkillKindTeach})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].ID)

	all, err := f.Ledger.BrowseUsers(ctx, alice, models.UserQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.Ledger.BrowseUsers(ctx, alice, models.UserQuery{Kind: "mentor"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&pq.Error{Code: "08006"}))
	assert.True(t, IsTransient(&pq.Error{Code: "57P01"}))
	assert.False(t, IsTransient(&pq.Error{Code: "23505"}))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.True(t, IsTransient(status.Error(codes.Unavailable, "down")))
	assert.False(t, IsTransient(status.Error(codes.NotFound, "nope")))
	assert.False(t, IsTransient(ErrNotFound))
	assert.False(t, IsTransient(nil))

	err := storeError("list messages", &pq.Error{Code: "08001"})
	assert.ErrorIs(t, err, ErrTransient)
}
