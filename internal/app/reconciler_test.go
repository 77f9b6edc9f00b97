package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"skill-exchange/internal/mocks"
	"skill-exchange/internal/models"
	"skill-exchange/internal/repositories/memory"
	"skill-exchange/internal/services"
)

func seedRequest(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	_, err := store.CreateRequest(context.Background(), models.SkillRequest{
		ID:             id,
		FromUser:       "alice",
		FromUserName:   "Alice",
		ToUser:         "bob",
		ToUserName:     "Bob",
		SkillRequested: "Spanish",
		SkillOffered:   "Guitar",
		Status:         models.RequestStatusPending,
	})
	require.NoError(t, err)
}

func TestReconcilerRepairsAcceptedRequests(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	svc := services.New(store, store, store, new(mocks.DirectoryMock), services.Options{})

	seedRequest(t, store, "r1")
	seedRequest(t, store, "r2")
	store.MarkAcceptedWithoutSession("r1")

	r := NewReconciler(store, svc.Registry, time.Hour, 10, nil)
	assert.Equal(t, 1, r.RunOnce(ctx))

	sessions, err := svc.Registry.ListActive(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "r1", sessions[0].RequestID)
	assert.Equal(t, "bob", sessions[0].TeacherUserID)
	assert.Equal(t, "Spanish", sessions[0].TeacherTeaches)

	assert.Equal(t, 0, r.RunOnce(ctx))
}

func TestReconcilerListFailure(t *testing.T) {
	requests := new(mocks.RequestRepositoryMock)
	requests.On("ListAcceptedWithoutSession", mock.Anything, 5).Return(nil, errors.New("db down")).Once()

	r := NewReconciler(requests, nil, time.Hour, 5, nil)
	assert.Equal(t, 0, r.RunOnce(context.Background()))
	requests.AssertExpectations(t)
}

func TestReconcilerStops(t *testing.T) {
	store := memory.NewStore(nil)
	svc := services.New(store, store, store, new(mocks.DirectoryMock), services.Options{})
	r := NewReconciler(store, svc.Registry, 10*time.Millisecond, 10, nil)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	r.Stop()
	r.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}

func TestReconcilerEndsWithContext(t *testing.T) {
	store := memory.NewStore(nil)
	svc := services.New(store, store, store, new(mocks.DirectoryMock), services.Options{})
	r := NewReconciler(store, svc.Registry, 10*time.Millisecond, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reconciler did not end")
	}
}
