package ws

import (
	"context"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"skill-exchange/internal/mocks"
	"skill-exchange/internal/observability"
)

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub(nil, nil)
	client := newClient(nil, ConnInfo{}, nil)

	hub.Add(KindMessages, "s1", client)
	assert.Equal(t, 1, hub.Count(KindMessages, "s1"))
	assert.Equal(t, 0, hub.Count(KindSessions, "s1"))

	hub.Remove(KindMessages, "s1", client)
	assert.Equal(t, 0, hub.Count(KindMessages, "s1"))
	assert.Empty(t, hub.rooms)
}

func TestHubCloseAllCancelsViews(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	client := newClient(nil, ConnInfo{}, cancel)
	hub.Add(KindSessions, "alice", client)

	hub.CloseAll()

	assert.Error(t, ctx.Err())
	assert.ErrorIs(t, client.WriteJSON(map[string]string{}), websocket.ErrCloseSent)
	client.Close(websocket.CloseNormalClosure, "")
}

func TestHubPublishesWSEvents(t *testing.T) {
	pub := new(mocks.PublisherMock)
	hub := NewHub(pub, nil)
	info := ConnInfo{ConnID: "c1", UserID: "alice", RequestID: "req-1"}

	pub.On("Publish", mock.Anything, "ws_events.messages", mock.MatchedBy(func(e observability.EventEnvelope) bool {
		return e.EventType == "ws_events" && e.EventName == "ws_connect"
	}), map[string]string{"x-request-id": "req-1"}).Return(nil).Once()

	hub.publishWSEvent(context.Background(), KindMessages, "s1", info, "ws_connect", "")

	pub.AssertExpectations(t)
}
