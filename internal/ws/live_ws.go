package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"skill-exchange/internal/handlers"
	"skill-exchange/internal/live"
	"skill-exchange/internal/middleware"
	"skill-exchange/internal/models"
	"skill-exchange/internal/observability"
	"skill-exchange/internal/services"
)

const (
	KindIncoming = "requests_incoming"
	KindOutgoing = "requests_outgoing"
	KindSessions = "sessions"
	KindMessages = "messages"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveHandler serves live views over websocket. Every push carries the
// full snapshot for the view.
type LiveHandler struct {
	hub      *Hub
	services *services.Services
	logger   *zap.Logger
}

func NewLiveHandler(hub *Hub, svc *services.Services, logger *zap.Logger) *LiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveHandler{hub: hub, services: svc, logger: logger}
}

// startFunc opens the live view once the socket is up.
type startFunc func(ctx context.Context, send func(items any), onError services.ErrorFunc) (live.Cancel, error)

// IncomingRequests streams the caller's incoming requests. An optional
// status query parameter narrows the view, e.g. ?status=pending.
func (h *LiveHandler) IncomingRequests(c *gin.Context) {
	user, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	statuses := handlers.StatusFilter(c)
	h.serve(c, KindIncoming, user.UserID, nil, func(ctx context.Context, send func(any), onError services.ErrorFunc) (live.Cancel, error) {
		return h.services.Ledger.WatchIncoming(ctx, user.UserID, statuses, func(reqs []models.SkillRequest) { send(reqs) }, onError)
	})
}

// OutgoingRequests streams the caller's sent requests.
func (h *LiveHandler) OutgoingRequests(c *gin.Context) {
	user, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	statuses := handlers.StatusFilter(c)
	h.serve(c, KindOutgoing, user.UserID, nil, func(ctx context.Context, send func(any), onError services.ErrorFunc) (live.Cancel, error) {
		return h.services.Ledger.WatchOutgoing(ctx, user.UserID, statuses, func(reqs []models.SkillRequest) { send(reqs) }, onError)
	})
}

// Sessions streams the caller's active sessions, each seen from the
// caller's side.
func (h *LiveHandler) Sessions(c *gin.Context) {
	user, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	h.serve(c, KindSessions, user.UserID, nil, func(ctx context.Context, send func(any), onError services.ErrorFunc) (live.Cancel, error) {
		return h.services.Registry.WatchActive(ctx, user.UserID, func(sessions []models.SkillSession) {
			send(handlers.ViewsFor(user.UserID, sessions))
		}, onError)
	})
}

// SessionMessages streams a session's chat history.
func (h *LiveHandler) SessionMessages(c *gin.Context) {
	user, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	sessionID := c.Param("session_id")
	authorize := func(ctx context.Context) error {
		_, err := h.services.Registry.Get(ctx, user.UserID, sessionID)
		return err
	}
	h.serve(c, KindMessages, sessionID, authorize, func(ctx context.Context, send func(any), onError services.ErrorFunc) (live.Cancel, error) {
		return h.services.Stream.Subscribe(ctx, user.UserID, sessionID, func(msgs []models.Message) { send(msgs) }, onError)
	})
}

func (h *LiveHandler) serve(c *gin.Context, kind, resourceID string, authorize func(context.Context) error, start startFunc) {
	ctx, span := otel.Tracer("skill-exchange/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	if authorize != nil {
		if err := authorize(ctx); err != nil {
			handlers.RespondError(c, err)
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.String("kind", kind), zap.Error(err))
		return
	}

	user, _ := middleware.SessionFrom(c)
	traceID := span.SpanContext().TraceID().String()
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      user.UserID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromContext(ctx),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	eventCtx := context.WithoutCancel(ctx)
	viewCtx, cancel := context.WithCancel(eventCtx)
	client := newClient(conn, info, cancel)
	h.hub.Add(kind, resourceID, client)
	observability.IncWSActive(kind)
	h.hub.publishWSEvent(eventCtx, kind, resourceID, info, "ws_connect", "")

	send := func(items any) {
		if err := client.WriteJSON(models.LiveEvent{Type: "snapshot", Kind: kind, Items: items}); err != nil {
			client.Close(websocket.CloseInternalServerErr, "write failed")
		}
	}
	onError := func(err error, retrying bool) {
		_, msg := handlers.StatusFor(err)
		_ = client.WriteJSON(models.LiveEvent{Type: "error", Kind: kind, Error: msg})
		if !retrying {
			client.Close(websocket.CloseInternalServerErr, msg)
		}
	}

	stop, err := start(viewCtx, send, onError)
	if err != nil {
		_, msg := handlers.StatusFor(err)
		_ = client.WriteJSON(models.LiveEvent{Type: "error", Kind: kind, Error: msg})
		client.Close(websocket.ClosePolicyViolation, msg)
	}

	go func() {
		var closeReason string
		defer func() {
			if stop != nil {
				stop()
			}
			client.Close(websocket.CloseNormalClosure, "")
			h.hub.Remove(kind, resourceID, client)
			observability.DecWSActive(kind)
			h.hub.publishWSEvent(eventCtx, kind, resourceID, info, "ws_disconnect", closeReason)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.hub.publishWSEvent(eventCtx, kind, resourceID, info, "ws_error", closeReason)
				}
				return
			}
		}
	}()
}
