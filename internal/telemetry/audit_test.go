package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	pub := new(publisherMock)
	emitter := NewAuditEmitter(pub, "audit.logs", "skill-exchange", "test", zap.NewNop())
	userID := "alice"

	pub.On("Publish", mock.Anything, "audit.logs", mock.MatchedBy(func(e AuditEnvelope) bool {
		return e.Service == "skill-exchange" && e.RequestID == "req-1" && *e.UserID == "alice" && e.Payload.Text == "Request sent"
	}), map[string]string{"x-request-id": "req-1"}).Return(assert.AnError).Once()

	emitter.Emit(context.Background(), "INFO", "Request sent", "req-1", &userID)

	pub.AssertExpectations(t)
}

func TestAuditEmitterNilSafe(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), "INFO", "ignored", "", nil)
}
