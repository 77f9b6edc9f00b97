package rabbitmq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"skill-exchange/internal/models"
)

func TestNewPublisherWithoutURLIsNoop(t *testing.T) {
	p := NewPublisher("", "skill.events", zap.NewNop())

	assert.Equal(t, "noop", PublisherMode(p))
	assert.Equal(t, "empty amqp url", PublisherNoopReason(p))

	err := p.Publish(context.Background(), "skill_request.created", models.DomainEvent{Name: "skill_request.created"}, map[string]string{"x-request-id": "r1"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
