package rabbitmq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/telemetry"
)

func TestNewPublisherWithoutURLFallsBackToNoop(t *testing.T) {
	p := NewPublisher("", "chat.events")

	assert.Equal(t, "noop", PublisherMode(p))
	require.NoError(t, p.Publish(context.Background(), "audit.chat", telemetry.AuditEnvelope{EventType: "audit_log"}))
	require.NoError(t, p.Close())
}

type stubPublisher struct{}

func (stubPublisher) Publish(context.Context, string, any) error { return nil }
func (stubPublisher) Close() error                               { return nil }

func TestPublisherModeReportsUnknownImplementations(t *testing.T) {
	assert.Equal(t, "unknown", PublisherMode(stubPublisher{}))
}
