package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lineup-chat/internal/mocks"
)

func TestAuditEmitterBuildsEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.chat", "lineup-chat", "test")
	emitter.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	var captured AuditEnvelope
	publisher.On("Publish", mock.Anything, "audit.chat", mock.AnythingOfType("telemetry.AuditEnvelope")).
		Run(func(args mock.Arguments) { captured = args.Get(2).(AuditEnvelope) }).
		Return(nil).Once()

	emitter.Emit(context.Background(), AuditEntry{Action: "thread.delete", Text: "thread deleted", RequestID: "req-1", UserID: "u1", ThreadID: "t1"})

	publisher.AssertExpectations(t)
	assert.Equal(t, "audit_log", captured.EventType)
	assert.Equal(t, "lineup-chat", captured.Service)
	assert.Equal(t, "2026-05-01T12:00:00Z", captured.OccurredAt)
	assert.Equal(t, "INFO", captured.Payload.Level)
	assert.Equal(t, "t1", captured.Payload.ThreadID)
	require.NotNil(t, captured.UserID)
	assert.Equal(t, "u1", *captured.UserID)
}

func TestAuditEmitterOmitsAnonymousUser(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.chat", "lineup-chat", "test")

	publisher.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(env AuditEnvelope) bool {
		return env.UserID == nil
	})).Return(nil).Once()

	emitter.Emit(context.Background(), AuditEntry{Action: "debug", Text: "audit test"})
	publisher.AssertExpectations(t)
}

func TestNilAuditEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), AuditEntry{Action: "noop"})
	})
}

func TestInitTracingWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "", "lineup-chat", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
