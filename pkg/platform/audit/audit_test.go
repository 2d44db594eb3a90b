package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attesta/pkg/requestcontext"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChannelPublisher(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), now), "req-1")

	t.Run("stamps timestamp and request id from context", func(t *testing.T) {
		p := NewChannelPublisher(4, discardLogger())
		p.Publish(ctx, Event{Action: ActionCertificateIssued, PublicNumber: "CERT-2024-1"})

		event := <-p.Inbox()
		assert.Equal(t, ActionCertificateIssued, event.Action)
		assert.True(t, event.Timestamp.Equal(now))
		assert.Equal(t, "req-1", event.RequestID)
	})

	t.Run("keeps caller-provided timestamps", func(t *testing.T) {
		p := NewChannelPublisher(4, discardLogger())
		stamped := now.Add(-time.Hour)
		p.Publish(ctx, Event{Action: ActionCertificateCreated, Timestamp: stamped})

		event := <-p.Inbox()
		assert.True(t, event.Timestamp.Equal(stamped))
	})

	t.Run("drops instead of blocking when the buffer is full", func(t *testing.T) {
		p := NewChannelPublisher(1, discardLogger())
		p.Publish(ctx, Event{Action: ActionCertificateCreated})

		done := make(chan struct{})
		go func() {
			p.Publish(ctx, Event{Action: ActionCertificateIssued})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publish blocked on a full buffer")
		}

		assert.Len(t, p.Inbox(), 1)
	})
}

func TestLog(t *testing.T) {
	ctx := context.Background()

	t.Run("lifts known attrs into the event", func(t *testing.T) {
		p := NewChannelPublisher(4, discardLogger())
		Log(ctx, discardLogger(), p, ActionCertificateRevoked,
			"certificate_id", "cert-1",
			"public_number", "CERT-2024-1",
			"reason", "data entry error",
			"actor_id", "admin-7",
			"unrelated", "ignored",
		)

		event := <-p.Inbox()
		assert.Equal(t, ActionCertificateRevoked, event.Action)
		assert.Equal(t, "cert-1", event.CertificateID)
		assert.Equal(t, "CERT-2024-1", event.PublicNumber)
		assert.Equal(t, "data entry error", event.Reason)
		assert.Equal(t, "admin-7", event.ActorID)
	})

	t.Run("tolerates a nil publisher", func(t *testing.T) {
		assert.NotPanics(t, func() {
			Log(ctx, discardLogger(), nil, ActionValidationChecked, "public_number", "CERT-2024-1")
		})
	})

	t.Run("tolerates a nil logger", func(t *testing.T) {
		p := NewChannelPublisher(4, discardLogger())
		assert.NotPanics(t, func() {
			Log(ctx, nil, p, ActionCertificateDeleted, "certificate_id", "cert-2")
		})
		event := <-p.Inbox()
		assert.Equal(t, "cert-2", event.CertificateID)
	})
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Append(ctx, Event{Action: ActionCertificateCreated}))
	require.NoError(t, store.Append(ctx, Event{Action: ActionCertificateIssued}))

	events, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionCertificateCreated, events[0].Action)
	assert.Equal(t, ActionCertificateIssued, events[1].Action)

	// List hands out a copy, not the backing slice.
	events[0].Action = ActionCertificateDeleted
	again, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionCertificateCreated, again[0].Action)
}
