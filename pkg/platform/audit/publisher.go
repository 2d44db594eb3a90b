package audit

import (
	"context"
	"log/slog"

	"attesta/pkg/attrs"
	"attesta/pkg/requestcontext"
)

// ChannelPublisher hands events to a buffered channel consumed by a Worker.
// A full buffer drops the event rather than blocking the workflow; the audit
// trail is best-effort by contract.
type ChannelPublisher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewChannelPublisher(buffer int, logger *slog.Logger) *ChannelPublisher {
	return &ChannelPublisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Inbox exposes the receive side for the Worker.
func (p *ChannelPublisher) Inbox() <-chan Event { return p.inbox }

func (p *ChannelPublisher) Publish(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"public_number", event.PublicNumber,
		)
	}
}

// Log records an audit-worthy action on the structured log and, when a
// publisher is wired, emits the matching event. Attrs follow the slog
// key-value convention; known keys are lifted into the event.
func Log(ctx context.Context, logger *slog.Logger, publisher Publisher, action Action, logAttrs ...any) {
	if logger != nil {
		logger.InfoContext(ctx, string(action), logAttrs...)
	}
	if publisher == nil {
		return
	}
	publisher.Publish(ctx, Event{
		Action:        action,
		CertificateID: attrs.ExtractString(logAttrs, "certificate_id"),
		PublicNumber:  attrs.ExtractString(logAttrs, "public_number"),
		ActorID:       attrs.ExtractString(logAttrs, "actor_id"),
		Reason:        attrs.ExtractString(logAttrs, "reason"),
	})
}
