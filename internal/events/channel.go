package events

import (
	"context"
	"log/slog"
)

// ChannelPublisher buffers events on a channel for an in-process Worker.
// It is the default pipeline when Kafka is not configured: delivery is
// best-effort and an overflowing buffer drops the event rather than
// blocking a committed transition.
type ChannelPublisher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewChannelPublisher(buffer int, logger *slog.Logger) *ChannelPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelPublisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

func (p *ChannelPublisher) Emit(ctx context.Context, event Event) error {
	select {
	case p.inbox <- event:
		return nil
	default:
		p.logger.WarnContext(ctx, "event buffer full, dropping event",
			"type", event.Type,
			"project_id", event.ProjectID,
		)
		return nil
	}
}

func (p *ChannelPublisher) Close() error {
	close(p.inbox)
	return nil
}

// Inbox exposes the receive side for a Worker.
func (p *ChannelPublisher) Inbox() <-chan Event { return p.inbox }

// Sink receives drained events. The default sink logs; tests swap in a
// recorder.
type Sink interface {
	Handle(ctx context.Context, event Event) error
}

// LogSink writes each event as a structured log line.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Handle(ctx context.Context, event Event) error {
	s.Logger.InfoContext(ctx, "domain event",
		"type", event.Type,
		"project_id", event.ProjectID,
		"indicator_id", event.IndicatorID,
		"actor", event.Actor,
		"role", event.Role,
	)
	return nil
}

// Worker drains a channel publisher into a sink. It keeps background
// processing testable without wiring a broker.
type Worker struct {
	inbox <-chan Event
	sink  Sink
}

func NewWorker(inbox <-chan Event, sink Sink) *Worker {
	return &Worker{inbox: inbox, sink: sink}
}

// Run consumes until the context is cancelled or the inbox closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.sink.Handle(ctx, event); err != nil {
				return err
			}
		}
	}
}
