package audit

import (
	"context"
	"log/slog"
)

// Worker consumes informational audit events from a channel and persists
// them off the emitter's critical path. Persistence errors are logged and
// the worker keeps draining; informational events are not worth wedging the
// inbox over.
type Worker struct {
	publisher *Publisher
	inbox     <-chan Event
	logger    *slog.Logger
}

// WorkerOption configures the Worker.
type WorkerOption func(*Worker)

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(publisher *Publisher, inbox <-chan Event, opts ...WorkerOption) *Worker {
	w := &Worker{
		publisher: publisher,
		inbox:     inbox,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.publisher.Emit(ctx, event); err != nil {
				w.logger.Error("persist audit event", "action", event.Action, "error", err)
			}
		}
	}
}
