package audit

import (
	"context"
	"log/slog"
)

// Worker drains the publisher inbox into the audit store. It runs alongside
// the HTTP server and stops when its context is canceled, draining whatever
// is already buffered first.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.append(event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.append(event)
		default:
			return
		}
	}
}

func (w *Worker) append(event Event) {
	// Persisting with a fresh context: the request that emitted the event is
	// long gone by the time the worker sees it.
	if err := w.store.Append(context.Background(), event); err != nil {
		w.logger.Error("failed to persist audit event",
			"action", string(event.Action),
			"error", err.Error(),
		)
	}
}
