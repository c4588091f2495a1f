package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
)

// StatusApplier mutates message delivery state on status-update events.
// Transitions are monotonic along sent -> delivered -> read -> failed:
// providers are allowed to deliver status webhooks out of order, and an
// out-of-order "sent" must not regress a message already marked read.
type StatusApplier struct {
	messages MessageStore
	logger   *slog.Logger
}

// NewStatusApplier creates a StatusApplier.
func NewStatusApplier(log *slog.Logger, messages MessageStore) *StatusApplier {
	if log == nil {
		log = slog.Default()
	}
	return &StatusApplier{
		messages: messages,
		logger:   log.With(slog.String("component", "status_applier")),
	}
}

// Apply applies the status update and reports whether the message row
// changed. Updates for unknown message ids and non-advancing statuses
// are no-ops, not errors.
func (a *StatusApplier) Apply(ctx context.Context, ev StatusUpdate) (bool, error) {
	if !crm.KnownStatus(ev.Status) {
		a.logger.Warn("ignoring unknown message status",
			slog.String("provider", ev.Provider),
			slog.String("provider_message_id", ev.ProviderMessageID),
			slog.String("status", string(ev.Status)),
		)
		return false, nil
	}
	applied, err := a.messages.UpdateStatus(ctx, ev.Provider, ev.ProviderMessageID, ev.Status)
	if err != nil {
		return false, fmt.Errorf("update status of %s: %w", ev.ProviderMessageID, err)
	}
	if !applied {
		a.logger.Debug("status update not applied",
			slog.String("provider", ev.Provider),
			slog.String("provider_message_id", ev.ProviderMessageID),
			slog.String("status", string(ev.Status)),
		)
	}
	return applied, nil
}
