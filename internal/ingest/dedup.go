package ingest

import (
	"context"
	"log/slog"
	"time"
)

// SeenCache is a fast shared marker for already-processed provider
// message ids. Implementations are an optimization only: the message
// store's uniqueness constraint remains the source of truth, so the
// cache may fail open.
type SeenCache interface {
	// MarkSeen records the key if it was not present and reports
	// whether this caller won the marker (true = first sighting).
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Deduplicator guards against re-processing a previously stored
// message. The pre-check is advisory; concurrent retries of the same
// webhook can race past it and are stopped by the insert conflict.
type Deduplicator struct {
	cache    SeenCache
	messages MessageStore
	ttl      time.Duration
	logger   *slog.Logger
}

// NewDeduplicator creates a Deduplicator. cache may be nil, in which
// case only the store pre-check runs.
func NewDeduplicator(log *slog.Logger, cache SeenCache, messages MessageStore) *Deduplicator {
	if log == nil {
		log = slog.Default()
	}
	return &Deduplicator{
		cache:    cache,
		messages: messages,
		ttl:      24 * time.Hour,
		logger:   log.With(slog.String("component", "deduplicator")),
	}
}

func dedupeKey(provider, providerMessageID string) string {
	return "multichat:seen:" + provider + ":" + providerMessageID
}

// ShouldPersist reports whether the message id has not been seen yet.
// Cache errors are logged and ignored; store errors are returned since
// a failed existence check means the store is unhealthy and the event
// should be retried by the provider later via the audit trail.
func (d *Deduplicator) ShouldPersist(ctx context.Context, provider, providerMessageID string) (bool, error) {
	key := dedupeKey(provider, providerMessageID)
	if d.cache != nil {
		first, err := d.cache.MarkSeen(ctx, key, d.ttl)
		if err != nil {
			d.logger.Warn("dedupe cache unavailable, falling back to store",
				slog.String("key", key), slog.Any("error", err))
		} else if !first {
			return false, nil
		}
	}

	exists, err := d.messages.ExistsByProviderID(ctx, provider, providerMessageID)
	if err != nil {
		// Give a later retry a clean cache slot.
		d.forget(ctx, key)
		return false, err
	}
	return !exists, nil
}

// Release clears the cache marker after a failed persistence attempt so
// the provider's retry is not swallowed by the optimization.
func (d *Deduplicator) Release(ctx context.Context, provider, providerMessageID string) {
	d.forget(ctx, dedupeKey(provider, providerMessageID))
}

func (d *Deduplicator) forget(ctx context.Context, key string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Forget(ctx, key); err != nil {
		d.logger.Warn("dedupe cache forget failed", slog.String("key", key), slog.Any("error", err))
	}
}
