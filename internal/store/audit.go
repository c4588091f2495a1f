package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roboricindustries/raycon-multichat/internal/ingest"
)

// Audit is the write-only raw webhook log.
type Audit struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAudit creates the audit log store.
func NewAudit(log *slog.Logger, pool *pgxpool.Pool) *Audit {
	if log == nil {
		log = slog.Default()
	}
	return &Audit{pool: pool, logger: log.With(slog.String("store", "audit"))}
}

// Record appends one raw delivery record.
func (s *Audit) Record(ctx context.Context, entry ingest.AuditEntry) error {
	receivedAt := entry.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO webhook_audit (provider, raw_body, outcome, detail, received_at)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.Provider, entry.RawBody, entry.Outcome, entry.Detail, receivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// DeleteOlderThan removes audit rows received before the cutoff and
// returns the number of rows deleted.
func (s *Audit) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM webhook_audit WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit records: %w", err)
	}
	return tag.RowsAffected(), nil
}
