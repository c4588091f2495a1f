package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roboricindustries/raycon-multichat/internal/ingest"
)

// Integrations maps provider instances to owning organizations and
// tracks per-instance connection state.
type Integrations struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewIntegrations creates the integration directory.
func NewIntegrations(log *slog.Logger, pool *pgxpool.Pool) *Integrations {
	if log == nil {
		log = slog.Default()
	}
	return &Integrations{pool: pool, logger: log.With(slog.String("store", "integrations"))}
}

// ResolveOrganization returns the organization owning the active
// integration for (provider, instanceID). A missing or inactive
// integration yields ingest.ErrNoOrganization: tenant ambiguity is
// never resolved by falling back to some default organization.
func (s *Integrations) ResolveOrganization(ctx context.Context, provider, instanceID string) (string, error) {
	var orgID string
	err := s.pool.QueryRow(ctx,
		`SELECT organization_id FROM integrations
		WHERE provider = $1 AND instance_id = $2 AND active`,
		provider, instanceID,
	).Scan(&orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ingest.ErrNoOrganization
	}
	if err != nil {
		return "", fmt.Errorf("resolve organization: %w", err)
	}
	return orgID, nil
}

// SetConnectionState records the instance's reported connection state.
func (s *Integrations) SetConnectionState(ctx context.Context, provider, instanceID, state string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE integrations SET connection_state = $3, updated_at = now()
		WHERE provider = $1 AND instance_id = $2`,
		provider, instanceID, state,
	)
	if err != nil {
		return fmt.Errorf("set connection state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug("connection state for unknown instance dropped",
			slog.String("provider", provider),
			slog.String("instance_id", instanceID),
		)
	}
	return nil
}
