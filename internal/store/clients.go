package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
)

// Clients is the pgx-backed client directory. The normalized phone is
// computed at write time and indexed, so lookups never scan.
type Clients struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewClients creates the client directory.
func NewClients(log *slog.Logger, pool *pgxpool.Pool) *Clients {
	if log == nil {
		log = slog.Default()
	}
	return &Clients{pool: pool, logger: log.With(slog.String("store", "clients"))}
}

// FindByNormalizedPhone returns the organization's client with the
// given normalized phone, if any.
func (s *Clients) FindByNormalizedPhone(ctx context.Context, orgID, normalizedPhone string) (crm.Client, bool, error) {
	var c crm.Client
	err := s.pool.QueryRow(ctx,
		`SELECT id, organization_id, name, phone, normalized_phone, status, source, utm_source, created_at
		FROM clients
		WHERE organization_id = $1 AND normalized_phone = $2
		ORDER BY created_at
		LIMIT 1`,
		orgID, normalizedPhone,
	).Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Phone, &c.NormalizedPhone,
		&c.Status, &c.Source, &c.UTMSource, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return crm.Client{}, false, nil
	}
	if err != nil {
		return crm.Client{}, false, fmt.Errorf("find client by phone: %w", err)
	}
	return c, true, nil
}

// CreateLead inserts a new lead row and returns it with generated
// fields filled.
func (s *Clients) CreateLead(ctx context.Context, client crm.Client) (crm.Client, error) {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO clients (id, organization_id, name, phone, normalized_phone, status, source, utm_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		client.ID, client.OrganizationID, client.Name, client.Phone,
		client.NormalizedPhone, client.Status, client.Source, client.UTMSource,
	).Scan(&client.CreatedAt)
	if err != nil {
		return crm.Client{}, fmt.Errorf("insert lead: %w", err)
	}
	return client, nil
}
