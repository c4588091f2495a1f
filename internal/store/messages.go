package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
)

// statusRankSQL orders delivery states inside the update statement so
// the monotonic guard is enforced atomically by the database, not by a
// read-then-write in Go.
const statusRankSQL = `CASE %s
	WHEN 'sent' THEN 1
	WHEN 'delivered' THEN 2
	WHEN 'read' THEN 3
	WHEN 'failed' THEN 4
	ELSE 0
END`

// Messages is the pgx-backed message store.
type Messages struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewMessages creates the message store.
func NewMessages(log *slog.Logger, pool *pgxpool.Pool) *Messages {
	if log == nil {
		log = slog.Default()
	}
	return &Messages{pool: pool, logger: log.With(slog.String("store", "messages"))}
}

// ExistsByProviderID reports whether a row exists for the provider
// message id.
func (s *Messages) ExistsByProviderID(ctx context.Context, provider, providerMessageID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM messages WHERE provider = $1 AND provider_message_id = $2
		)`,
		provider, providerMessageID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check message existence: %w", err)
	}
	return exists, nil
}

// Insert writes the message, relying on the unique constraint on
// (provider, provider_message_id) to absorb concurrent retries. It
// reports false when the row already existed.
func (s *Messages) Insert(ctx context.Context, msg crm.Message) (bool, error) {
	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO messages (
			id, organization_id, provider, provider_message_id, chat_id,
			client_id, direction, content, media_url, media_type, status, sent_at
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12)
		ON CONFLICT (provider, provider_message_id) DO NOTHING`,
		id, msg.OrganizationID, msg.Provider, msg.ProviderMessageID, msg.ChatID,
		msg.ClientID, string(msg.Direction), msg.Content, msg.MediaURL,
		string(msg.MediaType), string(msg.Status), msg.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateStatus applies a delivery-state transition when it advances the
// stored one and reports whether a row changed.
func (s *Messages) UpdateStatus(ctx context.Context, provider, providerMessageID string, status crm.MessageStatus) (bool, error) {
	query := fmt.Sprintf(
		`UPDATE messages SET status = $3
		WHERE provider = $1 AND provider_message_id = $2
		  AND `+statusRankSQL+` < `+statusRankSQL,
		"status", "$3",
	)
	tag, err := s.pool.Exec(ctx, query, provider, providerMessageID, string(status))
	if err != nil {
		return false, fmt.Errorf("update message status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
