package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
)

// Chats is the pgx-backed chat summary store.
type Chats struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewChats creates the chat store.
func NewChats(log *slog.Logger, pool *pgxpool.Pool) *Chats {
	if log == nil {
		log = slog.Default()
	}
	return &Chats{pool: pool, logger: log.With(slog.String("store", "chats"))}
}

// Upsert inserts or refreshes the chat row for
// (organization_id, chat_id). last_message_at only moves forward; the
// display name and client link are refreshed when the new row carries
// non-empty values.
func (s *Chats) Upsert(ctx context.Context, chat crm.Chat) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chats (organization_id, chat_id, chat_type, client_id, display_name, last_message_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (organization_id, chat_id) DO UPDATE SET
			last_message_at = GREATEST(chats.last_message_at, EXCLUDED.last_message_at),
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), chats.display_name),
			client_id = COALESCE(EXCLUDED.client_id, chats.client_id)`,
		chat.OrganizationID, chat.ChatID, string(chat.ChatType),
		chat.ClientID, chat.DisplayName, chat.LastMessageAt,
	)
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	return nil
}
