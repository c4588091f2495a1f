package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
)

// ConversationTracker maintains the per-chat summary row. It is a
// last-write-wins advisory cache for chat-list ordering, intentionally
// not linearizable; concurrent upserts may race harmlessly.
type ConversationTracker struct {
	chats  ChatStore
	logger *slog.Logger
}

// NewConversationTracker creates a ConversationTracker.
func NewConversationTracker(log *slog.Logger, chats ChatStore) *ConversationTracker {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationTracker{
		chats:  chats,
		logger: log.With(slog.String("component", "conversation_tracker")),
	}
}

// Observe upserts the chat row for a new message: inserted if absent,
// otherwise last_message_at moves forward and the display name is
// refreshed when the event supplies a better one.
func (t *ConversationTracker) Observe(ctx context.Context, orgID, clientID string, ev NewMessage) error {
	chat := crm.Chat{
		OrganizationID: orgID,
		ChatID:         ev.ChatID,
		ChatType:       ev.ChatType,
		ClientID:       clientID,
		DisplayName:    chatDisplayName(ev),
		LastMessageAt:  ev.OccurredAt,
	}
	if err := t.chats.Upsert(ctx, chat); err != nil {
		return fmt.Errorf("upsert chat %s: %w", ev.ChatID, err)
	}
	return nil
}

// chatDisplayName picks the best available name for the chat list:
// the group's own name, then the sender's, then the raw phone, then the
// provider chat id as a last resort.
func chatDisplayName(ev NewMessage) string {
	if name := strings.TrimSpace(ev.ChatDisplayName); name != "" {
		return name
	}
	if ev.ChatType == crm.ChatTypeIndividual {
		if name := strings.TrimSpace(ev.SenderDisplayName); name != "" && ev.Direction == crm.DirectionIncoming {
			return name
		}
		if p := strings.TrimSpace(ev.ChatPhone); p != "" {
			return p
		}
	}
	return ev.ChatID
}
