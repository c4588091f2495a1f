package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
)

func TestObserveUpsertsChatRow(t *testing.T) {
	t.Parallel()

	chats := &fakeChatStore{}
	tr := NewConversationTracker(nil, chats)
	at := time.Unix(1717000000, 0).UTC()

	err := tr.Observe(context.Background(), "org-1", "client-1", NewMessage{
		ChatID:            "77011234567@c.us",
		ChatType:          crm.ChatTypeIndividual,
		ChatPhone:         "77011234567",
		Direction:         crm.DirectionIncoming,
		OccurredAt:        at,
		SenderDisplayName: "Aibek",
	})
	require.NoError(t, err)
	require.Len(t, chats.upserted, 1)

	chat := chats.upserted[0]
	assert.Equal(t, "org-1", chat.OrganizationID)
	assert.Equal(t, "77011234567@c.us", chat.ChatID)
	assert.Equal(t, crm.ChatTypeIndividual, chat.ChatType)
	assert.Equal(t, "client-1", chat.ClientID)
	assert.Equal(t, "Aibek", chat.DisplayName)
	assert.Equal(t, at, chat.LastMessageAt)
}

func TestObserveUpsertError(t *testing.T) {
	t.Parallel()

	chats := &fakeChatStore{
		upsertFunc: func(ctx context.Context, chat crm.Chat) error {
			return errors.New("pg down")
		},
	}
	tr := NewConversationTracker(nil, chats)

	err := tr.Observe(context.Background(), "org-1", "", NewMessage{ChatID: "x@c.us"})
	require.Error(t, err)
}

func TestChatDisplayNameFallbacks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ev   NewMessage
		want string
	}{
		{
			name: "chat name wins",
			ev: NewMessage{
				ChatDisplayName:   "Team chat",
				SenderDisplayName: "Dana",
				ChatType:          crm.ChatTypeGroup,
				ChatID:            "123@g.us",
			},
			want: "Team chat",
		},
		{
			name: "incoming sender name for individual",
			ev: NewMessage{
				SenderDisplayName: "Aibek",
				ChatType:          crm.ChatTypeIndividual,
				Direction:         crm.DirectionIncoming,
				ChatPhone:         "77011234567",
				ChatID:            "77011234567@c.us",
			},
			want: "Aibek",
		},
		{
			name: "outgoing falls back to phone",
			ev: NewMessage{
				SenderDisplayName: "Manager",
				ChatType:          crm.ChatTypeIndividual,
				Direction:         crm.DirectionOutgoing,
				ChatPhone:         "77011234567",
				ChatID:            "77011234567@c.us",
			},
			want: "77011234567",
		},
		{
			name: "group without name falls back to chat id",
			ev: NewMessage{
				ChatType: crm.ChatTypeGroup,
				ChatID:   "123@g.us",
			},
			want: "123@g.us",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, chatDisplayName(tc.ev))
		})
	}
}
