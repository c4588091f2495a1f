// Package crm defines the canonical message, chat, and client rows the
// ingestion pipeline persists. Their shape is the contract the rest of
// the CRM (UI, reporting) reads; it must stay stable across providers.
package crm

import (
	"strings"
	"time"
)

// Direction of a message relative to the organization.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// ChatType distinguishes individual conversations from group chats.
type ChatType string

const (
	ChatTypeIndividual ChatType = "individual"
	ChatTypeGroup      ChatType = "group"
)

// MediaType of an attached file.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaAudio    MediaType = "audio"
	MediaDocument MediaType = "document"
)

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// statusRank orders delivery states along the expected
// sent -> delivered -> read -> failed path. The message store's
// UpdateStatus enforces the same ranking in SQL.
var statusRank = map[MessageStatus]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
	StatusFailed:    4,
}

// KnownStatus reports whether s is a recognized delivery state.
func KnownStatus(s MessageStatus) bool {
	_, ok := statusRank[s]
	return ok
}

// Lead attribution constants for auto-created clients.
const (
	LeadStatusNew     = "new"
	LeadSourceMessage = "multichat"
)

// Client is a CRM lead/contact owned by the client directory.
type Client struct {
	ID              string
	OrganizationID  string
	Name            string
	Phone           string
	NormalizedPhone string
	Status          string
	Source          string
	UTMSource       string
	CreatedAt       time.Time
}

// Message is one persisted provider message. At most one row exists per
// (provider, provider_message_id).
type Message struct {
	ID                string
	OrganizationID    string
	Provider          string
	ProviderMessageID string
	ChatID            string
	ClientID          string
	Direction         Direction
	Content           string
	MediaURL          string
	MediaType         MediaType
	Status            MessageStatus
	Timestamp         time.Time
}

// Chat is the per-conversation summary row keyed by
// (chat_id, organization_id). It is an advisory cache for chat-list
// ordering, not an authoritative record.
type Chat struct {
	OrganizationID string
	ChatID         string
	ChatType       ChatType
	ClientID       string
	DisplayName    string
	LastMessageAt  time.Time
}

// ChannelSource renders a provider name into the lead source label shown
// in the CRM, e.g. "WhatsApp (greenapi)".
func ChannelSource(provider string) string {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return "WhatsApp"
	}
	return "WhatsApp (" + provider + ")"
}
