// Package ingest normalizes provider webhook payloads into canonical
// events and persists them into the shared CRM stores. Each webhook
// delivery is an independent, stateless invocation; idempotence comes
// from the message store's uniqueness constraint, not from any
// in-process state.
package ingest

import (
	"time"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
)

// EventKind discriminates the canonical event union.
type EventKind string

const (
	EventNewMessage      EventKind = "new_message"
	EventStatusUpdate    EventKind = "status_update"
	EventConnectionState EventKind = "connection_state"
)

// Media describes an attachment referenced by a message.
type Media struct {
	URL      string
	Type     crm.MediaType
	Filename string
}

// NewMessage is a provider message normalized past the adapter boundary.
// No provider-specific field shapes leak beyond this struct.
type NewMessage struct {
	Provider          string
	InstanceID        string
	OrganizationID    string
	ProviderMessageID string
	ChatID            string
	ChatType          crm.ChatType
	// ChatPhone is the chat-derived raw phone string for individual
	// chats; empty for groups. Extraction is provider-specific.
	ChatPhone         string
	Direction         crm.Direction
	OccurredAt        time.Time
	Text              string
	Media             *Media
	SenderDisplayName string
	ChatDisplayName   string
}

// StatusUpdate reports a delivery-state change for an already-sent message.
type StatusUpdate struct {
	Provider          string
	InstanceID        string
	ProviderMessageID string
	ChatID            string
	Status            crm.MessageStatus
	OccurredAt        time.Time
}

// ConnectionState reports an instance connection change (authorized,
// disconnected, ...). Forwarded to the integration directory as-is.
type ConnectionState struct {
	Provider   string
	InstanceID string
	State      string
}

// Event is the canonical, provider-agnostic representation of one
// webhook notification. Exactly one of the payload pointers matching
// Kind is set.
type Event struct {
	Kind            EventKind
	NewMessage      *NewMessage
	StatusUpdate    *StatusUpdate
	ConnectionState *ConnectionState
}

// NewMessageEvent wraps a NewMessage payload.
func NewMessageEvent(m NewMessage) Event {
	return Event{Kind: EventNewMessage, NewMessage: &m}
}

// StatusUpdateEvent wraps a StatusUpdate payload.
func StatusUpdateEvent(s StatusUpdate) Event {
	return Event{Kind: EventStatusUpdate, StatusUpdate: &s}
}

// ConnectionStateEvent wraps a ConnectionState payload.
func ConnectionStateEvent(c ConnectionState) Event {
	return Event{Kind: EventConnectionState, ConnectionState: &c}
}
