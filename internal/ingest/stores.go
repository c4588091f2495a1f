package ingest

import (
	"context"
	"time"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
)

// ClientDirectory is the CRM lead store consumed by identity resolution.
// The pipeline only reads and conditionally inserts; it does not own the
// directory's persistence mechanics.
type ClientDirectory interface {
	FindByNormalizedPhone(ctx context.Context, orgID, normalizedPhone string) (crm.Client, bool, error)
	CreateLead(ctx context.Context, client crm.Client) (crm.Client, error)
}

// MessageStore persists canonical messages. Insert must be guarded by a
// storage-level uniqueness constraint on (provider, provider_message_id);
// it reports false when the row already existed. UpdateStatus applies a
// delivery-state transition only when it advances the current one and
// reports whether anything changed.
type MessageStore interface {
	ExistsByProviderID(ctx context.Context, provider, providerMessageID string) (bool, error)
	Insert(ctx context.Context, msg crm.Message) (bool, error)
	UpdateStatus(ctx context.Context, provider, providerMessageID string, status crm.MessageStatus) (bool, error)
}

// ChatStore upserts per-conversation summary rows.
type ChatStore interface {
	Upsert(ctx context.Context, chat crm.Chat) error
}

// AuditEntry is one raw webhook delivery record.
type AuditEntry struct {
	Provider   string
	RawBody    []byte
	Outcome    string
	Detail     string
	ReceivedAt time.Time
}

// Audit outcomes recorded by the pipeline.
const (
	AuditOutcomeReceived   = "received"
	AuditOutcomeParseError = "parse_error"
	AuditOutcomeEventError = "event_error"
)

// AuditLog is the write-only raw webhook log, consumed only for
// diagnostics. Recording failures never fail the webhook call.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// IntegrationDirectory maps provider instances to organizations and
// tracks instance connection state.
type IntegrationDirectory interface {
	// ResolveOrganization returns the organization owning the active
	// integration for (provider, instanceID), or ErrNoOrganization.
	ResolveOrganization(ctx context.Context, provider, instanceID string) (string, error)
	SetConnectionState(ctx context.Context, provider, instanceID, state string) error
}

// EventPublisher emits observed-message and receipt events for
// downstream CRM consumers. Best-effort: implementations must not block
// webhook processing on broker failures.
type EventPublisher interface {
	MessageObserved(ctx context.Context, msg crm.Message, instanceID string)
	ReceiptChanged(ctx context.Context, orgID, provider, instanceID, chatID, providerMessageID string, status crm.MessageStatus, at time.Time)
}
