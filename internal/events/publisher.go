// Package events publishes observed-message and receipt events for
// downstream CRM consumers over RabbitMQ.
package events

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/roboricindustries/raycon-events/pkg/pubsub"
	"github.com/roboricindustries/raycon-events/pkg/schemas/common"
	multichat "github.com/roboricindustries/raycon-events/pkg/schemas/multichat/v1"

	"github.com/roboricindustries/raycon-multichat/internal/config"
	"github.com/roboricindustries/raycon-multichat/internal/crm"
)

const (
	producerName = "raycon-multichat"

	observedEventType = "multichat.chat.observed.v1"
	observedKey       = "chat.observed.v1"
	receiptEventType  = "multichat.chat.receipt.v1"
	receiptKey        = "chat.receipt.v1"

	textPreviewLimit = 512
)

// Broker publishes multichat contract events. Delivery is best-effort:
// webhook processing never fails on broker errors, consumers get no
// exactly-once guarantee.
type Broker struct {
	pub    pubsub.Publisher
	logger *slog.Logger
}

// NewBroker connects to RabbitMQ and declares the exchange.
func NewBroker(log *slog.Logger, cfg config.RabbitConfig) (*Broker, error) {
	if log == nil {
		log = slog.Default()
	}
	pub, err := pubsub.New(cfg.URL, cfg.Exchange, log)
	if err != nil {
		return nil, err
	}
	return &Broker{
		pub:    pub,
		logger: log.With(slog.String("component", "events")),
	}, nil
}

// Close releases the broker connection.
func (b *Broker) Close() error {
	return b.pub.Close()
}

// MessageObserved emits a ChatObservedMessageV1 for a freshly persisted
// message.
func (b *Broker) MessageObserved(ctx context.Context, msg crm.Message, instanceID string) {
	direction := "inbound"
	source := "client"
	if msg.Direction == crm.DirectionOutgoing {
		direction = "outbound"
		source = "echo"
	}

	ev := multichat.ChatObservedMessageV1{
		Tenant:    tenantRef(msg.OrganizationID),
		Provider:  multichat.ProviderRef{Provider: msg.Provider, InstanceID: instanceID},
		Direction: direction,
		Source:    source,
		Message:   multichat.MessageKey{ProviderMessageID: msg.ProviderMessageID},
		Kind:      messageKind(msg),
		Conversation: multichat.ConversationKey{
			ProviderChatID: msg.ChatID,
		},
		AtProvider: msg.Timestamp,
		ReceivedAt: time.Now().UTC(),
		Body:       bodyDescriptor(msg),
	}

	b.publish(ctx, observedKey, observedEventType, ev)
}

// ReceiptChanged emits a ChatReceiptV1 for an applied delivery-state
// transition.
func (b *Broker) ReceiptChanged(ctx context.Context, orgID, provider, instanceID, chatID, providerMessageID string, status crm.MessageStatus, at time.Time) {
	receipt := multichat.ChatReceiptV1{
		Tenant:   tenantRef(orgID),
		Provider: multichat.ProviderRef{Provider: provider, InstanceID: instanceID},
		Conversation: multichat.ConversationKey{
			ProviderChatID: chatID,
		},
		Message:    multichat.MessageKey{ProviderMessageID: providerMessageID},
		Status:     receiptStatus(status),
		AtProvider: &at,
	}
	if receipt.Status == multichat.ReceiptFailed {
		// The contract requires an error code for failed receipts; the
		// providers report only the fact of the failure.
		receipt.Error = &struct {
			Code    string `json:"code"`
			Details string `json:"details,omitempty"`
		}{Code: "provider_failed"}
	}
	if err := receipt.Validate(); err != nil {
		b.logger.Warn("receipt event failed contract validation, dropped",
			slog.String("provider_message_id", providerMessageID),
			slog.Any("error", err),
		)
		return
	}

	b.publish(ctx, receiptKey, receiptEventType, receipt)
}

func (b *Broker) publish(ctx context.Context, key, eventType string, data any) {
	envelope := common.Envelope{
		Meta: common.Meta{
			ID:       uuid.NewString(),
			Type:     eventType,
			Time:     time.Now().UTC(),
			Producer: ptr(producerName),
		},
		Data: data,
	}
	if err := b.pub.Publish(ctx, key, envelope); err != nil {
		b.logger.Error("event publish failed",
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}

// tenantRef maps our organization id onto the numeric company id the
// shared contracts use. Non-numeric ids publish as company 0 and are
// resolved downstream via the provider reference.
func tenantRef(orgID string) multichat.TenantRef {
	companyID, _ := strconv.ParseInt(orgID, 10, 64)
	return multichat.TenantRef{CompanyID: companyID}
}

func receiptStatus(status crm.MessageStatus) multichat.ReceiptStatus {
	switch status {
	case crm.StatusSent:
		return multichat.ReceiptSent
	case crm.StatusDelivered:
		return multichat.ReceiptDelivered
	case crm.StatusRead:
		return multichat.ReceiptRead
	default:
		return multichat.ReceiptFailed
	}
}

func messageKind(msg crm.Message) string {
	switch msg.MediaType {
	case crm.MediaImage:
		return "image"
	case crm.MediaVideo:
		return "video"
	case crm.MediaAudio:
		return "voice"
	case crm.MediaDocument:
		return "file"
	default:
		return "text"
	}
}

func bodyDescriptor(msg crm.Message) multichat.BodyDescriptor {
	preview := msg.Content
	if len(preview) > textPreviewLimit {
		preview = preview[:textPreviewLimit]
	}
	body := multichat.BodyDescriptor{
		HasText:     msg.Content != "",
		TextPreview: preview,
	}
	if msg.MediaType != "" {
		body.MediaKinds = []string{string(msg.MediaType)}
	}
	return body
}

func ptr[T any](v T) *T {
	return &v
}
