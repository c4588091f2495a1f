package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
	"github.com/roboricindustries/raycon-multichat/internal/phone"
)

// IdentityResolver maps a canonical chat identifier to an existing
// client or mints a new lead for unknown inbound senders.
type IdentityResolver struct {
	clients ClientDirectory
	logger  *slog.Logger
}

// NewIdentityResolver creates an IdentityResolver.
func NewIdentityResolver(log *slog.Logger, clients ClientDirectory) *IdentityResolver {
	if log == nil {
		log = slog.Default()
	}
	return &IdentityResolver{
		clients: clients,
		logger:  log.With(slog.String("component", "identity_resolver")),
	}
}

// Resolve returns the client id for the message's chat, or empty when
// no client applies. Group chats never resolve: phone-based identity is
// meaningless there. An unknown phone mints a lead only for inbound
// messages; an outbound message to an unknown number stays unresolved
// rather than fabricating a lead for someone the organization contacted.
func (r *IdentityResolver) Resolve(ctx context.Context, orgID string, ev NewMessage) (string, error) {
	if ev.ChatType == crm.ChatTypeGroup {
		return "", nil
	}
	rawPhone := strings.TrimSpace(ev.ChatPhone)
	if rawPhone == "" {
		return "", nil
	}
	normalized := phone.Normalize(rawPhone)

	client, found, err := r.clients.FindByNormalizedPhone(ctx, orgID, normalized)
	if err != nil {
		return "", fmt.Errorf("find client by phone: %w", err)
	}
	if found {
		return client.ID, nil
	}
	if ev.Direction != crm.DirectionIncoming {
		return "", nil
	}

	name := strings.TrimSpace(ev.SenderDisplayName)
	if name == "" {
		name = rawPhone
	}
	lead, err := r.clients.CreateLead(ctx, crm.Client{
		OrganizationID:  orgID,
		Name:            name,
		Phone:           rawPhone,
		NormalizedPhone: normalized,
		Status:          crm.LeadStatusNew,
		Source:          crm.ChannelSource(ev.Provider),
		UTMSource:       crm.LeadSourceMessage,
	})
	if err != nil {
		return "", fmt.Errorf("create lead: %w", err)
	}
	r.logger.Info("lead created from inbound message",
		slog.String("organization_id", orgID),
		slog.String("client_id", lead.ID),
		slog.String("provider", ev.Provider),
	)
	return lead.ID, nil
}
