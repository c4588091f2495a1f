package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
)

// ErrUnknownProvider is returned by Handle for provider names with no
// registered adapter. Surfaced to the caller as a transport failure.
var ErrUnknownProvider = errors.New("unknown provider")

// Pipeline orchestrates one webhook delivery: audit, parse, and
// per-event processing. Individual event failures are isolated and
// recorded in the audit log; the call as a whole still succeeds so
// providers do not retry payloads this system cannot make sense of.
type Pipeline struct {
	registry     *Registry
	resolver     *IdentityResolver
	dedup        *Deduplicator
	tracker      *ConversationTracker
	applier      *StatusApplier
	messages     MessageStore
	audit        AuditLog
	integrations IntegrationDirectory
	publisher    EventPublisher
	storeTimeout time.Duration
	logger       *slog.Logger
}

// PipelineParams collects the pipeline's collaborators.
type PipelineParams struct {
	Registry     *Registry
	Resolver     *IdentityResolver
	Dedup        *Deduplicator
	Tracker      *ConversationTracker
	Applier      *StatusApplier
	Messages     MessageStore
	Audit        AuditLog
	Integrations IntegrationDirectory
	Publisher    EventPublisher
	StoreTimeout time.Duration
}

// NewPipeline creates the ingestion pipeline.
func NewPipeline(log *slog.Logger, p PipelineParams) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if p.StoreTimeout <= 0 {
		p.StoreTimeout = 10 * time.Second
	}
	return &Pipeline{
		registry:     p.Registry,
		resolver:     p.Resolver,
		dedup:        p.Dedup,
		tracker:      p.Tracker,
		applier:      p.Applier,
		messages:     p.Messages,
		audit:        p.Audit,
		integrations: p.Integrations,
		publisher:    p.Publisher,
		storeTimeout: p.StoreTimeout,
		logger:       log.With(slog.String("component", "pipeline")),
	}
}

// Handle processes one raw webhook body for the named provider. The
// returned error is transport-level only (unknown provider); parse and
// per-event failures are swallowed after being audited and logged.
func (p *Pipeline) Handle(ctx context.Context, provider string, body []byte) error {
	adapter, ok := p.registry.Get(provider)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	events, parseErr := adapter.Parse(body)

	// The raw delivery is recorded unconditionally, before any
	// business processing and regardless of parse outcome.
	outcome := AuditOutcomeReceived
	detail := ""
	if parseErr != nil {
		detail = parseErr.Error()
		if IsParseError(parseErr) {
			outcome = AuditOutcomeParseError
		} else {
			outcome = AuditOutcomeEventError
		}
	}
	p.recordAudit(ctx, AuditEntry{
		Provider:   adapter.Provider(),
		RawBody:    body,
		Outcome:    outcome,
		Detail:     detail,
		ReceivedAt: time.Now().UTC(),
	})
	if parseErr != nil {
		if !IsParseError(parseErr) {
			// Not a malformed payload but an adapter failure; surface
			// it so the provider redelivers.
			return fmt.Errorf("parse %s payload: %w", adapter.Provider(), parseErr)
		}
		p.logger.Warn("webhook payload not parsed",
			slog.String("provider", adapter.Provider()),
			slog.Any("error", parseErr),
		)
		return nil
	}

	for _, ev := range events {
		if err := p.processEvent(ctx, ev); err != nil {
			// One bad event never aborts its siblings.
			p.logger.Error("event processing failed",
				slog.String("provider", adapter.Provider()),
				slog.String("kind", string(ev.Kind)),
				slog.Any("error", err),
			)
			p.recordAudit(ctx, AuditEntry{
				Provider:   adapter.Provider(),
				RawBody:    body,
				Outcome:    AuditOutcomeEventError,
				Detail:     err.Error(),
				ReceivedAt: time.Now().UTC(),
			})
			// A store timeout means the backend is unhealthy; surface
			// it so the provider retries the delivery later.
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("store call timed out: %w", err)
			}
		}
	}
	return nil
}

func (p *Pipeline) processEvent(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventNewMessage:
		if ev.NewMessage == nil {
			return fmt.Errorf("new_message event without payload")
		}
		return p.processNewMessage(ctx, *ev.NewMessage)
	case EventStatusUpdate:
		if ev.StatusUpdate == nil {
			return fmt.Errorf("status_update event without payload")
		}
		return p.processStatusUpdate(ctx, *ev.StatusUpdate)
	case EventConnectionState:
		if ev.ConnectionState == nil {
			return fmt.Errorf("connection_state event without payload")
		}
		return p.processConnectionState(ctx, *ev.ConnectionState)
	default:
		return fmt.Errorf("unsupported event kind %q", ev.Kind)
	}
}

func (p *Pipeline) processNewMessage(ctx context.Context, ev NewMessage) error {
	orgID, err := p.resolveOrganization(ctx, ev.OrganizationID, ev.Provider, ev.InstanceID)
	if err != nil {
		return err
	}

	sctx, cancel := p.storeCtx(ctx)
	clientID, err := p.resolver.Resolve(sctx, orgID, ev)
	cancel()
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	sctx, cancel = p.storeCtx(ctx)
	persist, err := p.dedup.ShouldPersist(sctx, ev.Provider, ev.ProviderMessageID)
	cancel()
	if err != nil {
		return fmt.Errorf("dedupe check: %w", err)
	}
	if !persist {
		p.logger.Debug("duplicate message delivery skipped",
			slog.String("provider", ev.Provider),
			slog.String("provider_message_id", ev.ProviderMessageID),
		)
		return nil
	}

	msg := crm.Message{
		OrganizationID:    orgID,
		Provider:          ev.Provider,
		ProviderMessageID: ev.ProviderMessageID,
		ChatID:            ev.ChatID,
		ClientID:          clientID,
		Direction:         ev.Direction,
		Content:           ev.Text,
		Status:            crm.StatusSent,
		Timestamp:         ev.OccurredAt,
	}
	if ev.Media != nil {
		msg.MediaURL = ev.Media.URL
		msg.MediaType = ev.Media.Type
	}

	sctx, cancel = p.storeCtx(ctx)
	inserted, err := p.messages.Insert(sctx, msg)
	cancel()
	if err != nil {
		p.dedup.Release(ctx, ev.Provider, ev.ProviderMessageID)
		return fmt.Errorf("insert message: %w", err)
	}
	if !inserted {
		// A racing retry won the unique constraint; same outcome.
		p.logger.Debug("message insert lost to concurrent delivery",
			slog.String("provider_message_id", ev.ProviderMessageID),
		)
		return nil
	}

	sctx, cancel = p.storeCtx(ctx)
	err = p.tracker.Observe(sctx, orgID, clientID, ev)
	cancel()
	if err != nil {
		return err
	}

	if p.publisher != nil {
		p.publisher.MessageObserved(ctx, msg, ev.InstanceID)
	}
	return nil
}

func (p *Pipeline) processStatusUpdate(ctx context.Context, ev StatusUpdate) error {
	sctx, cancel := p.storeCtx(ctx)
	applied, err := p.applier.Apply(sctx, ev)
	cancel()
	if err != nil {
		return err
	}
	if applied && p.publisher != nil {
		orgID, orgErr := p.resolveOrganization(ctx, "", ev.Provider, ev.InstanceID)
		if orgErr != nil {
			// The status is already persisted; the receipt event is
			// advisory and dropped when the tenant is unknown.
			p.logger.Warn("receipt event dropped",
				slog.String("provider", ev.Provider),
				slog.Any("error", orgErr),
			)
			return nil
		}
		at := ev.OccurredAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		p.publisher.ReceiptChanged(ctx, orgID, ev.Provider, ev.InstanceID, ev.ChatID, ev.ProviderMessageID, ev.Status, at)
	}
	return nil
}

func (p *Pipeline) processConnectionState(ctx context.Context, ev ConnectionState) error {
	sctx, cancel := p.storeCtx(ctx)
	defer cancel()
	if err := p.integrations.SetConnectionState(sctx, ev.Provider, ev.InstanceID, ev.State); err != nil {
		return fmt.Errorf("set connection state: %w", err)
	}
	return nil
}

// resolveOrganization threads an explicit organization through every
// event. Events without one are mapped via the integration directory;
// an unresolvable instance is a hard error for the event.
func (p *Pipeline) resolveOrganization(ctx context.Context, known, provider, instanceID string) (string, error) {
	if known != "" {
		return known, nil
	}
	sctx, cancel := p.storeCtx(ctx)
	defer cancel()
	orgID, err := p.integrations.ResolveOrganization(sctx, provider, instanceID)
	if err != nil {
		return "", fmt.Errorf("resolve organization for instance %q: %w", instanceID, err)
	}
	return orgID, nil
}

func (p *Pipeline) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.storeTimeout)
}

func (p *Pipeline) recordAudit(ctx context.Context, entry AuditEntry) {
	sctx, cancel := p.storeCtx(ctx)
	defer cancel()
	if err := p.audit.Record(sctx, entry); err != nil {
		p.logger.Error("audit record failed",
			slog.String("provider", entry.Provider),
			slog.Any("error", err),
		)
	}
}
