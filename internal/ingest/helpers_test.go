package ingest

import (
	"context"
	"time"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
)

type fakeClientDirectory struct {
	findFunc   func(ctx context.Context, orgID, normalizedPhone string) (crm.Client, bool, error)
	createFunc func(ctx context.Context, client crm.Client) (crm.Client, error)

	created []crm.Client
}

func (f *fakeClientDirectory) FindByNormalizedPhone(ctx context.Context, orgID, normalizedPhone string) (crm.Client, bool, error) {
	if f.findFunc == nil {
		return crm.Client{}, false, nil
	}
	return f.findFunc(ctx, orgID, normalizedPhone)
}

func (f *fakeClientDirectory) CreateLead(ctx context.Context, client crm.Client) (crm.Client, error) {
	f.created = append(f.created, client)
	if f.createFunc == nil {
		client.ID = "client-new"
		return client, nil
	}
	return f.createFunc(ctx, client)
}

type fakeMessageStore struct {
	existsFunc func(ctx context.Context, provider, providerMessageID string) (bool, error)
	insertFunc func(ctx context.Context, msg crm.Message) (bool, error)
	updateFunc func(ctx context.Context, provider, providerMessageID string, status crm.MessageStatus) (bool, error)

	inserted []crm.Message
	updates  []crm.MessageStatus
}

func (f *fakeMessageStore) ExistsByProviderID(ctx context.Context, provider, providerMessageID string) (bool, error) {
	if f.existsFunc == nil {
		return false, nil
	}
	return f.existsFunc(ctx, provider, providerMessageID)
}

func (f *fakeMessageStore) Insert(ctx context.Context, msg crm.Message) (bool, error) {
	f.inserted = append(f.inserted, msg)
	if f.insertFunc == nil {
		return true, nil
	}
	return f.insertFunc(ctx, msg)
}

func (f *fakeMessageStore) UpdateStatus(ctx context.Context, provider, providerMessageID string, status crm.MessageStatus) (bool, error) {
	f.updates = append(f.updates, status)
	if f.updateFunc == nil {
		return true, nil
	}
	return f.updateFunc(ctx, provider, providerMessageID, status)
}

type fakeChatStore struct {
	upsertFunc func(ctx context.Context, chat crm.Chat) error

	upserted []crm.Chat
}

func (f *fakeChatStore) Upsert(ctx context.Context, chat crm.Chat) error {
	f.upserted = append(f.upserted, chat)
	if f.upsertFunc == nil {
		return nil
	}
	return f.upsertFunc(ctx, chat)
}

type fakeAuditLog struct {
	recordFunc func(ctx context.Context, entry AuditEntry) error

	entries []AuditEntry
}

func (f *fakeAuditLog) Record(ctx context.Context, entry AuditEntry) error {
	f.entries = append(f.entries, entry)
	if f.recordFunc == nil {
		return nil
	}
	return f.recordFunc(ctx, entry)
}

type fakeIntegrations struct {
	resolveFunc func(ctx context.Context, provider, instanceID string) (string, error)
	stateFunc   func(ctx context.Context, provider, instanceID, state string) error

	states []string
}

func (f *fakeIntegrations) ResolveOrganization(ctx context.Context, provider, instanceID string) (string, error) {
	if f.resolveFunc == nil {
		return "org-1", nil
	}
	return f.resolveFunc(ctx, provider, instanceID)
}

func (f *fakeIntegrations) SetConnectionState(ctx context.Context, provider, instanceID, state string) error {
	f.states = append(f.states, state)
	if f.stateFunc == nil {
		return nil
	}
	return f.stateFunc(ctx, provider, instanceID, state)
}

type publishedReceipt struct {
	orgID             string
	providerMessageID string
	status            crm.MessageStatus
}

type fakePublisher struct {
	observed []crm.Message
	receipts []publishedReceipt
}

func (f *fakePublisher) MessageObserved(ctx context.Context, msg crm.Message, instanceID string) {
	f.observed = append(f.observed, msg)
}

func (f *fakePublisher) ReceiptChanged(ctx context.Context, orgID, provider, instanceID, chatID, providerMessageID string, status crm.MessageStatus, at time.Time) {
	f.receipts = append(f.receipts, publishedReceipt{orgID: orgID, providerMessageID: providerMessageID, status: status})
}

type fakeSeenCache struct {
	markFunc   func(ctx context.Context, key string, ttl time.Duration) (bool, error)
	forgetFunc func(ctx context.Context, key string) error

	marked    []string
	forgotten []string
}

func (f *fakeSeenCache) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.marked = append(f.marked, key)
	if f.markFunc == nil {
		return true, nil
	}
	return f.markFunc(ctx, key, ttl)
}

func (f *fakeSeenCache) Forget(ctx context.Context, key string) error {
	f.forgotten = append(f.forgotten, key)
	if f.forgetFunc == nil {
		return nil
	}
	return f.forgetFunc(ctx, key)
}

// fakeAdapter returns canned events for any body.
type fakeAdapter struct {
	name     string
	events   []Event
	parseErr error
}

func (f *fakeAdapter) Provider() string { return f.name }

func (f *fakeAdapter) Parse(body []byte) ([]Event, error) {
	return f.events, f.parseErr
}

// pipelineEnv bundles a pipeline with its fakes for assertions.
type pipelineEnv struct {
	pipeline     *Pipeline
	clients      *fakeClientDirectory
	messages     *fakeMessageStore
	chats        *fakeChatStore
	audit        *fakeAuditLog
	integrations *fakeIntegrations
	publisher    *fakePublisher
	cache        *fakeSeenCache
}

func newPipelineEnv(adapters ...Adapter) *pipelineEnv {
	env := &pipelineEnv{
		clients:      &fakeClientDirectory{},
		messages:     &fakeMessageStore{},
		chats:        &fakeChatStore{},
		audit:        &fakeAuditLog{},
		integrations: &fakeIntegrations{},
		publisher:    &fakePublisher{},
		cache:        &fakeSeenCache{},
	}
	registry := NewRegistry()
	for _, a := range adapters {
		registry.MustRegister(a)
	}
	env.pipeline = NewPipeline(nil, PipelineParams{
		Registry:     registry,
		Resolver:     NewIdentityResolver(nil, env.clients),
		Dedup:        NewDeduplicator(nil, env.cache, env.messages),
		Tracker:      NewConversationTracker(nil, env.chats),
		Applier:      NewStatusApplier(nil, env.messages),
		Messages:     env.messages,
		Audit:        env.audit,
		Integrations: env.integrations,
		Publisher:    env.publisher,
		StoreTimeout: 5 * time.Second,
	})
	return env
}
