package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
	"github.com/roboricindustries/raycon-multichat/internal/ingest"
)

type stubAdapter struct {
	name   string
	events []ingest.Event
	err    error
}

func (s *stubAdapter) Provider() string { return s.name }

func (s *stubAdapter) Parse(body []byte) ([]ingest.Event, error) {
	return s.events, s.err
}

type stubMessageStore struct {
	updateErr error
}

func (s *stubMessageStore) ExistsByProviderID(ctx context.Context, provider, providerMessageID string) (bool, error) {
	return false, nil
}

func (s *stubMessageStore) Insert(ctx context.Context, msg crm.Message) (bool, error) {
	return true, nil
}

func (s *stubMessageStore) UpdateStatus(ctx context.Context, provider, providerMessageID string, status crm.MessageStatus) (bool, error) {
	return false, s.updateErr
}

type stubAuditLog struct {
	entries []ingest.AuditEntry
}

func (s *stubAuditLog) Record(ctx context.Context, entry ingest.AuditEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func newTestHandler(t *testing.T, adapter ingest.Adapter, messages ingest.MessageStore) (*WebhookHandler, *stubAuditLog) {
	t.Helper()
	registry := ingest.NewRegistry()
	registry.MustRegister(adapter)
	audit := &stubAuditLog{}
	pipeline := ingest.NewPipeline(nil, ingest.PipelineParams{
		Registry:     registry,
		Dedup:        ingest.NewDeduplicator(nil, nil, messages),
		Applier:      ingest.NewStatusApplier(nil, messages),
		Messages:     messages,
		Audit:        audit,
		StoreTimeout: time.Second,
	})
	return NewWebhookHandler(nil, pipeline, registry), audit
}

func postWebhook(h *WebhookHandler, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	h.Register(e)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAccepted(t *testing.T) {
	t.Parallel()

	h, audit := newTestHandler(t, &stubAdapter{name: "wazzup"}, &stubMessageStore{})
	rec := postWebhook(h, "/webhooks/wazzup", `{"test": true}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, ingest.AuditOutcomeReceived, audit.entries[0].Outcome)
}

func TestWebhookParseFailureStillAccepted(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{name: "greenapi", err: ingest.NewParseError("greenapi", "missing idMessage", nil)}
	h, audit := newTestHandler(t, adapter, &stubMessageStore{})
	rec := postWebhook(h, "/webhooks/greenapi", `{"truncated": true}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, ingest.AuditOutcomeParseError, audit.entries[0].Outcome)
}

func TestWebhookUnknownProviderRoute(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, &stubAdapter{name: "greenapi"}, &stubMessageStore{})
	rec := postWebhook(h, "/webhooks/nosuch", `{}`)

	// No route registered for unknown providers.
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookEmptyBodyRejected(t *testing.T) {
	t.Parallel()

	h, audit := newTestHandler(t, &stubAdapter{name: "greenapi"}, &stubMessageStore{})
	rec := postWebhook(h, "/webhooks/greenapi", "  ")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, audit.entries)
}

func TestWebhookOversizedBodyRejected(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, &stubAdapter{name: "greenapi"}, &stubMessageStore{})
	rec := postWebhook(h, "/webhooks/greenapi", `{"pad":"`+strings.Repeat("x", 1<<20)+`"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestWebhookStoreTimeoutReturns504(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{name: "greenapi", events: []ingest.Event{
		ingest.StatusUpdateEvent(ingest.StatusUpdate{
			Provider:          "greenapi",
			ProviderMessageID: "OUT1",
			Status:            crm.StatusRead,
		}),
	}}
	h, _ := newTestHandler(t, adapter, &stubMessageStore{updateErr: context.DeadlineExceeded})
	rec := postWebhook(h, "/webhooks/greenapi", `{}`)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestWebhookProbeAndPreflight(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, &stubAdapter{name: "greenapi"}, &stubMessageStore{})
	e := echo.New()
	h.Register(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/greenapi", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/webhooks/greenapi", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
