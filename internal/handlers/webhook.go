package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/roboricindustries/raycon-multichat/internal/ingest"
)

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

// WebhookHandler exposes one webhook endpoint per registered provider.
// POST carries the provider's native payload; GET answers liveness
// probes some providers send when a webhook URL is configured; OPTIONS
// answers CORS preflight.
type WebhookHandler struct {
	pipeline *ingest.Pipeline
	registry *ingest.Registry
	logger   *slog.Logger
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(log *slog.Logger, pipeline *ingest.Pipeline, registry *ingest.Registry) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		pipeline: pipeline,
		registry: registry,
		logger:   log.With(slog.String("handler", "webhook")),
	}
}

// Register registers the per-provider webhook routes.
func (h *WebhookHandler) Register(e *echo.Echo) {
	for _, provider := range h.registry.Providers() {
		base := "/webhooks/" + provider
		e.POST(base, h.makeHandle(provider))
		e.GET(base, h.HandleProbe)
		e.OPTIONS(base, h.HandlePreflight)
	}
}

// HandleProbe responds to liveness checks on the webhook URL.
func (h *WebhookHandler) HandleProbe(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandlePreflight answers CORS preflight requests.
func (h *WebhookHandler) HandlePreflight(c echo.Context) error {
	header := c.Response().Header()
	header.Set(echo.HeaderAccessControlAllowOrigin, "*")
	header.Set(echo.HeaderAccessControlAllowMethods, "POST, GET, OPTIONS")
	header.Set(echo.HeaderAccessControlAllowHeaders, "Content-Type, Authorization")
	return c.NoContent(http.StatusNoContent)
}

func (h *WebhookHandler) makeHandle(provider string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		}
		if int64(len(body)) > webhookMaxBodyBytes {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
				fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
		}
		if len(strings.TrimSpace(string(body))) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "empty request body")
		}

		if err := h.pipeline.Handle(c.Request().Context(), provider, body); err != nil {
			switch {
			case errors.Is(err, ingest.ErrUnknownProvider):
				return echo.NewHTTPError(http.StatusNotFound, err.Error())
			case errors.Is(err, context.DeadlineExceeded):
				// Let the provider retry once the stores recover.
				return echo.NewHTTPError(http.StatusGatewayTimeout, "storage timeout")
			default:
				h.logger.Error("webhook processing failed",
					slog.String("provider", provider),
					slog.Any("error", err),
				)
				return echo.NewHTTPError(http.StatusInternalServerError, "processing failed")
			}
		}

		// Parse and per-event failures are audited, not surfaced:
		// returning an error here would only make the provider retry a
		// payload this system cannot make sense of.
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
