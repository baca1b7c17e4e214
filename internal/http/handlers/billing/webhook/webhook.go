// Package webhook receives signed billing provider events.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storytime-billing/internal/http/response"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/services/subscription"
)

const (
	maxBodyBytes    = int64(65536)
	signatureHeader = "Stripe-Signature"
)

// Verifier authenticates and decodes a delivery.
type Verifier interface {
	Verify(payload []byte, signature string) (models.BillingEvent, error)
}

// EventHandler applies a verified event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev models.BillingEvent) error
}

// Handler serves POST /billing/webhook.
type Handler struct {
	log      *slog.Logger
	verifier Verifier
	events   EventHandler
}

// New creates a Handler.
func New(log *slog.Logger, verifier Verifier, events EventHandler) *Handler {
	return &Handler{log: log, verifier: verifier, events: events}
}

// ServeHTTP godoc
// @Summary Billing provider webhook
// @Description Unsigned or malformed deliveries get 400. Processing failures get 500 so the provider retries.
// @Tags Billing
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Provider signature"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	ev, err := h.verifier.Verify(payload, r.Header.Get(signatureHeader))
	if err != nil {
		log.Warn("rejected webhook", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid webhook"))
		return
	}
	log = log.With(slog.String("event_id", ev.ID), slog.String("event_type", string(ev.Type)))

	if err := h.events.HandleEvent(r.Context(), ev); err != nil {
		if permanent(err) {
			log.Warn("dropping unusable webhook event", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("unusable event"))
			return
		}
		log.Error("failed to process webhook event", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("webhook processing failed"))
		return
	}

	log.Info("webhook processed")
	render.JSON(w, r, response.OKWithData(map[string]bool{"received": true}))
}

// permanent reports errors a redelivery cannot fix.
func permanent(err error) bool {
	return errors.Is(err, subscription.ErrMalformedEvent) ||
		errors.Is(err, subscription.ErrMissingUserReference) ||
		errors.Is(err, subscription.ErrMissingCustomerReference) ||
		errors.Is(err, subscription.ErrMissingSubscriptionReference)
}
