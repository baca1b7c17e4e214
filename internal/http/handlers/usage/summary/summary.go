// Package summary serves the usage overview of the current billing period.
package summary

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storytime-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storytime-billing/internal/http/response"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/services/usage"
)

// Handler serves GET /usage.
type Handler struct {
	log           *slog.Logger
	subscriptions SubscriptionReader
	ledger        Summarizer
}

// SubscriptionReader loads the caller's subscription.
type SubscriptionReader interface {
	GetUserSubscription(ctx context.Context, userID string) (*models.Subscription, error)
}

// Summarizer reports usage against limits.
type Summarizer interface {
	Summarize(ctx context.Context, sub *models.Subscription) (usage.Summary, error)
}

// New creates a Handler.
func New(log *slog.Logger, subscriptions SubscriptionReader, ledger Summarizer) *Handler {
	return &Handler{log: log, subscriptions: subscriptions, ledger: ledger}
}

// ServeHTTP godoc
// @Summary Usage in the current billing period
// @Tags Usage
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=usage.Summary}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /usage [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.usage.summary"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	sub, err := h.subscriptions.GetUserSubscription(r.Context(), userID)
	if err != nil {
		log.Error("failed to load subscription", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	sum, err := h.ledger.Summarize(r.Context(), sub)
	if err != nil {
		log.Error("failed to summarize usage", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(sum))
}
