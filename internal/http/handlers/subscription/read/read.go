// Package read serves the caller's subscription together with the effective tier.
package read

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
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

// View is the body of a successful reply.
type View struct {
	Subscription  *models.Subscription `json:"subscription"`
	EffectiveTier tiers.Info           `json:"effective_tier"`
}

// Handler serves GET /subscription.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service loads subscriptions.
type Service interface {
	GetUserSubscription(ctx context.Context, userID string) (*models.Subscription, error)
}

// New creates a Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Current subscription
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=View}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /subscription [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.read"
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

	sub, err := h.service.GetUserSubscription(r.Context(), userID)
	if err != nil {
		log.Error("failed to read subscription", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(View{
		Subscription:  sub,
		EffectiveTier: tiers.InfoOf(sub.EffectiveTier()),
	}))
}
