// Package change moves the caller to another tier or billing interval.
package change

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/storytime-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storytime-billing/internal/http/response"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/services/subscription"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

// Request is the body of POST /subscription/change.
type Request struct {
	Tier          string `json:"tier" validate:"required,oneof=free dream_weaver magic_circle enchanted_library"`
	BillingPeriod string `json:"billing_period" validate:"omitempty,oneof=monthly annual"`
}

// Handler serves POST /subscription/change.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service changes plans.
type Service interface {
	Change(ctx context.Context, userID string, newTier tiers.Tier, interval tiers.Interval) (subscription.Result, error)
}

// New creates a Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Change plan
// @Description Upgrades apply immediately with proration. Downgrades take effect at the next billing period. Choosing free cancels at period end.
// @Tags Subscription
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Target plan"
// @Success 200 {object} response.Response{data=subscription.Result}
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /subscription/change [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.change"
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

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	tier, _ := tiers.Parse(req.Tier)
	interval, _ := tiers.ParseInterval(req.BillingPeriod)

	res, err := h.service.Change(r.Context(), userID, tier, interval)
	if err != nil {
		log.Error("failed to change subscription", slog.String("user_id", userID), slog.String("tier", req.Tier), sl.Err(err))
		response.RenderErrorMessage(w, r, err, res.Message)
		return
	}

	log.Info("subscription changed", slog.String("user_id", userID), slog.String("tier", req.Tier))
	render.JSON(w, r, response.OKWithData(res))
}
