// Package checkout starts a hosted checkout for a paid plan.
package checkout

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
	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

// Request is the body of POST /billing/checkout. Redirect URLs default to the configured ones.
type Request struct {
	Tier          string `json:"tier" validate:"required,oneof=dream_weaver magic_circle enchanted_library"`
	BillingPeriod string `json:"billing_period" validate:"omitempty,oneof=monthly annual"`
	SuccessURL    string `json:"success_url" validate:"omitempty,url"`
	CancelURL     string `json:"cancel_url" validate:"omitempty,url"`
}

// Handler serves POST /billing/checkout.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service creates checkout sessions.
type Service interface {
	CreateCheckout(ctx context.Context, userID string, tier tiers.Tier, interval tiers.Interval, successURL, cancelURL string) (models.CheckoutSession, error)
}

// New creates a Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Create checkout session
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Plan to buy"
// @Success 200 {object} response.Response{data=models.CheckoutSession}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /billing/checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.checkout"
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

	session, err := h.service.CreateCheckout(r.Context(), userID, tier, interval, req.SuccessURL, req.CancelURL)
	if err != nil {
		log.Error("failed to create checkout session", slog.String("user_id", userID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("checkout session created", slog.String("user_id", userID), slog.String("session_id", session.ID))
	render.JSON(w, r, response.OKWithData(session))
}
