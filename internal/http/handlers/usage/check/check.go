// Package check answers whether the caller may generate another story.
package check

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storytime-billing/internal/entitlement"
	"github.com/magabrotheeeer/storytime-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storytime-billing/internal/http/response"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

// Request is the body of POST /usage/check. An empty body checks a standard voice story.
type Request struct {
	PremiumVoice bool `json:"use_premium_voice"`
}

// Handler serves POST /usage/check.
type Handler struct {
	log           *slog.Logger
	subscriptions SubscriptionReader
	evaluator     Evaluator
}

// SubscriptionReader loads the caller's subscription.
type SubscriptionReader interface {
	GetUserSubscription(ctx context.Context, userID string) (*models.Subscription, error)
}

// Evaluator decides story generation requests.
type Evaluator interface {
	CanGenerateStory(ctx context.Context, userID string, tier tiers.Tier, anchor *time.Time, wantsPremiumVoice bool) (entitlement.Decision, error)
}

// New creates a Handler.
func New(log *slog.Logger, subscriptions SubscriptionReader, evaluator Evaluator) *Handler {
	return &Handler{log: log, subscriptions: subscriptions, evaluator: evaluator}
}

// ServeHTTP godoc
// @Summary Check whether a story may be generated
// @Description A denial is a successful response with allowed=false and a reason.
// @Tags Usage
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request false "Voice options"
// @Success 200 {object} response.Response{data=entitlement.Decision}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /usage/check [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.usage.check"
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
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	sub, err := h.subscriptions.GetUserSubscription(r.Context(), userID)
	if err != nil {
		log.Error("failed to load subscription", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	decision, err := h.evaluator.CanGenerateStory(r.Context(), userID, sub.EffectiveTier(), sub.PeriodAnchor(), req.PremiumVoice)
	if err != nil {
		log.Error("failed to evaluate entitlement", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	if !decision.Allowed {
		log.Info("story generation denied", slog.String("user_id", userID), slog.String("reason", decision.Reason))
	}

	render.JSON(w, r, response.OKWithData(decision))
}
