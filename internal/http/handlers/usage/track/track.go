// Package track records a completed story generation.
package track

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storytime-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storytime-billing/internal/http/response"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/metrics"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
)

// Handler serves POST /usage/track. Callers track only after a successful
// generation; the ledger itself never refuses an increment.
type Handler struct {
	log           *slog.Logger
	subscriptions SubscriptionReader
	ledger        Recorder
}

// SubscriptionReader loads the caller's subscription.
type SubscriptionReader interface {
	GetUserSubscription(ctx context.Context, userID string) (*models.Subscription, error)
}

// Recorder adds usage to the current period.
type Recorder interface {
	RecordUsage(ctx context.Context, userID string, delta models.UsageDelta, anchor *time.Time) (models.UsageRecord, error)
}

// New creates a Handler.
func New(log *slog.Logger, subscriptions SubscriptionReader, ledger Recorder) *Handler {
	return &Handler{log: log, subscriptions: subscriptions, ledger: ledger}
}

// ServeHTTP godoc
// @Summary Record a generated story
// @Tags Usage
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UsageDelta false "Whether a premium voice was used"
// @Success 200 {object} response.Response{data=models.UsageRecord}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /usage/track [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.usage.track"
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

	var delta models.UsageDelta
	if err := render.DecodeJSON(r.Body, &delta); err != nil && !errors.Is(err, io.EOF) {
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

	rec, err := h.ledger.RecordUsage(r.Context(), userID, delta, sub.PeriodAnchor())
	if err != nil {
		log.Error("failed to record usage", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	voice := "standard"
	if delta.PremiumVoice {
		voice = "premium"
	}
	metrics.UsageRecorded.WithLabelValues(string(sub.EffectiveTier()), voice).Inc()
	log.Debug("usage recorded", slog.String("user_id", userID), slog.Int("stories", rec.StoriesGenerated))

	render.JSON(w, r, response.OKWithData(rec))
}
