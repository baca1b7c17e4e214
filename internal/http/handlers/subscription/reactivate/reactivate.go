// Package reactivate withdraws a scheduled cancellation.
package reactivate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storytime-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storytime-billing/internal/http/response"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/services/subscription"
)

// Handler serves POST /subscription/reactivate.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service reactivates subscriptions.
type Service interface {
	Reactivate(ctx context.Context, userID string) (subscription.Result, error)
}

// New creates a Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Reactivate subscription
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=subscription.Result}
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /subscription/reactivate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.reactivate"
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

	res, err := h.service.Reactivate(r.Context(), userID)
	if err != nil {
		log.Error("failed to reactivate subscription", slog.String("user_id", userID), sl.Err(err))
		response.RenderErrorMessage(w, r, err, res.Message)
		return
	}

	render.JSON(w, r, response.OKWithData(res))
}
