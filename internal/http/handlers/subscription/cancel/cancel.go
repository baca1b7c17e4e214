// Package cancel cancels the caller's paid subscription.
package cancel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storytime-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storytime-billing/internal/http/response"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/services/subscription"
)

// Request is the optional body of POST /subscription/cancel.
type Request struct {
	Immediate bool `json:"immediate"`
}

// Handler serves POST /subscription/cancel.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service cancels subscriptions.
type Service interface {
	Cancel(ctx context.Context, userID string, immediate bool) (subscription.Result, error)
}

// New creates a Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Cancel subscription
// @Description Cancels at the end of the billing period unless immediate is set.
// @Tags Subscription
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request false "Cancellation options"
// @Success 200 {object} response.Response{data=subscription.Result}
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /subscription/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"
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
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	res, err := h.service.Cancel(r.Context(), userID, req.Immediate)
	if err != nil {
		log.Error("failed to cancel subscription", slog.String("user_id", userID), sl.Err(err))
		response.RenderErrorMessage(w, r, err, res.Message)
		return
	}

	log.Info("subscription canceled", slog.String("user_id", userID), slog.Bool("immediate", req.Immediate))
	render.JSON(w, r, response.OKWithData(res))
}
