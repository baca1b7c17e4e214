// Package portal opens the provider's self-service billing portal.
package portal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/storytime-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storytime-billing/internal/http/response"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
)

// Request is the optional body of POST /billing/portal.
type Request struct {
	ReturnURL string `json:"return_url" validate:"omitempty,url"`
}

// Handler serves POST /billing/portal.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service creates portal sessions.
type Service interface {
	PortalURL(ctx context.Context, userID, returnURL string) (string, error)
}

// New creates a Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Billing portal link
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request false "Where the portal returns to"
// @Success 200 {object} response.Response{data=map[string]string}
// @Failure 409 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /billing/portal [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.portal"
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
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	url, err := h.service.PortalURL(r.Context(), userID, req.ReturnURL)
	if err != nil {
		log.Error("failed to create portal session", slog.String("user_id", userID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]string{"url": url}))
}
