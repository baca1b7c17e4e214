// Package sync registers the authenticated user with the billing service.
package sync

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

// Request is the optional body of POST /users/sync. The token email is used when omitted.
type Request struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// Handler serves POST /users/sync.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service creates users with a free subscription.
type Service interface {
	SyncUser(ctx context.Context, userID, email string) (bool, error)
}

// New creates a Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Register the caller
// @Description Idempotent. Answers 201 when the user was created and 200 when it already existed.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request false "Contact email"
// @Success 200 {object} response.Response
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /users/sync [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.sync"
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
	email := req.Email
	if email == "" {
		email = middlewarectx.EmailFrom(r.Context())
	}

	created, err := h.service.SyncUser(r.Context(), userID, email)
	if err != nil {
		log.Error("failed to sync user", slog.String("user_id", userID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	if created {
		log.Info("user created", slog.String("user_id", userID))
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, response.OKWithData(map[string]any{"user_id": userID, "created": created}))
}
