package response

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/services/subscription"
	"github.com/magabrotheeeer/storytime-billing/internal/storage"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

// FromError maps a service error to an HTTP status and a client safe message.
func FromError(err error) (int, string) {
	var pe *models.ProviderError
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		return http.StatusNotFound, "No subscription found"
	case errors.Is(err, subscription.ErrUserNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, subscription.ErrNoLiveSubscription):
		return http.StatusConflict, "No active paid subscription"
	case errors.Is(err, subscription.ErrSameTier):
		return http.StatusConflict, "Subscription is already on this plan"
	case errors.Is(err, subscription.ErrAlreadySubscribed):
		return http.StatusConflict, "You already have an active subscription. Change your plan instead"
	case errors.Is(err, subscription.ErrNoCustomer):
		return http.StatusConflict, "No billing account found"
	case errors.Is(err, subscription.ErrFreeTierCheckout):
		return http.StatusBadRequest, "Cannot create checkout session for free tier"
	case errors.Is(err, tiers.ErrPriceNotConfigured):
		return http.StatusServiceUnavailable, "Plan is not available right now"
	case errors.As(err, &pe):
		return http.StatusBadGateway, "Billing provider error"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// RenderError writes the mapped status and message for err.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := FromError(err)
	render.Status(r, status)
	render.JSON(w, r, Error(msg))
}

// RenderErrorMessage is RenderError with msg replacing the mapped message when
// the service supplied one.
func RenderErrorMessage(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status, mapped := FromError(err)
	if msg == "" {
		msg = mapped
	}
	render.Status(r, status)
	render.JSON(w, r, Error(msg))
}
