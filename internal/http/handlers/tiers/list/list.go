// Package list serves the public tier catalog.
package list

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storytime-billing/internal/http/response"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

// Handler serves GET /tiers.
type Handler struct {
	catalog []tiers.Info
}

// New creates a Handler over the built-in catalog.
func New() *Handler {
	return &Handler{catalog: tiers.All()}
}

// ServeHTTP godoc
// @Summary List plans
// @Tags Tiers
// @Produce json
// @Success 200 {object} response.Response{data=[]tiers.Info}
// @Router /tiers [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.OKWithData(h.catalog))
}
