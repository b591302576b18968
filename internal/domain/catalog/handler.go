package catalog

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ordercapture/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/catalog-definitions", h.ListDefinitions)
}

func (h *Handler) ListDefinitions(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDefinitions(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
