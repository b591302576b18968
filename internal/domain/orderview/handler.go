package orderview

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ordercapture/internal/platform/fhir"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	api.GET("/orders/:id", h.GetOrderView)
	api.GET("/orders/:id/schema", h.GetOrderSchema)

	fhirGroup.GET("/ServiceRequest/:id/$linked", h.LinkedFHIR)
}

func (h *Handler) GetOrderView(c echo.Context) error {
	view, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) GetOrderSchema(c echo.Context) error {
	schema, err := h.svc.Schema(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, schema)
}

func (h *Handler) LinkedFHIR(c echo.Context) error {
	resources, err := h.svc.LinkedResources(c.Request().Context(), c.Param("id"))
	if errors.Is(err, fhir.ErrNotFound) {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("ServiceRequest", c.Param("id")))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fhir.NewSearchBundle(resources, c.Request().URL.String()))
}
