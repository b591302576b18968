package diagnostics

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
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
	api.GET("/encounters/:id/orders", h.ListEncounterOrders)
	api.GET("/orders/:id/results", h.ListOrderResults)
	api.POST("/orders/:id/results", h.CaptureOrderResults)

	fhirGroup.GET("/ServiceRequest/:id", h.GetServiceRequestFHIR)
}

// CaptureRequest is the body of POST /orders/:id/results. Keys of Values
// must be field names of the order's schema (GET /orders/:id/schema); any
// other key rejects the whole request with 422 and nothing is written. Null
// or blank values leave the stored record untouched.
type CaptureRequest struct {
	Values map[string]interface{} `json:"values"`
}

func (h *Handler) ListEncounterOrders(c echo.Context) error {
	encounterID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter id")
	}
	orders, err := h.svc.ListEncounterOrders(c.Request().Context(), encounterID)
	if err != nil {
		return err
	}
	if orders == nil {
		orders = []*Order{}
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *Handler) ListOrderResults(c echo.Context) error {
	ctx := c.Request().Context()
	order, err := h.svc.GetOrder(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	linked, err := h.svc.LinkedResults(ctx, order)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, linked)
}

func (h *Handler) CaptureOrderResults(c echo.Context) error {
	var req CaptureRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Values) == 0 {
		return fhir.NewValidationError("values", "at least one value is required")
	}
	saved, err := h.svc.CaptureForOrder(c.Request().Context(), c.Param("id"), req.Values)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) GetServiceRequestFHIR(c echo.Context) error {
	order, err := h.svc.GetOrder(c.Request().Context(), c.Param("id"))
	if errors.Is(err, fhir.ErrNotFound) {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("ServiceRequest", c.Param("id")))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order.ToFHIR())
}
