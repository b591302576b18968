package documents

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

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
	api.GET("/orders/:id/attachments", h.ListOrderAttachments)
	api.POST("/orders/:id/attachments", h.AddOrderAttachment)
	api.DELETE("/attachments/:id", h.RemoveAttachment)
	api.GET("/attachments/:id/content", h.DownloadAttachment)

	fhirGroup.GET("/DocumentReference/:id", h.GetDocumentReferenceFHIR)
}

func (h *Handler) ListOrderAttachments(c echo.Context) error {
	items, err := h.svc.OrderAttachments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddOrderAttachment(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return fhir.NewValidationError("file", "is required")
	}
	if file.Size > h.svc.MaxBytes() {
		return fhir.NewValidationError("file", "exceeds the %d byte limit", h.svc.MaxBytes())
	}
	src, err := file.Open()
	if err != nil {
		return fhir.NewValidationError("file", "could not be read: %v", err)
	}
	defer src.Close()

	upload := Upload{
		Filename:    file.Filename,
		ContentType: file.Header.Get(echo.HeaderContentType),
		Body:        src,
	}
	a, err := h.svc.AddAttachmentForOrder(c.Request().Context(), c.Param("id"), upload, c.FormValue("note"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) RemoveAttachment(c echo.Context) error {
	if err := h.svc.RemoveAttachment(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DownloadAttachment(c echo.Context) error {
	a, err := h.svc.GetAttachment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if a.Title != nil {
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", strconv.Quote(*a.Title)))
	}
	return c.Blob(http.StatusOK, a.ContentType, a.Data)
}

func (h *Handler) GetDocumentReferenceFHIR(c echo.Context) error {
	a, err := h.svc.GetAttachment(c.Request().Context(), c.Param("id"))
	if errors.Is(err, fhir.ErrNotFound) {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("DocumentReference", c.Param("id")))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a.ToFHIR())
}
