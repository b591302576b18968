package documents

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ordercapture/internal/platform/fhir"
)

func multipartRequest(t *testing.T, filename string, content []byte, note string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(content)
	}
	if note != "" {
		w.WriteField("note", note)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestHandler_AddOrderAttachment(t *testing.T) {
	o1, _ := sharedCodeOrders()
	svc, repo, _ := newTestService(0, o1)
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(multipartRequest(t, "scan.pdf", []byte(pdfPayload), "lateral"), rec)
	c.SetParamNames("id")
	c.SetParamValues("o1")

	if err := h.AddOrderAttachment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["related_order_ref"] != "ServiceRequest/o1" {
		t.Errorf("unexpected related_order_ref %v", body["related_order_ref"])
	}
	if body["description"] != "lateral" {
		t.Errorf("unexpected description %v", body["description"])
	}
	if len(repo.items) != 1 {
		t.Errorf("expected 1 stored attachment, got %d", len(repo.items))
	}
}

func TestHandler_AddOrderAttachment_MissingFile(t *testing.T) {
	o1, _ := sharedCodeOrders()
	svc, _, _ := newTestService(0, o1)
	h := NewHandler(svc)
	e := echo.New()

	c := e.NewContext(multipartRequest(t, "", nil, "just a note"), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("o1")

	var ve *fhir.ValidationError
	if err := h.AddOrderAttachment(c); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestHandler_AddOrderAttachment_TooLarge(t *testing.T) {
	o1, _ := sharedCodeOrders()
	svc, repo, _ := newTestService(8, o1)
	h := NewHandler(svc)
	e := echo.New()

	c := e.NewContext(multipartRequest(t, "scan.pdf", []byte(pdfPayload), ""), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("o1")

	err := h.AddOrderAttachment(c)
	if status, _ := fhir.OutcomeForError(err); status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d (%v)", status, err)
	}
	if len(repo.items) != 0 {
		t.Error("nothing may be stored for an oversize upload")
	}
}

func TestHandler_ListOrderAttachments(t *testing.T) {
	o1, o2 := sharedCodeOrders()
	svc, repo, _ := newTestService(0, o1, o2)
	repo.items = []*Attachment{
		{FHIRID: "a1", PatientID: o1.PatientID, EncounterID: o1.EncounterID, RelatedOrderRef: "ServiceRequest/o1"},
		{FHIRID: "a2", PatientID: o1.PatientID, EncounterID: o1.EncounterID, RelatedOrderRef: "ServiceRequest/o2"},
	}
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("o2")

	if err := h.ListOrderAttachments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body []map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body) != 1 || body[0]["fhir_id"] != "a2" {
		t.Errorf("unexpected attachments %v", body)
	}
}

func TestHandler_RemoveAttachment(t *testing.T) {
	svc, repo, _ := newTestService(0)
	repo.items = []*Attachment{{FHIRID: "a1", RelatedOrderRef: "ServiceRequest/o1"}}
	h := NewHandler(svc)
	e := echo.New()

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
		c.SetParamNames("id")
		c.SetParamValues("a1")

		if err := h.RemoveAttachment(c); err != nil {
			t.Fatalf("delete %d: unexpected error: %v", i, err)
		}
		if rec.Code != http.StatusNoContent {
			t.Errorf("delete %d: expected 204, got %d", i, rec.Code)
		}
	}
}

func TestHandler_DownloadAttachment(t *testing.T) {
	svc, repo, _ := newTestService(0)
	title := "scan.pdf"
	repo.items = []*Attachment{{FHIRID: "a1", ContentType: "application/pdf", Data: []byte(pdfPayload), Title: &title}}
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("a1")

	if err := h.DownloadAttachment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.String() != pdfPayload {
		t.Error("expected raw payload")
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
		t.Errorf("unexpected content type %s", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); cd != `attachment; filename="scan.pdf"` {
		t.Errorf("unexpected disposition %s", cd)
	}
}

func TestHandler_GetDocumentReferenceFHIR_NotFound(t *testing.T) {
	svc, _, _ := newTestService(0)
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("nope")

	if err := h.GetDocumentReferenceFHIR(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
