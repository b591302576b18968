package documents

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/ehr/ordercapture/internal/domain/diagnostics"
	"github.com/ehr/ordercapture/internal/platform/auth"
	"github.com/ehr/ordercapture/internal/platform/db"
	"github.com/ehr/ordercapture/internal/platform/events"
	"github.com/ehr/ordercapture/internal/platform/fhir"
)

// DefaultMaxBytes caps an upload when no limit is configured.
const DefaultMaxBytes int64 = 10 << 20

// OrderLookup loads orders by store id.
type OrderLookup interface {
	GetOrder(ctx context.Context, fhirID string) (*diagnostics.Order, error)
}

// Upload is a file submitted for an order.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type Service struct {
	orders   OrderLookup
	repo     AttachmentRepository
	events   events.Publisher
	logger   zerolog.Logger
	maxBytes int64
}

func NewService(orders OrderLookup, repo AttachmentRepository, pub events.Publisher, logger zerolog.Logger, maxBytes int64) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{
		orders:   orders,
		repo:     repo,
		events:   pub,
		logger:   logger.With().Str("component", "documents").Logger(),
		maxBytes: maxBytes,
	}
}

// MaxBytes is the largest accepted payload.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// CandidateAttachments loads the attachments of the order's encounter, or of
// its subject when the order has no encounter.
func (s *Service) CandidateAttachments(ctx context.Context, order *diagnostics.Order) ([]*Attachment, error) {
	if order.EncounterID != nil {
		return s.repo.ListByEncounter(ctx, *order.EncounterID)
	}
	return s.repo.ListByPatient(ctx, order.PatientID)
}

func (s *Service) ListForOrder(ctx context.Context, order *diagnostics.Order) ([]*Attachment, error) {
	candidates, err := s.CandidateAttachments(ctx, order)
	if err != nil {
		return nil, err
	}
	return ResolveAttachments(order, candidates), nil
}

// OrderAttachments loads the order by id and lists its attachments.
func (s *Service) OrderAttachments(ctx context.Context, orderFHIRID string) ([]*Attachment, error) {
	order, err := s.orders.GetOrder(ctx, orderFHIRID)
	if err != nil {
		return nil, err
	}
	return s.ListForOrder(ctx, order)
}

func (s *Service) GetAttachment(ctx context.Context, fhirID string) (*Attachment, error) {
	if strings.TrimSpace(fhirID) == "" {
		return nil, fhir.NewValidationError("id", "attachment id is required")
	}
	return s.repo.GetByFHIRID(ctx, fhirID)
}

// AddAttachment always creates a new record linked to order. The payload is
// read in full before the write; a read failure or an oversize payload
// writes nothing.
func (s *Service) AddAttachment(ctx context.Context, order *diagnostics.Order, upload Upload, note string) (*Attachment, error) {
	if order == nil {
		return nil, fhir.NewValidationError("order", "is required")
	}
	if upload.Body == nil {
		return nil, fhir.NewValidationError("file", "is required")
	}

	data, err := io.ReadAll(io.LimitReader(upload.Body, s.maxBytes+1))
	if err != nil {
		return nil, fhir.NewValidationError("file", "could not be read: %v", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fhir.NewValidationError("file", "exceeds the %d byte limit", s.maxBytes)
	}
	if len(data) == 0 {
		return nil, fhir.NewValidationError("file", "is empty")
	}

	sum := sha256.Sum256(data)
	a := &Attachment{
		Status:          StatusCurrent,
		PatientID:       order.PatientID,
		EncounterID:     order.EncounterID,
		RelatedOrderRef: order.Reference(),
		ContentType:     contentTypeOf(upload.ContentType, data),
		Data:            data,
		Size:            len(data),
		Hash:            base64.StdEncoding.EncodeToString(sum[:]),
	}
	if title := filepath.Base(strings.TrimSpace(upload.Filename)); title != "" && title != "." {
		a.Title = &title
	}
	if note = strings.TrimSpace(note); note != "" {
		a.Description = &note
	}
	if author := auth.UserIDFromContext(ctx); author != "" {
		a.AuthorID = &author
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	events.PublishQuietly(ctx, s.events, s.logger, events.Event{
		Type:         events.TypeAttachmentCreated,
		Tenant:       db.TenantFromContext(ctx),
		OrderRef:     a.RelatedOrderRef,
		ResourceType: "DocumentReference",
		ResourceID:   a.FHIRID,
		Attributes:   map[string]string{"content_type": a.ContentType},
	})
	s.logger.Info().
		Str("order", a.RelatedOrderRef).
		Str("attachment", a.FHIRID).
		Int("size", a.Size).
		Msg("attachment created")
	return a, nil
}

// AddAttachmentForOrder loads the order by id and adds the upload to it.
func (s *Service) AddAttachmentForOrder(ctx context.Context, orderFHIRID string, upload Upload, note string) (*Attachment, error) {
	order, err := s.orders.GetOrder(ctx, orderFHIRID)
	if err != nil {
		return nil, err
	}
	return s.AddAttachment(ctx, order, upload, note)
}

// RemoveAttachment deletes by id. A missing id is not an error.
func (s *Service) RemoveAttachment(ctx context.Context, fhirID string) error {
	if strings.TrimSpace(fhirID) == "" {
		return fhir.NewValidationError("id", "attachment id is required")
	}
	existing, err := s.repo.GetByFHIRID(ctx, fhirID)
	if err != nil && !errors.Is(err, fhir.ErrNotFound) {
		return err
	}

	deleted, err := s.repo.DeleteByFHIRID(ctx, fhirID)
	if err != nil {
		return err
	}
	if !deleted {
		s.logger.Debug().Str("attachment", fhirID).Msg("attachment already absent")
		return nil
	}

	evt := events.Event{
		Type:         events.TypeAttachmentDeleted,
		Tenant:       db.TenantFromContext(ctx),
		ResourceType: "DocumentReference",
		ResourceID:   fhirID,
	}
	if existing != nil {
		evt.OrderRef = existing.RelatedOrderRef
	}
	events.PublishQuietly(ctx, s.events, s.logger, evt)
	s.logger.Info().Str("attachment", fhirID).Msg("attachment deleted")
	return nil
}

// contentTypeOf keeps a declared type and sniffs the payload otherwise.
func contentTypeOf(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}
