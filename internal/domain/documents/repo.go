package documents

import (
	"context"

	"github.com/google/uuid"
)

type AttachmentRepository interface {
	ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*Attachment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Attachment, error)
	GetByFHIRID(ctx context.Context, fhirID string) (*Attachment, error)
	Create(ctx context.Context, a *Attachment) error
	// DeleteByFHIRID reports whether a row was removed.
	DeleteByFHIRID(ctx context.Context, fhirID string) (bool, error)
}
