package diagnostics

import (
	"context"

	"github.com/google/uuid"
)

type OrderRepository interface {
	GetByFHIRID(ctx context.Context, fhirID string) (*Order, error)
	ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*Order, error)
}

type ResultRepository interface {
	ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*ResultRecord, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ResultRecord, error)
	Create(ctx context.Context, r *ResultRecord) error
	Update(ctx context.Context, r *ResultRecord) error
}
