package diagnostics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/ordercapture/internal/domain/catalog"
	"github.com/ehr/ordercapture/internal/platform/auth"
	"github.com/ehr/ordercapture/internal/platform/db"
	"github.com/ehr/ordercapture/internal/platform/events"
	"github.com/ehr/ordercapture/internal/platform/fhir"
)

// SchemaProvider resolves the capturable fields of an order.
type SchemaProvider interface {
	SchemaForOrder(ctx context.Context, order catalog.Orderable) ([]catalog.ResultField, error)
}

type Service struct {
	orders  OrderRepository
	results ResultRepository
	schemas SchemaProvider
	tx      db.Transactor
	events  events.Publisher
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(orders OrderRepository, results ResultRepository, schemas SchemaProvider,
	tx db.Transactor, pub events.Publisher, logger zerolog.Logger) *Service {
	if tx == nil {
		tx = db.NoTx{}
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{
		orders:  orders,
		results: results,
		schemas: schemas,
		tx:      tx,
		events:  pub,
		logger:  logger.With().Str("component", "diagnostics").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// -- Orders --

func (s *Service) GetOrder(ctx context.Context, fhirID string) (*Order, error) {
	if strings.TrimSpace(fhirID) == "" {
		return nil, fhir.NewValidationError("id", "order id is required")
	}
	return s.orders.GetByFHIRID(ctx, fhirID)
}

func (s *Service) ListEncounterOrders(ctx context.Context, encounterID uuid.UUID) ([]*Order, error) {
	return s.orders.ListByEncounter(ctx, encounterID)
}

// -- Results --

// CandidateResults loads the records linkage runs over: the order's
// encounter, or the subject's records when the order has no encounter.
func (s *Service) CandidateResults(ctx context.Context, order *Order) ([]*ResultRecord, error) {
	if order.EncounterID != nil {
		return s.results.ListByEncounter(ctx, *order.EncounterID)
	}
	return s.results.ListByPatient(ctx, order.PatientID)
}

func (s *Service) LinkedResults(ctx context.Context, order *Order) ([]LinkedResult, error) {
	candidates, err := s.CandidateResults(ctx, order)
	if err != nil {
		return nil, err
	}
	return ResolveResultsWithRules(order, candidates), nil
}

// CaptureResults upserts one record per schema field with a value. All
// values are validated before the first write; all writes share one
// transaction.
func (s *Service) CaptureResults(ctx context.Context, order *Order, values map[string]interface{},
	schema []catalog.ResultField, existing []*ResultRecord) ([]*ResultRecord, error) {

	steps, err := PlanCapture(order, values, schema, existing, auth.UserIDFromContext(ctx), s.now())
	if err != nil {
		return nil, err
	}
	saved := make([]*ResultRecord, 0, len(steps))
	if len(steps) == 0 {
		return saved, nil
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, step := range steps {
			var err error
			if step.Create {
				err = s.results.Create(ctx, step.Record)
			} else {
				err = s.results.Update(ctx, step.Record)
			}
			if err != nil {
				return &FieldError{Field: step.Field.Name, Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	created := 0
	evts := make([]events.Event, 0, len(steps))
	for _, step := range steps {
		saved = append(saved, step.Record)
		if step.Create {
			created++
		}
		evts = append(evts, events.Event{
			Type:         events.TypeResultCaptured,
			Tenant:       db.TenantFromContext(ctx),
			OrderRef:     order.Reference(),
			ResourceType: "Observation",
			ResourceID:   step.Record.FHIRID,
			Attributes: map[string]string{
				"field":   step.Field.Name,
				"created": fmt.Sprint(step.Create),
			},
		})
	}
	events.PublishQuietly(ctx, s.events, s.logger, evts...)
	s.logger.Info().
		Str("order", order.Reference()).
		Int("created", created).
		Int("updated", len(steps)-created).
		Msg("results captured")
	return saved, nil
}

// CaptureForOrder loads the order, its schema and candidate records, then
// captures values.
func (s *Service) CaptureForOrder(ctx context.Context, orderFHIRID string, values map[string]interface{}) ([]*ResultRecord, error) {
	order, err := s.GetOrder(ctx, orderFHIRID)
	if err != nil {
		return nil, err
	}
	schema, err := s.schemas.SchemaForOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	existing, err := s.CandidateResults(ctx, order)
	if err != nil {
		return nil, err
	}
	return s.CaptureResults(ctx, order, values, schema, existing)
}
