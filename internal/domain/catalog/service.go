package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/ordercapture/internal/platform/fhir"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "catalog").Logger()}
}

// SchemaForOrder resolves the field schema for order against the active
// definitions. Only store failures are returned.
func (s *Service) SchemaForOrder(ctx context.Context, order Orderable) ([]ResultField, error) {
	res, err := s.Resolve(ctx, order)
	if err != nil {
		return nil, err
	}
	return res.Fields, nil
}

func (s *Service) Resolve(ctx context.Context, order Orderable) (Resolution, error) {
	defs, err := s.repo.ListActive(ctx)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolve(order, defs)
	s.LogResolution(order, res)
	return res, nil
}

// LogResolution records a swallowed schema decode failure.
func (s *Service) LogResolution(order Orderable, res Resolution) {
	if res.DecodeErr == nil {
		return
	}
	evt := s.logger.Warn()
	if errors.Is(res.DecodeErr, ErrNoSchema) {
		evt = s.logger.Debug()
	}
	evt.Err(res.DecodeErr).
		Str("order_code", order.OrderCode()).
		Str("definition", res.DecodeErr.DefinitionID).
		Msg("using fallback result field")
}

func (s *Service) ActiveDefinitions(ctx context.Context) ([]*Definition, error) {
	return s.repo.ListActive(ctx)
}

func (s *Service) ListDefinitions(ctx context.Context, status string, limit, offset int) ([]*Definition, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, fhir.NewValidationError("status", "invalid status %q", status)
	}
	return s.repo.List(ctx, status, limit, offset)
}

// ImportSummary counts the outcome of Import.
type ImportSummary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Import validates every definition before writing any of them.
func (s *Service) Import(ctx context.Context, defs []*Definition) (ImportSummary, error) {
	var sum ImportSummary
	ve := &fhir.ValidationError{}
	codes := make(map[string]bool, len(defs))
	for i, d := range defs {
		field := fmt.Sprintf("definitions[%d]", i)
		if d == nil {
			ve.Add(field, "is required")
			continue
		}
		if err := validateDefinition(d); err != nil {
			ve.Add(field, "%v", err)
			continue
		}
		if codes[d.Code()] {
			ve.Add(field, "duplicate identifier code %q", d.Code())
		}
		codes[d.Code()] = true
	}
	if err := ve.ErrOrNil(); err != nil {
		return sum, err
	}

	for _, d := range defs {
		created, err := s.repo.Upsert(ctx, d)
		if err != nil {
			return sum, err
		}
		if created {
			sum.Created++
		} else {
			sum.Updated++
		}
	}
	s.logger.Info().Int("created", sum.Created).Int("updated", sum.Updated).Msg("catalog imported")
	return sum, nil
}

func validateDefinition(d *Definition) error {
	if d.Code() == "" {
		return fmt.Errorf("identifier code is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if d.Status == "" {
		d.Status = StatusActive
	}
	if !validStatuses[d.Status] {
		return fmt.Errorf("invalid status %q", d.Status)
	}
	if d.FieldSchema != nil {
		if _, err := DecodeFieldSchema(d.FieldSchema); err != nil {
			return fmt.Errorf("field schema: %w", err)
		}
	}
	return nil
}
