package orderview

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/ordercapture/internal/domain/catalog"
	"github.com/ehr/ordercapture/internal/domain/diagnostics"
	"github.com/ehr/ordercapture/internal/domain/documents"
	"github.com/ehr/ordercapture/internal/platform/db"
)

type OrderSource interface {
	GetOrder(ctx context.Context, fhirID string) (*diagnostics.Order, error)
	CandidateResults(ctx context.Context, order *diagnostics.Order) ([]*diagnostics.ResultRecord, error)
}

type AttachmentSource interface {
	CandidateAttachments(ctx context.Context, order *diagnostics.Order) ([]*documents.Attachment, error)
}

type CatalogSource interface {
	ActiveDefinitions(ctx context.Context) ([]*catalog.Definition, error)
	LogResolution(order catalog.Orderable, res catalog.Resolution)
}

// Schema is the resolved field schema of one order.
type Schema struct {
	Fields     []catalog.ResultField `json:"fields"`
	Fallback   bool                  `json:"fallback"`
	Definition string                `json:"definition,omitempty"`
}

// View is everything a capture screen needs for one order.
type View struct {
	Order       *diagnostics.Order         `json:"order"`
	Category    string                     `json:"category,omitempty"`
	Schema      Schema                     `json:"schema"`
	Results     []diagnostics.LinkedResult `json:"results"`
	Attachments []*documents.Attachment    `json:"attachments"`
}

// Forker scopes one concurrent read. release is called when the read ends.
type Forker func(ctx context.Context) (fctx context.Context, release func(), err error)

func noFork(ctx context.Context) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

type Service struct {
	orders      OrderSource
	attachments AttachmentSource
	catalog     CatalogSource
	fork        Forker
	logger      zerolog.Logger
}

func NewService(orders OrderSource, attachments AttachmentSource, cat CatalogSource, logger zerolog.Logger) *Service {
	return &Service{
		orders:      orders,
		attachments: attachments,
		catalog:     cat,
		fork:        noFork,
		logger:      logger.With().Str("component", "orderview").Logger(),
	}
}

// WithForker sets how each concurrent read in Get obtains its store handle.
func (s *Service) WithForker(f Forker) *Service {
	if f != nil {
		s.fork = f
	}
	return s
}

// Get loads the order, then its candidate records and the active catalog
// concurrently. The first failing read cancels the others. When no extra
// connection can be forked the reads run one after another on ctx.
func (s *Service) Get(ctx context.Context, orderFHIRID string) (*View, error) {
	order, err := s.orders.GetOrder(ctx, orderFHIRID)
	if err != nil {
		return nil, err
	}

	var r reads
	err = s.readConcurrently(ctx, order, &r)
	if errors.Is(err, db.ErrForkUnavailable) && ctx.Err() == nil {
		s.logger.Warn().Err(err).Str("order", order.Reference()).Msg("reading order view sequentially")
		r = reads{}
		err = s.readSequentially(ctx, order, &r)
	}
	if err != nil {
		return nil, err
	}

	return &View{
		Order:       order,
		Category:    order.Category(),
		Schema:      s.resolve(order, r.defs),
		Results:     diagnostics.ResolveResultsWithRules(order, r.results),
		Attachments: documents.ResolveAttachments(order, r.attachments),
	}, nil
}

type reads struct {
	results     []*diagnostics.ResultRecord
	attachments []*documents.Attachment
	defs        []*catalog.Definition
}

func (s *Service) readSteps(order *diagnostics.Order, r *reads) []func(ctx context.Context) error {
	return []func(ctx context.Context) error{
		func(ctx context.Context) (err error) {
			r.results, err = s.orders.CandidateResults(ctx, order)
			return err
		},
		func(ctx context.Context) (err error) {
			r.attachments, err = s.attachments.CandidateAttachments(ctx, order)
			return err
		},
		func(ctx context.Context) (err error) {
			r.defs, err = s.catalog.ActiveDefinitions(ctx)
			return err
		},
	}
}

func (s *Service) readConcurrently(ctx context.Context, order *diagnostics.Order, r *reads) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, step := range s.readSteps(order, r) {
		step := step
		g.Go(func() error {
			fctx, release, err := s.fork(gctx)
			if err != nil {
				return err
			}
			defer release()
			return step(fctx)
		})
	}
	return g.Wait()
}

func (s *Service) readSequentially(ctx context.Context, order *diagnostics.Order, r *reads) error {
	for _, step := range s.readSteps(order, r) {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Schema resolves only the field schema of an order.
func (s *Service) Schema(ctx context.Context, orderFHIRID string) (Schema, error) {
	order, err := s.orders.GetOrder(ctx, orderFHIRID)
	if err != nil {
		return Schema{}, err
	}
	defs, err := s.catalog.ActiveDefinitions(ctx)
	if err != nil {
		return Schema{}, err
	}
	return s.resolve(order, defs), nil
}

func (s *Service) resolve(order *diagnostics.Order, defs []*catalog.Definition) Schema {
	res := catalog.Resolve(order, defs)
	s.catalog.LogResolution(order, res)
	out := Schema{Fields: res.Fields, Fallback: res.Fallback}
	if res.Definition != nil {
		out.Definition = res.Definition.FHIRID
	}
	return out
}

// LinkedResources renders the linked results and attachments of an order as
// FHIR resources, results first.
func (s *Service) LinkedResources(ctx context.Context, orderFHIRID string) ([]map[string]interface{}, error) {
	view, err := s.Get(ctx, orderFHIRID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(view.Results)+len(view.Attachments))
	for _, lr := range view.Results {
		out = append(out, lr.Record.ToFHIR())
	}
	for _, a := range view.Attachments {
		out = append(out, a.ToFHIR())
	}
	return out, nil
}
