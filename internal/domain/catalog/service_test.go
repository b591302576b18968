package catalog

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/ordercapture/internal/platform/fhir"
)

type mockRepo struct {
	defs    []*Definition
	listErr error
}

func (m *mockRepo) ListActive(_ context.Context) ([]*Definition, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*Definition
	for _, d := range m.defs {
		if d.Status == StatusActive {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockRepo) List(_ context.Context, status string, limit, offset int) ([]*Definition, int, error) {
	var out []*Definition
	for _, d := range m.defs {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockRepo) Upsert(_ context.Context, d *Definition) (bool, error) {
	for i, existing := range m.defs {
		if existing.Code() == d.Code() {
			d.ID, d.FHIRID = existing.ID, existing.FHIRID
			m.defs[i] = d
			return false, nil
		}
	}
	d.ID = uuid.New()
	d.FHIRID = d.ID.String()
	m.defs = append(m.defs, d)
	return true, nil
}

func TestService_SchemaForOrder_LogsDecodeError(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockRepo{defs: []*Definition{def("cbc", "CBC", "{broken")}}
	svc := NewService(repo, zerolog.New(&buf))

	fields, err := svc.SchemaForOrder(context.Background(), testOrder{code: "cbc", text: "Complete Blood Count"})
	require.NoError(t, err)
	assert.Equal(t, "result", fields[0].Name)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "def-cbc")
}

func TestService_SchemaForOrder_IgnoresInactive(t *testing.T) {
	retired := def("cbc", "CBC", cbcSchema)
	retired.Status = StatusRetired
	svc := NewService(&mockRepo{defs: []*Definition{retired}}, zerolog.Nop())

	fields, err := svc.SchemaForOrder(context.Background(), testOrder{code: "cbc"})
	require.NoError(t, err)
	assert.Equal(t, []ResultField{{Name: "result", Label: "cbc", Type: FieldString}}, fields)
}

func TestService_SchemaForOrder_StoreError(t *testing.T) {
	storeErr := fhir.WrapStore("list", "ActivityDefinition", errors.New("connection reset"))
	svc := NewService(&mockRepo{listErr: storeErr}, zerolog.Nop())

	_, err := svc.SchemaForOrder(context.Background(), testOrder{code: "cbc"})
	require.ErrorIs(t, err, storeErr)
}

func TestService_ListDefinitions_InvalidStatus(t *testing.T) {
	svc := NewService(&mockRepo{}, zerolog.Nop())
	_, _, err := svc.ListDefinitions(context.Background(), "bogus", 10, 0)

	var ve *fhir.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "status", ve.Issues[0].Field)
}

func TestService_Import(t *testing.T) {
	repo := &mockRepo{defs: []*Definition{def("cbc", "Old CBC", "")}}
	svc := NewService(repo, zerolog.Nop())

	defs, err := LoadDefinitionsYAML(strings.NewReader(seedYAML))
	require.NoError(t, err)

	sum, err := svc.Import(context.Background(), defs)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Created: 1, Updated: 1}, sum)
	assert.Len(t, repo.defs, 2)
	assert.Equal(t, "Complete Blood Count", repo.defs[0].Title)
}

func TestService_Import_ValidatesEverythingFirst(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, zerolog.Nop())

	bad := []*Definition{
		def("ok", "Fine", ""),
		def("", "No Code", ""),
		def("dup", "A", ""),
		def("dup", "B", ""),
		{IdentifierCode: ptr("s"), Title: "Bad Schema", FieldSchema: ptr("[]")},
	}
	_, err := svc.Import(context.Background(), bad)

	var ve *fhir.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Issues, 3)
	assert.Empty(t, repo.defs, "nothing may be written when validation fails")
}

func TestService_Import_NilDefinition(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, zerolog.Nop())

	_, err := svc.Import(context.Background(), []*Definition{def("ok", "Fine", ""), nil})

	var ve *fhir.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Issues, 1)
	assert.Equal(t, "definitions[1]", ve.Issues[0].Field)
	assert.Empty(t, repo.defs)
}
