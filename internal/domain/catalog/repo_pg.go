package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/ordercapture/internal/platform/db"
	"github.com/ehr/ordercapture/internal/platform/fhir"
)

type definitionRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &definitionRepoPG{pool: pool}
}

func (r *definitionRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const defCols = `id, fhir_id, status, identifier_code, title, description, kind,
	field_schema, created_at, updated_at`

func scanDefinition(row pgx.Row) (*Definition, error) {
	var d Definition
	err := row.Scan(&d.ID, &d.FHIRID, &d.Status, &d.IdentifierCode, &d.Title, &d.Description,
		&d.Kind, &d.FieldSchema, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *definitionRepoPG) ListActive(ctx context.Context) ([]*Definition, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+defCols+`
		FROM activity_definition WHERE status = 'active' ORDER BY identifier_code, updated_at DESC`)
	if err != nil {
		return nil, fhir.WrapStore("list", "ActivityDefinition", err)
	}
	defer rows.Close()
	out, err := collect(rows)
	return out, fhir.WrapStore("list", "ActivityDefinition", err)
}

func (r *definitionRepoPG) List(ctx context.Context, status string, limit, offset int) ([]*Definition, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM activity_definition WHERE ($1 = '' OR status = $1)`, status,
	).Scan(&total); err != nil {
		return nil, 0, fhir.WrapStore("count", "ActivityDefinition", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+defCols+`
		FROM activity_definition WHERE ($1 = '' OR status = $1)
		ORDER BY title, id LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, fhir.WrapStore("list", "ActivityDefinition", err)
	}
	defer rows.Close()
	out, err := collect(rows)
	if err != nil {
		return nil, 0, fhir.WrapStore("list", "ActivityDefinition", err)
	}
	return out, total, nil
}

func collect(rows pgx.Rows) ([]*Definition, error) {
	var out []*Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *definitionRepoPG) Upsert(ctx context.Context, d *Definition) (bool, error) {
	var existing uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id FROM activity_definition
		WHERE identifier_code = $1
		ORDER BY (status = 'active') DESC, updated_at DESC LIMIT 1`, d.IdentifierCode,
	).Scan(&existing)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		d.ID = uuid.New()
		if d.FHIRID == "" {
			d.FHIRID = d.ID.String()
		}
		err = r.conn(ctx).QueryRow(ctx, `
			INSERT INTO activity_definition (id, fhir_id, status, identifier_code, title, description, kind, field_schema)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING created_at, updated_at`,
			d.ID, d.FHIRID, d.Status, d.IdentifierCode, d.Title, d.Description, d.Kind, d.FieldSchema,
		).Scan(&d.CreatedAt, &d.UpdatedAt)
		return err == nil, fhir.WrapStore("create", "ActivityDefinition", err)
	case err != nil:
		return false, fhir.WrapStore("get", "ActivityDefinition", err)
	}

	d.ID = existing
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE activity_definition
		SET status = $2, title = $3, description = $4, kind = $5, field_schema = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING fhir_id, created_at, updated_at`,
		d.ID, d.Status, d.Title, d.Description, d.Kind, d.FieldSchema,
	).Scan(&d.FHIRID, &d.CreatedAt, &d.UpdatedAt)
	return false, fhir.WrapStore("update", "ActivityDefinition", err)
}
