package diagnostics

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/ordercapture/internal/platform/db"
	"github.com/ehr/ordercapture/internal/platform/fhir"
)

// =========== Order (ServiceRequest) Repository ===========

type orderRepoPG struct{ pool *pgxpool.Pool }

func NewOrderRepoPG(pool *pgxpool.Pool) OrderRepository {
	return &orderRepoPG{pool: pool}
}

func (r *orderRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const orderCols = `id, fhir_id, patient_id, encounter_id, requester_id, status, intent, priority,
	category_code, category_display, code_system,
	COALESCE(code_value, ''), COALESCE(code_display, ''), COALESCE(code_text, ''),
	authored_on, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.FHIRID, &o.PatientID, &o.EncounterID, &o.RequesterID, &o.Status, &o.Intent, &o.Priority,
		&o.CategoryCode, &o.CategoryDisplay, &o.CodeSystem,
		&o.CodeValue, &o.CodeDisplay, &o.CodeText,
		&o.AuthoredOn, &o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

func (r *orderRepoPG) GetByFHIRID(ctx context.Context, fhirID string) (*Order, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM service_request WHERE fhir_id = $1`, fhirID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fhir.WrapStore("get", "ServiceRequest/"+fhirID, fhir.ErrNotFound)
	}
	if err != nil {
		return nil, fhir.WrapStore("get", "ServiceRequest", err)
	}
	return o, nil
}

func (r *orderRepoPG) ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*Order, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+orderCols+`
		FROM service_request WHERE encounter_id = $1 ORDER BY authored_on DESC NULLS LAST, created_at DESC`, encounterID)
	if err != nil {
		return nil, fhir.WrapStore("list", "ServiceRequest", err)
	}
	defer rows.Close()
	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fhir.WrapStore("list", "ServiceRequest", err)
		}
		out = append(out, o)
	}
	return out, fhir.WrapStore("list", "ServiceRequest", rows.Err())
}

// =========== Result (Observation) Repository ===========

type resultRepoPG struct{ pool *pgxpool.Pool }

func NewResultRepoPG(pool *pgxpool.Pool) ResultRepository {
	return &resultRepoPG{pool: pool}
}

func (r *resultRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const resultCols = `id, fhir_id, status, patient_id, encounter_id, based_on_ref, code_value, code_text,
	value_quantity, value_unit, value_string, value_boolean, value_coded_text,
	performer_id, effective_datetime, created_at, updated_at`

func scanResult(row pgx.Row) (*ResultRecord, error) {
	var (
		rec ResultRecord
		vc  valueColumns
	)
	err := row.Scan(&rec.ID, &rec.FHIRID, &rec.Status, &rec.PatientID, &rec.EncounterID, &rec.BasedOnRef,
		&rec.CodeValue, &rec.CodeText,
		&vc.Quantity, &vc.Unit, &vc.String, &vc.Boolean, &vc.CodedText,
		&rec.PerformerID, &rec.EffectiveDatetime, &rec.CreatedAt, &rec.UpdatedAt)
	rec.Value = vc.value()
	return &rec, err
}

func (r *resultRepoPG) list(ctx context.Context, where string, arg interface{}) ([]*ResultRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+resultCols+` FROM observation WHERE `+where+`
		ORDER BY effective_datetime DESC NULLS LAST, created_at DESC`, arg)
	if err != nil {
		return nil, fhir.WrapStore("list", "Observation", err)
	}
	defer rows.Close()
	var out []*ResultRecord
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, fhir.WrapStore("list", "Observation", err)
		}
		out = append(out, rec)
	}
	return out, fhir.WrapStore("list", "Observation", rows.Err())
}

func (r *resultRepoPG) ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*ResultRecord, error) {
	return r.list(ctx, "encounter_id = $1", encounterID)
}

func (r *resultRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ResultRecord, error) {
	return r.list(ctx, "patient_id = $1", patientID)
}

func (r *resultRepoPG) Create(ctx context.Context, rec *ResultRecord) error {
	rec.ID = uuid.New()
	if rec.FHIRID == "" {
		rec.FHIRID = rec.ID.String()
	}
	vc := columnsOf(rec.Value)
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO observation (id, fhir_id, status, patient_id, encounter_id, based_on_ref, code_value, code_text,
			value_quantity, value_unit, value_string, value_boolean, value_coded_text,
			performer_id, effective_datetime)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		rec.ID, rec.FHIRID, rec.Status, rec.PatientID, rec.EncounterID, rec.BasedOnRef, rec.CodeValue, rec.CodeText,
		vc.Quantity, vc.Unit, vc.String, vc.Boolean, vc.CodedText,
		rec.PerformerID, rec.EffectiveDatetime,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	return fhir.WrapStore("create", "Observation", err)
}

// Update overwrites every value column so a record never carries two
// value variants.
func (r *resultRepoPG) Update(ctx context.Context, rec *ResultRecord) error {
	vc := columnsOf(rec.Value)
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE observation SET status = $2, code_value = $3, code_text = $4,
			value_quantity = $5, value_unit = $6, value_string = $7, value_boolean = $8, value_coded_text = $9,
			performer_id = $10, effective_datetime = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		rec.ID, rec.Status, rec.CodeValue, rec.CodeText,
		vc.Quantity, vc.Unit, vc.String, vc.Boolean, vc.CodedText,
		rec.PerformerID, rec.EffectiveDatetime,
	).Scan(&rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		err = fhir.ErrNotFound
	}
	return fhir.WrapStore("update", "Observation/"+rec.FHIRID, err)
}
