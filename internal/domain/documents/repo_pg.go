package documents

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/ordercapture/internal/platform/db"
	"github.com/ehr/ordercapture/internal/platform/fhir"
)

type attachmentRepoPG struct{ pool *pgxpool.Pool }

func NewAttachmentRepoPG(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepoPG{pool: pool}
}

func (r *attachmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const attachmentCols = `id, fhir_id, status, patient_id, encounter_id, related_order_ref,
	content_type, content_data, content_size, content_hash, content_title,
	description, author_id, created_at, updated_at`

func scanAttachment(row pgx.Row) (*Attachment, error) {
	var a Attachment
	err := row.Scan(&a.ID, &a.FHIRID, &a.Status, &a.PatientID, &a.EncounterID, &a.RelatedOrderRef,
		&a.ContentType, &a.Data, &a.Size, &a.Hash, &a.Title,
		&a.Description, &a.AuthorID, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *attachmentRepoPG) list(ctx context.Context, where string, arg interface{}) ([]*Attachment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+attachmentCols+` FROM document_reference WHERE `+where+`
		ORDER BY created_at DESC`, arg)
	if err != nil {
		return nil, fhir.WrapStore("list", "DocumentReference", err)
	}
	defer rows.Close()
	var out []*Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fhir.WrapStore("list", "DocumentReference", err)
		}
		out = append(out, a)
	}
	return out, fhir.WrapStore("list", "DocumentReference", rows.Err())
}

func (r *attachmentRepoPG) ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*Attachment, error) {
	return r.list(ctx, "encounter_id = $1", encounterID)
}

func (r *attachmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Attachment, error) {
	return r.list(ctx, "patient_id = $1", patientID)
}

func (r *attachmentRepoPG) GetByFHIRID(ctx context.Context, fhirID string) (*Attachment, error) {
	a, err := scanAttachment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+attachmentCols+` FROM document_reference WHERE fhir_id = $1`, fhirID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fhir.WrapStore("get", "DocumentReference/"+fhirID, fhir.ErrNotFound)
	}
	if err != nil {
		return nil, fhir.WrapStore("get", "DocumentReference", err)
	}
	return a, nil
}

func (r *attachmentRepoPG) Create(ctx context.Context, a *Attachment) error {
	a.ID = uuid.New()
	if a.FHIRID == "" {
		a.FHIRID = a.ID.String()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO document_reference (id, fhir_id, status, patient_id, encounter_id, related_order_ref,
			content_type, content_data, content_size, content_hash, content_title, description, author_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		a.ID, a.FHIRID, a.Status, a.PatientID, a.EncounterID, a.RelatedOrderRef,
		a.ContentType, a.Data, a.Size, a.Hash, a.Title, a.Description, a.AuthorID,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return fhir.WrapStore("create", "DocumentReference", err)
}

func (r *attachmentRepoPG) DeleteByFHIRID(ctx context.Context, fhirID string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM document_reference WHERE fhir_id = $1`, fhirID)
	if err != nil {
		return false, fhir.WrapStore("delete", "DocumentReference", err)
	}
	return tag.RowsAffected() > 0, nil
}
