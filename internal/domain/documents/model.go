package documents

import (
	"crypto/sha1"
	"encoding/base64"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ordercapture/internal/platform/fhir"
)

const StatusCurrent = "current"

// Attachment maps to the document_reference table (FHIR DocumentReference
// resource). RelatedOrderRef is set once at creation and never changes.
// Hash is the base64 SHA-256 of Data and stays internal; the FHIR
// attachment.hash is SHA-1 as R4 defines it.
type Attachment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	FHIRID          string     `db:"fhir_id" json:"fhir_id"`
	Status          string     `db:"status" json:"status"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	EncounterID     *uuid.UUID `db:"encounter_id" json:"encounter_id,omitempty"`
	RelatedOrderRef string     `db:"related_order_ref" json:"related_order_ref"`
	ContentType     string     `db:"content_type" json:"content_type"`
	Data            []byte     `db:"content_data" json:"-"`
	Size            int        `db:"content_size" json:"size"`
	Hash            string     `db:"content_hash" json:"sha256"`
	Title           *string    `db:"content_title" json:"title,omitempty"`
	Description     *string    `db:"description" json:"description,omitempty"`
	AuthorID        *string    `db:"author_id" json:"author_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

func (a *Attachment) ToFHIR() map[string]interface{} {
	attachment := fhir.Attachment{
		ContentType: a.ContentType,
		Data:        base64.StdEncoding.EncodeToString(a.Data),
		Size:        a.Size,
		Hash:        fhirHash(a.Data),
		Title:       strVal(a.Title),
	}
	if !a.CreatedAt.IsZero() {
		created := a.CreatedAt
		attachment.Creation = &created
	}
	docContext := map[string]interface{}{
		"related": []fhir.Reference{{Reference: a.RelatedOrderRef}},
	}
	if a.EncounterID != nil {
		docContext["encounter"] = []fhir.Reference{{Reference: fhir.FormatReference("Encounter", a.EncounterID.String())}}
	}
	result := map[string]interface{}{
		"resourceType": "DocumentReference",
		"id":           a.FHIRID,
		"status":       a.Status,
		"subject":      fhir.Reference{Reference: fhir.FormatReference("Patient", a.PatientID.String())},
		"date":         a.CreatedAt.Format(time.RFC3339),
		"context":      docContext,
		"content":      []map[string]interface{}{{"attachment": attachment}},
		"meta":         fhir.Meta{LastUpdated: a.UpdatedAt},
	}
	if a.Description != nil {
		result["description"] = *a.Description
	}
	if a.AuthorID != nil {
		result["author"] = []fhir.Reference{{Reference: fhir.FormatReference("Practitioner", *a.AuthorID)}}
	}
	return result
}

func fhirHash(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha1.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
