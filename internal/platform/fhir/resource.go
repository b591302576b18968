package fhir

import (
	"fmt"
	"strings"
	"time"
)

// Meta carries resource metadata.
type Meta struct {
	VersionID   string    `json:"versionId,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
	Profile     []string  `json:"profile,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

// Quantity is a measured amount with its unit.
type Quantity struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	System string  `json:"system,omitempty"`
	Code   string  `json:"code,omitempty"`
}

// Attachment holds inline content for DocumentReference.content.
type Attachment struct {
	ContentType string     `json:"contentType,omitempty"`
	Data        string     `json:"data,omitempty"`
	Size        int        `json:"size,omitempty"`
	Hash        string     `json:"hash,omitempty"`
	Title       string     `json:"title,omitempty"`
	Creation    *time.Time `json:"creation,omitempty"`
}

type Annotation struct {
	Text string `json:"text"`
}

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}

// ParseReference splits "Type/id" into its parts. Absolute URLs are accepted;
// only the last two path segments are used.
func ParseReference(ref string) (resourceType, id string, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", fmt.Errorf("empty reference")
	}
	parts := strings.Split(strings.TrimRight(ref, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("invalid reference %q", ref)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
