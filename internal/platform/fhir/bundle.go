package fhir

import (
	"encoding/json"
	"time"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// NewSearchBundle creates a searchset Bundle from rendered resources. Every
// resource is a match entry; fullUrl is "<resourceType>/<id>" when both are
// present on the resource map.
func NewSearchBundle(resources []map[string]interface{}, selfURL string) *Bundle {
	now := time.Now().UTC()
	entries := make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		raw, err := json.Marshal(r)
		if err != nil {
			continue
		}
		entries = append(entries, BundleEntry{
			FullURL:  fullURL(r),
			Resource: raw,
			Search:   &BundleSearch{Mode: "match"},
		})
	}
	total := len(entries)
	b := &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &total,
		Timestamp:    &now,
		Entry:        entries,
	}
	if selfURL != "" {
		b.Link = []BundleLink{{Relation: "self", URL: selfURL}}
	}
	return b
}

func fullURL(r map[string]interface{}) string {
	rt, _ := r["resourceType"].(string)
	id, _ := r["id"].(string)
	if rt == "" || id == "" {
		return ""
	}
	return FormatReference(rt, id)
}
