package fhir

import "testing"

func TestNewSearchBundle(t *testing.T) {
	resources := []map[string]interface{}{
		{"resourceType": "Observation", "id": "obs-1"},
		{"resourceType": "DocumentReference", "id": "doc-1"},
		{"resourceType": "Observation"},
	}
	b := NewSearchBundle(resources, "/fhir/ServiceRequest/o1/$linked")

	if b.Type != "searchset" {
		t.Errorf("expected searchset, got %s", b.Type)
	}
	if b.Total == nil || *b.Total != 3 {
		t.Fatalf("expected total 3, got %v", b.Total)
	}
	if b.Entry[0].FullURL != "Observation/obs-1" {
		t.Errorf("unexpected fullUrl %s", b.Entry[0].FullURL)
	}
	if b.Entry[2].FullURL != "" {
		t.Errorf("expected empty fullUrl without id, got %s", b.Entry[2].FullURL)
	}
	if b.Entry[1].Search == nil || b.Entry[1].Search.Mode != "match" {
		t.Error("expected search mode match")
	}
	if len(b.Link) != 1 || b.Link[0].Relation != "self" {
		t.Errorf("expected self link, got %+v", b.Link)
	}
}

func TestNewSearchBundle_Empty(t *testing.T) {
	b := NewSearchBundle(nil, "")
	if *b.Total != 0 {
		t.Errorf("expected total 0, got %d", *b.Total)
	}
	if len(b.Link) != 0 {
		t.Errorf("expected no links, got %d", len(b.Link))
	}
}
