package models

import "encoding/json"

// ProvenanceTagName is the fixed tag attached to every contact a batch run
// creates, so imported contacts can be identified later.
const ProvenanceTagName = "Imported"

// ProvenanceTagColor is the color the provenance tag is created with.
const ProvenanceTagColor = "#9E9E9E"

// ImportRecord is one raw candidate contact in an import batch.
type ImportRecord struct {
	DisplayName string          `json:"display_name"`
	SourceName  *string         `json:"source_name,omitempty"`
	Email       *string         `json:"email,omitempty"`
	Phone       *string         `json:"phone,omitempty"`
	Gender      *string         `json:"gender,omitempty" validate:"omitempty,oneof=MALE FEMALE"`
	Extras      json.RawMessage `json:"extras,omitempty"`
	// PhotoData is processed after the batch commits; a bad photo never fails
	// the record it belongs to.
	PhotoData        []byte `json:"photo_data,omitempty"`
	PhotoContentType string `json:"photo_content_type,omitempty"`
}

// HasUsableName reports whether the record carries a name the pipeline can import.
func (r ImportRecord) HasUsableName() bool {
	return r.DisplayName != ""
}

// ImportBatchRequest is the request body for a batch import
type ImportBatchRequest struct {
	Records          []ImportRecord `json:"records" validate:"required,dive"`
	OverrideExisting bool           `json:"override_existing"`
}

// ImportSummary is the aggregate result of one batch run. Enrichment failures
// are not counted here; they are observable in logs and metrics only.
type ImportSummary struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}
