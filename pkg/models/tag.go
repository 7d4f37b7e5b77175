package models

import "time"

// DefaultTagColor is applied when a client-supplied tag reference omits a color.
const DefaultTagColor = "#2196F3"

// Tag is an owner-scoped label. (tenant_id, name) is unique; the resolver's
// idempotency rests on that constraint.
type Tag struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name" validate:"required"`
	Color     string    `json:"color" db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TagRef is one element of a client-supplied tag list: either an existing tag
// id, or a not-yet-created tag identified by a client temp id plus a name.
type TagRef struct {
	ExistingID   string `json:"existing_id,omitempty"`
	ClientTempID string `json:"client_temp_id,omitempty"`
	Name         string `json:"name,omitempty"`
	Color        string `json:"color,omitempty"`
}

// IsExisting reports whether the reference points at a persisted tag.
func (r TagRef) IsExisting() bool {
	return r.ExistingID != ""
}

// CreateTagRequest is the request body for creating a tag
type CreateTagRequest struct {
	Name  string `json:"name" validate:"required"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// UpdateTagRequest is the request body for updating a tag
type UpdateTagRequest struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// TagResponse is the API response for tag operations
type TagResponse struct {
	Tag
}

// TagListResponse is the API response for listing tags
type TagListResponse struct {
	Items      []Tag `json:"items"`
	TotalCount int   `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
}

// ResolveTagsRequest is the request body for resolving a tag reference list
type ResolveTagsRequest struct {
	Refs []TagRef `json:"refs" validate:"required"`
}

// ResolveTagsResponse returns the concrete tag ids, same length and order as
// the request refs.
type ResolveTagsResponse struct {
	TagIDs []string `json:"tag_ids"`
}
