package models

import (
	"encoding/json"
	"time"
)

// Gender values stored on a contact. The column is nullable; an unset gender
// is represented as a nil pointer.
const (
	GenderMale   = "MALE"
	GenderFemale = "FEMALE"
)

// Contact is a person record scoped to a tenant.
type Contact struct {
	ID          string  `json:"id" db:"id"`
	TenantID    string  `json:"tenant_id" db:"tenant_id"`
	DisplayName string  `json:"display_name" db:"display_name" validate:"required"`
	Gender      *string `json:"gender,omitempty" db:"gender"`
	// SourceName is the stable identifier carried over from an import source.
	SourceName      *string         `json:"source_name,omitempty" db:"source_name"`
	Email           *string         `json:"email,omitempty" db:"email"`
	Phone           *string         `json:"phone,omitempty" db:"phone"`
	PrimaryImageRef *string         `json:"primary_image_ref,omitempty" db:"primary_image_ref"`
	Extras          json.RawMessage `json:"extras,omitempty" db:"extras"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CreateContactRequest is the request body for creating a contact
type CreateContactRequest struct {
	DisplayName string          `json:"display_name" validate:"required"`
	Gender      *string         `json:"gender,omitempty" validate:"omitempty,oneof=MALE FEMALE"`
	SourceName  *string         `json:"source_name,omitempty"`
	Email       *string         `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string         `json:"phone,omitempty"`
	Extras      json.RawMessage `json:"extras,omitempty"`
}

// UpdateContactRequest is the request body for updating a contact
type UpdateContactRequest struct {
	DisplayName *string          `json:"display_name,omitempty"`
	Gender      *string          `json:"gender,omitempty" validate:"omitempty,oneof=MALE FEMALE"`
	SourceName  *string          `json:"source_name,omitempty"`
	Email       *string          `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string          `json:"phone,omitempty"`
	Extras      *json.RawMessage `json:"extras,omitempty"`
}

// ContactResponse is the API response for contact operations
type ContactResponse struct {
	Contact
}

// ContactListResponse is the API response for listing contacts
type ContactListResponse struct {
	Items      []Contact `json:"items"`
	TotalCount int       `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
}

// ContactKeySet is the union of dedup keys for a batched contact lookup.
type ContactKeySet struct {
	SourceNames []string
	Emails      []string
	Phones      []string
}

// IsEmpty reports whether the key set carries no keys at all.
func (k ContactKeySet) IsEmpty() bool {
	return len(k.SourceNames) == 0 && len(k.Emails) == 0 && len(k.Phones) == 0
}
