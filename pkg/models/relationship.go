package models

import "time"

// Relationship is one directed edge between two contacts. A logical
// relationship is stored as two independent rows (A→B and B→A); the
// reverse-sync engine keeps the pair consistent.
type Relationship struct {
	ID            string `json:"id" db:"id"`
	TenantID      string `json:"tenant_id" db:"tenant_id"`
	FromContactID string `json:"from_contact_id" db:"from_contact_id"`
	ToContactID   string `json:"to_contact_id" db:"to_contact_id"`
	TypeID        string `json:"type_id" db:"type_id"`
	// ReverseTypeID records which reverse type was resolved when the edge was
	// created, so deletion can match the mirrored edge exactly. Nil when no
	// reverse edge was created, or for rows that predate the column.
	ReverseTypeID *string   `json:"reverse_type_id,omitempty" db:"reverse_type_id"`
	Notes         *string   `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// AddRelationshipRequest is the request body for creating a relationship
type AddRelationshipRequest struct {
	FromContactID string  `json:"from_contact_id" validate:"required"`
	ToContactID   string  `json:"to_contact_id" validate:"required"`
	TypeID        string  `json:"type_id" validate:"required"`
	TargetGender  *string `json:"target_gender,omitempty" validate:"omitempty,oneof=MALE FEMALE"`
	Notes         *string `json:"notes,omitempty"`
}

// AddRelationshipResponse surfaces the side effects of relationship creation,
// including the gender mutation, so callers can observe them.
type AddRelationshipResponse struct {
	RelationshipID        string  `json:"relationship_id"`
	ReverseRelationshipID *string `json:"reverse_relationship_id,omitempty"`
	ReverseTypeID         *string `json:"reverse_type_id,omitempty"`
	GenderChanged         bool    `json:"gender_changed"`
}

// RelationshipListResponse is the API response for listing a contact's edges
type RelationshipListResponse struct {
	Items      []Relationship `json:"items"`
	TotalCount int            `json:"total_count"`
}
