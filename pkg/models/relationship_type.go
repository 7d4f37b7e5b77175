package models

import "time"

// RelationshipType defines a directed relationship label and the rules for its
// mirrored edge. A symmetric type is its own reverse and the three reverse
// pointers are ignored. A non-symmetric type may set any subset of them.
type RelationshipType struct {
	ID          string `json:"id" db:"id"`
	TenantID    string `json:"tenant_id" db:"tenant_id"`
	Name        string `json:"name" db:"name" validate:"required"`
	IsSymmetric bool   `json:"is_symmetric" db:"is_symmetric"`
	// IsSystem marks seeded types that cannot be deleted.
	IsSystem             bool       `json:"is_system" db:"is_system"`
	DefaultReverseTypeID *string    `json:"default_reverse_type_id,omitempty" db:"default_reverse_type_id"`
	MaleReverseTypeID    *string    `json:"male_reverse_type_id,omitempty" db:"male_reverse_type_id"`
	FemaleReverseTypeID  *string    `json:"female_reverse_type_id,omitempty" db:"female_reverse_type_id"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt            *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ReverseCandidateTypeIDs returns the set of type ids a mirrored edge of this
// type could have been created with. Used as the legacy deletion filter for
// edges that predate reverse-type persistence.
func (t *RelationshipType) ReverseCandidateTypeIDs() []string {
	if t.IsSymmetric {
		return []string{t.ID}
	}
	var ids []string
	for _, id := range []*string{t.DefaultReverseTypeID, t.MaleReverseTypeID, t.FemaleReverseTypeID} {
		if id != nil && *id != "" {
			ids = append(ids, *id)
		}
	}
	return ids
}

// CreateRelationshipTypeRequest is the request body for creating a relationship type
type CreateRelationshipTypeRequest struct {
	Name                 string  `json:"name" validate:"required"`
	IsSymmetric          bool    `json:"is_symmetric"`
	DefaultReverseTypeID *string `json:"default_reverse_type_id,omitempty"`
	MaleReverseTypeID    *string `json:"male_reverse_type_id,omitempty"`
	FemaleReverseTypeID  *string `json:"female_reverse_type_id,omitempty"`
}

// UpdateRelationshipTypeRequest is the request body for updating a relationship type
type UpdateRelationshipTypeRequest struct {
	Name                 *string `json:"name,omitempty"`
	IsSymmetric          *bool   `json:"is_symmetric,omitempty"`
	DefaultReverseTypeID *string `json:"default_reverse_type_id,omitempty"`
	MaleReverseTypeID    *string `json:"male_reverse_type_id,omitempty"`
	FemaleReverseTypeID  *string `json:"female_reverse_type_id,omitempty"`
}

// RelationshipTypeResponse is the API response for relationship type operations
type RelationshipTypeResponse struct {
	RelationshipType
}

// RelationshipTypeListResponse is the API response for listing relationship types
type RelationshipTypeListResponse struct {
	Items      []RelationshipType `json:"items"`
	TotalCount int                `json:"total_count"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
}
