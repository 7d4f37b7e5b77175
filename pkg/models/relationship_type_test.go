package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(s string) *string { return &s }

func TestReverseCandidateTypeIDs(t *testing.T) {
	tests := []struct {
		name    string
		relType RelationshipType
		want    []string
	}{
		{
			name:    "symmetric type is its own candidate",
			relType: RelationshipType{ID: "friend", IsSymmetric: true},
			want:    []string{"friend"},
		},
		{
			name: "symmetric ignores reverse pointers",
			relType: RelationshipType{
				ID:                   "spouse",
				IsSymmetric:          true,
				DefaultReverseTypeID: ptr("other"),
			},
			want: []string{"spouse"},
		},
		{
			name: "all pointers collected",
			relType: RelationshipType{
				ID:                   "parent",
				DefaultReverseTypeID: ptr("child"),
				MaleReverseTypeID:    ptr("son"),
				FemaleReverseTypeID:  ptr("daughter"),
			},
			want: []string{"child", "son", "daughter"},
		},
		{
			name: "empty strings dropped",
			relType: RelationshipType{
				ID:                   "mentor",
				DefaultReverseTypeID: ptr("mentee"),
				MaleReverseTypeID:    ptr(""),
			},
			want: []string{"mentee"},
		},
		{
			name:    "directed-only type has no candidates",
			relType: RelationshipType{ID: "admires"},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.relType.ReverseCandidateTypeIDs())
		})
	}
}
