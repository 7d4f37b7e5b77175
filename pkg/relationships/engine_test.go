package relationships

import (
	"context"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellishq/trellis/pkg/models"
)

func strPtr(s string) *string { return &s }

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeContactStore struct {
	contacts      map[string]*models.Contact
	genderUpdates map[string]string
}

func (f *fakeContactStore) GetByID(ctx context.Context, tenantID string, id string) (*models.Contact, error) {
	return f.contacts[id], nil
}

func (f *fakeContactStore) UpdateGender(ctx context.Context, tenantID string, id string, gender string) error {
	if f.genderUpdates == nil {
		f.genderUpdates = make(map[string]string)
	}
	f.genderUpdates[id] = gender
	return nil
}

type fakeTypeStore struct {
	types map[string]*models.RelationshipType
}

func (f *fakeTypeStore) GetByID(ctx context.Context, tenantID string, id string) (*models.RelationshipType, error) {
	return f.types[id], nil
}

type fakeEdgeStore struct {
	edges map[string]*models.Relationship
}

func newFakeEdgeStore() *fakeEdgeStore {
	return &fakeEdgeStore{edges: make(map[string]*models.Relationship)}
}

func (f *fakeEdgeStore) Insert(ctx context.Context, rel models.Relationship) (*models.Relationship, error) {
	rel.ID = uuid.New().String()
	f.edges[rel.ID] = &rel
	return &rel, nil
}

func (f *fakeEdgeStore) Exists(ctx context.Context, tenantID string, fromContactID, toContactID, typeID string) (bool, error) {
	for _, e := range f.edges {
		if e.FromContactID == fromContactID && e.ToContactID == toContactID && e.TypeID == typeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEdgeStore) GetByID(ctx context.Context, tenantID string, id string) (*models.Relationship, error) {
	return f.edges[id], nil
}

func (f *fakeEdgeStore) DeleteByID(ctx context.Context, tenantID string, id string) (int64, error) {
	if _, ok := f.edges[id]; !ok {
		return 0, nil
	}
	delete(f.edges, id)
	return 1, nil
}

func (f *fakeEdgeStore) DeleteMatching(ctx context.Context, tenantID string, fromContactID, toContactID string, typeIDs []string) (int64, error) {
	if len(typeIDs) == 0 {
		return 0, nil
	}
	wanted := make(map[string]bool, len(typeIDs))
	for _, id := range typeIDs {
		wanted[id] = true
	}
	var deleted int64
	for id, e := range f.edges {
		if e.FromContactID == fromContactID && e.ToContactID == toContactID && wanted[e.TypeID] {
			delete(f.edges, id)
			deleted++
		}
	}
	return deleted, nil
}

func TestResolveReverseTypeID(t *testing.T) {
	symmetric := &models.RelationshipType{ID: "friend", IsSymmetric: true}
	gendered := &models.RelationshipType{
		ID:                   "parent",
		DefaultReverseTypeID: strPtr("child"),
		MaleReverseTypeID:    strPtr("son"),
		FemaleReverseTypeID:  strPtr("daughter"),
	}
	defaultOnly := &models.RelationshipType{
		ID:                   "mentor",
		DefaultReverseTypeID: strPtr("mentee"),
	}
	directed := &models.RelationshipType{ID: "admires"}

	tests := []struct {
		name    string
		relType *models.RelationshipType
		gender  *string
		want    *string
	}{
		{
			name:    "symmetric type is its own reverse",
			relType: symmetric,
			gender:  strPtr(models.GenderMale),
			want:    strPtr("friend"),
		},
		{
			name:    "male gender picks male pointer",
			relType: gendered,
			gender:  strPtr(models.GenderMale),
			want:    strPtr("son"),
		},
		{
			name:    "female gender picks female pointer",
			relType: gendered,
			gender:  strPtr(models.GenderFemale),
			want:    strPtr("daughter"),
		},
		{
			name:    "unknown gender falls back to default",
			relType: gendered,
			gender:  nil,
			want:    strPtr("child"),
		},
		{
			name:    "gender without matching pointer falls back to default",
			relType: defaultOnly,
			gender:  strPtr(models.GenderFemale),
			want:    strPtr("mentee"),
		},
		{
			name:    "directed-only type has no reverse",
			relType: directed,
			gender:  strPtr(models.GenderMale),
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveReverseTypeID(tt.relType, tt.gender)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func testEngine(contacts *fakeContactStore, types *fakeTypeStore, edges *fakeEdgeStore) *Engine {
	return NewEngine(contacts, types, edges, nil, noopLogger())
}

func TestAddRelationshipCreatesMirror(t *testing.T) {
	contacts := &fakeContactStore{contacts: map[string]*models.Contact{
		"a": {ID: "a"},
		"b": {ID: "b", Gender: strPtr(models.GenderFemale)},
	}}
	types := &fakeTypeStore{types: map[string]*models.RelationshipType{
		"parent": {
			ID:                   "parent",
			DefaultReverseTypeID: strPtr("child"),
			FemaleReverseTypeID:  strPtr("daughter"),
		},
	}}
	edges := newFakeEdgeStore()
	engine := testEngine(contacts, types, edges)

	resp, err := engine.AddRelationship(context.Background(), "t1", models.AddRelationshipRequest{
		FromContactID: "a",
		ToContactID:   "b",
		TypeID:        "parent",
	})

	require.NoError(t, err)
	require.NotNil(t, resp.ReverseRelationshipID)
	assert.Equal(t, "daughter", *resp.ReverseTypeID)
	assert.False(t, resp.GenderChanged)
	assert.Len(t, edges.edges, 2)

	primary := edges.edges[resp.RelationshipID]
	require.NotNil(t, primary)
	assert.Equal(t, "daughter", *primary.ReverseTypeID)

	reverse := edges.edges[*resp.ReverseRelationshipID]
	require.NotNil(t, reverse)
	assert.Equal(t, "b", reverse.FromContactID)
	assert.Equal(t, "a", reverse.ToContactID)
	assert.Equal(t, "daughter", reverse.TypeID)
	// The mirror points back at the primary type.
	require.NotNil(t, reverse.ReverseTypeID)
	assert.Equal(t, "parent", *reverse.ReverseTypeID)
}

func TestAddRelationshipDirectedOnly(t *testing.T) {
	contacts := &fakeContactStore{contacts: map[string]*models.Contact{
		"a": {ID: "a"},
		"b": {ID: "b"},
	}}
	types := &fakeTypeStore{types: map[string]*models.RelationshipType{
		"admires": {ID: "admires"},
	}}
	edges := newFakeEdgeStore()
	engine := testEngine(contacts, types, edges)

	resp, err := engine.AddRelationship(context.Background(), "t1", models.AddRelationshipRequest{
		FromContactID: "a",
		ToContactID:   "b",
		TypeID:        "admires",
	})

	require.NoError(t, err)
	assert.Nil(t, resp.ReverseRelationshipID)
	assert.Nil(t, resp.ReverseTypeID)
	assert.Len(t, edges.edges, 1)
}

func TestAddRelationshipGenderMutationBeforeResolution(t *testing.T) {
	contacts := &fakeContactStore{contacts: map[string]*models.Contact{
		"a": {ID: "a"},
		"b": {ID: "b", Gender: strPtr(models.GenderFemale)},
	}}
	types := &fakeTypeStore{types: map[string]*models.RelationshipType{
		"parent": {
			ID:                   "parent",
			DefaultReverseTypeID: strPtr("child"),
			MaleReverseTypeID:    strPtr("son"),
			FemaleReverseTypeID:  strPtr("daughter"),
		},
	}}
	edges := newFakeEdgeStore()
	engine := testEngine(contacts, types, edges)

	resp, err := engine.AddRelationship(context.Background(), "t1", models.AddRelationshipRequest{
		FromContactID: "a",
		ToContactID:   "b",
		TypeID:        "parent",
		TargetGender:  strPtr(models.GenderMale),
	})

	require.NoError(t, err)
	assert.True(t, resp.GenderChanged)
	assert.Equal(t, models.GenderMale, contacts.genderUpdates["b"])
	// Resolution used the new gender, not the stored one.
	assert.Equal(t, "son", *resp.ReverseTypeID)
}

func TestAddRelationshipSameGenderNoMutation(t *testing.T) {
	contacts := &fakeContactStore{contacts: map[string]*models.Contact{
		"a": {ID: "a"},
		"b": {ID: "b", Gender: strPtr(models.GenderMale)},
	}}
	types := &fakeTypeStore{types: map[string]*models.RelationshipType{
		"friend": {ID: "friend", IsSymmetric: true},
	}}
	engine := testEngine(contacts, types, newFakeEdgeStore())

	resp, err := engine.AddRelationship(context.Background(), "t1", models.AddRelationshipRequest{
		FromContactID: "a",
		ToContactID:   "b",
		TypeID:        "friend",
		TargetGender:  strPtr(models.GenderMale),
	})

	require.NoError(t, err)
	assert.False(t, resp.GenderChanged)
	assert.Empty(t, contacts.genderUpdates)
}

func TestAddRelationshipDuplicateConflict(t *testing.T) {
	contacts := &fakeContactStore{contacts: map[string]*models.Contact{
		"a": {ID: "a"},
		"b": {ID: "b"},
	}}
	types := &fakeTypeStore{types: map[string]*models.RelationshipType{
		"friend": {ID: "friend", IsSymmetric: true},
	}}
	edges := newFakeEdgeStore()
	engine := testEngine(contacts, types, edges)

	req := models.AddRelationshipRequest{FromContactID: "a", ToContactID: "b", TypeID: "friend"}

	_, err := engine.AddRelationship(context.Background(), "t1", req)
	require.NoError(t, err)

	_, err = engine.AddRelationship(context.Background(), "t1", req)
	require.Error(t, err)
	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
}

func TestAddRelationshipExistingReverseNotDuplicated(t *testing.T) {
	contacts := &fakeContactStore{contacts: map[string]*models.Contact{
		"a": {ID: "a"},
		"b": {ID: "b"},
	}}
	types := &fakeTypeStore{types: map[string]*models.RelationshipType{
		"friend": {ID: "friend", IsSymmetric: true},
	}}
	edges := newFakeEdgeStore()
	engine := testEngine(contacts, types, edges)

	// The mirrored edge already exists.
	_, err := edges.Insert(context.Background(), models.Relationship{
		TenantID:      "t1",
		FromContactID: "b",
		ToContactID:   "a",
		TypeID:        "friend",
	})
	require.NoError(t, err)

	resp, err := engine.AddRelationship(context.Background(), "t1", models.AddRelationshipRequest{
		FromContactID: "a",
		ToContactID:   "b",
		TypeID:        "friend",
	})

	require.NoError(t, err)
	assert.Nil(t, resp.ReverseRelationshipID)
	assert.Len(t, edges.edges, 2)
}

func TestAddRelationshipUnknownContact(t *testing.T) {
	contacts := &fakeContactStore{contacts: map[string]*models.Contact{
		"a": {ID: "a"},
	}}
	types := &fakeTypeStore{types: map[string]*models.RelationshipType{}}
	engine := testEngine(contacts, types, newFakeEdgeStore())

	_, err := engine.AddRelationship(context.Background(), "t1", models.AddRelationshipRequest{
		FromContactID: "a",
		ToContactID:   "missing",
		TypeID:        "friend",
	})

	require.Error(t, err)
	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestDeleteRelationshipRemovesPersistedMirror(t *testing.T) {
	contacts := &fakeContactStore{contacts: map[string]*models.Contact{
		"a": {ID: "a"},
		"b": {ID: "b"},
	}}
	types := &fakeTypeStore{types: map[string]*models.RelationshipType{
		"friend": {ID: "friend", IsSymmetric: true},
	}}
	edges := newFakeEdgeStore()
	engine := testEngine(contacts, types, edges)

	resp, err := engine.AddRelationship(context.Background(), "t1", models.AddRelationshipRequest{
		FromContactID: "a",
		ToContactID:   "b",
		TypeID:        "friend",
	})
	require.NoError(t, err)
	require.Len(t, edges.edges, 2)

	err = engine.DeleteRelationship(context.Background(), "t1", resp.RelationshipID)
	require.NoError(t, err)
	assert.Empty(t, edges.edges)
}

func TestDeleteRelationshipFromReverseSide(t *testing.T) {
	contacts := &fakeContactStore{contacts: map[string]*models.Contact{
		"a": {ID: "a"},
		"b": {ID: "b", Gender: strPtr(models.GenderFemale)},
	}}
	types := &fakeTypeStore{types: map[string]*models.RelationshipType{
		"parent": {
			ID:                  "parent",
			FemaleReverseTypeID: strPtr("daughter"),
		},
		"daughter": {ID: "daughter"},
	}}
	edges := newFakeEdgeStore()
	engine := testEngine(contacts, types, edges)

	resp, err := engine.AddRelationship(context.Background(), "t1", models.AddRelationshipRequest{
		FromContactID: "a",
		ToContactID:   "b",
		TypeID:        "parent",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.ReverseRelationshipID)

	// Deleting the mirror removes the primary too, because the mirror carries
	// the primary type as its persisted reverse.
	err = engine.DeleteRelationship(context.Background(), "t1", *resp.ReverseRelationshipID)
	require.NoError(t, err)
	assert.Empty(t, edges.edges)
}

func TestDeleteRelationshipLegacyCandidateFallback(t *testing.T) {
	contacts := &fakeContactStore{contacts: map[string]*models.Contact{
		"a": {ID: "a"},
		"b": {ID: "b"},
	}}
	types := &fakeTypeStore{types: map[string]*models.RelationshipType{
		"parent": {
			ID:                   "parent",
			DefaultReverseTypeID: strPtr("child"),
			MaleReverseTypeID:    strPtr("son"),
		},
	}}
	edges := newFakeEdgeStore()
	engine := testEngine(contacts, types, edges)

	// Rows from before reverse-type persistence carry no ReverseTypeID.
	primary, err := edges.Insert(context.Background(), models.Relationship{
		TenantID:      "t1",
		FromContactID: "a",
		ToContactID:   "b",
		TypeID:        "parent",
	})
	require.NoError(t, err)
	_, err = edges.Insert(context.Background(), models.Relationship{
		TenantID:      "t1",
		FromContactID: "b",
		ToContactID:   "a",
		TypeID:        "son",
	})
	require.NoError(t, err)

	err = engine.DeleteRelationship(context.Background(), "t1", primary.ID)
	require.NoError(t, err)
	assert.Empty(t, edges.edges)
}

func TestDeleteRelationshipNotFound(t *testing.T) {
	engine := testEngine(
		&fakeContactStore{},
		&fakeTypeStore{},
		newFakeEdgeStore(),
	)

	err := engine.DeleteRelationship(context.Background(), "t1", uuid.New().String())
	require.Error(t, err)
	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}
