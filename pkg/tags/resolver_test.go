package tags

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tagrepo "github.com/trellishq/trellis/internal/repositories/tag"
	"github.com/trellishq/trellis/pkg/models"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeStore struct {
	byName  map[string]string
	known   map[string]bool
	upserts int
	nextID  int
}

func newFakeStore(knownIDs ...string) *fakeStore {
	known := make(map[string]bool, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = true
	}
	return &fakeStore{
		byName: make(map[string]string),
		known:  known,
	}
}

func (f *fakeStore) Upsert(ctx context.Context, tenantID string, name string, color string) (*tagrepo.UpsertResult, error) {
	f.upserts++
	if id, ok := f.byName[name]; ok {
		return &tagrepo.UpsertResult{Tag: models.Tag{ID: id, Name: name}, Inserted: false}, nil
	}
	f.nextID++
	id := fmt.Sprintf("tag-%d", f.nextID)
	f.byName[name] = id
	return &tagrepo.UpsertResult{Tag: models.Tag{ID: id, Name: name}, Inserted: true}, nil
}

func (f *fakeStore) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Tag, error) {
	var tags []models.Tag
	for _, id := range ids {
		if f.known[id] {
			tags = append(tags, models.Tag{ID: id})
		}
	}
	return tags, nil
}

func TestValidateRefs(t *testing.T) {
	r := NewResolver(newFakeStore(), noopLogger())

	tests := []struct {
		name       string
		refs       []models.TagRef
		wantStatus int
	}{
		{
			name: "valid mixed list",
			refs: []models.TagRef{
				{ExistingID: "tag-1"},
				{ClientTempID: "tmp-1", Name: "family", Color: "#FF8800"},
				{ClientTempID: "tmp-2", Name: "work"},
			},
		},
		{
			name: "new ref without name",
			refs: []models.TagRef{
				{ClientTempID: "tmp-1"},
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "malformed color",
			refs: []models.TagRef{
				{ClientTempID: "tmp-1", Name: "family", Color: "red"},
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "short hex color",
			refs: []models.TagRef{
				{ClientTempID: "tmp-1", Name: "family", Color: "#FFF"},
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "bad ref rejects whole list",
			refs: []models.TagRef{
				{ClientTempID: "tmp-1", Name: "family"},
				{ClientTempID: "tmp-2"},
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "existing ref skips new-tag checks",
			refs: []models.TagRef{
				{ExistingID: "tag-1", Color: "not-a-color"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateRefs(tt.refs)
			if tt.wantStatus == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, httperror.GetStatusCode(err))
		})
	}
}

func TestResolvePreservesOrder(t *testing.T) {
	store := newFakeStore("existing-1")
	r := NewResolver(store, noopLogger())

	ids, err := r.Resolve(context.Background(), "t1", []models.TagRef{
		{ClientTempID: "tmp-1", Name: "family"},
		{ExistingID: "existing-1"},
		{ClientTempID: "tmp-2", Name: "work"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"tag-1", "existing-1", "tag-2"}, ids)
}

func TestResolveRepeatedNameCollapses(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, noopLogger())

	ids, err := r.Resolve(context.Background(), "t1", []models.TagRef{
		{ClientTempID: "tmp-1", Name: "family"},
		{ClientTempID: "tmp-2", Name: "family"},
		{ClientTempID: "tmp-3", Name: "family"},
	})

	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
	// One write covers all three refs.
	assert.Equal(t, 1, store.upserts)
}

func TestResolveExistingNameReused(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, noopLogger())

	first, err := r.Resolve(context.Background(), "t1", []models.TagRef{
		{ClientTempID: "tmp-1", Name: "family"},
	})
	require.NoError(t, err)

	second, err := r.Resolve(context.Background(), "t1", []models.TagRef{
		{ClientTempID: "tmp-9", Name: "family"},
	})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolveUnknownExistingID(t *testing.T) {
	r := NewResolver(newFakeStore(), noopLogger())

	_, err := r.Resolve(context.Background(), "t1", []models.TagRef{
		{ExistingID: "missing"},
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestResolveValidationFailureWritesNothing(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, noopLogger())

	_, err := r.Resolve(context.Background(), "t1", []models.TagRef{
		{ClientTempID: "tmp-1", Name: "family"},
		{ClientTempID: "tmp-2", Name: "work", Color: "bad"},
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Zero(t, store.upserts)
}

func TestResolveEmptyList(t *testing.T) {
	r := NewResolver(newFakeStore(), noopLogger())

	ids, err := r.Resolve(context.Background(), "t1", nil)

	require.NoError(t, err)
	assert.Empty(t, ids)
}
