package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellishq/trellis/pkg/models"
)

func strPtr(s string) *string { return &s }

func TestBuildKeySet(t *testing.T) {
	records := []models.ImportRecord{
		{DisplayName: "Ada", SourceName: strPtr("src-1"), Email: strPtr("ada@example.com")},
		{DisplayName: "Grace", Phone: strPtr("+15551234")},
		{DisplayName: "", Email: strPtr("ignored@example.com")}, // nameless, excluded
	}

	keys := BuildKeySet(records)

	assert.Equal(t, []string{"src-1"}, keys.SourceNames)
	assert.Equal(t, []string{"ada@example.com"}, keys.Emails)
	assert.Equal(t, []string{"+15551234"}, keys.Phones)
}

func TestBuildKeySetEmpty(t *testing.T) {
	keys := BuildKeySet(nil)
	assert.True(t, keys.IsEmpty())
}

func TestPartitionRecordsNamelessSkipped(t *testing.T) {
	records := []models.ImportRecord{
		{DisplayName: "", Email: strPtr("no-name@example.com")},
		{DisplayName: "Ada"},
	}

	part := PartitionRecords(records, nil, false)

	assert.Equal(t, 1, part.Skipped)
	require.Len(t, part.Create, 1)
	assert.Equal(t, "Ada", part.Create[0].DisplayName)
}

func TestPartitionRecordsExistingMatch(t *testing.T) {
	existing := []models.Contact{
		{ID: "c-1", DisplayName: "Ada", Email: strPtr("ada@example.com")},
		{ID: "c-2", DisplayName: "Grace", Phone: strPtr("+15551234")},
		{ID: "c-3", DisplayName: "Joan", SourceName: strPtr("src-joan")},
	}

	records := []models.ImportRecord{
		{DisplayName: "Ada Lovelace", Email: strPtr("ada@example.com")},
		{DisplayName: "Grace Hopper", Phone: strPtr("+15551234")},
		{DisplayName: "Joan Clarke", SourceName: strPtr("src-joan")},
		{DisplayName: "Katherine", Email: strPtr("katherine@example.com")},
	}

	tests := []struct {
		name             string
		overrideExisting bool
		wantCreate       int
		wantUpdate       int
		wantSkipped      int
	}{
		{
			name:             "matches skipped without override",
			overrideExisting: false,
			wantCreate:       1,
			wantUpdate:       0,
			wantSkipped:      3,
		},
		{
			name:             "matches updated with override",
			overrideExisting: true,
			wantCreate:       1,
			wantUpdate:       3,
			wantSkipped:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part := PartitionRecords(records, existing, tt.overrideExisting)

			assert.Len(t, part.Create, tt.wantCreate)
			assert.Len(t, part.Update, tt.wantUpdate)
			assert.Equal(t, tt.wantSkipped, part.Skipped)
		})
	}
}

func TestPartitionRecordsUpdateCandidateCarriesContactID(t *testing.T) {
	existing := []models.Contact{
		{ID: "c-9", DisplayName: "Grace", Phone: strPtr("+15551234")},
	}
	records := []models.ImportRecord{
		{DisplayName: "Grace Hopper", Phone: strPtr("+15551234")},
	}

	part := PartitionRecords(records, existing, true)

	require.Len(t, part.Update, 1)
	assert.Equal(t, "c-9", part.Update[0].ContactID)
}

func TestPartitionRecordsWithinBatchDedup(t *testing.T) {
	// Two candidates share an email and nothing matches existing rows; only
	// the first may classify as new.
	records := []models.ImportRecord{
		{DisplayName: "Ada", Email: strPtr("ada@example.com")},
		{DisplayName: "Ada L.", Email: strPtr("ada@example.com")},
	}

	part := PartitionRecords(records, nil, false)

	require.Len(t, part.Create, 1)
	assert.Equal(t, "Ada", part.Create[0].DisplayName)
	assert.Equal(t, 1, part.Skipped)
}

func TestPartitionRecordsWithinBatchDedupAcrossKeys(t *testing.T) {
	records := []models.ImportRecord{
		{DisplayName: "Ada", SourceName: strPtr("src-ada"), Email: strPtr("ada@example.com")},
		{DisplayName: "Dup by source", SourceName: strPtr("src-ada")},
		{DisplayName: "Dup by email", Email: strPtr("ada@example.com")},
		{DisplayName: "Fresh", Email: strPtr("fresh@example.com")},
	}

	part := PartitionRecords(records, nil, false)

	assert.Len(t, part.Create, 2)
	assert.Equal(t, 2, part.Skipped)
}

func TestPartitionRecordsDistinctKeysAllCreated(t *testing.T) {
	records := []models.ImportRecord{
		{DisplayName: "A", Email: strPtr("a@example.com")},
		{DisplayName: "B", Email: strPtr("b@example.com")},
		{DisplayName: "C", Phone: strPtr("+15550001")},
	}

	part := PartitionRecords(records, nil, false)

	assert.Len(t, part.Create, 3)
	assert.Zero(t, part.Skipped)
	assert.Empty(t, part.Update)
}
