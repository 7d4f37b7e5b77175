package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tagrepo "github.com/trellishq/trellis/internal/repositories/tag"
	"github.com/trellishq/trellis/pkg/database"
	"github.com/trellishq/trellis/pkg/models"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// fakeTx satisfies database.Tx so the commit path can run without a database.
type fakeTx struct {
	closed  bool
	commits int
}

func (f *fakeTx) IsOpen() bool { return !f.closed }

func (f *fakeTx) Commit(ctx context.Context) error {
	f.commits++
	f.closed = true
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	f.closed = true
	return nil
}

func (f *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}

func (f *fakeTx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (f *fakeTx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (f *fakeTx) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return nil, nil
}

type fakePipelineContacts struct {
	mu        sync.Mutex
	rows      []models.Contact
	insertErr error
	images    map[string]*string
	updated   []string
}

func newFakePipelineContacts(existing ...models.Contact) *fakePipelineContacts {
	return &fakePipelineContacts{
		rows:   existing,
		images: make(map[string]*string),
	}
}

func (f *fakePipelineContacts) GetByKeys(ctx context.Context, tenantID string, keys models.ContactKeySet) ([]models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	inSet := func(v *string, set []string) bool {
		if v == nil {
			return false
		}
		for _, s := range set {
			if s == *v {
				return true
			}
		}
		return false
	}

	var out []models.Contact
	for _, c := range f.rows {
		if inSet(c.SourceName, keys.SourceNames) || inSet(c.Email, keys.Emails) || inSet(c.Phone, keys.Phones) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakePipelineContacts) BulkInsert(ctx context.Context, tenantID string, contacts []models.Contact) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.rows = append(f.rows, contacts...)
	return len(contacts), nil
}

func (f *fakePipelineContacts) Update(ctx context.Context, tenantID string, id string, req models.UpdateContactRequest) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, id)
	return &models.Contact{ID: id, TenantID: tenantID}, nil
}

func (f *fakePipelineContacts) SetPrimaryImage(ctx context.Context, tenantID string, id string, ref *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[id] = ref
	return nil
}

func (f *fakePipelineContacts) imageRef(id string) *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[id]
}

func (f *fakePipelineContacts) imageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.images)
}

func (f *fakePipelineContacts) storedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.rows))
	for _, c := range f.rows {
		ids = append(ids, c.ID)
	}
	return ids
}

type fakeTagStore struct {
	mu      sync.Mutex
	upserts []string
}

func (f *fakeTagStore) Upsert(ctx context.Context, tenantID string, name string, color string) (*tagrepo.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, name)
	return &tagrepo.UpsertResult{Tag: models.Tag{ID: "provenance-tag", Name: name, Color: color}, Inserted: true}, nil
}

func (f *fakeTagStore) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Tag, error) {
	return nil, nil
}

type fakeJoins struct {
	mu       sync.Mutex
	attached []string
	tagID    string
}

func (f *fakeJoins) BulkAttach(ctx context.Context, tenantID string, contactIDs []string, tagID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, contactIDs...)
	f.tagID = tagID
	return nil
}

type fakeUploader struct {
	mu      sync.Mutex
	err     error
	uploads int
	done    chan struct{}
}

func (f *fakeUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	f.uploads++
	f.mu.Unlock()
	if f.done != nil {
		defer func() { f.done <- struct{}{} }()
	}
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("gs://photos/%s", key), nil
}

func (f *fakeUploader) Delete(ctx context.Context, key string) error { return nil }

func (f *fakeUploader) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

type fakeImportSink struct {
	mu        sync.Mutex
	summaries []models.ImportSummary
}

func (f *fakeImportSink) EmitImportCompleted(ctx context.Context, tenantID string, batchID string, summary models.ImportSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
	return nil
}

func txContext() context.Context {
	return database.ContextWithTx(context.Background(), &fakeTx{})
}

func waitFor(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for photo upload")
	}
}

func TestImportBatchCreatesAndTagsKeylessRecords(t *testing.T) {
	contacts := newFakePipelineContacts()
	tagStore := &fakeTagStore{}
	joins := &fakeJoins{}
	uploader := &fakeUploader{done: make(chan struct{}, 1)}
	p := NewPipeline(nil, contacts, tagStore, joins, uploader, nil, noopLogger(), Options{})

	summary, err := p.ImportBatch(txContext(), "t1", models.ImportBatchRequest{
		Records: []models.ImportRecord{
			{DisplayName: "Ada", Email: strPtr("ada@example.com")},
			// No source name, email, or phone; only the generated id can find it.
			{DisplayName: "Grace", PhotoData: []byte{0x01}, PhotoContentType: "image/png"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Zero(t, summary.Skipped)
	assert.Zero(t, summary.Errors)

	assert.Equal(t, []string{models.ProvenanceTagName}, tagStore.upserts)
	assert.Equal(t, "provenance-tag", joins.tagID)
	assert.ElementsMatch(t, contacts.storedIDs(), joins.attached)

	waitFor(t, uploader.done)
	var graceID string
	for _, c := range contacts.rows {
		if c.DisplayName == "Grace" {
			graceID = c.ID
		}
	}
	require.NotEmpty(t, graceID)
	assert.Eventually(t, func() bool {
		return contacts.imageRef(graceID) != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestImportBatchCommitFailureCountsErrors(t *testing.T) {
	existing := models.Contact{ID: "c-1", DisplayName: "Grace", Phone: strPtr("+15551234")}
	contacts := newFakePipelineContacts(existing)
	contacts.insertErr = errors.New("insert failed")
	tagStore := &fakeTagStore{}
	joins := &fakeJoins{}
	uploader := &fakeUploader{}
	sink := &fakeImportSink{}
	p := NewPipeline(nil, contacts, tagStore, joins, uploader, sink, noopLogger(), Options{})

	summary, err := p.ImportBatch(txContext(), "t1", models.ImportBatchRequest{
		Records: []models.ImportRecord{
			{DisplayName: "Ada", Email: strPtr("ada@example.com"), PhotoData: []byte{0x01}},
			{DisplayName: "Grace Hopper", Phone: strPtr("+15551234")},
		},
		OverrideExisting: true,
	})

	require.NoError(t, err)
	assert.Zero(t, summary.Imported)
	assert.Zero(t, summary.Updated)
	assert.Equal(t, 2, summary.Errors)

	assert.Empty(t, joins.attached)
	assert.Zero(t, uploader.uploadCount())

	require.Len(t, sink.summaries, 1)
	assert.Equal(t, 2, sink.summaries[0].Errors)
}

func TestImportBatchEnrichmentFailureKeepsCounts(t *testing.T) {
	contacts := newFakePipelineContacts()
	uploader := &fakeUploader{err: errors.New("bucket unavailable"), done: make(chan struct{}, 1)}
	p := NewPipeline(nil, contacts, &fakeTagStore{}, &fakeJoins{}, uploader, nil, noopLogger(), Options{})

	summary, err := p.ImportBatch(txContext(), "t1", models.ImportBatchRequest{
		Records: []models.ImportRecord{
			{DisplayName: "Ada", Email: strPtr("ada@example.com"), PhotoData: []byte{0x01}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Zero(t, summary.Errors)

	waitFor(t, uploader.done)
	assert.Zero(t, contacts.imageCount())
}

func TestImportBatchUpdateReplacesImage(t *testing.T) {
	existing := models.Contact{ID: "c-1", DisplayName: "Grace", Phone: strPtr("+15551234")}
	contacts := newFakePipelineContacts(existing)
	uploader := &fakeUploader{done: make(chan struct{}, 1)}
	p := NewPipeline(nil, contacts, &fakeTagStore{}, &fakeJoins{}, uploader, nil, noopLogger(), Options{})

	summary, err := p.ImportBatch(txContext(), "t1", models.ImportBatchRequest{
		Records: []models.ImportRecord{
			{DisplayName: "Grace Hopper", Phone: strPtr("+15551234"), PhotoData: []byte{0x01}},
		},
		OverrideExisting: true,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, []string{"c-1"}, contacts.updated)

	waitFor(t, uploader.done)
	assert.Eventually(t, func() bool {
		return contacts.imageRef("c-1") != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestImportBatchOverMaxRejected(t *testing.T) {
	p := NewPipeline(nil, newFakePipelineContacts(), &fakeTagStore{}, &fakeJoins{}, &fakeUploader{}, nil, noopLogger(), Options{MaxBatchSize: 1})

	_, err := p.ImportBatch(txContext(), "t1", models.ImportBatchRequest{
		Records: []models.ImportRecord{
			{DisplayName: "Ada"},
			{DisplayName: "Grace"},
		},
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}
