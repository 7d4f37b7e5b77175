// Package importer reconciles batches of raw contact records against the
// tenant's existing contacts: partition into create/update/skip cohorts,
// commit the cohorts in one transaction, then enrich photos after commit.
package importer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/trellishq/trellis/pkg/database"
	"github.com/trellishq/trellis/pkg/metrics"
	"github.com/trellishq/trellis/pkg/models"
	"github.com/trellishq/trellis/pkg/storage"
	"github.com/trellishq/trellis/pkg/tags"
	"github.com/trellishq/trellis/pkg/tracing"
)

// ContactStore is the contact persistence surface the pipeline needs. All
// methods join an enclosing context transaction.
type ContactStore interface {
	GetByKeys(ctx context.Context, tenantID string, keys models.ContactKeySet) ([]models.Contact, error)
	BulkInsert(ctx context.Context, tenantID string, contacts []models.Contact) (int, error)
	Update(ctx context.Context, tenantID string, id string, req models.UpdateContactRequest) (*models.Contact, error)
	SetPrimaryImage(ctx context.Context, tenantID string, id string, ref *string) error
}

// JoinStore attaches tags to contacts.
type JoinStore interface {
	BulkAttach(ctx context.Context, tenantID string, contactIDs []string, tagID string) error
}

// EventSink receives the post-run summary event.
type EventSink interface {
	EmitImportCompleted(ctx context.Context, tenantID string, batchID string, summary models.ImportSummary) error
}

// Options bound the pipeline's resource usage.
type Options struct {
	// TxTimeout bounds the commit transaction. Bulk workloads run longer than
	// interactive ones.
	TxTimeout time.Duration
	// MaxBatchSize caps one call; callers chunk larger imports.
	MaxBatchSize int
	// EnrichmentConcurrency caps simultaneous photo uploads.
	EnrichmentConcurrency int
}

// Pipeline runs batch contact imports.
type Pipeline struct {
	db       database.DB
	contacts ContactStore
	tagStore tags.Store
	joins    JoinStore
	uploader storage.Uploader
	events   EventSink
	logger   ectologger.Logger
	opts     Options
}

func NewPipeline(db database.DB, contacts ContactStore, tagStore tags.Store, joins JoinStore, uploader storage.Uploader, events EventSink, logger ectologger.Logger, opts Options) *Pipeline {
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = 2 * time.Minute
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 200
	}
	if opts.EnrichmentConcurrency <= 0 {
		opts.EnrichmentConcurrency = 8
	}
	return &Pipeline{
		db:       db,
		contacts: contacts,
		tagStore: tagStore,
		joins:    joins,
		uploader: uploader,
		events:   events,
		logger:   logger,
		opts:     opts,
	}
}

// ImportBatch reconciles one batch. A transaction failure counts the whole
// batch's creates and updates as errors but still returns the summary; only
// validation rejects the call outright. Photo enrichment runs after the
// summary is final and never changes the counts.
func (p *Pipeline) ImportBatch(ctx context.Context, tenantID string, req models.ImportBatchRequest) (*models.ImportSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "importer.Pipeline.ImportBatch")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.ImportBatchDuration.Observe(time.Since(start).Seconds())
	}()

	if len(req.Records) > p.opts.MaxBatchSize {
		return nil, httperror.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("batch exceeds the maximum of %d records; split it into smaller batches", p.opts.MaxBatchSize))
	}

	keys := BuildKeySet(req.Records)
	existing, err := p.contacts.GetByKeys(ctx, tenantID, keys)
	if err != nil {
		return nil, err
	}

	part := PartitionRecords(req.Records, existing, req.OverrideExisting)

	summary := models.ImportSummary{Skipped: part.Skipped}
	var photoTasks []photoTask

	if len(part.Create) > 0 || len(part.Update) > 0 {
		tasks, commitErr := p.commit(ctx, tenantID, part, &summary)
		if commitErr != nil {
			// All-or-nothing at batch granularity; already-committed batches
			// are unaffected and the caller decides whether to retry.
			p.logger.WithContext(ctx).WithError(commitErr).WithFields(map[string]any{
				"tenant_id": tenantID,
				"creates":   len(part.Create),
				"updates":   len(part.Update),
			}).Error("import batch transaction failed")
			summary.Imported = 0
			summary.Updated = 0
			summary.Errors = len(part.Create) + len(part.Update)
		} else {
			photoTasks = tasks
		}
	}

	metrics.ImportRecords.WithLabelValues(tenantID, "imported").Add(float64(summary.Imported))
	metrics.ImportRecords.WithLabelValues(tenantID, "updated").Add(float64(summary.Updated))
	metrics.ImportRecords.WithLabelValues(tenantID, "skipped").Add(float64(summary.Skipped))
	metrics.ImportRecords.WithLabelValues(tenantID, "errors").Add(float64(summary.Errors))

	batchID := uuid.New().String()

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"batch_id":  batchID,
		"imported":  summary.Imported,
		"updated":   summary.Updated,
		"skipped":   summary.Skipped,
		"errors":    summary.Errors,
	}).Info("import batch finished")

	if p.events != nil {
		if err := p.events.EmitImportCompleted(ctx, tenantID, batchID, summary); err != nil {
			p.logger.WithContext(ctx).WithError(err).Warn("import.completed event emission failed")
		}
	}

	if len(photoTasks) > 0 {
		// Detached from the request's cancellation: the caller already has its
		// summary and enrichment must not be cut short by the response ending.
		go p.enrich(context.WithoutCancel(ctx), tenantID, photoTasks)
	}

	return &summary, nil
}

// commit applies both cohorts inside one transaction and returns the photo
// tasks to enrich after it lands.
func (p *Pipeline) commit(ctx context.Context, tenantID string, part Partition, summary *models.ImportSummary) ([]photoTask, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.TxTimeout)
	defer cancel()

	ctx, tx, err := database.GetTx(ctx, p.logger, p.db, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var photoTasks []photoTask

	if len(part.Create) > 0 {
		rows := make([]models.Contact, 0, len(part.Create))
		assignedIDs := make([]string, len(part.Create))
		for i, rec := range part.Create {
			assignedIDs[i] = uuid.New().String()
			rows = append(rows, models.Contact{
				ID:          assignedIDs[i],
				TenantID:    tenantID,
				DisplayName: rec.DisplayName,
				Gender:      rec.Gender,
				SourceName:  rec.SourceName,
				Email:       rec.Email,
				Phone:       rec.Phone,
				Extras:      rec.Extras,
			})
		}

		inserted, err := p.contacts.BulkInsert(ctx, tenantID, rows)
		if err != nil {
			return nil, err
		}

		// Re-fetch by the cohort's keys: rows skipped by a residual collision
		// resolve to the pre-existing contact, and generated ids are recovered
		// for the provenance tag and enrichment.
		persisted, err := p.contacts.GetByKeys(ctx, tenantID, BuildKeySet(part.Create))
		if err != nil {
			return nil, err
		}

		persistedIDs := ectolinq.Map(persisted, func(c models.Contact) string { return c.ID })

		// A record with no dedup keys cannot collide and cannot be found by the
		// key re-fetch; its client-assigned id is the persisted id.
		for i, rec := range part.Create {
			if !hasDedupKeys(rec) {
				persistedIDs = append(persistedIDs, assignedIDs[i])
			}
		}

		tagResult, err := p.tagStore.Upsert(ctx, tenantID, models.ProvenanceTagName, models.ProvenanceTagColor)
		if err != nil {
			return nil, err
		}
		if err := p.joins.BulkAttach(ctx, tenantID, persistedIDs, tagResult.ID); err != nil {
			return nil, err
		}

		summary.Imported = inserted
		summary.Skipped += len(part.Create) - inserted

		for i, rec := range part.Create {
			if len(rec.PhotoData) == 0 {
				continue
			}
			id, ok := resolvePersistedID(rec, persisted)
			if !ok && !hasDedupKeys(rec) {
				id, ok = assignedIDs[i], true
			}
			if ok {
				photoTasks = append(photoTasks, photoTask{
					ContactID:   id,
					Data:        rec.PhotoData,
					ContentType: rec.PhotoContentType,
				})
			}
		}
	}

	// Sequential on purpose: a database/sql transaction must not be shared
	// across goroutines.
	for _, cand := range part.Update {
		rec := cand.Record
		displayName := rec.DisplayName
		updateReq := models.UpdateContactRequest{
			DisplayName: &displayName,
			Gender:      rec.Gender,
			SourceName:  rec.SourceName,
			Email:       rec.Email,
			Phone:       rec.Phone,
		}
		if len(rec.Extras) > 0 {
			extras := rec.Extras
			updateReq.Extras = &extras
		}

		if _, err := p.contacts.Update(ctx, tenantID, cand.ContactID, updateReq); err != nil {
			return nil, err
		}

		if len(rec.PhotoData) > 0 {
			photoTasks = append(photoTasks, photoTask{
				ContactID:    cand.ContactID,
				Data:         rec.PhotoData,
				ContentType:  rec.PhotoContentType,
				ReplaceImage: true,
			})
		}
	}
	summary.Updated = len(part.Update)

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return photoTasks, nil
}

// resolvePersistedID finds the persisted contact a create-cohort record landed
// on, by whichever dedup key it carries.
func resolvePersistedID(rec models.ImportRecord, persisted []models.Contact) (string, bool) {
	for _, c := range persisted {
		if rec.SourceName != nil && c.SourceName != nil && *rec.SourceName == *c.SourceName {
			return c.ID, true
		}
		if rec.Email != nil && c.Email != nil && *rec.Email == *c.Email {
			return c.ID, true
		}
		if rec.Phone != nil && c.Phone != nil && *rec.Phone == *c.Phone {
			return c.ID, true
		}
	}
	return "", false
}
