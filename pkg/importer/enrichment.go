package importer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/trellishq/trellis/pkg/metrics"
	"github.com/trellishq/trellis/pkg/tracing"
)

// photoTask is one post-commit photo upload.
type photoTask struct {
	ContactID   string
	Data        []byte
	ContentType string
	// ReplaceImage clears an existing primary image reference before the new
	// one is recorded.
	ReplaceImage bool
}

// enrich uploads batch photos after the commit has landed. Every task settles
// independently: a failed upload is logged and counted, never propagated, so
// one bad image cannot block the rest or the import itself.
func (p *Pipeline) enrich(ctx context.Context, tenantID string, tasks []photoTask) {
	ctx, span := tracing.StartSpan(ctx, "importer.Pipeline.enrich")
	defer span.End()

	sem := make(chan struct{}, p.opts.EnrichmentConcurrency)
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		go func(task photoTask) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := p.enrichOne(ctx, tenantID, task); err != nil {
				metrics.PhotoEnrichment.WithLabelValues("failure").Inc()
				p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"tenant_id":  tenantID,
					"contact_id": task.ContactID,
				}).Error("photo enrichment failed")
				return
			}
			metrics.PhotoEnrichment.WithLabelValues("success").Inc()
		}(task)
	}

	wg.Wait()

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"photos":    len(tasks),
	}).Info("photo enrichment settled")
}

func (p *Pipeline) enrichOne(ctx context.Context, tenantID string, task photoTask) error {
	if task.ReplaceImage {
		if err := p.contacts.SetPrimaryImage(ctx, tenantID, task.ContactID, nil); err != nil {
			return err
		}
	}

	contentType := task.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("tenants/%s/contacts/%s/primary-%s", tenantID, task.ContactID, uuid.New().String())
	ref, err := p.uploader.Upload(ctx, key, task.Data, contentType)
	if err != nil {
		return err
	}

	return p.contacts.SetPrimaryImage(ctx, tenantID, task.ContactID, &ref)
}
