package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImportRecords counts import batch records by outcome cohort.
	ImportRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trellis_import_records_total",
		Help: "Import batch records processed, by cohort",
	}, []string{"tenant_id", "cohort"})

	// ImportBatchDuration observes end-to-end batch run time, excluding
	// post-commit enrichment.
	ImportBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trellis_import_batch_duration_seconds",
		Help:    "Duration of import batch runs",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// PhotoEnrichment counts post-commit photo uploads by status.
	PhotoEnrichment = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trellis_photo_enrichment_total",
		Help: "Post-commit photo enrichment attempts, by status",
	}, []string{"status"})

	// RelationshipSync counts reverse-sync engine operations. The reverse label
	// records whether a mirrored edge was touched.
	RelationshipSync = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trellis_relationship_sync_total",
		Help: "Relationship create/delete operations, by reverse edge outcome",
	}, []string{"operation", "reverse"})
)
