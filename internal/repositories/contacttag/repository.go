package contacttag

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/trellishq/trellis/pkg/database"
	"github.com/trellishq/trellis/pkg/models"
	"github.com/trellishq/trellis/pkg/tracing"
)

const tableName = "contact_tags"

var insertColumns = []string{"tenant_id", "contact_id", "tag_id", "created_at"}

// Repository manages the contact-to-tag attachment rows.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) q(ctx context.Context) database.Queryable {
	if tx, ok := database.TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// Attach links a tag to a contact. Attaching an already-attached tag is a no-op.
func (r *Repository) Attach(ctx context.Context, tenantID string, contactID string, tagID string) error {
	ctx, span := tracing.StartSpan(ctx, "contacttag.Repository.Attach")
	defer span.End()

	sb := database.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols(insertColumns...)
	sb.Values(tenantID, contactID, tagID, time.Now().UTC())
	sb.OnConflictColumnsDoNothing("contact_id", "tag_id")

	query, args := sb.Build()

	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":  tenantID,
			"contact_id": contactID,
			"tag_id":     tagID,
		}).Error("failed to attach tag to contact")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to attach tag")
	}

	return nil
}

// BulkAttach links one tag to many contacts in a single statement. Existing
// attachments are skipped. The import pipeline uses this for the provenance tag.
func (r *Repository) BulkAttach(ctx context.Context, tenantID string, contactIDs []string, tagID string) error {
	ctx, span := tracing.StartSpan(ctx, "contacttag.Repository.BulkAttach")
	defer span.End()

	if len(contactIDs) == 0 {
		return nil
	}

	now := time.Now().UTC()

	sb := database.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols(insertColumns...)
	for _, contactID := range contactIDs {
		sb.Values(tenantID, contactID, tagID, now)
	}
	sb.OnConflictColumnsDoNothing("contact_id", "tag_id")

	query, args := sb.Build()

	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
			"tag_id":    tagID,
			"count":     len(contactIDs),
		}).Error("failed to bulk attach tag")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to bulk attach tag")
	}

	return nil
}

// Detach removes the attachment between a contact and a tag.
func (r *Repository) Detach(ctx context.Context, tenantID string, contactID string, tagID string) error {
	ctx, span := tracing.StartSpan(ctx, "contacttag.Repository.Detach")
	defer span.End()

	sb := database.NewDeleteBuilder()
	sb.DeleteFrom(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("contact_id", contactID),
		sb.Equal("tag_id", tagID),
	)

	query, args := sb.Build()

	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":  tenantID,
			"contact_id": contactID,
			"tag_id":     tagID,
		}).Error("failed to detach tag from contact")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to detach tag")
	}

	return nil
}

// ListByContact returns the tags attached to a contact.
func (r *Repository) ListByContact(ctx context.Context, tenantID string, contactID string) ([]models.Tag, error) {
	ctx, span := tracing.StartSpan(ctx, "contacttag.Repository.ListByContact")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("t.id", "t.tenant_id", "t.name", "t.color", "t.created_at", "t.updated_at")
	sb.From("tags t")
	sb.Join("contact_tags ct", "ct.tag_id = t.id")
	sb.Where(
		sb.Equal("ct.tenant_id", tenantID),
		sb.Equal("ct.contact_id", contactID),
	)
	sb.OrderBy("t.name ASC")

	query, args := sb.Build()

	var items []models.Tag
	if err := r.q(ctx).SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":  tenantID,
			"contact_id": contactID,
		}).Error("failed to list tags for contact")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list contact tags")
	}

	return items, nil
}
