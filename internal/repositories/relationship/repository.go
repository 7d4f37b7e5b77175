package relationship

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/trellishq/trellis/pkg/database"
	"github.com/trellishq/trellis/pkg/models"
	"github.com/trellishq/trellis/pkg/tracing"
)

const tableName = "relationships"

var columns = []string{
	"id", "tenant_id", "from_contact_id", "to_contact_id", "type_id",
	"reverse_type_id", "notes", "created_at",
}

// Repository stores directed relationship edges. Each logical relationship is
// two rows; the engine in pkg/relationships owns pairing them up.
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

// Insert creates one directed edge. Duplicate edges (same from, to, type) are
// rejected by the unique constraint; Exists should be checked first.
func (r *Repository) Insert(ctx context.Context, rel models.Relationship) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Insert")
	defer span.End()

	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "tenant_id", "from_contact_id", "to_contact_id", "type_id", "reverse_type_id", "notes", "created_at")
	sb.Values(rel.ID, rel.TenantID, rel.FromContactID, rel.ToContactID, rel.TypeID, rel.ReverseTypeID, rel.Notes, rel.CreatedAt)

	query, args := sb.Build()

	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":       rel.TenantID,
			"from_contact_id": rel.FromContactID,
			"to_contact_id":   rel.ToContactID,
			"type_id":         rel.TypeID,
		}).Error("failed to insert relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert relationship")
	}

	return &rel, nil
}

// Exists reports whether an edge with the exact (from, to, type) triple exists.
func (r *Repository) Exists(ctx context.Context, tenantID string, fromContactID, toContactID, typeID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Exists")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("from_contact_id", fromContactID),
		sb.Equal("to_contact_id", toContactID),
		sb.Equal("type_id", typeID),
	)

	query, args := sb.Build()

	var count int
	if err := r.q(ctx).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":       tenantID,
			"from_contact_id": fromContactID,
			"to_contact_id":   toContactID,
			"type_id":         typeID,
		}).Error("failed to check relationship existence")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check relationship")
	}

	return count > 0, nil
}

// GetByID gets an edge by ID. Returns (nil, nil) when the edge does not exist
// for this tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()

	var rel models.Relationship
	err := r.q(ctx).GetContext(ctx, &rel, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to get relationship by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship")
	}

	return &rel, nil
}

// ListByContact returns every edge originating from the contact.
func (r *Repository) ListByContact(ctx context.Context, tenantID string, contactID string) ([]models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ListByContact")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("from_contact_id", contactID),
	)
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()

	var items []models.Relationship
	if err := r.q(ctx).SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":  tenantID,
			"contact_id": contactID,
		}).Error("failed to list relationships for contact")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationships")
	}

	return items, nil
}

// DeleteByID removes a single edge. Returns the number of rows removed.
func (r *Repository) DeleteByID(ctx context.Context, tenantID string, id string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.DeleteByID")
	defer span.End()

	sb := database.NewDeleteBuilder()
	sb.DeleteFrom(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()

	result, err := r.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to delete relationship")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete relationship")
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected, nil
}

// DeleteMatching removes edges from one contact to another whose type is in
// typeIDs. Deleting a reverse edge uses this with the persisted reverse type,
// or with the candidate set for rows that predate reverse-type persistence.
func (r *Repository) DeleteMatching(ctx context.Context, tenantID string, fromContactID, toContactID string, typeIDs []string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.DeleteMatching")
	defer span.End()

	if len(typeIDs) == 0 {
		return 0, nil
	}

	sb := database.NewDeleteBuilder()
	sb.DeleteFrom(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("from_contact_id", fromContactID),
		sb.Equal("to_contact_id", toContactID),
		sb.In("type_id", sqlbuilder.List(typeIDs)),
	)

	query, args := sb.Build()

	result, err := r.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":       tenantID,
			"from_contact_id": fromContactID,
			"to_contact_id":   toContactID,
		}).Error("failed to delete matching relationships")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete matching relationships")
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected, nil
}
