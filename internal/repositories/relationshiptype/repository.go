package relationshiptype

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/trellishq/trellis/pkg/database"
	"github.com/trellishq/trellis/pkg/models"
	"github.com/trellishq/trellis/pkg/tracing"
)

const tableName = "relationship_types"

var columns = []string{
	"id", "tenant_id", "name", "is_symmetric", "is_system",
	"default_reverse_type_id", "male_reverse_type_id", "female_reverse_type_id",
	"created_at", "updated_at", "deleted_at",
}

// Repository provides tenant-scoped access to relationship type definitions.
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

// Create inserts a new relationship type. Types created through the API are
// never system types.
func (r *Repository) Create(ctx context.Context, tenantID string, req models.CreateRelationshipTypeRequest) (*models.RelationshipType, error) {
	ctx, span := tracing.StartSpan(ctx, "relationshiptype.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	id := uuid.New().String()

	sb := database.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "tenant_id", "name", "is_symmetric", "is_system",
		"default_reverse_type_id", "male_reverse_type_id", "female_reverse_type_id",
		"created_at", "updated_at")
	sb.Values(id, tenantID, req.Name, req.IsSymmetric, false,
		req.DefaultReverseTypeID, req.MaleReverseTypeID, req.FemaleReverseTypeID,
		now, now)

	query, args := sb.Build()

	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
			"name":      req.Name,
		}).Error("failed to create relationship type")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create relationship type")
	}

	return r.GetByID(ctx, tenantID, id)
}

// GetByID gets a relationship type by ID. Returns (nil, nil) when the type does
// not exist for this tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.RelationshipType, error) {
	ctx, span := tracing.StartSpan(ctx, "relationshiptype.Repository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	var t models.RelationshipType
	err := r.q(ctx).GetContext(ctx, &t, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to get relationship type by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship type")
	}

	return &t, nil
}

// List lists relationship types for a tenant with pagination.
func (r *Repository) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.RelationshipType, int, error) {
	ctx, span := tracing.StartSpan(ctx, "relationshiptype.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	countSb := database.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From(tableName)
	countSb.Where(
		countSb.Equal("tenant_id", tenantID),
		countSb.IsNull("deleted_at"),
	)
	countQuery, countArgs := countSb.Build()

	var totalCount int
	if err := r.q(ctx).GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count relationship types")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count relationship types")
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("name ASC")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args := sb.Build()

	var items []models.RelationshipType
	if err := r.q(ctx).SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
		}).Error("failed to list relationship types")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationship types")
	}

	return items, totalCount, nil
}

// Update applies a partial update to a relationship type.
func (r *Repository) Update(ctx context.Context, tenantID string, id string, req models.UpdateRelationshipTypeRequest) (*models.RelationshipType, error) {
	ctx, span := tracing.StartSpan(ctx, "relationshiptype.Repository.Update")
	defer span.End()

	existing, err := r.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	sb := database.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(sb.Assign("updated_at", time.Now().UTC()))
	if req.Name != nil {
		sb.Set(sb.Assign("name", *req.Name))
	}
	if req.IsSymmetric != nil {
		sb.Set(sb.Assign("is_symmetric", *req.IsSymmetric))
	}
	if req.DefaultReverseTypeID != nil {
		sb.Set(sb.Assign("default_reverse_type_id", *req.DefaultReverseTypeID))
	}
	if req.MaleReverseTypeID != nil {
		sb.Set(sb.Assign("male_reverse_type_id", *req.MaleReverseTypeID))
	}
	if req.FemaleReverseTypeID != nil {
		sb.Set(sb.Assign("female_reverse_type_id", *req.FemaleReverseTypeID))
	}
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to update relationship type")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update relationship type")
	}

	return r.GetByID(ctx, tenantID, id)
}

// Delete soft deletes a relationship type. System types cannot be deleted.
func (r *Repository) Delete(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "relationshiptype.Repository.Delete")
	defer span.End()

	existing, err := r.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "relationship type not found")
	}
	if existing.IsSystem {
		return httperror.NewHTTPError(http.StatusConflict, "system relationship types cannot be deleted")
	}

	sb := database.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(sb.Assign("deleted_at", time.Now().UTC()))
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to delete relationship type")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete relationship type")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
	}).Info("deleted relationship type")

	return nil
}
