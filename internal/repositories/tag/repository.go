package tag

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/trellishq/trellis/pkg/database"
	"github.com/trellishq/trellis/pkg/models"
	"github.com/trellishq/trellis/pkg/tracing"
)

const tableName = "tags"

var columns = []string{"id", "tenant_id", "name", "color", "created_at", "updated_at"}

// UpsertResult is a tag row plus whether the upsert inserted it or matched an
// existing row.
type UpsertResult struct {
	models.Tag
	Inserted bool `db:"inserted"`
}

// Repository provides tenant-scoped access to tag rows.
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

// Upsert inserts a tag by (tenant_id, name), returning the existing row when
// the name is already taken. The existing row's color is left untouched; only
// a brand new tag takes the supplied color. Inserted reports which happened.
func (r *Repository) Upsert(ctx context.Context, tenantID string, name string, color string) (*UpsertResult, error) {
	ctx, span := tracing.StartSpan(ctx, "tag.Repository.Upsert")
	defer span.End()

	if color == "" {
		color = models.DefaultTagColor
	}

	now := time.Now().UTC()

	sb := database.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "tenant_id", "name", "color", "created_at", "updated_at")
	sb.Values(uuid.New().String(), tenantID, name, color, now, now)
	// The no-op update makes RETURNING yield the surviving row on conflict;
	// (xmax = 0) distinguishes a fresh insert from a matched row.
	ub := sb.OnConflict("tenant_id", "name")
	ub.Set(ub.Assign("name", database.Excluded("name")))
	sb.Returning("*, (xmax = 0) AS inserted")

	query, args := sb.Build()

	var result UpsertResult
	if err := r.q(ctx).GetContext(ctx, &result, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
			"name":      name,
		}).Error("failed to upsert tag")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert tag")
	}

	return &result, nil
}

// GetByID gets a tag by ID. Returns (nil, nil) when the tag does not exist for
// this tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.Tag, error) {
	ctx, span := tracing.StartSpan(ctx, "tag.Repository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()

	var t models.Tag
	err := r.q(ctx).GetContext(ctx, &t, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to get tag by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tag")
	}

	return &t, nil
}

// GetByIDs fetches every tag in ids that belongs to the tenant.
func (r *Repository) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Tag, error) {
	ctx, span := tracing.StartSpan(ctx, "tag.Repository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	args := ectolinq.Map(ids, func(id string) any { return id })

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", args...),
	)

	query, queryArgs := sb.Build()

	var items []models.Tag
	if err := r.q(ctx).SelectContext(ctx, &items, query, queryArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
		}).Error("failed to get tags by IDs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tags")
	}

	return items, nil
}

// List lists tags for a tenant with pagination.
func (r *Repository) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.Tag, int, error) {
	ctx, span := tracing.StartSpan(ctx, "tag.Repository.List")
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
	countSb.Where(countSb.Equal("tenant_id", tenantID))
	countQuery, countArgs := countSb.Build()

	var totalCount int
	if err := r.q(ctx).GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count tags")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count tags")
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("name ASC")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args := sb.Build()

	var items []models.Tag
	if err := r.q(ctx).SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
		}).Error("failed to list tags")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list tags")
	}

	return items, totalCount, nil
}

// Update renames or recolors a tag.
func (r *Repository) Update(ctx context.Context, tenantID string, id string, req models.UpdateTagRequest) (*models.Tag, error) {
	ctx, span := tracing.StartSpan(ctx, "tag.Repository.Update")
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
	if req.Color != nil {
		sb.Set(sb.Assign("color", *req.Color))
	}
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()

	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to update tag")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update tag")
	}

	return r.GetByID(ctx, tenantID, id)
}

// Delete removes a tag; attachment rows cascade.
func (r *Repository) Delete(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "tag.Repository.Delete")
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
		}).Error("failed to delete tag")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete tag")
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"tenant_id":     tenantID,
		"rows_affected": rowsAffected,
	}).Info("deleted tag")

	return nil
}
