package contact

import (
	"context"
	"database/sql"
	"encoding/json"
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

const tableName = "contacts"

var columns = []string{
	"id", "tenant_id", "display_name", "gender", "source_name", "email", "phone",
	"primary_image_ref", "extras", "created_at", "updated_at", "deleted_at",
}

// Repository provides tenant-scoped access to contact rows. Every method is
// scoped by tenant_id; a row belonging to another tenant is indistinguishable
// from a missing row.
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

// q returns the transaction bound to ctx when one is open, so repository calls
// inside the import pipeline's transaction join it transparently.
func (r *Repository) q(ctx context.Context) database.Queryable {
	if tx, ok := database.TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// Create inserts a new contact for the tenant.
func (r *Repository) Create(ctx context.Context, tenantID string, req models.CreateContactRequest) (*models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	id := uuid.New().String()

	extras := req.Extras
	if len(extras) == 0 {
		extras = json.RawMessage("{}")
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "tenant_id", "display_name", "gender", "source_name", "email", "phone", "extras", "created_at", "updated_at")
	sb.Values(id, tenantID, req.DisplayName, req.Gender, req.SourceName, req.Email, req.Phone, extras, now, now)

	query, args := sb.Build()

	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to create contact")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create contact")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
	}).Info("created contact")

	return r.GetByID(ctx, tenantID, id)
}

// GetByID gets a contact by ID. Returns (nil, nil) when the contact does not
// exist for this tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.GetByID")
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

	var c models.Contact
	err := r.q(ctx).GetContext(ctx, &c, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to get contact by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get contact")
	}

	return &c, nil
}

// List lists contacts for a tenant with pagination.
func (r *Repository) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.Contact, int, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

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
		r.logger.WithContext(ctx).WithError(err).Error("failed to count contacts")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count contacts")
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("display_name ASC")
	sb.Limit(pageSize)
	sb.Offset(offset)

	query, args := sb.Build()

	var items []models.Contact
	if err := r.q(ctx).SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
			"page":      page,
		}).Error("failed to list contacts")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list contacts")
	}

	return items, totalCount, nil
}

// Update applies a partial update to a contact.
func (r *Repository) Update(ctx context.Context, tenantID string, id string, req models.UpdateContactRequest) (*models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Update")
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

	if req.DisplayName != nil {
		sb.Set(sb.Assign("display_name", *req.DisplayName))
	}
	if req.Gender != nil {
		sb.Set(sb.Assign("gender", *req.Gender))
	}
	if req.SourceName != nil {
		sb.Set(sb.Assign("source_name", *req.SourceName))
	}
	if req.Email != nil {
		sb.Set(sb.Assign("email", *req.Email))
	}
	if req.Phone != nil {
		sb.Set(sb.Assign("phone", *req.Phone))
	}
	if req.Extras != nil {
		sb.Set(sb.Assign("extras", *req.Extras))
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
		}).Error("failed to update contact")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update contact")
	}

	return r.GetByID(ctx, tenantID, id)
}

// UpdateGender sets the contact's gender in place. Relationship creation uses
// this before reverse-type resolution; the mutation is surfaced in AddResult.
func (r *Repository) UpdateGender(ctx context.Context, tenantID string, id string, gender string) error {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.UpdateGender")
	defer span.End()

	sb := database.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(
		sb.Assign("gender", gender),
		sb.Assign("updated_at", time.Now().UTC()),
	)
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
			"gender":    gender,
		}).Error("failed to update contact gender")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update contact gender")
	}

	return nil
}

// SetPrimaryImage records (or clears, with nil) the contact's primary image reference.
func (r *Repository) SetPrimaryImage(ctx context.Context, tenantID string, id string, ref *string) error {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.SetPrimaryImage")
	defer span.End()

	sb := database.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(
		sb.Assign("primary_image_ref", ref),
		sb.Assign("updated_at", time.Now().UTC()),
	)
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
		}).Error("failed to set contact primary image")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set contact primary image")
	}

	return nil
}

// Delete soft deletes a contact.
func (r *Repository) Delete(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Delete")
	defer span.End()

	sb := database.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(sb.Assign("deleted_at", time.Now().UTC()))
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	result, err := r.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("failed to delete contact")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete contact")
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"tenant_id":     tenantID,
		"rows_affected": rowsAffected,
	}).Info("deleted contact")

	return nil
}

// GetByKeys fetches, in one query, every contact matching any key in the set.
// The import pipeline calls this once per batch instead of once per candidate.
func (r *Repository) GetByKeys(ctx context.Context, tenantID string, keys models.ContactKeySet) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.GetByKeys")
	defer span.End()

	if keys.IsEmpty() {
		return nil, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)

	var keyConds []string
	if len(keys.SourceNames) > 0 {
		keyConds = append(keyConds, sb.In("source_name", sqlbuilder.List(keys.SourceNames)))
	}
	if len(keys.Emails) > 0 {
		keyConds = append(keyConds, sb.In("email", sqlbuilder.List(keys.Emails)))
	}
	if len(keys.Phones) > 0 {
		keyConds = append(keyConds, sb.In("phone", sqlbuilder.List(keys.Phones)))
	}

	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
		sb.Or(keyConds...),
	)

	query, args := sb.Build()

	var items []models.Contact
	if err := r.q(ctx).SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
		}).Error("failed to fetch contacts by key set")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to fetch contacts by keys")
	}

	return items, nil
}

// BulkInsert inserts the given contacts in one statement, silently skipping any
// row that collides with an existing dedup key. Returns the number of rows the
// statement actually inserted.
func (r *Repository) BulkInsert(ctx context.Context, tenantID string, contacts []models.Contact) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.BulkInsert")
	defer span.End()

	if len(contacts) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()

	sb := database.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "tenant_id", "display_name", "gender", "source_name", "email", "phone", "extras", "created_at", "updated_at")
	for _, c := range contacts {
		extras := c.Extras
		if len(extras) == 0 {
			extras = json.RawMessage("{}")
		}
		sb.Values(c.ID, tenantID, c.DisplayName, c.Gender, c.SourceName, c.Email, c.Phone, extras, now, now)
	}
	// Residual collisions (keys that appeared between partition and commit) are
	// skipped rather than failing the batch.
	sb.OnConflictDoNothing()

	query, args := sb.Build()

	result, err := r.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
			"count":     len(contacts),
		}).Error("failed to bulk insert contacts")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to bulk insert contacts")
	}

	rowsAffected, _ := result.RowsAffected()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"requested": len(contacts),
		"inserted":  rowsAffected,
	}).Info("bulk inserted contacts")

	return int(rowsAffected), nil
}
