// Package tags resolves client-supplied tag reference lists into concrete tag
// ids. References to existing tags pass through after an ownership check; new
// names are upserted against the (tenant_id, name) constraint, so two clients
// racing on the same name converge on one row.
package tags

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	tagrepo "github.com/trellishq/trellis/internal/repositories/tag"
	"github.com/trellishq/trellis/pkg/models"
	"github.com/trellishq/trellis/pkg/tracing"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Store is the tag persistence surface the resolver needs.
type Store interface {
	Upsert(ctx context.Context, tenantID string, name string, color string) (*tagrepo.UpsertResult, error)
	GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Tag, error)
}

// Resolver turns tag reference lists into tag id lists.
type Resolver struct {
	store  Store
	logger ectologger.Logger
}

func NewResolver(store Store, logger ectologger.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
	}
}

// ValidateRefs checks every reference before any write happens. A bad ref
// anywhere in the list rejects the whole list, so a partially-resolved batch
// never occurs.
func (r *Resolver) ValidateRefs(refs []models.TagRef) error {
	for i, ref := range refs {
		if ref.IsExisting() {
			continue
		}
		if ref.Name == "" {
			return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("tag ref %d: a new tag requires a name", i))
		}
		if ref.Color != "" && !colorPattern.MatchString(ref.Color) {
			return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("tag ref %d: color must be a #RRGGBB hex value", i))
		}
	}
	return nil
}

// Resolve validates refs, then maps each to a concrete tag id, preserving
// order. Existing ids are verified against the tenant; unknown ids reject the
// list. Repeated new names resolve to the same tag.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, refs []models.TagRef) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "tags.Resolver.Resolve")
	defer span.End()

	if err := r.ValidateRefs(refs); err != nil {
		return nil, err
	}

	// Verify all existing ids in one query.
	var existingIDs []string
	for _, ref := range refs {
		if ref.IsExisting() {
			existingIDs = append(existingIDs, ref.ExistingID)
		}
	}

	known := make(map[string]bool, len(existingIDs))
	if len(existingIDs) > 0 {
		tags, err := r.store.GetByIDs(ctx, tenantID, existingIDs)
		if err != nil {
			return nil, err
		}
		for _, t := range tags {
			known[t.ID] = true
		}
	}

	resolved := make([]string, 0, len(refs))
	// Within one list the same name always resolves to the same id without a
	// second round trip.
	byName := make(map[string]string)

	for _, ref := range refs {
		if ref.IsExisting() {
			if !known[ref.ExistingID] {
				return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("tag %s not found", ref.ExistingID))
			}
			resolved = append(resolved, ref.ExistingID)
			continue
		}

		if id, ok := byName[ref.Name]; ok {
			resolved = append(resolved, id)
			continue
		}

		result, err := r.store.Upsert(ctx, tenantID, ref.Name, ref.Color)
		if err != nil {
			return nil, err
		}

		if result.Inserted {
			r.logger.WithContext(ctx).WithFields(map[string]any{
				"tenant_id": tenantID,
				"tag_id":    result.ID,
				"name":      ref.Name,
			}).Info("created tag during resolution")
		}

		byName[ref.Name] = result.ID
		resolved = append(resolved, result.ID)
	}

	return resolved, nil
}
