// Package relationships keeps the two directed rows of a logical relationship
// consistent. Creation resolves and persists the mirrored edge; deletion
// removes the pair. No database constraint enforces the pairing, so every
// relationship write must go through the Engine.
package relationships

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/trellishq/trellis/pkg/metrics"
	"github.com/trellishq/trellis/pkg/models"
	"github.com/trellishq/trellis/pkg/tracing"
)

// ContactStore is the contact surface the engine needs.
type ContactStore interface {
	GetByID(ctx context.Context, tenantID string, id string) (*models.Contact, error)
	UpdateGender(ctx context.Context, tenantID string, id string, gender string) error
}

// TypeStore looks up relationship type definitions.
type TypeStore interface {
	GetByID(ctx context.Context, tenantID string, id string) (*models.RelationshipType, error)
}

// EdgeStore persists directed relationship edges.
type EdgeStore interface {
	Insert(ctx context.Context, rel models.Relationship) (*models.Relationship, error)
	Exists(ctx context.Context, tenantID string, fromContactID, toContactID, typeID string) (bool, error)
	GetByID(ctx context.Context, tenantID string, id string) (*models.Relationship, error)
	DeleteByID(ctx context.Context, tenantID string, id string) (int64, error)
	DeleteMatching(ctx context.Context, tenantID string, fromContactID, toContactID string, typeIDs []string) (int64, error)
}

// EventSink receives lifecycle events. Emission failures are logged by the
// sink; the engine treats them as fire-and-forget.
type EventSink interface {
	EmitRelationshipCreated(ctx context.Context, rel *models.Relationship) error
	EmitRelationshipDeleted(ctx context.Context, rel *models.Relationship) error
}

// Engine applies relationship mutations and their mirrored side effects.
type Engine struct {
	contacts ContactStore
	types    TypeStore
	edges    EdgeStore
	events   EventSink
	logger   ectologger.Logger
}

func NewEngine(contacts ContactStore, types TypeStore, edges EdgeStore, events EventSink, logger ectologger.Logger) *Engine {
	return &Engine{
		contacts: contacts,
		types:    types,
		edges:    edges,
		events:   events,
		logger:   logger,
	}
}

// ResolveReverseTypeID computes the type of the mirrored edge. A symmetric
// type is its own reverse. Otherwise the gendered pointer matching the target
// contact's effective gender wins, falling back to the default pointer; nil
// means the relationship is directed-only and no mirror is created.
func ResolveReverseTypeID(t *models.RelationshipType, gender *string) *string {
	if t.IsSymmetric {
		id := t.ID
		return &id
	}
	if gender != nil {
		switch *gender {
		case models.GenderMale:
			if t.MaleReverseTypeID != nil && *t.MaleReverseTypeID != "" {
				return t.MaleReverseTypeID
			}
		case models.GenderFemale:
			if t.FemaleReverseTypeID != nil && *t.FemaleReverseTypeID != "" {
				return t.FemaleReverseTypeID
			}
		}
	}
	if t.DefaultReverseTypeID != nil && *t.DefaultReverseTypeID != "" {
		return t.DefaultReverseTypeID
	}
	return nil
}

// AddRelationship creates a directed edge plus, when the type rules call for
// one, its mirrored edge. Supplying a target gender that differs from the
// stored one updates the contact in place before resolution; the mutation is
// reported in the result rather than hidden.
//
// The steps are not one atomic transaction. A crash between the primary and
// reverse insert leaves a one-sided relationship, which is accepted and
// recoverable.
func (e *Engine) AddRelationship(ctx context.Context, tenantID string, req models.AddRelationshipRequest) (*models.AddRelationshipResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "relationships.Engine.AddRelationship")
	defer span.End()

	fromContact, err := e.contacts.GetByID(ctx, tenantID, req.FromContactID)
	if err != nil {
		return nil, err
	}
	if fromContact == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "contact not found")
	}

	toContact, err := e.contacts.GetByID(ctx, tenantID, req.ToContactID)
	if err != nil {
		return nil, err
	}
	if toContact == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "contact not found")
	}

	relType, err := e.types.GetByID(ctx, tenantID, req.TypeID)
	if err != nil {
		return nil, err
	}
	if relType == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "relationship type not found")
	}

	// Reverse resolution depends on the up-to-date gender, so the mutation
	// happens first.
	effectiveGender := toContact.Gender
	genderChanged := false
	if req.TargetGender != nil && (toContact.Gender == nil || *toContact.Gender != *req.TargetGender) {
		if err := e.contacts.UpdateGender(ctx, tenantID, req.ToContactID, *req.TargetGender); err != nil {
			return nil, err
		}
		effectiveGender = req.TargetGender
		genderChanged = true

		e.logger.WithContext(ctx).WithFields(map[string]any{
			"tenant_id":  tenantID,
			"contact_id": req.ToContactID,
			"gender":     *req.TargetGender,
		}).Info("updated contact gender during relationship creation")
	}

	exists, err := e.edges.Exists(ctx, tenantID, req.FromContactID, req.ToContactID, req.TypeID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, httperror.NewHTTPError(http.StatusConflict, "relationship already exists")
	}

	reverseTypeID := ResolveReverseTypeID(relType, effectiveGender)

	primary, err := e.edges.Insert(ctx, models.Relationship{
		TenantID:      tenantID,
		FromContactID: req.FromContactID,
		ToContactID:   req.ToContactID,
		TypeID:        req.TypeID,
		ReverseTypeID: reverseTypeID,
		Notes:         req.Notes,
	})
	if err != nil {
		return nil, err
	}

	result := &models.AddRelationshipResponse{
		RelationshipID: primary.ID,
		ReverseTypeID:  reverseTypeID,
		GenderChanged:  genderChanged,
	}

	reverseOutcome := "none"
	if reverseTypeID != nil {
		reverseExists, err := e.edges.Exists(ctx, tenantID, req.ToContactID, req.FromContactID, *reverseTypeID)
		if err != nil {
			return nil, err
		}
		if reverseExists {
			reverseOutcome = "existing"
		} else {
			// The mirror records the primary type as its own reverse, so
			// deleting from either side removes the pair exactly.
			primaryTypeID := req.TypeID
			reverse, err := e.edges.Insert(ctx, models.Relationship{
				TenantID:      tenantID,
				FromContactID: req.ToContactID,
				ToContactID:   req.FromContactID,
				TypeID:        *reverseTypeID,
				ReverseTypeID: &primaryTypeID,
			})
			if err != nil {
				return nil, err
			}
			result.ReverseRelationshipID = &reverse.ID
			reverseOutcome = "created"
		}
	}

	metrics.RelationshipSync.WithLabelValues("create", reverseOutcome).Inc()

	if e.events != nil {
		if err := e.events.EmitRelationshipCreated(ctx, primary); err != nil {
			e.logger.WithContext(ctx).WithError(err).Warn("relationship.created event emission failed")
		}
	}

	return result, nil
}

// DeleteRelationship removes an edge and its mirror. Edges that carry a
// persisted reverse type are matched exactly; older rows fall back to the
// type's full candidate set, which can match zero or several rows when the
// type configuration or the contact's gender changed since creation.
func (e *Engine) DeleteRelationship(ctx context.Context, tenantID string, relationshipID string) error {
	ctx, span := tracing.StartSpan(ctx, "relationships.Engine.DeleteRelationship")
	defer span.End()

	edge, err := e.edges.GetByID(ctx, tenantID, relationshipID)
	if err != nil {
		return err
	}
	if edge == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "relationship not found")
	}

	var candidateTypeIDs []string
	if edge.ReverseTypeID != nil {
		candidateTypeIDs = []string{*edge.ReverseTypeID}
	} else {
		relType, err := e.types.GetByID(ctx, tenantID, edge.TypeID)
		if err != nil {
			return err
		}
		if relType != nil {
			candidateTypeIDs = relType.ReverseCandidateTypeIDs()
		}
	}

	reverseDeleted, err := e.edges.DeleteMatching(ctx, tenantID, edge.ToContactID, edge.FromContactID, candidateTypeIDs)
	if err != nil {
		return err
	}

	if _, err := e.edges.DeleteByID(ctx, tenantID, relationshipID); err != nil {
		return err
	}

	reverseOutcome := "none"
	if reverseDeleted > 0 {
		reverseOutcome = "deleted"
	}
	metrics.RelationshipSync.WithLabelValues("delete", reverseOutcome).Inc()

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":       tenantID,
		"relationship_id": relationshipID,
		"reverse_deleted": reverseDeleted,
	}).Info("deleted relationship")

	if e.events != nil {
		if err := e.events.EmitRelationshipDeleted(ctx, edge); err != nil {
			e.logger.WithContext(ctx).WithError(err).Warn("relationship.deleted event emission failed")
		}
	}

	return nil
}
