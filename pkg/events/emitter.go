// Package events handles event emission for contact and relationship lifecycle
// changes. Emission is best-effort: callers log and continue on failure, so a
// broker outage never fails the write that triggered the event.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/trellishq/trellis/pkg/kafka"
	"github.com/trellishq/trellis/pkg/models"
	"github.com/trellishq/trellis/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

const (
	EventTypeContactCreated      = "contact.created"
	EventTypeContactUpdated      = "contact.updated"
	EventTypeContactDeleted      = "contact.deleted"
	EventTypeRelationshipCreated = "relationship.created"
	EventTypeRelationshipDeleted = "relationship.deleted"
	EventTypeImportCompleted     = "import.completed"
)

// Emitter handles event emission
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitContactCreated emits a contact created event
func (e *Emitter) EmitContactCreated(ctx context.Context, contact *models.Contact) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitContactCreated")
	defer span.End()

	return e.emitContact(ctx, EventTypeContactCreated, contact)
}

// EmitContactUpdated emits a contact updated event
func (e *Emitter) EmitContactUpdated(ctx context.Context, contact *models.Contact) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitContactUpdated")
	defer span.End()

	return e.emitContact(ctx, EventTypeContactUpdated, contact)
}

// EmitContactDeleted emits a contact deleted event
func (e *Emitter) EmitContactDeleted(ctx context.Context, tenantID string, contactID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitContactDeleted")
	defer span.End()

	event := &kafka.ContactEvent{
		EventType: EventTypeContactDeleted,
		TenantID:  tenantID,
		ContactID: contactID,
	}

	if err := e.producer.PublishContactEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit contact.deleted event")
		return err
	}

	return nil
}

func (e *Emitter) emitContact(ctx context.Context, eventType string, contact *models.Contact) error {
	data, _ := json.Marshal(contact)

	event := &kafka.ContactEvent{
		EventType: eventType,
		TenantID:  contact.TenantID,
		ContactID: contact.ID,
		Data:      data,
	}

	if err := e.producer.PublishContactEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
		}).Error("Failed to emit contact event")
		return err
	}

	return nil
}

// EmitRelationshipCreated emits a relationship created event
func (e *Emitter) EmitRelationshipCreated(ctx context.Context, rel *models.Relationship) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRelationshipCreated")
	defer span.End()

	event := &kafka.RelationshipEvent{
		EventType:      EventTypeRelationshipCreated,
		TenantID:       rel.TenantID,
		RelationshipID: rel.ID,
		TypeID:         rel.TypeID,
		FromContactID:  rel.FromContactID,
		ToContactID:    rel.ToContactID,
		ReverseTypeID:  rel.ReverseTypeID,
	}

	if err := e.producer.PublishRelationshipEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit relationship.created event")
		return err
	}

	return nil
}

// EmitRelationshipDeleted emits a relationship deleted event
func (e *Emitter) EmitRelationshipDeleted(ctx context.Context, rel *models.Relationship) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRelationshipDeleted")
	defer span.End()

	event := &kafka.RelationshipEvent{
		EventType:      EventTypeRelationshipDeleted,
		TenantID:       rel.TenantID,
		RelationshipID: rel.ID,
		TypeID:         rel.TypeID,
		FromContactID:  rel.FromContactID,
		ToContactID:    rel.ToContactID,
		ReverseTypeID:  rel.ReverseTypeID,
	}

	if err := e.producer.PublishRelationshipEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit relationship.deleted event")
		return err
	}

	return nil
}

// EmitImportCompleted emits a summary event after an import batch commits
func (e *Emitter) EmitImportCompleted(ctx context.Context, tenantID string, batchID string, summary models.ImportSummary) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitImportCompleted")
	defer span.End()

	event := &kafka.ImportEvent{
		EventType: EventTypeImportCompleted,
		TenantID:  tenantID,
		BatchID:   batchID,
		Imported:  summary.Imported,
		Updated:   summary.Updated,
		Skipped:   summary.Skipped,
		Errors:    summary.Errors,
	}

	if err := e.producer.PublishImportEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit import.completed event")
		return err
	}

	return nil
}
