package events

import (
	"context"

	"github.com/trellishq/trellis/pkg/models"
)

// ContactSink receives contact lifecycle events. Route handlers emit through
// it fire-and-forget after a successful write.
type ContactSink interface {
	EmitContactCreated(ctx context.Context, contact *models.Contact) error
	EmitContactUpdated(ctx context.Context, contact *models.Contact) error
	EmitContactDeleted(ctx context.Context, tenantID string, contactID string) error
}

var _ ContactSink = (*Emitter)(nil)

// Noop is the ContactSink used when no broker is configured.
type Noop struct{}

func (Noop) EmitContactCreated(ctx context.Context, contact *models.Contact) error { return nil }
func (Noop) EmitContactUpdated(ctx context.Context, contact *models.Contact) error { return nil }
func (Noop) EmitContactDeleted(ctx context.Context, tenantID string, contactID string) error {
	return nil
}
