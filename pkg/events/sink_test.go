package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trellishq/trellis/pkg/models"
)

func TestNoopSinkDiscardsEvents(t *testing.T) {
	ctx := context.Background()
	sink := Noop{}

	assert.NoError(t, sink.EmitContactCreated(ctx, &models.Contact{ID: "c-1"}))
	assert.NoError(t, sink.EmitContactUpdated(ctx, &models.Contact{ID: "c-1"}))
	assert.NoError(t, sink.EmitContactDeleted(ctx, "t1", "c-1"))
}
