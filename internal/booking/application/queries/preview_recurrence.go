package queries

import (
	"context"

	"github.com/felixgeelhaar/studiobook/internal/booking/application/services"
	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
)

// PreviewRecurrenceQuery asks which dates of a pattern are free.
type PreviewRecurrenceQuery struct {
	Pattern      domain.RecurrencePattern
	ResourceKeys []domain.ResourceKey
}

// PreviewRecurrenceHandler handles the PreviewRecurrenceQuery. It never
// writes and may be built on a replica reader.
type PreviewRecurrenceHandler struct {
	expander *services.RecurrenceExpander
}

// NewPreviewRecurrenceHandler creates a new PreviewRecurrenceHandler.
func NewPreviewRecurrenceHandler(expander *services.RecurrenceExpander) *PreviewRecurrenceHandler {
	return &PreviewRecurrenceHandler{expander: expander}
}

// Handle executes the PreviewRecurrenceQuery.
func (h *PreviewRecurrenceHandler) Handle(ctx context.Context, query PreviewRecurrenceQuery) ([]services.DatePreview, error) {
	return h.expander.PreviewDates(ctx, query.Pattern, query.ResourceKeys)
}
