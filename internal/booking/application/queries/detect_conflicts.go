package queries

import (
	"context"

	"github.com/felixgeelhaar/studiobook/internal/booking/application/services"
	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	"github.com/google/uuid"
)

// DetectConflictsQuery asks what a window would collide with.
type DetectConflictsQuery struct {
	ResourceKeys []domain.ResourceKey
	Window       domain.TimeWindow
	ExcludeID    *uuid.UUID
}

// DetectConflictsHandler handles the DetectConflictsQuery.
type DetectConflictsHandler struct {
	detector *services.ConflictDetector
}

// NewDetectConflictsHandler creates a new DetectConflictsHandler.
func NewDetectConflictsHandler(detector *services.ConflictDetector) *DetectConflictsHandler {
	return &DetectConflictsHandler{detector: detector}
}

// Handle executes the DetectConflictsQuery. The result is never nil.
func (h *DetectConflictsHandler) Handle(ctx context.Context, query DetectConflictsQuery) ([]domain.ConflictInfo, error) {
	conflicts, err := h.detector.DetectConflicts(ctx, query.ResourceKeys, query.Window, query.ExcludeID)
	if err != nil {
		return nil, err
	}
	if conflicts == nil {
		conflicts = []domain.ConflictInfo{}
	}
	return conflicts, nil
}
