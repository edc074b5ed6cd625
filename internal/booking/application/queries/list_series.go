package queries

import (
	"context"

	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	"github.com/google/uuid"
)

// SeriesReader loads the occurrences of a recurring series.
type SeriesReader interface {
	FindSeries(ctx context.Context, seriesID uuid.UUID) ([]*domain.Reservation, error)
}

// ListSeriesQuery selects one recurring series.
type ListSeriesQuery struct {
	SeriesID uuid.UUID
}

// ListSeriesHandler handles the ListSeriesQuery.
type ListSeriesHandler struct {
	repo SeriesReader
}

// NewListSeriesHandler creates a new ListSeriesHandler.
func NewListSeriesHandler(repo SeriesReader) *ListSeriesHandler {
	return &ListSeriesHandler{repo: repo}
}

// Handle returns the series ordered by start, cancelled occurrences
// included. An unknown series yields an empty list.
func (h *ListSeriesHandler) Handle(ctx context.Context, query ListSeriesQuery) ([]ReservationDTO, error) {
	series, err := h.repo.FindSeries(ctx, query.SeriesID)
	if err != nil {
		return nil, err
	}
	out := make([]ReservationDTO, len(series))
	for i, r := range series {
		out[i] = NewReservationDTO(r)
	}
	return out, nil
}
