package queries

import (
	"context"

	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	"github.com/google/uuid"
)

// GetReservationQuery contains the parameters for getting a reservation.
type GetReservationQuery struct {
	ReservationID uuid.UUID
}

// GetReservationHandler handles the GetReservationQuery.
type GetReservationHandler struct {
	repo domain.ReservationRepository
}

// NewGetReservationHandler creates a new GetReservationHandler.
func NewGetReservationHandler(repo domain.ReservationRepository) *GetReservationHandler {
	return &GetReservationHandler{repo: repo}
}

// Handle executes the GetReservationQuery. Cancelled reservations are
// returned with their cancellation time.
func (h *GetReservationHandler) Handle(ctx context.Context, query GetReservationQuery) (*ReservationDTO, error) {
	r, err := h.repo.FindByID(ctx, query.ReservationID)
	if err != nil {
		return nil, err
	}
	dto := NewReservationDTO(r)
	return &dto, nil
}
