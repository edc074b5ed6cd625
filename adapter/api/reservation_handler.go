package api

import (
	"log/slog"
	"net/http"

	"github.com/felixgeelhaar/studiobook/internal/booking/application/commands"
	"github.com/felixgeelhaar/studiobook/internal/booking/application/queries"
	bookingDomain "github.com/felixgeelhaar/studiobook/internal/booking/domain"
	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ReservationHandler handles reservation API requests.
type ReservationHandler struct {
	create    *commands.CreateReservationHandler
	update    *commands.UpdateReservationHandler
	cancel    *commands.CancelReservationHandler
	recurring *commands.CreateRecurringHandler
	get       *queries.GetReservationHandler
	series    *queries.ListSeriesHandler
	preview   *queries.PreviewRecurrenceHandler
	detect    *queries.DetectConflictsHandler
	validate  *validator.Validate
	logger    *slog.Logger
}

// ReservationHandlerConfig holds dependencies for the reservation handler.
type ReservationHandlerConfig struct {
	CreateReservation *commands.CreateReservationHandler
	UpdateReservation *commands.UpdateReservationHandler
	CancelReservation *commands.CancelReservationHandler
	CreateRecurring   *commands.CreateRecurringHandler
	GetReservation    *queries.GetReservationHandler
	ListSeries        *queries.ListSeriesHandler
	PreviewRecurrence *queries.PreviewRecurrenceHandler
	DetectConflicts   *queries.DetectConflictsHandler
	Logger            *slog.Logger
}

// NewReservationHandler creates a new reservation handler.
func NewReservationHandler(cfg ReservationHandlerConfig) *ReservationHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ReservationHandler{
		create:    cfg.CreateReservation,
		update:    cfg.UpdateReservation,
		cancel:    cfg.CancelReservation,
		recurring: cfg.CreateRecurring,
		get:       cfg.GetReservation,
		series:    cfg.ListSeries,
		preview:   cfg.PreviewRecurrence,
		detect:    cfg.DetectConflicts,
		validate:  validator.New(),
		logger:    cfg.Logger,
	}
}

type reservationResponse struct {
	Reservation queries.ReservationDTO       `json:"reservation"`
	Overridden  []bookingDomain.ConflictInfo `json:"overriddenConflicts,omitempty"`
}

type updateReservationResponse struct {
	reservationResponse
	Rescheduled bool                     `json:"rescheduled"`
	GuestDiff   *bookingDomain.GuestDiff `json:"guestDiff,omitempty"`
}

// Create handles POST /reservations
func (h *ReservationHandler) Create(c *gin.Context) {
	var req createReservationRequest
	if err := bind(c, h.validate, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	cmd, err := req.toCommand()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.create.Handle(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, reservationResponse{
		Reservation: queries.NewReservationDTO(result.Reservation),
		Overridden:  result.Overridden,
	})
}

// Get handles GET /reservations/:id
func (h *ReservationHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	dto, err := h.get.Handle(c.Request.Context(), queries.GetReservationQuery{ReservationID: id})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, reservationResponse{Reservation: *dto})
}

// ListSeries handles GET /reservations?seriesId=
func (h *ReservationHandler) ListSeries(c *gin.Context) {
	raw := c.Query("seriesId")
	if raw == "" {
		respondError(c, h.logger, sharedDomain.NewValidationError("seriesId", "is required"))
		return
	}
	seriesID, err := uuid.Parse(raw)
	if err != nil {
		respondError(c, h.logger, &APIError{Status: http.StatusBadRequest, Code: ErrBadRequest.Code, Message: "invalid series id"})
		return
	}
	dtos, err := h.series.Handle(c.Request.Context(), queries.ListSeriesQuery{SeriesID: seriesID})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seriesId": seriesID, "reservations": dtos})
}

// Update handles PATCH /reservations/:id
func (h *ReservationHandler) Update(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req updateReservationRequest
	if err := bind(c, h.validate, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	cmd, err := req.toCommand(id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.update.Handle(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	resp := updateReservationResponse{
		reservationResponse: reservationResponse{
			Reservation: queries.NewReservationDTO(result.Reservation),
			Overridden:  result.Overridden,
		},
		Rescheduled: result.Rescheduled,
	}
	if !result.GuestDiff.IsEmpty() {
		resp.GuestDiff = &result.GuestDiff
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel handles DELETE /reservations/:id
func (h *ReservationHandler) Cancel(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	r, err := h.cancel.Handle(c.Request.Context(), commands.CancelReservationCommand{ReservationID: id})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, reservationResponse{Reservation: queries.NewReservationDTO(r)})
}

// PreviewRecurrence handles POST /reservations/recurring/preview
func (h *ReservationHandler) PreviewRecurrence(c *gin.Context) {
	var req previewRecurrenceRequest
	if err := bind(c, h.validate, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	pattern, err := req.Pattern.toDomain()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	dates, err := h.preview.Handle(c.Request.Context(), queries.PreviewRecurrenceQuery{
		Pattern:      pattern,
		ResourceKeys: req.ResourceKeys,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": dates})
}

type recurringResponse struct {
	SeriesID     string                      `json:"seriesId"`
	Created      []queries.ReservationDTO    `json:"created"`
	SkippedDates []bookingDomain.SkippedDate `json:"skippedDates"`
	Error        string                      `json:"error,omitempty"`
}

// CreateRecurring handles POST /reservations/recurring
func (h *ReservationHandler) CreateRecurring(c *gin.Context) {
	var req createRecurringRequest
	if err := bind(c, h.validate, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	cmd, err := req.toCommand()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.recurring.Handle(c.Request.Context(), cmd)
	if err != nil && (result == nil || len(result.Created) == 0) {
		respondError(c, h.logger, err)
		return
	}

	resp := recurringResponse{
		SeriesID:     result.SeriesID.String(),
		Created:      queries.NewReservationDTOs(result.Created),
		SkippedDates: result.Skipped,
	}
	if resp.SkippedDates == nil {
		resp.SkippedDates = []bookingDomain.SkippedDate{}
	}
	if err != nil {
		// The batch stopped part way; what was created stays created.
		status, body := errorResponse(err)
		h.logger.Error("recurring batch stopped", "series_id", result.SeriesID, "created", len(result.Created), "error", err)
		resp.Error = body.Message
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// DetectConflicts handles POST /conflicts/detect
func (h *ReservationHandler) DetectConflicts(c *gin.Context) {
	var req detectConflictsRequest
	if err := bind(c, h.validate, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	window, err := req.Window.toDomain()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	conflicts, err := h.detect.Handle(c.Request.Context(), queries.DetectConflictsQuery{
		ResourceKeys: req.ResourceKeys,
		Window:       window,
		ExcludeID:    req.ExcludeID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": conflicts})
}
