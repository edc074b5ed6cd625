package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	attendanceApp "github.com/felixgeelhaar/studiobook/internal/attendance/application"
	attendanceDomain "github.com/felixgeelhaar/studiobook/internal/attendance/domain"
	"github.com/felixgeelhaar/studiobook/internal/booking/application/commands"
	bookingDomain "github.com/felixgeelhaar/studiobook/internal/booking/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type windowRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

func (w windowRequest) toDomain() (bookingDomain.TimeWindow, error) {
	return bookingDomain.NewTimeWindow(w.Start, w.End)
}

type patternRequest struct {
	DayOfWeek       string   `json:"dayOfWeek" validate:"required"`
	TimeOfDay       string   `json:"timeOfDay" validate:"required"`
	DurationMinutes int      `json:"durationMinutes" validate:"required,gt=0"`
	IntervalStart   string   `json:"intervalStart" validate:"required"`
	IntervalEnd     string   `json:"intervalEnd" validate:"required"`
	SkipDates       []string `json:"skipDates"`
	Location        string   `json:"location"`
}

func (p patternRequest) toDomain() (bookingDomain.RecurrencePattern, error) {
	return bookingDomain.NewRecurrencePattern(bookingDomain.RecurrencePatternParams{
		DayOfWeek:       p.DayOfWeek,
		TimeOfDay:       p.TimeOfDay,
		DurationMinutes: p.DurationMinutes,
		IntervalStart:   p.IntervalStart,
		IntervalEnd:     p.IntervalEnd,
		SkipDates:       p.SkipDates,
		Location:        p.Location,
	})
}

type createReservationRequest struct {
	ResourceKeys  []bookingDomain.ResourceKey `json:"resourceKeys" validate:"required,min=1,dive"`
	Window        windowRequest               `json:"window"`
	GuestSpecs    []int64                     `json:"guestSpecs"`
	ServiceTypeID int64                       `json:"serviceTypeId" validate:"required,gt=0"`
	MainClientID  *int64                      `json:"mainClientId" validate:"omitempty,gt=0"`
	Title         string                      `json:"title" validate:"max=200"`
	Kind          string                      `json:"kind" validate:"omitempty,oneof=session group_class"`
	ForceOverride bool                        `json:"forceOverride"`
}

func (r createReservationRequest) toCommand() (commands.CreateReservationCommand, error) {
	window, err := r.Window.toDomain()
	if err != nil {
		return commands.CreateReservationCommand{}, err
	}
	return commands.CreateReservationCommand{
		Kind:          bookingDomain.ReservationKind(r.Kind),
		Title:         r.Title,
		ServiceTypeID: r.ServiceTypeID,
		MainClientID:  r.MainClientID,
		ResourceKeys:  r.ResourceKeys,
		Window:        window,
		GuestSpecs:    r.GuestSpecs,
		ForceOverride: r.ForceOverride,
	}, nil
}

type updateReservationRequest struct {
	Window        *windowRequest              `json:"window"`
	ResourceKeys  []bookingDomain.ResourceKey `json:"resourceKeys" validate:"omitempty,min=1,dive"`
	GuestSpecs    *[]int64                    `json:"guestSpecs"`
	ForceOverride bool                        `json:"forceOverride"`
}

func (r updateReservationRequest) toCommand(id uuid.UUID) (commands.UpdateReservationCommand, error) {
	cmd := commands.UpdateReservationCommand{
		ReservationID: id,
		ResourceKeys:  r.ResourceKeys,
		GuestSpecs:    r.GuestSpecs,
		ForceOverride: r.ForceOverride,
	}
	if r.Window != nil {
		window, err := r.Window.toDomain()
		if err != nil {
			return cmd, err
		}
		cmd.Window = &window
	}
	return cmd, nil
}

type previewRecurrenceRequest struct {
	Pattern      patternRequest              `json:"pattern"`
	ResourceKeys []bookingDomain.ResourceKey `json:"resourceKeys" validate:"required,min=1,dive"`
}

type createRecurringRequest struct {
	Pattern       patternRequest              `json:"pattern"`
	ResourceKeys  []bookingDomain.ResourceKey `json:"resourceKeys" validate:"required,min=1,dive"`
	GuestSpecs    []int64                     `json:"guestSpecs"`
	ServiceTypeID int64                       `json:"serviceTypeId" validate:"required,gt=0"`
	MainClientID  *int64                      `json:"mainClientId" validate:"omitempty,gt=0"`
	Title         string                      `json:"title" validate:"max=200"`
}

func (r createRecurringRequest) toCommand() (commands.CreateRecurringCommand, error) {
	pattern, err := r.Pattern.toDomain()
	if err != nil {
		return commands.CreateRecurringCommand{}, err
	}
	return commands.CreateRecurringCommand{
		Pattern:       pattern,
		Title:         r.Title,
		ServiceTypeID: r.ServiceTypeID,
		MainClientID:  r.MainClientID,
		ResourceKeys:  r.ResourceKeys,
		GuestSpecs:    r.GuestSpecs,
	}, nil
}

type detectConflictsRequest struct {
	ResourceKeys []bookingDomain.ResourceKey `json:"resourceKeys" validate:"required,min=1,dive"`
	Window       windowRequest               `json:"window"`
	ExcludeID    *uuid.UUID                  `json:"excludeId"`
}

type checkInRequest struct {
	AttendanceStatus string `json:"attendanceStatus" validate:"required"`
	ClientID         *int64 `json:"clientId" validate:"omitempty,gt=0"`
	GuestIndex       *int   `json:"guestIndex" validate:"omitempty,gte=0"`
	CreditsRequired  *int   `json:"creditsRequired" validate:"omitempty,gte=0"`
}

func (r checkInRequest) toCommand(id uuid.UUID) (attendanceApp.CheckInCommand, error) {
	status, err := attendanceDomain.ParseStatus(r.AttendanceStatus)
	if err != nil {
		return attendanceApp.CheckInCommand{}, err
	}
	return attendanceApp.CheckInCommand{
		ReservationID:   id,
		Selector:        bookingDomain.ParticipantSelector{ClientID: r.ClientID, GuestIndex: r.GuestIndex},
		Status:          status,
		CreditsRequired: r.CreditsRequired,
	}, nil
}

type batchCheckInRequest struct {
	Items []batchItemRequest `json:"items" validate:"required,min=1,max=500"`
}

type batchItemRequest struct {
	RegistrationID   uuid.UUID `json:"registrationId"`
	AttendanceStatus string    `json:"attendanceStatus"`
}

// bind decodes the JSON body into req and runs struct validation. Decode
// failures are 400; validation failures are 422.
func bind(c *gin.Context, v *validator.Validate, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		if errors.Is(err, io.EOF) {
			return &APIError{Status: http.StatusBadRequest, Code: ErrBadRequest.Code, Message: "request body is required"}
		}
		return &APIError{Status: http.StatusBadRequest, Code: ErrBadRequest.Code, Message: err.Error()}
	}
	return v.Struct(req)
}

func pathID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, &APIError{Status: http.StatusBadRequest, Code: ErrBadRequest.Code, Message: "invalid reservation id"}
	}
	return id, nil
}
