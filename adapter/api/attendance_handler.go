package api

import (
	"log/slog"
	"net/http"

	attendanceApp "github.com/felixgeelhaar/studiobook/internal/attendance/application"
	attendanceDomain "github.com/felixgeelhaar/studiobook/internal/attendance/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// AttendanceHandler handles check-in requests.
type AttendanceHandler struct {
	ledger   *attendanceApp.Ledger
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(ledger *attendanceApp.Ledger, logger *slog.Logger) *AttendanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceHandler{ledger: ledger, validate: validator.New(), logger: logger}
}

// CheckIn handles POST /reservations/:id/checkin
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req checkInRequest
	if err := bind(c, h.validate, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	cmd, err := req.toCommand(id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.ledger.CheckIn(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CheckInBatch handles POST /attendance/batch
func (h *AttendanceHandler) CheckInBatch(c *gin.Context) {
	var req batchCheckInRequest
	if err := bind(c, h.validate, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	// Statuses are checked per item by the ledger so one bad item fails alone.
	items := make([]attendanceApp.BatchItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = attendanceApp.BatchItem{
			RegistrationID: item.RegistrationID,
			Status:         attendanceDomain.Status(item.AttendanceStatus),
		}
	}

	c.JSON(http.StatusOK, gin.H{"results": h.ledger.CheckInBatch(c.Request.Context(), items)})
}
