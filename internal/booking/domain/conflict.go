package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrConflict matches any *ConflictError.
var ErrConflict = errors.New("reservation conflict")

// ConflictInfo describes one existing reservation that collides.
type ConflictInfo struct {
	ReservationID   uuid.UUID     `json:"reservationId"`
	Window          TimeWindow    `json:"window"`
	OverlapMinutes  int           `json:"overlapMinutes"`
	Label           string        `json:"label"`
	SharedResources []ResourceKey `json:"sharedResources"`
}

// ConflictError carries the conflicts that blocked a write.
type ConflictError struct {
	Conflicts []ConflictInfo
}

func (e *ConflictError) Error() string {
	labels := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		labels[i] = c.Label
	}
	return fmt.Sprintf("%d conflicting reservation(s): %s", len(e.Conflicts), strings.Join(labels, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConflictCandidate is a stored reservation returned by a ConflictReader.
type ConflictCandidate struct {
	ReservationID uuid.UUID
	Kind          ReservationKind
	Title         string
	Window        TimeWindow
	Resources     []ResourceKey
}

// SkipReason explains why a recurrence date was not created.
type SkipReason string

const (
	SkipReasonSkipDates SkipReason = "skip_dates"
	SkipReasonConflict  SkipReason = "conflict"
)

// SkippedDate is one recurrence date that was not created.
type SkippedDate struct {
	Date          string     `json:"date"`
	Reason        SkipReason `json:"reason"`
	ConflictLabel string     `json:"conflictLabel,omitempty"`
}

// ErrAllDatesConflicted matches any *AllDatesConflictedError.
var ErrAllDatesConflicted = errors.New("no recurrence date could be created")

// AllDatesConflictedError is returned when a recurrence batch creates nothing.
type AllDatesConflictedError struct {
	Skipped []SkippedDate
}

func (e *AllDatesConflictedError) Error() string {
	return fmt.Sprintf("%s: %d date(s) skipped", ErrAllDatesConflicted, len(e.Skipped))
}

func (e *AllDatesConflictedError) Is(target error) bool {
	return target == ErrAllDatesConflicted
}
