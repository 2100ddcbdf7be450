package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound        = errors.New("slot not found")
	ErrSlotAlreadyBooked   = errors.New("slot already booked")
	ErrReservationNotFound = errors.New("reservation not found")
)

// BookingParams identifies the slot to claim and the reservation to write.
type BookingParams struct {
	UserID     uuid.UUID
	PharmacyID uuid.UUID
	Date       time.Time
	Time       string
	Memo       *string
}

// Repository contains all store interactions needed by the service.
type Repository interface {
	ListPharmacyIDs(ctx context.Context) ([]uuid.UUID, error)

	// Rolling-window maintenance. InsertSlots must be idempotent on the
	// natural key: rows that already exist are skipped, not duplicated.
	ExistingSlotDates(ctx context.Context, pharmacyID uuid.UUID, from, to time.Time) ([]time.Time, error)
	InsertSlots(ctx context.Context, pharmacyID uuid.UUID, dates []time.Time, times []string) (int64, error)
	DeleteSlotsBefore(ctx context.Context, day time.Time) (int64, error)

	// Read paths. Range bounds are inclusive.
	ListSlots(ctx context.Context, pharmacyID uuid.UUID, from, to time.Time) ([]Slot, error)

	// Book claims the slot and inserts the reservation in one transaction.
	// Returns ErrSlotNotFound or ErrSlotAlreadyBooked on the respective
	// conflicts; any other error means nothing was committed.
	Book(ctx context.Context, p BookingParams) (*Reservation, error)

	ListReservations(ctx context.Context, userID uuid.UUID, status Status) ([]Reservation, error)
	CancelReservation(ctx context.Context, userID, reservationID uuid.UUID) (int64, error)
	PurgeCanceled(ctx context.Context, userID uuid.UUID) (int64, error)
}
