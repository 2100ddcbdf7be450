package reservation

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusCanceled Status = "canceled"
)

// DefaultWindowDays is how far ahead slots are kept generated.
const DefaultWindowDays = 7

// DailyTimes is the fixed per-day grid: a morning block and an afternoon
// block, with the gap being the lunch break. Every pharmacy gets the same
// grid for every generated date.
var DailyTimes = []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}

type Pharmacy struct {
	ID        uuid.UUID
	Name      string
	Address   string
	Phone     string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is one bookable unit of capacity. Identity is the natural key
// (pharmacy, date, time); the surrogate ID only exists at the storage layer.
type Slot struct {
	ID          int64
	PharmacyID  uuid.UUID
	Date        time.Time
	Time        string
	IsAvailable bool
	CreatedAt   time.Time
}

type Reservation struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	PharmacyID uuid.UUID
	Date       time.Time
	Time       string
	Memo       *string
	Status     Status
	CreatedAt  time.Time
}

// DayAvailability summarizes one calendar date: true if the pharmacy still
// has at least one open slot that day.
type DayAvailability struct {
	Date      time.Time
	Available bool
}

// Day strips the time-of-day component, keeping the location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayKey formats a date the way slot dates are compared and cached.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
