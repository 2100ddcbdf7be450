package api

import (
	"time"

	"github.com/google/uuid"
)

type BookRequest struct {
	UserID     string `json:"user_id"`
	PharmacyID string `json:"pharmacy_id"`
	Date       string `json:"date"` // 2006-01-02
	Time       string `json:"time"` // 15:04
	Memo       string `json:"memo,omitempty"`
}

type ReservationResponse struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	PharmacyID uuid.UUID `json:"pharmacy_id"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Memo       string    `json:"memo,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type DayAvailabilityResponse struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
}

type SlotResponse struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	IsAvailable bool   `json:"is_available"`
}

type CancelRequest struct {
	UserID string `json:"user_id"`
}

type CancelResponse struct {
	Canceled int64 `json:"canceled"`
}

type PurgeResponse struct {
	Purged int64 `json:"purged"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
