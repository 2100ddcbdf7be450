package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pharmhub/pharmacy-reservations/internal/reservation"
)

// ReservationService is the slice of the reservation core the handlers need.
type ReservationService interface {
	Book(ctx context.Context, in reservation.BookingInput) (*reservation.Reservation, error)
	DailyAvailability(ctx context.Context, pharmacyID uuid.UUID, from, to time.Time) ([]reservation.DayAvailability, error)
	AvailableTimes(ctx context.Context, pharmacyID uuid.UUID) ([]reservation.Slot, error)
	ListActive(ctx context.Context, userID uuid.UUID) []reservation.Reservation
	ListCanceled(ctx context.Context, userID uuid.UUID) []reservation.Reservation
	Cancel(ctx context.Context, userID, reservationID uuid.UUID) (int64, error)
	PurgeCanceled(ctx context.Context, userID uuid.UUID) (int64, error)
	WindowDays() int
}

const dateLayout = "2006-01-02"

func bookHandler(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}

		pharmacyID, err := uuid.Parse(req.PharmacyID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pharmacy_id", "pharmacy_id must be a valid UUID")
			return
		}

		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		res, err := svc.Book(r.Context(), reservation.BookingInput{
			UserID:     userID,
			PharmacyID: pharmacyID,
			Date:       date,
			Time:       req.Time,
			Memo:       req.Memo,
		})
		if err != nil {
			handleBookError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toReservationResponse(res))
	}
}

func availabilityHandler(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pharmacyID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pharmacy_id", "id must be a valid UUID")
			return
		}

		now := time.Now()
		from := reservation.Day(now)
		to := from.AddDate(0, 0, svc.WindowDays()-1)

		if v := r.URL.Query().Get("from"); v != "" {
			from, err = time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
				return
			}
		}
		if v := r.URL.Query().Get("to"); v != "" {
			to, err = time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
				return
			}
		}

		days, err := svc.DailyAvailability(r.Context(), pharmacyID, from, to)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]DayAvailabilityResponse, len(days))
		for i, d := range days {
			resp[i] = DayAvailabilityResponse{Date: d.Date.Format(dateLayout), Available: d.Available}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func slotsHandler(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pharmacyID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pharmacy_id", "id must be a valid UUID")
			return
		}

		slots, err := svc.AvailableTimes(r.Context(), pharmacyID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]SlotResponse, len(slots))
		for i, s := range slots {
			resp[i] = SlotResponse{
				Date:        s.Date.Format(dateLayout),
				Time:        s.Time,
				IsAvailable: s.IsAvailable,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listReservationsHandler(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "id must be a valid UUID")
			return
		}

		var rows []reservation.Reservation
		switch status := r.URL.Query().Get("status"); status {
		case "", string(reservation.StatusPending):
			rows = svc.ListActive(r.Context(), userID)
		case string(reservation.StatusCanceled):
			rows = svc.ListCanceled(r.Context(), userID)
		default:
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be pending or canceled")
			return
		}

		resp := make([]ReservationResponse, len(rows))
		for i := range rows {
			resp[i] = toReservationResponse(&rows[i])
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelHandler(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_reservation_id", "id must be a valid UUID")
			return
		}

		var req CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}

		n, err := svc.Cancel(r.Context(), userID, reservationID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CancelResponse{Canceled: n})
	}
}

func purgeCanceledHandler(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "id must be a valid UUID")
			return
		}

		n, err := svc.PurgeCanceled(r.Context(), userID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, PurgeResponse{Purged: n})
	}
}

// handleBookError distinguishes "this slot doesn't exist" (hard error, pick
// another slot) from "someone just took it" (refresh availability and retry).
func handleBookError(w http.ResponseWriter, err error) {
	var vErr *reservation.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "missing_parameter", vErr.Error())
	case errors.Is(err, reservation.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, reservation.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	default:
		handleServiceError(w, err)
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	var vErr *reservation.ValidationError
	var sErr *reservation.StoreError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "missing_parameter", vErr.Error())
	case errors.As(err, &sErr):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "temporary store failure, retry the request")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func toReservationResponse(r *reservation.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ID:         r.ID,
		UserID:     r.UserID,
		PharmacyID: r.PharmacyID,
		Date:       r.Date.Format(dateLayout),
		Time:       r.Time,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt,
	}
	if r.Memo != nil {
		resp.Memo = *r.Memo
	}
	return resp
}
