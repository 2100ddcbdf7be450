package reservation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AvailabilityCache holds per-day "any open slot" flags for the calendar
// read path. Map keys are dates formatted as 2006-01-02. Implementations
// are best-effort; callers fall back to the store on any error.
type AvailabilityCache interface {
	GetDays(ctx context.Context, pharmacyID uuid.UUID, dates []time.Time) (map[string]bool, error)
	SetDay(ctx context.Context, pharmacyID uuid.UUID, date time.Time, available bool) error
	InvalidateDay(ctx context.Context, pharmacyID uuid.UUID, date time.Time) error
}

type Service struct {
	repo       Repository
	cache      AvailabilityCache
	log        *slog.Logger
	windowDays int
	now        func() time.Time
}

// NewService wires the booking core. cache may be nil; availability reads
// then always go to the store. windowDays is the rolling window every read
// and generation path shares; zero or negative falls back to the default.
func NewService(repo Repository, cache AvailabilityCache, logger *slog.Logger, windowDays int) *Service {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Service{
		repo:       repo,
		cache:      cache,
		log:        logger,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// WindowDays reports the configured rolling window length.
func (s *Service) WindowDays() int {
	return s.windowDays
}

type BookingInput struct {
	UserID     uuid.UUID
	PharmacyID uuid.UUID
	Date       time.Time
	Time       string
	Memo       string
}

// Book atomically converts one available slot into a pending reservation.
// Exactly one of any number of concurrent calls for the same slot succeeds;
// the rest get ErrSlotAlreadyBooked.
func (s *Service) Book(ctx context.Context, in BookingInput) (*Reservation, error) {
	if in.UserID == uuid.Nil {
		return nil, &ValidationError{Field: "user_id"}
	}
	if in.PharmacyID == uuid.Nil {
		return nil, &ValidationError{Field: "pharmacy_id"}
	}
	if in.Date.IsZero() {
		return nil, &ValidationError{Field: "date"}
	}
	if in.Time == "" {
		return nil, &ValidationError{Field: "time"}
	}

	var memo *string
	if in.Memo != "" {
		memo = &in.Memo
	}

	res, err := s.repo.Book(ctx, BookingParams{
		UserID:     in.UserID,
		PharmacyID: in.PharmacyID,
		Date:       Day(in.Date),
		Time:       in.Time,
		Memo:       memo,
	})
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) || errors.Is(err, ErrSlotAlreadyBooked) {
			return nil, err
		}
		return nil, &StoreError{Op: "book slot", Err: err}
	}

	if s.cache != nil {
		if err := s.cache.InvalidateDay(ctx, res.PharmacyID, res.Date); err != nil {
			s.log.Warn("availability cache invalidation failed",
				"pharmacy_id", res.PharmacyID, "date", DayKey(res.Date), "err", err)
		}
	}

	return res, nil
}

// GenerateSlots ensures every pharmacy has the full daily grid for each of
// the next daysAhead dates. A failure for one pharmacy is logged and skipped
// so the rest of the run still completes. Returns the number of rows added.
func (s *Service) GenerateSlots(ctx context.Context, daysAhead int) (int, error) {
	if daysAhead <= 0 {
		daysAhead = s.windowDays
	}

	today := Day(s.now())
	window := make([]time.Time, daysAhead)
	for i := range window {
		window[i] = today.AddDate(0, 0, i)
	}

	ids, err := s.repo.ListPharmacyIDs(ctx)
	if err != nil {
		return 0, &StoreError{Op: "list pharmacies", Err: err}
	}

	total := 0
	for _, id := range ids {
		existing, err := s.repo.ExistingSlotDates(ctx, id, window[0], window[len(window)-1])
		if err != nil {
			s.log.Error("slot generation failed for pharmacy", "pharmacy_id", id, "err", err)
			continue
		}

		have := make(map[string]bool, len(existing))
		for _, d := range existing {
			have[DayKey(d)] = true
		}

		var missing []time.Time
		for _, d := range window {
			if !have[DayKey(d)] {
				missing = append(missing, d)
			}
		}
		if len(missing) == 0 {
			continue
		}

		n, err := s.repo.InsertSlots(ctx, id, missing, DailyTimes)
		if err != nil {
			s.log.Error("slot insert failed for pharmacy", "pharmacy_id", id, "err", err)
			continue
		}
		total += int(n)
	}

	return total, nil
}

// CleanupExpiredSlots removes every slot dated strictly before today.
func (s *Service) CleanupExpiredSlots(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteSlotsBefore(ctx, Day(s.now()))
	if err != nil {
		return 0, &StoreError{Op: "delete expired slots", Err: err}
	}
	return int(n), nil
}

// DailyAvailability reports, for each date in [from, to], whether the
// pharmacy has any open slot. Cached flags are used when present; on a miss
// the whole range is recomputed from the store and written back.
func (s *Service) DailyAvailability(ctx context.Context, pharmacyID uuid.UUID, from, to time.Time) ([]DayAvailability, error) {
	if pharmacyID == uuid.Nil {
		return nil, &ValidationError{Field: "pharmacy_id"}
	}
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return nil, &ValidationError{Field: "date range", Reason: "must not end before it starts"}
	}

	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}

	cached := map[string]bool{}
	if s.cache != nil {
		got, err := s.cache.GetDays(ctx, pharmacyID, dates)
		if err != nil {
			s.log.Warn("availability cache read failed", "pharmacy_id", pharmacyID, "err", err)
		} else {
			cached = got
		}
	}

	allCached := true
	for _, d := range dates {
		if _, ok := cached[DayKey(d)]; !ok {
			allCached = false
			break
		}
	}

	if !allCached {
		slots, err := s.repo.ListSlots(ctx, pharmacyID, from, to)
		if err != nil {
			return nil, &StoreError{Op: "list slots", Err: err}
		}

		computed := make(map[string]bool, len(dates))
		for _, slot := range slots {
			if slot.IsAvailable {
				computed[DayKey(slot.Date)] = true
			}
		}

		cached = computed
		if s.cache != nil {
			for _, d := range dates {
				if err := s.cache.SetDay(ctx, pharmacyID, d, computed[DayKey(d)]); err != nil {
					s.log.Warn("availability cache write failed", "pharmacy_id", pharmacyID, "err", err)
					break
				}
			}
		}
	}

	out := make([]DayAvailability, len(dates))
	for i, d := range dates {
		out[i] = DayAvailability{Date: d, Available: cached[DayKey(d)]}
	}
	return out, nil
}

// AvailableTimes lists every slot for the pharmacy from today through the
// end of the rolling window.
func (s *Service) AvailableTimes(ctx context.Context, pharmacyID uuid.UUID) ([]Slot, error) {
	if pharmacyID == uuid.Nil {
		return nil, &ValidationError{Field: "pharmacy_id"}
	}

	from := Day(s.now())
	to := from.AddDate(0, 0, s.windowDays-1)

	slots, err := s.repo.ListSlots(ctx, pharmacyID, from, to)
	if err != nil {
		return nil, &StoreError{Op: "list slots", Err: err}
	}
	return slots, nil
}

// ListActive returns the user's pending reservations. Store errors degrade
// to an empty list: this read feeds a UI listing, never a write decision.
func (s *Service) ListActive(ctx context.Context, userID uuid.UUID) []Reservation {
	return s.listByStatus(ctx, userID, StatusPending)
}

// ListCanceled returns the user's canceled reservations, with the same
// degrade-to-empty policy as ListActive.
func (s *Service) ListCanceled(ctx context.Context, userID uuid.UUID) []Reservation {
	return s.listByStatus(ctx, userID, StatusCanceled)
}

func (s *Service) listByStatus(ctx context.Context, userID uuid.UUID, status Status) []Reservation {
	rows, err := s.repo.ListReservations(ctx, userID, status)
	if err != nil {
		s.log.Warn("reservation list degraded to empty",
			"user_id", userID, "status", status, "err", err)
		return []Reservation{}
	}
	if rows == nil {
		return []Reservation{}
	}
	return rows
}

// Cancel flips the reservation to canceled if it belongs to the user and is
// still pending. Zero rows affected means nothing to cancel; that is not an
// error. The underlying slot stays unavailable: canceling does not reopen it.
func (s *Service) Cancel(ctx context.Context, userID, reservationID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, &ValidationError{Field: "user_id"}
	}
	if reservationID == uuid.Nil {
		return 0, &ValidationError{Field: "reservation_id"}
	}

	n, err := s.repo.CancelReservation(ctx, userID, reservationID)
	if err != nil {
		return 0, &StoreError{Op: "cancel reservation", Err: err}
	}
	return n, nil
}

// PurgeCanceled hard-deletes the user's cancellation history.
func (s *Service) PurgeCanceled(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, &ValidationError{Field: "user_id"}
	}

	n, err := s.repo.PurgeCanceled(ctx, userID)
	if err != nil {
		return 0, &StoreError{Op: "purge canceled reservations", Err: err}
	}
	return n, nil
}
