package reservation

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmhub/pharmacy-reservations/internal/db"
)

// These tests need a real Postgres because the booking guarantees live in
// the store: the conditional UPDATE and the partial unique index cannot be
// faked meaningfully.

func setupIntegration(t *testing.T) (*PgRepository, *pgxpool.Pool, uuid.UUID) {
	t.Helper()

	databaseURL := strings.TrimSpace(os.Getenv("PHARM_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("PHARM_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	pool, err := db.ConnectPostgres(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	pharmacyID := uuid.New()
	_, err = pool.Exec(ctx, `
		INSERT INTO pharmacies (id, name, address, phone)
		VALUES ($1, 'Test Pharmacy', '1 Test St', '555-0100')
	`, pharmacyID)
	if err != nil {
		t.Fatalf("insert pharmacy: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DELETE FROM reservations WHERE pharmacy_id = $1`, pharmacyID)
		_, _ = pool.Exec(ctx, `DELETE FROM slots WHERE pharmacy_id = $1`, pharmacyID)
		_, _ = pool.Exec(ctx, `DELETE FROM pharmacies WHERE id = $1`, pharmacyID)
	})

	return NewPgRepository(pool), pool, pharmacyID
}

func slotAvailable(t *testing.T, pool *pgxpool.Pool, pharmacyID uuid.UUID, date time.Time, slotTime string) bool {
	t.Helper()
	var available bool
	err := pool.QueryRow(context.Background(), `
		SELECT is_available FROM slots
		WHERE pharmacy_id = $1 AND slot_date = $2 AND slot_time = $3
	`, pharmacyID, date, slotTime).Scan(&available)
	if err != nil {
		t.Fatalf("read slot: %v", err)
	}
	return available
}

func TestIntegration_GenerationIsIdempotent(t *testing.T) {
	repo, _, pharmacyID := setupIntegration(t)
	ctx := context.Background()

	today := Day(time.Now())
	window := make([]time.Time, DefaultWindowDays)
	for i := range window {
		window[i] = today.AddDate(0, 0, i)
	}

	n1, err := repo.InsertSlots(ctx, pharmacyID, window, DailyTimes)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if want := int64(DefaultWindowDays * len(DailyTimes)); n1 != want {
		t.Fatalf("first insert = %d, want %d", n1, want)
	}

	// Same window again: every row conflicts, nothing is added.
	n2, err := repo.InsertSlots(ctx, pharmacyID, window, DailyTimes)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if n2 != 0 {
		t.Fatalf("second insert = %d, want 0", n2)
	}

	slots, err := repo.ListSlots(ctx, pharmacyID, today, today.AddDate(0, 0, DefaultWindowDays-1))
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != DefaultWindowDays*len(DailyTimes) {
		t.Fatalf("slot count = %d, want %d", len(slots), DefaultWindowDays*len(DailyTimes))
	}

	// Nothing beyond the window.
	after := today.AddDate(0, 0, DefaultWindowDays)
	slots, err = repo.ListSlots(ctx, pharmacyID, after, after)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("slots beyond window = %d, want 0", len(slots))
	}
}

func TestIntegration_SweepDeletesOnlyPastDates(t *testing.T) {
	repo, _, pharmacyID := setupIntegration(t)
	ctx := context.Background()

	today := Day(time.Now())
	yesterday := today.AddDate(0, 0, -1)

	if _, err := repo.InsertSlots(ctx, pharmacyID, []time.Time{yesterday, today}, DailyTimes); err != nil {
		t.Fatalf("insert slots: %v", err)
	}

	n, err := repo.DeleteSlotsBefore(ctx, today)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n < int64(len(DailyTimes)) {
		t.Fatalf("deleted = %d, want at least %d", n, len(DailyTimes))
	}

	gone, err := repo.ListSlots(ctx, pharmacyID, yesterday, yesterday)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(gone) != 0 {
		t.Fatalf("yesterday slots remaining = %d, want 0", len(gone))
	}

	kept, err := repo.ListSlots(ctx, pharmacyID, today, today)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(kept) != len(DailyTimes) {
		t.Fatalf("today slots = %d, want %d", len(kept), len(DailyTimes))
	}
}

func TestIntegration_ConcurrentBookingSingleWinner(t *testing.T) {
	repo, pool, pharmacyID := setupIntegration(t)
	ctx := context.Background()

	today := Day(time.Now())
	if _, err := repo.InsertSlots(ctx, pharmacyID, []time.Time{today}, DailyTimes); err != nil {
		t.Fatalf("insert slots: %v", err)
	}

	const workers = 10
	results := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Book(ctx, BookingParams{
				UserID:     uuid.New(),
				PharmacyID: pharmacyID,
				Date:       today,
				Time:       "09:00",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case err == ErrSlotAlreadyBooked:
			conflicts++
		default:
			t.Fatalf("unexpected booking error: %v", err)
		}
	}
	if wins != 1 || conflicts != workers-1 {
		t.Fatalf("wins = %d conflicts = %d, want 1 and %d", wins, conflicts, workers-1)
	}

	var count int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM reservations
		WHERE pharmacy_id = $1 AND slot_date = $2 AND slot_time = '09:00'
	`, pharmacyID, today).Scan(&count)
	if err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if count != 1 {
		t.Fatalf("reservation rows = %d, want exactly 1", count)
	}

	if slotAvailable(t, pool, pharmacyID, today, "09:00") {
		t.Fatal("booked slot still marked available")
	}
}

func TestIntegration_BookNonexistentSlot(t *testing.T) {
	repo, pool, pharmacyID := setupIntegration(t)
	ctx := context.Background()

	// Pharmacy exists but no slots were ever generated for it.
	_, err := repo.Book(ctx, BookingParams{
		UserID:     uuid.New(),
		PharmacyID: pharmacyID,
		Date:       Day(time.Now()),
		Time:       "09:00",
	})
	if err != ErrSlotNotFound {
		t.Fatalf("err = %v, want ErrSlotNotFound", err)
	}

	var count int
	if err := pool.QueryRow(ctx, `
		SELECT count(*) FROM reservations WHERE pharmacy_id = $1
	`, pharmacyID).Scan(&count); err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if count != 0 {
		t.Fatalf("reservation rows = %d, want 0", count)
	}
}

func TestIntegration_CancelTransition(t *testing.T) {
	repo, pool, pharmacyID := setupIntegration(t)
	ctx := context.Background()

	today := Day(time.Now())
	if _, err := repo.InsertSlots(ctx, pharmacyID, []time.Time{today}, DailyTimes); err != nil {
		t.Fatalf("insert slots: %v", err)
	}

	userID := uuid.New()
	res, err := repo.Book(ctx, BookingParams{
		UserID:     userID,
		PharmacyID: pharmacyID,
		Date:       today,
		Time:       "14:00",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	pending, err := repo.ListReservations(ctx, userID, StatusPending)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %d (err %v), want 1", len(pending), err)
	}

	n, err := repo.CancelReservation(ctx, userID, res.ID)
	if err != nil || n != 1 {
		t.Fatalf("cancel = %d (err %v), want 1", n, err)
	}

	pending, err = repo.ListReservations(ctx, userID, StatusPending)
	if err != nil || len(pending) != 0 {
		t.Fatalf("pending after cancel = %d (err %v), want 0", len(pending), err)
	}
	canceled, err := repo.ListReservations(ctx, userID, StatusCanceled)
	if err != nil || len(canceled) != 1 {
		t.Fatalf("canceled = %d (err %v), want 1", len(canceled), err)
	}

	// Second cancel finds nothing pending; zero rows, no error.
	n, err = repo.CancelReservation(ctx, userID, res.ID)
	if err != nil || n != 0 {
		t.Fatalf("second cancel = %d (err %v), want 0", n, err)
	}

	// Known product quirk: the slot is NOT reopened by cancellation.
	if slotAvailable(t, pool, pharmacyID, today, "14:00") {
		t.Fatal("canceled reservation reopened the slot")
	}

	purged, err := repo.PurgeCanceled(ctx, userID)
	if err != nil || purged != 1 {
		t.Fatalf("purge = %d (err %v), want 1", purged, err)
	}
	canceled, err = repo.ListReservations(ctx, userID, StatusCanceled)
	if err != nil || len(canceled) != 0 {
		t.Fatalf("canceled after purge = %d (err %v), want 0", len(canceled), err)
	}
}

// A reservation insert that trips the partial unique index must roll back
// the whole transaction, including the availability flip that preceded it.
func TestIntegration_FailedInsertRollsBackSlotFlip(t *testing.T) {
	repo, pool, pharmacyID := setupIntegration(t)
	ctx := context.Background()

	today := Day(time.Now())
	if _, err := repo.InsertSlots(ctx, pharmacyID, []time.Time{today}, DailyTimes); err != nil {
		t.Fatalf("insert slots: %v", err)
	}

	// Plant a pending reservation for the slot without flipping it, so the
	// next Book passes the conditional update but collides on the insert.
	_, err := pool.Exec(ctx, `
		INSERT INTO reservations (id, user_id, pharmacy_id, slot_date, slot_time, status)
		VALUES ($1, $2, $3, $4, '10:00', 'pending')
	`, uuid.New(), uuid.New(), pharmacyID, today)
	if err != nil {
		t.Fatalf("plant reservation: %v", err)
	}

	_, err = repo.Book(ctx, BookingParams{
		UserID:     uuid.New(),
		PharmacyID: pharmacyID,
		Date:       today,
		Time:       "10:00",
	})
	if err != ErrSlotAlreadyBooked {
		t.Fatalf("err = %v, want ErrSlotAlreadyBooked", err)
	}

	if !slotAvailable(t, pool, pharmacyID, today, "10:00") {
		t.Fatal("slot flip was not rolled back with the failed insert")
	}
}
