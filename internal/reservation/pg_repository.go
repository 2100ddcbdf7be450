package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.PharmacyID,
		&s.Date,
		&s.Time,
		&s.IsAvailable,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var r Reservation
	var memo *string

	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.PharmacyID,
		&r.Date,
		&r.Time,
		&memo,
		&r.Status,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}

	r.Memo = memo
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Interface methods

func (r *PgRepository) ListPharmacyIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id
		FROM pharmacies
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *PgRepository) ExistingSlotDates(ctx context.Context, pharmacyID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT slot_date
		FROM slots
		WHERE pharmacy_id = $1
		  AND slot_date BETWEEN $2 AND $3
	`, pharmacyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}

	return dates, rows.Err()
}

// InsertSlots adds one open slot per (date, time) in a single transaction.
// ON CONFLICT DO NOTHING makes the write idempotent against a concurrent
// generation run inserting the same natural key.
func (r *PgRepository) InsertSlots(ctx context.Context, pharmacyID uuid.UUID, dates []time.Time, times []string) (int64, error) {
	if len(dates) == 0 || len(times) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var inserted int64
	for _, d := range dates {
		for _, t := range times {
			tag, err := tx.Exec(ctx, `
				INSERT INTO slots (pharmacy_id, slot_date, slot_time, is_available, created_at)
				VALUES ($1, $2, $3, true, now())
				ON CONFLICT (pharmacy_id, slot_date, slot_time) DO NOTHING
			`, pharmacyID, d, t)
			if err != nil {
				return 0, err
			}
			inserted += tag.RowsAffected()
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return inserted, nil
}

func (r *PgRepository) DeleteSlotsBefore(ctx context.Context, day time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM slots
		WHERE slot_date < $1
	`, day)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ListSlots(ctx context.Context, pharmacyID uuid.UUID, from, to time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, pharmacy_id, slot_date, slot_time, is_available, created_at
		FROM slots
		WHERE pharmacy_id = $1
		  AND slot_date BETWEEN $2 AND $3
		ORDER BY slot_date, slot_time
	`, pharmacyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, rows.Err()
}

// Book converts one available slot into a pending reservation.
//
// Read committed is enough here: the existence check takes no lock, and the
// conditional UPDATE is the serialization point. Whichever transaction's flip
// affects a row first wins; every concurrent loser sees zero rows affected.
// The partial unique index on pending reservations backstops the insert.
func (r *PgRepository) Book(ctx context.Context, p BookingParams) (*Reservation, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM slots
			WHERE pharmacy_id = $1 AND slot_date = $2 AND slot_time = $3
		)
	`, p.PharmacyID, p.Date, p.Time).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check slot exists: %w", err)
	}
	if !exists {
		return nil, ErrSlotNotFound
	}

	tag, err := tx.Exec(ctx, `
		UPDATE slots
		SET is_available = false
		WHERE pharmacy_id = $1
		  AND slot_date = $2
		  AND slot_time = $3
		  AND is_available
	`, p.PharmacyID, p.Date, p.Time)
	if err != nil {
		return nil, fmt.Errorf("claim slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrSlotAlreadyBooked
	}

	id := uuid.New()
	row := tx.QueryRow(ctx, `
		INSERT INTO reservations (id, user_id, pharmacy_id, slot_date, slot_time, memo, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', now())
		RETURNING id, user_id, pharmacy_id, slot_date, slot_time, memo, status, created_at
	`, id, p.UserID, p.PharmacyID, p.Date, p.Time, p.Memo)

	res, err := scanReservation(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotAlreadyBooked
		}
		return nil, fmt.Errorf("insert reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return res, nil
}

func (r *PgRepository) ListReservations(ctx context.Context, userID uuid.UUID, status Status) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, pharmacy_id, slot_date, slot_time, memo, status, created_at
		FROM reservations
		WHERE user_id = $1 AND status = $2
		ORDER BY slot_date, slot_time
	`, userID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *res)
	}

	return result, rows.Err()
}

func (r *PgRepository) CancelReservation(ctx context.Context, userID, reservationID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reservations
		SET status = 'canceled'
		WHERE id = $1
		  AND user_id = $2
		  AND status = 'pending'
	`, reservationID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) PurgeCanceled(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM reservations
		WHERE user_id = $1 AND status = 'canceled'
	`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
