package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmhub/pharmacy-reservations/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	count := 50
	if v := os.Getenv("SEED_PHARMACIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Fatalf("invalid SEED_PHARMACIES: %q", v)
		}
		count = n
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedPharmacies(ctx, pool, count); err != nil {
		log.Fatalf("seed pharmacies: %v", err)
	}

	log.Println("seed complete")
}

func seedPharmacies(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d pharmacies", count)

	suffixes := []string{
		"Pharmacy",
		"Drugstore",
		"Apothecary",
		"Dispensary",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.LastName() + " " + suffixes[gofakeit.Number(0, len(suffixes)-1)]
		addr := gofakeit.Address()
		phone := gofakeit.Phone()

		_, err := tx.Exec(ctx, `
			INSERT INTO pharmacies (id, name, address, phone, latitude, longitude, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		`, id, name, addr.Address, phone, addr.Latitude, addr.Longitude)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("pharmacies seeded")
	return nil
}
