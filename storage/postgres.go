package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sjsage522/carlistingworker/internal/listing"
	"sjsage522/carlistingworker/logger"
)

// PostgresLedger keeps seen listings in a Postgres table, one row per
// source and identity.
type PostgresLedger struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresLedger connects to dsn and makes sure the table exists
func NewPostgresLedger(ctx context.Context, dsn string) (*PostgresLedger, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	l := &PostgresLedger{pool: pool, log: logger.ForStorage()}
	if err := l.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

// EnsureSchema creates the seen_listings table
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	sql := `
	CREATE TABLE IF NOT EXISTS seen_listings (
		id BIGSERIAL PRIMARY KEY,
		source TEXT NOT NULL,
		make TEXT NOT NULL,
		model TEXT NOT NULL,
		year INTEGER NOT NULL,
		mileage INTEGER NOT NULL DEFAULT -1,
		price INTEGER NOT NULL DEFAULT -1,
		url TEXT NOT NULL DEFAULT '',
		first_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (source, make, model, year, mileage, price)
	);

	CREATE INDEX IF NOT EXISTS idx_seen_listings_source ON seen_listings(source, id);
	`

	if _, err := l.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// LoadSeen implements Ledger
func (l *PostgresLedger) LoadSeen(ctx context.Context, source string) ([]listing.Car, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT make, model, year, mileage, price, url
		FROM seen_listings
		WHERE source = $1
		ORDER BY id`, source)
	if err != nil {
		return nil, fmt.Errorf("query seen listings for %s: %w", source, err)
	}
	defer rows.Close()

	var cars []listing.Car
	for rows.Next() {
		var (
			car            listing.Car
			mileage, price int
		)
		if err := rows.Scan(&car.Make, &car.Model, &car.Year, &mileage, &price, &car.URL); err != nil {
			return nil, fmt.Errorf("scan seen listing: %w", err)
		}
		car.Mileage = listing.FromSentinel(mileage)
		car.Price = listing.FromSentinel(price)
		cars = append(cars, car)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen listings: %w", err)
	}
	return cars, nil
}

// SaveSeen implements Ledger. Identities already stored are skipped.
func (l *PostgresLedger) SaveSeen(ctx context.Context, source string, cars []listing.Car) error {
	if len(cars) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, car := range cars {
		batch.Queue(`
			INSERT INTO seen_listings (source, make, model, year, mileage, price, url)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (source, make, model, year, mileage, price) DO NOTHING`,
			source, car.Make, car.Model, car.Year, car.Mileage.Sentinel(), car.Price.Sentinel(), car.URL)
	}

	results := l.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := int64(0)
	for range cars {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("save seen listings for %s: %w", source, err)
		}
		inserted += tag.RowsAffected()
	}

	l.log.Debug().Str("source", source).Int64("inserted", inserted).Int("offered", len(cars)).Msg("Seen listings saved")
	return nil
}

// Close releases the pool
func (l *PostgresLedger) Close() {
	if l.pool != nil {
		l.pool.Close()
	}
}
