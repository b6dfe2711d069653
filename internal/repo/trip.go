// Package repo contains all storage logic for the trip ledger.
// TripRepo has two implementations: Postgres (this file) and in-memory
// (memory.go). No business rules live here: the service layer decides what a
// mutation does, the repo only guarantees it is applied atomically per trip.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/rideshare-ledger/internal/domain"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// db is the minimal interface satisfied by *pgxpool.Pool, *pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test. Begin on a
// pgx.Tx opens a savepoint, so Update still gets its own atomic unit.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MutateFunc changes a trip in place. Returning an error aborts the mutation
// and nothing is committed; the error is passed back to the caller unchanged.
type MutateFunc func(t *domain.Trip) error

// TripRepo defines the persistence operations for Trips.
// The service layer depends on this interface, not on a concrete store.
type TripRepo interface {
	// Create inserts a new trip, whose ID the caller has already assigned, and
	// returns the stored record with CreatedAt/UpdatedAt populated.
	// Returns domain.ErrDuplicate if the ID or the (driver, idempotency key)
	// pair is already taken.
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// GetByID retrieves a single trip. Returns domain.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// GetByIdempotencyKey retrieves the trip a driver posted with key.
	// Returns domain.ErrNotFound if the driver never used that key.
	GetByIdempotencyKey(ctx context.Context, driverID uuid.UUID, key string) (domain.Trip, error)

	// ListByDriver returns every trip posted by driverID, any status,
	// ordered by departure date ascending.
	ListByDriver(ctx context.Context, driverID uuid.UUID) ([]domain.Trip, error)

	// ListActiveFrom returns active trips departing on or after the date from,
	// ordered by departure date, departure time, then ID.
	ListActiveFrom(ctx context.Context, from time.Time) ([]domain.Trip, error)

	// Update atomically reads the trip, applies fn to a copy, and commits the
	// copy's AvailableSeats and Status if fn returns nil. Concurrent Updates on
	// the same trip are serialized; Updates on different trips are not.
	// Returns domain.ErrNotFound if absent.
	Update(ctx context.Context, id uuid.UUID, fn MutateFunc) (domain.Trip, error)
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `id, driver_id, origin, destination, departure_date, departure_time,
		total_seats, available_seats, price_cents, status, idempotency_key, created_at, updated_at`

// Create inserts a new trip row and returns the full persisted record.
func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	q := `
		INSERT INTO trips (id, driver_id, origin, destination, departure_date, departure_time,
			total_seats, available_seats, price_cents, status, idempotency_key)
		VALUES (@id, @driver_id, @origin, @destination, @departure_date, @departure_time,
			@total_seats, @available_seats, @price_cents, @status, @idempotency_key)
		RETURNING ` + tripColumns

	args := pgx.NamedArgs{
		"id":              trip.ID,
		"driver_id":       trip.DriverID,
		"origin":          trip.Origin,
		"destination":     trip.Destination,
		"departure_date":  domain.DateOf(trip.DepartureDate),
		"departure_time":  trip.DepartureTime,
		"total_seats":     trip.TotalSeats,
		"available_seats": trip.AvailableSeats,
		"price_cents":     trip.PriceCents,
		"status":          string(trip.Status),
		"idempotency_key": pgtype.Text{String: trip.IdempotencyKey, Valid: trip.IdempotencyKey != ""},
	}

	result, err := scanTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", domain.ErrDuplicate)
		}
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a trip by primary key.
func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return result, nil
}

// GetByIdempotencyKey retrieves a trip by its (driver_id, idempotency_key) pair.
func (r *pgTripRepo) GetByIdempotencyKey(ctx context.Context, driverID uuid.UUID, key string) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips
		WHERE driver_id = @driver_id AND idempotency_key = @key`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"driver_id": driverID, "key": key})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByIdempotencyKey: %w", err)
	}
	return result, nil
}

// ListByDriver returns all of a driver's trips, earliest departure first.
func (r *pgTripRepo) ListByDriver(ctx context.Context, driverID uuid.UUID) ([]domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips
		WHERE driver_id = @driver_id
		ORDER BY departure_date ASC, departure_time ASC, id ASC`

	trips, err := r.list(ctx, q, pgx.NamedArgs{"driver_id": driverID})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListByDriver: %w", err)
	}
	return trips, nil
}

// ListActiveFrom returns bookable trips departing on or after from.
func (r *pgTripRepo) ListActiveFrom(ctx context.Context, from time.Time) ([]domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips
		WHERE status = 'active' AND departure_date >= @from
		ORDER BY departure_date ASC, departure_time ASC, id ASC`

	trips, err := r.list(ctx, q, pgx.NamedArgs{"from": domain.DateOf(from)})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListActiveFrom: %w", err)
	}
	return trips, nil
}

// Update locks the trip row with SELECT ... FOR UPDATE, applies fn, and writes
// back the mutable columns in the same transaction.
func (r *pgTripRepo) Update(ctx context.Context, id uuid.UUID, fn MutateFunc) (domain.Trip, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Update: begin: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = @id FOR UPDATE`
	current, err := scanTrip(tx.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Update: %w", err)
	}

	next := current
	if err := fn(&next); err != nil {
		return domain.Trip{}, err
	}

	uq := `
		UPDATE trips
		SET available_seats = @available_seats,
		    status          = @status,
		    updated_at      = now()
		WHERE id = @id
		RETURNING ` + tripColumns

	args := pgx.NamedArgs{
		"id":              id,
		"available_seats": next.AvailableSeats,
		"status":          string(next.Status),
	}
	updated, err := scanTrip(tx.QueryRow(ctx, uq, args))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Update: write: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Update: commit: %w", err)
	}
	return updated, nil
}

func (r *pgTripRepo) list(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Trip, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return trips, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanTrip to be
// reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanTrip maps a single database row into a domain.Trip.
// It handles the UUID, DATE, and nullable idempotency_key conversions.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t        domain.Trip
		id       pgtype.UUID
		driverID pgtype.UUID
		depDate  pgtype.Date
		status   string
		key      pgtype.Text
	)

	err := s.Scan(&id, &driverID, &t.Origin, &t.Destination, &depDate, &t.DepartureTime,
		&t.TotalSeats, &t.AvailableSeats, &t.PriceCents, &status, &key, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	t.DriverID = uuid.UUID(driverID.Bytes)
	t.DepartureDate = domain.DateOf(depDate.Time)
	t.Status = domain.TripStatus(status)
	if key.Valid {
		t.IdempotencyKey = key.String
	}
	return t, nil
}
