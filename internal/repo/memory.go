package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-ledger/internal/domain"
)

// errSeatRange mirrors the Postgres CHECK constraint on available_seats.
var errSeatRange = errors.New("available_seats out of range")

// tripCell holds one trip behind its own lock so that mutations on different
// trips never wait on each other.
type tripCell struct {
	mu   sync.Mutex
	trip domain.Trip
}

func (c *tripCell) snapshot() domain.Trip {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trip
}

type driverKey struct {
	driverID uuid.UUID
	key      string
}

// memoryTripRepo is the in-process implementation of TripRepo.
// mu guards the two indexes; each tripCell guards its own trip.
type memoryTripRepo struct {
	mu    sync.RWMutex
	trips map[uuid.UUID]*tripCell
	keys  map[driverKey]uuid.UUID
	now   func() time.Time
}

// NewMemoryTripRepo constructs an empty in-memory TripRepo.
// It is used when no DATABASE_URL is configured, and by service tests.
func NewMemoryTripRepo() TripRepo {
	return &memoryTripRepo{
		trips: make(map[uuid.UUID]*tripCell),
		keys:  make(map[driverKey]uuid.UUID),
		now:   time.Now,
	}
}

func (r *memoryTripRepo) Create(_ context.Context, trip domain.Trip) (domain.Trip, error) {
	if !trip.SeatsConsistent() {
		return domain.Trip{}, fmt.Errorf("repo.memoryTripRepo.Create: %w", errSeatRange)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.trips[trip.ID]; exists {
		return domain.Trip{}, fmt.Errorf("repo.memoryTripRepo.Create: %w", domain.ErrDuplicate)
	}
	var k driverKey
	if trip.IdempotencyKey != "" {
		k = driverKey{driverID: trip.DriverID, key: trip.IdempotencyKey}
		if _, exists := r.keys[k]; exists {
			return domain.Trip{}, fmt.Errorf("repo.memoryTripRepo.Create: %w", domain.ErrDuplicate)
		}
	}

	now := r.now().UTC()
	trip.DepartureDate = domain.DateOf(trip.DepartureDate)
	trip.CreatedAt = now
	trip.UpdatedAt = now

	r.trips[trip.ID] = &tripCell{trip: trip}
	if trip.IdempotencyKey != "" {
		r.keys[k] = trip.ID
	}
	return trip, nil
}

func (r *memoryTripRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Trip, error) {
	cell, ok := r.cell(id)
	if !ok {
		return domain.Trip{}, fmt.Errorf("repo.memoryTripRepo.GetByID: %w", domain.ErrNotFound)
	}
	return cell.snapshot(), nil
}

func (r *memoryTripRepo) GetByIdempotencyKey(_ context.Context, driverID uuid.UUID, key string) (domain.Trip, error) {
	r.mu.RLock()
	id, ok := r.keys[driverKey{driverID: driverID, key: key}]
	cell := r.trips[id]
	r.mu.RUnlock()

	if !ok || cell == nil {
		return domain.Trip{}, fmt.Errorf("repo.memoryTripRepo.GetByIdempotencyKey: %w", domain.ErrNotFound)
	}
	return cell.snapshot(), nil
}

func (r *memoryTripRepo) ListByDriver(_ context.Context, driverID uuid.UUID) ([]domain.Trip, error) {
	trips := r.collect(func(t domain.Trip) bool { return t.DriverID == driverID })
	domain.SortByDeparture(trips)
	return trips, nil
}

func (r *memoryTripRepo) ListActiveFrom(_ context.Context, from time.Time) ([]domain.Trip, error) {
	from = domain.DateOf(from)
	trips := r.collect(func(t domain.Trip) bool {
		return t.Status == domain.TripActive && !t.DepartureDate.Before(from)
	})
	domain.SortByDeparture(trips)
	return trips, nil
}

// Update holds only the trip's own lock while fn runs. fn sees a copy, so a
// failed mutation leaves the stored trip untouched and readers never observe
// a half-applied change.
func (r *memoryTripRepo) Update(_ context.Context, id uuid.UUID, fn MutateFunc) (domain.Trip, error) {
	cell, ok := r.cell(id)
	if !ok {
		return domain.Trip{}, fmt.Errorf("repo.memoryTripRepo.Update: %w", domain.ErrNotFound)
	}

	cell.mu.Lock()
	defer cell.mu.Unlock()

	next := cell.trip
	if err := fn(&next); err != nil {
		return domain.Trip{}, err
	}

	committed := cell.trip
	committed.AvailableSeats = next.AvailableSeats
	committed.Status = next.Status
	if !committed.SeatsConsistent() {
		return domain.Trip{}, fmt.Errorf("repo.memoryTripRepo.Update: %w", errSeatRange)
	}
	committed.UpdatedAt = r.now().UTC()

	cell.trip = committed
	return committed, nil
}

func (r *memoryTripRepo) cell(id uuid.UUID) (*tripCell, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.trips[id]
	return c, ok
}

// collect snapshots every trip that satisfies keep. Always non-nil.
func (r *memoryTripRepo) collect(keep func(domain.Trip) bool) []domain.Trip {
	r.mu.RLock()
	cells := make([]*tripCell, 0, len(r.trips))
	for _, c := range r.trips {
		cells = append(cells, c)
	}
	r.mu.RUnlock()

	out := []domain.Trip{}
	for _, c := range cells {
		if t := c.snapshot(); keep(t) {
			out = append(out, t)
		}
	}
	return out
}
