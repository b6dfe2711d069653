// Package service contains the business logic of the trip ledger.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here: services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-ledger/internal/domain"
	"github.com/pkordes/rideshare-ledger/internal/repo"
)

// EventPublisher receives an event after every committed mutation.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.TripEvent) error
}

// Option configures a TripLedger.
type Option func(*TripLedger)

// WithClock overrides time.Now. Tests use it to pin "today".
func WithClock(now func() time.Time) Option {
	return func(l *TripLedger) { l.now = now }
}

// WithLocation sets the reference time zone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(l *TripLedger) { l.loc = loc }
}

// WithEvents publishes an event for every committed post, cancel, complete and booking.
func WithEvents(p EventPublisher) Option {
	return func(l *TripLedger) { l.events = p }
}

// WithLogger sets the logger used for failures that are not returned to the
// caller (event delivery after commit).
func WithLogger(log *slog.Logger) Option {
	return func(l *TripLedger) { l.log = log }
}

// TripLedger is the single point through which trip state is read and
// changed. Seat counts and status transitions are decided here; atomicity of
// each change is delegated to repo.TripRepo.Update.
type TripLedger struct {
	trips  repo.TripRepo
	events EventPublisher
	log    *slog.Logger
	now    func() time.Time
	loc    *time.Location
}

// NewTripLedger constructs a TripLedger backed by the provided TripRepo.
func NewTripLedger(r repo.TripRepo, opts ...Option) *TripLedger {
	l := &TripLedger{
		trips: r,
		log:   slog.Default(),
		now:   time.Now,
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// today is evaluated once per operation.
func (l *TripLedger) today() time.Time {
	return domain.Today(l.now(), l.loc)
}

// PostTrip validates draft and stores it as a new active trip owned by driverID.
// When idempotencyKey is non-empty, repeating the call with the same driver and
// key returns the trip created by the first call instead of a new one.
// Returns domain.ErrValidation if input violates business rules.
func (l *TripLedger) PostTrip(ctx context.Context, driverID uuid.UUID, draft domain.TripDraft, idempotencyKey string) (domain.Trip, error) {
	if driverID == uuid.Nil {
		return domain.Trip{}, fmt.Errorf("%w: driver identity is required", domain.ErrValidation)
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" {
		existing, err := l.trips.GetByIdempotencyKey(ctx, driverID, idempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Trip{}, fmt.Errorf("service.TripLedger.PostTrip: %w", err)
		}
	}

	if err := validateDraft(draft, l.today()); err != nil {
		return domain.Trip{}, err
	}

	trip := domain.Trip{
		ID:             uuid.New(),
		DriverID:       driverID,
		Origin:         strings.TrimSpace(draft.Origin),
		Destination:    strings.TrimSpace(draft.Destination),
		DepartureDate:  domain.DateOf(draft.DepartureDate),
		DepartureTime:  strings.TrimSpace(draft.DepartureTime),
		TotalSeats:     draft.TotalSeats,
		AvailableSeats: draft.TotalSeats,
		PriceCents:     draft.PriceCents,
		Status:         domain.TripActive,
		IdempotencyKey: idempotencyKey,
	}

	created, err := l.trips.Create(ctx, trip)
	if errors.Is(err, domain.ErrDuplicate) && idempotencyKey != "" {
		// Lost a race against a concurrent post with the same key.
		created, err = l.trips.GetByIdempotencyKey(ctx, driverID, idempotencyKey)
		if err != nil {
			return domain.Trip{}, fmt.Errorf("service.TripLedger.PostTrip: %w", err)
		}
		return created, nil
	}
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripLedger.PostTrip: %w", err)
	}

	l.publish(ctx, domain.NewTripEvent(domain.EventTripPosted, created, l.now()))
	return created, nil
}

// CancelTrip moves an active trip owned by driverID to cancelled.
// Returns domain.ErrNotFound, domain.ErrForbidden if the caller is not the
// driver, or domain.ErrInvalidState if the trip is no longer active.
func (l *TripLedger) CancelTrip(ctx context.Context, tripID, driverID uuid.UUID) error {
	updated, err := l.trips.Update(ctx, tripID, transitionBy(driverID, domain.TripCancelled))
	if err != nil {
		return fmt.Errorf("service.TripLedger.CancelTrip: %w", err)
	}
	l.publish(ctx, domain.NewTripEvent(domain.EventTripCancelled, updated, l.now()))
	return nil
}

// CompleteTrip moves an active trip owned by driverID to completed.
// Error semantics match CancelTrip.
func (l *TripLedger) CompleteTrip(ctx context.Context, tripID, driverID uuid.UUID) (domain.Trip, error) {
	updated, err := l.trips.Update(ctx, tripID, transitionBy(driverID, domain.TripCompleted))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripLedger.CompleteTrip: %w", err)
	}
	l.publish(ctx, domain.NewTripEvent(domain.EventTripCompleted, updated, l.now()))
	return updated, nil
}

// BookSeat claims one seat on tripID for passengerID and returns the
// committed trip. The availability check and the decrement happen inside a
// single repo.Update, so concurrent bookings can never oversell.
// Returns domain.ErrNotFound, domain.ErrForbidden (driver booking own trip),
// domain.ErrInvalidState (not active, or departed), or domain.ErrSeatsExhausted.
func (l *TripLedger) BookSeat(ctx context.Context, tripID, passengerID uuid.UUID) (domain.Trip, error) {
	if passengerID == uuid.Nil {
		return domain.Trip{}, fmt.Errorf("%w: passenger identity is required", domain.ErrValidation)
	}
	today := l.today()

	updated, err := l.trips.Update(ctx, tripID, func(t *domain.Trip) error {
		switch {
		case t.DriverID == passengerID:
			return fmt.Errorf("%w: drivers cannot book their own trip", domain.ErrForbidden)
		case t.Status != domain.TripActive:
			return fmt.Errorf("%w: trip is %s", domain.ErrInvalidState, t.Status)
		case t.Departed(today):
			return fmt.Errorf("%w: trip departed on %s", domain.ErrInvalidState, t.DepartureDate.Format(domain.DateLayout))
		case t.AvailableSeats <= 0:
			return domain.ErrSeatsExhausted
		}
		t.AvailableSeats--
		return nil
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripLedger.BookSeat: %w", err)
	}

	ev := domain.NewTripEvent(domain.EventSeatBooked, updated, l.now())
	ev.PassengerID = &passengerID
	l.publish(ctx, ev)
	return updated, nil
}

// GetTrip returns a single trip by ID, in any status.
func (l *TripLedger) GetTrip(ctx context.Context, tripID uuid.UUID) (domain.Trip, error) {
	trip, err := l.trips.GetByID(ctx, tripID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripLedger.GetTrip: %w", err)
	}
	return trip, nil
}

// ListTripsForDriver returns every trip of driverID: upcoming trips first in
// ascending departure order, then past trips most recent first.
// Always returns a non-nil slice so callers can safely range over it.
func (l *TripLedger) ListTripsForDriver(ctx context.Context, driverID uuid.UUID) ([]domain.Trip, error) {
	trips, err := l.trips.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("service.TripLedger.ListTripsForDriver: %w", err)
	}
	return orderForDriver(trips, l.today()), nil
}

// SearchTrips returns bookable trips (active, departing today or later) that
// match filter, ordered by departure date, departure time, then ID.
// Always returns a non-nil slice.
func (l *TripLedger) SearchTrips(ctx context.Context, filter domain.SearchFilter) ([]domain.Trip, error) {
	if filter.DateFrom != nil && filter.DateTo != nil && domain.DateOf(*filter.DateTo).Before(domain.DateOf(*filter.DateFrom)) {
		return []domain.Trip{}, nil
	}

	from := l.today()
	if filter.DateFrom != nil && domain.DateOf(*filter.DateFrom).After(from) {
		from = domain.DateOf(*filter.DateFrom)
	}

	candidates, err := l.trips.ListActiveFrom(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("service.TripLedger.SearchTrips: %w", err)
	}

	out := make([]domain.Trip, 0, len(candidates))
	for _, t := range candidates {
		if t.Status == domain.TripActive && !t.Departed(from) && filter.Matches(t) {
			out = append(out, t)
		}
	}
	domain.SortByDeparture(out)
	return out, nil
}

func (l *TripLedger) publish(ctx context.Context, ev domain.TripEvent) {
	if l.events == nil {
		return
	}
	// The mutation is already committed; a delivery failure is reported but
	// does not turn a successful operation into an error.
	if err := l.events.Publish(ctx, ev); err != nil {
		l.log.ErrorContext(ctx, "publish trip event",
			"kind", string(ev.Kind),
			"trip_id", ev.TripID.String(),
			"error", err,
		)
	}
}

// transitionBy returns a mutation that moves an active trip owned by
// driverID to next.
func transitionBy(driverID uuid.UUID, next domain.TripStatus) repo.MutateFunc {
	return func(t *domain.Trip) error {
		if t.DriverID != driverID {
			return fmt.Errorf("%w: trip belongs to another driver", domain.ErrForbidden)
		}
		if !t.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: cannot move trip from %s to %s", domain.ErrInvalidState, t.Status, next)
		}
		t.Status = next
		return nil
	}
}

// orderForDriver partitions trips at today: upcoming ascending, then past
// descending.
func orderForDriver(trips []domain.Trip, today time.Time) []domain.Trip {
	upcoming := make([]domain.Trip, 0, len(trips))
	var past []domain.Trip
	for _, t := range trips {
		if t.Departed(today) {
			past = append(past, t)
		} else {
			upcoming = append(upcoming, t)
		}
	}
	domain.SortByDeparture(upcoming)
	domain.SortByDeparture(past)
	slices.Reverse(past)
	return append(upcoming, past...)
}

// validateDraft enforces the posting rules:
//   - origin and destination must be non-empty (whitespace-only is rejected)
//   - at least one seat, non-negative price
//   - departure date not before today
func validateDraft(d domain.TripDraft, today time.Time) error {
	if strings.TrimSpace(d.Origin) == "" {
		return fmt.Errorf("%w: origin is required", domain.ErrValidation)
	}
	if strings.TrimSpace(d.Destination) == "" {
		return fmt.Errorf("%w: destination is required", domain.ErrValidation)
	}
	if d.TotalSeats < 1 {
		return fmt.Errorf("%w: total_seats must be at least 1", domain.ErrValidation)
	}
	if d.PriceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	}
	if d.DepartureDate.IsZero() {
		return fmt.Errorf("%w: departure_date is required", domain.ErrValidation)
	}
	if domain.DateOf(d.DepartureDate).Before(today) {
		return fmt.Errorf("%w: departure_date must not be in the past", domain.ErrValidation)
	}
	return nil
}
