package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-ledger/internal/domain"
)

// Demo identities. Fixed so a token can be minted for them with cmd/devtoken.
var (
	DemoDriverA   = uuid.MustParse("00000000-0000-4000-8000-00000000d001")
	DemoDriverB   = uuid.MustParse("00000000-0000-4000-8000-00000000d002")
	DemoDriverC   = uuid.MustParse("00000000-0000-4000-8000-00000000d003")
	DemoPassenger = uuid.MustParse("00000000-0000-4000-8000-00000000a001")
)

type demoTrip struct {
	key       string
	driver    uuid.UUID
	draft     domain.TripDraft
	daysAhead int
	booked    int
}

var demoTrips = []demoTrip{
	{"demo-1", DemoDriverA, domain.TripDraft{Origin: "São Paulo, SP", Destination: "Rio de Janeiro, RJ", DepartureTime: "09:00", TotalSeats: 3, PriceCents: 7500}, 3, 1},
	{"demo-2", DemoDriverB, domain.TripDraft{Origin: "Belo Horizonte, MG", Destination: "Vitória, ES", DepartureTime: "10:30", TotalSeats: 4, PriceCents: 9500}, 5, 0},
	{"demo-3", DemoDriverA, domain.TripDraft{Origin: "Curitiba, PR", Destination: "Florianópolis, SC", DepartureTime: "14:00", TotalSeats: 2, PriceCents: 6000}, 7, 2},
	{"demo-4", DemoDriverC, domain.TripDraft{Origin: "São Paulo, SP", Destination: "Brasília, DF", DepartureTime: "11:00", TotalSeats: 3, PriceCents: 15000}, 3, 0},
}

// SeedDemoTrips posts a small set of upcoming trips and books some of their
// seats as DemoPassenger. Posts use fixed idempotency keys and bookings only
// top up to the demo level, so running it again changes nothing.
func SeedDemoTrips(ctx context.Context, l *TripLedger) ([]domain.Trip, error) {
	today := l.today()
	out := make([]domain.Trip, 0, len(demoTrips))
	for _, d := range demoTrips {
		draft := d.draft
		draft.DepartureDate = today.AddDate(0, 0, d.daysAhead)

		trip, err := l.PostTrip(ctx, d.driver, draft, d.key)
		if err != nil {
			return nil, fmt.Errorf("service.SeedDemoTrips: %s: %w", d.key, err)
		}
		for trip.Status == domain.TripActive && trip.TotalSeats-trip.AvailableSeats < d.booked {
			trip, err = l.BookSeat(ctx, trip.ID, DemoPassenger)
			if err != nil {
				return nil, fmt.Errorf("service.SeedDemoTrips: %s: book: %w", d.key, err)
			}
		}
		out = append(out, trip)
	}
	return out, nil
}
