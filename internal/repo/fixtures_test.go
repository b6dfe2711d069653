package repo_test

import (
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-ledger/internal/domain"
)

// tripFixture returns an active trip with sensible defaults.
// Callers can override individual fields after calling this function.
func tripFixture() domain.Trip {
	return domain.Trip{
		ID:             uuid.New(),
		DriverID:       uuid.New(),
		Origin:         "São Paulo, SP",
		Destination:    "Rio de Janeiro, RJ",
		DepartureDate:  time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC),
		DepartureTime:  "09:00",
		TotalSeats:     3,
		AvailableSeats: 3,
		PriceCents:     7500,
		Status:         domain.TripActive,
	}
}

// takeSeat is a MutateFunc that books one seat without any rule checks.
func takeSeat(t *domain.Trip) error {
	t.AvailableSeats--
	return nil
}
