// Package handler implements the HTTP API in front of the trip ledger.
// All handlers are methods on Server. Methods are split into files by concern
// (health.go, trip.go, errors.go) but share the same Server struct.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/rideshare-ledger/internal/domain"
)

// TripLedger defines the business operations the trip handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the service or storage layers.
type TripLedger interface {
	PostTrip(ctx context.Context, driverID uuid.UUID, draft domain.TripDraft, idempotencyKey string) (domain.Trip, error)
	CancelTrip(ctx context.Context, tripID, driverID uuid.UUID) error
	CompleteTrip(ctx context.Context, tripID, driverID uuid.UUID) (domain.Trip, error)
	BookSeat(ctx context.Context, tripID, passengerID uuid.UUID) (domain.Trip, error)
	GetTrip(ctx context.Context, tripID uuid.UUID) (domain.Trip, error)
	ListTripsForDriver(ctx context.Context, driverID uuid.UUID) ([]domain.Trip, error)
	SearchTrips(ctx context.Context, filter domain.SearchFilter) ([]domain.Trip, error)
}

// Server holds the dependencies shared by every handler.
type Server struct {
	trips TripLedger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(trips TripLedger) *Server {
	return &Server{trips: trips}
}

// Routes builds the API router. Health and the OpenAPI document are public;
// every trip route runs behind authenticate, which must place an
// auth.Identity in the request context.
func (s *Server) Routes(authenticate func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Post("/trips", s.PostTrip)
		r.Get("/trips", s.SearchTrips)
		r.Get("/trips/{id}", s.GetTrip)
		r.Post("/trips/{id}/cancel", s.CancelTrip)
		r.Post("/trips/{id}/complete", s.CompleteTrip)
		r.Post("/trips/{id}/bookings", s.BookSeat)
		r.Get("/drivers/me/trips", s.ListMyTrips)
	})

	return r
}
