// Package domain contains the core data types for the ride-share trip ledger.
// This package has no dependencies beyond uuid and is imported by every other
// internal package (repo, service, events, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus is the lifecycle state of a Trip.
// The only legal transitions are active -> cancelled and active -> completed.
type TripStatus string

const (
	TripActive    TripStatus = "active"
	TripCancelled TripStatus = "cancelled"
	TripCompleted TripStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s TripStatus) Valid() bool {
	switch s {
	case TripActive, TripCancelled, TripCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether a trip in status s may move to next.
// Cancelled and completed are terminal.
func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	return s == TripActive && (next == TripCancelled || next == TripCompleted)
}

// Trip is a single ride offered by a driver.
// DepartureDate is a date-only value held at midnight UTC (see DateOf);
// DepartureTime is an opaque local time-of-day label and is never combined
// with the date for comparisons.
type Trip struct {
	ID             uuid.UUID
	DriverID       uuid.UUID
	Origin         string
	Destination    string
	DepartureDate  time.Time
	DepartureTime  string
	TotalSeats     int
	AvailableSeats int
	PriceCents     int64
	Status         TripStatus
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TripDraft carries the caller-supplied fields of a trip being posted.
// Everything else (ID, driver, seat availability, status) is assigned by the ledger.
type TripDraft struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	DepartureTime string
	TotalSeats    int
	PriceCents    int64
}

// Departed reports whether the trip's departure date is strictly before today.
func (t Trip) Departed(today time.Time) bool {
	return DateOf(t.DepartureDate).Before(DateOf(today))
}

// SeatsConsistent reports whether the seat counters satisfy
// 0 <= AvailableSeats <= TotalSeats.
func (t Trip) SeatsConsistent() bool {
	return t.AvailableSeats >= 0 && t.AvailableSeats <= t.TotalSeats
}
