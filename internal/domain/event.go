package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a committed change to a trip. The string value doubles as
// the pub/sub topic.
type EventKind string

const (
	EventTripPosted    EventKind = "trip.posted"
	EventTripCancelled EventKind = "trip.cancelled"
	EventTripCompleted EventKind = "trip.completed"
	EventSeatBooked    EventKind = "trip.seat_booked"
)

// EventKinds lists every kind, in a fixed order, for subscribers that want all of them.
var EventKinds = []EventKind{EventTripPosted, EventTripCancelled, EventTripCompleted, EventSeatBooked}

// TripEvent is published after a ledger mutation has been committed.
// PassengerID is only set for EventSeatBooked.
type TripEvent struct {
	Kind           EventKind  `json:"kind"`
	TripID         uuid.UUID  `json:"trip_id"`
	DriverID       uuid.UUID  `json:"driver_id"`
	PassengerID    *uuid.UUID `json:"passenger_id,omitempty"`
	AvailableSeats int        `json:"available_seats"`
	Status         TripStatus `json:"status"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// NewTripEvent snapshots t into an event of the given kind.
func NewTripEvent(kind EventKind, t Trip, at time.Time) TripEvent {
	return TripEvent{
		Kind:           kind,
		TripID:         t.ID,
		DriverID:       t.DriverID,
		AvailableSeats: t.AvailableSeats,
		Status:         t.Status,
		OccurredAt:     at.UTC(),
	}
}
