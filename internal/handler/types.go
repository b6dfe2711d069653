package handler

import (
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/rideshare-ledger/internal/domain"
)

// Wire types for the JSON API. Field names and formats match spec/openapi.yaml.

type healthResponse struct {
	Status string `json:"status"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type postTripRequest struct {
	Origin        string             `json:"origin"`
	Destination   string             `json:"destination"`
	DepartureDate openapi_types.Date `json:"departure_date"`
	DepartureTime string             `json:"departure_time"`
	TotalSeats    int                `json:"total_seats"`
	PriceCents    int64              `json:"price_cents"`
}

type tripResponse struct {
	ID             uuid.UUID          `json:"id"`
	DriverID       uuid.UUID          `json:"driver_id"`
	Origin         string             `json:"origin"`
	Destination    string             `json:"destination"`
	DepartureDate  openapi_types.Date `json:"departure_date"`
	DepartureTime  string             `json:"departure_time,omitempty"`
	TotalSeats     int                `json:"total_seats"`
	AvailableSeats int                `json:"available_seats"`
	PriceCents     int64              `json:"price_cents"`
	Status         domain.TripStatus  `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type tripPage struct {
	Data       []tripResponse `json:"data"`
	Pagination pagination     `json:"pagination"`
}

type tripList struct {
	Data []tripResponse `json:"data"`
}

// searchParams are the query parameters of GET /trips.
type searchParams struct {
	Origin      *string
	Destination *string
	DateFrom    *openapi_types.Date
	DateTo      *openapi_types.Date
	Page        *int
	Limit       *int
}

func (b postTripRequest) toDraft() domain.TripDraft {
	return domain.TripDraft{
		Origin:        b.Origin,
		Destination:   b.Destination,
		DepartureDate: b.DepartureDate.Time,
		DepartureTime: b.DepartureTime,
		TotalSeats:    b.TotalSeats,
		PriceCents:    b.PriceCents,
	}
}

func (p searchParams) toFilter() domain.SearchFilter {
	var f domain.SearchFilter
	if p.Origin != nil {
		f.Origin = *p.Origin
	}
	if p.Destination != nil {
		f.Destination = *p.Destination
	}
	if p.DateFrom != nil {
		d := domain.DateOf(p.DateFrom.Time)
		f.DateFrom = &d
	}
	if p.DateTo != nil {
		d := domain.DateOf(p.DateTo.Time)
		f.DateTo = &d
	}
	return f
}

func tripToResponse(t domain.Trip) tripResponse {
	return tripResponse{
		ID:             t.ID,
		DriverID:       t.DriverID,
		Origin:         t.Origin,
		Destination:    t.Destination,
		DepartureDate:  openapi_types.Date{Time: t.DepartureDate},
		DepartureTime:  t.DepartureTime,
		TotalSeats:     t.TotalSeats,
		AvailableSeats: t.AvailableSeats,
		PriceCents:     t.PriceCents,
		Status:         t.Status,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func tripsToResponse(trips []domain.Trip) []tripResponse {
	out := make([]tripResponse, len(trips))
	for i, t := range trips {
		out[i] = tripToResponse(t)
	}
	return out
}
