package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/rideshare-ledger/internal/auth"
	"github.com/pkordes/rideshare-ledger/internal/domain"
)

// PostTrip handles POST /trips.
// The driver is the authenticated caller; an optional Idempotency-Key header
// makes retries return the originally created trip.
func (s *Server) PostTrip(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var body postTripRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("too_large", "request body too large"))
			return
		}
		requestError(w, "request body must be a JSON trip")
		return
	}

	created, err := s.trips.PostTrip(r.Context(), caller.UserID, body.toDraft(), r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tripToResponse(created))
}

// SearchTrips handles GET /trips.
// Supports ?origin=, ?destination=, ?date_from=, ?date_to= (YYYY-MM-DD) and
// ?page= / ?limit= (defaults: page=1, limit=20, max=100).
func (s *Server) SearchTrips(w http.ResponseWriter, r *http.Request) {
	var params searchParams
	query := r.URL.Query()
	for name, dest := range map[string]any{
		"origin":      &params.Origin,
		"destination": &params.Destination,
		"date_from":   &params.DateFrom,
		"date_to":     &params.DateTo,
		"page":        &params.Page,
		"limit":       &params.Limit,
	} {
		if err := runtime.BindQueryParameter("form", true, false, name, query, dest); err != nil {
			requestError(w, "invalid query parameter "+name)
			return
		}
	}

	trips, err := s.trips.SearchTrips(r.Context(), params.toFilter())
	if err != nil {
		writeError(w, err)
		return
	}

	page := domain.NewPaginationParams(params.Page, params.Limit)
	writeJSON(w, http.StatusOK, tripPage{
		Data: tripsToResponse(page.Window(trips)),
		Pagination: pagination{
			Page:  page.Page,
			Limit: page.Limit,
			Total: len(trips),
		},
	})
}

// GetTrip handles GET /trips/{id}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := tripIDFrom(w, r)
	if !ok {
		return
	}

	trip, err := s.trips.GetTrip(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// CancelTrip handles POST /trips/{id}/cancel.
func (s *Server) CancelTrip(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, ok := tripIDFrom(w, r)
	if !ok {
		return
	}

	if err := s.trips.CancelTrip(r.Context(), id, caller.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteTrip handles POST /trips/{id}/complete.
func (s *Server) CompleteTrip(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, ok := tripIDFrom(w, r)
	if !ok {
		return
	}

	trip, err := s.trips.CompleteTrip(r.Context(), id, caller.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// BookSeat handles POST /trips/{id}/bookings.
// The response is the ledger's committed trip; clients must replace any
// optimistic local copy with it.
func (s *Server) BookSeat(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, ok := tripIDFrom(w, r)
	if !ok {
		return
	}

	trip, err := s.trips.BookSeat(r.Context(), id, caller.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// ListMyTrips handles GET /drivers/me/trips.
func (s *Server) ListMyTrips(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	trips, err := s.trips.ListTripsForDriver(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tripList{Data: tripsToResponse(trips)})
}

// --- request helpers --------------------------------------------------------

// callerFrom returns the authenticated identity, writing a 401 if the route
// was mounted without the authenticator.
func callerFrom(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized", "authentication required"))
		return auth.Identity{}, false
	}
	return id, true
}

func tripIDFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		requestError(w, "trip id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
