package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/rideshare-ledger/internal/auth"
	"github.com/pkordes/rideshare-ledger/internal/domain"
	"github.com/pkordes/rideshare-ledger/internal/handler"
)

// ---- test doubles ----------------------------------------------------------

// mockLedger is a hand-written test double for handler.TripLedger.
// Each method is a function field; set only the ones a test needs.
type mockLedger struct {
	postTrip           func(ctx context.Context, driverID uuid.UUID, draft domain.TripDraft, key string) (domain.Trip, error)
	cancelTrip         func(ctx context.Context, tripID, driverID uuid.UUID) error
	completeTrip       func(ctx context.Context, tripID, driverID uuid.UUID) (domain.Trip, error)
	bookSeat           func(ctx context.Context, tripID, passengerID uuid.UUID) (domain.Trip, error)
	getTrip            func(ctx context.Context, tripID uuid.UUID) (domain.Trip, error)
	listTripsForDriver func(ctx context.Context, driverID uuid.UUID) ([]domain.Trip, error)
	searchTrips        func(ctx context.Context, filter domain.SearchFilter) ([]domain.Trip, error)
}

func (m *mockLedger) PostTrip(ctx context.Context, driverID uuid.UUID, draft domain.TripDraft, key string) (domain.Trip, error) {
	return m.postTrip(ctx, driverID, draft, key)
}
func (m *mockLedger) CancelTrip(ctx context.Context, tripID, driverID uuid.UUID) error {
	return m.cancelTrip(ctx, tripID, driverID)
}
func (m *mockLedger) CompleteTrip(ctx context.Context, tripID, driverID uuid.UUID) (domain.Trip, error) {
	return m.completeTrip(ctx, tripID, driverID)
}
func (m *mockLedger) BookSeat(ctx context.Context, tripID, passengerID uuid.UUID) (domain.Trip, error) {
	return m.bookSeat(ctx, tripID, passengerID)
}
func (m *mockLedger) GetTrip(ctx context.Context, tripID uuid.UUID) (domain.Trip, error) {
	return m.getTrip(ctx, tripID)
}
func (m *mockLedger) ListTripsForDriver(ctx context.Context, driverID uuid.UUID) ([]domain.Trip, error) {
	return m.listTripsForDriver(ctx, driverID)
}
func (m *mockLedger) SearchTrips(ctx context.Context, filter domain.SearchFilter) ([]domain.Trip, error) {
	return m.searchTrips(ctx, filter)
}

// compile-time check: mockLedger must satisfy handler.TripLedger.
var _ handler.TripLedger = (*mockLedger)(nil)

// newRouter builds the API with an authenticator that trusts caller.
// A nil caller makes every protected route answer 401.
func newRouter(ledger handler.TripLedger, caller *uuid.UUID) http.Handler {
	authenticate := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if caller == nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{UserID: *caller})))
		})
	}
	return handler.NewServer(ledger).Routes(authenticate)
}

func do(t *testing.T, h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var body errorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

type tripJSON struct {
	ID             string `json:"id"`
	DriverID       string `json:"driver_id"`
	Origin         string `json:"origin"`
	Destination    string `json:"destination"`
	DepartureDate  string `json:"departure_date"`
	DepartureTime  string `json:"departure_time"`
	TotalSeats     int    `json:"total_seats"`
	AvailableSeats int    `json:"available_seats"`
	PriceCents     int64  `json:"price_cents"`
	Status         string `json:"status"`
}

func sampleTrip(driver uuid.UUID) domain.Trip {
	return domain.Trip{
		ID:             uuid.New(),
		DriverID:       driver,
		Origin:         "Porto",
		Destination:    "Lisboa",
		DepartureDate:  time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC),
		DepartureTime:  "08:30",
		TotalSeats:     3,
		AvailableSeats: 3,
		PriceCents:     1500,
		Status:         domain.TripActive,
	}
}

// ---- POST /trips -----------------------------------------------------------

func TestPostTrip_Created(t *testing.T) {
	driver := uuid.New()
	var gotDraft domain.TripDraft
	var gotDriver uuid.UUID
	var gotKey string
	ledger := &mockLedger{
		postTrip: func(_ context.Context, driverID uuid.UUID, draft domain.TripDraft, key string) (domain.Trip, error) {
			gotDriver, gotDraft, gotKey = driverID, draft, key
			return sampleTrip(driverID), nil
		},
	}

	rec := do(t, newRouter(ledger, &driver), http.MethodPost, "/trips",
		`{"origin":"Porto","destination":"Lisboa","departure_date":"2030-06-01","departure_time":"08:30","total_seats":3,"price_cents":1500}`,
		"Idempotency-Key", "retry-1")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, driver, gotDriver, "driver comes from the token, never the body")
	assert.Equal(t, "retry-1", gotKey)
	assert.Equal(t, "Porto", gotDraft.Origin)
	assert.Equal(t, 3, gotDraft.TotalSeats)
	assert.Equal(t, int64(1500), gotDraft.PriceCents)
	assert.Equal(t, "2030-06-01", gotDraft.DepartureDate.Format(domain.DateLayout))

	var body tripJSON
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, driver.String(), body.DriverID)
	assert.Equal(t, "2030-06-01", body.DepartureDate)
	assert.Equal(t, 3, body.AvailableSeats)
	assert.Equal(t, "active", body.Status)
}

func TestPostTrip_BadRequest(t *testing.T) {
	driver := uuid.New()
	cases := map[string]string{
		"not json":     `{"origin":`,
		"bad date":     `{"origin":"A","destination":"B","departure_date":"01/06/2030","total_seats":1}`,
		"seats string": `{"origin":"A","destination":"B","departure_date":"2030-06-01","total_seats":"two"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, newRouter(&mockLedger{}, &driver), http.MethodPost, "/trips", body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "bad_request", decodeError(t, rec).Error.Code)
		})
	}
}

func TestPostTrip_ValidationError(t *testing.T) {
	driver := uuid.New()
	ledger := &mockLedger{
		postTrip: func(context.Context, uuid.UUID, domain.TripDraft, string) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("%w: origin is required", domain.ErrValidation)
		},
	}

	rec := do(t, newRouter(ledger, &driver), http.MethodPost, "/trips",
		`{"origin":"","destination":"B","departure_date":"2030-06-01","total_seats":1}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "validation_error", body.Error.Code)
	assert.Equal(t, "origin is required", body.Error.Message)
}

func TestProtectedRoutes_RequireAuthentication(t *testing.T) {
	h := newRouter(&mockLedger{}, nil)
	id := uuid.NewString()
	routes := []struct{ method, path string }{
		{http.MethodPost, "/trips"},
		{http.MethodGet, "/trips"},
		{http.MethodGet, "/trips/" + id},
		{http.MethodPost, "/trips/" + id + "/cancel"},
		{http.MethodPost, "/trips/" + id + "/complete"},
		{http.MethodPost, "/trips/" + id + "/bookings"},
		{http.MethodGet, "/drivers/me/trips"},
	}
	for _, rt := range routes {
		rec := do(t, h, rt.method, rt.path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", rt.method, rt.path)
	}
}

// ---- GET /trips ------------------------------------------------------------

func TestSearchTrips_BindsFilter(t *testing.T) {
	caller := uuid.New()
	var got domain.SearchFilter
	ledger := &mockLedger{
		searchTrips: func(_ context.Context, f domain.SearchFilter) ([]domain.Trip, error) {
			got = f
			return []domain.Trip{}, nil
		},
	}

	rec := do(t, newRouter(ledger, &caller), http.MethodGet,
		"/trips?origin=porto&destination=lis&date_from=2030-06-01&date_to=2030-06-30", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "porto", got.Origin)
	assert.Equal(t, "lis", got.Destination)
	require.NotNil(t, got.DateFrom)
	require.NotNil(t, got.DateTo)
	assert.Equal(t, "2030-06-01", got.DateFrom.Format(domain.DateLayout))
	assert.Equal(t, "2030-06-30", got.DateTo.Format(domain.DateLayout))
}

func TestSearchTrips_NoFilter(t *testing.T) {
	caller := uuid.New()
	var got domain.SearchFilter
	ledger := &mockLedger{
		searchTrips: func(_ context.Context, f domain.SearchFilter) ([]domain.Trip, error) {
			got = f
			return nil, nil
		},
	}

	rec := do(t, newRouter(ledger, &caller), http.MethodGet, "/trips", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SearchFilter{}, got)
	assert.JSONEq(t, `{"data":[],"pagination":{"page":1,"limit":20,"total":0}}`, rec.Body.String())
}

func TestSearchTrips_Paginates(t *testing.T) {
	caller := uuid.New()
	trips := make([]domain.Trip, 5)
	for i := range trips {
		trips[i] = sampleTrip(uuid.New())
	}
	ledger := &mockLedger{
		searchTrips: func(context.Context, domain.SearchFilter) ([]domain.Trip, error) { return trips, nil },
	}

	rec := do(t, newRouter(ledger, &caller), http.MethodGet, "/trips?page=2&limit=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data       []tripJSON `json:"data"`
		Pagination struct {
			Page, Limit, Total int
		} `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, trips[2].ID.String(), body.Data[0].ID)
	assert.Equal(t, trips[3].ID.String(), body.Data[1].ID)
	assert.Equal(t, 2, body.Pagination.Page)
	assert.Equal(t, 2, body.Pagination.Limit)
	assert.Equal(t, 5, body.Pagination.Total)
}

func TestSearchTrips_BadQuery(t *testing.T) {
	caller := uuid.New()
	for _, q := range []string{"date_from=tomorrow", "date_to=2030-02-30", "page=first"} {
		t.Run(q, func(t *testing.T) {
			rec := do(t, newRouter(&mockLedger{}, &caller), http.MethodGet, "/trips?"+q, "")

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "bad_request", decodeError(t, rec).Error.Code)
		})
	}
}

// ---- GET /trips/{id} -------------------------------------------------------

func TestGetTrip(t *testing.T) {
	caller := uuid.New()
	trip := sampleTrip(uuid.New())
	ledger := &mockLedger{
		getTrip: func(_ context.Context, id uuid.UUID) (domain.Trip, error) {
			if id != trip.ID {
				return domain.Trip{}, fmt.Errorf("repo.GetByID: %w", domain.ErrNotFound)
			}
			return trip, nil
		},
	}
	h := newRouter(ledger, &caller)

	rec := do(t, h, http.MethodGet, "/trips/"+trip.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body tripJSON
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, trip.ID.String(), body.ID)
	assert.Equal(t, "08:30", body.DepartureTime)

	rec = do(t, h, http.MethodGet, "/trips/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error.Code)

	rec = do(t, h, http.MethodGet, "/trips/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- POST /trips/{id}/cancel and /complete ---------------------------------

func TestCancelTrip(t *testing.T) {
	driver := uuid.New()
	tripID := uuid.New()
	var gotTrip, gotDriver uuid.UUID
	ledger := &mockLedger{
		cancelTrip: func(_ context.Context, id, driverID uuid.UUID) error {
			gotTrip, gotDriver = id, driverID
			return nil
		},
	}

	rec := do(t, newRouter(ledger, &driver), http.MethodPost, "/trips/"+tripID.String()+"/cancel", "")

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, tripID, gotTrip)
	assert.Equal(t, driver, gotDriver)
}

func TestCancelTrip_Errors(t *testing.T) {
	caller := uuid.New()
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"not owner", fmt.Errorf("%w: trip belongs to another driver", domain.ErrForbidden), http.StatusForbidden, "forbidden", "trip belongs to another driver"},
		{"already cancelled", fmt.Errorf("service.TripLedger.CancelTrip: %w", fmt.Errorf("%w: cannot move trip from cancelled to cancelled", domain.ErrInvalidState)), http.StatusConflict, "invalid_state", "cannot move trip from cancelled to cancelled"},
		{"unknown trip", domain.ErrNotFound, http.StatusNotFound, "not_found", "not found"},
		{"storage failure", errors.New("connection reset by peer"), http.StatusInternalServerError, "internal_error", "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := &mockLedger{
				cancelTrip: func(context.Context, uuid.UUID, uuid.UUID) error { return tc.err },
			}

			rec := do(t, newRouter(ledger, &caller), http.MethodPost, "/trips/"+uuid.NewString()+"/cancel", "")

			require.Equal(t, tc.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tc.code, body.Error.Code)
			assert.Equal(t, tc.message, body.Error.Message)
		})
	}
}

func TestCompleteTrip(t *testing.T) {
	driver := uuid.New()
	ledger := &mockLedger{
		completeTrip: func(_ context.Context, id, driverID uuid.UUID) (domain.Trip, error) {
			trip := sampleTrip(driverID)
			trip.ID = id
			trip.Status = domain.TripCompleted
			return trip, nil
		},
	}

	rec := do(t, newRouter(ledger, &driver), http.MethodPost, "/trips/"+uuid.NewString()+"/complete", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body tripJSON
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "completed", body.Status)
}

// ---- POST /trips/{id}/bookings ---------------------------------------------

func TestBookSeat(t *testing.T) {
	passenger := uuid.New()
	var gotPassenger uuid.UUID
	ledger := &mockLedger{
		bookSeat: func(_ context.Context, id, passengerID uuid.UUID) (domain.Trip, error) {
			gotPassenger = passengerID
			trip := sampleTrip(uuid.New())
			trip.ID = id
			trip.AvailableSeats = 2
			return trip, nil
		},
	}

	rec := do(t, newRouter(ledger, &passenger), http.MethodPost, "/trips/"+uuid.NewString()+"/bookings", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, passenger, gotPassenger)
	var body tripJSON
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.AvailableSeats)
	assert.Equal(t, 3, body.TotalSeats)
}

func TestBookSeat_Errors(t *testing.T) {
	passenger := uuid.New()
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"full", fmt.Errorf("service.TripLedger.BookSeat: %w", domain.ErrSeatsExhausted), http.StatusConflict, "seats_exhausted"},
		{"cancelled", fmt.Errorf("%w: trip is cancelled", domain.ErrInvalidState), http.StatusConflict, "invalid_state"},
		{"own trip", fmt.Errorf("%w: drivers cannot book their own trip", domain.ErrForbidden), http.StatusForbidden, "forbidden"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := &mockLedger{
				bookSeat: func(context.Context, uuid.UUID, uuid.UUID) (domain.Trip, error) { return domain.Trip{}, tc.err },
			}

			rec := do(t, newRouter(ledger, &passenger), http.MethodPost, "/trips/"+uuid.NewString()+"/bookings", "")

			require.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).Error.Code)
		})
	}
}

// ---- GET /drivers/me/trips -------------------------------------------------

func TestListMyTrips(t *testing.T) {
	driver := uuid.New()
	mine := []domain.Trip{sampleTrip(driver), sampleTrip(driver)}
	var gotDriver uuid.UUID
	ledger := &mockLedger{
		listTripsForDriver: func(_ context.Context, driverID uuid.UUID) ([]domain.Trip, error) {
			gotDriver = driverID
			return mine, nil
		},
	}

	rec := do(t, newRouter(ledger, &driver), http.MethodGet, "/drivers/me/trips", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, driver, gotDriver)
	var body struct {
		Data []tripJSON `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, mine[0].ID.String(), body.Data[0].ID)
}

func TestListMyTrips_Empty(t *testing.T) {
	driver := uuid.New()
	ledger := &mockLedger{
		listTripsForDriver: func(context.Context, uuid.UUID) ([]domain.Trip, error) { return []domain.Trip{}, nil },
	}

	rec := do(t, newRouter(ledger, &driver), http.MethodGet, "/drivers/me/trips", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}
