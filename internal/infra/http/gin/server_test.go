package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcar/internal/app/engine"
	domaincars "rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/money"
	"rentcar/internal/infra/obs"
	"rentcar/internal/infra/storage/memory"
	"rentcar/internal/infra/validation"
)

type fakeLicenses struct {
	got []byte
}

func (f *fakeLicenses) Store(_ context.Context, filename string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.got = data
	return "s3://licenses/" + filename, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeLicenses) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	require.NoError(t, store.SaveCar(context.Background(), &domaincars.Car{ID: "car-1", Name: "Swift", DailyRate: money.Must(2500, "INR")}))
	eng, err := engine.New(engine.Deps{
		UoW:         memory.Factory{Store: store},
		Idempotency: memory.NewIdempotencyStore(),
		Validator:   validation.New(),
	}, engine.Config{
		Clock: func() time.Time { return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	licenses := &fakeLicenses{}
	router := NewRouter([]string{"http://localhost:5173"}, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Booking:      BookingHandler{Commands: eng.Commands, Queries: eng.Queries},
		Availability: AvailabilityHandler{Queries: eng.Queries},
		License:      LicenseHandler{Store: licenses},
	})
	return router, licenses
}

func doJSON(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bookingBody(start, end string) map[string]any {
	return map[string]any{
		"carId":          "car-1",
		"startDate":      start,
		"endDate":        end,
		"renterName":     "Asha Rao",
		"contactNumber":  "9876543210",
		"collateralType": "amount",
		"collateral":     map[string]any{"amount": "2500"},
	}
}

type errorEnvelope struct {
	Error struct {
		Kind    string         `json:"kind"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestCreateBookingAndConflict(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/api/v1/bookings", bookingBody("2025-07-20", "2025-07-23"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created createBookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, []string{"2025-07-20", "2025-07-21", "2025-07-22"}, created.BookedDays)
	assert.Equal(t, int64(7500), created.Booking.Total.Amount)
	assert.Equal(t, int64(2500), created.Booking.Collateral.Amount)

	w = doJSON(r, http.MethodPost, "/api/v1/bookings", bookingBody("2025-07-22", "2025-07-24"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "CONFLICT", env.Error.Kind)
	assert.Equal(t, []any{"2025-07-22"}, env.Error.Details["conflicts"])

	w = doJSON(r, http.MethodGet, "/api/v1/bookings/"+created.Booking.ID, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/cars/car-1/bookings", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.Booking.ID)
}

func TestCreateBookingValidationAndNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	body := bookingBody("2025-07-20", "2025-07-23")
	body["contactNumber"] = "12345"
	w := doJSON(r, http.MethodPost, "/api/v1/bookings", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")

	body = bookingBody("2025-07-20", "2025-07-23")
	body["carId"] = "car-9"
	w = doJSON(r, http.MethodPost, "/api/v1/bookings", body, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/bookings", "not an object", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIdempotencyKeyReplaysBooking(t *testing.T) {
	r, _ := newTestRouter(t)
	headers := map[string]string{IdempotencyHeader: "k-1"}

	first := doJSON(r, http.MethodPost, "/api/v1/bookings", bookingBody("2025-07-20", "2025-07-21"), headers)
	second := doJSON(r, http.MethodPost, "/api/v1/bookings", bookingBody("2025-07-20", "2025-07-21"), headers)
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)

	var a, b createBookingResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.Booking.ID, b.Booking.ID)
}

func TestLegacyBookRoute(t *testing.T) {
	r, _ := newTestRouter(t)
	body := map[string]any{
		"carId":          "car-1",
		"startDate":      "2025-07-20",
		"endDate":        "2025-07-22",
		"userName":       "Ravi",
		"mobileNumber":   "9123456780",
		"drivingLicense": "s3://licenses/dl.png",
		"collateralType": "gadgets",
		"collateral":     map[string]any{"gadgets": "laptop", "amount": ""},
	}
	w := doJSON(r, http.MethodPost, "/api/book", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Message     string   `json:"message"`
		BookedDates []string `json:"bookedDates"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "Booking successful", out.Message)
	assert.Equal(t, []string{"2025-07-20", "2025-07-21"}, out.BookedDates)

	w = doJSON(r, http.MethodPost, "/api/book", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"This car is already booked for the selected dates"}`, w.Body.String())
}

func TestAvailabilityAndCalendar(t *testing.T) {
	r, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, doJSON(r, http.MethodPost, "/api/v1/bookings", bookingBody("2025-07-01", "2025-07-03"), nil).Code)

	w := doJSON(r, http.MethodGet, "/api/v1/cars/car-1/availability?start=2025-07-03&end=2025-07-05", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"car_id":"car-1","start_date":"2025-07-03","end_date":"2025-07-05","available":true,"conflicts":[],"next_available_day":"2025-07-03"}`, w.Body.String())

	w = doJSON(r, http.MethodGet, "/api/v1/cars/car-1/availability?start=2025-07-05&end=2025-07-05", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/cars/car-1/calendar", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"booked_days":["2025-07-01","2025-07-02"]`)

	w = doJSON(r, http.MethodGet, "/api/v1/cars/nope/calendar", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLicenseUpload(t *testing.T) {
	r, licenses := newTestRouter(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "dl.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("scan"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/licenses", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"reference":"s3://licenses/dl.png"}`, w.Body.String())
	assert.Equal(t, []byte("scan"), licenses.got)
}

func TestCORSAllowList(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bookings", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
