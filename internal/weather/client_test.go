package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LuminLynx/misty/pkg/logger"
)

const forecastFixture = `{
	"latitude": 40.7128,
	"longitude": -74.006,
	"utc_offset_seconds": 0,
	"current": {
		"temperature_2m": 22.0,
		"relative_humidity_2m": 55.0,
		"apparent_temperature": 21.5,
		"weather_code": 0,
		"cloud_cover": 10.0,
		"pressure_msl": 1013.0,
		"surface_pressure": 1010.0,
		"wind_speed_10m": 12.0,
		"wind_direction_10m": 180.0
	},
	"daily": {
		"time": ["2024-06-01", "2024-06-02"],
		"weather_code": [0, 61],
		"temperature_2m_max": [25.0, 20.0],
		"temperature_2m_min": [15.0, 12.0],
		"sunrise": ["2024-06-01T05:30", "2024-06-02T05:30"],
		"sunset": ["2024-06-01T20:30", "2024-06-02T20:30"],
		"uv_index_max": [7.0, 4.0],
		"precipitation_probability_max": [5.0, 60.0]
	}
}`

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ForecastBaseURL = baseURL
	cfg.RateLimitPerSecond = 0 // no limiter waits in tests

	c := NewClient(cfg, logger.NewNop())
	// Fixed noon clock so day/night is deterministic
	c.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestFetchForecastSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("timezone"); got != "auto" {
			t.Errorf("timezone = %q, want auto", got)
		}
		if got := r.URL.Query().Get("latitude"); got != "40.7128" {
			t.Errorf("latitude = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, forecastFixture)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	loc := Location{Name: "New York", Lat: 40.7128, Lon: -74.0060}

	data, err := c.FetchForecast(context.Background(), loc)
	if err != nil {
		t.Fatalf("FetchForecast failed: %v", err)
	}

	if data.Current.Temp != 22.0 {
		t.Errorf("temp = %v, want 22", data.Current.Temp)
	}
	if data.Current.Condition.Description != "Clear sky" {
		t.Errorf("description = %q, want Clear sky", data.Current.Condition.Description)
	}
	// Noon between 05:30 and 20:30 is daytime
	if data.Current.Condition.Icon != "01d" {
		t.Errorf("icon = %q, want 01d", data.Current.Condition.Icon)
	}
	if data.Current.Pressure != 1013.0 {
		t.Errorf("pressure = %v, want msl value 1013", data.Current.Pressure)
	}
	if data.Units != "metric" {
		t.Errorf("units = %q, want metric", data.Units)
	}

	if len(data.Daily) != 2 {
		t.Fatalf("daily count = %d, want 2", len(data.Daily))
	}
	if data.Daily[0].TempMean != 20.0 {
		t.Errorf("day 0 mean = %v, want 20", data.Daily[0].TempMean)
	}
	if data.Daily[1].PrecipChance != 0.6 {
		t.Errorf("day 1 precip chance = %v, want 0.6", data.Daily[1].PrecipChance)
	}
	if data.Daily[1].Condition.Code != 61 {
		t.Errorf("day 1 condition code = %d, want 61", data.Daily[1].Condition.Code)
	}
}

func TestFetchForecastRetriesExhausted(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	_, err := c.FetchForecast(context.Background(), Location{Lat: 1, Lon: 2})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error should wrap ErrNetwork: %v", err)
	}

	if got := requests.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
	// Backoff doubles from the initial 1s: 2s before attempt 2, 4s before attempt 3
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestFetchForecastRecoversMidRetry(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, forecastFixture)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	data, err := c.FetchForecast(context.Background(), Location{Lat: 1, Lon: 2})
	if err != nil {
		t.Fatalf("expected success on the final attempt: %v", err)
	}
	if data.Current.Temp != 22.0 {
		t.Errorf("temp = %v, want 22", data.Current.Temp)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestFetchForecastMalformedBodyRetried(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, "{not json")
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	_, err := c.FetchForecast(context.Background(), Location{Lat: 1, Lon: 2})
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
	// Decode failures are classified like network errors and retried
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error should wrap ErrNetwork: %v", err)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestFetchForecastMissingCurrentBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"latitude": 1, "longitude": 2, "daily": {"time": ["2024-06-01"], "weather_code": [0], "temperature_2m_max": [20], "temperature_2m_min": [10], "sunrise": ["2024-06-01T05:30"], "sunset": ["2024-06-01T20:30"], "uv_index_max": [5], "precipitation_probability_max": [0]}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	_, err := c.FetchForecast(context.Background(), Location{Lat: 1, Lon: 2})
	if !errors.Is(err, ErrParse) {
		t.Errorf("structurally incomplete document should be a parse error, got %v", err)
	}
}
