package geocoding

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LuminLynx/misty/pkg/logger"
)

const searchFixture = `{
	"results": [
		{"id": 5128581, "name": "New York", "latitude": 40.71427, "longitude": -74.00597, "country": "United States", "admin1": "New York"},
		{"id": 5128638, "name": "New York Mills", "latitude": 43.10535, "longitude": -75.29129, "country": "United States", "admin1": "New York"}
	]
}`

func testClient(baseURL string) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	return NewClient(cfg, logger.NewNop())
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("name"); got != "new york" {
			t.Errorf("name = %q", got)
		}
		if got := r.URL.Query().Get("count"); got != "2" {
			t.Errorf("count = %q", got)
		}
		if got := r.URL.Query().Get("language"); got != "en" {
			t.Errorf("language = %q, want default en", got)
		}
		fmt.Fprint(w, searchFixture)
	}))
	defer srv.Close()

	results, err := testClient(srv.URL).Search(context.Background(), "new york", 2, "")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Name != "New York" || results[0].Country != "United States" {
		t.Errorf("first result = %+v", results[0])
	}
	if results[0].ID == "" {
		t.Error("result ID should be derived from coordinates")
	}
}

func TestSearchEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	results, err := testClient(srv.URL).Search(context.Background(), "xyzzy", 5, "")
	if err != nil {
		t.Fatalf("empty result set must not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [{"id": 1, "name": "Lisbon", "latitude": 38.7223, "longitude": -9.1393, "country": "Portugal"}]}`)
	}))
	defer srv.Close()

	loc, err := testClient(srv.URL).Reverse(context.Background(), 38.72, -9.14)
	if err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	if loc.Name != "Lisbon" {
		t.Errorf("name = %q", loc.Name)
	}
}

func TestReverseFallsBackToCoordinateName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	loc, err := testClient(srv.URL).Reverse(context.Background(), 38.7223, -9.1393)
	if err != nil {
		t.Fatalf("reverse fallback must not error: %v", err)
	}
	if loc.Name != "38.72°, -9.14°" {
		t.Errorf("fallback name = %q", loc.Name)
	}
	if loc.Lat != 38.7223 || loc.Lon != -9.1393 {
		t.Errorf("fallback coordinates = %v, %v", loc.Lat, loc.Lon)
	}
}
