package weather

import "testing"

func TestLocationKey(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     string
	}{
		{40.7128, -74.0060, "40.7128,-74.006"},
		{51.5074, -0.1278, "51.5074,-0.1278"},
		{0, 0, "0,0"},
		{40.71284999, -74.00601234, "40.7128,-74.006"},
		{-33.8688, 151.2093, "-33.8688,151.2093"},
	}

	for _, tt := range tests {
		if got := LocationKey(tt.lat, tt.lon); got != tt.want {
			t.Errorf("LocationKey(%v, %v) = %q, want %q", tt.lat, tt.lon, got, tt.want)
		}
	}
}

func TestLocationKeyMethod(t *testing.T) {
	loc := Location{Lat: 40.7128, Lon: -74.0060}
	if got := loc.Key(); got != "40.7128,-74.006" {
		t.Errorf("Key() = %q", got)
	}
}
