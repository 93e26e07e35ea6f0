package weather

import "testing"

func TestMapConditionCodeKnownCodes(t *testing.T) {
	tests := []struct {
		code     int
		isDay    bool
		wantMain string
		wantDesc string
		wantIcon string
	}{
		{0, true, "Clear", "Clear sky", "01d"},
		{0, false, "Clear", "Clear sky", "01n"},
		{3, true, "Clouds", "Overcast", "03d"},
		{45, true, "Mist", "Foggy", "50d"},
		{61, true, "Rain", "Slight rain", "10d"},
		{75, false, "Snow", "Heavy snow", "13n"},
		{95, true, "Thunderstorm", "Thunderstorm", "11d"},
		{99, true, "Thunderstorm", "Thunderstorm with heavy hail", "11d"},
	}

	for _, tt := range tests {
		got := MapConditionCode(tt.code, tt.isDay)
		if got.Code != tt.code {
			t.Errorf("code %d: Code = %d", tt.code, got.Code)
		}
		if got.Main != tt.wantMain {
			t.Errorf("code %d: Main = %q, want %q", tt.code, got.Main, tt.wantMain)
		}
		if got.Description != tt.wantDesc {
			t.Errorf("code %d: Description = %q, want %q", tt.code, got.Description, tt.wantDesc)
		}
		if got.Icon != tt.wantIcon {
			t.Errorf("code %d day=%v: Icon = %q, want %q", tt.code, tt.isDay, got.Icon, tt.wantIcon)
		}
	}
}

func TestMapConditionCodeTotality(t *testing.T) {
	// Every code, mapped or not, must yield a usable condition
	for code := 0; code <= 99; code++ {
		for _, isDay := range []bool{true, false} {
			got := MapConditionCode(code, isDay)
			if got.Main == "" || got.Description == "" || got.Icon == "" {
				t.Fatalf("code %d produced incomplete condition: %+v", code, got)
			}
			if got.Code != code {
				t.Fatalf("code %d echoed as %d", code, got.Code)
			}
		}
	}
}

func TestMapConditionCodeUnknownFallback(t *testing.T) {
	got := MapConditionCode(42, true)
	if got.Main != "Unknown" {
		t.Errorf("unmapped code 42: Main = %q, want Unknown", got.Main)
	}
	if got.Code != 42 {
		t.Errorf("unmapped code 42 echoed as %d", got.Code)
	}
}
