package tzconvert

import (
	"testing"
	"time"
)

func TestSystemLocal(t *testing.T) {
	conv := NewSystem()

	tests := []struct {
		name     string
		zone     string
		utc      time.Time
		wantHour int
		wantMin  int
	}{
		// New York observes EDT (UTC-4) in July, EST (UTC-5) in January.
		{"New York summer", "America/New_York", time.Date(2024, 7, 4, 20, 20, 0, 0, time.UTC), 16, 20},
		{"New York winter", "America/New_York", time.Date(2024, 1, 15, 21, 20, 0, 0, time.UTC), 16, 20},
		{"Kolkata half hour", "Asia/Kolkata", time.Date(2024, 3, 1, 10, 50, 0, 0, time.UTC), 16, 20},
		{"Kathmandu quarter hour", "Asia/Kathmandu", time.Date(2024, 3, 1, 10, 35, 0, 0, time.UTC), 16, 20},
		{"UTC no change", "UTC", time.Date(2024, 3, 1, 16, 20, 0, 0, time.UTC), 16, 20},
		{"Auckland wraps to next day", "Pacific/Auckland", time.Date(2024, 3, 1, 3, 20, 0, 0, time.UTC), 16, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conv.Local(tt.zone, tt.utc)
			if err != nil {
				t.Fatalf("Local(%q) error: %v", tt.zone, err)
			}
			if got.Hour() != tt.wantHour || got.Minute() != tt.wantMin {
				t.Errorf("Local(%q, %v) = %02d:%02d, want %02d:%02d",
					tt.zone, tt.utc, got.Hour(), got.Minute(), tt.wantHour, tt.wantMin)
			}
		})
	}
}

func TestSystemKnown(t *testing.T) {
	conv := NewSystem()

	known := []string{"America/New_York", "Europe/Berlin", "Asia/Tokyo", "UTC"}
	for _, zone := range known {
		if !conv.Known(zone) {
			t.Errorf("Known(%q) = false, want true", zone)
		}
	}

	unknown := []string{"", "Local", "Mars/Olympus_Mons", "not a zone"}
	for _, zone := range unknown {
		if conv.Known(zone) {
			t.Errorf("Known(%q) = true, want false", zone)
		}
		// Second call is served from the miss cache and must agree.
		if conv.Known(zone) {
			t.Errorf("Known(%q) second call = true, want false", zone)
		}
	}

	if _, err := conv.Local("Mars/Olympus_Mons", time.Now()); err == nil {
		t.Error("Local on unknown zone returned nil error")
	}
}

func TestFixed(t *testing.T) {
	conv := Fixed{"Test/Plus2": 2 * 3600, "Test/Minus5": -5 * 3600}
	now := time.Date(2024, 5, 1, 14, 20, 0, 0, time.UTC)

	got, err := conv.Local("Test/Plus2", now)
	if err != nil {
		t.Fatalf("Local error: %v", err)
	}
	if got.Hour() != 16 || got.Minute() != 20 {
		t.Errorf("Local = %s, want 16:20", got.Format("15:04"))
	}

	got, err = conv.Local("Test/Minus5", now)
	if err != nil {
		t.Fatalf("Local error: %v", err)
	}
	if got.Hour() != 9 {
		t.Errorf("Local = %s, want 09:20", got.Format("15:04"))
	}

	if conv.Known("Test/Missing") {
		t.Error("Known on missing zone = true")
	}
	if _, err := conv.Local("Test/Missing", now); err == nil {
		t.Error("Local on missing zone returned nil error")
	}
}

func TestUTCOffset(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		offset int
		want   string
	}{
		{0, "UTC"},
		{-4 * 3600, "UTC-4"},
		{8 * 3600, "UTC+8"},
		{5*3600 + 1800, "UTC+5:30"},
		{-(9*3600 + 1800), "UTC-9:30"},
		{5*3600 + 45*60, "UTC+5:45"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := UTCOffset(base.In(time.FixedZone("x", tt.offset)))
			if got != tt.want {
				t.Errorf("UTCOffset(%d) = %q, want %q", tt.offset, got, tt.want)
			}
		})
	}
}
