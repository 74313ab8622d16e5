package extract

import (
	"testing"
	"time"
)

func TestTiers_Configure(t *testing.T) {
	tests := []struct {
		pages     int
		batchSize int
		dpi       int
		desc      string
	}{
		{1, 2, 200, "Small PDF - High quality"},
		{10, 2, 200, "Small PDF - High quality"},
		{11, 3, 150, "Medium PDF - Balanced"},
		{50, 3, 150, "Medium PDF - Balanced"},
		{51, 4, 150, "Large PDF - Efficient"},
		{200, 4, 150, "Large PDF - Efficient"},
		{201, 5, 120, "Enterprise PDF - Maximum efficiency"},
		{5000, 5, 120, "Enterprise PDF - Maximum efficiency"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := StandardTiers.Configure(tt.pages)
			if got.BatchSize != tt.batchSize || got.DPI != tt.dpi || got.Description != tt.desc {
				t.Errorf("Configure(%d) = %+v, want batch %d dpi %d %q",
					tt.pages, got, tt.batchSize, tt.dpi, tt.desc)
			}
		})
	}

	t.Run("boundaries select different tiers", func(t *testing.T) {
		for _, pair := range [][2]int{{10, 11}, {50, 51}, {200, 201}} {
			a := StandardTiers.Configure(pair[0])
			b := StandardTiers.Configure(pair[1])
			if a.BatchSize == b.BatchSize && a.DPI == b.DPI {
				t.Errorf("Configure(%d) and Configure(%d) both = %+v", pair[0], pair[1], a)
			}
		}
	})

	t.Run("empty table falls back to standard", func(t *testing.T) {
		got := Tiers(nil).Configure(3)
		if got.BatchSize != 2 || got.DPI != 200 {
			t.Errorf("Configure() = %+v", got)
		}
	})

	t.Run("bounded table uses last row beyond range", func(t *testing.T) {
		tiers := Tiers{{MaxPages: 5, BatchSize: 1, DPI: 300}, {MaxPages: 20, BatchSize: 2, DPI: 100}}
		if got := tiers.Configure(100); got.BatchSize != 2 {
			t.Errorf("Configure(100) = %+v", got)
		}
	})
}

func TestTierProfile(t *testing.T) {
	tests := []struct {
		name    string
		want    Tiers
		wantErr bool
	}{
		{"", StandardTiers, false},
		{"standard", StandardTiers, false},
		{"quality", QualityTiers, false},
		{"economy", EconomyTiers, false},
		{"turbo", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TierProfile(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TierProfile(%q) error = %v", tt.name, err)
			}
			if !tt.wantErr && got[0] != tt.want[0] {
				t.Errorf("TierProfile(%q) = %+v", tt.name, got)
			}
		})
	}
}

func TestParseFilterProfile(t *testing.T) {
	tests := []struct {
		in      string
		want    FilterProfile
		wantErr bool
	}{
		{"", FilterStrict, false},
		{"strict", FilterStrict, false},
		{"lenient", FilterLenient, false},
		{"loose", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFilterProfile(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFilterProfile(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestSettings_Backoff(t *testing.T) {
	s := DefaultSettings()

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for attempt, w := range want {
		if got := s.Backoff(attempt); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", attempt, got, w)
		}
	}

	for attempt := 1; attempt < 6; attempt++ {
		if s.Backoff(attempt) <= s.Backoff(attempt-1) {
			t.Errorf("Backoff(%d) not greater than Backoff(%d)", attempt, attempt-1)
		}
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.MaxRetries != 3 || s.RetryDelay != 2*time.Second || s.RateLimitDelay != time.Second {
		t.Errorf("unexpected retry settings: %+v", s)
	}
	if s.Temperature != 0.05 || s.MaxTokens != 8000 {
		t.Errorf("unexpected model settings: %+v", s)
	}
	if s.Filter != FilterStrict {
		t.Errorf("Filter = %q", s.Filter)
	}

	zero := Settings{}.withDefaults()
	if zero.MaxRetries != 1 || len(zero.Tiers) == 0 || zero.Filter != FilterStrict {
		t.Errorf("withDefaults() = %+v", zero)
	}
}
