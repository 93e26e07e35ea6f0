package scheduler

import (
	"testing"

	"github.com/LuminLynx/misty/pkg/logger"
)

type fakeRefresher struct {
	started   bool
	refreshed int
}

func (f *fakeRefresher) RefreshNow()     { f.refreshed++ }
func (f *fakeRefresher) IsStarted() bool { return f.started }

type fakeGuard struct{ constrained bool }

func (g *fakeGuard) Constrained() bool { return g.constrained }

func TestConfigValidateFloor(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 30},  // unset defaults to 30
		{5, 15},  // below floor raised to 15
		{14, 15}, // just below floor
		{15, 15},
		{45, 45},
	}
	for _, tt := range tests {
		cfg := Config{IntervalMinutes: tt.in, Enabled: true}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate(%d) failed: %v", tt.in, err)
		}
		if cfg.IntervalMinutes != tt.want {
			t.Errorf("interval %d validated to %d, want %d", tt.in, cfg.IntervalMinutes, tt.want)
		}
	}
}

func TestConfigValidateNegative(t *testing.T) {
	cfg := Config{IntervalMinutes: -1}
	if err := cfg.Validate(); err == nil {
		t.Error("negative interval must be rejected")
	}
}

func TestRunOnceSkipsWhenConstrained(t *testing.T) {
	refresher := &fakeRefresher{started: true}
	guard := &fakeGuard{constrained: true}
	s := New(Config{IntervalMinutes: 15, Enabled: true}, refresher, guard, logger.NewNop())

	s.runOnce()
	if refresher.refreshed != 0 {
		t.Error("constrained host must skip the refresh")
	}

	guard.constrained = false
	s.runOnce()
	if refresher.refreshed != 1 {
		t.Errorf("refreshed = %d, want 1", refresher.refreshed)
	}
}

func TestStaticGuard(t *testing.T) {
	refresher := &fakeRefresher{started: true}
	s := New(Config{IntervalMinutes: 15, Enabled: true, PowerSave: true},
		refresher, StaticGuard(true), logger.NewNop())

	s.runOnce()
	if refresher.refreshed != 0 {
		t.Error("power_save must skip scheduled refreshes")
	}

	s = New(Config{IntervalMinutes: 15, Enabled: true},
		refresher, StaticGuard(false), logger.NewNop())
	s.runOnce()
	if refresher.refreshed != 1 {
		t.Errorf("refreshed = %d, want 1", refresher.refreshed)
	}
}

func TestRunOnceSkipsWhenServiceStopped(t *testing.T) {
	refresher := &fakeRefresher{started: false}
	s := New(Config{IntervalMinutes: 15, Enabled: true}, refresher, nil, logger.NewNop())

	s.runOnce()
	if refresher.refreshed != 0 {
		t.Error("stopped service must not be refreshed")
	}
}

func TestDisabledSchedulerStart(t *testing.T) {
	s := New(Config{Enabled: false}, &fakeRefresher{}, nil, logger.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("disabled scheduler Start failed: %v", err)
	}
	s.Stop()
}
