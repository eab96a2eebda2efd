package render

import "testing"

func TestQualityStartsFastAndClean(t *testing.T) {
	q := NewQuality(2.0)
	if q.CRF() != 17 {
		t.Errorf("initial CRF: got %d, want 17", q.CRF())
	}
	if q.Preset() != "ultrafast" {
		t.Errorf("initial preset: got %q, want ultrafast", q.Preset())
	}
}

func TestQualityDegradesWhenSlow(t *testing.T) {
	q := NewQuality(2.0)

	// Render far below target: CRF climbs, preset already fastest.
	q.Observe(0.5)
	if q.CRF() != 18 {
		t.Errorf("CRF after slow render: got %d, want 18", q.CRF())
	}
	if q.Preset() != "ultrafast" {
		t.Errorf("preset must stay at floor, got %q", q.Preset())
	}

	// CRF never exceeds the worst acceptable value.
	for i := 0; i < 30; i++ {
		q.Observe(0.5)
	}
	if q.CRF() != 28 {
		t.Errorf("CRF must clamp at 28, got %d", q.CRF())
	}
}

func TestQualityRecoversWithHeadroom(t *testing.T) {
	q := NewQuality(2.0)

	// Fast renders walk the preset ladder toward slower, better presets.
	q.Observe(4.0)
	if q.Preset() != "superfast" {
		t.Errorf("preset after fast render: got %q, want superfast", q.Preset())
	}
	if q.CRF() != 17 {
		t.Errorf("CRF must clamp at 17, got %d", q.CRF())
	}

	for i := 0; i < 30; i++ {
		q.Observe(10.0)
	}
	if q.Preset() != "veryslow" {
		t.Errorf("preset must cap at veryslow, got %q", q.Preset())
	}
}

func TestQualityHoldsInsideDeadband(t *testing.T) {
	q := NewQuality(2.0)
	q.Observe(4.0) // move off the floor first
	preset := q.Preset()

	// Within half an x of target the preset holds, CRF still nudges.
	q.Observe(2.3)
	if q.Preset() != preset {
		t.Errorf("preset moved inside deadband: %q -> %q", preset, q.Preset())
	}
}

func TestResultAchievedSpeed(t *testing.T) {
	r := Result{DurationSeconds: 120, WallClockSeconds: 40}
	if got := r.AchievedSpeed(); got != 3.0 {
		t.Fatalf("achieved speed: got %v, want 3.0", got)
	}

	zero := Result{DurationSeconds: 120}
	if got := zero.AchievedSpeed(); got != 0 {
		t.Fatalf("zero wall clock must yield 0, got %v", got)
	}
}
