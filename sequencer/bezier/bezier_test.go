package bezier

import (
	"math"
	"testing"

	"servoseq/sequencer"
)

func TestEvaluateEndpoints(t *testing.T) {
	points := [][4]float64{
		{0, 0, 0, 0},
		{90, 90, 150, 150},
		{10, 180, 0, 170},
		{45.5, 12.25, 99.75, 133.125},
		{180, 0, 180, 0},
	}
	for _, p := range points {
		if got := Evaluate(0, p[0], p[1], p[2], p[3]); got != p[0] {
			t.Errorf("Evaluate(0, %v) = %v, want %v", p, got, p[0])
		}
		if got := Evaluate(1, p[0], p[1], p[2], p[3]); got != p[3] {
			t.Errorf("Evaluate(1, %v) = %v, want %v", p, got, p[3])
		}
	}
}

func TestEvaluateClampsParameter(t *testing.T) {
	if got := Evaluate(-0.5, 30, 60, 90, 120); got != 30 {
		t.Errorf("t<0 gave %v, want 30", got)
	}
	if got := Evaluate(2, 30, 60, 90, 120); got != 120 {
		t.Errorf("t>1 gave %v, want 120", got)
	}
	if got := Evaluate(math.NaN(), 30, 60, 90, 120); got != 30 {
		t.Errorf("t=NaN gave %v, want 30", got)
	}
}

func TestEvaluateClampsResult(t *testing.T) {
	// Unclamped handles would push the curve past 180
	got := Evaluate(0.5, 170, 400, 400, 170)
	if got > 180 {
		t.Errorf("result %v exceeds 180", got)
	}
}

func TestSymmetricDefaultMidpoint(t *testing.T) {
	a := sequencer.Keyframe{Time: 0, Angle: 90}
	b := sequencer.Keyframe{Time: 1000, Angle: 150}
	c := SegmentControls(a, b)

	if c.P1 != 90 || c.P2 != 150 {
		t.Fatalf("default handles = %v,%v; want 90,150", c.P1, c.P2)
	}
	if math.Abs(c.T1-1000.0/3) > 1e-9 || math.Abs(c.T2+1000.0/3) > 1e-9 {
		t.Errorf("default handle times = %v,%v", c.T1, c.T2)
	}

	mid := c.AtElapsed(500)
	if math.Abs(mid-120) > 1e-9 {
		t.Errorf("midpoint = %v, want 120", mid)
	}

	prev := c.AtElapsed(0)
	for ms := uint32(10); ms <= 1000; ms += 10 {
		cur := c.AtElapsed(ms)
		if cur <= prev {
			t.Fatalf("not increasing at %dms: %v <= %v", ms, cur, prev)
		}
		prev = cur
	}
	if prev != 150 {
		t.Errorf("end = %v, want 150", prev)
	}
}

func TestExplicitHandles(t *testing.T) {
	a := sequencer.Keyframe{
		Time:  0,
		Angle: 90,
		Out:   sequencer.ControlPoint{DeltaTime: 200, DeltaAngle: 100, Present: true},
	}
	b := sequencer.Keyframe{
		Time:  600,
		Angle: 20,
		In:    sequencer.ControlPoint{DeltaTime: -100, DeltaAngle: -40, Present: true},
	}
	c := SegmentControls(a, b)

	if c.P1 != 180 {
		t.Errorf("P1 = %v, want clamped 180", c.P1)
	}
	if c.P2 != 0 {
		t.Errorf("P2 = %v, want clamped 0", c.P2)
	}
	if c.T1 != 200 || c.T2 != -100 {
		t.Errorf("handle times = %v,%v", c.T1, c.T2)
	}
}

func TestDegenerateSegment(t *testing.T) {
	tests := []struct {
		name  string
		aTime  uint32
		bTime  uint32
	}{
		{"zero duration", 500, 500},
		{"negative duration", 800, 300},
	}
	for _, tt := range tests {
		c := SegmentControls(
			sequencer.Keyframe{Time: tt.aTime, Angle: 10},
			sequencer.Keyframe{Time: tt.bTime, Angle: 170},
		)
		if c.Duration > 0 {
			t.Errorf("%s: duration %d", tt.name, c.Duration)
		}
		if got := c.AtElapsed(0); got != 170 {
			t.Errorf("%s: angle %v, want 170", tt.name, got)
		}
	}
}
