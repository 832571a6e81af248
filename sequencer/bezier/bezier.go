// Package bezier evaluates the cubic curve a servo follows between two
// keyframes. Everything here is a pure function of its inputs; default
// tangents are derived on every call and never stored.
package bezier

import "servoseq/sequencer"

// Evaluate blends four control coordinates at parameter t. t is clamped to
// [0,1] and the result to [0,180]. t=0 yields p0 and t=1 yields p3 exactly.
func Evaluate(t, p0, p1, p2, p3 float64) float64 {
	if !(t > 0) {
		return sequencer.ClampAngle(p0)
	}
	if t >= 1 {
		return sequencer.ClampAngle(p3)
	}
	u := 1 - t
	v := u*u*u*p0 + 3*u*u*t*p1 + 3*u*t*t*p2 + t*t*t*p3
	return sequencer.ClampAngle(v)
}

// Controls holds the derived curve for one segment. T1 and T2 are the time
// offsets of the handles relative to their own keyframes; they describe the
// curve's shape for display and do not affect timing.
type Controls struct {
	P0, P1, P2, P3 float64
	T1, T2         float64
	Duration       int64 // end time minus start time, may be <= 0
}

// SegmentControls derives the control coordinates for the segment from a to b.
// Absent handles fall back to a third of the segment span with no angle
// offset.
func SegmentControls(a, b sequencer.Keyframe) Controls {
	c := Controls{
		P0:       a.Angle,
		P3:       b.Angle,
		Duration: int64(b.Time) - int64(a.Time),
	}
	third := float64(c.Duration) / 3

	if a.Out.Present {
		c.P1 = a.Angle + a.Out.DeltaAngle
		c.T1 = a.Out.DeltaTime
	} else {
		c.P1 = a.Angle
		c.T1 = third
	}
	if b.In.Present {
		c.P2 = b.Angle + b.In.DeltaAngle
		c.T2 = b.In.DeltaTime
	} else {
		c.P2 = b.Angle
		c.T2 = -third
	}

	c.P1 = sequencer.ClampAngle(c.P1)
	c.P2 = sequencer.ClampAngle(c.P2)
	return c
}

// At evaluates the segment at parameter t
func (c Controls) At(t float64) float64 {
	return Evaluate(t, c.P0, c.P1, c.P2, c.P3)
}

// AtElapsed evaluates the segment elapsed ms after it started. Non-positive
// durations snap to the end angle.
func (c Controls) AtElapsed(elapsed uint32) float64 {
	if c.Duration <= 0 {
		return sequencer.ClampAngle(c.P3)
	}
	return c.At(float64(elapsed) / float64(c.Duration))
}
