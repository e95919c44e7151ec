package ray

import (
	"math"

	"row-major/glint/vmath/vec3"
)

// Span is a parametric interval along a ray.
type Span struct {
	Lo, Hi float64
}

func NaNSpan() Span {
	return Span{math.NaN(), math.NaN()}
}

func MinContainingSpan(a, b Span) Span {
	min := a.Lo
	if b.Lo < a.Lo {
		min = b.Lo
	}

	max := a.Hi
	if b.Hi > a.Hi {
		max = b.Hi
	}

	return Span{min, max}
}

// Contains reports whether t lies in the closed interval.
func (s Span) Contains(t float64) bool {
	return s.Lo <= t && t <= s.Hi
}

// IsFinite is false if either end is infinite or NaN.
func (s Span) IsFinite() bool {
	return !math.IsInf(s.Lo, 0) && !math.IsInf(s.Hi, 0) && !s.IsNaN()
}

func (s Span) IsNaN() bool {
	return math.IsNaN(s.Lo) || math.IsNaN(s.Hi)
}

// Ray is an origin and a direction.  The direction is not required to be
// normalized; materials normalize it where the math needs a unit vector.
type Ray struct {
	Point vec3.T
	Slope vec3.T
}

func (r *Ray) Eval(t float64) vec3.T {
	return vec3.T{
		r.Point[0] + t*r.Slope[0],
		r.Point[1] + t*r.Slope[1],
		r.Point[2] + t*r.Slope[2],
	}
}

// RaySegment is a ray restricted to a parametric interval.  Every
// intersection query takes one.
type RaySegment struct {
	TheRay     Ray
	TheSegment Span
}

// Clip returns a copy of the segment with its far end pulled in to hi.
func (b RaySegment) Clip(hi float64) RaySegment {
	b.TheSegment.Hi = hi
	return b
}
