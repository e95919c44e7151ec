package aabox

import (
	"math"

	"row-major/glint/ray"
	"row-major/glint/vmath/vec3"
)

type AABox struct {
	X, Y, Z ray.Span
}

// New builds a box from its minimum and maximum corners.
func New(min, max vec3.T) AABox {
	return AABox{
		X: ray.Span{Lo: min[0], Hi: max[0]},
		Y: ray.Span{Lo: min[1], Hi: max[1]},
		Z: ray.Span{Lo: min[2], Hi: max[2]},
	}
}

// AccumZeroAABox is the identity for MinContainingAABox.
func AccumZeroAABox() AABox {
	return AABox{
		X: ray.Span{Lo: math.Inf(1), Hi: math.Inf(-1)},
		Y: ray.Span{Lo: math.Inf(1), Hi: math.Inf(-1)},
		Z: ray.Span{Lo: math.Inf(1), Hi: math.Inf(-1)},
	}
}

// MinContainingAABox is the smallest box surrounding both a and b.
func MinContainingAABox(a, b AABox) AABox {
	return AABox{
		X: ray.MinContainingSpan(a.X, b.X),
		Y: ray.MinContainingSpan(a.Y, b.Y),
		Z: ray.MinContainingSpan(a.Z, b.Z),
	}
}

func (a AABox) Axis(i int) ray.Span {
	switch i {
	case 0:
		return a.X
	case 1:
		return a.Y
	case 2:
		return a.Z
	}
	panic("aabox: axis out of range")
}

func (a AABox) Min() vec3.T {
	return vec3.T{a.X.Lo, a.Y.Lo, a.Z.Lo}
}

// Contains reports whether b lies entirely inside a (boundaries included).
func (a AABox) Contains(b AABox) bool {
	for i := 0; i < 3; i++ {
		outer := a.Axis(i)
		inner := b.Axis(i)
		if inner.Lo < outer.Lo || inner.Hi > outer.Hi {
			return false
		}
	}
	return true
}

func (a AABox) IsFinite() bool {
	return a.X.IsFinite() && a.Y.IsFinite() && a.Z.IsFinite()
}


// RayTestAABox clips the query segment against the box using the slab method.
// It returns the part of the segment inside the box, or NaNSpan() if there is
// none.
//
// Direction components of zero divide to +/-Inf, which the swap below handles
// without a special case.  When the origin sits exactly on a slab plane the
// product is NaN; NaN never wins a comparison, so that axis leaves the
// interval alone.
func RayTestAABox(query ray.RaySegment, b AABox) ray.Span {
	tMin := query.TheSegment.Lo
	tMax := query.TheSegment.Hi

	for a := 0; a < 3; a++ {
		slab := b.Axis(a)
		invD := 1.0 / query.TheRay.Slope[a]
		t0 := (slab.Lo - query.TheRay.Point[a]) * invD
		t1 := (slab.Hi - query.TheRay.Point[a]) * invD
		if invD < 0.0 {
			t0, t1 = t1, t0
		}

		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}

		if tMax <= tMin {
			return ray.NaNSpan()
		}
	}

	return ray.Span{Lo: tMin, Hi: tMax}
}

// Hit reports whether the query segment passes through the box.
func (a AABox) Hit(query ray.RaySegment) bool {
	return !RayTestAABox(query, a).IsNaN()
}
