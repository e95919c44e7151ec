package geometry

import (
	"math"

	"row-major/glint/aabox"
	"row-major/glint/contact"
	"row-major/glint/ray"
	"row-major/glint/vmath/vec3"
)

// Geometry is anything a ray can be intersected with.
//
// Hit reports the closest contact whose T lies in query.TheSegment.  Bounds
// reports a box enclosing the geometry over the time interval [time0, time1],
// or false if the geometry is unbounded.
type Geometry interface {
	Hit(query ray.RaySegment) (contact.Contact, bool)
	Bounds(time0, time1 float64) (aabox.AABox, bool)
}

// Sphere is a Geometry with a center and a radius.
//
// A negative radius turns the geometric normal inward.  Nesting a
// negative-radius sphere inside a positive one with the same center makes a
// hollow dielectric shell.
type Sphere struct {
	Center        vec3.T
	Radius        float64
	MaterialIndex int
}

func (s *Sphere) Hit(query ray.RaySegment) (contact.Contact, bool) {
	r := query.TheRay
	oc := vec3.SubVV(r.Point, s.Center)
	a := r.Slope.NormSquared()
	halfB := vec3.IProd(oc, r.Slope)
	c := oc.NormSquared() - s.Radius*s.Radius

	discriminant := halfB*halfB - a*c
	if discriminant < 0 {
		return contact.Contact{}, false
	}

	// Take the nearest root in range.
	sqrtD := math.Sqrt(discriminant)
	root := (-halfB - sqrtD) / a
	if !query.TheSegment.Contains(root) {
		root = (-halfB + sqrtD) / a
		if !query.TheSegment.Contains(root) {
			return contact.Contact{}, false
		}
	}

	p := r.Eval(root)
	result := contact.Contact{
		T:             root,
		P:             p,
		MaterialIndex: s.MaterialIndex,
	}
	result.SetFaceNormal(r, vec3.DivVS(vec3.SubVV(p, s.Center), s.Radius))
	return result, true
}

func (s *Sphere) Bounds(time0, time1 float64) (aabox.AABox, bool) {
	r := math.Abs(s.Radius)
	radiusVec := vec3.T{r, r, r}
	return aabox.New(vec3.SubVV(s.Center, radiusVec), vec3.AddVV(s.Center, radiusVec)), true
}

// Box is a solid axis-aligned box.
type Box struct {
	Spans         [3]ray.Span
	MaterialIndex int
}

func (b *Box) Hit(query ray.RaySegment) (contact.Contact, bool) {
	r := query.TheRay

	tEnter, tExit := math.Inf(-1), math.Inf(1)
	enterAxis, exitAxis := -1, -1

	for i := 0; i < 3; i++ {
		invD := 1.0 / r.Slope[i]
		t0 := (b.Spans[i].Lo - r.Point[i]) * invD
		t1 := (b.Spans[i].Hi - r.Point[i]) * invD
		if invD < 0.0 {
			t0, t1 = t1, t0
		}

		if t0 > tEnter {
			tEnter = t0
			enterAxis = i
		}
		if t1 < tExit {
			tExit = t1
			exitAxis = i
		}

		if tExit <= tEnter {
			return contact.Contact{}, false
		}
	}

	// Entering through a face, the outward normal opposes the direction of
	// travel along the hit axis.  Leaving, it agrees with it.
	t, axis, sign := tEnter, enterAxis, -1.0
	if !query.TheSegment.Contains(t) {
		t, axis, sign = tExit, exitAxis, 1.0
		if !query.TheSegment.Contains(t) {
			return contact.Contact{}, false
		}
	}
	if axis == -1 {
		// Zero-length direction.
		return contact.Contact{}, false
	}

	outward := vec3.T{}
	outward[axis] = math.Copysign(1.0, r.Slope[axis]) * sign

	result := contact.Contact{
		T:             t,
		P:             r.Eval(t),
		MaterialIndex: b.MaterialIndex,
	}
	result.SetFaceNormal(r, outward)
	return result, true
}

func (b *Box) Bounds(time0, time1 float64) (aabox.AABox, bool) {
	return aabox.AABox{
		X: b.Spans[0],
		Y: b.Spans[1],
		Z: b.Spans[2],
	}, true
}

// List is an unordered collection of geometry, tested linearly.
type List struct {
	Elements []Geometry
}

func (l *List) Add(g Geometry) int {
	l.Elements = append(l.Elements, g)
	return len(l.Elements) - 1
}

func (l *List) Hit(query ray.RaySegment) (contact.Contact, bool) {
	closest := contact.Contact{}
	hitAnything := false

	for _, element := range l.Elements {
		if c, ok := element.Hit(query); ok {
			query.TheSegment.Hi = c.T
			closest = c
			hitAnything = true
		}
	}

	return closest, hitAnything
}

// Bounds is the union of the element bounds.  An empty list, or one with any
// unbounded element, is unbounded.
func (l *List) Bounds(time0, time1 float64) (aabox.AABox, bool) {
	if len(l.Elements) == 0 {
		return aabox.AABox{}, false
	}

	result := aabox.AccumZeroAABox()
	for _, element := range l.Elements {
		b, ok := element.Bounds(time0, time1)
		if !ok {
			return aabox.AABox{}, false
		}
		result = aabox.MinContainingAABox(result, b)
	}
	return result, true
}
