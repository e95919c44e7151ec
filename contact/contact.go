package contact

import (
	"row-major/glint/ray"
	"row-major/glint/vmath/vec3"
)

// Contact describes where a ray met a surface.
//
// N always points back toward the side the ray came from.  FrontFace records
// whether that is the outside of the surface (the geometric normal did not
// need flipping).
type Contact struct {
	T         float64
	P         vec3.T
	N         vec3.T
	FrontFace bool

	// An index into the owning scene's material arena.
	MaterialIndex int
}

// SetFaceNormal orients N against the incoming ray, given the surface's
// outward normal.
func (c *Contact) SetFaceNormal(r ray.Ray, outwardNormal vec3.T) {
	c.FrontFace = vec3.IProd(r.Slope, outwardNormal) < 0.0
	if c.FrontFace {
		c.N = outwardNormal
	} else {
		c.N = vec3.Neg(outwardNormal)
	}
}
