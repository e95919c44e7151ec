package medium

import (
	"math"

	"row-major/glint/ray"
	"row-major/glint/vmath/vec3"
)

// Medium is a participating medium filling the space between surfaces.
//
// Sample reports, for the part of r covered by seg, the light scattered into
// the ray by the medium and the fraction of light from the far end that
// survives the trip.
type Medium interface {
	Sample(r ray.Ray, seg ray.Span) (scattered vec3.T, transmittance float64)
}

// BeerLambert is the transmittance of a homogeneous absorber.
func BeerLambert(density, distance float64) float64 {
	return math.Exp(-density * distance)
}

// UniformFog has the same color and density everywhere.
type UniformFog struct {
	Color   vec3.T
	Density float64
}

func (f *UniformFog) Sample(r ray.Ray, seg ray.Span) (vec3.T, float64) {
	transmittance := BeerLambert(f.Density, seg.Hi-seg.Lo)
	return vec3.MulVS(f.Color, 1.0-transmittance), transmittance
}

// Composite applies the medium to color arriving from the far end of seg.
func Composite(m Medium, r ray.Ray, seg ray.Span, color vec3.T) vec3.T {
	scattered, transmittance := m.Sample(r, seg)
	return vec3.AddVV(vec3.MulVS(color, transmittance), scattered)
}
