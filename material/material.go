package material

import (
	"math"
	"math/rand"

	"row-major/glint/contact"
	"row-major/glint/ray"
	"row-major/glint/vmath/vec3"
)

// ShadeInfo is the result of a successful scatter: the ray leaving the surface,
// and the fraction of its radiance that reaches the incoming ray.
type ShadeInfo struct {
	Attenuation vec3.T
	Scattered   ray.Ray
}

// Material decides what happens to a ray that strikes a surface.  Returning
// false means the ray was absorbed.
type Material interface {
	Scatter(in ray.Ray, c contact.Contact, rng *rand.Rand) (ShadeInfo, bool)
}

// Schlick approximates Fresnel reflectance at an incidence angle with cosine
// cosine, given the reflectance r0 at normal incidence.
func Schlick(cosine, r0 float64) float64 {
	return r0 + (1.0-r0)*math.Pow(1.0-cosine, 5)
}

// Reflectance is Schlick's approximation for an interface with relative
// refractive index refIdx.
func Reflectance(cosine, refIdx float64) float64 {
	r0 := (1.0 - refIdx) / (1.0 + refIdx)
	return Schlick(cosine, r0*r0)
}

func clamp01(x float64) float64 {
	return math.Max(0.0, math.Min(1.0, x))
}

type Lambertian struct {
	Albedo vec3.T
}

func (m *Lambertian) Scatter(in ray.Ray, c contact.Contact, rng *rand.Rand) (ShadeInfo, bool) {
	dir := vec3.AddVV(c.N, vec3.UniformUnitDistribution(rng))

	// The random vector can nearly cancel the normal.
	if dir.NormSquared() < 1e-8 {
		dir = c.N
	}

	return ShadeInfo{
		Attenuation: m.Albedo,
		Scattered:   ray.Ray{Point: c.P, Slope: dir},
	}, true
}

// nonMetalTint is the reflectance of a typical dielectric at normal incidence.
var nonMetalTint = vec3.T{0.04, 0.04, 0.04}

// Metal is a reflective surface.
//
// Roughness perturbs the mirror direction.  The reflected color blends a
// neutral non-metal tint with BaseColor by Metallicness, and is scaled by a
// Fresnel term with Reflectivity as its normal-incidence value.
type Metal struct {
	BaseColor    vec3.T
	Roughness    float64
	Reflectivity float64
	Metallicness float64
}

// NewMetal clamps each parameter to [0, 1].
func NewMetal(baseColor vec3.T, roughness, reflectivity, metallicness float64) *Metal {
	return &Metal{
		BaseColor:    baseColor,
		Roughness:    clamp01(roughness),
		Reflectivity: clamp01(reflectivity),
		Metallicness: clamp01(metallicness),
	}
}

// NewFuzzyMetal is a fully metallic, fully reflective Metal, whose attenuation
// is exactly albedo.
func NewFuzzyMetal(albedo vec3.T, fuzz float64) *Metal {
	return NewMetal(albedo, fuzz, 1.0, 1.0)
}

func (m *Metal) Scatter(in ray.Ray, c contact.Contact, rng *rand.Rand) (ShadeInfo, bool) {
	unit := vec3.Normalize(in.Slope)
	reflected := vec3.Reflect(unit, c.N)
	dir := vec3.AddVV(reflected, vec3.MulVS(vec3.UniformUnitDistribution(rng), m.Roughness))

	if vec3.IProd(dir, c.N) <= 0.0 {
		return ShadeInfo{}, false
	}

	cosine := clamp01(-vec3.IProd(unit, c.N))
	tint := vec3.Lerp(nonMetalTint, m.BaseColor, m.Metallicness)

	return ShadeInfo{
		Attenuation: vec3.MulVS(tint, Schlick(cosine, m.Reflectivity)),
		Scattered:   ray.Ray{Point: c.P, Slope: dir},
	}, true
}

// Dielectric is a clear refractive material such as glass or water.
type Dielectric struct {
	IndexOfRefraction float64
}

func (m *Dielectric) Scatter(in ray.Ray, c contact.Contact, rng *rand.Rand) (ShadeInfo, bool) {
	ratio := m.IndexOfRefraction
	if c.FrontFace {
		ratio = 1.0 / m.IndexOfRefraction
	}

	unit := vec3.Normalize(in.Slope)
	cosTheta := math.Min(-vec3.IProd(unit, c.N), 1.0)
	sinTheta := math.Sqrt(1.0 - cosTheta*cosTheta)

	var dir vec3.T
	if ratio*sinTheta > 1.0 || Reflectance(cosTheta, ratio) > rng.Float64() {
		dir = vec3.Reflect(unit, c.N)
	} else {
		dir = vec3.Refract(unit, c.N, ratio)
	}

	return ShadeInfo{
		Attenuation: vec3.T{1, 1, 1},
		Scattered:   ray.Ray{Point: c.P, Slope: dir},
	}, true
}
