package scene

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"row-major/glint/bvh"
	"row-major/glint/geometry"
	"row-major/glint/material"
	"row-major/glint/medium"
	"row-major/glint/ray"
	"row-major/glint/vmath/vec3"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ShadowAcneEpsilon is the nearest a scattered ray may hit anything, so
	// that it does not re-hit the surface it left through rounding error.
	ShadowAcneEpsilon = 0.001

	// EscapeDistance is how far a ray that hits nothing travels through the
	// medium.
	EscapeDistance = 1000.0
)

var (
	white = vec3.T{1, 1, 1}
	sky   = vec3.T{0.5, 0.7, 1.0}
)

type Scene struct {
	// Materials is an arena; geometry refers to materials by index, so many
	// primitives can share one material.
	Materials []material.Material

	Objects geometry.List

	// Medium fills the space between objects.  It may be nil.
	Medium medium.Medium

	// World is the acceleration structure built by Optimize.  Until then,
	// rays are tested against Objects one by one.
	World geometry.Geometry
}

// AddMaterial is a convenience function to register a material and get its
// index.
func (s *Scene) AddMaterial(m material.Material) int {
	s.Materials = append(s.Materials, m)
	return len(s.Materials) - 1
}

// AddGeometry is a convenience function to register a primitive and get its
// index.  It invalidates any earlier Optimize.
func (s *Scene) AddGeometry(g geometry.Geometry) int {
	s.World = nil
	return s.Objects.Add(g)
}

// Optimize builds a BVH over the scene's objects.  It fails if there are none,
// or if any of them is unbounded.
func (s *Scene) Optimize(ctx context.Context, rng *rand.Rand) error {
	tracer := otel.Tracer("row-major/glint/scene")
	var span trace.Span
	_, span = tracer.Start(ctx, "Scene.Optimize")
	defer span.End()

	span.SetAttributes(attribute.Int("objects", len(s.Objects.Elements)))

	// The time interval is a placeholder; nothing in a scene moves.
	root, err := bvh.New(s.Objects.Elements, 0, 1, rng)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("while building BVH: %w", err)
	}
	s.World = root

	stats := root.Stats()
	span.SetAttributes(attribute.Int("bvh.nodes", stats.Nodes), attribute.Int("bvh.depth", stats.Depth))
	glog.V(1).Infof("Built BVH over %d objects: nodes=%d leaves=%d depth=%d", len(s.Objects.Elements), stats.Nodes, stats.Leaves, stats.Depth)
	return nil
}

func (s *Scene) world() geometry.Geometry {
	if s.World != nil {
		return s.World
	}
	return &s.Objects
}

// Trace follows r through the scene for at most depth bounces and returns the
// radiance arriving along it.
func (s *Scene) Trace(r ray.Ray, depth int, rng *rand.Rand) vec3.T {
	return Trace(r, s.world(), s.Materials, s.Medium, depth, rng)
}

// Background is the sky seen by rays that escape.  It shades from white
// straight down to blue straight up.
func Background(r ray.Ray) vec3.T {
	unit := vec3.Normalize(r.Slope)
	t := 0.5 * (unit[1] + 1.0)
	return vec3.Lerp(white, sky, t)
}

// Trace is the path tracing integrator.  med may be nil.  All randomness comes
// from rng, which must not be shared between goroutines.
func Trace(r ray.Ray, world geometry.Geometry, materials []material.Material, med medium.Medium, depth int, rng *rand.Rand) vec3.T {
	if depth <= 0 {
		return vec3.T{}
	}

	query := ray.RaySegment{
		TheRay:     r,
		TheSegment: ray.Span{Lo: ShadowAcneEpsilon, Hi: math.Inf(1)},
	}

	c, ok := world.Hit(query)
	if !ok {
		color := Background(r)
		if med != nil {
			color = medium.Composite(med, r, ray.Span{Lo: 0, Hi: EscapeDistance}, color)
		}
		return color
	}

	color := vec3.T{}
	if info, ok := materials[c.MaterialIndex].Scatter(r, c, rng); ok {
		color = vec3.MulVV(info.Attenuation, Trace(info.Scattered, world, materials, med, depth-1, rng))
	}

	if med != nil {
		color = medium.Composite(med, r, ray.Span{Lo: 0, Hi: c.T}, color)
	}
	return color
}
