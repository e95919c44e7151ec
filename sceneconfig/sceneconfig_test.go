package sceneconfig

import (
	"context"
	"io/ioutil"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"row-major/glint/geometry"
	"row-major/glint/material"
	"row-major/glint/medium"
	"row-major/glint/ray"
	"row-major/glint/vmath/vec3"

	"github.com/google/go-cmp/cmp"
)

const fullScene = `
camera:
  look_from: {x: 13, y: 2, z: 3}
  look_at: {x: 0, y: 0, z: 0}
  vup: {x: 0, y: 1, z: 0}
  vfov: 20
  aspect_ratio: 2
  aperture: 0.1
  focus_dist: 10
render:
  image_width: 400
  samples_per_pixel: 16
  max_depth: 8
materials:
  glass: {type: Dielectric, ir: 1.5}
  ground: {type: Lambertian, albedo: {x: 0.5, y: 0.5, z: 0.5}}
objects:
  - shape: {type: Sphere, center: {x: 0, y: -1000, z: 0}, radius: 1000}
    material_ref: ground
  - shape: {type: Sphere, center: {x: 0, y: 1, z: 0}, radius: 1}
    material_ref: glass
  - shape: {type: Sphere, center: {x: 0, y: 1, z: 0}, radius: -0.9}
    material_ref: glass
  - shape: {type: Box, min: {x: 3, y: 0, z: -1}, max: {x: 5, y: 2, z: 1}}
    material: {type: Metal, albedo: {x: 0.7, y: 0.6, z: 0.5}, fuzz: 0.2}
  - shape: {type: Sphere, center: {x: -4, y: 1, z: 0}, radius: 1}
    material: {type: Metal, albedo: {x: 0.9, y: 0.9, z: 0.9}, roughness: 0.1, reflectivity: 0.8, metallicness: 0.5}
volumetric: {type: UniformFog, color: {x: 0.8, y: 0.8, z: 0.9}, density: 0.02}
`

func TestBuildFullScene(t *testing.T) {
	cfg, err := Parse([]byte(fullScene))
	if err != nil {
		t.Fatalf("Unexpected error parsing: %v", err)
	}

	s, cam, err := cfg.Build()
	if err != nil {
		t.Fatalf("Unexpected error building: %v", err)
	}

	if got := len(s.Objects.Elements); got != 5 {
		t.Errorf("Got %d objects, want 5", got)
	}
	// Two named materials and two inline ones.
	if got := len(s.Materials); got != 4 {
		t.Errorf("Got %d materials, want 4", got)
	}

	// Named materials are registered in name order.
	glass := s.Objects.Elements[1].(*geometry.Sphere)
	shell := s.Objects.Elements[2].(*geometry.Sphere)
	if glass.MaterialIndex != 0 || shell.MaterialIndex != 0 {
		t.Errorf("Glass spheres use materials %d and %d, want both 0", glass.MaterialIndex, shell.MaterialIndex)
	}
	if _, ok := s.Materials[0].(*material.Dielectric); !ok {
		t.Errorf("Material 0 is %T, want *material.Dielectric", s.Materials[0])
	}
	if shell.Radius != -0.9 {
		t.Errorf("Shell radius = %v, want -0.9", shell.Radius)
	}

	box := s.Objects.Elements[3].(*geometry.Box)
	wantSpans := [3]ray.Span{{Lo: 3, Hi: 5}, {Lo: 0, Hi: 2}, {Lo: -1, Hi: 1}}
	if diff := cmp.Diff(box.Spans, wantSpans); diff != "" {
		t.Errorf("Bad box; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(s.Materials[box.MaterialIndex], material.NewFuzzyMetal(vec3.T{0.7, 0.6, 0.5}, 0.2)); diff != "" {
		t.Errorf("Bad box material; diff (-got +want)\n%s", diff)
	}

	last := s.Objects.Elements[4].(*geometry.Sphere)
	wantMetal := material.NewMetal(vec3.T{0.9, 0.9, 0.9}, 0.1, 0.8, 0.5)
	if diff := cmp.Diff(s.Materials[last.MaterialIndex], wantMetal); diff != "" {
		t.Errorf("Bad sphere material; diff (-got +want)\n%s", diff)
	}

	if diff := cmp.Diff(s.Medium, &medium.UniformFog{Color: vec3.T{0.8, 0.8, 0.9}, Density: 0.02}); diff != "" {
		t.Errorf("Bad medium; diff (-got +want)\n%s", diff)
	}

	if cam.LensRadius != 0.05 {
		t.Errorf("Lens radius = %v, want 0.05", cam.LensRadius)
	}

	if diff := cmp.Diff(cfg.RenderSettings(), Render{ImageWidth: 400, SamplesPerPixel: 16, MaxDepth: 8}); diff != "" {
		t.Errorf("Bad render settings; diff (-got +want)\n%s", diff)
	}
	if w, h := cfg.ImageSize(0); w != 400 || h != 200 {
		t.Errorf("ImageSize(0) = %d, %d; want 400, 200", w, h)
	}
	if w, h := cfg.ImageSize(100); w != 100 || h != 50 {
		t.Errorf("ImageSize(100) = %d, %d; want 100, 50", w, h)
	}

	if err := s.Optimize(context.Background(), rand.New(rand.NewSource(1))); err != nil {
		t.Errorf("Unexpected error optimizing built scene: %v", err)
	}
}

const minimalScene = `
camera:
  look_from: {x: 0, y: 0, z: 0}
  look_at: {x: 0, y: 0, z: -1}
  vup: {x: 0, y: 1, z: 0}
  vfov: 90
  aperture: 0
objects:
  - shape: {type: Sphere, center: {x: 0, y: 0, z: -1}, radius: 0.5}
    material: {type: Lambertian, albedo: {x: 0.5, y: 0.5, z: 0.5}}
`

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalScene))
	if err != nil {
		t.Fatalf("Unexpected error parsing: %v", err)
	}

	want := Render{ImageWidth: DefaultImageWidth, SamplesPerPixel: DefaultSamplesPerPixel, MaxDepth: DefaultMaxDepth}
	if diff := cmp.Diff(cfg.RenderSettings(), want); diff != "" {
		t.Errorf("Bad defaults; diff (-got +want)\n%s", diff)
	}
	if w, h := cfg.ImageSize(0); w != 800 || h != 450 {
		t.Errorf("ImageSize(0) = %d, %d; want 800, 450", w, h)
	}

	s, _, err := cfg.Build()
	if err != nil {
		t.Fatalf("Unexpected error building: %v", err)
	}
	if s.Medium != nil {
		t.Errorf("Scene without volumetric has medium %v", s.Medium)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := ioutil.WriteFile(path, []byte(minimalScene), 0644); err != nil {
		t.Fatalf("Unexpected error writing scene: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Errorf("Unexpected error loading: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Loading a missing file succeeded")
	}
}

func TestBuildErrors(t *testing.T) {
	testCases := []struct {
		desc      string
		replace   [2]string
		wantError string
	}{
		{
			desc:      "unknown key",
			replace:   [2]string{"aperture: 0", "aperture: 0\n  shutter: 1"},
			wantError: "shutter",
		},
		{
			desc:      "unknown shape",
			replace:   [2]string{"type: Sphere", "type: Torus"},
			wantError: "unknown shape type",
		},
		{
			desc:      "unknown material",
			replace:   [2]string{"type: Lambertian", "type: Velvet"},
			wantError: "unknown material type",
		},
		{
			desc:      "unknown material ref",
			replace:   [2]string{"material: {type: Lambertian, albedo: {x: 0.5, y: 0.5, z: 0.5}}", "material_ref: chrome"},
			wantError: "unknown material",
		},
		{
			desc:      "zero radius",
			replace:   [2]string{"radius: 0.5", "radius: 0"},
			wantError: "radius",
		},
		{
			desc:      "missing albedo",
			replace:   [2]string{"type: Lambertian, albedo: {x: 0.5, y: 0.5, z: 0.5}", "type: Lambertian"},
			wantError: "albedo",
		},
		{
			desc:      "bad vfov",
			replace:   [2]string{"vfov: 90", "vfov: 0"},
			wantError: "vfov",
		},
		{
			desc:      "bad fog",
			replace:   [2]string{"aperture: 0", "aperture: 0\nvolumetric: {type: Smoke, color: {x: 1, y: 1, z: 1}, density: 1}"},
			wantError: "unknown volumetric type",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			doc := strings.Replace(minimalScene, tc.replace[0], tc.replace[1], 1)
			cfg, err := Parse([]byte(doc))
			if err == nil {
				_, _, err = cfg.Build()
			}
			if err == nil {
				t.Fatalf("Expected an error for:\n%s", doc)
			}
			if !strings.Contains(err.Error(), tc.wantError) {
				t.Errorf("Error %q does not mention %q", err, tc.wantError)
			}
		})
	}
}

func TestNoObjects(t *testing.T) {
	doc := minimalScene[:strings.Index(minimalScene, "objects:")] + "objects: []\n"
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Unexpected error parsing: %v", err)
	}
	if _, _, err := cfg.Build(); err == nil || !strings.Contains(err.Error(), "no objects") {
		t.Errorf("Build() error = %v, want a complaint about no objects", err)
	}
}
