// Package sceneconfig loads scenes from YAML files.
//
// A scene file looks like:
//
//	camera:
//	  look_from: {x: 13, y: 2, z: 3}
//	  look_at: {x: 0, y: 0, z: 0}
//	  vup: {x: 0, y: 1, z: 0}
//	  vfov: 20
//	  aspect_ratio: 1.7778
//	  aperture: 0.1
//	  focus_dist: 10
//	render:
//	  image_width: 800
//	  samples_per_pixel: 200
//	  max_depth: 50
//	materials:
//	  glass: {type: Dielectric, ir: 1.5}
//	objects:
//	  - shape: {type: Sphere, center: {x: 0, y: 1, z: 0}, radius: 1}
//	    material_ref: glass
//	  - shape: {type: Box, min: {x: -1, y: 0, z: -1}, max: {x: 1, y: 1, z: 1}}
//	    material: {type: Metal, albedo: {x: 0.7, y: 0.6, z: 0.5}, fuzz: 0}
//	volumetric: {type: UniformFog, color: {x: 0.8, y: 0.8, z: 0.8}, density: 0.01}
//
// render, materials and volumetric are optional.
package sceneconfig

import (
	"fmt"
	"io/ioutil"
	"sort"

	"row-major/glint/camera"
	"row-major/glint/geometry"
	"row-major/glint/material"
	"row-major/glint/medium"
	"row-major/glint/ray"
	"row-major/glint/scene"
	"row-major/glint/vmath/vec3"

	"gopkg.in/yaml.v2"
)

const (
	DefaultImageWidth      = 800
	DefaultAspectRatio     = 16.0 / 9.0
	DefaultSamplesPerPixel = 200
	DefaultMaxDepth        = 50
)

type Vec3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func (v Vec3) T() vec3.T {
	return vec3.T{v.X, v.Y, v.Z}
}

type Camera struct {
	LookFrom    Vec3     `yaml:"look_from"`
	LookAt      Vec3     `yaml:"look_at"`
	VUp         Vec3     `yaml:"vup"`
	VFov        float64  `yaml:"vfov"`
	AspectRatio *float64 `yaml:"aspect_ratio"`
	Aperture    float64  `yaml:"aperture"`

	// Unset focuses on LookAt.
	FocusDist *float64 `yaml:"focus_dist"`
}

type Render struct {
	ImageWidth      int `yaml:"image_width"`
	SamplesPerPixel int `yaml:"samples_per_pixel"`
	MaxDepth        int `yaml:"max_depth"`
}

// Material is one of:
//
//	{type: Lambertian, albedo}
//	{type: Metal, albedo, fuzz}
//	{type: Metal, albedo, roughness, reflectivity, metallicness}
//	{type: Dielectric, ir}
type Material struct {
	Type   string `yaml:"type"`
	Albedo *Vec3  `yaml:"albedo"`

	Fuzz         *float64 `yaml:"fuzz"`
	Roughness    *float64 `yaml:"roughness"`
	Reflectivity *float64 `yaml:"reflectivity"`
	Metallicness *float64 `yaml:"metallicness"`

	IR *float64 `yaml:"ir"`
}

// Shape is one of {type: Sphere, center, radius} or {type: Box, min, max}.
type Shape struct {
	Type string `yaml:"type"`

	Center *Vec3    `yaml:"center"`
	Radius *float64 `yaml:"radius"`

	Min *Vec3 `yaml:"min"`
	Max *Vec3 `yaml:"max"`
}

// Object needs a shape and exactly one of an inline material or a reference
// to a named one.
type Object struct {
	Shape       *Shape    `yaml:"shape"`
	Material    *Material `yaml:"material"`
	MaterialRef string    `yaml:"material_ref"`
}

type Volumetric struct {
	Type    string   `yaml:"type"`
	Color   *Vec3    `yaml:"color"`
	Density *float64 `yaml:"density"`
}

type Config struct {
	Camera     Camera               `yaml:"camera"`
	Render     Render               `yaml:"render"`
	Materials  map[string]*Material `yaml:"materials"`
	Objects    []*Object            `yaml:"objects"`
	Volumetric *Volumetric          `yaml:"volumetric"`
}

// Parse decodes a scene file.  Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("while parsing scene: %w", err)
	}
	return cfg, nil
}

func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("while reading scene file: %w", err)
	}
	return Parse(data)
}

func (c *Config) aspectRatio() float64 {
	if c.Camera.AspectRatio != nil {
		return *c.Camera.AspectRatio
	}
	return DefaultAspectRatio
}

// RenderSettings returns the render section with defaults filled in.
func (c *Config) RenderSettings() Render {
	r := c.Render
	if r.ImageWidth <= 0 {
		r.ImageWidth = DefaultImageWidth
	}
	if r.SamplesPerPixel <= 0 {
		r.SamplesPerPixel = DefaultSamplesPerPixel
	}
	if r.MaxDepth <= 0 {
		r.MaxDepth = DefaultMaxDepth
	}
	return r
}

// ImageSize is the image width and height implied by cols, or by the render
// section when cols is zero, and the camera's aspect ratio.
func (c *Config) ImageSize(cols int) (int, int) {
	if cols <= 0 {
		cols = c.RenderSettings().ImageWidth
	}
	rows := int(float64(cols) / c.aspectRatio())
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

// Build turns the configuration into a scene and the camera looking at it.
// The scene is not optimized.
func (c *Config) Build() (*scene.Scene, *camera.ThinLensCamera, error) {
	cam, err := c.buildCamera()
	if err != nil {
		return nil, nil, fmt.Errorf("while building camera: %w", err)
	}

	if len(c.Objects) == 0 {
		return nil, nil, fmt.Errorf("scene has no objects")
	}

	s := &scene.Scene{}

	// Named materials go in first, in a stable order.
	names := make([]string, 0, len(c.Materials))
	for name := range c.Materials {
		names = append(names, name)
	}
	sort.Strings(names)

	named := map[string]int{}
	for _, name := range names {
		m, err := buildMaterial(c.Materials[name])
		if err != nil {
			return nil, nil, fmt.Errorf("while building material %q: %w", name, err)
		}
		named[name] = s.AddMaterial(m)
	}

	for i, obj := range c.Objects {
		if obj == nil {
			return nil, nil, fmt.Errorf("object %d is empty", i)
		}

		var materialIndex int
		switch {
		case obj.Material != nil && obj.MaterialRef != "":
			return nil, nil, fmt.Errorf("object %d has both material and material_ref", i)
		case obj.Material != nil:
			m, err := buildMaterial(obj.Material)
			if err != nil {
				return nil, nil, fmt.Errorf("while building material of object %d: %w", i, err)
			}
			materialIndex = s.AddMaterial(m)
		case obj.MaterialRef != "":
			idx, ok := named[obj.MaterialRef]
			if !ok {
				return nil, nil, fmt.Errorf("object %d refers to unknown material %q", i, obj.MaterialRef)
			}
			materialIndex = idx
		default:
			return nil, nil, fmt.Errorf("object %d has no material", i)
		}

		g, err := buildShape(obj.Shape, materialIndex)
		if err != nil {
			return nil, nil, fmt.Errorf("while building shape of object %d: %w", i, err)
		}
		s.AddGeometry(g)
	}

	if c.Volumetric != nil {
		med, err := buildVolumetric(c.Volumetric)
		if err != nil {
			return nil, nil, fmt.Errorf("while building volumetric: %w", err)
		}
		s.Medium = med
	}

	return s, cam, nil
}

func (c *Config) buildCamera() (*camera.ThinLensCamera, error) {
	cc := c.Camera
	if cc.VFov <= 0 || cc.VFov >= 180 {
		return nil, fmt.Errorf("vfov %v is outside (0, 180)", cc.VFov)
	}
	if aspect := c.aspectRatio(); aspect <= 0 {
		return nil, fmt.Errorf("bad aspect_ratio %v", aspect)
	}
	if cc.Aperture < 0 {
		return nil, fmt.Errorf("bad aperture %v", cc.Aperture)
	}
	if cc.LookFrom == cc.LookAt {
		return nil, fmt.Errorf("look_from and look_at are the same point")
	}
	if vec3.CProd(cc.VUp.T(), vec3.SubVV(cc.LookFrom.T(), cc.LookAt.T())) == (vec3.T{}) {
		return nil, fmt.Errorf("vup is parallel to the view direction")
	}

	focusDist := 0.0
	if cc.FocusDist != nil {
		if *cc.FocusDist <= 0 {
			return nil, fmt.Errorf("bad focus_dist %v", *cc.FocusDist)
		}
		focusDist = *cc.FocusDist
	}

	return camera.NewThinLensCamera(cc.LookFrom.T(), cc.LookAt.T(), cc.VUp.T(), cc.VFov, c.aspectRatio(), cc.Aperture, focusDist), nil
}

func buildMaterial(m *Material) (material.Material, error) {
	if m == nil {
		return nil, fmt.Errorf("empty material")
	}

	switch m.Type {
	case "Lambertian":
		if m.Albedo == nil {
			return nil, fmt.Errorf("Lambertian needs albedo")
		}
		return &material.Lambertian{Albedo: m.Albedo.T()}, nil

	case "Metal":
		if m.Albedo == nil {
			return nil, fmt.Errorf("Metal needs albedo")
		}
		if m.Fuzz != nil {
			if m.Roughness != nil || m.Reflectivity != nil || m.Metallicness != nil {
				return nil, fmt.Errorf("Metal takes fuzz, or roughness, reflectivity and metallicness, not both")
			}
			return material.NewFuzzyMetal(m.Albedo.T(), *m.Fuzz), nil
		}
		return material.NewMetal(m.Albedo.T(), valueOr(m.Roughness, 0), valueOr(m.Reflectivity, 1), valueOr(m.Metallicness, 1)), nil

	case "Dielectric":
		if m.IR == nil || *m.IR <= 0 {
			return nil, fmt.Errorf("Dielectric needs a positive ir")
		}
		return &material.Dielectric{IndexOfRefraction: *m.IR}, nil
	}

	return nil, fmt.Errorf("unknown material type %q", m.Type)
}

func buildShape(s *Shape, materialIndex int) (geometry.Geometry, error) {
	if s == nil {
		return nil, fmt.Errorf("missing shape")
	}

	switch s.Type {
	case "Sphere":
		if s.Center == nil || s.Radius == nil {
			return nil, fmt.Errorf("Sphere needs center and radius")
		}
		// Negative radii are allowed; they make hollow shells.
		if *s.Radius == 0 {
			return nil, fmt.Errorf("Sphere radius must not be zero")
		}
		return &geometry.Sphere{Center: s.Center.T(), Radius: *s.Radius, MaterialIndex: materialIndex}, nil

	case "Box":
		if s.Min == nil || s.Max == nil {
			return nil, fmt.Errorf("Box needs min and max")
		}
		lo, hi := s.Min.T(), s.Max.T()
		b := &geometry.Box{MaterialIndex: materialIndex}
		for i := 0; i < 3; i++ {
			if !(lo[i] < hi[i]) {
				return nil, fmt.Errorf("Box min %v is not below max %v", lo, hi)
			}
			b.Spans[i] = ray.Span{Lo: lo[i], Hi: hi[i]}
		}
		return b, nil
	}

	return nil, fmt.Errorf("unknown shape type %q", s.Type)
}

func buildVolumetric(v *Volumetric) (medium.Medium, error) {
	switch v.Type {
	case "UniformFog":
		if v.Color == nil || v.Density == nil {
			return nil, fmt.Errorf("UniformFog needs color and density")
		}
		if *v.Density < 0 {
			return nil, fmt.Errorf("UniformFog density %v is negative", *v.Density)
		}
		return &medium.UniformFog{Color: v.Color.T(), Density: *v.Density}, nil
	}

	return nil, fmt.Errorf("unknown volumetric type %q", v.Type)
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
