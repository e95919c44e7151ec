package medium

import (
	"math"
	"testing"

	"row-major/glint/ray"
	"row-major/glint/vmath/vec3"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestUniformFogSample(t *testing.T) {
	fog := &UniformFog{Color: vec3.T{0.8, 0.8, 0.9}, Density: 0.5}

	testCases := []struct {
		desc              string
		seg               ray.Span
		wantTransmittance float64
	}{
		{desc: "empty segment", seg: ray.Span{Lo: 0, Hi: 0}, wantTransmittance: 1},
		{desc: "two units", seg: ray.Span{Lo: 1, Hi: 3}, wantTransmittance: math.Exp(-1)},
		{desc: "escape", seg: ray.Span{Lo: 0, Hi: 1000}, wantTransmittance: math.Exp(-500)},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			scattered, transmittance := fog.Sample(ray.Ray{Slope: vec3.T{0, 0, -1}}, tc.seg)
			if math.Abs(transmittance-tc.wantTransmittance) > 1e-12 {
				t.Errorf("Transmittance = %v, want %v", transmittance, tc.wantTransmittance)
			}
			wantScattered := vec3.MulVS(fog.Color, 1-tc.wantTransmittance)
			if diff := cmp.Diff(scattered, wantScattered, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("Bad scattered light; diff (-got +want)\n%s", diff)
			}
		})
	}
}

func TestCompositeBlendsTowardFogColor(t *testing.T) {
	fog := &UniformFog{Color: vec3.T{1, 0, 0}, Density: 1}
	r := ray.Ray{Slope: vec3.T{0, 0, -1}}

	// Zero distance leaves the color untouched.
	color := vec3.T{0, 0.5, 1}
	if diff := cmp.Diff(Composite(fog, r, ray.Span{Lo: 0, Hi: 0}, color), color); diff != "" {
		t.Errorf("Zero-length fog changed the color; diff (-got +want)\n%s", diff)
	}

	// A long trip through fog converges on the fog color.
	got := Composite(fog, r, ray.Span{Lo: 0, Hi: 1000}, color)
	if diff := cmp.Diff(got, fog.Color, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Distant color did not become fog; diff (-got +want)\n%s", diff)
	}
}
