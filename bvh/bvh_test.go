package bvh

import (
	"math"
	"math/rand"
	"testing"

	"row-major/glint/aabox"
	"row-major/glint/contact"
	"row-major/glint/geometry"
	"row-major/glint/ray"
	"row-major/glint/vmath/vec3"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/xerrors"
)

func randomSpheres(rng *rand.Rand, n int) []geometry.Geometry {
	spheres := []geometry.Geometry{}
	for i := 0; i < n; i++ {
		spheres = append(spheres, &geometry.Sphere{
			Center:        vec3.T{rng.Float64()*20 - 10, rng.Float64()*20 - 10, rng.Float64()*20 - 10},
			Radius:        0.2 + rng.Float64()*1.5,
			MaterialIndex: i,
		})
	}
	return spheres
}

func TestHitMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(12345))

	spheres := randomSpheres(rng, 60)
	list := &geometry.List{Elements: spheres}

	tree, err := New(spheres, 0, 1, rng)
	if err != nil {
		t.Fatalf("Unexpected error building tree: %v", err)
	}

	hits := 0
	for i := 0; i < 1000; i++ {
		query := ray.RaySegment{
			TheRay: ray.Ray{
				Point: vec3.T{rng.Float64()*30 - 15, rng.Float64()*30 - 15, rng.Float64()*30 - 15},
				Slope: vec3.UniformUnitDistribution(rng),
			},
			TheSegment: ray.Span{Lo: 0.001, Hi: math.Inf(1)},
		}

		gotContact, gotOK := tree.Hit(query)
		wantContact, wantOK := list.Hit(query)
		if gotOK != wantOK {
			t.Fatalf("Ray %+v: tree hit = %v, linear hit = %v", query, gotOK, wantOK)
		}
		if !gotOK {
			continue
		}
		hits++

		if math.Abs(gotContact.T-wantContact.T) > 1e-9 {
			t.Fatalf("Ray %+v: tree hit at t=%v, linear hit at t=%v", query, gotContact.T, wantContact.T)
		}
		if gotContact.MaterialIndex != wantContact.MaterialIndex {
			t.Errorf("Ray %+v: tree hit element %d, linear hit element %d", query, gotContact.MaterialIndex, wantContact.MaterialIndex)
		}
	}

	if hits < 50 {
		t.Errorf("Only %d of 1000 rays hit anything; the test is too weak", hits)
	}
}

func TestHitMatchesLinearScanAcrossSeeds(t *testing.T) {
	sceneRNG := rand.New(rand.NewSource(777))
	spheres := randomSpheres(sceneRNG, 50)
	list := &geometry.List{Elements: spheres}

	for seed := int64(0); seed < 5; seed++ {
		tree, err := New(spheres, 0, 1, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("Unexpected error building tree: %v", err)
		}

		rayRNG := rand.New(rand.NewSource(seed + 100))
		for i := 0; i < 200; i++ {
			query := ray.RaySegment{
				TheRay: ray.Ray{
					Point: vec3.T{0, 0, 30},
					Slope: vec3.SubVV(vec3.T{rayRNG.Float64()*20 - 10, rayRNG.Float64()*20 - 10, 0}, vec3.T{0, 0, 30}),
				},
				TheSegment: ray.Span{Lo: 0.001, Hi: math.Inf(1)},
			}

			got, gotOK := tree.Hit(query)
			want, wantOK := list.Hit(query)
			if gotOK != wantOK || (gotOK && math.Abs(got.T-want.T) > 1e-9) {
				t.Fatalf("Seed %d ray %d: tree = (%v, %v), linear = (%v, %v)", seed, i, got.T, gotOK, want.T, wantOK)
			}
		}
	}
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New(nil, 0, 1, rand.New(rand.NewSource(1)))
	if !xerrors.Is(err, ErrEmptyScene) {
		t.Errorf("New(nil) error = %v, want ErrEmptyScene", err)
	}
}

type unbounded struct{}

func (unbounded) Hit(query ray.RaySegment) (contact.Contact, bool) {
	return contact.Contact{}, false
}

func (unbounded) Bounds(time0, time1 float64) (aabox.AABox, bool) {
	return aabox.AABox{}, false
}

func TestNewRejectsUnbounded(t *testing.T) {
	elements := []geometry.Geometry{
		&geometry.Sphere{Radius: 1},
		&geometry.Sphere{Center: vec3.T{3, 0, 0}, Radius: 1},
		unbounded{},
	}

	_, err := New(elements, 0, 1, rand.New(rand.NewSource(1)))
	if !xerrors.Is(err, ErrUnbounded) {
		t.Fatalf("New() error = %v, want ErrUnbounded", err)
	}

	var ue *UnboundedError
	if !xerrors.As(err, &ue) {
		t.Fatalf("New() error %v is not an *UnboundedError", err)
	}
	if ue.Index != 2 {
		t.Errorf("UnboundedError.Index = %d, want 2", ue.Index)
	}
}

func TestSingletonUsesElementTwice(t *testing.T) {
	s := &geometry.Sphere{Center: vec3.T{0, 0, -5}, Radius: 1}
	tree, err := New([]geometry.Geometry{s}, 0, 1, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Unexpected error building tree: %v", err)
	}

	if tree.LoChild != geometry.Geometry(s) || tree.HiChild != geometry.Geometry(s) {
		t.Errorf("Singleton tree children are %v and %v, want the sphere twice", tree.LoChild, tree.HiChild)
	}

	want, _ := s.Bounds(0, 1)
	if diff := cmp.Diff(tree.Box, want); diff != "" {
		t.Errorf("Bad root box; diff (-got +want)\n%s", diff)
	}

	c, ok := tree.Hit(ray.RaySegment{
		TheRay:     ray.Ray{Slope: vec3.T{0, 0, -1}},
		TheSegment: ray.Span{Lo: 0.001, Hi: math.Inf(1)},
	})
	if !ok || math.Abs(c.T-4) > 1e-9 {
		t.Errorf("Hit() = %+v, %v; want t=4", c, ok)
	}
}

func TestNewRejectsNonFiniteBounds(t *testing.T) {
	testCases := []struct {
		desc   string
		sphere *geometry.Sphere
	}{
		{desc: "infinite center", sphere: &geometry.Sphere{Center: vec3.T{math.Inf(1), 0, 0}, Radius: 1}},
		{desc: "infinite radius", sphere: &geometry.Sphere{Radius: math.Inf(-1)}},
		{desc: "NaN center", sphere: &geometry.Sphere{Center: vec3.T{0, math.NaN(), 0}, Radius: 1}},
		{desc: "NaN radius", sphere: &geometry.Sphere{Radius: math.NaN()}},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			elements := []geometry.Geometry{&geometry.Sphere{Radius: 1}, tc.sphere}
			_, err := New(elements, 0, 1, rand.New(rand.NewSource(1)))

			var ue *UnboundedError
			if !xerrors.As(err, &ue) {
				t.Fatalf("New() error = %v, want an *UnboundedError", err)
			}
			if ue.Index != 1 {
				t.Errorf("UnboundedError.Index = %d, want 1", ue.Index)
			}
		})
	}
}

func TestPairOrderedAlongAxis(t *testing.T) {
	a := &geometry.Sphere{Center: vec3.T{5, 5, 5}, Radius: 1}
	b := &geometry.Sphere{Center: vec3.T{-5, -5, -5}, Radius: 1}

	// b is lesser on every axis, so whatever axis is drawn it goes first.
	for seed := int64(0); seed < 10; seed++ {
		tree, err := New([]geometry.Geometry{a, b}, 0, 1, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("Unexpected error building tree: %v", err)
		}
		if tree.LoChild != geometry.Geometry(b) || tree.HiChild != geometry.Geometry(a) {
			t.Errorf("Seed %d: pair not ordered by box minimum", seed)
		}
	}
}

func checkContainment(t *testing.T, n *Node) {
	t.Helper()
	for _, child := range []geometry.Geometry{n.LoChild, n.HiChild} {
		b, ok := child.Bounds(0, 1)
		if !ok {
			t.Fatalf("Child %v reported no bounds", child)
		}
		if !n.Box.Contains(b) {
			t.Fatalf("Node box %+v does not contain child box %+v", n.Box, b)
		}
		if sub, ok := child.(*Node); ok {
			checkContainment(t, sub)
		}
	}
}

func TestNodeBoxesContainChildren(t *testing.T) {
	rng := rand.New(rand.NewSource(4242))
	tree, err := New(randomSpheres(rng, 100), 0, 1, rng)
	if err != nil {
		t.Fatalf("Unexpected error building tree: %v", err)
	}
	checkContainment(t, tree)
}

func TestNewDoesNotReorderInput(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	spheres := randomSpheres(rng, 20)
	before := append([]geometry.Geometry(nil), spheres...)

	if _, err := New(spheres, 0, 1, rng); err != nil {
		t.Fatalf("Unexpected error building tree: %v", err)
	}

	for i := range spheres {
		if spheres[i] != before[i] {
			t.Fatalf("Element %d moved during construction", i)
		}
	}
}

func TestStats(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	tree, err := New(randomSpheres(rng, 8), 0, 1, rng)
	if err != nil {
		t.Fatalf("Unexpected error building tree: %v", err)
	}

	// 8 elements split 4/4, 2/2: seven nodes and eight leaf slots.
	want := Stats{Nodes: 7, Leaves: 8, Depth: 3}
	if diff := cmp.Diff(tree.Stats(), want); diff != "" {
		t.Errorf("Bad stats; diff (-got +want)\n%s", diff)
	}
}
