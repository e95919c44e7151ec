// Package bvh builds bounding volume hierarchies over scene geometry.
package bvh

import (
	"fmt"
	"math/rand"
	"sort"

	"row-major/glint/aabox"
	"row-major/glint/contact"
	"row-major/glint/geometry"
	"row-major/glint/ray"

	"golang.org/x/xerrors"
)

var (
	ErrEmptyScene = xerrors.New("cannot build a BVH over zero elements")
	ErrUnbounded  = xerrors.New("element has no bounding box")
)

// UnboundedError identifies the element that could not report finite bounds.
type UnboundedError struct {
	Index int

	frame xerrors.Frame
}

func (e *UnboundedError) Error() string {
	return fmt.Sprintf("element %d: %v", e.Index, ErrUnbounded)
}

func (e *UnboundedError) Format(f fmt.State, c rune) { // implements fmt.Formatter
	xerrors.FormatError(e, f, c)
}

func (e *UnboundedError) FormatError(p xerrors.Printer) error { // implements xerrors.Formatter
	p.Print(fmt.Sprintf("element %d", e.Index))
	if p.Detail() {
		e.frame.Format(p)
	}
	return ErrUnbounded
}

func (e *UnboundedError) Unwrap() error {
	return ErrUnbounded
}

// Node is one level of the hierarchy.  Its children are either other Nodes or
// the scene's primitives.  A Node is immutable once built; to change the scene,
// build a new tree.
type Node struct {
	Box aabox.AABox

	LoChild geometry.Geometry
	HiChild geometry.Geometry
}

type element struct {
	g      geometry.Geometry
	bounds aabox.AABox
}

// New builds a tree over elements.
//
// Each node splits its elements at the median along an axis drawn from rng,
// rather than one chosen by a cost heuristic.  Tree shape, and so traversal
// speed, varies with the seed; hit results do not.
//
// The elements slice is not modified.
func New(elements []geometry.Geometry, time0, time1 float64, rng *rand.Rand) (*Node, error) {
	if len(elements) == 0 {
		return nil, ErrEmptyScene
	}

	work := make([]element, len(elements))
	for i, g := range elements {
		b, ok := g.Bounds(time0, time1)
		if !ok || !b.IsFinite() {
			return nil, &UnboundedError{Index: i, frame: xerrors.Caller(0)}
		}
		work[i] = element{g: g, bounds: b}
	}

	return build(work, rng), nil
}

func build(elements []element, rng *rand.Rand) *Node {
	axis := rng.Intn(3)

	node := &Node{}
	var loBox, hiBox aabox.AABox

	switch len(elements) {
	case 1:
		node.LoChild, loBox = elements[0].g, elements[0].bounds
		node.HiChild, hiBox = elements[0].g, elements[0].bounds
	case 2:
		a, b := elements[0], elements[1]
		if b.bounds.Min()[axis] < a.bounds.Min()[axis] {
			a, b = b, a
		}
		node.LoChild, loBox = a.g, a.bounds
		node.HiChild, hiBox = b.g, b.bounds
	default:
		sort.SliceStable(elements, func(i, j int) bool {
			return elements[i].bounds.Min()[axis] < elements[j].bounds.Min()[axis]
		})

		mid := len(elements) / 2
		lo := build(elements[:mid], rng)
		hi := build(elements[mid:], rng)
		node.LoChild, loBox = lo, lo.Box
		node.HiChild, hiBox = hi, hi.Box
	}

	node.Box = aabox.MinContainingAABox(loBox, hiBox)
	return node
}

func (n *Node) Hit(query ray.RaySegment) (contact.Contact, bool) {
	if !n.Box.Hit(query) {
		return contact.Contact{}, false
	}

	loContact, loOK := n.LoChild.Hit(query)
	if loOK {
		query = query.Clip(loContact.T)
	}

	hiContact, hiOK := n.HiChild.Hit(query)
	if hiOK {
		return hiContact, true
	}
	return loContact, loOK
}

func (n *Node) Bounds(time0, time1 float64) (aabox.AABox, bool) {
	return n.Box, true
}

// Stats describes the shape of a tree.
type Stats struct {
	Nodes  int
	Leaves int
	Depth  int
}

func (n *Node) Stats() Stats {
	s := Stats{}
	n.walk(1, &s)
	return s
}

func (n *Node) walk(depth int, s *Stats) {
	s.Nodes++
	if depth > s.Depth {
		s.Depth = depth
	}
	for _, child := range []geometry.Geometry{n.LoChild, n.HiChild} {
		if sub, ok := child.(*Node); ok {
			sub.walk(depth+1, s)
		} else {
			s.Leaves++
		}
	}
}
