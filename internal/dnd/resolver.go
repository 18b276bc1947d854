package dnd

import (
	"math"
	"slices"

	"github.com/hylla/dragboard/internal/domain"
)

// Tier identifies which fallback resolved a target.
type Tier int

// Tier values, in the order they are tried.
const (
	TierNone Tier = iota
	TierContainment
	TierNearest
	TierBand
)

// String returns a log-friendly tier name.
func (t Tier) String() string {
	switch t {
	case TierContainment:
		return "containment"
	case TierNearest:
		return "nearest"
	case TierBand:
		return "band"
	default:
		return "none"
	}
}

// Resolution is the outcome of one resolve.
type Resolution struct {
	Lane   domain.Lane
	Tier   Tier
	Region *ColumnRegion
	// Pointer is the effective position used, which is the dragged rect
	// centre when no pointer was supplied.
	Pointer Point
}

// Resolved reports whether a lane was found.
func (r Resolution) Resolved() bool {
	return r.Tier != TierNone
}

// Resolver maps positions to lanes. Lanes gives the display order used for
// horizontal bands when no regions are known.
type Resolver struct {
	Lanes         []domain.Lane
	ViewportWidth float64
}

// Resolve returns the target lane for the given geometry.
func (r Resolver) Resolve(regions []ColumnRegion, pointer *Point, dragged *Rect) (domain.Lane, bool) {
	res := r.ResolveTarget(regions, pointer, dragged)
	return res.Lane, res.Resolved()
}

// ResolveTarget tries, in order: the first region containing the position,
// the region whose centre is nearest, and a horizontal band of the viewport.
// The dragged rect centre stands in for a missing pointer.
func (r Resolver) ResolveTarget(regions []ColumnRegion, pointer *Point, dragged *Rect) Resolution {
	var p Point
	switch {
	case pointer != nil:
		p = *pointer
	case dragged != nil:
		p = dragged.Center()
	default:
		return Resolution{}
	}

	lanes := r.lanes()
	candidates := make([]int, 0, len(regions))
	for i, region := range regions {
		if slices.Contains(lanes, region.Lane) {
			candidates = append(candidates, i)
		}
	}

	for _, i := range candidates {
		if regions[i].Rect.Contains(p) {
			return Resolution{Lane: regions[i].Lane, Tier: TierContainment, Region: &regions[i], Pointer: p}
		}
	}

	if len(candidates) > 0 {
		best, bestDist := -1, math.Inf(1)
		for _, i := range candidates {
			if d := distance(regions[i].Rect.Center(), p); best < 0 || d < bestDist {
				best, bestDist = i, d
			}
		}
		return Resolution{Lane: regions[best].Lane, Tier: TierNearest, Region: &regions[best], Pointer: p}
	}

	if len(lanes) == 0 || r.ViewportWidth <= 0 {
		return Resolution{}
	}
	bandWidth := r.ViewportWidth / float64(len(lanes))
	band := int(math.Floor(p.X / bandWidth))
	band = min(max(band, 0), len(lanes)-1)
	return Resolution{Lane: lanes[band], Tier: TierBand, Pointer: p}
}

func (r Resolver) lanes() []domain.Lane {
	if len(r.Lanes) == 0 {
		return domain.Lanes()
	}
	out := make([]domain.Lane, 0, len(r.Lanes))
	for _, lane := range r.Lanes {
		if lane.Valid() {
			out = append(out, lane)
		}
	}
	return out
}
