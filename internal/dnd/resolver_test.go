package dnd

import (
	"math"
	"testing"

	"github.com/hylla/dragboard/internal/domain"
)

func laneRegions() []ColumnRegion {
	lanes := domain.Lanes()
	out := make([]ColumnRegion, 0, len(lanes))
	for i, lane := range lanes {
		left := float64(i * 20)
		out = append(out, ColumnRegion{Lane: lane, Rect: Rect{Left: left, Top: 0, Right: left + 18, Bottom: 10}})
	}
	return out
}

func TestRectContainsAndCenter(t *testing.T) {
	r := Rect{Left: 0, Top: 0, Right: 10, Bottom: 4}
	for _, p := range []Point{{0, 0}, {10, 4}, {5, 2}} {
		if !r.Contains(p) {
			t.Fatalf("expected %v inside %v", p, r)
		}
	}
	if r.Contains(Point{X: 10.5, Y: 2}) {
		t.Fatal("expected point outside rect")
	}
	if c := r.Center(); c != (Point{X: 5, Y: 2}) {
		t.Fatalf("Center() = %v", c)
	}
}

func TestResolveContainmentWins(t *testing.T) {
	r := Resolver{ViewportWidth: 80}
	got, ok := r.Resolve(laneRegions(), &Point{X: 45, Y: 5}, nil)
	if !ok || got != domain.LaneReview {
		t.Fatalf("Resolve() = %q, %t", got, ok)
	}
}

func TestResolveContainmentFirstMatchOnOverlap(t *testing.T) {
	regions := []ColumnRegion{
		{Lane: domain.LaneDone, Rect: Rect{Left: 0, Top: 0, Right: 10, Bottom: 10}},
		{Lane: domain.LaneReview, Rect: Rect{Left: 5, Top: 0, Right: 15, Bottom: 10}},
	}
	got, ok := Resolver{}.Resolve(regions, &Point{X: 7, Y: 5}, nil)
	if !ok || got != domain.LaneDone {
		t.Fatalf("Resolve() = %q, %t", got, ok)
	}
}

func TestResolveNearestCentre(t *testing.T) {
	r := Resolver{ViewportWidth: 80}
	res := r.ResolveTarget(laneRegions(), &Point{X: 25, Y: 30}, nil)
	if res.Tier != TierNearest || res.Lane != domain.LaneInProgress {
		t.Fatalf("ResolveTarget() = %q via %s", res.Lane, res.Tier)
	}
}

func TestResolveNearestTieKeepsFirstCandidate(t *testing.T) {
	regions := []ColumnRegion{
		{Lane: domain.LaneReview, Rect: Rect{Left: 0, Top: 0, Right: 10, Bottom: 10}},
		{Lane: domain.LaneDone, Rect: Rect{Left: 20, Top: 0, Right: 30, Bottom: 10}},
	}
	got, ok := Resolver{}.Resolve(regions, &Point{X: 15, Y: 5}, nil)
	if !ok || got != domain.LaneReview {
		t.Fatalf("Resolve() = %q, %t", got, ok)
	}
}

func TestResolveNearestWithDegenerateGeometry(t *testing.T) {
	cases := []struct {
		name    string
		regions []ColumnRegion
		pointer Point
		want    domain.Lane
	}{
		{
			name:    "unbounded region",
			regions: []ColumnRegion{{Lane: domain.LaneDone, Rect: Rect{Left: 0, Top: 0, Right: math.Inf(1), Bottom: 10}}},
			pointer: Point{X: -5, Y: 50},
			want:    domain.LaneDone,
		},
		{
			name:    "nan pointer",
			regions: laneRegions(),
			pointer: Point{X: math.NaN(), Y: 5},
			want:    domain.LaneNotStarted,
		},
		{
			name: "infinite distances keep first",
			regions: []ColumnRegion{
				{Lane: domain.LaneReview, Rect: Rect{Left: 0, Top: 0, Right: math.Inf(1), Bottom: 10}},
				{Lane: domain.LaneDone, Rect: Rect{Left: 0, Top: 0, Right: math.Inf(1), Bottom: 10}},
			},
			pointer: Point{X: -5, Y: 50},
			want:    domain.LaneReview,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Resolver{}.ResolveTarget(tc.regions, &tc.pointer, nil)
			if !res.Resolved() || res.Lane != tc.want || res.Tier != TierNearest {
				t.Fatalf("ResolveTarget() = %+v, want %q via nearest", res, tc.want)
			}
		})
	}
}

func TestResolveBandsWithoutRegions(t *testing.T) {
	r := Resolver{Lanes: domain.Lanes(), ViewportWidth: 400}
	cases := []struct {
		x    float64
		want domain.Lane
	}{
		{x: 0, want: domain.LaneNotStarted},
		{x: 150, want: domain.LaneInProgress},
		{x: 250, want: domain.LaneReview},
		{x: 399, want: domain.LaneDone},
		{x: -40, want: domain.LaneNotStarted},
		{x: 900, want: domain.LaneDone},
	}
	for _, tc := range cases {
		res := r.ResolveTarget(nil, &Point{X: tc.x, Y: 5}, nil)
		if res.Tier != TierBand || res.Lane != tc.want {
			t.Fatalf("x=%v: ResolveTarget() = %q via %s, want %q", tc.x, res.Lane, res.Tier, tc.want)
		}
	}
}

func TestResolveIgnoresUnknownLaneRegions(t *testing.T) {
	regions := []ColumnRegion{{Lane: "blocked", Rect: Rect{Left: 0, Top: 0, Right: 100, Bottom: 100}}}
	r := Resolver{ViewportWidth: 400}
	res := r.ResolveTarget(regions, &Point{X: 5, Y: 5}, nil)
	if res.Tier != TierBand || res.Lane != domain.LaneNotStarted {
		t.Fatalf("ResolveTarget() = %q via %s", res.Lane, res.Tier)
	}
}

func TestResolveFallsBackToDraggedRect(t *testing.T) {
	r := Resolver{ViewportWidth: 80}
	got, ok := r.Resolve(laneRegions(), nil, &Rect{Left: 60, Top: 2, Right: 70, Bottom: 4})
	if !ok || got != domain.LaneDone {
		t.Fatalf("Resolve() = %q, %t", got, ok)
	}
	got, ok = Resolver{ViewportWidth: 400}.Resolve(nil, nil, &Rect{Left: 200, Top: 0, Right: 220, Bottom: 10})
	if !ok || got != domain.LaneReview {
		t.Fatalf("band via dragged rect = %q, %t", got, ok)
	}
}

func TestResolveUnresolved(t *testing.T) {
	if _, ok := (Resolver{ViewportWidth: 80}).Resolve(laneRegions(), nil, nil); ok {
		t.Fatal("expected unresolved without any position")
	}
	if _, ok := (Resolver{}).Resolve(nil, &Point{X: 1, Y: 1}, nil); ok {
		t.Fatal("expected unresolved without regions or viewport")
	}
}

func TestDropIndexSkipsDraggedCard(t *testing.T) {
	region := ColumnRegion{
		Lane: domain.LaneNotStarted,
		Cards: []CardRegion{
			{TaskID: "A", Rect: Rect{Left: 0, Top: 0, Right: 10, Bottom: 0}},
			{TaskID: "B", Rect: Rect{Left: 0, Top: 1, Right: 10, Bottom: 1}},
			{TaskID: "C", Rect: Rect{Left: 0, Top: 2, Right: 10, Bottom: 2}},
		},
	}
	cases := []struct {
		y       float64
		dragged string
		want    int
	}{
		{y: -1, dragged: "C", want: 0},
		{y: 0, dragged: "C", want: 0},
		{y: 0.5, dragged: "C", want: 1},
		{y: 1.5, dragged: "A", want: 1},
		{y: 9, dragged: "B", want: 2},
		{y: 9, dragged: "Z", want: 3},
	}
	for _, tc := range cases {
		if got := DropIndex(region, Point{X: 1, Y: tc.y}, tc.dragged); got != tc.want {
			t.Fatalf("DropIndex(y=%v, %s) = %d, want %d", tc.y, tc.dragged, got, tc.want)
		}
	}
}
