// Package dnd resolves pointer gestures into board moves: it maps screen
// geometry to lanes and drives a single drag session through the board
// applier.
package dnd

import (
	"math"

	"github.com/hylla/dragboard/internal/domain"
)

// Point is a position in host coordinates.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle with inclusive edges.
type Rect struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Right && p.Y >= r.Top && p.Y <= r.Bottom
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: (r.Left + r.Right) / 2, Y: (r.Top + r.Bottom) / 2}
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// CardRegion is the on-screen rectangle of one task card.
type CardRegion struct {
	TaskID string
	Rect   Rect
}

// ColumnRegion is the on-screen rectangle of one lane plus its cards in order.
type ColumnRegion struct {
	Lane  domain.Lane
	Rect  Rect
	Cards []CardRegion
}

// DropIndex returns the insertion index for a drop at pointer: the number of
// cards, other than the dragged one, whose centre lies above the pointer.
func DropIndex(region ColumnRegion, pointer Point, draggedTaskID string) int {
	index := 0
	for _, card := range region.Cards {
		if card.TaskID == draggedTaskID {
			continue
		}
		if card.Rect.Center().Y < pointer.Y {
			index++
		}
	}
	return index
}
