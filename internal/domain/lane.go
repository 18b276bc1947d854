package domain

import (
	"slices"
	"strings"
)

// Lane identifies one of the fixed workflow stages a task can occupy.
type Lane string

// Lane values in board display order.
const (
	LaneNotStarted Lane = "not-started"
	LaneInProgress Lane = "in-progress"
	LaneReview     Lane = "review"
	LaneDone       Lane = "done"
)

var lanes = []Lane{LaneNotStarted, LaneInProgress, LaneReview, LaneDone}

var laneTitles = map[Lane]string{
	LaneNotStarted: "Not Started",
	LaneInProgress: "In Progress",
	LaneReview:     "Review",
	LaneDone:       "Done",
}

// Lanes returns the closed lane enumeration in display order.
func Lanes() []Lane {
	return slices.Clone(lanes)
}

// Valid reports whether the lane belongs to the closed enumeration.
func (l Lane) Valid() bool {
	return slices.Contains(lanes, l)
}

// Index returns the display position of the lane, or -1 when unknown.
func (l Lane) Index() int {
	return slices.Index(lanes, l)
}

// Title returns the default display title.
func (l Lane) Title() string {
	if title, ok := laneTitles[l]; ok {
		return title
	}
	return string(l)
}

// ParseLane normalizes user input into a lane, accepting common aliases.
func ParseLane(raw string) (Lane, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.NewReplacer("_", "-", " ", "-").Replace(value)
	switch value {
	case "not-started", "notstarted", "todo", "to-do", "backlog":
		return LaneNotStarted, nil
	case "in-progress", "inprogress", "progress", "doing":
		return LaneInProgress, nil
	case "review", "in-review":
		return LaneReview, nil
	case "done", "complete", "completed":
		return LaneDone, nil
	default:
		return "", ErrInvalidLane
	}
}
