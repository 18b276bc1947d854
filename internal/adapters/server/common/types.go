package common

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRequest reports malformed or semantically invalid transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports that the requested project or task does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict reports a request that is valid but cannot be applied to current state.
var ErrConflict = errors.New("conflict")

// Actor types accepted by transport adapters for mutation attribution.
const (
	ActorTypeUser  = "user"
	ActorTypeAgent = "agent"
)

// ProjectSummary stores one transport-facing project row.
type ProjectSummary struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
}

// BoardCard stores one task card in lane order.
type BoardCard struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Priority string   `json:"priority"`
	Labels   []string `json:"labels,omitempty"`
	Position int      `json:"position"`
}

// BoardLane stores one lane with its ordered cards.
type BoardLane struct {
	Lane         string      `json:"lane"`
	Title        string      `json:"title"`
	WIPLimit     int         `json:"wip_limit,omitempty"`
	OverWIPLimit bool        `json:"over_wip_limit,omitempty"`
	Cards        []BoardCard `json:"cards"`
}

// Board stores one project board snapshot.
type Board struct {
	ProjectID   string      `json:"project_id"`
	ProjectName string      `json:"project_name"`
	TaskCount   int         `json:"task_count"`
	Lanes       []BoardLane `json:"lanes"`
	CapturedAt  time.Time   `json:"captured_at"`
}

// MoveTaskRequest stores transport input for one persisted move.
// Position nil appends to the end of the target lane.
type MoveTaskRequest struct {
	TaskID    string
	Lane      string
	Position  *int
	ActorID   string
	ActorType string
}

// MoveTaskResult stores the moved card and the resulting board.
type MoveTaskResult struct {
	TaskID   string `json:"task_id"`
	FromLane string `json:"from_lane"`
	Lane     string `json:"lane"`
	Position int    `json:"position"`
	Moved    bool   `json:"moved"`
	Board    Board  `json:"board"`
}

// ActivityRequest stores transport input for project activity listing.
type ActivityRequest struct {
	ProjectID string
	Limit     int
}

// ActivityEntry stores one activity-log row.
type ActivityEntry struct {
	ID         int64             `json:"id"`
	TaskID     string            `json:"task_id"`
	Operation  string            `json:"operation"`
	ActorID    string            `json:"actor_id"`
	ActorType  string            `json:"actor_type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// LaneSettings overrides one lane's display title and WIP limit.
type LaneSettings struct {
	Title    string
	WIPLimit int
}

// BoardService exposes the board operations served over HTTP and MCP.
type BoardService interface {
	ListProjects(context.Context, bool) ([]ProjectSummary, error)
	GetBoard(context.Context, string) (Board, error)
	MoveTask(context.Context, MoveTaskRequest) (MoveTaskResult, error)
	ListActivity(context.Context, ActivityRequest) ([]ActivityEntry, error)
}

// ReadinessChecker is optionally implemented by services that can verify storage health.
type ReadinessChecker interface {
	Ready(context.Context) error
}
