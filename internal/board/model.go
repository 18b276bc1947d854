// Package board holds the per-session lane→task ordering and the optimistic
// move applier that mutates it ahead of persistence.
package board

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hylla/dragboard/internal/domain"
)

// Model maps each lane to its ordered task ids. Values are immutable once
// built: every mutation returns a new Model, so sharing a Model between
// readers is safe.
type Model struct {
	lanes []domain.Lane
	tasks map[domain.Lane][]string
}

// New builds an empty board over the given lanes, defaulting to the full
// lane enumeration.
func New(lanes ...domain.Lane) (Model, error) {
	if len(lanes) == 0 {
		lanes = domain.Lanes()
	}
	m := Model{
		lanes: make([]domain.Lane, 0, len(lanes)),
		tasks: make(map[domain.Lane][]string, len(lanes)),
	}
	for _, lane := range lanes {
		if !lane.Valid() {
			return Model{}, fmt.Errorf("%w: %q", ErrInvalidLane, lane)
		}
		if slices.Contains(m.lanes, lane) {
			return Model{}, fmt.Errorf("%w: %q listed twice", ErrInvalidLane, lane)
		}
		m.lanes = append(m.lanes, lane)
		m.tasks[lane] = []string{}
	}
	return m, nil
}

// FromTasks groups live tasks into lanes ordered by position, then id.
// Archived tasks are left off the board.
func FromTasks(lanes []domain.Lane, tasks []domain.Task) (Model, error) {
	m, err := New(lanes...)
	if err != nil {
		return Model{}, err
	}
	live := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.ArchivedAt != nil {
			continue
		}
		live = append(live, task)
	}
	slices.SortStableFunc(live, func(a, b domain.Task) int {
		if a.Position == b.Position {
			return strings.Compare(a.ID, b.ID)
		}
		return a.Position - b.Position
	})

	seen := map[string]struct{}{}
	for _, task := range live {
		if _, ok := m.tasks[task.Lane]; !ok {
			return Model{}, fmt.Errorf("task %q: %w: %q", task.ID, ErrInvalidLane, task.Lane)
		}
		if _, ok := seen[task.ID]; ok {
			return Model{}, fmt.Errorf("%w: %q", ErrDuplicateTask, task.ID)
		}
		seen[task.ID] = struct{}{}
		m.tasks[task.Lane] = append(m.tasks[task.Lane], task.ID)
	}
	return m, nil
}

// Lanes returns the board lanes in display order.
func (m Model) Lanes() []domain.Lane {
	return slices.Clone(m.lanes)
}

// HasLane reports whether the lane is part of this board.
func (m Model) HasLane(lane domain.Lane) bool {
	_, ok := m.tasks[lane]
	return ok
}

// Tasks returns a copy of the ordered task ids in one lane.
func (m Model) Tasks(lane domain.Lane) []string {
	return slices.Clone(m.tasks[lane])
}

// Len returns the number of tasks on the board.
func (m Model) Len() int {
	n := 0
	for _, ids := range m.tasks {
		n += len(ids)
	}
	return n
}

// TaskIDs returns every task id in lane display order.
func (m Model) TaskIDs() []string {
	out := make([]string, 0, m.Len())
	for _, lane := range m.lanes {
		out = append(out, m.tasks[lane]...)
	}
	return out
}

// IndexOf locates a task.
func (m Model) IndexOf(taskID string) (domain.Lane, int, bool) {
	for _, lane := range m.lanes {
		if idx := slices.Index(m.tasks[lane], taskID); idx >= 0 {
			return lane, idx, true
		}
	}
	return "", -1, false
}

// MoveTask removes the task from its lane and inserts it into lane at index,
// clamped to [0, len]. Index is interpreted against the destination sequence
// after removal, so a same-lane move to the current index is a no-op.
func (m Model) MoveTask(taskID string, lane domain.Lane, index int) (Model, error) {
	if !m.HasLane(lane) {
		return Model{}, fmt.Errorf("%w: %q", ErrInvalidLane, lane)
	}
	from, at, ok := m.IndexOf(taskID)
	if !ok {
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownTask, taskID)
	}

	next := m.Snapshot()
	next.tasks[from] = slices.Delete(next.tasks[from], at, at+1)
	dest := next.tasks[lane]
	index = min(max(index, 0), len(dest))
	next.tasks[lane] = slices.Insert(dest, index, taskID)
	return next, nil
}

// Snapshot returns a deep copy that shares no storage with m.
func (m Model) Snapshot() Model {
	out := Model{
		lanes: slices.Clone(m.lanes),
		tasks: make(map[domain.Lane][]string, len(m.tasks)),
	}
	for lane, ids := range m.tasks {
		out.tasks[lane] = append(make([]string, 0, len(ids)+1), ids...)
	}
	return out
}

// Equal reports whether both boards hold the same lanes and orderings.
func (m Model) Equal(other Model) bool {
	if !slices.Equal(m.lanes, other.lanes) {
		return false
	}
	for _, lane := range m.lanes {
		if !slices.Equal(m.tasks[lane], other.tasks[lane]) {
			return false
		}
	}
	return true
}

// Validate checks that every task appears exactly once and only in board lanes.
func (m Model) Validate() error {
	seen := make(map[string]domain.Lane, m.Len())
	for lane, ids := range m.tasks {
		if !lane.Valid() || !slices.Contains(m.lanes, lane) {
			return fmt.Errorf("%w: %q", ErrInvalidLane, lane)
		}
		for _, id := range ids {
			if strings.TrimSpace(id) == "" {
				return fmt.Errorf("lane %q: %w", lane, domain.ErrInvalidID)
			}
			if prev, ok := seen[id]; ok {
				return fmt.Errorf("%w: %q in %q and %q", ErrDuplicateTask, id, prev, lane)
			}
			seen[id] = lane
		}
	}
	return nil
}

// String renders the board as `lane:[a b] lane:[]` for logs and test output.
func (m Model) String() string {
	parts := make([]string, 0, len(m.lanes))
	for _, lane := range m.lanes {
		parts = append(parts, fmt.Sprintf("%s:%v", lane, m.tasks[lane]))
	}
	return strings.Join(parts, " ")
}
