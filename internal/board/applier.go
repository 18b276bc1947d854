package board

import (
	"context"
	"fmt"
	"slices"

	"github.com/hylla/dragboard/internal/domain"
)

// NoHint marks a move without a precise drop index.
const NoHint = -1

// Placement selects where a cross-lane drop lands.
type Placement string

// Placement values.
const (
	PlacementAppend  Placement = "append"
	PlacementPointer Placement = "pointer"
)

// ParsePlacement normalizes a configured placement, defaulting to append.
func ParsePlacement(raw string) (Placement, error) {
	switch Placement(raw) {
	case "", PlacementAppend:
		return PlacementAppend, nil
	case PlacementPointer:
		return PlacementPointer, nil
	default:
		return "", fmt.Errorf("unsupported drag placement %q", raw)
	}
}

// PendingMove describes one applied, not yet persisted move.
type PendingMove struct {
	TaskID    string
	From      domain.Lane
	FromIndex int
	To        domain.Lane
	ToIndex   int
}

// NoOp reports whether the move left the board unchanged.
func (m PendingMove) NoOp() bool {
	return m.From == m.To && m.FromIndex == m.ToIndex
}

// UndoToken captures the board as it was before one optimistic apply.
type UndoToken struct {
	id     uint64
	move   PendingMove
	before Model
}

// ID returns the token sequence number. No-op moves carry id 0.
func (t UndoToken) ID() uint64 {
	return t.id
}

// Move returns the move this token guards.
func (t UndoToken) Move() PendingMove {
	return t.move
}

// PersistFunc writes an applied move to the authoritative store.
type PersistFunc func(ctx context.Context, move PendingMove) error

// Applier owns the current board and applies moves ahead of persistence.
// It is not safe for concurrent use; only Persist may run off the owning
// goroutine.
type Applier struct {
	current    Model
	placement  Placement
	nextID     uint64
	pending    []uint64
	superseded map[uint64]struct{}
}

// NewApplier wraps an initial board.
func NewApplier(initial Model, placement Placement) *Applier {
	if placement == "" {
		placement = PlacementAppend
	}
	return &Applier{
		current:    initial,
		placement:  placement,
		superseded: map[uint64]struct{}{},
	}
}

// Board returns the current board.
func (a *Applier) Board() Model {
	return a.current
}

// Placement returns the configured cross-lane placement.
func (a *Applier) Placement() Placement {
	return a.placement
}

// Pending returns the number of unsettled tokens.
func (a *Applier) Pending() int {
	return len(a.pending)
}

// Reset replaces the board with authoritative state. Outstanding tokens are
// superseded.
func (a *Applier) Reset(model Model) {
	for _, id := range a.pending {
		a.superseded[id] = struct{}{}
	}
	a.pending = a.pending[:0]
	a.current = model
}

// Apply moves taskID toward target and returns the new board plus the token
// needed to roll it back. Origin is advisory: the task's current lane wins
// when they disagree. hint is the requested index or NoHint.
//
// Same-lane moves without a hint are no-ops. Cross-lane moves append unless
// pointer placement is configured and a hint is given.
func (a *Applier) Apply(taskID string, origin, target domain.Lane, hint int) (Model, UndoToken, error) {
	from, at, ok := a.current.IndexOf(taskID)
	if !ok {
		return a.current, UndoToken{}, fmt.Errorf("%w: %q", ErrUnknownTask, taskID)
	}
	if !a.current.HasLane(target) {
		return a.current, UndoToken{}, fmt.Errorf("%w: %q", ErrInvalidLane, target)
	}

	index := a.dropIndex(from, at, target, hint)
	before := a.current.Snapshot()
	next, err := a.current.MoveTask(taskID, target, index)
	if err != nil {
		return a.current, UndoToken{}, err
	}
	mustPreserve(before, next)

	_, placed, _ := next.IndexOf(taskID)
	token := UndoToken{
		move: PendingMove{
			TaskID:    taskID,
			From:      from,
			FromIndex: at,
			To:        target,
			ToIndex:   placed,
		},
		before: before,
	}
	if token.move.NoOp() {
		return a.current, token, nil
	}

	a.nextID++
	token.id = a.nextID
	a.pending = append(a.pending, token.id)
	a.current = next
	return next, token, nil
}

func (a *Applier) dropIndex(from domain.Lane, at int, target domain.Lane, hint int) int {
	if from == target {
		if hint < 0 {
			return at
		}
		return hint
	}
	if a.placement == PlacementPointer && hint >= 0 {
		return hint
	}
	return len(a.current.tasks[target])
}

// Persist runs fn for the token's move. It never touches the board, so hosts
// may call it from a worker goroutine.
func (a *Applier) Persist(ctx context.Context, token UndoToken, fn PersistFunc) error {
	if token.id == 0 || fn == nil {
		return nil
	}
	return fn(ctx, token.move)
}

// Settle resolves a token with the persistence outcome. A nil err discards
// the token. A non-nil err restores the board captured before the move,
// supersedes every later pending token, and returns an error wrapping
// ErrRolledBack and err.
func (a *Applier) Settle(token UndoToken, err error) error {
	if token.id == 0 {
		return nil
	}
	pos := slices.Index(a.pending, token.id)
	if pos < 0 {
		if _, ok := a.superseded[token.id]; ok {
			delete(a.superseded, token.id)
			return ErrSupersededToken
		}
		return ErrUnknownToken
	}
	if err == nil {
		a.pending = slices.Delete(a.pending, pos, pos+1)
		return nil
	}

	for _, id := range a.pending[pos+1:] {
		a.superseded[id] = struct{}{}
	}
	a.pending = a.pending[:pos]
	a.current = token.before
	return fmt.Errorf("%w: %s: %w", ErrRolledBack, token.move.TaskID, err)
}

// Commit persists synchronously and settles the result.
func (a *Applier) Commit(ctx context.Context, token UndoToken, fn PersistFunc) error {
	return a.Settle(token, a.Persist(ctx, token, fn))
}

func mustPreserve(before, after Model) {
	if err := after.Validate(); err != nil {
		panic(fmt.Sprintf("board: invalid state after move: %v", err))
	}
	if before.Len() != after.Len() {
		panic(fmt.Sprintf("board: move changed task count from %d to %d", before.Len(), after.Len()))
	}
}
