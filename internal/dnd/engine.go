package dnd

import (
	"context"
	"errors"

	"github.com/hylla/dragboard/internal/board"
	"github.com/hylla/dragboard/internal/domain"
)

// ErrGestureActive rejects keyboard moves while a drag is in progress.
var ErrGestureActive = errors.New("drag gesture in progress")

// State is the drag session lifecycle state.
type State int

// State values. Ended and Cancelled are only observable from inside an
// Observer callback; the engine returns to Idle before the call that caused
// them returns.
const (
	StateIdle State = iota
	StateDragging
	StateEnded
	StateCancelled
)

// String returns a log-friendly state name.
func (s State) String() string {
	switch s {
	case StateDragging:
		return "dragging"
	case StateEnded:
		return "ended"
	case StateCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Session is the state of the active gesture.
type Session struct {
	TaskID      string
	Origin      domain.Lane
	OriginIndex int
	Target      domain.Lane
	HasTarget   bool
	Hint        int
	Active      bool
}

// EventKind identifies engine notifications.
type EventKind int

// EventKind values.
const (
	EventTargetChanged EventKind = iota
	EventMoveApplied
	EventMoveRolledBack
	EventSessionCleared
)

// Event is delivered to the Observer. Target is set for target changes,
// Board and Move for applied and rolled-back moves, Err for rollbacks.
type Event struct {
	Kind      EventKind
	Target    domain.Lane
	HasTarget bool
	Board     board.Model
	Move      board.PendingMove
	Err       error
}

// Observer receives engine events synchronously.
type Observer func(Event)

// RegionSource reports the current on-screen lane geometry.
type RegionSource func() []ColumnRegion

// PointerInput is one gesture-move sample. Either field may be nil.
type PointerInput struct {
	Pointer *Point
	Dragged *Rect
}

// Logger receives diagnostics for conditions the engine absorbs.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
}

type discardLogger struct{}

func (discardLogger) Debug(any, ...any) {}
func (discardLogger) Warn(any, ...any)  {}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver sets the event observer.
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// WithRegionSource sets the geometry provider consulted on every move.
func WithRegionSource(source RegionSource) Option {
	return func(e *Engine) {
		e.regions = source
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithViewportWidth sets the width used for band resolution.
func WithViewportWidth(width float64) Option {
	return func(e *Engine) {
		e.resolver.ViewportWidth = width
	}
}

// Engine drives one board's drag sessions. It must be used from a single
// goroutine, except Persist which only calls the persistence effect.
type Engine struct {
	applier  *board.Applier
	persist  board.PersistFunc
	resolver Resolver
	regions  RegionSource
	observer Observer
	logger   Logger

	state   State
	session Session
}

// NewEngine wraps an applier and the effect used to persist applied moves.
func NewEngine(applier *board.Applier, persist board.PersistFunc, opts ...Option) *Engine {
	e := &Engine{
		applier:  applier,
		persist:  persist,
		resolver: Resolver{Lanes: applier.Board().Lanes()},
		logger:   discardLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Board returns the current board.
func (e *Engine) Board() board.Model {
	return e.applier.Board()
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Session returns the active session, if any.
func (e *Engine) Session() (Session, bool) {
	if e.state != StateDragging {
		return Session{}, false
	}
	return e.session, true
}

// Pending returns the number of applied moves awaiting Settle.
func (e *Engine) Pending() int {
	return e.applier.Pending()
}

// SetViewportWidth updates the band width after a resize.
func (e *Engine) SetViewportWidth(width float64) {
	e.resolver.ViewportWidth = width
}

// Reset replaces the board with authoritative state and drops any gesture.
func (e *Engine) Reset(model board.Model) {
	if e.state == StateDragging {
		e.Cancel()
	}
	e.applier.Reset(model)
	e.resolver.Lanes = model.Lanes()
}

// Start begins a gesture for taskID. It returns false when a gesture is
// already active or the task is not on the board.
func (e *Engine) Start(taskID string) bool {
	if e.state == StateDragging {
		e.logger.Debug("drag start ignored; gesture already active", "active", e.session.TaskID, "task_id", taskID)
		return false
	}
	lane, index, ok := e.applier.Board().IndexOf(taskID)
	if !ok {
		e.logger.Warn("drag start ignored; task not on board", "task_id", taskID)
		return false
	}
	e.session = Session{
		TaskID:      taskID,
		Origin:      lane,
		OriginIndex: index,
		Hint:        board.NoHint,
		Active:      true,
	}
	e.state = StateDragging
	e.logger.Debug("drag started", "task_id", taskID, "lane", lane, "index", index)
	return true
}

// Move resolves the current target from live geometry.
func (e *Engine) Move(in PointerInput) {
	if e.state != StateDragging {
		return
	}
	var regions []ColumnRegion
	if e.regions != nil {
		regions = e.regions()
	}
	res := e.resolver.ResolveTarget(regions, in.Pointer, in.Dragged)

	hint := board.NoHint
	if res.Region != nil && len(res.Region.Cards) > 0 {
		hint = DropIndex(*res.Region, res.Pointer, e.session.TaskID)
	} else if res.Region != nil {
		hint = 0
	}
	e.session.Hint = hint

	if res.Resolved() == e.session.HasTarget && res.Lane == e.session.Target {
		return
	}
	e.session.Target = res.Lane
	e.session.HasTarget = res.Resolved()
	e.logger.Debug("drag target changed", "task_id", e.session.TaskID, "target", res.Lane, "tier", res.Tier)
	e.emit(Event{Kind: EventTargetChanged, Target: res.Lane, HasTarget: res.Resolved()})
}

// End finishes the gesture. When a move was applied the returned token must
// be persisted and settled by the caller; ok is false for cancels and no-ops.
func (e *Engine) End() (board.UndoToken, bool) {
	if e.state != StateDragging {
		return board.UndoToken{}, false
	}
	session := e.session
	if !session.HasTarget {
		e.logger.Debug("drag ended without target", "task_id", session.TaskID)
		e.finish(StateCancelled)
		return board.UndoToken{}, false
	}

	next, token, err := e.applier.Apply(session.TaskID, session.Origin, session.Target, session.Hint)
	if err != nil {
		e.logger.Warn("drag drop discarded", "task_id", session.TaskID, "target", session.Target, "err", err)
		e.finish(StateCancelled)
		return board.UndoToken{}, false
	}
	e.finish(StateEnded)
	if token.Move().NoOp() {
		return board.UndoToken{}, false
	}
	e.emit(Event{Kind: EventMoveApplied, Board: next, Move: token.Move()})
	return token, true
}

// Cancel abandons the gesture without touching the board.
func (e *Engine) Cancel() {
	if e.state != StateDragging {
		return
	}
	e.logger.Debug("drag cancelled", "task_id", e.session.TaskID)
	e.finish(StateCancelled)
}

// MoveTo applies a move outside a gesture, such as a keyboard move. index is
// the requested position or board.NoHint.
func (e *Engine) MoveTo(taskID string, lane domain.Lane, index int) (board.UndoToken, bool, error) {
	if e.state == StateDragging {
		return board.UndoToken{}, false, ErrGestureActive
	}
	from, _, ok := e.applier.Board().IndexOf(taskID)
	if !ok {
		return board.UndoToken{}, false, board.ErrUnknownTask
	}
	next, token, err := e.applier.Apply(taskID, from, lane, index)
	if err != nil {
		return board.UndoToken{}, false, err
	}
	if token.Move().NoOp() {
		return board.UndoToken{}, false, nil
	}
	e.emit(Event{Kind: EventMoveApplied, Board: next, Move: token.Move()})
	return token, true, nil
}

// Persist runs the persistence effect for token. Safe to call from any
// goroutine.
func (e *Engine) Persist(ctx context.Context, token board.UndoToken) error {
	return e.applier.Persist(ctx, token, e.persist)
}

// Settle applies the persistence outcome. A rollback emits
// EventMoveRolledBack and returns the error wrapping board.ErrRolledBack.
// Tokens superseded by an earlier rollback settle as nil.
func (e *Engine) Settle(token board.UndoToken, persistErr error) error {
	err := e.applier.Settle(token, persistErr)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, board.ErrSupersededToken):
		e.logger.Debug("settle skipped; superseded by rollback", "task_id", token.Move().TaskID)
		return nil
	case errors.Is(err, board.ErrRolledBack):
		e.logger.Warn("move rolled back", "task_id", token.Move().TaskID, "err", persistErr)
		e.emit(Event{Kind: EventMoveRolledBack, Board: e.applier.Board(), Move: token.Move(), Err: err})
		return err
	default:
		return err
	}
}

// Commit persists synchronously and settles.
func (e *Engine) Commit(ctx context.Context, token board.UndoToken) error {
	return e.Settle(token, e.Persist(ctx, token))
}

func (e *Engine) finish(terminal State) {
	e.state = terminal
	e.emit(Event{Kind: EventSessionCleared})
	e.session = Session{}
	e.state = StateIdle
}

func (e *Engine) emit(ev Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}
