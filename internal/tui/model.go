package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"github.com/hylla/dragboard/internal/app"
	"github.com/hylla/dragboard/internal/board"
	"github.com/hylla/dragboard/internal/dnd"
	"github.com/hylla/dragboard/internal/domain"
)

const (
	activityLogMaxItems   = 50
	activityLogViewWindow = 12
	persistTimeout        = 5 * time.Second
)

// Service is the board backend the TUI reads from and persists moves to.
type Service interface {
	ListProjects(context.Context, bool) ([]domain.Project, error)
	LoadBoard(context.Context, string) (board.Model, []domain.Task, error)
	PersistMove(context.Context, board.PendingMove) error
	ListProjectChangeEvents(context.Context, string, int) ([]domain.ChangeEvent, error)
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeTaskInfo
	modeActivityLog
)

// activityEntry is one row of the activity log overlay.
type activityEntry struct {
	At      time.Time
	Summary string
	Target  string
	Actor   string
}

// dragState holds pointer geometry and the highlighted drop lane for the
// active gesture. Model copies share it, as they share the engine.
type dragState struct {
	regions   []dnd.ColumnRegion
	origin    dnd.Point
	card      dnd.Rect
	pointer   dnd.Point
	moved     bool
	target    domain.Lane
	hasTarget bool
}

func (d *dragState) reset() {
	*d = dragState{regions: d.regions}
}

// persistQueue keeps one move write in flight; later moves wait in apply
// order so storage sees them in the order the board applied them.
type persistQueue struct {
	inFlight uint64
	waiting  []board.UndoToken
}

// engineEvents buffers observer notifications raised during one Update.
type engineEvents struct {
	queue []dnd.Event
}

func (e *engineEvents) drain() []dnd.Event {
	out := e.queue
	e.queue = nil
	return out
}

// Model is the bubbletea model for one board.
type Model struct {
	svc      Service
	engine   *dnd.Engine
	drag     *dragState
	persists *persistQueue
	events   *engineEvents

	ready  bool
	width  int
	height int
	err    error
	status string

	projects          []domain.Project
	selectedProject   int
	pendingProjectRef string
	tasks             map[string]domain.Task

	selectedLane int
	selectedTask int

	mode        inputMode
	infoTaskID  string
	activityLog []activityEntry

	lanes           map[domain.Lane]LaneSettings
	placement       board.Placement
	showWIPWarnings bool
	showLabels      bool
	mouseEnabled    bool
	actorID         string

	help     help.Model
	keys     keyMap
	markdown *markdownRenderer
	logger   Logger
	copyText func(string) error
}

// loadedMsg carries message data through update handling.
type loadedMsg struct {
	projects        []domain.Project
	selectedProject int
	board           board.Model
	tasks           []domain.Task
	err             error
}

// moveSettledMsg carries the persistence outcome of one applied move.
type moveSettledMsg struct {
	token board.UndoToken
	err   error
}

// activityLogLoadedMsg carries persisted activity entries for the active project.
type activityLogLoadedMsg struct {
	entries []activityEntry
	err     error
}

// clipboardMsg reports a copy-to-clipboard result.
type clipboardMsg struct {
	text string
	err  error
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:             svc,
		drag:            &dragState{},
		persists:        &persistQueue{},
		events:          &engineEvents{},
		status:          "loading...",
		tasks:           map[string]domain.Task{},
		lanes:           defaultLaneSettings(),
		placement:       board.PlacementAppend,
		showWIPWarnings: true,
		showLabels:      true,
		mouseEnabled:    true,
		actorID:         domain.DefaultActorID,
		help:            h,
		keys:            newKeyMap(),
		markdown:        &markdownRenderer{},
		logger:          discardLogger{},
		copyText:        defaultClipboard,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}

	empty, _ := board.New(domain.Lanes()...)
	drag, events := m.drag, m.events
	m.engine = dnd.NewEngine(
		board.NewApplier(empty, m.placement),
		m.persistMove,
		dnd.WithRegionSource(func() []dnd.ColumnRegion { return drag.regions }),
		dnd.WithObserver(func(ev dnd.Event) { events.queue = append(events.queue, ev) }),
		dnd.WithLogger(m.logger),
	)
	return m
}

func defaultLaneSettings() map[domain.Lane]LaneSettings {
	out := make(map[domain.Lane]LaneSettings, len(domain.Lanes()))
	for _, lane := range domain.Lanes() {
		out[lane] = LaneSettings{Title: lane.Title()}
	}
	return out
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	next.applyEngineEvents()
	return next, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		m.engine.SetViewportWidth(float64(msg.Width))
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		focus, _ := m.selectedTaskID()
		m.projects = msg.projects
		m.selectedProject = msg.selectedProject
		m.pendingProjectRef = ""
		m.tasks = make(map[string]domain.Task, len(msg.tasks))
		for _, task := range msg.tasks {
			m.tasks[task.ID] = task
		}
		if len(m.projects) == 0 {
			m.selectedProject = 0
			m.selectedLane = 0
			m.selectedTask = 0
			m.status = "no projects"
			return m, nil
		}
		m.drag.reset()
		m.engine.Reset(msg.board)
		// Reset supersedes every pending token; the waiting ones must not be written.
		m.persists.waiting = nil
		if !m.focusTask(focus) {
			m.clampSelections()
		}
		if m.status == "" || m.status == "loading..." || m.status == "reloading..." {
			m.status = "ready"
		}
		return m, nil

	case moveSettledMsg:
		move := msg.token.Move()
		err := m.engine.Settle(msg.token, msg.err)
		rolledBack := errors.Is(err, board.ErrRolledBack)
		if rolledBack {
			// Waiting moves were applied on top of the rolled back board.
			m.persists.waiting = nil
		}
		next := m.persistNext(msg.token)
		if err != nil {
			m.logger.Warn("move not persisted", "task_id", move.TaskID, "err", err)
			if !rolledBack {
				m.status = "move failed: " + err.Error()
				m.clampSelections()
			}
			if rolledBack && m.engine.Pending() == 0 {
				return m, m.loadData
			}
			return m, next
		}
		m.logger.Debug("move persisted", "task_id", move.TaskID, "lane", move.To, "index", move.ToIndex)
		if m.mode == modeActivityLog {
			if next == nil {
				return m, m.loadActivityLog
			}
			return m, tea.Batch(next, m.loadActivityLog)
		}
		return m, next

	case activityLogLoadedMsg:
		if msg.err != nil {
			if m.mode == modeActivityLog {
				m.status = "activity log unavailable: " + msg.err.Error()
			}
			return m, nil
		}
		m.activityLog = append([]activityEntry(nil), msg.entries...)
		if m.mode == modeActivityLog {
			m.status = "activity log"
		}
		return m, nil

	case clipboardMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "copied " + msg.text
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	default:
		return m, nil
	}
}

// loadData loads the project list and the selected project's board.
func (m Model) loadData() tea.Msg {
	ctx := context.Background()
	projects, err := m.svc.ListProjects(ctx, false)
	if err != nil {
		return loadedMsg{err: err}
	}
	if len(projects) == 0 {
		return loadedMsg{projects: projects}
	}

	projectIdx := clamp(m.selectedProject, 0, len(projects)-1)
	if ref := strings.TrimSpace(m.pendingProjectRef); ref != "" {
		for idx, project := range projects {
			if project.ID == ref || project.Slug == ref {
				projectIdx = idx
				break
			}
		}
	}
	model, tasks, err := m.svc.LoadBoard(ctx, projects[projectIdx].ID)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{
		projects:        projects,
		selectedProject: projectIdx,
		board:           model,
		tasks:           tasks,
	}
}

// persistMove is the engine's persistence effect. persistQueue guarantees
// at most one call is running.
func (m Model) persistMove(ctx context.Context, move board.PendingMove) error {
	ctx = app.WithMutationActor(ctx, app.MutationActor{ActorID: m.actorID, ActorType: domain.ActorTypeUser})
	return m.svc.PersistMove(ctx, move)
}

// schedulePersist starts token's write, or queues it behind the write in flight.
func (m Model) schedulePersist(token board.UndoToken) tea.Cmd {
	q := m.persists
	if q.inFlight != 0 {
		q.waiting = append(q.waiting, token)
		return nil
	}
	q.inFlight = token.ID()
	return m.persistCmd(token)
}

// persistNext releases the queue after settled's write and starts the oldest
// waiting one.
func (m Model) persistNext(settled board.UndoToken) tea.Cmd {
	q := m.persists
	if q.inFlight != settled.ID() {
		return nil
	}
	q.inFlight = 0
	if len(q.waiting) == 0 {
		return nil
	}
	next := q.waiting[0]
	q.waiting = q.waiting[1:]
	q.inFlight = next.ID()
	return m.persistCmd(next)
}

// applyEngineEvents folds engine notifications into the status line, the
// drop highlight and the selection.
func (m *Model) applyEngineEvents() {
	for _, ev := range m.events.drain() {
		switch ev.Kind {
		case dnd.EventTargetChanged:
			m.drag.target, m.drag.hasTarget = ev.Target, ev.HasTarget
			if ev.HasTarget {
				m.status = "drop into " + m.laneSettings(ev.Target).Title
			} else {
				m.status = "no drop target"
			}
		case dnd.EventMoveApplied:
			m.focusTask(ev.Move.TaskID)
			if ev.Move.From == ev.Move.To {
				m.status = fmt.Sprintf("reordered %q", m.taskTitle(ev.Move.TaskID))
			} else {
				m.status = fmt.Sprintf("moved %q to %s", m.taskTitle(ev.Move.TaskID), m.laneSettings(ev.Move.To).Title)
			}
			m.logger.Info("move applied", "task_id", ev.Move.TaskID, "from", ev.Move.From, "to", ev.Move.To, "index", ev.Move.ToIndex)
		case dnd.EventMoveRolledBack:
			m.status = ev.Err.Error()
			if !m.focusTask(ev.Move.TaskID) {
				m.clampSelections()
			}
		case dnd.EventSessionCleared:
			m.drag.target, m.drag.hasTarget = "", false
		}
	}
}

// persistCmd persists an applied move off the update loop.
func (m Model) persistCmd(token board.UndoToken) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		return moveSettledMsg{token: token, err: engine.Persist(ctx, token)}
	}
}

// loadActivityLog loads persisted project activity entries for modal rendering.
func (m Model) loadActivityLog() tea.Msg {
	projectID, ok := m.currentProjectID()
	if !ok {
		return activityLogLoadedMsg{entries: nil}
	}
	events, err := m.svc.ListProjectChangeEvents(context.Background(), projectID, activityLogMaxItems)
	if err != nil {
		return activityLogLoadedMsg{err: err}
	}
	return activityLogLoadedMsg{entries: m.mapChangeEventsToActivityEntries(events)}
}

// openActivityLog enters activity-log mode and triggers persisted activity fetch.
func (m *Model) openActivityLog() tea.Cmd {
	m.mode = modeActivityLog
	m.status = "activity log"
	return m.loadActivityLog
}

// mapChangeEventsToActivityEntries converts newest-first persisted events into modal rows.
func (m Model) mapChangeEventsToActivityEntries(events []domain.ChangeEvent) []activityEntry {
	if len(events) == 0 {
		return []activityEntry{}
	}
	entries := make([]activityEntry, 0, len(events))
	for idx := len(events) - 1; idx >= 0; idx-- {
		entries = append(entries, m.mapChangeEventToActivityEntry(events[idx]))
	}
	if len(entries) > activityLogMaxItems {
		entries = append([]activityEntry(nil), entries[len(entries)-activityLogMaxItems:]...)
	}
	return entries
}

// mapChangeEventToActivityEntry derives a compact activity row from one persisted event.
func (m Model) mapChangeEventToActivityEntry(event domain.ChangeEvent) activityEntry {
	summary := "update task"
	switch event.Operation {
	case domain.ChangeOperationCreate:
		summary = "create task"
	case domain.ChangeOperationMove:
		summary = "move task"
		from, errFrom := domain.ParseLane(event.Metadata["from_lane"])
		to, errTo := domain.ParseLane(event.Metadata["to_lane"])
		if errFrom == nil && errTo == nil && from != to {
			summary = fmt.Sprintf("move %s → %s", m.laneSettings(from).Title, m.laneSettings(to).Title)
		} else if errTo == nil {
			summary = "reorder in " + m.laneSettings(to).Title
		}
	case domain.ChangeOperationArchive:
		summary = "archive task"
	case domain.ChangeOperationRestore:
		summary = "restore task"
	case domain.ChangeOperationDelete:
		summary = "delete task"
	}
	target := strings.TrimSpace(event.Metadata["title"])
	if target == "" {
		if task, ok := m.tasks[event.TaskID]; ok {
			target = task.Title
		}
	}
	if target == "" {
		target = strings.TrimSpace(event.TaskID)
	}
	if target == "" {
		target = "-"
	}
	actor := strings.TrimSpace(event.ActorID)
	if event.ActorType == domain.ActorTypeAgent {
		actor += " (agent)"
	}
	return activityEntry{
		At:      event.OccurredAt.UTC(),
		Summary: summary,
		Target:  target,
		Actor:   actor,
	}
}

// handleKey routes one keypress by gesture state and mode.
func (m Model) handleKey(msg tea.KeyPressMsg) (Model, tea.Cmd) {
	if m.engine.State() == dnd.StateDragging {
		switch {
		case key.Matches(msg, m.keys.cancel):
			m.engine.Cancel()
			m.drag.reset()
			m.status = "drag cancelled"
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		}
		return m, nil
	}

	if m.help.ShowAll {
		if key.Matches(msg, m.keys.toggleHelp) || key.Matches(msg, m.keys.cancel) {
			m.help.ShowAll = false
			return m, nil
		}
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.mode != modeNone {
		switch {
		case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.taskInfo) && m.mode == modeTaskInfo,
			key.Matches(msg, m.keys.activityLog) && m.mode == modeActivityLog:
			m.mode = modeNone
			m.infoTaskID = ""
			m.status = "ready"
		case key.Matches(msg, m.keys.reload) && m.mode == modeActivityLog:
			return m, m.loadActivityLog
		case key.Matches(msg, m.keys.copyID) && m.mode == modeTaskInfo:
			return m, m.copyTaskID(m.infoTaskID)
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadData
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = true
		return m, nil
	case key.Matches(msg, m.keys.cancel):
		return m, nil
	case key.Matches(msg, m.keys.moveLeft):
		m.selectedLane--
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		m.selectedLane++
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.selectedTask--
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.selectedTask++
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.moveTaskLeft):
		return m.moveSelectedTask(-1)
	case key.Matches(msg, m.keys.moveTaskRight):
		return m.moveSelectedTask(1)
	case key.Matches(msg, m.keys.moveTaskUp):
		return m.reorderSelectedTask(-1)
	case key.Matches(msg, m.keys.moveTaskDown):
		return m.reorderSelectedTask(1)
	case key.Matches(msg, m.keys.taskInfo):
		taskID, ok := m.selectedTaskID()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.mode = modeTaskInfo
		m.infoTaskID = taskID
		m.status = "task info"
		return m, nil
	case key.Matches(msg, m.keys.activityLog):
		return m, m.openActivityLog()
	case key.Matches(msg, m.keys.copyID):
		taskID, ok := m.selectedTaskID()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		return m, m.copyTaskID(taskID)
	case key.Matches(msg, m.keys.nextProject):
		if len(m.projects) < 2 {
			return m, nil
		}
		m.selectedProject = (m.selectedProject + 1) % len(m.projects)
		m.selectedLane = 0
		m.selectedTask = 0
		m.status = "loading..."
		return m, m.loadData
	default:
		return m, nil
	}
}

// moveSelectedTask moves the selected task delta lanes sideways.
func (m Model) moveSelectedTask(delta int) (Model, tea.Cmd) {
	taskID, ok := m.selectedTaskID()
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	lanes := m.engine.Board().Lanes()
	target := m.selectedLane + delta
	if target < 0 || target >= len(lanes) {
		m.status = "no lane in that direction"
		return m, nil
	}
	token, applied, err := m.engine.MoveTo(taskID, lanes[target], board.NoHint)
	return m.afterMove(taskID, token, applied, err)
}

// reorderSelectedTask moves the selected task delta slots within its lane.
func (m Model) reorderSelectedTask(delta int) (Model, tea.Cmd) {
	taskID, ok := m.selectedTaskID()
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	lane, index, _ := m.engine.Board().IndexOf(taskID)
	target := clamp(index+delta, 0, len(m.engine.Board().Tasks(lane))-1)
	if target == index {
		return m, nil
	}
	token, applied, err := m.engine.MoveTo(taskID, lane, target)
	return m.afterMove(taskID, token, applied, err)
}

// afterMove reports a rejected move or schedules an applied one for persistence.
func (m Model) afterMove(taskID string, token board.UndoToken, applied bool, err error) (Model, tea.Cmd) {
	if err != nil {
		m.status = "move failed: " + err.Error()
		return m, nil
	}
	if !applied {
		m.status = "no change"
		return m, nil
	}
	m.focusTask(taskID)
	return m, m.schedulePersist(token)
}

// copyTaskID copies one task id to the clipboard.
func (m Model) copyTaskID(taskID string) tea.Cmd {
	if strings.TrimSpace(taskID) == "" {
		return nil
	}
	write := m.copyText
	return func() tea.Msg {
		return clipboardMsg{text: taskID, err: write(taskID)}
	}
}

// handleMouseWheel moves the selection within the current lane.
func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (Model, tea.Cmd) {
	if m.help.ShowAll || m.mode != modeNone || m.engine.State() == dnd.StateDragging {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		m.selectedTask--
	case tea.MouseWheelDown:
		m.selectedTask++
	}
	m.clampSelections()
	return m, nil
}

// handleMouseClick selects the card under the pointer and starts a drag.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (Model, tea.Cmd) {
	if m.help.ShowAll || m.mode != modeNone || len(m.projects) == 0 {
		return m, nil
	}
	if msg.Button != tea.MouseLeft {
		return m, nil
	}
	regions := m.columnRegions()
	point := dnd.Point{X: float64(msg.X), Y: float64(msg.Y)}
	laneIdx, card, ok := hitTest(regions, point)
	if laneIdx >= 0 {
		m.selectedLane = laneIdx
	}
	if !ok {
		m.clampSelections()
		return m, nil
	}
	m.focusTask(card.TaskID)
	if !m.mouseEnabled {
		return m, nil
	}
	if m.engine.Start(card.TaskID) {
		*m.drag = dragState{regions: regions, origin: point, card: card.Rect, pointer: point}
		m.status = fmt.Sprintf("dragging %q", m.taskTitle(card.TaskID))
	}
	return m, nil
}

// handleMouseMotion feeds the pointer and the dragged card's rectangle to the engine.
func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (Model, tea.Cmd) {
	if m.engine.State() != dnd.StateDragging {
		return m, nil
	}
	m.trackPointer(dnd.Point{X: float64(msg.X), Y: float64(msg.Y)})
	return m, nil
}

// handleMouseRelease ends the gesture and persists an applied drop.
func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (Model, tea.Cmd) {
	if m.engine.State() != dnd.StateDragging {
		return m, nil
	}
	moved := m.drag.moved
	if moved {
		m.trackPointer(dnd.Point{X: float64(msg.X), Y: float64(msg.Y)})
	}
	session, _ := m.engine.Session()
	token, applied := m.engine.End()
	m.drag.reset()
	if !applied {
		if moved {
			m.status = "drop discarded"
		} else {
			m.status = "ready"
		}
		return m, nil
	}
	return m.afterMove(session.TaskID, token, true, nil)
}

// trackPointer refreshes live geometry and reports the gesture position.
func (m Model) trackPointer(point dnd.Point) {
	m.drag.regions = m.columnRegions()
	m.drag.pointer = point
	m.drag.moved = true
	ghost := m.ghostRect()
	m.engine.Move(dnd.PointerInput{Pointer: &point, Dragged: &ghost})
}

// ghostRect is the grabbed card's rectangle translated with the pointer.
func (m Model) ghostRect() dnd.Rect {
	dx := m.drag.pointer.X - m.drag.origin.X
	dy := m.drag.pointer.Y - m.drag.origin.Y
	return dnd.Rect{
		Left:   m.drag.card.Left + dx,
		Top:    m.drag.card.Top + dy,
		Right:  m.drag.card.Right + dx,
		Bottom: m.drag.card.Bottom + dy,
	}
}

// hitTest returns the lane index under point and the card hit, if any.
func hitTest(regions []dnd.ColumnRegion, point dnd.Point) (int, dnd.CardRegion, bool) {
	for idx, region := range regions {
		if !region.Rect.Contains(point) {
			continue
		}
		for _, card := range region.Cards {
			if card.Rect.Contains(point) {
				return idx, card, true
			}
		}
		return idx, dnd.CardRegion{}, false
	}
	return -1, dnd.CardRegion{}, false
}

// clampSelections clamps selections.
func (m *Model) clampSelections() {
	lanes := m.engine.Board().Lanes()
	if len(lanes) == 0 {
		m.selectedLane = 0
		m.selectedTask = 0
		return
	}
	m.selectedLane = clamp(m.selectedLane, 0, len(lanes)-1)
	m.selectedTask = clamp(m.selectedTask, 0, max(0, len(m.engine.Board().Tasks(lanes[m.selectedLane]))-1))
}

// focusTask selects taskID wherever it currently sits.
func (m *Model) focusTask(taskID string) bool {
	if taskID == "" {
		return false
	}
	lane, index, ok := m.engine.Board().IndexOf(taskID)
	if !ok {
		return false
	}
	m.selectedLane = max(0, slices.Index(m.engine.Board().Lanes(), lane))
	m.selectedTask = index
	return true
}

// selectedTaskID returns the task under the cursor.
func (m Model) selectedTaskID() (string, bool) {
	lanes := m.engine.Board().Lanes()
	if m.selectedLane < 0 || m.selectedLane >= len(lanes) {
		return "", false
	}
	ids := m.engine.Board().Tasks(lanes[m.selectedLane])
	if m.selectedTask < 0 || m.selectedTask >= len(ids) {
		return "", false
	}
	return ids[m.selectedTask], true
}

// currentProjectID returns the selected project id.
func (m Model) currentProjectID() (string, bool) {
	if len(m.projects) == 0 {
		return "", false
	}
	return m.projects[clamp(m.selectedProject, 0, len(m.projects)-1)].ID, true
}

func (m Model) laneSettings(lane domain.Lane) LaneSettings {
	settings, ok := m.lanes[lane]
	if !ok {
		settings = LaneSettings{}
	}
	if strings.TrimSpace(settings.Title) == "" {
		settings.Title = lane.Title()
	}
	return settings
}

func (m Model) taskTitle(taskID string) string {
	if task, ok := m.tasks[taskID]; ok && task.Title != "" {
		return task.Title
	}
	return taskID
}
