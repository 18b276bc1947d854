package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/dragboard/internal/board"
	"github.com/hylla/dragboard/internal/domain"
)

// DeleteMode represents a selectable mode.
type DeleteMode string

// DeleteModeArchive and related constants define package defaults.
const (
	DeleteModeArchive DeleteMode = "archive"
	DeleteModeHard    DeleteMode = "hard"
)

// ParseDeleteMode validates a configured or requested delete mode.
func ParseDeleteMode(raw string) (DeleteMode, error) {
	switch mode := DeleteMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case DeleteModeArchive, DeleteModeHard:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDeleteMode, raw)
	}
}

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultDeleteMode DeleteMode
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service coordinates projects, tasks and board moves over a Repository.
type Service struct {
	repo              Repository
	idGen             IDGenerator
	clock             Clock
	defaultDeleteMode DeleteMode
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.DefaultDeleteMode == "" {
		cfg.DefaultDeleteMode = DeleteModeArchive
	}
	return &Service{
		repo:              repo,
		idGen:             idGen,
		clock:             clock,
		defaultDeleteMode: cfg.DefaultDeleteMode,
	}
}

// EnsureDefaultProject ensures default project.
func (s *Service) EnsureDefaultProject(ctx context.Context) (domain.Project, error) {
	projects, err := s.repo.ListProjects(ctx, false)
	if err != nil {
		return domain.Project{}, err
	}
	if len(projects) > 0 {
		return projects[0], nil
	}
	return s.CreateProject(ctx, "Inbox", "Default project")
}

// CreateProject creates project.
func (s *Service) CreateProject(ctx context.Context, name, description string) (domain.Project, error) {
	project, err := domain.NewProject(s.idGen(), name, description, s.clock())
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	return s.repo.GetProject(ctx, strings.TrimSpace(projectID))
}

// ListProjects lists projects.
func (s *Service) ListProjects(ctx context.Context, includeArchived bool) ([]domain.Project, error) {
	projects, err := s.repo.ListProjects(ctx, includeArchived)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(projects, func(a, b domain.Project) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return projects, nil
}

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	ProjectID   string
	Lane        domain.Lane
	Title       string
	Description string
	Priority    domain.Priority
	Labels      []string
}

// CreateTask creates a task at the end of its lane.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	if _, err := s.repo.GetProject(ctx, in.ProjectID); err != nil {
		return domain.Task{}, err
	}
	if in.Lane == "" {
		in.Lane = domain.LaneNotStarted
	}
	tasks, err := s.repo.ListTasks(ctx, in.ProjectID, false)
	if err != nil {
		return domain.Task{}, err
	}
	position := 0
	for _, task := range tasks {
		if task.Lane == in.Lane {
			position++
		}
	}

	task, err := domain.NewTask(domain.TaskInput{
		ID:          s.idGen(),
		ProjectID:   in.ProjectID,
		Lane:        in.Lane,
		Position:    position,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Labels:      in.Labels,
	}, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	actor := actorFor(ctx)
	task.CreatedByActor = actor.ActorID
	task.Attribute(actor.ActorID, actor.ActorType)
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// GetTask returns one task.
func (s *Service) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	return s.repo.GetTask(ctx, strings.TrimSpace(taskID))
}

// ListTasks lists tasks in lane display order, then position.
func (s *Service) ListTasks(ctx context.Context, projectID string, includeArchived bool) ([]domain.Task, error) {
	tasks, err := s.repo.ListTasks(ctx, projectID, includeArchived)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(tasks, func(a, b domain.Task) int {
		if a.Lane != b.Lane {
			return a.Lane.Index() - b.Lane.Index()
		}
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return strings.Compare(a.ID, b.ID)
	})
	return tasks, nil
}

// UpdateTaskInput holds input values for update task operations.
type UpdateTaskInput struct {
	TaskID      string
	Title       string
	Description string
	Priority    domain.Priority
	Labels      []string
}

// UpdateTask replaces the task's editable details.
func (s *Service) UpdateTask(ctx context.Context, in UpdateTaskInput) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, in.TaskID)
	if err != nil {
		return domain.Task{}, err
	}
	if in.Priority == "" {
		in.Priority = task.Priority
	}
	if err := task.UpdateDetails(in.Title, in.Description, in.Priority, in.Labels, s.clock()); err != nil {
		return domain.Task{}, err
	}
	actor := actorFor(ctx)
	task.Attribute(actor.ActorID, actor.ActorType)
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// RenameTask renames task.
func (s *Service) RenameTask(ctx context.Context, taskID, title string) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	return s.UpdateTask(ctx, UpdateTaskInput{
		TaskID:      taskID,
		Title:       title,
		Description: task.Description,
		Priority:    task.Priority,
		Labels:      task.Labels,
	})
}

// LoadBoard builds the board for a project from its live tasks.
func (s *Service) LoadBoard(ctx context.Context, projectID string) (board.Model, []domain.Task, error) {
	tasks, err := s.ListTasks(ctx, projectID, false)
	if err != nil {
		return board.Model{}, nil, err
	}
	model, err := board.FromTasks(domain.Lanes(), tasks)
	if err != nil {
		return board.Model{}, nil, fmt.Errorf("build board for project %q: %w", projectID, err)
	}
	return model, tasks, nil
}

// MoveTask relocates a task to lane at position, clamped to the lane length,
// and renumbers both affected lanes in one repository write.
func (s *Service) MoveTask(ctx context.Context, taskID string, lane domain.Lane, position int) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task.ArchivedAt != nil {
		return domain.Task{}, fmt.Errorf("%w: %q", ErrTaskArchived, taskID)
	}
	if !lane.Valid() {
		return domain.Task{}, fmt.Errorf("%w: %q", domain.ErrInvalidLane, lane)
	}

	model, tasks, err := s.LoadBoard(ctx, task.ProjectID)
	if err != nil {
		return domain.Task{}, err
	}
	next, err := model.MoveTask(task.ID, lane, position)
	if err != nil {
		return domain.Task{}, err
	}

	byID := make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	now := s.clock()
	actor := actorFor(ctx)
	changed := make([]domain.Task, 0)
	for _, affected := range uniqueLanes(task.Lane, lane) {
		for idx, id := range next.Tasks(affected) {
			t := byID[id]
			if t.Lane == affected && t.Position == idx {
				continue
			}
			if err := t.Move(affected, idx, now); err != nil {
				return domain.Task{}, err
			}
			t.Attribute(actor.ActorID, actor.ActorType)
			byID[id] = t
			changed = append(changed, t)
		}
	}
	if len(changed) == 0 {
		return byID[task.ID], nil
	}
	if err := s.repo.UpdateTasks(ctx, changed); err != nil {
		return domain.Task{}, err
	}
	return byID[task.ID], nil
}

// PersistMove is a board.PersistFunc backed by MoveTask.
func (s *Service) PersistMove(ctx context.Context, move board.PendingMove) error {
	_, err := s.MoveTask(ctx, move.TaskID, move.To, move.ToIndex)
	return err
}

// RestoreTask restores task to the end of its lane.
func (s *Service) RestoreTask(ctx context.Context, taskID string) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task.ArchivedAt == nil {
		return task, nil
	}
	tasks, err := s.repo.ListTasks(ctx, task.ProjectID, false)
	if err != nil {
		return domain.Task{}, err
	}
	position := 0
	for _, t := range tasks {
		if t.Lane == task.Lane {
			position++
		}
	}
	now := s.clock()
	task.Restore(now)
	if err := task.Move(task.Lane, position, now); err != nil {
		return domain.Task{}, err
	}
	actor := actorFor(ctx)
	task.Attribute(actor.ActorID, actor.ActorType)
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// DeleteTask deletes task.
func (s *Service) DeleteTask(ctx context.Context, taskID string, mode DeleteMode) error {
	if mode == "" {
		mode = s.defaultDeleteMode
	}

	switch mode {
	case DeleteModeArchive:
		task, err := s.repo.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		task.Archive(s.clock())
		actor := actorFor(ctx)
		task.Attribute(actor.ActorID, actor.ActorType)
		return s.repo.UpdateTask(ctx, task)
	case DeleteModeHard:
		return s.repo.DeleteTask(ctx, taskID)
	default:
		return ErrInvalidDeleteMode
	}
}

// ListProjectChangeEvents lists recent change events for a project.
func (s *Service) ListProjectChangeEvents(ctx context.Context, projectID string, limit int) ([]domain.ChangeEvent, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, domain.ErrInvalidID
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	return s.repo.ListProjectChangeEvents(ctx, projectID, limit)
}

// demoTasks seeds one task per row, in lane order.
var demoTasks = []CreateTaskInput{
	{Lane: domain.LaneNotStarted, Title: "Sketch onboarding flow", Priority: domain.PriorityMedium, Labels: []string{"design"}},
	{Lane: domain.LaneNotStarted, Title: "Write release notes", Priority: domain.PriorityLow, Labels: []string{"docs"}},
	{Lane: domain.LaneNotStarted, Title: "Audit error messages", Priority: domain.PriorityLow},
	{Lane: domain.LaneInProgress, Title: "Drag cards between lanes", Description: "Mouse drag with **optimistic** updates.", Priority: domain.PriorityHigh, Labels: []string{"tui"}},
	{Lane: domain.LaneInProgress, Title: "Activity log view", Priority: domain.PriorityMedium},
	{Lane: domain.LaneReview, Title: "Sqlite batch move writes", Priority: domain.PriorityHigh, Labels: []string{"storage"}},
	{Lane: domain.LaneDone, Title: "Project scaffolding", Priority: domain.PriorityMedium},
}

// SeedDemo creates a demo project with tasks in every lane.
func (s *Service) SeedDemo(ctx context.Context) (domain.Project, error) {
	project, err := s.CreateProject(ctx, "Demo Board", "Sample tasks for trying drag and drop")
	if err != nil {
		return domain.Project{}, err
	}
	for _, in := range demoTasks {
		in.ProjectID = project.ID
		if _, err := s.CreateTask(ctx, in); err != nil {
			return domain.Project{}, fmt.Errorf("seed task %q: %w", in.Title, err)
		}
	}
	return project, nil
}

func uniqueLanes(lanes ...domain.Lane) []domain.Lane {
	out := make([]domain.Lane, 0, len(lanes))
	for _, lane := range lanes {
		if !slices.Contains(out, lane) {
			out = append(out, lane)
		}
	}
	return out
}

