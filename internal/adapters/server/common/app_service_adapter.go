package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/dragboard/internal/app"
	"github.com/hylla/dragboard/internal/board"
	"github.com/hylla/dragboard/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service board APIs.
type AppServiceAdapter struct {
	service *app.Service
	lanes   map[domain.Lane]LaneSettings
	probe   func(context.Context) error
	now     func() time.Time
}

// AdapterOption configures optional adapter behavior.
type AdapterOption func(*AppServiceAdapter)

// WithLaneSettings overrides lane titles and WIP limits in board payloads.
func WithLaneSettings(lanes map[domain.Lane]LaneSettings) AdapterOption {
	return func(a *AppServiceAdapter) {
		for lane, settings := range lanes {
			a.lanes[lane] = settings
		}
	}
}

// WithReadinessProbe sets the storage check used by Ready.
func WithReadinessProbe(probe func(context.Context) error) AdapterOption {
	return func(a *AppServiceAdapter) {
		a.probe = probe
	}
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service, opts ...AdapterOption) *AppServiceAdapter {
	a := &AppServiceAdapter{
		service: service,
		lanes:   map[domain.Lane]LaneSettings{},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Ready reports whether the backing store answers.
func (a *AppServiceAdapter) Ready(ctx context.Context) error {
	if a == nil || a.service == nil {
		return errors.New("app service adapter is not configured")
	}
	if a.probe == nil {
		return nil
	}
	return a.probe(ctx)
}

// ListProjects lists projects, optionally including archived rows.
func (a *AppServiceAdapter) ListProjects(ctx context.Context, includeArchived bool) ([]ProjectSummary, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	projects, err := a.service.ListProjects(ctx, includeArchived)
	if err != nil {
		return nil, mapAppError("list projects", err)
	}
	out := make([]ProjectSummary, 0, len(projects))
	for _, project := range projects {
		out = append(out, ProjectSummary{
			ID:          project.ID,
			Slug:        project.Slug,
			Name:        project.Name,
			Description: project.Description,
			ArchivedAt:  project.ArchivedAt,
		})
	}
	return out, nil
}

// GetBoard returns the ordered lanes for one project.
func (a *AppServiceAdapter) GetBoard(ctx context.Context, projectID string) (Board, error) {
	if err := a.check(); err != nil {
		return Board{}, err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return Board{}, fmt.Errorf("project_id is required: %w", ErrInvalidRequest)
	}
	project, err := a.service.GetProject(ctx, projectID)
	if err != nil {
		return Board{}, mapAppError("get board", err)
	}
	model, tasks, err := a.service.LoadBoard(ctx, project.ID)
	if err != nil {
		return Board{}, mapAppError("get board", err)
	}
	return a.boardFromModel(project, model, tasks), nil
}

// MoveTask persists one move and returns the resulting board.
func (a *AppServiceAdapter) MoveTask(ctx context.Context, in MoveTaskRequest) (MoveTaskResult, error) {
	if err := a.check(); err != nil {
		return MoveTaskResult{}, err
	}
	taskID := strings.TrimSpace(in.TaskID)
	if taskID == "" {
		return MoveTaskResult{}, fmt.Errorf("task_id is required: %w", ErrInvalidRequest)
	}
	lane, err := domain.ParseLane(in.Lane)
	if err != nil {
		return MoveTaskResult{}, fmt.Errorf("lane %q: %w", in.Lane, errors.Join(ErrInvalidRequest, err))
	}
	if in.Position != nil && *in.Position < 0 {
		return MoveTaskResult{}, fmt.Errorf("position must be >= 0: %w", ErrInvalidRequest)
	}

	task, err := a.service.GetTask(ctx, taskID)
	if err != nil {
		return MoveTaskResult{}, mapAppError("move task", err)
	}
	before, _, err := a.service.LoadBoard(ctx, task.ProjectID)
	if err != nil {
		return MoveTaskResult{}, mapAppError("move task", err)
	}
	fromLane, fromIndex, _ := before.IndexOf(task.ID)
	position := len(before.Tasks(lane))
	if in.Position != nil {
		position = *in.Position
	}

	if actorID := strings.TrimSpace(in.ActorID); actorID != "" {
		ctx = app.WithMutationActor(ctx, app.MutationActor{
			ActorID:   actorID,
			ActorType: domain.ActorType(in.ActorType),
		})
	}
	moved, err := a.service.MoveTask(ctx, task.ID, lane, position)
	if err != nil {
		return MoveTaskResult{}, mapAppError("move task", err)
	}

	project, err := a.service.GetProject(ctx, moved.ProjectID)
	if err != nil {
		return MoveTaskResult{}, mapAppError("move task", err)
	}
	after, tasks, err := a.service.LoadBoard(ctx, project.ID)
	if err != nil {
		return MoveTaskResult{}, mapAppError("move task", err)
	}
	toLane, toIndex, _ := after.IndexOf(moved.ID)
	return MoveTaskResult{
		TaskID:   moved.ID,
		FromLane: string(fromLane),
		Lane:     string(toLane),
		Position: toIndex,
		Moved:    fromLane != toLane || fromIndex != toIndex,
		Board:    a.boardFromModel(project, after, tasks),
	}, nil
}

// ListActivity lists recent change events for one project, newest first.
func (a *AppServiceAdapter) ListActivity(ctx context.Context, in ActivityRequest) ([]ActivityEntry, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	projectID := strings.TrimSpace(in.ProjectID)
	if projectID == "" {
		return nil, fmt.Errorf("project_id is required: %w", ErrInvalidRequest)
	}
	if in.Limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0: %w", ErrInvalidRequest)
	}
	if _, err := a.service.GetProject(ctx, projectID); err != nil {
		return nil, mapAppError("list activity", err)
	}
	events, err := a.service.ListProjectChangeEvents(ctx, projectID, in.Limit)
	if err != nil {
		return nil, mapAppError("list activity", err)
	}
	out := make([]ActivityEntry, 0, len(events))
	for _, event := range events {
		out = append(out, ActivityEntry{
			ID:         event.ID,
			TaskID:     event.TaskID,
			Operation:  string(event.Operation),
			ActorID:    event.ActorID,
			ActorType:  string(event.ActorType),
			Metadata:   event.Metadata,
			OccurredAt: event.OccurredAt,
		})
	}
	return out, nil
}

func (a *AppServiceAdapter) check() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrInvalidRequest)
	}
	return nil
}

// boardFromModel renders one board payload in lane display order.
func (a *AppServiceAdapter) boardFromModel(project domain.Project, model board.Model, tasks []domain.Task) Board {
	byID := make(map[string]domain.Task, len(tasks))
	for _, task := range tasks {
		byID[task.ID] = task
	}
	out := Board{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		TaskCount:   model.Len(),
		Lanes:       make([]BoardLane, 0, len(model.Lanes())),
		CapturedAt:  a.now().UTC(),
	}
	for _, lane := range model.Lanes() {
		ids := model.Tasks(lane)
		settings := a.lanes[lane]
		title := strings.TrimSpace(settings.Title)
		if title == "" {
			title = lane.Title()
		}
		row := BoardLane{
			Lane:         string(lane),
			Title:        title,
			WIPLimit:     settings.WIPLimit,
			OverWIPLimit: settings.WIPLimit > 0 && len(ids) > settings.WIPLimit,
			Cards:        make([]BoardCard, 0, len(ids)),
		}
		for idx, id := range ids {
			task := byID[id]
			row.Cards = append(row.Cards, BoardCard{
				ID:       id,
				Title:    task.Title,
				Priority: string(task.Priority),
				Labels:   append([]string(nil), task.Labels...),
				Position: idx,
			})
		}
		out.Lanes = append(out.Lanes, row)
	}
	return out
}

// mapAppError maps app/domain errors into transport-facing sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound), errors.Is(err, board.ErrUnknownTask):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrTaskArchived):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidPosition),
		errors.Is(err, domain.ErrInvalidLane),
		errors.Is(err, app.ErrInvalidDeleteMode):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
