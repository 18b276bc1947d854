package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/dragboard/internal/board"
	"github.com/hylla/dragboard/internal/domain"
)

// SnapshotVersion tags the export format.
const SnapshotVersion = "dragboard.snapshot.v1"

// Snapshot is a portable JSON export of projects and their tasks.
type Snapshot struct {
	Version    string            `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	Projects   []SnapshotProject `json:"projects"`
	Tasks      []SnapshotTask    `json:"tasks"`
}

// SnapshotProject represents snapshot project data used by this package.
type SnapshotProject struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
}

// SnapshotTask represents snapshot task data used by this package.
type SnapshotTask struct {
	ID             string           `json:"id"`
	ProjectID      string           `json:"project_id"`
	Lane           domain.Lane      `json:"lane"`
	Position       int              `json:"position"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Priority       domain.Priority  `json:"priority"`
	Labels         []string         `json:"labels"`
	CreatedByActor string           `json:"created_by_actor"`
	UpdatedByActor string           `json:"updated_by_actor"`
	UpdatedByType  domain.ActorType `json:"updated_by_type"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	ArchivedAt     *time.Time       `json:"archived_at,omitempty"`
}

// ExportSnapshot captures every project and its tasks in board order.
func (s *Service) ExportSnapshot(ctx context.Context, includeArchived bool) (Snapshot, error) {
	projects, err := s.repo.ListProjects(ctx, includeArchived)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list projects: %w", err)
	}

	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Projects:   make([]SnapshotProject, 0, len(projects)),
		Tasks:      []SnapshotTask{},
	}
	for _, project := range projects {
		snap.Projects = append(snap.Projects, exportProject(project))
		tasks, err := s.repo.ListTasks(ctx, project.ID, includeArchived)
		if err != nil {
			return Snapshot{}, fmt.Errorf("list tasks for project %q: %w", project.ID, err)
		}
		for _, task := range tasks {
			snap.Tasks = append(snap.Tasks, exportTask(task))
		}
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot validates snap and upserts its projects and tasks.
// Live task positions are renumbered 0..n-1 per lane in snapshot order, so a
// hand-edited file with gaps or ties still loads as a consistent board.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()

	projects := make([]domain.Project, 0, len(snap.Projects))
	for _, in := range snap.Projects {
		project, err := in.toDomain()
		if err != nil {
			return err
		}
		projects = append(projects, project)
	}
	tasks := make([]domain.Task, 0, len(snap.Tasks))
	for _, in := range snap.Tasks {
		task, err := in.toDomain()
		if err != nil {
			return err
		}
		tasks = append(tasks, task)
	}
	if err := compactPositions(tasks); err != nil {
		return err
	}

	for _, project := range projects {
		if err := s.upsertProject(ctx, project); err != nil {
			return fmt.Errorf("import project %q: %w", project.ID, err)
		}
	}
	for _, task := range tasks {
		if err := s.upsertTask(ctx, task); err != nil {
			return fmt.Errorf("import task %q: %w", task.ID, err)
		}
	}
	return nil
}

// compactPositions rewrites live task positions from each project's board order.
func compactPositions(tasks []domain.Task) error {
	byProject := map[string][]domain.Task{}
	for _, task := range tasks {
		byProject[task.ProjectID] = append(byProject[task.ProjectID], task)
	}
	positions := map[string]int{}
	for projectID, projectTasks := range byProject {
		model, err := board.FromTasks(domain.Lanes(), projectTasks)
		if err != nil {
			return fmt.Errorf("project %q: %w", projectID, err)
		}
		for _, lane := range model.Lanes() {
			for i, id := range model.Tasks(lane) {
				positions[id] = i
			}
		}
	}
	for i := range tasks {
		if pos, ok := positions[tasks[i].ID]; ok {
			tasks[i].Position = pos
		}
	}
	return nil
}

// Validate checks ids, references and lanes.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}

	projectIDs := map[string]struct{}{}
	for i, p := range s.Projects {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("projects[%d].id is required", i)
		}
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("projects[%d].name is required", i)
		}
		if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
			return fmt.Errorf("projects[%d] timestamps are required", i)
		}
		if _, exists := projectIDs[p.ID]; exists {
			return fmt.Errorf("duplicate project id: %q", p.ID)
		}
		projectIDs[p.ID] = struct{}{}
	}

	taskIDs := map[string]struct{}{}
	for i, t := range s.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("tasks[%d].id is required", i)
		}
		if _, ok := projectIDs[t.ProjectID]; !ok {
			return fmt.Errorf("tasks[%d] references unknown project_id %q", i, t.ProjectID)
		}
		if !t.Lane.Valid() {
			return fmt.Errorf("tasks[%d]: %w: %q", i, domain.ErrInvalidLane, t.Lane)
		}
		if t.Position < 0 {
			return fmt.Errorf("tasks[%d].position must be >= 0", i)
		}
		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("tasks[%d].title is required", i)
		}
		if _, exists := taskIDs[t.ID]; exists {
			return fmt.Errorf("duplicate task id: %q", t.ID)
		}
		taskIDs[t.ID] = struct{}{}
	}
	return nil
}

// upsertProject creates p or overwrites the stored row with the same id.
func (s *Service) upsertProject(ctx context.Context, p domain.Project) error {
	if _, err := s.repo.GetProject(ctx, p.ID); err == nil {
		return s.repo.UpdateProject(ctx, p)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.repo.CreateProject(ctx, p)
}

func (s *Service) upsertTask(ctx context.Context, t domain.Task) error {
	if _, err := s.repo.GetTask(ctx, t.ID); err == nil {
		return s.repo.UpdateTask(ctx, t)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.repo.CreateTask(ctx, t)
}

// sort puts projects in id order and tasks in project, lane, position order.
func (s *Snapshot) sort() {
	slices.SortFunc(s.Projects, func(a, b SnapshotProject) int {
		return strings.Compare(a.ID, b.ID)
	})
	slices.SortFunc(s.Tasks, func(a, b SnapshotTask) int {
		switch {
		case a.ProjectID != b.ProjectID:
			return strings.Compare(a.ProjectID, b.ProjectID)
		case a.Lane != b.Lane:
			return a.Lane.Index() - b.Lane.Index()
		case a.Position != b.Position:
			return a.Position - b.Position
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
}

func exportProject(p domain.Project) SnapshotProject {
	return SnapshotProject{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
		ArchivedAt:  utcSeconds(p.ArchivedAt),
	}
}

func exportTask(t domain.Task) SnapshotTask {
	return SnapshotTask{
		ID:             t.ID,
		ProjectID:      t.ProjectID,
		Lane:           t.Lane,
		Position:       t.Position,
		Title:          t.Title,
		Description:    t.Description,
		Priority:       t.Priority,
		Labels:         slices.Clone(t.Labels),
		CreatedByActor: t.CreatedByActor,
		UpdatedByActor: t.UpdatedByActor,
		UpdatedByType:  t.UpdatedByType,
		CreatedAt:      t.CreatedAt.UTC(),
		UpdatedAt:      t.UpdatedAt.UTC(),
		ArchivedAt:     utcSeconds(t.ArchivedAt),
	}
}

// toDomain rebuilds the project through domain.NewProject. An empty slug is
// derived from the name.
func (p SnapshotProject) toDomain() (domain.Project, error) {
	project, err := domain.NewProject(p.ID, p.Name, p.Description, p.CreatedAt)
	if err != nil {
		return domain.Project{}, fmt.Errorf("snapshot project %q: %w", p.ID, err)
	}
	if slug := strings.TrimSpace(p.Slug); slug != "" {
		project.Slug = slug
	}
	project.UpdatedAt = p.UpdatedAt.UTC()
	project.ArchivedAt = utcSeconds(p.ArchivedAt)
	return project, nil
}

// toDomain rebuilds the task through domain.NewTask, keeping its attribution.
func (t SnapshotTask) toDomain() (domain.Task, error) {
	task, err := domain.NewTask(domain.TaskInput{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Lane:        t.Lane,
		Position:    t.Position,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Labels:      t.Labels,
	}, t.CreatedAt)
	if err != nil {
		return domain.Task{}, fmt.Errorf("snapshot task %q: %w", t.ID, err)
	}
	if createdBy := strings.TrimSpace(t.CreatedByActor); createdBy != "" {
		task.CreatedByActor = createdBy
		task.UpdatedByActor = createdBy
	}
	if updatedBy := strings.TrimSpace(t.UpdatedByActor); updatedBy != "" {
		task.UpdatedByActor = updatedBy
	}
	task.UpdatedByType = domain.NormalizeActorType(t.UpdatedByType)
	task.UpdatedAt = t.UpdatedAt.UTC()
	task.ArchivedAt = utcSeconds(t.ArchivedAt)
	return task, nil
}

func utcSeconds(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	t := in.UTC().Truncate(time.Second)
	return &t
}
