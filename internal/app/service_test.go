package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/hylla/dragboard/internal/board"
	"github.com/hylla/dragboard/internal/domain"
)

type fakeRepo struct {
	projects   map[string]domain.Project
	tasks      map[string]domain.Task
	events     []domain.ChangeEvent
	batches    [][]domain.Task
	failUpdate error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		projects: map[string]domain.Project{},
		tasks:    map[string]domain.Task{},
	}
}

func (f *fakeRepo) CreateProject(_ context.Context, p domain.Project) error {
	f.projects[p.ID] = p
	return nil
}

func (f *fakeRepo) UpdateProject(_ context.Context, p domain.Project) error {
	f.projects[p.ID] = p
	return nil
}

func (f *fakeRepo) GetProject(_ context.Context, id string) (domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return domain.Project{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListProjects(_ context.Context, includeArchived bool) ([]domain.Project, error) {
	out := make([]domain.Project, 0, len(f.projects))
	for _, p := range f.projects {
		if !includeArchived && p.ArchivedAt != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) CreateTask(_ context.Context, t domain.Task) error {
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeRepo) UpdateTask(_ context.Context, t domain.Task) error {
	if _, ok := f.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeRepo) UpdateTasks(_ context.Context, tasks []domain.Task) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	for _, t := range tasks {
		if _, ok := f.tasks[t.ID]; !ok {
			return ErrNotFound
		}
	}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	f.batches = append(f.batches, slices.Clone(tasks))
	return nil
}

func (f *fakeRepo) GetTask(_ context.Context, id string) (domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) ListTasks(_ context.Context, projectID string, includeArchived bool) ([]domain.Task, error) {
	out := make([]domain.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		if t.ProjectID != projectID {
			continue
		}
		if !includeArchived && t.ArchivedAt != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeRepo) DeleteTask(_ context.Context, id string) error {
	if _, ok := f.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeRepo) ListProjectChangeEvents(_ context.Context, projectID string, limit int) ([]domain.ChangeEvent, error) {
	out := make([]domain.ChangeEvent, 0)
	for _, ev := range f.events {
		if ev.ProjectID == projectID {
			out = append(out, ev)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestService(repo *fakeRepo) *Service {
	n := 0
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	return NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, func() time.Time { return now }, ServiceConfig{})
}

func seedLane(t *testing.T, svc *Service, projectID string, lane domain.Lane, titles ...string) []domain.Task {
	t.Helper()
	out := make([]domain.Task, 0, len(titles))
	for _, title := range titles {
		task, err := svc.CreateTask(context.Background(), CreateTaskInput{ProjectID: projectID, Lane: lane, Title: title})
		if err != nil {
			t.Fatalf("CreateTask(%q) error = %v", title, err)
		}
		out = append(out, task)
	}
	return out
}

func laneTitles(t *testing.T, svc *Service, projectID string, lane domain.Lane) []string {
	t.Helper()
	tasks, err := svc.ListTasks(context.Background(), projectID, false)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	out := make([]string, 0)
	for _, task := range tasks {
		if task.Lane == lane {
			out = append(out, task.Title)
		}
	}
	return out
}

func TestEnsureDefaultProjectIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	first, err := svc.EnsureDefaultProject(context.Background())
	if err != nil {
		t.Fatalf("EnsureDefaultProject() error = %v", err)
	}
	second, err := svc.EnsureDefaultProject(context.Background())
	if err != nil {
		t.Fatalf("EnsureDefaultProject() error = %v", err)
	}
	if first.ID != second.ID || len(repo.projects) != 1 {
		t.Fatalf("expected one default project, got %d", len(repo.projects))
	}
}

func TestCreateTaskAppendsToLane(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	project, err := svc.CreateProject(context.Background(), "Board", "")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	tasks := seedLane(t, svc, project.ID, domain.LaneReview, "a", "b")
	if tasks[0].Position != 0 || tasks[1].Position != 1 {
		t.Fatalf("unexpected positions %d, %d", tasks[0].Position, tasks[1].Position)
	}
	if _, err := svc.CreateTask(context.Background(), CreateTaskInput{ProjectID: "missing", Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing project, got %v", err)
	}
	if _, err := svc.CreateTask(context.Background(), CreateTaskInput{ProjectID: project.ID, Lane: "blocked", Title: "x"}); !errors.Is(err, domain.ErrInvalidLane) {
		t.Fatalf("expected ErrInvalidLane, got %v", err)
	}
}

func TestMoveTaskAcrossLanesRenumbers(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	project, _ := svc.CreateProject(context.Background(), "Board", "")
	todo := seedLane(t, svc, project.ID, domain.LaneNotStarted, "A", "B", "C")
	seedLane(t, svc, project.ID, domain.LaneDone, "D")

	ctx := WithMutationActor(context.Background(), MutationActor{ActorID: "tui", ActorType: domain.ActorTypeUser})
	moved, err := svc.MoveTask(ctx, todo[0].ID, domain.LaneDone, 99)
	if err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if moved.Lane != domain.LaneDone || moved.Position != 1 {
		t.Fatalf("unexpected moved task lane=%q pos=%d", moved.Lane, moved.Position)
	}
	if moved.UpdatedByActor != "tui" {
		t.Fatalf("expected actor attribution, got %q", moved.UpdatedByActor)
	}
	if got := laneTitles(t, svc, project.ID, domain.LaneNotStarted); !slices.Equal(got, []string{"B", "C"}) {
		t.Fatalf("not-started = %v", got)
	}
	if got := laneTitles(t, svc, project.ID, domain.LaneDone); !slices.Equal(got, []string{"D", "A"}) {
		t.Fatalf("done = %v", got)
	}
	if len(repo.batches) != 1 || len(repo.batches[0]) != 3 {
		t.Fatalf("expected one batch of 3 changed tasks, got %#v", repo.batches)
	}
	for _, task := range repo.tasks {
		if task.Title == "B" && task.Position != 0 {
			t.Fatalf("expected B renumbered to 0, got %d", task.Position)
		}
	}
}

func TestMoveTaskWithinLane(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	project, _ := svc.CreateProject(context.Background(), "Board", "")
	todo := seedLane(t, svc, project.ID, domain.LaneNotStarted, "A", "B", "C")

	if _, err := svc.MoveTask(context.Background(), todo[2].ID, domain.LaneNotStarted, 0); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if got := laneTitles(t, svc, project.ID, domain.LaneNotStarted); !slices.Equal(got, []string{"C", "A", "B"}) {
		t.Fatalf("not-started = %v", got)
	}

	before := len(repo.batches)
	if _, err := svc.MoveTask(context.Background(), todo[2].ID, domain.LaneNotStarted, 0); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if len(repo.batches) != before {
		t.Fatal("expected no write for a no-op move")
	}
}

func TestMoveTaskErrors(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	project, _ := svc.CreateProject(context.Background(), "Board", "")
	todo := seedLane(t, svc, project.ID, domain.LaneNotStarted, "A")

	if _, err := svc.MoveTask(context.Background(), "missing", domain.LaneDone, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.MoveTask(context.Background(), todo[0].ID, "blocked", 0); !errors.Is(err, domain.ErrInvalidLane) {
		t.Fatalf("expected ErrInvalidLane, got %v", err)
	}
	repo.failUpdate = errors.New("disk full")
	if _, err := svc.MoveTask(context.Background(), todo[0].ID, domain.LaneDone, 0); !errors.Is(err, repo.failUpdate) {
		t.Fatalf("expected repository error, got %v", err)
	}
	repo.failUpdate = nil
	if err := svc.DeleteTask(context.Background(), todo[0].ID, DeleteModeArchive); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := svc.MoveTask(context.Background(), todo[0].ID, domain.LaneDone, 0); !errors.Is(err, ErrTaskArchived) {
		t.Fatalf("expected ErrTaskArchived, got %v", err)
	}
}

func TestPersistMoveDrivesApplierCommit(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	project, _ := svc.CreateProject(context.Background(), "Board", "")
	todo := seedLane(t, svc, project.ID, domain.LaneNotStarted, "A", "B")

	model, _, err := svc.LoadBoard(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	applier := board.NewApplier(model, board.PlacementAppend)
	_, token, err := applier.Apply(todo[1].ID, domain.LaneNotStarted, domain.LaneDone, board.NoHint)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := applier.Commit(context.Background(), token, svc.PersistMove); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	stored, _, err := svc.LoadBoard(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	if !stored.Equal(applier.Board()) {
		t.Fatalf("stored board %s differs from optimistic board %s", stored, applier.Board())
	}

	repo.failUpdate = errors.New("offline")
	before := applier.Board()
	_, token, err = applier.Apply(todo[0].ID, domain.LaneNotStarted, domain.LaneReview, board.NoHint)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := applier.Commit(context.Background(), token, svc.PersistMove); !errors.Is(err, board.ErrRolledBack) {
		t.Fatalf("expected rollback, got %v", err)
	}
	if !applier.Board().Equal(before) {
		t.Fatalf("board after rollback = %s, want %s", applier.Board(), before)
	}
}

func TestDeleteTaskModes(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	project, _ := svc.CreateProject(context.Background(), "Board", "")
	tasks := seedLane(t, svc, project.ID, domain.LaneInProgress, "A", "B")

	if err := svc.DeleteTask(context.Background(), tasks[0].ID, ""); err != nil {
		t.Fatalf("DeleteTask(archive) error = %v", err)
	}
	if repo.tasks[tasks[0].ID].ArchivedAt == nil {
		t.Fatal("expected default mode to archive")
	}
	if err := svc.DeleteTask(context.Background(), tasks[1].ID, DeleteModeHard); err != nil {
		t.Fatalf("DeleteTask(hard) error = %v", err)
	}
	if _, ok := repo.tasks[tasks[1].ID]; ok {
		t.Fatal("expected hard delete to remove task")
	}
	if err := svc.DeleteTask(context.Background(), tasks[0].ID, "bogus"); !errors.Is(err, ErrInvalidDeleteMode) {
		t.Fatalf("expected ErrInvalidDeleteMode, got %v", err)
	}

	restored, err := svc.RestoreTask(context.Background(), tasks[0].ID)
	if err != nil {
		t.Fatalf("RestoreTask() error = %v", err)
	}
	if restored.ArchivedAt != nil || restored.Position != 0 {
		t.Fatalf("unexpected restored task %#v", restored)
	}
}

func TestRenameAndUpdateTask(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	project, _ := svc.CreateProject(context.Background(), "Board", "")
	task := seedLane(t, svc, project.ID, domain.LaneNotStarted, "Old")[0]

	renamed, err := svc.RenameTask(context.Background(), task.ID, "  New title ")
	if err != nil {
		t.Fatalf("RenameTask() error = %v", err)
	}
	if renamed.Title != "New title" {
		t.Fatalf("unexpected title %q", renamed.Title)
	}
	updated, err := svc.UpdateTask(context.Background(), UpdateTaskInput{
		TaskID:   task.ID,
		Title:    "New title",
		Priority: domain.PriorityHigh,
		Labels:   []string{"UI", "ui"},
	})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if updated.Priority != domain.PriorityHigh || !slices.Equal(updated.Labels, []string{"ui"}) {
		t.Fatalf("unexpected update %#v", updated)
	}
	if _, err := svc.RenameTask(context.Background(), task.ID, " "); !errors.Is(err, domain.ErrInvalidTitle) {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
}

func TestListProjectChangeEventsLimits(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	for i := range 60 {
		repo.events = append(repo.events, domain.ChangeEvent{ID: int64(i), ProjectID: "p1", Operation: domain.ChangeOperationMove})
	}
	events, err := svc.ListProjectChangeEvents(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("ListProjectChangeEvents() error = %v", err)
	}
	if len(events) != 50 {
		t.Fatalf("expected default limit 50, got %d", len(events))
	}
	if _, err := svc.ListProjectChangeEvents(context.Background(), " ", 10); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestSeedDemoFillsEveryLane(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	project, err := svc.SeedDemo(context.Background())
	if err != nil {
		t.Fatalf("SeedDemo() error = %v", err)
	}
	model, tasks, err := svc.LoadBoard(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	if len(tasks) != len(demoTasks) {
		t.Fatalf("expected %d tasks, got %d", len(demoTasks), len(tasks))
	}
	for _, lane := range domain.Lanes() {
		if len(model.Tasks(lane)) == 0 {
			t.Fatalf("expected tasks in lane %q", lane)
		}
	}
}

func TestParseDeleteMode(t *testing.T) {
	if mode, err := ParseDeleteMode(" Hard "); err != nil || mode != DeleteModeHard {
		t.Fatalf("ParseDeleteMode() = %q, %v", mode, err)
	}
	if _, err := ParseDeleteMode("shred"); !errors.Is(err, ErrInvalidDeleteMode) {
		t.Fatalf("expected ErrInvalidDeleteMode, got %v", err)
	}
}
