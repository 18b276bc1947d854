package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/hylla/dragboard/internal/app"
	"github.com/hylla/dragboard/internal/domain"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "dragboard.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func seedProject(t *testing.T, repo *Repository, now time.Time) domain.Project {
	t.Helper()
	project, err := domain.NewProject("p1", "Example", "desc", now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	if err := repo.CreateProject(context.Background(), project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return project
}

func seedTask(t *testing.T, repo *Repository, projectID, id string, lane domain.Lane, position int, now time.Time) domain.Task {
	t.Helper()
	task, err := domain.NewTask(domain.TaskInput{
		ID:        id,
		ProjectID: projectID,
		Lane:      lane,
		Position:  position,
		Title:     "Task " + id,
		Labels:    []string{"b", "a"},
	}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if err := repo.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	return task
}

func TestRepository_ProjectTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	project := seedProject(t, repo, now)

	loadedProject, err := repo.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if loadedProject.Name != "Example" || !loadedProject.CreatedAt.Equal(now) {
		t.Fatalf("unexpected project %#v", loadedProject)
	}

	task := seedTask(t, repo, project.ID, "t1", domain.LaneReview, 0, now)
	loaded, err := repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if loaded.Lane != domain.LaneReview || !slices.Equal(loaded.Labels, []string{"a", "b"}) {
		t.Fatalf("unexpected task %#v", loaded)
	}
	if loaded.CreatedByActor != domain.DefaultActorID || loaded.UpdatedByType != domain.ActorTypeUser {
		t.Fatalf("unexpected attribution %#v", loaded)
	}

	loaded.Archive(now.Add(time.Minute))
	if err := repo.UpdateTask(ctx, loaded); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	active, err := repo.ListTasks(ctx, project.ID, false)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected archived task hidden, got %d", len(active))
	}
	all, err := repo.ListTasks(ctx, project.ID, true)
	if err != nil {
		t.Fatalf("ListTasks(all) error = %v", err)
	}
	if len(all) != 1 || all[0].ArchivedAt == nil {
		t.Fatalf("expected archived task in full listing, got %#v", all)
	}

	if err := repo.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := repo.GetTask(ctx, task.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.DeleteTask(ctx, task.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}

	events, err := repo.ListProjectChangeEvents(ctx, project.ID, 10)
	if err != nil {
		t.Fatalf("ListProjectChangeEvents() error = %v", err)
	}
	ops := make([]domain.ChangeOperation, 0, len(events))
	for _, ev := range events {
		ops = append(ops, ev.Operation)
	}
	want := []domain.ChangeOperation{domain.ChangeOperationDelete, domain.ChangeOperationArchive, domain.ChangeOperationCreate}
	if !slices.Equal(ops, want) {
		t.Fatalf("change operations = %v, want %v", ops, want)
	}
}

func TestRepository_UpdateTasksRecordsMoves(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	project := seedProject(t, repo, now)
	a := seedTask(t, repo, project.ID, "a", domain.LaneNotStarted, 0, now)
	b := seedTask(t, repo, project.ID, "b", domain.LaneNotStarted, 1, now)

	later := now.Add(time.Minute)
	if err := a.Move(domain.LaneDone, 0, later); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	a.Attribute("planner", domain.ActorTypeAgent)
	if err := b.Move(domain.LaneNotStarted, 0, later); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if err := repo.UpdateTasks(ctx, []domain.Task{a, b}); err != nil {
		t.Fatalf("UpdateTasks() error = %v", err)
	}

	events, err := repo.ListProjectChangeEvents(ctx, project.ID, 2)
	if err != nil {
		t.Fatalf("ListProjectChangeEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	byTask := map[string]domain.ChangeEvent{}
	for _, ev := range events {
		byTask[ev.TaskID] = ev
	}
	moveA := byTask["a"]
	if moveA.Operation != domain.ChangeOperationMove || moveA.Metadata["from_lane"] != "not-started" || moveA.Metadata["to_lane"] != "done" {
		t.Fatalf("unexpected move event %#v", moveA)
	}
	if moveA.ActorID != "planner" || moveA.ActorType != domain.ActorTypeAgent {
		t.Fatalf("unexpected actor on move event %#v", moveA)
	}
	if byTask["b"].Metadata["from_position"] != "1" || byTask["b"].Metadata["to_position"] != "0" {
		t.Fatalf("unexpected reorder event %#v", byTask["b"])
	}
}

func TestRepository_UpdateTasksIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	project := seedProject(t, repo, now)
	a := seedTask(t, repo, project.ID, "a", domain.LaneNotStarted, 0, now)

	ghost := a
	ghost.ID = "ghost"
	if err := a.Move(domain.LaneDone, 0, now); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if err := repo.UpdateTasks(ctx, []domain.Task{a, ghost}); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	stored, err := repo.GetTask(ctx, "a")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if stored.Lane != domain.LaneNotStarted {
		t.Fatalf("expected batch rollback, task lane = %q", stored.Lane)
	}
	events, err := repo.ListProjectChangeEvents(ctx, project.ID, 10)
	if err != nil {
		t.Fatalf("ListProjectChangeEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected only the create event, got %d", len(events))
	}
}

func TestRepository_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dragboard.db")
	repo, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	seedProject(t, repo, now)
	if err := repo.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open(reopen) error = %v", err)
	}
	t.Cleanup(func() {
		_ = reopened.Close()
	})
	projects, err := reopened.ListProjects(context.Background(), false)
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected 1 project after reopen, got %d", len(projects))
	}
}

func TestRepository_ServiceMoveEndToEnd(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	n := 0
	svc := app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, nil, app.ServiceConfig{})

	project, err := svc.SeedDemo(ctx)
	if err != nil {
		t.Fatalf("SeedDemo() error = %v", err)
	}
	model, _, err := svc.LoadBoard(ctx, project.ID)
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	first := model.Tasks(domain.LaneNotStarted)[0]
	if _, err := svc.MoveTask(ctx, first, domain.LaneDone, 0); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	after, _, err := svc.LoadBoard(ctx, project.ID)
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	expected, err := model.MoveTask(first, domain.LaneDone, 0)
	if err != nil {
		t.Fatalf("model.MoveTask() error = %v", err)
	}
	if !after.Equal(expected) {
		t.Fatalf("stored board %s, want %s", after, expected)
	}
}

func TestRepository_EnforcesProjectReference(t *testing.T) {
	repo := openTestRepo(t)
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	orphan, err := domain.NewTask(domain.TaskInput{ID: "t9", ProjectID: "missing", Title: "Orphan"}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if err := repo.CreateTask(context.Background(), orphan); err == nil {
		t.Fatal("expected foreign key failure for unknown project")
	}
	if _, err := repo.GetTask(context.Background(), "t9"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected orphan insert rolled back, got %v", err)
	}
}

func TestRepository_UnchangedUpdateSkipsEvent(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	project := seedProject(t, repo, now)
	task := seedTask(t, repo, project.ID, "a", domain.LaneReview, 0, now)

	stored, err := repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if err := repo.UpdateTask(ctx, stored); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if err := stored.UpdateDetails("Renamed", "", domain.PriorityHigh, nil, now.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateDetails() error = %v", err)
	}
	if err := repo.UpdateTask(ctx, stored); err != nil {
		t.Fatalf("UpdateTask(renamed) error = %v", err)
	}

	events, err := repo.ListProjectChangeEvents(ctx, project.ID, 10)
	if err != nil {
		t.Fatalf("ListProjectChangeEvents() error = %v", err)
	}
	if len(events) != 2 || events[0].Operation != domain.ChangeOperationUpdate {
		t.Fatalf("expected create plus one update event, got %#v", events)
	}
	if got := events[0].Metadata["changed_fields"]; got != "title,priority,labels" {
		t.Fatalf("changed_fields = %q", got)
	}
}
