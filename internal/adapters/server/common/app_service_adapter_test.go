package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hylla/dragboard/internal/adapters/storage/sqlite"
	"github.com/hylla/dragboard/internal/app"
	"github.com/hylla/dragboard/internal/domain"
)

// newSeededAdapter builds one adapter over an in-memory store seeded with the demo board.
func newSeededAdapter(t *testing.T, opts ...AdapterOption) (*AppServiceAdapter, domain.Project) {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
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
	}, func() time.Time {
		return time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	}, app.ServiceConfig{})
	project, err := svc.SeedDemo(context.Background())
	if err != nil {
		t.Fatalf("SeedDemo() error = %v", err)
	}
	opts = append([]AdapterOption{WithReadinessProbe(repo.Ping)}, opts...)
	return NewAppServiceAdapter(svc, opts...), project
}

// TestAppServiceAdapterGetBoard verifies lane order, card order, and lane overrides.
func TestAppServiceAdapterGetBoard(t *testing.T) {
	adapter, project := newSeededAdapter(t, WithLaneSettings(map[domain.Lane]LaneSettings{
		domain.LaneNotStarted: {Title: "Backlog", WIPLimit: 2},
	}))

	got, err := adapter.GetBoard(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("GetBoard() error = %v", err)
	}
	if got.ProjectID != project.ID || got.TaskCount != 7 {
		t.Fatalf("board = %#v, want project %q with 7 tasks", got, project.ID)
	}
	if len(got.Lanes) != 4 {
		t.Fatalf("len(lanes) = %d, want 4", len(got.Lanes))
	}
	first := got.Lanes[0]
	if first.Lane != string(domain.LaneNotStarted) || first.Title != "Backlog" {
		t.Fatalf("first lane = %q/%q, want not-started/Backlog", first.Lane, first.Title)
	}
	if !first.OverWIPLimit {
		t.Fatalf("OverWIPLimit = false, want true for 3 cards over limit 2")
	}
	if got.Lanes[3].Title != "Done" {
		t.Fatalf("done title = %q, want Done", got.Lanes[3].Title)
	}
	for idx, card := range first.Cards {
		if card.Position != idx {
			t.Fatalf("card %q position = %d, want %d", card.ID, card.Position, idx)
		}
	}
}

// TestAppServiceAdapterMoveTask verifies moves, default append, and actor attribution.
func TestAppServiceAdapterMoveTask(t *testing.T) {
	ctx := context.Background()
	adapter, project := newSeededAdapter(t)
	before, err := adapter.GetBoard(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetBoard() error = %v", err)
	}
	taskID := before.Lanes[0].Cards[0].ID

	result, err := adapter.MoveTask(ctx, MoveTaskRequest{
		TaskID:    taskID,
		Lane:      "done",
		ActorID:   "agent-7",
		ActorType: ActorTypeAgent,
	})
	if err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if !result.Moved || result.FromLane != "not-started" || result.Lane != "done" || result.Position != 1 {
		t.Fatalf("result = %#v, want appended move into done at 1", result)
	}
	if got := len(result.Board.Lanes[0].Cards); got != 2 {
		t.Fatalf("not-started cards = %d, want 2", got)
	}

	events, err := adapter.ListActivity(ctx, ActivityRequest{ProjectID: project.ID, Limit: 1})
	if err != nil {
		t.Fatalf("ListActivity() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Operation != "move" || events[0].ActorID != "agent-7" || events[0].ActorType != ActorTypeAgent {
		t.Fatalf("latest event = %#v, want move by agent-7", events[0])
	}

	zero := 0
	again, err := adapter.MoveTask(ctx, MoveTaskRequest{TaskID: taskID, Lane: "done", Position: &zero})
	if err != nil {
		t.Fatalf("MoveTask(reorder) error = %v", err)
	}
	if again.Position != 0 || !again.Moved {
		t.Fatalf("reorder result = %#v, want position 0", again)
	}

	same, err := adapter.MoveTask(ctx, MoveTaskRequest{TaskID: taskID, Lane: "done", Position: &zero})
	if err != nil {
		t.Fatalf("MoveTask(no-op) error = %v", err)
	}
	if same.Moved {
		t.Fatalf("Moved = true, want false for drop onto own slot")
	}
}

// TestAppServiceAdapterErrorMapping verifies transport sentinels for invalid input.
func TestAppServiceAdapterErrorMapping(t *testing.T) {
	ctx := context.Background()
	adapter, project := newSeededAdapter(t)
	negative := -1

	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{
			name: "board missing project id",
			run: func() error {
				_, err := adapter.GetBoard(ctx, " ")
				return err
			},
			want: ErrInvalidRequest,
		},
		{
			name: "board unknown project",
			run: func() error {
				_, err := adapter.GetBoard(ctx, "missing")
				return err
			},
			want: ErrNotFound,
		},
		{
			name: "move invalid lane",
			run: func() error {
				_, err := adapter.MoveTask(ctx, MoveTaskRequest{TaskID: "id-2", Lane: "archive"})
				return err
			},
			want: ErrInvalidRequest,
		},
		{
			name: "move negative position",
			run: func() error {
				_, err := adapter.MoveTask(ctx, MoveTaskRequest{TaskID: "id-2", Lane: "done", Position: &negative})
				return err
			},
			want: ErrInvalidRequest,
		},
		{
			name: "move unknown task",
			run: func() error {
				_, err := adapter.MoveTask(ctx, MoveTaskRequest{TaskID: "nope", Lane: "done"})
				return err
			},
			want: ErrNotFound,
		},
		{
			name: "activity unknown project",
			run: func() error {
				_, err := adapter.ListActivity(ctx, ActivityRequest{ProjectID: "missing"})
				return err
			},
			want: ErrNotFound,
		},
		{
			name: "activity negative limit",
			run: func() error {
				_, err := adapter.ListActivity(ctx, ActivityRequest{ProjectID: project.ID, Limit: -1})
				return err
			},
			want: ErrInvalidRequest,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestAppServiceAdapterListProjectsAndReady verifies project listing and readiness probing.
func TestAppServiceAdapterListProjectsAndReady(t *testing.T) {
	ctx := context.Background()
	adapter, project := newSeededAdapter(t)

	projects, err := adapter.ListProjects(ctx, false)
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 1 || projects[0].ID != project.ID || projects[0].Slug == "" {
		t.Fatalf("projects = %#v, want seeded project", projects)
	}
	if err := adapter.Ready(ctx); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}

	var nilAdapter *AppServiceAdapter
	if err := nilAdapter.Ready(ctx); err == nil {
		t.Fatalf("Ready() on nil adapter error = nil, want non-nil")
	}
	if _, err := nilAdapter.ListProjects(ctx, false); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("ListProjects() on nil adapter error = %v, want ErrInvalidRequest", err)
	}
}

// TestMapAppError verifies deterministic sentinel mapping.
func TestMapAppError(t *testing.T) {
	if mapAppError("op", nil) != nil {
		t.Fatalf("mapAppError(nil) != nil")
	}
	if err := mapAppError("op", app.ErrTaskArchived); !errors.Is(err, ErrConflict) {
		t.Fatalf("mapAppError(archived) = %v, want ErrConflict", err)
	}
	boom := errors.New("boom")
	err := mapAppError("op", boom)
	if !errors.Is(err, boom) || errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrNotFound) {
		t.Fatalf("mapAppError(boom) = %v, want passthrough", err)
	}
}
