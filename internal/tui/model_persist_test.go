package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/hylla/dragboard/internal/adapters/storage/sqlite"
	"github.com/hylla/dragboard/internal/app"
	"github.com/hylla/dragboard/internal/domain"
)

// TestModelQueuedMovesPersistInApplyOrder verifies rapid moves reach storage in apply order.
func TestModelQueuedMovesPersistInApplyOrder(t *testing.T) {
	ctx := context.Background()
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
	}, nil, app.ServiceConfig{})
	project, err := svc.SeedDemo(ctx)
	if err != nil {
		t.Fatalf("SeedDemo() error = %v", err)
	}

	m := loadReadyModel(t, NewModel(svc))
	taskID, ok := m.selectedTaskID()
	if !ok {
		t.Fatal("expected a selected task after load")
	}

	m, first := updateOnly(t, m, tea.KeyPressMsg{Code: ']', Text: "]"})
	m, second := updateOnly(t, m, tea.KeyPressMsg{Code: ']', Text: "]"})
	if first == nil {
		t.Fatal("expected a write for the first move")
	}
	if second != nil {
		t.Fatal("expected the second write to wait for the first")
	}
	if lane, _, _ := m.engine.Board().IndexOf(taskID); lane != domain.LaneReview || m.engine.Pending() != 2 {
		t.Fatalf("expected task in review with two pending moves, lane=%s pending=%d", lane, m.engine.Pending())
	}

	m, next := updateOnly(t, m, first())
	if next == nil {
		t.Fatal("expected the queued write to start once the first settled")
	}
	m, tail := updateOnly(t, m, next())
	if tail != nil {
		t.Fatal("expected no further writes")
	}
	if m.engine.Pending() != 0 {
		t.Fatalf("expected all moves settled, pending=%d", m.engine.Pending())
	}

	stored, _, err := svc.LoadBoard(ctx, project.ID)
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	if !stored.Equal(m.engine.Board()) {
		t.Fatalf("stored board %s, local board %s", stored, m.engine.Board())
	}
	if lane, _, _ := stored.IndexOf(taskID); lane != domain.LaneReview {
		t.Fatalf("expected stored task in review, got %s", lane)
	}
}

// TestModelRollbackDropsQueuedMoves verifies a failed write discards moves queued behind it.
func TestModelRollbackDropsQueuedMoves(t *testing.T) {
	svc := newBoardFixture(t)
	svc.persistErr = errors.New("disk full")
	m := loadReadyModel(t, NewModel(svc))
	before := m.engine.Board().Snapshot()

	m, first := updateOnly(t, m, tea.KeyPressMsg{Code: ']', Text: "]"})
	m, second := updateOnly(t, m, tea.KeyPressMsg{Code: ']', Text: "]"})
	if first == nil || second != nil {
		t.Fatalf("expected one write in flight, first=%t second=%t", first != nil, second != nil)
	}

	m, reload := updateOnly(t, m, first())
	if !m.engine.Board().Equal(before) {
		t.Fatalf("expected board restored, got %s", m.engine.Board())
	}
	if m.engine.Pending() != 0 || len(m.persists.waiting) != 0 || m.persists.inFlight != 0 {
		t.Fatalf("expected queue drained, pending=%d waiting=%d inFlight=%d", m.engine.Pending(), len(m.persists.waiting), m.persists.inFlight)
	}
	if !strings.Contains(m.status, "rolled back") || !strings.Contains(m.status, "disk full") {
		t.Fatalf("expected rollback status, got %q", m.status)
	}
	if reload == nil {
		t.Fatal("expected a reload after rollback")
	}
	if _, ok := reload().(loadedMsg); !ok {
		t.Fatal("expected reload command to load the board")
	}
	if len(svc.actors) != 1 {
		t.Fatalf("expected only the first move written, got %d attempts", len(svc.actors))
	}
}

// TestModelEngineEventsDriveStatusAndHighlight verifies target and move notifications reach the view state.
func TestModelEngineEventsDriveStatusAndHighlight(t *testing.T) {
	m := loadReadyModel(t, NewModel(newBoardFixture(t), WithLaneSettings(map[domain.Lane]LaneSettings{
		domain.LaneReview: {Title: "QA"},
	})))

	card := cardRegion(t, m, "t2")
	m = applyMsg(t, m, tea.MouseClickMsg{X: int(card.Rect.Left) + 3, Y: int(card.Rect.Top), Button: tea.MouseLeft})
	review := laneRegion(t, m, domain.LaneReview).Rect.Center()
	m = applyMsg(t, m, tea.MouseMotionMsg{X: int(review.X), Y: int(review.Y), Button: tea.MouseLeft})
	if !m.drag.hasTarget || m.drag.target != domain.LaneReview {
		t.Fatalf("expected review highlighted, got %q (%t)", m.drag.target, m.drag.hasTarget)
	}
	if m.status != "drop into QA" {
		t.Fatalf("expected target status, got %q", m.status)
	}

	m, cmd := updateOnly(t, m, tea.MouseReleaseMsg{X: int(review.X), Y: int(review.Y), Button: tea.MouseLeft})
	if m.drag.hasTarget {
		t.Fatal("expected highlight cleared after drop")
	}
	if m.status != `moved "Wire storage" to QA` {
		t.Fatalf("expected applied status, got %q", m.status)
	}
	if id, _ := m.selectedTaskID(); id != "t2" {
		t.Fatalf("expected selection on dropped task, got %q", id)
	}
	if len(m.events.queue) != 0 {
		t.Fatalf("expected events drained, got %d", len(m.events.queue))
	}
	_ = applyCmd(t, m, cmd)
}
