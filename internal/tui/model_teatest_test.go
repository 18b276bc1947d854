package tui

import (
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/exp/teatest/v2"
	"github.com/hylla/dragboard/internal/domain"
)

func waitForOutput(t *testing.T, tm *teatest.TestModel, want string) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), want)
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(10*time.Millisecond))
}

// TestModelWithTeatest verifies the board renders and quits.
func TestModelWithTeatest(t *testing.T) {
	tm := teatest.NewTestModel(t, NewModel(newBoardFixture(t)), teatest.WithInitialTermSize(160, 35))
	t.Cleanup(func() {
		_ = tm.Quit()
	})

	waitForOutput(t, tm, "Draft schema")
	waitForOutput(t, tm, "Roadmap")

	tm.Send(tea.KeyPressMsg{Code: 'q', Text: "q"})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

// TestModelWithTeatestHelpAndWIPWarning verifies help and lane limit warnings render.
func TestModelWithTeatestHelpAndWIPWarning(t *testing.T) {
	m := NewModel(newBoardFixture(t), WithLaneSettings(map[domain.Lane]LaneSettings{
		domain.LaneNotStarted: {Title: "Backlog", WIPLimit: 1},
	}))
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(180, 40))
	t.Cleanup(func() {
		_ = tm.Quit()
	})

	waitForOutput(t, tm, "WIP limit exceeded")

	tm.Send(tea.KeyPressMsg{Code: '?', Text: "?"})
	waitForOutput(t, tm, "dragboard help")

	tm.Send(tea.KeyPressMsg{Code: tea.KeyEscape})
	tm.Send(tea.KeyPressMsg{Code: ']', Text: "]"})
	waitForOutput(t, tm, "moved")

	tm.Send(tea.KeyPressMsg{Code: 'q', Text: "q"})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}
