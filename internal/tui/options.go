package tui

import (
	"github.com/atotto/clipboard"
	"github.com/hylla/dragboard/internal/board"
	"github.com/hylla/dragboard/internal/domain"
)

// LaneSettings overrides how one lane is labelled and limited.
type LaneSettings struct {
	Title    string
	WIPLimit int
}

// Logger receives TUI and drag-engine diagnostics.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
}

type discardLogger struct{}

func (discardLogger) Debug(any, ...any) {}
func (discardLogger) Info(any, ...any)  {}
func (discardLogger) Warn(any, ...any)  {}

// Option configures a Model.
type Option func(*Model)

// WithLaneSettings sets lane titles and WIP limits.
func WithLaneSettings(lanes map[domain.Lane]LaneSettings) Option {
	return func(m *Model) {
		for lane, settings := range lanes {
			if lane.Valid() {
				m.lanes[lane] = settings
			}
		}
	}
}

// WithPlacement sets where cross-lane drops land.
func WithPlacement(placement board.Placement) Option {
	return func(m *Model) {
		switch placement {
		case board.PlacementAppend, board.PlacementPointer:
			m.placement = placement
		}
	}
}

func WithWIPWarnings(enabled bool) Option {
	return func(m *Model) {
		m.showWIPWarnings = enabled
	}
}

func WithLabels(enabled bool) Option {
	return func(m *Model) {
		m.showLabels = enabled
	}
}

// WithMouse toggles pointer dragging. Keyboard moves always work.
func WithMouse(enabled bool) Option {
	return func(m *Model) {
		m.mouseEnabled = enabled
	}
}

// WithDefaultProject selects the project, by id or slug, shown first.
func WithDefaultProject(ref string) Option {
	return func(m *Model) {
		m.pendingProjectRef = ref
	}
}

// WithActor attributes TUI moves to actorID.
func WithActor(actorID string) Option {
	return func(m *Model) {
		if actorID != "" {
			m.actorID = actorID
		}
	}
}

func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

func WithLogger(logger Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

func defaultClipboard(text string) error {
	return clipboard.WriteAll(text)
}
