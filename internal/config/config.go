package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	charmLog "github.com/charmbracelet/log"
	"github.com/hylla/dragboard/internal/board"
	"github.com/hylla/dragboard/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

type DeleteMode string

const (
	DeleteModeArchive DeleteMode = "archive"
	DeleteModeHard    DeleteMode = "hard"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Delete   DeleteConfig   `toml:"delete"`
	Board    BoardConfig    `toml:"board"`
	Drag     DragConfig     `toml:"drag"`
	Server   ServerConfig   `toml:"server"`
	Keys     KeyConfig      `toml:"keys"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the logfmt file sink used in dev mode.
// An empty Dir resolves to .dragboard/log under the workspace root.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type DeleteConfig struct {
	DefaultMode DeleteMode `toml:"default_mode"`
}

type BoardConfig struct {
	Lanes           []LaneConfig `toml:"lanes"`
	ShowWIPWarnings bool         `toml:"show_wip_warnings"`
	ShowLabels      bool         `toml:"show_labels"`
	DefaultProject  string       `toml:"default_project"`
}

// LaneConfig overrides the display name and WIP limit of one fixed lane.
type LaneConfig struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	WIPLimit int    `toml:"wip_limit"`
}

type DragConfig struct {
	Placement string `toml:"placement"` // append | pointer
	Mouse     bool   `toml:"mouse"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// KeyConfig overrides TUI key bindings. Blank values keep the defaults.
type KeyConfig struct {
	MoveTaskLeft  string `toml:"move_task_left"`
	MoveTaskRight string `toml:"move_task_right"`
	ActivityLog   string `toml:"activity_log"`
	CopyID        string `toml:"copy_id"`
}

func defaultLanes() []LaneConfig {
	out := make([]LaneConfig, 0, len(domain.Lanes()))
	for _, lane := range domain.Lanes() {
		out = append(out, LaneConfig{ID: string(lane), Name: lane.Title()})
	}
	return out
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
			},
		},
		Delete: DeleteConfig{
			DefaultMode: DeleteModeArchive,
		},
		Board: BoardConfig{
			Lanes:           defaultLanes(),
			ShowWIPWarnings: true,
			ShowLabels:      true,
		},
		Drag: DragConfig{
			Placement: string(board.PlacementAppend),
			Mouse:     true,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Keys: KeyConfig{
			MoveTaskLeft:  "[",
			MoveTaskRight: "]",
			ActivityLog:   "g",
			CopyID:        "y",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// normalize trims free-form values and canonicalizes lane ids in place.
func (c *Config) normalize() {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Drag.Placement = strings.ToLower(strings.TrimSpace(c.Drag.Placement))
	c.Board.DefaultProject = strings.TrimSpace(c.Board.DefaultProject)
	for idx := range c.Board.Lanes {
		lane := &c.Board.Lanes[idx]
		lane.Name = strings.TrimSpace(lane.Name)
		if parsed, err := domain.ParseLane(lane.ID); err == nil {
			lane.ID = string(parsed)
		} else {
			lane.ID = strings.TrimSpace(lane.ID)
		}
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if _, err := charmLog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	switch c.Delete.DefaultMode {
	case DeleteModeArchive, DeleteModeHard:
	default:
		return fmt.Errorf("invalid delete.default_mode: %q", c.Delete.DefaultMode)
	}

	seenLane := map[domain.Lane]struct{}{}
	for idx, lane := range c.Board.Lanes {
		parsed, err := domain.ParseLane(lane.ID)
		if err != nil {
			return fmt.Errorf("board.lanes[%d].id %q is not one of %v", idx, lane.ID, domain.Lanes())
		}
		if lane.WIPLimit < 0 {
			return fmt.Errorf("board.lanes[%d].wip_limit must be >= 0", idx)
		}
		if _, ok := seenLane[parsed]; ok {
			return fmt.Errorf("board.lanes[%d].id is duplicated: %s", idx, parsed)
		}
		seenLane[parsed] = struct{}{}
	}

	if _, err := board.ParsePlacement(c.Drag.Placement); err != nil {
		return fmt.Errorf("invalid drag.placement: %w", err)
	}

	if bind := strings.TrimSpace(c.Server.HTTPBind); bind != "" && !strings.Contains(bind, ":") {
		return fmt.Errorf("invalid server.http_bind: %q (want host:port)", c.Server.HTTPBind)
	}

	return nil
}

// LaneOverrides returns configured lane settings keyed by lane.
// Lanes absent from the file keep their default titles and no WIP limit.
func (c Config) LaneOverrides() map[domain.Lane]LaneConfig {
	out := make(map[domain.Lane]LaneConfig, len(c.Board.Lanes))
	for _, lane := range c.Board.Lanes {
		parsed, err := domain.ParseLane(lane.ID)
		if err != nil {
			continue
		}
		if lane.Name == "" {
			lane.Name = parsed.Title()
		}
		lane.ID = string(parsed)
		out[parsed] = lane
	}
	return out
}

// Placement returns the validated cross-lane drop placement.
func (c Config) Placement() board.Placement {
	placement, err := board.ParsePlacement(c.Drag.Placement)
	if err != nil {
		return board.PlacementAppend
	}
	return placement
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Encode renders cfg as TOML in the layout Load reads.
func Encode(cfg Config) ([]byte, error) {
	out, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode toml: %w", err)
	}
	return out, nil
}

// ErrConfigExists is returned by WriteFile when path exists and overwrite is false.
var ErrConfigExists = errors.New("config file already exists")

// WriteFile validates cfg and writes it to path, creating parent directories.
func WriteFile(path string, cfg Config, overwrite bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat config: %w", err)
		}
	}
	content, err := Encode(cfg)
	if err != nil {
		return err
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
