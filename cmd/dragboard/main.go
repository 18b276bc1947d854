package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	serveradapter "github.com/hylla/dragboard/internal/adapters/server"
	servercommon "github.com/hylla/dragboard/internal/adapters/server/common"
	"github.com/hylla/dragboard/internal/adapters/storage/sqlite"
	"github.com/hylla/dragboard/internal/app"
	"github.com/hylla/dragboard/internal/config"
	"github.com/hylla/dragboard/internal/domain"
	"github.com/hylla/dragboard/internal/platform"
	"github.com/hylla/dragboard/internal/tui"
	"github.com/spf13/cobra"
)

// version is stamped at build time.
var version = "dev"

// program is the part of tea.Program the CLI needs.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the TUI program. Tests replace it.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// rootOptions holds the global flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// run executes the command tree for args. fang renders errors to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetIn(os.Stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root,
		fang.WithVersion(version),
		fang.WithoutManpage(),
		fang.WithoutCompletions(),
	)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{
		appName: platform.DefaultAppName,
		devMode: version == "dev",
	}
	if envDev, ok := parseBoolEnv("DRAGBOARD_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("DRAGBOARD_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}

	root := &cobra.Command{
		Use:   "dragboard",
		Short: "A local kanban board you rearrange by dragging cards",
		Long: "dragboard opens a terminal board for the selected project. Drag cards with the mouse,\n" +
			"or move them with [ ] { }. Moves show immediately and roll back if saving fails.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommand(opts, "tui", stderr, func(env *runtimeEnv) error {
				return runTUI(env)
			})
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newPathsCommand(opts, stdout),
		newServeCommand(opts, stderr),
		newMoveCommand(opts, stdout, stderr),
		newActivityCommand(opts, stdout, stderr),
		newSeedCommand(opts, stdout, stderr),
		newExportCommand(opts, stdout, stderr),
		newImportCommand(opts, stderr),
		newConfigCommand(opts, stdout),
	)
	return root
}

func newPathsCommand(opts *rootOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and log locations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := resolvePaths(opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(stdout, "log_dir: %s\n", paths.LogDir)
			_, _ = fmt.Fprintf(stdout, "snapshot: %s\n", paths.SnapshotPath)
			return nil
		},
	}
}

func newConfigCommand(opts *rootOptions, stdout io.Writer) *cobra.Command {
	var (
		initFile bool
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Long:  "Print the effective configuration as TOML. With --init, write it to the config path instead.",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			loaded, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if initFile {
				if err := config.WriteFile(loaded.configPath, loaded.cfg, force); err != nil {
					return fmt.Errorf("init config: %w", err)
				}
				_, _ = fmt.Fprintf(stdout, "wrote %s\n", loaded.configPath)
				return nil
			}
			content, err := config.Encode(loaded.cfg)
			if err != nil {
				return err
			}
			_, err = stdout.Write(content)
			return err
		},
	}
	cmd.Flags().BoolVar(&initFile, "init", false, "write the effective configuration to the config path")
	cmd.Flags().BoolVar(&force, "force", false, "with --init, overwrite an existing file")
	return cmd
}

func newServeCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP and MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommand(opts, "serve", stderr, func(env *runtimeEnv) error {
				serverCfg := serveradapter.Config{
					HTTPBind:      firstNonEmpty(httpBind, env.cfg.Server.HTTPBind),
					APIEndpoint:   firstNonEmpty(apiEndpoint, env.cfg.Server.APIEndpoint),
					MCPEndpoint:   firstNonEmpty(mcpEndpoint, env.cfg.Server.MCPEndpoint),
					ServerName:    env.appName,
					ServerVersion: version,
				}
				adapter := servercommon.NewAppServiceAdapter(
					env.svc,
					servercommon.WithLaneSettings(serverLaneSettings(env.cfg)),
					servercommon.WithReadinessProbe(env.repo.Ping),
				)
				env.logger.Info("serve endpoints resolved", "http_bind", serverCfg.HTTPBind, "api", serverCfg.APIEndpoint, "mcp", serverCfg.MCPEndpoint)
				return serveCommandRunner(cmd.Context(), serverCfg, serveradapter.Dependencies{Boards: adapter, Logger: env.logger})
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (defaults to server.http_bind)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint (defaults to server.api_endpoint)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint (defaults to server.mcp_endpoint)")
	return cmd
}

func newMoveCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		position  int
		actorID   string
		actorType string
	)
	cmd := &cobra.Command{
		Use:   "move <task-id> <lane>",
		Short: "Move one task to a lane and persist it",
		Long:  "Move one task to a lane. Without --position the task goes to the end of the lane.\nLanes: " + laneList(),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lane, err := domain.ParseLane(args[1])
			if err != nil {
				return fmt.Errorf("parse lane: %w", err)
			}
			return runCommand(opts, "move", stderr, func(env *runtimeEnv) error {
				ctx := app.WithMutationActor(cmd.Context(), app.MutationActor{
					ActorID:   actorID,
					ActorType: domain.ActorType(actorType),
				})
				target := position
				if target < 0 {
					if target, err = appendPosition(ctx, env.svc, args[0], lane); err != nil {
						return err
					}
				}
				moved, err := env.svc.MoveTask(ctx, args[0], lane, target)
				if err != nil {
					return fmt.Errorf("move task: %w", err)
				}
				_, _ = fmt.Fprintf(stdout, "moved %q to %s at position %d\n", moved.Title, moved.Lane, moved.Position)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&position, "position", -1, "zero-based position in the target lane (default: end)")
	cmd.Flags().StringVar(&actorID, "actor", domain.DefaultActorID, "actor id recorded in the activity log")
	cmd.Flags().StringVar(&actorType, "actor-type", string(domain.ActorTypeUser), "actor type: user, agent, or system")
	return cmd
}

// appendPosition returns the index that places taskID last in lane.
func appendPosition(ctx context.Context, svc *app.Service, taskID string, lane domain.Lane) (int, error) {
	task, err := svc.GetTask(ctx, taskID)
	if err != nil {
		return 0, fmt.Errorf("get task: %w", err)
	}
	model, _, err := svc.LoadBoard(ctx, task.ProjectID)
	if err != nil {
		return 0, fmt.Errorf("load board: %w", err)
	}
	n := len(model.Tasks(lane))
	if task.Lane == lane {
		n--
	}
	return max(n, 0), nil
}

func newActivityCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity [project]",
		Short: "Print recent task activity for a project (id or slug)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(opts, "activity", stderr, func(env *runtimeEnv) error {
				ref := env.cfg.Board.DefaultProject
				if len(args) == 1 {
					ref = args[0]
				}
				project, err := resolveProject(cmd.Context(), env.svc, ref)
				if err != nil {
					return err
				}
				events, err := env.svc.ListProjectChangeEvents(cmd.Context(), project.ID, limit)
				if err != nil {
					return fmt.Errorf("list activity: %w", err)
				}
				if len(events) == 0 {
					_, _ = fmt.Fprintf(stdout, "no activity for %s\n", project.Name)
					return nil
				}
				for _, event := range events {
					_, _ = fmt.Fprintln(stdout, formatActivityLine(event))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of events")
	return cmd
}

// formatActivityLine renders one event as a single plain-text row.
func formatActivityLine(event domain.ChangeEvent) string {
	detail := strings.TrimSpace(event.Metadata["title"])
	if event.Operation == domain.ChangeOperationMove {
		detail = fmt.Sprintf("%s:%s -> %s:%s",
			event.Metadata["from_lane"], event.Metadata["from_position"],
			event.Metadata["to_lane"], event.Metadata["to_position"])
	}
	line := fmt.Sprintf("%s  %-7s  %s", event.OccurredAt.UTC().Format(time.RFC3339), event.Operation, event.TaskID)
	if detail != "" {
		line += "  " + detail
	}
	return line + fmt.Sprintf("  by %s (%s)", event.ActorID, event.ActorType)
}

// resolveProject finds a project by id or slug. An empty ref picks the first project.
func resolveProject(ctx context.Context, svc *app.Service, ref string) (domain.Project, error) {
	projects, err := svc.ListProjects(ctx, false)
	if err != nil {
		return domain.Project{}, fmt.Errorf("list projects: %w", err)
	}
	if len(projects) == 0 {
		return domain.Project{}, errors.New("no projects; run `dragboard seed` to create one")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return projects[0], nil
	}
	for _, project := range projects {
		if project.ID == ref || project.Slug == ref {
			return project, nil
		}
	}
	return domain.Project{}, fmt.Errorf("project %q: %w", ref, app.ErrNotFound)
}

func newSeedCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create a demo project with tasks in every lane",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommand(opts, "seed", stderr, func(env *runtimeEnv) error {
				project, err := env.svc.SeedDemo(cmd.Context())
				if err != nil {
					return fmt.Errorf("seed demo project: %w", err)
				}
				_, _ = fmt.Fprintf(stdout, "seeded project %q (%s)\n", project.Name, project.ID)
				return nil
			})
		},
	}
}

func newExportCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		outPath         string
		includeArchived bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of every project and task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommand(opts, "export", stderr, func(env *runtimeEnv) error {
				return runExport(cmd.Context(), env.svc, outPath, includeArchived, stdout)
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().BoolVar(&includeArchived, "include-archived", true, "include archived projects and tasks")
	return cmd
}

func newImportCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a JSON snapshot written by export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			return runCommand(opts, "import", stderr, func(env *runtimeEnv) error {
				return runImport(cmd.Context(), env.svc, inPath)
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

// runExport encodes a snapshot to outPath, or stdout for "-".
func runExport(ctx context.Context, svc *app.Service, outPath string, includeArchived bool, stdout io.Writer) error {
	snap, err := svc.ExportSnapshot(ctx, includeArchived)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "-" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// runImport decodes and applies one snapshot file.
func runImport(ctx context.Context, svc *app.Service, inPath string) error {
	content, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return fmt.Errorf("decode snapshot json: %w", err)
	}
	if err := svc.ImportSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}

// runtimeEnv is the opened state shared by commands that touch the database.
type runtimeEnv struct {
	appName    string
	configPath string
	paths      platform.Paths
	cfg        config.Config
	logger     *runtimeLogger
	repo       *sqlite.Repository
	svc        *app.Service
}

// runCommand opens the runtime, runs fn, and closes everything afterwards.
func runCommand(opts *rootOptions, command string, stderr io.Writer, fn func(*runtimeEnv) error) error {
	env, err := openRuntime(opts, command, stderr)
	if err != nil {
		return err
	}
	defer env.close(stderr)

	env.logger.Info("command flow start", "command", command)
	if err := fn(env); err != nil {
		env.logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	env.logger.Info("command flow complete", "command", command)
	return nil
}

func resolvePaths(opts *rootOptions) (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
}

// loadedConfig is the result of resolving paths and reading the config file.
type loadedConfig struct {
	paths      platform.Paths
	configPath string
	cfg        config.Config
}

// loadConfig applies flag, then env, then platform defaults for the config
// and database paths, and reads the config file over compiled defaults.
// An explicit --db or DRAGBOARD_DB_PATH wins over database.path in the file.
func loadConfig(opts *rootOptions) (loadedConfig, error) {
	paths, err := resolvePaths(opts)
	if err != nil {
		return loadedConfig{}, err
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = firstNonEmpty(os.Getenv("DRAGBOARD_CONFIG"), paths.ConfigPath)
	}
	dbPath := firstNonEmpty(opts.dbPath, os.Getenv("DRAGBOARD_DB_PATH"))
	dbOverridden := dbPath != ""
	if !dbOverridden {
		dbPath = paths.DBPath
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return loadedConfig{}, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	return loadedConfig{paths: paths, configPath: configPath, cfg: cfg}, nil
}

// openRuntime loads config, then opens logging, storage, and the service.
func openRuntime(opts *rootOptions, command string, stderr io.Writer) (*runtimeEnv, error) {
	loaded, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	paths, configPath, cfg := loaded.paths, loaded.configPath, loaded.cfg

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		// The board owns the terminal; runtime logs go to the dev file only.
		logger.SetConsoleEnabled(false)
	}

	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	logger.Info("configuration loaded", "config_path", configPath, "db_path", cfg.Database.Path, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	logger.Info("sqlite repository ready", "db_path", cfg.Database.Path, "migrations", "ensured")

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		DefaultDeleteMode: app.DeleteMode(cfg.Delete.DefaultMode),
	})
	logger.Debug("application service initialized", "default_delete_mode", cfg.Delete.DefaultMode)

	return &runtimeEnv{
		appName:    opts.appName,
		configPath: configPath,
		paths:      paths,
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		svc:        svc,
	}, nil
}

// close releases storage and the log file.
func (e *runtimeEnv) close(stderr io.Writer) {
	if err := e.repo.Close(); err != nil {
		e.logger.Warn("sqlite close failed", "db_path", e.cfg.Database.Path, "err", err)
	}
	if err := e.logger.Close(); err != nil && e.logger.shouldLogToSink(e.logger.consoleSink) {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// runTUI starts the board program.
func runTUI(env *runtimeEnv) error {
	m := tui.NewModel(env.svc, tuiOptions(env.cfg, env.logger)...)
	env.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		return fmt.Errorf("run tui program: %w", err)
	}
	return nil
}

// tuiOptions maps persisted config onto model options.
func tuiOptions(cfg config.Config, logger tui.Logger) []tui.Option {
	lanes := map[domain.Lane]tui.LaneSettings{}
	for lane, override := range cfg.LaneOverrides() {
		lanes[lane] = tui.LaneSettings{Title: override.Name, WIPLimit: override.WIPLimit}
	}
	return []tui.Option{
		tui.WithLaneSettings(lanes),
		tui.WithPlacement(cfg.Placement()),
		tui.WithWIPWarnings(cfg.Board.ShowWIPWarnings),
		tui.WithLabels(cfg.Board.ShowLabels),
		tui.WithMouse(cfg.Drag.Mouse),
		tui.WithDefaultProject(cfg.Board.DefaultProject),
		tui.WithKeyConfig(tui.KeyConfig{
			MoveTaskLeft:  cfg.Keys.MoveTaskLeft,
			MoveTaskRight: cfg.Keys.MoveTaskRight,
			ActivityLog:   cfg.Keys.ActivityLog,
			CopyID:        cfg.Keys.CopyID,
		}),
		tui.WithLogger(logger),
	}
}

func serverLaneSettings(cfg config.Config) map[domain.Lane]servercommon.LaneSettings {
	out := map[domain.Lane]servercommon.LaneSettings{}
	for lane, override := range cfg.LaneOverrides() {
		out[lane] = servercommon.LaneSettings{Title: override.Name, WIPLimit: override.WIPLimit}
	}
	return out
}

func laneList() string {
	names := make([]string, 0, len(domain.Lanes()))
	for _, lane := range domain.Lanes() {
		names = append(names, string(lane))
	}
	return strings.Join(names, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// parseBoolEnv reads a boolean env var; ok is false when unset or invalid.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
