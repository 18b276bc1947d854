package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/dragboard/internal/app"
	"github.com/hylla/dragboard/internal/domain"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// connPragmas run on every pooled connection. The TUI and `serve` may share
// one file, so writers wait on the lock instead of failing fast.
const connPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Repository stores projects, tasks, and the change-event ledger in sqlite.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path and migrates it.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	return openDB("file:"+path+"?"+connPragmas, 0)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	// A second pooled connection would see its own empty database.
	return openDB("file::memory:?"+connPragmas, 1)
}

func openDB(dsn string, maxConns int) (*Repository, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database answers queries.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate creates the schema and adds attribution columns to older files.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			archived_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			lane TEXT NOT NULL,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL,
			labels_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			archived_at TEXT,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			actor_type TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project_lane_position ON tasks(project_id, lane, position);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_project_created_at ON change_events(project_id, created_at DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}

	taskAlterStatements := []string{
		`ALTER TABLE tasks ADD COLUMN created_by_actor TEXT NOT NULL DEFAULT 'dragboard-user'`,
		`ALTER TABLE tasks ADD COLUMN updated_by_actor TEXT NOT NULL DEFAULT 'dragboard-user'`,
		`ALTER TABLE tasks ADD COLUMN updated_by_type TEXT NOT NULL DEFAULT 'user'`,
	}
	for _, stmt := range taskAlterStatements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil && !isDuplicateColumnErr(err) {
			return fmt.Errorf("migrate sqlite tasks: %w", err)
		}
	}
	return nil
}

// CreateProject inserts p.
func (r *Repository) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects(id, slug, name, description, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Slug, p.Name, p.Description, ts(p.CreatedAt), ts(p.UpdatedAt), nullableTS(p.ArchivedAt))
	return err
}

// UpdateProject overwrites the stored project; app.ErrNotFound when absent.
func (r *Repository) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET slug = ?, name = ?, description = ?, updated_at = ?, archived_at = ?
		WHERE id = ?
	`, p.Slug, p.Name, p.Description, ts(p.UpdatedAt), nullableTS(p.ArchivedAt), p.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

func (r *Repository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, description, created_at, updated_at, archived_at
		FROM projects
		WHERE id = ?
	`, id)
	return scanProject(row)
}

// ListProjects returns projects in creation order.
func (r *Repository) ListProjects(ctx context.Context, includeArchived bool) ([]domain.Project, error) {
	query := `
		SELECT id, slug, name, description, created_at, updated_at, archived_at
		FROM projects
	`
	if !includeArchived {
		query += ` WHERE archived_at IS NULL`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const taskColumns = `id, project_id, lane, position, title, description, priority, labels_json,
	created_by_actor, updated_by_actor, updated_by_type, created_at, updated_at, archived_at`

// CreateTask inserts t and records a create event in the same transaction.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) error {
	labelsJSON, err := json.Marshal(t.Labels)
	if err != nil {
		return fmt.Errorf("encode task labels: %w", err)
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return createTaskTx(ctx, tx, t, labelsJSON)
	})
}

func createTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task, labelsJSON []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tasks(`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.ProjectID,
		string(t.Lane),
		t.Position,
		t.Title,
		t.Description,
		string(t.Priority),
		string(labelsJSON),
		chooseActorID(t.CreatedByActor),
		chooseActorID(t.UpdatedByActor, t.CreatedByActor),
		string(domain.NormalizeActorType(t.UpdatedByType)),
		ts(t.CreatedAt),
		ts(t.UpdatedAt),
		nullableTS(t.ArchivedAt),
	)
	if err != nil {
		return err
	}
	return insertTaskChangeEvent(ctx, tx, domain.ChangeEvent{
		ProjectID: t.ProjectID,
		TaskID:    t.ID,
		Operation: domain.ChangeOperationCreate,
		ActorID:   chooseActorID(t.CreatedByActor, t.UpdatedByActor),
		ActorType: t.UpdatedByType,
		Metadata: map[string]string{
			"lane":     string(t.Lane),
			"position": strconv.Itoa(t.Position),
			"title":    t.Title,
		},
		OccurredAt: t.CreatedAt,
	})
}

// UpdateTask writes one task; see UpdateTasks.
func (r *Repository) UpdateTask(ctx context.Context, t domain.Task) error {
	return r.UpdateTasks(ctx, []domain.Task{t})
}

// UpdateTasks writes every task and its change event in one transaction.
// Any missing task aborts the whole batch.
func (r *Repository) UpdateTasks(ctx context.Context, tasks []domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tasks {
			if err := updateTaskTx(ctx, tx, t); err != nil {
				return fmt.Errorf("update task %q: %w", t.ID, err)
			}
		}
		return nil
	})
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (r *Repository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func updateTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	labelsJSON, err := json.Marshal(t.Labels)
	if err != nil {
		return err
	}
	prev, err := getTaskByID(ctx, tx, t.ID)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET lane = ?, position = ?, title = ?, description = ?, priority = ?, labels_json = ?,
		    updated_by_actor = ?, updated_by_type = ?, updated_at = ?, archived_at = ?
		WHERE id = ?
	`,
		string(t.Lane),
		t.Position,
		t.Title,
		t.Description,
		string(t.Priority),
		string(labelsJSON),
		chooseActorID(t.UpdatedByActor, prev.UpdatedByActor),
		string(domain.NormalizeActorType(t.UpdatedByType)),
		ts(t.UpdatedAt),
		nullableTS(t.ArchivedAt),
		t.ID,
	)
	if err != nil {
		return err
	}
	if err := translateNoRows(res); err != nil {
		return err
	}

	op, metadata := classifyTaskTransition(prev, t)
	if op == domain.ChangeOperationUpdate && len(metadata) == 0 {
		return nil
	}
	return insertTaskChangeEvent(ctx, tx, domain.ChangeEvent{
		ProjectID:  t.ProjectID,
		TaskID:     t.ID,
		Operation:  op,
		ActorID:    chooseActorID(t.UpdatedByActor, prev.UpdatedByActor),
		ActorType:  t.UpdatedByType,
		Metadata:   metadata,
		OccurredAt: t.UpdatedAt,
	})
}

// GetTask returns the task with id, archived or not.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTaskByID(ctx, r.db, id)
}

// ListTasks returns a project's tasks ordered by lane and position.
func (r *Repository) ListTasks(ctx context.Context, projectID string, includeArchived bool) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = ?`
	if !includeArchived {
		query += ` AND archived_at IS NULL`
	}
	query += ` ORDER BY lane ASC, position ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// DeleteTask removes the row and keeps a delete event with its last lane.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return deleteTaskTx(ctx, tx, id)
	})
}

func deleteTaskTx(ctx context.Context, tx *sql.Tx, id string) error {
	task, err := getTaskByID(ctx, tx, id)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := translateNoRows(res); err != nil {
		return err
	}
	return insertTaskChangeEvent(ctx, tx, domain.ChangeEvent{
		ProjectID: task.ProjectID,
		TaskID:    task.ID,
		Operation: domain.ChangeOperationDelete,
		ActorID:   chooseActorID(task.UpdatedByActor, task.CreatedByActor),
		ActorType: task.UpdatedByType,
		Metadata: map[string]string{
			"lane":     string(task.Lane),
			"position": strconv.Itoa(task.Position),
			"title":    task.Title,
		},
		OccurredAt: time.Now().UTC(),
	})
}

// ListProjectChangeEvents returns up to limit events, newest first.
func (r *Repository) ListProjectChangeEvents(ctx context.Context, projectID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, task_id, operation, actor_id, actor_type, metadata_json, created_at
		FROM change_events
		WHERE project_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			opRaw       string
			actorType   string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &event.ProjectID, &event.TaskID, &opRaw, &event.ActorID, &actorType, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.Operation = normalizeChangeOperation(opRaw)
		event.ActorType = domain.NormalizeActorType(domain.ActorType(actorType))
		event.OccurredAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &event.Metadata); err != nil {
			return nil, fmt.Errorf("decode change_events.metadata_json: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func getTaskByID(ctx context.Context, q queryRower, id string) (domain.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

func insertTaskChangeEvent(ctx context.Context, execer execerContext, event domain.ChangeEvent) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode change event metadata: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO change_events(project_id, task_id, operation, actor_id, actor_type, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.ProjectID,
		event.TaskID,
		string(event.Operation),
		chooseActorID(event.ActorID),
		string(domain.NormalizeActorType(event.ActorType)),
		string(metadataJSON),
		ts(normalizeEventTS(event.OccurredAt)),
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

// classifyTaskTransition names an update: archive and restore win over move,
// and a lane or position change wins over field edits.
func classifyTaskTransition(prev, next domain.Task) (domain.ChangeOperation, map[string]string) {
	if prev.ArchivedAt == nil && next.ArchivedAt != nil {
		return domain.ChangeOperationArchive, map[string]string{"lane": string(next.Lane)}
	}
	if prev.ArchivedAt != nil && next.ArchivedAt == nil {
		return domain.ChangeOperationRestore, map[string]string{"lane": string(next.Lane)}
	}
	if prev.Lane != next.Lane || prev.Position != next.Position {
		return domain.ChangeOperationMove, map[string]string{
			"from_lane":     string(prev.Lane),
			"to_lane":       string(next.Lane),
			"from_position": strconv.Itoa(prev.Position),
			"to_position":   strconv.Itoa(next.Position),
		}
	}
	fields := changedTaskFields(prev, next)
	metadata := map[string]string{}
	if len(fields) > 0 {
		metadata["changed_fields"] = strings.Join(fields, ",")
	}
	return domain.ChangeOperationUpdate, metadata
}

// changedTaskFields identifies a deterministic set of meaningful changes for metadata.
func changedTaskFields(prev, next domain.Task) []string {
	changed := make([]string, 0)
	if prev.Title != next.Title {
		changed = append(changed, "title")
	}
	if prev.Description != next.Description {
		changed = append(changed, "description")
	}
	if prev.Priority != next.Priority {
		changed = append(changed, "priority")
	}
	if strings.Join(prev.Labels, "\x00") != strings.Join(next.Labels, "\x00") {
		changed = append(changed, "labels")
	}
	return changed
}

// chooseActorID returns the first non-empty actor id or the default local actor.
func chooseActorID(candidates ...string) string {
	for _, candidate := range candidates {
		if id := strings.TrimSpace(candidate); id != "" {
			return id
		}
	}
	return domain.DefaultActorID
}

// normalizeChangeOperation canonicalizes persisted operation values.
func normalizeChangeOperation(raw string) domain.ChangeOperation {
	switch op := domain.ChangeOperation(strings.TrimSpace(strings.ToLower(raw))); op {
	case domain.ChangeOperationCreate,
		domain.ChangeOperationUpdate,
		domain.ChangeOperationMove,
		domain.ChangeOperationArchive,
		domain.ChangeOperationRestore,
		domain.ChangeOperationDelete:
		return op
	default:
		return domain.ChangeOperationUpdate
	}
}

// normalizeEventTS ensures event timestamps are always populated and UTC-normalized.
func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (domain.Project, error) {
	var (
		p          domain.Project
		createdRaw string
		updatedRaw string
		archived   sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &createdRaw, &updatedRaw, &archived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Project{}, app.ErrNotFound
		}
		return domain.Project{}, err
	}
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	p.ArchivedAt = parseNullTS(archived)
	return p, nil
}

func scanTask(s scanner) (domain.Task, error) {
	var (
		t           domain.Task
		lane        string
		priority    string
		labelsRaw   string
		updatedType string
		createdRaw  string
		updatedRaw  string
		archivedRaw sql.NullString
	)
	if err := s.Scan(
		&t.ID,
		&t.ProjectID,
		&lane,
		&t.Position,
		&t.Title,
		&t.Description,
		&priority,
		&labelsRaw,
		&t.CreatedByActor,
		&t.UpdatedByActor,
		&updatedType,
		&createdRaw,
		&updatedRaw,
		&archivedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Lane = domain.Lane(lane)
	t.Priority = domain.Priority(priority)
	t.UpdatedByType = domain.NormalizeActorType(domain.ActorType(updatedType))
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	t.ArchivedAt = parseNullTS(archivedRaw)
	if err := json.Unmarshal([]byte(labelsRaw), &t.Labels); err != nil {
		return domain.Task{}, fmt.Errorf("decode labels_json: %w", err)
	}
	t.CreatedByActor = chooseActorID(t.CreatedByActor)
	t.UpdatedByActor = chooseActorID(t.UpdatedByActor, t.CreatedByActor)
	return t, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

// isDuplicateColumnErr reports whether the expected condition is satisfied.
func isDuplicateColumnErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
