package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opsmind-ai/crewd/pkg/models"
)

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS task_logs (
	task_id        TEXT PRIMARY KEY,
	description    TEXT NOT NULL,
	agent_name     TEXT NOT NULL,
	tenant_id      TEXT NOT NULL,
	session_id     TEXT,
	parent_task_id TEXT,
	depth          INTEGER NOT NULL DEFAULT 0,
	delegated_by   TEXT,
	status         TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL,
	completed_at   TIMESTAMP,
	token_usage    INTEGER NOT NULL DEFAULT 0,
	estimated_cost REAL NOT NULL DEFAULT 0,
	model_used     TEXT,
	error          TEXT
);

CREATE TABLE IF NOT EXISTS execution_steps (
	task_id       TEXT NOT NULL,
	step_number   INTEGER NOT NULL,
	thought       TEXT,
	action        TEXT NOT NULL,
	action_detail TEXT,
	observation   TEXT,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (task_id, step_number)
);

CREATE TABLE IF NOT EXISTS agent_states (
	task_id      TEXT PRIMARY KEY,
	agent_name   TEXT NOT NULL,
	current_step INTEGER NOT NULL DEFAULT 0,
	max_steps    INTEGER NOT NULL,
	status       TEXT NOT NULL,
	scratchpad   TEXT,
	updated_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_messages (
	message_id     TEXT PRIMARY KEY,
	session_id     TEXT NOT NULL,
	task_id        TEXT NOT NULL,
	sender_agent   TEXT NOT NULL,
	receiver_agent TEXT,
	message_type   TEXT NOT NULL,
	content        TEXT NOT NULL,
	metadata       TEXT,
	status         TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS session_memories (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_name TEXT NOT NULL,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_task_logs_parent ON task_logs(parent_task_id);
CREATE INDEX IF NOT EXISTS idx_messages_task ON agent_messages(task_id);
CREATE INDEX IF NOT EXISTS idx_memories_session ON session_memories(session_id);
`

// OpenSQLite opens (and initializes) a SQLite store at the given path,
// creating parent directories as needed. WAL mode is enabled for concurrent
// reads.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{conn: conn, path: path}, nil
}

// CreateTask records a new task log entry.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *models.Task) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO task_logs (task_id, description, agent_name, tenant_id, session_id,
			parent_task_id, depth, delegated_by, status, created_at, token_usage,
			estimated_cost, model_used, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TaskID, t.Description, t.AgentName, t.TenantID, t.SessionID,
		t.ParentTaskID, t.Depth, t.DelegatedBy, string(t.Status), t.CreatedAt,
		t.TokenUsage, t.EstimatedCost, t.ModelUsed, t.Error)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.TaskID, err)
	}
	return nil
}

// GetTask fetches a task by id.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT task_id, description, agent_name, tenant_id, session_id,
			parent_task_id, depth, delegated_by, status, created_at, completed_at,
			token_usage, estimated_cost, model_used, error
		FROM task_logs WHERE task_id = ?`, taskID)

	var t models.Task
	var status string
	var sessionID, parentID, delegatedBy, modelUsed, errText sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&t.TaskID, &t.Description, &t.AgentName, &t.TenantID, &sessionID,
		&parentID, &t.Depth, &delegatedBy, &status, &t.CreatedAt, &completedAt,
		&t.TokenUsage, &t.EstimatedCost, &modelUsed, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query task %s: %w", taskID, err)
	}

	t.Status = models.TaskStatus(status)
	t.SessionID = sessionID.String
	t.ParentTaskID = parentID.String
	t.DelegatedBy = delegatedBy.String
	t.ModelUsed = modelUsed.String
	t.Error = errText.String
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

// UpdateTask applies a partial update, protecting terminal statuses.
func (s *SQLiteStore) UpdateTask(ctx context.Context, taskID string, upd TaskUpdate) error {
	current, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	var sets []string
	var args []any
	if upd.Status != nil {
		if current.Status.Terminal() && *upd.Status != current.Status {
			return ErrTerminal
		}
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
		if upd.Status.Terminal() && current.CompletedAt == nil {
			sets = append(sets, "completed_at = ?")
			args = append(args, time.Now())
		}
	}
	if upd.TokenUsage != nil {
		sets = append(sets, "token_usage = ?")
		args = append(args, *upd.TokenUsage)
	}
	if upd.EstimatedCost != nil {
		sets = append(sets, "estimated_cost = ?")
		args = append(args, *upd.EstimatedCost)
	}
	if upd.ModelUsed != nil {
		sets = append(sets, "model_used = ?")
		args = append(args, *upd.ModelUsed)
	}
	if upd.Error != nil {
		sets = append(sets, "error = ?")
		args = append(args, *upd.Error)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, taskID)
	query := "UPDATE task_logs SET " + strings.Join(sets, ", ") + " WHERE task_id = ?"
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}
	return nil
}

// AppendStep persists one completed reasoning step. Re-inserting a step
// number already present (a retry) is ignored.
func (s *SQLiteStore) AppendStep(ctx context.Context, taskID string, step models.ExecutionStep) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO execution_steps
			(task_id, step_number, thought, action, action_detail, observation, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		taskID, step.StepNumber, step.Thought, string(step.Action),
		step.ActionDetail, step.Observation, step.DurationMS)
	if err != nil {
		return fmt.Errorf("append step %d for task %s: %w", step.StepNumber, taskID, err)
	}
	return nil
}

// Steps returns a task's steps ordered by step number.
func (s *SQLiteStore) Steps(ctx context.Context, taskID string) ([]models.ExecutionStep, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT step_number, thought, action, action_detail, observation, duration_ms
		FROM execution_steps WHERE task_id = ? ORDER BY step_number`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query steps for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var steps []models.ExecutionStep
	for rows.Next() {
		var step models.ExecutionStep
		var action string
		if err := rows.Scan(&step.StepNumber, &step.Thought, &action,
			&step.ActionDetail, &step.Observation, &step.DurationMS); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		step.Action = models.StepAction(action)
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// CreateAgentState records a task's agent state, idempotently.
func (s *SQLiteStore) CreateAgentState(ctx context.Context, st *models.AgentState) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO agent_states
			(task_id, agent_name, current_step, max_steps, status, scratchpad, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.TaskID, st.AgentName, st.CurrentStep, st.MaxSteps,
		string(st.Status), st.Scratchpad, time.Now())
	if err != nil {
		return fmt.Errorf("insert agent state for task %s: %w", st.TaskID, err)
	}
	return nil
}

// UpdateAgentState applies a partial update.
func (s *SQLiteStore) UpdateAgentState(ctx context.Context, taskID string, upd AgentStateUpdate) error {
	var sets []string
	var args []any
	if upd.CurrentStep != nil {
		sets = append(sets, "current_step = ?")
		args = append(args, *upd.CurrentStep)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.Scratchpad != nil {
		sets = append(sets, "scratchpad = ?")
		args = append(args, *upd.Scratchpad)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now(), taskID)

	res, err := s.conn.ExecContext(ctx,
		"UPDATE agent_states SET "+strings.Join(sets, ", ")+" WHERE task_id = ?", args...)
	if err != nil {
		return fmt.Errorf("update agent state for task %s: %w", taskID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAgentState fetches the state for a task, with its steps attached.
func (s *SQLiteStore) GetAgentState(ctx context.Context, taskID string) (*models.AgentState, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT task_id, agent_name, current_step, max_steps, status, scratchpad
		FROM agent_states WHERE task_id = ?`, taskID)

	var st models.AgentState
	var status string
	var scratchpad sql.NullString
	err := row.Scan(&st.TaskID, &st.AgentName, &st.CurrentStep, &st.MaxSteps, &status, &scratchpad)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query agent state for task %s: %w", taskID, err)
	}
	st.Status = models.AgentStateStatus(status)
	st.Scratchpad = scratchpad.String

	if st.ReasoningTrace, err = s.Steps(ctx, taskID); err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveMessage records a message for audit.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *models.Message, status models.MessageStatus) error {
	var metadata []byte
	if msg.Metadata != nil {
		metadata, _ = json.Marshal(msg.Metadata)
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO agent_messages
			(message_id, session_id, task_id, sender_agent, receiver_agent,
			 message_type, content, metadata, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.MessageID, msg.SessionID, msg.TaskID, msg.SenderAgent, msg.ReceiverAgent,
		string(msg.Type), string(msg.Content), string(metadata), string(status), msg.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", msg.MessageID, err)
	}
	return nil
}

// SaveMemory records one conversation turn.
func (s *SQLiteStore) SaveMemory(ctx context.Context, mem Memory) error {
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now()
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO session_memories (agent_name, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		mem.AgentName, mem.SessionID, mem.Role, mem.Content, mem.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
