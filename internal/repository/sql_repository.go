/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"blockarchitech.com/smartlife/internal/models"
	"blockarchitech.com/smartlife/internal/utils"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLRepository is a database/sql implementation of the Repository backed by
// SQLite or PostgreSQL.
type SQLRepository struct {
	db            *sql.DB
	dialect       Dialect
	encryptionKey string
	logger        *zap.Logger
}

// OpenDB opens and pings a database for the dialect. SQLite connections are
// opened with foreign keys enforced.
func OpenDB(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	var db *sql.DB
	var err error
	switch dialect {
	case DialectSQLite:
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		db, err = sql.Open("sqlite", dsn+sep+"_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
		if err == nil {
			// one writer; also keeps :memory: databases on a single connection
			db.SetMaxOpenConns(1)
		}
	case DialectPostgres:
		db, err = sql.Open("pgx", dsn)
		if err == nil {
			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(2)
			db.SetConnMaxLifetime(30 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}
	return db, nil
}

// NewSQLRepository opens the database, applies the schema and returns a repository.
func NewSQLRepository(ctx context.Context, dialect Dialect, dsn, encryptionKey string, logger *zap.Logger) (*SQLRepository, error) {
	db, err := OpenDB(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}
	r := &SQLRepository{
		db:            db,
		dialect:       dialect,
		encryptionKey: encryptionKey,
		logger:        logger.Named("sql_repo"),
	}
	r.logger.Info("SQL repository ready", zap.String("dialect", string(dialect)))
	return r, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *SQLRepository) exec(ctx context.Context, q queryer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, r.rebind(query), args...)
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}

func (r *SQLRepository) CreateUser(ctx context.Context, user *models.User) error {
	_, err := r.exec(ctx, r.db,
		`INSERT INTO users (id, email, password_hash, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, strings.ToLower(user.Email), user.PasswordHash, nullString(user.Name), user.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	r.logger.Info("Created user", zap.String("userID", user.ID))
	return nil
}

func (r *SQLRepository) getUser(ctx context.Context, where string, arg string) (*models.User, error) {
	var u models.User
	var name sql.NullString
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT id, email, password_hash, name, created_at FROM users WHERE `+where+` = ?`), arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Name = stringPtr(name)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (r *SQLRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "id", id)
}

func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email", strings.ToLower(email))
}

func (r *SQLRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := r.exec(ctx, r.db, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLRepository) AddChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	var proposals sql.NullString
	if len(msg.ProposedProjects) > 0 {
		b, err := json.Marshal(msg.ProposedProjects)
		if err != nil {
			return fmt.Errorf("failed to encode proposed projects: %w", err)
		}
		proposals = sql.NullString{String: string(b), Valid: true}
	}
	_, err := r.exec(ctx, r.db,
		`INSERT INTO chat_history (id, user_id, message, response, proposed_projects, sent_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.UserID, msg.Message, msg.Response, proposals, msg.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to store chat message: %w", err)
	}
	return nil
}

// recent reads newest first so a limit keeps the latest rows; callers
// restore chronological order.
func recent(query string, limit int, args []any) (string, []any) {
	query += ` ORDER BY sent_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return query, args
}

func (r *SQLRepository) ListChatMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	query, args := recent(`SELECT id, user_id, message, response, proposed_projects, sent_at FROM chat_history WHERE user_id = ?`, limit, []any{userID})
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	out := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		var proposals sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.Message, &m.Response, &proposals, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		if proposals.Valid && proposals.String != "" {
			if err := json.Unmarshal([]byte(proposals.String), &m.ProposedProjects); err != nil {
				return nil, fmt.Errorf("failed to decode proposed projects: %w", err)
			}
		}
		m.Timestamp = m.Timestamp.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	models.SortChatMessages(out)
	return out, nil
}

func (r *SQLRepository) CreateProject(ctx context.Context, project *models.Project) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = r.exec(ctx, tx,
		`INSERT INTO projects (id, user_id, title, description, due_date, plan, category, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.UserID, project.Title, nullString(project.Description), nullTime(project.DueDate),
		nullString(project.Plan), project.Category, project.CreatedAt.UTC(), project.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	if err := r.insertTodos(ctx, tx, project.ID, project.Todos); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project: %w", err)
	}
	r.logger.Info("Created project", zap.String("projectID", project.ID))
	return nil
}

const projectColumns = `id, user_id, title, description, due_date, plan, category, created_at, updated_at`

func scanProject(scan func(dest ...any) error) (models.Project, error) {
	var p models.Project
	var desc, plan sql.NullString
	var due sql.NullTime
	if err := scan(&p.ID, &p.UserID, &p.Title, &desc, &due, &plan, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	p.Description = stringPtr(desc)
	p.Plan = stringPtr(plan)
	p.DueDate = timePtr(due)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.Todos = []models.TodoItem{}
	return p, nil
}

const todoColumns = `id, project_id, text, completed, due_date, order_index, calendar_event_id, created_at`

func scanTodo(scan func(dest ...any) error) (models.TodoItem, error) {
	var t models.TodoItem
	var due sql.NullTime
	var order sql.NullInt64
	var event sql.NullString
	if err := scan(&t.ID, &t.ProjectID, &t.Text, &t.Completed, &due, &order, &event, &t.CreatedAt); err != nil {
		return t, err
	}
	t.DueDate = timePtr(due)
	t.OrderIndex = intPtr(order)
	t.CalendarEventID = stringPtr(event)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func (r *SQLRepository) listTodos(ctx context.Context, query string, arg string) (map[string][]models.TodoItem, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	byProject := make(map[string][]models.TodoItem)
	for rows.Next() {
		t, err := scanTodo(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}
	return byProject, rows.Err()
}

func (r *SQLRepository) GetProject(ctx context.Context, userID, projectID string) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+projectColumns+` FROM projects WHERE id = ? AND user_id = ?`), projectID, userID)
	p, err := scanProject(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	todos, err := r.listTodos(ctx, `SELECT `+todoColumns+` FROM todo_items WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, err
	}
	if items := todos[projectID]; len(items) > 0 {
		p.Todos = items
		models.SortTodos(p.Todos)
	}
	return &p, nil
}

func (r *SQLRepository) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY updated_at DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	out := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	todos, err := r.listTodos(ctx, `SELECT t.id, t.project_id, t.text, t.completed, t.due_date, t.order_index, t.calendar_event_id, t.created_at
		FROM todo_items t JOIN projects p ON p.id = t.project_id WHERE p.user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if items := todos[out[i].ID]; len(items) > 0 {
			out[i].Todos = items
			models.SortTodos(out[i].Todos)
		}
	}
	return out, nil
}

func (r *SQLRepository) UpdateProject(ctx context.Context, project *models.Project) error {
	res, err := r.exec(ctx, r.db,
		`UPDATE projects SET title = ?, description = ?, due_date = ?, category = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		project.Title, nullString(project.Description), nullTime(project.DueDate),
		project.Category, project.UpdatedAt.UTC(), project.ID, project.UserID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLRepository) SetProjectPlan(ctx context.Context, userID, projectID string, plan *string, updatedAt time.Time) error {
	res, err := r.exec(ctx, r.db, `UPDATE projects SET plan = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		nullString(plan), updatedAt.UTC(), projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to set project plan: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLRepository) TouchProject(ctx context.Context, userID, projectID string, updatedAt time.Time) error {
	res, err := r.exec(ctx, r.db, `UPDATE projects SET updated_at = ? WHERE id = ? AND user_id = ?`,
		updatedAt.UTC(), projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to touch project: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLRepository) DeleteProject(ctx context.Context, userID, projectID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Children are removed explicitly so databases opened without
	// foreign key enforcement behave the same.
	var owner string
	err = tx.QueryRowContext(ctx, r.rebind(`SELECT user_id FROM projects WHERE id = ?`), projectID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if _, err := r.exec(ctx, tx, `DELETE FROM todo_items WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to delete todos: %w", err)
	}
	if _, err := r.exec(ctx, tx, `DELETE FROM project_chat_messages WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to delete project messages: %w", err)
	}
	if _, err := r.exec(ctx, tx, `DELETE FROM projects WHERE id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project deletion: %w", err)
	}
	r.logger.Info("Deleted project", zap.String("projectID", projectID))
	return nil
}

func (r *SQLRepository) insertTodos(ctx context.Context, tx *sql.Tx, projectID string, todos []models.TodoItem) error {
	for _, t := range todos {
		_, err := r.exec(ctx, tx,
			`INSERT INTO todo_items (id, project_id, text, completed, due_date, order_index, calendar_event_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, projectID, t.Text, t.Completed, nullTime(t.DueDate), nullInt(t.OrderIndex), nullString(t.CalendarEventID), t.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert todo: %w", err)
		}
	}
	return nil
}

func (r *SQLRepository) CreateTodos(ctx context.Context, projectID string, todos []models.TodoItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, r.rebind(`SELECT 1 FROM projects WHERE id = ?`), projectID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if err := r.insertTodos(ctx, tx, projectID, todos); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit todos: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetTodo(ctx context.Context, projectID, todoID string) (*models.TodoItem, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+todoColumns+` FROM todo_items WHERE id = ? AND project_id = ?`), todoID, projectID)
	t, err := scanTodo(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	return &t, nil
}

func (r *SQLRepository) UpdateTodo(ctx context.Context, todo *models.TodoItem) error {
	res, err := r.exec(ctx, r.db,
		`UPDATE todo_items SET text = ?, completed = ?, due_date = ?, order_index = ? WHERE id = ? AND project_id = ?`,
		todo.Text, todo.Completed, nullTime(todo.DueDate), nullInt(todo.OrderIndex), todo.ID, todo.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLRepository) SetTodoEventID(ctx context.Context, projectID, todoID, eventID string) error {
	res, err := r.exec(ctx, r.db, `UPDATE todo_items SET calendar_event_id = ? WHERE id = ? AND project_id = ?`,
		eventID, todoID, projectID)
	if err != nil {
		return fmt.Errorf("failed to link calendar event: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLRepository) DeleteTodo(ctx context.Context, projectID, todoID string) error {
	res, err := r.exec(ctx, r.db, `DELETE FROM todo_items WHERE id = ? AND project_id = ?`, todoID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLRepository) AddProjectMessage(ctx context.Context, msg *models.ProjectChatMessage) error {
	_, err := r.exec(ctx, r.db,
		`INSERT INTO project_chat_messages (id, project_id, message, response, sent_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ProjectID, msg.Message, msg.Response, msg.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to store project message: %w", err)
	}
	return nil
}

func (r *SQLRepository) ListProjectMessages(ctx context.Context, projectID string, limit int) ([]models.ProjectChatMessage, error) {
	query, args := recent(`SELECT id, project_id, message, response, sent_at FROM project_chat_messages WHERE project_id = ?`, limit, []any{projectID})
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list project messages: %w", err)
	}
	defer rows.Close()

	out := []models.ProjectChatMessage{}
	for rows.Next() {
		var m models.ProjectChatMessage
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Message, &m.Response, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan project message: %w", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	models.SortProjectChatMessages(out)
	return out, nil
}

func (r *SQLRepository) GetPreferences(ctx context.Context, userID string) (*models.Preferences, error) {
	var raw string
	var updated time.Time
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT preferences, updated_at FROM user_preferences WHERE user_id = ?`), userID).Scan(&raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	var prefs models.Preferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	prefs.UserID = userID
	prefs.UpdatedAt = updated.UTC()
	return &prefs, nil
}

func (r *SQLRepository) SavePreferences(ctx context.Context, prefs *models.Preferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	_, err = r.exec(ctx, r.db,
		`INSERT INTO user_preferences (user_id, preferences, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET preferences = excluded.preferences, updated_at = excluded.updated_at`,
		prefs.UserID, string(raw), prefs.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetCalendarCredential(ctx context.Context, userID string) (*models.CalendarCredential, error) {
	var raw string
	var email sql.NullString
	cred := models.CalendarCredential{UserID: userID}
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT token, email, updated_at FROM calendar_credentials WHERE user_id = ?`), userID).
		Scan(&raw, &email, &cred.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar credential: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("failed to decode calendar token: %w", err)
	}
	cred.Token, err = utils.DecryptToken(&tok, r.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt calendar token: %w", err)
	}
	cred.Email = email.String
	cred.UpdatedAt = cred.UpdatedAt.UTC()
	return &cred, nil
}

func (r *SQLRepository) SaveCalendarCredential(ctx context.Context, cred *models.CalendarCredential) error {
	tok, err := utils.EncryptToken(cred.Token, r.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt calendar token: %w", err)
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode calendar token: %w", err)
	}
	_, err = r.exec(ctx, r.db,
		`INSERT INTO calendar_credentials (user_id, token, email, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET token = excluded.token, email = excluded.email, updated_at = excluded.updated_at`,
		cred.UserID, string(raw), cred.Email, cred.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save calendar credential: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteCalendarCredential(ctx context.Context, userID string) error {
	if _, err := r.exec(ctx, r.db, `DELETE FROM calendar_credentials WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete calendar credential: %w", err)
	}
	return nil
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}
