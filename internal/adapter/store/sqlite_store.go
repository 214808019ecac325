package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"zappy-core/internal/domain/entity"
)

// SQLiteStore implements repository.SessionStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		answers_json TEXT NOT NULL DEFAULT '[]',
		recommendations_json TEXT NOT NULL DEFAULT '[]',
		generation INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		generation INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session *entity.Session) error {
	answers, recs, err := encodeSession(session)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO sessions (id, user_id, category, answers_json, recommendations_json, generation, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		session.ID, session.UserID, string(session.Category), answers, recs,
		session.Generation, session.CreatedAt.UnixMilli(), session.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = `id, user_id, category, answers_json, recommendations_json, generation, created_at, updated_at`

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*entity.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrResourceNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns the user's sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string, limit int) ([]*entity.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []*entity.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, session *entity.Session) error {
	answers, recs, err := encodeSession(session)
	if err != nil {
		return err
	}

	query := `
	UPDATE sessions SET answers_json = ?, recommendations_json = ?, updated_at = ?
	WHERE id = ? AND generation = ?`
	result, err := s.db.ExecContext(ctx, query, answers, recs, session.UpdatedAt.UnixMilli(), session.ID, session.Generation)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return s.checkGeneration(ctx, result, session.ID)
}

func (s *SQLiteStore) ResetSession(ctx context.Context, sessionID string, generation int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	var category string
	err = tx.QueryRowContext(ctx, `SELECT category FROM sessions WHERE id = ?`, sessionID).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, entity.ErrResourceNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load session: %w", err)
	}

	answers, err := json.Marshal(entity.PreferenceAnswers{category})
	if err != nil {
		return 0, fmt.Errorf("marshal answers: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
	UPDATE sessions SET answers_json = ?, recommendations_json = '[]', generation = generation + 1, updated_at = ?
	WHERE id = ? AND generation = ?`,
		string(answers), time.Now().UnixMilli(), sessionID, generation)
	if err != nil {
		return 0, fmt.Errorf("reset session: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	} else if n == 0 {
		return 0, entity.ErrStaleResult
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reset: %w", err)
	}
	return generation + 1, nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *entity.StoredMessage) error {
	query := `
	INSERT INTO messages (session_id, user_id, role, content, generation, created_at)
	SELECT ?, ?, ?, ?, ?, ?
	WHERE EXISTS (SELECT 1 FROM sessions WHERE id = ? AND generation = ?)`
	result, err := s.db.ExecContext(ctx, query,
		msg.SessionID, msg.UserID, string(msg.Role), msg.Content, msg.Generation, msg.CreatedAt.UnixMilli(),
		msg.SessionID, msg.Generation,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if err := s.checkGeneration(ctx, result, msg.SessionID); err != nil {
		return err
	}
	if id, err := result.LastInsertId(); err == nil {
		msg.ID = id
	}
	return nil
}

func (s *SQLiteStore) AppendUserMessage(ctx context.Context, msg *entity.StoredMessage, limit int) error {
	query := `
	INSERT INTO messages (session_id, user_id, role, content, generation, created_at)
	SELECT ?, ?, ?, ?, ?, ?
	WHERE EXISTS (SELECT 1 FROM sessions WHERE id = ? AND generation = ?)
	AND (SELECT COUNT(*) FROM messages WHERE session_id = ? AND role = ?) < ?`
	result, err := s.db.ExecContext(ctx, query,
		msg.SessionID, msg.UserID, string(entity.RoleUser), msg.Content, msg.Generation, msg.CreatedAt.UnixMilli(),
		msg.SessionID, msg.Generation,
		msg.SessionID, string(entity.RoleUser), limit,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if err := s.checkGeneration(ctx, result, msg.SessionID); err != nil {
		if !errors.Is(err, entity.ErrStaleResult) {
			return err
		}
		// Zero rows with the session present: either it moved on or the limit is reached.
		var generation int64
		if err := s.db.QueryRowContext(ctx, `SELECT generation FROM sessions WHERE id = ?`, msg.SessionID).Scan(&generation); err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if generation != msg.Generation {
			return entity.ErrStaleResult
		}
		return entity.ErrQueryLimitReached
	}
	msg.Role = entity.RoleUser
	if id, err := result.LastInsertId(); err == nil {
		msg.ID = id
	}
	return nil
}

// ListMessages returns the session's messages in insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string) ([]entity.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, session_id, user_id, role, content, generation, created_at
	FROM messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []entity.StoredMessage
	for rows.Next() {
		var m entity.StoredMessage
		var role string
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &role, &m.Content, &m.Generation, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Role = entity.Role(role)
		m.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountUserMessages(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = ? AND role = ?`,
		sessionID, string(entity.RoleUser)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// checkGeneration turns a zero-row write into not-found or stale.
func (s *SQLiteStore) checkGeneration(ctx context.Context, result sql.Result, sessionID string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrResourceNotFound
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	return entity.ErrStaleResult
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*entity.Session, error) {
	var (
		session              entity.Session
		category             string
		answers, recs        string
		createdAt, updatedAt int64
	)
	err := row.Scan(&session.ID, &session.UserID, &category, &answers, &recs, &session.Generation, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.Category = entity.Category(category)
	if err := json.Unmarshal([]byte(answers), &session.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if err := json.Unmarshal([]byte(recs), &session.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	if len(session.Recommendations) == 0 {
		session.Recommendations = nil
	}
	session.CreatedAt = time.UnixMilli(createdAt).UTC()
	session.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &session, nil
}

func encodeSession(session *entity.Session) (string, string, error) {
	answers := session.Answers
	if answers == nil {
		answers = entity.PreferenceAnswers{}
	}
	a, err := json.Marshal(answers)
	if err != nil {
		return "", "", fmt.Errorf("marshal answers: %w", err)
	}
	recs := session.Recommendations
	if recs == nil {
		recs = []entity.Recommendation{}
	}
	r, err := json.Marshal(recs)
	if err != nil {
		return "", "", fmt.Errorf("marshal recommendations: %w", err)
	}
	return string(a), string(r), nil
}
