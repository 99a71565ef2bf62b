package session

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

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/arcanaland/oracle/internal/card"
)

// ErrNotFound is returned when a session does not exist
var ErrNotFound = errors.New("session not found")

// DefaultListLimit caps ListSessions when no limit is given
const DefaultListLimit = 50

// Message roles
const (
	RoleUser   = "user"
	RoleOracle = "oracle"
)

// Session is a saved conversation with the Oracle
type Session struct {
	ID          string
	UserID      string
	Title       string
	Favorite    bool
	ReadingData json.RawMessage // last reading payload, if any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message is one turn of a session
type Message struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	Cards     []card.Card
	HasCards  bool
	Offline   bool
	Timestamp time.Time
}

// Store persists sessions and messages in SQLite
type Store struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for created/updated times
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open creates or opens the history database at path
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{
		db:     db,
		dbPath: path,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reading_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		is_favorite INTEGER NOT NULL DEFAULT 0,
		reading_data TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_updated ON reading_sessions(user_id, updated_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_created ON reading_sessions(user_id, created_at);

	CREATE TABLE IF NOT EXISTS reading_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		cards TEXT,
		has_cards INTEGER NOT NULL DEFAULT 0,
		is_offline INTEGER NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON reading_messages(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSession starts an empty session
func (s *Store) CreateSession(ctx context.Context, userID, title string) (Session, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reading_sessions (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Title, now.UnixNano(), now.UnixNano())
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	s.logger.Debug("session created", zap.String("id", sess.ID), zap.String("user_id", userID))
	return sess, nil
}

// SaveMessage appends a message to a session and bumps its updated time
func (s *Store) SaveMessage(ctx context.Context, sessionID string, msg Message) (Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	if err := touch(ctx, tx, sessionID, now); err != nil {
		return Message{}, err
	}

	saved, err := insertMessage(ctx, tx, sessionID, msg, now)
	if err != nil {
		return Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

// Save writes a whole conversation. An empty sessionID creates a session
// titled after the first user message; otherwise the session's messages and
// reading payload are replaced. It returns the session id.
func (s *Store) Save(ctx context.Context, sessionID, userID string, msgs []Message, readingData any) (string, error) {
	var payload []byte
	if readingData != nil {
		data, err := json.Marshal(readingData)
		if err != nil {
			return "", fmt.Errorf("encode reading: %w", err)
		}
		payload = data
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	if sessionID == "" {
		sessionID = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO reading_sessions (id, user_id, title, reading_data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, userID, Title(firstUserMessage(msgs)), nullableText(payload), now.UnixNano(), now.UnixNano())
		if err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx,
			`UPDATE reading_sessions SET reading_data = ?, updated_at = ? WHERE id = ?`,
			nullableText(payload), now.UnixNano(), sessionID)
		if err != nil {
			return "", fmt.Errorf("update session: %w", err)
		}
		if err := expectRow(res); err != nil {
			return "", err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM reading_messages WHERE session_id = ?`, sessionID); err != nil {
			return "", fmt.Errorf("clear messages: %w", err)
		}
	}

	for _, m := range msgs {
		if _, err := insertMessage(ctx, tx, sessionID, m, now); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("session saved", zap.String("id", sessionID), zap.Int("messages", len(msgs)))
	return sessionID, nil
}

// SetReadingData replaces the reading payload stored on a session
func (s *Store) SetReadingData(ctx context.Context, id string, readingData any) error {
	data, err := json.Marshal(readingData)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE reading_sessions SET reading_data = ?, updated_at = ? WHERE id = ?`,
		string(data), s.now().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return expectRow(res)
}

// ListSessions returns a user's sessions, most recently updated first
func (s *Store) ListSessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, is_favorite, reading_data, created_at, updated_at
		 FROM reading_sessions WHERE user_id = ? ORDER BY updated_at DESC, rowid DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Get loads one session
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, is_favorite, reading_data, created_at, updated_at
		 FROM reading_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// Messages returns a session's messages, oldest first
func (s *Store) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, cards, has_cards, is_offline, timestamp
		 FROM reading_messages WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m         Message
			cardsJSON sql.NullString
			ts        int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &cardsJSON, &m.HasCards, &m.Offline, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if cardsJSON.Valid && cardsJSON.String != "" {
			if err := json.Unmarshal([]byte(cardsJSON.String), &m.Cards); err != nil {
				return nil, fmt.Errorf("decode cards of message %s: %w", m.ID, err)
			}
		}
		m.Timestamp = time.Unix(0, ts).UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Rename changes a session's title
func (s *Store) Rename(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reading_sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, s.now().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return expectRow(res)
}

// SetFavorite marks or unmarks a session as a favorite
func (s *Store) SetFavorite(ctx context.Context, id string, favorite bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reading_sessions SET is_favorite = ? WHERE id = ?`, favorite, id)
	if err != nil {
		return fmt.Errorf("update favorite: %w", err)
	}
	return expectRow(res)
}

// Delete removes a session and its messages
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reading_messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM reading_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var (
		sess             Session
		data             sql.NullString
		created, updated int64
	)
	if err := sc.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.Favorite, &data, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	if data.Valid && data.String != "" {
		sess.ReadingData = json.RawMessage(data.String)
	}
	sess.CreatedAt = time.Unix(0, created).UTC()
	sess.UpdatedAt = time.Unix(0, updated).UTC()
	return sess, nil
}

func touch(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE reading_sessions SET updated_at = ? WHERE id = ?`, now.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return expectRow(res)
}

func insertMessage(ctx context.Context, tx *sql.Tx, sessionID string, m Message, now time.Time) (Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	m.SessionID = sessionID
	if len(m.Cards) > 0 {
		m.HasCards = true
	}

	var cardsJSON []byte
	if len(m.Cards) > 0 {
		data, err := json.Marshal(m.Cards)
		if err != nil {
			return Message{}, fmt.Errorf("encode cards: %w", err)
		}
		cardsJSON = data
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO reading_messages (id, session_id, role, content, cards, has_cards, is_offline, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, sessionID, m.Role, m.Content, nullableText(cardsJSON), m.HasCards, m.Offline, m.Timestamp.UTC().UnixNano())
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func firstUserMessage(msgs []Message) string {
	for _, m := range msgs {
		if m.Role == RoleUser {
			return m.Content
		}
	}
	return ""
}
