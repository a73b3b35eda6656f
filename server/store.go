package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/oliverjantar/tcpchat/model"
)

// How long a single store call may wait on the database, including pool
// acquisition.
const queryTimeout = 2 * time.Second

// How many rows a history read returns at most.
const historyLimit = 50

// User is a persisted account. Password and Salt hold the base64 of the
// derived key and of the random salt, never the plaintext.
type User struct {
	ID        uuid.UUID
	Username  string
	Password  string
	Salt      string
	LastLogin time.Time
}

// UserInfo is the admin API projection of a user.
type UserInfo struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// MessageInfo is one row of persisted chat history.
type MessageInfo struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatStore is the persistence capability set the server depends on. The
// sqlite implementation backs production; tests use an in-memory variant.
type ChatStore interface {
	InsertMessage(ctx context.Context, msg *model.Message, userID uuid.UUID) error
	GetMessages(ctx context.Context, usernamePrefix string) ([]MessageInfo, error)
	InsertUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, username string) (*User, error)
	GetUsers(ctx context.Context) ([]UserInfo, error)
	RemoveUser(ctx context.Context, id uuid.UUID) (int64, error)
}

// renderText is the compact string form of a payload that gets persisted.
// Blobs are reduced to a marker; control payloads store nothing.
func renderText(data model.Payload) string {
	switch p := data.(type) {
	case model.Text:
		return p.Text
	case model.Image:
		return "img sent"
	case model.File:
		return "file sent: " + p.Name
	default:
		return ""
	}
}

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database file and bootstraps the
// schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	TABLES := []string{
		`users (id TEXT PRIMARY KEY,
		 password TEXT NOT NULL,
		 username TEXT NOT NULL UNIQUE,
		 salt TEXT NOT NULL,
		 last_login TIMESTAMP NOT NULL);`,

		`messages (id TEXT PRIMARY KEY,
		 user_id TEXT NOT NULL,
		 data TEXT NOT NULL,
		 timestamp TIMESTAMP NOT NULL,
		 FOREIGN KEY (user_id) REFERENCES users(id));`,
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, tableData := range TABLES {
		if _, err := db.Exec("CREATE TABLE IF NOT EXISTS " + tableData); err != nil {
			db.Close()
			return nil, fmt.Errorf("create table: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *model.Message, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	insertSQL := sq.Insert("messages").Columns("id", "user_id", "data", "timestamp").
		Values(uuid.New().String(), userID.String(), renderText(msg.Data), time.Now().UTC())
	if _, err := insertSQL.RunWith(s.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMessages(ctx context.Context, usernamePrefix string) ([]MessageInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	selectSQL := sq.Select("m.id", "u.username", "m.data", "m.timestamp").
		From("messages m").
		Join("users u ON u.id = m.user_id").
		OrderBy("m.timestamp DESC").
		Limit(historyLimit)
	if usernamePrefix != "" {
		selectSQL = selectSQL.Where(sq.Like{"u.username": usernamePrefix + "%"})
	}

	rows, err := selectSQL.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	result := []MessageInfo{}
	for rows.Next() {
		var msg MessageInfo
		var id string
		if err := rows.Scan(&id, &msg.Username, &msg.Text, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if msg.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse message id: %w", err)
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) InsertUser(ctx context.Context, user *User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	insertSQL := sq.Insert("users").Columns("id", "password", "username", "salt", "last_login").
		Values(user.ID.String(), user.Password, user.Username, user.Salt, time.Now().UTC())
	if _, err := insertSQL.RunWith(s.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, username string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	selectSQL := sq.Select("id", "password", "username", "salt", "last_login").
		From("users").Where(sq.Eq{"username": username})
	row := selectSQL.RunWith(s.db).QueryRowContext(ctx)

	var user User
	var id string
	err := row.Scan(&id, &user.Password, &user.Username, &user.Salt, &user.LastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	if user.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) GetUsers(ctx context.Context) ([]UserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := sq.Select("id", "username").From("users").RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	result := []UserInfo{}
	for rows.Next() {
		var user UserInfo
		var id string
		if err := rows.Scan(&id, &user.Username); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if user.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse user id: %w", err)
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) RemoveUser(ctx context.Context, id uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := sq.Delete("users").Where(sq.Eq{"id": id.String()}).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}
	return result.RowsAffected()
}
