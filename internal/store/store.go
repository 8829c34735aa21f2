// Package store persists interviews, answers, and follow-up documents in
// SQLite. Follow-up payloads are stored as JSON blobs queried by
// exact-match fields, mirroring the document-store layout this data
// originally lived in; referential integrity across tables is the
// caller's responsibility.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mockmate/internal/apperr"
	"mockmate/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interviews (
		id TEXT PRIMARY KEY,
		position TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		experience INTEGER NOT NULL DEFAULT 0,
		tech_stack TEXT NOT NULL DEFAULT '[]',
		questions TEXT NOT NULL DEFAULT '[]',
		user_id TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_answers (
		id TEXT PRIMARY KEY,
		interview_id TEXT NOT NULL,
		question TEXT NOT NULL,
		correct_ans TEXT NOT NULL DEFAULT '',
		user_ans TEXT NOT NULL,
		feedback TEXT NOT NULL DEFAULT '',
		rating INTEGER NOT NULL DEFAULT 0,
		user_id TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_user_answers_interview ON user_answers(interview_id);

	CREATE TABLE IF NOT EXISTS follow_up_questions (
		id TEXT PRIMARY KEY,
		interview_id TEXT NOT NULL,
		parent_question TEXT NOT NULL,
		payload TEXT NOT NULL,
		feedback TEXT NOT NULL DEFAULT '',
		rating INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_follow_ups_interview ON follow_up_questions(interview_id);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateInterview stores a generated interview and returns its id.
func (s *Store) CreateInterview(iv model.Interview) (string, error) {
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	techStack, err := json.Marshal(iv.TechStack)
	if err != nil {
		return "", apperr.Persistence("marshal tech stack: %v", err)
	}
	questions, err := json.Marshal(iv.Questions)
	if err != nil {
		return "", apperr.Persistence("marshal questions: %v", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO interviews (id, position, description, experience, tech_stack, questions, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		iv.ID, iv.Position, iv.Description, iv.Experience, string(techStack), string(questions), iv.UserID, time.Now(),
	)
	if err != nil {
		return "", apperr.Persistence("insert interview: %v", err)
	}
	return iv.ID, nil
}

// GetInterview returns an interview by id, or nil when it does not exist.
func (s *Store) GetInterview(id string) (*model.Interview, error) {
	var (
		iv        model.Interview
		techStack string
		questions string
	)
	err := s.db.QueryRow(
		`SELECT id, position, description, experience, tech_stack, questions, user_id, created_at
		 FROM interviews WHERE id = ?`, id,
	).Scan(&iv.ID, &iv.Position, &iv.Description, &iv.Experience, &techStack, &questions, &iv.UserID, &iv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence("get interview: %v", err)
	}
	if err := json.Unmarshal([]byte(techStack), &iv.TechStack); err != nil {
		return nil, apperr.Persistence("decode tech stack: %v", err)
	}
	if err := json.Unmarshal([]byte(questions), &iv.Questions); err != nil {
		return nil, apperr.Persistence("decode questions: %v", err)
	}
	return &iv, nil
}

// ListInterviews returns all interviews owned by a user, newest first.
func (s *Store) ListInterviews(userID string) ([]model.Interview, error) {
	rows, err := s.db.Query(
		`SELECT id, position, description, experience, tech_stack, questions, user_id, created_at
		 FROM interviews WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, apperr.Persistence("list interviews: %v", err)
	}
	defer rows.Close()
	var interviews []model.Interview
	for rows.Next() {
		var (
			iv        model.Interview
			techStack string
			questions string
		)
		if err := rows.Scan(&iv.ID, &iv.Position, &iv.Description, &iv.Experience, &techStack, &questions, &iv.UserID, &iv.CreatedAt); err != nil {
			return nil, apperr.Persistence("scan interview: %v", err)
		}
		if err := json.Unmarshal([]byte(techStack), &iv.TechStack); err != nil {
			return nil, apperr.Persistence("decode tech stack: %v", err)
		}
		if err := json.Unmarshal([]byte(questions), &iv.Questions); err != nil {
			return nil, apperr.Persistence("decode questions: %v", err)
		}
		interviews = append(interviews, iv)
	}
	return interviews, rows.Err()
}

// ListAllInterviews returns every interview regardless of owner, oldest
// first. Used by the export command.
func (s *Store) ListAllInterviews() ([]model.Interview, error) {
	rows, err := s.db.Query(
		`SELECT id, position, description, experience, tech_stack, questions, user_id, created_at
		 FROM interviews ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, apperr.Persistence("list interviews: %v", err)
	}
	defer rows.Close()
	var interviews []model.Interview
	for rows.Next() {
		var (
			iv        model.Interview
			techStack string
			questions string
		)
		if err := rows.Scan(&iv.ID, &iv.Position, &iv.Description, &iv.Experience, &techStack, &questions, &iv.UserID, &iv.CreatedAt); err != nil {
			return nil, apperr.Persistence("scan interview: %v", err)
		}
		if err := json.Unmarshal([]byte(techStack), &iv.TechStack); err != nil {
			return nil, apperr.Persistence("decode tech stack: %v", err)
		}
		if err := json.Unmarshal([]byte(questions), &iv.Questions); err != nil {
			return nil, apperr.Persistence("decode questions: %v", err)
		}
		interviews = append(interviews, iv)
	}
	return interviews, rows.Err()
}

// DeleteInterview removes the interview row only. Answers and follow-ups
// must be cascaded first (followup.Orchestrator.DeleteAll); deleting an
// already-deleted interview is not an error.
func (s *Store) DeleteInterview(id string) error {
	if _, err := s.db.Exec(`DELETE FROM interviews WHERE id = ?`, id); err != nil {
		return apperr.Persistence("delete interview: %v", err)
	}
	return nil
}
