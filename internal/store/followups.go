package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"mockmate/internal/apperr"
	"mockmate/internal/model"
)

// FollowUpRow is a stored follow-up document with its payload still raw.
// New writes always hold a JSON array of entries; legacy rows may hold a
// single JSON object with the outer Feedback/Rating scalars populated.
// Shape normalization happens in the followup package, not here.
type FollowUpRow struct {
	ID             string
	InterviewID    string
	ParentQuestion string
	Payload        json.RawMessage
	Feedback       string
	Rating         int
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// AddFollowUpDoc stores a follow-up document with the canonical
// array-shaped payload and returns its id.
func (s *Store) AddFollowUpDoc(interviewID, parentQuestion string, entries []model.FollowUp) (string, error) {
	if entries == nil {
		entries = []model.FollowUp{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return "", apperr.Persistence("marshal follow-up payload: %v", err)
	}
	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO follow_up_questions (id, interview_id, parent_question, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, interviewID, parentQuestion, string(payload), time.Now(),
	)
	if err != nil {
		return "", apperr.Persistence("insert follow-up doc: %v", err)
	}
	return id, nil
}

// FollowUpDocsByParent returns the follow-up documents for one parent
// question of an interview.
func (s *Store) FollowUpDocsByParent(interviewID, parentQuestion string) ([]FollowUpRow, error) {
	return s.queryFollowUps(
		`SELECT id, interview_id, parent_question, payload, feedback, rating, created_at, updated_at
		 FROM follow_up_questions WHERE interview_id = ? AND parent_question = ? ORDER BY created_at, id`,
		interviewID, parentQuestion,
	)
}

// FollowUpDocsByInterview returns all follow-up documents of an interview.
func (s *Store) FollowUpDocsByInterview(interviewID string) ([]FollowUpRow, error) {
	return s.queryFollowUps(
		`SELECT id, interview_id, parent_question, payload, feedback, rating, created_at, updated_at
		 FROM follow_up_questions WHERE interview_id = ? ORDER BY created_at, id`,
		interviewID,
	)
}

// UpdateFollowUpPayload rewrites a document's payload with the canonical
// array shape and clears legacy outer scalars, which only ever carried
// data for single-object payloads.
func (s *Store) UpdateFollowUpPayload(id string, entries []model.FollowUp) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return apperr.Persistence("marshal follow-up payload: %v", err)
	}
	res, err := s.db.Exec(
		`UPDATE follow_up_questions SET payload = ?, feedback = '', rating = 0, updated_at = ? WHERE id = ?`,
		string(payload), time.Now(), id,
	)
	if err != nil {
		return apperr.Persistence("update follow-up doc: %v", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("follow-up doc %s", id)
	}
	return nil
}

// DeleteFollowUps removes every follow-up document for an interview.
// Idempotent: deleting when nothing matches is not an error.
func (s *Store) DeleteFollowUps(interviewID string) error {
	if _, err := s.db.Exec(`DELETE FROM follow_up_questions WHERE interview_id = ?`, interviewID); err != nil {
		return apperr.Persistence("delete follow-ups: %v", err)
	}
	return nil
}

// insertFollowUpRaw writes a document with an arbitrary payload shape and
// outer scalars. Only tests use it, to seed legacy single-object rows.
func (s *Store) insertFollowUpRaw(interviewID, parentQuestion string, payload json.RawMessage, feedback string, rating int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO follow_up_questions (id, interview_id, parent_question, payload, feedback, rating, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, interviewID, parentQuestion, string(payload), feedback, rating, time.Now(),
	)
	if err != nil {
		return "", apperr.Persistence("insert follow-up doc: %v", err)
	}
	return id, nil
}

func (s *Store) queryFollowUps(query string, args ...any) ([]FollowUpRow, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperr.Persistence("query follow-ups: %v", err)
	}
	defer rows.Close()
	var docs []FollowUpRow
	for rows.Next() {
		var (
			row       FollowUpRow
			payload   string
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&row.ID, &row.InterviewID, &row.ParentQuestion, &payload,
			&row.Feedback, &row.Rating, &row.CreatedAt, &updatedAt); err != nil {
			return nil, apperr.Persistence("scan follow-up: %v", err)
		}
		row.Payload = json.RawMessage(payload)
		if updatedAt.Valid {
			t := updatedAt.Time
			row.UpdatedAt = &t
		}
		docs = append(docs, row)
	}
	return docs, rows.Err()
}
