package store

import (
	"time"

	"github.com/google/uuid"

	"mockmate/internal/apperr"
	"mockmate/internal/model"
)

// AddAnswer appends an evaluated answer record. Records are never updated:
// re-answering a question creates a new row and the old one stays.
func (s *Store) AddAnswer(rec model.AnswerRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO user_answers (id, interview_id, question, correct_ans, user_ans, feedback, rating, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.InterviewID, rec.Question, rec.CorrectAns, rec.UserAns, rec.Feedback, rec.Rating, rec.UserID, time.Now(),
	)
	if err != nil {
		return "", apperr.Persistence("insert answer: %v", err)
	}
	return rec.ID, nil
}

// ListAnswers returns all answer records for an interview in insertion
// order.
func (s *Store) ListAnswers(interviewID string) ([]model.AnswerRecord, error) {
	return s.queryAnswers(
		`SELECT id, interview_id, question, correct_ans, user_ans, feedback, rating, user_id, created_at
		 FROM user_answers WHERE interview_id = ? ORDER BY created_at, id`, interviewID,
	)
}

// ListAnswersByQuestion returns the answer records for one question of an
// interview, oldest first. Multiple records mean the user re-answered.
func (s *Store) ListAnswersByQuestion(interviewID, question string) ([]model.AnswerRecord, error) {
	return s.queryAnswers(
		`SELECT id, interview_id, question, correct_ans, user_ans, feedback, rating, user_id, created_at
		 FROM user_answers WHERE interview_id = ? AND question = ? ORDER BY created_at, id`,
		interviewID, question,
	)
}

// DeleteAnswers removes every answer record for an interview. Idempotent:
// deleting when nothing matches is not an error.
func (s *Store) DeleteAnswers(interviewID string) error {
	if _, err := s.db.Exec(`DELETE FROM user_answers WHERE interview_id = ?`, interviewID); err != nil {
		return apperr.Persistence("delete answers: %v", err)
	}
	return nil
}

func (s *Store) queryAnswers(query string, args ...any) ([]model.AnswerRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperr.Persistence("query answers: %v", err)
	}
	defer rows.Close()
	var records []model.AnswerRecord
	for rows.Next() {
		var rec model.AnswerRecord
		if err := rows.Scan(&rec.ID, &rec.InterviewID, &rec.Question, &rec.CorrectAns, &rec.UserAns,
			&rec.Feedback, &rec.Rating, &rec.UserID, &rec.CreatedAt); err != nil {
			return nil, apperr.Persistence("scan answer: %v", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
