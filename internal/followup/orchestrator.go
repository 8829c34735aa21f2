// Package followup manages follow-up question documents: reading them in
// a single canonical shape regardless of how old writers stored them,
// recording answers to pending entries, and cascading deletes.
package followup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"mockmate/internal/apperr"
	"mockmate/internal/llm"
	"mockmate/internal/model"
	"mockmate/internal/store"
)

// Store is the persistence surface the orchestrator needs.
type Store interface {
	FollowUpDocsByParent(interviewID, parentQuestion string) ([]store.FollowUpRow, error)
	FollowUpDocsByInterview(interviewID string) ([]store.FollowUpRow, error)
	UpdateFollowUpPayload(id string, entries []model.FollowUp) error
	DeleteFollowUps(interviewID string) error
	DeleteAnswers(interviewID string) error
}

// Evaluator scores a follow-up answer against its reference answer.
type Evaluator interface {
	EvaluateFollowUp(ctx context.Context, question, referenceAnswer, userAnswer string) (*llm.EvaluationResult, error)
}

// Orchestrator mediates all follow-up reads and writes.
type Orchestrator struct {
	store Store
	eval  Evaluator
}

func New(s Store, eval Evaluator) *Orchestrator {
	return &Orchestrator{store: s, eval: eval}
}

// Normalize decodes a stored payload into the canonical entry sequence.
// Array payloads decode directly; legacy single-object payloads become a
// one-entry sequence, with the row's outer Feedback/Rating scalars folded
// into the entry when it carries none of its own. Unreadable payloads
// yield an empty sequence rather than an error: one corrupt document must
// not take down a whole feedback page.
func Normalize(row store.FollowUpRow) []model.FollowUp {
	payload := bytes.TrimSpace(row.Payload)
	if len(payload) == 0 {
		return nil
	}
	var entries []model.FollowUp
	switch payload[0] {
	case '[':
		if err := json.Unmarshal(payload, &entries); err != nil {
			slog.Warn("unreadable follow-up payload", "id", row.ID, "error", err)
			return nil
		}
	case '{':
		var single model.FollowUp
		if err := json.Unmarshal(payload, &single); err != nil {
			slog.Warn("unreadable follow-up payload", "id", row.ID, "error", err)
			return nil
		}
		if !single.Rated() && row.Feedback != "" && row.Rating > 0 {
			single.Feedback = row.Feedback
			single.Rating = row.Rating
		}
		entries = []model.FollowUp{single}
	default:
		slog.Warn("unrecognized follow-up payload shape", "id", row.ID)
		return nil
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Question == "" {
			continue
		}
		if e.UserAnswer == model.LegacyPendingAnswer {
			e.UserAnswer = ""
		}
		out = append(out, e)
	}
	return out
}

// List returns the normalized follow-up entries for one parent question,
// in document order.
func (o *Orchestrator) List(interviewID, parentQuestion string) ([]model.FollowUp, error) {
	if interviewID == "" || parentQuestion == "" {
		return nil, apperr.Validation("interview id and parent question are required")
	}
	rows, err := o.store.FollowUpDocsByParent(interviewID, parentQuestion)
	if err != nil {
		return nil, err
	}
	var entries []model.FollowUp
	for _, row := range rows {
		entries = append(entries, Normalize(row)...)
	}
	return entries, nil
}

// Docs returns every follow-up document of an interview, normalized.
func (o *Orchestrator) Docs(interviewID string) ([]model.FollowUpDoc, error) {
	rows, err := o.store.FollowUpDocsByInterview(interviewID)
	if err != nil {
		return nil, err
	}
	docs := make([]model.FollowUpDoc, 0, len(rows))
	for _, row := range rows {
		doc := model.FollowUpDoc{
			ID:             row.ID,
			InterviewID:    row.InterviewID,
			ParentQuestion: row.ParentQuestion,
			FollowUps:      Normalize(row),
			CreatedAt:      row.CreatedAt,
		}
		if row.UpdatedAt != nil {
			doc.UpdatedAt = *row.UpdatedAt
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// RecordAnswer evaluates a follow-up answer and stores it in the matching
// entry. The entry is matched by follow-up question text; when a document
// holds a single entry and no question text is given, that entry is used.
// RecordAnswer only ever updates an existing document, it never creates
// one, and a miss is a not-found error.
func (o *Orchestrator) RecordAnswer(ctx context.Context, interviewID, parentQuestion, followUpQuestion, answerText string) (*model.FollowUp, error) {
	if interviewID == "" || parentQuestion == "" {
		return nil, apperr.Validation("interview id and parent question are required")
	}
	if len(strings.TrimSpace(answerText)) < model.MinAnswerLength {
		return nil, apperr.Validation("answer shorter than %d characters", model.MinAnswerLength)
	}

	rows, err := o.store.FollowUpDocsByParent(interviewID, parentQuestion)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		entries := Normalize(row)
		idx := matchEntry(entries, followUpQuestion)
		if idx < 0 {
			continue
		}
		result, err := o.eval.EvaluateFollowUp(ctx, entries[idx].Question, entries[idx].Answer, answerText)
		if err != nil {
			return nil, err
		}
		entries[idx].UserAnswer = answerText
		entries[idx].Feedback = result.Feedback
		entries[idx].Rating = result.Rating
		if err := o.store.UpdateFollowUpPayload(row.ID, entries); err != nil {
			return nil, err
		}
		return &entries[idx], nil
	}
	return nil, apperr.NotFound("no follow-up for question %q", parentQuestion)
}

func matchEntry(entries []model.FollowUp, followUpQuestion string) int {
	if followUpQuestion == "" && len(entries) == 1 {
		return 0
	}
	for i, e := range entries {
		if e.Question == followUpQuestion {
			return i
		}
	}
	return -1
}

// DeleteAll removes an interview's follow-up documents and answer records.
// Both deletes are attempted even if one fails, and the whole operation is
// idempotent.
func (o *Orchestrator) DeleteAll(interviewID string) error {
	if interviewID == "" {
		return apperr.Validation("interview id is required")
	}
	return errors.Join(
		o.store.DeleteFollowUps(interviewID),
		o.store.DeleteAnswers(interviewID),
	)
}
