// Package answer drives the lifecycle of one question's answer: capture,
// validation, AI evaluation, persistence, and the conditional follow-up
// write. The lifecycle is an explicit state machine so that illegal
// combinations (saving while recording, double saves) are unrepresentable.
package answer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"mockmate/internal/apperr"
	"mockmate/internal/llm"
	"mockmate/internal/model"
)

// State is the answer session state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateCaptured  State = "captured"
	StateSaving    State = "saving"
	StateSaved     State = "saved"
)

// Recorder is the speech-capture collaborator. Start fails with a
// capability error when the microphone is denied or unsupported; Stop
// yields the final transcript.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (string, error)
}

// Evaluator scores an answer against its reference answer.
type Evaluator interface {
	Evaluate(ctx context.Context, question, referenceAnswer, userAnswer string) (*llm.EvaluationResult, error)
}

// Saver is the persistence surface the session needs.
type Saver interface {
	AddAnswer(rec model.AnswerRecord) (string, error)
	AddFollowUpDoc(interviewID, parentQuestion string, entries []model.FollowUp) (string, error)
}

// SaveResult reports what a successful save produced. FollowUpErr is set
// when the primary record was written but the follow-up write failed;
// the primary write is never rolled back for that.
type SaveResult struct {
	RecordID    string
	Rating      int
	Feedback    string
	FollowUpID  string
	FollowUpErr error
}

// Session is the per-question answer state machine. All methods are safe
// for concurrent use; the Saving state guards against duplicate
// concurrent submissions.
type Session struct {
	mu         sync.Mutex
	state      State
	transcript string

	interviewID string
	userID      string
	question    model.QuestionSpec

	rec   Recorder
	eval  Evaluator
	saver Saver
}

// NewSession creates a session in the Idle state.
func NewSession(interviewID, userID string, q model.QuestionSpec, rec Recorder, eval Evaluator, saver Saver) *Session {
	return &Session{
		state:       StateIdle,
		interviewID: interviewID,
		userID:      userID,
		question:    q,
		rec:         rec,
		eval:        eval,
		saver:       saver,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Recorder returns the session's capture collaborator.
func (s *Session) Recorder() Recorder {
	return s.rec
}

// Transcript returns the captured answer text.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// Eligible reports whether the captured text is long enough to save.
func (s *Session) Eligible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return eligible(s.transcript)
}

func eligible(text string) bool {
	return len(strings.TrimSpace(text)) >= model.MinAnswerLength
}

// Start begins recording. Allowed from Idle, Captured (re-record,
// discarding the prior capture), and Saved (re-answer; the old record
// stays in the store). A capability failure keeps the previous state.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateRecording:
		s.mu.Unlock()
		return apperr.Validation("already recording")
	case StateSaving:
		s.mu.Unlock()
		return apperr.Validation("save in progress")
	}
	s.mu.Unlock()

	if err := s.rec.Start(ctx); err != nil {
		if errors.Is(err, apperr.ErrCapability) {
			return err
		}
		return apperr.Capability("%v", err)
	}

	s.mu.Lock()
	s.transcript = ""
	s.state = StateRecording
	s.mu.Unlock()
	return nil
}

// Stop ends recording and captures the transcript. Text shorter than the
// minimum is retained but stays ineligible for save.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return apperr.Validation("not recording")
	}
	s.mu.Unlock()

	text, err := s.rec.Stop(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateCaptured
	if err != nil {
		if errors.Is(err, apperr.ErrCapability) {
			return err
		}
		return apperr.Capability("%v", err)
	}
	s.transcript = text
	return nil
}

// Save evaluates the captured answer and persists it. Order is fixed:
// the evaluation must succeed before the primary write, and the primary
// write must succeed before the conditional follow-up write. On
// evaluation or primary-write failure the session returns to Captured
// and can be retried; a follow-up-write failure leaves the session Saved
// and is reported in the result.
func (s *Session) Save(ctx context.Context) (*SaveResult, error) {
	s.mu.Lock()
	switch {
	case s.state == StateSaving:
		s.mu.Unlock()
		return nil, apperr.Validation("save already in progress")
	case s.state != StateCaptured:
		s.mu.Unlock()
		return nil, apperr.Validation("nothing captured to save")
	case !eligible(s.transcript):
		s.mu.Unlock()
		return nil, apperr.Validation("answer shorter than %d characters", model.MinAnswerLength)
	}
	s.state = StateSaving
	transcript := s.transcript
	s.mu.Unlock()

	result, err := s.eval.Evaluate(ctx, s.question.Question, s.question.Answer, transcript)
	if err != nil {
		s.fail()
		if errors.Is(err, apperr.ErrEvaluation) {
			return nil, err
		}
		return nil, apperr.Evaluation("%v", err)
	}

	recordID, err := s.saver.AddAnswer(model.AnswerRecord{
		InterviewID: s.interviewID,
		Question:    s.question.Question,
		CorrectAns:  s.question.Answer,
		UserAns:     transcript,
		Rating:      result.Rating,
		Feedback:    result.Feedback,
		UserID:      s.userID,
	})
	if err != nil {
		s.fail()
		return nil, err
	}

	out := &SaveResult{
		RecordID: recordID,
		Rating:   result.Rating,
		Feedback: result.Feedback,
	}
	if result.HasFollowUp() {
		followUpID, err := s.saver.AddFollowUpDoc(s.interviewID, s.question.Question, []model.FollowUp{{
			Question: result.FollowUpQuestion,
			Answer:   result.FollowUpAnswer,
		}})
		if err != nil {
			out.FollowUpErr = err
		} else {
			out.FollowUpID = followUpID
		}
	}

	s.mu.Lock()
	s.state = StateSaved
	s.mu.Unlock()
	return out, nil
}

// Reset discards the capture and any Saved marker and returns to Idle.
// An in-flight save is not cancelled and keeps its outcome.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSaving {
		return apperr.Validation("save in progress")
	}
	s.state = StateIdle
	s.transcript = ""
	return nil
}

func (s *Session) fail() {
	s.mu.Lock()
	s.state = StateCaptured
	s.mu.Unlock()
}
