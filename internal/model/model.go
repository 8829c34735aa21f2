package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleCandidate is a regular interview-taking user.
	UserRoleCandidate UserRole = "candidate"
	// UserRoleAdmin is an admin user.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           string
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// QuestionSpec is one generated interview question with its reference answer.
type QuestionSpec struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// JobProfile describes the role an interview is generated for.
type JobProfile struct {
	Position    string   `json:"position"`
	Description string   `json:"description"`
	Experience  int      `json:"experience"`
	TechStack   []string `json:"tech_stack"`
}

// Interview is one generated mock interview: a fixed question set tied
// to a job profile. Immutable after creation except for deletion.
type Interview struct {
	ID          string         `json:"id"`
	Position    string         `json:"position"`
	Description string         `json:"description"`
	Experience  int            `json:"experience"`
	TechStack   []string       `json:"tech_stack"`
	Questions   []QuestionSpec `json:"questions"`
	UserID      string         `json:"user_id"`
	CreatedAt   time.Time      `json:"created_at"`
}

// AnswerRecord is a user's evaluated answer to a primary question.
// Re-answering appends a new record; old records stay in place.
type AnswerRecord struct {
	ID          string    `json:"id"`
	InterviewID string    `json:"interview_id"`
	Question    string    `json:"question"`
	CorrectAns  string    `json:"correct_ans"`
	UserAns     string    `json:"user_ans"`
	Rating      int       `json:"rating"`
	Feedback    string    `json:"feedback"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// LegacyPendingAnswer is the placeholder older records stored for a
// follow-up that was generated but not yet answered.
const LegacyPendingAnswer = "Pending answer"

// FollowUp is one canonical follow-up entry: an AI-generated supplementary
// question spawned from a primary answer's evaluation. An empty UserAnswer
// means the follow-up is still pending. Rating is set only together with
// Feedback (both come from the same evaluation call).
type FollowUp struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	UserAnswer string `json:"userAnswer"`
	Feedback   string `json:"feedback,omitempty"`
	Rating     int    `json:"rating,omitempty"`
}

// Pending reports whether the follow-up has not been answered yet.
func (f FollowUp) Pending() bool {
	return f.UserAnswer == "" || f.UserAnswer == LegacyPendingAnswer
}

// Rated reports whether the entry carries an evaluation.
func (f FollowUp) Rated() bool {
	return f.Feedback != "" && f.Rating > 0
}

// FollowUpDoc is the stored follow-up document for one parent question.
// The payload is canonically a sequence of FollowUp entries; legacy rows
// may hold a single object with outer Feedback/Rating scalars, which the
// orchestrator normalizes on read.
type FollowUpDoc struct {
	ID             string     `json:"id"`
	InterviewID    string     `json:"interview_id"`
	ParentQuestion string     `json:"parent_question"`
	FollowUps      []FollowUp `json:"follow_ups"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ScoredItemKind distinguishes aggregated feedback items.
type ScoredItemKind string

const (
	ItemPrimary  ScoredItemKind = "primary"
	ItemFollowUp ScoredItemKind = "follow_up"
)

// ScoredItem is one display-ready entry in the feedback report.
type ScoredItem struct {
	Kind           ScoredItemKind `json:"kind"`
	Question       string         `json:"question"`
	ParentQuestion string         `json:"parent_question,omitempty"`
	CorrectAns     string         `json:"correct_ans"`
	UserAns        string         `json:"user_ans"`
	Feedback       string         `json:"feedback"`
	Rating         int            `json:"rating"`
	Rated          bool           `json:"rated"`
}

// FeedbackReport combines all scored items for an interview with the
// overall rating (mean over rated items only).
type FeedbackReport struct {
	InterviewID   string       `json:"interview_id"`
	Items         []ScoredItem `json:"items"`
	OverallRating float64      `json:"overall_rating"`
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	NumQuestions  int  // questions generated per interview
	SecureCookies bool // Set Secure flag on cookies (disable for local dev)
}

// MinAnswerLength is the minimum trimmed answer length eligible for save.
const MinAnswerLength = 30
