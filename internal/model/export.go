package model

import "time"

// InterviewExport bundles one interview with everything recorded for it.
type InterviewExport struct {
	Interview Interview       `json:"interview"`
	Answers   []AnswerRecord  `json:"answers"`
	FollowUps []FollowUpDoc   `json:"follow_ups"`
	Report    *FeedbackReport `json:"report,omitempty"`
}

// Export is the top-level structure of the `mockmate export` output.
type Export struct {
	ExportedAt time.Time         `json:"exported_at"`
	Interviews []InterviewExport `json:"interviews"`
}
