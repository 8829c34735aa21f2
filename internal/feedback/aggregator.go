// Package feedback assembles the per-interview feedback report: every
// scored answer, primary and follow-up, in a stable display order with
// an overall rating.
package feedback

import (
	"mockmate/internal/apperr"
	"mockmate/internal/model"
)

// Store reads the interview and its primary answer records.
type Store interface {
	GetInterview(id string) (*model.Interview, error)
	ListAnswers(interviewID string) ([]model.AnswerRecord, error)
}

// FollowUps reads an interview's follow-up documents in canonical shape.
type FollowUps interface {
	Docs(interviewID string) ([]model.FollowUpDoc, error)
}

type Aggregator struct {
	store     Store
	followUps FollowUps
}

func New(s Store, f FollowUps) *Aggregator {
	return &Aggregator{store: s, followUps: f}
}

// Aggregate builds the feedback report for an interview. Items are
// ordered primaries first, in the interview's question order, then
// follow-ups grouped by parent question in that same order. The overall
// rating is the mean over rated items only: a pending follow-up does not
// drag the average down. An interview with no rated items scores 0.
func (a *Aggregator) Aggregate(interviewID string) (*model.FeedbackReport, error) {
	if interviewID == "" {
		return nil, apperr.Validation("interview id is required")
	}
	interview, err := a.store.GetInterview(interviewID)
	if err != nil {
		return nil, err
	}
	if interview == nil {
		return nil, apperr.NotFound("interview %s", interviewID)
	}
	records, err := a.store.ListAnswers(interviewID)
	if err != nil {
		return nil, err
	}
	docs, err := a.followUps.Docs(interviewID)
	if err != nil {
		return nil, err
	}

	report := &model.FeedbackReport{InterviewID: interviewID, Items: []model.ScoredItem{}}

	order := make(map[string]int, len(interview.Questions))
	for i, q := range interview.Questions {
		order[q.Question] = i
	}

	appendRecord := func(rec model.AnswerRecord) {
		report.Items = append(report.Items, model.ScoredItem{
			Kind:       model.ItemPrimary,
			Question:   rec.Question,
			CorrectAns: rec.CorrectAns,
			UserAns:    rec.UserAns,
			Feedback:   rec.Feedback,
			Rating:     rec.Rating,
			Rated:      rec.Rating > 0,
		})
	}
	for _, q := range interview.Questions {
		for _, rec := range records {
			if rec.Question == q.Question {
				appendRecord(rec)
			}
		}
	}
	// Records whose question text no longer matches the interview (edited
	// or corrupted data) still show up, after the ordered ones.
	for _, rec := range records {
		if _, ok := order[rec.Question]; !ok {
			appendRecord(rec)
		}
	}

	appendDoc := func(doc model.FollowUpDoc) {
		for _, f := range doc.FollowUps {
			report.Items = append(report.Items, model.ScoredItem{
				Kind:           model.ItemFollowUp,
				Question:       f.Question,
				ParentQuestion: doc.ParentQuestion,
				CorrectAns:     f.Answer,
				UserAns:        f.UserAnswer,
				Feedback:       f.Feedback,
				Rating:         f.Rating,
				Rated:          f.Rated(),
			})
		}
	}
	for _, q := range interview.Questions {
		for _, doc := range docs {
			if doc.ParentQuestion == q.Question {
				appendDoc(doc)
			}
		}
	}
	for _, doc := range docs {
		if _, ok := order[doc.ParentQuestion]; !ok {
			appendDoc(doc)
		}
	}

	var sum, rated int
	for _, item := range report.Items {
		if item.Rated {
			sum += item.Rating
			rated++
		}
	}
	if rated > 0 {
		report.OverallRating = float64(sum) / float64(rated)
	}
	return report, nil
}
