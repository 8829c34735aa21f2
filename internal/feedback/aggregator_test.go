package feedback

import (
	"errors"
	"testing"

	"mockmate/internal/apperr"
	"mockmate/internal/model"
)

type fakeStore struct {
	interview *model.Interview
	records   []model.AnswerRecord
}

func (f *fakeStore) GetInterview(id string) (*model.Interview, error) {
	if f.interview != nil && f.interview.ID == id {
		return f.interview, nil
	}
	return nil, nil
}

func (f *fakeStore) ListAnswers(interviewID string) ([]model.AnswerRecord, error) {
	return f.records, nil
}

type fakeFollowUps struct {
	docs []model.FollowUpDoc
}

func (f *fakeFollowUps) Docs(interviewID string) ([]model.FollowUpDoc, error) {
	return f.docs, nil
}

func twoQuestionInterview() *model.Interview {
	return &model.Interview{
		ID: "int-1",
		Questions: []model.QuestionSpec{
			{Question: "Q1", Answer: "A1"},
			{Question: "Q2", Answer: "A2"},
		},
	}
}

func TestAggregateExcludesUnratedFromMean(t *testing.T) {
	st := &fakeStore{
		interview: twoQuestionInterview(),
		records: []model.AnswerRecord{
			{Question: "Q1", Rating: 6, Feedback: "ok"},
			{Question: "Q2", Rating: 8, Feedback: "good"},
		},
	}
	fu := &fakeFollowUps{docs: []model.FollowUpDoc{
		{ParentQuestion: "Q1", FollowUps: []model.FollowUp{
			{Question: "F1", Answer: "ref"}, // pending, no rating
		}},
	}}

	report, err := New(st, fu).Aggregate("int-1")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(report.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(report.Items))
	}
	if report.OverallRating != 7.0 {
		t.Errorf("overall = %v, want 7.0 (pending follow-up excluded)", report.OverallRating)
	}
	last := report.Items[2]
	if last.Kind != model.ItemFollowUp || last.Rated {
		t.Errorf("follow-up item = %+v", last)
	}
}

func TestAggregateOrdering(t *testing.T) {
	st := &fakeStore{
		interview: twoQuestionInterview(),
		records: []model.AnswerRecord{
			// Stored out of question order.
			{Question: "Q2", Rating: 8, Feedback: "good"},
			{Question: "Q1", Rating: 6, Feedback: "ok"},
		},
	}
	fu := &fakeFollowUps{docs: []model.FollowUpDoc{
		{ParentQuestion: "Q2", FollowUps: []model.FollowUp{{Question: "F2", Answer: "r", UserAnswer: "x", Feedback: "fine", Rating: 4}}},
		{ParentQuestion: "Q1", FollowUps: []model.FollowUp{{Question: "F1", Answer: "r"}}},
	}}

	report, err := New(st, fu).Aggregate("int-1")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	var got []string
	for _, item := range report.Items {
		got = append(got, item.Question)
	}
	want := []string{"Q1", "Q2", "F1", "F2"}
	if len(got) != len(want) {
		t.Fatalf("items = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("items = %v, want %v", got, want)
		}
	}
	for _, item := range report.Items[2:] {
		if item.Kind != model.ItemFollowUp || item.ParentQuestion == "" {
			t.Errorf("follow-up item missing parent: %+v", item)
		}
	}
}

func TestAggregateRepeatedAnswers(t *testing.T) {
	st := &fakeStore{
		interview: twoQuestionInterview(),
		records: []model.AnswerRecord{
			{Question: "Q1", Rating: 3, Feedback: "weak"},
			{Question: "Q1", Rating: 9, Feedback: "much better"},
		},
	}
	report, err := New(st, &fakeFollowUps{}).Aggregate("int-1")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(report.Items) != 2 {
		t.Fatalf("got %d items, want both attempts", len(report.Items))
	}
	if report.OverallRating != 6.0 {
		t.Errorf("overall = %v, want 6.0", report.OverallRating)
	}
}

func TestAggregateEmptyInterview(t *testing.T) {
	st := &fakeStore{interview: twoQuestionInterview()}
	report, err := New(st, &fakeFollowUps{}).Aggregate("int-1")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(report.Items) != 0 {
		t.Errorf("got %d items, want 0", len(report.Items))
	}
	if report.OverallRating != 0 {
		t.Errorf("overall = %v, want 0", report.OverallRating)
	}
}

func TestAggregateMissingInterview(t *testing.T) {
	_, err := New(&fakeStore{}, &fakeFollowUps{}).Aggregate("nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}
