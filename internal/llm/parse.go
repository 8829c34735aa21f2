package llm

import (
	"encoding/json"
	"strings"

	"mockmate/internal/apperr"
	"mockmate/internal/model"
)

// Models wrap their JSON in markdown fences or commentary more often than
// not, so extraction is greedy: drop fence markers, take the span from the
// first opening bracket to the last closing one, and try to decode that.

var fenceReplacer = strings.NewReplacer("```json", "", "```", "", "`", "")

func stripFences(s string) string {
	s = fenceReplacer.Replace(s)
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "json"))
}

func extractSpan(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// stripControl removes embedded control characters (C0 and C1 ranges)
// that break JSON decoding of model output.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
			return -1
		}
		return r
	}, s)
}

// ParseEvaluation extracts the first JSON object embedded in raw model
// output and decodes it as an evaluation. Returns nil on any failure;
// it never panics. Field validation is the caller's job.
func ParseEvaluation(raw string) *EvaluationResult {
	span, ok := extractSpan(stripFences(raw), '{', '}')
	if !ok {
		return nil
	}
	var aux struct {
		Rating           json.Number `json:"rating"`
		Feedback         string      `json:"feedback"`
		FollowUpQuestion string      `json:"follow_up_question"`
		FollowUpAnswer   string      `json:"follow_up_question_ans"`
	}
	if err := json.Unmarshal([]byte(span), &aux); err != nil {
		return nil
	}
	rating := 0
	if aux.Rating != "" {
		f, err := aux.Rating.Float64()
		if err != nil {
			return nil
		}
		rating = int(f + 0.5)
	}
	return &EvaluationResult{
		Rating:           rating,
		Feedback:         aux.Feedback,
		FollowUpQuestion: aux.FollowUpQuestion,
		FollowUpAnswer:   aux.FollowUpAnswer,
	}
}

// ParseQuestionList extracts a JSON array of {question, answer} pairs from
// raw model output. On failure it returns an empty list and an evaluation
// error rather than panicking.
func ParseQuestionList(raw string) ([]model.QuestionSpec, error) {
	span, ok := extractSpan(stripFences(raw), '[', ']')
	if !ok {
		return nil, apperr.Evaluation("no JSON array in model output")
	}
	var list []model.QuestionSpec
	if err := json.Unmarshal([]byte(stripControl(span)), &list); err != nil {
		return nil, apperr.Evaluation("decode question list: %v", err)
	}
	questions := list[:0]
	for _, q := range list {
		if q.Question != "" && q.Answer != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return nil, apperr.Evaluation("model returned no usable question/answer pairs")
	}
	return questions, nil
}
