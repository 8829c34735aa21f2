// Package llm talks to an OpenAI-compatible chat-completion endpoint and
// turns its free-form output into structured evaluation results.
package llm

import (
	"context"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"mockmate/internal/apperr"
	"mockmate/internal/llm/prompts"
	"mockmate/internal/model"
)

// EvaluationResult holds the model's assessment of a single answer.
// FollowUpQuestion/FollowUpAnswer are set only when the model chose to
// spawn a follow-up.
type EvaluationResult struct {
	Rating           int    `json:"rating"`
	Feedback         string `json:"feedback"`
	FollowUpQuestion string `json:"follow_up_question,omitempty"`
	FollowUpAnswer   string `json:"follow_up_question_ans,omitempty"`
}

// HasFollowUp reports whether the result carries a complete follow-up pair.
func (r *EvaluationResult) HasFollowUp() bool {
	return r.FollowUpQuestion != "" && r.FollowUpAnswer != ""
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new evaluation client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping verifies the endpoint is reachable and the credentials work.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return apperr.Evaluation("model endpoint unreachable: %v", err)
	}
	return nil
}

type evalSettings struct {
	busy func(bool)
}

// EvalOption configures a single evaluation call.
type EvalOption func(*evalSettings)

// WithBusyObserver registers an observer that is told when this one call
// goes in flight and when it resolves. The observer is scoped to the call;
// concurrent calls on a shared client do not interfere.
func WithBusyObserver(fn func(bool)) EvalOption {
	return func(s *evalSettings) { s.busy = fn }
}

// Evaluate scores a primary answer against its reference answer. The
// result may carry a follow-up question/answer pair. Any failure (network,
// malformed output, missing required fields) comes back as an evaluation
// error; Evaluate never writes anything.
func (c *Client) Evaluate(ctx context.Context, question, referenceAnswer, userAnswer string, opts ...EvalOption) (*EvaluationResult, error) {
	prompt, err := prompts.BuildEvaluate(question, referenceAnswer, userAnswer)
	if err != nil {
		return nil, apperr.Evaluation("build prompt: %v", err)
	}
	return c.complete(ctx, prompt, opts)
}

// EvaluateFollowUp scores a follow-up answer. Follow-up fields in the
// output, if any, are ignored: follow-ups never spawn follow-ups.
func (c *Client) EvaluateFollowUp(ctx context.Context, question, referenceAnswer, userAnswer string, opts ...EvalOption) (*EvaluationResult, error) {
	prompt, err := prompts.BuildFollowUpEvaluate(question, referenceAnswer, userAnswer)
	if err != nil {
		return nil, apperr.Evaluation("build prompt: %v", err)
	}
	result, err := c.complete(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}
	result.FollowUpQuestion = ""
	result.FollowUpAnswer = ""
	return result, nil
}

// GenerateQuestions asks the model for a question/answer set matching a
// job profile. Decode failure surfaces as an empty set plus an error.
func (c *Client) GenerateQuestions(ctx context.Context, profile model.JobProfile, numQuestions int, opts ...EvalOption) ([]model.QuestionSpec, error) {
	settings := applyOpts(opts)
	if settings.busy != nil {
		settings.busy(true)
		defer settings.busy(false)
	}

	prompt, err := prompts.BuildGenerate(profile, numQuestions)
	if err != nil {
		return nil, apperr.Evaluation("build prompt: %v", err)
	}
	raw, err := c.chat(ctx, prompt, 0.7)
	if err != nil {
		return nil, err
	}
	questions, err := ParseQuestionList(raw)
	if err != nil {
		slog.Error("question generation returned unusable output", "error", err, "raw", raw)
		return nil, err
	}
	return questions, nil
}

func (c *Client) complete(ctx context.Context, prompt string, opts []EvalOption) (*EvaluationResult, error) {
	settings := applyOpts(opts)
	if settings.busy != nil {
		settings.busy(true)
		defer settings.busy(false)
	}

	raw, err := c.chat(ctx, prompt, 0.3)
	if err != nil {
		return nil, err
	}
	slog.Debug("model response", "raw", raw)

	result := ParseEvaluation(raw)
	if result == nil {
		return nil, apperr.Evaluation("no JSON object in model output (raw: %s)", raw)
	}
	if result.Rating < 1 || result.Rating > 10 {
		return nil, apperr.Evaluation("rating %d out of range 1-10", result.Rating)
	}
	if result.Feedback == "" {
		return nil, apperr.Evaluation("missing feedback in model output")
	}
	return result, nil
}

func (c *Client) chat(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", apperr.Evaluation("chat completion: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.Evaluation("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func applyOpts(opts []EvalOption) evalSettings {
	var s evalSettings
	for _, o := range opts {
		o(&s)
	}
	return s
}
