// Package prompts builds the instruction prompts sent to the model from
// embedded templates.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"mockmate/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

var answerTagRegex = regexp.MustCompile(`(?i)</?\s*(user-answer|system-instructions)\b[^>]*>`)

const maxAnswerRunes = 10000

func load() error {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template)
		for _, name := range []string{"evaluate", "followup", "generate"} {
			content, err := templateFS.ReadFile("templates/" + name + ".txt")
			if err != nil {
				loadErr = errors.New("read prompt template " + name + ": " + err.Error())
				return
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = errors.New("parse prompt template " + name + ": " + err.Error())
				return
			}
			templates[name] = tmpl
		}
	})
	return loadErr
}

// EvalData holds template data for answer-evaluation prompts.
type EvalData struct {
	Question        string
	ReferenceAnswer string
	UserAnswer      string
}

// GenerateData holds template data for question-generation prompts.
type GenerateData struct {
	Position     string
	Description  string
	Experience   int
	TechStack    string
	NumQuestions int
}

// BuildEvaluate builds the prompt for scoring a primary answer. The
// prompt asks for an optional follow-up question alongside the rating.
func BuildEvaluate(question, referenceAnswer, userAnswer string) (string, error) {
	return execute("evaluate", EvalData{
		Question:        question,
		ReferenceAnswer: referenceAnswer,
		UserAnswer:      sanitizeAnswer(userAnswer),
	})
}

// BuildFollowUpEvaluate builds the prompt for scoring a follow-up answer.
// No further follow-up is requested.
func BuildFollowUpEvaluate(question, referenceAnswer, userAnswer string) (string, error) {
	return execute("followup", EvalData{
		Question:        question,
		ReferenceAnswer: referenceAnswer,
		UserAnswer:      sanitizeAnswer(userAnswer),
	})
}

// BuildGenerate builds the batch question-generation prompt for a job
// profile.
func BuildGenerate(profile model.JobProfile, numQuestions int) (string, error) {
	return execute("generate", GenerateData{
		Position:     profile.Position,
		Description:  profile.Description,
		Experience:   profile.Experience,
		TechStack:    strings.Join(profile.TechStack, ", "),
		NumQuestions: numQuestions,
	})
}

func execute(name string, data any) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitizeAnswer strips injection-prone tags from user text and bounds its
// length before it is embedded into a prompt.
func sanitizeAnswer(answer string) string {
	answer = answerTagRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "[No answer provided]"
	}
	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
