package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"mockmate/internal/i18n"
	"mockmate/internal/llm"
	"mockmate/internal/model"
	"mockmate/internal/store"
)

// fakeAI serves canned chat-completion contents in FIFO order.
type fakeAI struct {
	mu        sync.Mutex
	responses []string
}

func (f *fakeAI) push(content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, content)
}

func (f *fakeAI) pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return "", false
	}
	content := f.responses[0]
	f.responses = f.responses[1:]
	return content, true
}

func newFakeAI(t *testing.T) (*fakeAI, string) {
	t.Helper()
	f := &fakeAI{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, ok := f.pop()
		if !ok {
			http.Error(w, "no canned response queued", http.StatusInternalServerError)
			return
		}
		resp := map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return f, srv.URL + "/v1"
}

type env struct {
	t      *testing.T
	ai     *fakeAI
	store  *store.Store
	client *http.Client
	base   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ai, aiURL := newFakeAI(t)
	h, err := New(st, llm.New(aiURL, "test-key", "test-model"), model.AppConfig{NumQuestions: 2})
	if err != nil {
		t.Fatalf("create handler: %v", err)
	}
	r := chi.NewRouter()
	r.Use(i18n.Middleware("en"))
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &env{t: t, ai: ai, store: st, client: &http.Client{Jar: jar}, base: srv.URL}
}

func (e *env) login(username string) {
	e.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		e.t.Fatalf("bcrypt: %v", err)
	}
	if _, err := e.store.CreateUser(model.User{
		Username: username, PasswordHash: string(hash),
		Role: model.UserRoleCandidate, Active: true,
	}); err != nil {
		e.t.Fatalf("create user: %v", err)
	}
	resp, _ := e.do(http.MethodPost, "/api/login", map[string]string{
		"username": username, "password": "secret",
	})
	if resp.StatusCode != http.StatusOK {
		e.t.Fatalf("login status = %d", resp.StatusCode)
	}
}

func (e *env) do(method, path string, body any) (*http.Response, []byte) {
	e.t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.base+path, buf)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		e.t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (e *env) createInterview() model.Interview {
	e.t.Helper()
	e.ai.push(`[{"question":"Q1","answer":"A1"},{"question":"Q2","answer":"A2"}]`)
	resp, data := e.do(http.MethodPost, "/api/interviews", map[string]any{
		"position": "Backend Engineer", "experience": 3, "tech_stack": []string{"Go"},
	})
	if resp.StatusCode != http.StatusCreated {
		e.t.Fatalf("create interview status = %d: %s", resp.StatusCode, data)
	}
	var iv model.Interview
	if err := json.Unmarshal(data, &iv); err != nil {
		e.t.Fatalf("decode interview: %v", err)
	}
	return iv
}

const longAnswer = "A goroutine is a lightweight thread of execution managed by the Go runtime scheduler."

func TestAnswerFlow(t *testing.T) {
	e := newEnv(t)
	e.login("alice")
	iv := e.createInterview()
	qBase := fmt.Sprintf("/api/interviews/%s/questions/0", iv.ID)

	resp, data := e.do(http.MethodPost, qBase+"/record/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("record/start status = %d: %s", resp.StatusCode, data)
	}
	resp, data = e.do(http.MethodPost, qBase+"/record/stop", map[string]string{"transcript": longAnswer})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("record/stop status = %d: %s", resp.StatusCode, data)
	}
	var state sessionState
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if !state.Eligible || state.Transcript != longAnswer {
		t.Errorf("state = %+v", state)
	}

	e.ai.push(`{"rating": 6, "feedback": "Decent.", "follow_up_question": "How are goroutines scheduled?", "follow_up_question_ans": "By the runtime scheduler."}`)
	resp, data = e.do(http.MethodPost, qBase+"/save", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d: %s", resp.StatusCode, data)
	}
	var saved saveAnswerResponse
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("decode save response: %v", err)
	}
	if saved.Rating != 6 || saved.FollowUpID == "" || saved.FollowUpWarning != "" {
		t.Errorf("save response = %+v", saved)
	}

	resp, data = e.do(http.MethodGet, qBase+"/answers", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("answers status = %d", resp.StatusCode)
	}
	var records []model.AnswerRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 1 || records[0].UserAns != longAnswer {
		t.Errorf("records = %+v", records)
	}

	resp, data = e.do(http.MethodGet,
		fmt.Sprintf("/api/interviews/%s/followups?parent=%s", iv.ID, "Q1"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("followups status = %d: %s", resp.StatusCode, data)
	}
	var entries []model.FollowUp
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("decode follow-ups: %v", err)
	}
	if len(entries) != 1 || !entries[0].Pending() {
		t.Fatalf("entries = %+v", entries)
	}

	e.ai.push(`{"rating": 8, "feedback": "Good detail."}`)
	resp, data = e.do(http.MethodPost, fmt.Sprintf("/api/interviews/%s/followups/answer", iv.ID), map[string]string{
		"parent_question":    "Q1",
		"follow_up_question": entries[0].Question,
		"answer":             longAnswer,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("followup answer status = %d: %s", resp.StatusCode, data)
	}

	resp, data = e.do(http.MethodGet, fmt.Sprintf("/api/interviews/%s/feedback", iv.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("feedback status = %d: %s", resp.StatusCode, data)
	}
	var report model.FeedbackReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Items) != 2 {
		t.Fatalf("got %d report items, want 2", len(report.Items))
	}
	if report.OverallRating != 7.0 {
		t.Errorf("overall = %v, want 7.0", report.OverallRating)
	}
	if report.Items[0].Kind != model.ItemPrimary || report.Items[1].Kind != model.ItemFollowUp {
		t.Errorf("item order: %+v", report.Items)
	}
}

func TestShortAnswerRejectedOverHTTP(t *testing.T) {
	e := newEnv(t)
	e.login("bob")
	iv := e.createInterview()
	qBase := fmt.Sprintf("/api/interviews/%s/questions/0", iv.ID)

	e.do(http.MethodPost, qBase+"/record/start", nil)
	e.do(http.MethodPost, qBase+"/record/stop", map[string]string{"transcript": "too short"})

	// No evaluation response queued: the save must fail before any AI call.
	resp, data := e.do(http.MethodPost, qBase+"/save", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("save status = %d: %s", resp.StatusCode, data)
	}
	records, err := e.store.ListAnswers(iv.ID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("short answer was persisted")
	}
}

func TestMicDenied(t *testing.T) {
	e := newEnv(t)
	e.login("carol")
	iv := e.createInterview()
	qBase := fmt.Sprintf("/api/interviews/%s/questions/0", iv.ID)

	resp, data := e.do(http.MethodPost, qBase+"/record/start", map[string]string{"error": "permission denied"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("record/start status = %d: %s", resp.StatusCode, data)
	}
	if !strings.Contains(string(data), "Microphone access is unavailable") {
		t.Errorf("body = %s", data)
	}
}

func TestDeleteInterviewCascades(t *testing.T) {
	e := newEnv(t)
	e.login("dave")
	iv := e.createInterview()
	qBase := fmt.Sprintf("/api/interviews/%s/questions/0", iv.ID)

	e.do(http.MethodPost, qBase+"/record/start", nil)
	e.do(http.MethodPost, qBase+"/record/stop", map[string]string{"transcript": longAnswer})
	e.ai.push(`{"rating": 5, "feedback": "ok", "follow_up_question": "F1", "follow_up_question_ans": "ref"}`)
	if resp, data := e.do(http.MethodPost, qBase+"/save", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d: %s", resp.StatusCode, data)
	}

	resp, data := e.do(http.MethodDelete, "/api/interviews/"+iv.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d: %s", resp.StatusCode, data)
	}

	if resp, _ := e.do(http.MethodGet, "/api/interviews/"+iv.ID, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
	records, err := e.store.ListAnswers(iv.ID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(records) != 0 {
		t.Error("answers survived interview delete")
	}
	docs, err := e.store.FollowUpDocsByInterview(iv.ID)
	if err != nil {
		t.Fatalf("FollowUpDocsByInterview: %v", err)
	}
	if len(docs) != 0 {
		t.Error("follow-ups survived interview delete")
	}
}

func TestOwnershipEnforced(t *testing.T) {
	e := newEnv(t)
	e.login("erin")
	iv := e.createInterview()

	// A different user with their own cookie jar must not see it.
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	e.client = &http.Client{Jar: jar}
	e.login("frank")

	resp, _ := e.do(http.MethodGet, "/api/interviews/"+iv.ID, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestUnauthorized(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(http.MethodGet, "/api/interviews", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
