// Package handler exposes the JSON API: interview lifecycle, the
// per-question answer state machine, follow-up answers, and the feedback
// report.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mockmate/internal/answer"
	"mockmate/internal/apperr"
	"mockmate/internal/feedback"
	"mockmate/internal/followup"
	"mockmate/internal/i18n"
	"mockmate/internal/llm"
	"mockmate/internal/model"
	"mockmate/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	llm       *llm.Client
	followUps *followup.Orchestrator
	feedback  *feedback.Aggregator
	sessions  *answer.Registry
	eval      evaluator
	config    model.AppConfig
}

// New creates a new Handler and wires the follow-up orchestrator and
// feedback aggregator on top of the store.
func New(s *store.Store, l *llm.Client, cfg model.AppConfig) (*Handler, error) {
	eval := evaluator{llm: l}
	fu := followup.New(s, eval)
	return &Handler{
		store:     s,
		llm:       l,
		followUps: fu,
		feedback:  feedback.New(s, fu),
		sessions:  answer.NewRegistry(),
		eval:      eval,
		config:    cfg,
	}, nil
}

// evaluator adapts the LLM client to the narrower interfaces the answer
// and followup packages consume, attaching a busy observer for logging.
type evaluator struct {
	llm *llm.Client
}

func (e evaluator) Evaluate(ctx context.Context, question, referenceAnswer, userAnswer string) (*llm.EvaluationResult, error) {
	return e.llm.Evaluate(ctx, question, referenceAnswer, userAnswer, busyLog("evaluate"))
}

func (e evaluator) EvaluateFollowUp(ctx context.Context, question, referenceAnswer, userAnswer string) (*llm.EvaluationResult, error) {
	return e.llm.EvaluateFollowUp(ctx, question, referenceAnswer, userAnswer, busyLog("evaluate follow-up"))
}

func busyLog(op string) llm.EvalOption {
	return llm.WithBusyObserver(func(busy bool) {
		slog.Debug("ai call state", "op", op, "busy", busy)
	})
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Get("/me", h.handleMe)

			r.Post("/interviews", h.handleCreateInterview)
			r.Get("/interviews", h.handleListInterviews)
			r.Route("/interviews/{interviewID}", func(r chi.Router) {
				r.Get("/", h.handleGetInterview)
				r.Delete("/", h.handleDeleteInterview)
				r.Get("/feedback", h.handleFeedback)
				r.Get("/followups", h.handleListFollowUps)
				r.Post("/followups/answer", h.handleAnswerFollowUp)

				r.Route("/questions/{questionIdx}", func(r chi.Router) {
					r.Post("/record/start", h.handleRecordStart)
					r.Post("/record/stop", h.handleRecordStop)
					r.Post("/record/reset", h.handleRecordReset)
					r.Post("/save", h.handleSaveAnswer)
					r.Get("/answers", h.handleListAnswers)
				})
			})
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses with a localized
// user-facing message; the raw error stays in the logs only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var status int
	var msg string
	switch {
	case errors.Is(err, apperr.ErrCapability):
		status, msg = http.StatusBadRequest, i18n.T(ctx, "MicDenied")
	case errors.Is(err, apperr.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperr.ErrNotFound):
		status, msg = http.StatusNotFound, i18n.T(ctx, "FollowUpNotFound")
	case errors.Is(err, apperr.ErrEvaluation):
		status, msg = http.StatusBadGateway, i18n.T(ctx, "EvaluationFailed")
	case errors.Is(err, apperr.ErrPersistence):
		status, msg = http.StatusInternalServerError, i18n.T(ctx, "SaveFailed")
	default:
		status, msg = http.StatusInternalServerError, "internal error"
	}
	if status >= 500 {
		slog.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("request rejected", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// ownedInterview loads the interview from the URL and enforces ownership.
// Admins may access any interview.
func (h *Handler) ownedInterview(w http.ResponseWriter, r *http.Request) (*model.Interview, bool) {
	user := model.UserFromContext(r.Context())
	iv, err := h.store.GetInterview(chi.URLParam(r, "interviewID"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if iv == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": i18n.T(r.Context(), "InterviewNotFound")})
		return nil, false
	}
	if iv.UserID != user.ID && user.Role != model.UserRoleAdmin {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": i18n.T(r.Context(), "Forbidden")})
		return nil, false
	}
	return iv, true
}

type createInterviewRequest struct {
	Position    string   `json:"position"`
	Description string   `json:"description"`
	Experience  int      `json:"experience"`
	TechStack   []string `json:"tech_stack"`
}

func (h *Handler) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var req createInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.Validation("invalid request body"))
		return
	}
	if req.Position == "" {
		writeError(w, r, apperr.Validation("position is required"))
		return
	}

	profile := model.JobProfile{
		Position:    req.Position,
		Description: req.Description,
		Experience:  req.Experience,
		TechStack:   req.TechStack,
	}
	questions, err := h.llm.GenerateQuestions(r.Context(), profile, h.config.NumQuestions, busyLog("generate"))
	if err != nil {
		slog.Error("question generation failed", "position", req.Position, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": i18n.T(r.Context(), "GenerationFailed")})
		return
	}

	iv := model.Interview{
		Position:    req.Position,
		Description: req.Description,
		Experience:  req.Experience,
		TechStack:   req.TechStack,
		Questions:   questions,
		UserID:      user.ID,
	}
	id, err := h.store.CreateInterview(iv)
	if err != nil {
		writeError(w, r, err)
		return
	}
	iv.ID = id
	slog.Info("created interview", "id", id, "position", iv.Position, "questions", len(questions))
	writeJSON(w, http.StatusCreated, iv)
}

func (h *Handler) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	interviews, err := h.store.ListInterviews(user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if interviews == nil {
		interviews = []model.Interview{}
	}
	writeJSON(w, http.StatusOK, interviews)
}

func (h *Handler) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.ownedInterview(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

// handleDeleteInterview cascades: answers and follow-up documents go
// first, then the interview row and its live answer sessions. The whole
// operation is idempotent.
func (h *Handler) handleDeleteInterview(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.ownedInterview(w, r)
	if !ok {
		return
	}
	if err := h.followUps.DeleteAll(iv.ID); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteInterview(iv.ID); err != nil {
		writeError(w, r, err)
		return
	}
	h.sessions.DropInterview(iv.ID)
	slog.Info("deleted interview", "id", iv.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": i18n.T(r.Context(), "InterviewDeleted")})
}

// questionSession resolves the answer session for one question of an
// owned interview, creating it on first use.
func (h *Handler) questionSession(w http.ResponseWriter, r *http.Request) (*answer.Session, bool) {
	iv, ok := h.ownedInterview(w, r)
	if !ok {
		return nil, false
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "questionIdx"))
	if err != nil || idx < 0 || idx >= len(iv.Questions) {
		writeError(w, r, apperr.Validation("invalid question index"))
		return nil, false
	}
	user := model.UserFromContext(r.Context())
	sess := h.sessions.GetOrCreate(iv.ID, user.ID, idx, func() *answer.Session {
		return answer.NewSession(iv.ID, user.ID, iv.Questions[idx], &browserRecorder{}, h.eval, h.store)
	})
	return sess, true
}

type sessionState struct {
	State      answer.State `json:"state"`
	Transcript string       `json:"transcript"`
	Eligible   bool         `json:"eligible"`
}

func snapshot(sess *answer.Session) sessionState {
	return sessionState{
		State:      sess.State(),
		Transcript: sess.Transcript(),
		Eligible:   sess.Eligible(),
	}
}

func (h *Handler) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.questionSession(w, r)
	if !ok {
		return
	}
	var req struct {
		Error string `json:"error"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, apperr.Validation("invalid request body"))
			return
		}
	}
	sess.Recorder().(*browserRecorder).SetFailure(req.Error)
	if err := sess.Start(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (h *Handler) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.questionSession(w, r)
	if !ok {
		return
	}
	var req struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.Validation("invalid request body"))
		return
	}
	sess.Recorder().(*browserRecorder).SetTranscript(req.Transcript)
	if err := sess.Stop(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (h *Handler) handleRecordReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.questionSession(w, r)
	if !ok {
		return
	}
	if err := sess.Reset(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

type saveAnswerResponse struct {
	RecordID        string `json:"record_id"`
	Rating          int    `json:"rating"`
	Feedback        string `json:"feedback"`
	FollowUpID      string `json:"follow_up_id,omitempty"`
	FollowUpWarning string `json:"follow_up_warning,omitempty"`
	Message         string `json:"message"`
}

func (h *Handler) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.questionSession(w, r)
	if !ok {
		return
	}
	out, err := sess.Save(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := saveAnswerResponse{
		RecordID: out.RecordID,
		Rating:   out.Rating,
		Feedback: out.Feedback,
		Message:  i18n.T(r.Context(), "AnswerSaved"),
	}
	if out.FollowUpID != "" {
		resp.FollowUpID = out.FollowUpID
	}
	if out.FollowUpErr != nil {
		slog.Error("follow-up write failed after primary save",
			"record", out.RecordID, "error", out.FollowUpErr)
		resp.FollowUpWarning = i18n.T(r.Context(), "FollowUpSaveFailed")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListAnswers(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.ownedInterview(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "questionIdx"))
	if err != nil || idx < 0 || idx >= len(iv.Questions) {
		writeError(w, r, apperr.Validation("invalid question index"))
		return
	}
	records, err := h.store.ListAnswersByQuestion(iv.ID, iv.Questions[idx].Question)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []model.AnswerRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleListFollowUps(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.ownedInterview(w, r)
	if !ok {
		return
	}
	parent := r.URL.Query().Get("parent")
	if parent == "" {
		writeError(w, r, apperr.Validation("parent query parameter is required"))
		return
	}
	entries, err := h.followUps.List(iv.ID, parent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.FollowUp{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type answerFollowUpRequest struct {
	ParentQuestion   string `json:"parent_question"`
	FollowUpQuestion string `json:"follow_up_question"`
	Answer           string `json:"answer"`
}

func (h *Handler) handleAnswerFollowUp(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.ownedInterview(w, r)
	if !ok {
		return
	}
	var req answerFollowUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.Validation("invalid request body"))
		return
	}
	entry, err := h.followUps.RecordAnswer(r.Context(), iv.ID, req.ParentQuestion, req.FollowUpQuestion, req.Answer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.ownedInterview(w, r)
	if !ok {
		return
	}
	report, err := h.feedback.Aggregate(iv.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
