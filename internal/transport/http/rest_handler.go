package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"dental-quest-service/internal/app"
	"dental-quest-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RESTHandler exposes the assessment use cases as JSON endpoints.
type RESTHandler struct {
	service *app.AssessmentService
	logger  *zap.Logger
}

func NewRESTHandler(service *app.AssessmentService, logger *zap.Logger) *RESTHandler {
	return &RESTHandler{service: service, logger: logger}
}

type startRequest struct {
	UserID       string `json:"userId"`
	AssessmentID string `json:"assessmentId"`
}

type selectRequest struct {
	QuestionIndex  int    `json:"questionIndex"`
	SelectedOption string `json:"selectedOption"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type evaluateRequest struct {
	UserID  string            `json:"userId"`
	Answers []app.AnswerInput `json:"answers"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Routes mounts the handler under the caller's router.
func (h *RESTHandler) Routes(r chi.Router) {
	r.Get("/assessments", h.listAssessments)
	r.Get("/assessments/{id}", h.getAssessment)
	r.Post("/assessments/{id}/submit", h.evaluate)

	r.Post("/attempts", h.startAttempt)
	r.Get("/attempts/{id}", h.getAttempt)
	r.Delete("/attempts/{id}", h.abandonAttempt)
	r.Post("/attempts/{id}/answers", h.selectAnswer)
	r.Post("/attempts/{id}/next", h.next)
	r.Post("/attempts/{id}/previous", h.previous)
	r.Post("/attempts/{id}/submit", h.submit)
	r.Post("/attempts/{id}/retry", h.retry)

	r.Post("/users", h.createUser)
	r.Get("/users/{id}", h.getUser)
	r.Get("/users/{id}/progress", h.progress)
}

// listAssessments accepts optional ?level= and ?kind= filters.
func (h *RESTHandler) listAssessments(w http.ResponseWriter, r *http.Request) {
	var filter domain.ListFilter
	if raw := r.URL.Query().Get("level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil || level < 1 {
			writeJSON(w, http.StatusBadRequest, errorPayload{Message: "level must be a positive integer"})
			return
		}
		filter.Level = level
	}
	switch kind := domain.Kind(r.URL.Query().Get("kind")); kind {
	case "", domain.KindLesson, domain.KindChallenge:
		filter.Kind = kind
	default:
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "kind must be lesson or challenge"})
		return
	}
	defs, err := h.service.ListAssessments(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

func (h *RESTHandler) getAssessment(w http.ResponseWriter, r *http.Request) {
	def, err := h.service.Assessment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// evaluate scores a whole answer sheet without a timed attempt.
func (h *RESTHandler) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid submission payload"})
		return
	}
	outcome, err := h.service.Evaluate(r.Context(), req.UserID, chi.URLParam(r, "id"), req.Answers)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *RESTHandler) startAttempt(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.AssessmentID == "" {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "missing userId or assessmentId"})
		return
	}
	attempt, err := h.service.Start(r.Context(), req.UserID, req.AssessmentID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt.View())
}

func (h *RESTHandler) getAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.Attempt(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt.View())
}

func (h *RESTHandler) abandonAttempt(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Abandon(chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RESTHandler) selectAnswer(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid answer payload"})
		return
	}
	view, err := h.service.Select(chi.URLParam(r, "id"), req.QuestionIndex, req.SelectedOption)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) next(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Next(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) previous(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Previous(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) submit(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *RESTHandler) retry(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt.View())
}

func (h *RESTHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid user payload"})
		return
	}
	user, err := h.service.CreateUser(r.Context(), req.Username, req.Email)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *RESTHandler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.User(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *RESTHandler) progress(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) respondError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, code, errorPayload{Message: err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAttemptClosed), errors.Is(err, domain.ErrIncomplete):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAssessmentNotFound), errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
