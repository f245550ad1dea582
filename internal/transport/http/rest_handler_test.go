package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"dental-quest-service/internal/domain"
)

func TestRESTAttemptLifecycle(t *testing.T) {
	router := NewRouter(newTestService(), RouterOptions{})

	var started map[string]any
	do(t, router, http.MethodPost, "/api/attempts", map[string]any{"userId": "u1", "assessmentId": "brushing"}, http.StatusCreated, &started)
	id := started["id"].(string)

	do(t, router, http.MethodPost, "/api/attempts/"+id+"/answers", map[string]any{"questionIndex": 0, "selectedOption": "2 minutes"}, http.StatusOK, nil)
	do(t, router, http.MethodPost, "/api/attempts/"+id+"/answers", map[string]any{"questionIndex": 1, "selectedOption": "Fluoride"}, http.StatusOK, nil)
	do(t, router, http.MethodPost, "/api/attempts/"+id+"/answers", map[string]any{"questionIndex": 5, "selectedOption": "Fluoride"}, http.StatusBadRequest, nil)

	var outcome domain.Outcome
	do(t, router, http.MethodPost, "/api/attempts/"+id+"/submit", nil, http.StatusOK, &outcome)
	if outcome.Result.ScorePercent != 100 || !outcome.Result.Passed || !outcome.Saved {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	// Late selections conflict with the submitted attempt.
	do(t, router, http.MethodPost, "/api/attempts/"+id+"/answers", map[string]any{"questionIndex": 0, "selectedOption": "1 minute"}, http.StatusConflict, nil)

	var progress domain.ProgressView
	do(t, router, http.MethodGet, "/api/users/u1/progress", nil, http.StatusOK, &progress)
	if progress.Progression.TotalScore != 100 || progress.Progression.Level != 2 {
		t.Fatalf("unexpected progress %+v", progress.Progression)
	}
}

func TestRESTEvaluateAndLookups(t *testing.T) {
	router := NewRouter(newTestService(), RouterOptions{})

	var defs []domain.PublicDefinition
	do(t, router, http.MethodGet, "/api/assessments", nil, http.StatusOK, &defs)
	if len(defs) != 1 {
		t.Fatalf("expected one assessment, got %d", len(defs))
	}
	do(t, router, http.MethodGet, "/api/assessments/unknown", nil, http.StatusNotFound, nil)
	do(t, router, http.MethodGet, "/api/attempts/unknown", nil, http.StatusNotFound, nil)

	var outcome domain.Outcome
	do(t, router, http.MethodPost, "/api/assessments/brushing/submit", map[string]any{
		"userId":  "u2",
		"answers": []map[string]any{{"questionIndex": 0, "selectedOption": "1 minute"}},
	}, http.StatusOK, &outcome)
	if outcome.Result.ScorePercent != 0 || outcome.Result.TotalCount != 2 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestRESTListFilters(t *testing.T) {
	router := NewRouter(newTestService(), RouterOptions{})

	var defs []domain.PublicDefinition
	do(t, router, http.MethodGet, "/api/assessments?level=1&kind=lesson", nil, http.StatusOK, &defs)
	if len(defs) != 1 || defs[0].ID != "brushing" {
		t.Fatalf("expected brushing at level 1, got %+v", defs)
	}
	do(t, router, http.MethodGet, "/api/assessments?level=2", nil, http.StatusOK, &defs)
	if len(defs) != 0 {
		t.Fatalf("expected nothing at level 2, got %d", len(defs))
	}
	do(t, router, http.MethodGet, "/api/assessments?level=abc", nil, http.StatusBadRequest, nil)
	do(t, router, http.MethodGet, "/api/assessments?kind=exam", nil, http.StatusBadRequest, nil)
}

func TestRESTUsers(t *testing.T) {
	router := NewRouter(newTestService(), RouterOptions{})

	var created domain.User
	do(t, router, http.MethodPost, "/api/users", map[string]any{"username": "mia", "email": "mia@example.com"}, http.StatusOK, &created)
	if created.ID == "" || created.Level != 1 {
		t.Fatalf("unexpected user %+v", created)
	}

	var again domain.User
	do(t, router, http.MethodPost, "/api/users", map[string]any{"username": "other", "email": "mia@example.com"}, http.StatusOK, &again)
	if again.ID != created.ID {
		t.Fatalf("expected same account for a known email, got %s vs %s", again.ID, created.ID)
	}

	var fetched domain.User
	do(t, router, http.MethodGet, "/api/users/"+created.ID, nil, http.StatusOK, &fetched)
	if fetched.Username != "mia" {
		t.Fatalf("unexpected user %+v", fetched)
	}
	do(t, router, http.MethodGet, "/api/users/ghost", nil, http.StatusNotFound, nil)
	do(t, router, http.MethodPost, "/api/users", map[string]any{"username": "mia"}, http.StatusBadRequest, nil)
}

func TestRESTAbandonAndRetry(t *testing.T) {
	router := NewRouter(newTestService(), RouterOptions{})

	var started map[string]any
	do(t, router, http.MethodPost, "/api/attempts", map[string]any{"userId": "u1", "assessmentId": "brushing"}, http.StatusCreated, &started)
	id := started["id"].(string)

	var retried map[string]any
	do(t, router, http.MethodPost, "/api/attempts/"+id+"/retry", nil, http.StatusCreated, &retried)
	if retried["id"] == id {
		t.Fatalf("retry must issue a new attempt id")
	}
	do(t, router, http.MethodDelete, "/api/attempts/"+retried["id"].(string), nil, http.StatusNoContent, nil)
	do(t, router, http.MethodGet, "/api/attempts/"+retried["id"].(string), nil, http.StatusNotFound, nil)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.ErrIncomplete:                                    http.StatusConflict,
		domain.ErrAttemptClosed:                                 http.StatusConflict,
		fmt.Errorf("%w: bad index", domain.ErrValidation):       http.StatusBadRequest,
		domain.ErrAssessmentNotFound:                            http.StatusNotFound,
		domain.ErrUserNotFound:                                  http.StatusNotFound,
		fmt.Errorf("%w: no questions", domain.ErrConfiguration): http.StatusUnprocessableEntity,
		errors.New("boom"):                                      http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Fatalf("statusFor(%v)=%d, want %d", err, got, want)
		}
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any, wantStatus int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	if rec.Code != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d (%s)", method, path, wantStatus, rec.Code, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
}
