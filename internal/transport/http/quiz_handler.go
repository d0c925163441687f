package http

import (
	"bytes"
	"encoding/json"
	"net/http"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/auth"
	"quiz-practice-service/internal/domain"

	"github.com/go-chi/chi/v5"
)

type quizHandler struct {
	service *app.QuizService
}

func (h *quizHandler) start(w http.ResponseWriter, r *http.Request) {
	var req app.StartQuizRequest
	if err := decodeJSON(r, &req, domain.InvalidBody); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.service.Start(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *quizHandler) session(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetSession(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

type submitRequest struct {
	SessionID string            `json:"sessionId"`
	Answers   []json.RawMessage `json:"answers"`
}

func (h *quizHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req, domain.InvalidBody); err != nil {
		writeError(w, r, err)
		return
	}
	fields := map[string][]string{}
	if req.SessionID == "" {
		fields["sessionId"] = []string{"is required"}
	}
	if req.Answers == nil {
		fields["answers"] = []string{"is required"}
	}
	if len(fields) > 0 {
		writeError(w, r, domain.InvalidBody(fields))
		return
	}

	answers := make([]domain.AnswerSubmission, len(req.Answers))
	for i, raw := range req.Answers {
		answers[i] = decodeAnswer(raw)
	}

	res, err := h.service.Submit(r.Context(), auth.UserID(r.Context()), req.SessionID, answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res.GradedAttempt)
}

// decodeAnswer never fails. Fields of the wrong type decode to values that grading discards:
// an empty externalId or a selectedIndex of -1.
func decodeAnswer(raw json.RawMessage) domain.AnswerSubmission {
	out := domain.AnswerSubmission{SelectedIndex: -1}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out
	}
	if v, ok := fields["externalId"]; ok {
		_ = json.Unmarshal(v, &out.ExternalID)
	}
	if v, ok := fields["selectedIndex"]; ok {
		out.SelectedIndex = choiceIndex(v)
	}
	return out
}

// choiceIndex accepts only the integer literals 0..3. 1.0, "1" and 1e0 are rejected.
func choiceIndex(v json.RawMessage) int {
	v = bytes.TrimSpace(v)
	if len(v) != 1 || v[0] < '0' || v[0] > '0'+domain.ChoiceCount-1 {
		return -1
	}
	return int(v[0] - '0')
}
