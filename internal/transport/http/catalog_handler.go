package http

import (
	"net/http"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/auth"
	"quiz-practice-service/internal/domain"

	"github.com/go-chi/chi/v5"
)

type catalogHandler struct {
	service *app.CatalogService
}

func (h *catalogHandler) listSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.ListSubjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, subjects)
}

func (h *catalogHandler) listUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.ListUnits(r.Context(), chi.URLParam(r, "subjectCode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, units)
}

func (h *catalogHandler) listTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.service.ListTopics(r.Context(), chi.URLParam(r, "subjectCode"), chi.URLParam(r, "unitCode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, topics)
}

func (h *catalogHandler) createSubject(w http.ResponseWriter, r *http.Request) {
	var req app.CreateSubjectRequest
	if err := decodeJSON(r, &req, domain.InvalidPayload); err != nil {
		writeError(w, r, err)
		return
	}
	subject, err := h.service.CreateSubject(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, subject)
}

func (h *catalogHandler) createUnit(w http.ResponseWriter, r *http.Request) {
	var req app.CreateUnitRequest
	if err := decodeJSON(r, &req, domain.InvalidPayload); err != nil {
		writeError(w, r, err)
		return
	}
	unit, err := h.service.CreateUnit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, unit)
}

func (h *catalogHandler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var req app.CreateQuestionRequest
	if err := decodeJSON(r, &req, domain.InvalidPayload); err != nil {
		writeError(w, r, err)
		return
	}
	question, err := h.service.CreateQuestion(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, question)
}

// createQuestions takes a bare JSON array of questions.
func (h *catalogHandler) createQuestions(w http.ResponseWriter, r *http.Request) {
	var req app.BulkCreateQuestionsRequest
	if err := decodeJSON(r, &req.Questions, domain.InvalidPayload); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.service.BulkCreateQuestions(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, result)
}

type deletedResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func (h *catalogHandler) deleteSubject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "subjectId")
	if err := h.service.DeleteSubject(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, deletedResponse{ID: id, Deleted: true})
}

func (h *catalogHandler) deleteUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "unitId")
	if err := h.service.DeleteUnit(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, deletedResponse{ID: id, Deleted: true})
}

func (h *catalogHandler) importQuestions(w http.ResponseWriter, r *http.Request) {
	var payload app.ImportPayload
	if err := decodeJSON(r, &payload, domain.InvalidPayload); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.service.Import(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

type profileHandler struct {
	service *app.ProfileService
}

type profileResponse struct {
	Role domain.Role `json:"role"`
}

func (h *profileHandler) ensure(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.Ensure(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, profileResponse{Role: role})
}
