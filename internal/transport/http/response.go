package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/domain"
)

type envelope struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    domain.Code         `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{OK: true, Data: data})
}

// writeError renders err as a typed envelope. Anything that is not a domain error
// is logged and reported as a generic internal failure.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		config.WithContext(r.Context()).WithError(err).Error("unhandled error")
		de = &domain.Error{Code: domain.CodeInternal, Message: "Internal server error."}
	}

	status := statusFor(de.Code)
	if status >= http.StatusInternalServerError && de.Err != nil {
		config.WithContext(r.Context()).WithError(de.Err).WithField("code", de.Code).Error(de.Message)
	}
	writeJSON(w, status, envelope{Error: &errorBody{Code: de.Code, Message: de.Message, Details: de.Fields}})
}

func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeExpired:
		return http.StatusGone
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeInvalidJSON, domain.CodeInvalidBody, domain.CodeInvalidPayload,
		domain.CodeNotEnoughQuestions, domain.CodeIncomplete:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into dst. Syntax errors are INVALID_JSON; a body of the
// wrong shape is reported with the supplied constructor.
func decodeJSON(r *http.Request, dst any, shapeErr func(map[string][]string) *domain.Error) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field := typeErr.Field
			if field == "" {
				field = "body"
			}
			return shapeErr(map[string][]string{field: {"has the wrong type"}})
		}
		return domain.InvalidJSON(err)
	}
	return nil
}
