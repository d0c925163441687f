package domain

import (
	"errors"
	"fmt"
)

// Code is the machine-readable error kind surfaced to clients.
type Code string

const (
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeExpired            Code = "EXPIRED"
	CodeConflict           Code = "CONFLICT"
	CodeInvalidJSON        Code = "INVALID_JSON"
	CodeInvalidBody        Code = "INVALID_BODY"
	CodeInvalidPayload     Code = "INVALID_PAYLOAD"
	CodeNotEnoughQuestions Code = "NOT_ENOUGH_QUESTIONS"
	CodeIncomplete         Code = "INCOMPLETE"
	CodeDBError            Code = "DB_ERROR"
	CodeInternal           Code = "INTERNAL_SERVER_ERROR"
)

// Error is a typed failure carrying a client-safe message.
// Err holds the underlying cause and is never shown to clients.
type Error struct {
	Code    Code
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrUnauthorized is returned when a request carries no resolvable identity.
	ErrUnauthorized = &Error{Code: CodeUnauthorized, Message: "Login required."}
	// ErrAdminRequired is returned when an authenticated user is not an admin.
	ErrAdminRequired = &Error{Code: CodeForbidden, Message: "Admin access required."}
	// ErrSessionNotFound is returned when a quiz session id does not exist.
	ErrSessionNotFound = &Error{Code: CodeNotFound, Message: "Quiz session not found."}
	// ErrNotSessionOwner is returned when a user touches someone else's session.
	ErrNotSessionOwner = &Error{Code: CodeForbidden, Message: "Not your quiz session."}
	// ErrSessionExpired is returned once a session is past its expiry.
	ErrSessionExpired = &Error{Code: CodeExpired, Message: "Quiz session expired. Start a new quiz."}
	// ErrSubjectNotFound indicates an unknown subject code or id.
	ErrSubjectNotFound = &Error{Code: CodeNotFound, Message: "Subject not found."}
	// ErrUnitNotFound indicates an unknown unit.
	ErrUnitNotFound = &Error{Code: CodeNotFound, Message: "Unit not found."}
	// ErrTopicNotFound indicates an unknown topic.
	ErrTopicNotFound = &Error{Code: CodeNotFound, Message: "Topic not found."}
	// ErrSubjectExists is returned when creating a subject whose code is taken.
	ErrSubjectExists = &Error{Code: CodeConflict, Message: "Subject with this code already exists."}
	// ErrUnitExists is returned when a unit code is already used within the subject.
	ErrUnitExists = &Error{Code: CodeConflict, Message: "Unit with this code already exists in the subject."}
	// ErrQuestionExists is returned when an externalId is already taken.
	ErrQuestionExists = &Error{Code: CodeConflict, Message: "Question with this externalId already exists."}
	// ErrContentInUse is returned when deleting content that a quiz session already served.
	ErrContentInUse = &Error{Code: CodeConflict, Message: "Content is referenced by existing quiz sessions."}
	// ErrAttemptExists is returned by storage when a session already has an attempt for the user.
	ErrAttemptExists = errors.New("attempt already exists for session")
)

// NotEnoughQuestions reports a pool smaller than the requested count.
func NotEnoughQuestions(requested, available int) *Error {
	return &Error{
		Code:    CodeNotEnoughQuestions,
		Message: fmt.Sprintf("Not enough questions in this scope. Requested %d, available %d.", requested, available),
	}
}

// Incomplete reports a submission that does not cover every served question.
func Incomplete(expected, got int) *Error {
	return &Error{
		Code:    CodeIncomplete,
		Message: fmt.Sprintf("Answers incomplete. Expected %d, got %d.", expected, got),
	}
}

// InvalidBody reports a malformed quiz request.
func InvalidBody(fields map[string][]string) *Error {
	return &Error{Code: CodeInvalidBody, Message: "Invalid request body.", Fields: fields}
}

// InvalidPayload reports a schema-violating admin or import payload.
func InvalidPayload(fields map[string][]string) *Error {
	return &Error{Code: CodeInvalidPayload, Message: "Invalid payload.", Fields: fields}
}

// InvalidJSON reports a body that is not JSON at all.
func InvalidJSON(err error) *Error {
	return &Error{Code: CodeInvalidJSON, Message: "Body must be valid JSON.", Err: err}
}

// DBError wraps a storage failure behind a client-safe message.
func DBError(message string, err error) *Error {
	return &Error{Code: CodeDBError, Message: message, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
