package app

import (
	"context"

	"quiz-practice-service/internal/domain"
)

// CatalogRepository reads and mutates subjects, units, topics and questions.
// Lookups return the matching domain sentinel (ErrSubjectNotFound, ...) when nothing matches.
type CatalogRepository interface {
	SubjectByCode(ctx context.Context, code string) (domain.Subject, error)
	SubjectByID(ctx context.Context, id string) (domain.Subject, error)
	UnitByCode(ctx context.Context, subjectID, code string) (domain.Unit, error)
	UnitByID(ctx context.Context, id string) (domain.Unit, error)
	TopicByID(ctx context.Context, id string) (domain.Topic, error)

	ListSubjects(ctx context.Context) ([]domain.SubjectSummary, error)
	ListUnits(ctx context.Context, subjectID string) ([]domain.UnitSummary, error)
	ListTopics(ctx context.Context, unitID string) ([]domain.TopicSummary, error)

	// CandidateQuestions returns at most filter.Limit active questions in scope, in storage order.
	CandidateQuestions(ctx context.Context, filter domain.CandidateFilter) ([]domain.Question, error)

	CreateSubject(ctx context.Context, subject domain.Subject) error
	CreateUnit(ctx context.Context, unit domain.Unit) error
	CreateQuestion(ctx context.Context, question domain.Question) error
	// CreateQuestions inserts all questions atomically, skipping any whose externalId is
	// already stored or repeated earlier in the slice. It returns how many were inserted.
	CreateQuestions(ctx context.Context, questions []domain.Question) (int, error)
	DeleteSubject(ctx context.Context, id string) error
	DeleteUnit(ctx context.Context, id string) error

	// Import upserts the batch in a single transaction, keyed by subject code,
	// (subject, unit code) and question externalId.
	Import(ctx context.Context, batch domain.ImportBatch, newID func() string) (domain.ImportResult, error)
}

// SessionRepository persists quiz sessions and their frozen question order.
type SessionRepository interface {
	// CreateSession stores the session and one row per question (orderIndex = slice position)
	// atomically. Duplicate (session, orderIndex) rows are skipped.
	CreateSession(ctx context.Context, session domain.QuizSession, questionIDs []string) error
	GetSession(ctx context.Context, id string) (domain.QuizSession, error)
	// SessionQuestions returns the served questions ordered by orderIndex, answer keys included.
	SessionQuestions(ctx context.Context, sessionID string) ([]domain.SessionQuestion, error)
}

// AttemptRepository persists graded attempts.
type AttemptRepository interface {
	FindAttempt(ctx context.Context, sessionID, userID string) (domain.AttemptRecord, bool, error)
	// CreateAttempt inserts the attempt and its answers atomically. When an attempt already
	// exists for (session, user) nothing is written and the stored record is returned with created=false.
	CreateAttempt(ctx context.Context, record domain.AttemptRecord) (stored domain.AttemptRecord, created bool, err error)
}

// StandingsRepository aggregates attempts per user, ordered by total correct desc
// then most recent submission desc.
type StandingsRepository interface {
	TopStandings(ctx context.Context, limit int) ([]domain.Standing, error)
}

// ProfileRepository stores the role attached to a user id.
type ProfileRepository interface {
	GetRole(ctx context.Context, userID string) (domain.Role, bool, error)
	// EnsureRole creates the profile with role when missing and returns the stored role.
	EnsureRole(ctx context.Context, userID string, role domain.Role) (domain.Role, error)
}

// UserDirectory resolves display names and emails for user ids.
type UserDirectory interface {
	LookupUsers(ctx context.Context, ids []string) (map[string]domain.User, error)
}

// SubmissionLocker serializes grading per session. The returned func releases the lock.
type SubmissionLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// AttemptListener is notified after a new attempt has been committed.
// Replayed submissions never notify.
type AttemptListener interface {
	AttemptGraded(ctx context.Context, attempt domain.Attempt)
}
