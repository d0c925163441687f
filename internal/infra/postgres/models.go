package postgres

import (
	"time"

	"quiz-practice-service/internal/domain"

	"github.com/uptrace/bun"
)

type subjectRow struct {
	bun.BaseModel `bun:"table:subjects,alias:s"`

	ID        string    `bun:"id,pk"`
	Code      string    `bun:"code,notnull"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r subjectRow) toDomain() domain.Subject {
	return domain.Subject{ID: r.ID, Code: r.Code, Name: r.Name}
}

type unitRow struct {
	bun.BaseModel `bun:"table:units,alias:u"`

	ID        string    `bun:"id,pk"`
	SubjectID string    `bun:"subject_id,notnull"`
	Code      string    `bun:"code,notnull"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r unitRow) toDomain() domain.Unit {
	return domain.Unit{ID: r.ID, SubjectID: r.SubjectID, Code: r.Code, Name: r.Name}
}

type topicRow struct {
	bun.BaseModel `bun:"table:topics,alias:t"`

	ID     string `bun:"id,pk"`
	UnitID string `bun:"unit_id,notnull"`
	Code   string `bun:"code,notnull"`
	Name   string `bun:"name,notnull"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID           string    `bun:"id,pk"`
	ExternalID   string    `bun:"external_id,notnull"`
	UnitID       string    `bun:"unit_id,notnull"`
	TopicID      string    `bun:"topic_id,nullzero"`
	Prompt       string    `bun:"prompt,notnull"`
	Choices      []string  `bun:"choices,array"`
	CorrectIndex int       `bun:"correct_index"`
	Explanation  string    `bun:"explanation,nullzero"`
	Difficulty   string    `bun:"difficulty,notnull"`
	Tags         []string  `bun:"tags,array"`
	References   []string  `bun:"references,array"`
	IsActive     bool      `bun:"is_active"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`

	// filled by joins
	UnitCode   string `bun:"unit_code,scanonly"`
	OrderIndex int    `bun:"order_index,scanonly"`
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:           r.ID,
		ExternalID:   r.ExternalID,
		UnitID:       r.UnitID,
		UnitCode:     r.UnitCode,
		TopicID:      r.TopicID,
		Prompt:       r.Prompt,
		Choices:      r.Choices,
		CorrectIndex: r.CorrectIndex,
		Explanation:  r.Explanation,
		Difficulty:   domain.Difficulty(r.Difficulty),
		Tags:         nonNil(r.Tags),
		References:   nonNil(r.References),
		IsActive:     r.IsActive,
	}
}

func questionFromDomain(q domain.Question) questionRow {
	return questionRow{
		ID:           q.ID,
		ExternalID:   q.ExternalID,
		UnitID:       q.UnitID,
		TopicID:      q.TopicID,
		Prompt:       q.Prompt,
		Choices:      q.Choices,
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
		Difficulty:   string(q.Difficulty),
		Tags:         nonNil(q.Tags),
		References:   nonNil(q.References),
		IsActive:     q.IsActive,
	}
}

type sessionRow struct {
	bun.BaseModel `bun:"table:quiz_sessions,alias:qs"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	SubjectID string    `bun:"subject_id,notnull"`
	Mode      string    `bun:"mode,notnull"`
	Count     int       `bun:"count"`
	UnitCode  string    `bun:"unit_code,nullzero"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
}

func (r sessionRow) toDomain() domain.QuizSession {
	return domain.QuizSession{
		ID:        r.ID,
		UserID:    r.UserID,
		SubjectID: r.SubjectID,
		Mode:      domain.Mode(r.Mode),
		Count:     r.Count,
		UnitCode:  r.UnitCode,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

type sessionQuestionRow struct {
	bun.BaseModel `bun:"table:quiz_session_questions,alias:sq"`

	QuizSessionID string `bun:"quiz_session_id,pk"`
	OrderIndex    int    `bun:"order_index,pk"`
	QuestionID    string `bun:"question_id,notnull"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:qa"`

	ID            string    `bun:"id,pk"`
	QuizSessionID string    `bun:"quiz_session_id,notnull"`
	UserID        string    `bun:"user_id,notnull"`
	SubmittedAt   time.Time `bun:"submitted_at,notnull"`
	CorrectCount  int       `bun:"correct_count"`
	TotalCount    int       `bun:"total_count"`
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:            r.ID,
		QuizSessionID: r.QuizSessionID,
		UserID:        r.UserID,
		SubmittedAt:   r.SubmittedAt,
		CorrectCount:  r.CorrectCount,
		TotalCount:    r.TotalCount,
	}
}

type attemptAnswerRow struct {
	bun.BaseModel `bun:"table:quiz_attempt_answers,alias:aa"`

	QuizAttemptID string `bun:"quiz_attempt_id,pk"`
	QuestionID    string `bun:"question_id,pk"`
	SelectedIndex int    `bun:"selected_index"`
	IsCorrect     bool   `bun:"is_correct"`
}

type profileRow struct {
	bun.BaseModel `bun:"table:user_profiles,alias:p"`

	UserID    string    `bun:"user_id,pk"`
	Role      string    `bun:"role,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type standingRow struct {
	UserID          string    `bun:"user_id"`
	Attempts        int       `bun:"attempts"`
	TotalCorrect    int       `bun:"total_correct"`
	TotalQuestions  int       `bun:"total_questions"`
	LastSubmittedAt time.Time `bun:"last_submitted_at"`
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
