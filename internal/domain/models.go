package domain

import "time"

// Mode selects how a quiz session scopes its candidate questions.
type Mode string

const (
	ModeRandom   Mode = "random"
	ModeUnitWise Mode = "unitWise"
)

// Difficulty grades a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Role is stored on the user profile and gates admin operations.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// ChoiceCount is the fixed number of choices on every question.
const ChoiceCount = 4

// User is what the identity provider yields for a request.
type User struct {
	ID    string `json:"userId"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Subject is the root of the catalog.
type Subject struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Unit belongs to exactly one subject; code is unique within it.
type Unit struct {
	ID        string `json:"id"`
	SubjectID string `json:"subjectId"`
	Code      string `json:"code"`
	Name      string `json:"name"`
}

// Topic is an optional grouping inside a unit.
type Topic struct {
	ID     string `json:"id"`
	UnitID string `json:"unitId"`
	Code   string `json:"code"`
	Name   string `json:"name"`
}

// Question is a four-choice MCQ. ExternalID is the stable import key.
// UnitID is always set; TopicID is set when the question sits under a topic of that unit.
type Question struct {
	ID           string     `json:"id"`
	ExternalID   string     `json:"externalId"`
	UnitID       string     `json:"unitId"`
	UnitCode     string     `json:"unitCode,omitempty"`
	TopicID      string     `json:"topicId,omitempty"`
	Prompt       string     `json:"prompt"`
	Choices      []string   `json:"choices"`
	CorrectIndex int        `json:"correctIndex"`
	Explanation  string     `json:"explanation,omitempty"`
	Difficulty   Difficulty `json:"difficulty"`
	Tags         []string   `json:"tags"`
	References   []string   `json:"references"`
	IsActive     bool       `json:"isActive"`
}

// SubjectSummary is a subject listing row.
type SubjectSummary struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	UnitCount int    `json:"unitCount"`
}

// UnitSummary is a unit listing row.
type UnitSummary struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	TopicCount int    `json:"topicCount"`
}

// TopicSummary is a topic listing row.
type TopicSummary struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	QuestionCount int    `json:"questionCount"`
}

// CandidateFilter scopes the question pool fetched for a new session.
// An empty UnitCodes means every unit of the subject.
type CandidateFilter struct {
	SubjectID string
	UnitCodes []string
	Limit     int
}

// QuizSession is the frozen, time-bounded set of questions served to one user.
type QuizSession struct {
	ID        string
	UserID    string
	SubjectID string
	Mode      Mode
	Count     int
	UnitCode  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session can no longer be read or submitted.
func (s QuizSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionQuestion is one served question in its fixed order, joined with its content.
type SessionQuestion struct {
	OrderIndex int
	Question   Question
}

// Attempt is the single graded submission for a session.
type Attempt struct {
	ID            string    `json:"attemptId"`
	QuizSessionID string    `json:"quizSessionId"`
	UserID        string    `json:"userId"`
	SubmittedAt   time.Time `json:"submittedAt"`
	CorrectCount  int       `json:"correctCount"`
	TotalCount    int       `json:"totalCount"`
}

// AttemptAnswer is computed once at grading time and never recomputed.
type AttemptAnswer struct {
	QuestionID    string
	SelectedIndex int
	IsCorrect     bool
}

// AnswerSubmission is a client answer. SelectedIndex is -1 when the client sent something malformed.
type AnswerSubmission struct {
	ExternalID    string
	SelectedIndex int
}

// Score is the aggregate of a graded attempt.
type Score struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// QuestionResult reveals the answer key for one question after grading.
type QuestionResult struct {
	ExternalID    string  `json:"externalId"`
	SelectedIndex int     `json:"selectedIndex"`
	CorrectIndex  int     `json:"correctIndex"`
	IsCorrect     bool    `json:"isCorrect"`
	Explanation   *string `json:"explanation"`
}

// GradedAttempt is the response shape of a submission and of a reviewed session.
type GradedAttempt struct {
	AttemptID   string           `json:"attemptId"`
	SubmittedAt time.Time        `json:"submittedAt"`
	Score       Score            `json:"score"`
	Results     []QuestionResult `json:"results"`
}

// Standing is the raw per-user aggregate over attempts.
type Standing struct {
	UserID          string
	Attempts        int
	TotalCorrect    int
	TotalQuestions  int
	LastSubmittedAt time.Time
}

// LeaderboardEntry is a ranked, display-ready standing.
type LeaderboardEntry struct {
	UserID          string    `json:"userId"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Attempts        int       `json:"attempts"`
	TotalCorrect    int       `json:"totalCorrect"`
	TotalQuestions  int       `json:"totalQuestions"`
	Accuracy        float64   `json:"accuracy"`
	LastSubmittedAt time.Time `json:"lastSubmittedAt"`
}

// ImportQuestion is one question of a bulk import batch.
type ImportQuestion struct {
	ExternalID   string
	Prompt       string
	Choices      []string
	CorrectIndex int
	Explanation  string
	Difficulty   Difficulty
	Tags         []string
	References   []string
}

// ImportBatch upserts one subject, one unit and its questions.
type ImportBatch struct {
	SubjectCode string
	SubjectName string
	UnitCode    string
	UnitName    string
	Questions   []ImportQuestion
}

// ImportResult reports what a batch touched.
type ImportResult struct {
	SubjectID         string `json:"subjectId"`
	UnitID            string `json:"unitId"`
	QuestionsUpserted int    `json:"questionsUpserted"`
}

// AttemptRecord is an attempt together with its per-question answers, persisted atomically.
type AttemptRecord struct {
	Attempt Attempt
	Answers []AttemptAnswer
}
