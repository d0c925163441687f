package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultSessionTTL is how long a session stays readable and submittable.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultPoolFloor is the minimum candidate prefetch size.
	DefaultPoolFloor = 500
)

// QuizService contains the quiz session use cases: start, read and submit.
type QuizService struct {
	catalog    CatalogRepository
	sessions   SessionRepository
	attempts   AttemptRepository
	locker     SubmissionLocker
	listeners  []AttemptListener
	now        func() time.Time
	intn       func(n int) int
	newID      func() string
	sessionTTL time.Duration
	poolFloor  int
}

// Option customises a QuizService.
type Option func(*QuizService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithRandom replaces the uniform index source used by the shuffle.
func WithRandom(intn func(n int) int) Option {
	return func(s *QuizService) { s.intn = intn }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *QuizService) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func WithPoolFloor(n int) Option {
	return func(s *QuizService) {
		if n > 0 {
			s.poolFloor = n
		}
	}
}

// WithLocker serializes grading per session.
func WithLocker(locker SubmissionLocker) Option {
	return func(s *QuizService) { s.locker = locker }
}

// WithListeners registers listeners run, in order, after each newly committed attempt.
func WithListeners(listeners ...AttemptListener) Option {
	return func(s *QuizService) { s.listeners = append(s.listeners, listeners...) }
}

func NewQuizService(catalog CatalogRepository, sessions SessionRepository, attempts AttemptRepository, opts ...Option) *QuizService {
	s := &QuizService{
		catalog:    catalog,
		sessions:   sessions,
		attempts:   attempts,
		now:        time.Now,
		intn:       rand.IntN,
		newID:      uuid.NewString,
		sessionTTL: DefaultSessionTTL,
		poolFloor:  DefaultPoolFloor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddListener registers a listener after construction.
func (s *QuizService) AddListener(l AttemptListener) {
	s.listeners = append(s.listeners, l)
}

// StartQuizRequest is the input of the session generator.
type StartQuizRequest struct {
	SubjectCode string      `json:"subjectCode" validate:"required"`
	Mode        domain.Mode `json:"mode" validate:"required,oneof=random unitWise"`
	Count       int         `json:"count" validate:"required,oneof=25 50 75 100"`
	UnitCodes   []string    `json:"unitCodes"`
}

// StartQuizResult is everything a client learns when a session starts. No answer keys.
type StartQuizResult struct {
	SessionID string    `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Start selects a fixed random question set for the user and persists it as a new session.
func (s *QuizService) Start(ctx context.Context, userID string, req StartQuizRequest) (StartQuizResult, error) {
	log := config.WithContext(ctx).WithFields(logrus.Fields{"user_id": userID, "subject": req.SubjectCode})

	if userID == "" {
		return StartQuizResult{}, domain.ErrUnauthorized
	}
	if err := validateStartRequest(req); err != nil {
		return StartQuizResult{}, err
	}

	subject, err := s.catalog.SubjectByCode(ctx, req.SubjectCode)
	if err != nil {
		return StartQuizResult{}, wrapStorage(ctx, "Failed to load subject.", err)
	}

	filter := domain.CandidateFilter{
		SubjectID: subject.ID,
		Limit:     max(s.poolFloor, req.Count*2),
	}
	if req.Mode == domain.ModeUnitWise {
		filter.UnitCodes = req.UnitCodes
	}

	candidates, err := s.catalog.CandidateQuestions(ctx, filter)
	if err != nil {
		log.WithError(err).Error("failed to load candidate questions")
		return StartQuizResult{}, domain.DBError("Failed to load questions.", err)
	}

	picked, err := pickRandom(candidates, req.Count, s.intn)
	if err != nil {
		return StartQuizResult{}, err
	}

	now := s.now()
	session := domain.QuizSession{
		ID:        s.newID(),
		UserID:    userID,
		SubjectID: subject.ID,
		Mode:      req.Mode,
		Count:     req.Count,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if req.Mode == domain.ModeUnitWise && len(req.UnitCodes) == 1 {
		session.UnitCode = req.UnitCodes[0]
	}

	questionIDs := make([]string, len(picked))
	for i, q := range picked {
		questionIDs[i] = q.ID
	}
	if err := s.sessions.CreateSession(ctx, session, questionIDs); err != nil {
		log.WithError(err).Error("failed to create quiz session")
		return StartQuizResult{}, domain.DBError("Failed to create quiz session.", err)
	}

	log.WithFields(logrus.Fields{"session_id": session.ID, "count": session.Count, "mode": session.Mode}).Info("quiz session started")
	return StartQuizResult{
		SessionID: session.ID,
		StartedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func validateStartRequest(req StartQuizRequest) error {
	fields := validateStruct(req)
	if req.Mode == domain.ModeUnitWise {
		if len(req.UnitCodes) == 0 {
			addField(fields, "unitCodes", "must be a non-empty list for unitWise")
		}
		for _, code := range req.UnitCodes {
			if strings.TrimSpace(code) == "" {
				addField(fields, "unitCodes", "must contain only non-empty strings")
				break
			}
		}
	}
	if len(fields) > 0 {
		return domain.InvalidBody(fields)
	}
	return nil
}

// SubjectRef names the subject of a session.
type SubjectRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// PublicQuestion is a served question without its answer key or explanation.
type PublicQuestion struct {
	OrderIndex int               `json:"orderIndex"`
	ExternalID string            `json:"externalId"`
	Prompt     string            `json:"prompt"`
	Choices    []string          `json:"choices"`
	Difficulty domain.Difficulty `json:"difficulty"`
	UnitCode   string            `json:"unitCode,omitempty"`
}

// SessionView is a session as shown to its owner; Attempt is set once graded.
type SessionView struct {
	SessionID string                `json:"sessionId"`
	StartedAt time.Time             `json:"startedAt"`
	ExpiresAt time.Time             `json:"expiresAt"`
	Mode      domain.Mode           `json:"mode"`
	Count     int                   `json:"count"`
	Subject   SubjectRef            `json:"subject"`
	UnitCode  *string               `json:"unitCode"`
	Questions []PublicQuestion      `json:"questions"`
	Attempt   *domain.GradedAttempt `json:"attempt"`
}

// GetSession reconstructs a session for its owner. It never writes.
func (s *QuizService) GetSession(ctx context.Context, userID, sessionID string) (SessionView, error) {
	session, err := s.authorizeSession(ctx, userID, sessionID)
	if err != nil {
		return SessionView{}, err
	}

	subject, err := s.catalog.SubjectByID(ctx, session.SubjectID)
	if err != nil {
		return SessionView{}, wrapStorage(ctx, "Failed to load subject.", err)
	}

	served, err := s.sessions.SessionQuestions(ctx, session.ID)
	if err != nil {
		return SessionView{}, wrapStorage(ctx, "Failed to load session questions.", err)
	}

	view := SessionView{
		SessionID: session.ID,
		StartedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
		Mode:      session.Mode,
		Count:     session.Count,
		Subject:   SubjectRef{Code: subject.Code, Name: subject.Name},
		Questions: make([]PublicQuestion, 0, len(served)),
	}
	if session.UnitCode != "" {
		unitCode := session.UnitCode
		view.UnitCode = &unitCode
	}
	for _, sq := range served {
		view.Questions = append(view.Questions, PublicQuestion{
			OrderIndex: sq.OrderIndex,
			ExternalID: sq.Question.ExternalID,
			Prompt:     sq.Question.Prompt,
			Choices:    sq.Question.Choices,
			Difficulty: sq.Question.Difficulty,
			UnitCode:   sq.Question.UnitCode,
		})
	}

	record, found, err := s.attempts.FindAttempt(ctx, session.ID, userID)
	if err != nil {
		return SessionView{}, wrapStorage(ctx, "Failed to load attempt.", err)
	}
	if found {
		graded := buildGradedAttempt(record, served)
		view.Attempt = &graded
	}
	return view, nil
}

// authorizeSession applies the not-found, ownership and expiry gates shared by read and submit.
func (s *QuizService) authorizeSession(ctx context.Context, userID, sessionID string) (domain.QuizSession, error) {
	if userID == "" {
		return domain.QuizSession{}, domain.ErrUnauthorized
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.QuizSession{}, domain.ErrSessionNotFound
		}
		return domain.QuizSession{}, wrapStorage(ctx, "Failed to load quiz session.", err)
	}
	if session.UserID != userID {
		return domain.QuizSession{}, domain.ErrNotSessionOwner
	}
	if session.Expired(s.now()) {
		return domain.QuizSession{}, domain.ErrSessionExpired
	}
	return session, nil
}

// wrapStorage passes domain errors through and hides everything else behind DB_ERROR.
func wrapStorage(ctx context.Context, message string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	config.WithContext(ctx).WithError(err).Error(message)
	return domain.DBError(message, err)
}
