package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-practice-service/internal/domain"
)

// Store is an in-process implementation of every repository port. All multi-row writes happen
// under one lock, which gives them the same all-or-nothing visibility as a transaction.
type Store struct {
	mu sync.RWMutex

	subjects      map[string]domain.Subject
	subjectByCode map[string]string
	units         map[string]domain.Unit
	topics        map[string]domain.Topic
	questions     map[string]domain.Question
	questionOrder []string
	byExternalID  map[string]string

	sessions         map[string]domain.QuizSession
	sessionQuestions map[string][]sessionRow

	attempts     map[attemptKey]domain.AttemptRecord
	attemptOrder []attemptKey

	profiles map[string]domain.Role
}

type sessionRow struct {
	orderIndex int
	questionID string
}

type attemptKey struct {
	sessionID string
	userID    string
}

func NewStore() *Store {
	return &Store{
		subjects:         make(map[string]domain.Subject),
		subjectByCode:    make(map[string]string),
		units:            make(map[string]domain.Unit),
		topics:           make(map[string]domain.Topic),
		questions:        make(map[string]domain.Question),
		byExternalID:     make(map[string]string),
		sessions:         make(map[string]domain.QuizSession),
		sessionQuestions: make(map[string][]sessionRow),
		attempts:         make(map[attemptKey]domain.AttemptRecord),
		profiles:         make(map[string]domain.Role),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateSession(_ context.Context, session domain.QuizSession, questionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return domain.DBError("Quiz session already exists.", nil)
	}
	for _, id := range questionIDs {
		if _, ok := s.questions[id]; !ok {
			return domain.DBError("Unknown question in session.", nil)
		}
	}

	rows := make([]sessionRow, len(questionIDs))
	for i, id := range questionIDs {
		rows[i] = sessionRow{orderIndex: i, questionID: id}
	}
	s.sessions[session.ID] = session
	s.sessionQuestions[session.ID] = rows
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) SessionQuestions(_ context.Context, sessionID string) ([]domain.SessionQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.sessionQuestions[sessionID]
	out := make([]domain.SessionQuestion, 0, len(rows))
	for _, r := range rows {
		q, ok := s.questions[r.questionID]
		if !ok {
			continue
		}
		out = append(out, domain.SessionQuestion{OrderIndex: r.orderIndex, Question: s.withUnitCode(q)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (s *Store) FindAttempt(_ context.Context, sessionID, userID string) (domain.AttemptRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.attempts[attemptKey{sessionID: sessionID, userID: userID}]
	return cloneRecord(record), ok, nil
}

func (s *Store) CreateAttempt(_ context.Context, record domain.AttemptRecord) (domain.AttemptRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := attemptKey{sessionID: record.Attempt.QuizSessionID, userID: record.Attempt.UserID}
	if existing, ok := s.attempts[key]; ok {
		return cloneRecord(existing), false, nil
	}
	s.attempts[key] = cloneRecord(record)
	s.attemptOrder = append(s.attemptOrder, key)
	return cloneRecord(record), true, nil
}

// AttemptCount is used by tests to assert that replays never write.
func (s *Store) AttemptCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}

func (s *Store) TopStandings(_ context.Context, limit int) ([]domain.Standing, error) {
	s.mu.RLock()
	byUser := make(map[string]*domain.Standing)
	for _, key := range s.attemptOrder {
		a := s.attempts[key].Attempt
		st, ok := byUser[a.UserID]
		if !ok {
			st = &domain.Standing{UserID: a.UserID}
			byUser[a.UserID] = st
		}
		st.Attempts++
		st.TotalCorrect += a.CorrectCount
		st.TotalQuestions += a.TotalCount
		if a.SubmittedAt.After(st.LastSubmittedAt) {
			st.LastSubmittedAt = a.SubmittedAt
		}
	}
	s.mu.RUnlock()

	out := make([]domain.Standing, 0, len(byUser))
	for _, st := range byUser {
		out = append(out, *st)
	}
	SortStandings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SortStandings orders by total correct desc, last submission desc, then user id.
func SortStandings(standings []domain.Standing) {
	sort.Slice(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.TotalCorrect != b.TotalCorrect {
			return a.TotalCorrect > b.TotalCorrect
		}
		if !a.LastSubmittedAt.Equal(b.LastSubmittedAt) {
			return a.LastSubmittedAt.After(b.LastSubmittedAt)
		}
		return a.UserID < b.UserID
	})
}

func (s *Store) GetRole(_ context.Context, userID string) (domain.Role, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.profiles[userID]
	return role, ok, nil
}

func (s *Store) EnsureRole(_ context.Context, userID string, role domain.Role) (domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.profiles[userID]; ok {
		return existing, nil
	}
	s.profiles[userID] = role
	return role, nil
}

func cloneRecord(r domain.AttemptRecord) domain.AttemptRecord {
	if r.Answers != nil {
		r.Answers = append([]domain.AttemptAnswer(nil), r.Answers...)
	}
	return r
}
