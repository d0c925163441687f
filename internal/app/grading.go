package app

import (
	"context"

	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/domain"

	"github.com/sirupsen/logrus"
)

// SubmitResult is the graded attempt. Replayed is true when an earlier attempt was returned unchanged.
type SubmitResult struct {
	domain.GradedAttempt
	Replayed bool `json:"-"`
}

// Submit grades a session exactly once. Later submissions return the first result verbatim.
func (s *QuizService) Submit(ctx context.Context, userID, sessionID string, answers []domain.AnswerSubmission) (SubmitResult, error) {
	log := config.WithContext(ctx).WithFields(logrus.Fields{"user_id": userID, "session_id": sessionID})

	session, err := s.authorizeSession(ctx, userID, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, "quiz:submit:"+session.ID)
		if err != nil {
			log.WithError(err).Error("failed to acquire submit lock")
			return SubmitResult{}, domain.DBError("Failed to submit quiz.", err)
		}
		defer unlock()
	}

	served, err := s.sessions.SessionQuestions(ctx, session.ID)
	if err != nil {
		return SubmitResult{}, wrapStorage(ctx, "Failed to load session questions.", err)
	}

	existing, found, err := s.attempts.FindAttempt(ctx, session.ID, userID)
	if err != nil {
		return SubmitResult{}, wrapStorage(ctx, "Failed to load attempt.", err)
	}
	if found {
		return SubmitResult{GradedAttempt: buildGradedAttempt(existing, served), Replayed: true}, nil
	}

	normalized := normalizeAnswers(answers, served)
	if len(normalized) != len(served) {
		return SubmitResult{}, domain.Incomplete(len(served), len(normalized))
	}

	record := scoreAnswers(normalized, served)
	record.Attempt.ID = s.newID()
	record.Attempt.QuizSessionID = session.ID
	record.Attempt.UserID = userID
	record.Attempt.SubmittedAt = s.now()

	stored, created, err := s.attempts.CreateAttempt(ctx, record)
	if err != nil {
		log.WithError(err).Error("failed to persist attempt")
		return SubmitResult{}, domain.DBError("Failed to submit quiz.", err)
	}
	if !created {
		log.Info("concurrent submission lost the race, returning stored attempt")
		return SubmitResult{GradedAttempt: buildGradedAttempt(stored, served), Replayed: true}, nil
	}

	log.WithFields(logrus.Fields{
		"attempt_id": stored.Attempt.ID,
		"correct":    stored.Attempt.CorrectCount,
		"total":      stored.Attempt.TotalCount,
	}).Info("quiz graded")

	for _, l := range s.listeners {
		l.AttemptGraded(ctx, stored.Attempt)
	}
	return SubmitResult{GradedAttempt: buildGradedAttempt(stored, served)}, nil
}

// normalizeAnswers keeps the first answer per externalId, drops ids outside the session
// and drops selected indexes outside 0..3. Output maps question id -> selected index.
func normalizeAnswers(answers []domain.AnswerSubmission, served []domain.SessionQuestion) map[string]int {
	byExternalID := make(map[string]string, len(served))
	for _, sq := range served {
		byExternalID[sq.Question.ExternalID] = sq.Question.ID
	}

	seen := make(map[string]struct{}, len(answers))
	normalized := make(map[string]int, len(served))
	for _, a := range answers {
		if _, dup := seen[a.ExternalID]; dup {
			continue
		}
		if a.SelectedIndex < 0 || a.SelectedIndex >= domain.ChoiceCount {
			continue
		}
		questionID, ok := byExternalID[a.ExternalID]
		if !ok {
			continue
		}
		seen[a.ExternalID] = struct{}{}
		normalized[questionID] = a.SelectedIndex
	}
	return normalized
}

// scoreAnswers builds the attempt record in session order. Every served question must be answered.
func scoreAnswers(normalized map[string]int, served []domain.SessionQuestion) domain.AttemptRecord {
	record := domain.AttemptRecord{Answers: make([]domain.AttemptAnswer, 0, len(served))}
	for _, sq := range served {
		selected := normalized[sq.Question.ID]
		correct := selected == sq.Question.CorrectIndex
		if correct {
			record.Attempt.CorrectCount++
		}
		record.Answers = append(record.Answers, domain.AttemptAnswer{
			QuestionID:    sq.Question.ID,
			SelectedIndex: selected,
			IsCorrect:     correct,
		})
	}
	record.Attempt.TotalCount = len(served)
	return record
}

// buildGradedAttempt joins stored answers with the served questions, in session order.
func buildGradedAttempt(record domain.AttemptRecord, served []domain.SessionQuestion) domain.GradedAttempt {
	answers := make(map[string]domain.AttemptAnswer, len(record.Answers))
	for _, a := range record.Answers {
		answers[a.QuestionID] = a
	}

	graded := domain.GradedAttempt{
		AttemptID:   record.Attempt.ID,
		SubmittedAt: record.Attempt.SubmittedAt,
		Score:       domain.Score{Correct: record.Attempt.CorrectCount, Total: record.Attempt.TotalCount},
		Results:     make([]domain.QuestionResult, 0, len(record.Answers)),
	}
	for _, sq := range served {
		a, ok := answers[sq.Question.ID]
		if !ok {
			continue
		}
		result := domain.QuestionResult{
			ExternalID:    sq.Question.ExternalID,
			SelectedIndex: a.SelectedIndex,
			CorrectIndex:  sq.Question.CorrectIndex,
			IsCorrect:     a.IsCorrect,
		}
		if sq.Question.Explanation != "" {
			explanation := sq.Question.Explanation
			result.Explanation = &explanation
		}
		graded.Results = append(graded.Results, result)
	}
	return graded
}
