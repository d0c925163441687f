package postgres

import (
	"context"
	"errors"
	"fmt"

	"quiz-practice-service/internal/domain"

	"github.com/uptrace/bun"
)

// CreateSession writes the session and its ordered questions in one transaction.
func (s *Store) CreateSession(ctx context.Context, session domain.QuizSession, questionIDs []string) error {
	row := sessionRow{
		ID:        session.ID,
		UserID:    session.UserID,
		SubjectID: session.SubjectID,
		Mode:      string(session.Mode),
		Count:     session.Count,
		UnitCode:  session.UnitCode,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
	items := make([]sessionQuestionRow, len(questionIDs))
	for i, id := range questionIDs {
		items[i] = sessionQuestionRow{QuizSessionID: session.ID, OrderIndex: i, QuestionID: id}
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert quiz session: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&items).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("insert session questions: %w", err)
		}
		return nil
	})
}

func (s *Store) GetSession(ctx context.Context, id string) (domain.QuizSession, error) {
	var row sessionRow
	err := s.db.NewSelect().Model(&row).Where("qs.id = ?", id).Limit(1).Scan(ctx)
	if isNoRows(err) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("select quiz session: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) SessionQuestions(ctx context.Context, sessionID string) ([]domain.SessionQuestion, error) {
	var rows []questionRow
	err := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("?TableColumns").
		ColumnExpr("u.code AS unit_code").
		ColumnExpr("sq.order_index").
		Join("JOIN quiz_session_questions AS sq ON sq.question_id = q.id").
		Join("JOIN units AS u ON u.id = q.unit_id").
		Where("sq.quiz_session_id = ?", sessionID).
		OrderExpr("sq.order_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select session questions: %w", err)
	}

	out := make([]domain.SessionQuestion, len(rows))
	for i, r := range rows {
		out[i] = domain.SessionQuestion{OrderIndex: r.OrderIndex, Question: r.toDomain()}
	}
	return out, nil
}

func (s *Store) FindAttempt(ctx context.Context, sessionID, userID string) (domain.AttemptRecord, bool, error) {
	return s.findAttempt(ctx, s.db, sessionID, userID)
}

func (s *Store) findAttempt(ctx context.Context, db bun.IDB, sessionID, userID string) (domain.AttemptRecord, bool, error) {
	var row attemptRow
	err := db.NewSelect().Model(&row).
		Where("qa.quiz_session_id = ?", sessionID).
		Where("qa.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return domain.AttemptRecord{}, false, nil
	}
	if err != nil {
		return domain.AttemptRecord{}, false, fmt.Errorf("select attempt: %w", err)
	}

	var answers []attemptAnswerRow
	if err := db.NewSelect().Model(&answers).Where("aa.quiz_attempt_id = ?", row.ID).Scan(ctx); err != nil {
		return domain.AttemptRecord{}, false, fmt.Errorf("select attempt answers: %w", err)
	}

	record := domain.AttemptRecord{Attempt: row.toDomain(), Answers: make([]domain.AttemptAnswer, len(answers))}
	for i, a := range answers {
		record.Answers[i] = domain.AttemptAnswer{QuestionID: a.QuestionID, SelectedIndex: a.SelectedIndex, IsCorrect: a.IsCorrect}
	}
	return record, true, nil
}

// CreateAttempt inserts the attempt and its answers atomically. The unique (session, user)
// constraint decides concurrent writers; the loser gets the winner's record back.
func (s *Store) CreateAttempt(ctx context.Context, record domain.AttemptRecord) (domain.AttemptRecord, bool, error) {
	a := record.Attempt
	row := attemptRow{
		ID:            a.ID,
		QuizSessionID: a.QuizSessionID,
		UserID:        a.UserID,
		SubmittedAt:   a.SubmittedAt,
		CorrectCount:  a.CorrectCount,
		TotalCount:    a.TotalCount,
	}
	answers := make([]attemptAnswerRow, len(record.Answers))
	for i, ans := range record.Answers {
		answers[i] = attemptAnswerRow{
			QuizAttemptID: a.ID,
			QuestionID:    ans.QuestionID,
			SelectedIndex: ans.SelectedIndex,
			IsCorrect:     ans.IsCorrect,
		}
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().Model(&row).
			On("CONFLICT (quiz_session_id, user_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.ErrAttemptExists
		}
		if len(answers) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&answers).Exec(ctx); err != nil {
			return fmt.Errorf("insert attempt answers: %w", err)
		}
		return nil
	})
	if errors.Is(err, domain.ErrAttemptExists) {
		stored, found, err := s.findAttempt(ctx, s.db, a.QuizSessionID, a.UserID)
		if err != nil {
			return domain.AttemptRecord{}, false, err
		}
		if !found {
			return domain.AttemptRecord{}, false, fmt.Errorf("attempt for session %s vanished after conflict", a.QuizSessionID)
		}
		return stored, false, nil
	}
	if err != nil {
		return domain.AttemptRecord{}, false, err
	}
	return record, true, nil
}

// TopStandings aggregates attempts per user in SQL.
func (s *Store) TopStandings(ctx context.Context, limit int) ([]domain.Standing, error) {
	var rows []standingRow
	q := s.db.NewSelect().
		Model((*attemptRow)(nil)).
		ColumnExpr("qa.user_id").
		ColumnExpr("count(*) AS attempts").
		ColumnExpr("sum(qa.correct_count) AS total_correct").
		ColumnExpr("sum(qa.total_count) AS total_questions").
		ColumnExpr("max(qa.submitted_at) AS last_submitted_at").
		GroupExpr("qa.user_id").
		OrderExpr("total_correct DESC, last_submitted_at DESC, qa.user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("aggregate standings: %w", err)
	}

	out := make([]domain.Standing, len(rows))
	for i, r := range rows {
		out[i] = domain.Standing{
			UserID:          r.UserID,
			Attempts:        r.Attempts,
			TotalCorrect:    r.TotalCorrect,
			TotalQuestions:  r.TotalQuestions,
			LastSubmittedAt: r.LastSubmittedAt,
		}
	}
	return out, nil
}

func (s *Store) GetRole(ctx context.Context, userID string) (domain.Role, bool, error) {
	var row profileRow
	err := s.db.NewSelect().Model(&row).Where("p.user_id = ?", userID).Limit(1).Scan(ctx)
	if isNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select profile: %w", err)
	}
	return domain.Role(row.Role), true, nil
}

func (s *Store) EnsureRole(ctx context.Context, userID string, role domain.Role) (domain.Role, error) {
	row := profileRow{UserID: userID, Role: string(role)}
	if _, err := s.db.NewInsert().Model(&row).On("CONFLICT (user_id) DO NOTHING").Exec(ctx); err != nil {
		return "", fmt.Errorf("insert profile: %w", err)
	}
	stored, found, err := s.GetRole(ctx, userID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("profile %s missing after insert", userID)
	}
	return stored, nil
}
