package postgres

import (
	"context"
	"fmt"

	"quiz-practice-service/internal/domain"

	"github.com/uptrace/bun"
)

func (s *Store) SubjectByCode(ctx context.Context, code string) (domain.Subject, error) {
	var row subjectRow
	err := s.db.NewSelect().Model(&row).Where("s.code = ?", code).Limit(1).Scan(ctx)
	if isNoRows(err) {
		return domain.Subject{}, domain.ErrSubjectNotFound
	}
	if err != nil {
		return domain.Subject{}, fmt.Errorf("select subject by code: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) SubjectByID(ctx context.Context, id string) (domain.Subject, error) {
	var row subjectRow
	err := s.db.NewSelect().Model(&row).Where("s.id = ?", id).Limit(1).Scan(ctx)
	if isNoRows(err) {
		return domain.Subject{}, domain.ErrSubjectNotFound
	}
	if err != nil {
		return domain.Subject{}, fmt.Errorf("select subject: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) UnitByCode(ctx context.Context, subjectID, code string) (domain.Unit, error) {
	var row unitRow
	err := s.db.NewSelect().Model(&row).
		Where("u.subject_id = ?", subjectID).
		Where("u.code = ?", code).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return domain.Unit{}, domain.ErrUnitNotFound
	}
	if err != nil {
		return domain.Unit{}, fmt.Errorf("select unit by code: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) UnitByID(ctx context.Context, id string) (domain.Unit, error) {
	var row unitRow
	err := s.db.NewSelect().Model(&row).Where("u.id = ?", id).Limit(1).Scan(ctx)
	if isNoRows(err) {
		return domain.Unit{}, domain.ErrUnitNotFound
	}
	if err != nil {
		return domain.Unit{}, fmt.Errorf("select unit: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) TopicByID(ctx context.Context, id string) (domain.Topic, error) {
	var row topicRow
	err := s.db.NewSelect().Model(&row).Where("t.id = ?", id).Limit(1).Scan(ctx)
	if isNoRows(err) {
		return domain.Topic{}, domain.ErrTopicNotFound
	}
	if err != nil {
		return domain.Topic{}, fmt.Errorf("select topic: %w", err)
	}
	return domain.Topic{ID: row.ID, UnitID: row.UnitID, Code: row.Code, Name: row.Name}, nil
}

func (s *Store) ListSubjects(ctx context.Context) ([]domain.SubjectSummary, error) {
	out := []domain.SubjectSummary{}
	err := s.db.NewSelect().
		TableExpr("subjects AS s").
		ColumnExpr("s.code, s.name").
		ColumnExpr("count(u.id) AS unit_count").
		Join("LEFT JOIN units AS u ON u.subject_id = s.id").
		GroupExpr("s.id").
		OrderExpr("s.code ASC").
		Scan(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return out, nil
}

func (s *Store) ListUnits(ctx context.Context, subjectID string) ([]domain.UnitSummary, error) {
	out := []domain.UnitSummary{}
	err := s.db.NewSelect().
		TableExpr("units AS u").
		ColumnExpr("u.code, u.name").
		ColumnExpr("count(t.id) AS topic_count").
		Join("LEFT JOIN topics AS t ON t.unit_id = u.id").
		Where("u.subject_id = ?", subjectID).
		GroupExpr("u.id").
		OrderExpr("u.code ASC").
		Scan(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return out, nil
}

func (s *Store) ListTopics(ctx context.Context, unitID string) ([]domain.TopicSummary, error) {
	out := []domain.TopicSummary{}
	err := s.db.NewSelect().
		TableExpr("topics AS t").
		ColumnExpr("t.code, t.name").
		ColumnExpr("count(q.id) AS question_count").
		Join("LEFT JOIN questions AS q ON q.topic_id = t.id").
		Where("t.unit_id = ?", unitID).
		GroupExpr("t.id").
		OrderExpr("t.code ASC").
		Scan(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return out, nil
}

// CandidateQuestions reads a bounded prefix of the eligible pool. There is no ORDER BY:
// the caller shuffles, and the bound keeps the query cheap on large catalogs.
func (s *Store) CandidateQuestions(ctx context.Context, filter domain.CandidateFilter) ([]domain.Question, error) {
	var rows []questionRow
	q := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("?TableColumns").
		ColumnExpr("u.code AS unit_code").
		Join("JOIN units AS u ON u.id = q.unit_id").
		Where("q.is_active").
		Where("u.subject_id = ?", filter.SubjectID)
	if len(filter.UnitCodes) > 0 {
		q = q.Where("u.code IN (?)", bun.In(filter.UnitCodes))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select candidate questions: %w", err)
	}

	out := make([]domain.Question, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) CreateSubject(ctx context.Context, subject domain.Subject) error {
	row := subjectRow{ID: subject.ID, Code: subject.Code, Name: subject.Name}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if pgCode(err) == pgUniqueViolation {
			return domain.ErrSubjectExists
		}
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

func (s *Store) CreateUnit(ctx context.Context, unit domain.Unit) error {
	row := unitRow{ID: unit.ID, SubjectID: unit.SubjectID, Code: unit.Code, Name: unit.Name}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return domain.ErrUnitExists
		case pgForeignKeyViolation:
			return domain.ErrSubjectNotFound
		}
		return fmt.Errorf("insert unit: %w", err)
	}
	return nil
}

func (s *Store) CreateQuestion(ctx context.Context, question domain.Question) error {
	row := questionFromDomain(question)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return domain.ErrQuestionExists
		case pgForeignKeyViolation:
			return domain.ErrUnitNotFound
		}
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// CreateQuestions inserts the batch in one statement. Existing externalIds are left untouched.
func (s *Store) CreateQuestions(ctx context.Context, questions []domain.Question) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	rows := make([]questionRow, len(questions))
	for i, q := range questions {
		rows[i] = questionFromDomain(q)
	}
	res, err := s.db.NewInsert().Model(&rows).
		On("CONFLICT (external_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return 0, domain.ErrUnitNotFound
		}
		return 0, fmt.Errorf("insert questions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert questions: %w", err)
	}
	return int(n), nil
}

// DeleteSubject cascades to units, topics and questions unless a session references them.
func (s *Store) DeleteSubject(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*subjectRow)(nil)).Where("s.id = ?", id).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check subject: %w", err)
		}
		if !exists {
			return domain.ErrSubjectNotFound
		}

		inSessions, err := tx.NewSelect().Model((*sessionRow)(nil)).Where("qs.subject_id = ?", id).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check sessions: %w", err)
		}
		served, err := tx.NewSelect().
			Model((*sessionQuestionRow)(nil)).
			Join("JOIN questions AS q ON q.id = sq.question_id").
			Join("JOIN units AS u ON u.id = q.unit_id").
			Where("u.subject_id = ?", id).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check served questions: %w", err)
		}
		if inSessions || served {
			return domain.ErrContentInUse
		}

		if _, err := tx.NewDelete().Model((*subjectRow)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			// a session started after the check still holds a foreign key
			if pgCode(err) == pgForeignKeyViolation {
				return domain.ErrContentInUse
			}
			return fmt.Errorf("delete subject: %w", err)
		}
		return nil
	})
}

// DeleteUnit cascades to topics and questions unless a session served one of them.
func (s *Store) DeleteUnit(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*unitRow)(nil)).Where("u.id = ?", id).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check unit: %w", err)
		}
		if !exists {
			return domain.ErrUnitNotFound
		}

		served, err := tx.NewSelect().
			Model((*sessionQuestionRow)(nil)).
			Join("JOIN questions AS q ON q.id = sq.question_id").
			Where("q.unit_id = ?", id).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check served questions: %w", err)
		}
		if served {
			return domain.ErrContentInUse
		}

		if _, err := tx.NewDelete().Model((*unitRow)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			if pgCode(err) == pgForeignKeyViolation {
				return domain.ErrContentInUse
			}
			return fmt.Errorf("delete unit: %w", err)
		}
		return nil
	})
}

// Import upserts subject, unit and questions in one transaction.
func (s *Store) Import(ctx context.Context, batch domain.ImportBatch, newID func() string) (domain.ImportResult, error) {
	var result domain.ImportResult
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		subject := subjectRow{ID: newID(), Code: batch.SubjectCode, Name: batch.SubjectName}
		err := tx.NewInsert().Model(&subject).
			On("CONFLICT (code) DO UPDATE").
			Set("name = EXCLUDED.name").
			Returning("id").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("upsert subject: %w", err)
		}

		unit := unitRow{ID: newID(), SubjectID: subject.ID, Code: batch.UnitCode, Name: batch.UnitName}
		err = tx.NewInsert().Model(&unit).
			On("CONFLICT (subject_id, code) DO UPDATE").
			Set("name = EXCLUDED.name").
			Returning("id").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("upsert unit: %w", err)
		}

		rows := make([]questionRow, 0, len(batch.Questions))
		for _, q := range batch.Questions {
			rows = append(rows, questionRow{
				ID:           newID(),
				ExternalID:   q.ExternalID,
				UnitID:       unit.ID,
				Prompt:       q.Prompt,
				Choices:      q.Choices,
				CorrectIndex: q.CorrectIndex,
				Explanation:  q.Explanation,
				Difficulty:   string(q.Difficulty),
				Tags:         nonNil(q.Tags),
				References:   nonNil(q.References),
				IsActive:     true,
			})
		}
		if len(rows) > 0 {
			_, err = tx.NewInsert().Model(&rows).
				On("CONFLICT (external_id) DO UPDATE").
				Set("unit_id = EXCLUDED.unit_id").
				Set("topic_id = NULL").
				Set("prompt = EXCLUDED.prompt").
				Set("choices = EXCLUDED.choices").
				Set("correct_index = EXCLUDED.correct_index").
				Set("explanation = EXCLUDED.explanation").
				Set("difficulty = EXCLUDED.difficulty").
				Set("tags = EXCLUDED.tags").
				Set(`"references" = EXCLUDED."references"`).
				Set("is_active = TRUE").
				Set("updated_at = now()").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("upsert questions: %w", err)
			}
		}

		result = domain.ImportResult{SubjectID: subject.ID, UnitID: unit.ID, QuestionsUpserted: len(rows)}
		return nil
	})
	if err != nil {
		return domain.ImportResult{}, err
	}
	return result, nil
}
