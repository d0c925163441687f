package app

import (
	"context"
	"fmt"
	"strings"

	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ImportVersion is the only accepted bulk import payload version.
const ImportVersion = "v1"

// CatalogService serves catalog listings, admin content mutation and bulk import.
type CatalogService struct {
	catalog CatalogRepository
	newID   func() string
}

func NewCatalogService(catalog CatalogRepository, newID func() string) *CatalogService {
	if newID == nil {
		newID = uuid.NewString
	}
	return &CatalogService{catalog: catalog, newID: newID}
}

func (s *CatalogService) ListSubjects(ctx context.Context) ([]domain.SubjectSummary, error) {
	subjects, err := s.catalog.ListSubjects(ctx)
	if err != nil {
		return nil, wrapStorage(ctx, "Failed to load subjects.", err)
	}
	return subjects, nil
}

func (s *CatalogService) ListUnits(ctx context.Context, subjectCode string) ([]domain.UnitSummary, error) {
	subject, err := s.catalog.SubjectByCode(ctx, subjectCode)
	if err != nil {
		return nil, wrapStorage(ctx, "Failed to load subject.", err)
	}
	units, err := s.catalog.ListUnits(ctx, subject.ID)
	if err != nil {
		return nil, wrapStorage(ctx, "Failed to load units.", err)
	}
	return units, nil
}

func (s *CatalogService) ListTopics(ctx context.Context, subjectCode, unitCode string) ([]domain.TopicSummary, error) {
	subject, err := s.catalog.SubjectByCode(ctx, subjectCode)
	if err != nil {
		return nil, wrapStorage(ctx, "Failed to load subject.", err)
	}
	unit, err := s.catalog.UnitByCode(ctx, subject.ID, unitCode)
	if err != nil {
		return nil, wrapStorage(ctx, "Failed to load unit.", err)
	}
	topics, err := s.catalog.ListTopics(ctx, unit.ID)
	if err != nil {
		return nil, wrapStorage(ctx, "Failed to load topics.", err)
	}
	return topics, nil
}

type CreateSubjectRequest struct {
	Code string `json:"code" validate:"required,min=3"`
	Name string `json:"name" validate:"required,min=3"`
}

func (s *CatalogService) CreateSubject(ctx context.Context, req CreateSubjectRequest) (domain.Subject, error) {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if fields := validateStruct(req); len(fields) > 0 {
		return domain.Subject{}, domain.InvalidPayload(fields)
	}

	subject := domain.Subject{ID: s.newID(), Code: req.Code, Name: req.Name}
	if err := s.catalog.CreateSubject(ctx, subject); err != nil {
		return domain.Subject{}, wrapStorage(ctx, "Failed to create subject.", err)
	}
	config.WithContext(ctx).WithField("subject", subject.Code).Info("subject created")
	return subject, nil
}

type CreateUnitRequest struct {
	SubjectID string `json:"subjectId" validate:"required"`
	Code      string `json:"code" validate:"required,min=3"`
	Name      string `json:"name" validate:"required,min=3"`
}

func (s *CatalogService) CreateUnit(ctx context.Context, req CreateUnitRequest) (domain.Unit, error) {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if fields := validateStruct(req); len(fields) > 0 {
		return domain.Unit{}, domain.InvalidPayload(fields)
	}

	if _, err := s.catalog.SubjectByID(ctx, req.SubjectID); err != nil {
		return domain.Unit{}, wrapStorage(ctx, "Failed to load subject.", err)
	}

	unit := domain.Unit{ID: s.newID(), SubjectID: req.SubjectID, Code: req.Code, Name: req.Name}
	if err := s.catalog.CreateUnit(ctx, unit); err != nil {
		return domain.Unit{}, wrapStorage(ctx, "Failed to create unit.", err)
	}
	config.WithContext(ctx).WithFields(logrus.Fields{"subject_id": unit.SubjectID, "unit": unit.Code}).Info("unit created")
	return unit, nil
}

type CreateQuestionRequest struct {
	UnitID       string            `json:"unitId" validate:"required"`
	TopicID      string            `json:"topicId"`
	ExternalID   string            `json:"externalId" validate:"required"`
	Prompt       string            `json:"prompt" validate:"required,min=3"`
	Choices      []string          `json:"choices" validate:"len=4,dive,required"`
	CorrectIndex *int              `json:"correctIndex" validate:"required,gte=0,lte=3"`
	Explanation  string            `json:"explanation"`
	Difficulty   domain.Difficulty `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Tags         []string          `json:"tags" validate:"dive,required"`
	References   []string          `json:"references" validate:"dive,required"`
}

func (s *CatalogService) CreateQuestion(ctx context.Context, req CreateQuestionRequest) (domain.Question, error) {
	if fields := validateStruct(req); len(fields) > 0 {
		return domain.Question{}, domain.InvalidPayload(fields)
	}

	unit, err := s.catalog.UnitByID(ctx, req.UnitID)
	if err != nil {
		return domain.Question{}, wrapStorage(ctx, "Failed to load unit.", err)
	}
	if req.TopicID != "" {
		topic, err := s.catalog.TopicByID(ctx, req.TopicID)
		if err != nil {
			return domain.Question{}, wrapStorage(ctx, "Failed to load topic.", err)
		}
		if topic.UnitID != unit.ID {
			return domain.Question{}, domain.InvalidPayload(map[string][]string{
				"topicId": {"must belong to the given unit"},
			})
		}
	}

	q := domain.Question{
		ID:           s.newID(),
		ExternalID:   req.ExternalID,
		UnitID:       unit.ID,
		UnitCode:     unit.Code,
		TopicID:      req.TopicID,
		Prompt:       req.Prompt,
		Choices:      req.Choices,
		CorrectIndex: *req.CorrectIndex,
		Explanation:  strings.TrimSpace(req.Explanation),
		Difficulty:   orDefaultDifficulty(req.Difficulty),
		Tags:         nonNil(req.Tags),
		References:   nonNil(req.References),
		IsActive:     true,
	}
	if err := s.catalog.CreateQuestion(ctx, q); err != nil {
		return domain.Question{}, wrapStorage(ctx, "Failed to create question.", err)
	}
	config.WithContext(ctx).WithFields(logrus.Fields{"unit_id": q.UnitID, "external_id": q.ExternalID}).Info("question created")
	return q, nil
}

// BulkCreateQuestionsRequest carries up to 1000 questions spread over any number of units.
type BulkCreateQuestionsRequest struct {
	Questions []CreateQuestionRequest `json:"questions" validate:"required,min=1,max=1000,dive"`
}

type BulkCreateResult struct {
	Inserted  int `json:"inserted"`
	Requested int `json:"requested"`
}

// BulkCreateQuestions validates every question and checks that all referenced units and
// topics exist before inserting. Questions whose externalId is already stored are skipped.
func (s *CatalogService) BulkCreateQuestions(ctx context.Context, req BulkCreateQuestionsRequest) (BulkCreateResult, error) {
	if fields := validateStruct(req); len(fields) > 0 {
		return BulkCreateResult{}, domain.InvalidPayload(fields)
	}

	units := make(map[string]domain.Unit)
	topics := make(map[string]domain.Topic)
	fields := map[string][]string{}
	questions := make([]domain.Question, 0, len(req.Questions))
	for i, r := range req.Questions {
		unit, ok := units[r.UnitID]
		if !ok {
			var err error
			unit, err = s.catalog.UnitByID(ctx, r.UnitID)
			if err != nil {
				return BulkCreateResult{}, wrapStorage(ctx, "Failed to load unit.", err)
			}
			units[r.UnitID] = unit
		}
		if r.TopicID != "" {
			topic, ok := topics[r.TopicID]
			if !ok {
				var err error
				topic, err = s.catalog.TopicByID(ctx, r.TopicID)
				if err != nil {
					return BulkCreateResult{}, wrapStorage(ctx, "Failed to load topic.", err)
				}
				topics[r.TopicID] = topic
			}
			if topic.UnitID != unit.ID {
				addField(fields, fmt.Sprintf("questions[%d].topicId", i), "must belong to the given unit")
				continue
			}
		}
		questions = append(questions, domain.Question{
			ID:           s.newID(),
			ExternalID:   strings.TrimSpace(r.ExternalID),
			UnitID:       unit.ID,
			TopicID:      r.TopicID,
			Prompt:       strings.TrimSpace(r.Prompt),
			Choices:      r.Choices,
			CorrectIndex: *r.CorrectIndex,
			Explanation:  strings.TrimSpace(r.Explanation),
			Difficulty:   orDefaultDifficulty(r.Difficulty),
			Tags:         nonNil(r.Tags),
			References:   nonNil(r.References),
			IsActive:     true,
		})
	}
	if len(fields) > 0 {
		return BulkCreateResult{}, domain.InvalidPayload(fields)
	}

	inserted, err := s.catalog.CreateQuestions(ctx, questions)
	if err != nil {
		return BulkCreateResult{}, wrapStorage(ctx, "Failed to create questions.", err)
	}
	config.WithContext(ctx).WithFields(logrus.Fields{
		"units":     len(units),
		"requested": len(questions),
		"inserted":  inserted,
	}).Info("questions created")
	return BulkCreateResult{Inserted: inserted, Requested: len(questions)}, nil
}

// DeleteSubject removes a subject with its units and questions unless a session already served them.
func (s *CatalogService) DeleteSubject(ctx context.Context, id string) error {
	if err := s.catalog.DeleteSubject(ctx, id); err != nil {
		return wrapStorage(ctx, "Failed to delete subject.", err)
	}
	config.WithContext(ctx).WithField("subject_id", id).Info("subject deleted")
	return nil
}

// DeleteUnit removes a unit with its questions unless a session already served them.
func (s *CatalogService) DeleteUnit(ctx context.Context, id string) error {
	if err := s.catalog.DeleteUnit(ctx, id); err != nil {
		return wrapStorage(ctx, "Failed to delete unit.", err)
	}
	config.WithContext(ctx).WithField("unit_id", id).Info("unit deleted")
	return nil
}

// ImportQuestionPayload is one question of an import payload.
type ImportQuestionPayload struct {
	ExternalID   string            `json:"externalId" validate:"required"`
	Prompt       string            `json:"prompt" validate:"required"`
	Choices      []string          `json:"choices" validate:"len=4,dive,required"`
	CorrectIndex *int              `json:"correctIndex" validate:"required,gte=0,lte=3"`
	Explanation  string            `json:"explanation"`
	Difficulty   domain.Difficulty `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Tags         []string          `json:"tags"`
	References   []string          `json:"references"`
}

// ImportPayload is the v1 bulk import document: one subject, one unit and its questions.
type ImportPayload struct {
	Version     string                  `json:"version" validate:"required,eq=v1"`
	SubjectCode string                  `json:"subjectCode" validate:"required"`
	SubjectName string                  `json:"subjectName" validate:"required"`
	UnitCode    string                  `json:"unitCode" validate:"required"`
	UnitName    string                  `json:"unitName" validate:"required"`
	Questions   []ImportQuestionPayload `json:"questions" validate:"required,min=1,dive"`
}

// Import validates the payload completely, then upserts it in one transaction.
func (s *CatalogService) Import(ctx context.Context, payload ImportPayload) (domain.ImportResult, error) {
	batch, err := validateImport(payload)
	if err != nil {
		return domain.ImportResult{}, err
	}

	result, err := s.catalog.Import(ctx, batch, s.newID)
	if err != nil {
		return domain.ImportResult{}, wrapStorage(ctx, "Failed to import questions.", err)
	}
	config.WithContext(ctx).WithFields(logrus.Fields{
		"subject":   batch.SubjectCode,
		"unit":      batch.UnitCode,
		"questions": result.QuestionsUpserted,
	}).Info("import applied")
	return result, nil
}

func validateImport(p ImportPayload) (domain.ImportBatch, error) {
	p.SubjectCode = strings.TrimSpace(p.SubjectCode)
	p.SubjectName = strings.TrimSpace(p.SubjectName)
	p.UnitCode = strings.TrimSpace(p.UnitCode)
	p.UnitName = strings.TrimSpace(p.UnitName)
	for i := range p.Questions {
		q := &p.Questions[i]
		q.ExternalID = strings.TrimSpace(q.ExternalID)
		q.Prompt = strings.TrimSpace(q.Prompt)
		for j := range q.Choices {
			q.Choices[j] = strings.TrimSpace(q.Choices[j])
		}
	}

	fields := validateStruct(p)
	seen := make(map[string]int, len(p.Questions))
	for i, q := range p.Questions {
		if q.ExternalID == "" {
			continue
		}
		if first, dup := seen[q.ExternalID]; dup {
			addField(fields, fmt.Sprintf("questions[%d].externalId", i),
				fmt.Sprintf("duplicates questions[%d].externalId %q", first, q.ExternalID))
			continue
		}
		seen[q.ExternalID] = i
	}
	if len(fields) > 0 {
		return domain.ImportBatch{}, domain.InvalidPayload(fields)
	}

	batch := domain.ImportBatch{
		SubjectCode: p.SubjectCode,
		SubjectName: p.SubjectName,
		UnitCode:    p.UnitCode,
		UnitName:    p.UnitName,
		Questions:   make([]domain.ImportQuestion, 0, len(p.Questions)),
	}
	for _, q := range p.Questions {
		batch.Questions = append(batch.Questions, domain.ImportQuestion{
			ExternalID:   q.ExternalID,
			Prompt:       q.Prompt,
			Choices:      q.Choices,
			CorrectIndex: *q.CorrectIndex,
			Explanation:  strings.TrimSpace(q.Explanation),
			Difficulty:   orDefaultDifficulty(q.Difficulty),
			Tags:         nonNil(q.Tags),
			References:   nonNil(q.References),
		})
	}
	return batch, nil
}

func orDefaultDifficulty(d domain.Difficulty) domain.Difficulty {
	if d == "" {
		return domain.DifficultyMedium
	}
	return d
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
