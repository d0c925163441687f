package memory

import (
	"context"
	"sort"

	"quiz-practice-service/internal/domain"
)

func (s *Store) SubjectByCode(_ context.Context, code string) (domain.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.subjectByCode[code]
	if !ok {
		return domain.Subject{}, domain.ErrSubjectNotFound
	}
	return s.subjects[id], nil
}

func (s *Store) SubjectByID(_ context.Context, id string) (domain.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[id]
	if !ok {
		return domain.Subject{}, domain.ErrSubjectNotFound
	}
	return subject, nil
}

func (s *Store) UnitByCode(_ context.Context, subjectID, code string) (domain.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.unitByCodeLocked(subjectID, code); ok {
		return u, nil
	}
	return domain.Unit{}, domain.ErrUnitNotFound
}

func (s *Store) UnitByID(_ context.Context, id string) (domain.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	if !ok {
		return domain.Unit{}, domain.ErrUnitNotFound
	}
	return u, nil
}

func (s *Store) TopicByID(_ context.Context, id string) (domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[id]
	if !ok {
		return domain.Topic{}, domain.ErrTopicNotFound
	}
	return t, nil
}

func (s *Store) ListSubjects(_ context.Context) ([]domain.SubjectSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unitCount := make(map[string]int)
	for _, u := range s.units {
		unitCount[u.SubjectID]++
	}
	out := make([]domain.SubjectSummary, 0, len(s.subjects))
	for _, sub := range s.subjects {
		out = append(out, domain.SubjectSummary{Code: sub.Code, Name: sub.Name, UnitCount: unitCount[sub.ID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) ListUnits(_ context.Context, subjectID string) ([]domain.UnitSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topicCount := make(map[string]int)
	for _, t := range s.topics {
		topicCount[t.UnitID]++
	}
	out := []domain.UnitSummary{}
	for _, u := range s.units {
		if u.SubjectID == subjectID {
			out = append(out, domain.UnitSummary{Code: u.Code, Name: u.Name, TopicCount: topicCount[u.ID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) ListTopics(_ context.Context, unitID string) ([]domain.TopicSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	questionCount := make(map[string]int)
	for _, q := range s.questions {
		if q.TopicID != "" {
			questionCount[q.TopicID]++
		}
	}
	out := []domain.TopicSummary{}
	for _, t := range s.topics {
		if t.UnitID == unitID {
			out = append(out, domain.TopicSummary{Code: t.Code, Name: t.Name, QuestionCount: questionCount[t.ID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) CandidateQuestions(_ context.Context, filter domain.CandidateFilter) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var codes map[string]struct{}
	if len(filter.UnitCodes) > 0 {
		codes = make(map[string]struct{}, len(filter.UnitCodes))
		for _, c := range filter.UnitCodes {
			codes[c] = struct{}{}
		}
	}

	out := []domain.Question{}
	for _, id := range s.questionOrder {
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
		q := s.questions[id]
		if !q.IsActive {
			continue
		}
		unit, ok := s.units[q.UnitID]
		if !ok || unit.SubjectID != filter.SubjectID {
			continue
		}
		if codes != nil {
			if _, ok := codes[unit.Code]; !ok {
				continue
			}
		}
		out = append(out, s.withUnitCode(q))
	}
	return out, nil
}

func (s *Store) CreateSubject(_ context.Context, subject domain.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjectByCode[subject.Code]; ok {
		return domain.ErrSubjectExists
	}
	s.subjects[subject.ID] = subject
	s.subjectByCode[subject.Code] = subject.ID
	return nil
}

func (s *Store) CreateUnit(_ context.Context, unit domain.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[unit.SubjectID]; !ok {
		return domain.ErrSubjectNotFound
	}
	if _, ok := s.unitByCodeLocked(unit.SubjectID, unit.Code); ok {
		return domain.ErrUnitExists
	}
	s.units[unit.ID] = unit
	return nil
}

// CreateTopic is only reachable from tests and seeding; topics have no admin endpoint.
func (s *Store) CreateTopic(_ context.Context, topic domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[topic.UnitID]; !ok {
		return domain.ErrUnitNotFound
	}
	s.topics[topic.ID] = topic
	return nil
}

func (s *Store) CreateQuestion(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[q.UnitID]; !ok {
		return domain.ErrUnitNotFound
	}
	if _, ok := s.byExternalID[q.ExternalID]; ok {
		return domain.ErrQuestionExists
	}
	s.putQuestionLocked(q)
	return nil
}

func (s *Store) CreateQuestions(_ context.Context, questions []domain.Question) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		if _, ok := s.units[q.UnitID]; !ok {
			return 0, domain.ErrUnitNotFound
		}
	}
	inserted := 0
	for _, q := range questions {
		if _, ok := s.byExternalID[q.ExternalID]; ok {
			continue
		}
		s.putQuestionLocked(q)
		inserted++
	}
	return inserted, nil
}

func (s *Store) DeleteSubject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subject, ok := s.subjects[id]
	if !ok {
		return domain.ErrSubjectNotFound
	}
	for _, session := range s.sessions {
		if session.SubjectID == id {
			return domain.ErrContentInUse
		}
	}
	units := map[string]struct{}{}
	for uid, u := range s.units {
		if u.SubjectID == id {
			units[uid] = struct{}{}
		}
	}
	if s.servedLocked(units) {
		return domain.ErrContentInUse
	}

	s.deleteUnitsLocked(units)
	delete(s.subjects, id)
	delete(s.subjectByCode, subject.Code)
	return nil
}

func (s *Store) DeleteUnit(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.units[id]; !ok {
		return domain.ErrUnitNotFound
	}
	units := map[string]struct{}{id: {}}
	if s.servedLocked(units) {
		return domain.ErrContentInUse
	}
	s.deleteUnitsLocked(units)
	return nil
}

func (s *Store) Import(_ context.Context, batch domain.ImportBatch, newID func() string) (domain.ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subjectID, ok := s.subjectByCode[batch.SubjectCode]
	if !ok {
		subjectID = newID()
		s.subjectByCode[batch.SubjectCode] = subjectID
	}
	s.subjects[subjectID] = domain.Subject{ID: subjectID, Code: batch.SubjectCode, Name: batch.SubjectName}

	unit, ok := s.unitByCodeLocked(subjectID, batch.UnitCode)
	if !ok {
		unit = domain.Unit{ID: newID(), SubjectID: subjectID, Code: batch.UnitCode}
	}
	unit.Name = batch.UnitName
	s.units[unit.ID] = unit

	for _, iq := range batch.Questions {
		id, ok := s.byExternalID[iq.ExternalID]
		if !ok {
			id = newID()
		}
		s.putQuestionLocked(domain.Question{
			ID:           id,
			ExternalID:   iq.ExternalID,
			UnitID:       unit.ID,
			Prompt:       iq.Prompt,
			Choices:      append([]string(nil), iq.Choices...),
			CorrectIndex: iq.CorrectIndex,
			Explanation:  iq.Explanation,
			Difficulty:   iq.Difficulty,
			Tags:         append([]string{}, iq.Tags...),
			References:   append([]string{}, iq.References...),
			IsActive:     true,
		})
	}
	return domain.ImportResult{SubjectID: subjectID, UnitID: unit.ID, QuestionsUpserted: len(batch.Questions)}, nil
}

func (s *Store) unitByCodeLocked(subjectID, code string) (domain.Unit, bool) {
	for _, u := range s.units {
		if u.SubjectID == subjectID && u.Code == code {
			return u, true
		}
	}
	return domain.Unit{}, false
}

func (s *Store) putQuestionLocked(q domain.Question) {
	if _, exists := s.questions[q.ID]; !exists {
		s.questionOrder = append(s.questionOrder, q.ID)
	}
	q.UnitCode = ""
	s.questions[q.ID] = q
	s.byExternalID[q.ExternalID] = q.ID
}

// servedLocked reports whether any session served a question of the given units.
func (s *Store) servedLocked(units map[string]struct{}) bool {
	for _, rows := range s.sessionQuestions {
		for _, r := range rows {
			if _, ok := units[s.questions[r.questionID].UnitID]; ok {
				return true
			}
		}
	}
	return false
}

func (s *Store) deleteUnitsLocked(units map[string]struct{}) {
	kept := s.questionOrder[:0]
	for _, qid := range s.questionOrder {
		q := s.questions[qid]
		if _, ok := units[q.UnitID]; ok {
			delete(s.questions, qid)
			delete(s.byExternalID, q.ExternalID)
			continue
		}
		kept = append(kept, qid)
	}
	s.questionOrder = kept
	for tid, t := range s.topics {
		if _, ok := units[t.UnitID]; ok {
			delete(s.topics, tid)
		}
	}
	for uid := range units {
		delete(s.units, uid)
	}
}

func (s *Store) withUnitCode(q domain.Question) domain.Question {
	q.UnitCode = s.units[q.UnitID].Code
	return q
}
