package app_test

import (
	"context"
	"errors"
	"testing"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/domain"
	"quiz-practice-service/internal/infra/memory"
)

func intPtr(i int) *int { return &i }

func validImport() app.ImportPayload {
	return app.ImportPayload{
		Version:     "v1",
		SubjectCode: "ACtE",
		SubjectName: "Computer Engineering",
		UnitCode:    "U1",
		UnitName:    "Digital logic",
		Questions: []app.ImportQuestionPayload{
			{ExternalID: "q-1", Prompt: "2+2?", Choices: []string{"1", "2", "3", "4"}, CorrectIndex: intPtr(3)},
			{ExternalID: "q-2", Prompt: "NAND is?", Choices: []string{"a", "b", "c", "d"}, CorrectIndex: intPtr(0), Difficulty: domain.DifficultyHard, Explanation: "universal"},
		},
	}
}

func TestImportCreatesAndUpserts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := app.NewCatalogService(store, nil)

	res, err := svc.Import(ctx, validImport())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.QuestionsUpserted != 2 || res.SubjectID == "" || res.UnitID == "" {
		t.Fatalf("unexpected result %+v", res)
	}

	again, err := svc.Import(ctx, validImport())
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	if again.SubjectID != res.SubjectID || again.UnitID != res.UnitID {
		t.Fatalf("expected upsert to keep ids")
	}

	qs, _ := store.CandidateQuestions(ctx, domain.CandidateFilter{SubjectID: res.SubjectID, Limit: 10})
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if qs[0].Difficulty != domain.DifficultyMedium {
		t.Fatalf("expected default difficulty medium, got %s", qs[0].Difficulty)
	}
}

func TestImportValidation(t *testing.T) {
	svc := app.NewCatalogService(memory.NewStore(), nil)

	cases := map[string]struct {
		mutate func(p *app.ImportPayload)
		field  string
	}{
		"version":        {func(p *app.ImportPayload) { p.Version = "v2" }, "version"},
		"subject blank":  {func(p *app.ImportPayload) { p.SubjectCode = "  " }, "subjectCode"},
		"no questions":   {func(p *app.ImportPayload) { p.Questions = nil }, "questions"},
		"three choices":  {func(p *app.ImportPayload) { p.Questions[0].Choices = []string{"a", "b", "c"} }, "questions[0].choices"},
		"blank choice":   {func(p *app.ImportPayload) { p.Questions[1].Choices[2] = " " }, "questions[1].choices[2]"},
		"correct range":  {func(p *app.ImportPayload) { p.Questions[0].CorrectIndex = intPtr(4) }, "questions[0].correctIndex"},
		"correct absent": {func(p *app.ImportPayload) { p.Questions[0].CorrectIndex = nil }, "questions[0].correctIndex"},
		"difficulty":     {func(p *app.ImportPayload) { p.Questions[0].Difficulty = "brutal" }, "questions[0].difficulty"},
		"duplicate id":   {func(p *app.ImportPayload) { p.Questions[1].ExternalID = "q-1" }, "questions[1].externalId"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := validImport()
			tc.mutate(&p)
			_, err := svc.Import(context.Background(), p)
			expectCode(t, err, domain.CodeInvalidPayload)
			if fields := err.(*domain.Error).Fields; len(fields[tc.field]) == 0 {
				t.Fatalf("expected detail for %s, got %v", tc.field, fields)
			}
		})
	}
}

func TestAdminCreateAndDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := app.NewCatalogService(store, nil)

	subject, err := svc.CreateSubject(ctx, app.CreateSubjectRequest{Code: "ACtE", Name: "Computer Engineering"})
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	_, err = svc.CreateSubject(ctx, app.CreateSubjectRequest{Code: "ACtE", Name: "Duplicate"})
	expectCode(t, err, domain.CodeConflict)
	_, err = svc.CreateSubject(ctx, app.CreateSubjectRequest{Code: "AC", Name: "Short"})
	expectCode(t, err, domain.CodeInvalidPayload)

	_, err = svc.CreateUnit(ctx, app.CreateUnitRequest{SubjectID: "missing", Code: "U01", Name: "Unit"})
	expectCode(t, err, domain.CodeNotFound)
	unit, err := svc.CreateUnit(ctx, app.CreateUnitRequest{SubjectID: subject.ID, Code: "U01", Name: "Unit one"})
	if err != nil {
		t.Fatalf("create unit: %v", err)
	}
	_, err = svc.CreateUnit(ctx, app.CreateUnitRequest{SubjectID: subject.ID, Code: "U01", Name: "Unit again"})
	expectCode(t, err, domain.CodeConflict)

	q := app.CreateQuestionRequest{
		UnitID:       unit.ID,
		ExternalID:   "x-1",
		Prompt:       "What is a flip-flop?",
		Choices:      []string{"a", "b", "c", "d"},
		CorrectIndex: intPtr(0),
	}
	created, err := svc.CreateQuestion(ctx, q)
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	if !created.IsActive || created.Difficulty != domain.DifficultyMedium {
		t.Fatalf("unexpected question defaults %+v", created)
	}
	_, err = svc.CreateQuestion(ctx, q)
	expectCode(t, err, domain.CodeConflict)

	q.ExternalID = "x-2"
	q.TopicID = "no-such-topic"
	_, err = svc.CreateQuestion(ctx, q)
	expectCode(t, err, domain.CodeNotFound)

	summaries, err := svc.ListSubjects(ctx)
	if err != nil || len(summaries) != 1 || summaries[0].UnitCount != 1 {
		t.Fatalf("unexpected subjects %+v err %v", summaries, err)
	}
	units, err := svc.ListUnits(ctx, "ACtE")
	if err != nil || len(units) != 1 || units[0].Code != "U01" {
		t.Fatalf("unexpected units %+v err %v", units, err)
	}
	topics, err := svc.ListTopics(ctx, "ACtE", "U01")
	if err != nil || len(topics) != 0 {
		t.Fatalf("unexpected topics %+v err %v", topics, err)
	}
	_, err = svc.ListTopics(ctx, "ACtE", "U99")
	expectCode(t, err, domain.CodeNotFound)

	if err := svc.DeleteSubject(ctx, subject.ID); err != nil {
		t.Fatalf("delete subject: %v", err)
	}
	expectCode(t, svc.DeleteSubject(ctx, subject.ID), domain.CodeNotFound)
}

func TestDeleteServedUnitConflicts(t *testing.T) {
	f := newFixture(t, 30)
	ctx := context.Background()
	f.start(t, "u1", 25)

	svc := app.NewCatalogService(f.store, nil)
	expectCode(t, svc.DeleteUnit(ctx, "unit-1"), domain.CodeConflict)
}

func TestBulkCreateQuestionsSkipsStoredExternalIDs(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	svc := app.NewCatalogService(f.store, nil)

	question := func(unitID, externalID string) app.CreateQuestionRequest {
		return app.CreateQuestionRequest{
			UnitID:       unitID,
			ExternalID:   externalID,
			Prompt:       "Which gate is universal?",
			Choices:      []string{"AND", "OR", "NAND", "XOR"},
			CorrectIndex: intPtr(2),
		}
	}

	result, err := svc.BulkCreateQuestions(ctx, app.BulkCreateQuestionsRequest{Questions: []app.CreateQuestionRequest{
		question("unit-1", "ext-0"),
		question("unit-1", "bulk-1"),
		question("unit-2", "bulk-2"),
		question("unit-2", "bulk-2"),
	}})
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	if result.Inserted != 2 || result.Requested != 4 {
		t.Fatalf("unexpected result %+v", result)
	}
	stored, err := f.store.CandidateQuestions(ctx, domain.CandidateFilter{SubjectID: "sub-1", UnitCodes: []string{"U2"}, Limit: 100})
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("expected 3 active U2 questions, got %d", len(stored))
	}

	_, err = svc.BulkCreateQuestions(ctx, app.BulkCreateQuestionsRequest{Questions: []app.CreateQuestionRequest{
		question("unit-1", "bulk-3"),
		question("unit-9", "bulk-4"),
	}})
	expectCode(t, err, domain.CodeNotFound)
	if _, err := f.store.CreateQuestions(ctx, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	bad := question("unit-1", "bulk-5")
	bad.Choices = bad.Choices[:3]
	_, err = svc.BulkCreateQuestions(ctx, app.BulkCreateQuestionsRequest{Questions: []app.CreateQuestionRequest{question("unit-1", "bulk-6"), bad}})
	expectCode(t, err, domain.CodeInvalidPayload)
	var de *domain.Error
	if !errors.As(err, &de) || len(de.Fields["questions[1].choices"]) == 0 {
		t.Fatalf("expected questions[1].choices detail, got %v", err)
	}

	_, err = svc.BulkCreateQuestions(ctx, app.BulkCreateQuestionsRequest{})
	expectCode(t, err, domain.CodeInvalidPayload)
}
