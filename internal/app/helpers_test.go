package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/domain"
	"quiz-practice-service/internal/infra/memory"
)

type fixture struct {
	store   *memory.Store
	service *app.QuizService
	now     time.Time
	ids     int
}

// newFixture seeds subject ACtE with n active questions split over units U1 and U2,
// plus one inactive question. Question i has correctIndex i%4.
func newFixture(t *testing.T, n int, opts ...app.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.NewStore(), now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	mustNil(t, f.store.CreateSubject(ctx, domain.Subject{ID: "sub-1", Code: "ACtE", Name: "Computer Engineering"}))
	mustNil(t, f.store.CreateUnit(ctx, domain.Unit{ID: "unit-1", SubjectID: "sub-1", Code: "U1", Name: "Unit one"}))
	mustNil(t, f.store.CreateUnit(ctx, domain.Unit{ID: "unit-2", SubjectID: "sub-1", Code: "U2", Name: "Unit two"}))
	for i := 0; i <= n; i++ {
		unit := "unit-1"
		if i%2 == 1 {
			unit = "unit-2"
		}
		q := domain.Question{
			ID:           fmt.Sprintf("q-%d", i),
			ExternalID:   fmt.Sprintf("ext-%d", i),
			UnitID:       unit,
			Prompt:       fmt.Sprintf("Question %d?", i),
			Choices:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
			Difficulty:   domain.DifficultyMedium,
			IsActive:     i < n,
		}
		if i%3 == 0 {
			q.Explanation = "because"
		}
		mustNil(t, f.store.CreateQuestion(ctx, q))
	}

	base := []app.Option{
		app.WithClock(func() time.Time { return f.now }),
		app.WithIDGenerator(func() string { f.ids++; return fmt.Sprintf("id-%d", f.ids) }),
	}
	f.service = app.NewQuizService(f.store, f.store, f.store, append(base, opts...)...)
	return f
}

func (f *fixture) start(t *testing.T, userID string, count int) app.StartQuizResult {
	t.Helper()
	res, err := f.service.Start(context.Background(), userID, app.StartQuizRequest{
		SubjectCode: "ACtE",
		Mode:        domain.ModeRandom,
		Count:       count,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return res
}

// answers builds a full answer set for a session; correct reports how many are answered right.
func (f *fixture) answers(t *testing.T, sessionID string, correct int) []domain.AnswerSubmission {
	t.Helper()
	served, err := f.store.SessionQuestions(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("session questions: %v", err)
	}
	out := make([]domain.AnswerSubmission, 0, len(served))
	for i, sq := range served {
		selected := sq.Question.CorrectIndex
		if i >= correct {
			selected = (selected + 1) % 4
		}
		out = append(out, domain.AnswerSubmission{ExternalID: sq.Question.ExternalID, SelectedIndex: selected})
	}
	return out
}

func mustNil(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func expectCode(t *testing.T, err error, code domain.Code) {
	t.Helper()
	if got := domain.CodeOf(err); got != code {
		t.Fatalf("expected %s, got %s (%v)", code, got, err)
	}
}
