package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/domain"
	"quiz-practice-service/internal/infra/memory"
)

const payload = `{
  "version": "v1",
  "subjectCode": "ACtE",
  "subjectName": "Computer Engineering",
  "unitCode": "U1",
  "unitName": "Logic",
  "questions": [
    {"externalId": "ext-1", "prompt": "NAND of 1 and 1?", "choices": ["0", "1", "x", "z"], "correctIndex": 0},
    {"externalId": "ext-2", "prompt": "NOR of 0 and 0?", "choices": ["0", "1", "x", "z"], "correctIndex": 1, "difficulty": "easy"}
  ]
}`

func writePayload(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	return path
}

func TestImportFileUpsertsQuestions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	catalog := app.NewCatalogService(store, nil)
	path := writePayload(t, payload)

	if err := importFile(ctx, catalog, path); err != nil {
		t.Fatalf("import: %v", err)
	}
	// Re-running the same file must not duplicate anything.
	if err := importFile(ctx, catalog, path); err != nil {
		t.Fatalf("second import: %v", err)
	}

	units, err := catalog.ListUnits(ctx, "ACtE")
	if err != nil {
		t.Fatalf("list units: %v", err)
	}
	if len(units) != 1 || units[0].Code != "U1" {
		t.Fatalf("unexpected units %+v", units)
	}
	subject, err := store.SubjectByCode(ctx, "ACtE")
	if err != nil {
		t.Fatalf("subject: %v", err)
	}
	candidates, err := store.CandidateQuestions(ctx, domain.CandidateFilter{SubjectID: subject.ID, Limit: 10})
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(candidates))
	}
}

func TestImportFileRejectsInvalidPayload(t *testing.T) {
	catalog := app.NewCatalogService(memory.NewStore(), nil)

	err := importFile(context.Background(), catalog, writePayload(t, `{"version": "v2", "questions": []}`))
	if domain.CodeOf(err) != domain.CodeInvalidPayload {
		t.Fatalf("expected INVALID_PAYLOAD, got %v", err)
	}

	if err := importFile(context.Background(), catalog, writePayload(t, `{`)); err == nil {
		t.Fatalf("expected parse error")
	}

	if err := importFile(context.Background(), catalog, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
