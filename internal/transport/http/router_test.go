package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/domain"
	"quiz-practice-service/internal/infra/memory"
)

type testServer struct {
	*httptest.Server
	store       *memory.Store
	leaderboard *app.LeaderboardService
}

// newTestServer seeds subject ACtE (units U1, U2) with n active questions and
// registers tokens for alice, bob and an admin.
func newTestServer(t *testing.T, n int) *testServer {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	must(t, store.CreateSubject(ctx, domain.Subject{ID: "sub-1", Code: "ACtE", Name: "Computer Engineering"}))
	must(t, store.CreateUnit(ctx, domain.Unit{ID: "unit-1", SubjectID: "sub-1", Code: "U1", Name: "Unit one"}))
	must(t, store.CreateUnit(ctx, domain.Unit{ID: "unit-2", SubjectID: "sub-1", Code: "U2", Name: "Unit two"}))
	for i := 0; i < n; i++ {
		unit := "unit-1"
		if i%2 == 1 {
			unit = "unit-2"
		}
		must(t, store.CreateQuestion(ctx, domain.Question{
			ID:           fmt.Sprintf("q-%d", i),
			ExternalID:   fmt.Sprintf("ext-%d", i),
			UnitID:       unit,
			Prompt:       fmt.Sprintf("Question %d?", i),
			Choices:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
			Explanation:  "because",
			Difficulty:   domain.DifficultyMedium,
			IsActive:     true,
		}))
	}

	dir := memory.NewDirectory()
	dir.Add("alice-token", domain.User{ID: "alice", Email: "alice@example.com", Name: "Alice"})
	dir.Add("bob-token", domain.User{ID: "bob", Email: "bob@example.com", Name: "Bob"})
	dir.Add("admin-token", domain.User{ID: "root", Email: "root@example.com", Name: "Root"})

	metrics := NewMetrics()
	leaderboard := app.NewLeaderboardService(store, dir, 0)
	quiz := app.NewQuizService(store, store, store,
		app.WithLocker(memory.NewLocker()),
		app.WithListeners(leaderboard, metrics),
	)
	router := NewRouter(RouterConfig{
		Quiz:          quiz,
		Catalog:       app.NewCatalogService(store, nil),
		Leaderboard:   leaderboard,
		Profiles:      app.NewProfileService(store, []string{"root"}),
		Authenticator: dir,
		Auth:          AuthOptions{CookieName: "session_token"},
		Metrics:       metrics,
		Health:        store,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store, leaderboard: leaderboard}
}

type testEnvelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *errorBody      `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, testEnvelope) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env testEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func (s *testServer) startQuiz(t *testing.T, token string, count int) string {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/quiz/start", token, map[string]any{
		"subjectCode": "ACtE", "mode": "random", "count": count,
	})
	if status != http.StatusOK {
		t.Fatalf("start: status %d, error %+v", status, env.Error)
	}
	var res app.StartQuizResult
	decodeData(t, env, &res)
	return res.SessionID
}

// answerAll answers every question of the session with choice 0.
func (s *testServer) answerAll(t *testing.T, token, sessionID string) []map[string]any {
	t.Helper()
	status, env := s.do(t, http.MethodGet, "/quiz/session/"+sessionID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("session: status %d", status)
	}
	var view app.SessionView
	decodeData(t, env, &view)
	out := make([]map[string]any, len(view.Questions))
	for i, q := range view.Questions {
		out[i] = map[string]any{"externalId": q.ExternalID, "selectedIndex": 0}
	}
	return out
}

func decodeData(t *testing.T, env testEnvelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func expectError(t *testing.T, status int, env testEnvelope, wantStatus int, wantCode domain.Code) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("expected status %d, got %d (%+v)", wantStatus, status, env.Error)
	}
	if env.OK || env.Error == nil || env.Error.Code != wantCode {
		t.Fatalf("expected %s envelope, got %+v", wantCode, env)
	}
}

func TestRequestsWithoutIdentityAreRejected(t *testing.T) {
	srv := newTestServer(t, 10)
	for _, path := range []string{"/subjects", "/leaderboard", "/quiz/session/x"} {
		status, env := srv.do(t, http.MethodGet, path, "", nil)
		expectError(t, status, env, http.StatusUnauthorized, domain.CodeUnauthorized)
		status, env = srv.do(t, http.MethodGet, path, "forged", nil)
		expectError(t, status, env, http.StatusUnauthorized, domain.CodeUnauthorized)
	}
}

func TestCookieCredentialIsAccepted(t *testing.T) {
	srv := newTestServer(t, 10)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/subjects", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "alice-token"})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestQuizFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t, 200)
	sessionID := srv.startQuiz(t, "alice-token", 25)

	status, env := srv.do(t, http.MethodGet, "/quiz/session/"+sessionID, "alice-token", nil)
	if status != http.StatusOK {
		t.Fatalf("session: status %d", status)
	}
	if bytes.Contains(env.Data, []byte("correctIndex")) || bytes.Contains(env.Data, []byte("because")) {
		t.Fatalf("unsubmitted session leaked answer keys: %s", env.Data)
	}

	answers := srv.answerAll(t, "alice-token", sessionID)
	status, env = srv.do(t, http.MethodPost, "/quiz/submit", "alice-token", map[string]any{"sessionId": sessionID, "answers": answers})
	if status != http.StatusOK {
		t.Fatalf("submit: status %d, error %+v", status, env.Error)
	}
	var first domain.GradedAttempt
	decodeData(t, env, &first)
	if first.Score.Total != 25 || len(first.Results) != 25 {
		t.Fatalf("unexpected score %+v with %d results", first.Score, len(first.Results))
	}

	status, env = srv.do(t, http.MethodPost, "/quiz/submit", "alice-token", map[string]any{"sessionId": sessionID, "answers": answers})
	if status != http.StatusOK {
		t.Fatalf("resubmit: status %d", status)
	}
	var again domain.GradedAttempt
	decodeData(t, env, &again)
	if again.AttemptID != first.AttemptID || again.Score != first.Score {
		t.Fatalf("resubmit changed the attempt: %+v vs %+v", again, first)
	}

	second := srv.startQuiz(t, "alice-token", 25)
	partial := srv.answerAll(t, "alice-token", second)[:24]
	status, env = srv.do(t, http.MethodPost, "/quiz/submit", "alice-token", map[string]any{"sessionId": second, "answers": partial})
	expectError(t, status, env, http.StatusBadRequest, domain.CodeIncomplete)
}

func TestSessionBelongsToItsOwner(t *testing.T) {
	srv := newTestServer(t, 50)
	sessionID := srv.startQuiz(t, "alice-token", 25)

	status, env := srv.do(t, http.MethodGet, "/quiz/session/"+sessionID, "bob-token", nil)
	expectError(t, status, env, http.StatusForbidden, domain.CodeForbidden)

	status, env = srv.do(t, http.MethodPost, "/quiz/submit", "bob-token", map[string]any{"sessionId": sessionID, "answers": []any{}})
	expectError(t, status, env, http.StatusForbidden, domain.CodeForbidden)

	status, env = srv.do(t, http.MethodGet, "/quiz/session/missing", "alice-token", nil)
	expectError(t, status, env, http.StatusNotFound, domain.CodeNotFound)
}

func TestStartQuizErrors(t *testing.T) {
	srv := newTestServer(t, 30)

	status, env := srv.do(t, http.MethodPost, "/quiz/start", "alice-token", map[string]any{"subjectCode": "ACtE", "mode": "random", "count": 50})
	expectError(t, status, env, http.StatusBadRequest, domain.CodeNotEnoughQuestions)

	status, env = srv.do(t, http.MethodPost, "/quiz/start", "alice-token", map[string]any{"subjectCode": "NOPE", "mode": "random", "count": 25})
	expectError(t, status, env, http.StatusNotFound, domain.CodeNotFound)

	status, env = srv.do(t, http.MethodPost, "/quiz/start", "alice-token", map[string]any{"subjectCode": "ACtE", "mode": "unitWise", "count": 25})
	expectError(t, status, env, http.StatusBadRequest, domain.CodeInvalidBody)
	if len(env.Error.Details["unitCodes"]) == 0 {
		t.Fatalf("expected unitCodes detail, got %+v", env.Error.Details)
	}

	status, env = srv.do(t, http.MethodPost, "/quiz/start", "alice-token", "{")
	expectError(t, status, env, http.StatusBadRequest, domain.CodeInvalidJSON)

	status, env = srv.do(t, http.MethodPost, "/quiz/start", "alice-token", map[string]any{"subjectCode": "ACtE", "mode": "random", "count": "25"})
	expectError(t, status, env, http.StatusBadRequest, domain.CodeInvalidBody)
}

func TestSubmitTreatsMalformedAnswersAsMissing(t *testing.T) {
	srv := newTestServer(t, 30)
	sessionID := srv.startQuiz(t, "alice-token", 25)
	answers := srv.answerAll(t, "alice-token", sessionID)
	answers[0]["selectedIndex"] = "0"
	answers[1]["selectedIndex"] = 1.5
	answers[2]["externalId"] = 7

	status, env := srv.do(t, http.MethodPost, "/quiz/submit", "alice-token", map[string]any{"sessionId": sessionID, "answers": answers})
	expectError(t, status, env, http.StatusBadRequest, domain.CodeIncomplete)

	status, env = srv.do(t, http.MethodPost, "/quiz/submit", "alice-token", map[string]any{"sessionId": sessionID, "answers": "all of them"})
	expectError(t, status, env, http.StatusBadRequest, domain.CodeInvalidBody)

	status, env = srv.do(t, http.MethodPost, "/quiz/submit", "alice-token", map[string]any{"answers": []any{}})
	expectError(t, status, env, http.StatusBadRequest, domain.CodeInvalidBody)
}

func TestCatalogListing(t *testing.T) {
	srv := newTestServer(t, 10)

	status, env := srv.do(t, http.MethodGet, "/subjects", "alice-token", nil)
	if status != http.StatusOK {
		t.Fatalf("subjects: status %d", status)
	}
	var subjects []domain.SubjectSummary
	decodeData(t, env, &subjects)
	if len(subjects) != 1 || subjects[0].Code != "ACtE" || subjects[0].UnitCount != 2 {
		t.Fatalf("unexpected subjects %+v", subjects)
	}

	status, env = srv.do(t, http.MethodGet, "/subjects/ACtE/units", "alice-token", nil)
	if status != http.StatusOK {
		t.Fatalf("units: status %d", status)
	}
	var units []domain.UnitSummary
	decodeData(t, env, &units)
	if len(units) != 2 || units[0].Code != "U1" {
		t.Fatalf("unexpected units %+v", units)
	}

	status, env = srv.do(t, http.MethodGet, "/subjects/ACtE/units/U9/topics", "alice-token", nil)
	expectError(t, status, env, http.StatusNotFound, domain.CodeNotFound)
}

func TestAdminRoutesRequireAdminProfile(t *testing.T) {
	srv := newTestServer(t, 10)
	subject := map[string]any{"code": "PHYS", "name": "Physics"}

	status, env := srv.do(t, http.MethodPost, "/admin/subjects", "alice-token", subject)
	expectError(t, status, env, http.StatusForbidden, domain.CodeForbidden)

	status, env = srv.do(t, http.MethodPost, "/profile/ensure", "alice-token", nil)
	if status != http.StatusOK || !strings.Contains(string(env.Data), `"student"`) {
		t.Fatalf("ensure student: status %d data %s", status, env.Data)
	}
	status, env = srv.do(t, http.MethodPost, "/admin/subjects", "alice-token", subject)
	expectError(t, status, env, http.StatusForbidden, domain.CodeForbidden)

	status, env = srv.do(t, http.MethodPost, "/profile/ensure", "admin-token", nil)
	if status != http.StatusOK || !strings.Contains(string(env.Data), `"admin"`) {
		t.Fatalf("ensure admin: status %d data %s", status, env.Data)
	}
	status, env = srv.do(t, http.MethodPost, "/admin/subjects", "admin-token", subject)
	if status != http.StatusCreated {
		t.Fatalf("create subject: status %d error %+v", status, env.Error)
	}
	status, env = srv.do(t, http.MethodPost, "/admin/subjects", "admin-token", subject)
	expectError(t, status, env, http.StatusConflict, domain.CodeConflict)

	status, env = srv.do(t, http.MethodPost, "/admin/subjects", "admin-token", map[string]any{"code": "X", "name": ""})
	expectError(t, status, env, http.StatusBadRequest, domain.CodeInvalidPayload)
	if len(env.Error.Details["code"]) == 0 || len(env.Error.Details["name"]) == 0 {
		t.Fatalf("expected code and name details, got %+v", env.Error.Details)
	}
}

func TestAdminImportAndDelete(t *testing.T) {
	srv := newTestServer(t, 30)
	srv.do(t, http.MethodPost, "/profile/ensure", "admin-token", nil)

	payload := map[string]any{
		"version": "v1", "subjectCode": "CHEM", "subjectName": "Chemistry", "unitCode": "C1", "unitName": "Atoms",
		"questions": []map[string]any{
			{"externalId": "chem-1", "prompt": "Protons?", "choices": []string{"1", "2", "3", "4"}, "correctIndex": 0},
			{"externalId": "chem-2", "prompt": "Neutrons?", "choices": []string{"1", "2", "3", "4"}, "correctIndex": 3, "difficulty": "hard"},
		},
	}
	status, env := srv.do(t, http.MethodPost, "/admin/import", "admin-token", payload)
	if status != http.StatusOK {
		t.Fatalf("import: status %d error %+v", status, env.Error)
	}
	var result domain.ImportResult
	decodeData(t, env, &result)
	if result.QuestionsUpserted != 2 || result.UnitID == "" {
		t.Fatalf("unexpected import result %+v", result)
	}

	status, env = srv.do(t, http.MethodDelete, "/admin/units/"+result.UnitID, "admin-token", nil)
	if status != http.StatusOK {
		t.Fatalf("delete unused unit: status %d error %+v", status, env.Error)
	}

	srv.startQuiz(t, "alice-token", 25)
	status, env = srv.do(t, http.MethodDelete, "/admin/subjects/sub-1", "admin-token", nil)
	expectError(t, status, env, http.StatusConflict, domain.CodeConflict)

	status, env = srv.do(t, http.MethodDelete, "/admin/subjects/nope", "admin-token", nil)
	expectError(t, status, env, http.StatusNotFound, domain.CodeNotFound)
}

func TestAdminBulkCreateQuestions(t *testing.T) {
	srv := newTestServer(t, 4)
	srv.do(t, http.MethodPost, "/profile/ensure", "admin-token", nil)

	question := func(unitID, externalID string) map[string]any {
		return map[string]any{
			"unitId": unitID, "externalId": externalID, "prompt": "Which gate?",
			"choices": []string{"AND", "OR", "NOR", "XOR"}, "correctIndex": 2,
		}
	}
	batch := []map[string]any{question("unit-1", "ext-0"), question("unit-1", "bulk-1"), question("unit-2", "bulk-2")}

	status, env := srv.do(t, http.MethodPost, "/admin/questions/bulk", "alice-token", batch)
	expectError(t, status, env, http.StatusForbidden, domain.CodeForbidden)

	status, env = srv.do(t, http.MethodPost, "/admin/questions/bulk", "admin-token", batch)
	if status != http.StatusCreated {
		t.Fatalf("bulk create: status %d error %+v", status, env.Error)
	}
	var result app.BulkCreateResult
	decodeData(t, env, &result)
	if result.Inserted != 2 || result.Requested != 3 {
		t.Fatalf("expected the stored externalId to be skipped, got %+v", result)
	}

	status, env = srv.do(t, http.MethodPost, "/admin/questions/bulk", "admin-token",
		[]map[string]any{question("unit-1", "bulk-3"), question("unit-9", "bulk-4")})
	expectError(t, status, env, http.StatusNotFound, domain.CodeNotFound)
	stored, err := srv.store.CandidateQuestions(context.Background(), domain.CandidateFilter{SubjectID: "sub-1", Limit: 100})
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(stored) != 6 {
		t.Fatalf("a batch with an unknown unit must insert nothing, have %d questions", len(stored))
	}

	status, env = srv.do(t, http.MethodPost, "/admin/questions/bulk", "admin-token", []map[string]any{})
	expectError(t, status, env, http.StatusBadRequest, domain.CodeInvalidPayload)
	status, env = srv.do(t, http.MethodPost, "/admin/questions/bulk", "admin-token", question("unit-1", "bulk-5"))
	expectError(t, status, env, http.StatusBadRequest, domain.CodeInvalidPayload)
}

func TestLeaderboardRanksByCorrectAnswers(t *testing.T) {
	srv := newTestServer(t, 100)
	for _, token := range []string{"alice-token", "bob-token"} {
		sessionID := srv.startQuiz(t, token, 25)
		answers := srv.answerAll(t, token, sessionID)
		srv.do(t, http.MethodPost, "/quiz/submit", token, map[string]any{"sessionId": sessionID, "answers": answers})
	}

	status, env := srv.do(t, http.MethodGet, "/leaderboard", "alice-token", nil)
	if status != http.StatusOK {
		t.Fatalf("leaderboard: status %d", status)
	}
	var entries []domain.LeaderboardEntry
	decodeData(t, env, &entries)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	if entries[0].TotalCorrect < entries[1].TotalCorrect {
		t.Fatalf("leaderboard not ordered: %+v", entries)
	}
	for _, e := range entries {
		if e.Name == "" || e.Attempts != 1 || e.TotalQuestions != 25 {
			t.Fatalf("unexpected entry %+v", e)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, 30)
	sessionID := srv.startQuiz(t, "alice-token", 25)
	answers := srv.answerAll(t, "alice-token", sessionID)
	srv.do(t, http.MethodPost, "/quiz/submit", "alice-token", map[string]any{"sessionId": sessionID, "answers": answers})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz: %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	text := string(body)
	if !strings.Contains(text, "quiz_attempts_graded_total 1") {
		t.Fatalf("missing graded counter in:\n%s", text)
	}
	if !strings.Contains(text, `route="/quiz/submit"`) {
		t.Fatalf("missing route label in:\n%s", text)
	}
}

func TestChoiceIndex(t *testing.T) {
	cases := map[string]int{
		"0": 0, "3": 3, " 2 ": 2,
		"4": -1, "-1": -1, "1.0": -1, `"1"`: -1, "1e0": -1, "null": -1, "10": -1,
	}
	for raw, want := range cases {
		if got := choiceIndex(json.RawMessage(raw)); got != want {
			t.Fatalf("choiceIndex(%s) = %d, want %d", raw, got, want)
		}
	}
}
