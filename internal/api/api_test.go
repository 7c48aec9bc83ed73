//go:build testutil
// +build testutil

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/tutorbook/internal/api"
	"github.com/Spok95/tutorbook/internal/auth"
	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/models"
	"github.com/Spok95/tutorbook/internal/testutil/testdb"
)

const apiKey = "test-api-key"

var (
	h      *testdb.DBHandle
	tokens = auth.NewTokens("test-secret", time.Hour)
)

func TestMain(m *testing.M) {
	var err error
	h, err = testdb.Start(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "testdb:", err)
		os.Exit(1)
	}
	code := m.Run()
	h.Close()
	os.Exit(code)
}

func newServer(t *testing.T) *api.Server {
	t.Helper()
	if err := h.Truncate(context.Background()); err != nil {
		t.Fatal(err)
	}
	return api.New(api.Options{
		APIKey: apiKey,
		DB:     h.DB,
		Tokens: tokens,
		Now:    func() time.Time { return time.Date(2024, 10, 15, 12, 0, 0, 0, time.UTC) },
	})
}

type account struct {
	ID    uuid.UUID
	Token string
}

func newAccount(t *testing.T, role models.Role, approved bool) account {
	t.Helper()
	email := fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8])
	p, err := db.CreateAccount(context.Background(), h.DB, email, "x", "Тест", nil, role, approved)
	if err != nil {
		t.Fatal(err)
	}
	tok, _, err := tokens.Issue(p.ID, email)
	if err != nil {
		t.Fatal(err)
	}
	return account{ID: p.ID, Token: tok}
}

// do выполняет запрос; body == nil — без тела, out == nil — ответ не разбирается.
func do(t *testing.T, srv http.Handler, method, path, token string, body, out any, headers ...string) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", apiKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestAPIKeyRequired(t *testing.T) {
	srv := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rec.Code)
	}
}

func TestSignupLoginAndActivation(t *testing.T) {
	srv := newServer(t)
	admin := newAccount(t, models.Admin, true)

	var signed struct {
		Token   string         `json:"token"`
		Profile models.Profile `json:"profile"`
	}
	code := do(t, srv, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email": "Anna@Example.com", "password": "secret-pass", "full_name": "Анна",
	}, &signed)
	if code != http.StatusCreated || signed.Token == "" {
		t.Fatalf("signup: %d", code)
	}
	if signed.Profile.IsApproved || signed.Profile.Role != models.Teacher {
		t.Fatalf("new profile: %+v", signed.Profile)
	}

	if code := do(t, srv, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email": "anna@example.com", "password": "wrong-pass",
	}, nil); code != http.StatusUnauthorized {
		t.Fatalf("bad password: %d", code)
	}
	var logged struct {
		Token string `json:"token"`
	}
	if code := do(t, srv, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email": "anna@example.com", "password": "secret-pass",
	}, &logged); code != http.StatusOK {
		t.Fatalf("login: %d", code)
	}

	// до активации данные закрыты
	if code := do(t, srv, http.MethodGet, "/v1/students", logged.Token, nil, nil); code != http.StatusForbidden {
		t.Fatalf("unapproved students: %d", code)
	}

	var codes []models.ActivationCode
	if code := do(t, srv, http.MethodPost, "/v1/activation-codes", admin.Token, map[string]any{"code": "abc123"}, &codes); code != http.StatusCreated {
		t.Fatalf("create code: %d", code)
	}
	if codes[0].Code != "ABC123" {
		t.Fatalf("code not normalized: %q", codes[0].Code)
	}

	if code := do(t, srv, http.MethodPost, "/v1/rpc/redeem_activation_code", logged.Token, map[string]any{"code": "abc123"}, nil); code != http.StatusOK {
		t.Fatalf("redeem: %d", code)
	}
	if code := do(t, srv, http.MethodPost, "/v1/rpc/redeem_activation_code", logged.Token, map[string]any{"code": "ABC123"}, nil); code != http.StatusConflict {
		t.Fatalf("second redeem: %d", code)
	}
	if code := do(t, srv, http.MethodGet, "/v1/students", logged.Token, nil, nil); code != http.StatusOK {
		t.Fatalf("approved students: %d", code)
	}
}

func TestStudentLifecycleAndSummary(t *testing.T) {
	srv := newServer(t)
	teacher := newAccount(t, models.Teacher, true)

	var st models.Student
	if code := do(t, srv, http.MethodPost, "/v1/students", teacher.Token, map[string]any{
		"name": "Петя", "agreed_amount": 500, "phones": []map[string]string{{"number": "+7 912 000-11-22"}},
	}, &st); code != http.StatusCreated {
		t.Fatalf("create student: %d", code)
	}
	// период по умолчанию — текущий на Now
	if st.AcademicYear != "2024-2025" || st.Semester != models.SemesterFirst {
		t.Fatalf("default period: %s %s", st.AcademicYear, st.Semester)
	}

	for _, amount := range []float64{150, 100} {
		if code := do(t, srv, http.MethodPost, "/v1/payments", teacher.Token, map[string]any{
			"student_id": st.ID, "amount": amount, "payment_date": "2024-10-01",
		}, nil); code != http.StatusCreated {
			t.Fatalf("payment: %d", code)
		}
	}
	if code := do(t, srv, http.MethodPost, "/v1/lessons", teacher.Token, map[string]any{
		"student_id": st.ID, "hours": 10,
	}, nil); code != http.StatusCreated {
		t.Fatalf("lesson: %d", code)
	}

	var sum models.StudentSummary
	do(t, srv, http.MethodGet, "/v1/students/"+st.ID.String()+"/summary", teacher.Token, nil, &sum)
	if sum.RemainingBalance != 250 {
		t.Fatalf("flat remaining: %v", sum.RemainingBalance)
	}

	if code := do(t, srv, http.MethodPatch, "/v1/students/"+st.ID.String(), teacher.Token, map[string]any{
		"is_hourly": true,
	}, nil); code != http.StatusBadRequest {
		t.Fatalf("hourly without price: %d", code)
	}
	if code := do(t, srv, http.MethodPatch, "/v1/students/"+st.ID.String(), teacher.Token, map[string]any{
		"is_hourly": true, "price_per_hour": 20,
	}, nil); code != http.StatusOK {
		t.Fatalf("switch to hourly: %d", code)
	}

	var list struct {
		Students []models.StudentSummary `json:"students"`
		Totals   struct {
			Outstanding float64 `json:"outstanding"`
			Overpaid    float64 `json:"overpaid"`
		} `json:"totals"`
	}
	if code := do(t, srv, http.MethodGet, "/v1/summaries?academic_year=2024-2025&semester=first", teacher.Token, nil, &list); code != http.StatusOK {
		t.Fatalf("summaries: %d", code)
	}
	if len(list.Students) != 1 || list.Students[0].RemainingBalance != -50 {
		t.Fatalf("hourly summary: %+v", list.Students)
	}
	if list.Totals.Outstanding != 0 || list.Totals.Overpaid != 50 {
		t.Fatalf("totals: %+v", list.Totals)
	}

	if code := do(t, srv, http.MethodDelete, "/v1/students/"+st.ID.String(), teacher.Token, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete: %d", code)
	}
	if code := do(t, srv, http.MethodGet, "/v1/students/"+st.ID.String(), teacher.Token, nil, nil); code != http.StatusNotFound {
		t.Fatalf("deleted student: %d", code)
	}
}

func TestAdminSupervision(t *testing.T) {
	srv := newServer(t)
	admin := newAccount(t, models.Admin, true)
	anna := newAccount(t, models.Teacher, true)
	boris := newAccount(t, models.Teacher, true)
	ctx := context.Background()

	for _, tc := range []account{anna, boris} {
		if _, err := db.CreateStudent(ctx, h.DB, authz.ForTeacher(tc.ID), models.Student{
			Name: "Ученик", AgreedAmount: new(float64), AcademicYear: "2024-2025", Semester: models.SemesterFirst,
		}); err != nil {
			t.Fatal(err)
		}
	}

	var all []models.Student
	do(t, srv, http.MethodGet, "/v1/students", admin.Token, nil, &all)
	if len(all) != 2 {
		t.Fatalf("admin sees %d", len(all))
	}
	var own []models.Student
	do(t, srv, http.MethodGet, "/v1/students", anna.Token, nil, &own)
	if len(own) != 1 || own[0].TeacherID != anna.ID {
		t.Fatalf("anna sees %+v", own)
	}
	var supervised []models.Student
	do(t, srv, http.MethodGet, "/v1/students", admin.Token, nil, &supervised, "X-Supervise-Teacher", boris.ID.String())
	if len(supervised) != 1 || supervised[0].TeacherID != boris.ID {
		t.Fatalf("supervised: %+v", supervised)
	}
	// заголовок курирования у преподавателя игнорируется
	var ignored []models.Student
	do(t, srv, http.MethodGet, "/v1/students", anna.Token, nil, &ignored, "X-Supervise-Teacher", boris.ID.String())
	if len(ignored) != 1 || ignored[0].TeacherID != anna.ID {
		t.Fatalf("teacher supervision: %+v", ignored)
	}

	if code := do(t, srv, http.MethodGet, "/v1/activation-codes", anna.Token, nil, nil); code != http.StatusForbidden {
		t.Fatalf("teacher codes: %d", code)
	}
	var isAdmin struct {
		IsAdmin bool `json:"is_admin"`
	}
	do(t, srv, http.MethodPost, "/v1/rpc/is_admin", anna.Token, map[string]any{"user_id": admin.ID}, &isAdmin)
	if !isAdmin.IsAdmin {
		t.Fatal("is_admin(admin) = false")
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	srv := newServer(t)
	teacher := newAccount(t, models.Teacher, false)

	var p models.Preferences
	do(t, srv, http.MethodGet, "/v1/me/preferences", teacher.Token, nil, &p)
	if p.AcademicYear != "2024-2025" || p.Semester != models.SemesterFirst {
		t.Fatalf("default: %+v", p)
	}
	if code := do(t, srv, http.MethodPut, "/v1/me/preferences", teacher.Token, map[string]any{
		"academic_year": "2023-2024", "semester": "winter",
	}, nil); code != http.StatusBadRequest {
		t.Fatalf("bad semester: %d", code)
	}
	if code := do(t, srv, http.MethodPut, "/v1/me/preferences", teacher.Token, map[string]any{
		"academic_year": "2023-2024", "semester": "second",
	}, nil); code != http.StatusOK {
		t.Fatalf("save: %d", code)
	}
	do(t, srv, http.MethodGet, "/v1/me/preferences", teacher.Token, nil, &p)
	if p.AcademicYear != "2023-2024" || p.Semester != models.SemesterSecond {
		t.Fatalf("saved: %+v", p)
	}
}

func TestSummaryReportDownload(t *testing.T) {
	srv := newServer(t)
	teacher := newAccount(t, models.Teacher, true)

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/summary.xlsx?academic_year=2024-2025&semester=first", nil)
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+teacher.Token)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type: %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty workbook")
	}
}
