package appraisalhandler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"staffappraisal/internal/domain/appraisal"
	"staffappraisal/internal/domain/auth"
	"staffappraisal/internal/domain/scoring"
	"staffappraisal/internal/platform/signature"
	"staffappraisal/internal/transport/http/middleware"
)

const testSecret = "handler-test-secret"

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type testServer struct {
	router      http.Handler
	idempotency *memoryIdempotency
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	template, err := scoring.DefaultTemplate()
	if err != nil {
		t.Fatalf("default template: %v", err)
	}
	svc := appraisal.NewService(appraisal.Deps{
		Store:    newMemoryAppraisals(),
		Sections: &memoryRecords{},
		Template: template,
	})
	disk, err := signature.NewDisk(t.TempDir(), "/signatures")
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	idem := &memoryIdempotency{}
	h := NewHandler(svc, nil, disk, 1<<20, idem)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Auth(testSecret))
	r.Route("/api/v1", h.RegisterRoutes)
	return &testServer{router: r, idempotency: idem}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	signed, err := auth.GenerateToken(testSecret, auth.Claims{UserID: userID, RoleName: role}, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return signed
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body []byte, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if headers["Content-Type"] == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, env
}

func (s *testServer) create(t *testing.T, bearer string) appraisal.Appraisal {
	t.Helper()
	body := []byte(`{"appraiseeId":"user-ama","appraiserId":"user-kofi","periodStart":"2026-01-01","periodEnd":"2026-12-31"}`)
	rec, env := s.do(t, http.MethodPost, "/api/v1/appraisals", bearer, body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var out appraisal.Appraisal
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode appraisal: %v", err)
	}
	return out
}

func TestCreateAndSubmitAdvancesWorkflow(t *testing.T) {
	s := newTestServer(t)
	ama := token(t, "user-ama", auth.RoleEmployee)
	created := s.create(t, ama)

	body := []byte(`{"payload":{"appraisee":{"title":"Ms","surname":"Mensah","firstName":"Ama"}}}`)
	rec, env := s.do(t, http.MethodPost, "/api/v1/appraisals/"+created.ID+"/sections/personal-info/submit", ama, body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Next   string `json:"next"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if result.Next != "performance-planning" {
		t.Fatalf("expected next performance-planning, got %q", result.Next)
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/appraisals/"+created.ID+"/workflow", ama, nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), "performance-planning") {
		t.Fatalf("unexpected workflow position %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitRejectsUnknownPayloadField(t *testing.T) {
	s := newTestServer(t)
	ama := token(t, "user-ama", auth.RoleEmployee)
	created := s.create(t, ama)

	body := []byte(`{"payload":{"nickname":"Ama"}}`)
	rec, env := s.do(t, http.MethodPost, "/api/v1/appraisals/"+created.ID+"/sections/personal-info/submit", ama, body, nil)
	if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownSectionIsRejected(t *testing.T) {
	s := newTestServer(t)
	ama := token(t, "user-ama", auth.RoleEmployee)
	created := s.create(t, ama)

	rec, _ := s.do(t, http.MethodGet, "/api/v1/appraisals/"+created.ID+"/sections/bonus", ama, nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAccessControl(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, token(t, "user-kofi", auth.RoleManager))

	rec, _ := s.do(t, http.MethodGet, "/api/v1/appraisals/"+created.ID, "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodGet, "/api/v1/appraisals/"+created.ID, token(t, "user-esi", auth.RoleEmployee), nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("outsider: expected 403, got %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodGet, "/api/v1/appraisals/"+created.ID, token(t, "hr-1", auth.RoleHR), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("hr: expected 200, got %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodGet, "/api/v1/appraisals/missing", token(t, "hr-1", auth.RoleHR), nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing: expected 404, got %d", rec.Code)
	}
}

func TestStatusBeyondOwnStageIsForbidden(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, token(t, "user-kofi", auth.RoleManager))
	path := "/api/v1/appraisals/" + created.ID + "/status"

	rec, env := s.do(t, http.MethodPatch, path, token(t, "user-ama", auth.RoleEmployee), []byte(`{"status":"completed"}`), nil)
	if rec.Code != http.StatusForbidden || env.Error == nil {
		t.Fatalf("appraisee completing: expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	rec, _ = s.do(t, http.MethodPatch, path, token(t, "hr-1", auth.RoleHR), []byte(`{"status":"completed"}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("hr completing: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStatusRegressionReportsCurrent(t *testing.T) {
	s := newTestServer(t)
	kofi := token(t, "user-kofi", auth.RoleManager)
	created := s.create(t, kofi)
	path := "/api/v1/appraisals/" + created.ID + "/status"

	rec, _ := s.do(t, http.MethodPatch, path, kofi, []byte(`{"status":"reviewed"}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("advance: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec, env := s.do(t, http.MethodPatch, path, kofi, []byte(`{"status":"draft"}`), nil)
	if rec.Code != http.StatusConflict || env.Error == nil {
		t.Fatalf("regress: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	current, ok := env.Error.Details["current"].(map[string]any)
	if !ok || current["status"] != "reviewed" {
		t.Fatalf("expected current status in details, got %+v", env.Error.Details)
	}
}

func TestPreviewScores(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"targets":[{"target":"Close audits","performanceAssessment":"done","weightOfTarget":10,"score":3}]}`)
	rec, env := s.do(t, http.MethodPost, "/api/v1/scoring/preview", token(t, "user-ama", auth.RoleEmployee), body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result appraisal.PreviewResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if result.EndYear.Average != 3 || result.EndYear.FinalScore != 1.8 {
		t.Fatalf("unexpected end-year summary %+v", result.EndYear)
	}
	if result.Appraisal.Score.OverallTotal != 1.8 || result.Appraisal.Score.OverallScorePercentage != 36 {
		t.Fatalf("unexpected overall score %+v", result.Appraisal.Score)
	}
}

func TestTemplateIsServed(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(t, http.MethodGet, "/api/v1/scoring/template", token(t, "user-ama", auth.RoleEmployee), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("template: expected 200, got %d", rec.Code)
	}
	var template scoring.Template
	if err := json.Unmarshal(env.Data, &template); err != nil {
		t.Fatalf("decode template: %v", err)
	}
	if len(template.Core) == 0 || len(template.NonCore) == 0 {
		t.Fatalf("expected both competency groups, got %+v", template)
	}
}

func TestMultipartSubmitStoresSignature(t *testing.T) {
	s := newTestServer(t)
	ama := token(t, "user-ama", auth.RoleEmployee)
	created := s.create(t, ama)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("payload", `{"appraisee":{"surname":"Mensah"}}`); err != nil {
		t.Fatalf("payload field: %v", err)
	}
	if err := form.WriteField("date", "2026-11-30"); err != nil {
		t.Fatalf("date field: %v", err)
	}
	part, err := form.CreateFormFile("signature", "sig.png")
	if err != nil {
		t.Fatalf("file part: %v", err)
	}
	if _, err := part.Write(pngHeader); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	rec, env := s.do(t, http.MethodPost, "/api/v1/appraisals/"+created.ID+"/sections/personal-info/submit", ama, body.Bytes(),
		map[string]string{"Content-Type": form.FormDataContentType()})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result appraisal.SubmitResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if result.Record == nil || result.Record.Signatures.Appraisee == nil {
		t.Fatalf("expected appraisee signature, got %s", env.Data)
	}
	if !strings.HasPrefix(result.Record.Signatures.Appraisee.URL, "/signatures/"+created.ID+"/personal-info/") {
		t.Fatalf("unexpected signature url %q", result.Record.Signatures.Appraisee.URL)
	}
}

func TestSubmitReplaysIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	ama := token(t, "user-ama", auth.RoleEmployee)
	created := s.create(t, ama)
	path := "/api/v1/appraisals/" + created.ID + "/sections/personal-info/submit"
	headers := map[string]string{middleware.IdempotencyHeader: "submit-1"}

	first, _ := s.do(t, http.MethodPost, path, ama, []byte(`{"payload":{}}`), headers)
	if first.Code != http.StatusOK {
		t.Fatalf("first submit: expected 200, got %d: %s", first.Code, first.Body.String())
	}
	second, _ := s.do(t, http.MethodPost, path, ama, []byte(`{"payload":{}}`), headers)
	if second.Code != http.StatusOK || second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed response, got %d %v", second.Code, second.Header())
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}

	conflict, _ := s.do(t, http.MethodPost, path, ama, []byte(`{"payload":{"appraisee":{"surname":"Other"}}}`), headers)
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key, got %d", conflict.Code)
	}
}
