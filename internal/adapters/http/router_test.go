package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/atvirokodosprendimai/flowboard/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/flowboard/internal/adapters/mail"
	"github.com/atvirokodosprendimai/flowboard/internal/application"
	"github.com/atvirokodosprendimai/flowboard/internal/domain"
)

type fakeNotifier struct {
	sent []domain.Mail
	fail error
}

func (f *fakeNotifier) Send(_ context.Context, m domain.Mail) (string, error) {
	f.sent = append(f.sent, m)
	if f.fail != nil {
		return "", f.fail
	}
	return "msg-42", nil
}

func newTestServer(t *testing.T, notifier domain.Notifier) (*httptest.Server, *application.FlowService) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "flowboard_test.db")

	db, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := sqlite.RunMigrations(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	svc := application.NewFlowService(sqlite.NewFlowRepository(db), notifier)
	srv := httptest.NewServer(NewRouter(svc))
	t.Cleanup(srv.Close)
	return srv, svc
}

func loginToken(t *testing.T, srv *httptest.Server, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"email": email, "password": password, "mode": "token"})
	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return out.Token
}

func doJSON(t *testing.T, method, url, token string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func TestSendEmailValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeNotifier{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sendEmail", "", map[string]any{
		"taskName": "Task A",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing fields should be 400, got %d", resp.StatusCode)
	}
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Success || out.Error == "" {
		t.Fatalf("expected failure payload, got %+v", out)
	}

	noAssigner := doJSON(t, http.MethodPost, srv.URL+"/api/sendEmail", "", map[string]any{
		"toEmails":      []string{"alice@example.com"},
		"taskName":      "Task A",
		"flowchartName": "demo",
	})
	defer noAssigner.Body.Close()
	if noAssigner.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing assignedBy should be 400, got %d", noAssigner.StatusCode)
	}
}

func TestSendEmailMissingCredentials(t *testing.T) {
	srv, _ := newTestServer(t, mail.NewSMTPNotifier("", 0, "", "", ""))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sendEmail", "", map[string]any{
		"toEmails":      []string{"alice@example.com"},
		"taskName":      "Task A",
		"flowchartName": "demo",
		"assignedBy":    "boss@example.com",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("missing credentials should be 500, got %d", resp.StatusCode)
	}
}

func TestSendEmailProviderFailure(t *testing.T) {
	srv, _ := newTestServer(t, &fakeNotifier{fail: fmt.Errorf("relay refused")})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sendEmail", "", map[string]any{
		"toEmails":      []string{"alice@example.com"},
		"taskName":      "Task A",
		"flowchartName": "demo",
		"assignedBy":    "boss@example.com",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("provider failure should be 500, got %d", resp.StatusCode)
	}
}

func TestSendEmailSuccess(t *testing.T) {
	notifier := &fakeNotifier{}
	srv, _ := newTestServer(t, notifier)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sendEmail", "", map[string]any{
		"toEmails":      []string{"alice@example.com", "bob@example.com"},
		"taskName":      "Task A",
		"flowchartName": "demo",
		"assignedBy":    "boss@example.com",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Success   bool   `json:"success"`
		MessageID string `json:"messageId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.MessageID != "msg-42" {
		t.Fatalf("unexpected payload: %+v", out)
	}
	if len(notifier.sent) != 1 || len(notifier.sent[0].ToEmails) != 2 {
		t.Fatalf("expected one mail to two recipients, got %+v", notifier.sent)
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeNotifier{})

	resp, err := http.Get(srv.URL + "/api/flowcharts")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestChartLifecycleOverHTTP(t *testing.T) {
	srv, svc := newTestServer(t, &fakeNotifier{})
	ctx := context.Background()

	if err := svc.BootstrapAdmin(ctx, "Boss", "boss@example.com", "secret"); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	token := loginToken(t, srv, "boss@example.com", "secret")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/flowcharts", token, map[string]any{"name": "demo", "category": "ops"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create chart status %d", resp.StatusCode)
	}
	var chart struct {
		ID uint `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		t.Fatalf("decode chart: %v", err)
	}
	resp.Body.Close()

	dupResp := doJSON(t, http.MethodPost, srv.URL+"/api/flowcharts", token, map[string]any{"name": "demo"})
	dupResp.Body.Close()
	if dupResp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate name should be 409, got %d", dupResp.StatusCode)
	}

	nodeResp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/flowcharts/%d/nodes", srv.URL, chart.ID), token, nil)
	if nodeResp.StatusCode != http.StatusOK {
		t.Fatalf("add node status %d", nodeResp.StatusCode)
	}
	var node domain.Node
	if err := json.NewDecoder(nodeResp.Body).Decode(&node); err != nil {
		t.Fatalf("decode node: %v", err)
	}
	nodeResp.Body.Close()
	if node.Data.Label != "New Task" {
		t.Fatalf("unexpected node: %+v", node)
	}

	sumResp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/flowcharts/%d/summary", srv.URL, chart.ID), token, nil)
	if sumResp.StatusCode != http.StatusOK {
		t.Fatalf("summary status %d", sumResp.StatusCode)
	}
	var shares []domain.StatusShare
	if err := json.NewDecoder(sumResp.Body).Decode(&shares); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	sumResp.Body.Close()
	total := 0.0
	for _, s := range shares {
		total += s.Percent
	}
	if total < 99.9 || total > 100.1 {
		t.Fatalf("shares should sum to 100, got %f", total)
	}

	delResp := doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/flowcharts/%d", srv.URL, chart.ID), token, nil)
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("delete chart status %d", delResp.StatusCode)
	}
}

func TestEmployeeForbiddenOverHTTP(t *testing.T) {
	srv, svc := newTestServer(t, &fakeNotifier{})
	ctx := context.Background()

	if err := svc.BootstrapAdmin(ctx, "Boss", "boss@example.com", "secret"); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	if _, err := svc.CreateUser(ctx, "Worker", "worker@example.com", "employee", "hunter2"); err != nil {
		t.Fatalf("create employee: %v", err)
	}

	adminToken := loginToken(t, srv, "boss@example.com", "secret")
	workerToken := loginToken(t, srv, "worker@example.com", "hunter2")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/flowcharts", adminToken, map[string]any{"name": "guarded"})
	var chart struct {
		ID uint `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		t.Fatalf("decode chart: %v", err)
	}
	resp.Body.Close()

	forbidden := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/flowcharts/%d/nodes", srv.URL, chart.ID), workerToken, nil)
	forbidden.Body.Close()
	if forbidden.StatusCode != http.StatusForbidden {
		t.Fatalf("employee add node should be 403, got %d", forbidden.StatusCode)
	}

	// the user directory stays open to any authenticated identity
	userResp := doJSON(t, http.MethodPost, srv.URL+"/api/users", workerToken, map[string]any{
		"name": "Eve", "email": "eve@example.com", "role": "manager",
	})
	userResp.Body.Close()
	if userResp.StatusCode != http.StatusOK {
		t.Fatalf("user create by employee should succeed, got %d", userResp.StatusCode)
	}
}
