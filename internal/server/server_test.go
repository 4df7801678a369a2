package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"worklog/internal/auth"
	"worklog/internal/chain"
	"worklog/internal/lifecycle"
	"worklog/internal/models"
	"worklog/internal/storage/sqldb"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    json.RawMessage `json:"user"`
	Task    models.Task     `json:"task"`
	Tasks   json.RawMessage `json:"tasks"`
	Chain   chain.Chain     `json:"chain"`
	Stats   chain.Stats     `json:"stats"`
}

type harness struct {
	t   *testing.T
	srv *Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, err := sqldb.Open(sqldb.DriverSQLite, filepath.Join(t.TempDir(), "worklog.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	accounts := auth.NewService(store, tokens, nil)
	if _, err := accounts.EnsureAdmin(context.Background(), auth.RegisterInput{
		EmpID:    "ADMIN",
		Name:     "Root",
		Email:    "admin@example.com",
		Password: "adminpw",
	}); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}

	return &harness{t: t, srv: New(lifecycle.NewManager(store, nil), accounts, store, nil)}
}

func (h *harness) do(method, path, token string, body any) (int, envelope) {
	h.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.srv.Engine().ServeHTTP(rr, req)

	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		h.t.Fatalf("%s %s: decode response %q: %v", method, path, rr.Body.String(), err)
	}
	return rr.Code, env
}

func (h *harness) login(email, password string) string {
	h.t.Helper()

	code, env := h.do(http.MethodPost, "/api/login", "", payload{"email": email, "password": password})
	if code != http.StatusOK || env.Token == "" {
		h.t.Fatalf("login %s: status %d, %+v", email, code, env)
	}
	return env.Token
}

func (h *harness) register(adminToken, id, name, email, role string) string {
	h.t.Helper()

	code, env := h.do(http.MethodPost, "/api/employees", adminToken, payload{
		"id": id, "name": name, "email": email, "password": "pw-" + id, "role": role,
	})
	if code != http.StatusCreated {
		h.t.Fatalf("register %s: status %d, %+v", id, code, env)
	}
	return h.login(email, "pw-"+id)
}

type payload map[string]any

func TestHealthAndAuthentication(t *testing.T) {
	h := newHarness(t)

	if code, env := h.do(http.MethodGet, "/api/healthz", "", nil); code != http.StatusOK || env.Status != "ok" {
		t.Fatalf("healthz: %d %+v", code, env)
	}
	if code, _ := h.do(http.MethodGet, "/api/tasks", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", code)
	}
	if code, _ := h.do(http.MethodGet, "/api/tasks", "not-a-jwt", nil); code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", code)
	}
	if code, _ := h.do(http.MethodPost, "/api/login", "", payload{"email": "admin@example.com", "password": "wrong"}); code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d", code)
	}
	if code, _ := h.do(http.MethodGet, "/api/nowhere", "", nil); code != http.StatusNotFound {
		t.Fatalf("unknown route: status %d", code)
	}
}

func TestRegistrationIsAdminOnly(t *testing.T) {
	h := newHarness(t)
	admin := h.login("admin@example.com", "adminpw")
	emp := h.register(admin, "EMP001", "Alice", "alice@example.com", "EMPLOYEE")

	code, _ := h.do(http.MethodPost, "/api/employees", emp, payload{
		"id": "EMP009", "name": "Mallory", "email": "m@example.com", "password": "x",
	})
	if code != http.StatusForbidden {
		t.Fatalf("employee registration: status %d", code)
	}

	code, _ = h.do(http.MethodPost, "/api/employees", admin, payload{
		"id": "EMP002", "name": "Dup", "email": "alice@example.com", "password": "x",
	})
	if code != http.StatusConflict {
		t.Fatalf("duplicate e-mail: status %d", code)
	}

	code, _ = h.do(http.MethodPost, "/api/employees", admin, payload{
		"id": "EMP003", "name": "Bad", "email": "b@example.com", "password": "x", "role": "OWNER",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("unknown role: status %d", code)
	}
}

func TestContinuationApprovalAndDeletion(t *testing.T) {
	h := newHarness(t)
	admin := h.login("admin@example.com", "adminpw")
	alice := h.register(admin, "EMP001", "Alice", "alice@example.com", "EMPLOYEE")
	bob := h.register(admin, "EMP002", "Bob", "bob@example.com", "EMPLOYEE")
	pm := h.register(admin, "PM001", "Priya", "priya@example.com", "PM")

	code, env := h.do(http.MethodPost, "/api/tasks", alice, payload{
		"project": "Site", "date": "2026-03-01", "description": "layout",
		"pendingReason": "waiting on design", "timeSpentHours": 2,
	})
	if code != http.StatusCreated || env.Message != "Task Added" {
		t.Fatalf("create: %d %+v", code, env)
	}
	first := env.Task
	if first.OwnerID != "EMP001" || first.AuthorName != "Alice" || first.ApprovalState != models.StatePending {
		t.Fatalf("unexpected first task: %+v", first)
	}

	code, env = h.do(http.MethodPost, "/api/tasks", alice, payload{
		"project": "Site", "outcome": "done", "timeSpentHours": "3", "linkedTaskId": first.ID,
	})
	if code != http.StatusCreated {
		t.Fatalf("continue: %d %+v", code, env)
	}
	second := env.Task
	if second.ParentID == nil || *second.ParentID != first.ID {
		t.Fatalf("continuation parent = %v", second.ParentID)
	}
	if second.Description != "Continued: Alice - waiting on design" {
		t.Fatalf("default description = %q", second.Description)
	}

	code, env = h.do(http.MethodGet, "/api/tasks", alice, nil)
	if code != http.StatusOK {
		t.Fatalf("list: %d", code)
	}
	var chains []chain.Chain
	if err := json.Unmarshal(env.Tasks, &chains); err != nil {
		t.Fatalf("decode chains: %v", err)
	}
	if len(chains) != 1 || chains[0].Task.ID != second.ID || len(chains[0].History) != 1 {
		t.Fatalf("unexpected chains: %+v", chains)
	}
	parent := chains[0].History[0]
	if parent.ApprovalState != models.StateResolved || !strings.HasSuffix(parent.Outcome, models.ContinuedMarker) {
		t.Fatalf("parent not resolved: %+v", parent)
	}
	if chains[0].Status != chain.StatusPending || chains[0].TotalHours != 5 {
		t.Fatalf("aggregate = %s / %v", chains[0].Status, chains[0].TotalHours)
	}

	code, env = h.do(http.MethodGet, "/api/tasks?view=flat", alice, nil)
	var flat []models.Task
	if err := json.Unmarshal(env.Tasks, &flat); err != nil || code != http.StatusOK || len(flat) != 2 {
		t.Fatalf("flat list: %d %v %d", code, err, len(flat))
	}

	if code, _ := h.do(http.MethodGet, "/api/tasks", bob, nil); code != http.StatusOK {
		t.Fatalf("bob list: %d", code)
	}
	if code, _ := h.do(http.MethodGet, fmt.Sprintf("/api/tasks/%d/history", second.ID), bob, nil); code != http.StatusNotFound {
		t.Fatalf("foreign history: status %d", code)
	}

	if code, _ := h.do(http.MethodPost, fmt.Sprintf("/api/tasks/%d/approve", second.ID), alice, nil); code != http.StatusForbidden {
		t.Fatalf("employee approve: status %d", code)
	}

	code, env = h.do(http.MethodPost, fmt.Sprintf("/api/tasks/%d/approve", second.ID), pm, nil)
	if code != http.StatusOK || env.Task.ApprovalState != "Priya" {
		t.Fatalf("pm approve: %d %+v", code, env.Task)
	}

	code, env = h.do(http.MethodGet, fmt.Sprintf("/api/tasks/%d/history", second.ID), pm, nil)
	if code != http.StatusOK || env.Chain.Status != chain.StatusApproved || len(env.Chain.History) != 1 {
		t.Fatalf("pm history: %d %+v", code, env.Chain)
	}

	code, env = h.do(http.MethodPost, "/api/approve", admin, payload{"rowIndex": second.ID, "signature": "Boss"})
	if code != http.StatusOK || env.Task.ApprovalState != "Boss" {
		t.Fatalf("legacy approve: %d %+v", code, env.Task)
	}

	code, env = h.do(http.MethodGet, "/api/stats", alice, nil)
	want := chain.Stats{Total: 2, Approved: 2, Pending: 0, TotalHours: 5}
	if code != http.StatusOK || env.Stats != want {
		t.Fatalf("stats: %d %+v", code, env.Stats)
	}

	if code, _ := h.do(http.MethodDelete, fmt.Sprintf("/api/tasks/%d", second.ID), pm, nil); code != http.StatusNotFound {
		t.Fatalf("non-owner delete: status %d", code)
	}
	code, env = h.do(http.MethodDelete, fmt.Sprintf("/api/tasks/%d", second.ID), alice, nil)
	if code != http.StatusOK || env.Message != "Task Deleted" {
		t.Fatalf("owner delete: %d %+v", code, env)
	}
	if code, _ := h.do(http.MethodDelete, fmt.Sprintf("/api/tasks/%d", second.ID), alice, nil); code != http.StatusNotFound {
		t.Fatalf("repeat delete: status %d", code)
	}

	_, env = h.do(http.MethodGet, "/api/tasks", alice, nil)
	chains = nil
	if err := json.Unmarshal(env.Tasks, &chains); err != nil {
		t.Fatalf("decode chains: %v", err)
	}
	if len(chains) != 1 || chains[0].Task.ID != first.ID {
		t.Fatalf("parent should resurface after child delete: %+v", chains)
	}
}

func TestCreateTaskRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	admin := h.login("admin@example.com", "adminpw")
	alice := h.register(admin, "EMP001", "Alice", "alice@example.com", "EMPLOYEE")

	cases := []struct {
		name string
		body payload
		want int
	}{
		{"missing project", payload{"description": "x"}, http.StatusBadRequest},
		{"negative hours", payload{"project": "Site", "timeSpentHours": -1}, http.StatusBadRequest},
		{"bad date", payload{"project": "Site", "date": "yesterday"}, http.StatusBadRequest},
		{"missing parent", payload{"project": "Site", "parentId": 9999}, http.StatusNotFound},
	}
	for _, tc := range cases {
		if code, env := h.do(http.MethodPost, "/api/tasks", alice, tc.body); code != tc.want {
			t.Fatalf("%s: status %d, %+v", tc.name, code, env)
		}
	}

	if code, _ := h.do(http.MethodPost, "/api/tasks/abc/approve", admin, nil); code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d", code)
	}
	if code, _ := h.do(http.MethodPost, "/api/tasks/4242/approve", admin, nil); code != http.StatusNotFound {
		t.Fatalf("approve missing: status %d", code)
	}
}
