package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListSessions_Scoped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("directory"); got != "/proj" {
			t.Errorf("directory query = %q, want %q", got, "/proj")
		}
		json.NewEncoder(w).Encode([]Session{
			{ID: "s1", Title: "first", Directory: "/proj", Time: SessionTime{Created: 1, Updated: 2}},
		})
	}))
	defer server.Close()

	c := NewWithClient(server.URL, server.Client())
	sessions, err := c.ListSessions(context.Background(), "/proj")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].ID != "s1" || sessions[0].Time.Updated != 2 {
		t.Errorf("unexpected session %+v", sessions[0])
	}
}

func TestListSessions_Unscoped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("directory") {
			t.Error("unscoped list should not send a directory query")
		}
		json.NewEncoder(w).Encode([]Session{})
	}))
	defer server.Close()

	c := NewWithClient(server.URL, server.Client())
	if _, err := c.ListSessions(context.Background(), ""); err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
}

func TestCreateSession_UsesActiveDirectory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.URL.Query().Get("directory"); got != "/active" {
			t.Errorf("directory query = %q, want %q", got, "/active")
		}
		var req CreateSessionRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(Session{ID: "ses_1", Title: req.Title, Directory: "/active"})
	}))
	defer server.Close()

	c := NewWithClient(server.URL, server.Client())
	c.SetActiveDirectory("/active")

	sess, err := c.CreateSession(context.Background(), CreateSessionRequest{Title: "hello"}, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.ID != "ses_1" || sess.Title != "hello" {
		t.Errorf("unexpected session %+v", sess)
	}
}

func TestCreateSession_ExplicitDirectoryWinsOverActive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("directory"); got != "/proj-wt" {
			t.Errorf("directory query = %q, want %q", got, "/proj-wt")
		}
		json.NewEncoder(w).Encode(Session{ID: "ses_2", Directory: "/proj-wt"})
	}))
	defer server.Close()

	c := NewWithClient(server.URL, server.Client())
	c.SetActiveDirectory("/active")

	if _, err := c.CreateSession(context.Background(), CreateSessionRequest{}, "/proj-wt"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
}

func TestCreateSession_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"title":"no id here"}`)
	}))
	defer server.Close()

	c := NewWithClient(server.URL, server.Client())
	_, err := c.CreateSession(context.Background(), CreateSessionRequest{}, "")
	if err == nil {
		t.Fatal("expected error for session without id")
	}
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedResponseError, got %T: %v", err, err)
	}
}

func TestDeleteSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		if r.URL.Path != "/session/ses_9" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("directory"); got != "/wt" {
			t.Errorf("directory query = %q, want /wt", got)
		}
		fmt.Fprint(w, "true")
	}))
	defer server.Close()

	c := NewWithClient(server.URL, server.Client())
	deleted, err := c.DeleteSession(context.Background(), "ses_9", "/wt")
	if err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if !deleted {
		t.Error("expected deleted=true")
	}
}

func TestResolvePath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("directory"); got != "/tmp/proj" {
			t.Errorf("directory query = %q", got)
		}
		fmt.Fprint(w, `{"directory":"/private/tmp/proj"}`)
	}))
	defer server.Close()

	c := NewWithClient(server.URL, server.Client())
	canonical, err := c.ResolvePath(context.Background(), "/tmp/proj")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if canonical != "/private/tmp/proj" {
		t.Errorf("canonical = %q, want /private/tmp/proj", canonical)
	}
}

func TestResolvePath_EmptyDirectory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	c := NewWithClient(server.URL, server.Client())
	_, err := c.ResolvePath(context.Background(), "/tmp/proj")
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedResponseError, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer server.Close()

	c := NewWithClient(server.URL, server.Client())
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health on healthy server: %v", err)
	}

	healthy = false
	err := c.Health(context.Background())
	if err == nil {
		t.Fatal("expected error on unhealthy server")
	}
	var status *StatusError
	if !errors.As(err, &status) {
		t.Errorf("expected StatusError, got %T", err)
	} else if status.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", status.Code)
	}
}

func TestStatusError_IncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `agent name is invalid`)
	}))
	defer server.Close()

	c := NewWithClient(server.URL, server.Client())
	_, err := c.ListAgents(context.Background(), "/p")
	if err == nil {
		t.Fatal("expected error")
	}
	var status *StatusError
	if !errors.As(err, &status) {
		t.Fatalf("expected StatusError, got %T", err)
	}
	if status.Body != "agent name is invalid" {
		t.Errorf("body = %q", status.Body)
	}
}

func TestUpdateResource_ReloadHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/mcp/local-tools" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"requiresReload":true,"message":"MCP config changed","reloadDelayMs":1500}`)
	}))
	defer server.Close()

	c := NewWithClient(server.URL, server.Client())
	hint, err := c.UpdateResource(context.Background(), "mcp", "local-tools", "/p", MCPServer{Name: "local-tools"})
	if err != nil {
		t.Fatalf("UpdateResource: %v", err)
	}
	if !hint.RequiresReload || hint.ReloadDelayMS != 1500 {
		t.Errorf("unexpected hint %+v", hint)
	}
}

func TestResourcePath_UnknownKind(t *testing.T) {
	c := New("http://localhost:1")
	if _, err := c.CreateResource(context.Background(), "widget", "", nil); err == nil {
		t.Error("expected error for unknown resource kind")
	}
}
