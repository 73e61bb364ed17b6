package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSubscribe_ParsesFrames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprint(w, "data: {\"type\":\"session.updated\",\"properties\":{\"id\":\"s1\"}}\n\n")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data: not json\n\n")
		fmt.Fprint(w, "data: {\"type\":\"server.connected\"}\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	c := NewWithClient(server.URL, server.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := c.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 events (malformed frame dropped), got %d: %+v", len(got), got)
	}
	if got[0].Type != "session.updated" {
		t.Errorf("first event type = %q", got[0].Type)
	}
	if string(got[0].Properties) != `{"id":"s1"}` {
		t.Errorf("first event properties = %s", got[0].Properties)
	}
	if got[1].Type != "server.connected" {
		t.Errorf("second event type = %q", got[1].Type)
	}
}

func TestSubscribe_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewWithClient(server.URL, server.Client())
	if _, err := c.Subscribe(context.Background()); err == nil {
		t.Error("expected error for non-200 subscribe")
	}
}
