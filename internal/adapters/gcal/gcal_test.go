package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "github.com/amacapozzi/memorial-ai-bot-sub000/pkg/logx"
)

func TestCreateEvent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.URL.Path; got != "/calendars/primary/events" {
			t.Errorf("path = %s", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth = %q", got)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["summary"] != "turno médico" {
			t.Errorf("summary = %v", body["summary"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "evt-99"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, CalendarID: "primary", Token: "tok"}, logx.Nop())
	id, err := c.CreateEvent(context.Background(), "turno médico", time.Now())
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if id != "evt-99" {
		t.Fatalf("id = %q, want evt-99", id)
	}
}

func TestDeleteEventError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "Not Found"}})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, CalendarID: "primary", Token: "tok"}, logx.Nop())
	if err := c.DeleteEvent(context.Background(), "evt-1"); err == nil {
		t.Fatal("expected error for 404")
	}
}
