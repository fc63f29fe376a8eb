package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/trackwatch/internal/incident"
)

func testAction(t incident.ActionType) *incident.Action {
	return &incident.Action{
		ID:         7,
		AlertID:    "AL-01JN123",
		Type:       t,
		OperatorID: "op-42",
		Timestamp:  time.Date(2026, 2, 26, 14, 23, 5, 0, time.UTC),
	}
}

func TestNotify_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := New(srv.URL).Notify(context.Background(), testAction(incident.ActionStop)); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}
	if len(blocks) != 3 {
		t.Errorf("blocks count = %d, want 3", len(blocks))
	}

	header := blocks[0].(map[string]any)["text"].(map[string]any)["text"].(string)
	if !strings.Contains(header, "Train Driver Notified: STOP") {
		t.Errorf("header text = %q", header)
	}
	if !strings.Contains(header, "\U0001f534") {
		t.Errorf("header should contain red circle for STOP")
	}

	fields := blocks[1].(map[string]any)["fields"].([]any)
	var joined []string
	for _, f := range fields {
		joined = append(joined, f.(map[string]any)["text"].(string))
	}
	all := strings.Join(joined, "\n")
	for _, want := range []string{"AL-01JN123", "op-42", "*Action ID:* 7"} {
		if !strings.Contains(all, want) {
			t.Errorf("fields missing %q: %s", want, all)
		}
	}

	ctxText := blocks[2].(map[string]any)["elements"].([]any)[0].(map[string]any)["text"].(string)
	if !strings.Contains(ctxText, "2026-02-26 14:23:05 UTC") {
		t.Errorf("context text = %q", ctxText)
	}
}

func TestNotify_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	if err := New("").Notify(context.Background(), testAction(incident.ActionInform)); err != nil {
		t.Fatalf("Notify with empty URL should be no-op, got: %v", err)
	}
}

func TestNotify_Non2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	err := New(srv.URL).Notify(context.Background(), testAction(incident.ActionSlow))
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "invalid_token") {
		t.Errorf("error = %q, want status and body", err)
	}
}

func TestNotify_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := New(srv.URL).Notify(ctx, testAction(incident.ActionStop)); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestActionEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		action incident.ActionType
		want   string
	}{
		{incident.ActionStop, "\U0001f534"},
		{incident.ActionSlow, "\U0001f7e1"},
		{incident.ActionInform, "\U0001f535"},
	}
	for _, tt := range tests {
		if got := actionEmoji(tt.action); got != tt.want {
			t.Errorf("actionEmoji(%s) = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestNotifier_ImplementsIncidentNotifier(t *testing.T) {
	t.Parallel()

	var _ incident.Notifier = New("")
}
