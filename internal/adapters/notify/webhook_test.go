package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/siphio/piv-warden/internal/adapters/notify"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var received struct {
		Text string `json:"text"`
	}
	var contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := notify.NewWebhookNotifier()
	err := n.Send(context.Background(), server.URL, "alpha escalated: restart budget exhausted")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if received.Text != "alpha escalated: restart budget exhausted" {
		t.Errorf("Text = %q", received.Text)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
}

func TestWebhookNotifier_SendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "channel_not_found", http.StatusNotFound)
	}))
	defer server.Close()

	n := notify.NewWebhookNotifier()
	err := n.Send(context.Background(), server.URL, "text")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestWebhookNotifier_SendNoDestination(t *testing.T) {
	n := notify.NewWebhookNotifier()
	if err := n.Send(context.Background(), "", "text"); err == nil {
		t.Fatal("expected error for empty destination")
	}
}
