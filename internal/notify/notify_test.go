package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"packmule/internal/notify"
)

type slackPayload struct {
	Attachments []struct {
		Color     string `json:"color"`
		Title     string `json:"title"`
		Text      string `json:"text"`
		TitleLink string `json:"title_link"`
	} `json:"attachments"`
}

func TestNotifyPostsAttachment(t *testing.T) {
	var got slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	notifier := notify.New(server.URL, nil)
	err := notifier.Notify(context.Background(), notify.StatusSuccess,
		"Custom App Updated", "*Name*: `MyApp`", "tenant.example.com/library/custom-apps/abc")
	if err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}

	if len(got.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %+v", got)
	}
	att := got.Attachments[0]
	if att.Color != "00FF00" {
		t.Errorf("unexpected color %q", att.Color)
	}
	if att.Title != "SUCCESS: Custom App Updated" {
		t.Errorf("unexpected title %q", att.Title)
	}
	if att.TitleLink != "https://tenant.example.com/library/custom-apps/abc" {
		t.Errorf("expected https link, got %q", att.TitleLink)
	}
}

func TestNotifyStatusColors(t *testing.T) {
	var got slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	t.Cleanup(server.Close)
	notifier := notify.New(server.URL, nil)

	cases := []struct {
		status notify.Status
		color  string
	}{
		{notify.StatusSuccess, "00FF00"},
		{notify.StatusWarning, "E8793B"},
		{notify.StatusError, "FF0000"},
	}
	for _, tc := range cases {
		if err := notifier.Notify(context.Background(), tc.status, "t", "b", ""); err != nil {
			t.Fatalf("Notify(%s) returned error: %v", tc.status, err)
		}
		if got.Attachments[0].Color != tc.color {
			t.Errorf("status %s: got color %q, want %q", tc.status, got.Attachments[0].Color, tc.color)
		}
	}
}

func TestNotifyFailureSurfacesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no_service", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	notifier := notify.New(server.URL, nil)
	if err := notifier.Notify(context.Background(), notify.StatusError, "t", "b", ""); err == nil {
		t.Fatal("expected error for failed webhook post")
	}
}

func TestEmptyWebhookIsNoop(t *testing.T) {
	notifier := notify.New("", nil)
	if err := notifier.Notify(context.Background(), notify.StatusError, "t", "b", ""); err != nil {
		t.Fatalf("expected no-op notifier, got %v", err)
	}
}
