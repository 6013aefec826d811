package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlackSend_PostsPayload(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("want POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("want application/json, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL)
	if err := s.Send(context.Background(), "Target DOWN", "URL: https://x.example"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(got.Text, "Target DOWN") || !strings.Contains(got.Text, "https://x.example") {
		t.Fatalf("payload missing title or text: %q", got.Text)
	}
}

func TestSlackSend_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL)
	if err := s.Send(context.Background(), "t", "x"); err == nil {
		t.Fatal("want error on 500 response")
	}
}

func TestNewSlack_EmptyWebhookIsNil(t *testing.T) {
	if s := NewSlack(""); s != nil {
		t.Fatal("want nil for empty webhook")
	}
}

func TestSlackSend_NilReceiverIsDisabled(t *testing.T) {
	var s *Slack
	if err := s.Send(context.Background(), "t", "x"); err == nil {
		t.Fatal("nil notifier should refuse to send")
	}
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Send(ctx context.Context, title, text string) error {
	s.calls++
	return s.err
}

func TestMulti_FansOutAndKeepsFirstError(t *testing.T) {
	ok := &stubNotifier{}
	bad := &stubNotifier{err: errors.New("boom")}
	also := &stubNotifier{}

	m := Multi{ok, nil, bad, also}
	err := m.Send(context.Background(), "t", "x")
	if err == nil || err.Error() != "boom" {
		t.Fatalf("want first error, got %v", err)
	}
	if ok.calls != 1 || bad.calls != 1 || also.calls != 1 {
		t.Fatalf("all notifiers should be invoked: %d %d %d", ok.calls, bad.calls, also.calls)
	}
}
