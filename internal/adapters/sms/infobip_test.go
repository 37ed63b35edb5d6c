package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewInfobipClientDefaults(t *testing.T) {
	c := NewInfobipClient("key", "", "", nil)

	if c.baseURL != DefaultInfobipBaseURL {
		t.Fatalf("expected base url %s, got %s", DefaultInfobipBaseURL, c.baseURL)
	}
	if c.sender != DefaultSender {
		t.Fatalf("expected sender %q, got %q", DefaultSender, c.sender)
	}
	if c.httpClient.Timeout != defaultTimeout {
		t.Fatalf("expected timeout %v, got %v", defaultTimeout, c.httpClient.Timeout)
	}
}

func TestSendPostsInfobipPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if r.URL.Path != infobipPath {
			t.Errorf("path = %q, want %q", r.URL.Path, infobipPath)
		}
		if got := r.Header.Get("Authorization"); got != "App test-key" {
			t.Errorf("Authorization = %q, want App test-key", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", got)
		}

		var body infobipRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(body.Messages) != 1 {
			t.Errorf("expected 1 message, got %d", len(body.Messages))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		msg := body.Messages[0]
		if len(msg.Destinations) != 1 || msg.Destinations[0].To != "212600000001" {
			t.Errorf("destinations = %+v, want 212600000001", msg.Destinations)
		}
		if msg.From != "Tester" {
			t.Errorf("from = %q, want Tester", msg.From)
		}
		if msg.Text != "hello" {
			t.Errorf("text = %q, want hello", msg.Text)
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"status":{"groupName":"PENDING"}}]}`))
	}))
	defer server.Close()

	c := NewInfobipClient("test-key", server.URL+"/", "Tester", nil)
	if err := c.Send(context.Background(), "+212600000001", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestSendFailsOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"requestError":{"serviceException":{"messageId":"UNAUTHORIZED"}}}`))
	}))
	defer server.Close()

	c := NewInfobipClient("bad-key", server.URL, "", nil)
	err := c.Send(context.Background(), "+212600000001", "hello")
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "status=401") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestSendAccepts2xxOtherThan200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c := NewInfobipClient("key", server.URL, "", nil)
	if err := c.Send(context.Background(), "+212600000001", "hello"); err != nil {
		t.Fatalf("expected success for 202, got %v", err)
	}
}

func TestSendMissingAPIKey(t *testing.T) {
	c := NewInfobipClient("", "", "", nil)

	if err := c.Send(context.Background(), "+212600000001", "hello"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSendHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	c := NewInfobipClient("key", server.URL, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := c.Send(ctx, "+212600000001", "hello"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline exceeded, got %v", err)
	}
}

func TestLogSenderWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := s.Send(context.Background(), "+212600000001", "code 123456"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(buf.String(), "+212600000001") {
		t.Fatalf("expected destination in log, got %q", buf.String())
	}
}
