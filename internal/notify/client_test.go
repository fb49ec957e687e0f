package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendWinner_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/notifications/winners" {
			t.Fatalf("path = %s, want /api/notifications/winners", r.URL.Path)
		}

		var n WinnerNotification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if n.Code != "AB12C" || n.DNI != "30111222" {
			t.Fatalf("unexpected notification: %+v", n)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	code, retry, err := client.SendWinner(ctx, WinnerNotification{WinnerID: 1, Code: "AB12C", DNI: "30111222"})
	if err != nil {
		t.Fatalf("SendWinner error: %v", err)
	}
	if code != http.StatusAccepted {
		t.Fatalf("status code = %d, want %d", code, http.StatusAccepted)
	}
	if retry != 0 {
		t.Fatalf("retryAfter = %v, want 0", retry)
	}
}

func TestSendWinner_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	code, retry, err := client.SendWinner(ctx, WinnerNotification{})
	if err != nil {
		t.Fatalf("SendWinner error: %v", err)
	}
	if code != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want %d", code, http.StatusTooManyRequests)
	}
	if retry < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", retry)
	}
}

func TestSendWinner_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	code, _, err := client.SendWinner(context.Background(), WinnerNotification{})
	if err == nil {
		t.Fatalf("expected error for 500")
	}
	if code != http.StatusInternalServerError {
		t.Fatalf("status code = %d, want %d", code, http.StatusInternalServerError)
	}
}

func TestSendWinner_NotConfigured(t *testing.T) {
	var client *Client

	if _, _, err := client.SendWinner(context.Background(), WinnerNotification{}); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
