package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testNotifier(serverURL string) *TelegramNotifier {
	return &TelegramNotifier{
		BotToken: "TOKEN",
		ChatID:   "42",
		Client:   &http.Client{Timeout: 5 * time.Second},
		apiBase:  serverURL,
	}
}

func TestSend_PostsToConfiguredChat(t *testing.T) {
	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.FormValue("chat_id")
		gotText = r.FormValue("text")
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	if err := testNotifier(srv.URL).Send("hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/botTOKEN/sendMessage" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotChat != "42" || gotText != "hello" {
		t.Errorf("unexpected payload: chat %q, text %q", gotChat, gotText)
	}
}

func TestSend_SurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	err := testNotifier(srv.URL).Send("hello")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected the API description to surface, got %v", err)
	}
}

func TestSendWithRetry_HonorsFloodWait(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"ok":false,"description":"Too Many Requests","parameters":{"retry_after":1}}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	start := time.Now()
	if err := testNotifier(srv.URL).SendWithRetry(context.Background(), "hello", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("flood wait not honored, resent after %v", elapsed)
	}
}

func TestSendWithRetry_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"ok":false,"description":"Bad Gateway"}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := testNotifier(srv.URL).SendWithRetry(ctx, "hello", 3); err == nil {
		t.Fatal("a cancelled context must abort the retry loop")
	}
}

func TestStartPolling_DispatchesOnlyConfiguredChat(t *testing.T) {
	updates := `{"ok":true,"result":[` +
		`{"update_id":7,"message":{"text":"/recent 5","chat":{"id":42}}},` +
		`{"update_id":8,"message":{"text":"/screen","chat":{"id":99}}}]}`
	var served atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getUpdates") {
			if served.CompareAndSwap(false, true) {
				fmt.Fprint(w, updates)
				return
			}
			fmt.Fprint(w, `{"ok":true,"result":[]}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	got := make(chan Command, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go testNotifier(srv.URL).StartPolling(ctx, func(cmd Command) string {
		got <- cmd
		return ""
	})

	select {
	case cmd := <-got:
		if cmd.Name != "recent" || len(cmd.Args) != 1 || cmd.Args[0] != "5" {
			t.Fatalf("unexpected command %+v", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command was not dispatched")
	}
	select {
	case cmd := <-got:
		t.Fatalf("a command from a foreign chat must be dropped, got %+v", cmd)
	case <-time.After(100 * time.Millisecond):
	}
}
