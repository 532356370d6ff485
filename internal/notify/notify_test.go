package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebhookNotifierPostsText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Notify(context.Background(), Message{Title: "Anexos", Text: "2 órfãos removidos", Level: LevelWarning, To: "ti@prefeitura.gov.br"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	text, _ := got["text"].(string)
	if !strings.Contains(text, "*Anexos*") || !strings.HasPrefix(text, ":warning:") {
		t.Fatalf("unexpected text %q", text)
	}
	if got["to"] != "ti@prefeitura.gov.br" {
		t.Fatalf("unexpected recipient %v", got["to"])
	}
}

func TestWebhookNotifierStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Notify(context.Background(), Message{Text: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNilWebhookNotifier(t *testing.T) {
	if NewWebhookNotifier("") != nil {
		t.Fatal("expected nil notifier without url")
	}
	var n *WebhookNotifier
	if err := n.Notify(context.Background(), Message{}); err == nil {
		t.Fatal("expected error from nil notifier")
	}
}

type countingNotifier struct{ calls int }

func (c *countingNotifier) Notify(context.Context, Message) error {
	c.calls++
	return nil
}

func TestFanoutSkipsNil(t *testing.T) {
	c := &countingNotifier{}
	f := Fanout{nil, c, Discard{}}
	if err := f.Notify(context.Background(), Message{}); err != nil {
		t.Fatalf("fanout: %v", err)
	}
	if c.calls != 1 {
		t.Fatalf("calls=%d", c.calls)
	}
}
