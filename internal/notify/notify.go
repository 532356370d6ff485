// Package notify entrega avisos curtos (o "toast" das telas) para logs ou webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Level gravidade do aviso.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message aviso a ser entregue.
type Message struct {
	Title string
	Text  string
	Level Level
	// To destinatário opcional (e-mail de redefinição de senha, por exemplo).
	To string
}

// Notifier envia avisos para um canal.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier escreve o aviso no log estruturado.
type LogNotifier struct {
	Logger zerolog.Logger
}

// NewLogNotifier cria notifier que apenas registra em log.
func NewLogNotifier(logger zerolog.Logger) LogNotifier {
	return LogNotifier{Logger: logger}
}

func (n LogNotifier) Notify(ctx context.Context, msg Message) error {
	event := n.Logger.Info()
	switch msg.Level {
	case LevelWarning:
		event = n.Logger.Warn()
	case LevelError:
		event = n.Logger.Error()
	}
	if msg.To != "" {
		event = event.Str("to", msg.To)
	}
	event.Str("title", msg.Title).Msg(msg.Text)
	return nil
}

// WebhookNotifier publica em webhook compatível com Slack ({"text": ...}).
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookNotifier devolve nil quando a URL não está configurada.
func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	if webhookURL == "" {
		return nil
	}
	return &WebhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *WebhookNotifier) Notify(ctx context.Context, msg Message) error {
	if s == nil || s.webhookURL == "" {
		return errors.New("notify: webhook não configurado")
	}

	payload := map[string]any{
		"text": formatMessage(msg),
	}
	if msg.To != "" {
		payload["to"] = msg.To
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook respondeu %d", resp.StatusCode)
	}
	return nil
}

// Fanout entrega para todos os notifiers, devolvendo o primeiro erro.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, msg Message) error {
	var first error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard ignora todos os avisos.
type Discard struct{}

func (Discard) Notify(context.Context, Message) error { return nil }

func formatMessage(msg Message) string {
	emoji := ":information_source:"
	switch msg.Level {
	case LevelSuccess:
		emoji = ":white_check_mark:"
	case LevelWarning:
		emoji = ":warning:"
	case LevelError:
		emoji = ":rotating_light:"
	}
	if msg.Title != "" {
		return emoji + " *" + msg.Title + "*\n" + msg.Text
	}
	return emoji + " " + msg.Text
}
