package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/digiurbis/portal/internal/identity"
)

// AuthEvent tipo de evento de sessão.
type AuthEvent string

const (
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated      AuthEvent = "USER_UPDATED"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// Event mudança de estado de autenticação.
type Event struct {
	ID      string        `json:"id"`
	Type    AuthEvent     `json:"type"`
	Subject uuid.UUID     `json:"subject"`
	Kind    identity.Kind `json:"kind,omitempty"`
	At      time.Time     `json:"at"`
}

// Listener recebe eventos em ordem de publicação.
type Listener func(ctx context.Context, evt Event)

// EventHub distribui eventos de autenticação para ouvintes do processo.
type EventHub struct {
	mu        sync.RWMutex
	listeners map[uint64]Listener
	next      uint64
}

func NewEventHub() *EventHub {
	return &EventHub{listeners: make(map[uint64]Listener)}
}

// Subscribe registra o ouvinte e devolve a função de cancelamento.
func (h *EventHub) Subscribe(l Listener) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = l
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Publish entrega o evento de forma síncrona. Hub nil ignora.
func (h *EventHub) Publish(ctx context.Context, typ AuthEvent, subject uuid.UUID, kind identity.Kind) Event {
	evt := Event{ID: ulid.Make().String(), Type: typ, Subject: subject, Kind: kind, At: time.Now().UTC()}
	if h == nil {
		return evt
	}

	h.mu.RLock()
	listeners := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		listeners = append(listeners, l)
	}
	h.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, evt)
	}
	return evt
}
