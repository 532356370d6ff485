package util

import (
	"time"

	"github.com/google/uuid"
)

// NewID gera identificador de linha.
func NewID() uuid.UUID {
	return uuid.New()
}

// Now centraliza o relógio em UTC para gravações.
func Now() time.Time {
	return time.Now().UTC()
}
