package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
)

// Object conteúdo guardado em memória.
type Object struct {
	Body        []byte
	ContentType string
}

// MemoryStore guarda objetos em memória. Usado em desenvolvimento e testes.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
}

// NewMemoryStore cria store vazio; baseURL é usado apenas para compor URLs.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object), baseURL: strings.TrimRight(baseURL, "/")}
}

func (m *MemoryStore) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Bucket) == "" || strings.TrimSpace(input.Key) == "" {
		return nil, errors.New("storage: bucket e chave obrigatórios")
	}
	if len(input.Body) == 0 {
		return nil, errors.New("storage: corpo vazio")
	}

	body := make([]byte, len(input.Body))
	copy(body, input.Body)

	m.mu.Lock()
	m.objects[objectKey(input.Bucket, input.Key)] = Object{Body: body, ContentType: input.ContentType}
	m.mu.Unlock()

	sum := sha256.Sum256(body)
	return &UploadResult{
		Bucket: input.Bucket,
		Key:    input.Key,
		URL:    m.baseURL + "/" + input.Bucket + "/" + input.Key,
		ETag:   hex.EncodeToString(sum[:8]),
	}, nil
}

func (m *MemoryStore) Delete(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := objectKey(bucket, key)
	if _, ok := m.objects[k]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, k)
	return nil
}

// Get devolve o objeto guardado.
func (m *MemoryStore) Get(bucket, key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[objectKey(bucket, key)]
	return obj, ok
}

// Len quantidade de objetos guardados.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func objectKey(bucket, key string) string {
	return bucket + "/" + strings.TrimLeft(key, "/")
}
