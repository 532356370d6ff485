package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"unicode"

	"github.com/digiurbis/portal/internal/util"
)

// ErrNotConfigured indica que nenhum provedor de armazenamento está ativo.
var ErrNotConfigured = errors.New("storage: provedor não configurado")

// ErrObjectNotFound objeto ausente no bucket.
var ErrObjectNotFound = errors.New("storage: objeto não encontrado")

// UploadInput representa uma operação de upload simples.
type UploadInput struct {
	Bucket       string
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// UploadResult descreve o artefato persistido.
type UploadResult struct {
	Bucket string
	Key    string
	URL    string
	ETag   string
}

// Uploader define comportamento básico para armazenar blobs.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
}

// Store acrescenta remoção ao Uploader.
type Store interface {
	Uploader
	Delete(ctx context.Context, bucket, key string) error
}

// ObjectPath monta {entidade}/{id}/{arquivo} com nome de arquivo saneado.
func ObjectPath(entity, entityID, filename string) string {
	return path.Join(SanitizeSegment(entity), SanitizeSegment(entityID), SanitizeFilename(filename))
}

// SanitizeFilename remove acentos, separadores de caminho e caracteres fora de [A-Za-z0-9._-].
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = util.FoldAccents(name)

	var b strings.Builder
	lastDash := false
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "arquivo"
	}
	return out
}

// SanitizeSegment aplica a mesma regra a segmentos intermediários do caminho.
func SanitizeSegment(s string) string {
	return SanitizeFilename(strings.ReplaceAll(s, "/", "-"))
}

// Open escolhe o provedor pelo nome configurado (noop, memory, s3, r2).
func Open(provider string, s3 S3Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "noop", "none":
		return NoopUploader{}, nil
	case "memory":
		return NewMemoryStore("memory://"), nil
	case "s3", "r2":
		if s3.Region == "" {
			s3.Region = "auto"
		}
		return NewS3Store(s3)
	default:
		return nil, errors.New("storage: provedor desconhecido: " + provider)
	}
}
