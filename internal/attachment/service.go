// Package attachment trata anexos de solicitações: bytes no bucket, metadados
// na tabela anexos e limpeza periódica de arquivos sem metadado.
package attachment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/storage"
)

// Store operações de metadados usadas pelo serviço.
type Store interface {
	Insert(ctx context.Context, a Anexo) (Anexo, error)
	List(ctx context.Context, entidade string, entidadeID uuid.UUID) ([]Anexo, error)
	Get(ctx context.Context, id uuid.UUID) (Anexo, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ExistsPath(ctx context.Context, bucket, path string) (bool, error)
}

// Blobs operações de bucket (implementado por backend.Client).
type Blobs interface {
	Upload(ctx context.Context, bucket, path string, body []byte, contentType string) (*storage.UploadResult, error)
	Remove(ctx context.Context, bucket, path string) error
}

// Manager operações de anexo consumidas pelos módulos de domínio.
type Manager interface {
	Upload(ctx context.Context, entity string, entityID uuid.UUID, file File, uploader *uuid.UUID) (Anexo, error)
	List(ctx context.Context, entity string, entityID uuid.UUID) ([]Anexo, error)
	Get(ctx context.Context, id uuid.UUID) (Anexo, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

var _ Manager = (*Service)(nil)

// Service coordena upload, listagem e remoção.
type Service struct {
	store   Store
	blobs   Blobs
	pending *PendingSet
	bucket  string
	now     func() time.Time
}

func NewService(store Store, blobs Blobs, pending *PendingSet, bucket string) *Service {
	return &Service{store: store, blobs: blobs, pending: pending, bucket: bucket, now: time.Now}
}

// Bucket nome do bucket usado pelo serviço.
func (s *Service) Bucket() string { return s.bucket }

// Upload envia o arquivo e grava o metadado. Se a gravação do metadado falhar o erro é
// devolvido e o arquivo permanece no bucket, marcado como pendente para o reconciliador.
func (s *Service) Upload(ctx context.Context, entity string, entityID uuid.UUID, file File, uploader *uuid.UUID) (Anexo, error) {
	entity = strings.TrimSpace(entity)
	if entity == "" || entityID == uuid.Nil {
		return Anexo{}, apperr.Invalid("entidade do anexo obrigatória")
	}
	if strings.TrimSpace(file.Name) == "" {
		return Anexo{}, apperr.Invalid("nome do arquivo obrigatório")
	}
	if len(file.Body) == 0 {
		return Anexo{}, apperr.Invalid("arquivo vazio")
	}
	if len(file.Body) > MaxFileSize {
		return Anexo{}, apperr.Invalid("arquivo excede %d MB", MaxFileSize>>20)
	}

	path := storage.ObjectPath(entity, entityID.String(), file.Name)
	exists, err := s.store.ExistsPath(ctx, s.bucket, path)
	if err != nil {
		return Anexo{}, err
	}
	if exists {
		return Anexo{}, apperr.New(apperr.Validation, "CONFLICT", "já existe um anexo com este nome")
	}

	contentType := strings.TrimSpace(file.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	marker := Pending{Bucket: s.bucket, Path: path}
	if err := s.pending.Mark(ctx, marker, s.now()); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("anexo: falha ao marcar upload pendente")
	}

	if _, err := s.blobs.Upload(ctx, s.bucket, path, file.Body, contentType); err != nil {
		_ = s.pending.Clear(ctx, marker)
		return Anexo{}, err
	}

	anexo, err := s.store.Insert(ctx, Anexo{
		ID:          uuid.New(),
		Entidade:    entity,
		EntidadeID:  entityID,
		NomeArquivo: strings.TrimSpace(file.Name),
		Bucket:      s.bucket,
		Caminho:     path,
		Tipo:        contentType,
		Tamanho:     int64(len(file.Body)),
		EnviadoPor:  uploader,
		CriadoEm:    s.now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("bucket", s.bucket).Str("path", path).Msg("anexo: metadado não gravado, arquivo aguardando reconciliação")
		return Anexo{}, err
	}

	if err := s.pending.Clear(ctx, marker); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("anexo: falha ao limpar marcação pendente")
	}
	return anexo, nil
}

func (s *Service) List(ctx context.Context, entity string, entityID uuid.UUID) ([]Anexo, error) {
	return s.store.List(ctx, entity, entityID)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Anexo, error) {
	return s.store.Get(ctx, id)
}

// Delete remove o metadado e depois o arquivo. Falha ao remover o arquivo só é registrada.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	anexo, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Remove(ctx, anexo.Bucket, anexo.Caminho); err != nil {
		log.Warn().Err(err).Str("path", anexo.Caminho).Msg("anexo: arquivo não removido do bucket")
	}
	return nil
}
