package storage

import "context"

var (
	_ Store = NoopUploader{}
	_ Store = (*S3Store)(nil)
	_ Store = (*MemoryStore)(nil)
)

// NoopUploader é o provedor padrão sem STORAGE_PROVIDER: toda operação
// falha com ErrNotConfigured e o chamador decide se segue sem anexos.
type NoopUploader struct{}

func (NoopUploader) Upload(context.Context, UploadInput) (*UploadResult, error) {
	return nil, ErrNotConfigured
}

func (NoopUploader) Delete(context.Context, string, string) error {
	return ErrNotConfigured
}
