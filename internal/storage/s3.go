package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// S3Config parâmetros de um endpoint compatível com S3 (AWS, R2, MinIO).
// Bucket é o padrão quando UploadInput não informa um.
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicDomain string
	HTTPClient   *http.Client
}

func (cfg S3Config) validate() error {
	required := []struct{ name, value string }{
		{"endpoint", cfg.Endpoint},
		{"região", cfg.Region},
		{"bucket", cfg.Bucket},
		{"access key", cfg.AccessKey},
		{"secret key", cfg.SecretKey},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("storage: %s do S3 ausente", f.name)
		}
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("storage: endpoint deve incluir protocolo http/https")
	}
	return nil
}

// S3Store grava objetos em path-style ({endpoint}/{bucket}/{key}) com SigV4.
type S3Store struct {
	cfg    S3Config
	signer sigv4Signer
	client *http.Client
	now    func() time.Time
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &S3Store{
		cfg: cfg,
		signer: sigv4Signer{
			accessKey: cfg.AccessKey,
			secretKey: cfg.SecretKey,
			region:    cfg.Region,
			service:   "s3",
		},
		client: client,
		now:    time.Now,
	}, nil
}

// Upload envia o objeto. A URL devolvida usa PublicDomain quando configurado.
func (s *S3Store) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if strings.TrimSpace(in.Key) == "" {
		return nil, errors.New("storage: chave do objeto obrigatória")
	}
	if len(in.Body) == 0 {
		return nil, errors.New("storage: corpo vazio")
	}

	header := http.Header{}
	header.Set("Content-Type", "application/octet-stream")
	if ct := strings.TrimSpace(in.ContentType); ct != "" {
		header.Set("Content-Type", ct)
	}
	if cc := strings.TrimSpace(in.CacheControl); cc != "" {
		header.Set("Cache-Control", cc)
	}

	bucket := s.bucket(in.Bucket)
	resp, err := s.send(ctx, http.MethodPut, bucket, in.Key, in.Body, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "upload"); err != nil {
		return nil, err
	}

	return &UploadResult{
		Bucket: bucket,
		Key:    in.Key,
		URL:    s.publicURL(bucket, in.Key),
		ETag:   strings.Trim(resp.Header.Get("ETag"), `"`),
	}, nil
}

// Delete remove o objeto. 404 vira ErrObjectNotFound.
func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("storage: chave do objeto obrigatória")
	}
	resp, err := s.send(ctx, http.MethodDelete, s.bucket(bucket), key, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrObjectNotFound
	}
	return checkStatus(resp, "remoção")
}

func (s *S3Store) send(ctx context.Context, method, bucket, key string, body []byte, header http.Header) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.objectURL(s.cfg.Endpoint, bucket, key), rd)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	s.signer.sign(req, payloadHash(body), s.now())
	return s.client.Do(req)
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("storage: %s falhou (%d): %s", op, resp.StatusCode, strings.TrimSpace(string(msg)))
}

func (s *S3Store) bucket(b string) string {
	if strings.TrimSpace(b) != "" {
		return b
	}
	return s.cfg.Bucket
}

func (s *S3Store) objectURL(base, bucket, key string) string {
	escaped := (&url.URL{Path: strings.TrimLeft(key, "/")}).EscapedPath()
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + escaped
}

func (s *S3Store) publicURL(bucket, key string) string {
	if d := strings.TrimSpace(s.cfg.PublicDomain); d != "" {
		return s.objectURL(d, bucket, key)
	}
	return s.objectURL(s.cfg.Endpoint, bucket, key)
}
