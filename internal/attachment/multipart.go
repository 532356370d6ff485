package attachment

import (
	"errors"
	"io"
	"net/http"

	"github.com/digiurbis/portal/internal/apperr"
)

// ReadMultipart lê o arquivo do campo informado de um formulário multipart.
func ReadMultipart(r *http.Request, field string) (File, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxFileSize+(1<<20))
	if err := r.ParseMultipartForm(MaxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return File{}, apperr.Invalid("arquivo excede %d MB", MaxFileSize>>20)
		}
		return File{}, apperr.Invalid("formulário inválido")
	}

	f, header, err := r.FormFile(field)
	if err != nil {
		return File{}, apperr.Invalid("arquivo %q não enviado", field)
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return File{}, apperr.Invalid("falha ao ler arquivo")
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" && len(body) > 0 {
		contentType = http.DetectContentType(body)
	}
	return File{Name: header.Filename, ContentType: contentType, Body: body}, nil
}
