package repo

import "github.com/digiurbis/portal/internal/apperr"

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = apperr.New(apperr.NotFound, "NOT_FOUND", "registro não encontrado")
	// ErrDuplicate violação de unicidade (e-mail, CPF).
	ErrDuplicate = apperr.New(apperr.Validation, "CONFLICT", "registro já existe")
)
