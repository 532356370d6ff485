package attachment

import (
	"time"

	"github.com/google/uuid"
)

// Anexo metadados de um arquivo enviado. Os bytes ficam no bucket em Caminho.
type Anexo struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Entidade    string     `db:"entidade" json:"entidade"`
	EntidadeID  uuid.UUID  `db:"entidade_id" json:"entidadeId"`
	NomeArquivo string     `db:"nome_arquivo" json:"nomeArquivo"`
	Bucket      string     `db:"bucket" json:"bucket"`
	Caminho     string     `db:"caminho" json:"caminho"`
	Tipo        string     `db:"tipo" json:"tipo"`
	Tamanho     int64      `db:"tamanho" json:"tamanho"`
	EnviadoPor  *uuid.UUID `db:"enviado_por" json:"enviadoPor,omitempty"`
	CriadoEm    time.Time  `db:"criado_em" json:"criadoEm"`
}

// File conteúdo recebido do formulário.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// MaxFileSize limite por arquivo.
const MaxFileSize = 10 << 20
