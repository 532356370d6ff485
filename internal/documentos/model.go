// Package documentos protocolo geral: entrada de documentos e tramitação entre setores.
package documentos

import (
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/workflow"
)

type Status string

const (
	StatusReceived   Status = "received"
	StatusForwarded  Status = "forwarded"
	StatusInProgress Status = "in_progress"
	StatusAnswered   Status = "answered"
	StatusArchived   Status = "archived"
)

// Machine forwarded -> forwarded representa novo encaminhamento.
var Machine = workflow.NewMachine("documentos", StatusReceived, []workflow.Transition[Status]{
	{From: StatusReceived, Action: "encaminhar", To: StatusForwarded},
	{From: StatusReceived, Action: "arquivar", To: StatusArchived},
	{From: StatusForwarded, Action: "encaminhar", To: StatusForwarded},
	{From: StatusForwarded, Action: "iniciar", To: StatusInProgress},
	{From: StatusInProgress, Action: "encaminhar", To: StatusForwarded},
	{From: StatusInProgress, Action: "responder", To: StatusAnswered},
	{From: StatusAnswered, Action: "arquivar", To: StatusArchived},
}, StatusArchived)

var Tipos = []string{"oficio", "memorando", "requerimento", "processo", "denuncia", "outros"}

// SetorInicial setor que recebe todo documento protocolado.
const SetorInicial = "protocolo"

const Entity = "documentos"

type Documento struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Protocolo    string     `db:"protocolo" json:"protocolo"`
	Tipo         string     `db:"tipo" json:"tipo"`
	Assunto      string     `db:"assunto" json:"assunto"`
	Remetente    string     `db:"remetente" json:"remetente"`
	Interessado  string     `db:"interessado" json:"interessado"`
	Descricao    string     `db:"descricao" json:"descricao"`
	SetorAtual   string     `db:"setor_atual" json:"setorAtual"`
	Status       Status     `db:"status" json:"status"`
	CriadoEm     time.Time  `db:"criado_em" json:"criadoEm"`
	AtualizadoEm time.Time  `db:"atualizado_em" json:"atualizadoEm"`
	ConcluidoEm  *time.Time `db:"concluido_em" json:"concluidoEm,omitempty"`
}

// Tramitacao passagem do documento de um setor para outro.
type Tramitacao struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	DocumentoID uuid.UUID  `db:"documento_id" json:"documentoId"`
	Origem      string     `db:"origem" json:"origem"`
	Destino     string     `db:"destino" json:"destino"`
	Despacho    string     `db:"despacho" json:"despacho"`
	Autor       *uuid.UUID `db:"autor" json:"autor,omitempty"`
	CriadoEm    time.Time  `db:"criado_em" json:"criadoEm"`
}

type Input struct {
	Tipo        string `json:"tipo"`
	Assunto     string `json:"assunto"`
	Remetente   string `json:"remetente"`
	Interessado string `json:"interessado"`
	Descricao   string `json:"descricao"`
}

// Encaminhamento pedido de tramitação.
type Encaminhamento struct {
	DocumentoID uuid.UUID
	Origem      string
	Destino     string
	Despacho    string
	Autor       *uuid.UUID
}

type Filter struct {
	Status Status
	Tipo   string
	Setor  string
	Busca  string
	Limit  int
	Offset int
}
