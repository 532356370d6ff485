// Package rh trata solicitações de servidores ao setor de recursos humanos.
package rh

import (
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/workflow"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusInReview  Status = "in_review"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

var Machine = workflow.NewMachine("rh", StatusPending, []workflow.Transition[Status]{
	{From: StatusPending, Action: "analisar", To: StatusInReview},
	{From: StatusPending, Action: "cancelar", To: StatusCancelled},
	{From: StatusInReview, Action: "aprovar", To: StatusApproved},
	{From: StatusInReview, Action: "rejeitar", To: StatusRejected},
	{From: StatusInReview, Action: "cancelar", To: StatusCancelled},
}, StatusApproved, StatusRejected, StatusCancelled)

// Tipos de solicitação.
const (
	TipoFerias      = "ferias"
	TipoLicenca     = "licenca"
	TipoDeclaracao  = "declaracao"
	TipoAfastamento = "afastamento"
	TipoOutros      = "outros"
)

// tipos que exigem período.
var tipos = map[string]bool{
	TipoFerias:      true,
	TipoLicenca:     true,
	TipoAfastamento: true,
	TipoDeclaracao:  false,
	TipoOutros:      false,
}

const Entity = "solicitacoes_rh"

// Solicitacao pedido de um servidor.
type Solicitacao struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Protocolo    string     `db:"protocolo" json:"protocolo"`
	ServidorID   uuid.UUID  `db:"servidor_id" json:"servidorId"`
	Tipo         string     `db:"tipo" json:"tipo"`
	Descricao    string     `db:"descricao" json:"descricao"`
	DataInicio   *time.Time `db:"data_inicio" json:"dataInicio,omitempty"`
	DataFim      *time.Time `db:"data_fim" json:"dataFim,omitempty"`
	Parecer      string     `db:"parecer" json:"parecer"`
	Status       Status     `db:"status" json:"status"`
	CriadoEm     time.Time  `db:"criado_em" json:"criadoEm"`
	AtualizadoEm time.Time  `db:"atualizado_em" json:"atualizadoEm"`
	ConcluidoEm  *time.Time `db:"concluido_em" json:"concluidoEm,omitempty"`
}

// Input dados de criação. Datas no formato AAAA-MM-DD.
type Input struct {
	Tipo       string `json:"tipo"`
	Descricao  string `json:"descricao"`
	DataInicio string `json:"dataInicio"`
	DataFim    string `json:"dataFim"`
}

type Filter struct {
	Status     Status
	Tipo       string
	ServidorID uuid.UUID
	Limit      int
	Offset     int
}
