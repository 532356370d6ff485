// Package compras trata solicitações de compra dos departamentos: itens,
// aprovação, entrega e anexos (orçamentos, notas fiscais).
package compras

import (
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/workflow"
)

// Status de uma solicitação de compra.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusDelivering Status = "delivering"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

// Machine fluxo pending -> approved -> delivering -> completed, com rejeição e cancelamento.
var Machine = workflow.NewMachine("compras", StatusPending, []workflow.Transition[Status]{
	{From: StatusPending, Action: "aprovar", To: StatusApproved},
	{From: StatusPending, Action: "rejeitar", To: StatusRejected},
	{From: StatusPending, Action: "cancelar", To: StatusCancelled},
	{From: StatusApproved, Action: "iniciar_entrega", To: StatusDelivering},
	{From: StatusApproved, Action: "cancelar", To: StatusCancelled},
	{From: StatusDelivering, Action: "concluir", To: StatusCompleted},
}, StatusCompleted, StatusRejected, StatusCancelled)

// Prioridades aceitas.
const (
	PrioridadeLow    = "low"
	PrioridadeNormal = "normal"
	PrioridadeHigh   = "high"
	PrioridadeUrgent = "urgent"
)

func validPrioridade(p string) bool {
	switch p {
	case PrioridadeLow, PrioridadeNormal, PrioridadeHigh, PrioridadeUrgent:
		return true
	}
	return false
}

// Entity nome usado em anexos e histórico.
const Entity = "solicitacoes_compra"

// Solicitacao pedido de compra de um departamento.
type Solicitacao struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Protocolo     string     `db:"protocolo" json:"protocolo"`
	SolicitanteID uuid.UUID  `db:"solicitante_id" json:"solicitanteId"`
	Departamento  string     `db:"departamento" json:"departamento"`
	Justificativa string     `db:"justificativa" json:"justificativa"`
	Prioridade    string     `db:"prioridade" json:"prioridade"`
	Observacoes   string     `db:"observacoes" json:"observacoes"`
	Status        Status     `db:"status" json:"status"`
	CriadoEm      time.Time  `db:"criado_em" json:"criadoEm"`
	AtualizadoEm  time.Time  `db:"atualizado_em" json:"atualizadoEm"`
	ConcluidoEm   *time.Time `db:"concluido_em" json:"concluidoEm,omitempty"`
	Itens         []Item     `db:"-" json:"itens"`
}

// Total soma dos itens.
func (s Solicitacao) Total() float64 {
	var total float64
	for _, it := range s.Itens {
		total += it.Quantidade * it.ValorUnitario
	}
	return total
}

// Item linha de uma solicitação.
type Item struct {
	ID            uuid.UUID `db:"id" json:"id"`
	SolicitacaoID uuid.UUID `db:"solicitacao_id" json:"solicitacaoId"`
	Descricao     string    `db:"descricao" json:"descricao"`
	Quantidade    float64   `db:"quantidade" json:"quantidade"`
	Unidade       string    `db:"unidade" json:"unidade"`
	ValorUnitario float64   `db:"valor_unitario" json:"valorUnitario"`
}

// ItemInput item informado na criação.
type ItemInput struct {
	Descricao     string  `json:"descricao"`
	Quantidade    float64 `json:"quantidade"`
	Unidade       string  `json:"unidade"`
	ValorUnitario float64 `json:"valorUnitario"`
}

// NovaSolicitacao dados já validados para gravação.
type NovaSolicitacao struct {
	SolicitanteID uuid.UUID
	Departamento  string
	Justificativa string
	Prioridade    string
	Observacoes   string
	Itens         []ItemInput
}

// Filter filtros da listagem.
type Filter struct {
	Status        Status
	Departamento  string
	Prioridade    string
	SolicitanteID uuid.UUID
	Busca         string
	Limit         int
	Offset        int
}

// Patch campos editáveis; nil mantém o valor.
type Patch struct {
	Departamento  *string `json:"departamento"`
	Justificativa *string `json:"justificativa"`
	Prioridade    *string `json:"prioridade"`
	Observacoes   *string `json:"observacoes"`
}
