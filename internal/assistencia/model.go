// Package assistencia trata pedidos de benefícios socioassistenciais feitos por cidadãos.
package assistencia

import (
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/workflow"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusUnderAnalysis Status = "under_analysis"
	StatusApproved      Status = "approved"
	StatusDelivering    Status = "delivering"
	StatusDelivered     Status = "delivered"
	StatusRejected      Status = "rejected"
	StatusCancelled     Status = "cancelled"
)

var Machine = workflow.NewMachine("assistencia", StatusPending, []workflow.Transition[Status]{
	{From: StatusPending, Action: "analisar", To: StatusUnderAnalysis},
	{From: StatusPending, Action: "cancelar", To: StatusCancelled},
	{From: StatusUnderAnalysis, Action: "aprovar", To: StatusApproved},
	{From: StatusUnderAnalysis, Action: "rejeitar", To: StatusRejected},
	{From: StatusUnderAnalysis, Action: "cancelar", To: StatusCancelled},
	{From: StatusApproved, Action: "iniciar_entrega", To: StatusDelivering},
	{From: StatusApproved, Action: "cancelar", To: StatusCancelled},
	{From: StatusDelivering, Action: "entregar", To: StatusDelivered},
}, StatusDelivered, StatusRejected, StatusCancelled)

// Tipos de benefício.
var Tipos = []string{"cesta_basica", "aluguel_social", "auxilio_natalidade", "auxilio_funeral", "passe_livre", "outros"}

func validTipo(t string) bool {
	for _, v := range Tipos {
		if v == t {
			return true
		}
	}
	return false
}

const Entity = "beneficios"

// Beneficio pedido de um cidadão.
type Beneficio struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Protocolo      string     `db:"protocolo" json:"protocolo"`
	CidadaoID      uuid.UUID  `db:"cidadao_id" json:"cidadaoId"`
	Tipo           string     `db:"tipo" json:"tipo"`
	Descricao      string     `db:"descricao" json:"descricao"`
	RendaFamiliar  float64    `db:"renda_familiar" json:"rendaFamiliar"`
	MembrosFamilia int        `db:"membros_familia" json:"membrosFamilia"`
	Parecer        string     `db:"parecer" json:"parecer"`
	Status         Status     `db:"status" json:"status"`
	CriadoEm       time.Time  `db:"criado_em" json:"criadoEm"`
	AtualizadoEm   time.Time  `db:"atualizado_em" json:"atualizadoEm"`
	ConcluidoEm    *time.Time `db:"concluido_em" json:"concluidoEm,omitempty"`
}

// RendaPerCapita renda familiar dividida pelos membros.
func (b Beneficio) RendaPerCapita() float64 {
	if b.MembrosFamilia <= 0 {
		return b.RendaFamiliar
	}
	return b.RendaFamiliar / float64(b.MembrosFamilia)
}

type Input struct {
	Tipo           string  `json:"tipo"`
	Descricao      string  `json:"descricao"`
	RendaFamiliar  float64 `json:"rendaFamiliar"`
	MembrosFamilia int     `json:"membrosFamilia"`
}

type Filter struct {
	Status    Status
	Tipo      string
	CidadaoID uuid.UUID
	Limit     int
	Offset    int
}
