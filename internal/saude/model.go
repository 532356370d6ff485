// Package saude transporte de pacientes para consultas fora do município (TFD).
package saude

import (
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/workflow"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

var Machine = workflow.NewMachine("saude", StatusPending, []workflow.Transition[Status]{
	{From: StatusPending, Action: "aprovar", To: StatusApproved},
	{From: StatusPending, Action: "rejeitar", To: StatusRejected},
	{From: StatusPending, Action: "cancelar", To: StatusCancelled},
	{From: StatusApproved, Action: "agendar", To: StatusScheduled},
	{From: StatusApproved, Action: "cancelar", To: StatusCancelled},
	{From: StatusScheduled, Action: "concluir", To: StatusCompleted},
	{From: StatusScheduled, Action: "cancelar", To: StatusCancelled},
}, StatusCompleted, StatusRejected, StatusCancelled)

const Entity = "solicitacoes_transporte"

type SolicitacaoTransporte struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Protocolo    string     `db:"protocolo" json:"protocolo"`
	CidadaoID    uuid.UUID  `db:"cidadao_id" json:"cidadaoId"`
	PacienteNome string     `db:"paciente_nome" json:"pacienteNome"`
	PacienteCPF  string     `db:"paciente_cpf" json:"pacienteCpf"`
	UnidadeSaude string     `db:"unidade_saude" json:"unidadeSaude"`
	Destino      string     `db:"destino" json:"destino"`
	DataConsulta time.Time  `db:"data_consulta" json:"dataConsulta"`
	Acompanhante bool       `db:"acompanhante" json:"acompanhante"`
	Motivo       string     `db:"motivo" json:"motivo"`
	Observacoes  string     `db:"observacoes" json:"observacoes"`
	Status       Status     `db:"status" json:"status"`
	CriadoEm     time.Time  `db:"criado_em" json:"criadoEm"`
	AtualizadoEm time.Time  `db:"atualizado_em" json:"atualizadoEm"`
	ConcluidoEm  *time.Time `db:"concluido_em" json:"concluidoEm,omitempty"`
}

// Cancelavel pelo próprio cidadão.
func (s SolicitacaoTransporte) Cancelavel() bool {
	return Machine.Check(s.Status, StatusCancelled) == nil && s.Status != StatusCancelled
}

type Input struct {
	PacienteNome string    `json:"pacienteNome"`
	PacienteCPF  string    `json:"pacienteCpf"`
	UnidadeSaude string    `json:"unidadeSaude"`
	Destino      string    `json:"destino"`
	DataConsulta time.Time `json:"dataConsulta"`
	Acompanhante bool      `json:"acompanhante"`
	Motivo       string    `json:"motivo"`
}

type Filter struct {
	Status    Status
	CidadaoID uuid.UUID
	Destino   string
	De        time.Time
	Ate       time.Time
	Limit     int
	Offset    int
}
