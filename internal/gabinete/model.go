// Package gabinete solicitações diretas ao prefeito, agenda do gabinete e painel consolidado.
package gabinete

import (
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/workflow"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInAnalysis Status = "in_analysis"
	StatusForwarded  Status = "forwarded"
	StatusAnswered   Status = "answered"
	StatusRejected   Status = "rejected"
)

var Machine = workflow.NewMachine("gabinete", StatusPending, []workflow.Transition[Status]{
	{From: StatusPending, Action: "analisar", To: StatusInAnalysis},
	{From: StatusPending, Action: "rejeitar", To: StatusRejected},
	{From: StatusInAnalysis, Action: "encaminhar", To: StatusForwarded},
	{From: StatusInAnalysis, Action: "responder", To: StatusAnswered},
	{From: StatusInAnalysis, Action: "rejeitar", To: StatusRejected},
	{From: StatusForwarded, Action: "responder", To: StatusAnswered},
}, StatusAnswered, StatusRejected)

type AgendamentoStatus string

const (
	AgendamentoRequested AgendamentoStatus = "requested"
	AgendamentoScheduled AgendamentoStatus = "scheduled"
	AgendamentoDone      AgendamentoStatus = "done"
	AgendamentoCancelled AgendamentoStatus = "cancelled"
)

var AgendamentoMachine = workflow.NewMachine("agendamento", AgendamentoRequested, []workflow.Transition[AgendamentoStatus]{
	{From: AgendamentoRequested, Action: "agendar", To: AgendamentoScheduled},
	{From: AgendamentoRequested, Action: "cancelar", To: AgendamentoCancelled},
	{From: AgendamentoScheduled, Action: "realizar", To: AgendamentoDone},
	{From: AgendamentoScheduled, Action: "cancelar", To: AgendamentoCancelled},
}, AgendamentoDone, AgendamentoCancelled)

const (
	EntitySolicitacao = "solicitacoes_gabinete"
	EntityAgendamento = "agendamentos"
)

// SolicitacaoDireta pedido encaminhado ao gabinete, por cidadão ou registrado no balcão.
type SolicitacaoDireta struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	Protocolo         string     `db:"protocolo" json:"protocolo"`
	CidadaoID         *uuid.UUID `db:"cidadao_id" json:"cidadaoId,omitempty"`
	NomeSolicitante   string     `db:"nome_solicitante" json:"nomeSolicitante"`
	Contato           string     `db:"contato" json:"contato"`
	Assunto           string     `db:"assunto" json:"assunto"`
	Descricao         string     `db:"descricao" json:"descricao"`
	SecretariaDestino string     `db:"secretaria_destino" json:"secretariaDestino"`
	Resposta          string     `db:"resposta" json:"resposta"`
	Status            Status     `db:"status" json:"status"`
	CriadoEm          time.Time  `db:"criado_em" json:"criadoEm"`
	AtualizadoEm      time.Time  `db:"atualizado_em" json:"atualizadoEm"`
	ConcluidoEm       *time.Time `db:"concluido_em" json:"concluidoEm,omitempty"`
}

type SolicitacaoInput struct {
	NomeSolicitante string `json:"nomeSolicitante"`
	Contato         string `json:"contato"`
	Assunto         string `json:"assunto"`
	Descricao       string `json:"descricao"`
}

type Filter struct {
	Status    Status
	CidadaoID uuid.UUID
	Busca     string
	Limit     int
	Offset    int
}

type Agendamento struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	Protocolo    string            `db:"protocolo" json:"protocolo"`
	Solicitante  string            `db:"solicitante" json:"solicitante"`
	Contato      string            `db:"contato" json:"contato"`
	Assunto      string            `db:"assunto" json:"assunto"`
	DataHora     time.Time         `db:"data_hora" json:"dataHora"`
	Local        string            `db:"local" json:"local"`
	Observacoes  string            `db:"observacoes" json:"observacoes"`
	Status       AgendamentoStatus `db:"status" json:"status"`
	CriadoEm     time.Time         `db:"criado_em" json:"criadoEm"`
	AtualizadoEm time.Time         `db:"atualizado_em" json:"atualizadoEm"`
	ConcluidoEm  *time.Time        `db:"concluido_em" json:"concluidoEm,omitempty"`
}

type AgendamentoInput struct {
	Solicitante string    `json:"solicitante"`
	Contato     string    `json:"contato"`
	Assunto     string    `json:"assunto"`
	DataHora    time.Time `json:"dataHora"`
	Local       string    `json:"local"`
	Observacoes string    `json:"observacoes"`
}

type AgendaFilter struct {
	Status AgendamentoStatus
	De     time.Time
	Ate    time.Time
}

// Dashboard contagens por módulo e status.
type Dashboard struct {
	Modulos  map[string]map[string]int64 `json:"modulos"`
	Totais   map[string]int64            `json:"totais"`
	Falhas   []string                    `json:"falhas,omitempty"`
	GeradoEm time.Time                   `json:"geradoEm"`
}
