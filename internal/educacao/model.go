// Package educacao cadastro escolar (escolas, turmas, alunos), matrículas e ocorrências.
package educacao

import (
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/workflow"
)

type MatriculaStatus string

const (
	MatriculaPending     MatriculaStatus = "pending"
	MatriculaActive      MatriculaStatus = "active"
	MatriculaTransferred MatriculaStatus = "transferred"
	MatriculaCancelled   MatriculaStatus = "cancelled"
)

var MatriculaMachine = workflow.NewMachine("matricula", MatriculaPending, []workflow.Transition[MatriculaStatus]{
	{From: MatriculaPending, Action: "ativar", To: MatriculaActive},
	{From: MatriculaPending, Action: "cancelar", To: MatriculaCancelled},
	{From: MatriculaActive, Action: "transferir", To: MatriculaTransferred},
	{From: MatriculaActive, Action: "cancelar", To: MatriculaCancelled},
}, MatriculaTransferred, MatriculaCancelled)

type OcorrenciaStatus string

const (
	OcorrenciaOpen       OcorrenciaStatus = "open"
	OcorrenciaInProgress OcorrenciaStatus = "in_progress"
	OcorrenciaResolved   OcorrenciaStatus = "resolved"
	OcorrenciaClosed     OcorrenciaStatus = "closed"
)

var OcorrenciaMachine = workflow.NewMachine("ocorrencia", OcorrenciaOpen, []workflow.Transition[OcorrenciaStatus]{
	{From: OcorrenciaOpen, Action: "atender", To: OcorrenciaInProgress},
	{From: OcorrenciaOpen, Action: "encerrar", To: OcorrenciaClosed},
	{From: OcorrenciaInProgress, Action: "resolver", To: OcorrenciaResolved},
	{From: OcorrenciaResolved, Action: "reabrir", To: OcorrenciaInProgress},
	{From: OcorrenciaResolved, Action: "encerrar", To: OcorrenciaClosed},
}, OcorrenciaClosed)

var (
	turnos     = []string{"manha", "tarde", "noite", "integral"}
	gravidades = []string{"baixa", "media", "alta"}
)

func oneOf(v string, options []string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

type Escola struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Nome     string    `db:"nome" json:"nome"`
	INEP     string    `db:"inep" json:"inep"`
	Endereco string    `db:"endereco" json:"endereco"`
	Telefone string    `db:"telefone" json:"telefone"`
	Diretor  string    `db:"diretor" json:"diretor"`
	CriadoEm time.Time `db:"criado_em" json:"criadoEm"`
}

type EscolaInput struct {
	Nome     string `json:"nome"`
	INEP     string `json:"inep"`
	Endereco string `json:"endereco"`
	Telefone string `json:"telefone"`
	Diretor  string `json:"diretor"`
}

type Turma struct {
	ID        uuid.UUID `db:"id" json:"id"`
	EscolaID  uuid.UUID `db:"escola_id" json:"escolaId"`
	Nome      string    `db:"nome" json:"nome"`
	Serie     string    `db:"serie" json:"serie"`
	Turno     string    `db:"turno" json:"turno"`
	AnoLetivo int       `db:"ano_letivo" json:"anoLetivo"`
	Vagas     int       `db:"vagas" json:"vagas"`
	CriadoEm  time.Time `db:"criado_em" json:"criadoEm"`
}

type TurmaInput struct {
	EscolaID  uuid.UUID `json:"escolaId"`
	Nome      string    `json:"nome"`
	Serie     string    `json:"serie"`
	Turno     string    `json:"turno"`
	AnoLetivo int       `json:"anoLetivo"`
	Vagas     int       `json:"vagas"`
}

type TurmaFilter struct {
	EscolaID  uuid.UUID
	AnoLetivo int
}

type Aluno struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	Nome                string     `db:"nome" json:"nome"`
	DataNascimento      *time.Time `db:"data_nascimento" json:"dataNascimento,omitempty"`
	CPF                 string     `db:"cpf" json:"cpf"`
	ResponsavelNome     string     `db:"responsavel_nome" json:"responsavelNome"`
	ResponsavelTelefone string     `db:"responsavel_telefone" json:"responsavelTelefone"`
	CriadoEm            time.Time  `db:"criado_em" json:"criadoEm"`
}

type AlunoInput struct {
	Nome                string `json:"nome"`
	DataNascimento      string `json:"dataNascimento"`
	CPF                 string `json:"cpf"`
	ResponsavelNome     string `json:"responsavelNome"`
	ResponsavelTelefone string `json:"responsavelTelefone"`
}

const (
	EntityMatricula  = "matriculas"
	EntityOcorrencia = "ocorrencias"
)

type Matricula struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Protocolo    string          `db:"protocolo" json:"protocolo"`
	AlunoID      uuid.UUID       `db:"aluno_id" json:"alunoId"`
	TurmaID      uuid.UUID       `db:"turma_id" json:"turmaId"`
	Status       MatriculaStatus `db:"status" json:"status"`
	CriadoEm     time.Time       `db:"criado_em" json:"criadoEm"`
	AtualizadoEm time.Time       `db:"atualizado_em" json:"atualizadoEm"`
	ConcluidoEm  *time.Time      `db:"concluido_em" json:"concluidoEm,omitempty"`
}

// Ocupa diz se a matrícula consome vaga na turma.
func (m Matricula) Ocupa() bool {
	return m.Status == MatriculaPending || m.Status == MatriculaActive
}

type MatriculaFilter struct {
	Status  MatriculaStatus
	AlunoID uuid.UUID
	TurmaID uuid.UUID
	Limit   int
	Offset  int
}

type Ocorrencia struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	Protocolo     string           `db:"protocolo" json:"protocolo"`
	EscolaID      uuid.UUID        `db:"escola_id" json:"escolaId"`
	AlunoID       *uuid.UUID       `db:"aluno_id" json:"alunoId,omitempty"`
	Tipo          string           `db:"tipo" json:"tipo"`
	Descricao     string           `db:"descricao" json:"descricao"`
	Gravidade     string           `db:"gravidade" json:"gravidade"`
	RegistradoPor *uuid.UUID       `db:"registrado_por" json:"registradoPor,omitempty"`
	Status        OcorrenciaStatus `db:"status" json:"status"`
	CriadoEm      time.Time        `db:"criado_em" json:"criadoEm"`
	AtualizadoEm  time.Time        `db:"atualizado_em" json:"atualizadoEm"`
	ConcluidoEm   *time.Time       `db:"concluido_em" json:"concluidoEm,omitempty"`
}

type OcorrenciaInput struct {
	EscolaID  uuid.UUID  `json:"escolaId"`
	AlunoID   *uuid.UUID `json:"alunoId"`
	Tipo      string     `json:"tipo"`
	Descricao string     `json:"descricao"`
	Gravidade string     `json:"gravidade"`
}

type OcorrenciaFilter struct {
	Status    OcorrenciaStatus
	EscolaID  uuid.UUID
	Gravidade string
	Limit     int
	Offset    int
}
