package educacao

import (
	"context"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/workflow"
)

type Repository struct {
	client      *backend.Client
	escolas     backend.Table[Escola]
	turmas      backend.Table[Turma]
	alunos      backend.Table[Aluno]
	matriculas  *workflow.Records[Matricula, MatriculaStatus]
	ocorrencias *workflow.Records[Ocorrencia, OcorrenciaStatus]
}

func NewRepository(client *backend.Client) *Repository {
	return &Repository{
		client:  client,
		escolas: backend.NewTable[Escola]("escolas"),
		turmas:  backend.NewTable[Turma]("turmas"),
		alunos:  backend.NewTable[Aluno]("alunos"),
		matriculas: workflow.NewRecords[Matricula](client, MatriculaMachine, workflow.RecordsConfig{
			Table: EntityMatricula, Prefix: "MAT", CompletedColumn: "concluido_em",
		}),
		ocorrencias: workflow.NewRecords[Ocorrencia](client, OcorrenciaMachine, workflow.RecordsConfig{
			Table: EntityOcorrencia, Prefix: "OCO", CompletedColumn: "concluido_em",
		}),
	}
}

func (r *Repository) ListEscolas(ctx context.Context, busca string) ([]Escola, error) {
	return r.escolas.Select(ctx, r.client.DB(), backend.NewQuery().Search("nome", busca).Order("nome", false))
}

func (r *Repository) GetEscola(ctx context.Context, id uuid.UUID) (Escola, error) {
	return r.escolas.Get(ctx, r.client.DB(), id)
}

// SaveEscola id nulo cria.
func (r *Repository) SaveEscola(ctx context.Context, id uuid.UUID, values backend.Values) (Escola, error) {
	if id == uuid.Nil {
		return r.escolas.Insert(ctx, r.client.DB(), values)
	}
	return r.escolas.Update(ctx, r.client.DB(), id, values)
}

func (r *Repository) DeleteEscola(ctx context.Context, id uuid.UUID) error {
	return r.escolas.Delete(ctx, r.client.DB(), id)
}

func (r *Repository) ListTurmas(ctx context.Context, f TurmaFilter) ([]Turma, error) {
	q := backend.NewQuery().Eq("escola_id", f.EscolaID).Order("nome", false)
	if f.AnoLetivo > 0 {
		q = q.Where("ano_letivo", backend.OpEq, f.AnoLetivo)
	}
	return r.turmas.Select(ctx, r.client.DB(), q)
}

func (r *Repository) GetTurma(ctx context.Context, id uuid.UUID) (Turma, error) {
	return r.turmas.Get(ctx, r.client.DB(), id)
}

func (r *Repository) CreateTurma(ctx context.Context, values backend.Values) (Turma, error) {
	return r.turmas.Insert(ctx, r.client.DB(), values)
}

func (r *Repository) DeleteTurma(ctx context.Context, id uuid.UUID) error {
	return r.turmas.Delete(ctx, r.client.DB(), id)
}

func (r *Repository) ListAlunos(ctx context.Context, busca string, limit, offset int) ([]Aluno, error) {
	return r.alunos.Select(ctx, r.client.DB(), backend.NewQuery().Search("nome", busca).Order("nome", false).Page(limit, offset))
}

func (r *Repository) GetAluno(ctx context.Context, id uuid.UUID) (Aluno, error) {
	return r.alunos.Get(ctx, r.client.DB(), id)
}

func (r *Repository) SaveAluno(ctx context.Context, id uuid.UUID, values backend.Values) (Aluno, error) {
	if id == uuid.Nil {
		return r.alunos.Insert(ctx, r.client.DB(), values)
	}
	return r.alunos.Update(ctx, r.client.DB(), id, values)
}

func (r *Repository) ListMatriculas(ctx context.Context, f MatriculaFilter) ([]Matricula, error) {
	return r.matriculas.List(ctx, backend.NewQuery().
		Eq("status", string(f.Status)).
		Eq("aluno_id", f.AlunoID).
		Eq("turma_id", f.TurmaID).
		Order("criado_em", true).
		Page(f.Limit, f.Offset))
}

func (r *Repository) CreateMatricula(ctx context.Context, values backend.Values) (Matricula, error) {
	return r.matriculas.Create(ctx, values, nil)
}

func (r *Repository) SetMatriculaStatus(ctx context.Context, change workflow.Change[MatriculaStatus]) (Matricula, error) {
	return r.matriculas.SetStatus(ctx, change)
}

func (r *Repository) CountMatriculas(ctx context.Context) (map[string]int64, error) {
	return r.matriculas.CountByStatus(ctx)
}

func (r *Repository) ListOcorrencias(ctx context.Context, f OcorrenciaFilter) ([]Ocorrencia, error) {
	return r.ocorrencias.List(ctx, backend.NewQuery().
		Eq("status", string(f.Status)).
		Eq("escola_id", f.EscolaID).
		Eq("gravidade", f.Gravidade).
		Order("criado_em", true).
		Page(f.Limit, f.Offset))
}

func (r *Repository) CreateOcorrencia(ctx context.Context, values backend.Values) (Ocorrencia, error) {
	return r.ocorrencias.Create(ctx, values, nil)
}

func (r *Repository) SetOcorrenciaStatus(ctx context.Context, change workflow.Change[OcorrenciaStatus]) (Ocorrencia, error) {
	return r.ocorrencias.SetStatus(ctx, change)
}

func (r *Repository) CountOcorrencias(ctx context.Context) (map[string]int64, error) {
	return r.ocorrencias.CountByStatus(ctx)
}
