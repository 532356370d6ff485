package educacao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/cache"
	"github.com/digiurbis/portal/internal/request"
	"github.com/digiurbis/portal/internal/util"
	"github.com/digiurbis/portal/internal/workflow"
)

const cachePrefix = "educacao:"

// ErrSemVagas turma lotada.
var ErrSemVagas = apperr.New(apperr.Validation, "NO_VACANCY", "turma sem vagas disponíveis")

type store interface {
	ListEscolas(ctx context.Context, busca string) ([]Escola, error)
	GetEscola(ctx context.Context, id uuid.UUID) (Escola, error)
	SaveEscola(ctx context.Context, id uuid.UUID, values backend.Values) (Escola, error)
	DeleteEscola(ctx context.Context, id uuid.UUID) error

	ListTurmas(ctx context.Context, f TurmaFilter) ([]Turma, error)
	GetTurma(ctx context.Context, id uuid.UUID) (Turma, error)
	CreateTurma(ctx context.Context, values backend.Values) (Turma, error)
	DeleteTurma(ctx context.Context, id uuid.UUID) error

	ListAlunos(ctx context.Context, busca string, limit, offset int) ([]Aluno, error)
	GetAluno(ctx context.Context, id uuid.UUID) (Aluno, error)
	SaveAluno(ctx context.Context, id uuid.UUID, values backend.Values) (Aluno, error)

	ListMatriculas(ctx context.Context, f MatriculaFilter) ([]Matricula, error)
	CreateMatricula(ctx context.Context, values backend.Values) (Matricula, error)
	SetMatriculaStatus(ctx context.Context, change workflow.Change[MatriculaStatus]) (Matricula, error)
	CountMatriculas(ctx context.Context) (map[string]int64, error)

	ListOcorrencias(ctx context.Context, f OcorrenciaFilter) ([]Ocorrencia, error)
	CreateOcorrencia(ctx context.Context, values backend.Values) (Ocorrencia, error)
	SetOcorrenciaStatus(ctx context.Context, change workflow.Change[OcorrenciaStatus]) (Ocorrencia, error)
	CountOcorrencias(ctx context.Context) (map[string]int64, error)
}

type Service struct {
	store  store
	cache  *cache.Cache
	policy request.Policy
}

func NewService(s store, c *cache.Cache, policy request.Policy) *Service {
	return &Service{store: s, cache: c, policy: policy}
}

func call[T any](ctx context.Context, s *Service, label, message string, fn func(context.Context) (T, error)) (T, error) {
	return request.Do(ctx, fn, s.policy.Apply(request.Options{Context: "educacao." + label, ErrorMessage: message})).Unwrap()
}

func (s *Service) invalidate(ctx context.Context, dashboard bool) {
	if dashboard {
		s.cache.InvalidateQuietly(ctx, cachePrefix, "gabinete:")
		return
	}
	s.cache.InvalidateQuietly(ctx, cachePrefix)
}

// Escolas

func (s *Service) ListEscolas(ctx context.Context, busca string) ([]Escola, error) {
	key := cachePrefix + "escolas:" + strings.ToLower(strings.TrimSpace(busca))
	return call(ctx, s, "escolas.list", "Erro ao carregar escolas", func(ctx context.Context) ([]Escola, error) {
		return cache.Remember(ctx, s.cache, key, cache.TierLong, func(ctx context.Context) ([]Escola, error) {
			return s.store.ListEscolas(ctx, busca)
		})
	})
}

func (s *Service) GetEscola(ctx context.Context, id uuid.UUID) (Escola, error) {
	return call(ctx, s, "escolas.get", "", func(ctx context.Context) (Escola, error) {
		return s.store.GetEscola(ctx, id)
	})
}

// SaveEscola cria quando id é nulo.
func (s *Service) SaveEscola(ctx context.Context, id uuid.UUID, in EscolaInput) (Escola, error) {
	nome := strings.TrimSpace(in.Nome)
	if err := util.RequireString(nome, "nome"); err != nil {
		return Escola{}, apperr.Invalid("%s", err.Error())
	}
	inep := util.OnlyDigits(in.INEP)
	if inep != "" && len(inep) != 8 {
		return Escola{}, apperr.Invalid("código INEP deve ter 8 dígitos")
	}
	saved, err := call(ctx, s, "escolas.save", "Erro ao salvar escola", func(ctx context.Context) (Escola, error) {
		return s.store.SaveEscola(ctx, id, backend.Values{
			"nome":     nome,
			"inep":     inep,
			"endereco": strings.TrimSpace(in.Endereco),
			"telefone": strings.TrimSpace(in.Telefone),
			"diretor":  strings.TrimSpace(in.Diretor),
		})
	})
	if err != nil {
		return Escola{}, err
	}
	s.invalidate(ctx, false)
	return saved, nil
}

func (s *Service) DeleteEscola(ctx context.Context, id uuid.UUID) error {
	_, err := call(ctx, s, "escolas.delete", "Erro ao remover escola", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.DeleteEscola(ctx, id)
	})
	if err == nil {
		s.invalidate(ctx, false)
	}
	return err
}

// Turmas

func (s *Service) ListTurmas(ctx context.Context, f TurmaFilter) ([]Turma, error) {
	return call(ctx, s, "turmas.list", "Erro ao carregar turmas", func(ctx context.Context) ([]Turma, error) {
		return s.store.ListTurmas(ctx, f)
	})
}

func (s *Service) CreateTurma(ctx context.Context, in TurmaInput) (Turma, error) {
	in.Nome = strings.TrimSpace(in.Nome)
	in.Turno = strings.ToLower(strings.TrimSpace(in.Turno))
	if in.Turno == "" {
		in.Turno = "manha"
	}
	if in.Vagas == 0 {
		in.Vagas = 30
	}
	switch {
	case in.EscolaID == uuid.Nil:
		return Turma{}, apperr.Invalid("escola obrigatória")
	case in.Nome == "":
		return Turma{}, apperr.Invalid("nome obrigatório")
	case !oneOf(in.Turno, turnos):
		return Turma{}, apperr.Invalid("turno inválido: %s", in.Turno)
	case in.AnoLetivo < 2000 || in.AnoLetivo > 2100:
		return Turma{}, apperr.Invalid("ano letivo inválido")
	case in.Vagas < 1:
		return Turma{}, apperr.Invalid("vagas deve ser maior que zero")
	}
	if _, err := s.GetEscola(ctx, in.EscolaID); err != nil {
		return Turma{}, err
	}
	created, err := call(ctx, s, "turmas.create", "Erro ao criar turma", func(ctx context.Context) (Turma, error) {
		return s.store.CreateTurma(ctx, backend.Values{
			"escola_id":  in.EscolaID,
			"nome":       in.Nome,
			"serie":      strings.TrimSpace(in.Serie),
			"turno":      in.Turno,
			"ano_letivo": in.AnoLetivo,
			"vagas":      in.Vagas,
		})
	})
	if err != nil {
		return Turma{}, err
	}
	s.invalidate(ctx, false)
	return created, nil
}

func (s *Service) DeleteTurma(ctx context.Context, id uuid.UUID) error {
	_, err := call(ctx, s, "turmas.delete", "Erro ao remover turma", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.DeleteTurma(ctx, id)
	})
	return err
}

// Alunos

func (s *Service) ListAlunos(ctx context.Context, busca string, limit, offset int) ([]Aluno, error) {
	return call(ctx, s, "alunos.list", "Erro ao carregar alunos", func(ctx context.Context) ([]Aluno, error) {
		return s.store.ListAlunos(ctx, busca, limit, offset)
	})
}

func (s *Service) GetAluno(ctx context.Context, id uuid.UUID) (Aluno, error) {
	return call(ctx, s, "alunos.get", "", func(ctx context.Context) (Aluno, error) {
		return s.store.GetAluno(ctx, id)
	})
}

// SaveAluno CPF é opcional, mas quando informado precisa ser válido.
func (s *Service) SaveAluno(ctx context.Context, id uuid.UUID, in AlunoInput) (Aluno, error) {
	nome := strings.TrimSpace(in.Nome)
	if err := util.MinLength(nome, "nome", 3); err != nil {
		return Aluno{}, apperr.Invalid("%s", err.Error())
	}
	values := backend.Values{
		"nome":                 nome,
		"responsavel_nome":     strings.TrimSpace(in.ResponsavelNome),
		"responsavel_telefone": strings.TrimSpace(in.ResponsavelTelefone),
	}
	if cpf := util.OnlyDigits(in.CPF); cpf != "" {
		if err := util.ValidateCPF(cpf); err != nil {
			return Aluno{}, apperr.Invalid("%s", err.Error())
		}
		values["cpf"] = cpf
	}
	if in.DataNascimento != "" {
		d, err := time.Parse(time.DateOnly, in.DataNascimento)
		if err != nil {
			return Aluno{}, apperr.Invalid("data de nascimento inválida")
		}
		if d.After(util.Now()) {
			return Aluno{}, apperr.Invalid("data de nascimento no futuro")
		}
		values["data_nascimento"] = d
	}
	saved, err := call(ctx, s, "alunos.save", "Erro ao salvar aluno", func(ctx context.Context) (Aluno, error) {
		return s.store.SaveAluno(ctx, id, values)
	})
	if err != nil {
		return Aluno{}, err
	}
	return saved, nil
}

// Matrículas

func (s *Service) ListMatriculas(ctx context.Context, f MatriculaFilter) ([]Matricula, error) {
	key := fmt.Sprintf("%smatriculas:%s|%s|%s|%d|%d", cachePrefix, f.Status, f.AlunoID, f.TurmaID, f.Limit, f.Offset)
	return call(ctx, s, "matriculas.list", "Erro ao carregar matrículas", func(ctx context.Context) ([]Matricula, error) {
		return cache.Remember(ctx, s.cache, key, cache.TierDefault, func(ctx context.Context) ([]Matricula, error) {
			return s.store.ListMatriculas(ctx, f)
		})
	})
}

// Matricular abre matrícula pending. A turma precisa ter vaga e o aluno não
// pode ter outra matrícula aberta na mesma turma.
func (s *Service) Matricular(ctx context.Context, alunoID, turmaID uuid.UUID) (Matricula, error) {
	if alunoID == uuid.Nil || turmaID == uuid.Nil {
		return Matricula{}, apperr.Invalid("aluno e turma são obrigatórios")
	}
	if _, err := s.GetAluno(ctx, alunoID); err != nil {
		return Matricula{}, err
	}
	turma, err := call(ctx, s, "turmas.get", "", func(ctx context.Context) (Turma, error) {
		return s.store.GetTurma(ctx, turmaID)
	})
	if err != nil {
		return Matricula{}, err
	}
	existentes, err := call(ctx, s, "matriculas.turma", "", func(ctx context.Context) ([]Matricula, error) {
		return s.store.ListMatriculas(ctx, MatriculaFilter{TurmaID: turmaID})
	})
	if err != nil {
		return Matricula{}, err
	}
	ocupadas := 0
	for _, m := range existentes {
		if !m.Ocupa() {
			continue
		}
		if m.AlunoID == alunoID {
			return Matricula{}, apperr.New(apperr.Validation, "DUPLICATE_ENROLLMENT", "aluno já matriculado nesta turma")
		}
		ocupadas++
	}
	if ocupadas >= turma.Vagas {
		return Matricula{}, ErrSemVagas.WithDetails(map[string]int{"vagas": turma.Vagas})
	}

	created, err := call(ctx, s, "matriculas.create", "Erro ao registrar matrícula", func(ctx context.Context) (Matricula, error) {
		return s.store.CreateMatricula(ctx, backend.Values{"aluno_id": alunoID, "turma_id": turmaID})
	})
	if err != nil {
		return Matricula{}, err
	}
	s.invalidate(ctx, true)
	return created, nil
}

func (s *Service) UpdateMatriculaStatus(ctx context.Context, id uuid.UUID, status MatriculaStatus, comentario string, actor *uuid.UUID) (Matricula, error) {
	if !MatriculaMachine.Valid(status) {
		return Matricula{}, workflow.ErrUnknownState.WithDetails(map[string]string{"status": string(status)})
	}
	updated, err := call(ctx, s, "matriculas.status", "", func(ctx context.Context) (Matricula, error) {
		return s.store.SetMatriculaStatus(ctx, workflow.Change[MatriculaStatus]{
			ID: id, To: status, Comment: strings.TrimSpace(comentario), Actor: actor, CompletedColumn: "concluido_em",
		})
	})
	if err != nil {
		return Matricula{}, err
	}
	s.invalidate(ctx, true)
	return updated, nil
}

// Ocorrências

func (s *Service) ListOcorrencias(ctx context.Context, f OcorrenciaFilter) ([]Ocorrencia, error) {
	return call(ctx, s, "ocorrencias.list", "Erro ao carregar ocorrências", func(ctx context.Context) ([]Ocorrencia, error) {
		return s.store.ListOcorrencias(ctx, f)
	})
}

func (s *Service) RegistrarOcorrencia(ctx context.Context, in OcorrenciaInput, actor *uuid.UUID) (Ocorrencia, error) {
	tipo := strings.TrimSpace(in.Tipo)
	gravidade := strings.ToLower(strings.TrimSpace(in.Gravidade))
	if gravidade == "" {
		gravidade = "media"
	}
	if in.EscolaID == uuid.Nil {
		return Ocorrencia{}, apperr.Invalid("escola obrigatória")
	}
	if err := util.RequireString(tipo, "tipo"); err != nil {
		return Ocorrencia{}, apperr.Invalid("%s", err.Error())
	}
	if err := util.MinLength(in.Descricao, "descricao", 10); err != nil {
		return Ocorrencia{}, apperr.Invalid("%s", err.Error())
	}
	if !oneOf(gravidade, gravidades) {
		return Ocorrencia{}, apperr.Invalid("gravidade inválida: %s", in.Gravidade)
	}
	values := backend.Values{
		"escola_id":      in.EscolaID,
		"tipo":           tipo,
		"descricao":      strings.TrimSpace(in.Descricao),
		"gravidade":      gravidade,
		"registrado_por": actor,
	}
	if in.AlunoID != nil && *in.AlunoID != uuid.Nil {
		values["aluno_id"] = *in.AlunoID
	}
	created, err := call(ctx, s, "ocorrencias.create", "Erro ao registrar ocorrência", func(ctx context.Context) (Ocorrencia, error) {
		return s.store.CreateOcorrencia(ctx, values)
	})
	if err != nil {
		return Ocorrencia{}, err
	}
	s.invalidate(ctx, true)
	return created, nil
}

func (s *Service) UpdateOcorrenciaStatus(ctx context.Context, id uuid.UUID, status OcorrenciaStatus, comentario string, actor *uuid.UUID) (Ocorrencia, error) {
	if !OcorrenciaMachine.Valid(status) {
		return Ocorrencia{}, workflow.ErrUnknownState.WithDetails(map[string]string{"status": string(status)})
	}
	updated, err := call(ctx, s, "ocorrencias.status", "", func(ctx context.Context) (Ocorrencia, error) {
		return s.store.SetOcorrenciaStatus(ctx, workflow.Change[OcorrenciaStatus]{
			ID: id, To: status, Comment: strings.TrimSpace(comentario), Actor: actor, CompletedColumn: "concluido_em",
		})
	})
	if err != nil {
		return Ocorrencia{}, err
	}
	s.invalidate(ctx, true)
	return updated, nil
}

// ContarPorStatus junta matrículas e ocorrências; chaves no formato "matriculas.pending".
func (s *Service) ContarPorStatus(ctx context.Context) (map[string]int64, error) {
	return call(ctx, s, "count", "", func(ctx context.Context) (map[string]int64, error) {
		out := map[string]int64{}
		mat, err := s.store.CountMatriculas(ctx)
		if err != nil {
			return nil, err
		}
		for k, v := range mat {
			out[EntityMatricula+"."+k] = v
		}
		oco, err := s.store.CountOcorrencias(ctx)
		if err != nil {
			return nil, err
		}
		for k, v := range oco {
			out[EntityOcorrencia+"."+k] = v
		}
		return out, nil
	})
}
