package compras

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/attachment"
	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/protocolo"
	"github.com/digiurbis/portal/internal/request"
	"github.com/digiurbis/portal/internal/workflow"
)

type memStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]Solicitacao
	history   []workflow.Entry
	seq       int64
	clock     time.Time
	listErrs  []error
	listCalls int
	lastList  Filter
	setCalls  int
	creates   int
}

func newMemStore() *memStore {
	return &memStore{rows: map[uuid.UUID]Solicitacao{}, clock: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memStore) List(ctx context.Context, f Filter) ([]Solicitacao, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	m.lastList = f
	if len(m.listErrs) > 0 {
		err := m.listErrs[0]
		m.listErrs = m.listErrs[1:]
		return nil, err
	}
	var out []Solicitacao
	for _, s := range m.rows {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (Solicitacao, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return Solicitacao{}, apperr.ErrNotFound
	}
	return s, nil
}

func (m *memStore) Create(ctx context.Context, in NovaSolicitacao) (Solicitacao, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	m.seq++
	now := m.tick()
	s := Solicitacao{
		ID:            uuid.New(),
		Protocolo:     protocolo.Format("COMP", now.Year(), m.seq),
		SolicitanteID: in.SolicitanteID,
		Departamento:  in.Departamento,
		Justificativa: in.Justificativa,
		Prioridade:    in.Prioridade,
		Status:        Machine.Initial(),
		CriadoEm:      now,
		AtualizadoEm:  now,
	}
	for _, it := range in.Itens {
		s.Itens = append(s.Itens, Item{ID: uuid.New(), SolicitacaoID: s.ID, Descricao: it.Descricao, Quantidade: it.Quantidade, Unidade: it.Unidade, ValorUnitario: it.ValorUnitario})
	}
	m.rows[s.ID] = s
	return s, nil
}

func (m *memStore) Update(ctx context.Context, id uuid.UUID, values backend.Values) (Solicitacao, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return Solicitacao{}, apperr.ErrNotFound
	}
	if v, ok := values["justificativa"].(string); ok {
		s.Justificativa = v
	}
	if v, ok := values["prioridade"].(string); ok {
		s.Prioridade = v
	}
	if v, ok := values["departamento"].(string); ok {
		s.Departamento = v
	}
	if v, ok := values["observacoes"].(string); ok {
		s.Observacoes = v
	}
	s.AtualizadoEm = m.tick()
	m.rows[id] = s
	return s, nil
}

// SetStatus usa a mesma máquina e o mesmo plano de colunas do repositório real.
func (m *memStore) SetStatus(ctx context.Context, change workflow.Change[Status]) (Solicitacao, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	s, ok := m.rows[change.ID]
	if !ok {
		return Solicitacao{}, apperr.ErrNotFound
	}
	now := m.tick()
	values, err := Machine.Plan(s.Status, change, now)
	if err != nil {
		return Solicitacao{}, err
	}
	from := s.Status
	s.Status = Status(values["status"].(string))
	s.AtualizadoEm = values["atualizado_em"].(time.Time)
	if v, ok := values["concluido_em"].(time.Time); ok {
		s.ConcluidoEm = &v
	}
	m.rows[change.ID] = s
	m.history = append(m.history, workflow.Entry{EntidadeID: change.ID, De: string(from), Para: string(s.Status), Comentario: change.Comment, Autor: change.Actor, CriadoEm: now})
	return s, nil
}

func (m *memStore) History(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []workflow.Entry
	for _, e := range m.history {
		if e.EntidadeID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int64{}
	for _, s := range m.rows {
		out[string(s.Status)]++
	}
	return out, nil
}

type stubAnexos struct {
	rows map[uuid.UUID]attachment.Anexo
}

func (s *stubAnexos) Upload(ctx context.Context, entity string, entityID uuid.UUID, file attachment.File, uploader *uuid.UUID) (attachment.Anexo, error) {
	a := attachment.Anexo{ID: uuid.New(), Entidade: entity, EntidadeID: entityID, NomeArquivo: file.Name, Tamanho: int64(len(file.Body))}
	s.rows[a.ID] = a
	return a, nil
}

func (s *stubAnexos) List(ctx context.Context, entity string, entityID uuid.UUID) ([]attachment.Anexo, error) {
	var out []attachment.Anexo
	for _, a := range s.rows {
		if a.Entidade == entity && a.EntidadeID == entityID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAnexos) Get(ctx context.Context, id uuid.UUID) (attachment.Anexo, error) {
	a, ok := s.rows[id]
	if !ok {
		return attachment.Anexo{}, apperr.ErrNotFound
	}
	return a, nil
}

func (s *stubAnexos) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.rows, id)
	return nil
}

func newTestService(st *memStore) (*Service, *stubAnexos) {
	anexos := &stubAnexos{rows: map[uuid.UUID]attachment.Anexo{}}
	return NewService(st, anexos, nil, request.Policy{Retries: -1}), anexos
}

var papelA4 = []ItemInput{{Descricao: "Papel A4", Quantidade: 10, Unidade: "caixa"}}

func TestCreateSolicitacaoReturnsPendingWithProtocol(t *testing.T) {
	st := newMemStore()
	svc, _ := newTestService(st)
	userID := uuid.New()

	created, err := svc.CreateSolicitacao(context.Background(), userID, "TI", "justificativa longa o suficiente", "urgent", papelA4)
	require.NoError(t, err)

	assert.NotEmpty(t, created.Protocolo)
	assert.True(t, strings.HasPrefix(created.Protocolo, "COMP-2026-"), created.Protocolo)
	assert.Equal(t, StatusPending, created.Status)
	assert.Equal(t, userID, created.SolicitanteID)
	require.Len(t, created.Itens, 1)
	assert.Equal(t, "caixa", created.Itens[0].Unidade)
}

func TestCreateSolicitacaoValidation(t *testing.T) {
	userID := uuid.New()
	cases := map[string]struct {
		departamento, justificativa, prioridade string
		itens                                   []ItemInput
	}{
		"justificativa curta": {"TI", "curta", "normal", papelA4},
		"prioridade inválida": {"TI", "justificativa longa o suficiente", "altissima", papelA4},
		"sem itens":           {"TI", "justificativa longa o suficiente", "normal", nil},
		"quantidade zero":     {"TI", "justificativa longa o suficiente", "normal", []ItemInput{{Descricao: "Caneta", Quantidade: 0}}},
		"sem departamento":    {" ", "justificativa longa o suficiente", "normal", papelA4},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			st := newMemStore()
			svc, _ := newTestService(st)
			_, err := svc.CreateSolicitacao(context.Background(), userID, tc.departamento, tc.justificativa, tc.prioridade, tc.itens)
			require.Error(t, err)
			assert.Equal(t, apperr.Validation, apperr.CategoryOf(err))
			assert.Zero(t, st.creates)
		})
	}
}

func TestStatusFlowAndTerminalIdempotency(t *testing.T) {
	st := newMemStore()
	svc, _ := newTestService(st)
	actor := uuid.New()
	ctx := context.Background()

	created, err := svc.CreateSolicitacao(ctx, uuid.New(), "TI", "justificativa longa o suficiente", "high", papelA4)
	require.NoError(t, err)

	for _, next := range []Status{StatusApproved, StatusDelivering} {
		updated, err := svc.UpdateStatus(ctx, created.ID, next, "", &actor)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
		assert.Nil(t, updated.ConcluidoEm)
	}

	first, err := svc.UpdateStatus(ctx, created.ID, StatusCompleted, "entregue", &actor)
	require.NoError(t, err)
	require.NotNil(t, first.ConcluidoEm)

	second, err := svc.UpdateStatus(ctx, created.ID, StatusCompleted, "entregue de novo", &actor)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, second.Status)
	require.NotNil(t, second.ConcluidoEm)
	assert.True(t, second.ConcluidoEm.After(*first.ConcluidoEm), "timestamp deve ser regravado")

	history, err := svc.Historico(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestIllegalTransitionIsNotRetried(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, nil, nil, request.Policy{Retries: 3, RetryDelay: -1})
	ctx := context.Background()

	created, err := svc.CreateSolicitacao(ctx, uuid.New(), "TI", "justificativa longa o suficiente", "low", papelA4)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, created.ID, StatusCompleted, "", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, workflow.ErrIllegalTransition))
	assert.Equal(t, 1, st.setCalls)

	_, err = svc.UpdateStatus(ctx, created.ID, Status("arquivada"), "", nil)
	assert.True(t, errors.Is(err, workflow.ErrUnknownState))
}

func TestListRetriesNetworkErrors(t *testing.T) {
	st := newMemStore()
	st.listErrs = []error{apperr.New(apperr.Network, "UNAVAILABLE", "conexão recusada")}
	svc := NewService(st, nil, nil, request.Policy{Retries: 2, RetryDelay: -1})

	_, err := svc.ListSolicitacoes(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, st.listCalls)
}

func TestUpdateSolicitacaoRejectsClosedRequest(t *testing.T) {
	st := newMemStore()
	svc, _ := newTestService(st)
	ctx := context.Background()

	created, err := svc.CreateSolicitacao(ctx, uuid.New(), "TI", "justificativa longa o suficiente", "normal", papelA4)
	require.NoError(t, err)

	obs := "entregar no almoxarifado"
	updated, err := svc.UpdateSolicitacao(ctx, created.ID, Patch{Observacoes: &obs})
	require.NoError(t, err)
	assert.Equal(t, obs, updated.Observacoes)

	_, err = svc.UpdateStatus(ctx, created.ID, StatusCancelled, "desistência", nil)
	require.NoError(t, err)

	_, err = svc.UpdateSolicitacao(ctx, created.ID, Patch{Observacoes: &obs})
	assert.Equal(t, apperr.Validation, apperr.CategoryOf(err))
}

func TestAnexosBelongToRequest(t *testing.T) {
	st := newMemStore()
	svc, _ := newTestService(st)
	ctx := context.Background()

	created, err := svc.CreateSolicitacao(ctx, uuid.New(), "TI", "justificativa longa o suficiente", "normal", papelA4)
	require.NoError(t, err)

	anexo, err := svc.UploadAnexo(ctx, created.ID, attachment.File{Name: "orcamento.pdf", Body: []byte("%PDF")}, nil)
	require.NoError(t, err)
	assert.Equal(t, Entity, anexo.Entidade)

	list, err := svc.ListAnexos(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	err = svc.DeleteAnexo(ctx, uuid.New(), anexo.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	require.NoError(t, svc.DeleteAnexo(ctx, created.ID, anexo.ID))

	_, err = svc.UploadAnexo(ctx, uuid.New(), attachment.File{Name: "x.pdf", Body: []byte("x")}, nil)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
