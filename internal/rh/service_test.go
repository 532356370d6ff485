package rh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/backend"
	"github.com/digiurbis/portal/internal/protocolo"
	"github.com/digiurbis/portal/internal/request"
	"github.com/digiurbis/portal/internal/workflow"
)

type memStore struct {
	rows  map[uuid.UUID]Solicitacao
	seq   int64
	clock time.Time
	hist  []workflow.Entry
}

func newMemStore() *memStore {
	return &memStore{rows: map[uuid.UUID]Solicitacao{}, clock: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
}

func (m *memStore) List(ctx context.Context, f Filter) ([]Solicitacao, error) {
	var out []Solicitacao
	for _, s := range m.rows {
		if f.ServidorID != uuid.Nil && s.ServidorID != f.ServidorID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (Solicitacao, error) {
	s, ok := m.rows[id]
	if !ok {
		return Solicitacao{}, apperr.ErrNotFound
	}
	return s, nil
}

func (m *memStore) Create(ctx context.Context, v backend.Values) (Solicitacao, error) {
	m.seq++
	m.clock = m.clock.Add(time.Minute)
	s := Solicitacao{
		ID:         uuid.New(),
		Protocolo:  protocolo.Format("RH", m.clock.Year(), m.seq),
		ServidorID: v["servidor_id"].(uuid.UUID),
		Tipo:       v["tipo"].(string),
		Descricao:  v["descricao"].(string),
		DataInicio: v["data_inicio"].(*time.Time),
		DataFim:    v["data_fim"].(*time.Time),
		Status:     Machine.Initial(),
		CriadoEm:   m.clock,
	}
	m.rows[s.ID] = s
	return s, nil
}

func (m *memStore) SetStatus(ctx context.Context, change workflow.Change[Status]) (Solicitacao, error) {
	s, ok := m.rows[change.ID]
	if !ok {
		return Solicitacao{}, apperr.ErrNotFound
	}
	m.clock = m.clock.Add(time.Minute)
	values, err := Machine.Plan(s.Status, change, m.clock)
	if err != nil {
		return Solicitacao{}, err
	}
	m.hist = append(m.hist, workflow.Entry{EntidadeID: s.ID, De: string(s.Status), Para: string(change.To)})
	s.Status = Status(values["status"].(string))
	if p, ok := values["parecer"].(string); ok {
		s.Parecer = p
	}
	if c, ok := values["concluido_em"].(time.Time); ok {
		s.ConcluidoEm = &c
	}
	m.rows[s.ID] = s
	return s, nil
}

func (m *memStore) History(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error) {
	return m.hist, nil
}

func (m *memStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	out := map[string]int64{}
	for _, s := range m.rows {
		out[string(s.Status)]++
	}
	return out, nil
}

func newService() (*Service, *memStore) {
	st := newMemStore()
	return NewService(st, nil, request.Policy{Retries: -1}), st
}

func TestCreateRequiresPeriodForLeave(t *testing.T) {
	svc, _ := newService()
	servidor := uuid.New()

	_, err := svc.CreateSolicitacao(context.Background(), servidor, Input{Tipo: "ferias", Descricao: "férias de julho"})
	assert.Equal(t, apperr.Validation, apperr.CategoryOf(err))

	_, err = svc.CreateSolicitacao(context.Background(), servidor, Input{Tipo: "ferias", Descricao: "férias de julho", DataInicio: "2026-07-20", DataFim: "2026-07-01"})
	assert.Equal(t, apperr.Validation, apperr.CategoryOf(err))

	_, err = svc.CreateSolicitacao(context.Background(), servidor, Input{Tipo: "bonus", Descricao: "pedido qualquer"})
	assert.Equal(t, apperr.Validation, apperr.CategoryOf(err))

	created, err := svc.CreateSolicitacao(context.Background(), servidor, Input{Tipo: "Ferias", Descricao: "férias de julho", DataInicio: "2026-07-01", DataFim: "2026-07-30"})
	require.NoError(t, err)
	assert.Equal(t, "ferias", created.Tipo)
	assert.Equal(t, StatusPending, created.Status)
	require.NotNil(t, created.DataInicio)
	assert.Equal(t, time.July, created.DataInicio.Month())

	decl, err := svc.CreateSolicitacao(context.Background(), servidor, Input{Tipo: "declaracao", Descricao: "declaração de vínculo"})
	require.NoError(t, err)
	assert.Nil(t, decl.DataInicio)
}

func TestReviewFlowRecordsParecer(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	created, err := svc.CreateSolicitacao(ctx, uuid.New(), Input{Tipo: "declaracao", Descricao: "declaração de vínculo"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, created.ID, StatusApproved, "ok", nil)
	assert.True(t, errors.Is(err, workflow.ErrIllegalTransition), "pending não vai direto para approved")

	_, err = svc.UpdateStatus(ctx, created.ID, StatusInReview, "", nil)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, created.ID, StatusRejected, "", nil)
	assert.Equal(t, apperr.Validation, apperr.CategoryOf(err))

	approved, err := svc.UpdateStatus(ctx, created.ID, StatusApproved, "documentação completa", nil)
	require.NoError(t, err)
	assert.Equal(t, "documentação completa", approved.Parecer)
	require.NotNil(t, approved.ConcluidoEm)

	again, err := svc.UpdateStatus(ctx, created.ID, StatusApproved, "documentação completa", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, again.Status)
	assert.True(t, again.ConcluidoEm.After(*approved.ConcluidoEm))
}

func TestCancelOnlyOwnRequest(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	owner := uuid.New()
	created, err := svc.CreateSolicitacao(ctx, owner, Input{Tipo: "outros", Descricao: "troca de lotação"})
	require.NoError(t, err)

	_, err = svc.Cancelar(ctx, uuid.New(), created.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	cancelled, err := svc.Cancelar(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
}
