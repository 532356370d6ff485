package saude

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

var agora = time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

type memStore struct {
	rows map[uuid.UUID]SolicitacaoTransporte
	seq  int64
}

func (m *memStore) List(ctx context.Context, f Filter) ([]SolicitacaoTransporte, error) {
	var out []SolicitacaoTransporte
	for _, s := range m.rows {
		if f.CidadaoID != uuid.Nil && s.CidadaoID != f.CidadaoID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (SolicitacaoTransporte, error) {
	s, ok := m.rows[id]
	if !ok {
		return SolicitacaoTransporte{}, apperr.ErrNotFound
	}
	return s, nil
}

func (m *memStore) Create(ctx context.Context, v backend.Values) (SolicitacaoTransporte, error) {
	m.seq++
	s := SolicitacaoTransporte{
		ID:           uuid.New(),
		Protocolo:    protocolo.Format("TRS", agora.Year(), m.seq),
		CidadaoID:    v["cidadao_id"].(uuid.UUID),
		PacienteNome: v["paciente_nome"].(string),
		PacienteCPF:  v["paciente_cpf"].(string),
		Destino:      v["destino"].(string),
		DataConsulta: v["data_consulta"].(time.Time),
		Acompanhante: v["acompanhante"].(bool),
		Status:       Machine.Initial(),
	}
	m.rows[s.ID] = s
	return s, nil
}

func (m *memStore) SetStatus(ctx context.Context, change workflow.Change[Status]) (SolicitacaoTransporte, error) {
	s, ok := m.rows[change.ID]
	if !ok {
		return SolicitacaoTransporte{}, apperr.ErrNotFound
	}
	values, err := Machine.Plan(s.Status, change, agora)
	if err != nil {
		return SolicitacaoTransporte{}, err
	}
	s.Status = Status(values["status"].(string))
	if v, ok := values["observacoes"].(string); ok {
		s.Observacoes = v
	}
	if c, ok := values["concluido_em"].(time.Time); ok {
		s.ConcluidoEm = &c
	}
	m.rows[s.ID] = s
	return s, nil
}

func (m *memStore) History(ctx context.Context, id uuid.UUID) ([]workflow.Entry, error) {
	return nil, nil
}

func (m *memStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	out := map[string]int64{}
	for _, s := range m.rows {
		out[string(s.Status)]++
	}
	return out, nil
}

func newTestService() *Service {
	svc := NewService(&memStore{rows: map[uuid.UUID]SolicitacaoTransporte{}}, nil, nil, request.Policy{Retries: -1})
	svc.now = func() time.Time { return agora }
	return svc
}

func validInput() Input {
	return Input{
		PacienteNome: "José da Silva",
		PacienteCPF:  "529.982.247-25",
		UnidadeSaude: "UBS Centro",
		Destino:      "Hospital Regional de Fortaleza",
		DataConsulta: agora.Add(72 * time.Hour),
		Acompanhante: true,
	}
}

func TestSolicitarValidation(t *testing.T) {
	svc := newTestService()
	cidadao := uuid.New()

	tooSoon := validInput()
	tooSoon.DataConsulta = agora.Add(24 * time.Hour)
	badCPF := validInput()
	badCPF.PacienteCPF = "123.456.789-00"
	noDestino := validInput()
	noDestino.Destino = " "

	for name, in := range map[string]Input{"antecedência": tooSoon, "cpf": badCPF, "destino": noDestino} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Solicitar(context.Background(), cidadao, in)
			assert.Equal(t, apperr.Validation, apperr.CategoryOf(err))
		})
	}

	created, err := svc.Solicitar(context.Background(), cidadao, validInput())
	require.NoError(t, err)
	assert.Equal(t, "52998224725", created.PacienteCPF)
	assert.Equal(t, StatusPending, created.Status)
	assert.True(t, created.Acompanhante)
	assert.Contains(t, created.Protocolo, "TRS-2026-")
}

func TestTransportFlowRequiresObservation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	s, err := svc.Solicitar(ctx, uuid.New(), validInput())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, s.ID, StatusScheduled, "", nil)
	assert.Equal(t, apperr.Validation, apperr.CategoryOf(err))

	_, err = svc.UpdateStatus(ctx, s.ID, StatusApproved, "", nil)
	require.NoError(t, err)

	scheduled, err := svc.UpdateStatus(ctx, s.ID, StatusScheduled, "Saída 04:30 da Secretaria de Saúde, van 02", nil)
	require.NoError(t, err)
	assert.Equal(t, "Saída 04:30 da Secretaria de Saúde, van 02", scheduled.Observacoes)

	done, err := svc.UpdateStatus(ctx, s.ID, StatusCompleted, "", nil)
	require.NoError(t, err)
	require.NotNil(t, done.ConcluidoEm)

	_, err = svc.UpdateStatus(ctx, s.ID, StatusApproved, "", nil)
	assert.True(t, errors.Is(err, workflow.ErrIllegalTransition))
}

func TestCitizenCancel(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner := uuid.New()
	s, err := svc.Solicitar(ctx, owner, validInput())
	require.NoError(t, err)

	_, err = svc.Cancelar(ctx, uuid.New(), s.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	cancelled, err := svc.Cancelar(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Cancelar(ctx, owner, s.ID)
	assert.Equal(t, apperr.Validation, apperr.CategoryOf(err))
}
