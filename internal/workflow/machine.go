// Package workflow valida mudanças de status com máquinas de estado explícitas
// e grava o histórico de cada mudança.
package workflow

import (
	"fmt"
	"sort"

	"github.com/digiurbis/portal/internal/apperr"
)

// ErrIllegalTransition mudança de status fora da máquina.
var ErrIllegalTransition = apperr.New(apperr.Validation, "ILLEGAL_TRANSITION", "transição de status não permitida")

// ErrUnknownState status fora do conjunto conhecido.
var ErrUnknownState = apperr.New(apperr.Validation, "VALIDATION", "status desconhecido")

// Action nome da ação exibida ao operador (aprovar, rejeitar...).
type Action string

// Transition aresta da máquina.
type Transition[S ~string] struct {
	From   S
	Action Action
	To     S
}

// Machine máquina de estados finita de um tipo de entidade.
type Machine[S ~string] struct {
	name     string
	initial  S
	edges    map[S]map[Action]S
	terminal map[S]bool
	states   map[S]bool
}

// NewMachine monta a máquina. Estados terminais não podem ter saídas.
func NewMachine[S ~string](name string, initial S, transitions []Transition[S], terminal ...S) *Machine[S] {
	m := &Machine[S]{
		name:     name,
		initial:  initial,
		edges:    make(map[S]map[Action]S),
		terminal: make(map[S]bool),
		states:   map[S]bool{initial: true},
	}
	for _, s := range terminal {
		m.terminal[s] = true
		m.states[s] = true
	}
	for _, t := range transitions {
		if m.terminal[t.From] {
			panic(fmt.Sprintf("workflow %s: estado terminal %q com saída", name, t.From))
		}
		if m.edges[t.From] == nil {
			m.edges[t.From] = make(map[Action]S)
		}
		m.edges[t.From][t.Action] = t.To
		m.states[t.From] = true
		m.states[t.To] = true
	}
	return m
}

func (m *Machine[S]) Name() string { return m.name }

func (m *Machine[S]) Initial() S { return m.initial }

// Valid indica se o status pertence à máquina.
func (m *Machine[S]) Valid(s S) bool { return m.states[s] }

func (m *Machine[S]) IsTerminal(s S) bool { return m.terminal[s] }

// States lista todos os status em ordem alfabética.
func (m *Machine[S]) States() []S {
	out := make([]S, 0, len(m.states))
	for s := range m.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Next aplica a ação ao estado atual.
func (m *Machine[S]) Next(from S, action Action) (S, error) {
	if to, ok := m.edges[from][action]; ok {
		return to, nil
	}
	return from, m.illegal(string(from), string(action))
}

// Check valida a mudança direta from -> to. Reaplicar um estado terminal é aceito.
func (m *Machine[S]) Check(from, to S) error {
	if !m.states[to] {
		return ErrUnknownState.WithDetails(map[string]string{"status": string(to), "workflow": m.name})
	}
	if from == to && m.terminal[to] {
		return nil
	}
	for _, target := range m.edges[from] {
		if target == to {
			return nil
		}
	}
	return m.illegal(string(from), string(to))
}

// Actions ações disponíveis a partir do estado, em ordem alfabética.
func (m *Machine[S]) Actions(from S) []Action {
	out := make([]Action, 0, len(m.edges[from]))
	for a := range m.edges[from] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Machine[S]) illegal(from, to string) error {
	return ErrIllegalTransition.WithDetails(map[string]string{"workflow": m.name, "de": from, "para": to})
}
