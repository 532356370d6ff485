// Package identity descreve os dois tipos de perfil reconhecidos pelo portal
// e a checagem de permissão por módulo compartilhada entre API e cliente.
package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind identifica o tipo de perfil autenticado.
type Kind string

const (
	KindAdmin   Kind = "admin"
	KindCitizen Kind = "citizen"
)

// ParseKind aceita também os rótulos em português usados nas telas antigas.
func ParseKind(value string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "admin", "backoffice", "servidor":
		return KindAdmin, true
	case "citizen", "cidadao", "cidadão":
		return KindCitizen, true
	default:
		return "", false
	}
}

// ElevatedRole ignora a lista de permissões. Ajustável na inicialização (ELEVATED_ROLE).
var ElevatedRole = "super_admin"

// AllModules curinga aceito em Permission.ModuleID.
const AllModules = "all"

// Action é uma das quatro operações CRUD.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Permission concede operações sobre um módulo.
type Permission struct {
	ModuleID string `json:"module_id"`
	Create   bool   `json:"create"`
	Read     bool   `json:"read"`
	Update   bool   `json:"update"`
	Delete   bool   `json:"delete"`
}

// Allows consulta o booleano correspondente à ação.
func (p Permission) Allows(action Action) bool {
	switch action {
	case ActionCreate:
		return p.Create
	case ActionRead:
		return p.Read
	case ActionUpdate:
		return p.Update
	case ActionDelete:
		return p.Delete
	default:
		return false
	}
}

// ParsePermission lê "modulo:letras", com c=create r=read u=update d=delete.
// "rh:crud" concede tudo em rh; "all:r" leitura em todos os módulos.
func ParsePermission(raw string) (Permission, error) {
	module, flags, ok := strings.Cut(raw, ":")
	module = strings.TrimSpace(module)
	if !ok || module == "" {
		return Permission{}, fmt.Errorf("permissão inválida: %q", raw)
	}
	p := Permission{ModuleID: module}
	for _, r := range strings.ToLower(strings.TrimSpace(flags)) {
		switch r {
		case 'c':
			p.Create = true
		case 'r':
			p.Read = true
		case 'u':
			p.Update = true
		case 'd':
			p.Delete = true
		default:
			return Permission{}, fmt.Errorf("ação desconhecida %q em %q", r, raw)
		}
	}
	return p, nil
}

// AdminProfile servidor municipal com acesso ao backoffice.
type AdminProfile struct {
	ID           uuid.UUID    `json:"id"`
	Email        string       `json:"email"`
	Nome         string       `json:"nome"`
	Role         string       `json:"role"`
	Departamento string       `json:"departamento"`
	Cargo        string       `json:"cargo"`
	Permissions  []Permission `json:"permissions"`
}

// Endereco campos de endereço do cidadão.
type Endereco struct {
	Logradouro  string `json:"logradouro"`
	Numero      string `json:"numero"`
	Complemento string `json:"complemento,omitempty"`
	Bairro      string `json:"bairro"`
	Cidade      string `json:"cidade"`
	UF          string `json:"uf"`
	CEP         string `json:"cep"`
}

// CitizenProfile munícipe cadastrado no app.
type CitizenProfile struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Nome     string    `json:"nome"`
	CPF      string    `json:"cpf"`
	Endereco Endereco  `json:"endereco"`
	Telefone string    `json:"telefone"`
}

// User é o perfil resolvido de uma identidade: exatamente um dos dois ponteiros é preenchido.
type User struct {
	Kind    Kind            `json:"kind"`
	Admin   *AdminProfile   `json:"admin,omitempty"`
	Citizen *CitizenProfile `json:"citizen,omitempty"`
}

// ID devolve o identificador do perfil preenchido.
func (u *User) ID() uuid.UUID {
	switch {
	case u == nil:
		return uuid.Nil
	case u.Admin != nil:
		return u.Admin.ID
	case u.Citizen != nil:
		return u.Citizen.ID
	default:
		return uuid.Nil
	}
}

// Nome devolve o nome de exibição.
func (u *User) Nome() string {
	switch {
	case u == nil:
		return ""
	case u.Admin != nil:
		return u.Admin.Nome
	case u.Citizen != nil:
		return u.Citizen.Nome
	default:
		return ""
	}
}

// Valid confere que exatamente um perfil está preenchido e bate com Kind.
func (u *User) Valid() bool {
	if u == nil {
		return false
	}
	switch u.Kind {
	case KindAdmin:
		return u.Admin != nil && u.Citizen == nil
	case KindCitizen:
		return u.Citizen != nil && u.Admin == nil
	default:
		return false
	}
}

// HasPermission: papel elevado sempre pode; demais precisam de uma entrada
// com o módulo (ou "all") e a ação marcada. Cidadãos não têm permissões de módulo.
func HasPermission(u *User, moduleID string, action Action) bool {
	if u == nil || u.Admin == nil {
		return false
	}
	return u.Admin.HasPermission(moduleID, action)
}

// HasPermission aplica a mesma regra diretamente ao perfil de servidor.
func (a *AdminProfile) HasPermission(moduleID string, action Action) bool {
	if a == nil {
		return false
	}
	if a.Role == ElevatedRole {
		return true
	}
	for _, perm := range a.Permissions {
		if (perm.ModuleID == AllModules || perm.ModuleID == moduleID) && perm.Allows(action) {
			return true
		}
	}
	return false
}
