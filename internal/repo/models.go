package repo

import (
	"time"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/identity"
)

// Usuario representa servidor com acesso ao backoffice.
type Usuario struct {
	ID           uuid.UUID `db:"id"`
	Nome         string    `db:"nome"`
	Email        string    `db:"email"`
	SenhaHash    string    `db:"senha_hash"`
	Role         string    `db:"role"`
	Departamento string    `db:"departamento"`
	Cargo        string    `db:"cargo"`
	Ativo        bool      `db:"ativo"`
	CriadoEm     time.Time `db:"criado_em"`
}

// Permissao concede operações CRUD sobre um módulo.
type Permissao struct {
	UsuarioID   uuid.UUID `db:"usuario_id"`
	Modulo      string    `db:"modulo"`
	PodeCriar   bool      `db:"pode_criar"`
	PodeLer     bool      `db:"pode_ler"`
	PodeEditar  bool      `db:"pode_editar"`
	PodeExcluir bool      `db:"pode_excluir"`
}

// Cidadao representa usuário do app cidadão.
type Cidadao struct {
	ID          uuid.UUID `db:"id"`
	Nome        string    `db:"nome"`
	Email       string    `db:"email"`
	SenhaHash   string    `db:"senha_hash"`
	CPF         string    `db:"cpf"`
	Telefone    string    `db:"telefone"`
	Logradouro  string    `db:"logradouro"`
	Numero      string    `db:"numero"`
	Complemento string    `db:"complemento"`
	Bairro      string    `db:"bairro"`
	Cidade      string    `db:"cidade"`
	UF          string    `db:"uf"`
	CEP         string    `db:"cep"`
	Ativo       bool      `db:"ativo"`
	CriadoEm    time.Time `db:"criado_em"`
}

// TokenRefresh modela tabela de refresh tokens.
type TokenRefresh struct {
	ID        uuid.UUID `db:"id"`
	Subject   uuid.UUID `db:"subject"`
	Audience  string    `db:"audience"`
	TokenHash string    `db:"token_hash"`
	Expiracao time.Time `db:"expiracao"`
	CriadoEm  time.Time `db:"criado_em"`
	Revogado  bool      `db:"revogado"`
}

// InsertRefreshTokenParams parâmetros de gravação de refresh.
type InsertRefreshTokenParams struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
}

// InsertUsuarioParams cadastro de servidor.
type InsertUsuarioParams struct {
	ID           uuid.UUID
	Nome         string
	Email        string
	SenhaHash    string
	Role         string
	Departamento string
	Cargo        string
}

// InsertCidadaoParams cadastro de cidadão.
type InsertCidadaoParams struct {
	ID        uuid.UUID
	Nome      string
	Email     string
	SenhaHash string
	CPF       string
	Telefone  string
	Endereco  identity.Endereco
}

// PasskeyCredential credencial WebAuthn de um servidor.
type PasskeyCredential struct {
	ID           uuid.UUID  `db:"id"`
	UsuarioID    uuid.UUID  `db:"usuario_id"`
	CredentialID []byte     `db:"credential_id"`
	PublicKey    []byte     `db:"public_key"`
	SignCount    int64      `db:"sign_count"`
	AAGUID       []byte     `db:"aaguid"`
	Transports   []string   `db:"transports"`
	CriadoEm     time.Time  `db:"criado_em"`
	UltimoUso    *time.Time `db:"ultimo_uso"`
}

// ToPermission converte para o tipo compartilhado.
func (p Permissao) ToPermission() identity.Permission {
	return identity.Permission{
		ModuleID: p.Modulo,
		Create:   p.PodeCriar,
		Read:     p.PodeLer,
		Update:   p.PodeEditar,
		Delete:   p.PodeExcluir,
	}
}

// ToProfile monta o perfil de servidor.
func (u Usuario) ToProfile(perms []Permissao) *identity.AdminProfile {
	out := &identity.AdminProfile{
		ID:           u.ID,
		Email:        u.Email,
		Nome:         u.Nome,
		Role:         u.Role,
		Departamento: u.Departamento,
		Cargo:        u.Cargo,
		Permissions:  make([]identity.Permission, 0, len(perms)),
	}
	for _, p := range perms {
		out.Permissions = append(out.Permissions, p.ToPermission())
	}
	return out
}

// ToProfile monta o perfil de cidadão.
func (c Cidadao) ToProfile() *identity.CitizenProfile {
	return &identity.CitizenProfile{
		ID:    c.ID,
		Email: c.Email,
		Nome:  c.Nome,
		CPF:   c.CPF,
		Endereco: identity.Endereco{
			Logradouro:  c.Logradouro,
			Numero:      c.Numero,
			Complemento: c.Complemento,
			Bairro:      c.Bairro,
			Cidade:      c.Cidade,
			UF:          c.UF,
			CEP:         c.CEP,
		},
		Telefone: c.Telefone,
	}
}
