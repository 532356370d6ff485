package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digiurbis/portal/internal/auth"
	"github.com/digiurbis/portal/internal/identity"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHashpass(t *testing.T) {
	out, err := execute(t, "hashpass", "segredo123")
	require.NoError(t, err)

	ok, err := auth.Verify("segredo123", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMigrateList(t *testing.T) {
	out, err := execute(t, "migrate", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "0001_init")
}

func TestCreateAdminValidatesBeforeConnecting(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("DATABASE_URL", "")

	_, err := execute(t, "create-admin", "--nome", "Ana", "--email", "ana@cidade.gov.br", "--senha", "segredo123", "--permissao", "compras:z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ação desconhecida")

	_, err = execute(t, "create-admin", "--nome", "Ana", "--email", "não é email", "--senha", "segredo123")
	require.Error(t, err)

	_, err = execute(t, "create-admin", "--nome", "Ana", "--email", "ana@cidade.gov.br", "--senha", "curta")
	require.Error(t, err)
}

func TestToPermissao(t *testing.T) {
	id := uuid.New()
	p := toPermissao(id, identity.Permission{ModuleID: "rh", Read: true, Update: true})
	assert.Equal(t, id, p.UsuarioID)
	assert.Equal(t, "rh", p.Modulo)
	assert.True(t, p.PodeLer)
	assert.True(t, p.PodeEditar)
	assert.False(t, p.PodeCriar)
	assert.False(t, p.PodeExcluir)
}
