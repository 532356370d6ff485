package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/digiurbis/portal/internal/auth"
	"github.com/digiurbis/portal/internal/identity"
	"github.com/digiurbis/portal/internal/notify"
	"github.com/digiurbis/portal/internal/repo"
)

type stubAuthRepo struct {
	usuarios     map[uuid.UUID]repo.Usuario
	cidadaos     map[uuid.UUID]repo.Cidadao
	permissoes   map[uuid.UUID][]repo.Permissao
	tokens       map[string]repo.TokenRefresh
	revokedAll   []uuid.UUID
	refreshCalls int
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{
		usuarios:   map[uuid.UUID]repo.Usuario{},
		cidadaos:   map[uuid.UUID]repo.Cidadao{},
		permissoes: map[uuid.UUID][]repo.Permissao{},
		tokens:     map[string]repo.TokenRefresh{},
	}
}

func (s *stubAuthRepo) GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error) {
	for _, u := range s.usuarios {
		if strings.EqualFold(email, u.Email) {
			return u, nil
		}
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (s *stubAuthRepo) GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error) {
	if u, ok := s.usuarios[id]; ok {
		return u, nil
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (s *stubAuthRepo) InsertUsuario(ctx context.Context, arg repo.InsertUsuarioParams) (repo.Usuario, error) {
	if _, err := s.GetUsuarioByEmail(ctx, arg.Email); err == nil {
		return repo.Usuario{}, repo.ErrDuplicate
	}
	u := repo.Usuario{ID: arg.ID, Nome: arg.Nome, Email: arg.Email, SenhaHash: arg.SenhaHash, Role: arg.Role, Departamento: arg.Departamento, Cargo: arg.Cargo, Ativo: true}
	s.usuarios[u.ID] = u
	return u, nil
}

func (s *stubAuthRepo) UpdateUsuarioSenha(ctx context.Context, id uuid.UUID, senhaHash string) error {
	u, ok := s.usuarios[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.SenhaHash = senhaHash
	s.usuarios[id] = u
	return nil
}

func (s *stubAuthRepo) ListPermissoes(ctx context.Context, usuarioID uuid.UUID) ([]repo.Permissao, error) {
	return s.permissoes[usuarioID], nil
}

func (s *stubAuthRepo) UpsertPermissao(ctx context.Context, p repo.Permissao) error {
	s.permissoes[p.UsuarioID] = append(s.permissoes[p.UsuarioID], p)
	return nil
}

func (s *stubAuthRepo) GetCidadaoByEmail(ctx context.Context, email string) (repo.Cidadao, error) {
	for _, c := range s.cidadaos {
		if strings.EqualFold(email, c.Email) {
			return c, nil
		}
	}
	return repo.Cidadao{}, repo.ErrNotFound
}

func (s *stubAuthRepo) GetCidadaoByID(ctx context.Context, id uuid.UUID) (repo.Cidadao, error) {
	if c, ok := s.cidadaos[id]; ok {
		return c, nil
	}
	return repo.Cidadao{}, repo.ErrNotFound
}

func (s *stubAuthRepo) InsertCidadao(ctx context.Context, arg repo.InsertCidadaoParams) (repo.Cidadao, error) {
	for _, c := range s.cidadaos {
		if c.CPF == arg.CPF || strings.EqualFold(c.Email, arg.Email) {
			return repo.Cidadao{}, repo.ErrDuplicate
		}
	}
	c := repo.Cidadao{ID: arg.ID, Nome: arg.Nome, Email: arg.Email, SenhaHash: arg.SenhaHash, CPF: arg.CPF, Telefone: arg.Telefone, Cidade: arg.Endereco.Cidade, UF: arg.Endereco.UF, CEP: arg.Endereco.CEP, Ativo: true}
	s.cidadaos[c.ID] = c
	return c, nil
}

func (s *stubAuthRepo) UpdateCidadaoSenha(ctx context.Context, id uuid.UUID, senhaHash string) error {
	c, ok := s.cidadaos[id]
	if !ok {
		return repo.ErrNotFound
	}
	c.SenhaHash = senhaHash
	s.cidadaos[id] = c
	return nil
}

func (s *stubAuthRepo) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error) {
	if t, ok := s.tokens[tokenHash]; ok {
		return t, nil
	}
	return repo.TokenRefresh{}, repo.ErrNotFound
}

func (s *stubAuthRepo) InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error) {
	s.refreshCalls++
	t := repo.TokenRefresh{
		ID:        arg.ID,
		Subject:   arg.Subject,
		Audience:  arg.Audience,
		TokenHash: arg.TokenHash,
		Expiracao: arg.Expiracao,
		CriadoEm:  arg.CriadoEm,
	}
	s.tokens[arg.TokenHash] = t
	return t, nil
}

func (s *stubAuthRepo) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error {
	for h, t := range s.tokens {
		if t.Subject == subject && t.Audience == audience && h != keepHash {
			t.Revogado = true
			s.tokens[h] = t
		}
	}
	return nil
}

func (s *stubAuthRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	t, ok := s.tokens[tokenHash]
	if !ok {
		return repo.ErrNotFound
	}
	t.Revogado = true
	s.tokens[tokenHash] = t
	return nil
}

func (s *stubAuthRepo) RevokeAllRefreshTokens(ctx context.Context, subject uuid.UUID) ([]repo.TokenRefresh, error) {
	s.revokedAll = append(s.revokedAll, subject)
	var out []repo.TokenRefresh
	for h, t := range s.tokens {
		if t.Subject == subject && !t.Revogado {
			t.Revogado = true
			s.tokens[h] = t
			out = append(out, t)
		}
	}
	return out, nil
}

type stubRedis struct {
	store map[string]string
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if s.store == nil {
		s.store = make(map[string]string)
	}
	s.store[key] = fmt.Sprint(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := s.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := s.store[key]; ok {
			delete(s.store, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

type captureNotifier struct {
	msgs []notify.Message
}

func (c *captureNotifier) Notify(_ context.Context, m notify.Message) error {
	c.msgs = append(c.msgs, m)
	return nil
}

type harness struct {
	svc      *AuthService
	repo     *stubAuthRepo
	redis    *stubRedis
	notifier *captureNotifier
	events   []Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{repo: newStubAuthRepo(), redis: &stubRedis{}, notifier: &captureNotifier{}}
	hub := NewEventHub()
	hub.Subscribe(func(_ context.Context, e Event) { h.events = append(h.events, e) })
	h.svc = NewAuthService(h.repo, h.redis, auth.NewJWTManager(strings.Repeat("a", 32), time.Minute), AuthOptions{
		RefreshTTL: time.Hour,
		ResetTTL:   time.Hour,
		ResetURL:   "https://portal.example.com/reset-password",
		Notifier:   h.notifier,
		Events:     hub,
	})
	return h
}

func (h *harness) addAdmin(t *testing.T, email, password, role string, perms ...repo.Permissao) repo.Usuario {
	t.Helper()
	hash, err := auth.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := repo.Usuario{ID: uuid.New(), Nome: "Servidor", Email: email, SenhaHash: hash, Role: role, Ativo: true}
	h.repo.usuarios[u.ID] = u
	for _, p := range perms {
		p.UsuarioID = u.ID
		h.repo.permissoes[u.ID] = append(h.repo.permissoes[u.ID], p)
	}
	return u
}

func (h *harness) countEvents(typ AuthEvent) int {
	n := 0
	for _, e := range h.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestLoginAdminBuildsProfileWithPermissions(t *testing.T) {
	h := newHarness(t)
	u := h.addAdmin(t, "ana@prefeitura.gov.br", "SenhaForte123!", "gestor", repo.Permissao{Modulo: "compras", PodeLer: true, PodeCriar: true})

	result, err := h.svc.Login(context.Background(), "ANA@prefeitura.gov.br", "SenhaForte123!", identity.KindAdmin)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Subject != u.ID || result.Kind != identity.KindAdmin {
		t.Fatalf("resultado inesperado: %+v", result)
	}
	if !identity.HasPermission(result.User, "compras", identity.ActionCreate) {
		t.Fatal("esperava permissão de criação em compras")
	}
	if identity.HasPermission(result.User, "rh", identity.ActionRead) {
		t.Fatal("não deveria ler rh")
	}
	if h.redis.store[auth.RefreshRedisKey("admin", result.RefreshHash)] != "active" {
		t.Fatal("refresh não marcado como ativo no redis")
	}

	claims, err := h.svc.JWT().ParseAndValidate(result.AccessToken)
	if err != nil || claims.Kind != identity.KindAdmin || claims.Role != "gestor" {
		t.Fatalf("claims inesperadas: %+v %v", claims, err)
	}
	if h.countEvents(EventSignedIn) != 1 {
		t.Fatalf("esperava um SIGNED_IN, eventos: %v", h.events)
	}
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	h := newHarness(t)
	u := h.addAdmin(t, "bia@prefeitura.gov.br", "SenhaForte123!", "gestor")
	weak, err := argon2id.CreateHash("SenhaForte123!", &argon2id.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("CreateHash: %v", err)
	}
	u.SenhaHash = weak
	h.repo.usuarios[u.ID] = u

	if _, err := h.svc.Login(context.Background(), u.Email, "SenhaForte123!", identity.KindAdmin); err != nil {
		t.Fatalf("login: %v", err)
	}
	stored := h.repo.usuarios[u.ID].SenhaHash
	if stored == weak || auth.NeedsRehash(stored) {
		t.Fatal("hash não foi atualizado")
	}
	if ok, _ := auth.Verify("SenhaForte123!", stored); !ok {
		t.Fatal("novo hash não confere")
	}
}

func TestLoginRejectsWrongPasswordAndUnknownEmail(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(t, "ana@prefeitura.gov.br", "SenhaForte123!", "gestor")

	_, err := h.svc.Login(context.Background(), "ana@prefeitura.gov.br", "errada123", identity.KindAdmin)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	_, err = h.svc.Login(context.Background(), "ninguem@prefeitura.gov.br", "SenhaForte123!", identity.KindAdmin)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	_, err = h.svc.Login(context.Background(), "ana@prefeitura.gov.br", "SenhaForte123!", identity.KindCitizen)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("servidor não deveria entrar como cidadão: %v", err)
	}
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	h := newHarness(t)
	u := h.addAdmin(t, "ana@prefeitura.gov.br", "SenhaForte123!", "gestor")
	u.Ativo = false
	h.repo.usuarios[u.ID] = u

	_, err := h.svc.Login(context.Background(), "ana@prefeitura.gov.br", "SenhaForte123!", identity.KindAdmin)
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestRegisterCitizenValidatesCPFAndDuplicates(t *testing.T) {
	h := newHarness(t)
	in := RegisterInput{Nome: "Maria", Email: "maria@example.com", Password: "SenhaForte123!", CPF: "529.982.247-25", Endereco: identity.Endereco{Cidade: "Zabelê", UF: "pb", CEP: "58515-000"}}

	result, err := h.svc.Register(context.Background(), in, identity.KindCitizen)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.User.Citizen == nil || result.User.Citizen.CPF != "52998224725" || result.User.Citizen.Endereco.UF != "PB" {
		t.Fatalf("perfil inesperado: %+v", result.User.Citizen)
	}

	if _, err := h.svc.Register(context.Background(), in, identity.KindCitizen); !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("esperava ErrEmailInUse, obtive %v", err)
	}

	bad := in
	bad.Email = "outra@example.com"
	bad.CPF = "111.111.111-11"
	if _, err := h.svc.Register(context.Background(), bad, identity.KindCitizen); err == nil {
		t.Fatal("esperava erro de CPF")
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(t, "ana@prefeitura.gov.br", "SenhaForte123!", "gestor")

	first, err := h.svc.Login(context.Background(), "ana@prefeitura.gov.br", "SenhaForte123!", identity.KindAdmin)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	second, err := h.svc.Refresh(context.Background(), identity.KindAdmin, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh deveria ser rotacionado")
	}
	if _, ok := h.redis.store[auth.RefreshRedisKey("admin", first.RefreshHash)]; ok {
		t.Fatal("marcador antigo deveria ter sido removido")
	}

	if _, err := h.svc.Refresh(context.Background(), identity.KindAdmin, first.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("refresh antigo deveria ser rejeitado: %v", err)
	}
	if _, err := h.svc.Refresh(context.Background(), identity.KindCitizen, second.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("kind divergente deveria ser rejeitado: %v", err)
	}
	if h.countEvents(EventTokenRefreshed) != 1 {
		t.Fatalf("esperava um TOKEN_REFRESHED: %v", h.events)
	}
}

func TestResolveProfileWithoutProfileRevokesAndSignsOut(t *testing.T) {
	h := newHarness(t)
	ghost := uuid.New()
	h.repo.tokens["h1"] = repo.TokenRefresh{Subject: ghost, Audience: "admin", TokenHash: "h1", Expiracao: time.Now().Add(time.Hour)}
	h.redis.store = map[string]string{auth.RefreshRedisKey("admin", "h1"): "active"}

	user, err := h.svc.ResolveProfile(context.Background(), ghost)
	if !errors.Is(err, ErrProfileNotFound) || user != nil {
		t.Fatalf("esperava ErrProfileNotFound, obtive %v %v", user, err)
	}
	if len(h.repo.revokedAll) != 1 || h.repo.revokedAll[0] != ghost {
		t.Fatalf("sessões não revogadas: %v", h.repo.revokedAll)
	}
	if len(h.redis.store) != 0 {
		t.Fatalf("marcadores redis não removidos: %v", h.redis.store)
	}
	if h.countEvents(EventSignedOut) != 1 {
		t.Fatalf("esperava exatamente um SIGNED_OUT: %v", h.events)
	}
}

func TestResolveProfileFallsBackToCitizen(t *testing.T) {
	h := newHarness(t)
	c := repo.Cidadao{ID: uuid.New(), Nome: "João", Email: "joao@example.com", Ativo: true}
	h.repo.cidadaos[c.ID] = c

	user, err := h.svc.ResolveProfile(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ResolveProfile: %v", err)
	}
	if user.Kind != identity.KindCitizen || user.Citizen.ID != c.ID {
		t.Fatalf("perfil inesperado: %+v", user)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	u := h.addAdmin(t, "ana@prefeitura.gov.br", "SenhaForte123!", "gestor")

	if err := h.svc.RequestPasswordReset(context.Background(), "ana@prefeitura.gov.br"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if len(h.notifier.msgs) != 1 || h.notifier.msgs[0].To != "ana@prefeitura.gov.br" {
		t.Fatalf("link não enviado: %+v", h.notifier.msgs)
	}
	text := h.notifier.msgs[0].Text
	idx := strings.Index(text, "token=")
	if idx < 0 {
		t.Fatalf("link sem token: %s", text)
	}
	token := text[idx+len("token="):]

	if err := h.svc.ConfirmPasswordReset(context.Background(), token, "NovaSenha456!"); err != nil {
		t.Fatalf("ConfirmPasswordReset: %v", err)
	}
	if _, err := h.svc.Login(context.Background(), "ana@prefeitura.gov.br", "NovaSenha456!", identity.KindAdmin); err != nil {
		t.Fatalf("login com nova senha: %v", err)
	}
	if err := h.svc.ConfirmPasswordReset(context.Background(), token, "OutraSenha789!"); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("token deveria ser de uso único: %v", err)
	}
	if h.countEvents(EventPasswordRecovery) != 1 || h.countEvents(EventUserUpdated) != 1 {
		t.Fatalf("eventos inesperados: %v", h.events)
	}
	_ = u
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	h := newHarness(t)
	if err := h.svc.RequestPasswordReset(context.Background(), "ninguem@example.com"); err != nil {
		t.Fatalf("não deveria revelar e-mail desconhecido: %v", err)
	}
	if len(h.notifier.msgs) != 0 {
		t.Fatal("nenhum aviso deveria ser enviado")
	}
}

func TestUpdatePasswordValidates(t *testing.T) {
	h := newHarness(t)
	u := h.addAdmin(t, "ana@prefeitura.gov.br", "SenhaForte123!", "gestor")

	if err := h.svc.UpdatePassword(context.Background(), identity.KindAdmin, u.ID, "curta"); err == nil {
		t.Fatal("esperava erro de validação")
	}
	if err := h.svc.UpdatePassword(context.Background(), identity.KindAdmin, u.ID, "OutraSenha123!"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
}

func TestRBACAuthorize(t *testing.T) {
	h := newHarness(t)
	u := h.addAdmin(t, "ana@prefeitura.gov.br", "SenhaForte123!", "gestor", repo.Permissao{Modulo: "all", PodeLer: true})
	rbac := NewRBACService(h.svc)

	if _, err := rbac.Authorize(context.Background(), u.ID, ModuleSaude, identity.ActionRead); err != nil {
		t.Fatalf("leitura deveria ser permitida: %v", err)
	}
	if _, err := rbac.Authorize(context.Background(), u.ID, ModuleSaude, identity.ActionDelete); !errors.Is(err, ErrForbidden) {
		t.Fatalf("esperava ErrForbidden, obtive %v", err)
	}
}
