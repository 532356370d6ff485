package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/auth"
	"github.com/digiurbis/portal/internal/identity"
	"github.com/digiurbis/portal/internal/notify"
	"github.com/digiurbis/portal/internal/repo"
	"github.com/digiurbis/portal/internal/util"
)

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = apperr.New(apperr.Authentication, "AUTH", "credenciais inválidas")
	// ErrAccountDisabled indica conta desativada.
	ErrAccountDisabled = apperr.New(apperr.Authorization, "FORBIDDEN", "conta desativada")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = apperr.New(apperr.Authentication, "AUTH", "refresh token inválido")
	// ErrProfileNotFound sessão válida sem perfil de servidor nem de cidadão.
	ErrProfileNotFound = apperr.New(apperr.Authentication, "PROFILE_NOT_FOUND", "perfil não encontrado")
	// ErrResetInvalid token de redefinição inválido ou expirado.
	ErrResetInvalid = apperr.New(apperr.Validation, "VALIDATION", "link de redefinição inválido ou expirado")
	// ErrEmailInUse e-mail ou CPF já cadastrado.
	ErrEmailInUse = apperr.New(apperr.Validation, "CONFLICT", "e-mail ou CPF já cadastrado")
)

type authRepository interface {
	GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error)
	GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
	InsertUsuario(ctx context.Context, arg repo.InsertUsuarioParams) (repo.Usuario, error)
	UpdateUsuarioSenha(ctx context.Context, id uuid.UUID, senhaHash string) error
	ListPermissoes(ctx context.Context, usuarioID uuid.UUID) ([]repo.Permissao, error)
	UpsertPermissao(ctx context.Context, p repo.Permissao) error
	GetCidadaoByEmail(ctx context.Context, email string) (repo.Cidadao, error)
	GetCidadaoByID(ctx context.Context, id uuid.UUID) (repo.Cidadao, error)
	InsertCidadao(ctx context.Context, arg repo.InsertCidadaoParams) (repo.Cidadao, error)
	UpdateCidadaoSenha(ctx context.Context, id uuid.UUID, senhaHash string) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error)
	InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error)
	InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, subject uuid.UUID) ([]repo.TokenRefresh, error)
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthOptions parâmetros de sessão e redefinição de senha.
type AuthOptions struct {
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	ResetURL   string
	Notifier   notify.Notifier
	Events     *EventHub
}

// AuthService concentra regras de autenticação e sessões.
type AuthService struct {
	repo       authRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
	resetTTL   time.Duration
	resetURL   string
	notifier   notify.Notifier
	events     *EventHub
}

// NewAuthService cria novo serviço.
func NewAuthService(r authRepository, redisClient redisCommander, jwtMgr *auth.JWTManager, opts AuthOptions) *AuthService {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	if opts.Events == nil {
		opts.Events = NewEventHub()
	}
	return &AuthService{
		repo:       r,
		redis:      redisClient,
		jwt:        jwtMgr,
		refreshTTL: opts.RefreshTTL,
		resetTTL:   opts.ResetTTL,
		resetURL:   opts.ResetURL,
		notifier:   opts.Notifier,
		events:     opts.Events,
	}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// Events hub de eventos de sessão.
func (s *AuthService) Events() *EventHub {
	return s.events
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	Kind          identity.Kind
	AccessToken   string
	RefreshToken  string
	Subject       uuid.UUID
	User          *identity.User
	RefreshHash   string
	RefreshExpiry time.Time
	AccessExpiry  time.Time
}

// RegisterInput dados de cadastro. Campos de servidor são ignorados para cidadãos e vice-versa.
type RegisterInput struct {
	Nome         string
	Email        string
	Password     string
	CPF          string
	Telefone     string
	Endereco     identity.Endereco
	Role         string
	Departamento string
	Cargo        string
	Permissions  []identity.Permission
}

// Login autentica servidor ou cidadão conforme kind.
func (s *AuthService) Login(ctx context.Context, email, password string, kind identity.Kind) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	switch kind {
	case identity.KindAdmin:
		user, err := s.repo.GetUsuarioByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				log.Warn().Msg("login servidor: usuário não encontrado")
				return nil, ErrInvalidCredentials
			}
			return nil, err
		}
		if err := checkPassword(password, user.SenhaHash); err != nil {
			log.Warn().Msg("login servidor: senha inválida")
			return nil, err
		}
		s.rehash(ctx, user.SenhaHash, password, func(ctx context.Context, hash string) error {
			return s.repo.UpdateUsuarioSenha(ctx, user.ID, hash)
		})
		return s.LoginAdminWithUser(ctx, user)
	case identity.KindCitizen:
		cidadao, err := s.repo.GetCidadaoByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				log.Warn().Msg("login cidadão: usuário não encontrado")
				return nil, ErrInvalidCredentials
			}
			return nil, err
		}
		if err := checkPassword(password, cidadao.SenhaHash); err != nil {
			log.Warn().Msg("login cidadão: senha inválida")
			return nil, err
		}
		s.rehash(ctx, cidadao.SenhaHash, password, func(ctx context.Context, hash string) error {
			return s.repo.UpdateCidadaoSenha(ctx, cidadao.ID, hash)
		})
		return s.loginCitizen(ctx, cidadao)
	default:
		return nil, apperr.Invalid("tipo de perfil desconhecido")
	}
}

// LoginAdminWithUser emite sessão para um servidor já autenticado (senha ou passkey).
func (s *AuthService) LoginAdminWithUser(ctx context.Context, user repo.Usuario) (*LoginResult, error) {
	if !user.Ativo {
		return nil, ErrAccountDisabled
	}
	perms, err := s.repo.ListPermissoes(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	u := &identity.User{Kind: identity.KindAdmin, Admin: user.ToProfile(perms)}
	return s.issue(ctx, u, user.Role, EventSignedIn)
}

func (s *AuthService) loginCitizen(ctx context.Context, c repo.Cidadao) (*LoginResult, error) {
	if !c.Ativo {
		return nil, ErrAccountDisabled
	}
	u := &identity.User{Kind: identity.KindCitizen, Citizen: c.ToProfile()}
	return s.issue(ctx, u, "", EventSignedIn)
}

// Register cadastra e já autentica.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, kind identity.Kind) (*LoginResult, error) {
	in.Nome = strings.TrimSpace(in.Nome)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := util.RequireString(in.Nome, "nome"); err != nil {
		return nil, apperr.Invalid("%s", err.Error())
	}
	if err := util.ValidateEmail(in.Email); err != nil {
		return nil, apperr.Invalid("%s", err.Error())
	}
	if err := util.ValidatePassword(in.Password); err != nil {
		return nil, apperr.Invalid("%s", err.Error())
	}

	hash, err := auth.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	switch kind {
	case identity.KindAdmin:
		role := strings.TrimSpace(in.Role)
		if role == "" {
			role = "servidor"
		}
		user, err := s.repo.InsertUsuario(ctx, repo.InsertUsuarioParams{
			ID:           util.NewID(),
			Nome:         in.Nome,
			Email:        in.Email,
			SenhaHash:    hash,
			Role:         role,
			Departamento: strings.TrimSpace(in.Departamento),
			Cargo:        strings.TrimSpace(in.Cargo),
		})
		if err != nil {
			return nil, duplicateAsInUse(err)
		}
		for _, p := range in.Permissions {
			if err := s.repo.UpsertPermissao(ctx, repo.Permissao{
				UsuarioID:   user.ID,
				Modulo:      p.ModuleID,
				PodeCriar:   p.Create,
				PodeLer:     p.Read,
				PodeEditar:  p.Update,
				PodeExcluir: p.Delete,
			}); err != nil {
				return nil, err
			}
		}
		return s.LoginAdminWithUser(ctx, user)
	case identity.KindCitizen:
		if err := util.ValidateCPF(in.CPF); err != nil {
			return nil, apperr.Invalid("%s", err.Error())
		}
		in.Endereco.CEP = util.OnlyDigits(in.Endereco.CEP)
		in.Endereco.UF = strings.ToUpper(strings.TrimSpace(in.Endereco.UF))
		cidadao, err := s.repo.InsertCidadao(ctx, repo.InsertCidadaoParams{
			ID:        util.NewID(),
			Nome:      in.Nome,
			Email:     in.Email,
			SenhaHash: hash,
			CPF:       util.OnlyDigits(in.CPF),
			Telefone:  util.OnlyDigits(in.Telefone),
			Endereco:  in.Endereco,
		})
		if err != nil {
			return nil, duplicateAsInUse(err)
		}
		return s.loginCitizen(ctx, cidadao)
	default:
		return nil, apperr.Invalid("tipo de perfil desconhecido")
	}
}

// Refresh troca refresh token por novos tokens.
func (s *AuthService) Refresh(ctx context.Context, kind identity.Kind, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	hash := auth.HashRefreshToken(rawToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	if record.Revogado || util.Now().After(record.Expiracao) || record.Audience != string(kind) {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshRedisKey(record.Audience, hash)
	status, err := s.redis.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}
	if status != "active" {
		return nil, ErrRefreshInvalid
	}

	var (
		user *identity.User
		role string
	)
	switch kind {
	case identity.KindAdmin:
		u, err := s.repo.GetUsuarioByID(ctx, record.Subject)
		if err != nil {
			return nil, err
		}
		if !u.Ativo {
			return nil, ErrAccountDisabled
		}
		perms, err := s.repo.ListPermissoes(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		user = &identity.User{Kind: kind, Admin: u.ToProfile(perms)}
		role = u.Role
	case identity.KindCitizen:
		c, err := s.repo.GetCidadaoByID(ctx, record.Subject)
		if err != nil {
			return nil, err
		}
		if !c.Ativo {
			return nil, ErrAccountDisabled
		}
		user = &identity.User{Kind: kind, Citizen: c.ToProfile()}
	default:
		return nil, ErrRefreshInvalid
	}

	result, err := s.issue(ctx, user, role, EventTokenRefreshed)
	if err != nil {
		return nil, err
	}

	// Revoga token anterior (DB + Redis)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	return result, nil
}

// Logout revoga refresh token atual.
func (s *AuthService) Logout(ctx context.Context, kind identity.Kind, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := auth.HashRefreshToken(rawToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if err := s.redis.Del(ctx, auth.RefreshRedisKey(string(kind), hash)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if record.Subject != uuid.Nil {
		s.events.Publish(ctx, EventSignedOut, record.Subject, kind)
	}
	return nil
}

// SignOutEverywhere revoga todas as sessões do subject.
func (s *AuthService) SignOutEverywhere(ctx context.Context, subject uuid.UUID) error {
	tokens, err := s.repo.RevokeAllRefreshTokens(ctx, subject)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(tokens))
	for _, t := range tokens {
		keys = append(keys, auth.RefreshRedisKey(t.Audience, t.TokenHash))
	}
	if len(keys) > 0 {
		if err := s.redis.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
	}
	s.events.Publish(ctx, EventSignedOut, subject, "")
	return nil
}

// ResolveProfile procura perfil de servidor e depois de cidadão. Sem nenhum dos dois
// todas as sessões do subject são revogadas e ErrProfileNotFound é devolvido.
func (s *AuthService) ResolveProfile(ctx context.Context, subject uuid.UUID) (*identity.User, error) {
	u, err := s.repo.GetUsuarioByID(ctx, subject)
	switch {
	case err == nil:
		perms, err := s.repo.ListPermissoes(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		return &identity.User{Kind: identity.KindAdmin, Admin: u.ToProfile(perms)}, nil
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}

	c, err := s.repo.GetCidadaoByID(ctx, subject)
	switch {
	case err == nil:
		return &identity.User{Kind: identity.KindCitizen, Citizen: c.ToProfile()}, nil
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}

	log.Warn().Str("subject", subject.String()).Msg("sessão sem perfil: revogando acesso")
	if err := s.SignOutEverywhere(ctx, subject); err != nil {
		log.Error().Err(err).Str("subject", subject.String()).Msg("falha ao revogar sessões sem perfil")
	}
	return nil, ErrProfileNotFound
}

// RequestPasswordReset envia link de redefinição. E-mails desconhecidos não geram erro.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := util.ValidateEmail(email); err != nil {
		return apperr.Invalid("%s", err.Error())
	}

	var (
		kind    identity.Kind
		subject uuid.UUID
	)
	if u, err := s.repo.GetUsuarioByEmail(ctx, email); err == nil {
		kind, subject = identity.KindAdmin, u.ID
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	} else if c, err := s.repo.GetCidadaoByEmail(ctx, email); err == nil {
		kind, subject = identity.KindCitizen, c.ID
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	if subject == uuid.Nil {
		log.Info().Msg("redefinição de senha solicitada para e-mail desconhecido")
		return nil
	}

	raw, hash, err := auth.GenerateResetToken()
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, auth.ResetRedisKey(hash), string(kind)+":"+subject.String(), s.resetTTL).Err(); err != nil {
		return err
	}

	link := s.resetLink(raw)
	if err := s.notifier.Notify(ctx, notify.Message{
		Title: "Redefinição de senha",
		Text:  "Use o link para definir uma nova senha: " + link,
		Level: notify.LevelInfo,
		To:    email,
	}); err != nil {
		log.Error().Err(err).Msg("falha ao enviar link de redefinição")
	}

	s.events.Publish(ctx, EventPasswordRecovery, subject, kind)
	return nil
}

// ConfirmPasswordReset troca a senha e encerra todas as sessões.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := util.ValidatePassword(newPassword); err != nil {
		return apperr.Invalid("%s", err.Error())
	}
	if strings.TrimSpace(token) == "" {
		return ErrResetInvalid
	}

	key := auth.ResetRedisKey(auth.HashRefreshToken(token))
	val, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrResetInvalid
	}
	if err != nil {
		return err
	}

	kindStr, subjectStr, ok := strings.Cut(val, ":")
	kind, kindOK := identity.ParseKind(kindStr)
	subject, parseErr := uuid.Parse(subjectStr)
	if !ok || !kindOK || parseErr != nil {
		return ErrResetInvalid
	}

	if err := s.setPassword(ctx, kind, subject, newPassword); err != nil {
		return err
	}
	if err := s.redis.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Msg("token de redefinição não removido")
	}
	return s.SignOutEverywhere(ctx, subject)
}

// UpdatePassword troca a senha do usuário autenticado.
func (s *AuthService) UpdatePassword(ctx context.Context, kind identity.Kind, subject uuid.UUID, newPassword string) error {
	if err := util.ValidatePassword(newPassword); err != nil {
		return apperr.Invalid("%s", err.Error())
	}
	return s.setPassword(ctx, kind, subject, newPassword)
}

func (s *AuthService) setPassword(ctx context.Context, kind identity.Kind, subject uuid.UUID, password string) error {
	hash, err := auth.Hash(password)
	if err != nil {
		return err
	}
	switch kind {
	case identity.KindAdmin:
		err = s.repo.UpdateUsuarioSenha(ctx, subject, hash)
	case identity.KindCitizen:
		err = s.repo.UpdateCidadaoSenha(ctx, subject, hash)
	default:
		return apperr.Invalid("tipo de perfil desconhecido")
	}
	if err != nil {
		return err
	}
	s.events.Publish(ctx, EventUserUpdated, subject, kind)
	return nil
}

func (s *AuthService) issue(ctx context.Context, user *identity.User, role string, evt AuthEvent) (*LoginResult, error) {
	subject := user.ID()
	token, _, err := s.jwt.GenerateAccessToken(subject.String(), user.Kind, role)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := util.Now()
	expires := now.Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, subject, string(user.Kind), refreshHash, expires); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, evt, subject, user.Kind)

	return &LoginResult{
		Kind:          user.Kind,
		AccessToken:   token,
		RefreshToken:  rawRefresh,
		Subject:       subject,
		User:          user,
		RefreshHash:   refreshHash,
		RefreshExpiry: expires,
		AccessExpiry:  now.Add(s.jwt.AccessTTL()),
	}, nil
}

func (s *AuthService) persistRefresh(ctx context.Context, subject uuid.UUID, audience, hash string, expires time.Time) error {
	_, err := s.repo.InsertRefreshToken(ctx, repo.InsertRefreshTokenParams{
		ID:        uuid.New(),
		Subject:   subject,
		Audience:  audience,
		TokenHash: hash,
		Expiracao: expires,
		CriadoEm:  util.Now(),
	})
	if err != nil {
		return err
	}

	if err := s.repo.InvalidateOtherRefreshTokens(ctx, subject, audience, hash); err != nil {
		return err
	}

	return s.redis.Set(ctx, auth.RefreshRedisKey(audience, hash), "active", time.Until(expires)).Err()
}

func (s *AuthService) resetLink(raw string) string {
	base := s.resetURL
	if base == "" {
		return raw
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Sprintf("%s?token=%s", base, url.QueryEscape(raw))
	}
	q := u.Query()
	q.Set("token", raw)
	u.RawQuery = q.Encode()
	return u.String()
}

// rehash regrava hashes com custo antigo depois de um login bem-sucedido. Falha só vai para o log.
func (s *AuthService) rehash(ctx context.Context, stored, password string, save func(context.Context, string) error) {
	if !auth.NeedsRehash(stored) {
		return
	}
	hash, err := auth.Hash(password)
	if err == nil {
		err = save(ctx, hash)
	}
	if err != nil {
		log.Warn().Err(err).Msg("rehash de senha falhou")
	}
}

func checkPassword(password, hash string) error {
	if hash == "" {
		return ErrInvalidCredentials
	}
	ok, err := auth.Verify(password, hash)
	if err != nil {
		log.Warn().Err(err).Msg("verify password failed")
		return ErrInvalidCredentials
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

func duplicateAsInUse(err error) error {
	if errors.Is(err, repo.ErrDuplicate) {
		return ErrEmailInUse
	}
	return err
}
