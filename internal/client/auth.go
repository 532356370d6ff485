package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/identity"
	"github.com/digiurbis/portal/internal/session"
)

type loginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresAt    time.Time      `json:"expires_at"`
	User         *identity.User `json:"user"`
}

func (r loginResponse) session() *session.Session {
	s := &session.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
	}
	if r.User != nil {
		s.Kind = r.User.Kind
		s.Subject = r.User.ID()
	}
	return s
}

// loginPath rótulos de rota aceitos pela API.
func loginPath(kind identity.Kind) string {
	if kind == identity.KindAdmin {
		return "/auth/backoffice/login"
	}
	return "/auth/cidadao/login"
}

// SignIn uma chamada, sem retry.
func (c *Client) SignIn(ctx context.Context, email, password string, kind identity.Kind) (*session.Session, *identity.User, error) {
	var out loginResponse
	if err := c.call(ctx, http.MethodPost, loginPath(kind), "", map[string]string{"email": email, "senha": password}, &out); err != nil {
		return nil, nil, err
	}
	s := out.session()
	c.UseSession(s)
	c.emit(session.EventSignedIn, s)
	return s, out.User, nil
}

// SignUp autocadastro de cidadão. Servidores usam RegisterAdmin com uma sessão autorizada.
func (c *Client) SignUp(ctx context.Context, data session.RegisterData, kind identity.Kind) (*session.Session, *identity.User, error) {
	if kind != identity.KindCitizen {
		return nil, nil, apperr.New(apperr.Authorization, "FORBIDDEN", "cadastro de servidor exige permissão de usuários")
	}
	var out loginResponse
	if err := c.call(ctx, http.MethodPost, "/auth/cidadao/register", "", data, &out); err != nil {
		return nil, nil, err
	}
	s := out.session()
	c.UseSession(s)
	c.emit(session.EventSignedIn, s)
	return s, out.User, nil
}

// RegisterAdmin cadastra servidor usando a sessão atual (exige usuarios/create).
func (c *Client) RegisterAdmin(ctx context.Context, data session.RegisterData) (*identity.User, error) {
	var out struct {
		User *identity.User `json:"user"`
	}
	if err := c.Post(ctx, "/auth/admin/register", data, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// SignOut revoga o refresh no servidor e descarta a sessão local.
func (c *Client) SignOut(ctx context.Context, s *session.Session) error {
	var err error
	if s != nil && s.RefreshToken != "" {
		err = c.call(ctx, http.MethodPost, "/auth/logout", "", refreshBody(s), nil)
	}
	c.UseSession(nil)
	c.emit(session.EventSignedOut, nil)
	return err
}

// GetSession renova a sessão guardada quando o access token venceu.
// Refresh recusado (autenticação) significa sem sessão, não erro.
func (c *Client) GetSession(ctx context.Context, stored *session.Session) (*session.Session, error) {
	if stored == nil || stored.AccessToken == "" {
		return nil, nil
	}
	if !stored.Expired(c.now()) {
		c.UseSession(stored)
		return stored, nil
	}
	renewed, err := c.refresh(ctx, stored)
	if err != nil {
		if apperr.CategoryOf(err) == apperr.Authentication || errors.Is(err, errNoRefresh) {
			c.UseSession(nil)
			return nil, nil
		}
		return nil, err
	}
	return renewed, nil
}

func (c *Client) refresh(ctx context.Context, s *session.Session) (*session.Session, error) {
	if s.RefreshToken == "" {
		return nil, errNoRefresh
	}
	var out loginResponse
	if err := c.call(ctx, http.MethodPost, "/auth/refresh", "", refreshBody(s), &out); err != nil {
		return nil, err
	}
	renewed := out.session()
	c.UseSession(renewed)
	c.emit(session.EventTokenRefreshed, renewed)
	return renewed, nil
}

func refreshBody(s *session.Session) map[string]string {
	return map[string]string{"tipo": string(s.Kind), "refresh_token": s.RefreshToken}
}

// FetchProfile consulta /me e devolve o perfil só quando é do tipo pedido.
func (c *Client) FetchProfile(ctx context.Context, s *session.Session, kind identity.Kind) (*identity.User, error) {
	if s == nil {
		return nil, session.ErrNoSession
	}
	var out struct {
		User *identity.User `json:"user"`
	}
	err := c.call(ctx, http.MethodGet, "/me", s.AccessToken, nil, &out)
	switch {
	case err == nil:
	case isProfileNotFound(err):
		return nil, nil
	default:
		return nil, err
	}
	if out.User == nil || out.User.Kind != kind || !out.User.Valid() {
		return nil, nil
	}
	return out.User, nil
}

func isProfileNotFound(err error) bool {
	e := apperr.Categorize(err)
	return e != nil && e.Code == "PROFILE_NOT_FOUND"
}

func (c *Client) ResetPassword(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPost, "/auth/password/reset", "", map[string]string{"email": email}, nil)
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return c.call(ctx, http.MethodPost, "/auth/password/confirm", "", map[string]string{"token": token, "senha": newPassword}, nil)
}

func (c *Client) UpdatePassword(ctx context.Context, s *session.Session, newPassword string) error {
	if s == nil {
		return session.ErrNoSession
	}
	if err := c.call(ctx, http.MethodPut, "/auth/password", s.AccessToken, map[string]string{"senha": newPassword}, nil); err != nil {
		return err
	}
	c.emit(session.EventUserUpdated, s)
	return nil
}
