package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/digiurbis/portal/internal/http/middleware"
	"github.com/digiurbis/portal/internal/http/respond"
	"github.com/digiurbis/portal/internal/identity"
	"github.com/digiurbis/portal/internal/service"
)

type loginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

type registerRequest struct {
	Nome         string                `json:"nome"`
	Email        string                `json:"email"`
	Senha        string                `json:"senha"`
	CPF          string                `json:"cpf"`
	Telefone     string                `json:"telefone"`
	Endereco     identity.Endereco     `json:"endereco"`
	Role         string                `json:"role"`
	Departamento string                `json:"departamento"`
	Cargo        string                `json:"cargo"`
	Permissions  []identity.Permission `json:"permissions"`
}

func (req registerRequest) input() service.RegisterInput {
	return service.RegisterInput{
		Nome:         req.Nome,
		Email:        req.Email,
		Password:     req.Senha,
		CPF:          req.CPF,
		Telefone:     req.Telefone,
		Endereco:     req.Endereco,
		Role:         req.Role,
		Departamento: req.Departamento,
		Cargo:        req.Cargo,
		Permissions:  req.Permissions,
	}
}

// refreshRequest clientes sem cookie (CLI) mandam o refresh no corpo.
type refreshRequest struct {
	Tipo         string `json:"tipo"`
	RefreshToken string `json:"refresh_token"`
}

// Login autentica servidor (/auth/backoffice/login) ou cidadão (/auth/cidadao/login).
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	kind, ok := identity.ParseKind(chi.URLParam(r, "tipo"))
	if !ok {
		respond.Error(w, http.StatusNotFound, "NOT_FOUND", "tipo de perfil desconhecido", nil)
		return
	}

	var payload loginRequest
	if err := respond.Decode(r, &payload); err != nil {
		respond.Fail(w, r, err)
		return
	}
	if strings.TrimSpace(payload.Email) == "" || strings.TrimSpace(payload.Senha) == "" {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "email e senha são obrigatórios", nil)
		return
	}

	result, err := h.authService.Login(r.Context(), payload.Email, payload.Senha, kind)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// RegisterCidadao autocadastro do munícipe; já devolve sessão.
func (h *Handler) RegisterCidadao(w http.ResponseWriter, r *http.Request) {
	var payload registerRequest
	if err := respond.Decode(r, &payload); err != nil {
		respond.Fail(w, r, err)
		return
	}

	result, err := h.authService.Register(r.Context(), payload.input(), identity.KindCitizen)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusCreated, result)
}

// RegisterAdmin cadastro de servidor por quem tem usuarios/create. Não troca a sessão de quem chamou.
func (h *Handler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var payload registerRequest
	if err := respond.Decode(r, &payload); err != nil {
		respond.Fail(w, r, err)
		return
	}

	result, err := h.authService.Register(r.Context(), payload.input(), identity.KindAdmin)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, map[string]any{"user": result.User})
}

// Refresh rotaciona token de acesso.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	kind, token, err := getRefreshFromRequest(r)
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "AUTH", "refresh ausente", nil)
		return
	}

	result, err := h.authService.Refresh(r.Context(), kind, token)
	if err != nil {
		if errors.Is(err, service.ErrRefreshInvalid) {
			h.clearRefreshCookie(w, kind)
		}
		h.handleAuthError(w, r, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// Logout revoga refresh token atual.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if kind, token, err := getRefreshFromRequest(r); err == nil {
		if err := h.authService.Logout(r.Context(), kind, token); err != nil {
			respond.Fail(w, r, err)
			return
		}
	}

	h.clearRefreshCookie(w, identity.KindCitizen)
	h.clearRefreshCookie(w, identity.KindAdmin)
	respond.JSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// RequestPasswordReset responde igual para e-mails conhecidos ou não.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := respond.Decode(r, &payload); err != nil {
		respond.Fail(w, r, err)
		return
	}
	if err := h.authService.RequestPasswordReset(r.Context(), payload.Email); err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token string `json:"token"`
		Senha string `json:"senha"`
	}
	if err := respond.Decode(r, &payload); err != nil {
		respond.Fail(w, r, err)
		return
	}
	if err := h.authService.ConfirmPasswordReset(r.Context(), payload.Token, payload.Senha); err != nil {
		respond.Fail(w, r, err)
		return
	}
	h.clearRefreshCookie(w, identity.KindCitizen)
	h.clearRefreshCookie(w, identity.KindAdmin)
	respond.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// UpdatePassword troca a senha do usuário autenticado.
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Senha string `json:"senha"`
	}
	if err := respond.Decode(r, &payload); err != nil {
		respond.Fail(w, r, err)
		return
	}
	ctx := r.Context()
	if err := h.authService.UpdatePassword(ctx, middleware.GetKind(ctx), middleware.GetSubject(ctx), payload.Senha); err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Me devolve o perfil do token. Sem perfil a sessão é encerrada.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.ResolveProfile(r.Context(), middleware.GetSubject(r.Context()))
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			h.clearRefreshCookie(w, identity.KindCitizen)
			h.clearRefreshCookie(w, identity.KindAdmin)
		}
		h.handleAuthError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrRefreshInvalid):
		respond.Error(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case errors.Is(err, service.ErrProfileNotFound):
		respond.Error(w, http.StatusUnauthorized, "PROFILE_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, service.ErrAccountDisabled):
		respond.Error(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	default:
		respond.Fail(w, r, err)
	}
}

type loginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresAt    time.Time      `json:"expires_at"`
	User         *identity.User `json:"user"`
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, status int, result *service.LoginResult) {
	h.setRefreshCookie(w, result.Kind, result.RefreshToken, result.RefreshExpiry)

	respond.JSON(w, status, loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    result.AccessExpiry,
		User:         result.User,
	})
}

const (
	refreshCookieCidadao    = "cidadao"
	refreshCookieBackoffice = "backoffice"
)

func refreshCookieName(kind identity.Kind) string {
	if kind == identity.KindAdmin {
		return refreshCookieBackoffice
	}
	return refreshCookieCidadao
}

// getRefreshFromRequest cookie tem prioridade; sem cookie aceita o corpo JSON.
func getRefreshFromRequest(r *http.Request) (identity.Kind, string, error) {
	if c, err := r.Cookie(refreshCookieBackoffice); err == nil && c.Value != "" {
		return identity.KindAdmin, c.Value, nil
	}
	if c, err := r.Cookie(refreshCookieCidadao); err == nil && c.Value != "" {
		return identity.KindCitizen, c.Value, nil
	}
	if r.ContentLength == 0 {
		return "", "", errors.New("refresh ausente")
	}
	var payload refreshRequest
	if err := respond.Decode(r, &payload); err != nil {
		return "", "", err
	}
	kind, ok := identity.ParseKind(payload.Tipo)
	if !ok || payload.RefreshToken == "" {
		return "", "", errors.New("refresh ausente")
	}
	return kind, payload.RefreshToken, nil
}

func (h *Handler) cookieMode() (bool, http.SameSite) {
	if h.devCookies {
		return false, http.SameSiteLaxMode
	}
	return true, http.SameSiteNoneMode
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, kind identity.Kind, token string, expires time.Time) {
	secure, sameSite := h.cookieMode()
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName(kind),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter, kind identity.Kind) {
	secure, sameSite := h.cookieMode()
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName(kind),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}
