package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/auth"
	"github.com/digiurbis/portal/internal/http/respond"
	"github.com/digiurbis/portal/internal/identity"
)

type contextKey string

const (
	ContextKeySubject contextKey = "subject"
	ContextKeyKind    contextKey = "kind"
	ContextKeyRole    contextKey = "role"
	ContextKeyUser    contextKey = "user"
)

// Auth valida JWT de acesso e injeta claims no contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				respond.Error(w, http.StatusUnauthorized, "AUTH", "token ausente", nil)
				return
			}

			claims, err := jwtManager.ParseAndValidate(parts[1])
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "AUTH", "token inválido", nil)
				return
			}

			subject, err := claims.SubjectID()
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
				return
			}
			kind, ok := identity.ParseKind(string(claims.Kind))
			if !ok || len(claims.Audience) == 0 || claims.Audience[0] != string(kind) {
				respond.Error(w, http.StatusUnauthorized, "AUTH", "audience inválida", nil)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, subject)
			ctx = context.WithValue(ctx, ContextKeyKind, kind)
			ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject recupera subject do contexto.
func GetSubject(ctx context.Context) uuid.UUID {
	val, _ := ctx.Value(ContextKeySubject).(uuid.UUID)
	return val
}

// GetKind recupera o tipo de perfil do token.
func GetKind(ctx context.Context) identity.Kind {
	val, _ := ctx.Value(ContextKeyKind).(identity.Kind)
	return val
}

// GetRole recupera papel do token.
func GetRole(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyRole).(string)
	return val
}

// WithUser guarda o perfil resolvido.
func WithUser(ctx context.Context, u *identity.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, u)
}

// GetUser perfil resolvido por RequirePermission, nil fora dessas rotas.
func GetUser(ctx context.Context) *identity.User {
	val, _ := ctx.Value(ContextKeyUser).(*identity.User)
	return val
}

// ActorID subject como ponteiro, para colunas de autoria.
func ActorID(ctx context.Context) *uuid.UUID {
	id := GetSubject(ctx)
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// RequireKind restringe a rota a um tipo de perfil.
func RequireKind(kinds ...identity.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := GetKind(r.Context())
			for _, k := range kinds {
				if current == k {
					next.ServeHTTP(w, r)
					return
				}
			}
			respond.Error(w, http.StatusForbidden, "FORBIDDEN", "acesso restrito", nil)
		})
	}
}

// Authorizer resolve o perfil e confere permissão de módulo.
type Authorizer interface {
	Authorize(ctx context.Context, subject uuid.UUID, moduleID string, action identity.Action) (*identity.User, error)
}

// RequirePermission exige permissão no módulo. A ação segue o método HTTP
// (GET lê, POST cria, PUT/PATCH editam, DELETE exclui).
func RequirePermission(authz Authorizer, moduleID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authz.Authorize(r.Context(), GetSubject(r.Context()), moduleID, ActionFor(r.Method))
			if err != nil {
				writeAuthzError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAction igual a RequirePermission com ação fixa.
func RequireAction(authz Authorizer, moduleID string, action identity.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authz.Authorize(r.Context(), GetSubject(r.Context()), moduleID, action)
			if err != nil {
				writeAuthzError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// ActionFor ação CRUD correspondente ao método.
func ActionFor(method string) identity.Action {
	switch method {
	case http.MethodPost:
		return identity.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return identity.ActionUpdate
	case http.MethodDelete:
		return identity.ActionDelete
	default:
		return identity.ActionRead
	}
}

func writeAuthzError(w http.ResponseWriter, r *http.Request, err error) {
	switch apperr.CategoryOf(err) {
	case apperr.Authorization:
		respond.Error(w, http.StatusForbidden, "FORBIDDEN", "sem permissão para este módulo", nil)
	case apperr.Authentication:
		respond.Error(w, http.StatusUnauthorized, "AUTH", "sessão sem perfil", nil)
	default:
		respond.Fail(w, r, err)
	}
}
