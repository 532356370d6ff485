package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/digiurbis/portal/internal/http/middleware"
	"github.com/digiurbis/portal/internal/http/respond"
	"github.com/digiurbis/portal/internal/repo"
	"github.com/digiurbis/portal/internal/util"
)

var errPasskeySession = errors.New("sessão não encontrada")

// PasskeyRegisterStart inicia o cadastro de biometria do servidor autenticado.
func (h *Handler) PasskeyRegisterStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetSubject(ctx)

	waUser, err := h.loadWebAuthnUser(ctx, userID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(waUser.WebAuthnCredentials()))
	for _, cred := range waUser.WebAuthnCredentials() {
		exclusions = append(exclusions, cred.Descriptor())
	}

	selection := protocol.AuthenticatorSelection{UserVerification: protocol.VerificationRequired}

	opts, sessionData, err := h.webauthn.BeginRegistration(
		waUser,
		webauthn.WithExclusions(exclusions),
		webauthn.WithAuthenticatorSelection(selection),
	)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	sessionID := uuid.NewString()
	if err := h.storeWebauthnSession(ctx, passkeyRegisterSessionPrefix, sessionID, sessionData, userID); err != nil {
		respond.Fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"session": sessionID,
		"options": map[string]any{"publicKey": opts.Response},
	})
}

func (h *Handler) PasskeyRegisterFinish(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "session ausente", nil)
		return
	}

	ctx := r.Context()
	sessionData, userID, err := h.consumeWebauthnSession(ctx, passkeyRegisterSessionPrefix, sessionID)
	if err != nil || userID != middleware.GetSubject(ctx) {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "sessão inválida ou expirada", nil)
		return
	}

	waUser, err := h.loadWebAuthnUser(ctx, userID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}

	creationResponse, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "resposta inválida", nil)
		return
	}

	credential, err := h.webauthn.CreateCredential(waUser, *sessionData, creationResponse)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	transports := make([]string, 0, len(credential.Transport))
	for _, transport := range credential.Transport {
		transports = append(transports, string(transport))
	}

	if _, err := h.passkeys.InsertPasskey(ctx, repo.PasskeyCredential{
		UsuarioID:    userID,
		CredentialID: credential.ID,
		PublicKey:    credential.PublicKey,
		SignCount:    int64(credential.Authenticator.SignCount),
		AAGUID:       credential.Authenticator.AAGUID,
		Transports:   transports,
	}); err != nil {
		respond.Fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (h *Handler) PasskeyLoginStart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := respond.Decode(r, &payload); err != nil {
		respond.Fail(w, r, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "email é obrigatório", nil)
		return
	}

	ctx := r.Context()
	user, err := h.passkeys.GetUsuarioByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respond.Error(w, http.StatusUnauthorized, "AUTH", "biometria não configurada", nil)
			return
		}
		respond.Fail(w, r, err)
		return
	}

	waUser, err := h.loadWebAuthnUser(ctx, user.ID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	if len(waUser.credentials) == 0 {
		respond.Error(w, http.StatusUnauthorized, "AUTH", "biometria não configurada", nil)
		return
	}

	opts, sessionData, err := h.webauthn.BeginLogin(waUser)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	sessionID := uuid.NewString()
	if err := h.storeWebauthnSession(ctx, passkeyLoginSessionPrefix, sessionID, sessionData, user.ID); err != nil {
		respond.Fail(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"session": sessionID,
		"options": map[string]any{"publicKey": opts.Response},
	})
}

func (h *Handler) PasskeyLoginFinish(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "session ausente", nil)
		return
	}

	ctx := r.Context()
	sessionData, userID, err := h.consumeWebauthnSession(ctx, passkeyLoginSessionPrefix, sessionID)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "sessão inválida ou expirada", nil)
		return
	}

	user, err := h.passkeys.GetUsuarioByID(ctx, userID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}

	waUser, err := h.loadWebAuthnUser(ctx, user.ID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}

	assertionResponse, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "resposta inválida", nil)
		return
	}

	credential, err := h.webauthn.ValidateLogin(waUser, *sessionData, assertionResponse)
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
		return
	}

	stored, err := h.passkeys.GetPasskeyByCredentialID(ctx, credential.ID)
	if err != nil || stored.UsuarioID != user.ID {
		respond.Error(w, http.StatusUnauthorized, "AUTH", "credencial inválida", nil)
		return
	}

	if err := h.passkeys.UpdatePasskeyCounter(ctx, stored.ID, int64(credential.Authenticator.SignCount), util.Now()); err != nil {
		respond.Fail(w, r, err)
		return
	}

	result, err := h.authService.LoginAdminWithUser(ctx, user)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

type webauthnSessionEnvelope struct {
	Session *webauthn.SessionData `json:"session"`
	UserID  string                `json:"user_id"`
}

func (h *Handler) storeWebauthnSession(ctx context.Context, prefix, sessionID string, data *webauthn.SessionData, userID uuid.UUID) error {
	payload, err := json.Marshal(webauthnSessionEnvelope{Session: data, UserID: userID.String()})
	if err != nil {
		return err
	}
	return h.redis.Set(ctx, prefix+sessionID, payload, passkeySessionTTL).Err()
}

// consumeWebauthnSession lê e apaga; a sessão vale para uma única tentativa.
func (h *Handler) consumeWebauthnSession(ctx context.Context, prefix, sessionID string) (*webauthn.SessionData, uuid.UUID, error) {
	key := prefix + sessionID
	raw, err := h.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, uuid.Nil, errPasskeySession
		}
		return nil, uuid.Nil, err
	}
	_ = h.redis.Del(ctx, key)

	var envelope webauthnSessionEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, uuid.Nil, err
	}
	if envelope.Session == nil {
		return nil, uuid.Nil, errPasskeySession
	}
	userID, err := uuid.Parse(envelope.UserID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return envelope.Session, userID, nil
}

func (h *Handler) loadWebAuthnUser(ctx context.Context, userID uuid.UUID) (*webAuthnUser, error) {
	user, err := h.passkeys.GetUsuarioByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	passkeys, err := h.passkeys.ListPasskeys(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newWebAuthnUser(user, passkeys), nil
}

type webAuthnUser struct {
	id          uuid.UUID
	name        string
	displayName string
	credentials []webauthn.Credential
}

func newWebAuthnUser(user repo.Usuario, passkeys []repo.PasskeyCredential) *webAuthnUser {
	return &webAuthnUser{
		id:          user.ID,
		name:        user.Email,
		displayName: user.Nome,
		credentials: toWebauthnCredentials(passkeys),
	}
}

func (u *webAuthnUser) WebAuthnID() []byte {
	id := make([]byte, 16)
	copy(id, u.id[:])
	return id
}

func (u *webAuthnUser) WebAuthnName() string { return u.name }

func (u *webAuthnUser) WebAuthnDisplayName() string { return u.displayName }

func (u *webAuthnUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

func toWebauthnCredentials(passkeys []repo.PasskeyCredential) []webauthn.Credential {
	creds := make([]webauthn.Credential, 0, len(passkeys))
	for _, pk := range passkeys {
		cred := webauthn.Credential{
			ID:        append([]byte(nil), pk.CredentialID...),
			PublicKey: append([]byte(nil), pk.PublicKey...),
			Transport: toAuthenticatorTransports(pk.Transports),
		}
		cred.Authenticator.SignCount = uint32(pk.SignCount)
		if len(pk.AAGUID) > 0 {
			cred.Authenticator.AAGUID = append([]byte(nil), pk.AAGUID...)
		}
		creds = append(creds, cred)
	}
	return creds
}

func toAuthenticatorTransports(values []string) []protocol.AuthenticatorTransport {
	if len(values) == 0 {
		return nil
	}
	transports := make([]protocol.AuthenticatorTransport, 0, len(values))
	for _, value := range values {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "usb":
			transports = append(transports, protocol.USB)
		case "nfc":
			transports = append(transports, protocol.NFC)
		case "ble":
			transports = append(transports, protocol.BLE)
		case "internal":
			transports = append(transports, protocol.Internal)
		case "smart-card":
			transports = append(transports, protocol.SmartCard)
		case "hybrid", "cable":
			transports = append(transports, protocol.Hybrid)
		default:
			transports = append(transports, protocol.AuthenticatorTransport(value))
		}
	}
	return transports
}
