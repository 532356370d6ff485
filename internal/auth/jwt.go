package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/identity"
)

const (
	tokenIssuer = "digiurbis"
	clockSkew   = 30 * time.Second
)

// ErrInvalidToken cobre assinatura, expiração e claims inconsistentes.
var ErrInvalidToken = errors.New("token inválido")

// Claims do token de acesso. Audience repete Kind para que um token de cidadão
// nunca passe como servidor.
type Claims struct {
	Kind identity.Kind `json:"kind"`
	Role string        `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) SubjectID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// JWTManager emite e valida tokens HS256.
type JWTManager struct {
	key    []byte
	ttl    time.Duration
	parser *jwt.Parser
}

func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{
		key: []byte(secret),
		ttl: accessTTL,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockSkew),
		),
	}
}

func (m *JWTManager) AccessTTL() time.Duration { return m.ttl }

// GenerateAccessToken devolve o token assinado e seu jti.
func (m *JWTManager) GenerateAccessToken(subject string, kind identity.Kind, role string) (string, string, error) {
	issued := time.Now().UTC()
	id := uuid.NewString()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Kind: kind,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{string(kind)},
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(m.ttl)),
			ID:        id,
		},
	}).SignedString(m.key)
	if err != nil {
		return "", "", fmt.Errorf("assinar token: %w", err)
	}
	return signed, id, nil
}

// ParseAndValidate confere assinatura, emissor, expiração e o par kind/audience.
func (m *JWTManager) ParseAndValidate(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := m.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != identity.KindAdmin && claims.Kind != identity.KindCitizen {
		return nil, ErrInvalidToken
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != string(claims.Kind) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
