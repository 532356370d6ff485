package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const opaqueTokenBytes = 32

var ErrInvalidRefresh = errors.New("refresh token inválido")

// Tokens opacos: o cliente recebe o valor bruto e o servidor guarda só o hash.
func newOpaqueToken() (raw, hashed string, err error) {
	var buf [opaqueTokenBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", "", err
	}
	raw = base64.RawURLEncoding.EncodeToString(buf[:])
	return raw, HashRefreshToken(raw), nil
}

func GenerateRefreshToken() (raw, hashed string, err error) { return newOpaqueToken() }

// GenerateResetToken token de uso único para redefinição de senha.
func GenerateResetToken() (raw, hashed string, err error) { return newOpaqueToken() }

// HashRefreshToken sha256 em base64url; serve também para tokens de reset.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// RefreshRedisKey refresh:{audiência}:{hash}.
func RefreshRedisKey(audience, hash string) string {
	return "refresh:" + audience + ":" + hash
}

func ResetRedisKey(hash string) string {
	return "reset:" + hash
}
