package auth

import (
	"github.com/alexedwards/argon2id"
)

// Params parâmetros Argon2id para hashes novos (64 MB, 3 passadas).
var Params = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Hash gera hash no formato PHC; os parâmetros ficam no próprio hash.
func Hash(password string) (string, error) {
	return argon2id.CreateHash(password, Params)
}

// Verify lê os parâmetros do hash gravado, então hashes antigos continuam válidos.
func Verify(password, encodedHash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, encodedHash)
}

// NeedsRehash indica hash ilegível ou gravado com custo abaixo de Params.
func NeedsRehash(encodedHash string) bool {
	p, _, _, err := argon2id.DecodeHash(encodedHash)
	if err != nil {
		return true
	}
	return p.Memory < Params.Memory ||
		p.Iterations < Params.Iterations ||
		p.SaltLength < Params.SaltLength ||
		p.KeyLength < Params.KeyLength
}
