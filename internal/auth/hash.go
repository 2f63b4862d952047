package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashToken возвращает SHA-256 хэш банковского токена в hex-представлении.
// Сам токен в хранилище не попадает.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CompareTokenHash сравнивает сохраненный хэш с токеном в константное время.
func CompareTokenHash(hash, token string) bool {
	if hash == "" {
		return false
	}
	computed := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(computed)) == 1
}
