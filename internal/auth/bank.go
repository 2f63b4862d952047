package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BankToken хранит в памяти bearer-токен банковского API.
type BankToken struct {
	mu    sync.RWMutex
	token string
}

// NewBankToken создает пустое хранилище банковского токена.
func NewBankToken() *BankToken {
	return &BankToken{}
}

// SetAccessToken заменяет текущий токен.
func (b *BankToken) SetAccessToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.token = token
}

// AccessToken возвращает текущий токен; пустая строка значит, что токена нет.
func (b *BankToken) AccessToken(context.Context) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.token, nil
}

// TokenIssuedAt читает claim iat из JWT без проверки подписи.
func TokenIssuedAt(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.IssuedAt == nil {
		return time.Time{}, false
	}

	return claims.IssuedAt.Time, true
}
