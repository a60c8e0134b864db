// Package services, engine'in iş mantığı katmanını barındırır.
//
// Katmanlar:
//   - AuthService: oturum sahibi ve bearer token (login/refresh bu modülün dışında)
//   - Messenger: konuşma store'u, mesaj pager'ı, typing/presence takibi
//   - MessageCache: disk cache'in okuma/yazma politikası
//
// Service ASLA http.Request/Response bilmez. REST client'ı ve WebSocket
// bağlantısını interface'ler üzerinden kullanır.
package services

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"

	"github.com/akinalp/dmsync/models"
	"github.com/akinalp/dmsync/pkg"
)

// AuthService, engine'in auth'tan beklediği iki çağrı: "mevcut kullanıcı" ve "bearer token".
//
// CurrentUser nil dönerse oturum yoktur; engine idle kalır.
type AuthService interface {
	CurrentUser() *models.User
	BearerToken() string
}

// TokenAuthService, hazır verilen access token'dan kullanıcıyı çıkaran AuthService.
//
// Token'ın imzası doğrulanmaz (anahtar sunucudadır). Sadece claims okunur ve
// süresi dolmuş token reddedilir; sunucu zaten her istekte doğrular.
type TokenAuthService struct {
	mu     sync.RWMutex
	token  string
	claims *models.TokenClaims
	clock  clock.Clock
}

// NewTokenAuthService, token'dan AuthService oluşturur.
// Token parse edilemezse veya süresi dolmuşsa pkg.ErrUnauthorized ile sarılmış hata döner.
func NewTokenAuthService(token string, clk clock.Clock) (*TokenAuthService, error) {
	if clk == nil {
		clk = clock.New()
	}
	a := &TokenAuthService{clock: clk}
	if err := a.SetToken(token); err != nil {
		return nil, err
	}
	return a, nil
}

// SetToken, oturum token'ını değiştirir (ör: refresh sonrası veya kullanıcı değişiminde).
func (a *TokenAuthService) SetToken(token string) error {
	claims, err := parseTokenClaims(token, a.clock)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.token = token
	a.claims = claims
	a.mu.Unlock()
	return nil
}

func (a *TokenAuthService) CurrentUser() *models.User {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.claims == nil {
		return nil
	}
	return &models.User{
		ID:   a.claims.UserID,
		Name: a.claims.Username,
	}
}

func (a *TokenAuthService) BearerToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// parseTokenClaims, token'ı imza doğrulamadan parse eder.
// user_id claim'i yoksa "sub" kullanılır.
func parseTokenClaims(token string, clk clock.Clock) (*models.TokenClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", pkg.ErrUnauthorized)
	}

	claims := &models.TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: malformed token: %v", pkg.ErrUnauthorized, err)
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token has no user id", pkg.ErrUnauthorized)
	}

	if claims.ExpiresAt != nil && !clk.Now().Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: token expired at %s", pkg.ErrUnauthorized, claims.ExpiresAt.Time.Format("2006-01-02 15:04:05"))
	}

	return claims, nil
}
