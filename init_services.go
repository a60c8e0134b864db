// Package main: Service katmanı başlatma.
//
// Sıralama kuralı: Auth → (REST client) → MessageCache → Messenger.
// REST client token'ı Auth'tan aldığı için Messenger ayrı bir adımda kurulur.
package main

import (
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/akinalp/dmsync/config"
	"github.com/akinalp/dmsync/services"
)

// Services, service instance'larını tutan container struct.
type Services struct {
	Auth         services.AuthService
	MessageCache *services.MessageCache
	Messenger    services.Messenger
}

func initServices(cfg *config.Config, repos *Repositories, clk clock.Clock) (*Services, error) {
	auth, err := services.NewTokenAuthService(cfg.Auth.Token, clk)
	if err != nil {
		return nil, fmt.Errorf("invalid MESSAGING_TOKEN: %w", err)
	}

	messageCache := services.NewMessageCache(repos.MessageCache, services.CacheOptions{
		MaxAge:           cfg.Cache.MaxAge,
		Window:           cfg.Cache.Window,
		MaxMessages:      cfg.Cache.MaxMessages,
		MaxConversations: cfg.Cache.MaxConversations,
	}, clk)

	return &Services{
		Auth:         auth,
		MessageCache: messageCache,
	}, nil
}

// initMessenger, transport bağımlılıkları hazır olduktan sonra Messenger'ı kurar.
func (s *Services) initMessenger(
	restClient services.ConversationAPI,
	conn services.Connection,
	cfg config.MessagingConfig,
	clk clock.Clock,
) {
	s.Messenger = services.NewMessenger(restClient, conn, s.Auth, s.MessageCache, services.MessengerConfig{
		PageSize:         cfg.PageSize,
		TypingIdle:       cfg.TypingIdle,
		MembersCacheTTL:  cfg.MembersCacheTTL,
		SendRateMax:      cfg.SendRateMax,
		SendRateWindow:   cfg.SendRateWindow,
		SendRateCooldown: cfg.SendRateCooldown,
	}, clk)
}
