// Package config, client daemon'ın tüm konfigürasyonunu merkezi olarak yönetir.
// Environment variable'lardan okur, .env dosyasını da destekler.
//
// Her alt bölüm ayrı bir struct'tır: REST API, WebSocket, auth, yerel cache,
// mesajlaşma davranışı ve debug sunucusu.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config, uygulamanın tüm konfigürasyon değerlerini taşır.
type Config struct {
	API       APIConfig
	WS        WSConfig
	Auth      AuthConfig
	Cache     CacheConfig
	Messaging MessagingConfig
	Debug     DebugConfig
}

// APIConfig, mesajlaşma sunucusunun REST ayarları.
type APIConfig struct {
	BaseURL string        // ör: http://localhost:9090
	Timeout time.Duration // tek bir REST isteği için üst sınır
}

// WSConfig, kalıcı WebSocket bağlantısı ayarları.
type WSConfig struct {
	URL               string        // ör: ws://localhost:9090/ws
	HeartbeatInterval time.Duration // client → server heartbeat sıklığı
	ReconnectMin      time.Duration // ilk yeniden bağlanma beklemesi
	ReconnectMax      time.Duration // exponential backoff tavanı
}

// AuthConfig, oturumun bearer token'ı.
// Login/refresh bu modülün dışında; token hazır olarak verilir.
type AuthConfig struct {
	Token string
}

// CacheConfig, konuşma başına tutulan disk cache ayarları.
type CacheConfig struct {
	Path             string        // SQLite dosya yolu
	MaxAge           time.Duration // kayıt bu süreden eskiyse yok sayılır (1 saat)
	Window           time.Duration // sadece bu süre içindeki mesajlar yazılır (5 gün)
	MaxMessages      int           // kayıt başına en fazla mesaj
	MaxConversations int           // toplam kayıt sayısı (LRU eviction)
	EncryptionSecret string        // boş değilse payload AES-GCM ile şifrelenir
}

// MessagingConfig, engine davranış ayarları.
type MessagingConfig struct {
	PageSize         int
	TypingIdle       time.Duration
	MembersCacheTTL  time.Duration
	SendRateMax      int // 0 = giden mesaj limiti kapalı
	SendRateWindow   time.Duration
	SendRateCooldown time.Duration
}

// DebugConfig, yerel debug HTTP sunucusu.
type DebugConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// Load, environment variable'lardan Config oluşturur.
// .env dosyası varsa önce onu yükler.
func Load() (*Config, error) {
	_ = godotenv.Load()

	p := &parser{}

	cfg := &Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(getEnv("API_URL", "http://localhost:9090"), "/"),
			Timeout: p.duration("API_TIMEOUT", "15s"),
		},
		WS: WSConfig{
			URL:               getEnv("WS_URL", "ws://localhost:9090/ws"),
			HeartbeatInterval: p.duration("WS_HEARTBEAT_INTERVAL", "30s"),
			ReconnectMin:      p.duration("WS_RECONNECT_MIN", "1s"),
			ReconnectMax:      p.duration("WS_RECONNECT_MAX", "30s"),
		},
		Auth: AuthConfig{
			Token: getEnv("MESSAGING_TOKEN", ""),
		},
		Cache: CacheConfig{
			Path:             getEnv("CACHE_PATH", "./data/dmsync-cache.db"),
			MaxAge:           p.duration("CACHE_MAX_AGE", "1h"),
			Window:           p.duration("CACHE_WINDOW", "120h"),
			MaxMessages:      p.integer("CACHE_MAX_MESSAGES", "200"),
			MaxConversations: p.integer("CACHE_MAX_CONVERSATIONS", "50"),
			EncryptionSecret: getEnv("CACHE_ENCRYPTION_SECRET", ""),
		},
		Messaging: MessagingConfig{
			PageSize:         p.integer("MESSAGE_PAGE_SIZE", "50"),
			TypingIdle:       p.duration("TYPING_IDLE", "2s"),
			MembersCacheTTL:  p.duration("MEMBERS_CACHE_TTL", "5m"),
			SendRateMax:      p.integer("SEND_RATE_MAX", "0"),
			SendRateWindow:   p.duration("SEND_RATE_WINDOW", "5s"),
			SendRateCooldown: p.duration("SEND_RATE_COOLDOWN", "15s"),
		},
		Debug: DebugConfig{
			Host:           getEnv("DEBUG_HOST", "127.0.0.1"),
			Port:           p.integer("DEBUG_PORT", "7071"),
			AllowedOrigins: splitList(getEnv("DEBUG_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
	}

	if p.err != nil {
		return nil, p.err
	}

	if cfg.Auth.Token == "" {
		return nil, fmt.Errorf("MESSAGING_TOKEN environment variable is required")
	}
	if cfg.Messaging.PageSize <= 0 {
		return nil, fmt.Errorf("MESSAGE_PAGE_SIZE must be positive, got %d", cfg.Messaging.PageSize)
	}
	if cfg.WS.ReconnectMin <= 0 || cfg.WS.ReconnectMax < cfg.WS.ReconnectMin {
		return nil, fmt.Errorf("WS_RECONNECT_MIN/WS_RECONNECT_MAX must satisfy 0 < min <= max")
	}

	return cfg, nil
}

// Addr, debug sunucusunun dinleyeceği adresi döner (ör: "127.0.0.1:7071").
func (c *DebugConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// parser, ilk parse hatasını tutar; Load sonunda tek seferde kontrol edilir.
type parser struct {
	err error
}

func (p *parser) duration(key, fallback string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return d
}

func (p *parser) integer(key, fallback string) int {
	n, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return n
}

// getEnv, environment variable'ı okur, yoksa fallback değeri döner.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
