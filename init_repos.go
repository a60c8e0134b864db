// Package main: Repository katmanı başlatma.
//
// initRepositories, repository implementasyonlarını oluşturur.
// CACHE_ENCRYPTION_SECRET verilmişse cache payload'ları için anahtar burada türetilir.
package main

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/benbjohnson/clock"

	"github.com/akinalp/dmsync/config"
	"github.com/akinalp/dmsync/pkg/crypto"
	"github.com/akinalp/dmsync/repository"
)

// Repositories, repository instance'larını tutan container struct.
type Repositories struct {
	MessageCache repository.MessageCacheRepository
}

func initRepositories(db *sql.DB, cfg config.CacheConfig, clk clock.Clock) (*Repositories, error) {
	var key []byte
	if cfg.EncryptionSecret != "" {
		derived, err := crypto.DeriveKey(cfg.EncryptionSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to derive cache key: %w", err)
		}
		key = derived
		log.Println("[main] message cache encryption enabled")
	}

	return &Repositories{
		MessageCache: repository.NewSQLiteMessageCacheRepo(db, key, clk),
	}, nil
}
