package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/akinalp/dmsync/database"
	"github.com/akinalp/dmsync/models"
	"github.com/akinalp/dmsync/pkg"
	"github.com/akinalp/dmsync/pkg/crypto"
)

// sqliteMessageCacheRepo, MessageCacheRepository interface'inin SQLite implementasyonu.
//
// encryptionKey nil değilse payload AES-256-GCM ile şifrelenir. AAD olarak
// conversation ID kullanılır; bir satırın payload'ı başka bir satıra
// kopyalanırsa Open başarısız olur.
type sqliteMessageCacheRepo struct {
	db            *sql.DB
	encryptionKey []byte
	clock         clock.Clock
}

// NewSQLiteMessageCacheRepo, constructor, interface döner.
// encryptionKey nil ise payload düz JSON olarak yazılır.
func NewSQLiteMessageCacheRepo(db *sql.DB, encryptionKey []byte, clk clock.Clock) MessageCacheRepository {
	if clk == nil {
		clk = clock.New()
	}
	return &sqliteMessageCacheRepo{db: db, encryptionKey: encryptionKey, clock: clk}
}

func (r *sqliteMessageCacheRepo) Get(ctx context.Context, conversationID string) (*models.CacheEntry, error) {
	var payload []byte
	var encrypted bool

	err := r.db.QueryRowContext(ctx,
		`SELECT payload, encrypted FROM message_cache WHERE conversation_id = ?`,
		conversationID,
	).Scan(&payload, &encrypted)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if encrypted {
		if r.encryptionKey == nil {
			return nil, fmt.Errorf("cache entry for %s is encrypted but no key is configured", conversationID)
		}
		payload, err = crypto.Open(payload, r.encryptionKey, []byte(conversationID))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt cache entry: %w", err)
		}
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}

	// accessed_at güncellemesi best-effort; okuma sonucu bundan etkilenmez.
	if _, err := r.db.ExecContext(ctx,
		`UPDATE message_cache SET accessed_at = ? WHERE conversation_id = ?`,
		r.now(), conversationID,
	); err != nil {
		return &entry, fmt.Errorf("failed to touch cache entry: %w", err)
	}

	return &entry, nil
}

func (r *sqliteMessageCacheRepo) Put(ctx context.Context, conversationID string, entry models.CacheEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	encrypted := false
	if r.encryptionKey != nil {
		payload, err = crypto.Seal(payload, r.encryptionKey, []byte(conversationID))
		if err != nil {
			return fmt.Errorf("failed to encrypt cache entry: %w", err)
		}
		encrypted = true
	}

	// Upsert: konuşma başına tek satır, her yazım öncekini tamamen ezer.
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO message_cache (conversation_id, payload, encrypted, message_count, captured_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			payload       = excluded.payload,
			encrypted     = excluded.encrypted,
			message_count = excluded.message_count,
			captured_at   = excluded.captured_at,
			accessed_at   = excluded.accessed_at`,
		conversationID, payload, encrypted, len(entry.Messages), entry.Timestamp, r.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}

	return nil
}

func (r *sqliteMessageCacheRepo) Delete(ctx context.Context, conversationID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM message_cache WHERE conversation_id = ?`, conversationID,
	); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (r *sqliteMessageCacheRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM message_cache`); err != nil {
		return fmt.Errorf("failed to clear message cache: %w", err)
	}
	return nil
}

func (r *sqliteMessageCacheRepo) EvictLRU(ctx context.Context, maxEntries int) (int, error) {
	if maxEntries <= 0 {
		return 0, nil
	}

	var evicted int64
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		// En son erişilen maxEntries satır kalır, geri kalanı silinir.
		// Eşit accessed_at durumunda conversation_id ile sıralama kararlı olur.
		res, err := tx.ExecContext(ctx, `
			DELETE FROM message_cache
			WHERE conversation_id NOT IN (
				SELECT conversation_id FROM message_cache
				ORDER BY accessed_at DESC, conversation_id DESC
				LIMIT ?
			)`, maxEntries)
		if err != nil {
			return err
		}
		evicted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to evict cache entries: %w", err)
	}

	return int(evicted), nil
}

func (r *sqliteMessageCacheRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM message_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// now, accessed_at için unix milisaniye.
func (r *sqliteMessageCacheRepo) now() int64 {
	return r.clock.Now().UnixMilli()
}
