package gateway

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/LuminLynx/misty/pkg/logger"
)

// CachedResponse is one stored response in a named cache.
type CachedResponse struct {
	Status      int
	ContentType string
	Body        []byte
	StoredAt    int64 // epoch millis
}

// CacheStorage is the durable backing for the gateway's named caches,
// mirroring the browser CacheStorage model: independent namespaces keyed
// by cache name, one entry per canonical URL, overwritten on store.
type CacheStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewCacheStorage creates gateway cache storage on the shared database.
func NewCacheStorage(db *sql.DB, log *logger.Logger) *CacheStorage {
	return &CacheStorage{
		db:     db,
		logger: log.Named("gateway-cache"),
	}
}

// Match returns the cached response for url in the named cache.
func (c *CacheStorage) Match(cacheName, url string) (*CachedResponse, bool, error) {
	var resp CachedResponse
	var contentType sql.NullString
	err := c.db.QueryRow(
		`SELECT status, content_type, body, stored_at FROM gateway_cache WHERE cache_name = ? AND url = ?`,
		cacheName, url,
	).Scan(&resp.Status, &contentType, &resp.Body, &resp.StoredAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("matching cache entry: %w", err)
	}
	resp.ContentType = contentType.String
	return &resp, true, nil
}

// Put stores (or overwrites) the response for url in the named cache.
func (c *CacheStorage) Put(cacheName, url string, resp *CachedResponse) error {
	_, err := c.db.Exec(
		`INSERT INTO gateway_cache (cache_name, url, status, content_type, body, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (cache_name, url) DO UPDATE SET
			status = excluded.status, content_type = excluded.content_type,
			body = excluded.body, stored_at = excluded.stored_at`,
		cacheName, url, resp.Status, resp.ContentType, resp.Body, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

// Names returns every cache namespace currently present.
func (c *CacheStorage) Names() ([]string, error) {
	rows, err := c.db.Query(`SELECT DISTINCT cache_name FROM gateway_cache`)
	if err != nil {
		return nil, fmt.Errorf("listing cache names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning cache name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete drops an entire cache namespace.
func (c *CacheStorage) Delete(cacheName string) error {
	_, err := c.db.Exec(`DELETE FROM gateway_cache WHERE cache_name = ?`, cacheName)
	if err != nil {
		return fmt.Errorf("deleting cache %s: %w", cacheName, err)
	}
	c.logger.Info("Deleted cache namespace", logger.String("cache", cacheName))
	return nil
}

// Count returns the number of entries in the named cache.
func (c *CacheStorage) Count(cacheName string) (int, error) {
	var n int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM gateway_cache WHERE cache_name = ?`, cacheName).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}
