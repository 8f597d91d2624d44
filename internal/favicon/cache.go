// Package favicon is a content-addressed favicon cache keyed by bookmark
// origin. A record is only rewritten when the digest of a freshly fetched
// image differs from the stored one.
package favicon

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/nikbrunner/bmsync/internal/logging"
	"github.com/nikbrunner/bmsync/internal/storage"
)

// Record is a cached favicon. Hash is always the digest of Blob.
type Record struct {
	Hash []byte `json:"hash"`
	Blob []byte `json:"blob"`
}

// NewRecord builds a record for blob.
func NewRecord(blob []byte) Record {
	return Record{Hash: Digest(blob), Blob: blob}
}

// DataURL renders the blob as a data: URL, sniffing its content type.
func (r Record) DataURL() string {
	return "data:" + http.DetectContentType(r.Blob) + ";base64," + base64.StdEncoding.EncodeToString(r.Blob)
}

// Digest returns the SHA-256 digest of blob.
func Digest(blob []byte) []byte {
	sum := sha256.Sum256(blob)
	return sum[:]
}

// SameHash compares two digests through their lowercase hex form. Digests of
// different length are never equal.
func SameHash(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return hex.EncodeToString(a) == hex.EncodeToString(b)
}

// Config configures a Cache.
type Config struct {
	Store   storage.Store
	Fetcher Fetcher
	Logger  *zerolog.Logger
}

// Cache stores favicons in the favicon namespace of a Store.
type Cache struct {
	store   storage.Store
	fetcher Fetcher
	log     zerolog.Logger
}

// NewCache creates a cache.
func NewCache(cfg Config) *Cache {
	return &Cache{
		store:   cfg.Store,
		fetcher: cfg.Fetcher,
		log:     logging.OrNop(cfg.Logger).With().Str("component", "favicon").Logger(),
	}
}

// Get returns the record stored for origin.
func (c *Cache) Get(ctx context.Context, origin string) (Record, bool, error) {
	data, ok, err := c.store.Get(ctx, storage.NamespaceFavicon, origin)
	if err != nil || !ok {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("favicon: decode %s: %w", origin, err)
	}
	return rec, true, nil
}

// Origins lists every cached origin.
func (c *Cache) Origins(ctx context.Context) ([]string, error) {
	return c.store.Keys(ctx, storage.NamespaceFavicon)
}

// Clear drops every cached favicon.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx, storage.NamespaceFavicon); err != nil {
		return fmt.Errorf("favicon: clear: %w", err)
	}
	return nil
}

// Refresh fetches the favicon of origin and stores it unless the stored
// record already has the same digest. It reports whether a write happened.
// Failures are logged, never returned.
func (c *Cache) Refresh(ctx context.Context, origin string) bool {
	log := c.log.With().Str("origin", origin).Logger()

	blob, err := c.fetcher.Fetch(ctx, origin)
	if err != nil {
		log.Warn().Err(err).Msg("favicon fetch failed")
		return false
	}
	rec := NewRecord(blob)

	stored, ok, err := c.Get(ctx, origin)
	if err != nil {
		// An unreadable record is replaced.
		log.Warn().Err(err).Msg("stored favicon unreadable")
	}
	if ok && SameHash(stored.Hash, rec.Hash) {
		log.Debug().Msg("favicon unchanged")
		return false
	}

	data, err := json.Marshal(rec)
	if err != nil {
		log.Error().Err(err).Msg("favicon encode failed")
		return false
	}
	if err := c.store.Set(ctx, storage.NamespaceFavicon, origin, data); err != nil {
		log.Error().Err(err).Msg("favicon write failed")
		return false
	}
	log.Debug().Int("bytes", len(blob)).Msg("favicon stored")
	return true
}
