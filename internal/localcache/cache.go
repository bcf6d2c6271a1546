// Package localcache persists session snapshots to a local SQLite file.
// It is a replication target, never a source of truth while the app runs:
// three fixed keys hold the product collection, the app settings, and the
// material price table. Missing or malformed snapshots are treated as
// "no data" and replaced by documented defaults.
package localcache

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/daoyee/daoyee-quote/internal/catalog"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	keyProducts       = "daoyee_products_v1"
	keySettings       = "daoyee_settings_v1"
	keyMaterialPrices = "daoyee_materials_v1"
)

// Cache is a key-value snapshot store backed by a SQLite file.
type Cache struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the cache file and applies migrations.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("localcache: open: %w", err)
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("localcache: set pragmas: %w", err)
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("localcache: set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("localcache: migrate: %w", err)
	}

	return &Cache{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// LoadProducts returns the last persisted product snapshot, or an empty
// collection when no usable snapshot exists.
func (c *Cache) LoadProducts() []catalog.Product {
	var products []catalog.Product
	if !c.load(keyProducts, &products) {
		return nil
	}
	return products
}

// SaveProducts persists the whole product collection snapshot.
func (c *Cache) SaveProducts(products []catalog.Product) error {
	if products == nil {
		products = []catalog.Product{}
	}
	return c.save(keyProducts, products)
}

// LoadMaterialPrices returns the persisted price table, or the default
// starting table when no usable snapshot exists.
func (c *Cache) LoadMaterialPrices() catalog.MaterialPrices {
	prices := catalog.DefaultMaterialPrices()
	if !c.load(keyMaterialPrices, &prices) {
		return catalog.DefaultMaterialPrices()
	}
	return prices
}

// SaveMaterialPrices persists the price table snapshot.
func (c *Cache) SaveMaterialPrices(prices catalog.MaterialPrices) error {
	return c.save(keyMaterialPrices, prices)
}

// LoadSettings returns the persisted app settings; the default has remote
// sync disabled.
func (c *Cache) LoadSettings() catalog.AppSettings {
	var settings catalog.AppSettings
	if !c.load(keySettings, &settings) {
		return catalog.AppSettings{}
	}
	return settings
}

// SaveSettings persists the app settings snapshot.
func (c *Cache) SaveSettings(settings catalog.AppSettings) error {
	return c.save(keySettings, settings)
}

// load decodes the snapshot under key into dest. It reports false when the
// key is absent or the payload does not decode; both are "no data", not
// errors.
func (c *Cache) load(key string, dest any) bool {
	var raw string
	err := c.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		c.logger.Warn("localcache read failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.logger.Warn("localcache snapshot malformed, using defaults", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (c *Cache) save(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("localcache: encode %s: %w", key, err)
	}
	_, err = c.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(raw), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("localcache: write %s: %w", key, err)
	}
	return nil
}
