// Package remote implements the shared document store and its change
// notification channel. Products and the material price table live in two
// Postgres collections keyed by document id; every successful write is
// announced on a redis pub/sub channel so other clients can reload.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daoyee/daoyee-quote/internal/catalog"
	"github.com/daoyee/daoyee-quote/internal/platform/db"
)

// settingsKeyMaterialPrices is the fixed id of the price-table document in
// the settings collection.
const settingsKeyMaterialPrices = "material_prices"

// Store reads and writes whole documents in the shared Postgres store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the two collections when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS products (
			id  TEXT PRIMARY KEY,
			doc JSONB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS settings (
			id    TEXT PRIMARY KEY,
			value JSONB NOT NULL
		);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("remote: ensure schema: %w", err)
	}
	return nil
}

// FetchProducts loads the full product collection.
func (s *Store) FetchProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM products`)
	if err != nil {
		return nil, fmt.Errorf("remote: fetch products: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("remote: scan product: %w", err)
		}
		var p catalog.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("remote: decode product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("remote: fetch products: %w", err)
	}
	return products, nil
}

// SaveProduct upserts the full product record by id.
func (s *Store) SaveProduct(ctx context.Context, p catalog.Product) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("remote: encode product: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO products (id, doc) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`, p.ID, doc)
	if err != nil {
		return fmt.Errorf("remote: save product %s: %w", p.ID, err)
	}
	return nil
}

// SaveProducts upserts a batch of product records in one transaction, so a
// repricing sweep lands atomically or not at all.
func (s *Store) SaveProducts(ctx context.Context, products []catalog.Product) error {
	if len(products) == 0 {
		return nil
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, p := range products {
			doc, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("remote: encode product: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO products (id, doc) VALUES ($1, $2)
				ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
			`, p.ID, doc); err != nil {
				return fmt.Errorf("remote: save product %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// DeleteProduct removes the product record. Deleting an absent id succeeds.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("remote: delete product %s: %w", id, err)
	}
	return nil
}

// FetchMaterialPrices loads the shared price table, or nil when no document
// has been written yet.
func (s *Store) FetchMaterialPrices(ctx context.Context) (*catalog.MaterialPrices, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE id = $1`, settingsKeyMaterialPrices,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("remote: fetch material prices: %w", err)
	}
	var prices catalog.MaterialPrices
	if err := json.Unmarshal(raw, &prices); err != nil {
		return nil, fmt.Errorf("remote: decode material prices: %w", err)
	}
	return &prices, nil
}

// SaveMaterialPrices upserts the shared price table document.
func (s *Store) SaveMaterialPrices(ctx context.Context, prices catalog.MaterialPrices) error {
	value, err := json.Marshal(prices)
	if err != nil {
		return fmt.Errorf("remote: encode material prices: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO settings (id, value) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value
	`, settingsKeyMaterialPrices, value)
	if err != nil {
		return fmt.Errorf("remote: save material prices: %w", err)
	}
	return nil
}
