// Package syncer reconciles the in-memory catalog and material price table
// with a local persistent cache and an optional remote shared store.
//
// Every local write is a dual write: the local cache is written synchronously
// (failures are surfaced as warnings, never as errors) and, when remote sync
// is active, the change is pushed to the remote store best-effort. Remote
// change notifications trigger a full reload that replaces local state
// wholesale; the last snapshot wins and there is no field-level merge.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/daoyee/daoyee-quote/internal/catalog"
	"github.com/daoyee/daoyee-quote/internal/localcache"
	"github.com/daoyee/daoyee-quote/internal/pricing"
	"github.com/daoyee/daoyee-quote/internal/remote"
)

// ErrClosed is returned when an operation is attempted on a coordinator
// whose Close has already run.
var ErrClosed = errors.New("syncer: coordinator is closed")

// RemoteStore is the document-store surface the coordinator needs.
// *remote.Store implements it.
type RemoteStore interface {
	FetchProducts(ctx context.Context) ([]catalog.Product, error)
	SaveProduct(ctx context.Context, p catalog.Product) error
	DeleteProduct(ctx context.Context, id string) error
	FetchMaterialPrices(ctx context.Context) (*catalog.MaterialPrices, error)
	SaveMaterialPrices(ctx context.Context, prices catalog.MaterialPrices) error
}

// Subscription is a live change-notification registration.
type Subscription interface {
	Unsubscribe()
}

// Notifier publishes and subscribes to collection change notifications.
type Notifier interface {
	Publish(ctx context.Context, channel string) error
	Subscribe(ctx context.Context, channel string, fn func()) (Subscription, error)
}

// Pusher delivers best-effort writes to the remote store. Implementations
// must not block the caller and must swallow (log) failures: the local write
// is already the commit point.
type Pusher interface {
	PushProduct(p catalog.Product)
	PushDelete(id string)
	PushPrices(prices catalog.MaterialPrices)
}

// RemoteHandle bundles a dialed remote connection.
type RemoteHandle struct {
	Store    RemoteStore
	Notifier Notifier
	Close    func()
}

// Dialer opens a remote connection from the current settings.
type Dialer interface {
	Dial(ctx context.Context, settings catalog.AppSettings) (*RemoteHandle, error)
}

// Options configures Connect.
type Options struct {
	Logger *slog.Logger
	Store  *catalog.Store
	Local  *localcache.Cache
	// Dialer opens remote connections; defaults to the Postgres+redis dialer.
	Dialer Dialer
	// Pusher overrides the default in-process pusher (e.g. with the asynq
	// queue). Optional.
	Pusher Pusher
	// OnWarning receives user-facing warnings such as local cache write
	// failures. Optional; warnings are always logged regardless.
	OnWarning func(msg string)
	// PushTimeout bounds a single remote push. Defaults to 10s.
	PushTimeout time.Duration
}

// Coordinator owns the session state and its replication.
type Coordinator struct {
	logger    *slog.Logger
	store     *catalog.Store
	local     *localcache.Cache
	dialer    Dialer
	onWarning func(string)
	pushTO    time.Duration
	extPusher Pusher
	reloads   singleflight.Group

	mu        sync.RWMutex
	prices    catalog.MaterialPrices
	settings  catalog.AppSettings
	remote    *RemoteHandle
	subs      []Subscription
	subCancel context.CancelFunc
	pusher    Pusher
	closed    bool
}

// Connect loads initial state from the local cache and, when the persisted
// settings enable sync, brings up the remote connection and subscriptions.
// Remote initialization failure is reported through OnWarning and leaves the
// coordinator in local-only mode; it is not an error.
func Connect(ctx context.Context, opts Options) (*Coordinator, error) {
	if opts.Store == nil || opts.Local == nil {
		return nil, errors.New("syncer: store and local cache are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		logger:    logger,
		store:     opts.Store,
		local:     opts.Local,
		dialer:    opts.Dialer,
		onWarning: opts.OnWarning,
		pushTO:    opts.PushTimeout,
		extPusher: opts.Pusher,
	}
	if c.dialer == nil {
		c.dialer = &PostgresRedisDialer{Logger: logger}
	}
	if c.pushTO <= 0 {
		c.pushTO = 10 * time.Second
	}

	// Local cache populates initial state regardless of remote availability.
	c.store.ReplaceAll(c.local.LoadProducts())
	c.prices = c.local.LoadMaterialPrices()
	c.settings = c.local.LoadSettings()

	if c.settings.SyncEnabled {
		if err := c.initRemote(ctx); err != nil {
			c.warnf("remote sync unavailable, continuing in local-only mode")
			logger.Error("remote init", slog.Any("error", err))
		}
	}
	return c, nil
}

// initRemote dials the remote store and wires the two change-notification
// subscriptions. Caller holds no locks. ctx bounds the dial only: the
// subscriptions are owned by the coordinator and live until teardownRemote,
// not until the caller's (possibly request-scoped) context ends.
func (c *Coordinator) initRemote(ctx context.Context) error {
	handle, err := c.dialer.Dial(ctx, c.Settings())
	if err != nil {
		return err
	}

	subCtx, subCancel := context.WithCancel(context.Background())

	// The closures capture handle directly: a notification that fires before
	// c.remote is assigned must still hit the store it was subscribed against.
	subProducts, err := handle.Notifier.Subscribe(subCtx, remote.ChannelProducts, func() {
		c.reloadProducts(context.Background(), handle)
	})
	if err != nil {
		subCancel()
		handle.Close()
		return err
	}
	subMaterials, err := handle.Notifier.Subscribe(subCtx, remote.ChannelMaterials, func() {
		c.reloadMaterialPrices(context.Background(), handle)
	})
	if err != nil {
		subCancel()
		subProducts.Unsubscribe()
		handle.Close()
		return err
	}

	pusher := c.extPusher
	if pusher == nil {
		pusher = &directPusher{
			logger:   c.logger,
			remote:   handle.Store,
			notifier: handle.Notifier,
			timeout:  c.pushTO,
		}
	}

	c.mu.Lock()
	c.remote = handle
	c.subs = []Subscription{subProducts, subMaterials}
	c.subCancel = subCancel
	c.pusher = pusher
	c.mu.Unlock()

	c.logger.Info("remote sync active")
	return nil
}

// RemoteActive reports whether writes are currently being pushed remotely.
func (c *Coordinator) RemoteActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remote != nil
}

// Settings returns the current app settings.
func (c *Coordinator) Settings() catalog.AppSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// MaterialPrices returns the current shared price table.
func (c *Coordinator) MaterialPrices() catalog.MaterialPrices {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prices
}

// SaveProduct reconciles material-linked cost amounts against the current
// price table, upserts the product into the authoritative store, and dual
// writes the snapshot. The returned product carries the stamped timestamps
// and derived amounts.
func (c *Coordinator) SaveProduct(ctx context.Context, p catalog.Product) catalog.Product {
	p.Costs, _ = pricing.ReconcileMaterials(p.Costs, c.MaterialPrices())
	stored := c.store.Upsert(p)

	c.persistProducts()
	if pusher := c.currentPusher(); pusher != nil {
		pusher.PushProduct(stored)
	}
	return stored
}

// DeleteProduct removes the product locally and remotely. Deleting an absent
// id is a no-op and reports false.
func (c *Coordinator) DeleteProduct(ctx context.Context, id string) bool {
	removed := c.store.Delete(id)
	if !removed {
		return false
	}
	c.persistProducts()
	if pusher := c.currentPusher(); pusher != nil {
		pusher.PushDelete(id)
	}
	return true
}

// UpdateMaterialPrices replaces the shared price table. Stored products are
// not retroactively repriced; their material amounts are re-derived the next
// time they are saved (or by an explicit RepriceCatalog).
func (c *Coordinator) UpdateMaterialPrices(ctx context.Context, prices catalog.MaterialPrices) {
	c.mu.Lock()
	c.prices = prices
	c.mu.Unlock()

	if err := c.local.SaveMaterialPrices(prices); err != nil {
		c.cacheWriteFailed("material prices", err)
	}
	if pusher := c.currentPusher(); pusher != nil {
		pusher.PushPrices(prices)
	}
}

// RepriceCatalog re-derives material amounts for every stored product using
// the current price table and dual-writes the ones that changed. Returns the
// number of repriced products.
func (c *Coordinator) RepriceCatalog(ctx context.Context) int {
	prices := c.MaterialPrices()
	pusher := c.currentPusher()

	repriced := 0
	for _, p := range c.store.List() {
		costs, changed := pricing.ReconcileMaterials(p.Costs, prices)
		if !changed {
			continue
		}
		p.Costs = costs
		stored := c.store.Upsert(p)
		if pusher != nil {
			pusher.PushProduct(stored)
		}
		repriced++
	}
	if repriced > 0 {
		c.persistProducts()
	}
	return repriced
}

// Reconfigure persists new connection settings, tears down every existing
// subscription and remote client, and re-initializes from scratch.
func (c *Coordinator) Reconfigure(ctx context.Context, settings catalog.AppSettings) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	c.teardownRemote()

	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()

	if err := c.local.SaveSettings(settings); err != nil {
		c.cacheWriteFailed("settings", err)
	}
	if !settings.SyncEnabled {
		return nil
	}
	if err := c.initRemote(ctx); err != nil {
		c.warnf("remote sync unavailable, continuing in local-only mode")
		c.logger.Error("remote init", slog.Any("error", err))
		return err
	}
	return nil
}

// Close tears down subscriptions and remote clients. Safe to call twice.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.teardownRemote()
}

// reloadProducts replaces the whole in-memory collection and the local cache
// with the remote snapshot. Concurrent notifications coalesce into a single
// fetch. Failures are logged and swallowed: the previous state simply stays
// in place.
func (c *Coordinator) reloadProducts(ctx context.Context, handle *RemoteHandle) {
	_, _, _ = c.reloads.Do("products", func() (any, error) {
		snapshot, err := handle.Store.FetchProducts(ctx)
		if err != nil {
			c.logger.Error("remote reload products", slog.Any("error", err))
			return nil, nil
		}
		c.store.ReplaceAll(snapshot)
		c.persistProducts()
		c.logger.Info("applied remote product snapshot", slog.Int("count", len(snapshot)))
		return nil, nil
	})
}

// reloadMaterialPrices replaces the shared price table with the remote
// document.
func (c *Coordinator) reloadMaterialPrices(ctx context.Context, handle *RemoteHandle) {
	prices, err := handle.Store.FetchMaterialPrices(ctx)
	if err != nil {
		c.logger.Error("remote reload material prices", slog.Any("error", err))
		return
	}
	if prices == nil {
		return
	}
	c.mu.Lock()
	c.prices = *prices
	c.mu.Unlock()
	if err := c.local.SaveMaterialPrices(*prices); err != nil {
		c.cacheWriteFailed("material prices", err)
	}
}

func (c *Coordinator) teardownRemote() {
	c.mu.Lock()
	subs := c.subs
	handle := c.remote
	cancel := c.subCancel
	c.subs = nil
	c.remote = nil
	c.subCancel = nil
	c.pusher = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	if handle != nil && handle.Close != nil {
		handle.Close()
	}
}

func (c *Coordinator) currentPusher() Pusher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pusher
}

// persistProducts writes the current collection snapshot to the local cache.
// A failure is a warning, never an error: the user keeps working with the
// correct in-memory copy.
func (c *Coordinator) persistProducts() {
	if err := c.local.SaveProducts(c.store.List()); err != nil {
		c.cacheWriteFailed("products", err)
	}
}

func (c *Coordinator) cacheWriteFailed(what string, err error) {
	c.logger.Error("local cache write failed", slog.String("snapshot", what), slog.Any("error", err))
	c.warnf("could not persist " + what + " to the local cache; data is kept in memory only")
}

func (c *Coordinator) warnf(msg string) {
	if c.onWarning != nil {
		c.onWarning(msg)
	}
}

// directPusher pushes writes from a goroutine, one per write. At most once:
// failures are logged and never retried; the next successful push or remote
// reload repairs divergence.
type directPusher struct {
	logger   *slog.Logger
	remote   RemoteStore
	notifier Notifier
	timeout  time.Duration
}

func (d *directPusher) PushProduct(p catalog.Product) {
	go d.push(remote.ChannelProducts, "push product", func(ctx context.Context) error {
		return d.remote.SaveProduct(ctx, p)
	})
}

func (d *directPusher) PushDelete(id string) {
	go d.push(remote.ChannelProducts, "push delete", func(ctx context.Context) error {
		return d.remote.DeleteProduct(ctx, id)
	})
}

func (d *directPusher) PushPrices(prices catalog.MaterialPrices) {
	go d.push(remote.ChannelMaterials, "push material prices", func(ctx context.Context) error {
		return d.remote.SaveMaterialPrices(ctx, prices)
	})
}

func (d *directPusher) push(channel, op string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		d.logger.Error("remote "+op, slog.Any("error", err))
		return
	}
	if err := d.notifier.Publish(ctx, channel); err != nil {
		d.logger.Warn("publish change notification", slog.String("channel", channel), slog.Any("error", err))
	}
}
