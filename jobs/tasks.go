// Package jobs queues and processes remote catalog pushes over asynq.
//
// Push tasks are enqueued with MaxRetry(0): the local write is already the
// commit point, so a failed push is dropped and the divergence heals on the
// next successful push or remote reload. The reprice task is an explicit,
// operator-triggered catalog sweep.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/daoyee/daoyee-quote/internal/catalog"
	"github.com/daoyee/daoyee-quote/internal/pricing"
	"github.com/daoyee/daoyee-quote/internal/remote"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	TaskPushProduct = "catalog:push_product"
	TaskPushDelete  = "catalog:push_delete"
	TaskPushPrices  = "catalog:push_prices"
	TaskReprice     = "catalog:reprice"
)

// PushProductPayload carries the full product document to upsert remotely.
type PushProductPayload struct {
	Product catalog.Product `json:"product"`
}

// PushDeletePayload identifies the product to delete remotely.
type PushDeletePayload struct {
	ID string `json:"id"`
}

// PushPricesPayload carries the full price table to write remotely.
type PushPricesPayload struct {
	Prices catalog.MaterialPrices `json:"prices"`
}

// NewPushProductTask constructs an Asynq task.
func NewPushProductTask(p catalog.Product) (*asynq.Task, error) {
	data, err := json.Marshal(PushProductPayload{Product: p})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPushProduct, data), nil
}

// NewPushDeleteTask constructs an Asynq task.
func NewPushDeleteTask(id string) (*asynq.Task, error) {
	data, err := json.Marshal(PushDeletePayload{ID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPushDelete, data), nil
}

// NewPushPricesTask constructs an Asynq task.
func NewPushPricesTask(prices catalog.MaterialPrices) (*asynq.Task, error) {
	data, err := json.Marshal(PushPricesPayload{Prices: prices})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPushPrices, data), nil
}

// NewRepriceTask constructs an Asynq task.
func NewRepriceTask() *asynq.Task {
	return asynq.NewTask(TaskReprice, nil)
}

// RemoteStore is the document-store surface the processor needs.
// *remote.Store implements it.
type RemoteStore interface {
	FetchProducts(ctx context.Context) ([]catalog.Product, error)
	SaveProduct(ctx context.Context, p catalog.Product) error
	SaveProducts(ctx context.Context, products []catalog.Product) error
	DeleteProduct(ctx context.Context, id string) error
	FetchMaterialPrices(ctx context.Context) (*catalog.MaterialPrices, error)
	SaveMaterialPrices(ctx context.Context, prices catalog.MaterialPrices) error
}

// Notifier announces remote collection changes. *remote.Notifier implements
// it.
type Notifier interface {
	Publish(ctx context.Context, channel string) error
}

// Processor executes catalog tasks against the remote store.
type Processor struct {
	logger   *slog.Logger
	store    RemoteStore
	notifier Notifier
}

// NewProcessor wires the task handlers.
func NewProcessor(logger *slog.Logger, store RemoteStore, notifier Notifier) *Processor {
	return &Processor{logger: logger, store: store, notifier: notifier}
}

// HandlePushProduct upserts the product remotely and announces the change.
func (p *Processor) HandlePushProduct(ctx context.Context, t *asynq.Task) error {
	var payload PushProductPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := p.store.SaveProduct(ctx, payload.Product); err != nil {
		return err
	}
	p.publish(ctx, remote.ChannelProducts)
	return nil
}

// HandlePushDelete deletes the product remotely and announces the change.
func (p *Processor) HandlePushDelete(ctx context.Context, t *asynq.Task) error {
	var payload PushDeletePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := p.store.DeleteProduct(ctx, payload.ID); err != nil {
		return err
	}
	p.publish(ctx, remote.ChannelProducts)
	return nil
}

// HandlePushPrices writes the price table remotely and announces the change.
func (p *Processor) HandlePushPrices(ctx context.Context, t *asynq.Task) error {
	var payload PushPricesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := p.store.SaveMaterialPrices(ctx, payload.Prices); err != nil {
		return err
	}
	p.publish(ctx, remote.ChannelMaterials)
	return nil
}

// HandleReprice re-derives material amounts for every remote product against
// the remote price table and saves the ones that changed. One notification is
// published when anything changed.
func (p *Processor) HandleReprice(ctx context.Context, t *asynq.Task) error {
	prices, err := p.store.FetchMaterialPrices(ctx)
	if err != nil {
		return err
	}
	if prices == nil {
		table := catalog.DefaultMaterialPrices()
		prices = &table
	}

	products, err := p.store.FetchProducts(ctx)
	if err != nil {
		return err
	}

	var repriced []catalog.Product
	for _, prod := range products {
		costs, changed := pricing.ReconcileMaterials(prod.Costs, *prices)
		if !changed {
			continue
		}
		prod.Costs = costs
		prod.UpdatedAt = catalog.NowMillis()
		repriced = append(repriced, prod)
	}
	if len(repriced) > 0 {
		// One transaction: the sweep lands whole or not at all.
		if err := p.store.SaveProducts(ctx, repriced); err != nil {
			return err
		}
		p.publish(ctx, remote.ChannelProducts)
	}
	p.logger.Info("catalog reprice complete", slog.Int("repriced", len(repriced)))
	return nil
}

func (p *Processor) publish(ctx context.Context, channel string) {
	if err := p.notifier.Publish(ctx, channel); err != nil {
		p.logger.Warn("publish change notification",
			slog.String("channel", channel), slog.Any("error", err))
	}
}
