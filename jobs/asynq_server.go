package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/daoyee/daoyee-quote/internal/catalog"
)

// Worker wraps the Asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Processor *Processor
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Processor == nil {
		return nil, errors.New("worker: processor is required")
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskPushProduct, cfg.Processor.HandlePushProduct)
	mux.HandleFunc(TaskPushDelete, cfg.Processor.HandlePushDelete)
	mux.HandleFunc(TaskPushPrices, cfg.Processor.HandlePushPrices)
	mux.HandleFunc(TaskReprice, cfg.Processor.HandleReprice)

	return &Worker{server: srv, mux: mux, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueuePushProduct queues a remote product upsert, at most once.
func (c *Client) EnqueuePushProduct(ctx context.Context, p catalog.Product) (*asynq.TaskInfo, error) {
	task, err := NewPushProductTask(p)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(0))
}

// EnqueuePushDelete queues a remote product delete, at most once.
func (c *Client) EnqueuePushDelete(ctx context.Context, id string) (*asynq.TaskInfo, error) {
	task, err := NewPushDeleteTask(id)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(0))
}

// EnqueuePushPrices queues a remote price-table write, at most once.
func (c *Client) EnqueuePushPrices(ctx context.Context, prices catalog.MaterialPrices) (*asynq.TaskInfo, error) {
	task, err := NewPushPricesTask(prices)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(0))
}

// EnqueueReprice queues a catalog-wide repricing sweep.
func (c *Client) EnqueueReprice(ctx context.Context) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, NewRepriceTask(), asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Pusher adapts the queue client to the coordinator's push contract.
// Enqueue failures are logged and dropped, matching the at-most-once
// delivery of the in-process pusher.
type Pusher struct {
	client *Client
	logger *slog.Logger
}

// NewPusher wraps a queue client.
func NewPusher(client *Client, logger *slog.Logger) *Pusher {
	return &Pusher{client: client, logger: logger}
}

func (p *Pusher) PushProduct(prod catalog.Product) {
	if _, err := p.client.EnqueuePushProduct(context.Background(), prod); err != nil {
		p.logger.Error("enqueue push product", slog.Any("error", err))
	}
}

func (p *Pusher) PushDelete(id string) {
	if _, err := p.client.EnqueuePushDelete(context.Background(), id); err != nil {
		p.logger.Error("enqueue push delete", slog.Any("error", err))
	}
}

func (p *Pusher) PushPrices(prices catalog.MaterialPrices) {
	if _, err := p.client.EnqueuePushPrices(context.Background(), prices); err != nil {
		p.logger.Error("enqueue push prices", slog.Any("error", err))
	}
}
