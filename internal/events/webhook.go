package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"

	"nft_marketplace/internal/marketplace"
)

var (
	ErrQueueFull     = errors.New("webhook queue full")
	ErrWebhookClosed = errors.New("webhook closed")
)

// WebhookConfig configures delivery to an indexer endpoint.
type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	QueueSize  int
}

// Webhook posts events to an indexer as JSON, one request per event, in emission order.
// Emit only enqueues; a single worker delivers so ordering is kept.
type Webhook struct {
	cfg    WebhookConfig
	client *resty.Client
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	queue  chan marketplace.Envelope
	wg     sync.WaitGroup
}

// NewWebhook creates a Webhook. Call Start to begin delivery.
func NewWebhook(cfg WebhookConfig, logger *zap.Logger) *Webhook {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetHeader("Content-Type", "application/json")
	return &Webhook{
		cfg:    cfg,
		client: client,
		logger: logger,
		queue:  make(chan marketplace.Envelope, cfg.QueueSize),
	}
}

// Start runs the delivery worker until Close is called or ctx is done.
func (w *Webhook) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-w.queue:
				if !ok {
					return
				}
				if err := w.deliver(ctx, env); err != nil {
					w.logger.Error("webhook delivery failed",
						zap.String("event_id", env.ID),
						zap.String("url", w.cfg.URL),
						zap.Error(err),
					)
				}
			}
		}
	}()
}

func (w *Webhook) Emit(_ context.Context, env marketplace.Envelope) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWebhookClosed
	}
	select {
	case w.queue <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events, drains the queue and releases the HTTP client.
func (w *Webhook) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
	return w.client.Close()
}

func (w *Webhook) deliver(ctx context.Context, env marketplace.Envelope) error {
	res, err := w.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", env.ID).
		SetBody(env).
		Post(w.cfg.URL)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("indexer returned status %d", res.StatusCode())
	}
	return nil
}
