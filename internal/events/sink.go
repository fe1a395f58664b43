// Package events delivers committed marketplace events to observers: the service log,
// a recent-events buffer, an indexer webhook and websocket subscribers.
package events

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"nft_marketplace/internal/marketplace"
)

// Fanout emits every event to each sink in order and joins their errors.
type Fanout []marketplace.EventSink

func (f Fanout) Emit(ctx context.Context, env marketplace.Envelope) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Emit(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes every event to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, env marketplace.Envelope) error {
	fields := []zap.Field{
		zap.String("event_id", env.ID),
		zap.Time("emitted_at", env.EmittedAt),
	}
	switch ev := env.Event.(type) {
	case marketplace.ItemListed:
		fields = append(fields, zap.Stringer("seller", ev.Seller), zap.Stringer("asset", ev.Key), zap.Stringer("price", ev.Price))
	case marketplace.ItemCanceled:
		fields = append(fields, zap.Stringer("seller", ev.Seller), zap.Stringer("asset", ev.Key))
	case marketplace.ItemBought:
		fields = append(fields, zap.Stringer("buyer", ev.Buyer), zap.Stringer("asset", ev.Key), zap.Stringer("price", ev.Price))
	}
	s.logger.Info(env.Event.EventName(), fields...)
	return nil
}
