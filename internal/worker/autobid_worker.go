package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/auction-service/internal/events"
	"github.com/spec-kit/auction-service/internal/service"
)

// StartAutoBidWorker drains new-bid events into the auto-bid engine on one goroutine.
// The returned channel is closed once the worker has exited.
func StartAutoBidWorker(ctx context.Context, queue *events.Queue, engine *service.AutoBidEngine, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if queue == nil || engine == nil {
		close(done)
		return done
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	go func() {
		defer close(done)
		logger.Info("auto-bid worker started")
		queue.Consume(ctx, engine.HandleNewBidEvent, func(event events.Event, err error) {
			logger.Error("auto-bid cascade failed",
				zap.String("event_id", event.ID),
				zap.String("auction_id", event.AuctionID),
				zap.Error(err),
			)
		})
		logger.Info("auto-bid worker stopped")
	}()
	return done
}
