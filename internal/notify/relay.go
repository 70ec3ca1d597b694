package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/bread-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/models/events"
)

// Relay publishes a DataChanged event for every signal on the hub until ctx
// is cancelled. Publish failures are logged and do not stop the relay.
func Relay(ctx context.Context, hub *Hub, publisher interfaces.EventPublisher, logger *zap.Logger) {
	sub := hub.Subscribe()
	defer sub.Close()

	logger = logger.With(zap.String("component", "notify-relay"))
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.C:
			if !ok {
				return
			}
			if err := publisher.Publish(ctx, events.NewDataChanged(time.Now().UTC())); err != nil {
				logger.Error("publish data changed", zap.Error(err))
				continue
			}
			logger.Debug("published data changed")
		}
	}
}
