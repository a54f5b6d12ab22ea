package marketdata

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/logging"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
)

// DefaultPollInterval is used by AwaitOrder when no interval is given.
const DefaultPollInterval = time.Second

// AwaitOrder polls the order history until the order reaches a terminal
// state and returns the last observed entry. Each newly observed state must
// be a legal successor of the previous one; an illegal step is a SchemaError.
// Cancelling ctx stops polling and returns the last observation with the
// context error.
func (f *Facade) AwaitOrder(ctx context.Context, orderID string, interval time.Duration) (models.Order, error) {
	if orderID == "" {
		return models.Order{}, apperrors.NewValidationError("order_id", orderID, "order id is required")
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := f.current()
	logger := logging.WithOrderID(logging.WithProvider(f.logger, string(p.ID())), orderID)

	var (
		last     models.Order
		observed int
	)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		history, err := p.GetOrderHistory(ctx, orderID)
		if err != nil {
			return last, err
		}
		if observed > len(history) {
			observed = 0
		}
		for _, entry := range history[observed:] {
			if observed > 0 && !last.Status.CanTransition(entry.Status) {
				return entry, apperrors.NewSchemaError("order", "status",
					fmt.Sprintf("order %s moved %s -> %s", orderID, last.Status, entry.Status))
			}
			if observed == 0 || entry.Status != last.Status {
				logger.Debug().Str("status", string(entry.Status)).Str("raw_status", entry.RawStatus).Msg("order state observed")
			}
			last = entry
			observed++
		}
		if observed > 0 && last.Status.IsTerminal() {
			logging.LogOrder(logger, "settled", orderID, last.Instrument.Key(), string(last.Status))
			return last, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
