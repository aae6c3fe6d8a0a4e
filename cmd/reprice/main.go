// Command reprice re-runs the pricing resolver over every stored order and
// reconciles its total. Intended for use after bulk catalog or rule changes.
package main

import (
	"context"
	"sync/atomic"

	"github.com/go-faster/errors"
	sdkapp "github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/washly/order-engine/internal/app"
	"github.com/washly/order-engine/internal/domain/order"
	"github.com/washly/order-engine/internal/storage/postgres"
)

func main() {
	sdkapp.Run(func(ctx context.Context, lg *zap.Logger, _ *sdkapp.Telemetry) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}

		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		svc := order.NewService(postgres.NewTxRunner(pool))

		ids, err := postgres.NewOrderRepository(pool).ListIDs(ctx)
		if err != nil {
			return errors.Wrap(err, "list orders")
		}
		lg.Info("Repricing orders",
			zap.Int("count", len(ids)),
			zap.Int("workers", cfg.Reprice.Workers),
		)

		var done atomic.Int64
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Reprice.Workers)
		for _, id := range ids {
			g.Go(func() error {
				if _, err := svc.Reprice(ctx, id); err != nil {
					return errors.Wrapf(err, "reprice order %s", id)
				}
				if n := done.Add(1); n%100 == 0 {
					lg.Info("Progress", zap.Int64("done", n))
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		lg.Info("Reprice completed", zap.Int64("orders", done.Load()))
		return nil
	})
}
