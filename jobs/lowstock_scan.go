package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/optica-erp/optica-erp/internal/catalog"
	"github.com/optica-erp/optica-erp/internal/shortage"
)

// CatalogPort exposes the low-stock query.
type CatalogPort interface {
	ListBelowMinimum(ctx context.Context) ([]catalog.LowStockProduct, error)
}

// ShortagePort raises shortage requests.
type ShortagePort interface {
	Raise(ctx context.Context, input shortage.RaiseInput) (shortage.Request, error)
}

// LowStockScanJob sweeps the catalog for products under their minimum stock
// and raises a shortage request per short product.
type LowStockScanJob struct {
	catalog   CatalogPort
	shortages ShortagePort
	logger    *slog.Logger
}

// NewLowStockScanJob constructs the job.
func NewLowStockScanJob(catalogPort CatalogPort, shortages ShortagePort, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{catalog: catalogPort, shortages: shortages, logger: logger}
}

// Handle processes TaskTypeLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	items, err := j.catalog.ListBelowMinimum(ctx)
	if err != nil {
		return fmt.Errorf("low stock scan: %w", err)
	}
	if len(items) == 0 {
		j.logger.Info("low stock scan clean")
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, item := range items {
		g.Go(func() error {
			_, err := j.shortages.Raise(ctx, shortage.RaiseInput{
				ProductID: item.ProductID,
				Quantity:  item.MinimumStock - item.OnHand,
				Reason:    fmt.Sprintf("stock bajo minimo: %s tiene %d de %d", item.Code, item.OnHand, item.MinimumStock),
				Urgent:    payload.RaiseUrgent,
				ActorID:   "system:lowstock",
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("low stock scan: %w", err)
	}
	j.logger.Info("low stock scan raised requests", slog.Int("count", len(items)))
	return nil
}
