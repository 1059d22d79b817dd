package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

const (
	operationCommit  = "commit"
	operationRestore = "restore"
)

// Reconciler moves order quantities between the stock and sale counters of the product ledger.
type Reconciler struct {
	products ports.ProductStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewReconciler(products ports.ProductStore, logger *slog.Logger, metrics *metrics.Metrics) *Reconciler {
	return &Reconciler{
		products: products,
		logger:   logger,
		metrics:  metrics,
	}
}

type line struct {
	productID string
	quantity  int
}

// Commit deducts every item from stock and adds it to sale. All products are checked before any is
// touched, so an InsufficientStockError leaves the ledger unchanged. If a write fails midway the
// products already adjusted are put back before the error is returned.
func (r *Reconciler) Commit(ctx context.Context, items []domain.Item) error {
	lines := aggregate(items)

	for _, l := range lines {
		level, err := r.products.GetStock(ctx, l.productID)
		if err != nil {
			r.metrics.RecordStockOperation(ctx, operationCommit, "error")
			return fmt.Errorf("read stock for product %s: %w", l.productID, err)
		}
		if level.Stock < l.quantity {
			r.metrics.RecordStockOperation(ctx, operationCommit, "insufficient")
			return &domain.InsufficientStockError{
				ProductID: l.productID,
				Available: level.Stock,
				Requested: l.quantity,
			}
		}
	}

	if err := r.deduct(ctx, lines); err != nil {
		result := "error"
		if errors.Is(err, domain.ErrInsufficientStock) {
			result = "insufficient"
		}
		r.metrics.RecordStockOperation(ctx, operationCommit, result)
		return err
	}

	r.metrics.RecordStockOperation(ctx, operationCommit, "success")
	return nil
}

// Restore returns every item to stock and takes it off sale, clamping sale at zero. Each product is
// adjusted on its own: a product that cannot be restored is logged and counted, and the rest still
// go back to stock.
func (r *Reconciler) Restore(ctx context.Context, items []domain.Item) {
	for _, l := range aggregate(items) {
		if _, err := r.products.AdjustStock(ctx, l.productID, l.quantity, -l.quantity); err != nil {
			r.metrics.RecordStockOperation(ctx, operationRestore, "error")
			r.logger.ErrorContext(ctx, "failed to restore stock",
				"product_id", l.productID,
				"quantity", l.quantity,
				"error", err,
			)
			continue
		}
		r.metrics.RecordStockOperation(ctx, operationRestore, "success")
	}
}

// deduct moves each line from stock to sale, putting back the lines already moved on failure.
func (r *Reconciler) deduct(ctx context.Context, lines []line) error {
	for i, l := range lines {
		_, err := r.products.AdjustStock(ctx, l.productID, -l.quantity, l.quantity)
		if err == nil {
			continue
		}

		for _, applied := range lines[:i] {
			if _, undoErr := r.products.AdjustStock(ctx, applied.productID, applied.quantity, -applied.quantity); undoErr != nil {
				r.logger.ErrorContext(ctx, "failed to compensate stock deduction",
					"product_id", applied.productID,
					"quantity", applied.quantity,
					"error", undoErr,
				)
			}
		}

		var stockErr *domain.InsufficientStockError
		if errors.As(err, &stockErr) {
			return err
		}
		return fmt.Errorf("commit stock for product %s: %w", l.productID, err)
	}
	return nil
}

// aggregate sums quantities per product, keeping first-seen order.
func aggregate(items []domain.Item) []line {
	index := make(map[string]int, len(items))
	lines := make([]line, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			lines[i].quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, line{productID: item.ProductID, quantity: item.Quantity})
	}
	return lines
}
