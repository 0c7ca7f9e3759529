package app

import (
	"context"

	"github.com/gentanala/mes/internal/domain"
)

// syncStockLocked recomputes finished-good stock levels from the board and
// upserts them: active quantity at the packing stage counts as ready stock,
// sold quantity accumulates per SKU. Recomputing from the full snapshot
// keeps the levels idempotent no matter which transition ran. Caller holds
// the board lock.
func (s *Service) syncStockLocked(ctx context.Context, items []domain.KanbanItem) error {
	packingStageID := ""
	if packing, ok := s.blueprint.PackingStage(); ok {
		packingStageID = packing.ID
	}

	type tally struct {
		ready int
		sold  int
	}
	levels := map[string]tally{}
	for _, item := range items {
		if item.SKU == "" || item.IsAssemblyContainer() {
			continue
		}
		switch {
		case item.IsActive() && item.StageID == packingStageID:
			t := levels[item.SKU]
			t.ready += item.Quantity
			levels[item.SKU] = t
		case item.Status == domain.StatusSold:
			t := levels[item.SKU]
			t.sold += item.Quantity
			levels[item.SKU] = t
		}
	}

	// Zero out SKUs that no longer appear so stale ready counts clear.
	existing, err := s.repo.ListStockLevels(ctx)
	if err != nil {
		return err
	}
	for _, lvl := range existing {
		if _, ok := levels[lvl.SKU]; !ok && (lvl.ReadyQty != 0 || lvl.SoldQty != 0) {
			levels[lvl.SKU] = tally{}
		}
	}

	now := s.clock().UTC()
	for sku, t := range levels {
		if err := s.repo.UpsertStockLevel(ctx, StockLevel{
			SKU: sku, ReadyQty: t.ready, SoldQty: t.sold, UpdatedAt: now,
		}); err != nil {
			return err
		}
	}
	return nil
}
