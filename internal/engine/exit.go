package engine

import (
	"fmt"
	"slices"

	"github.com/gentanala/mes/internal/domain"
)

// SellInput records a sale: the item exits the board through an exit stage
// with a sales channel and the realized price in minor currency units.
type SellInput struct {
	ItemID    string
	ToStageID string
	Channel   domain.SalesChannel
	Price     int64
}

// Sell moves the whole batch to the exit stage and marks it sold. Sold items
// keep their id, channel, and price so sales reporting reads straight off
// the item collection.
func (e *Engine) Sell(ctx Context, items []domain.KanbanItem, in SellInput) (Result, error) {
	idx, err := findActive(items, in.ItemID)
	if err != nil {
		return Result{}, err
	}
	item := items[idx]

	stage, err := ctx.requireStage(in.ToStageID)
	if err != nil {
		return Result{}, err
	}
	if stage.LogicType != domain.LogicExit {
		return Result{}, fmt.Errorf("stage %q is not an exit stage: %w", stage.Name, domain.ErrInvalidStage)
	}
	if len(stage.ExitChannels) > 0 && !slices.Contains(stage.ExitChannels, in.Channel) {
		return Result{}, fmt.Errorf("channel %q not enabled on stage %q: %w", in.Channel, stage.Name, domain.ErrInvalidStage)
	}
	if err := ctx.checkCategoryGate(stage, item); err != nil {
		return Result{}, err
	}

	next := domain.CloneItems(items)
	now := e.clock().UTC()
	next[idx].StageID = in.ToStageID
	next[idx].Status = domain.StatusSold
	next[idx].SalesChannel = in.Channel
	next[idx].Price = in.Price
	next[idx].UpdatedAt = now

	entry := e.newEntry(ctx, domain.ActionSold, domain.LogicExit,
		fmt.Sprintf("%s (%dx)", item.Name, item.Quantity),
		ctx.stageName(item.StageID), stage.Name,
		domain.ActivityMetadata{MovedQty: item.Quantity, SalesChannel: in.Channel, SalePrice: in.Price})
	return Result{Items: next, Logs: []domain.ActivityEntry{entry}}, nil
}
