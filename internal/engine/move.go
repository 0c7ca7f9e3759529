package engine

import (
	"fmt"

	"github.com/gentanala/mes/internal/domain"
)

// MoveInput moves a quantity of an item into a passthrough stage.
type MoveInput struct {
	ItemID    string
	ToStageID string
	Quantity  int
}

// Move relocates qty units of the item to the target stage. Partial moves
// leave the remainder behind; when an active batch of the same SKU already
// sits at the destination, the moved quantity merges into it instead of
// creating a duplicate card. Total quantity across the board is preserved.
func (e *Engine) Move(ctx Context, items []domain.KanbanItem, in MoveInput) (Result, error) {
	idx, err := findActive(items, in.ItemID)
	if err != nil {
		return Result{}, err
	}
	source := items[idx]

	stage, err := ctx.requireStage(in.ToStageID)
	if err != nil {
		return Result{}, err
	}
	if in.Quantity <= 0 || in.Quantity > source.Quantity {
		return Result{}, fmt.Errorf("move %d of %d: %w", in.Quantity, source.Quantity, domain.ErrInvalidQuantity)
	}
	if err := ctx.checkCategoryGate(stage, source); err != nil {
		return Result{}, err
	}

	next := domain.CloneItems(items)
	now := e.clock().UTC()
	full := in.Quantity == source.Quantity
	targetIdx := mergeTargetIndex(next, in.ToStageID, source.SKU, source.ID)

	switch {
	case targetIdx >= 0 && full:
		// Whole batch absorbed into the destination card.
		next[targetIdx].Quantity += in.Quantity
		next[targetIdx].UpdatedAt = now
		next = append(next[:idx], next[idx+1:]...)
	case targetIdx >= 0:
		next[targetIdx].Quantity += in.Quantity
		next[targetIdx].UpdatedAt = now
		next[idx].Quantity -= in.Quantity
		next[idx].UpdatedAt = now
	case full:
		next[idx].StageID = in.ToStageID
		next[idx].UpdatedAt = now
	default:
		// Partial move with no merge target splits off a sibling card.
		moved := source.Clone()
		moved.ID = e.idGen()
		moved.StageID = in.ToStageID
		moved.Quantity = in.Quantity
		moved.CreatedAt = now
		moved.UpdatedAt = now
		next[idx].Quantity -= in.Quantity
		next[idx].UpdatedAt = now
		next = append(next, moved)
	}

	entry := e.newEntry(ctx, domain.ActionMoved, stage.LogicType,
		fmt.Sprintf("%s (%dx)", source.Name, in.Quantity),
		ctx.stageName(source.StageID), stage.Name,
		domain.ActivityMetadata{MovedQty: in.Quantity})
	return Result{Items: next, Logs: []domain.ActivityEntry{entry}}, nil
}
