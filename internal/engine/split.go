package engine

import (
	"fmt"

	"github.com/gentanala/mes/internal/domain"
)

// SplitInput transforms consumed units of a parent batch into a child batch
// at a split stage, e.g. cutting one wood block into four casings.
type SplitInput struct {
	ItemID    string
	ToStageID string
	Consumed  int
	Yield     int
	ChildName string
	ChildSKU  string
}

// Split deducts Consumed units from the parent and creates one child batch
// of Yield units at the target stage. The parent is never deleted: when its
// quantity reaches zero it is retained as consumed so lineage stays
// traceable.
func (e *Engine) Split(ctx Context, items []domain.KanbanItem, in SplitInput) (Result, error) {
	idx, err := findActive(items, in.ItemID)
	if err != nil {
		return Result{}, err
	}
	parent := items[idx]

	stage, err := ctx.requireStage(in.ToStageID)
	if err != nil {
		return Result{}, err
	}
	if in.Consumed <= 0 || in.Consumed > parent.Quantity {
		return Result{}, fmt.Errorf("consume %d of %d: %w", in.Consumed, parent.Quantity, domain.ErrInvalidQuantity)
	}
	if in.Yield <= 0 {
		return Result{}, fmt.Errorf("yield %d: %w", in.Yield, domain.ErrInvalidQuantity)
	}
	if in.ChildName == "" {
		return Result{}, domain.ErrInvalidName
	}
	if err := ctx.checkCategoryGate(stage, parent); err != nil {
		return Result{}, err
	}

	now := e.clock().UTC()
	child, err := domain.NewKanbanItem(domain.NewItemInput{
		ID:         e.idGen(),
		Name:       in.ChildName,
		SKU:        in.ChildSKU,
		StageID:    in.ToStageID,
		Quantity:   in.Yield,
		Collection: parent.Collection,
		Emoji:      stage.Emoji,
	}, now)
	if err != nil {
		return Result{}, err
	}
	child.ParentID = parent.ID

	next := domain.CloneItems(items)
	next[idx].Quantity -= in.Consumed
	next[idx].ChildIDs = append(next[idx].ChildIDs, child.ID)
	next[idx].UpdatedAt = now
	if next[idx].Quantity == 0 {
		next[idx].Status = domain.StatusConsumed
	}
	next = append(next, child)

	entry := e.newEntry(ctx, domain.ActionSplit, domain.LogicSplit,
		fmt.Sprintf("%s → %s", parent.Name, in.ChildName),
		ctx.stageName(parent.StageID), stage.Name,
		domain.ActivityMetadata{Consumed: in.Consumed, Yield: in.Yield, ChildCount: 1})
	return Result{Items: next, Logs: []domain.ActivityEntry{entry}}, nil
}
