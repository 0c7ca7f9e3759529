package engine

import (
	"fmt"

	"github.com/gentanala/mes/internal/domain"
)

// AddInput creates a new batch directly on the board, typically when raw
// material arrives.
type AddInput struct {
	Name       string
	SKU        string
	StageID    string
	Quantity   int
	Collection string
	Emoji      string
}

// Add places new material at a stage. When an active batch of the same SKU
// already sits there the quantity merges into it.
func (e *Engine) Add(ctx Context, items []domain.KanbanItem, in AddInput) (Result, error) {
	stage, err := ctx.requireStage(in.StageID)
	if err != nil {
		return Result{}, err
	}
	now := e.clock().UTC()
	candidate, err := domain.NewKanbanItem(domain.NewItemInput{
		ID:         e.idGen(),
		Name:       in.Name,
		SKU:        in.SKU,
		StageID:    in.StageID,
		Quantity:   in.Quantity,
		Collection: in.Collection,
		Emoji:      in.Emoji,
	}, now)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.checkCategoryGate(stage, candidate); err != nil {
		return Result{}, err
	}

	next := domain.CloneItems(items)
	if i := mergeTargetIndex(next, in.StageID, candidate.SKU, candidate.ID); i >= 0 {
		next[i].Quantity += in.Quantity
		next[i].UpdatedAt = now
	} else {
		next = append(next, candidate)
	}

	entry := e.newEntry(ctx, domain.ActionAdded, stage.LogicType,
		fmt.Sprintf("%s (%dx)", candidate.Name, in.Quantity),
		"", stage.Name,
		domain.ActivityMetadata{MovedQty: in.Quantity})
	return Result{Items: next, Logs: []domain.ActivityEntry{entry}}, nil
}

// EditInput updates descriptive fields on an existing item. Nil pointers
// leave the field unchanged.
type EditInput struct {
	ItemID     string
	Name       *string
	SKU        *string
	Quantity   *int
	Collection *string
	Emoji      *string
}

// Edit applies a manual correction to an item and records it in the audit
// trail. Quantity corrections must stay positive; zeroing out a batch is a
// delete or reject, not an edit.
func (e *Engine) Edit(ctx Context, items []domain.KanbanItem, in EditInput) (Result, error) {
	idx, err := findActive(items, in.ItemID)
	if err != nil {
		return Result{}, err
	}

	next := domain.CloneItems(items)
	item := &next[idx]
	if in.Name != nil {
		if *in.Name == "" {
			return Result{}, domain.ErrInvalidName
		}
		item.Name = *in.Name
	}
	if in.SKU != nil {
		item.SKU = *in.SKU
	}
	if in.Quantity != nil {
		if *in.Quantity <= 0 {
			return Result{}, fmt.Errorf("quantity %d: %w", *in.Quantity, domain.ErrInvalidQuantity)
		}
		item.Quantity = *in.Quantity
	}
	if in.Collection != nil {
		item.Collection = *in.Collection
	}
	if in.Emoji != nil {
		item.Emoji = *in.Emoji
	}
	item.UpdatedAt = e.clock().UTC()

	stageName := ctx.stageName(item.StageID)
	entry := e.newEntry(ctx, domain.ActionMoved, domain.LogicPassthrough,
		fmt.Sprintf("[EDIT] %s", item.Name),
		stageName, stageName,
		domain.ActivityMetadata{})
	return Result{Items: next, Logs: []domain.ActivityEntry{entry}}, nil
}

// DeleteInput removes a mistakenly created item.
type DeleteInput struct {
	ItemID string
}

// Delete removes the item from the board entirely. The audit entry marks the
// name so the trail still shows the batch existed; quantity conservation
// intentionally does not hold across deletes.
func (e *Engine) Delete(ctx Context, items []domain.KanbanItem, in DeleteInput) (Result, error) {
	idx := -1
	for i, item := range items {
		if item.ID == in.ItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Result{}, fmt.Errorf("item %q: %w", in.ItemID, domain.ErrNotFound)
	}
	removed := items[idx]

	next := domain.CloneItems(items)
	next = append(next[:idx], next[idx+1:]...)

	entry := e.newEntry(ctx, domain.ActionMoved, domain.LogicPassthrough,
		fmt.Sprintf("[DELETED] %s (%dx)", removed.Name, removed.Quantity),
		ctx.stageName(removed.StageID), "Deleted",
		domain.ActivityMetadata{})
	return Result{Items: next, Logs: []domain.ActivityEntry{entry}}, nil
}

// RejectInput writes off defective units.
type RejectInput struct {
	ItemID   string
	Quantity int
}

// Reject writes off qty units as waste. A full reject marks the item
// rejected in place; a partial reject splits off a rejected clone and keeps
// the remainder active. Rejected batches are retained for audit.
func (e *Engine) Reject(ctx Context, items []domain.KanbanItem, in RejectInput) (Result, error) {
	idx, err := findActive(items, in.ItemID)
	if err != nil {
		return Result{}, err
	}
	item := items[idx]
	if in.Quantity <= 0 || in.Quantity > item.Quantity {
		return Result{}, fmt.Errorf("reject %d of %d: %w", in.Quantity, item.Quantity, domain.ErrInvalidQuantity)
	}

	next := domain.CloneItems(items)
	now := e.clock().UTC()
	if in.Quantity == item.Quantity {
		next[idx].Status = domain.StatusRejected
		next[idx].UpdatedAt = now
	} else {
		next[idx].Quantity -= in.Quantity
		next[idx].UpdatedAt = now
		rejected := item.Clone()
		rejected.ID = e.idGen()
		rejected.Quantity = in.Quantity
		rejected.Status = domain.StatusRejected
		rejected.CreatedAt = now
		rejected.UpdatedAt = now
		next = append(next, rejected)
	}

	entry := e.newEntry(ctx, domain.ActionRejected, domain.LogicPassthrough,
		fmt.Sprintf("[REJECT] %s (%dx)", item.Name, in.Quantity),
		ctx.stageName(item.StageID), "Waste / Reject",
		domain.ActivityMetadata{RejectedQty: in.Quantity})
	return Result{Items: next, Logs: []domain.ActivityEntry{entry}}, nil
}
