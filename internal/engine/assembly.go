package engine

import (
	"fmt"
	"time"

	"github.com/gentanala/mes/internal/domain"
)

// AllocateInput commits component units toward assembling a target product
// at a merge stage.
type AllocateInput struct {
	ItemID     string
	ToStageID  string
	Quantity   int
	ProductSKU string
}

// Allocate moves component units into the assembly container for the target
// product, creating the container on first allocation. When the accumulated
// progress covers the product's full bill of materials one or more times,
// the container completes: finished goods are produced, leftover components
// are refunded as loose batches at the stage, and the container is retired
// as consumed. Component units are either inside the container, refunded,
// or embodied in finished goods; none are lost.
func (e *Engine) Allocate(ctx Context, items []domain.KanbanItem, in AllocateInput) (Result, error) {
	product, ok := ctx.Catalog.ProductBySKU(in.ProductSKU)
	if !ok {
		return Result{}, fmt.Errorf("product %q: %w", in.ProductSKU, domain.ErrNotFound)
	}

	idx, err := findActive(items, in.ItemID)
	if err != nil {
		return Result{}, err
	}
	component := items[idx]

	stage, err := ctx.requireStage(in.ToStageID)
	if err != nil {
		return Result{}, err
	}
	if in.Quantity <= 0 || in.Quantity > component.Quantity {
		return Result{}, fmt.Errorf("allocate %d of %d: %w", in.Quantity, component.Quantity, domain.ErrInvalidQuantity)
	}
	if _, ok := product.BOMLine(component.SKU); !ok {
		return Result{}, fmt.Errorf("%q is not a component of %q: %w", component.SKU, product.SKU, domain.ErrNoMatchingBOM)
	}
	if err := ctx.checkCategoryGate(stage, component); err != nil {
		return Result{}, err
	}

	next := domain.CloneItems(items)
	now := e.clock().UTC()

	next[idx].Quantity -= in.Quantity
	next[idx].UpdatedAt = now
	if next[idx].Quantity == 0 {
		next[idx].Status = domain.StatusConsumed
	}

	containerIdx := -1
	for i, item := range next {
		if item.StageID == in.ToStageID && item.IsActive() &&
			item.Assembly != nil && item.Assembly.TargetSKU == product.SKU {
			containerIdx = i
			break
		}
	}
	if containerIdx < 0 {
		container := domain.KanbanItem{
			ID:         e.idGen(),
			Name:       fmt.Sprintf("[Assembly] %s", product.Name),
			SKU:        "ASM-" + product.SKU,
			StageID:    in.ToStageID,
			Quantity:   1,
			Collection: product.Collection,
			Emoji:      stage.Emoji,
			Status:     domain.StatusActive,
			Assembly:   &domain.AssemblyState{TargetSKU: product.SKU, Progress: map[string]int{}},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		next = append(next, container)
		containerIdx = len(next) - 1
	}
	next[containerIdx].Assembly.Progress[component.SKU] += in.Quantity
	next[containerIdx].UpdatedAt = now

	logs := []domain.ActivityEntry{e.newEntry(ctx, domain.ActionMoved, domain.LogicMerge,
		fmt.Sprintf("%s (%dx) → %s", component.Name, in.Quantity, product.Name),
		ctx.stageName(component.StageID), stage.Name,
		domain.ActivityMetadata{Consumed: in.Quantity})}

	if completions := possibleCompletions(product, next[containerIdx].Assembly.Progress); completions >= 1 {
		next, logs = e.completeAssembly(ctx, next, containerIdx, product, stage, completions, logs, now)
	}
	return Result{Items: next, Logs: logs}, nil
}

// possibleCompletions is the number of whole finished goods the accumulated
// progress can cover, limited by the scarcest BOM line.
func possibleCompletions(product domain.MasterProduct, progress map[string]int) int {
	completions := -1
	for _, line := range product.BOM {
		if line.Qty <= 0 {
			continue
		}
		n := progress[line.MaterialSKU] / line.Qty
		if completions < 0 || n < completions {
			completions = n
		}
	}
	if completions < 0 {
		return 0
	}
	return completions
}

// completeAssembly consumes the container, refunds leftover components as
// loose batches, and produces or tops up the finished-good batch at the
// stage.
func (e *Engine) completeAssembly(ctx Context, items []domain.KanbanItem, containerIdx int, product domain.MasterProduct, stage domain.WorkflowStage, completions int, logs []domain.ActivityEntry, now time.Time) ([]domain.KanbanItem, []domain.ActivityEntry) {
	container := items[containerIdx]
	componentNames := make([]string, 0, len(product.BOM))

	for _, line := range product.BOM {
		componentNames = append(componentNames, line.MaterialName)
		leftover := container.Assembly.Progress[line.MaterialSKU] - completions*line.Qty
		if leftover <= 0 {
			continue
		}
		if i := mergeTargetIndex(items, stage.ID, line.MaterialSKU, container.ID); i >= 0 {
			items[i].Quantity += leftover
			items[i].UpdatedAt = now
			continue
		}
		items = append(items, domain.KanbanItem{
			ID:        e.idGen(),
			Name:      line.MaterialName,
			SKU:       line.MaterialSKU,
			StageID:   stage.ID,
			Quantity:  leftover,
			Status:    domain.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	items[containerIdx].Status = domain.StatusConsumed
	items[containerIdx].Assembly.Progress = map[string]int{}
	items[containerIdx].UpdatedAt = now

	if i := mergeTargetIndex(items, stage.ID, product.SKU, container.ID); i >= 0 {
		items[i].Quantity += completions
		items[i].UpdatedAt = now
	} else {
		items = append(items, domain.KanbanItem{
			ID:         e.idGen(),
			Name:       product.Name,
			SKU:        product.SKU,
			StageID:    stage.ID,
			Quantity:   completions,
			Collection: product.Collection,
			Emoji:      stage.Emoji,
			MergedFrom: []string{container.ID},
			Status:     domain.StatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	logs = append(logs, e.newEntry(ctx, domain.ActionMerged, domain.LogicMerge,
		fmt.Sprintf("%s (%dx)", product.Name, completions),
		stage.Name, stage.Name,
		domain.ActivityMetadata{Yield: completions, MergedItems: componentNames}))
	return items, logs
}
