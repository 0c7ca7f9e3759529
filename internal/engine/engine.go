// Package engine implements the pure production-workflow transition engine.
// Every operation takes a complete item snapshot plus a request and returns a
// new snapshot with audit entries; inputs are never mutated and no I/O
// happens here. The host applies transitions strictly sequentially against a
// single authoritative snapshot.
package engine

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gentanala/mes/internal/domain"
)

// IDGenerator returns unique identifiers for new items and log entries.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Engine computes workflow transitions. It holds no board state; the item
// collection is an explicit argument to every call.
type Engine struct {
	idGen IDGenerator
	clock Clock
}

// New constructs an engine with the given id generator and clock. Tests
// inject fixed sequences to make output deterministic.
func New(idGen IDGenerator, clock Clock) *Engine {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	return &Engine{idGen: idGen, clock: clock}
}

// Context carries the workflow blueprint and master-data catalog a
// transition validates against, plus the acting user. It is supplied by the
// caller on every call rather than held as ambient state.
type Context struct {
	Blueprint domain.WorkflowBlueprint
	Catalog   domain.Catalog
	Actor     string
}

// Result is the atomic output of one transition: the replacement item
// collection and the audit entries it produced.
type Result struct {
	Items []domain.KanbanItem    `json:"items"`
	Logs  []domain.ActivityEntry `json:"logs"`
}

// requireStage resolves a stage id against the blueprint.
func (c Context) requireStage(stageID string) (domain.WorkflowStage, error) {
	stage, ok := c.Blueprint.StageByID(stageID)
	if !ok {
		return domain.WorkflowStage{}, fmt.Errorf("stage %q: %w", stageID, domain.ErrStageNotFound)
	}
	return stage, nil
}

// stageName returns the display name for a stage id, falling back to the id
// when the stage is unknown. Used only for log snapshots.
func (c Context) stageName(stageID string) string {
	if stage, ok := c.Blueprint.StageByID(stageID); ok {
		return stage.Name
	}
	return stageID
}

// checkCategoryGate rejects material whose inferred category is excluded by
// the target stage's allow-list. An absent allow-list admits everything.
func (c Context) checkCategoryGate(stage domain.WorkflowStage, item domain.KanbanItem) error {
	if len(stage.AllowedMaterialCategories) == 0 {
		return nil
	}
	category := c.Catalog.InferCategory(item)
	if !slices.Contains(stage.AllowedMaterialCategories, category) {
		return fmt.Errorf("stage %q does not accept %s material: %w", stage.Name, category, domain.ErrCategoryNotAllowed)
	}
	return nil
}

// findActive locates an active item by id.
func findActive(items []domain.KanbanItem, itemID string) (int, error) {
	for i, item := range items {
		if item.ID == itemID && item.IsActive() {
			return i, nil
		}
	}
	return -1, fmt.Errorf("item %q: %w", itemID, domain.ErrNotFound)
}

// mergeTargetIndex finds an active, plain (non-assembly) batch of the same
// SKU at the stage, excluding the moving item itself.
func mergeTargetIndex(items []domain.KanbanItem, stageID, sku, excludeID string) int {
	if strings.TrimSpace(sku) == "" {
		return -1
	}
	for i, item := range items {
		if item.StageID == stageID && item.SKU == sku && item.IsActive() &&
			!item.IsAssemblyContainer() && item.ID != excludeID {
			return i
		}
	}
	return -1
}

// newEntry stamps a fresh audit entry.
func (e *Engine) newEntry(ctx Context, action domain.ActivityAction, logic domain.StageLogicType, itemName, fromStage, toStage string, meta domain.ActivityMetadata) domain.ActivityEntry {
	return domain.ActivityEntry{
		ID:        e.idGen(),
		Timestamp: e.clock().UTC(),
		Actor:     ctx.Actor,
		Action:    action,
		ItemName:  itemName,
		FromStage: fromStage,
		ToStage:   toStage,
		LogicType: logic,
		Metadata:  meta,
	}
}
