package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// ItemStatus tracks a batch through its lifecycle. Every status other than
// active is terminal; terminated items are retained for audit.
type ItemStatus string

// ItemStatus values.
const (
	StatusActive   ItemStatus = "active"
	StatusConsumed ItemStatus = "consumed"
	StatusSold     ItemStatus = "sold"
	StatusRejected ItemStatus = "rejected"
)

// IsValidItemStatus reports whether the status is canonical.
func IsValidItemStatus(s ItemStatus) bool {
	return slices.Contains([]ItemStatus{StatusActive, StatusConsumed, StatusSold, StatusRejected}, s)
}

// AssemblyState marks an item as an in-progress assembly container. Progress
// maps component SKU to the quantity accumulated so far. Plain batches carry
// a nil AssemblyState.
type AssemblyState struct {
	TargetSKU string         `json:"target_sku"`
	Progress  map[string]int `json:"progress"`
}

// Clone deep-copies the assembly state.
func (a *AssemblyState) Clone() *AssemblyState {
	if a == nil {
		return nil
	}
	return &AssemblyState{
		TargetSKU: a.TargetSKU,
		Progress:  maps.Clone(a.Progress),
	}
}

// KanbanItem is one physical batch of a single SKU sitting at one stage.
type KanbanItem struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	SKU          string         `json:"sku,omitempty"` // ad-hoc items may lack one
	StageID      string         `json:"stage_id"`
	Quantity     int            `json:"quantity"`
	Price        int64          `json:"price"` // minor currency units
	Collection   string         `json:"collection,omitempty"`
	Emoji        string         `json:"emoji,omitempty"`
	ParentID     string         `json:"parent_id,omitempty"`
	ChildIDs     []string       `json:"child_ids,omitempty"`
	MergedFrom   []string       `json:"merged_from,omitempty"`
	Status       ItemStatus     `json:"status"`
	SalesChannel SalesChannel   `json:"sales_channel,omitempty"`
	Assembly     *AssemblyState `json:"assembly,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewItemInput holds creation-time fields for a kanban item.
type NewItemInput struct {
	ID         string
	Name       string
	SKU        string
	StageID    string
	Quantity   int
	Collection string
	Emoji      string
}

// NewKanbanItem validates and constructs an active item.
func NewKanbanItem(in NewItemInput, now time.Time) (KanbanItem, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.TrimSpace(in.SKU)
	in.StageID = strings.TrimSpace(in.StageID)

	if in.ID == "" {
		return KanbanItem{}, ErrInvalidID
	}
	if in.Name == "" {
		return KanbanItem{}, ErrInvalidName
	}
	if in.StageID == "" {
		return KanbanItem{}, fmt.Errorf("stage id is required: %w", ErrStageNotFound)
	}
	if in.Quantity <= 0 {
		return KanbanItem{}, ErrInvalidQuantity
	}

	ts := now.UTC()
	return KanbanItem{
		ID:         in.ID,
		Name:       in.Name,
		SKU:        in.SKU,
		StageID:    in.StageID,
		Quantity:   in.Quantity,
		Collection: in.Collection,
		Emoji:      in.Emoji,
		Status:     StatusActive,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}, nil
}

// IsActive reports whether the batch still participates in stage counts.
func (i KanbanItem) IsActive() bool {
	return i.Status == StatusActive
}

// IsAssemblyContainer reports whether the item is an in-progress assembly.
func (i KanbanItem) IsAssemblyContainer() bool {
	return i.Assembly != nil
}

// Clone deep-copies the item, including lineage slices and assembly state.
func (i KanbanItem) Clone() KanbanItem {
	out := i
	out.ChildIDs = slices.Clone(i.ChildIDs)
	out.MergedFrom = slices.Clone(i.MergedFrom)
	out.Assembly = i.Assembly.Clone()
	return out
}

// CloneItems deep-copies an item collection so transitions never alias the
// caller's snapshot.
func CloneItems(items []KanbanItem) []KanbanItem {
	out := make([]KanbanItem, 0, len(items))
	for _, item := range items {
		out = append(out, item.Clone())
	}
	return out
}
