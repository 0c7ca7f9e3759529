package domain

import "time"

// ActivityAction describes a persisted transition in the audit trail.
type ActivityAction string

// ActivityAction values.
const (
	ActionMoved    ActivityAction = "moved"
	ActionSplit    ActivityAction = "split"
	ActionMerged   ActivityAction = "merged"
	ActionSold     ActivityAction = "sold"
	ActionAdded    ActivityAction = "added"
	ActionRejected ActivityAction = "rejected"
)

// ActivityMetadata carries action-specific counters. Fields are zero-valued
// when not applicable to the action.
type ActivityMetadata struct {
	MovedQty     int          `json:"moved_qty,omitempty"`
	Consumed     int          `json:"consumed,omitempty"`
	Yield        int          `json:"yield,omitempty"`
	ChildCount   int          `json:"child_count,omitempty"`
	RejectedQty  int          `json:"rejected_qty,omitempty"`
	MergedItems  []string     `json:"merged_items,omitempty"`
	SalesChannel SalesChannel `json:"sales_channel,omitempty"`
	SalePrice    int64        `json:"sale_price,omitempty"`
}

// ActivityEntry is one immutable audit record. Stage names are snapshotted at
// the time of the action, not live references; the log is append-only and is
// never edited after creation.
type ActivityEntry struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Actor     string           `json:"actor"`
	Action    ActivityAction   `json:"action"`
	ItemName  string           `json:"item_name"`
	FromStage string           `json:"from_stage,omitempty"`
	ToStage   string           `json:"to_stage,omitempty"`
	LogicType StageLogicType   `json:"logic_type"`
	Metadata  ActivityMetadata `json:"metadata"`
}
