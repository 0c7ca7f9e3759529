package engine

import (
	"time"

	"github.com/gentanala/mes/internal/domain"
)

// Stats is a pure aggregation over the current board and audit trail. It is
// recomputed on demand, never stored.
type Stats struct {
	TotalWIP       int                         `json:"total_wip"`
	ReadyToShip    int                         `json:"ready_to_ship"`
	StockValue     int64                       `json:"stock_value"`
	SoldTodayQty   int                         `json:"sold_today_qty"`
	RevenueToday   int64                       `json:"revenue_today"`
	SalesByChannel map[domain.SalesChannel]int `json:"sales_by_channel"`
	SplitsToday    int                         `json:"splits_today"`
	MergesToday    int                         `json:"merges_today"`
	RejectedQty    int                         `json:"rejected_qty"`
}

// CalcStats aggregates board and log state as of now. Work in progress
// excludes the packing stage; packing quantities count as ready stock
// instead. "Today" is the calendar day of now in its own location, and the
// today counters read off the audit trail, not the items.
func CalcStats(bp domain.WorkflowBlueprint, items []domain.KanbanItem, logs []domain.ActivityEntry, now time.Time) Stats {
	stats := Stats{SalesByChannel: map[domain.SalesChannel]int{}}

	exitStageID := ""
	if exit, ok := bp.ExitStage(); ok {
		exitStageID = exit.ID
	}
	packingStageID := ""
	if packing, ok := bp.PackingStage(); ok {
		packingStageID = packing.ID
	}
	stageIDs := make(map[string]bool, len(bp.Stages))
	for _, stage := range bp.Stages {
		stageIDs[stage.ID] = true
	}

	for _, item := range items {
		switch {
		case item.IsActive() && item.StageID == packingStageID:
			stats.ReadyToShip += item.Quantity
			stats.StockValue += int64(item.Quantity) * item.Price
		case item.IsActive() && item.StageID != exitStageID:
			stats.TotalWIP += item.Quantity
		case item.Status == domain.StatusRejected && stageIDs[item.StageID]:
			stats.RejectedQty += item.Quantity
		}
	}

	for _, entry := range logs {
		if !sameDay(entry.Timestamp, now) {
			continue
		}
		switch entry.Action {
		case domain.ActionSplit:
			stats.SplitsToday++
		case domain.ActionMerged:
			stats.MergesToday++
		case domain.ActionSold:
			stats.SoldTodayQty += entry.Metadata.MovedQty
			stats.RevenueToday += entry.Metadata.SalePrice
			stats.SalesByChannel[entry.Metadata.SalesChannel] += entry.Metadata.MovedQty
		}
	}
	return stats
}

func sameDay(t, now time.Time) bool {
	y1, m1, d1 := t.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
