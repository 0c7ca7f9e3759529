package app

import (
	"context"
	"time"

	"github.com/gentanala/mes/internal/domain"
)

// StockLevel mirrors the on-hand position of one finished-good SKU as
// derived from the board: ready units sit at the packing stage, sold units
// have exited.
type StockLevel struct {
	SKU       string    `json:"sku"`
	ReadyQty  int       `json:"ready_qty"`
	SoldQty   int       `json:"sold_qty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository represents the persistence port for board state, the audit
// trail, master data, and derived stock levels.
//
// Items are persisted as a whole snapshot: every transition replaces the
// full collection, which keeps the store trivially consistent with the
// engine's replace-the-board output. SaveTransition commits the snapshot
// and its new audit entries together, so items are never stored without
// their trail. The audit trail is append-only except for undo and import,
// which restore a prior snapshot wholesale.
type Repository interface {
	ListItems(context.Context) ([]domain.KanbanItem, error)
	ReplaceItems(context.Context, []domain.KanbanItem) error
	SaveTransition(context.Context, []domain.KanbanItem, []domain.ActivityEntry) error

	ListLogs(context.Context, int) ([]domain.ActivityEntry, error)
	ReplaceLogs(context.Context, []domain.ActivityEntry) error

	LoadCatalog(context.Context) (domain.Catalog, error)
	SaveCatalog(context.Context, domain.Catalog) error

	ListStockLevels(context.Context) ([]StockLevel, error)
	UpsertStockLevel(context.Context, StockLevel) error
}
