package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gentanala/mes/internal/app"
	"github.com/gentanala/mes/internal/domain"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "mes.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

var repoNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestReplaceAndListItems(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	items := []domain.KanbanItem{
		{
			ID: "it-1", Name: "Teak Wood Block", SKU: "RAW-JATI-001", StageID: "stg-raw",
			Quantity: 5, Status: domain.StatusActive,
			ChildIDs:  []string{"it-2"},
			CreatedAt: repoNow, UpdatedAt: repoNow,
		},
		{
			ID: "it-2", Name: "[Assembly] Hutan Tropis 42mm", SKU: "ASM-FG-HT42-BLK",
			StageID: "stg-assembly", Quantity: 1, Status: domain.StatusActive,
			Assembly:  &domain.AssemblyState{TargetSKU: "FG-HT42-BLK", Progress: map[string]int{"WIP-CASE-HT": 2}},
			CreatedAt: repoNow.Add(time.Second), UpdatedAt: repoNow.Add(time.Second),
		},
	}
	if err := repo.ReplaceItems(ctx, items); err != nil {
		t.Fatalf("ReplaceItems() error = %v", err)
	}

	got, err := repo.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("item count = %d, want 2", len(got))
	}
	if got[0].ID != "it-1" || got[0].Quantity != 5 || len(got[0].ChildIDs) != 1 {
		t.Fatalf("item 0 = %+v", got[0])
	}
	if got[1].Assembly == nil || got[1].Assembly.TargetSKU != "FG-HT42-BLK" {
		t.Fatalf("assembly state lost: %+v", got[1])
	}
	if got[1].Assembly.Progress["WIP-CASE-HT"] != 2 {
		t.Fatalf("progress = %v", got[1].Assembly.Progress)
	}
	if !got[0].CreatedAt.Equal(repoNow) {
		t.Fatalf("created_at = %v, want %v", got[0].CreatedAt, repoNow)
	}

	// Replacing with a smaller snapshot drops the rest.
	if err := repo.ReplaceItems(ctx, items[:1]); err != nil {
		t.Fatalf("ReplaceItems() shrink error = %v", err)
	}
	got, err = repo.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("item count after shrink = %d, want 1", len(got))
	}
}

func TestSaveTransitionPersistsItemsAndLogsTogether(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	items := []domain.KanbanItem{
		{
			ID: "it-1", Name: "Teak Wood Block", SKU: "RAW-JATI-001", StageID: "stg-raw",
			Quantity: 5, Status: domain.StatusActive,
			CreatedAt: repoNow, UpdatedAt: repoNow,
		},
	}
	entries := []domain.ActivityEntry{
		{
			ID: "log-1", Timestamp: repoNow, Actor: "tester", Action: domain.ActionAdded,
			ItemName: "Teak Wood Block (5x)", ToStage: "Raw Material",
			LogicType: domain.LogicPassthrough,
			Metadata:  domain.ActivityMetadata{MovedQty: 5},
		},
		{
			ID: "log-2", Timestamp: repoNow.Add(time.Minute), Actor: "tester", Action: domain.ActionSold,
			ItemName: "Hutan Tropis 42mm (1x)", FromStage: "Packing Ready", ToStage: "SOLD",
			LogicType: domain.LogicExit,
			Metadata:  domain.ActivityMetadata{SalesChannel: domain.ChannelShopee, SalePrice: 1250000},
		},
	}
	if err := repo.SaveTransition(ctx, items, entries); err != nil {
		t.Fatalf("SaveTransition() error = %v", err)
	}

	gotItems, err := repo.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(gotItems) != 1 || gotItems[0].ID != "it-1" {
		t.Fatalf("items = %+v", gotItems)
	}

	got, err := repo.ListLogs(ctx, 0)
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("log count = %d, want 2", len(got))
	}
	if got[0].ID != "log-1" || got[1].ID != "log-2" {
		t.Fatalf("log order = %s, %s", got[0].ID, got[1].ID)
	}
	if got[1].Metadata.SalePrice != 1250000 || got[1].Metadata.SalesChannel != domain.ChannelShopee {
		t.Fatalf("sale metadata = %+v", got[1].Metadata)
	}

	limited, err := repo.ListLogs(ctx, 1)
	if err != nil {
		t.Fatalf("ListLogs(1) error = %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "log-2" {
		t.Fatalf("limited logs = %+v, want newest only", limited)
	}

	if err := repo.ReplaceLogs(ctx, entries[:1]); err != nil {
		t.Fatalf("ReplaceLogs() error = %v", err)
	}
	got, err = repo.ListLogs(ctx, 0)
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "log-1" {
		t.Fatalf("logs after replace = %+v", got)
	}
}

func TestOpenInMemoryIsIsolatedAndRemigratable(t *testing.T) {
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer repo.Close()
	ctx := context.Background()

	// Migrations are rerunnable against an already-migrated database.
	if err := repo.migrate(ctx); err != nil {
		t.Fatalf("migrate() rerun error = %v", err)
	}

	items := []domain.KanbanItem{
		{
			ID: "it-1", Name: "Teak Wood Block", SKU: "RAW-JATI-001", StageID: "stg-raw",
			Quantity: 2, Status: domain.StatusActive,
			CreatedAt: repoNow, UpdatedAt: repoNow,
		},
	}
	if err := repo.ReplaceItems(ctx, items); err != nil {
		t.Fatalf("ReplaceItems() error = %v", err)
	}
	got, err := repo.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(got) != 1 || got[0].Quantity != 2 {
		t.Fatalf("items = %+v", got)
	}

	// A second in-memory repository starts empty.
	other, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() second error = %v", err)
	}
	defer other.Close()
	otherItems, err := other.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems() on second repo error = %v", err)
	}
	if len(otherItems) != 0 {
		t.Fatalf("second in-memory repo shares state: %+v", otherItems)
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	seed := domain.SeedCatalog()
	if err := repo.SaveCatalog(ctx, seed); err != nil {
		t.Fatalf("SaveCatalog() error = %v", err)
	}

	got, err := repo.LoadCatalog(ctx)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if len(got.Materials) != len(seed.Materials) {
		t.Fatalf("material count = %d, want %d", len(got.Materials), len(seed.Materials))
	}
	if len(got.Products) != len(seed.Products) {
		t.Fatalf("product count = %d, want %d", len(got.Products), len(seed.Products))
	}
	if len(got.Collections) != len(seed.Collections) {
		t.Fatalf("collection count = %d, want %d", len(got.Collections), len(seed.Collections))
	}

	product, ok := got.ProductBySKU("FG-HT42-BLK")
	if !ok {
		t.Fatalf("FG-HT42-BLK missing after round trip")
	}
	if len(product.BOM) != 6 {
		t.Fatalf("bom lines = %d, want 6", len(product.BOM))
	}
	material, ok := got.MaterialBySKU("RAW-JATI-001")
	if !ok || material.Category != domain.CategoryRaw {
		t.Fatalf("material = %+v", material)
	}
	if len(material.TransformYields) != 1 {
		t.Fatalf("transform yields = %v", material.TransformYields)
	}
}

func TestStockLevelUpsert(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	lvl := app.StockLevel{SKU: "FG-HT42-BLK", ReadyQty: 3, SoldQty: 0, UpdatedAt: repoNow}
	if err := repo.UpsertStockLevel(ctx, lvl); err != nil {
		t.Fatalf("UpsertStockLevel() error = %v", err)
	}
	lvl.ReadyQty = 1
	lvl.SoldQty = 2
	if err := repo.UpsertStockLevel(ctx, lvl); err != nil {
		t.Fatalf("UpsertStockLevel() update error = %v", err)
	}

	got, err := repo.ListStockLevels(ctx)
	if err != nil {
		t.Fatalf("ListStockLevels() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("stock rows = %d, want 1", len(got))
	}
	if got[0].ReadyQty != 1 || got[0].SoldQty != 2 {
		t.Fatalf("stock = %+v", got[0])
	}
}
