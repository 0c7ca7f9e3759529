package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gentanala/mes/internal/domain"
)

func seqIDs(prefix string) IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return New(seqIDs("gen"), fixedClock(testNow))
}

func testContext() Context {
	return Context{
		Blueprint: domain.DefaultBlueprint(),
		Catalog:   domain.SeedCatalog(),
		Actor:     "tester",
	}
}

func activeItem(id, name, sku, stageID string, qty int) domain.KanbanItem {
	return domain.KanbanItem{
		ID: id, Name: name, SKU: sku, StageID: stageID, Quantity: qty,
		Status:    domain.StatusActive,
		CreatedAt: testNow.Add(-time.Hour),
		UpdatedAt: testNow.Add(-time.Hour),
	}
}

func totalQuantity(items []domain.KanbanItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func findByID(t *testing.T, items []domain.KanbanItem, id string) domain.KanbanItem {
	t.Helper()
	for _, item := range items {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("item %q not in result", id)
	return domain.KanbanItem{}
}

func TestMoveFullQuantityRelocatesInPlace(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{activeItem("it-1", "Teak Wood Block", "RAW-JATI-001", "stg-raw", 5)}

	res, err := e.Move(testContext(), items, MoveInput{ItemID: "it-1", ToStageID: "stg-cnc", Quantity: 5})
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("item count = %d, want 1", len(res.Items))
	}
	moved := res.Items[0]
	if moved.ID != "it-1" || moved.StageID != "stg-cnc" || moved.Quantity != 5 {
		t.Fatalf("moved = %+v, want same id at stg-cnc with qty 5", moved)
	}
	if len(res.Logs) != 1 || res.Logs[0].Action != domain.ActionMoved {
		t.Fatalf("logs = %+v, want one moved entry", res.Logs)
	}
	if res.Logs[0].FromStage != "Raw Material" || res.Logs[0].ToStage != "CNC / Processing" {
		t.Fatalf("log stages = %q → %q, want snapshotted names", res.Logs[0].FromStage, res.Logs[0].ToStage)
	}
	// Input snapshot untouched.
	if items[0].StageID != "stg-raw" {
		t.Fatalf("input mutated: stage = %q", items[0].StageID)
	}
}

func TestMoveThereAndBackRestoresOriginalState(t *testing.T) {
	e := newTestEngine()
	ctx := testContext()
	items := []domain.KanbanItem{activeItem("it-1", "Teak Wood Block", "RAW-JATI-001", "stg-raw", 5)}

	res, err := e.Move(ctx, items, MoveInput{ItemID: "it-1", ToStageID: "stg-cnc", Quantity: 5})
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	res, err = e.Move(ctx, res.Items, MoveInput{ItemID: "it-1", ToStageID: "stg-raw", Quantity: 5})
	if err != nil {
		t.Fatalf("Move() back error = %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("item count = %d, want 1 (no duplication)", len(res.Items))
	}
	got := res.Items[0]
	if got.ID != "it-1" || got.StageID != "stg-raw" || got.Quantity != 5 {
		t.Fatalf("round trip = %+v, want original id/stage/quantity", got)
	}
}

func TestMovePartialSplitsOffSibling(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{activeItem("it-1", "Teak Wood Block", "RAW-JATI-001", "stg-raw", 10)}

	res, err := e.Move(testContext(), items, MoveInput{ItemID: "it-1", ToStageID: "stg-cnc", Quantity: 3})
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("item count = %d, want 2", len(res.Items))
	}
	remainder := findByID(t, res.Items, "it-1")
	if remainder.Quantity != 7 || remainder.StageID != "stg-raw" {
		t.Fatalf("remainder = %+v, want 7 at stg-raw", remainder)
	}
	moved := findByID(t, res.Items, "gen-001")
	if moved.Quantity != 3 || moved.StageID != "stg-cnc" || moved.SKU != "RAW-JATI-001" {
		t.Fatalf("moved sibling = %+v", moved)
	}
	if totalQuantity(res.Items) != 10 {
		t.Fatalf("total quantity = %d, want 10", totalQuantity(res.Items))
	}
}

func TestMoveMergesIntoSameSKUAtDestination(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{
		activeItem("it-1", "Teak Wood Block", "RAW-JATI-001", "stg-raw", 4),
		activeItem("it-2", "Teak Wood Block", "RAW-JATI-001", "stg-cnc", 6),
	}

	res, err := e.Move(testContext(), items, MoveInput{ItemID: "it-1", ToStageID: "stg-cnc", Quantity: 4})
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("item count = %d, want 1 after merge", len(res.Items))
	}
	merged := res.Items[0]
	if merged.ID != "it-2" || merged.Quantity != 10 {
		t.Fatalf("merged = %+v, want it-2 with qty 10", merged)
	}
}

func TestMovePartialMergeKeepsRemainder(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{
		activeItem("it-1", "Teak Wood Block", "RAW-JATI-001", "stg-raw", 4),
		activeItem("it-2", "Teak Wood Block", "RAW-JATI-001", "stg-cnc", 6),
	}

	res, err := e.Move(testContext(), items, MoveInput{ItemID: "it-1", ToStageID: "stg-cnc", Quantity: 1})
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if findByID(t, res.Items, "it-1").Quantity != 3 {
		t.Fatalf("source quantity = %d, want 3", findByID(t, res.Items, "it-1").Quantity)
	}
	if findByID(t, res.Items, "it-2").Quantity != 7 {
		t.Fatalf("destination quantity = %d, want 7", findByID(t, res.Items, "it-2").Quantity)
	}
}

func TestMoveValidation(t *testing.T) {
	e := newTestEngine()
	ctx := testContext()
	items := []domain.KanbanItem{
		activeItem("it-1", "Teak Wood Block", "RAW-JATI-001", "stg-raw", 5),
		activeItem("it-2", "Hutan Tropis 42mm", "FG-HT42-BLK", "stg-packing", 2),
	}

	tests := []struct {
		name    string
		in      MoveInput
		wantErr error
	}{
		{"unknown item", MoveInput{ItemID: "nope", ToStageID: "stg-cnc", Quantity: 1}, domain.ErrNotFound},
		{"unknown stage", MoveInput{ItemID: "it-1", ToStageID: "stg-nope", Quantity: 1}, domain.ErrStageNotFound},
		{"zero quantity", MoveInput{ItemID: "it-1", ToStageID: "stg-cnc", Quantity: 0}, domain.ErrInvalidQuantity},
		{"over quantity", MoveInput{ItemID: "it-1", ToStageID: "stg-cnc", Quantity: 6}, domain.ErrInvalidQuantity},
		{"finished good into raw-only stage", MoveInput{ItemID: "it-2", ToStageID: "stg-raw", Quantity: 1}, domain.ErrCategoryNotAllowed},
		{"raw into finished-only stage", MoveInput{ItemID: "it-1", ToStageID: "stg-packing", Quantity: 1}, domain.ErrCategoryNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Move(ctx, items, tt.in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Move() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSplitCreatesChildAndKeepsParent(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{activeItem("it-1", "Teak Wood Block", "RAW-JATI-001", "stg-raw", 10)}

	res, err := e.Split(testContext(), items, SplitInput{
		ItemID: "it-1", ToStageID: "stg-cnc",
		Consumed: 1, Yield: 4,
		ChildName: "Hutan Tropis Casing", ChildSKU: "WIP-CASE-HT",
	})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("item count = %d, want 2", len(res.Items))
	}
	parent := findByID(t, res.Items, "it-1")
	if parent.Quantity != 9 || parent.Status != domain.StatusActive {
		t.Fatalf("parent = %+v, want qty 9 active", parent)
	}
	child := findByID(t, res.Items, "gen-001")
	if child.Quantity != 4 || child.SKU != "WIP-CASE-HT" || child.StageID != "stg-cnc" {
		t.Fatalf("child = %+v", child)
	}
	if child.ParentID != "it-1" {
		t.Fatalf("child parent = %q, want it-1", child.ParentID)
	}
	if len(parent.ChildIDs) != 1 || parent.ChildIDs[0] != child.ID {
		t.Fatalf("parent children = %v, want [%s]", parent.ChildIDs, child.ID)
	}
	if len(res.Logs) != 1 || res.Logs[0].Action != domain.ActionSplit {
		t.Fatalf("logs = %+v, want one split entry", res.Logs)
	}
	if res.Logs[0].Metadata.Consumed != 1 || res.Logs[0].Metadata.Yield != 4 {
		t.Fatalf("split metadata = %+v", res.Logs[0].Metadata)
	}
}

func TestSplitFullyConsumedParentRetained(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{activeItem("it-1", "Teak Wood Block", "RAW-JATI-001", "stg-raw", 2)}

	res, err := e.Split(testContext(), items, SplitInput{
		ItemID: "it-1", ToStageID: "stg-cnc",
		Consumed: 2, Yield: 8,
		ChildName: "Hutan Tropis Casing", ChildSKU: "WIP-CASE-HT",
	})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	parent := findByID(t, res.Items, "it-1")
	if parent.Status != domain.StatusConsumed || parent.Quantity != 0 {
		t.Fatalf("parent = %+v, want retained as consumed", parent)
	}
}

func TestSplitValidation(t *testing.T) {
	e := newTestEngine()
	ctx := testContext()
	items := []domain.KanbanItem{activeItem("it-1", "Teak Wood Block", "RAW-JATI-001", "stg-raw", 2)}

	tests := []struct {
		name    string
		in      SplitInput
		wantErr error
	}{
		{"over consume", SplitInput{ItemID: "it-1", ToStageID: "stg-cnc", Consumed: 3, Yield: 4, ChildName: "c"}, domain.ErrInvalidQuantity},
		{"zero yield", SplitInput{ItemID: "it-1", ToStageID: "stg-cnc", Consumed: 1, Yield: 0, ChildName: "c"}, domain.ErrInvalidQuantity},
		{"missing child name", SplitInput{ItemID: "it-1", ToStageID: "stg-cnc", Consumed: 1, Yield: 4}, domain.ErrInvalidName},
		{"unknown stage", SplitInput{ItemID: "it-1", ToStageID: "stg-nope", Consumed: 1, Yield: 4, ChildName: "c"}, domain.ErrStageNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Split(ctx, items, tt.in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Split() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAllocateAccumulatesProgressInContainer(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{activeItem("it-1", "Hutan Tropis Casing", "WIP-CASE-HT", "stg-finishing", 5)}

	res, err := e.Allocate(testContext(), items, AllocateInput{
		ItemID: "it-1", ToStageID: "stg-assembly", Quantity: 3, ProductSKU: "FG-HT42-BLK",
	})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	component := findByID(t, res.Items, "it-1")
	if component.Quantity != 2 {
		t.Fatalf("component quantity = %d, want 2", component.Quantity)
	}
	container := findByID(t, res.Items, "gen-001")
	if !container.IsAssemblyContainer() || container.Assembly.TargetSKU != "FG-HT42-BLK" {
		t.Fatalf("container = %+v", container)
	}
	if got := container.Assembly.Progress["WIP-CASE-HT"]; got != 3 {
		t.Fatalf("progress = %d, want 3", got)
	}
	if len(res.Logs) != 1 || res.Logs[0].LogicType != domain.LogicMerge {
		t.Fatalf("logs = %+v, want one merge-logic allocation entry", res.Logs)
	}
}

func TestAllocateCompletionProducesFinishedGoodsAndRefundsLeftovers(t *testing.T) {
	e := newTestEngine()
	ctx := testContext()
	// One unit of every BOM line for FG-HT42-BLK, with 2 spare casings.
	items := []domain.KanbanItem{
		activeItem("case", "Hutan Tropis Casing", "WIP-CASE-HT", "stg-finishing", 3),
		activeItem("strap", "Brown Leather Strap", "WIP-STRAP-BR", "stg-finishing", 1),
		activeItem("mov", "Miyota 2035 Movement", "RAW-MIYOTA-001", "stg-raw", 1),
		activeItem("glass", "Sapphire Glass 42mm", "RAW-SAPH-42", "stg-raw", 1),
		activeItem("crown", "Stainless Crown", "RAW-CROWN-SS", "stg-raw", 1),
		activeItem("buckle", "Stainless Buckle", "RAW-BUCKLE-SS", "stg-raw", 1),
	}

	var res Result
	var err error
	for _, step := range []struct {
		itemID string
		qty    int
	}{
		{"case", 3}, {"strap", 1}, {"mov", 1}, {"glass", 1}, {"crown", 1}, {"buckle", 1},
	} {
		res, err = e.Allocate(ctx, items, AllocateInput{
			ItemID: step.itemID, ToStageID: "stg-assembly", Quantity: step.qty, ProductSKU: "FG-HT42-BLK",
		})
		if err != nil {
			t.Fatalf("Allocate(%s) error = %v", step.itemID, err)
		}
		items = res.Items
	}

	var finished, refund, container *domain.KanbanItem
	for i := range items {
		item := &items[i]
		switch {
		case item.SKU == "FG-HT42-BLK":
			finished = item
		case item.SKU == "WIP-CASE-HT" && item.StageID == "stg-assembly" && item.IsActive():
			refund = item
		case item.IsAssemblyContainer():
			container = item
		}
	}
	if finished == nil || finished.Quantity != 1 || !finished.IsActive() {
		t.Fatalf("finished good = %+v, want 1 active FG-HT42-BLK", finished)
	}
	if finished.Collection != "Hutan Tropis" {
		t.Fatalf("finished collection = %q", finished.Collection)
	}
	if refund == nil || refund.Quantity != 2 {
		t.Fatalf("refund = %+v, want 2 loose casings back at assembly", refund)
	}
	if container == nil || container.Status != domain.StatusConsumed {
		t.Fatalf("container = %+v, want consumed", container)
	}
	if len(container.Assembly.Progress) != 0 {
		t.Fatalf("container progress = %v, want cleared", container.Assembly.Progress)
	}

	last := res.Logs[len(res.Logs)-1]
	if last.Action != domain.ActionMerged || last.Metadata.Yield != 1 {
		t.Fatalf("completion log = %+v", last)
	}
	if len(last.Metadata.MergedItems) != 6 {
		t.Fatalf("merged items = %v, want all 6 component names", last.Metadata.MergedItems)
	}
}

func TestAllocateCompletionTopsUpExistingFinishedBatch(t *testing.T) {
	e := newTestEngine()
	ctx := testContext()
	items := []domain.KanbanItem{
		activeItem("fg", "Hutan Tropis 42mm", "FG-HT42-BLK", "stg-assembly", 2),
		activeItem("case", "Hutan Tropis Casing", "WIP-CASE-HT", "stg-finishing", 1),
		activeItem("strap", "Brown Leather Strap", "WIP-STRAP-BR", "stg-finishing", 1),
		activeItem("mov", "Miyota 2035 Movement", "RAW-MIYOTA-001", "stg-raw", 1),
		activeItem("glass", "Sapphire Glass 42mm", "RAW-SAPH-42", "stg-raw", 1),
		activeItem("crown", "Stainless Crown", "RAW-CROWN-SS", "stg-raw", 1),
		activeItem("buckle", "Stainless Buckle", "RAW-BUCKLE-SS", "stg-raw", 1),
	}

	for _, id := range []string{"case", "strap", "mov", "glass", "crown", "buckle"} {
		res, err := e.Allocate(ctx, items, AllocateInput{
			ItemID: id, ToStageID: "stg-assembly", Quantity: 1, ProductSKU: "FG-HT42-BLK",
		})
		if err != nil {
			t.Fatalf("Allocate(%s) error = %v", id, err)
		}
		items = res.Items
	}

	fg := findByID(t, items, "fg")
	if fg.Quantity != 3 {
		t.Fatalf("finished quantity = %d, want 3 (topped up, not duplicated)", fg.Quantity)
	}
}

func TestAllocateMultiUnitLineFloorsCompletions(t *testing.T) {
	e := newTestEngine()
	ctx := testContext()
	// Two casings per finished pair, so 5 allocated casings complete 2 pairs
	// with 1 casing left over.
	ctx.Catalog.Products = append(ctx.Catalog.Products, domain.MasterProduct{
		ID: "prod-cuff-ht", SKU: "FG-CUFF-HT", Name: "Hutan Tropis Cufflink Pair",
		Collection: "Hutan Tropis",
		BOM: []domain.BOMComponent{
			{MaterialSKU: "WIP-CASE-HT", MaterialName: "Hutan Tropis Casing", Qty: 2},
		},
	})
	items := []domain.KanbanItem{activeItem("it-1", "Hutan Tropis Casing", "WIP-CASE-HT", "stg-finishing", 5)}

	res, err := e.Allocate(ctx, items, AllocateInput{
		ItemID: "it-1", ToStageID: "stg-assembly", Quantity: 5, ProductSKU: "FG-CUFF-HT",
	})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	component := findByID(t, res.Items, "it-1")
	if component.Quantity != 0 || component.Status != domain.StatusConsumed {
		t.Fatalf("component = %+v, want fully consumed", component)
	}
	finished := findByID(t, res.Items, "gen-004")
	if finished.SKU != "FG-CUFF-HT" || finished.Quantity != 2 || !finished.IsActive() {
		t.Fatalf("finished = %+v, want 2 active pairs", finished)
	}
	refund := findByID(t, res.Items, "gen-003")
	if refund.SKU != "WIP-CASE-HT" || refund.Quantity != 1 || refund.StageID != "stg-assembly" {
		t.Fatalf("refund = %+v, want 1 loose casing at assembly", refund)
	}
	container := findByID(t, res.Items, "gen-001")
	if container.Status != domain.StatusConsumed || len(container.Assembly.Progress) != 0 {
		t.Fatalf("container = %+v, want consumed with cleared progress", container)
	}
	last := res.Logs[len(res.Logs)-1]
	if last.Action != domain.ActionMerged || last.Metadata.Yield != 2 {
		t.Fatalf("completion log = %+v", last)
	}
}

func TestAllocateRejectsNonBOMComponent(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{activeItem("it-1", "Kaliandra Casing", "WIP-CASE-KL", "stg-finishing", 3)}

	_, err := e.Allocate(testContext(), items, AllocateInput{
		ItemID: "it-1", ToStageID: "stg-assembly", Quantity: 1, ProductSKU: "FG-HT42-BLK",
	})
	if !errors.Is(err, domain.ErrNoMatchingBOM) {
		t.Fatalf("Allocate() error = %v, want %v", err, domain.ErrNoMatchingBOM)
	}
}

func TestAllocateRejectsUnknownProduct(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{activeItem("it-1", "Hutan Tropis Casing", "WIP-CASE-HT", "stg-finishing", 3)}

	_, err := e.Allocate(testContext(), items, AllocateInput{
		ItemID: "it-1", ToStageID: "stg-assembly", Quantity: 1, ProductSKU: "FG-NOPE",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Allocate() error = %v, want %v", err, domain.ErrNotFound)
	}
}

func TestSellMarksItemSoldInPlace(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{activeItem("it-1", "Hutan Tropis 42mm", "FG-HT42-BLK", "stg-packing", 2)}

	res, err := e.Sell(testContext(), items, SellInput{
		ItemID: "it-1", ToStageID: "stg-sold", Channel: domain.ChannelShopee, Price: 1250000,
	})
	if err != nil {
		t.Fatalf("Sell() error = %v", err)
	}
	sold := findByID(t, res.Items, "it-1")
	if sold.Status != domain.StatusSold || sold.StageID != "stg-sold" {
		t.Fatalf("sold = %+v", sold)
	}
	if sold.SalesChannel != domain.ChannelShopee || sold.Price != 1250000 {
		t.Fatalf("sale fields = channel %q price %d", sold.SalesChannel, sold.Price)
	}
	if len(res.Logs) != 1 || res.Logs[0].Action != domain.ActionSold {
		t.Fatalf("logs = %+v", res.Logs)
	}
	if res.Logs[0].Metadata.SalePrice != 1250000 || res.Logs[0].Metadata.MovedQty != 2 {
		t.Fatalf("log metadata = %+v", res.Logs[0].Metadata)
	}
}

func TestSellRejectsNonExitStage(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{activeItem("it-1", "Hutan Tropis 42mm", "FG-HT42-BLK", "stg-packing", 2)}

	_, err := e.Sell(testContext(), items, SellInput{
		ItemID: "it-1", ToStageID: "stg-packing", Channel: domain.ChannelShopee, Price: 100,
	})
	if !errors.Is(err, domain.ErrInvalidStage) {
		t.Fatalf("Sell() error = %v, want %v", err, domain.ErrInvalidStage)
	}
}

func TestSellRejectsDisabledChannel(t *testing.T) {
	e := newTestEngine()
	ctx := testContext()
	for i := range ctx.Blueprint.Stages {
		if ctx.Blueprint.Stages[i].ID == "stg-sold" {
			ctx.Blueprint.Stages[i].ExitChannels = []domain.SalesChannel{domain.ChannelOffline}
		}
	}
	items := []domain.KanbanItem{activeItem("it-1", "Hutan Tropis 42mm", "FG-HT42-BLK", "stg-packing", 2)}

	_, err := e.Sell(ctx, items, SellInput{
		ItemID: "it-1", ToStageID: "stg-sold", Channel: domain.ChannelShopee, Price: 100,
	})
	if !errors.Is(err, domain.ErrInvalidStage) {
		t.Fatalf("Sell() error = %v, want %v", err, domain.ErrInvalidStage)
	}
}

func TestAddCreatesOrMerges(t *testing.T) {
	e := newTestEngine()
	ctx := testContext()

	res, err := e.Add(ctx, nil, AddInput{
		Name: "Teak Wood Block", SKU: "RAW-JATI-001", StageID: "stg-raw", Quantity: 5,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Quantity != 5 {
		t.Fatalf("items = %+v", res.Items)
	}
	if len(res.Logs) != 1 || res.Logs[0].Action != domain.ActionAdded {
		t.Fatalf("logs = %+v", res.Logs)
	}

	res, err = e.Add(ctx, res.Items, AddInput{
		Name: "Teak Wood Block", SKU: "RAW-JATI-001", StageID: "stg-raw", Quantity: 3,
	})
	if err != nil {
		t.Fatalf("Add() merge error = %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Quantity != 8 {
		t.Fatalf("merged items = %+v, want single batch of 8", res.Items)
	}
}

func TestAddEnforcesCategoryGate(t *testing.T) {
	e := newTestEngine()
	_, err := e.Add(testContext(), nil, AddInput{
		Name: "Hutan Tropis 42mm", SKU: "FG-HT42-BLK", StageID: "stg-raw", Quantity: 1,
	})
	if !errors.Is(err, domain.ErrCategoryNotAllowed) {
		t.Fatalf("Add() error = %v, want %v", err, domain.ErrCategoryNotAllowed)
	}
}

func TestEditUpdatesFieldsAndLogs(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{activeItem("it-1", "Teak Wood Block", "RAW-JATI-001", "stg-raw", 5)}

	name := "Teak Wood Block (Grade B)"
	qty := 4
	res, err := e.Edit(testContext(), items, EditInput{ItemID: "it-1", Name: &name, Quantity: &qty})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	got := findByID(t, res.Items, "it-1")
	if got.Name != name || got.Quantity != 4 {
		t.Fatalf("edited = %+v", got)
	}
	if got.SKU != "RAW-JATI-001" {
		t.Fatalf("sku changed unexpectedly: %q", got.SKU)
	}
	if len(res.Logs) != 1 {
		t.Fatalf("logs = %+v, want audit entry for edit", res.Logs)
	}
}

func TestEditRejectsZeroQuantity(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{activeItem("it-1", "Teak Wood Block", "RAW-JATI-001", "stg-raw", 5)}

	qty := 0
	if _, err := e.Edit(testContext(), items, EditInput{ItemID: "it-1", Quantity: &qty}); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("Edit() error = %v, want %v", err, domain.ErrInvalidQuantity)
	}
}

func TestDeleteRemovesItemAndMarksTrail(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{
		activeItem("it-1", "Teak Wood Block", "RAW-JATI-001", "stg-raw", 5),
		activeItem("it-2", "Sono Wood Block", "RAW-SONO-001", "stg-raw", 2),
	}

	res, err := e.Delete(testContext(), items, DeleteInput{ItemID: "it-1"})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != "it-2" {
		t.Fatalf("items = %+v, want only it-2", res.Items)
	}
	if res.Logs[0].ItemName != "[DELETED] Teak Wood Block (5x)" {
		t.Fatalf("log name = %q", res.Logs[0].ItemName)
	}
}

func TestRejectFullMarksInPlace(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{activeItem("it-1", "Hutan Tropis Casing", "WIP-CASE-HT", "stg-finishing", 3)}

	res, err := e.Reject(testContext(), items, RejectInput{ItemID: "it-1", Quantity: 3})
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("item count = %d, want 1", len(res.Items))
	}
	got := res.Items[0]
	if got.Status != domain.StatusRejected || got.Quantity != 3 {
		t.Fatalf("rejected = %+v", got)
	}
	if res.Logs[0].Action != domain.ActionRejected || res.Logs[0].Metadata.RejectedQty != 3 {
		t.Fatalf("logs = %+v", res.Logs)
	}
}

func TestRejectPartialSplitsOffRejectedClone(t *testing.T) {
	e := newTestEngine()
	items := []domain.KanbanItem{activeItem("it-1", "Hutan Tropis Casing", "WIP-CASE-HT", "stg-finishing", 5)}

	res, err := e.Reject(testContext(), items, RejectInput{ItemID: "it-1", Quantity: 2})
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("item count = %d, want 2", len(res.Items))
	}
	remainder := findByID(t, res.Items, "it-1")
	if remainder.Quantity != 3 || !remainder.IsActive() {
		t.Fatalf("remainder = %+v", remainder)
	}
	rejected := findByID(t, res.Items, "gen-001")
	if rejected.Quantity != 2 || rejected.Status != domain.StatusRejected {
		t.Fatalf("rejected clone = %+v", rejected)
	}
	if totalQuantity(res.Items) != 5 {
		t.Fatalf("total quantity = %d, want 5", totalQuantity(res.Items))
	}
}

func TestCalcStats(t *testing.T) {
	bp := domain.DefaultBlueprint()
	yesterday := testNow.Add(-24 * time.Hour)

	soldToday := activeItem("s1", "Hutan Tropis 42mm", "FG-HT42-BLK", "stg-sold", 2)
	soldToday.Status = domain.StatusSold
	soldToday.SalesChannel = domain.ChannelShopee
	soldToday.Price = 2500000
	soldToday.UpdatedAt = testNow

	rejected := activeItem("r1", "Hutan Tropis Casing", "WIP-CASE-HT", "stg-finishing", 4)
	rejected.Status = domain.StatusRejected

	orphanRejected := activeItem("r2", "Old Batch", "WIP-OLD-001", "stg-retired", 9)
	orphanRejected.Status = domain.StatusRejected

	ready := activeItem("w2", "Hutan Tropis 42mm", "FG-HT42-BLK", "stg-packing", 3)
	ready.Price = 2500000

	items := []domain.KanbanItem{
		activeItem("w1", "Teak Wood Block", "RAW-JATI-001", "stg-raw", 10),
		ready, soldToday, rejected, orphanRejected,
	}
	logs := []domain.ActivityEntry{
		{ID: "l1", Timestamp: testNow, Action: domain.ActionSplit},
		{ID: "l2", Timestamp: testNow, Action: domain.ActionMerged},
		{ID: "l3", Timestamp: yesterday, Action: domain.ActionSplit},
		{ID: "l4", Timestamp: testNow, Action: domain.ActionMoved},
		{ID: "l5", Timestamp: testNow, Action: domain.ActionSold,
			Metadata: domain.ActivityMetadata{MovedQty: 2, SalePrice: 2500000, SalesChannel: domain.ChannelShopee}},
		{ID: "l6", Timestamp: yesterday, Action: domain.ActionSold,
			Metadata: domain.ActivityMetadata{MovedQty: 1, SalePrice: 1800000, SalesChannel: domain.ChannelOffline}},
	}

	stats := CalcStats(bp, items, logs, testNow)
	if stats.TotalWIP != 10 {
		t.Fatalf("TotalWIP = %d, want 10", stats.TotalWIP)
	}
	if stats.ReadyToShip != 3 || stats.StockValue != 7500000 {
		t.Fatalf("ready = %d pcs / %d value", stats.ReadyToShip, stats.StockValue)
	}
	if stats.SoldTodayQty != 2 || stats.RevenueToday != 2500000 {
		t.Fatalf("sold today = %d qty / %d revenue", stats.SoldTodayQty, stats.RevenueToday)
	}
	if stats.SalesByChannel[domain.ChannelShopee] != 2 || stats.SalesByChannel[domain.ChannelOffline] != 0 {
		t.Fatalf("SalesByChannel = %v", stats.SalesByChannel)
	}
	if stats.SplitsToday != 1 || stats.MergesToday != 1 {
		t.Fatalf("splits/merges = %d/%d, want 1/1", stats.SplitsToday, stats.MergesToday)
	}
	if stats.RejectedQty != 4 {
		t.Fatalf("RejectedQty = %d, want 4", stats.RejectedQty)
	}
}
