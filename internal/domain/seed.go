package domain

// DefaultBlueprint returns the built-in watch production pipeline. The stage
// ids are stable reference keys; config may override the whole blueprint.
func DefaultBlueprint() WorkflowBlueprint {
	return WorkflowBlueprint{
		ID:          "bp-watch-001",
		Name:        "Watch Assembly",
		ProductType: "watch",
		Description: "Wooden watch production flow",
		Stages: []WorkflowStage{
			{
				ID: "stg-raw", Name: "Raw Material", Order: 1,
				LogicType:                 LogicPassthrough,
				AllowedMaterialCategories: []MaterialCategory{CategoryRaw},
				Emoji:                     "🪵",
			},
			{
				ID: "stg-cnc", Name: "CNC / Processing", Order: 2,
				LogicType:                 LogicSplit,
				DefaultYield:              4,
				AllowedMaterialCategories: []MaterialCategory{CategoryRaw, CategoryWIP},
				Emoji:                     "⚙️",
			},
			{
				ID: "stg-finishing", Name: "Finishing & Polish", Order: 3,
				LogicType:                 LogicPassthrough,
				AllowedMaterialCategories: []MaterialCategory{CategoryWIP},
				Emoji:                     "✨",
			},
			{
				ID: "stg-assembly", Name: "Assembly", Order: 4,
				LogicType:                 LogicMerge,
				MergeInputCount:           2,
				AllowedMaterialCategories: []MaterialCategory{CategoryWIP, CategoryRaw},
				Emoji:                     "🔧",
			},
			{
				ID: "stg-packing", Name: "Packing Ready", Order: 5,
				LogicType:                 LogicPassthrough,
				AllowedMaterialCategories: []MaterialCategory{CategoryFinished},
				Emoji:                     "📦",
			},
			{
				ID: "stg-sold", Name: "SOLD", Order: 6,
				LogicType: LogicExit,
				ExitChannels: []SalesChannel{
					ChannelShopee, ChannelTokopedia, ChannelWhatsApp,
					ChannelOffline, ChannelB2B, ChannelKOLGift,
				},
				Emoji: "💰",
			},
		},
	}
}

// SeedCatalog returns the reference master data used to seed an empty
// database: teak/sono watch materials and the finished products built from
// them.
func SeedCatalog() Catalog {
	return Catalog{
		Materials: []MasterMaterial{
			{ID: "mat-001", Name: "Teak Wood Block", SKU: "RAW-JATI-001", Category: CategoryRaw, Unit: "block", Description: "Grade A teak for casings", TransformYields: []string{"WIP-CASE-HT"}},
			{ID: "mat-002", Name: "Sono Wood Block", SKU: "RAW-SONO-001", Category: CategoryRaw, Unit: "block", Description: "Rosewood for premium casings", TransformYields: []string{"WIP-CASE-KL"}},
			{ID: "mat-003", Name: "Cowhide Leather Sheet", SKU: "RAW-KULIT-001", Category: CategoryRaw, Unit: "sheet", Description: "Genuine leather for straps", TransformYields: []string{"WIP-STRAP-BR", "WIP-STRAP-BK"}},
			{ID: "mat-004", Name: "Miyota 2035 Movement", SKU: "RAW-MIYOTA-001", Category: CategoryRaw, Unit: "pcs"},
			{ID: "mat-005", Name: "Seiko NH35 Movement", SKU: "RAW-SEIKO-001", Category: CategoryRaw, Unit: "pcs"},
			{ID: "mat-006", Name: "Sapphire Glass 42mm", SKU: "RAW-SAPH-42", Category: CategoryRaw, Unit: "pcs"},
			{ID: "mat-007", Name: "Sapphire Glass 38mm", SKU: "RAW-SAPH-38", Category: CategoryRaw, Unit: "pcs"},
			{ID: "mat-008", Name: "Stainless Crown", SKU: "RAW-CROWN-SS", Category: CategoryRaw, Unit: "pcs"},
			{ID: "mat-009", Name: "Stainless Buckle", SKU: "RAW-BUCKLE-SS", Category: CategoryRaw, Unit: "pcs"},
			{ID: "mat-010", Name: "Hutan Tropis Casing", SKU: "WIP-CASE-HT", Category: CategoryWIP, Unit: "pcs"},
			{ID: "mat-011", Name: "Kaliandra Casing", SKU: "WIP-CASE-KL", Category: CategoryWIP, Unit: "pcs"},
			{ID: "mat-012", Name: "Brown Leather Strap", SKU: "WIP-STRAP-BR", Category: CategoryWIP, Unit: "pcs"},
			{ID: "mat-013", Name: "Black Leather Strap", SKU: "WIP-STRAP-BK", Category: CategoryWIP, Unit: "pcs"},
		},
		Products: []MasterProduct{
			{
				ID: "prod-001", Name: "Hutan Tropis 42mm", SKU: "FG-HT42-BLK", Collection: "Hutan Tropis",
				BOM: []BOMComponent{
					{MaterialSKU: "WIP-CASE-HT", MaterialName: "Hutan Tropis Casing", Qty: 1},
					{MaterialSKU: "WIP-STRAP-BR", MaterialName: "Brown Leather Strap", Qty: 1},
					{MaterialSKU: "RAW-MIYOTA-001", MaterialName: "Miyota 2035 Movement", Qty: 1},
					{MaterialSKU: "RAW-SAPH-42", MaterialName: "Sapphire Glass 42mm", Qty: 1},
					{MaterialSKU: "RAW-CROWN-SS", MaterialName: "Stainless Crown", Qty: 1},
					{MaterialSKU: "RAW-BUCKLE-SS", MaterialName: "Stainless Buckle", Qty: 1},
				},
			},
			{
				ID: "prod-002", Name: "Kaliandra 38mm", SKU: "FG-KL38-NAT", Collection: "Kaliandra",
				BOM: []BOMComponent{
					{MaterialSKU: "WIP-CASE-KL", MaterialName: "Kaliandra Casing", Qty: 1},
					{MaterialSKU: "WIP-STRAP-BK", MaterialName: "Black Leather Strap", Qty: 1},
					{MaterialSKU: "RAW-SEIKO-001", MaterialName: "Seiko NH35 Movement", Qty: 1},
					{MaterialSKU: "RAW-SAPH-38", MaterialName: "Sapphire Glass 38mm", Qty: 1},
					{MaterialSKU: "RAW-CROWN-SS", MaterialName: "Stainless Crown", Qty: 1},
					{MaterialSKU: "RAW-BUCKLE-SS", MaterialName: "Stainless Buckle", Qty: 1},
				},
			},
			{
				ID: "prod-003", Name: "Hutan Tropis 42mm Auto", SKU: "FG-HT42-AUTO", Collection: "Hutan Tropis",
				BOM: []BOMComponent{
					{MaterialSKU: "WIP-CASE-HT", MaterialName: "Hutan Tropis Casing", Qty: 1},
					{MaterialSKU: "WIP-STRAP-BR", MaterialName: "Brown Leather Strap", Qty: 1},
					{MaterialSKU: "RAW-SEIKO-001", MaterialName: "Seiko NH35 Movement", Qty: 1},
					{MaterialSKU: "RAW-SAPH-42", MaterialName: "Sapphire Glass 42mm", Qty: 1},
					{MaterialSKU: "RAW-CROWN-SS", MaterialName: "Stainless Crown", Qty: 1},
					{MaterialSKU: "RAW-BUCKLE-SS", MaterialName: "Stainless Buckle", Qty: 1},
				},
			},
		},
		Collections: []MasterCollection{
			{ID: "col-001", Name: "Hutan Tropis", Color: "emerald"},
			{ID: "col-002", Name: "Kaliandra", Color: "amber"},
			{ID: "col-003", Name: "Nusantara", Color: "indigo"},
			{ID: "col-004", Name: "Archipelago", Color: "sky"},
		},
	}
}
