package domain

import (
	"slices"
	"strings"
)

// MaterialCategory classifies master materials and gates which stages a
// batch may enter.
type MaterialCategory string

// MaterialCategory values.
const (
	CategoryRaw      MaterialCategory = "raw"
	CategoryWIP      MaterialCategory = "wip"
	CategoryFinished MaterialCategory = "finished"
)

// IsValidMaterialCategory reports whether the category is canonical.
func IsValidMaterialCategory(c MaterialCategory) bool {
	return slices.Contains([]MaterialCategory{CategoryRaw, CategoryWIP, CategoryFinished}, c)
}

// MasterMaterial is a raw or intermediate material in the reference catalog.
type MasterMaterial struct {
	ID              string           `json:"id"`
	SKU             string           `json:"sku"`
	Name            string           `json:"name"`
	Category        MaterialCategory `json:"category"`
	Unit            string           `json:"unit"`
	Description     string           `json:"description,omitempty"`
	TransformYields []string         `json:"transform_yields,omitempty"`
}

// BOMComponent is one bill-of-materials line: the component SKU and how many
// units one finished good requires.
type BOMComponent struct {
	MaterialSKU  string `json:"material_sku"`
	MaterialName string `json:"material_name"`
	Qty          int    `json:"qty"`
}

// MasterProduct is a finished good assembled from its BOM.
type MasterProduct struct {
	ID          string         `json:"id"`
	SKU         string         `json:"sku"`
	Name        string         `json:"name"`
	Collection  string         `json:"collection"`
	BOM         []BOMComponent `json:"bom"`
	Description string         `json:"description,omitempty"`
}

// BOMLine returns the BOM component for the given material SKU.
func (p MasterProduct) BOMLine(sku string) (BOMComponent, bool) {
	for _, c := range p.BOM {
		if c.MaterialSKU == sku {
			return c, true
		}
	}
	return BOMComponent{}, false
}

// MasterCollection is a named product collection used for grouping.
type MasterCollection struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Catalog bundles the read-mostly master data the engine consults. It is
// passed explicitly into every transition call, never held as ambient state.
type Catalog struct {
	Materials   []MasterMaterial
	Products    []MasterProduct
	Collections []MasterCollection
}

// MaterialBySKU looks up a master material by SKU.
func (c Catalog) MaterialBySKU(sku string) (MasterMaterial, bool) {
	for _, m := range c.Materials {
		if m.SKU == sku {
			return m, true
		}
	}
	return MasterMaterial{}, false
}

// ProductBySKU looks up a finished product by SKU.
func (c Catalog) ProductBySKU(sku string) (MasterProduct, bool) {
	for _, p := range c.Products {
		if p.SKU == sku {
			return p, true
		}
	}
	return MasterProduct{}, false
}

// ProductsUsing returns every product whose BOM references the material SKU.
func (c Catalog) ProductsUsing(sku string) []MasterProduct {
	if strings.TrimSpace(sku) == "" {
		return nil
	}
	var out []MasterProduct
	for _, p := range c.Products {
		if _, ok := p.BOMLine(sku); ok {
			out = append(out, p)
		}
	}
	return out
}

// InferCategory resolves an item's material category. The catalog is
// authoritative when the SKU is known; otherwise lineage and the SKU naming
// convention (WIP-/FG- prefixes) decide, and an unknown SKU defaults to raw.
func (c Catalog) InferCategory(item KanbanItem) MaterialCategory {
	if item.SKU != "" {
		if m, ok := c.MaterialBySKU(item.SKU); ok {
			return m.Category
		}
		if _, ok := c.ProductBySKU(item.SKU); ok {
			return CategoryFinished
		}
		if strings.HasPrefix(item.SKU, "FG-") {
			return CategoryFinished
		}
		if strings.HasPrefix(item.SKU, "WIP-") {
			return CategoryWIP
		}
	}
	if item.ParentID != "" || len(item.MergedFrom) > 0 {
		return CategoryWIP
	}
	return CategoryRaw
}

// SearchMaterials filters materials by name, SKU, or category substring.
func SearchMaterials(list []MasterMaterial, query string) []MasterMaterial {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return capList(list, 10)
	}
	var out []MasterMaterial
	for _, m := range list {
		if strings.Contains(strings.ToLower(m.Name), q) ||
			strings.Contains(strings.ToLower(m.SKU), q) ||
			strings.Contains(string(m.Category), q) {
			out = append(out, m)
		}
	}
	return capList(out, 10)
}

// SearchProducts filters products by name, SKU, or collection substring.
func SearchProducts(list []MasterProduct, query string) []MasterProduct {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return capList(list, 10)
	}
	var out []MasterProduct
	for _, p := range list {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.SKU), q) ||
			strings.Contains(strings.ToLower(p.Collection), q) {
			out = append(out, p)
		}
	}
	return capList(out, 10)
}

// CatalogHit is one autocomplete result across materials and products.
type CatalogHit struct {
	Type       string           `json:"type"` // material | product
	Name       string           `json:"name"`
	SKU        string           `json:"sku"`
	Collection string           `json:"collection,omitempty"`
	Category   MaterialCategory `json:"category,omitempty"`
}

// SearchByCategories returns catalog hits restricted to the allowed material
// categories: raw/wip match materials, finished matches products.
func (c Catalog) SearchByCategories(query string, allowed []MaterialCategory) []CatalogHit {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []CatalogHit
	matchesQuery := func(name, sku string) bool {
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(name), q) || strings.Contains(strings.ToLower(sku), q)
	}

	for _, m := range c.Materials {
		if !slices.Contains(allowed, m.Category) || m.Category == CategoryFinished {
			continue
		}
		if matchesQuery(m.Name, m.SKU) {
			out = append(out, CatalogHit{Type: "material", Name: m.Name, SKU: m.SKU, Category: m.Category})
		}
	}
	if slices.Contains(allowed, CategoryFinished) {
		for _, p := range c.Products {
			if matchesQuery(p.Name, p.SKU) {
				out = append(out, CatalogHit{Type: "product", Name: p.Name, SKU: p.SKU, Collection: p.Collection, Category: CategoryFinished})
			}
		}
	}
	return capList(out, 10)
}

func capList[T any](in []T, n int) []T {
	if len(in) > n {
		return in[:n]
	}
	return in
}
