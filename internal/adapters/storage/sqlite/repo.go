// Package sqlite persists board state, the audit trail, master data, and
// derived stock levels in a single sqlite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gentanala/mes/internal/app"
	"github.com/gentanala/mes/internal/domain"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Repository is the sqlite implementation of app.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens an ephemeral database, used by tests. The pool is
// capped at one connection so every statement sees the same memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS kanban_items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			stage_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price INTEGER NOT NULL DEFAULT 0,
			collection TEXT NOT NULL DEFAULT '',
			emoji TEXT NOT NULL DEFAULT '',
			parent_id TEXT NOT NULL DEFAULT '',
			child_ids_json TEXT NOT NULL DEFAULT '[]',
			merged_from_json TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL,
			sales_channel TEXT NOT NULL DEFAULT '',
			assembly_json TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS activity_logs (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			item_name TEXT NOT NULL,
			from_stage TEXT NOT NULL DEFAULT '',
			to_stage TEXT NOT NULL DEFAULT '',
			logic_type TEXT NOT NULL DEFAULT '',
			metadata_json TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE TABLE IF NOT EXISTS master_materials (
			id TEXT PRIMARY KEY,
			sku TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			transform_yields_json TEXT NOT NULL DEFAULT '[]'
		);`,
		`CREATE TABLE IF NOT EXISTS master_products (
			id TEXT PRIMARY KEY,
			sku TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			collection TEXT NOT NULL DEFAULT '',
			bom_json TEXT NOT NULL DEFAULT '[]',
			description TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS master_collections (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS stock_levels (
			sku TEXT PRIMARY KEY,
			ready_qty INTEGER NOT NULL DEFAULT 0,
			sold_qty INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_kanban_items_stage_status ON kanban_items(stage_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_activity_logs_ts ON activity_logs(ts ASC, id ASC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	if _, err := r.db.ExecContext(ctx, `ALTER TABLE kanban_items ADD COLUMN sales_channel TEXT NOT NULL DEFAULT ''`); err != nil && !isDuplicateColumnErr(err) {
		return fmt.Errorf("migrate sqlite add kanban_items.sales_channel: %w", err)
	}
	return nil
}

// ListItems returns the full board snapshot.
func (r *Repository) ListItems(ctx context.Context) ([]domain.KanbanItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, sku, stage_id, quantity, price, collection, emoji,
			parent_id, child_ids_json, merged_from_json, status, sales_channel,
			assembly_json, created_at, updated_at
		FROM kanban_items
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.KanbanItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ReplaceItems swaps the whole board snapshot in one transaction.
func (r *Repository) ReplaceItems(ctx context.Context, items []domain.KanbanItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceItemsTx(ctx, tx, items); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveTransition commits one transition atomically: the replacement board
// snapshot and its new audit entries land together or not at all.
func (r *Repository) SaveTransition(ctx context.Context, items []domain.KanbanItem, logs []domain.ActivityEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceItemsTx(ctx, tx, items); err != nil {
		return err
	}
	for _, entry := range logs {
		if err := insertLog(ctx, tx, entry); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func replaceItemsTx(ctx context.Context, tx *sql.Tx, items []domain.KanbanItem) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM kanban_items`); err != nil {
		return err
	}
	for _, item := range items {
		childJSON, err := json.Marshal(orEmpty(item.ChildIDs))
		if err != nil {
			return fmt.Errorf("encode child_ids: %w", err)
		}
		mergedJSON, err := json.Marshal(orEmpty(item.MergedFrom))
		if err != nil {
			return fmt.Errorf("encode merged_from: %w", err)
		}
		var assembly any
		if item.Assembly != nil {
			raw, err := json.Marshal(item.Assembly)
			if err != nil {
				return fmt.Errorf("encode assembly state: %w", err)
			}
			assembly = string(raw)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO kanban_items(
				id, name, sku, stage_id, quantity, price, collection, emoji,
				parent_id, child_ids_json, merged_from_json, status, sales_channel,
				assembly_json, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, item.ID, item.Name, item.SKU, item.StageID, item.Quantity, item.Price,
			item.Collection, item.Emoji, item.ParentID, string(childJSON), string(mergedJSON),
			string(item.Status), string(item.SalesChannel), assembly,
			ts(item.CreatedAt), ts(item.UpdatedAt)); err != nil {
			return err
		}
	}
	return nil
}

// ListLogs returns audit entries in chronological order; limit > 0 keeps
// only the newest entries.
func (r *Repository) ListLogs(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ts, actor, action, item_name, from_stage, to_stage, logic_type, metadata_json
		FROM activity_logs
		ORDER BY ts ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ActivityEntry{}
	for rows.Next() {
		var (
			entry   domain.ActivityEntry
			tsRaw   string
			metaRaw string
		)
		if err := rows.Scan(&entry.ID, &tsRaw, &entry.Actor, &entry.Action, &entry.ItemName,
			&entry.FromStage, &entry.ToStage, &entry.LogicType, &metaRaw); err != nil {
			return nil, err
		}
		entry.Timestamp = parseTS(tsRaw)
		if strings.TrimSpace(metaRaw) == "" {
			metaRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metaRaw), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("decode activity metadata_json: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ReplaceLogs swaps the whole audit trail, used only by undo and import.
func (r *Repository) ReplaceLogs(ctx context.Context, logs []domain.ActivityEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM activity_logs`); err != nil {
		return err
	}
	for _, entry := range logs {
		if err := insertLog(ctx, tx, entry); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertLog(ctx context.Context, tx *sql.Tx, entry domain.ActivityEntry) error {
	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encode activity metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO activity_logs(id, ts, actor, action, item_name, from_stage, to_stage, logic_type, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, ts(entry.Timestamp), entry.Actor, string(entry.Action), entry.ItemName,
		entry.FromStage, entry.ToStage, string(entry.LogicType), string(metaJSON))
	return err
}

// LoadCatalog reads the full master-data catalog.
func (r *Repository) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	var catalog domain.Catalog

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sku, name, category, unit, description, transform_yields_json
		FROM master_materials ORDER BY sku ASC
	`)
	if err != nil {
		return domain.Catalog{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m         domain.MasterMaterial
			yieldsRaw string
		)
		if err := rows.Scan(&m.ID, &m.SKU, &m.Name, &m.Category, &m.Unit, &m.Description, &yieldsRaw); err != nil {
			return domain.Catalog{}, err
		}
		if err := json.Unmarshal([]byte(yieldsRaw), &m.TransformYields); err != nil {
			return domain.Catalog{}, fmt.Errorf("decode transform_yields_json: %w", err)
		}
		catalog.Materials = append(catalog.Materials, m)
	}
	if err := rows.Err(); err != nil {
		return domain.Catalog{}, err
	}

	prodRows, err := r.db.QueryContext(ctx, `
		SELECT id, sku, name, collection, bom_json, description
		FROM master_products ORDER BY sku ASC
	`)
	if err != nil {
		return domain.Catalog{}, err
	}
	defer prodRows.Close()
	for prodRows.Next() {
		var (
			p      domain.MasterProduct
			bomRaw string
		)
		if err := prodRows.Scan(&p.ID, &p.SKU, &p.Name, &p.Collection, &bomRaw, &p.Description); err != nil {
			return domain.Catalog{}, err
		}
		if err := json.Unmarshal([]byte(bomRaw), &p.BOM); err != nil {
			return domain.Catalog{}, fmt.Errorf("decode bom_json: %w", err)
		}
		catalog.Products = append(catalog.Products, p)
	}
	if err := prodRows.Err(); err != nil {
		return domain.Catalog{}, err
	}

	colRows, err := r.db.QueryContext(ctx, `
		SELECT id, name, color FROM master_collections ORDER BY name ASC
	`)
	if err != nil {
		return domain.Catalog{}, err
	}
	defer colRows.Close()
	for colRows.Next() {
		var c domain.MasterCollection
		if err := colRows.Scan(&c.ID, &c.Name, &c.Color); err != nil {
			return domain.Catalog{}, err
		}
		catalog.Collections = append(catalog.Collections, c)
	}
	return catalog, colRows.Err()
}

// SaveCatalog replaces the persisted master data in one transaction.
func (r *Repository) SaveCatalog(ctx context.Context, catalog domain.Catalog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"master_materials", "master_products", "master_collections"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	for _, m := range catalog.Materials {
		yieldsJSON, err := json.Marshal(orEmpty(m.TransformYields))
		if err != nil {
			return fmt.Errorf("encode transform_yields: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO master_materials(id, sku, name, category, unit, description, transform_yields_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.SKU, m.Name, string(m.Category), m.Unit, m.Description, string(yieldsJSON)); err != nil {
			return err
		}
	}
	for _, p := range catalog.Products {
		bomJSON, err := json.Marshal(p.BOM)
		if err != nil {
			return fmt.Errorf("encode bom: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO master_products(id, sku, name, collection, bom_json, description)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.ID, p.SKU, p.Name, p.Collection, string(bomJSON), p.Description); err != nil {
			return err
		}
	}
	for _, c := range catalog.Collections {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO master_collections(id, name, color) VALUES (?, ?, ?)
		`, c.ID, c.Name, c.Color); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListStockLevels returns every derived stock row.
func (r *Repository) ListStockLevels(ctx context.Context) ([]app.StockLevel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sku, ready_qty, sold_qty, updated_at FROM stock_levels ORDER BY sku ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []app.StockLevel{}
	for rows.Next() {
		var (
			lvl   app.StockLevel
			tsRaw string
		)
		if err := rows.Scan(&lvl.SKU, &lvl.ReadyQty, &lvl.SoldQty, &tsRaw); err != nil {
			return nil, err
		}
		lvl.UpdatedAt = parseTS(tsRaw)
		out = append(out, lvl)
	}
	return out, rows.Err()
}

// UpsertStockLevel writes one stock row keyed by SKU.
func (r *Repository) UpsertStockLevel(ctx context.Context, lvl app.StockLevel) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_levels(sku, ready_qty, sold_qty, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sku) DO UPDATE SET ready_qty = excluded.ready_qty,
			sold_qty = excluded.sold_qty, updated_at = excluded.updated_at
	`, lvl.SKU, lvl.ReadyQty, lvl.SoldQty, ts(lvl.UpdatedAt))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.KanbanItem, error) {
	var (
		item        domain.KanbanItem
		childRaw    string
		mergedRaw   string
		assemblyRaw sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := row.Scan(&item.ID, &item.Name, &item.SKU, &item.StageID, &item.Quantity,
		&item.Price, &item.Collection, &item.Emoji, &item.ParentID, &childRaw, &mergedRaw,
		&item.Status, &item.SalesChannel, &assemblyRaw, &createdRaw, &updatedRaw); err != nil {
		return domain.KanbanItem{}, err
	}
	if err := json.Unmarshal([]byte(childRaw), &item.ChildIDs); err != nil {
		return domain.KanbanItem{}, fmt.Errorf("decode child_ids_json: %w", err)
	}
	if err := json.Unmarshal([]byte(mergedRaw), &item.MergedFrom); err != nil {
		return domain.KanbanItem{}, fmt.Errorf("decode merged_from_json: %w", err)
	}
	if assemblyRaw.Valid && strings.TrimSpace(assemblyRaw.String) != "" {
		item.Assembly = &domain.AssemblyState{}
		if err := json.Unmarshal([]byte(assemblyRaw.String), item.Assembly); err != nil {
			return domain.KanbanItem{}, fmt.Errorf("decode assembly_json: %w", err)
		}
	}
	item.CreatedAt = parseTS(createdRaw)
	item.UpdatedAt = parseTS(updatedRaw)
	return item, nil
}

// orEmpty keeps JSON columns as [] instead of null for nil slices.
func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(v string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func isDuplicateColumnErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
