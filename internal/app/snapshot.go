package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gentanala/mes/internal/domain"
)

// SnapshotVersion is the current export format version.
const SnapshotVersion = 1

// Snapshot is a portable export of the full production state: board, audit
// trail, and master data. Used for backup and for moving a board between
// machines.
type Snapshot struct {
	Version    int                      `json:"version"`
	ExportedAt time.Time                `json:"exported_at"`
	Blueprint  domain.WorkflowBlueprint `json:"blueprint"`
	Catalog    domain.Catalog           `json:"catalog"`
	Items      []domain.KanbanItem      `json:"items"`
	Logs       []domain.ActivityEntry   `json:"logs"`
}

// Export captures the current state as a snapshot.
func (s *Service) Export(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	logs, err := s.repo.ListLogs(ctx, 0)
	if err != nil {
		return Snapshot{}, err
	}
	catalog, err := s.repo.LoadCatalog(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Blueprint:  s.blueprint,
		Catalog:    catalog,
		Items:      items,
		Logs:       logs,
	}, nil
}

// Import replaces the persisted state with the snapshot's contents. The
// in-memory undo stack is cleared since its baselines no longer apply.
func (s *Service) Import(ctx context.Context, snap Snapshot) error {
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	for _, item := range snap.Items {
		if item.ID == "" {
			return fmt.Errorf("snapshot item without id: %w", domain.ErrInvalidID)
		}
		if !domain.IsValidItemStatus(item.Status) {
			return fmt.Errorf("snapshot item %q has status %q: %w", item.ID, item.Status, domain.ErrInvalidID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.SaveCatalog(ctx, snap.Catalog); err != nil {
		return err
	}
	if err := s.repo.ReplaceItems(ctx, snap.Items); err != nil {
		return err
	}
	if err := s.repo.ReplaceLogs(ctx, snap.Logs); err != nil {
		return err
	}
	s.undo = nil
	return s.syncStockLocked(ctx, snap.Items)
}
