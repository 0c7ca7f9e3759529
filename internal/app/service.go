package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gentanala/mes/internal/domain"
	"github.com/gentanala/mes/internal/engine"
)

// ErrNothingToUndo is returned when the undo stack is empty.
var ErrNothingToUndo = errors.New("nothing to undo")

// maxUndoDepth bounds the in-memory undo stack.
const maxUndoDepth = 20

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// ServiceConfig holds configuration for the production service.
type ServiceConfig struct {
	Blueprint domain.WorkflowBlueprint
	Actor     string
}

// Service coordinates the transition engine with persistence. A single
// mutex serializes every mutating call so transitions apply strictly
// sequentially against one authoritative board snapshot.
type Service struct {
	repo  Repository
	eng   *engine.Engine
	clock Clock

	blueprint domain.WorkflowBlueprint
	actor     string

	mu   sync.Mutex
	undo []boardSnapshot
}

type boardSnapshot struct {
	items []domain.KanbanItem
	logs  []domain.ActivityEntry
}

// NewService constructs the service. The blueprint is validated once here;
// transitions trust it afterwards.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) (*Service, error) {
	if clock == nil {
		clock = time.Now
	}
	if cfg.Blueprint.ID == "" {
		cfg.Blueprint = domain.DefaultBlueprint()
	}
	if err := cfg.Blueprint.Validate(); err != nil {
		return nil, err
	}
	if cfg.Actor == "" {
		cfg.Actor = "operator"
	}
	return &Service{
		repo:      repo,
		eng:       engine.New(engine.IDGenerator(idGen), engine.Clock(clock)),
		clock:     clock,
		blueprint: cfg.Blueprint,
		actor:     cfg.Actor,
	}, nil
}

// EnsureSeedData loads the catalog and seeds the reference master data when
// the store is empty, so a fresh database is immediately usable.
func (s *Service) EnsureSeedData(ctx context.Context) error {
	catalog, err := s.repo.LoadCatalog(ctx)
	if err != nil {
		return err
	}
	if len(catalog.Materials) > 0 || len(catalog.Products) > 0 {
		return nil
	}
	return s.repo.SaveCatalog(ctx, domain.SeedCatalog())
}

// Blueprint returns the active workflow blueprint.
func (s *Service) Blueprint() domain.WorkflowBlueprint {
	return s.blueprint
}

// BoardView is the full board state handed to presentation layers.
type BoardView struct {
	Blueprint domain.WorkflowBlueprint `json:"blueprint"`
	Items     []domain.KanbanItem      `json:"items"`
}

// Board returns the blueprint plus every item, active and terminated.
func (s *Service) Board(ctx context.Context) (BoardView, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return BoardView{}, err
	}
	return BoardView{Blueprint: s.blueprint, Items: items}, nil
}

// Logs returns the newest audit entries up to limit; limit <= 0 means all.
func (s *Service) Logs(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	return s.repo.ListLogs(ctx, limit)
}

// Catalog returns the persisted master data.
func (s *Service) Catalog(ctx context.Context) (domain.Catalog, error) {
	return s.repo.LoadCatalog(ctx)
}

// SearchCatalog returns autocomplete hits restricted to the categories the
// target stage accepts. An unknown stage id yields an unrestricted search.
func (s *Service) SearchCatalog(ctx context.Context, query, stageID string) ([]domain.CatalogHit, error) {
	catalog, err := s.repo.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	allowed := []domain.MaterialCategory{domain.CategoryRaw, domain.CategoryWIP, domain.CategoryFinished}
	if stage, ok := s.blueprint.StageByID(stageID); ok && len(stage.AllowedMaterialCategories) > 0 {
		allowed = stage.AllowedMaterialCategories
	}
	return catalog.SearchByCategories(query, allowed), nil
}

// Stats aggregates current board and log state.
func (s *Service) Stats(ctx context.Context) (engine.Stats, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return engine.Stats{}, err
	}
	logs, err := s.repo.ListLogs(ctx, 0)
	if err != nil {
		return engine.Stats{}, err
	}
	return engine.CalcStats(s.blueprint, items, logs, s.clock()), nil
}

// StockLevels returns derived finished-good stock positions.
func (s *Service) StockLevels(ctx context.Context) ([]StockLevel, error) {
	return s.repo.ListStockLevels(ctx)
}

// MoveItem relocates quantity units of an item into a passthrough stage.
func (s *Service) MoveItem(ctx context.Context, in engine.MoveInput) (engine.Result, error) {
	return s.apply(ctx, func(ec engine.Context, items []domain.KanbanItem) (engine.Result, error) {
		return s.eng.Move(ec, items, in)
	})
}

// SplitItem transforms part of a batch into a child batch at a split stage.
func (s *Service) SplitItem(ctx context.Context, in engine.SplitInput) (engine.Result, error) {
	return s.apply(ctx, func(ec engine.Context, items []domain.KanbanItem) (engine.Result, error) {
		return s.eng.Split(ec, items, in)
	})
}

// AllocateItem commits component units toward a product assembly.
func (s *Service) AllocateItem(ctx context.Context, in engine.AllocateInput) (engine.Result, error) {
	return s.apply(ctx, func(ec engine.Context, items []domain.KanbanItem) (engine.Result, error) {
		return s.eng.Allocate(ec, items, in)
	})
}

// SellItem records a sale through an exit stage.
func (s *Service) SellItem(ctx context.Context, in engine.SellInput) (engine.Result, error) {
	return s.apply(ctx, func(ec engine.Context, items []domain.KanbanItem) (engine.Result, error) {
		return s.eng.Sell(ec, items, in)
	})
}

// AddItem places new material on the board.
func (s *Service) AddItem(ctx context.Context, in engine.AddInput) (engine.Result, error) {
	return s.apply(ctx, func(ec engine.Context, items []domain.KanbanItem) (engine.Result, error) {
		return s.eng.Add(ec, items, in)
	})
}

// EditItem applies a manual correction to an item.
func (s *Service) EditItem(ctx context.Context, in engine.EditInput) (engine.Result, error) {
	return s.apply(ctx, func(ec engine.Context, items []domain.KanbanItem) (engine.Result, error) {
		return s.eng.Edit(ec, items, in)
	})
}

// DeleteItem removes a mistakenly created item.
func (s *Service) DeleteItem(ctx context.Context, in engine.DeleteInput) (engine.Result, error) {
	return s.apply(ctx, func(ec engine.Context, items []domain.KanbanItem) (engine.Result, error) {
		return s.eng.Delete(ec, items, in)
	})
}

// RejectItem writes off defective units.
func (s *Service) RejectItem(ctx context.Context, in engine.RejectInput) (engine.Result, error) {
	return s.apply(ctx, func(ec engine.Context, items []domain.KanbanItem) (engine.Result, error) {
		return s.eng.Reject(ec, items, in)
	})
}

// Undo restores the board and audit trail to the state before the most
// recent transition. The undo stack lives in memory and is bounded; it does
// not survive a restart.
func (s *Service) Undo(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.undo) == 0 {
		return ErrNothingToUndo
	}
	snap := s.undo[len(s.undo)-1]
	if err := s.repo.ReplaceItems(ctx, snap.items); err != nil {
		return err
	}
	if err := s.repo.ReplaceLogs(ctx, snap.logs); err != nil {
		return err
	}
	s.undo = s.undo[:len(s.undo)-1]
	return s.syncStockLocked(ctx, snap.items)
}

// apply runs one transition under the board lock: snapshot for undo, run the
// engine, persist the replacement collection and new audit entries, and
// resync stock levels.
func (s *Service) apply(ctx context.Context, fn func(engine.Context, []domain.KanbanItem) (engine.Result, error)) (engine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return engine.Result{}, err
	}
	logs, err := s.repo.ListLogs(ctx, 0)
	if err != nil {
		return engine.Result{}, err
	}
	catalog, err := s.repo.LoadCatalog(ctx)
	if err != nil {
		return engine.Result{}, err
	}

	res, err := fn(engine.Context{Blueprint: s.blueprint, Catalog: catalog, Actor: s.actor}, items)
	if err != nil {
		return engine.Result{}, err
	}

	if err := s.repo.SaveTransition(ctx, res.Items, res.Logs); err != nil {
		return engine.Result{}, err
	}

	s.undo = append(s.undo, boardSnapshot{items: items, logs: logs})
	if len(s.undo) > maxUndoDepth {
		s.undo = s.undo[1:]
	}
	if err := s.syncStockLocked(ctx, res.Items); err != nil {
		return engine.Result{}, err
	}
	return res, nil
}
