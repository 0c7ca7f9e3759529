// Package httpapi provides the REST HTTP adapter for the production board.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gentanala/mes/internal/app"
	"github.com/gentanala/mes/internal/domain"
	"github.com/gentanala/mes/internal/engine"
	"github.com/gentanala/mes/internal/report"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// errInvalidRequest marks malformed request payloads.
var errInvalidRequest = errors.New("invalid request")

// Service is the application surface the HTTP adapter needs.
type Service interface {
	Board(context.Context) (app.BoardView, error)
	Logs(context.Context, int) ([]domain.ActivityEntry, error)
	Stats(context.Context) (engine.Stats, error)
	StockLevels(context.Context) ([]app.StockLevel, error)
	SearchCatalog(context.Context, string, string) ([]domain.CatalogHit, error)

	AddItem(context.Context, engine.AddInput) (engine.Result, error)
	MoveItem(context.Context, engine.MoveInput) (engine.Result, error)
	SplitItem(context.Context, engine.SplitInput) (engine.Result, error)
	AllocateItem(context.Context, engine.AllocateInput) (engine.Result, error)
	SellItem(context.Context, engine.SellInput) (engine.Result, error)
	EditItem(context.Context, engine.EditInput) (engine.Result, error)
	DeleteItem(context.Context, engine.DeleteInput) (engine.Result, error)
	RejectItem(context.Context, engine.RejectInput) (engine.Result, error)
	Undo(context.Context) error

	Export(context.Context) (app.Snapshot, error)
	Import(context.Context, app.Snapshot) error
}

// Clock returns the current time; injected so recap output is testable.
type Clock func() time.Time

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	svc   Service
	clock Clock
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs the HTTP API adapter.
func NewHandler(svc Service, clock Clock) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{svc: svc, clock: clock}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := normalizePath(r.URL.Path)
	switch {
	case path == "board":
		h.requireGet(w, r, h.handleBoard)
	case path == "logs":
		h.requireGet(w, r, h.handleLogs)
	case path == "stats":
		h.requireGet(w, r, h.handleStats)
	case path == "recap":
		h.requireGet(w, r, h.handleRecap)
	case path == "stock":
		h.requireGet(w, r, h.handleStock)
	case path == "catalog/search":
		h.requireGet(w, r, h.handleCatalogSearch)
	case path == "items":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleAddItem(w, r)
	case path == "undo":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleUndo(w, r)
	case path == "snapshot":
		switch r.Method {
		case http.MethodGet:
			h.handleExport(w, r)
		case http.MethodPost:
			h.handleImport(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	default:
		itemID, action, ok := resolveItemRoute(path)
		if !ok {
			writeJSONError(w, http.StatusNotFound, APIError{
				Code:    "not_found",
				Message: "endpoint not found",
			})
			return
		}
		h.handleItemRoute(w, r, itemID, action)
	}
}

func (h *Handler) requireGet(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	fn(w, r)
}

// handleBoard serves GET `/board`.
func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.svc.Board(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleLogs serves GET `/logs?limit=N`.
func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}
	logs, err := h.svc.Logs(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// handleStats serves GET `/stats`.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleRecap serves GET `/recap` as plain text for pasting into chat.
func (h *Handler) handleRecap(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, report.Daily(stats, h.clock()))
}

// handleStock serves GET `/stock`.
func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	levels, err := h.svc.StockLevels(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock": levels})
}

// handleCatalogSearch serves GET `/catalog/search?q=...&stage_id=...`.
func (h *Handler) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	hits, err := h.svc.SearchCatalog(r.Context(),
		r.URL.Query().Get("q"), r.URL.Query().Get("stage_id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

type addItemRequest struct {
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	StageID    string `json:"stage_id"`
	Quantity   int    `json:"quantity"`
	Collection string `json:"collection"`
	Emoji      string `json:"emoji"`
}

// handleAddItem serves POST `/items`.
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	res, err := h.svc.AddItem(r.Context(), engine.AddInput{
		Name: req.Name, SKU: req.SKU, StageID: req.StageID,
		Quantity: req.Quantity, Collection: req.Collection, Emoji: req.Emoji,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleUndo serves POST `/undo`.
func (h *Handler) handleUndo(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Undo(r.Context()); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleExport serves GET `/snapshot`.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Export(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleImport serves POST `/snapshot`.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var snap app.Snapshot
	if err := decodeJSONBody(r.Context(), w, r, &snap); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if err := h.svc.Import(r.Context(), snap); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type moveRequest struct {
	ToStageID string `json:"to_stage_id"`
	Quantity  int    `json:"quantity"`
}

type splitRequest struct {
	ToStageID string `json:"to_stage_id"`
	Consumed  int    `json:"consumed"`
	Yield     int    `json:"yield"`
	ChildName string `json:"child_name"`
	ChildSKU  string `json:"child_sku"`
}

type allocateRequest struct {
	ToStageID  string `json:"to_stage_id"`
	Quantity   int    `json:"quantity"`
	ProductSKU string `json:"product_sku"`
}

type sellRequest struct {
	ToStageID string              `json:"to_stage_id"`
	Channel   domain.SalesChannel `json:"channel"`
	Price     int64               `json:"price"`
}

type rejectRequest struct {
	Quantity int `json:"quantity"`
}

type editRequest struct {
	Name       *string `json:"name"`
	SKU        *string `json:"sku"`
	Quantity   *int    `json:"quantity"`
	Collection *string `json:"collection"`
	Emoji      *string `json:"emoji"`
}

// handleItemRoute dispatches `/items/{id}` and `/items/{id}/{action}`.
func (h *Handler) handleItemRoute(w http.ResponseWriter, r *http.Request, itemID, action string) {
	switch action {
	case "":
		switch r.Method {
		case http.MethodPatch:
			h.handleEditItem(w, r, itemID)
		case http.MethodDelete:
			h.handleDeleteItem(w, r, itemID)
		default:
			writeMethodNotAllowed(w, http.MethodPatch, http.MethodDelete)
		}
		return
	case "move", "split", "allocate", "sell", "reject":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
		return
	}

	var (
		res engine.Result
		err error
	)
	switch action {
	case "move":
		var req moveRequest
		if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		res, err = h.svc.MoveItem(r.Context(), engine.MoveInput{
			ItemID: itemID, ToStageID: req.ToStageID, Quantity: req.Quantity,
		})
	case "split":
		var req splitRequest
		if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		res, err = h.svc.SplitItem(r.Context(), engine.SplitInput{
			ItemID: itemID, ToStageID: req.ToStageID,
			Consumed: req.Consumed, Yield: req.Yield,
			ChildName: req.ChildName, ChildSKU: req.ChildSKU,
		})
	case "allocate":
		var req allocateRequest
		if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		res, err = h.svc.AllocateItem(r.Context(), engine.AllocateInput{
			ItemID: itemID, ToStageID: req.ToStageID,
			Quantity: req.Quantity, ProductSKU: req.ProductSKU,
		})
	case "sell":
		var req sellRequest
		if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		res, err = h.svc.SellItem(r.Context(), engine.SellInput{
			ItemID: itemID, ToStageID: req.ToStageID,
			Channel: req.Channel, Price: req.Price,
		})
	case "reject":
		var req rejectRequest
		if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		res, err = h.svc.RejectItem(r.Context(), engine.RejectInput{
			ItemID: itemID, Quantity: req.Quantity,
		})
	}
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleEditItem serves PATCH `/items/{id}`.
func (h *Handler) handleEditItem(w http.ResponseWriter, r *http.Request, itemID string) {
	var req editRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	res, err := h.svc.EditItem(r.Context(), engine.EditInput{
		ItemID: itemID, Name: req.Name, SKU: req.SKU,
		Quantity: req.Quantity, Collection: req.Collection, Emoji: req.Emoji,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleDeleteItem serves DELETE `/items/{id}`.
func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request, itemID string) {
	res, err := h.svc.DeleteItem(r.Context(), engine.DeleteInput{ItemID: itemID})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// resolveItemRoute parses `items/{id}` and `items/{id}/{action}`.
func resolveItemRoute(path string) (itemID, action string, ok bool) {
	const prefix = "items/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return "", "", false
		}
		return parts[0], "", true
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return "", "", false
		}
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps application errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrStageNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrCategoryNotAllowed):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "category_not_allowed",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrNoMatchingBOM):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "bom_mismatch",
			Message: err.Error(),
		})
	case errors.Is(err, app.ErrNothingToUndo):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "nothing_to_undo",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidID), errors.Is(err, domain.ErrInvalidStage),
		errors.Is(err, errInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(errInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", errInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
