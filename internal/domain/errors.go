package domain

import "errors"

// ErrNotFound and related errors describe validation failures surfaced by the
// transition engine. Every failure is signalled before any mutation.
var (
	ErrNotFound           = errors.New("not found")
	ErrStageNotFound      = errors.New("stage not found")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrCategoryNotAllowed = errors.New("material category not allowed at stage")
	ErrNoMatchingBOM      = errors.New("component not present in product bom")
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidStage       = errors.New("invalid stage definition")
)
