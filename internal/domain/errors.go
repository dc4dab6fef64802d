package domain

import "errors"

// Errors surfaced by administrative operations. Extraction-side errors
// live in internal/extract; these are the ones callers of the engine
// and stores match on with errors.Is.
var (
	ErrDuplicateURL  = errors.New("item with this url already tracked")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
