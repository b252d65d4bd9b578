package storage

import "errors"

// Store errors. Backends map their driver errors onto these.
var (
	// ErrNotFound: the sweep or report does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey: the sweep, report or bar is already stored. Stores never
	// overwrite.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput: a required id, symbol or bar is missing.
	ErrInvalidInput = errors.New("invalid input")
)
