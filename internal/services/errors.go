package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hearthware/homeboard/internal/models"
)

// Error taxonomy shared by the reconciliation engine and the import pipeline.
// Handlers map these to HTTP status codes; none are retried automatically
// except that a Timeout caller may resume polling.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrTimeout    = errors.New("timeout")
)

// UndoConflictError reports an undo where some entries could not be reversed.
// Entries that did reverse stay reversed; the caller can retry or escalate
// with the exact failures in hand.
type UndoConflictError struct {
	EventID  int
	Failures []models.UndoFailure
}

func (e *UndoConflictError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, fmt.Sprintf("%s (item %d): %s", f.ItemName, f.ItemID, f.Reason))
	}
	return fmt.Sprintf("undo of event %d left %d entries unreversed: %s",
		e.EventID, len(e.Failures), strings.Join(names, "; "))
}

// Unwrap lets errors.Is(err, ErrConflict) match
func (e *UndoConflictError) Unwrap() error {
	return ErrConflict
}
