package domain

import "fmt"

// NotFoundError reports an unknown item or list id.
type NotFoundError struct {
	Resource string // "inventory", "picking list", "tool list", "list item"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ValidationError reports a rejected mutation, carrying the item identity
// and the quantities that triggered the rejection so callers can point at
// the exact line.
type ValidationError struct {
	ItemID    string
	ItemType  ItemType
	Reason    string
	Requested int64
	Available int64
}

func (e *ValidationError) Error() string {
	if e.ItemID == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for %s:%s: %s (requested %d, available %d)",
		e.ItemType, e.ItemID, e.Reason, e.Requested, e.Available)
}

// ConflictError reports an exhausted optimistic-concurrency retry budget on
// a single inventory record.
type ConflictError struct {
	ItemID   string
	ItemType ItemType
	Attempts int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent update conflict on %s:%s after %d attempts",
		e.ItemType, e.ItemID, e.Attempts)
}

// StateError reports an illegal list status transition or an operation
// invoked in the wrong lifecycle stage.
type StateError struct {
	Resource string
	ID       string
	Status   ListStatus
	Op       string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %q", e.Op, e.Resource, e.ID, e.Status)
}
