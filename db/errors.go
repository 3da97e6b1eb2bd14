// db/errors.go
package db

import (
	"errors"
	"fmt"
)

// Sentinels for final loan states and retryable commit races.
var (
	ErrConflict        = errors.New("lost the commit race, retry the batch")
	ErrAlreadyReturned = errors.New("item already returned")
	ErrAlreadyLost     = errors.New("item already written off as lost")
)

// Per-line failure kinds reported by a batch dry run.
const (
	KindInsufficientStock   = "InsufficientStock"
	KindInstanceUnavailable = "InstanceUnavailable"
	KindUnknownSupply       = "UnknownSupply"
)

// InvalidBatchError rejects a malformed submission before any I/O.
type InvalidBatchError struct {
	Reason string
}

func (e *InvalidBatchError) Error() string {
	return "invalid batch: " + e.Reason
}

// InsufficientStockError means a consumable line asked for more than the
// supply's unreserved quantity.
type InsufficientStockError struct {
	SupplyID  string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("supply %s: requested %d, only %d available", e.SupplyID, e.Requested, e.Available)
}

// InstanceUnavailableError means an equipment line asked for more units than
// are currently available to reserve.
type InstanceUnavailableError struct {
	SupplyID  string
	Requested int
	Available int
}

func (e *InstanceUnavailableError) Error() string {
	return fmt.Sprintf("supply %s: requested %d instances, only %d available", e.SupplyID, e.Requested, e.Available)
}

// BlockedByOverdueError gates a requester who still holds overdue loans.
type BlockedByOverdueError struct {
	RequesterID string
}

func (e *BlockedByOverdueError) Error() string {
	return fmt.Sprintf("requester %s has overdue items, return them first", e.RequesterID)
}

// FailedItem is one line's reason inside a wholesale batch rejection.
type FailedItem struct {
	Kind      string `json:"kind"`
	RefID     string `json:"refId"`
	ErrorKind string `json:"errorKind"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// BatchUnavailableError rejects the whole batch and carries every failing
// line, so the caller can fix the submission in one round trip.
type BatchUnavailableError struct {
	Failed []FailedItem
}

func (e *BatchUnavailableError) Error() string {
	return fmt.Sprintf("batch unavailable: %d line(s) cannot be satisfied", len(e.Failed))
}
