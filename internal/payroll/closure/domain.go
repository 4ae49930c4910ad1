// Package closure implements the pay-period closure engine: the audited
// move of active payroll records into the historical ledger under a
// single batch identity.
package closure

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paycycle/paycycle/internal/payroll"
)

// PeriodState tracks one period's progress through a closure invocation.
type PeriodState string

const (
	PeriodPending  PeriodState = "PENDING"
	PeriodFetched  PeriodState = "FETCHED"
	PeriodEmpty    PeriodState = "EMPTY"
	PeriodArchived PeriodState = "ARCHIVED"
	PeriodRemoved  PeriodState = "REMOVED"
	PeriodDone     PeriodState = "DONE"
	PeriodFailed   PeriodState = "FAILED"
)

// ClosePeriodsInput bundles parameters for one closure invocation.
type ClosePeriodsInput struct {
	PeriodEnds []payroll.Date
	Notes      *string
	// ActorID is nil for system-triggered closures; the HTTP boundary
	// always supplies the authenticated user.
	ActorID *int64
}

// Validate enforces the invocation preconditions.
func (in ClosePeriodsInput) Validate() error {
	if len(in.PeriodEnds) == 0 {
		return ErrNoPeriodsSelected
	}
	for _, pe := range in.PeriodEnds {
		if pe.IsZero() {
			return fmt.Errorf("%w: zero period end date", ErrNoPeriodsSelected)
		}
	}
	return nil
}

// Summary reports the outcome of one fully successful closure invocation.
type Summary struct {
	ClosureBatchID    uuid.UUID      `json:"closure_batch_id"`
	PeriodEndDates    []payroll.Date `json:"period_end_dates"`
	TotalRecordsMoved int            `json:"total_records_moved"`
	RecordsByPeriod   map[string]int `json:"records_by_period"`
	ClosedAt          time.Time      `json:"closed_at"`
	Notes             *string        `json:"notes"`
}

// ErrNoPeriodsSelected indicates an empty period list.
var ErrNoPeriodsSelected = errors.New("closure: no periods selected")

// ErrPeriodLocked indicates another closure currently holds the period.
var ErrPeriodLocked = errors.New("closure: period is being closed by another request")

// Error wraps a per-period failure. Any per-period failure aborts the
// whole invocation; already-completed periods stay closed.
type Error struct {
	PeriodEnd payroll.Date
	State     PeriodState
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("closure: period %s failed at %s: %v", e.PeriodEnd, e.State, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}
