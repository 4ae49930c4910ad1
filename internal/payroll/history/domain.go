// Package history holds the historical payroll ledger: the append-only
// archive of closed records, partitioned by closure batch.
package history

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paycycle/paycycle/internal/payroll"
)

// Record is a payroll record plus closure metadata. Rows are created once
// by the closure engine and never mutated afterwards.
type Record struct {
	ID              uuid.UUID           `json:"id"`
	OriginalID      uuid.UUID           `json:"original_id"`
	EmployerID      uuid.UUID           `json:"employer_id"`
	EmployeeID      uuid.UUID           `json:"employee_id"`
	PayPeriodFrom   payroll.Date        `json:"pay_period_from"`
	PayPeriodTo     payroll.Date        `json:"pay_period_to"`
	Currency        string              `json:"currency"`
	GrossPay        decimal.NullDecimal `json:"gross_pay"`
	IncomeTax       decimal.NullDecimal `json:"income_tax"`
	EmployeeNI      decimal.NullDecimal `json:"employee_ni"`
	EmployerNI      decimal.NullDecimal `json:"employer_ni"`
	EmployeePension decimal.NullDecimal `json:"employee_pension"`
	EmployerPension decimal.NullDecimal `json:"employer_pension"`
	StudentLoan     decimal.NullDecimal `json:"student_loan"`
	NetPay          decimal.NullDecimal `json:"net_pay"`
	ClosedAt        time.Time           `json:"closed_at"`
	ClosedByUserID  *int64              `json:"closed_by_user_id"`
	ClosureBatchID  uuid.UUID           `json:"closure_batch_id"`
	ClosureNotes    *string             `json:"closure_notes"`
}

// Batch aggregates the archive rows sharing one closure batch id.
type Batch struct {
	ClosureBatchID uuid.UUID `json:"closure_batch_id"`
	RecordCount    int       `json:"record_count"`
	ClosedAt       time.Time `json:"closed_at"`
	ClosedByUserID *int64    `json:"closed_by_user_id"`
	ClosureNotes   *string   `json:"closure_notes"`
}

// ListFilters narrows archive listings.
type ListFilters struct {
	BatchID      *uuid.UUID
	EmployerID   *uuid.UUID
	PeriodEnd    *payroll.Date
	Page         int
	PerPage      int
}

// ErrRecordNotFound indicates the archive row does not exist.
var ErrRecordNotFound = errors.New("history: record not found")
