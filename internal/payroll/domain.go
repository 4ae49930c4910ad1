// Package payroll holds the active payroll ledger: the current, mutable
// set of payroll records awaiting pay-period closure.
package payroll

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Date is a calendar date without a time component. It marshals as
// YYYY-MM-DD and scans from a Postgres DATE column.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate builds a Date truncated to UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("payroll: invalid date %q", value)
	}
	return Date{t}, nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time.Format(dateLayout)
}

// Equal compares two dates by calendar day.
func (d Date) Equal(other Date) bool {
	return d.String() == other.String()
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	value := strings.Trim(string(data), `"`)
	if value == "" || value == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = Date{v.UTC()}
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("payroll: cannot scan %T into Date", src)
	}
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

// Record represents one employee's payroll line for one pay period.
// Monetary fields are nullable because not every row carries every
// component; the amounts arrive already computed from the import boundary.
type Record struct {
	ID              uuid.UUID           `json:"id"`
	EmployerID      uuid.UUID           `json:"employer_id"`
	EmployeeID      uuid.UUID           `json:"employee_id"`
	PayPeriodFrom   Date                `json:"pay_period_from"`
	PayPeriodTo     Date                `json:"pay_period_to"`
	Currency        string              `json:"currency"`
	GrossPay        decimal.NullDecimal `json:"gross_pay"`
	IncomeTax       decimal.NullDecimal `json:"income_tax"`
	EmployeeNI      decimal.NullDecimal `json:"employee_ni"`
	EmployerNI      decimal.NullDecimal `json:"employer_ni"`
	EmployeePension decimal.NullDecimal `json:"employee_pension"`
	EmployerPension decimal.NullDecimal `json:"employer_pension"`
	StudentLoan     decimal.NullDecimal `json:"student_loan"`
	NetPay          decimal.NullDecimal `json:"net_pay"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// CreateInput captures one record supplied by the import boundary.
type CreateInput struct {
	EmployerID      uuid.UUID           `json:"employer_id"`
	EmployeeID      uuid.UUID           `json:"employee_id"`
	PayPeriodFrom   Date                `json:"pay_period_from"`
	PayPeriodTo     Date                `json:"pay_period_to"`
	Currency        string              `json:"currency"`
	GrossPay        decimal.NullDecimal `json:"gross_pay"`
	IncomeTax       decimal.NullDecimal `json:"income_tax"`
	EmployeeNI      decimal.NullDecimal `json:"employee_ni"`
	EmployerNI      decimal.NullDecimal `json:"employer_ni"`
	EmployeePension decimal.NullDecimal `json:"employee_pension"`
	EmployerPension decimal.NullDecimal `json:"employer_pension"`
	StudentLoan     decimal.NullDecimal `json:"student_loan"`
	NetPay          decimal.NullDecimal `json:"net_pay"`
}

// Validate checks one import row.
func (in CreateInput) Validate() error {
	if in.EmployerID == uuid.Nil {
		return errors.New("payroll: employer id required")
	}
	if in.EmployeeID == uuid.Nil {
		return errors.New("payroll: employee id required")
	}
	if in.PayPeriodFrom.IsZero() || in.PayPeriodTo.IsZero() {
		return errors.New("payroll: pay period dates required")
	}
	if in.PayPeriodFrom.After(in.PayPeriodTo.Time) {
		return errors.New("payroll: pay period start cannot be after end")
	}
	if in.Currency != "" {
		if _, err := currency.ParseISO(in.Currency); err != nil {
			return fmt.Errorf("payroll: unknown currency %q", in.Currency)
		}
	}
	return nil
}

// FieldPatch is the explicit allow-list of mutable record fields. Only
// members present in the request are applied; anything outside this set
// is rejected at the decode boundary.
type FieldPatch struct {
	PayPeriodFrom   *Date            `json:"pay_period_from,omitempty"`
	PayPeriodTo     *Date            `json:"pay_period_to,omitempty"`
	Currency        *string          `json:"currency,omitempty"`
	GrossPay        *decimal.Decimal `json:"gross_pay,omitempty"`
	IncomeTax       *decimal.Decimal `json:"income_tax,omitempty"`
	EmployeeNI      *decimal.Decimal `json:"employee_ni,omitempty"`
	EmployerNI      *decimal.Decimal `json:"employer_ni,omitempty"`
	EmployeePension *decimal.Decimal `json:"employee_pension,omitempty"`
	EmployerPension *decimal.Decimal `json:"employer_pension,omitempty"`
	StudentLoan     *decimal.Decimal `json:"student_loan,omitempty"`
	NetPay          *decimal.Decimal `json:"net_pay,omitempty"`
}

// IsEmpty reports whether the patch carries no changes.
func (p FieldPatch) IsEmpty() bool {
	return p.PayPeriodFrom == nil && p.PayPeriodTo == nil && p.Currency == nil &&
		p.GrossPay == nil && p.IncomeTax == nil && p.EmployeeNI == nil &&
		p.EmployerNI == nil && p.EmployeePension == nil && p.EmployerPension == nil &&
		p.StudentLoan == nil && p.NetPay == nil
}

// Validate checks patch members that carry structural rules.
func (p FieldPatch) Validate() error {
	if p.Currency != nil {
		if _, err := currency.ParseISO(*p.Currency); err != nil {
			return fmt.Errorf("payroll: unknown currency %q", *p.Currency)
		}
	}
	return nil
}

// ListFilters narrows active ledger listings.
type ListFilters struct {
	EmployerID   *uuid.UUID
	EmployeeID   *uuid.UUID
	PeriodToFrom *Date
	PeriodToUpTo *Date
	Page         int
	PerPage      int
	SortBy       string
	SortDir      string
}

// ErrRecordNotFound indicates the record does not exist in the active ledger.
var ErrRecordNotFound = errors.New("payroll: record not found")

// ErrEmptyPatch indicates a patch with no recognised fields.
var ErrEmptyPatch = errors.New("payroll: no fields to update")
