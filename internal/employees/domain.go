// Package employees keeps per-employer staff records referenced by
// payroll entries.
package employees

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paycycle/paycycle/internal/payroll"
)

// Employee is one member of staff on an employer's payroll.
type Employee struct {
	ID         uuid.UUID     `json:"id"`
	EmployerID uuid.UUID     `json:"employer_id"`
	FirstName  string        `json:"first_name"`
	LastName   string        `json:"last_name"`
	Email      string        `json:"email"`
	NINumber   string        `json:"ni_number"`
	StartedOn  *payroll.Date `json:"started_on"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Input carries create/update fields.
type Input struct {
	EmployerID uuid.UUID     `json:"employer_id"`
	FirstName  string        `json:"first_name"`
	LastName   string        `json:"last_name"`
	Email      string        `json:"email"`
	NINumber   string        `json:"ni_number"`
	StartedOn  *payroll.Date `json:"started_on"`
}

// Validate checks required fields.
func (in Input) Validate() error {
	if in.EmployerID == uuid.Nil {
		return errors.New("employees: employer id required")
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return errors.New("employees: first and last name required")
	}
	return nil
}

// ErrNotFound indicates the employee does not exist.
var ErrNotFound = errors.New("employees: not found")
