// Package employers keeps the tenant records payroll data hangs off.
package employers

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Employer is one accounting-practice client running payroll.
type Employer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input carries create/update fields.
type Input struct {
	Name      string `json:"name"`
	Reference string `json:"reference"`
}

// Validate checks required fields.
func (in Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("employers: name required")
	}
	return nil
}

// ErrNotFound indicates the employer does not exist.
var ErrNotFound = errors.New("employers: not found")

// ErrNameTaken indicates another employer already uses the name.
var ErrNameTaken = errors.New("employers: name already in use")
