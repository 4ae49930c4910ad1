package shared

import "fmt"

// PeriodLockKey builds redis keys serialising pay-period closure per
// period-end date. Two concurrent closures targeting the same date must
// not both fetch the same active rows.
func PeriodLockKey(periodEnd string) string {
	return fmt.Sprintf("payroll:close:%s:lock", periodEnd)
}
