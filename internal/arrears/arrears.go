// Package arrears derives a member's dues standing from payment records.
//
// The computation is shared by every consumer (member roster, attendance list,
// dues worklist, dashboard); it keeps the billing rules of the club in one
// place: coverage expires on the 7th of the target month, and the delinquency
// count uses a flat 30-day month.
package arrears

import (
	"time"

	"github.com/clubedecampo/membership-system/internal/model"
)

// dueDay is the day of month dues are considered due on.
const dueDay = 7

// approxMonth is the flat 30-day divisor for the delinquency count. This is a
// deliberate approximation, not calendar-month arithmetic, and existing records
// depend on it.
const approxMonth = 30 * 24 * time.Hour

// Compute derives the dues standing from the most recent payment record of a
// member at the given instant. A nil record means the member has no payment
// history. The function is total: any valid record yields a status.
func Compute(last *model.PaymentRecord, now time.Time) model.ArrearsStatus {
	if last == nil {
		return model.ArrearsStatus{Class: model.ArrearsNoPaymentOnRecord}
	}

	due := DueDate(last.PaidAt, last.CoverageMonths, now)

	months := 0
	if d := now.Sub(due); d > 0 {
		months = int(d / approxMonth)
	}

	status := model.ArrearsStatus{DueDate: due, MonthsDelinquent: months}
	if months > 0 {
		status.Class = model.ArrearsDelinquent
	} else {
		status.Class = model.ArrearsInGoodStanding
	}
	return status
}

// DueDate returns the due date for a payment made at paidAt covering
// coverageMonths whole months: the 7th of the month the coverage runs out in,
// pulled back one month while it is still ahead of now. The pull-back keeps a
// freshly paid window from masking the cycle that already closed; its result
// depends on which side of the 7th "now" falls, which is a known quirk the
// ledger history relies on.
func DueDate(paidAt time.Time, coverageMonths int, now time.Time) time.Time {
	due := forceDueDay(paidAt.AddDate(0, coverageMonths, 0))
	if due.After(now) {
		due = forceDueDay(due.AddDate(0, -1, 0))
	}
	return due
}

// forceDueDay pins the day-of-month to dueDay, keeping time of day and location.
func forceDueDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), dueDay, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
