// Package model contains the domain entities of the club membership service.
package model

import (
	"fmt"
	"time"
)

// Member represents a registered club member identified by a membership title number.
type Member struct {
	ID             int64
	TitleNumber    int64
	Name           string
	CPF            string
	BirthDate      time.Time
	PostalCode     string
	Street         string
	BuildingNumber string
	City           string
	State          string
	CreatedAt      time.Time
}

// Dependent represents a family member registered under a member's title.
type Dependent struct {
	ID           int64
	TitleNumber  int64
	Name         string
	CPF          string
	BirthDate    time.Time
	Relationship string
	CreatedAt    time.Time
}

// Employee represents a club staff member.
type Employee struct {
	ID             int64
	Name           string
	CPF            string
	Role           string
	PostalCode     string
	Street         string
	BuildingNumber string
	City           string
	State          string
	CreatedAt      time.Time
}

// Visitor represents a one-off visitor registered at the gate.
type Visitor struct {
	ID         int64
	Name       string
	CPF        string
	Phone      string
	Address    string
	PostalCode string
	CreatedAt  time.Time
}

// Attendance represents a single member check-in at the club entrance.
type Attendance struct {
	ID          int64
	TitleNumber int64
	EnteredAt   time.Time
}

// PaymentMethod describes the billing cadence chosen for a dues payment.
type PaymentMethod string

const (
	PaymentMethodMonthly    PaymentMethod = "MONTHLY"
	PaymentMethodSemiannual PaymentMethod = "SEMIANNUAL"
	PaymentMethodAnnual     PaymentMethod = "ANNUAL"
	PaymentMethodCustom     PaymentMethod = "CUSTOM"
)

// Valid reports whether the method is one of the known billing cadences.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodMonthly, PaymentMethodSemiannual, PaymentMethodAnnual, PaymentMethodCustom:
		return true
	}
	return false
}

// DefaultCoverage returns the coverage in months implied by the method,
// or 0 for PaymentMethodCustom, which requires an explicit value.
func (m PaymentMethod) DefaultCoverage() int {
	switch m {
	case PaymentMethodMonthly:
		return 1
	case PaymentMethodSemiannual:
		return 6
	case PaymentMethodAnnual:
		return 12
	}
	return 0
}

// PaymentStatus describes the lifecycle state of a payment record.
// The only transition is PaymentStatusPending -> PaymentStatusSettled.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSettled PaymentStatus = "SETTLED"
)

// PaymentRecord represents one dues payment event. Records are append-only:
// only the status flag ever changes, exactly once, via the settle operation.
type PaymentRecord struct {
	ID             int64
	TitleNumber    int64
	PaidAt         time.Time
	Method         PaymentMethod
	CoverageMonths int
	Status         PaymentStatus
	CreatedAt      time.Time
}

// ArrearsClass classifies a member's dues standing.
type ArrearsClass string

const (
	ArrearsNoPaymentOnRecord ArrearsClass = "NO_PAYMENT_ON_RECORD"
	ArrearsInGoodStanding    ArrearsClass = "IN_GOOD_STANDING"
	ArrearsDelinquent        ArrearsClass = "DELINQUENT"
)

// ArrearsStatus is the derived dues standing of a member. It is computed fresh
// on every query and never persisted.
type ArrearsStatus struct {
	Class            ArrearsClass
	DueDate          time.Time
	MonthsDelinquent int
}

// Label returns the human-readable form of the status for presentation.
func (s ArrearsStatus) Label() string {
	switch s.Class {
	case ArrearsInGoodStanding:
		return "In good standing"
	case ArrearsDelinquent:
		if s.MonthsDelinquent == 1 {
			return "Delinquent (1 month)"
		}
		return fmt.Sprintf("Delinquent (%d months)", s.MonthsDelinquent)
	}
	return "No payment on record"
}
