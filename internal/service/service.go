// Package service implements the business logic of the membership service,
// including the dues ledger built on the arrears computation.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clubedecampo/membership-system/internal/arrears"
	"github.com/clubedecampo/membership-system/internal/model"
	"github.com/clubedecampo/membership-system/internal/repository"
)

// ErrInvalidCoverage is returned when a payment covers fewer than 1 or more than 12 months.
var (
	ErrInvalidCoverage = errors.New("coverage months must be between 1 and 12")
	// ErrInvalidMethod is returned when a payment method is not a known billing cadence.
	ErrInvalidMethod = errors.New("unknown payment method")
)

// rosterConcurrency bounds concurrent store lookups during roster aggregation.
const rosterConcurrency = 8

// Repository describes the data access contract used by the service.
type Repository interface {
	Close() error
	CreateMember(ctx context.Context, m *model.Member) (int64, error)
	GetMemberByTitle(ctx context.Context, title int64) (*model.Member, error)
	FindMembers(ctx context.Context, filter repository.MemberFilter) ([]model.Member, error)
	CountMembers(ctx context.Context) (int64, error)
	CreateDependent(ctx context.Context, d *model.Dependent) (int64, error)
	GetDependentsByTitle(ctx context.Context, title int64) ([]model.Dependent, error)
	CreateEmployee(ctx context.Context, e *model.Employee) (int64, error)
	GetEmployees(ctx context.Context) ([]model.Employee, error)
	CreateVisitor(ctx context.Context, v *model.Visitor) (int64, error)
	CreateAttendance(ctx context.Context, title int64, enteredAt time.Time) (int64, error)
	GetAttendance(ctx context.Context) ([]model.Attendance, error)
	CountAttendanceBetween(ctx context.Context, from, to time.Time) (int64, error)
	CreatePayment(ctx context.Context, p *model.PaymentRecord) (int64, error)
	GetLatestPayment(ctx context.Context, title int64) (*model.PaymentRecord, error)
	GetLatestPendingPayments(ctx context.Context) ([]model.PaymentRecord, error)
	UpdatePaymentStatus(ctx context.Context, title int64, from, to model.PaymentStatus) (int64, error)
	CountPendingPayments(ctx context.Context) (int64, error)
}

// Service contains the business logic of the membership service.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a service over the given repository. The clock decides
// the instant arrears are computed against and the default payment timestamp;
// a nil clock means live wall-clock time.
func NewService(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo: repo,
		now:  now,
	}
}

// Close releases the service resources.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterMember registers a new club member.
func (s *Service) RegisterMember(ctx context.Context, m *model.Member) (int64, error) {
	return s.repo.CreateMember(ctx, m)
}

// MemberWithStatus pairs a member with its derived dues standing.
type MemberWithStatus struct {
	Member  model.Member
	Arrears model.ArrearsStatus
}

// FindMembers returns the members matching the filter, each enriched with its
// dues standing. A failed status lookup degrades that member's entry to
// "no payment on record" instead of failing the listing.
func (s *Service) FindMembers(ctx context.Context, filter repository.MemberFilter) ([]MemberWithStatus, error) {
	members, err := s.repo.FindMembers(ctx, filter)
	if err != nil {
		return nil, err
	}

	titles := make([]int64, len(members))
	for i, m := range members {
		titles[i] = m.TitleNumber
	}
	statuses := s.StatusForRoster(ctx, titles)

	res := make([]MemberWithStatus, len(members))
	for i, m := range members {
		res[i] = MemberWithStatus{Member: m, Arrears: statuses[m.TitleNumber]}
	}
	return res, nil
}

// StatusForMember computes the dues standing of a single member from its most
// recent payment record. A member with no payment history is reported as
// having no payment on record, not as an error.
func (s *Service) StatusForMember(ctx context.Context, title int64) (model.ArrearsStatus, error) {
	last, err := s.repo.GetLatestPayment(ctx, title)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return arrears.Compute(nil, s.now()), nil
		}
		return model.ArrearsStatus{}, err
	}
	return arrears.Compute(last, s.now()), nil
}

// StatusForRoster computes the dues standing for every given title. Lookups
// run concurrently; a failed lookup degrades that member's entry to "no
// payment on record" so partial results are always returned.
func (s *Service) StatusForRoster(ctx context.Context, titles []int64) map[int64]model.ArrearsStatus {
	statuses := make([]model.ArrearsStatus, len(titles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rosterConcurrency)
	for i, title := range titles {
		i, title := i, title
		g.Go(func() error {
			status, err := s.StatusForMember(gctx, title)
			if err != nil {
				status = arrears.Compute(nil, s.now())
			}
			statuses[i] = status
			return nil
		})
	}
	_ = g.Wait()

	res := make(map[int64]model.ArrearsStatus, len(titles))
	for i, title := range titles {
		res[title] = statuses[i]
	}
	return res
}

// PendingDue is one entry of the settle-dues worklist: a member with an
// outstanding pending payment, joined with the derived standing.
type PendingDue struct {
	Member  model.Member
	Payment model.PaymentRecord
	Arrears model.ArrearsStatus
}

// PendingDuesRoster returns the settle-dues worklist: every member whose most
// recent pending payment record exists, ordered by title number. Entries are
// independent; one that cannot be joined with its member is skipped.
func (s *Service) PendingDuesRoster(ctx context.Context) ([]PendingDue, error) {
	payments, err := s.repo.GetLatestPendingPayments(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	res := make([]PendingDue, 0, len(payments))
	for _, p := range payments {
		member, err := s.repo.GetMemberByTitle(ctx, p.TitleNumber)
		if err != nil {
			continue
		}
		res = append(res, PendingDue{
			Member:  *member,
			Payment: p,
			Arrears: arrears.Compute(&p, now),
		})
	}
	return res, nil
}

// Settle marks every pending payment record of a member as settled. When the
// member has no pending record the operation is a no-op reported as
// repository.ErrPaymentNotFound; retrying a settle is therefore safe.
func (s *Service) Settle(ctx context.Context, title int64) error {
	affected, err := s.repo.UpdatePaymentStatus(ctx, title, model.PaymentStatusPending, model.PaymentStatusSettled)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: no pending payment for title %d", repository.ErrPaymentNotFound, title)
	}
	return nil
}

// RecordPayment appends a pending payment record for a member. The member must
// exist and the coverage must be between 1 and 12 months; a nil paidAt means
// the payment happened now.
func (s *Service) RecordPayment(ctx context.Context, title int64, method model.PaymentMethod, coverageMonths int, paidAt *time.Time) (int64, error) {
	if !method.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
	if coverageMonths < 1 || coverageMonths > 12 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidCoverage, coverageMonths)
	}

	if _, err := s.repo.GetMemberByTitle(ctx, title); err != nil {
		return 0, err
	}

	ts := s.now()
	if paidAt != nil {
		ts = *paidAt
	}

	return s.repo.CreatePayment(ctx, &model.PaymentRecord{
		TitleNumber:    title,
		PaidAt:         ts,
		Method:         method,
		CoverageMonths: coverageMonths,
		Status:         model.PaymentStatusPending,
	})
}

// BackdatedPaymentDate builds the payment timestamp for a manual ledger entry:
// the 7th of the given month.
func BackdatedPaymentDate(year int, month time.Month) time.Time {
	return time.Date(year, month, 7, 0, 0, 0, 0, time.Local)
}

// RegisterDependent registers a dependent under an existing member's title.
func (s *Service) RegisterDependent(ctx context.Context, d *model.Dependent) (int64, error) {
	return s.repo.CreateDependent(ctx, d)
}

// DependentsOfMember returns the dependents registered under a member's title.
func (s *Service) DependentsOfMember(ctx context.Context, title int64) ([]model.Dependent, error) {
	return s.repo.GetDependentsByTitle(ctx, title)
}

// RegisterEmployee registers a club employee.
func (s *Service) RegisterEmployee(ctx context.Context, e *model.Employee) (int64, error) {
	return s.repo.CreateEmployee(ctx, e)
}

// ListEmployees returns all registered employees.
func (s *Service) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	return s.repo.GetEmployees(ctx)
}

// RegisterVisitor registers a visitor at the gate.
func (s *Service) RegisterVisitor(ctx context.Context, v *model.Visitor) (int64, error) {
	return s.repo.CreateVisitor(ctx, v)
}

// RecordAttendance records a member check-in at the current instant.
func (s *Service) RecordAttendance(ctx context.Context, title int64) (int64, error) {
	return s.repo.CreateAttendance(ctx, title, s.now())
}

// AttendanceWithStatus pairs a check-in with the owning member's dues standing.
type AttendanceWithStatus struct {
	Attendance model.Attendance
	Arrears    model.ArrearsStatus
}

// ListAttendance returns check-ins from most recent to oldest, each enriched
// with the member's dues standing at the time of the call.
func (s *Service) ListAttendance(ctx context.Context) ([]AttendanceWithStatus, error) {
	entries, err := s.repo.GetAttendance(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(entries))
	titles := make([]int64, 0, len(entries))
	for _, a := range entries {
		if _, ok := seen[a.TitleNumber]; ok {
			continue
		}
		seen[a.TitleNumber] = struct{}{}
		titles = append(titles, a.TitleNumber)
	}
	statuses := s.StatusForRoster(ctx, titles)

	res := make([]AttendanceWithStatus, len(entries))
	for i, a := range entries {
		res[i] = AttendanceWithStatus{Attendance: a, Arrears: statuses[a.TitleNumber]}
	}
	return res, nil
}

// DashboardSummary aggregates the front-desk counters.
type DashboardSummary struct {
	TotalMembers    int64
	AttendanceToday int64
	PendingPayments int64
}

// Dashboard returns the front-desk counters: registered members, today's
// check-ins and payment records awaiting settlement.
func (s *Service) Dashboard(ctx context.Context) (*DashboardSummary, error) {
	members, err := s.repo.CountMembers(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	attendance, err := s.repo.CountAttendanceBetween(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	pending, err := s.repo.CountPendingPayments(ctx)
	if err != nil {
		return nil, err
	}

	return &DashboardSummary{
		TotalMembers:    members,
		AttendanceToday: attendance,
		PendingPayments: pending,
	}, nil
}
