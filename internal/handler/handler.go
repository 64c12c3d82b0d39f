// Package handler contains the HTTP handlers of the membership service API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clubedecampo/membership-system/internal/model"
	"github.com/clubedecampo/membership-system/internal/repository"
	"github.com/clubedecampo/membership-system/internal/service"
	"github.com/clubedecampo/membership-system/internal/validation"
)

// birthDateLayout is the wire format for date-only fields.
const birthDateLayout = "2006-01-02"

// Service defines the business logic contract used by the HTTP handlers.
type Service interface {
	RegisterMember(ctx context.Context, m *model.Member) (int64, error)
	FindMembers(ctx context.Context, filter repository.MemberFilter) ([]service.MemberWithStatus, error)
	StatusForMember(ctx context.Context, title int64) (model.ArrearsStatus, error)
	PendingDuesRoster(ctx context.Context) ([]service.PendingDue, error)
	Settle(ctx context.Context, title int64) error
	RecordPayment(ctx context.Context, title int64, method model.PaymentMethod, coverageMonths int, paidAt *time.Time) (int64, error)
	RegisterDependent(ctx context.Context, d *model.Dependent) (int64, error)
	DependentsOfMember(ctx context.Context, title int64) ([]model.Dependent, error)
	RegisterEmployee(ctx context.Context, e *model.Employee) (int64, error)
	ListEmployees(ctx context.Context) ([]model.Employee, error)
	RegisterVisitor(ctx context.Context, v *model.Visitor) (int64, error)
	RecordAttendance(ctx context.Context, title int64) (int64, error)
	ListAttendance(ctx context.Context) ([]service.AttendanceWithStatus, error)
	Dashboard(ctx context.Context) (*service.DashboardSummary, error)
}

// Handler implements the HTTP handlers of the membership service API.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler instance.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type idResponse struct {
	ID int64 `json:"id"`
}

type arrearsResponse struct {
	Class            string `json:"class"`
	Label            string `json:"label"`
	DueDate          string `json:"due_date,omitempty"`
	MonthsDelinquent int    `json:"months_delinquent"`
}

func toArrearsResponse(st model.ArrearsStatus) arrearsResponse {
	resp := arrearsResponse{
		Class:            string(st.Class),
		Label:            st.Label(),
		MonthsDelinquent: st.MonthsDelinquent,
	}
	if st.Class != model.ArrearsNoPaymentOnRecord {
		resp.DueDate = st.DueDate.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type registerMemberRequest struct {
	TitleNumber    string `json:"title_number"`
	Name           string `json:"name"`
	CPF            string `json:"cpf"`
	BirthDate      string `json:"birth_date"`
	PostalCode     string `json:"postal_code"`
	Street         string `json:"street"`
	BuildingNumber string `json:"building_number"`
	City           string `json:"city"`
	State          string `json:"state"`
}

// RegisterMember handles registration of a new club member.
func (h *Handler) RegisterMember(w http.ResponseWriter, r *http.Request) {
	var req registerMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	title, ok := validation.ParseTitleNumber(req.TitleNumber)
	if !ok || req.Name == "" || !validation.IsValidCPF(req.CPF) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	birthDate, err := time.Parse(birthDateLayout, req.BirthDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	id, err := h.service.RegisterMember(r.Context(), &model.Member{
		TitleNumber:    title,
		Name:           req.Name,
		CPF:            req.CPF,
		BirthDate:      birthDate,
		PostalCode:     req.PostalCode,
		Street:         req.Street,
		BuildingNumber: req.BuildingNumber,
		City:           req.City,
		State:          req.State,
	})
	if err != nil {
		if errors.Is(err, repository.ErrMemberExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register member error", zap.Error(err), zap.Int64("title", title))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, idResponse{ID: id})
}

type memberResponse struct {
	ID             int64           `json:"id"`
	TitleNumber    int64           `json:"title_number"`
	Name           string          `json:"name"`
	CPF            string          `json:"cpf"`
	BirthDate      string          `json:"birth_date"`
	PostalCode     string          `json:"postal_code,omitempty"`
	Street         string          `json:"street,omitempty"`
	BuildingNumber string          `json:"building_number,omitempty"`
	City           string          `json:"city,omitempty"`
	State          string          `json:"state,omitempty"`
	Arrears        arrearsResponse `json:"arrears"`
}

// GetMembers returns the member roster, optionally filtered by title number or
// CPF, with each member's dues standing.
func (h *Handler) GetMembers(w http.ResponseWriter, r *http.Request) {
	var filter repository.MemberFilter
	if v := r.URL.Query().Get("title_number"); v != "" {
		title, ok := validation.ParseTitleNumber(v)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		filter.TitleNumber = title
	}
	if v := r.URL.Query().Get("cpf"); v != "" {
		filter.CPF = v
	}

	members, err := h.service.FindMembers(r.Context(), filter)
	if err != nil {
		h.logger.Error("get members error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]memberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, memberResponse{
			ID:             m.Member.ID,
			TitleNumber:    m.Member.TitleNumber,
			Name:           m.Member.Name,
			CPF:            m.Member.CPF,
			BirthDate:      m.Member.BirthDate.Format(birthDateLayout),
			PostalCode:     m.Member.PostalCode,
			Street:         m.Member.Street,
			BuildingNumber: m.Member.BuildingNumber,
			City:           m.Member.City,
			State:          m.Member.State,
			Arrears:        toArrearsResponse(m.Arrears),
		})
	}

	h.writeJSON(w, resp)
}

// GetMemberArrears returns the dues standing of a single member, derived from
// its most recent payment record.
func (h *Handler) GetMemberArrears(w http.ResponseWriter, r *http.Request) {
	title, ok := h.titleFromURL(w, r)
	if !ok {
		return
	}

	status, err := h.service.StatusForMember(r.Context(), title)
	if err != nil {
		h.logger.Error("member arrears error", zap.Error(err), zap.Int64("title", title))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, toArrearsResponse(status))
}

type registerDependentRequest struct {
	TitleNumber  string `json:"title_number"`
	Name         string `json:"name"`
	CPF          string `json:"cpf"`
	BirthDate    string `json:"birth_date"`
	Relationship string `json:"relationship"`
}

// RegisterDependent handles registration of a dependent under a member's title.
func (h *Handler) RegisterDependent(w http.ResponseWriter, r *http.Request) {
	var req registerDependentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	title, ok := validation.ParseTitleNumber(req.TitleNumber)
	if !ok || req.Name == "" || req.Relationship == "" || !validation.IsValidCPF(req.CPF) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	birthDate, err := time.Parse(birthDateLayout, req.BirthDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	id, err := h.service.RegisterDependent(r.Context(), &model.Dependent{
		TitleNumber:  title,
		Name:         req.Name,
		CPF:          req.CPF,
		BirthDate:    birthDate,
		Relationship: req.Relationship,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMemberNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrDocumentExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("register dependent error", zap.Error(err), zap.Int64("title", title))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, idResponse{ID: id})
}

type dependentResponse struct {
	ID           int64  `json:"id"`
	TitleNumber  int64  `json:"title_number"`
	Name         string `json:"name"`
	CPF          string `json:"cpf"`
	BirthDate    string `json:"birth_date"`
	Relationship string `json:"relationship"`
}

// GetDependents returns the dependents registered under a member's title.
func (h *Handler) GetDependents(w http.ResponseWriter, r *http.Request) {
	title, ok := h.titleFromURL(w, r)
	if !ok {
		return
	}

	dependents, err := h.service.DependentsOfMember(r.Context(), title)
	if err != nil {
		h.logger.Error("get dependents error", zap.Error(err), zap.Int64("title", title))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]dependentResponse, 0, len(dependents))
	for _, d := range dependents {
		resp = append(resp, dependentResponse{
			ID:           d.ID,
			TitleNumber:  d.TitleNumber,
			Name:         d.Name,
			CPF:          d.CPF,
			BirthDate:    d.BirthDate.Format(birthDateLayout),
			Relationship: d.Relationship,
		})
	}

	h.writeJSON(w, resp)
}

type registerEmployeeRequest struct {
	Name           string `json:"name"`
	CPF            string `json:"cpf"`
	Role           string `json:"role"`
	PostalCode     string `json:"postal_code"`
	Street         string `json:"street"`
	BuildingNumber string `json:"building_number"`
	City           string `json:"city"`
	State          string `json:"state"`
}

// RegisterEmployee handles registration of a club employee.
func (h *Handler) RegisterEmployee(w http.ResponseWriter, r *http.Request) {
	var req registerEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Role == "" || !validation.IsValidCPF(req.CPF) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	id, err := h.service.RegisterEmployee(r.Context(), &model.Employee{
		Name:           req.Name,
		CPF:            req.CPF,
		Role:           req.Role,
		PostalCode:     req.PostalCode,
		Street:         req.Street,
		BuildingNumber: req.BuildingNumber,
		City:           req.City,
		State:          req.State,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDocumentExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register employee error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, idResponse{ID: id})
}

type employeeResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	CPF            string `json:"cpf"`
	Role           string `json:"role"`
	PostalCode     string `json:"postal_code,omitempty"`
	Street         string `json:"street,omitempty"`
	BuildingNumber string `json:"building_number,omitempty"`
	City           string `json:"city,omitempty"`
	State          string `json:"state,omitempty"`
}

// GetEmployees returns all registered employees.
func (h *Handler) GetEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.ListEmployees(r.Context())
	if err != nil {
		h.logger.Error("get employees error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]employeeResponse, 0, len(employees))
	for _, e := range employees {
		resp = append(resp, employeeResponse{
			ID:             e.ID,
			Name:           e.Name,
			CPF:            e.CPF,
			Role:           e.Role,
			PostalCode:     e.PostalCode,
			Street:         e.Street,
			BuildingNumber: e.BuildingNumber,
			City:           e.City,
			State:          e.State,
		})
	}

	h.writeJSON(w, resp)
}

type registerVisitorRequest struct {
	Name       string `json:"name"`
	CPF        string `json:"cpf"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
}

// RegisterVisitor handles registration of a visitor at the gate.
func (h *Handler) RegisterVisitor(w http.ResponseWriter, r *http.Request) {
	var req registerVisitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || !validation.IsValidCPF(req.CPF) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	id, err := h.service.RegisterVisitor(r.Context(), &model.Visitor{
		Name:       req.Name,
		CPF:        req.CPF,
		Phone:      req.Phone,
		Address:    req.Address,
		PostalCode: req.PostalCode,
	})
	if err != nil {
		h.logger.Error("register visitor error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, idResponse{ID: id})
}

type recordAttendanceRequest struct {
	TitleNumber string `json:"title_number"`
}

// RecordAttendance registers a member check-in.
func (h *Handler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	var req recordAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	title, ok := validation.ParseTitleNumber(req.TitleNumber)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	id, err := h.service.RecordAttendance(r.Context(), title)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("record attendance error", zap.Error(err), zap.Int64("title", title))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, idResponse{ID: id})
}

type attendanceResponse struct {
	ID          int64           `json:"id"`
	TitleNumber int64           `json:"title_number"`
	EnteredAt   string          `json:"entered_at"`
	Arrears     arrearsResponse `json:"arrears"`
}

// GetAttendance returns check-ins from most recent to oldest, each with the
// member's current dues standing.
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListAttendance(r.Context())
	if err != nil {
		h.logger.Error("get attendance error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]attendanceResponse, 0, len(entries))
	for _, a := range entries {
		resp = append(resp, attendanceResponse{
			ID:          a.Attendance.ID,
			TitleNumber: a.Attendance.TitleNumber,
			EnteredAt:   a.Attendance.EnteredAt.Format(time.RFC3339),
			Arrears:     toArrearsResponse(a.Arrears),
		})
	}

	h.writeJSON(w, resp)
}

type recordPaymentRequest struct {
	TitleNumber    string `json:"title_number"`
	Method         string `json:"method"`
	CoverageMonths int    `json:"coverage_months"`
	// Year and Month backdate a manual ledger entry; the day is fixed at 7.
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
}

// RecordPayment appends a pending dues payment for a member.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	title, ok := validation.ParseTitleNumber(req.TitleNumber)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	method := model.PaymentMethod(req.Method)
	coverage := req.CoverageMonths
	if coverage == 0 {
		coverage = method.DefaultCoverage()
	}

	var paidAt *time.Time
	if req.Year != 0 || req.Month != 0 {
		if req.Month < 1 || req.Month > 12 || req.Year < 1 {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		ts := service.BackdatedPaymentDate(req.Year, time.Month(req.Month))
		paidAt = &ts
	}

	id, err := h.service.RecordPayment(r.Context(), title, method, coverage, paidAt)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMemberNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrInvalidCoverage), errors.Is(err, service.ErrInvalidMethod):
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		default:
			h.logger.Error("record payment error", zap.Error(err), zap.Int64("title", title))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, idResponse{ID: id})
}

type pendingDueResponse struct {
	TitleNumber    int64           `json:"title_number"`
	Name           string          `json:"name"`
	PaidAt         string          `json:"paid_at"`
	Method         string          `json:"method"`
	CoverageMonths int             `json:"coverage_months"`
	Arrears        arrearsResponse `json:"arrears"`
}

// GetPendingDues returns the settle-dues worklist.
func (h *Handler) GetPendingDues(w http.ResponseWriter, r *http.Request) {
	roster, err := h.service.PendingDuesRoster(r.Context())
	if err != nil {
		h.logger.Error("pending dues error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]pendingDueResponse, 0, len(roster))
	for _, entry := range roster {
		resp = append(resp, pendingDueResponse{
			TitleNumber:    entry.Member.TitleNumber,
			Name:           entry.Member.Name,
			PaidAt:         entry.Payment.PaidAt.Format(time.RFC3339),
			Method:         string(entry.Payment.Method),
			CoverageMonths: entry.Payment.CoverageMonths,
			Arrears:        toArrearsResponse(entry.Arrears),
		})
	}

	h.writeJSON(w, resp)
}

// SettlePayment marks a member's pending dues as settled.
func (h *Handler) SettlePayment(w http.ResponseWriter, r *http.Request) {
	title, ok := h.titleFromURL(w, r)
	if !ok {
		return
	}

	if err := h.service.Settle(r.Context(), title); err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("settle payment error", zap.Error(err), zap.Int64("title", title))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type dashboardResponse struct {
	TotalMembers    int64 `json:"total_members"`
	AttendanceToday int64 `json:"attendance_today"`
	PendingPayments int64 `json:"pending_payments"`
}

// GetDashboard returns the front-desk counters.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("dashboard error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, dashboardResponse{
		TotalMembers:    summary.TotalMembers,
		AttendanceToday: summary.AttendanceToday,
		PendingPayments: summary.PendingPayments,
	})
}
