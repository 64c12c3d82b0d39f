package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/clubedecampo/membership-system/internal/model"
	"github.com/clubedecampo/membership-system/internal/repository"
	"github.com/clubedecampo/membership-system/internal/service"
)

type stubService struct {
	registerMemberID  int64
	registerMemberErr error

	findMembersResp []service.MemberWithStatus
	findMembersErr  error

	statusResp model.ArrearsStatus
	statusErr  error

	pendingResp []service.PendingDue
	pendingErr  error

	settleErr error

	paymentID       int64
	paymentErr      error
	gotPaymentTitle int64
	gotMethod       model.PaymentMethod
	gotCoverage     int
	gotPaidAt       *time.Time

	registerDependentID  int64
	registerDependentErr error

	dependentsResp []model.Dependent
	dependentsErr  error

	registerEmployeeID  int64
	registerEmployeeErr error

	employeesResp []model.Employee
	employeesErr  error

	registerVisitorID  int64
	registerVisitorErr error

	attendanceID  int64
	attendanceErr error

	attendanceResp   []service.AttendanceWithStatus
	attendanceGetErr error

	dashboardResp *service.DashboardSummary
	dashboardErr  error
}

func (s *stubService) RegisterMember(ctx context.Context, m *model.Member) (int64, error) {
	return s.registerMemberID, s.registerMemberErr
}

func (s *stubService) FindMembers(ctx context.Context, filter repository.MemberFilter) ([]service.MemberWithStatus, error) {
	return s.findMembersResp, s.findMembersErr
}

func (s *stubService) StatusForMember(ctx context.Context, title int64) (model.ArrearsStatus, error) {
	return s.statusResp, s.statusErr
}

func (s *stubService) PendingDuesRoster(ctx context.Context) ([]service.PendingDue, error) {
	return s.pendingResp, s.pendingErr
}

func (s *stubService) Settle(ctx context.Context, title int64) error {
	return s.settleErr
}

func (s *stubService) RecordPayment(ctx context.Context, title int64, method model.PaymentMethod, coverageMonths int, paidAt *time.Time) (int64, error) {
	s.gotPaymentTitle = title
	s.gotMethod = method
	s.gotCoverage = coverageMonths
	s.gotPaidAt = paidAt
	return s.paymentID, s.paymentErr
}

func (s *stubService) RegisterDependent(ctx context.Context, d *model.Dependent) (int64, error) {
	return s.registerDependentID, s.registerDependentErr
}

func (s *stubService) DependentsOfMember(ctx context.Context, title int64) ([]model.Dependent, error) {
	return s.dependentsResp, s.dependentsErr
}

func (s *stubService) RegisterEmployee(ctx context.Context, e *model.Employee) (int64, error) {
	return s.registerEmployeeID, s.registerEmployeeErr
}

func (s *stubService) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	return s.employeesResp, s.employeesErr
}

func (s *stubService) RegisterVisitor(ctx context.Context, v *model.Visitor) (int64, error) {
	return s.registerVisitorID, s.registerVisitorErr
}

func (s *stubService) RecordAttendance(ctx context.Context, title int64) (int64, error) {
	return s.attendanceID, s.attendanceErr
}

func (s *stubService) ListAttendance(ctx context.Context) ([]service.AttendanceWithStatus, error) {
	return s.attendanceResp, s.attendanceGetErr
}

func (s *stubService) Dashboard(ctx context.Context) (*service.DashboardSummary, error) {
	return s.dashboardResp, s.dashboardErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger)
}

func TestRegisterMember_Success(t *testing.T) {
	svc := &stubService{
		registerMemberID: 42,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerMemberRequest{
		TitleNumber: "1234",
		Name:        "Maria Souza",
		CPF:         "529.982.247-25",
		BirthDate:   "1980-05-14",
		City:        "Campinas",
		State:       "SP",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/members", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RegisterMember(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp idResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 42 {
		t.Fatalf("id = %d, want 42", resp.ID)
	}
}

func TestRegisterMember_InvalidCPF(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(registerMemberRequest{
		TitleNumber: "1234",
		Name:        "Maria Souza",
		CPF:         "111.111.111-11",
		BirthDate:   "1980-05-14",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/members", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RegisterMember(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestRegisterMember_DuplicateTitle(t *testing.T) {
	svc := &stubService{
		registerMemberErr: repository.ErrMemberExists,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerMemberRequest{
		TitleNumber: "1234",
		Name:        "Maria Souza",
		CPF:         "529.982.247-25",
		BirthDate:   "1980-05-14",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/members", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RegisterMember(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestGetMembers_JSONResponse(t *testing.T) {
	due := time.Date(2025, time.February, 7, 0, 0, 0, 0, time.UTC)
	svc := &stubService{
		findMembersResp: []service.MemberWithStatus{
			{
				Member: model.Member{
					ID:          1,
					TitleNumber: 1234,
					Name:        "Maria Souza",
					CPF:         "529.982.247-25",
					BirthDate:   time.Date(1980, time.May, 14, 0, 0, 0, 0, time.UTC),
				},
				Arrears: model.ArrearsStatus{
					Class:            model.ArrearsDelinquent,
					DueDate:          due,
					MonthsDelinquent: 3,
				},
			},
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/members", nil)
	rec := httptest.NewRecorder()

	h.GetMembers(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp []memberResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("members = %d, want 1", len(resp))
	}
	if resp[0].Arrears.Class != string(model.ArrearsDelinquent) {
		t.Fatalf("class = %q, want %q", resp[0].Arrears.Class, model.ArrearsDelinquent)
	}
	if resp[0].Arrears.MonthsDelinquent != 3 {
		t.Fatalf("months = %d, want 3", resp[0].Arrears.MonthsDelinquent)
	}
}

func TestGetMembers_RejectsBadTitleFilter(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/members?title_number=abc", nil)
	rec := httptest.NewRecorder()

	h.GetMembers(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestGetMemberArrears_NoPaymentOmitsDueDate(t *testing.T) {
	svc := &stubService{
		statusResp: model.ArrearsStatus{Class: model.ArrearsNoPaymentOnRecord},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/members/1234/arrears", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if strings.Contains(string(raw), "due_date") {
		t.Fatalf("body %q should not contain due_date", string(raw))
	}

	var resp arrearsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Class != string(model.ArrearsNoPaymentOnRecord) {
		t.Fatalf("class = %q, want %q", resp.Class, model.ArrearsNoPaymentOnRecord)
	}
}

func TestRecordPayment_CoverageDefaultsFromMethod(t *testing.T) {
	svc := &stubService{
		paymentID: 7,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(recordPaymentRequest{
		TitleNumber: "1234",
		Method:      "SEMIANNUAL",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/payments", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RecordPayment(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if svc.gotCoverage != 6 {
		t.Fatalf("coverage = %d, want 6", svc.gotCoverage)
	}
	if svc.gotPaidAt != nil {
		t.Fatalf("paidAt = %v, want nil", svc.gotPaidAt)
	}
}

func TestRecordPayment_BackdatedToSeventh(t *testing.T) {
	svc := &stubService{
		paymentID: 8,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(recordPaymentRequest{
		TitleNumber:    "1234",
		Method:         "CUSTOM",
		CoverageMonths: 3,
		Year:           2024,
		Month:          11,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/payments", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RecordPayment(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if svc.gotPaidAt == nil {
		t.Fatal("paidAt is nil, want backdated timestamp")
	}
	if svc.gotPaidAt.Day() != 7 {
		t.Fatalf("paidAt day = %d, want 7", svc.gotPaidAt.Day())
	}
	if svc.gotPaidAt.Year() != 2024 || svc.gotPaidAt.Month() != time.November {
		t.Fatalf("paidAt = %v, want November 2024", svc.gotPaidAt)
	}
}

func TestRecordPayment_UnknownMember(t *testing.T) {
	svc := &stubService{
		paymentErr: repository.ErrMemberNotFound,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(recordPaymentRequest{
		TitleNumber: "1234",
		Method:      "MONTHLY",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/payments", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RecordPayment(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestRecordPayment_InvalidCoverage(t *testing.T) {
	svc := &stubService{
		paymentErr: service.ErrInvalidCoverage,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(recordPaymentRequest{
		TitleNumber:    "1234",
		Method:         "CUSTOM",
		CoverageMonths: 13,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/payments", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RecordPayment(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestSettlePayment_NothingPending(t *testing.T) {
	svc := &stubService{
		settleErr: repository.ErrPaymentNotFound,
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/1234/settle", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestSettlePayment_Success(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/1234/settle", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestGetPendingDues_JSONResponse(t *testing.T) {
	paidAt := time.Date(2025, time.January, 7, 0, 0, 0, 0, time.UTC)
	svc := &stubService{
		pendingResp: []service.PendingDue{
			{
				Member: model.Member{TitleNumber: 1234, Name: "Maria Souza"},
				Payment: model.PaymentRecord{
					TitleNumber:    1234,
					PaidAt:         paidAt,
					Method:         model.PaymentMethodMonthly,
					CoverageMonths: 1,
					Status:         model.PaymentStatusPending,
				},
				Arrears: model.ArrearsStatus{
					Class:            model.ArrearsDelinquent,
					DueDate:          time.Date(2025, time.February, 7, 0, 0, 0, 0, time.UTC),
					MonthsDelinquent: 3,
				},
			},
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/pending", nil)
	rec := httptest.NewRecorder()

	h.GetPendingDues(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp []pendingDueResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("entries = %d, want 1", len(resp))
	}
	if resp[0].TitleNumber != 1234 {
		t.Fatalf("title = %d, want 1234", resp[0].TitleNumber)
	}
	if resp[0].Arrears.MonthsDelinquent != 3 {
		t.Fatalf("months = %d, want 3", resp[0].Arrears.MonthsDelinquent)
	}
}

func TestRecordAttendance_InvalidTitle(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(recordAttendanceRequest{
		TitleNumber: "123456789",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/attendance", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RecordAttendance(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestRegisterDependent_UnknownMember(t *testing.T) {
	svc := &stubService{
		registerDependentErr: repository.ErrMemberNotFound,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerDependentRequest{
		TitleNumber:  "1234",
		Name:         "Joao Souza",
		CPF:          "111.444.777-35",
		BirthDate:    "2010-03-02",
		Relationship: "son",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/dependents", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RegisterDependent(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestGetDashboard_JSONResponse(t *testing.T) {
	svc := &stubService{
		dashboardResp: &service.DashboardSummary{
			TotalMembers:    120,
			AttendanceToday: 15,
			PendingPayments: 9,
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	rec := httptest.NewRecorder()

	h.GetDashboard(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp dashboardResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalMembers != 120 || resp.AttendanceToday != 15 || resp.PendingPayments != 9 {
		t.Fatalf("summary = %+v, want {120 15 9}", resp)
	}
}
