package arrears

import (
	"testing"
	"time"

	"github.com/clubedecampo/membership-system/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func payment(paidAt time.Time, coverage int) *model.PaymentRecord {
	return &model.PaymentRecord{
		TitleNumber:    1042,
		PaidAt:         paidAt,
		Method:         model.PaymentMethodMonthly,
		CoverageMonths: coverage,
		Status:         model.PaymentStatusPending,
	}
}

func TestCompute_NoPaymentOnRecord(t *testing.T) {
	status := Compute(nil, date(2025, time.June, 4))

	if status.Class != model.ArrearsNoPaymentOnRecord {
		t.Fatalf("class = %s, want %s", status.Class, model.ArrearsNoPaymentOnRecord)
	}
	if status.MonthsDelinquent != 0 {
		t.Fatalf("months delinquent = %d, want 0", status.MonthsDelinquent)
	}
}

func TestCompute(t *testing.T) {
	type want struct {
		class   model.ArrearsClass
		dueDate time.Time
		months  int
	}

	tests := []struct {
		name     string
		paidAt   time.Time
		coverage int
		now      time.Time
		want     want
	}{
		{
			name:     "two cycles overdue",
			paidAt:   date(2025, time.January, 7),
			coverage: 1,
			now:      date(2025, time.April, 10),
			want: want{
				class:   model.ArrearsDelinquent,
				dueDate: date(2025, time.February, 7),
				months:  2,
			},
		},
		{
			name:     "inside paid window before the 7th",
			paidAt:   date(2025, time.January, 7),
			coverage: 1,
			now:      date(2025, time.February, 1),
			want: want{
				// Feb 7 is still ahead, so the check references Jan 7.
				class:   model.ArrearsInGoodStanding,
				dueDate: date(2025, time.January, 7),
				months:  0,
			},
		},
		{
			name:     "annual coverage freshly paid",
			paidAt:   date(2025, time.June, 1),
			coverage: 12,
			now:      date(2025, time.June, 4),
			want: want{
				class:   model.ArrearsInGoodStanding,
				dueDate: date(2026, time.May, 7),
				months:  0,
			},
		},
		{
			name:     "year rollover in due month",
			paidAt:   date(2024, time.November, 20),
			coverage: 2,
			now:      date(2025, time.March, 15),
			want: want{
				class:   model.ArrearsDelinquent,
				dueDate: date(2025, time.January, 7),
				months:  2,
			},
		},
		{
			name:     "exactly one 30-day month elapsed",
			paidAt:   date(2025, time.January, 7),
			coverage: 1,
			now:      date(2025, time.March, 9),
			want: want{
				class:   model.ArrearsDelinquent,
				dueDate: date(2025, time.February, 7),
				months:  1,
			},
		},
		{
			name:     "semiannual coverage long lapsed",
			paidAt:   date(2024, time.January, 7),
			coverage: 6,
			now:      date(2025, time.June, 4),
			want: want{
				class:   model.ArrearsDelinquent,
				dueDate: date(2024, time.July, 7),
				months:  11,
			},
		},
		{
			name:     "end-of-month payment normalizes like the ledger history",
			paidAt:   date(2025, time.January, 31),
			coverage: 1,
			now:      date(2025, time.June, 4),
			want: want{
				// Jan 31 + 1 month normalizes into March before the day is
				// pinned to the 7th; existing records were produced this way.
				class:   model.ArrearsDelinquent,
				dueDate: date(2025, time.March, 7),
				months:  2,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(payment(tt.paidAt, tt.coverage), tt.now)

			if got.Class != tt.want.class {
				t.Fatalf("class = %s, want %s", got.Class, tt.want.class)
			}
			if !got.DueDate.Equal(tt.want.dueDate) {
				t.Fatalf("due date = %s, want %s", got.DueDate, tt.want.dueDate)
			}
			if got.MonthsDelinquent != tt.want.months {
				t.Fatalf("months delinquent = %d, want %d", got.MonthsDelinquent, tt.want.months)
			}
		})
	}
}

func TestCompute_DueDayAlwaysSeventh(t *testing.T) {
	now := date(2025, time.June, 4)

	for day := 1; day <= 28; day++ {
		for coverage := 1; coverage <= 12; coverage++ {
			got := Compute(payment(date(2025, time.January, day), coverage), now)
			if got.DueDate.Day() != 7 {
				t.Fatalf("paid day %d coverage %d: due day = %d, want 7", day, coverage, got.DueDate.Day())
			}
			if got.MonthsDelinquent < 0 {
				t.Fatalf("paid day %d coverage %d: negative delinquency %d", day, coverage, got.MonthsDelinquent)
			}
		}
	}
}

func TestCompute_ZeroMonthsMeansGoodStanding(t *testing.T) {
	now := date(2025, time.June, 4)

	for coverage := 1; coverage <= 12; coverage++ {
		for month := time.January; month <= time.December; month++ {
			got := Compute(payment(date(2024, month, 7), coverage), now)

			inGoodStanding := got.Class == model.ArrearsInGoodStanding
			if inGoodStanding != (got.MonthsDelinquent == 0) {
				t.Fatalf("coverage %d paid %s: class %s with %d months delinquent",
					coverage, month, got.Class, got.MonthsDelinquent)
			}
		}
	}
}

func TestDueDate_CorrectionStopsAtOneMonth(t *testing.T) {
	// A freshly paid long coverage stays in the future even after the one-month
	// pull-back; the delinquency count clamps at zero rather than going negative.
	now := date(2025, time.June, 4)
	got := Compute(payment(now, 12), now)

	if !got.DueDate.After(now) {
		t.Fatalf("due date %s should remain ahead of now %s", got.DueDate, now)
	}
	if got.Class != model.ArrearsInGoodStanding || got.MonthsDelinquent != 0 {
		t.Fatalf("got %s (%d months), want good standing with 0", got.Class, got.MonthsDelinquent)
	}
}

func TestDueDate_KeepsTimeOfDayAndLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	paidAt := time.Date(2025, time.January, 20, 10, 51, 0, 0, loc)

	due := DueDate(paidAt, 1, time.Date(2025, time.June, 4, 0, 0, 0, 0, loc))

	if due.Day() != 7 {
		t.Fatalf("due day = %d, want 7", due.Day())
	}
	if due.Hour() != 10 || due.Minute() != 51 {
		t.Fatalf("due time = %02d:%02d, want 10:51", due.Hour(), due.Minute())
	}
	if due.Location() != loc {
		t.Fatalf("due location = %v, want %v", due.Location(), loc)
	}
}
