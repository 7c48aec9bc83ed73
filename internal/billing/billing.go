// Package billing сводит строки student_summary_view в итоги для дашборда
// и готовит суммы к показу. Ожидаемый доход и остаток считает сама view.
package billing

import (
	"math"

	"github.com/Spok95/tutorbook/internal/models"
)

// DisplayDebt — долг для показа: переплата отображается как 0, знак в данных не трогаем.
func DisplayDebt(remaining float64) float64 {
	if remaining < 0 {
		return 0
	}
	return remaining
}

type Totals struct {
	Students       int     `json:"students"`
	Completed      int     `json:"completed"`
	Lessons        int     `json:"lessons"`
	Hours          float64 `json:"hours"`
	ExpectedIncome float64 `json:"expected_income"`
	TotalPaid      float64 `json:"total_paid"`
	Outstanding    float64 `json:"outstanding"`
	Overpaid       float64 `json:"overpaid"`
	CollectionRate float64 `json:"collection_rate"` // %
}

func Summarize(rows []models.StudentSummary) Totals {
	var t Totals
	for _, r := range rows {
		t.Students++
		if r.IsCompleted {
			t.Completed++
		}
		t.Lessons += r.TotalLessons
		t.Hours += r.TotalHours
		t.ExpectedIncome += r.ExpectedIncome
		t.TotalPaid += r.TotalPaid
		if r.RemainingBalance > 0 {
			t.Outstanding += r.RemainingBalance
		} else {
			t.Overpaid -= r.RemainingBalance
		}
	}
	t.Hours = round2(t.Hours)
	t.ExpectedIncome = round2(t.ExpectedIncome)
	t.TotalPaid = round2(t.TotalPaid)
	t.Outstanding = round2(t.Outstanding)
	t.Overpaid = round2(t.Overpaid)
	t.CollectionRate = CollectionRate(t.TotalPaid, t.ExpectedIncome)
	return t
}

// CollectionRate — доля собранного в процентах; 0, если ожидать нечего.
func CollectionRate(paid, expected float64) float64 {
	if expected <= 0 {
		return 0
	}
	return round2(paid / expected * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
