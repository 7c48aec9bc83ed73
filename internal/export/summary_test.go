package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/tutorbook/internal/billing"
	"github.com/Spok95/tutorbook/internal/models"
)

func TestSummaryReport(t *testing.T) {
	agreed, price := 500.0, 20.0
	rows := []models.StudentSummary{
		{
			Student:          models.Student{Name: "Петя", Grade: "7", AgreedAmount: &agreed, Phones: []models.Phone{{Number: "+79120001122", Label: "мама"}}},
			TotalPaid:        250,
			ExpectedIncome:   500,
			RemainingBalance: 250,
		},
		{
			Student:          models.Student{Name: "Вася", IsHourly: true, PricePerHour: &price, IsCompleted: true},
			TotalLessons:     2,
			TotalHours:       10,
			TotalPaid:        250,
			ExpectedIncome:   200,
			RemainingBalance: -50,
		},
	}
	period := models.Period{AcademicYear: "2024-2025", Semester: models.SemesterFirst}

	data, err := SummaryReport(period, rows, billing.Summarize(rows))
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	got, err := f.GetRows(sheetStudents)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("rows: %d", len(got))
	}
	if got[0][0] != "Ученик" || got[1][0] != "Петя" || got[2][2] != "почасовая" {
		t.Fatalf("unexpected content: %v", got)
	}
	// остаток со знаком, долг не отрицательный
	if got[2][8] != "-50" || got[2][9] != "0" {
		t.Fatalf("balance/debt: %q %q", got[2][8], got[2][9])
	}
	if !strings.Contains(got[1][11], "мама") {
		t.Fatalf("phones: %q", got[1][11])
	}

	totals, err := f.GetRows(sheetTotals)
	if err != nil {
		t.Fatal(err)
	}
	if totals[3][0] != "Учеников" || totals[3][1] != "2" {
		t.Fatalf("totals: %v", totals)
	}
}

func TestReportFilename(t *testing.T) {
	name := ReportFilename(models.Period{AcademicYear: "2024-2025", Semester: models.SemesterSummer})
	if name != "Сводка 2024-2025 лето.xlsx" {
		t.Fatalf("got %q", name)
	}
}

func TestColName(t *testing.T) {
	cases := map[int]string{1: "A", 26: "Z", 27: "AA", 52: "AZ"}
	for n, want := range cases {
		if got := colName(n); got != want {
			t.Errorf("colName(%d) = %q, want %q", n, got, want)
		}
	}
}
