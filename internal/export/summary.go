// Package export — выгрузка сводки по ученикам в Excel.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/tutorbook/internal/billing"
	"github.com/Spok95/tutorbook/internal/models"
)

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	sheetStudents = "Ученики"
	sheetTotals   = "Итого"
)

var studentHeader = []string{
	"Ученик", "Класс", "Оплата", "Ставка", "Занятий", "Часов",
	"Ожидается", "Оплачено", "Остаток", "Долг", "Завершён", "Телефоны",
}

// ReportFilename — имя файла выгрузки за период.
func ReportFilename(p models.Period) string {
	return sanitizeFileName(fmt.Sprintf("Сводка %s %s.xlsx", p.AcademicYear, p.Semester.Label()))
}

// SummaryReport строит книгу: лист по ученикам и лист с итогами. Остаток выводится
// со знаком, колонка "Долг" — неотрицательная.
func SummaryReport(p models.Period, rows []models.StudentSummary, totals billing.Totals) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetStudents); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetStudents, "A1", &studentHeader); err != nil {
		return nil, err
	}
	for i, r := range rows {
		mode, rate := "договор", deref(r.AgreedAmount)
		if r.IsHourly {
			mode, rate = "почасовая", deref(r.PricePerHour)
		}
		completed := ""
		if r.IsCompleted {
			completed = "да"
		}
		phones := make([]string, 0, len(r.Phones))
		for _, ph := range r.Phones {
			if ph.Label != "" {
				phones = append(phones, ph.Label+": "+ph.Number)
			} else {
				phones = append(phones, ph.Number)
			}
		}
		row := []any{
			r.Name, r.Grade, mode, rate, r.TotalLessons, r.TotalHours,
			r.ExpectedIncome, r.TotalPaid, r.RemainingBalance, billing.DisplayDebt(r.RemainingBalance),
			completed, strings.Join(phones, ", "),
		}
		if err := f.SetSheetRow(sheetStudents, cell(1, i+2), &row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	if err := applyFormatting(f, sheetStudents); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(sheetTotals); err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	lines := [][]any{
		{"Показатель", "Значение"},
		{"Учебный год", p.AcademicYear},
		{"Семестр", p.Semester.Label()},
		{"Учеников", totals.Students},
		{"Завершили", totals.Completed},
		{"Занятий", totals.Lessons},
		{"Часов", totals.Hours},
		{"Ожидаемый доход", totals.ExpectedIncome},
		{"Оплачено", totals.TotalPaid},
		{"Задолженность", totals.Outstanding},
		{"Переплата", totals.Overpaid},
		{"Собрано, %", totals.CollectionRate},
	}
	for i, l := range lines {
		if err := f.SetSheetRow(sheetTotals, cell(1, i+1), &l); err != nil {
			return nil, err
		}
	}
	if err := applyFormatting(f, sheetTotals); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
