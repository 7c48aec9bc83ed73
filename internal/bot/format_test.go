package bot

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Spok95/tutorbook/internal/models"
)

func TestParsePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+7 (912) 345-67-89", "79123456789", true},
		{"8 912 345 67 89", "79123456789", true},
		{"9123456789", "9123456789", true},
		{"12345", "", false},
		{"позвоните мне 89123456789", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := parsePhone(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("parsePhone(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestBalanceText(t *testing.T) {
	if got := balanceText(nil); got != textNoStudents {
		t.Fatalf("empty: %q", got)
	}
	rows := []models.StudentSummary{
		{
			Student:          models.Student{Name: "Петя", Grade: "7", AcademicYear: "2024-2025", Semester: models.SemesterFirst},
			TotalLessons:     3,
			TotalHours:       4.5,
			ExpectedIncome:   500,
			TotalPaid:        250,
			RemainingBalance: 250,
		},
		{
			Student:          models.Student{Name: "Вася", AcademicYear: "2024-2025", Semester: models.SemesterSummer, IsCompleted: true},
			ExpectedIncome:   200,
			TotalPaid:        250,
			RemainingBalance: -50,
		},
	}
	got := balanceText(rows)
	for _, want := range []string{
		"Петя (7)", "1 семестр", "часов: 4.5", "Остаток к оплате: 250 ₽",
		"Вася", "лето, занятия завершены", "Переплата: 50 ₽",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("balance text misses %q:\n%s", want, got)
		}
	}
}

func TestReminderText(t *testing.T) {
	got := ReminderText([]ReminderLine{
		{StudentName: "Петя", Entry: models.ScheduleEntry{DayOfWeek: 1, StartTime: "09:05", DurationHours: 1.5}},
	})
	if got != "Завтра занятия:\n• Петя, 09:05–10:35" {
		t.Fatalf("got %q", got)
	}
}

func TestChatLimiterSerializesChat(t *testing.T) {
	l := NewChatLimiter()
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock(42)
			defer unlock()
			mu.Lock()
			active++
			maxSeen = max(maxSeen, active)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("concurrent handlers in one chat: %d", maxSeen)
	}
}
