package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/models"
)

func TestGroupReminders(t *testing.T) {
	early := models.ScheduleEntry{ID: uuid.New(), StartTime: "09:00", DurationHours: 1}
	late := models.ScheduleEntry{ID: uuid.New(), StartTime: "15:30", DurationHours: 1}
	rem := []db.Reminder{
		{Entry: early, StudentName: "Петя", PhoneDigits: []string{"79120000001", "79120000002"}},
		{Entry: late, StudentName: "Вася", PhoneDigits: []string{"79120000001", "79120000001"}},
	}
	chats := []models.ParentLink{
		{ChatID: 1, Phone: "79120000001"},
		{ChatID: 2, Phone: "79120000002"},
		{ChatID: 3, Phone: "79990000000"},
	}

	got := groupReminders(rem, chats)
	if len(got) != 2 {
		t.Fatalf("chats: %v", got)
	}
	if l := got[1]; len(l) != 2 || l[0].StudentName != "Петя" || l[1].StudentName != "Вася" {
		t.Fatalf("chat 1: %+v", l)
	}
	if l := got[2]; len(l) != 1 || l[0].Entry.ID != early.ID {
		t.Fatalf("chat 2: %+v", l)
	}
	if _, ok := got[3]; ok {
		t.Fatal("chat without students got a reminder")
	}
}

func TestRunOnceCountsErrorsAndPanics(t *testing.T) {
	r := New(context.Background(), time.UTC, nil)

	before := testutil.ToFloat64(jobErrors.WithLabelValues("test-fail"))
	r.runOnce("test-fail", func(context.Context) error { return errors.New("boom") })
	r.runOnce("test-fail", func(context.Context) error { panic("oops") })
	if got := testutil.ToFloat64(jobErrors.WithLabelValues("test-fail")) - before; got != 2 {
		t.Fatalf("errors counted: %v", got)
	}

	runs := testutil.ToFloat64(jobRuns.WithLabelValues("test-ok"))
	var hasDeadline bool
	r.runOnce("test-ok", func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})
	if testutil.ToFloat64(jobRuns.WithLabelValues("test-ok"))-runs != 1 || !hasDeadline {
		t.Fatal("successful run not recorded or no deadline")
	}
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	r := New(context.Background(), time.UTC, nil)
	if err := r.Schedule("not a cron", "bad", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for bad spec")
	}
	if err := r.Schedule("0 18 * * *", "reminders", func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if err := r.Every(time.Minute, "broadcasts", func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
}
