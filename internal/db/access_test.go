//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/models"
)

func TestTeacherSeesOnlyOwnRows(t *testing.T) {
	database := reset(t)
	ctx := context.Background()
	anna := mustAccount(t, database, "Анна", models.Teacher, true)
	boris := mustAccount(t, database, "Борис", models.Teacher, true)
	admin := mustAccount(t, database, "Админ", models.Admin, true)

	a := mustStudent(t, database, anna, "Петя", 100)
	b := mustStudent(t, database, boris, "Вася", 100)
	mustLesson(t, database, anna, a.ID, 1)
	mustLesson(t, database, boris, b.ID, 1)
	mustPayment(t, database, boris, b.ID, 50)

	students, err := db.ListStudents(ctx, database, authz.ForTeacher(anna), db.StudentFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(students) != 1 || students[0].ID != a.ID {
		t.Fatalf("anna sees %+v", students)
	}
	lessons, err := db.ListLessons(ctx, database, authz.ForTeacher(anna), db.RangeFilter{})
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range lessons {
		if l.TeacherID != anna {
			t.Fatalf("foreign lesson visible: %+v", l)
		}
	}
	payments, err := db.ListPayments(ctx, database, authz.ForTeacher(anna), db.RangeFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(payments) != 0 {
		t.Fatalf("anna sees payments of boris: %+v", payments)
	}

	all, err := db.ListStudents(ctx, database, authz.ForAdmin(admin), db.StudentFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("admin sees %d students, want 2", len(all))
	}

	supervised, err := db.ListStudents(ctx, database, authz.ForAdmin(admin).Supervise(boris), db.StudentFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(supervised) != 1 || supervised[0].ID != b.ID {
		t.Fatalf("supervised view: %+v", supervised)
	}
}

func TestForeignRowsLookMissing(t *testing.T) {
	database := reset(t)
	ctx := context.Background()
	anna := mustAccount(t, database, "Анна", models.Teacher, true)
	boris := mustAccount(t, database, "Борис", models.Teacher, true)
	b := mustStudent(t, database, boris, "Вася", 100)

	annaScope := authz.ForTeacher(anna)
	if _, err := db.GetStudent(ctx, database, annaScope, b.ID); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("get foreign student: %v", err)
	}
	if err := db.DeleteStudent(ctx, database, annaScope, b.ID); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("delete foreign student: %v", err)
	}
	_, err := db.CreateLesson(ctx, database, annaScope, models.Lesson{StudentID: b.ID, LessonDate: models.NewDate(2024, 9, 9), Hours: 1})
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("lesson for foreign student: %v", err)
	}
	_, err = db.CreateStudent(ctx, database, annaScope, models.Student{
		TeacherID: boris, Name: "Чужой", AgreedAmount: ptr(1.0), AcademicYear: "2024-2025", Semester: models.SemesterFirst,
	})
	if !errors.Is(err, db.ErrForbidden) {
		t.Fatalf("insert for another teacher: %v", err)
	}
}

func TestDeleteStudentCascades(t *testing.T) {
	database := reset(t)
	ctx := context.Background()
	anna := mustAccount(t, database, "Анна", models.Teacher, true)
	sc := authz.ForTeacher(anna)
	st := mustStudent(t, database, anna, "Петя", 100)
	mustLesson(t, database, anna, st.ID, 2)
	mustPayment(t, database, anna, st.ID, 40)
	if _, err := db.CreateScheduleEntry(ctx, database, sc, models.ScheduleEntry{
		StudentID: st.ID, DayOfWeek: 2, StartTime: "16:30", DurationHours: 1.5,
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteStudent(ctx, database, sc, st.ID); err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{"lessons", "payments", "schedules"} {
		var n int
		if err := database.QueryRow(`SELECT count(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Fatalf("%s: %d rows left after cascade", table, n)
		}
	}
}

func TestReassignStudentMovesChildren(t *testing.T) {
	database := reset(t)
	ctx := context.Background()
	anna := mustAccount(t, database, "Анна", models.Teacher, true)
	boris := mustAccount(t, database, "Борис", models.Teacher, true)
	admin := mustAccount(t, database, "Админ", models.Admin, true)
	st := mustStudent(t, database, anna, "Петя", 100)
	mustLesson(t, database, anna, st.ID, 1)
	mustPayment(t, database, anna, st.ID, 10)

	st.TeacherID = boris
	if _, err := db.UpdateStudent(ctx, database, authz.ForTeacher(anna), st); !errors.Is(err, db.ErrForbidden) {
		t.Fatalf("teacher reassign: %v", err)
	}
	if _, err := db.UpdateStudent(ctx, database, authz.ForAdmin(admin), st); err != nil {
		t.Fatal(err)
	}
	sum, err := db.GetSummary(ctx, database, authz.ForTeacher(boris), st.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalLessons != 1 || sum.TotalPaid != 10 {
		t.Fatalf("aggregates after reassign: %+v", sum)
	}
	lessons, err := db.ListLessons(ctx, database, authz.ForTeacher(boris), db.RangeFilter{StudentID: uuid.NullUUID{UUID: st.ID, Valid: true}})
	if err != nil {
		t.Fatal(err)
	}
	if len(lessons) != 1 {
		t.Fatalf("boris sees %d lessons", len(lessons))
	}
}

func TestScheduleTimeRoundTrip(t *testing.T) {
	database := reset(t)
	ctx := context.Background()
	anna := mustAccount(t, database, "Анна", models.Teacher, true)
	sc := authz.ForTeacher(anna)
	st := mustStudent(t, database, anna, "Петя", 100)

	for _, e := range []models.ScheduleEntry{
		{StudentID: st.ID, DayOfWeek: 0, StartTime: "10:00", DurationHours: 1},
		{StudentID: st.ID, DayOfWeek: 1, StartTime: "9:05", DurationHours: 1},
	} {
		if _, err := db.CreateScheduleEntry(ctx, database, sc, e); err != nil {
			t.Fatal(err)
		}
	}
	list, err := db.ListSchedule(ctx, database, sc, db.ScheduleFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].DayOfWeek != 1 || list[0].StartTime != "09:05" {
		t.Fatalf("want monday 09:05 first, got %+v", list)
	}
}

func TestPreferencesDefaultAndSave(t *testing.T) {
	database := reset(t)
	ctx := context.Background()
	anna := mustAccount(t, database, "Анна", models.Teacher, true)

	p, err := db.GetPreferences(ctx, database, anna, models.NewDate(2025, 3, 10).Time)
	if err != nil {
		t.Fatal(err)
	}
	if p.AcademicYear != "2024-2025" || p.Semester != models.SemesterSecond {
		t.Fatalf("default preferences: %+v", p)
	}
	if _, err := db.SavePreferences(ctx, database, models.Preferences{ProfileID: anna, AcademicYear: "2023-2024", Semester: models.SemesterSummer}); err != nil {
		t.Fatal(err)
	}
	p, err = db.GetPreferences(ctx, database, anna, models.NewDate(2025, 3, 10).Time)
	if err != nil {
		t.Fatal(err)
	}
	if p.AcademicYear != "2023-2024" || p.Semester != models.SemesterSummer {
		t.Fatalf("saved preferences: %+v", p)
	}
}

func TestFindStudentsByPhone(t *testing.T) {
	database := reset(t)
	ctx := context.Background()
	anna := mustAccount(t, database, "Анна", models.Teacher, true)
	mustStudent(t, database, anna, "Петя", 100, "+7 (912) 000-11-22")
	mustStudent(t, database, anna, "Вася", 100, "8 912 999 00 00")

	rows, err := db.FindStudentsByPhone(ctx, database, "89120001122")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Name != "Петя" {
		t.Fatalf("by phone: %+v", rows)
	}
}
