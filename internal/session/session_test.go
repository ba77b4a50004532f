package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/remote"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
)

type fakeMatcher struct {
	match Reauth
	ok    bool
}

func (f *fakeMatcher) LatestTeacherMatch() (Reauth, bool) { return f.match, f.ok }

type fixedKiosk string

func (k fixedKiosk) KioskID() string { return string(k) }

var t0 = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.OpenAt(filepath.Join(t.TempDir(), "kiosk.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { models.Close(db) })
	return db
}

// seedClass creates teacher T1 owning class C1 with students S1, S2 and S3
func seedClass(t *testing.T, db *gorm.DB) {
	t.Helper()
	db.Create(&models.Teacher{Person: models.Person{ID: "T1", FirstName: "Grace", LastName: "Hopper"}})
	db.Create(&models.Class{ID: "C1", Name: "Math 7A", SubjectName: "Math", Section: "A", GradeLevel: "7", TeacherID: "T1", RoomID: "R1"})
	for _, id := range []string{"S1", "S2", "S3"} {
		db.Create(&models.Student{Person: models.Person{ID: id, FirstName: id}})
		db.Create(&models.Enrollment{ClassID: "C1", StudentID: id})
	}
}

func newTestManager(t *testing.T, store remote.Store) (*Manager, *gorm.DB, *fakeMatcher) {
	t.Helper()
	db := newTestDB(t)
	seedClass(t, db)
	m := NewManager(db, store, config.SessionConfig{LateAfter: 30 * time.Minute, ReauthMaxAge: time.Minute})
	m.now = func() time.Time { return t0 }
	matcher := &fakeMatcher{}
	m.SetMatcher(matcher)
	m.SetKiosk(fixedKiosk("kiosk-201"))
	return m, db, matcher
}

func start(t *testing.T, m *Manager) State {
	t.Helper()
	s, err := m.Start(context.Background(), StartRequest{TeacherID: "T1", ClassID: "C1"})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStart(t *testing.T) {
	m, db, _ := newTestManager(t, remote.Unavailable{})
	s := start(t, m)

	if s.ClassName != "Math 7A" || s.TeacherName != "Grace Hopper" || s.RoomID != "R1" {
		t.Errorf("expected names filled from the local store, got %+v", s)
	}
	if m.ActiveClassID() != "C1" {
		t.Errorf("expected active class C1, got %q", m.ActiveClassID())
	}
	var row models.AttendanceSession
	db.First(&row, s.SessionID)
	if row.IsActive != models.ActiveTrue || row.Date != "2024-06-03" {
		t.Errorf("unexpected session row %+v", row)
	}
}

func TestStart_Validation(t *testing.T) {
	m, _, _ := newTestManager(t, remote.Unavailable{})
	if _, err := m.Start(context.Background(), StartRequest{TeacherID: "T1"}); err == nil {
		t.Error("expected missing class id to be rejected")
	}
}

func TestStart_SupersedesStaleRow(t *testing.T) {
	m, db, _ := newTestManager(t, remote.Unavailable{})
	first := start(t, m)
	second := start(t, m)

	var active int64
	db.Model(&models.AttendanceSession{}).Where("is_active = ?", models.ActiveTrue).Count(&active)
	if active != 1 {
		t.Fatalf("expected exactly one active row, got %d", active)
	}
	var old models.AttendanceSession
	db.First(&old, first.SessionID)
	if old.IsActive != models.ActiveFalse || old.TimeEnded == nil {
		t.Errorf("expected first row closed, got %+v", old)
	}
	if cur, _ := m.Current(); cur.SessionID != second.SessionID {
		t.Errorf("expected memory to hold the new session")
	}
}

func TestStart_FinalizesOtherClassSession(t *testing.T) {
	m, db, _ := newTestManager(t, remote.Unavailable{})
	ctx := context.Background()
	db.Create(&models.Teacher{Person: models.Person{ID: "T2", FirstName: "Alan", LastName: "Turing"}})
	db.Create(&models.Class{ID: "C2", Name: "Physics 8B", TeacherID: "T2", RoomID: "R1"})

	first := start(t, m)
	if _, err := m.Mark(ctx, "S1"); err != nil {
		t.Fatal(err)
	}
	second, err := m.Start(ctx, StartRequest{TeacherID: "T2", ClassID: "C2"})
	if err != nil {
		t.Fatal(err)
	}

	var old models.AttendanceSession
	db.First(&old, first.SessionID)
	if old.IsActive != models.ActiveFalse || len(old.StudentsPresent) != 1 || len(old.StudentsAbsent) != 2 {
		t.Errorf("expected first session finalized with S1 present, got %+v", old)
	}
	var absent int64
	db.Model(&models.AttendanceEntry{}).Where("session_id = ? AND status = ?", first.SessionID, models.StatusAbsent).Count(&absent)
	if absent != 2 {
		t.Errorf("expected 2 absent entries, got %d", absent)
	}
	var queued int64
	db.Model(&models.OutboxEntry{}).Where("local_session_id = ?", first.SessionID).Count(&queued)
	if queued != 1 {
		t.Errorf("expected the superseded session queued once, got %d", queued)
	}
	var history int64
	db.Model(&models.SessionHistory{}).Where("session_id = ?", first.SessionID).Count(&history)
	if history != 1 {
		t.Errorf("expected a history row, got %d", history)
	}
	if cur, ok := m.Current(); !ok || cur.SessionID != second.SessionID || cur.ClassID != "C2" {
		t.Errorf("expected memory to hold the C2 session, got %+v", cur)
	}
}

func TestMark_NoActiveSession(t *testing.T) {
	m, _, _ := newTestManager(t, remote.Unavailable{})
	if _, err := m.Mark(context.Background(), "S1"); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestMark_Idempotent(t *testing.T) {
	m, db, _ := newTestManager(t, remote.Unavailable{})
	s := start(t, m)
	ctx := context.Background()

	first, err := m.Mark(ctx, "S1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Mark(ctx, "S1")
	if err != nil {
		t.Fatal(err)
	}
	if first.AlreadyMarked || !second.AlreadyMarked {
		t.Errorf("expected only the second mark to be a repeat, got %+v %+v", first, second)
	}
	if second.Status != models.StatusPresent {
		t.Errorf("expected repeat to report the stored status, got %q", second.Status)
	}

	var row models.AttendanceSession
	db.First(&row, s.SessionID)
	if len(row.StudentsPresent) != 1 {
		t.Errorf("expected one present entry, got %v", row.StudentsPresent)
	}
	var entries int64
	db.Model(&models.AttendanceEntry{}).Where("session_id = ? AND student_id = ?", s.SessionID, "S1").Count(&entries)
	if entries != 1 {
		t.Errorf("expected one entry row, got %d", entries)
	}
}

func TestMark_LateCutoff(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, models.StatusPresent},
		{29*time.Minute + 59*time.Second, models.StatusPresent},
		{30 * time.Minute, models.StatusLate},
		{2 * time.Hour, models.StatusLate},
	}
	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			m, _, _ := newTestManager(t, remote.Unavailable{})
			start(t, m)
			m.now = func() time.Time { return t0.Add(tt.elapsed) }
			res, err := m.Mark(context.Background(), "S2")
			if err != nil {
				t.Fatal(err)
			}
			if res.Status != tt.want {
				t.Errorf("after %s expected %s, got %s", tt.elapsed, tt.want, res.Status)
			}
		})
	}
}

func TestMark_RowMissing(t *testing.T) {
	m, db, _ := newTestManager(t, remote.Unavailable{})
	s := start(t, m)
	db.Model(&models.AttendanceSession{}).Where("id = ?", s.SessionID).Update("is_active", models.ActiveFalse)

	if _, err := m.Mark(context.Background(), "S1"); !errors.Is(err, ErrNoActiveRow) {
		t.Errorf("expected ErrNoActiveRow, got %v", err)
	}
}

func TestStop_ReauthGate(t *testing.T) {
	tests := []struct {
		name  string
		match Reauth
		ok    bool
	}{
		{"no recognition yet", Reauth{}, false},
		{"unsuccessful", Reauth{TeacherID: "T1", Matched: false, At: t0}, true},
		{"different teacher", Reauth{TeacherID: "T2", Matched: true, At: t0}, true},
		{"stale match", Reauth{TeacherID: "T1", Matched: true, At: t0.Add(-2 * time.Minute)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, db, matcher := newTestManager(t, remote.Unavailable{})
			s := start(t, m)
			matcher.match, matcher.ok = tt.match, tt.ok

			if _, err := m.Stop(context.Background()); !errors.Is(err, ErrReauthRequired) {
				t.Fatalf("expected ErrReauthRequired, got %v", err)
			}
			var row models.AttendanceSession
			db.First(&row, s.SessionID)
			if row.IsActive != models.ActiveTrue {
				t.Error("expected row to stay active")
			}
			if _, ok := m.Current(); !ok {
				t.Error("expected session to stay in memory")
			}
		})
	}
}

func TestStop_NoRecognizer(t *testing.T) {
	m, _, _ := newTestManager(t, remote.Unavailable{})
	m.SetMatcher(nil)
	start(t, m)
	if _, err := m.Stop(context.Background()); !errors.Is(err, ErrRecognitionUnavailable) {
		t.Errorf("expected ErrRecognitionUnavailable, got %v", err)
	}
}

func TestStop_Absentees(t *testing.T) {
	store := remote.NewMemory()
	m, db, matcher := newTestManager(t, store)
	ctx := context.Background()
	s := start(t, m)

	if _, err := m.Mark(ctx, "S1"); err != nil {
		t.Fatal(err)
	}
	m.now = func() time.Time { return t0.Add(45 * time.Minute) }
	matcher.match, matcher.ok = Reauth{TeacherID: "T1", Matched: true, At: t0.Add(45 * time.Minute)}, true

	res, err := m.Stop(ctx)
	if err != nil {
		t.Fatal(err)
	}
	m.Wait()

	if len(res.Absent) != 2 || res.Absent[0] != "S2" || res.Absent[1] != "S3" {
		t.Errorf("expected S2 and S3 absent, got %v", res.Absent)
	}
	if _, ok := m.Current(); ok {
		t.Error("expected idle after stop")
	}

	var row models.AttendanceSession
	db.First(&row, s.SessionID)
	if row.IsActive != models.ActiveFalse || row.TimeEnded == nil || len(row.StudentsAbsent) != 2 {
		t.Errorf("expected finalized row, got %+v", row)
	}

	var absent []models.AttendanceEntry
	db.Where("session_id = ? AND status = ?", s.SessionID, models.StatusAbsent).Order("student_id").Find(&absent)
	if len(absent) != 2 {
		t.Fatalf("expected 2 absent entries, got %d", len(absent))
	}
	for _, e := range absent {
		if e.TimeLogged != nil {
			t.Errorf("expected null logged time for %s", e.StudentID)
		}
	}

	var queued models.OutboxEntry
	if err := db.First(&queued, res.OutboxID).Error; err != nil || queued.LocalSessionID != s.SessionID {
		t.Errorf("expected queued outbox row for the session, got %+v %v", queued, err)
	}

	var history models.SessionHistory
	db.First(&history)
	if history.KioskID != "kiosk-201" || history.EnrolledCount != 3 || history.PresentCount != 1 || history.AbsentCount != 2 {
		t.Errorf("unexpected history %+v", history)
	}

	doc, ok := store.Get(remote.AttendanceSessions, "Math_A_7_2024-06-03")
	if !ok || doc["isActive"] != false {
		t.Errorf("expected final session document, got %v", doc)
	}
	var mirror models.RemoteSession
	if err := db.First(&mirror, "id = ?", "Math_A_7_2024-06-03").Error; err != nil {
		t.Errorf("expected local mirror row: %v", err)
	}
}

func TestStop_NoActiveRow(t *testing.T) {
	m, db, matcher := newTestManager(t, remote.Unavailable{})
	s := start(t, m)
	db.Model(&models.AttendanceSession{}).Where("id = ?", s.SessionID).Update("is_active", models.ActiveFalse)
	matcher.match, matcher.ok = Reauth{TeacherID: "T1", Matched: true, At: t0}, true

	res, err := m.Stop(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Warning != WarnNoActiveRow {
		t.Errorf("expected warning %q, got %q", WarnNoActiveRow, res.Warning)
	}
	if _, ok := m.Current(); ok {
		t.Error("expected memory cleared")
	}
}

func TestStop_Idle(t *testing.T) {
	m, _, _ := newTestManager(t, remote.Unavailable{})
	if _, err := m.Stop(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestRestore(t *testing.T) {
	m, db, _ := newTestManager(t, remote.Unavailable{})
	s := start(t, m)
	m.Mark(context.Background(), "S3")

	restored := NewManager(db, remote.Unavailable{}, config.SessionConfig{})
	ok, err := restored.Restore(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected restore, got %v %v", ok, err)
	}
	cur, _ := restored.Current()
	if cur.SessionID != s.SessionID || len(cur.Present) != 1 || cur.Present[0] != "S3" {
		t.Errorf("unexpected restored state %+v", cur)
	}
}

func TestAttendanceAndHistory(t *testing.T) {
	m, _, matcher := newTestManager(t, remote.Unavailable{})
	ctx := context.Background()
	start(t, m)
	m.Mark(ctx, "S2")

	view, err := m.Attendance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if view.Enrolled != 3 || view.Marked != 1 {
		t.Errorf("expected 1 of 3 marked, got %+v", view)
	}

	entries, err := m.Entries(ctx, 0)
	if err != nil || len(entries) != 1 {
		t.Errorf("expected one entry, got %v %v", entries, err)
	}

	matcher.match, matcher.ok = Reauth{TeacherID: "T1", Matched: true, At: t0}, true
	if _, err := m.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	history, err := m.History(ctx, 10, 0)
	if err != nil || len(history) != 1 {
		t.Errorf("expected one history row, got %v %v", history, err)
	}
	if _, err := m.Attendance(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("expected ErrNoActiveSession when idle, got %v", err)
	}

	classes, err := m.ClassesForTeacher(ctx, "T1")
	if err != nil || len(classes) != 1 {
		t.Errorf("expected one class for T1, got %v %v", classes, err)
	}
}
