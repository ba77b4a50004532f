package session

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	models "github.com/CLDWare/attendance-kiosk/pkg/db"
)

// Attendee is one enrolled student and how they were recorded
type Attendee struct {
	StudentID  string     `json:"student_id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	TimeLogged *time.Time `json:"time_logged"`
}

// Attendance is the live view of the active session
type Attendance struct {
	Session   State      `json:"session"`
	Attendees []Attendee `json:"attendees"`
	Enrolled  int        `json:"enrolled"`
	Marked    int        `json:"marked"`
}

// Attendance lists every enrolled student of the active class with their
// status so far. Unmarked students have an empty status.
func (m *Manager) Attendance(ctx context.Context) (Attendance, error) {
	state, ok := m.Current()
	if !ok {
		return Attendance{}, ErrNoActiveSession
	}

	var rows []struct {
		ID         string
		FirstName  string
		MiddleName string
		LastName   string
		Status     *string
		TimeLogged *time.Time
	}
	err := m.db.WithContext(ctx).Table("class_students").
		Select("students.id, students.first_name, students.middle_name, students.last_name, attendance_entries.status, attendance_entries.time_logged").
		Joins("JOIN students ON students.id = class_students.student_id").
		Joins("LEFT JOIN attendance_entries ON attendance_entries.student_id = class_students.student_id AND attendance_entries.session_id = ?", state.SessionID).
		Where("class_students.class_id = ?", state.ClassID).
		Order("students.last_name, students.first_name").
		Scan(&rows).Error
	if err != nil {
		return Attendance{}, fmt.Errorf("load attendance: %w", err)
	}

	view := Attendance{Session: state, Attendees: make([]Attendee, 0, len(rows)), Enrolled: len(rows)}
	for _, r := range rows {
		a := Attendee{
			StudentID:  r.ID,
			Name:       models.Person{FirstName: r.FirstName, MiddleName: r.MiddleName, LastName: r.LastName}.FullName(),
			TimeLogged: r.TimeLogged,
		}
		if r.Status != nil {
			a.Status = *r.Status
			view.Marked++
		}
		view.Attendees = append(view.Attendees, a)
	}
	return view, nil
}

// Entries returns the entries of a session, or of the active session when
// sessionID is zero.
func (m *Manager) Entries(ctx context.Context, sessionID uint) ([]models.AttendanceEntry, error) {
	if sessionID == 0 {
		state, ok := m.Current()
		if !ok {
			return nil, ErrNoActiveSession
		}
		sessionID = state.SessionID
	}
	return gorm.G[models.AttendanceEntry](m.db).Where("session_id = ?", sessionID).Order("id").Find(ctx)
}

// History returns completed sessions, newest first
func (m *Manager) History(ctx context.Context, limit, offset int) ([]models.SessionHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return gorm.G[models.SessionHistory](m.db).Order("id DESC").Limit(limit).Offset(offset).Find(ctx)
}

// ClassesForTeacher lists the classes a teacher owns
func (m *Manager) ClassesForTeacher(ctx context.Context, teacherID string) ([]models.Class, error) {
	return gorm.G[models.Class](m.db).Where("teacher_id = ?", teacherID).Order("time_start, name").Find(ctx)
}
