package db

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Session activity is stored as text to stay compatible with documents
// mirrored from the remote store.
const (
	ActiveTrue  = "true"
	ActiveFalse = "false"
)

// Attendance entry statuses
const (
	StatusPresent = "present"
	StatusLate    = "late"
	StatusAbsent  = "absent"
)

// Outbox statuses
const (
	OutboxQueued = "queued"
	OutboxSynced = "synced"
	OutboxFailed = "failed"
)

// Notification sync statuses
const (
	NotificationPending = "pending"
	NotificationSynced  = "synced"
	NotificationFailed  = "failed"
)

// Person holds the fields shared by teachers and students. The id is the
// remote document id.
type Person struct {
	ID              string `gorm:"primaryKey"`
	FirstName       string
	MiddleName      string
	LastName        string
	SchoolEmail     string
	PersonalEmail   string
	ContactNumber   string
	Status          string
	ProfilePicURL   string
	PhotoHash       string
	Embedding       []byte
	RawDoc          datatypes.JSON
	RemoteCreatedAt string
	RemoteUpdatedAt string
	SyncedAt        time.Time
}

// FullName joins the non-empty name parts
func (p Person) FullName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.FirstName, p.MiddleName, p.LastName} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

type Teacher struct {
	Person `gorm:"embedded"`
}

type Student struct {
	Person          `gorm:"embedded"`
	GuardianName    string
	GuardianContact string
	Enrollments     []Enrollment `gorm:"foreignKey:StudentID;references:ID;constraint:OnDelete:CASCADE"`
}

type Class struct {
	ID              string `gorm:"primaryKey"`
	Name            string
	SubjectName     string
	GradeLevel      string
	Section         string
	RoomID          string
	RoomNumber      string `gorm:"index"`
	TeacherID       string `gorm:"index"`
	Days            string
	Time            string
	TimeStart       string
	TimeEnd         string
	RawDoc          datatypes.JSON
	RemoteCreatedAt string
	RemoteUpdatedAt string
	Enrollments     []Enrollment `gorm:"foreignKey:ClassID;references:ID;constraint:OnDelete:CASCADE"`
}

// Enrollment links a student to a class
type Enrollment struct {
	ClassID   string `gorm:"primaryKey"`
	StudentID string `gorm:"primaryKey;index"`
}

func (Enrollment) TableName() string { return "class_students" }

// Kiosk is a device identity. SerialNumber is nil on hardware without a
// readable serial.
type Kiosk struct {
	ID             string  `gorm:"primaryKey"`
	Name           string  `gorm:"index"`
	SerialNumber   *string `gorm:"uniqueIndex"`
	AssignedRoomID string
	IPAddress      string
	MACAddress     string
	Status         string
	InstalledAt    time.Time
	UpdatedAt      time.Time
	RawDoc         datatypes.JSON
}

type Room struct {
	ID               string `gorm:"primaryKey"`
	Name             string
	KioskID          string `gorm:"index"`
	AssignedTeachers datatypes.JSONSlice[string]
	CurrentSession   string
	IsActive         bool
	RawDoc           datatypes.JSON
}

// RemoteSession mirrors the remote attendance_sessions collection
type RemoteSession struct {
	ID              string `gorm:"primaryKey"`
	ClassID         string
	TeacherID       string
	Date            string
	IsActive        string
	RoomID          string
	StudentsPresent datatypes.JSONSlice[string]
	StudentsAbsent  datatypes.JSONSlice[string]
	TimeStarted     string
	TimeEnded       string
	RawDoc          datatypes.JSON
}

func (RemoteSession) TableName() string { return "attendance_sessions_fs" }

// AttendanceSession is a locally run class session. It is immutable once
// IsActive is cleared on stop.
type AttendanceSession struct {
	ID              uint   `gorm:"primaryKey"`
	ClassID         string `gorm:"index"`
	ClassName       string
	TeacherID       string `gorm:"index"`
	TeacherName     string
	Date            string
	IsActive        string `gorm:"default:false;index"`
	RoomID          string
	StudentsPresent datatypes.JSONSlice[string]
	StudentsAbsent  datatypes.JSONSlice[string]
	TimeStarted     time.Time
	TimeEnded       *time.Time
	RawDoc          datatypes.JSON
	Entries         []AttendanceEntry `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
}

type AttendanceEntry struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  uint   `gorm:"uniqueIndex:idx_entry_session_student"`
	StudentID  string `gorm:"uniqueIndex:idx_entry_session_student"`
	TimeLogged *time.Time
	Status     string
	CreatedAt  time.Time
}

type OutboxEntry struct {
	ID             uint `gorm:"primaryKey"`
	LocalSessionID uint `gorm:"index"`
	QueuedAt       time.Time
	Status         string `gorm:"default:queued;index"`
	Attempts       int    `gorm:"default:0"`
	LastError      string
	UpdatedAt      time.Time
}

func (OutboxEntry) TableName() string { return "attendance_sessions_outbox" }

// Notification is keyed by an application chosen NotifID; inserting a
// duplicate is a no-op.
type Notification struct {
	ID             uint   `gorm:"primaryKey"`
	NotifID        string `gorm:"uniqueIndex;not null"`
	KioskID        string
	Room           string
	Title          string
	Type           string
	Details        datatypes.JSON
	Timestamp      time.Time
	CreatedAt      time.Time
	SyncStatus     string `gorm:"default:pending;index"`
	FsID           *string
	Attempts       int `gorm:"default:0"`
	LastAttemptAt  *time.Time
	LastError      string
	LastNotifiedAt *time.Time
}

func (Notification) TableName() string { return "kiosk_notifications" }

// SessionHistory is written once per completed session and never updated
type SessionHistory struct {
	ID            uint `gorm:"primaryKey"`
	SessionID     uint `gorm:"index"`
	KioskID       string
	RoomID        string
	ClassID       string
	ClassName     string
	TeacherID     string
	TeacherName   string
	EnrolledCount int
	PresentCount  int
	LateCount     int
	AbsentCount   int
	StartedAt     time.Time
	EndedAt       time.Time
	CreatedAt     time.Time
}

func (SessionHistory) TableName() string { return "session_history" }

// AllModels lists every model in migration order
func AllModels() []any {
	return []any{
		&Teacher{},
		&Student{},
		&Class{},
		&Enrollment{},
		&Kiosk{},
		&Room{},
		&RemoteSession{},
		&AttendanceSession{},
		&AttendanceEntry{},
		&OutboxEntry{},
		&Notification{},
		&SessionHistory{},
	}
}
