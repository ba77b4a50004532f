package mapping

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/CLDWare/attendance-kiosk/internal/remote"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
)

// Alias lists, most current name first
var (
	FirstName       = []string{"firstname", "firstName", "first_name"}
	MiddleName      = []string{"middlename", "middleName", "middle_name"}
	LastName        = []string{"lastname", "lastName", "last_name"}
	SchoolEmail     = []string{"school_email", "schoolEmail", "email"}
	PersonalEmail   = []string{"personal_email", "personalEmail"}
	ContactNumber   = []string{"contactNumber", "contact_number", "phone"}
	Status          = []string{"status"}
	ProfilePic      = []string{"profilePicUrl", "profile_pic_url", "photoUrl", "photoURL"}
	CreatedAt       = []string{"createdAt", "created_at"}
	UpdatedAt       = []string{"updatedAt", "updated_at"}
	GuardianName    = []string{"guardianname", "guardianName", "guardian_name"}
	GuardianContact = []string{"guardiancontact", "guardianContact", "guardian_contact"}
	StudentClasses  = []string{"classes", "classIds", "class_ids"}

	ClassName   = []string{"name", "className", "class_name"}
	SubjectName = []string{"subjectName", "subject_name", "subject"}
	GradeLevel  = []string{"gradeLevel", "grade_level", "grade"}
	Section     = []string{"section"}
	RoomID      = []string{"roomId", "room_id"}
	RoomNumber  = []string{"roomNumber", "room_number", "room"}
	TeacherID   = []string{"teacherId", "teacher_id"}
	Days        = []string{"days", "scheduleDays", "schedule_days"}
	TimeRange   = []string{"time", "schedule"}
	TimeStart   = []string{"timeStart", "time_start", "startTime"}
	TimeEnd     = []string{"timeEnd", "time_end", "endTime"}

	RoomName         = []string{"roomname", "roomName", "name"}
	KioskID          = []string{"kioskId", "kiosk_id", "kioskid"}
	AssignedTeachers = []string{"assignedTeachers", "assigned_teachers", "teachers"}
	CurrentSession   = []string{"currentSession", "current_session"}
	IsActive         = []string{"isActive", "is_active", "active"}

	KioskName      = []string{"name", "kioskName"}
	Serial         = []string{"serialNumber", "serial_number", "serial"}
	AssignedRoom   = []string{"assignedRoomId", "assigned_room_id", "roomId"}
	IPAddress      = []string{"ipAddress", "ip_address", "ip"}
	MACAddress     = []string{"macAddress", "mac_address", "mac"}
	InstalledAt    = []string{"installedAt", "installed_at"}
	KioskRoomHints = []string{"roomNumber", "assignedRoom"}

	ClassID         = []string{"classId", "class_id"}
	Date            = []string{"date"}
	StudentsPresent = []string{"studentsPresent", "students_present"}
	StudentsAbsent  = []string{"studentsAbsent", "students_absent"}
	TimeStarted     = []string{"timeStarted", "time_started"}
	TimeEnded       = []string{"timeEnded", "time_ended"}
)

func person(doc remote.Doc) models.Person {
	d := doc.Data
	return models.Person{
		ID:              doc.ID,
		FirstName:       String(d, FirstName...),
		MiddleName:      String(d, MiddleName...),
		LastName:        String(d, LastName...),
		SchoolEmail:     String(d, SchoolEmail...),
		PersonalEmail:   String(d, PersonalEmail...),
		ContactNumber:   String(d, ContactNumber...),
		Status:          String(d, Status...),
		ProfilePicURL:   String(d, ProfilePic...),
		RawDoc:          Raw(d),
		RemoteCreatedAt: String(d, CreatedAt...),
		RemoteUpdatedAt: String(d, UpdatedAt...),
		SyncedAt:        time.Now().UTC(),
	}
}

func Teacher(doc remote.Doc) models.Teacher {
	return models.Teacher{Person: person(doc)}
}

// Student also returns the ids of the classes the student belongs to
func Student(doc remote.Doc) (models.Student, []string) {
	d := doc.Data
	s := models.Student{
		Person:          person(doc),
		GuardianName:    String(d, GuardianName...),
		GuardianContact: String(d, GuardianContact...),
	}
	return s, Strings(d, StudentClasses...)
}

func Class(doc remote.Doc) models.Class {
	d := doc.Data
	c := models.Class{
		ID:              doc.ID,
		Name:            String(d, ClassName...),
		SubjectName:     String(d, SubjectName...),
		GradeLevel:      String(d, GradeLevel...),
		Section:         String(d, Section...),
		RoomID:          String(d, RoomID...),
		RoomNumber:      String(d, RoomNumber...),
		TeacherID:       String(d, TeacherID...),
		Days:            strings.Join(Strings(d, Days...), ","),
		Time:            String(d, TimeRange...),
		TimeStart:       String(d, TimeStart...),
		TimeEnd:         String(d, TimeEnd...),
		RawDoc:          Raw(d),
		RemoteCreatedAt: String(d, CreatedAt...),
		RemoteUpdatedAt: String(d, UpdatedAt...),
	}
	if c.TimeStart == "" && c.TimeEnd == "" {
		c.TimeStart, c.TimeEnd = ParseTimeRange(c.Time)
	} else {
		c.TimeStart, c.TimeEnd = normalizeClock(c.TimeStart), normalizeClock(c.TimeEnd)
	}
	return c
}

func Room(doc remote.Doc) models.Room {
	d := doc.Data
	return models.Room{
		ID:               doc.ID,
		Name:             String(d, RoomName...),
		KioskID:          String(d, KioskID...),
		AssignedTeachers: datatypes.JSONSlice[string](Strings(d, AssignedTeachers...)),
		CurrentSession:   String(d, CurrentSession...),
		IsActive:         Bool(d, IsActive...),
		RawDoc:           Raw(d),
	}
}

func Kiosk(doc remote.Doc) models.Kiosk {
	d := doc.Data
	k := models.Kiosk{
		ID:             doc.ID,
		Name:           String(d, KioskName...),
		AssignedRoomID: String(d, AssignedRoom...),
		IPAddress:      String(d, IPAddress...),
		MACAddress:     String(d, MACAddress...),
		Status:         String(d, Status...),
		InstalledAt:    Time(d, InstalledAt...),
		UpdatedAt:      Time(d, UpdatedAt...),
		RawDoc:         Raw(d),
	}
	if serial := String(d, Serial...); serial != "" {
		k.SerialNumber = &serial
	}
	if k.Name == "" {
		k.Name = doc.ID
	}
	return k
}

// KioskDoc is the remote representation of a kiosk row
func KioskDoc(k models.Kiosk) map[string]any {
	doc := map[string]any{
		"name":           k.Name,
		"assignedRoomId": k.AssignedRoomID,
		"ipAddress":      k.IPAddress,
		"macAddress":     k.MACAddress,
		"status":         k.Status,
		"installedAt":    k.InstalledAt,
		"updatedAt":      k.UpdatedAt,
	}
	if k.SerialNumber != nil {
		doc["serialNumber"] = *k.SerialNumber
	}
	return doc
}

func RemoteSession(doc remote.Doc) models.RemoteSession {
	d := doc.Data
	return models.RemoteSession{
		ID:              doc.ID,
		ClassID:         String(d, ClassID...),
		TeacherID:       String(d, TeacherID...),
		Date:            String(d, Date...),
		IsActive:        strconv.FormatBool(Bool(d, IsActive...)),
		RoomID:          String(d, RoomID...),
		StudentsPresent: datatypes.JSONSlice[string](Strings(d, StudentsPresent...)),
		StudentsAbsent:  datatypes.JSONSlice[string](Strings(d, StudentsAbsent...)),
		TimeStarted:     String(d, TimeStarted...),
		TimeEnded:       String(d, TimeEnded...),
		RawDoc:          Raw(d),
	}
}

var clockPattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*$`)

// ParseTimeRange splits a schedule like "8:00 AM - 9:30 AM" or "13:00-14:00"
// into normalized HH:MM start and end values. Unparseable input yields "".
func ParseTimeRange(raw string) (string, string) {
	raw = strings.ReplaceAll(raw, "–", "-")
	startRaw, endRaw, ok := strings.Cut(raw, "-")
	if !ok {
		startRaw, endRaw, ok = strings.Cut(strings.ToLower(raw), " to ")
	}
	if !ok {
		return "", ""
	}
	return normalizeClock(startRaw), normalizeClock(endRaw)
}

func normalizeClock(raw string) string {
	m := clockPattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ToLower(m[3]) {
	case "am":
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour != 12 {
			hour += 12
		}
	}
	if hour > 23 || minute > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
