package mapping

import (
	"testing"
	"time"

	"github.com/CLDWare/attendance-kiosk/internal/remote"
)

func TestString_AliasOrder(t *testing.T) {
	doc := map[string]any{
		"serial":        "old",
		"serial_number": "middle",
		"serialNumber":  "",
	}
	// empty values are skipped, so the second alias wins
	if got := String(doc, Serial...); got != "middle" {
		t.Errorf("expected serial_number to win over serial, got %q", got)
	}

	doc["serialNumber"] = "current"
	if got := String(doc, Serial...); got != "current" {
		t.Errorf("expected serialNumber to win, got %q", got)
	}
}

func TestString_Numbers(t *testing.T) {
	doc := map[string]any{"roomNumber": float64(204), "grade": int64(7)}
	if got := String(doc, RoomNumber...); got != "204" {
		t.Errorf("expected 204, got %q", got)
	}
	if got := String(doc, GradeLevel...); got != "7" {
		t.Errorf("expected 7, got %q", got)
	}
}

func TestBoolAndTime(t *testing.T) {
	doc := map[string]any{
		"is_active": "True",
		"updatedAt": "2024-06-03T08:15:00Z",
	}
	if !Bool(doc, IsActive...) {
		t.Error("expected string True to read as true")
	}
	want := time.Date(2024, 6, 3, 8, 15, 0, 0, time.UTC)
	if got := Time(doc, UpdatedAt...); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if !Time(doc, InstalledAt...).IsZero() {
		t.Error("expected missing time to be zero")
	}
}

func TestStudent_Classes(t *testing.T) {
	student, classes := Student(remote.Doc{ID: "S1", Data: map[string]any{
		"firstname": "Ana",
		"lastName":  "Reyes",
		"classes":   []any{"C1", nil, " C2 "},
	}})
	if student.ID != "S1" || student.FullName() != "Ana Reyes" {
		t.Errorf("unexpected student %+v", student.Person)
	}
	if len(classes) != 2 || classes[0] != "C1" || classes[1] != "C2" {
		t.Errorf("expected [C1 C2], got %v", classes)
	}
	if len(student.RawDoc) == 0 {
		t.Error("expected raw document to be kept")
	}
}

func TestKiosk_NoSerial(t *testing.T) {
	k := Kiosk(remote.Doc{ID: "kiosk-203", Data: map[string]any{"assigned_room_id": "R-1"}})
	if k.SerialNumber != nil {
		t.Errorf("expected nil serial, got %q", *k.SerialNumber)
	}
	if k.Name != "kiosk-203" || k.AssignedRoomID != "R-1" {
		t.Errorf("unexpected kiosk %+v", k)
	}
	if _, ok := KioskDoc(k)["serialNumber"]; ok {
		t.Error("expected serialNumber to be omitted when unknown")
	}
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		raw, start, end string
	}{
		{"8:00 AM - 9:30 AM", "08:00", "09:30"},
		{"13:00-14:30", "13:00", "14:30"},
		{"11:30 am – 12:15 pm", "11:30", "12:15"},
		{"12 AM - 1 AM", "00:00", "01:00"},
		{"7 to 8", "07:00", "08:00"},
		{"whenever", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		start, end := ParseTimeRange(tt.raw)
		if start != tt.start || end != tt.end {
			t.Errorf("ParseTimeRange(%q) = %q, %q; want %q, %q", tt.raw, start, end, tt.start, tt.end)
		}
	}
}

func TestClass_ExplicitTimes(t *testing.T) {
	c := Class(remote.Doc{ID: "C1", Data: map[string]any{
		"subjectName": "Science",
		"time":        "garbage",
		"timeStart":   "1:05 PM",
		"timeEnd":     "2:00 PM",
	}})
	if c.TimeStart != "13:05" || c.TimeEnd != "14:00" {
		t.Errorf("expected 13:05-14:00, got %s-%s", c.TimeStart, c.TimeEnd)
	}
}
