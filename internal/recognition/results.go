package recognition

import "time"

// Result statuses
const (
	StatusIdle                 = "idle"
	StatusSuccess              = "success"
	StatusNoFace               = "no_face"
	StatusTeacherNotRegistered = "teacher_not_registered"
	StatusServiceInactive      = "service_inactive"
	StatusDenied               = "denied"
	StatusUnknown              = "unknown"
	StatusModelUnavailable     = "model_unavailable"
	StatusUnrecognized         = "unrecognized"
	StatusSpoof                = "spoof"
)

// ReasonNotRegistered marks a known student outside the active class
const ReasonNotRegistered = "not_registered"

type TeacherResult struct {
	Status   string     `json:"status"`
	ID       string     `json:"id,omitempty"`
	Name     string     `json:"name,omitempty"`
	Score    float64    `json:"score,omitempty"`
	Photo    string     `json:"profilePicUrl,omitempty"`
	Assigned *bool      `json:"assigned,omitempty"`
	Classes  []ClassRef `json:"classes,omitempty"`
	Rooms    []string   `json:"rooms,omitempty"`
	At       time.Time  `json:"ts"`
}

type StudentResult struct {
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	ID         string    `json:"id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Score      float64   `json:"score,omitempty"`
	Photo      string    `json:"profilePicUrl,omitempty"`
	Registered *bool     `json:"registered,omitempty"`
	ClassID    string    `json:"classId,omitempty"`
	At         time.Time `json:"ts"`
}

// Signal is a short lived UI flag such as an unrecognized face
type Signal struct {
	Status string    `json:"status"`
	At     time.Time `json:"ts"`
}

// Known identifies the matched person of the last detection
type Known struct {
	Type  string  `json:"type"`
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type Detection struct {
	Faces          int       `json:"faces"`
	At             time.Time `json:"ts"`
	Known          *Known    `json:"known"`
	ModelAvailable bool      `json:"model_available"`
}

// Snapshot is every cached result at one point in time. Seq grows whenever
// any of them changes in a way a client would notice.
type Snapshot struct {
	Seq          uint64        `json:"seq"`
	Teacher      TeacherResult `json:"teacher"`
	Student      StudentResult `json:"student"`
	Unrecognized Signal        `json:"unrecognized"`
	Spoof        Signal        `json:"spoof"`
	Detection    Detection     `json:"detection"`
}

// digest holds the fields whose change bumps Seq
type digest struct {
	teacherStatus, teacherID string
	studentStatus, studentID string
	unrecognized             time.Time
	unrecognizedStatus       string
	spoof                    string
	faces                    int
	known                    string
}

func (s *Snapshot) digest() digest {
	d := digest{
		teacherStatus:      s.Teacher.Status,
		teacherID:          s.Teacher.ID,
		studentStatus:      s.Student.Status,
		studentID:          s.Student.ID,
		unrecognized:       s.Unrecognized.At,
		unrecognizedStatus: s.Unrecognized.Status,
		spoof:              s.Spoof.Status,
		faces:              s.Detection.Faces,
	}
	if s.Detection.Known != nil {
		d.known = s.Detection.Known.Type + ":" + s.Detection.Known.ID
	}
	return d
}

// clearUnrecognized drops a raised unrecognized flag, keeping an idle one as is
func (s *Snapshot) clearUnrecognized(now time.Time) {
	if s.Unrecognized.Status != StatusIdle {
		s.Unrecognized = Signal{Status: StatusIdle, At: now}
	}
}
