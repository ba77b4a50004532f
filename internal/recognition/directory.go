package recognition

import (
	"context"
	"errors"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/CLDWare/attendance-kiosk/internal/mapping"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
)

// KioskSource names this kiosk's registry row
type KioskSource interface {
	KioskID() string
}

// ClassRef is a class as shown to a recognized teacher
type ClassRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SubjectName string `json:"subjectName"`
	GradeLevel  string `json:"gradeLevel"`
	Section     string `json:"section"`
	RoomNumber  string `json:"roomNumber"`
	TimeStart   string `json:"timeStart,omitempty"`
	TimeEnd     string `json:"timeEnd,omitempty"`
}

// Directory answers the local store lookups recognition needs
type Directory struct {
	db           *gorm.DB
	kiosk        KioskSource
	roomOverride string
}

func NewDirectory(db *gorm.DB, kiosk KioskSource, roomOverride string) *Directory {
	return &Directory{db: db, kiosk: kiosk, roomOverride: strings.TrimSpace(roomOverride)}
}

// LoadRoster reads every person with a stored embedding
func (d *Directory) LoadRoster(ctx context.Context) ([]Identity, []Identity, error) {
	teachers, err := gorm.G[models.Teacher](d.db).Where("embedding IS NOT NULL AND length(embedding) > 0").Find(ctx)
	if err != nil {
		return nil, nil, err
	}
	students, err := gorm.G[models.Student](d.db).Where("embedding IS NOT NULL AND length(embedding) > 0").Find(ctx)
	if err != nil {
		return nil, nil, err
	}

	t := make([]Identity, 0, len(teachers))
	for _, p := range teachers {
		if id, ok := identityOf(p.Person); ok {
			t = append(t, id)
		}
	}
	s := make([]Identity, 0, len(students))
	for _, p := range students {
		if id, ok := identityOf(p.Person); ok {
			s = append(s, id)
		}
	}
	return t, s, nil
}

func identityOf(p models.Person) (Identity, bool) {
	vec := models.DecodeEmbedding(p.Embedding)
	if len(vec) == 0 {
		return Identity{}, false
	}
	return Identity{ID: p.ID, Name: p.FullName(), Photo: p.ProfilePicURL, Embedding: vec}, true
}

// Enrolled reports whether a student belongs to a class
func (d *Directory) Enrolled(ctx context.Context, classID, studentID string) (bool, error) {
	_, err := gorm.G[models.Enrollment](d.db).Where("class_id = ? AND student_id = ?", classID, studentID).First(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

// RoomCandidates lists the room identifiers this kiosk may be in: its
// assigned room id and that room's name, room hints from its raw registry
// document, and the configured override.
func (d *Directory) RoomCandidates(ctx context.Context) []string {
	var out []string
	add := func(v string) {
		if v = strings.TrimSpace(v); v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}

	if d.kiosk != nil {
		if id := d.kiosk.KioskID(); id != "" {
			if k, err := gorm.G[models.Kiosk](d.db).Where("id = ?", id).First(ctx); err == nil {
				add(k.AssignedRoomID)
				if k.AssignedRoomID != "" {
					if room, err := gorm.G[models.Room](d.db).Where("id = ?", k.AssignedRoomID).First(ctx); err == nil {
						add(room.Name)
					}
				}
				for _, alias := range mapping.KioskRoomHints {
					add(mapping.RawField(k.RawDoc, alias))
				}
			}
		}
	}
	add(d.roomOverride)
	return out
}

// TeacherClasses returns the teacher's classes held in one of rooms. With no
// rooms every class is returned and assigned is nil, meaning unknown.
func (d *Directory) TeacherClasses(ctx context.Context, teacherID string, rooms []string) ([]ClassRef, *bool, error) {
	q := gorm.G[models.Class](d.db).Where("teacher_id = ?", teacherID)
	if len(rooms) > 0 {
		q = q.Where("room_number IN ? OR room_id IN ?", rooms, rooms)
	}
	classes, err := q.Order("time_start, name").Find(ctx)
	if err != nil {
		return nil, nil, err
	}

	refs := make([]ClassRef, 0, len(classes))
	for _, c := range classes {
		refs = append(refs, ClassRef{
			ID:          c.ID,
			Name:        c.Name,
			SubjectName: c.SubjectName,
			GradeLevel:  c.GradeLevel,
			Section:     c.Section,
			RoomNumber:  c.RoomNumber,
			TimeStart:   c.TimeStart,
			TimeEnd:     c.TimeEnd,
		})
	}
	if len(rooms) == 0 {
		return refs, nil, nil
	}
	assigned := len(refs) > 0
	return refs, &assigned, nil
}
