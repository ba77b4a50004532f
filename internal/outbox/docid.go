package outbox

import (
	"strings"
	"time"
	"unicode"

	models "github.com/CLDWare/attendance-kiosk/pkg/db"
)

// maxStemLength caps the class part of a document id, in runes
const maxStemLength = 120

// clock dates documents of sessions stored without a date
var clock = time.Now

// ClassMeta is the class information a document id is derived from
type ClassMeta struct {
	ClassID string
	Subject string
	Section string
	Grade   string
}

// MetaOf reads the document id inputs from a class row
func MetaOf(c models.Class) ClassMeta {
	return ClassMeta{
		ClassID: c.ID,
		Subject: c.SubjectName,
		Section: c.Section,
		Grade:   c.GradeLevel,
	}
}

// DocID derives the remote document id of a class session. Redelivering the
// same session yields the same id, so remote writes overwrite instead of
// duplicating.
func DocID(meta ClassMeta, date string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{meta.Subject, meta.Section, meta.Grade} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	stem := sanitize(strings.Join(parts, "_"))
	if stem == "" {
		stem = sanitize(meta.ClassID)
	}
	if runes := []rune(stem); len(runes) > maxStemLength {
		stem = strings.TrimRight(string(runes[:maxStemLength]), "_")
	}

	day, _, _ := strings.Cut(strings.TrimSpace(date), "T")
	if day == "" {
		day = Today(clock())
	}
	if stem == "" {
		return day
	}
	return stem + "_" + day
}

// Today is the session date format used for new sessions
func Today(now time.Time) string {
	return now.Format("2006-01-02")
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case unicode.IsLetter(r), unicode.IsNumber(r), r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}
