package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CLDWare/attendance-kiosk/internal/mapping"
	"github.com/CLDWare/attendance-kiosk/internal/notify"
	"github.com/CLDWare/attendance-kiosk/internal/remote"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

// Columns rewritten when a remote document is upserted over an existing row.
// Photo and embedding columns are only written by a full pass.
var (
	personColumns = []string{
		"first_name", "middle_name", "last_name", "school_email", "personal_email",
		"contact_number", "status", "raw_doc", "remote_created_at", "remote_updated_at", "synced_at",
	}
	classColumns = []string{
		"name", "subject_name", "grade_level", "section", "room_id", "room_number", "teacher_id",
		"days", "time", "time_start", "time_end", "raw_doc", "remote_created_at", "remote_updated_at",
	}
	roomColumns    = []string{"name", "kiosk_id", "assigned_teachers", "current_session", "is_active", "raw_doc"}
	sessionColumns = []string{
		"class_id", "teacher_id", "date", "is_active", "room_id", "students_present",
		"students_absent", "time_started", "time_ended", "raw_doc",
	}
	kioskColumns = []string{"name", "assigned_room_id", "ip_address", "mac_address", "status", "installed_at", "updated_at", "raw_doc"}
)

func upsert(tx *gorm.DB, row any, columns []string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(row).Error
}

// collect lists a collection and upserts every document. Documents that
// fail are still marked as seen so a bad document never deletes its row.
func (e *Engine) collect(ctx context.Context, res *Result, collection string, apply func(context.Context, remote.Doc) error) (map[string]bool, error) {
	docs, err := e.remote.ListAll(ctx, collection)
	if err != nil {
		logger.Warn(fmt.Sprintf("Sync: could not list %s: %s", collection, err.Error()))
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if doc.ID == "" {
			continue
		}
		seen[doc.ID] = true
		if err := apply(ctx, doc); err != nil {
			res.Failed++
			logger.Warn(fmt.Sprintf("Sync: skipping %s/%s: %s", collection, doc.ID, err.Error()))
			continue
		}
		res.Synced[collection]++
	}
	return seen, nil
}

// prune deletes local rows whose id was not enumerated. When link names an
// enrollment column, the links of deleted rows go in the same transaction.
func (e *Engine) prune(ctx context.Context, res *Result, collection string, model any, seen map[string]bool, link string, keep ...string) error {
	var local []string
	if err := e.db.WithContext(ctx).Model(model).Pluck("id", &local).Error; err != nil {
		return fmt.Errorf("list local %s: %w", collection, err)
	}

	var stale []string
	for _, id := range local {
		if !seen[id] && !slices.Contains(keep, id) {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if link != "" {
			if err := tx.Where(link+" IN ?", stale).Delete(&models.Enrollment{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("id IN ?", stale).Delete(model).Error
	})
	if err != nil {
		return fmt.Errorf("delete stale %s: %w", collection, err)
	}
	res.Deleted[collection] += len(stale)
	logger.Info(fmt.Sprintf("Sync: removed %d %s no longer in the remote store", len(stale), collection))
	return nil
}

func personUpdate(full bool) []string {
	cols := slices.Clone(personColumns)
	if full {
		cols = append(cols, "profile_pic_url")
	}
	return cols
}

func (e *Engine) syncTeachers(full bool) pass {
	return func(ctx context.Context, res *Result) error {
		seen, err := e.collect(ctx, res, remote.Teachers, func(ctx context.Context, doc remote.Doc) error {
			t := mapping.Teacher(doc)
			cols := personUpdate(full)
			if full && e.refreshPhoto(ctx, "teachers", &models.Teacher{}, &t.Person) {
				cols = append(cols, "photo_hash", "embedding")
				res.Embedded++
			}
			return upsert(e.db.WithContext(ctx), &t, cols)
		})
		if err != nil {
			return err
		}
		return e.prune(ctx, res, remote.Teachers, &models.Teacher{}, seen, "")
	}
}

func (e *Engine) syncStudents(full bool) pass {
	return func(ctx context.Context, res *Result) error {
		seen, err := e.collect(ctx, res, remote.Students, func(ctx context.Context, doc remote.Doc) error {
			s, classIDs := mapping.Student(doc)
			cols := append(personUpdate(full), "guardian_name", "guardian_contact")
			if full && e.refreshPhoto(ctx, "students", &models.Student{}, &s.Person) {
				cols = append(cols, "photo_hash", "embedding")
				res.Embedded++
			}
			return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				if err := upsert(tx, &s, cols); err != nil {
					return err
				}
				return linkStudent(tx, s.ID, classIDs)
			})
		})
		if err != nil {
			return err
		}
		return e.prune(ctx, res, remote.Students, &models.Student{}, seen, "student_id")
	}
}

// linkStudent replaces a student's enrollment links. A class that has not
// been pulled yet gets a placeholder row without a document.
func linkStudent(tx *gorm.DB, studentID string, classIDs []string) error {
	if err := tx.Where("student_id = ?", studentID).Delete(&models.Enrollment{}).Error; err != nil {
		return fmt.Errorf("clear links: %w", err)
	}
	for _, classID := range classIDs {
		if classID == "" {
			continue
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Class{ID: classID}).Error; err != nil {
			return fmt.Errorf("placeholder class %s: %w", classID, err)
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Enrollment{ClassID: classID, StudentID: studentID}).Error; err != nil {
			return fmt.Errorf("link class %s: %w", classID, err)
		}
	}
	return nil
}

func (e *Engine) syncClasses(ctx context.Context, res *Result) error {
	seen, err := e.collect(ctx, res, remote.Classes, func(ctx context.Context, doc remote.Doc) error {
		c := mapping.Class(doc)
		return upsert(e.db.WithContext(ctx), &c, classColumns)
	})
	if err != nil {
		return err
	}

	// placeholders still referenced by a student stay until the link goes
	var placeholders []string
	err = e.db.WithContext(ctx).Model(&models.Class{}).
		Where("raw_doc IS NULL AND id IN (?)", e.db.Model(&models.Enrollment{}).Select("class_id")).
		Pluck("id", &placeholders).Error
	if err != nil {
		return fmt.Errorf("list placeholder classes: %w", err)
	}
	return e.prune(ctx, res, remote.Classes, &models.Class{}, seen, "class_id", placeholders...)
}

// syncSessions mirrors remote attendance sessions. Rows are never pruned
// because this kiosk also writes its own finished sessions here.
func (e *Engine) syncSessions(ctx context.Context, res *Result) error {
	_, err := e.collect(ctx, res, remote.AttendanceSessions, func(ctx context.Context, doc remote.Doc) error {
		s := mapping.RemoteSession(doc)
		return upsert(e.db.WithContext(ctx), &s, sessionColumns)
	})
	return err
}

func (e *Engine) syncRooms(ctx context.Context, res *Result) error {
	seen, err := e.collect(ctx, res, remote.Rooms, func(ctx context.Context, doc remote.Doc) error {
		r := mapping.Room(doc)
		return upsert(e.db.WithContext(ctx), &r, roomColumns)
	})
	if err != nil {
		return err
	}
	return e.prune(ctx, res, remote.Rooms, &models.Room{}, seen, "")
}

// syncKiosks never deletes this kiosk's own row, and raises a notification
// when the remote document changes its name, room or status.
func (e *Engine) syncKiosks(ctx context.Context, res *Result) error {
	own := e.ownKioskID()
	seen, err := e.collect(ctx, res, remote.Kiosks, func(ctx context.Context, doc remote.Doc) error {
		k := mapping.Kiosk(doc)

		var before *models.Kiosk
		if own != "" && k.ID == own {
			if prev, err := gorm.G[models.Kiosk](e.db).Where("id = ?", k.ID).First(ctx); err == nil {
				before = &prev
			}
		}

		cols := kioskColumns
		if k.SerialNumber != nil {
			cols = append(slices.Clone(kioskColumns), "serial_number")
		}
		if err := upsert(e.db.WithContext(ctx), &k, cols); err != nil {
			return err
		}
		if before != nil && kioskChanged(*before, k) {
			e.notifyKioskUpdated(ctx, *before, k, doc)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var keep []string
	if own != "" {
		keep = append(keep, own)
	}
	return e.prune(ctx, res, remote.Kiosks, &models.Kiosk{}, seen, "", keep...)
}

func kioskChanged(before, after models.Kiosk) bool {
	return before.AssignedRoomID != after.AssignedRoomID ||
		before.Name != after.Name ||
		before.Status != after.Status
}

func (e *Engine) notifyKioskUpdated(ctx context.Context, before, after models.Kiosk, doc remote.Doc) {
	if e.notifier == nil {
		return
	}
	version := mapping.String(doc.Data, mapping.UpdatedAt...)
	if version == "" {
		version = strconv.FormatInt(e.now().Unix(), 10)
	}
	_, err := e.notifier.Notify(ctx, notify.Input{
		NotifID: fmt.Sprintf("kiosk-updated-%s-%s", after.ID, version),
		Title:   "Kiosk updated",
		Type:    "kiosk_updated",
		Details: map[string]any{
			"before": map[string]any{"name": before.Name, "assignedRoomId": before.AssignedRoomID, "status": before.Status},
			"after":  map[string]any{"name": after.Name, "assignedRoomId": after.AssignedRoomID, "status": after.Status},
		},
	})
	if err != nil {
		logger.Warn(fmt.Sprintf("Sync: kiosk update notification failed: %s", err.Error()))
	}
}
