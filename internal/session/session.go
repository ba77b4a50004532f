// Package session owns the classroom session state: who is teaching which
// class right now, which students have been marked, and the reauthentication
// gate that guards ending a session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/outbox"
	"github.com/CLDWare/attendance-kiosk/internal/remote"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

var (
	ErrNoActiveSession        = errors.New("no_active_session")
	ErrNoActiveRow            = errors.New("no_active_attendance_row")
	ErrReauthRequired         = errors.New("teacher_reauthentication_required")
	ErrRecognitionUnavailable = errors.New("recognition_unavailable")
)

// WarnNoActiveRow is reported when a stop finds memory state without a row
const WarnNoActiveRow = "no_active_row_found"

const (
	mirrorTimeout   = 15 * time.Second
	mirrorQueueSize = 64
)

// Reauth is the latest teacher recognition as seen by the stop gate
type Reauth struct {
	TeacherID string
	Matched   bool
	At        time.Time
}

// TeacherMatcher reports the most recent teacher recognition result
type TeacherMatcher interface {
	LatestTeacherMatch() (Reauth, bool)
}

// KioskSource names the kiosk sessions are recorded on
type KioskSource interface {
	KioskID() string
}

// StartRequest is the body of a session start
type StartRequest struct {
	TeacherID   string `json:"teacher_id" validate:"required"`
	TeacherName string `json:"teacher_name"`
	ClassID     string `json:"class_id" validate:"required"`
	ClassName   string `json:"class_name"`
	RoomID      string `json:"room_id"`
}

// State is a copy of the in-memory session fields
type State struct {
	SessionID   uint      `json:"session_id"`
	TeacherID   string    `json:"teacher_id"`
	TeacherName string    `json:"teacher_name"`
	ClassID     string    `json:"class_id"`
	ClassName   string    `json:"class_name"`
	RoomID      string    `json:"room_id"`
	Date        string    `json:"date"`
	StartedAt   time.Time `json:"started_at"`
	Present     []string  `json:"present"`
}

type MarkResult struct {
	SessionID     uint      `json:"session_id"`
	StudentID     string    `json:"student_id"`
	Status        string    `json:"status"`
	AlreadyMarked bool      `json:"already_marked"`
	LoggedAt      time.Time `json:"logged_at"`
}

type StopResult struct {
	SessionID uint     `json:"session_id,omitempty"`
	Present   []string `json:"present"`
	Absent    []string `json:"absent"`
	OutboxID  uint     `json:"outbox_id,omitempty"`
	Warning   string   `json:"warning,omitempty"`
}

type Manager struct {
	db       *gorm.DB
	remote   remote.Store
	cfg      config.SessionConfig
	validate *validator.Validate
	now      func() time.Time

	mu      sync.Mutex
	current *State
	matcher TeacherMatcher
	kiosk   KioskSource

	mirrors     sync.WaitGroup
	mirrorQueue chan func()
	mirrorOnce  sync.Once
}

func NewManager(db *gorm.DB, store remote.Store, cfg config.SessionConfig) *Manager {
	if cfg.LateAfter <= 0 {
		cfg.LateAfter = 30 * time.Minute
	}
	if cfg.ReauthMaxAge <= 0 {
		cfg.ReauthMaxAge = time.Minute
	}
	return &Manager{
		db:       db,
		remote:   store,
		cfg:      cfg,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetMatcher connects the recognizer used by the stop gate. The pipeline is
// built after the manager, so this is not a constructor argument.
func (m *Manager) SetMatcher(matcher TeacherMatcher) {
	m.mu.Lock()
	m.matcher = matcher
	m.mu.Unlock()
}

func (m *Manager) SetKiosk(kiosk KioskSource) {
	m.mu.Lock()
	m.kiosk = kiosk
	m.mu.Unlock()
}

// Current returns a copy of the active session
func (m *Manager) Current() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return State{}, false
	}
	s := *m.current
	s.Present = slices.Clone(m.current.Present)
	return s, true
}

// ActiveClassID is "" while idle
func (m *Manager) ActiveClassID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.ClassID
}

// Restore reloads the newest active row after a restart
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	rows, err := gorm.G[models.AttendanceSession](m.db).
		Where("is_active = ?", models.ActiveTrue).Order("id DESC").Limit(1).Find(ctx)
	if err != nil {
		return false, fmt.Errorf("load active session: %w", err)
	}
	if len(rows) == 0 {
		return false, nil
	}
	row := rows[0]

	m.mu.Lock()
	m.current = stateOf(row)
	m.mu.Unlock()
	logger.Info(fmt.Sprintf("Session: restored active session %d for class %s", row.ID, row.ClassID))
	return true, nil
}

func stateOf(row models.AttendanceSession) *State {
	return &State{
		SessionID:   row.ID,
		TeacherID:   row.TeacherID,
		TeacherName: row.TeacherName,
		ClassID:     row.ClassID,
		ClassName:   row.ClassName,
		RoomID:      row.RoomID,
		Date:        row.Date,
		StartedAt:   row.TimeStarted,
		Present:     slices.Clone([]string(row.StudentsPresent)),
	}
}

// Start begins a session. An earlier active row for the same teacher and
// class is closed without being queued. A session for another teacher or
// class still held in memory is finalized the way Stop would, so its marks
// are published.
func (m *Manager) Start(ctx context.Context, req StartRequest) (State, error) {
	if err := m.validate.Struct(req); err != nil {
		return State{}, err
	}

	class, classErr := gorm.G[models.Class](m.db).Where("id = ?", req.ClassID).First(ctx)
	if classErr == nil {
		if req.ClassName == "" {
			req.ClassName = class.Name
		}
		if req.RoomID == "" {
			req.RoomID = class.RoomID
		}
	}
	if req.TeacherName == "" {
		if teacher, err := gorm.G[models.Teacher](m.db).Where("id = ?", req.TeacherID).First(ctx); err == nil {
			req.TeacherName = teacher.FullName()
		}
	}

	raw, _ := json.Marshal(req)
	now := m.now()
	row := models.AttendanceSession{
		ClassID:         req.ClassID,
		ClassName:       req.ClassName,
		TeacherID:       req.TeacherID,
		TeacherName:     req.TeacherName,
		Date:            outbox.Today(now),
		IsActive:        models.ActiveTrue,
		RoomID:          req.RoomID,
		StudentsPresent: datatypes.JSONSlice[string]{},
		StudentsAbsent:  datatypes.JSONSlice[string]{},
		TimeStarted:     now,
		RawDoc:          datatypes.JSON(raw),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cur := m.current; cur != nil && (cur.TeacherID != req.TeacherID || cur.ClassID != req.ClassID) {
		if _, err := m.finalizeCurrent(ctx); err != nil {
			logger.Err(fmt.Sprintf("Session: superseded session %d not finalized: %s", cur.SessionID, err.Error()))
			return State{}, err
		}
		logger.Info(fmt.Sprintf("Session: finalized %d, superseded by teacher %s class %s", cur.SessionID, req.TeacherID, req.ClassID))
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&models.AttendanceSession{}).
			Where("is_active = ? AND teacher_id = ? AND class_id = ?", models.ActiveTrue, req.TeacherID, req.ClassID)
		if err := stale.Updates(map[string]any{"is_active": models.ActiveFalse, "time_ended": now}).Error; err != nil {
			return fmt.Errorf("close stale sessions: %w", err)
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Err(fmt.Sprintf("Session: start failed: %s", err.Error()))
		return State{}, err
	}

	m.current = stateOf(row)
	logger.Info(fmt.Sprintf("Session: started %d, teacher %s class %s", row.ID, row.TeacherID, row.ClassID))

	docID := outbox.DocID(metaFor(class, classErr, row.ClassID), row.Date)
	m.mirror("start", func(ctx context.Context) error {
		return m.remote.Set(ctx, remote.AttendanceSessions, docID, outbox.SessionDoc(row))
	})
	return *stateOf(row), nil
}

func metaFor(class models.Class, err error, classID string) outbox.ClassMeta {
	if err != nil {
		return outbox.ClassMeta{ClassID: classID}
	}
	return outbox.MetaOf(class)
}

// Mark records a student as present or late. Marking twice is a no-op.
func (m *Manager) Mark(ctx context.Context, studentID string) (MarkResult, error) {
	if err := m.validate.Var(studentID, "required"); err != nil {
		return MarkResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return MarkResult{}, ErrNoActiveSession
	}
	row, err := gorm.G[models.AttendanceSession](m.db).
		Where("id = ? AND is_active = ?", m.current.SessionID, models.ActiveTrue).First(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return MarkResult{}, ErrNoActiveRow
	}
	if err != nil {
		return MarkResult{}, fmt.Errorf("load session: %w", err)
	}

	result := MarkResult{SessionID: row.ID, StudentID: studentID}
	if slices.Contains(row.StudentsPresent, studentID) {
		result.AlreadyMarked = true
		if entry, err := gorm.G[models.AttendanceEntry](m.db).
			Where("session_id = ? AND student_id = ?", row.ID, studentID).First(ctx); err == nil {
			result.Status = entry.Status
			if entry.TimeLogged != nil {
				result.LoggedAt = *entry.TimeLogged
			}
		}
		return result, nil
	}

	now := m.now()
	result.Status = m.classify(now.Sub(row.TimeStarted))
	result.LoggedAt = now
	present := append(slices.Clone([]string(row.StudentsPresent)), studentID)

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.AttendanceSession{}).Where("id = ?", row.ID).
			Update("students_present", datatypes.JSONSlice[string](present)).Error
		if err != nil {
			return fmt.Errorf("update present list: %w", err)
		}
		return upsertEntry(tx, row.ID, studentID, &now, result.Status)
	})
	if err != nil {
		logger.Err(fmt.Sprintf("Session: mark of %s failed: %s", studentID, err.Error()))
		return MarkResult{}, err
	}
	m.current.Present = present

	docID := m.docID(ctx, row)
	m.mirror("mark", func(ctx context.Context) error {
		if err := m.remote.Update(ctx, remote.AttendanceSessions, docID, map[string]any{"studentsPresent": present}); err != nil {
			return err
		}
		return m.remote.Set(ctx, outbox.StudentCollection(studentID), docID, map[string]any{
			"classId":    row.ClassID,
			"teacherId":  row.TeacherID,
			"roomId":     row.RoomID,
			"date":       row.Date,
			"timeLogged": now,
			"status":     result.Status,
		})
	})
	return result, nil
}

// classify uses a single cutoff so every mark gets a status
func (m *Manager) classify(elapsed time.Duration) string {
	if elapsed < m.cfg.LateAfter {
		return models.StatusPresent
	}
	return models.StatusLate
}

func upsertEntry(tx *gorm.DB, sessionID uint, studentID string, logged *time.Time, status string) error {
	entry := models.AttendanceEntry{
		SessionID:  sessionID,
		StudentID:  studentID,
		TimeLogged: logged,
		Status:     status,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"time_logged", "status"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("upsert entry for %s: %w", studentID, err)
	}
	return nil
}

// checkReauth requires a recent successful match of the session's teacher
func (m *Manager) checkReauth(teacherID string) error {
	if m.matcher == nil {
		return ErrRecognitionUnavailable
	}
	match, ok := m.matcher.LatestTeacherMatch()
	if !ok || !match.Matched || match.TeacherID != teacherID {
		return ErrReauthRequired
	}
	if m.now().Sub(match.At) > m.cfg.ReauthMaxAge {
		return ErrReauthRequired
	}
	return nil
}

// Stop finalizes the active session after the teacher has been recognized
// again. Absent students get entries with no logged time and the session is
// queued for publishing.
func (m *Manager) Stop(ctx context.Context) (StopResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return StopResult{}, ErrNoActiveSession
	}
	if err := m.checkReauth(m.current.TeacherID); err != nil {
		return StopResult{}, err
	}
	return m.finalizeCurrent(ctx)
}

// finalizeCurrent turns the in-memory session into history and returns to
// idle. The caller holds m.mu.
func (m *Manager) finalizeCurrent(ctx context.Context) (StopResult, error) {
	row, err := gorm.G[models.AttendanceSession](m.db).
		Where("id = ? AND is_active = ?", m.current.SessionID, models.ActiveTrue).First(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Warn(fmt.Sprintf("Session: stop found no active row for session %d", m.current.SessionID))
		result := StopResult{Present: m.current.Present, Absent: []string{}, Warning: WarnNoActiveRow}
		m.current = nil
		return result, nil
	}
	if err != nil {
		return StopResult{}, fmt.Errorf("load session: %w", err)
	}

	var enrolled []string
	err = m.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("class_id = ?", row.ClassID).Order("student_id").Pluck("student_id", &enrolled).Error
	if err != nil {
		return StopResult{}, fmt.Errorf("load enrollment: %w", err)
	}
	present := []string(row.StudentsPresent)
	absent := make([]string, 0, len(enrolled))
	for _, sid := range enrolled {
		if !slices.Contains(present, sid) {
			absent = append(absent, sid)
		}
	}

	ended := m.now()
	var queued *models.OutboxEntry
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.AttendanceSession{}).Where("id = ?", row.ID).Updates(map[string]any{
			"students_absent": datatypes.JSONSlice[string](absent),
			"is_active":       models.ActiveFalse,
			"time_ended":      ended,
		}).Error
		if err != nil {
			return fmt.Errorf("finalize session: %w", err)
		}
		for _, sid := range absent {
			if err := upsertEntry(tx, row.ID, sid, nil, models.StatusAbsent); err != nil {
				return err
			}
		}
		queued, err = outbox.Enqueue(ctx, tx, row.ID)
		return err
	})
	if err != nil {
		logger.Err(fmt.Sprintf("Session: stop of %d failed: %s", row.ID, err.Error()))
		return StopResult{}, err
	}

	row.StudentsAbsent = absent
	row.IsActive = models.ActiveFalse
	row.TimeEnded = &ended

	m.writeHistory(ctx, row, len(enrolled))
	docID := m.docID(ctx, row)
	m.writeMirrorRow(ctx, docID, row)
	m.mirror("stop", func(ctx context.Context) error {
		return m.remote.Set(ctx, remote.AttendanceSessions, docID, outbox.SessionDoc(row))
	})

	m.current = nil
	logger.Info(fmt.Sprintf("Session: stopped %d, %d present, %d absent", row.ID, len(present), len(absent)))
	return StopResult{
		SessionID: row.ID,
		Present:   present,
		Absent:    absent,
		OutboxID:  queued.ID,
	}, nil
}

func (m *Manager) writeHistory(ctx context.Context, row models.AttendanceSession, enrolled int) {
	var counts []struct {
		Status string
		Count  int
	}
	err := m.db.WithContext(ctx).Model(&models.AttendanceEntry{}).
		Select("status, COUNT(*) AS count").Where("session_id = ?", row.ID).Group("status").Scan(&counts).Error
	if err != nil {
		logger.Warn(fmt.Sprintf("Session: history counts for %d failed: %s", row.ID, err.Error()))
	}

	h := models.SessionHistory{
		SessionID:     row.ID,
		RoomID:        row.RoomID,
		ClassID:       row.ClassID,
		ClassName:     row.ClassName,
		TeacherID:     row.TeacherID,
		TeacherName:   row.TeacherName,
		EnrolledCount: enrolled,
		StartedAt:     row.TimeStarted,
		EndedAt:       *row.TimeEnded,
	}
	if m.kiosk != nil {
		h.KioskID = m.kiosk.KioskID()
	}
	for _, c := range counts {
		switch c.Status {
		case models.StatusPresent:
			h.PresentCount = c.Count
		case models.StatusLate:
			h.LateCount = c.Count
		case models.StatusAbsent:
			h.AbsentCount = c.Count
		}
	}
	if err := gorm.G[models.SessionHistory](m.db).Create(ctx, &h); err != nil {
		logger.Warn(fmt.Sprintf("Session: history for %d not written: %s", row.ID, err.Error()))
	}
}

// writeMirrorRow keeps the local copy of the remote sessions collection in
// step without waiting for the next reconciliation.
func (m *Manager) writeMirrorRow(ctx context.Context, docID string, row models.AttendanceSession) {
	mirror := models.RemoteSession{
		ID:              docID,
		ClassID:         row.ClassID,
		TeacherID:       row.TeacherID,
		Date:            row.Date,
		IsActive:        row.IsActive,
		RoomID:          row.RoomID,
		StudentsPresent: row.StudentsPresent,
		StudentsAbsent:  row.StudentsAbsent,
		TimeStarted:     row.TimeStarted.Format(time.RFC3339),
		RawDoc:          row.RawDoc,
	}
	if row.TimeEnded != nil {
		mirror.TimeEnded = row.TimeEnded.Format(time.RFC3339)
	}
	if err := m.db.WithContext(ctx).Save(&mirror).Error; err != nil {
		logger.Warn(fmt.Sprintf("Session: mirror row %s not written: %s", docID, err.Error()))
	}
}

func (m *Manager) docID(ctx context.Context, row models.AttendanceSession) string {
	class, err := gorm.G[models.Class](m.db).Where("id = ?", row.ClassID).First(ctx)
	return outbox.DocID(metaFor(class, err, row.ClassID), row.Date)
}

// mirror queues a remote write. One worker applies them in order so a
// later write of the same document never lands first. Failures are logged
// only; the outbox is the durable path.
func (m *Manager) mirror(op string, fn func(ctx context.Context) error) {
	if !m.remote.Configured() {
		return
	}
	m.mirrorOnce.Do(func() {
		m.mirrorQueue = make(chan func(), mirrorQueueSize)
		go func() {
			for task := range m.mirrorQueue {
				task()
			}
		}()
	})

	m.mirrors.Add(1)
	task := func() {
		defer m.mirrors.Done()
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Warn(fmt.Sprintf("Session: remote mirror of %s failed: %s", op, err.Error()))
		}
	}
	select {
	case m.mirrorQueue <- task:
	default:
		m.mirrors.Done()
		logger.Warn(fmt.Sprintf("Session: mirror queue full, dropped %s", op))
	}
}

// Wait blocks until background remote mirrors have finished
func (m *Manager) Wait() {
	m.mirrors.Wait()
}
