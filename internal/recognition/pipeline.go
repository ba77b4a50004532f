// Package recognition runs the camera to face match pipeline. Three workers
// are connected by single-slot mailboxes: acquire reads the camera, preview
// encodes the newest frame for display and infer matches faces against the
// enrolled roster. Requests only ever read the cached results.
package recognition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/camera"
	"github.com/CLDWare/attendance-kiosk/internal/embedding"
	"github.com/CLDWare/attendance-kiosk/internal/session"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

const (
	blankWidth  = 640
	blankHeight = 480
	// consecutive read failures before the camera is reopened
	reopenAfter = 30
	errorLogGap = 30 * time.Second
)

// SessionView exposes the class that is currently in session
type SessionView interface {
	ActiveClassID() string
}

type Pipeline struct {
	cfg     config.RecognitionConfig
	camCfg  config.CameraConfig
	model   embedding.Model
	dir     *Directory
	session SessionView
	roster  Roster
	now     func() time.Time

	// OpenCamera is replaced in tests
	OpenCamera func(ctx context.Context) (camera.Source, error)

	preview *Mailbox[image.Image]
	infer   *Mailbox[image.Image]

	frameMu sync.RWMutex
	frame   []byte
	frameAt time.Time

	mu          sync.RWMutex
	snap        Snapshot
	lastMatch   session.Reauth
	hasMatch    bool
	lastUnrecog time.Time
	lastErrLog  time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPipeline(cfg *config.Config, model embedding.Model, dir *Directory, sess SessionView) *Pipeline {
	rc := cfg.Recognition
	if rc.Threshold <= 0 {
		rc.Threshold = DefaultThreshold
	}
	if rc.InferWidth <= 0 || rc.InferHeight <= 0 {
		rc.InferWidth, rc.InferHeight = 320, 240
	}
	if rc.UnrecognQuiet <= 0 {
		rc.UnrecognQuiet = 5 * time.Second
	}
	camCfg := cfg.Camera

	p := &Pipeline{
		cfg:     rc,
		camCfg:  camCfg,
		model:   model,
		dir:     dir,
		session: sess,
		now:     time.Now,
		preview: NewMailbox[image.Image](),
		infer:   NewMailbox[image.Image](),
	}
	p.OpenCamera = func(ctx context.Context) (camera.Source, error) {
		return camera.Open(ctx, camCfg)
	}

	p.snap = Snapshot{
		Teacher:      TeacherResult{Status: StatusIdle},
		Student:      StudentResult{Status: StatusIdle},
		Unrecognized: Signal{Status: StatusIdle},
		Spoof:        Signal{Status: StatusIdle},
		Detection:    Detection{ModelAvailable: model.Available()},
	}
	if !model.Available() {
		p.snap.Teacher.Status = StatusModelUnavailable
		p.snap.Student.Status = StatusModelUnavailable
	}
	return p
}

// Reload replaces the roster from the local store
func (p *Pipeline) Reload(ctx context.Context) error {
	teachers, students, err := p.dir.LoadRoster(ctx)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	p.roster.Replace(teachers, students)
	logger.Info(fmt.Sprintf("Recognition: roster loaded, %d teachers and %d students", len(teachers), len(students)))
	return nil
}

// RosterSize returns the number of enrolled teachers and students
func (p *Pipeline) RosterSize() (int, int) {
	return p.roster.Size()
}

// Start launches the workers. It is a no-op when recognition is disabled.
func (p *Pipeline) Start(ctx context.Context) {
	if !p.cfg.Enabled {
		logger.Info("Recognition: disabled, workers not started")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(3)
	go func() { defer p.wg.Done(); p.acquireLoop(ctx) }()
	go func() { defer p.wg.Done(); p.previewLoop() }()
	go func() { defer p.wg.Done(); p.inferLoop(ctx) }()
}

func (p *Pipeline) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.preview.Close()
	p.infer.Close()
	p.wg.Wait()
	p.cancel = nil
}

func (p *Pipeline) acquireLoop(ctx context.Context) {
	src := p.openSource(ctx)
	defer func() { src.Close() }()

	interval := pace(p.camCfg.CaptureFPS, 15)
	failures := 0
	for ctx.Err() == nil {
		started := time.Now()

		img, err := p.readFrame(ctx, src)
		if err != nil {
			img = blankFrame()
			failures++
			if failures >= reopenAfter {
				src.Close()
				src = p.openSource(ctx)
				failures = 0
			}
		} else {
			failures = 0
		}

		p.preview.Put(img)
		p.infer.Put(img)
		sleepCtx(ctx, interval-time.Since(started))
	}
}

// openSource never returns nil; a failed or panicking opener yields
// camera.Unavailable so the loop keeps publishing blank frames.
func (p *Pipeline) openSource(ctx context.Context) (src camera.Source) {
	defer func() {
		if r := recover(); r != nil {
			logger.Err(fmt.Sprintf("Recognition: camera open panicked: %v", r))
			src = camera.Unavailable{}
		}
	}()
	src, _ = p.OpenCamera(ctx)
	if src == nil {
		return camera.Unavailable{}
	}
	return src
}

func (p *Pipeline) readFrame(ctx context.Context, src camera.Source) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Err(fmt.Sprintf("Recognition: camera read panicked: %v", r))
			img, err = nil, fmt.Errorf("camera read panicked: %v", r)
		}
	}()
	readCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	img, err = src.Read(readCtx)
	if err == nil && img == nil {
		err = camera.ErrUnavailable
	}
	return img, err
}

func (p *Pipeline) previewLoop() {
	for {
		img, ok := p.preview.Take()
		if !ok {
			return
		}
		p.encodePreview(img)
	}
}

func (p *Pipeline) encodePreview(img image.Image) {
	defer func() {
		if r := recover(); r != nil {
			logger.Err(fmt.Sprintf("Recognition: preview encode panicked: %v", r))
		}
	}()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return
	}
	p.frameMu.Lock()
	p.frame = buf.Bytes()
	p.frameAt = time.Now()
	p.frameMu.Unlock()
}

func (p *Pipeline) inferLoop(ctx context.Context) {
	interval := pace(p.cfg.InferFPS, 7.5)
	for {
		img, ok := p.infer.Take()
		if !ok {
			return
		}
		started := time.Now()
		p.safeProcess(ctx, img)
		sleepCtx(ctx, interval-time.Since(started))
	}
}

func (p *Pipeline) safeProcess(ctx context.Context, img image.Image) {
	defer func() {
		if r := recover(); r != nil {
			logger.Err(fmt.Sprintf("Recognition: inference panicked: %v", r))
		}
	}()
	p.Process(ctx, img)
}

// Process runs one inference cycle on img and updates the cached results.
// Only the first detected face is considered.
func (p *Pipeline) Process(ctx context.Context, img image.Image) {
	small := downsample(img, p.cfg.InferWidth, p.cfg.InferHeight)
	faces, err := p.model.Detect(ctx, small)
	now := p.now()

	if errors.Is(err, embedding.ErrUnavailable) {
		p.update(func(s *Snapshot) {
			s.Detection = Detection{At: now, ModelAvailable: false}
			s.Teacher = TeacherResult{Status: StatusModelUnavailable, At: now}
			s.Student = StudentResult{Status: StatusModelUnavailable, At: now}
		})
		return
	}
	if err != nil {
		p.logError(now, err)
		return
	}

	if len(faces) == 0 {
		p.update(func(s *Snapshot) {
			s.Detection = Detection{At: now, ModelAvailable: true}
			s.Teacher = TeacherResult{Status: StatusNoFace, At: now}
			s.Student = StudentResult{Status: StatusNoFace, At: now}
			s.clearUnrecognized(now)
		})
		return
	}

	face := faces[0]
	teacher, tok := p.matchTeacher(ctx, face.Embedding, now)
	student, sok := p.matchStudent(ctx, face.Embedding, now)

	detection := Detection{Faces: len(faces), At: now, ModelAvailable: true}
	switch {
	case tok:
		detection.Known = &Known{Type: "teacher", ID: teacher.ID, Name: teacher.Name, Score: teacher.Score}
	case sok:
		detection.Known = &Known{Type: "student", ID: student.ID, Name: student.Name, Score: student.Score}
	}

	p.mu.Lock()
	p.lastMatch = session.Reauth{TeacherID: teacher.ID, Matched: tok, At: now}
	p.hasMatch = true
	prev := p.snap.digest()
	p.snap.Teacher = teacher
	p.snap.Student = student
	p.snap.Detection = detection
	if !tok && !sok {
		if now.Sub(p.lastUnrecog) > p.cfg.UnrecognQuiet {
			p.lastUnrecog = now
			p.snap.Unrecognized = Signal{Status: StatusUnrecognized, At: now}
		}
	} else {
		p.snap.clearUnrecognized(now)
	}
	if face.Spoof {
		p.snap.Spoof = Signal{Status: StatusSpoof, At: now}
	} else if p.snap.Spoof.Status != StatusIdle {
		p.snap.Spoof = Signal{Status: StatusIdle, At: now}
	}
	if p.snap.digest() != prev {
		p.snap.Seq++
	}
	p.mu.Unlock()
}

func (p *Pipeline) matchTeacher(ctx context.Context, vec []float32, now time.Time) (TeacherResult, bool) {
	m, ok := p.roster.MatchTeacher(vec, p.cfg.Threshold)
	if !ok {
		return TeacherResult{Status: StatusTeacherNotRegistered, At: now}, false
	}
	res := TeacherResult{Status: StatusSuccess, ID: m.ID, Name: m.Name, Score: m.Score, Photo: m.Photo, At: now}
	res.Rooms = p.dir.RoomCandidates(ctx)
	classes, assigned, err := p.dir.TeacherClasses(ctx, m.ID, res.Rooms)
	if err != nil {
		logger.Warn(fmt.Sprintf("Recognition: class lookup for %s failed: %s", m.ID, err.Error()))
		return res, true
	}
	res.Classes = classes
	res.Assigned = assigned
	return res, true
}

func (p *Pipeline) matchStudent(ctx context.Context, vec []float32, now time.Time) (StudentResult, bool) {
	m, ok := p.roster.MatchStudent(vec, p.cfg.Threshold)
	if !ok {
		return StudentResult{Status: StatusUnknown, At: now}, false
	}
	res := StudentResult{ID: m.ID, Name: m.Name, Score: m.Score, At: now}

	classID := ""
	if p.session != nil {
		classID = p.session.ActiveClassID()
	}
	if classID == "" {
		res.Status = StatusServiceInactive
		return res, true
	}
	res.ClassID = classID

	enrolled, err := p.dir.Enrolled(ctx, classID, m.ID)
	if err != nil {
		logger.Warn(fmt.Sprintf("Recognition: enrollment lookup for %s failed: %s", m.ID, err.Error()))
		return StudentResult{Status: StatusUnknown, At: now}, true
	}
	res.Registered = &enrolled
	if !enrolled {
		res.Status = StatusDenied
		res.Reason = ReasonNotRegistered
		return res, true
	}
	res.Status = StatusSuccess
	res.Photo = m.Photo
	return res, true
}

func (p *Pipeline) update(fn func(s *Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.snap.digest()
	fn(&p.snap)
	if p.snap.digest() != prev {
		p.snap.Seq++
	}
}

func (p *Pipeline) logError(now time.Time, err error) {
	p.mu.Lock()
	log := now.Sub(p.lastErrLog) > errorLogGap
	if log {
		p.lastErrLog = now
	}
	p.mu.Unlock()
	if log {
		logger.Warn(fmt.Sprintf("Recognition: detect failed: %s", err.Error()))
	}
}

// Snapshot returns a copy of every cached result
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

func (p *Pipeline) Seq() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.Seq
}

// LatestTeacherMatch reports the last teacher decision made on a visible
// face. Frames without a face do not replace it.
func (p *Pipeline) LatestTeacherMatch() (session.Reauth, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastMatch, p.hasMatch
}

// Frame returns the newest preview JPEG
func (p *Pipeline) Frame() ([]byte, time.Time, bool) {
	p.frameMu.RLock()
	defer p.frameMu.RUnlock()
	if p.frame == nil {
		return nil, time.Time{}, false
	}
	return p.frame, p.frameAt, true
}

var (
	blankOnce sync.Once
	blankJPEG []byte
)

// BlankJPEG is served when no preview frame exists yet
func BlankJPEG() []byte {
	blankOnce.Do(func() {
		var buf bytes.Buffer
		imaging.Encode(&buf, blankFrame(), imaging.JPEG)
		blankJPEG = buf.Bytes()
	})
	return blankJPEG
}

func blankFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, blankWidth, blankHeight))
}

func downsample(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() <= w && b.Dy() <= h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func pace(fps, fallback float64) time.Duration {
	if fps <= 0 {
		fps = fallback
	}
	return time.Duration(float64(time.Second) / fps)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
