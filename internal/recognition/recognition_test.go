package recognition

import (
	"context"
	"errors"
	"image"
	"math"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/camera"
	"github.com/CLDWare/attendance-kiosk/internal/embedding"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
)

func TestMailbox_DropOldest(t *testing.T) {
	mb := NewMailbox[string]()
	if dropped := mb.Put("F1"); dropped {
		t.Error("expected nothing dropped on an empty mailbox")
	}
	if dropped := mb.Put("F2"); !dropped {
		t.Error("expected F1 to be dropped")
	}
	got, ok := mb.Take()
	if !ok || got != "F2" {
		t.Errorf("expected F2, got %q", got)
	}
}

func TestMailbox_TakeBlocksUntilPut(t *testing.T) {
	mb := NewMailbox[int]()
	done := make(chan int)
	go func() {
		v, _ := mb.Take()
		done <- v
	}()

	select {
	case <-done:
		t.Fatal("expected Take to block on an empty mailbox")
	case <-time.After(20 * time.Millisecond):
	}
	mb.Put(7)
	select {
	case v := <-done:
		if v != 7 {
			t.Errorf("expected 7, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Take did not wake up")
	}
}

func TestMailbox_Close(t *testing.T) {
	mb := NewMailbox[int]()
	done := make(chan bool)
	go func() {
		_, ok := mb.Take()
		done <- ok
	}()
	mb.Close()
	select {
	case ok := <-done:
		if ok {
			t.Error("expected closed mailbox to report false")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the reader")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"half", []float32{1, 1, 0, 0}, []float32{1, 0, 1, 0}, 0.5},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestThresholdIsStrict(t *testing.T) {
	if Accepts(0.5, DefaultThreshold) {
		t.Error("expected a score equal to the threshold to be rejected")
	}
	if !Accepts(0.50001, DefaultThreshold) {
		t.Error("expected 0.50001 to match")
	}

	// cosine of exactly 0.5 against the only candidate
	roster := []Identity{{ID: "T1", Embedding: []float32{1, 0, 1, 0}}}
	if _, ok := BestMatch([]float32{1, 1, 0, 0}, roster, DefaultThreshold); ok {
		t.Error("expected similarity 0.5 not to match")
	}
}

func TestBestMatch_PicksHighest(t *testing.T) {
	roster := []Identity{
		{ID: "far", Embedding: []float32{0.6, 0.8}},
		{ID: "near", Embedding: []float32{0.99, 0.1}},
	}
	m, ok := BestMatch([]float32{1, 0}, roster, DefaultThreshold)
	if !ok || m.ID != "near" {
		t.Errorf("expected near, got %+v %v", m, ok)
	}
	if _, ok := BestMatch([]float32{1, 0}, nil, DefaultThreshold); ok {
		t.Error("expected empty roster never to match")
	}
}

type fakeModel struct {
	faces []embedding.Face
	err   error
}

func (f *fakeModel) Available() bool { return true }

func (f *fakeModel) Detect(context.Context, image.Image) ([]embedding.Face, error) {
	return f.faces, f.err
}

type fakeSession struct{ classID string }

func (f *fakeSession) ActiveClassID() string { return f.classID }

type fixedKiosk string

func (k fixedKiosk) KioskID() string { return string(k) }

var (
	teacherVec = []float32{1, 0, 0, 0}
	s1Vec      = []float32{0, 1, 0, 0}
	s2Vec      = []float32{0, 0, 1, 0}
	strangeVec = []float32{0, 0, 0, 1}
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.OpenAt(filepath.Join(t.TempDir(), "kiosk.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { models.Close(db) })
	return db
}

func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	db.Create(&models.Teacher{Person: models.Person{ID: "T1", FirstName: "Ada", LastName: "Lovelace", Embedding: models.EncodeEmbedding(teacherVec)}})
	db.Create(&models.Student{Person: models.Person{ID: "S1", FirstName: "Sam", Embedding: models.EncodeEmbedding(s1Vec), ProfilePicURL: "/photos/students/S1.jpg"}})
	db.Create(&models.Student{Person: models.Person{ID: "S2", FirstName: "Kim", Embedding: models.EncodeEmbedding(s2Vec)}})
	db.Create(&models.Student{Person: models.Person{ID: "S3", FirstName: "NoPhoto"}})
	db.Create(&models.Class{ID: "C1", Name: "Math", TeacherID: "T1", RoomID: "R1", RoomNumber: "101"})
	db.Create(&models.Class{ID: "C2", Name: "Physics", TeacherID: "T1", RoomID: "R2", RoomNumber: "202"})
	db.Create(&models.Enrollment{ClassID: "C1", StudentID: "S1"})
}

type harness struct {
	p     *Pipeline
	db    *gorm.DB
	model *fakeModel
	sess  *fakeSession
	now   time.Time
}

func newHarness(t *testing.T, kiosk KioskSource) *harness {
	t.Helper()
	db := newTestDB(t)
	seed(t, db)
	h := &harness{db: db, model: &fakeModel{}, sess: &fakeSession{}, now: time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)}

	cfg := &config.Config{Recognition: config.RecognitionConfig{Threshold: 0.5, UnrecognQuiet: 5 * time.Second}}
	h.p = NewPipeline(cfg, h.model, NewDirectory(db, kiosk, ""), h.sess)
	h.p.now = func() time.Time { return h.now }
	if err := h.p.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	return h
}

func (h *harness) see(vec ...[]float32) Snapshot {
	h.model.faces = nil
	for _, v := range vec {
		h.model.faces = append(h.model.faces, embedding.Face{Embedding: v})
	}
	h.p.Process(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	return h.p.Snapshot()
}

func TestReload_SkipsPeopleWithoutEmbeddings(t *testing.T) {
	h := newHarness(t, nil)
	teachers, students := h.p.RosterSize()
	if teachers != 1 || students != 2 {
		t.Errorf("expected 1 teacher and 2 students, got %d and %d", teachers, students)
	}
}

func TestProcess_NoFace(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.see()
	if snap.Teacher.Status != StatusNoFace || snap.Student.Status != StatusNoFace {
		t.Errorf("expected no_face, got %s and %s", snap.Teacher.Status, snap.Student.Status)
	}
	if snap.Detection.Faces != 0 || snap.Unrecognized.Status != StatusIdle {
		t.Errorf("unexpected detection %+v", snap.Detection)
	}
}

func TestProcess_TeacherWithoutRoomInfo(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.see(teacherVec)

	if snap.Teacher.Status != StatusSuccess || snap.Teacher.ID != "T1" || snap.Teacher.Name != "Ada Lovelace" {
		t.Fatalf("unexpected teacher result %+v", snap.Teacher)
	}
	if snap.Teacher.Assigned != nil {
		t.Error("expected unknown assignment without room candidates")
	}
	if len(snap.Teacher.Classes) != 2 {
		t.Errorf("expected every class listed, got %v", snap.Teacher.Classes)
	}
	if snap.Detection.Known == nil || snap.Detection.Known.Type != "teacher" {
		t.Errorf("expected known teacher, got %+v", snap.Detection.Known)
	}

	match, ok := h.p.LatestTeacherMatch()
	if !ok || !match.Matched || match.TeacherID != "T1" || !match.At.Equal(h.now) {
		t.Errorf("unexpected latest match %+v", match)
	}
}

func TestProcess_TeacherRoomAssignment(t *testing.T) {
	tests := []struct {
		name     string
		kiosk    models.Kiosk
		assigned bool
		classes  int
	}{
		{"assigned room id", models.Kiosk{ID: "kiosk-201", AssignedRoomID: "R1"}, true, 1},
		{"raw room number", models.Kiosk{ID: "kiosk-201", RawDoc: datatypes.JSON(`{"roomNumber": 202}`)}, true, 1},
		{"elsewhere", models.Kiosk{ID: "kiosk-201", AssignedRoomID: "R9"}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, fixedKiosk("kiosk-201"))
			h.db.Create(&tt.kiosk)

			snap := h.see(teacherVec)
			if snap.Teacher.Assigned == nil || *snap.Teacher.Assigned != tt.assigned {
				t.Fatalf("expected assigned=%v, got %v", tt.assigned, snap.Teacher.Assigned)
			}
			if len(snap.Teacher.Classes) != tt.classes {
				t.Errorf("expected %d classes, got %v", tt.classes, snap.Teacher.Classes)
			}
		})
	}
}

func TestProcess_StudentBranches(t *testing.T) {
	tests := []struct {
		name     string
		class    string
		vec      []float32
		status   string
		reason   string
		hasPhoto bool
	}{
		{"no session", "", s1Vec, StatusServiceInactive, "", false},
		{"enrolled", "C1", s1Vec, StatusSuccess, "", true},
		{"other class", "C1", s2Vec, StatusDenied, ReasonNotRegistered, false},
		{"unknown face", "C1", strangeVec, StatusUnknown, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.sess.classID = tt.class
			snap := h.see(tt.vec)
			if snap.Student.Status != tt.status || snap.Student.Reason != tt.reason {
				t.Errorf("expected %s/%s, got %s/%s", tt.status, tt.reason, snap.Student.Status, snap.Student.Reason)
			}
			if (snap.Student.Photo != "") != tt.hasPhoto {
				t.Errorf("unexpected photo %q", snap.Student.Photo)
			}
		})
	}
}

func TestProcess_UnrecognizedIsRateLimited(t *testing.T) {
	h := newHarness(t, nil)

	first := h.see(strangeVec)
	if first.Unrecognized.Status != StatusUnrecognized || first.Teacher.Status != StatusTeacherNotRegistered {
		t.Fatalf("expected unrecognized signal, got %+v", first)
	}
	raisedAt := first.Unrecognized.At

	h.now = h.now.Add(2 * time.Second)
	if snap := h.see(strangeVec); !snap.Unrecognized.At.Equal(raisedAt) {
		t.Error("expected no new signal inside the quiet interval")
	}

	h.now = h.now.Add(4 * time.Second)
	if snap := h.see(strangeVec); !snap.Unrecognized.At.After(raisedAt) {
		t.Error("expected a new signal after the quiet interval")
	}

	if snap := h.see(teacherVec); snap.Unrecognized.Status != StatusIdle {
		t.Error("expected a match to clear the signal")
	}
}

func TestProcess_NoFaceKeepsTeacherMatch(t *testing.T) {
	h := newHarness(t, nil)
	h.see(teacherVec)
	h.see()
	if match, ok := h.p.LatestTeacherMatch(); !ok || !match.Matched {
		t.Error("expected an empty frame to keep the last teacher match")
	}
	h.see(strangeVec)
	if match, _ := h.p.LatestTeacherMatch(); match.Matched {
		t.Error("expected another face to replace the teacher match")
	}
}

func TestProcess_SpoofAndModelUnavailable(t *testing.T) {
	h := newHarness(t, nil)
	h.model.faces = []embedding.Face{{Embedding: s1Vec, Spoof: true}}
	h.p.Process(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if snap := h.p.Snapshot(); snap.Spoof.Status != StatusSpoof {
		t.Errorf("expected spoof signal, got %+v", snap.Spoof)
	}

	h.model.err = embedding.ErrUnavailable
	h.p.Process(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	snap := h.p.Snapshot()
	if snap.Teacher.Status != StatusModelUnavailable || snap.Detection.ModelAvailable {
		t.Errorf("expected model_unavailable, got %+v", snap)
	}

	// other model errors leave the cache untouched
	seq := h.p.Seq()
	h.model.err = errors.New("timeout")
	h.p.Process(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if h.p.Seq() != seq {
		t.Error("expected a failed detection not to change the snapshot")
	}
}

func TestSeq_OnlyChangesOnVisibleChange(t *testing.T) {
	h := newHarness(t, nil)
	h.see(teacherVec)
	seq := h.p.Seq()
	h.now = h.now.Add(time.Second)
	h.see(teacherVec)
	if h.p.Seq() != seq {
		t.Error("expected identical results not to bump the sequence")
	}
	h.see(s1Vec)
	if h.p.Seq() == seq {
		t.Error("expected a different face to bump the sequence")
	}
}

func TestDownsample(t *testing.T) {
	small := downsample(image.NewRGBA(image.Rect(0, 0, 640, 480)), 320, 240)
	if small.Bounds().Dx() != 320 || small.Bounds().Dy() != 240 {
		t.Errorf("expected 320x240, got %v", small.Bounds())
	}
	tiny := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if downsample(tiny, 320, 240) != image.Image(tiny) {
		t.Error("expected small frames to pass through")
	}
}

type panickySource struct{}

func (panickySource) Name() string { return "panicky" }

func (panickySource) Read(context.Context) (image.Image, error) { panic("driver fault") }

func (panickySource) Close() error { return nil }

func TestWorkers_SurviveBrokenCamera(t *testing.T) {
	tests := []struct {
		name string
		open func(context.Context) (camera.Source, error)
	}{
		{"nil source", func(context.Context) (camera.Source, error) { return nil, errors.New("no device") }},
		{"read panics", func(context.Context) (camera.Source, error) { return panickySource{}, nil }},
		{"open panics", func(context.Context) (camera.Source, error) { panic("probe fault") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.p.cfg.Enabled = true
			h.p.OpenCamera = tt.open

			h.p.Start(context.Background())
			defer h.p.Stop()

			deadline := time.Now().Add(2 * time.Second)
			for {
				if _, _, ok := h.p.Frame(); ok {
					return
				}
				if time.Now().After(deadline) {
					t.Fatal("expected blank preview frames despite the broken camera")
				}
				time.Sleep(10 * time.Millisecond)
			}
		})
	}
}
