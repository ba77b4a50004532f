package reconcile

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/disintegration/imaging"
	"gorm.io/gorm"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/embedding"
	"github.com/CLDWare/attendance-kiosk/internal/notify"
	"github.com/CLDWare/attendance-kiosk/internal/remote"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
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

type countingModel struct {
	vec   []float32
	calls int
}

func (m *countingModel) Available() bool { return true }

func (m *countingModel) Detect(context.Context, image.Image) ([]embedding.Face, error) {
	m.calls++
	return []embedding.Face{{Embedding: m.vec}}, nil
}

type countingReloader struct{ calls int }

func (r *countingReloader) Reload(context.Context) error {
	r.calls++
	return nil
}

type recordingNotifier struct{ ids []string }

func (n *recordingNotifier) Notify(_ context.Context, in notify.Input) (bool, error) {
	if slices.Contains(n.ids, in.NotifID) {
		return false, nil
	}
	n.ids = append(n.ids, in.NotifID)
	return true, nil
}

type fixedKiosk string

func (k fixedKiosk) KioskID() string { return string(k) }

func testConfig(t *testing.T) *config.Config {
	return &config.Config{App: config.AppConfig{PhotosDir: t.TempDir()}}
}

func ids(t *testing.T, db *gorm.DB, model any) []string {
	t.Helper()
	var out []string
	if err := db.Model(model).Order("id").Pluck("id", &out).Error; err != nil {
		t.Fatal(err)
	}
	return out
}

func TestNotConfigured(t *testing.T) {
	db := newTestDB(t)
	reloader := &countingReloader{}
	e := NewEngine(db, remote.Unavailable{}, nil, testConfig(t))
	e.SetReloader(reloader)

	res, err := e.Full(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Configured {
		t.Error("expected an unconfigured result")
	}
	if reloader.calls != 0 {
		t.Error("expected no reload without a remote store")
	}
}

func TestPartial_UpsertAndDelete(t *testing.T) {
	db := newTestDB(t)
	for _, id := range []string{"A", "B", "C"} {
		db.Create(&models.Teacher{Person: models.Person{ID: id, FirstName: "old"}})
	}
	db.Create(&models.Student{Person: models.Person{ID: "D", FirstName: "Dana"}})

	store := remote.NewMemory()
	store.Put(remote.Teachers, "A", map[string]any{"firstname": "Ann"})
	store.Put(remote.Teachers, "C", map[string]any{"firstName": "Cyd"})
	store.Put(remote.Students, "D", map[string]any{"firstname": "Dana"})

	reloader := &countingReloader{}
	e := NewEngine(db, store, nil, testConfig(t))
	e.SetReloader(reloader)

	res, err := e.Partial(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(t, db, &models.Teacher{}); !slices.Equal(got, []string{"A", "C"}) {
		t.Errorf("expected teachers A and C, got %v", got)
	}
	if got := ids(t, db, &models.Student{}); !slices.Equal(got, []string{"D"}) {
		t.Errorf("expected student D untouched, got %v", got)
	}
	if res.Synced[remote.Teachers] != 2 || res.Deleted[remote.Teachers] != 1 {
		t.Errorf("unexpected counts %+v", res)
	}

	a, _ := gorm.G[models.Teacher](db).Where("id = ?", "A").First(context.Background())
	if a.FirstName != "Ann" {
		t.Errorf("expected A to be updated, got %q", a.FirstName)
	}
	if reloader.calls != 1 {
		t.Errorf("expected one reload, got %d", reloader.calls)
	}
}

func TestPartial_KeepsEmbedding(t *testing.T) {
	db := newTestDB(t)
	db.Create(&models.Teacher{Person: models.Person{
		ID:            "T1",
		Embedding:     models.EncodeEmbedding([]float32{1, 2}),
		PhotoHash:     "abc",
		ProfilePicURL: "/photos/teachers/T1",
	}})

	store := remote.NewMemory()
	store.Put(remote.Teachers, "T1", map[string]any{"firstname": "Ada", "profilePicUrl": "https://example.com/new.jpg"})

	e := NewEngine(db, store, nil, testConfig(t))
	if _, err := e.Partial(context.Background()); err != nil {
		t.Fatal(err)
	}

	got, _ := gorm.G[models.Teacher](db).Where("id = ?", "T1").First(context.Background())
	if len(models.DecodeEmbedding(got.Embedding)) != 2 || got.PhotoHash != "abc" || got.ProfilePicURL != "/photos/teachers/T1" {
		t.Errorf("expected photo columns to be preserved, got %+v", got.Person)
	}
	if got.FirstName != "Ada" {
		t.Errorf("expected name to be updated, got %q", got.FirstName)
	}
}

func TestStudentLinksAndPlaceholders(t *testing.T) {
	db := newTestDB(t)
	store := remote.NewMemory()
	store.Put(remote.Classes, "C1", map[string]any{"name": "Math"})
	store.Put(remote.Students, "S1", map[string]any{"firstname": "Sam", "classes": []any{"C1", "CX"}})
	ctx := context.Background()

	e := NewEngine(db, store, nil, testConfig(t))
	if _, err := e.Partial(ctx); err != nil {
		t.Fatal(err)
	}
	if got := ids(t, db, &models.Class{}); !slices.Equal(got, []string{"C1", "CX"}) {
		t.Fatalf("expected a placeholder for CX, got %v", got)
	}
	var links int64
	db.Model(&models.Enrollment{}).Where("student_id = ?", "S1").Count(&links)
	if links != 2 {
		t.Fatalf("expected 2 links, got %d", links)
	}

	// a referenced placeholder survives the class pass
	if _, err := e.Partial(ctx); err != nil {
		t.Fatal(err)
	}
	if got := ids(t, db, &models.Class{}); !slices.Contains(got, "CX") {
		t.Error("expected the placeholder to survive while linked")
	}

	store.Delete(remote.Students, "S1")
	if _, err := e.Partial(ctx); err != nil {
		t.Fatal(err)
	}
	db.Model(&models.Enrollment{}).Count(&links)
	if links != 0 {
		t.Errorf("expected links of the removed student to be deleted, got %d", links)
	}

	if _, err := e.Partial(ctx); err != nil {
		t.Fatal(err)
	}
	if got := ids(t, db, &models.Class{}); !slices.Equal(got, []string{"C1"}) {
		t.Errorf("expected the orphaned placeholder to be removed, got %v", got)
	}
}

func TestKiosks_OwnRowProtectedAndNotified(t *testing.T) {
	db := newTestDB(t)
	serial := "00000000abcdef01"
	db.Create(&models.Kiosk{ID: "kiosk-201", Name: "kiosk-201", SerialNumber: &serial, AssignedRoomID: "R1"})
	db.Create(&models.Kiosk{ID: "kiosk-202", Name: "kiosk-202"})

	store := remote.NewMemory()
	store.Put(remote.Kiosks, "kiosk-203", map[string]any{"name": "Lab"})

	notifier := &recordingNotifier{}
	e := NewEngine(db, store, nil, testConfig(t))
	e.SetKiosk(fixedKiosk("kiosk-201"))
	e.SetNotifier(notifier)
	ctx := context.Background()

	res, err := e.Partial(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(t, db, &models.Kiosk{}); !slices.Equal(got, []string{"kiosk-201", "kiosk-203"}) {
		t.Errorf("expected own kiosk kept and kiosk-202 removed, got %v", got)
	}
	if res.Deleted[remote.Kiosks] != 1 {
		t.Errorf("expected one deletion, got %d", res.Deleted[remote.Kiosks])
	}
	if len(notifier.ids) != 0 {
		t.Errorf("expected no notification yet, got %v", notifier.ids)
	}

	store.Put(remote.Kiosks, "kiosk-201", map[string]any{
		"name":           "kiosk-201",
		"assignedRoomId": "R2",
		"updatedAt":      "2024-06-03T08:00:00Z",
	})
	for range 2 {
		if _, err := e.Partial(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if !slices.Equal(notifier.ids, []string{"kiosk-updated-kiosk-201-2024-06-03T08:00:00Z"}) {
		t.Errorf("expected one room change notification, got %v", notifier.ids)
	}

	own, _ := gorm.G[models.Kiosk](db).Where("id = ?", "kiosk-201").First(ctx)
	if own.AssignedRoomID != "R2" {
		t.Errorf("expected the room to follow the remote, got %q", own.AssignedRoomID)
	}
	if own.SerialNumber == nil || *own.SerialNumber != serial {
		t.Error("expected a document without a serial to keep the local serial")
	}
}

func TestPerDocumentFailureIsSkipped(t *testing.T) {
	db := newTestDB(t)
	serial := "abc"
	db.Create(&models.Kiosk{ID: "kiosk-201", SerialNumber: &serial})

	store := remote.NewMemory()
	store.Put(remote.Kiosks, "kiosk-201", map[string]any{"serialNumber": "abc"})
	store.Put(remote.Kiosks, "kiosk-205", map[string]any{"serialNumber": "abc"})
	store.Put(remote.Kiosks, "kiosk-206", map[string]any{"name": "Gym"})

	e := NewEngine(db, store, nil, testConfig(t))
	res, err := e.Partial(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || res.Synced[remote.Kiosks] != 2 {
		t.Errorf("expected the duplicate serial to fail alone, got %+v", res)
	}
}

func TestListFailure(t *testing.T) {
	db := newTestDB(t)
	db.Create(&models.Teacher{Person: models.Person{ID: "A"}})

	store := remote.NewMemory()
	store.FailWith(errors.New("unavailable"))
	reloader := &countingReloader{}
	e := NewEngine(db, store, nil, testConfig(t))
	e.SetReloader(reloader)

	if _, err := e.Partial(context.Background()); err == nil {
		t.Fatal("expected an error when nothing can be listed")
	}
	if got := ids(t, db, &models.Teacher{}); !slices.Equal(got, []string{"A"}) {
		t.Errorf("expected no deletion on a listing failure, got %v", got)
	}
	if reloader.calls != 0 {
		t.Error("expected no reload after a failed pass")
	}
}

func TestNothingSynced(t *testing.T) {
	e := NewEngine(newTestDB(t), remote.NewMemory(), nil, testConfig(t))
	res, err := e.Partial(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Configured || res.Message != MessageNothingSynced {
		t.Errorf("unexpected result %+v", res)
	}
}

func photoServer(t *testing.T) (*httptest.Server, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(64, 48, color.White), imaging.JPEG); err != nil {
		t.Fatal(err)
	}
	photo := buf.Bytes()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/t1.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(photo)
	}))
	t.Cleanup(srv.Close)
	return srv, photo
}

func TestFull_PhotosAndEmbeddings(t *testing.T) {
	db := newTestDB(t)
	srv, photo := photoServer(t)
	store := remote.NewMemory()
	store.Put(remote.Teachers, "T1", map[string]any{"firstname": "Ada", "profilePicUrl": srv.URL + "/t1.jpg"})

	cfg := testConfig(t)
	cfg.App.DataDir = t.TempDir()
	cfg.Sync.BackupEnabled = true
	model := &countingModel{vec: []float32{0.1, 0.2, 0.3}}
	e := NewEngine(db, store, model, cfg)
	ctx := context.Background()

	res, err := e.Full(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Embedded != 1 || model.calls != 1 {
		t.Fatalf("expected one embedding, got %d (model calls %d)", res.Embedded, model.calls)
	}

	got, _ := gorm.G[models.Teacher](db).Where("id = ?", "T1").First(ctx)
	if vec := models.DecodeEmbedding(got.Embedding); len(vec) != 3 {
		t.Errorf("expected stored embedding, got %v", vec)
	}
	if got.PhotoHash != HashPhoto(photo) {
		t.Error("expected the photo hash to be stored")
	}
	if got.ProfilePicURL != PhotoRoute("teachers", "T1") {
		t.Errorf("expected the local route, got %q", got.ProfilePicURL)
	}
	saved, err := os.ReadFile(e.PhotoPath("teachers", "T1"))
	if err != nil || !bytes.Equal(saved, photo) {
		t.Errorf("expected the local copy to match, err %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.App.DataDir, "kiosk-backup.db.zst")); err != nil {
		t.Errorf("expected a backup before the full pass: %v", err)
	}

	// unchanged photo with an embedding is not sent to the model again
	res, err = e.Full(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Embedded != 0 || model.calls != 1 {
		t.Errorf("expected no recomputation, got %d (model calls %d)", res.Embedded, model.calls)
	}
}

type unmigratedPerson struct{ models.Person }

func (unmigratedPerson) TableName() string { return "unmigrated_people" }

func TestRefreshPhoto_StoredStateUnreadable(t *testing.T) {
	db := newTestDB(t)
	srv, _ := photoServer(t)
	model := &countingModel{vec: []float32{0.1, 0.2, 0.3}}
	e := NewEngine(db, remote.NewMemory(), model, testConfig(t))

	p := models.Person{ID: "T1", ProfilePicURL: srv.URL + "/t1.jpg"}
	if e.refreshPhoto(context.Background(), "teachers", &unmigratedPerson{}, &p) {
		t.Error("expected no embedding update when the stored state cannot be read")
	}
	if model.calls != 0 {
		t.Errorf("expected the model untouched, got %d calls", model.calls)
	}
}

func TestFull_ModelUnavailable(t *testing.T) {
	db := newTestDB(t)
	srv, _ := photoServer(t)
	store := remote.NewMemory()
	store.Put(remote.Teachers, "T1", map[string]any{"profilePicUrl": srv.URL + "/t1.jpg"})
	store.Put(remote.Teachers, "T2", map[string]any{"profilePicUrl": srv.URL + "/missing.jpg"})

	e := NewEngine(db, store, embedding.Unavailable{}, testConfig(t))
	res, err := e.Full(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Synced[remote.Teachers] != 2 || res.Embedded != 0 {
		t.Errorf("expected both teachers synced without embeddings, got %+v", res)
	}
	t1, _ := gorm.G[models.Teacher](db).Where("id = ?", "T1").First(context.Background())
	if len(t1.Embedding) != 0 || t1.ProfilePicURL != PhotoRoute("teachers", "T1") {
		t.Errorf("expected the photo cached without an embedding, got %+v", t1.Person)
	}
	t2, _ := gorm.G[models.Teacher](db).Where("id = ?", "T2").First(context.Background())
	if t2.ProfilePicURL != srv.URL+"/missing.jpg" {
		t.Errorf("expected the remote url when no copy exists, got %q", t2.ProfilePicURL)
	}
}

func TestScheduler(t *testing.T) {
	e := NewEngine(newTestDB(t), remote.NewMemory(), nil, testConfig(t))

	bad := NewScheduler(e, config.SyncConfig{FullSyncSchedule: "not a schedule"})
	if err := bad.Start(); err == nil {
		t.Error("expected an invalid schedule to be rejected")
	}

	s := NewScheduler(e, config.SyncConfig{FullSyncSchedule: "@every 1h"})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if !s.Run(ModePartial) {
		t.Error("expected an idle scheduler to run")
	}
	s.busy.Store(true)
	if s.Run(ModeFull) {
		t.Error("expected an overlapping run to be skipped")
	}
	s.busy.Store(false)
	s.Stop()
	s.Stop()
}
