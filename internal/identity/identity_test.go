package identity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/CLDWare/attendance-kiosk/internal/remote"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
)

type fakeProbe struct {
	serial, hostname, ip, mac string
}

func (p fakeProbe) Serial() string     { return p.serial }
func (p fakeProbe) Hostname() string   { return p.hostname }
func (p fakeProbe) IPAddress() string  { return p.ip }
func (p fakeProbe) MACAddress() string { return p.mac }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.OpenAt(filepath.Join(t.TempDir(), "kiosk.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { models.Close(db) })
	return db
}

func TestNextKioskID(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		want string
	}{
		{"empty", nil, "kiosk-201"},
		{"above floor", []string{"kiosk-201", "kiosk-205", "kiosk-7"}, "kiosk-206"},
		{"below floor only", []string{"kiosk-7", "kiosk-12"}, "kiosk-201"},
		{"mixed separators and case", []string{"KIOSK_300", "kiosk299"}, "kiosk-301"},
		{"unrelated ids", []string{"lobby", "kiosk-abc", "pi-400"}, "kiosk-201"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextKioskID(tt.ids); got != tt.want {
				t.Errorf("NextKioskID(%v) = %s, want %s", tt.ids, got, tt.want)
			}
		})
	}
}

func TestResolve_LocalSerial(t *testing.T) {
	db := newTestDB(t)
	serial := "10000000abcd"
	db.Create(&models.Kiosk{ID: "kiosk-210", Name: "hall", SerialNumber: &serial})

	r := NewResolver(db, remote.Unavailable{}, fakeProbe{serial: serial, hostname: "other"})
	kiosk, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if kiosk.ID != "kiosk-210" {
		t.Errorf("expected kiosk-210, got %s", kiosk.ID)
	}
	if r.KioskID() != "kiosk-210" {
		t.Errorf("expected resolver to remember kiosk-210, got %q", r.KioskID())
	}
}

func TestResolve_Hostname(t *testing.T) {
	db := newTestDB(t)
	db.Create(&models.Kiosk{ID: "kiosk-220", Name: "library-pi"})

	r := NewResolver(db, remote.Unavailable{}, fakeProbe{hostname: "library-pi"})
	kiosk, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if kiosk.ID != "kiosk-220" {
		t.Errorf("expected hostname to match by name, got %s", kiosk.ID)
	}
}

func TestResolve_RemoteSerial(t *testing.T) {
	db := newTestDB(t)
	store := remote.NewMemory()
	store.Put(remote.Kiosks, "kiosk-230", map[string]any{
		"name":           "gym",
		"serialNumber":   "cafe01",
		"assignedRoomId": "R-9",
	})

	r := NewResolver(db, store, fakeProbe{serial: "cafe01", hostname: "raspberrypi"})
	kiosk, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if kiosk.ID != "kiosk-230" || kiosk.AssignedRoomID != "R-9" {
		t.Errorf("expected adopted remote kiosk, got %+v", kiosk)
	}

	var stored models.Kiosk
	if err := db.First(&stored, "id = ?", "kiosk-230").Error; err != nil {
		t.Fatalf("expected remote kiosk stored locally: %v", err)
	}
}

func TestResolve_Allocates(t *testing.T) {
	db := newTestDB(t)
	db.Create(&models.Kiosk{ID: "kiosk-204", Name: "kiosk-204"})
	store := remote.NewMemory()
	store.Put(remote.Kiosks, "kiosk-207", map[string]any{"name": "kiosk-207"})

	r := NewResolver(db, store, fakeProbe{serial: "beef02", hostname: "new-pi", ip: "10.0.0.5", mac: "aa:bb"})
	kiosk, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if kiosk.ID != "kiosk-208" {
		t.Errorf("expected allocation over local and remote ids, got %s", kiosk.ID)
	}
	if kiosk.Name != "new-pi" || kiosk.Status != StatusOnline || kiosk.IPAddress != "10.0.0.5" {
		t.Errorf("unexpected new kiosk %+v", kiosk)
	}
	doc, ok := store.Get(remote.Kiosks, "kiosk-208")
	if !ok || doc["serialNumber"] != "beef02" {
		t.Errorf("expected remote document with serial, got %v", doc)
	}

	// a second resolve finds the row by serial instead of allocating again
	again, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != "kiosk-208" {
		t.Errorf("expected stable id, got %s", again.ID)
	}
}

func TestResolve_RemoteFailureStillCreatesLocally(t *testing.T) {
	db := newTestDB(t)
	store := remote.NewMemory()
	store.FailWith(errors.New("offline"))

	r := NewResolver(db, store, fakeProbe{})
	kiosk, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if kiosk.ID != "kiosk-201" || kiosk.Name != "kiosk-201" {
		t.Errorf("expected kiosk-201 named after its id, got %+v", kiosk)
	}
	if kiosk.SerialNumber != nil {
		t.Error("expected nil serial when hardware has none")
	}
}

func TestUpdateNetworkInfo(t *testing.T) {
	db := newTestDB(t)
	store := remote.NewMemory()
	probe := &fakeProbe{hostname: "hall-pi", ip: "10.0.0.1", mac: "aa"}

	r := NewResolver(db, store, probe)
	if _, err := r.Resolve(context.Background()); err != nil {
		t.Fatal(err)
	}

	probe.ip, probe.mac = "10.0.0.2", "bb"
	kiosk, err := r.UpdateNetworkInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if kiosk.IPAddress != "10.0.0.2" || kiosk.MACAddress != "bb" {
		t.Errorf("expected refreshed network info, got %+v", kiosk)
	}

	var stored models.Kiosk
	db.First(&stored, "id = ?", kiosk.ID)
	if stored.IPAddress != "10.0.0.2" {
		t.Errorf("expected stored ip 10.0.0.2, got %s", stored.IPAddress)
	}
	doc, _ := store.Get(remote.Kiosks, kiosk.ID)
	if doc["ipAddress"] != "10.0.0.2" || doc["name"] != "hall-pi" {
		t.Errorf("expected merged remote patch, got %v", doc)
	}
}
