package janitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CLDWare/attendance-kiosk/config"
)

type fakeNotifications struct {
	pushes  int
	cutoffs []time.Time
	pushErr error
}

func (f *fakeNotifications) PushPending(context.Context) (int, error) {
	f.pushes++
	return 2, f.pushErr
}

func (f *fakeNotifications) Prune(_ context.Context, cutoff time.Time) (int, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 1, nil
}

type fakeOutbox struct{ cutoffs []time.Time }

func (f *fakeOutbox) PruneSynced(_ context.Context, cutoff time.Time) (int, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 3, nil
}

func newJanitor() (*Janitor, *fakeNotifications, *fakeOutbox) {
	cfg := &config.Config{Janitor: config.JanitorConfig{Retention: 30 * 24 * time.Hour}}
	n := &fakeNotifications{}
	o := &fakeOutbox{}
	jan := NewJanitor(cfg, n, o, true)
	jan.now = func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) }
	return jan, n, o
}

func TestRunShort(t *testing.T) {
	jan, n, o := newJanitor()
	jan.RunShort()
	if n.pushes != 1 {
		t.Errorf("expected one push, got %d", n.pushes)
	}
	if len(n.cutoffs) != 0 || len(o.cutoffs) != 0 {
		t.Error("expected the short pass not to prune")
	}
}

func TestRunFull(t *testing.T) {
	jan, n, o := newJanitor()
	jan.RunFull()

	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if n.pushes != 1 {
		t.Errorf("expected the full pass to include the short pass, got %d pushes", n.pushes)
	}
	if len(o.cutoffs) != 1 || !o.cutoffs[0].Equal(want) {
		t.Errorf("expected outbox cutoff %v, got %v", want, o.cutoffs)
	}
	if len(n.cutoffs) != 1 || !n.cutoffs[0].Equal(want) {
		t.Errorf("expected notification cutoff %v, got %v", want, n.cutoffs)
	}
}

func TestPushFailureIsLogged(t *testing.T) {
	jan, n, _ := newJanitor()
	n.pushErr = errors.New("offline")
	jan.RunShort()
	if n.pushes != 1 {
		t.Errorf("expected one attempt, got %d", n.pushes)
	}
}
