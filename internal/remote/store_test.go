package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestChunk(t *testing.T) {
	writes := make([]Write, 901)
	for i := range writes {
		writes[i] = Write{Collection: "c", ID: fmt.Sprint(i)}
	}

	chunks := Chunk(writes, 400)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 400 || len(chunks[1]) != 400 || len(chunks[2]) != 101 {
		t.Errorf("unexpected chunk sizes %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}

	// sizes above the remote limit are clamped
	if got := Chunk(writes, 1000); len(got[0]) != MaxBatch {
		t.Errorf("expected clamp to %d, got %d", MaxBatch, len(got[0]))
	}
	if Chunk(nil, 400) != nil {
		t.Error("expected no chunks for no writes")
	}
}

func TestUnavailable(t *testing.T) {
	var store Store = Unavailable{Reason: "no credentials"}
	ctx := context.Background()

	if store.Configured() {
		t.Error("expected unavailable store to report unconfigured")
	}
	if _, err := store.ListAll(ctx, Teachers); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if err := store.BatchSet(ctx, []Write{{Collection: "c", ID: "1"}}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("expected close to succeed, got %v", err)
	}
}

func TestMemory_UpdateMerges(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Put(Kiosks, "kiosk-201", map[string]any{"name": "kiosk-201", "status": "online"})
	if err := m.Update(ctx, Kiosks, "kiosk-201", map[string]any{"ipAddress": "10.0.0.5"}); err != nil {
		t.Fatal(err)
	}
	doc, _ := m.Get(Kiosks, "kiosk-201")
	if doc["status"] != "online" || doc["ipAddress"] != "10.0.0.5" {
		t.Errorf("expected merged document, got %v", doc)
	}

	found, err := m.GetByField(ctx, Kiosks, "ipAddress", "10.0.0.5")
	if err != nil || len(found) != 1 || found[0].ID != "kiosk-201" {
		t.Errorf("expected lookup by field to find kiosk-201, got %v %v", found, err)
	}
}

func TestMemory_BatchLimitAndFailure(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.BatchSet(ctx, make([]Write, MaxBatch+1)); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("expected ErrBatchTooLarge, got %v", err)
	}

	boom := errors.New("deadline exceeded")
	m.FailWith(boom)
	if err := m.Set(ctx, "c", "1", map[string]any{}); !errors.Is(err, boom) {
		t.Errorf("expected injected failure, got %v", err)
	}
	m.FailWith(nil)
	if err := m.BatchSet(ctx, []Write{{Collection: "c", ID: "1", Data: map[string]any{"a": 1}}}); err != nil {
		t.Fatal(err)
	}
	if m.Batches() != 1 {
		t.Errorf("expected 1 committed batch, got %d", m.Batches())
	}
}
