package remote

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

// Firestore is the production Store
type Firestore struct {
	client *firestore.Client
}

// New returns a Firestore store when credentials are configured and the
// client can be created, and an Unavailable store otherwise. It never fails.
func New(ctx context.Context, cfg *config.Config) Store {
	if !cfg.RemoteConfigured() {
		return Unavailable{Reason: "service account not configured"}
	}
	store, err := NewFirestore(ctx, cfg.Remote)
	if err != nil {
		logger.Warn(fmt.Sprintf("Remote: firestore unavailable: %s", err.Error()))
		return Unavailable{Reason: err.Error()}
	}
	return store
}

// NewFirestore connects with the configured service account file
func NewFirestore(ctx context.Context, cfg config.RemoteConfig) (*Firestore, error) {
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Firestore{client: client}, nil
}

func (f *Firestore) Configured() bool { return true }

func (f *Firestore) ListAll(ctx context.Context, collection string) ([]Doc, error) {
	return collect(f.client.Collection(collection).Documents(ctx))
}

func (f *Firestore) GetByField(ctx context.Context, collection, field string, value any) ([]Doc, error) {
	return collect(f.client.Collection(collection).Where(field, "==", value).Documents(ctx))
}

func (f *Firestore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	_, err := f.client.Collection(collection).Doc(id).Set(ctx, data)
	return err
}

func (f *Firestore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := f.client.Collection(collection).Doc(id).Set(ctx, fields, firestore.MergeAll)
	return err
}

func (f *Firestore) BatchSet(ctx context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}
	if len(writes) > MaxBatch {
		return ErrBatchTooLarge
	}
	batch := f.client.Batch()
	for _, w := range writes {
		batch.Set(f.client.Collection(w.Collection).Doc(w.ID), w.Data)
	}
	_, err := batch.Commit(ctx)
	return err
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func collect(iter *firestore.DocumentIterator) ([]Doc, error) {
	defer iter.Stop()

	var docs []Doc
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, Doc{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}
