package reconcile

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/zeebo/blake3"

	"github.com/CLDWare/attendance-kiosk/internal/embedding"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

const (
	maxPhotoBytes = 10 << 20
	embedWidth    = 320
	embedHeight   = 240
)

// PhotoRoute is the URL the kiosk serves a cached profile photo under
func PhotoRoute(role, id string) string {
	return "/photos/" + role + "/" + id
}

// HashPhoto returns the hex blake3 digest of a photo
func HashPhoto(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// refreshPhoto downloads a person's profile photo, keeps a local copy and
// computes a new embedding when the photo changed. It reports whether
// PhotoHash and Embedding were replaced. ProfilePicURL is pointed at the
// local copy whenever one exists.
func (e *Engine) refreshPhoto(ctx context.Context, role string, model any, p *models.Person) bool {
	local := e.PhotoPath(role, p.ID)
	defer func() {
		if fileExists(local) {
			p.ProfilePicURL = PhotoRoute(role, p.ID)
		}
	}()

	url := p.ProfilePicURL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}

	var prev struct {
		PhotoHash string
		Embedding []byte
	}
	err := e.db.WithContext(ctx).Model(model).Select("photo_hash", "embedding").Where("id = ?", p.ID).Scan(&prev).Error
	if err != nil {
		logger.Warn(fmt.Sprintf("Sync: stored photo state for %s/%s unreadable: %s", role, p.ID, err.Error()))
		return false
	}

	data, err := e.download(ctx, url)
	if err != nil {
		logger.Warn(fmt.Sprintf("Sync: photo for %s/%s not downloaded: %s", role, p.ID, err.Error()))
		return false
	}

	hash := HashPhoto(data)
	if hash != prev.PhotoHash || !fileExists(local) {
		if err := writeAtomic(local, data); err != nil {
			logger.Warn(fmt.Sprintf("Sync: photo for %s/%s not saved: %s", role, p.ID, err.Error()))
		}
	}
	if hash == prev.PhotoHash && len(prev.Embedding) > 0 {
		return false
	}
	if !e.model.Available() {
		logger.Debug(fmt.Sprintf("Sync: model unavailable, embedding for %s/%s left as is", role, p.ID))
		return false
	}

	vec, err := e.embed(ctx, data)
	switch {
	case errors.Is(err, embedding.ErrUnavailable):
		logger.Debug(fmt.Sprintf("Sync: model unavailable, embedding for %s/%s left as is", role, p.ID))
		return false
	case err != nil:
		logger.Warn(fmt.Sprintf("Sync: embedding for %s/%s failed: %s", role, p.ID, err.Error()))
		return false
	case len(vec) == 0:
		logger.Info(fmt.Sprintf("Sync: no face in the photo of %s/%s", role, p.ID))
		return false
	}

	p.PhotoHash = hash
	p.Embedding = models.EncodeEmbedding(vec)
	return true
}

func (e *Engine) download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.photoTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
}

func (e *Engine) embed(ctx context.Context, data []byte) ([]float32, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	return embedding.First(ctx, e.model, imaging.Fit(img, embedWidth, embedHeight, imaging.Lanczos))
}

// writeAtomic replaces path through a temporary file in the same directory
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".photo-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
