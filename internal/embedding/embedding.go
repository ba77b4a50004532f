// Package embedding talks to the face model. The model runs as a sidecar
// process; the kiosk only sends images and receives one vector per face.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/disintegration/imaging"

	"github.com/CLDWare/attendance-kiosk/config"
)

// ErrUnavailable means no model is loaded. It is never fatal.
var ErrUnavailable = errors.New("embedding model unavailable")

// Face is one detected face
type Face struct {
	Embedding []float32 `json:"embedding"`
	// Spoof is the model's liveness verdict, false when it has none
	Spoof bool `json:"spoof"`
	// Box is x1, y1, x2, y2 in the coordinates of the submitted image
	Box [4]int `json:"box"`
}

// Model detects faces in an image. An empty slice with a nil error means
// nobody is in frame.
type Model interface {
	Available() bool
	Detect(ctx context.Context, img image.Image) ([]Face, error)
}

// Unavailable is the model used when none is configured
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Detect(context.Context, image.Image) ([]Face, error) {
	return nil, ErrUnavailable
}

// New returns the sidecar client, or Unavailable when no URL is configured
func New(cfg config.RecognitionConfig) Model {
	if cfg.ModelURL == "" {
		return Unavailable{}
	}
	timeout := cfg.ModelTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPModel{
		url:    cfg.ModelURL,
		client: &http.Client{Timeout: timeout},
	}
}

// HTTPModel posts JPEG frames to the model sidecar
type HTTPModel struct {
	url    string
	client *http.Client
}

type detectResponse struct {
	Faces []Face `json:"faces"`
}

func (m *HTTPModel) Available() bool { return true }

func (m *HTTPModel) Detect(ctx context.Context, img image.Image) ([]Face, error) {
	var body bytes.Buffer
	if err := imaging.Encode(&body, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, ErrUnavailable
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	faces := out.Faces[:0]
	for _, f := range out.Faces {
		if len(f.Embedding) > 0 {
			faces = append(faces, f)
		}
	}
	return faces, nil
}

// First returns the embedding of the first face in img
func First(ctx context.Context, m Model, img image.Image) ([]float32, error) {
	faces, err := m.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, nil
	}
	return faces[0].Embedding, nil
}
