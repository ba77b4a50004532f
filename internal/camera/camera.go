// Package camera provides frames from a V4L2 device. Capture is delegated
// to ffmpeg, which writes an MJPEG stream on stdout.
package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

var (
	ErrUnavailable = errors.New("camera unavailable")
	ErrNoFrame     = errors.New("no frame available")
)

// Source yields the most recent frame on each Read
type Source interface {
	Name() string
	Read(ctx context.Context) (image.Image, error)
	Close() error
}

// Unavailable is used when no device could be opened
type Unavailable struct{}

func (Unavailable) Name() string { return "unavailable" }

func (Unavailable) Read(context.Context) (image.Image, error) { return nil, ErrUnavailable }

func (Unavailable) Close() error { return nil }

// Candidates lists devices in the order they are tried: the explicit index,
// the explicit path, then the probe list. Duplicates are skipped.
func Candidates(cfg config.CameraConfig) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(dev string) {
		if dev != "" && !seen[dev] {
			seen[dev] = true
			out = append(out, dev)
		}
	}
	if cfg.Index >= 0 {
		add("/dev/video" + strconv.Itoa(cfg.Index))
	}
	add(cfg.Device)
	for _, dev := range cfg.ProbeDevices {
		add(dev)
	}
	return out
}

// Open tries each candidate until one delivers a frame within the open
// timeout. It returns Unavailable and ErrUnavailable when none does.
func Open(ctx context.Context, cfg config.CameraConfig) (Source, error) {
	for _, dev := range Candidates(cfg) {
		if _, err := os.Stat(dev); err != nil {
			continue
		}
		src, err := openFFmpeg(ctx, cfg, dev)
		if err != nil {
			logger.Warn(fmt.Sprintf("Camera: %s did not open: %s", dev, err.Error()))
			continue
		}
		logger.Info(fmt.Sprintf("Camera: using %s", dev))
		return src, nil
	}
	return Unavailable{}, ErrUnavailable
}

// FFmpeg reads frames from an ffmpeg child process. A background reader
// keeps only the newest frame so Read never returns a backlog.
type FFmpeg struct {
	device string
	cmd    *exec.Cmd
	cancel context.CancelFunc

	mu     sync.Mutex
	latest []byte
	seq    uint64
	err    error
	notify chan struct{}
}

func openFFmpeg(ctx context.Context, cfg config.CameraConfig, device string) (*FFmpeg, error) {
	procCtx, cancel := context.WithCancel(context.Background())
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2",
		"-framerate", strconv.FormatFloat(cfg.CaptureFPS, 'f', -1, 64),
		"-video_size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-i", device,
		"-f", "mjpeg", "-q:v", "5", "-",
	}
	cmd := exec.CommandContext(procCtx, cfg.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}

	f := &FFmpeg{device: device, cmd: cmd, cancel: cancel, notify: make(chan struct{}, 1)}
	go f.readLoop(bufio.NewReaderSize(stdout, 1<<16))

	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	waitCtx, waitCancel := context.WithTimeout(ctx, timeout)
	defer waitCancel()
	if _, err := f.next(waitCtx, 0); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (f *FFmpeg) readLoop(r *bufio.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 8<<20)
	scanner.Split(SplitJPEG)
	for scanner.Scan() {
		frame := bytes.Clone(scanner.Bytes())
		f.mu.Lock()
		f.latest = frame
		f.seq++
		f.mu.Unlock()
		select {
		case f.notify <- struct{}{}:
		default:
		}
	}
	f.mu.Lock()
	f.err = scanner.Err()
	if f.err == nil {
		f.err = ErrUnavailable
	}
	f.mu.Unlock()
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// next waits for a frame newer than after
func (f *FFmpeg) next(ctx context.Context, after uint64) ([]byte, error) {
	for {
		f.mu.Lock()
		frame, seq, err := f.latest, f.seq, f.err
		f.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if seq > after {
			return frame, nil
		}
		select {
		case <-ctx.Done():
			return nil, ErrNoFrame
		case <-f.notify:
		}
	}
}

func (f *FFmpeg) Name() string { return f.device }

// Read decodes the newest frame, waiting for one only if none was captured yet
func (f *FFmpeg) Read(ctx context.Context) (image.Image, error) {
	frame, err := f.next(ctx, 0)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

func (f *FFmpeg) Close() error {
	f.cancel()
	return f.cmd.Wait()
}

var (
	soi = []byte{0xFF, 0xD8}
	eoi = []byte{0xFF, 0xD9}
)

// SplitJPEG is a bufio.SplitFunc yielding complete JPEG images from an
// MJPEG byte stream. Bytes before a start-of-image marker are discarded.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, soi)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// keep a trailing 0xFF that may begin a marker
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}
	end := bytes.Index(data[start+len(soi):], eoi)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	stop := start + len(soi) + end + len(eoi)
	return stop, data[start:stop], nil
}
