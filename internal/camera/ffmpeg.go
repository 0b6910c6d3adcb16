package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
)

const (
	defaultWidth       = 1280
	defaultHeight      = 720
	defaultFrameRate   = 2
	defaultSettleDelay = 500 * time.Millisecond
)

// FFmpegConfig configures the ffmpeg-backed frame source.
type FFmpegConfig struct {
	Binary  string            // default: ffmpeg
	Devices map[Facing]string // facing -> v4l2 device path
	Facing  Facing            // initial facing, default environment

	Width, Height  int
	FramesPerSec   int           // target capture rate ceiling
	SettleDelay    time.Duration // wait after a facing switch
}

// FFmpegSource captures single JPEG frames by shelling out to ffmpeg. Frame
// pacing is enforced with a rate limiter so callers can loop freely without
// exceeding the configured rate.
type FFmpegSource struct {
	binary  string
	devices map[Facing]string
	width   int
	height  int
	settle  time.Duration

	limiter  ratelimit.RateLimiter
	interval time.Duration
	logger   *slog.Logger

	// runCmd is swappable for tests.
	runCmd func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)

	mu         sync.Mutex
	facing     Facing
	settledAt  time.Time // frames before this instant are untrusted
}

// NewFFmpegSource creates a frame source.
func NewFFmpegSource(cfg FFmpegConfig, logger *slog.Logger) *FFmpegSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeight
	}
	if cfg.FramesPerSec <= 0 {
		cfg.FramesPerSec = defaultFrameRate
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	if cfg.Facing == "" {
		cfg.Facing = FacingEnvironment
	}

	return &FFmpegSource{
		binary:  cfg.Binary,
		devices: cfg.Devices,
		width:   cfg.Width,
		height:  cfg.Height,
		settle:  cfg.SettleDelay,
		limiter: ratelimit.New(&ratelimit.Config{
			Rate:     cfg.FramesPerSec,
			Burst:    cfg.FramesPerSec,
			Interval: time.Second,
		}),
		interval: time.Second / time.Duration(cfg.FramesPerSec),
		logger:   logger,
		runCmd:   runCommand,
		facing:   cfg.Facing,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Capture grabs one frame from the current facing's device.
func (s *FFmpegSource) Capture(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	facing := s.facing
	settledAt := s.settledAt
	s.mu.Unlock()

	device, ok := s.devices[facing]
	if !ok || device == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, facing)
	}

	// Respect the settle window after a facing switch.
	if wait := time.Until(settledAt); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// Pace captures to the configured frame rate.
	for !s.limiter.Allow(ctx, "capture") {
		select {
		case <-time.After(s.interval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", s.width, s.height),
		"-i", device,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1",
	}

	stdout, stderr, err := s.runCmd(ctx, s.binary, args...)
	if err != nil {
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, msg)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(stdout) == 0 {
		return nil, fmt.Errorf("%w: empty frame from %s", ErrUnavailable, device)
	}

	return &Frame{
		Data:       base64.StdEncoding.EncodeToString(stdout),
		MimeType:   "image/jpeg",
		CapturedAt: time.Now(),
	}, nil
}

// SwitchFacing selects the device for the given direction and starts the
// settle window. Switching to the current facing is a no-op.
func (s *FFmpegSource) SwitchFacing(ctx context.Context, facing Facing) error {
	if _, ok := s.devices[facing]; !ok {
		return fmt.Errorf("%w: %s", ErrNoDevice, facing)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.facing == facing {
		return nil
	}
	s.facing = facing
	s.settledAt = time.Now().Add(s.settle)
	s.logger.Debug("switched camera facing", "facing", facing, "settle", s.settle)
	return nil
}

// Close releases the rate limiter.
func (s *FFmpegSource) Close() error {
	return s.limiter.Close()
}

// Ensure FFmpegSource implements the frame source interface.
var _ Source = (*FFmpegSource)(nil)
