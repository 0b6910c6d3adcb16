package camera

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestSource(run func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)) *FFmpegSource {
	s := NewFFmpegSource(FFmpegConfig{
		Devices: map[Facing]string{
			FacingEnvironment: "/dev/video0",
			FacingUser:        "/dev/video1",
		},
		FramesPerSec: 100,
		SettleDelay:  10 * time.Millisecond,
	}, nil)
	s.runCmd = run
	return s
}

func TestCapture_EncodesFrameAsBase64JPEG(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	var gotArgs []string
	s := newTestSource(func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		gotArgs = append([]string{name}, args...)
		return jpeg, nil, nil
	})
	defer s.Close()

	frame, err := s.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if frame.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %q; want image/jpeg", frame.MimeType)
	}
	if frame.Data != base64.StdEncoding.EncodeToString(jpeg) {
		t.Errorf("Data = %q; want base64 of captured bytes", frame.Data)
	}
	if frame.CapturedAt.IsZero() {
		t.Error("CapturedAt should be set")
	}

	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "/dev/video0") {
		t.Errorf("command %q should target the environment device", joined)
	}
	if !strings.Contains(joined, "1280x720") {
		t.Errorf("command %q should carry the default resolution", joined)
	}
}

func TestCapture_UnavailableDevice(t *testing.T) {
	s := newTestSource(func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return nil, []byte("/dev/video0: Permission denied"), errors.New("exit status 1")
	})
	defer s.Close()

	_, err := s.Capture(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Capture() error = %v; want ErrUnavailable", err)
	}
	if !strings.Contains(err.Error(), "Permission denied") {
		t.Errorf("error %q should carry the tool's message", err)
	}
}

func TestCapture_EmptyFrame(t *testing.T) {
	s := newTestSource(func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return nil, nil, nil
	})
	defer s.Close()

	if _, err := s.Capture(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Capture() error = %v; want ErrUnavailable", err)
	}
}

func TestSwitchFacing_UnknownFacing(t *testing.T) {
	s := newTestSource(nil)
	defer s.Close()

	err := s.SwitchFacing(context.Background(), Facing("sideways"))
	if !errors.Is(err, ErrNoDevice) {
		t.Errorf("SwitchFacing() error = %v; want ErrNoDevice", err)
	}
}

func TestSwitchFacing_EnforcesSettleDelay(t *testing.T) {
	s := newTestSource(func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return []byte{0xFF, 0xD8}, nil, nil
	})
	defer s.Close()

	if err := s.SwitchFacing(context.Background(), FacingUser); err != nil {
		t.Fatalf("SwitchFacing() error = %v", err)
	}

	start := time.Now()
	if _, err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Capture() returned after %v; want the %v settle delay honored", elapsed, 10*time.Millisecond)
	}
}

func TestSwitchFacing_SameFacingIsNoOp(t *testing.T) {
	s := newTestSource(func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return []byte{0xFF, 0xD8}, nil, nil
	})
	defer s.Close()

	if err := s.SwitchFacing(context.Background(), FacingEnvironment); err != nil {
		t.Fatalf("SwitchFacing() error = %v", err)
	}

	// No settle delay should apply.
	start := time.Now()
	if _, err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Millisecond {
		t.Errorf("Capture() took %v; want no settle wait for a no-op switch", elapsed)
	}
}

func TestCapture_ContextCancelledDuringSettle(t *testing.T) {
	s := newTestSource(nil)
	defer s.Close()
	s.settle = time.Second

	if err := s.SwitchFacing(context.Background(), FacingUser); err != nil {
		t.Fatalf("SwitchFacing() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	if _, err := s.Capture(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Capture() error = %v; want context deadline", err)
	}
}
