package camera

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable indicates the capture utility or device is missing, or
	// access to it was denied.
	ErrUnavailable = errors.New("camera unavailable")

	// ErrNoDevice indicates no capture device is configured for the
	// requested facing direction.
	ErrNoDevice = errors.New("no capture device for facing")
)

// Facing is the direction a capture device points.
type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// Frame is one captured still image, base64-encoded with no data-URL prefix.
type Frame struct {
	Data       string
	MimeType   string
	CapturedAt time.Time
}

// Source produces still frames for analysis.
type Source interface {
	// Capture grabs one frame. It blocks until the configured frame rate
	// allows another capture and any post-switch settle delay has elapsed.
	Capture(ctx context.Context) (*Frame, error)

	// SwitchFacing selects the capture device for the given direction.
	// A settle delay is enforced before the next frame may be trusted.
	SwitchFacing(ctx context.Context, facing Facing) error
}
