package inspect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pmanickam80/device-qa-inspection/internal/camera"
	"github.com/pmanickam80/device-qa-inspection/internal/domain"
	"github.com/pmanickam80/device-qa-inspection/internal/live"
)

// ErrNotFound indicates a report is not in the history store.
var ErrNotFound = errors.New("report not found")

const defaultReportTimeout = 30 * time.Second

// ReportStore persists inspection history.
type ReportStore interface {
	Save(ctx context.Context, report *domain.Report) error
	Get(ctx context.Context, id string) (*domain.Report, error)
	List(ctx context.Context, limit int) ([]*domain.Report, error)
	Delete(ctx context.Context, id string) error
}

// Publisher forwards completed reports to downstream consumers.
type Publisher interface {
	PublishReport(ctx context.Context, report *domain.Report) error
}

// LiveSession is the slice of the live session the service depends on.
type LiveSession interface {
	Connect(ctx context.Context) error
	SendFrame(imageBase64, mimeType, prompt string) error
	OnReport(fn func(*domain.Report)) live.Unsubscribe
	Disconnect()
}

// Config holds service construction parameters.
type Config struct {
	Prompt        string        // instruction sent with every frame
	ReportTimeout time.Duration // deadline before synthesizing a fallback
}

// Service orchestrates one inspection pipeline: capture a frame, stream it to
// the analyzer, await the parsed report, persist it, and hand it onward. The
// service explicitly owns its live session and tears it down in Close.
type Service struct {
	session   LiveSession
	source    camera.Source
	store     ReportStore
	publisher Publisher // optional
	logger    *slog.Logger

	prompt  string
	timeout time.Duration
}

// NewService wires an inspection service. store and publisher may be nil for
// a purely live, non-persisting run.
func NewService(session LiveSession, source camera.Source, store ReportStore, publisher Publisher, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ReportTimeout
	if timeout <= 0 {
		timeout = defaultReportTimeout
	}
	return &Service{
		session:   session,
		source:    source,
		store:     store,
		publisher: publisher,
		logger:    logger,
		prompt:    cfg.Prompt,
		timeout:   timeout,
	}
}

// InspectOnce captures one frame, sends it for analysis, and returns the
// resulting report. If no report arrives before the deadline, an undetermined
// fallback report is returned instead of blocking indefinitely. Reports whose
// device type is the "no device" sentinel are returned but not persisted.
func (s *Service) InspectOnce(ctx context.Context) (*domain.Report, error) {
	frame, err := s.source.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}

	reports := make(chan *domain.Report, 1)
	unsub := s.session.OnReport(func(r *domain.Report) {
		select {
		case reports <- r:
		default:
		}
	})
	defer unsub()

	if err := s.session.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect live session: %w", err)
	}
	if err := s.session.SendFrame(frame.Data, frame.MimeType, s.prompt); err != nil {
		return nil, fmt.Errorf("send frame: %w", err)
	}

	var report *domain.Report
	select {
	case report = <-reports:
	case <-time.After(s.timeout):
		s.logger.Warn("no analysis within deadline, synthesizing fallback", "timeout", s.timeout)
		report = domain.NewFallbackReport()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if report.DeviceDetected() {
		if s.store != nil {
			if err := s.store.Save(ctx, report); err != nil {
				return nil, fmt.Errorf("save report: %w", err)
			}
		}
		if s.publisher != nil {
			if err := s.publisher.PublishReport(ctx, report); err != nil {
				// Downstream delivery is best-effort; the inspection result
				// still stands.
				s.logger.Warn("report publish failed", "report_id", report.ID, "error", err)
			}
		}
	}

	return report, nil
}

// Watch runs inspections continuously until the context is cancelled,
// invoking fn with every report. Capture pacing is enforced by the frame
// source, so this loop can run freely.
func (s *Service) Watch(ctx context.Context, fn func(*domain.Report)) error {
	for {
		report, err := s.InspectOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		fn(report)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// History returns up to limit most recent persisted reports.
func (s *Service) History(ctx context.Context, limit int) ([]*domain.Report, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.List(ctx, limit)
}

// Close tears down the live session owned by this service.
func (s *Service) Close() {
	s.session.Disconnect()
}
