package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pmanickam80/device-qa-inspection/internal/domain"
	"github.com/pmanickam80/device-qa-inspection/internal/inspect"
)

// Publisher pushes completed defect reports to the report queue so asset
// management systems can consume them.
type Publisher struct {
	conn *Connection
}

// NewPublisher creates a new report publisher.
func NewPublisher(conn *Connection) *Publisher {
	return &Publisher{conn: conn}
}

// PublishReport publishes one defect report as JSON.
func (p *Publisher) PublishReport(ctx context.Context, report *domain.Report) error {
	if err := p.conn.PublishJSON(ctx, ReportQueueName, report); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}

	slog.Info("published report",
		"report_id", report.ID,
		"device_type", report.DeviceType,
		"condition", report.OverallCondition,
	)
	return nil
}

// Ensure Publisher satisfies the orchestrator's publisher interface.
var _ inspect.Publisher = (*Publisher)(nil)
