package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/pmanickam80/device-qa-inspection/internal/device"
	"github.com/pmanickam80/device-qa-inspection/internal/domain"
	"github.com/pmanickam80/device-qa-inspection/internal/export"
	"github.com/pmanickam80/device-qa-inspection/internal/inspect"
)

// Server wraps the MCP server with device inspection functionality
type Server struct {
	mcpServer *server.Server
	inspector *inspect.Service
	bridge    *device.Bridge
	exportDir string
}

// Config contains configuration for the MCP server
type Config struct {
	Inspector *inspect.Service
	Bridge    *device.Bridge
	ExportDir string
}

// NewServer creates a new MCP server for device inspection
func NewServer(cfg Config) *Server {
	s := &Server{
		inspector: cfg.Inspector,
		bridge:    cfg.Bridge,
		exportDir: cfg.ExportDir,
	}

	// Create MCP server
	s.mcpServer = server.New(server.Info{
		Name:    "devqa",
		Version: "0.1.0",
	}, server.WithInstructions(`
Devqa inspects physical devices through a camera and a multimodal analysis
service, producing structured condition reports with defects, a 1-10 score,
and recommendations.

Available tools:
- devqa_inspect: Capture a frame and run a full inspection
- devqa_devices: List USB-attached devices
- devqa_pair: Pair with an attached device
- devqa_history: List stored inspection reports
- devqa_export: Export stored reports to a spreadsheet
`))

	// Register tools
	s.registerTools()

	return s
}

// registerTools registers all devqa MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("devqa_inspect").
		Description("Capture a camera frame and produce a device condition report.").
		Handler(s.handleInspect)

	s.mcpServer.Tool("devqa_devices").
		Description("List USB-attached devices with their details.").
		Handler(s.handleDevices)

	s.mcpServer.Tool("devqa_pair").
		Description("Pair with an attached device so its details can be read.").
		Handler(s.handlePair)

	s.mcpServer.Tool("devqa_history").
		Description("List stored inspection reports, newest first.").
		Handler(s.handleHistory)

	s.mcpServer.Tool("devqa_export").
		Description("Export stored inspection reports to an XLSX workbook.").
		Handler(s.handleExport)
}

// Input/Output types for tools

type InspectInput struct {
	TimeoutSeconds int `json:"timeout_seconds,omitempty" jsonschema:"description=Seconds to wait for the analysis report (default 30)"`
}

type InspectOutput struct {
	ReportID         string          `json:"report_id"`
	DeviceType       string          `json:"device_type"`
	ConditionScore   int             `json:"condition_score"`
	OverallCondition string          `json:"overall_condition"`
	Defects          []domain.Defect `json:"defects"`
	Recommendations  []string        `json:"recommendations"`
	Detected         bool            `json:"detected"`
}

type DevicesInput struct{}

type DevicesOutput struct {
	Devices []device.Info `json:"devices"`
	Count   int           `json:"count"`
}

type PairInput struct {
	UDID string `json:"udid" jsonschema:"description=UDID of the device to pair with"`
}

type PairOutput struct {
	Message string `json:"message"`
}

type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Maximum number of reports to return (default 20)"`
}

type HistoryOutput struct {
	Reports []*domain.Report `json:"reports"`
	Count   int              `json:"count"`
}

type ExportInput struct {
	Path  string `json:"path,omitempty" jsonschema:"description=Output file path (default: exports dir with a timestamped name)"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of reports to export (default: all)"`
}

type ExportOutput struct {
	Path    string `json:"path"`
	Reports int    `json:"reports"`
}

// Tool handlers

func (s *Server) handleInspect(ctx context.Context, input InspectInput) (InspectOutput, error) {
	if input.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(input.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	report, err := s.inspector.InspectOnce(ctx)
	if err != nil {
		return InspectOutput{}, fmt.Errorf("inspection failed: %w", err)
	}

	return InspectOutput{
		ReportID:         report.ID.String(),
		DeviceType:       report.DeviceType,
		ConditionScore:   report.ConditionScore,
		OverallCondition: string(report.OverallCondition),
		Defects:          report.Defects,
		Recommendations:  report.Recommendations,
		Detected:         report.DeviceDetected(),
	}, nil
}

func (s *Server) handleDevices(ctx context.Context, _ DevicesInput) (DevicesOutput, error) {
	udids := s.bridge.ListDevices(ctx)

	out := DevicesOutput{Devices: []device.Info{}}
	for _, udid := range udids {
		info, err := s.bridge.DeviceInfo(ctx, udid)
		if err != nil {
			// Unpaired devices still show up with just their UDID
			info = &device.Info{UDID: udid, BatteryPercent: -1}
		}
		out.Devices = append(out.Devices, *info)
	}
	out.Count = len(out.Devices)
	return out, nil
}

func (s *Server) handlePair(ctx context.Context, input PairInput) (PairOutput, error) {
	if err := s.bridge.Pair(ctx, input.UDID); err != nil {
		return PairOutput{}, fmt.Errorf("pairing failed: %w", err)
	}
	return PairOutput{Message: fmt.Sprintf("Paired with %s. Confirm the trust dialog on the device if prompted.", input.UDID)}, nil
}

func (s *Server) handleHistory(ctx context.Context, input HistoryInput) (HistoryOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	reports, err := s.inspector.History(ctx, limit)
	if err != nil {
		return HistoryOutput{}, fmt.Errorf("failed to list reports: %w", err)
	}

	return HistoryOutput{Reports: reports, Count: len(reports)}, nil
}

func (s *Server) handleExport(ctx context.Context, input ExportInput) (ExportOutput, error) {
	reports, err := s.inspector.History(ctx, input.Limit)
	if err != nil {
		return ExportOutput{}, fmt.Errorf("failed to list reports: %w", err)
	}

	path := input.Path
	if path == "" {
		name := fmt.Sprintf("reports-%s.xlsx", time.Now().Format("20060102-150405"))
		path = filepath.Join(s.exportDir, name)
	}

	if err := export.WriteXLSX(path, reports); err != nil {
		return ExportOutput{}, fmt.Errorf("failed to write workbook: %w", err)
	}

	return ExportOutput{Path: path, Reports: len(reports)}, nil
}

// ServeStdio starts the MCP server on stdio (for editor integration)
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
