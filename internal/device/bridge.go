package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
)

// ErrNoDevice indicates no attached device answered. A missing CLI tool or a
// non-zero exit maps here as well: the absence of the bridge means "no
// device", never a fatal error.
var ErrNoDevice = errors.New("no device attached")

const (
	defaultSettleDelay  = 2 * time.Second
	defaultQueryRetries = 3
)

// Info holds the identifying, battery, and storage attributes of an attached
// device, as reported by the USB info tools.
type Info struct {
	UDID         string `json:"udid"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	OSVersion    string `json:"os_version"`
	SerialNumber string `json:"serial_number"`

	BatteryPercent int `json:"battery_percent"` // -1 when unknown

	StorageTotalBytes uint64 `json:"storage_total_bytes"`
	StorageFreeBytes  uint64 `json:"storage_free_bytes"`
}

// Config configures the CLI bridge.
type Config struct {
	ListBinary string // default: idevice_id
	InfoBinary string // default: ideviceinfo
	PairBinary string // default: idevicepair

	SettleDelay time.Duration // wait after pairing before re-querying
}

// Bridge shells out to the libimobiledevice command-line tools to enumerate
// and query attached devices. Queries that fail transiently (USB re-
// enumeration, trust dialogs) are retried before giving up.
type Bridge struct {
	listBinary string
	infoBinary string
	pairBinary string
	settle     time.Duration

	retrier retry.Retry[[]byte]
	logger  *slog.Logger

	// runCmd is swappable for tests.
	runCmd func(ctx context.Context, name string, args ...string) ([]byte, error)

	mu        sync.Mutex
	settledAt time.Time
}

// NewBridge creates a bridge with the given configuration.
func NewBridge(cfg Config, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ListBinary == "" {
		cfg.ListBinary = "idevice_id"
	}
	if cfg.InfoBinary == "" {
		cfg.InfoBinary = "ideviceinfo"
	}
	if cfg.PairBinary == "" {
		cfg.PairBinary = "idevicepair"
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}

	return &Bridge{
		listBinary: cfg.ListBinary,
		infoBinary: cfg.InfoBinary,
		pairBinary: cfg.PairBinary,
		settle:     cfg.SettleDelay,
		retrier: retry.New[[]byte](retry.Config{
			MaxAttempts:   defaultQueryRetries,
			InitialDelay:  200 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
		}),
		logger: logger,
		runCmd: runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Available reports whether the info tools are installed at all.
func (b *Bridge) Available() bool {
	_, err := exec.LookPath(b.infoBinary)
	return err == nil
}

// ListDevices returns the UDIDs of all attached devices. An unavailable tool
// or a failing invocation yields an empty list, not an error.
func (b *Bridge) ListDevices(ctx context.Context) []string {
	out, err := b.runCmd(ctx, b.listBinary, "-l")
	if err != nil {
		b.logger.Debug("device enumeration unavailable", "error", err)
		return nil
	}

	var udids []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			udids = append(udids, line)
		}
	}
	return udids
}

// DeviceInfo queries identity, battery, and storage attributes of one device.
func (b *Bridge) DeviceInfo(ctx context.Context, udid string) (*Info, error) {
	b.waitSettle(ctx)

	out, err := b.query(ctx, "-u", udid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	fields := parseKeyValues(string(out))
	info := &Info{
		UDID:           udid,
		Name:           fields["DeviceName"],
		Model:          fields["ProductType"],
		OSVersion:      fields["ProductVersion"],
		SerialNumber:   fields["SerialNumber"],
		BatteryPercent: -1,
	}

	// Battery and storage live in separate lockdown domains; their absence
	// is not an error (older devices, restricted pairing).
	if out, err := b.query(ctx, "-u", udid, "-q", "com.apple.mobile.battery", "-k", "BatteryCurrentCapacity"); err == nil {
		if pct, err := strconv.Atoi(strings.TrimSpace(string(out))); err == nil {
			info.BatteryPercent = pct
		}
	}
	if out, err := b.query(ctx, "-u", udid, "-q", "com.apple.disk_usage"); err == nil {
		usage := parseKeyValues(string(out))
		if v, err := strconv.ParseUint(usage["TotalDataCapacity"], 10, 64); err == nil {
			info.StorageTotalBytes = v
		}
		if v, err := strconv.ParseUint(usage["TotalDataAvailable"], 10, 64); err == nil {
			info.StorageFreeBytes = v
		}
	}

	return info, nil
}

// Pair performs the explicit pairing handshake with a device, then holds off
// further queries for the settle delay so lockdown has time to come up.
func (b *Bridge) Pair(ctx context.Context, udid string) error {
	if _, err := b.runCmd(ctx, b.pairBinary, "-u", udid, "pair"); err != nil {
		return fmt.Errorf("pair device %s: %w", udid, err)
	}

	b.mu.Lock()
	b.settledAt = time.Now().Add(b.settle)
	b.mu.Unlock()

	b.logger.Info("device paired", "udid", udid, "settle", b.settle)
	return nil
}

func (b *Bridge) query(ctx context.Context, args ...string) ([]byte, error) {
	return b.retrier.Do(ctx, func(ctx context.Context) ([]byte, error) {
		return b.runCmd(ctx, b.infoBinary, args...)
	})
}

func (b *Bridge) waitSettle(ctx context.Context) {
	b.mu.Lock()
	settledAt := b.settledAt
	b.mu.Unlock()

	if wait := time.Until(settledAt); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
	}
}

// parseKeyValues parses the "Key: Value" lines the info tools print.
func parseKeyValues(out string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields
}
