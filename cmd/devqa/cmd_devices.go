package main

import (
	"fmt"

	"github.com/pmanickam80/device-qa-inspection/internal/device"
)

// cmdDevices lists USB-attached devices. It only needs the CLI bridge, so
// the full inspection pipeline is not wired up.
func cmdDevices() error {
	ctx, cancel := signalContext()
	defer cancel()

	bridge := device.NewBridge(device.Config{}, nil)
	if !bridge.Available() {
		return fmt.Errorf("device tooling not found (install libimobiledevice)")
	}

	udids := bridge.ListDevices(ctx)
	if len(udids) == 0 {
		fmt.Println("No devices attached.")
		return nil
	}

	for _, udid := range udids {
		info, err := bridge.DeviceInfo(ctx, udid)
		if err != nil {
			fmt.Printf("%s  (unpaired, run 'devqa pair %s')\n", udid, udid)
			continue
		}

		fmt.Printf("%s\n", info.Name)
		fmt.Printf("  UDID:    %s\n", info.UDID)
		fmt.Printf("  Model:   %s\n", info.Model)
		fmt.Printf("  OS:      %s\n", info.OSVersion)
		if info.BatteryPercent >= 0 {
			fmt.Printf("  Battery: %d%%\n", info.BatteryPercent)
		}
		if info.StorageTotalBytes > 0 {
			fmt.Printf("  Storage: %s free of %s\n",
				formatBytes(info.StorageFreeBytes), formatBytes(info.StorageTotalBytes))
		}
		fmt.Println()
	}

	return nil
}

// cmdPair pairs with an attached device
func cmdPair(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("device UDID required (run 'devqa devices' to list)")
	}
	udid := args[0]

	ctx, cancel := signalContext()
	defer cancel()

	bridge := device.NewBridge(device.Config{}, nil)
	if !bridge.Available() {
		return fmt.Errorf("device tooling not found (install libimobiledevice)")
	}

	if err := bridge.Pair(ctx, udid); err != nil {
		return fmt.Errorf("pair: %w", err)
	}

	fmt.Printf("Paired with %s. Confirm the trust dialog on the device if prompted.\n", udid)
	return nil
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
