package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pmanickam80/device-qa-inspection/internal/domain"
)

// cmdInspect runs a single capture-and-analyze cycle
func cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.inspector.InspectOnce(ctx)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}

	if *asJSON {
		return json.NewEncoder(os.Stdout).Encode(report)
	}
	printReport(report)
	return nil
}

// cmdWatch inspects continuously until interrupted
func cmdWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print each report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println("Watching. Press Ctrl+C to stop.")
	enc := json.NewEncoder(os.Stdout)
	return a.inspector.Watch(ctx, func(report *domain.Report) {
		if *asJSON {
			enc.Encode(report)
			return
		}
		printReport(report)
		fmt.Println(strings.Repeat("-", 40))
	})
}

func printReport(r *domain.Report) {
	if !r.DeviceDetected() {
		fmt.Println("No device detected in frame.")
		return
	}

	fmt.Printf("Device:    %s\n", r.DeviceType)
	if r.Undetermined() {
		fmt.Println("Condition: undetermined")
	} else {
		fmt.Printf("Condition: %s (%d/10)\n", r.OverallCondition, r.ConditionScore)
	}

	if len(r.Defects) > 0 {
		fmt.Println("\nDefects:")
		for _, d := range r.Defects {
			line := fmt.Sprintf("  [%s] %s on %s", d.Severity, d.Type, d.Location)
			if d.Size != "" {
				line += fmt.Sprintf(" (%s)", d.Size)
			}
			fmt.Println(line)
			if d.Description != "" {
				fmt.Printf("      %s\n", d.Description)
			}
		}
	}

	if len(r.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, rec := range r.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
