package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "inspect":
		err = cmdInspect(os.Args[2:])
	case "watch":
		err = cmdWatch(os.Args[2:])
	case "devices":
		err = cmdDevices()
	case "pair":
		err = cmdPair(os.Args[2:])
	case "history":
		err = cmdHistory(os.Args[2:])
	case "export":
		err = cmdExport(os.Args[2:])
	case "config":
		err = cmdConfig(os.Args[2:])
	case "mcp":
		err = cmdMCP()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("devqa %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Devqa - Camera-Based Device Condition Inspection

Usage:
  devqa <command> [arguments]

Inspection Commands:
  inspect         Capture one frame and produce a condition report
  watch           Inspect continuously until interrupted
  history         List stored inspection reports
  export          Export stored reports to an XLSX workbook

Device Commands:
  devices         List USB-attached devices
  pair <udid>     Pair with an attached device

Setup Commands:
  config show     Show current configuration
  config init     Write a default config file
  config set-key  Store the analysis service API key

Integration Commands:
  mcp             Start MCP server (stdio, for editor integration)

Other:
  help            Show this help message
  version         Show version information

Examples:
  devqa inspect                  # One-shot inspection
  devqa inspect -json            # Machine-readable output
  devqa watch                    # Continuous inspection loop
  devqa export -out reports.xlsx # Spreadsheet export
  devqa config set-key           # Configure the API key`)
}
