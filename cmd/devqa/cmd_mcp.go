package main

import (
	mcpserver "github.com/pmanickam80/device-qa-inspection/internal/mcp"
)

// cmdMCP starts the MCP server on stdio for editor integration
func cmdMCP() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	srv := mcpserver.NewServer(mcpserver.Config{
		Inspector: a.inspector,
		Bridge:    a.bridge,
		ExportDir: a.exportDir(),
	})

	return srv.ServeStdio(ctx)
}
