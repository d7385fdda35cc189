// Package mcp exposes the troubleshooter and the diagnosis archive to MCP
// clients over stdio.
package mcp

import (
	"context"

	"razer-doctor/internal/config"
	"razer-doctor/internal/report"

	"github.com/mark3labs/mcp-go/server"
)

const (
	ServerName    = "razer-doctor"
	ServerVersion = "1.0.0"
)

// RunFunc performs one troubleshooter run with the given configuration.
type RunFunc func(ctx context.Context, cfg config.Config) report.Diagnosis

// NewServer creates an MCP server with the troubleshooter tools registered.
func NewServer(cfg config.Config, run RunFunc) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
	)

	h := &handlers{cfg: cfg, run: run}
	registerRunTroubleshooterTool(s, h)
	registerListDiagnosesTool(s, h)

	return s
}

// Serve runs the server on stdin and stdout until the client disconnects.
func Serve(cfg config.Config, run RunFunc) error {
	return server.ServeStdio(NewServer(cfg, run))
}
