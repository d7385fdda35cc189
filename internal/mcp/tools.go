package mcp

import (
	"context"
	"encoding/json"
	"time"

	"razer-doctor/internal/analytics"
	"razer-doctor/internal/config"
	"razer-doctor/internal/storage"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type handlers struct {
	cfg config.Config
	run RunFunc
}

func registerRunTroubleshooterTool(s *server.MCPServer, h *handlers) {
	tool := mcp.NewTool("run_troubleshooter",
		mcp.WithDescription("Run the OpenRazer troubleshooter on this machine and return the diagnosis as JSON. Each check has an id, a name, an outcome (passed, failed or indeterminate) and ordered suggestions."),
		mcp.WithBoolean("strict_versions",
			mcp.Description("Compare driver versions component by component instead of the default decimal comparison"),
		),
		mcp.WithBoolean("save",
			mcp.Description("Archive the diagnosis so it shows up in list_diagnoses"),
		),
	)

	s.AddTool(tool, h.runTroubleshooter)
}

func (h *handlers) runTroubleshooter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.cfg.WithStrictVersionCompare(req.GetBool("strict_versions", h.cfg.StrictVersionCompare))

	diagnosis := h.run(ctx, cfg)

	result := map[string]any{
		"diagnosis": diagnosis,
		"healthy":   diagnosis.Healthy(),
	}

	if req.GetBool("save", false) {
		db, err := storage.Open(cfg.DataDir)
		if err != nil {
			return mcp.NewToolResultError("failed to open archive: " + err.Error()), nil
		}
		defer db.Close()

		rec, err := storage.SaveDiagnosis(db, diagnosis, time.Now())
		if err != nil {
			return mcp.NewToolResultError("failed to save diagnosis: " + err.Error()), nil
		}
		result["run_id"] = rec.RunID
	}

	jsonResult, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to encode diagnosis: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(jsonResult)), nil
}

func registerListDiagnosesTool(s *server.MCPServer, h *handlers) {
	tool := mcp.NewTool("list_diagnoses",
		mcp.WithDescription("List archived troubleshooter runs, newest first, with their full diagnoses and the checks that keep failing across them."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs to return (default: 10)"),
		),
	)

	s.AddTool(tool, h.listDiagnoses)
}

func (h *handlers) listDiagnoses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)

	db, err := storage.Open(h.cfg.DataDir)
	if err != nil {
		return mcp.NewToolResultError("failed to open archive: " + err.Error()), nil
	}
	defer db.Close()

	records, err := storage.ListDiagnoses(db, limit)
	if err != nil {
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result := map[string]any{
		"diagnoses": records,
		"count":     len(records),
		"recurring": analytics.Analyze(records).Recurring(),
	}
	if records == nil {
		result["diagnoses"] = []storage.Record{}
	}
	jsonResult, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}
