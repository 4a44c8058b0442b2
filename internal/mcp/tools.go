package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/acolita/hydra-sh/internal/audit"
	"github.com/acolita/hydra-sh/internal/history"
	"github.com/acolita/hydra-sh/internal/ssh"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultSearchLimit = 50

	descHostGlob = "Host pattern, e.g. '10.0.*' or 'db-{1,2}' (default: every host)"
	descType     = "Comma separated execution types: bash, docker, dockerInteractive"
	descDate     = "Day in YYYY-MM-DD form (UTC)"

	errProfilesDisabled = "connection profiles are not available"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(historyHostsTool(), s.handleHistoryHosts)
	s.mcpServer.AddTool(historyGetTool(), s.handleHistoryGet)
	s.mcpServer.AddTool(historySearchTool(), s.handleHistorySearch)
	s.mcpServer.AddTool(auditAnalyzeTool(), s.handleAuditAnalyze)
	if s.profiles != nil {
		s.mcpServer.AddTool(connectionsListTool(), s.handleConnectionsList)
		s.mcpServer.AddTool(connectionsAddTool(), s.handleConnectionsAdd)
	}
}

func historyHostsTool() mcp.Tool {
	return mcp.NewTool("history_hosts",
		mcp.WithDescription("List the hosts that have captured command history"),
	)
}

func historyGetTool() mcp.Tool {
	return mcp.NewTool("history_get",
		mcp.WithDescription("Get the captured commands of one host, grouped by day, newest first"),
		mcp.WithString("host",
			mcp.Required(),
			mcp.Description("Host name or address as used to connect"),
		),
		mcp.WithString("date",
			mcp.Description(descDate+" (default: every day)"),
		),
	)
}

func historySearchTool() mcp.Tool {
	return mcp.NewTool("history_search",
		mcp.WithDescription("Search captured commands across hosts, newest first"),
		mcp.WithString("host_glob",
			mcp.Description(descHostGlob),
		),
		mcp.WithString("type",
			mcp.Description(descType),
		),
		mcp.WithString("date",
			mcp.Description(descDate),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum entries returned (default: %d, 0 for no limit)", defaultSearchLimit)),
		),
	)
}

func auditAnalyzeTool() mcp.Tool {
	return mcp.NewTool("audit_analyze",
		mcp.WithDescription(`Ask the audit assistant about captured commands.

The matching history is sent to the configured LLM provider together with
the stated purpose; the answer is returned verbatim.`),
		mcp.WithString("purpose",
			mcp.Required(),
			mcp.Description("What the operator was trying to achieve"),
		),
		mcp.WithString("comment",
			mcp.Description("Additional context for the assistant"),
		),
		mcp.WithString("host_glob",
			mcp.Description(descHostGlob),
		),
		mcp.WithString("type",
			mcp.Description(descType),
		),
		mcp.WithString("date",
			mcp.Description(descDate),
		),
	)
}

func connectionsListTool() mcp.Tool {
	return mcp.NewTool("connections_list",
		mcp.WithDescription("List saved connection profiles (passwords are never returned)"),
	)
}

func (s *Server) handleHistoryHosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hosts, err := s.history.Hosts()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if hosts == nil {
		hosts = []string{}
	}
	return jsonResult(map[string]any{"hosts": hosts})
}

func (s *Server) handleHistoryGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	host := mcp.ParseString(req, "host", "")
	date := mcp.ParseString(req, "date", "")
	if host == "" {
		return mcp.NewToolResultError("host is required"), nil
	}

	days, err := s.history.ByHost(host)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if date != "" {
		entries := days[date]
		if entries == nil {
			entries = []history.Entry{}
		}
		return jsonResult(map[string]any{"host": host, "date": date, "entries": entries})
	}
	return jsonResult(map[string]any{"host": host, "days": days})
}

// filterFromRequest reads host_glob, type and date.
func filterFromRequest(req mcp.CallToolRequest) (history.Filter, error) {
	f := history.Filter{
		HostGlob: mcp.ParseString(req, "host_glob", ""),
		Date:     mcp.ParseString(req, "date", ""),
	}
	for _, t := range strings.Split(mcp.ParseString(req, "type", ""), ",") {
		if t = strings.TrimSpace(t); t != "" {
			f.Types = append(f.Types, t)
		}
	}
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("invalid host_glob %q: %w", f.HostGlob, err)
	}
	return f, nil
}

func (s *Server) handleHistorySearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f, err := filterFromRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f.Limit = mcp.ParseInt(req, "limit", defaultSearchLimit)
	if f.Limit < 0 {
		return mcp.NewToolResultError("limit must not be negative"), nil
	}

	entries, err := s.history.Search(f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return jsonResult(map[string]any{"count": len(entries), "entries": entries})
}

func (s *Server) handleAuditAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.auditor == nil {
		return mcp.NewToolResultError("audit assistant is not configured"), nil
	}
	purpose := mcp.ParseString(req, "purpose", "")
	if purpose == "" {
		return mcp.NewToolResultError("purpose is required"), nil
	}
	f, err := filterFromRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entries, err := s.history.Search(f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	slog.Info("running audit",
		slog.String("host_glob", f.HostGlob),
		slog.Int("entries", len(entries)))

	answer, err := s.auditor.Analyze(ctx, audit.Request{
		Purpose: purpose,
		Comment: mcp.ParseString(req, "comment", ""),
		Entries: entries,
	})
	if err != nil {
		var perr *audit.ProviderError
		if errors.As(err, &perr) {
			return mcp.NewToolResultError(fmt.Sprintf("audit provider error: %v", perr)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(answer), nil
}

func (s *Server) handleConnectionsList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.profiles == nil {
		return mcp.NewToolResultError(errProfilesDisabled), nil
	}
	list := s.profiles.List()
	out := make([]ssh.ConnectionConfig, 0, len(list))
	for _, p := range list {
		out = append(out, p.Redacted())
	}
	return jsonResult(map[string]any{"connections": out})
}

// jsonResult converts a value to a JSON tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
