package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/acolita/hydra-sh/internal/profiles"
	"github.com/mark3labs/mcp-go/mcp"
)

func connectionsAddTool() mcp.Tool {
	return mcp.NewTool("connections_add",
		mcp.WithDescription(`Add a connection profile interactively.

Opens a form on the user's terminal to confirm and optionally edit the
profile before saving. The LLM provides known fields as parameters; the
user sees a pre-filled form and can adjust values or cancel.

Passwords are never collected here: they are asked for when a session
connects.`),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Short name for the connection (e.g., 'prod-db')"),
		),
		mcp.WithString("host",
			mcp.Required(),
			mcp.Description("SSH hostname or IP address"),
		),
		mcp.WithNumber("port",
			mcp.Description("SSH port (default: 22)"),
		),
		mcp.WithString("user",
			mcp.Required(),
			mcp.Description("SSH username"),
		),
		mcp.WithString("auth_type",
			mcp.Description("Authentication: 'password' (default) or 'agent'"),
		),
		mcp.WithString("jump",
			mcp.Description("Name of a saved jump host profile (optional)"),
		),
		mcp.WithBoolean("is_jump",
			mcp.Description("Offer this profile as a jump host (default: false)"),
		),
	)
}

func (s *Server) handleConnectionsAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.profiles == nil {
		return mcp.NewToolResultError(errProfilesDisabled), nil
	}
	if s.dialog == nil {
		return mcp.NewToolResultError("no terminal available to confirm the profile"), nil
	}

	prefill := ports.ProfileFormData{
		Name:     mcp.ParseString(req, "name", ""),
		Host:     mcp.ParseString(req, "host", ""),
		Port:     mcp.ParseInt(req, "port", 22),
		Username: mcp.ParseString(req, "user", ""),
		AuthType: mcp.ParseString(req, "auth_type", profiles.AuthPassword),
		JumpName: mcp.ParseString(req, "jump", ""),
		IsJump:   mcp.ParseBoolean(req, "is_jump", false),
	}
	switch {
	case prefill.Name == "":
		return mcp.NewToolResultError("name is required"), nil
	case prefill.Host == "":
		return mcp.NewToolResultError("host is required"), nil
	case prefill.Username == "":
		return mcp.NewToolResultError("user is required"), nil
	case prefill.AuthType != profiles.AuthPassword && prefill.AuthType != profiles.AuthAgent:
		return mcp.NewToolResultError(fmt.Sprintf("unknown auth_type %q", prefill.AuthType)), nil
	}
	if _, err := s.profiles.Find(prefill.Name); err == nil {
		return mcp.NewToolResultError(fmt.Sprintf("connection %q already exists", prefill.Name)), nil
	}

	slog.Info("showing connection profile form", slog.String("name", prefill.Name))

	saved, ok, err := s.profiles.AddInteractive(s.dialog, prefill)
	switch {
	case errors.Is(err, profiles.ErrNameTaken):
		return mcp.NewToolResultError(err.Error()), nil
	case err != nil:
		slog.Info("connection profile not saved", slog.String("error", err.Error()))
		return mcp.NewToolResultError(fmt.Sprintf("add connection: %v", err)), nil
	case !ok:
		slog.Info("connection profile cancelled by user", slog.String("name", prefill.Name))
		return jsonResult(map[string]any{
			"status":  "cancelled",
			"message": "User cancelled the profile",
		})
	}

	slog.Info("connection profile saved",
		slog.String("name", saved.Name),
		slog.String("host", saved.Host),
		slog.String("path", s.profiles.Path()))

	return jsonResult(map[string]any{
		"status":     "saved",
		"connection": saved.Redacted(),
		"path":       s.profiles.Path(),
	})
}
