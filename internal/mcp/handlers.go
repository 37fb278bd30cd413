package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jmorand/pyforge/internal/errors"
	"github.com/jmorand/pyforge/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps *ops.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *ops.Deps) *Handlers {
	return &Handlers{deps: deps}
}

// Request types for each tool

// CreateRequest represents the arguments for project_create.
type CreateRequest struct {
	Name string `json:"name"`
}

// BuildRequest represents the arguments for project_build.
type BuildRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt,omitempty"`
}

// CancelRequest represents the arguments for project_cancel.
type CancelRequest struct {
	Name string `json:"name"`
}

// RunRequest represents the arguments for project_run.
type RunRequest struct {
	Name        string `json:"name"`
	TimeoutSecs int    `json:"timeout_secs,omitempty"`
}

// ShowRequest represents the arguments for project_show.
type ShowRequest struct {
	Name       string `json:"name"`
	WithSource bool   `json:"with_source,omitempty"`
}

// HistoryRequest represents the arguments for project_history.
type HistoryRequest struct {
	Name       string `json:"name"`
	WithSource bool   `json:"with_source,omitempty"`
	Seq        int    `json:"seq,omitempty"`
}

// InstallRequest represents the arguments for project_install.
type InstallRequest struct {
	Name     string   `json:"name"`
	Packages []string `json:"packages"`
}

// RecreateRequest represents the arguments for project_recreate.
type RecreateRequest struct {
	Name string `json:"name"`
}

// DeleteRequest represents the arguments for project_delete.
type DeleteRequest struct {
	Name      string `json:"name"`
	KeepFiles bool   `json:"keep_files,omitempty"`
}

// ExportRequest represents the arguments for project_export.
type ExportRequest struct {
	Name string `json:"name"`
	Dest string `json:"dest,omitempty"`
}

// Handler implementations

// HandleCreate handles the project_create tool call.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Create(ctx, h.deps, ops.CreateInput{Name: input.Name})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBuild handles the project_build tool call.
func (h *Handlers) HandleBuild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BuildRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Build(ctx, h.deps, ops.BuildInput{
		Name:   input.Name,
		Prompt: input.Prompt,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCancel handles the project_cancel tool call.
func (h *Handlers) HandleCancel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CancelRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := ops.CancelBuild(h.deps, input.Name); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"cancelled": true, "name": input.Name})
}

// HandleRun handles the project_run tool call.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Run(ctx, h.deps, ops.RunInput{
		Name:        input.Name,
		TimeoutSecs: input.TimeoutSecs,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleList handles the project_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.List(ctx, h.deps)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleShow handles the project_show tool call.
func (h *Handlers) HandleShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ShowRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Show(ctx, h.deps, ops.ShowInput{
		Name:       input.Name,
		WithSource: input.WithSource,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistory handles the project_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.History(ctx, h.deps, ops.HistoryInput{
		Name:       input.Name,
		WithSource: input.WithSource,
		Seq:        input.Seq,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleInstall handles the project_install tool call.
func (h *Handlers) HandleInstall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InstallRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Install(ctx, h.deps, ops.InstallInput{
		Name:     input.Name,
		Packages: input.Packages,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRecreate handles the project_recreate tool call.
func (h *Handlers) HandleRecreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Recreate(ctx, h.deps, ops.RecreateInput{Name: input.Name})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDelete handles the project_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(ctx, h.deps, ops.DeleteInput{
		Name:      input.Name,
		KeepFiles: input.KeepFiles,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles the project_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.deps, ops.ExportInput{
		Name: input.Name,
		Dest: input.Dest,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if forgeErr, ok := err.(*errors.ForgeError); ok {
		errorObj := map[string]any{
			"code":    forgeErr.Code,
			"message": forgeErr.Message,
			"status":  forgeErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if forgeErr.Code != errors.ErrInternal && forgeErr.Details != nil {
			errorObj["details"] = forgeErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
