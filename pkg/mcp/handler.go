package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcp "github.com/mark3labs/mcp-go/mcp"
	mcp_server "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"mystery-narrator/pkg/capcut"
	"mystery-narrator/pkg/tools/cast"
	"mystery-narrator/pkg/tools/llm"
	"mystery-narrator/pkg/tools/segmenter"
	"mystery-narrator/pkg/tools/storyboard"
	"mystery-narrator/pkg/types"
	"mystery-narrator/pkg/workflow"
)

// Handler processes MCP requests
type Handler struct {
	server    *mcp_server.MCPServer
	processor *workflow.Processor
	segmenter *segmenter.Segmenter
	extractor *cast.Extractor
	planner   *storyboard.Planner
	logger    *zap.Logger
	toolNames []string
}

// NewHandler creates a new handler
func NewHandler(server *mcp_server.MCPServer, processor *workflow.Processor, completer llm.Completer, logger *zap.Logger) *Handler {
	return &Handler{
		server:    server,
		processor: processor,
		segmenter: segmenter.NewSegmenter(),
		extractor: cast.NewExtractor(logger, completer),
		planner:   storyboard.NewPlanner(logger, completer),
		logger:    logger,
		toolNames: make([]string, 0),
	}
}

// RegisterTools registers all tools with the MCP server
func (h *Handler) RegisterTools() {
	processScriptTool := mcp.NewTool("process_script",
		mcp.WithDescription("Run the full mystery narration pipeline: segment, extract cast, plan shots, render images and package a CapCut draft"),
		mcp.WithString("script", mcp.Description("Narration script text")),
		mcp.WithString("audio_path", mcp.Description("Narration audio file path, used for speech alignment")),
		mcp.WithString("subtitle_path", mcp.Description("Pre-aligned SRT subtitle file path")),
		mcp.WithString("title", mcp.Description("Case/video title, used as draft name")),
		mcp.WithString("style", mcp.Description("Global visual style constraint")),
		mcp.WithString("composition", mcp.Description("Composition constraint")),
		mcp.WithString("host_name", mcp.Description("Narrator/host name")),
		mcp.WithString("host_appearance", mcp.Description("Narrator/host appearance prompt")),
		mcp.WithString("output_dir", mcp.Description("Output directory")),
	)
	h.server.AddTool(processScriptTool, h.handleProcessScript)
	h.toolNames = append(h.toolNames, "process_script")

	segmentScriptTool := mcp.NewTool("segment_script",
		mcp.WithDescription("Split narration text into bounded-length timed segments"),
		mcp.WithString("script", mcp.Required(), mcp.Description("Narration script text")),
		mcp.WithNumber("max_chars", mcp.Description("Maximum characters per segment")),
	)
	h.server.AddTool(segmentScriptTool, h.handleSegmentScript)
	h.toolNames = append(h.toolNames, "segment_script")

	extractCastTool := mcp.NewTool("extract_cast",
		mcp.WithDescription("Extract named visual entities (excluding the narrator) from a narration script"),
		mcp.WithString("script", mcp.Required(), mcp.Description("Narration script text")),
	)
	h.server.AddTool(extractCastTool, h.handleExtractCast)
	h.toolNames = append(h.toolNames, "extract_cast")

	planShotsTool := mcp.NewTool("plan_shots",
		mcp.WithDescription("Plan one image shot per segment and resolve cast placeholders into final prompts"),
		mcp.WithString("script", mcp.Required(), mcp.Description("Narration script text")),
		mcp.WithString("style", mcp.Required(), mcp.Description("Global visual style constraint")),
		mcp.WithString("composition", mcp.Description("Composition constraint")),
		mcp.WithString("host_name", mcp.Description("Narrator/host name")),
		mcp.WithString("host_appearance", mcp.Description("Narrator/host appearance prompt")),
	)
	h.server.AddTool(planShotsTool, h.handlePlanShots)
	h.toolNames = append(h.toolNames, "plan_shots")

	importSubtitlesTool := mcp.NewTool("import_subtitles",
		mcp.WithDescription("Import timed segments from an existing SRT subtitle file"),
		mcp.WithString("subtitle_path", mcp.Required(), mcp.Description("SRT subtitle file path")),
	)
	h.server.AddTool(importSubtitlesTool, h.handleImportSubtitles)
	h.toolNames = append(h.toolNames, "import_subtitles")

	h.logger.Info("MCP tools registered",
		zap.Int("tool_count", len(h.toolNames)))
}

// GetToolNames 返回已注册的工具名
func (h *Handler) GetToolNames() []string {
	return h.toolNames
}

// handleProcessScript runs the full pipeline
func (h *Handler) handleProcessScript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := workflow.RunParams{
		Script:       request.GetString("script", ""),
		AudioPath:    request.GetString("audio_path", ""),
		SubtitlePath: request.GetString("subtitle_path", ""),
		Title:        request.GetString("title", ""),
		Style:        request.GetString("style", ""),
		Composition:  request.GetString("composition", ""),
		OutputDir:    request.GetString("output_dir", ""),
		Host: types.CastMember{
			Name:       request.GetString("host_name", "Host"),
			Appearance: request.GetString("host_appearance", ""),
		},
	}

	result, err := h.processor.Run(ctx, params)
	if err != nil {
		h.logger.Error("Failed to process script", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to process script: %v", err)), nil
	}

	response := map[string]interface{}{
		"session_id":     result.Session.ID,
		"draft_path":     result.DraftPath,
		"segment_count":  len(result.Session.Segments),
		"cast_count":     len(result.Session.Cast),
		"shot_count":     len(result.Session.Shots),
		"segment_status": result.Session.SegmentStatus,
		"cast_status":    result.Session.CastStatus,
		"plan_status":    result.Session.PlanStatus,
	}
	return toolResultJSON(response)
}

// handleSegmentScript splits text into segments
func (h *Handler) handleSegmentScript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	script, err := request.RequireString("script")
	if err != nil {
		h.logger.Error("Missing script parameter", zap.Error(err))
		return mcp.NewToolResultError("Missing required parameter: script"), nil
	}

	maxChars := int(request.GetFloat("max_chars", 0))
	segments := h.segmenter.Segment(script, maxChars)
	return toolResultJSON(segments)
}

// handleExtractCast extracts cast members from a script
func (h *Handler) handleExtractCast(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	script, err := request.RequireString("script")
	if err != nil {
		h.logger.Error("Missing script parameter", zap.Error(err))
		return mcp.NewToolResultError("Missing required parameter: script"), nil
	}

	members := h.extractor.Extract(ctx, script)
	return toolResultJSON(map[string]interface{}{
		"cast":  members,
		"count": len(members),
	})
}

// handlePlanShots plans and composes shots for a script
func (h *Handler) handlePlanShots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	script, err := request.RequireString("script")
	if err != nil {
		h.logger.Error("Missing script parameter", zap.Error(err))
		return mcp.NewToolResultError("Missing required parameter: script"), nil
	}
	style, err := request.RequireString("style")
	if err != nil {
		h.logger.Error("Missing style parameter", zap.Error(err))
		return mcp.NewToolResultError("Missing required parameter: style"), nil
	}
	composition := request.GetString("composition", "")

	host := types.CastMember{
		Name:       request.GetString("host_name", "Host"),
		Appearance: request.GetString("host_appearance", ""),
		IsHost:     true,
	}

	segments := h.segmenter.Segment(script, 0)
	members := h.extractor.Extract(ctx, script)
	roster := append([]types.CastMember{host}, members...)

	names := make([]string, len(roster))
	for i, m := range roster {
		names[i] = m.Name
	}

	shots, status := h.planner.Plan(ctx, segments, names, style, composition)
	shots = storyboard.Compose(shots, roster, style)

	return toolResultJSON(map[string]interface{}{
		"shots":  shots,
		"status": status,
	})
}

// handleImportSubtitles imports timed segments from an SRT file
func (h *Handler) handleImportSubtitles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subtitlePath, err := request.RequireString("subtitle_path")
	if err != nil {
		h.logger.Error("Missing subtitle_path parameter", zap.Error(err))
		return mcp.NewToolResultError("Missing required parameter: subtitle_path"), nil
	}

	segments, err := capcut.ImportSubtitleSegments(subtitlePath)
	if err != nil {
		h.logger.Error("Failed to import subtitles", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to import subtitles: %v", err)), nil
	}
	return toolResultJSON(segments)
}

func toolResultJSON(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
