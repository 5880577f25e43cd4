// Package mcp 把解说视频流水线以MCP工具的形式暴露给外部客户端
package mcp

import (
	"context"

	"mystery-narrator/pkg/tools/llm"
	"mystery-narrator/pkg/workflow"

	mcp_server "github.com/mark3labs/mcp-go/server"

	"go.uber.org/zap"
)

type Server struct {
	server    *mcp_server.MCPServer
	processor *workflow.Processor
	logger    *zap.Logger
	handler   *Handler
}

func NewServer(processor *workflow.Processor, completer llm.Completer, logger *zap.Logger) (*Server, error) {
	mcpServer := mcp_server.NewMCPServer(
		"mystery-narrator-server",
		"1.0.0",
		mcp_server.WithToolCapabilities(true),
		mcp_server.WithRecovery(),
	)

	s := &Server{
		server:    mcpServer,
		processor: processor,
		logger:    logger,
	}

	s.handler = NewHandler(s.server, processor, completer, logger)
	s.handler.RegisterTools()

	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	// 标准输入输出上服务MCP协议
	if err := mcp_server.ServeStdio(s.server); err != nil {
		s.logger.Error("Failed to start MCP server", zap.Error(err))
		return err
	}
	return nil
}

func (s *Server) GetToolNames() []string {
	return s.handler.GetToolNames()
}

// GetHandler 返回处理器，用于直接调用工具（用于测试和内部调用）
func (s *Server) GetHandler() *Handler {
	return s.handler
}
