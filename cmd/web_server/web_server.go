// Package web_server 提供流水线的Web操作界面：
// 发起运行、查询运行记录、上传素材，并通过WebSocket实时推送阶段日志
package web_server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mystery-narrator/pkg/broadcast"
	"mystery-narrator/pkg/session"
	"mystery-narrator/pkg/types"
	"mystery-narrator/pkg/workflow"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 本地工具，允许所有来源
	},
}

// runRequest 发起一次运行的请求体
type runRequest struct {
	Title          string `json:"title"`
	Script         string `json:"script"`
	AudioPath      string `json:"audio_path"`
	SubtitlePath   string `json:"subtitle_path"`
	Style          string `json:"style"`
	Composition    string `json:"composition"`
	HostName       string `json:"host_name"`
	HostAppearance string `json:"host_appearance"`
	MaxChars       int    `json:"max_chars"`
}

// Server Web服务器，持有流水线处理器与运行记录存储
type Server struct {
	processor *workflow.Processor
	store     *session.Store
	logger    *zap.Logger
	inputDir  string
	outputDir string
	runMu     sync.Mutex // 同一时间只允许一条流水线在跑
}

// StartServer 启动Web服务器，阻塞直到ctx取消或监听失败
func StartServer(ctx context.Context, logger *zap.Logger, processor *workflow.Processor, store *session.Store) error {
	s := &Server{
		processor: processor,
		store:     store,
		logger:    logger,
		inputDir:  "input",
		outputDir: "output",
	}

	for _, dir := range []string{s.inputDir, s.outputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败 %s: %w", dir, err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleIndex)
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	{
		api.POST("/runs", s.handleCreateRun)
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:session_id", s.handleGetRun)
		api.POST("/upload", s.handleUpload)
		api.GET("/files", s.handleListFiles)
	}

	// 产物目录直接静态托管，方便下载草稿压缩包
	r.Static("/files/output", s.outputDir)
	r.Static("/files/input", s.inputDir)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	logger.Info("Web服务器启动", zap.String("addr", srv.Addr))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, indexHTML)
}

// handleWebSocket 把阶段日志实时推给页面
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("WebSocket升级失败", zap.Error(err))
		return
	}

	svc := broadcast.GlobalBroadcastService
	if svc == nil {
		conn.Close()
		return
	}
	client := svc.RegisterClient(conn)

	// 写协程：把广播消息推给该客户端
	go func() {
		defer conn.Close()
		for msg := range client.Send {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}()

	// 读循环只用于感知连接关闭
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			svc.UnregisterClient(client)
			return
		}
	}
}

// handleCreateRun 同步执行一次完整流水线
func (s *Server) handleCreateRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体解析失败: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Script) == "" && strings.TrimSpace(req.AudioPath) == "" && strings.TrimSpace(req.SubtitlePath) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "script、audio_path、subtitle_path至少提供一个"})
		return
	}

	if !s.runMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "已有流水线在运行中，请稍后再试"})
		return
	}
	defer s.runMu.Unlock()

	params := workflow.RunParams{
		Title:        req.Title,
		Script:       req.Script,
		AudioPath:    s.resolveInputPath(req.AudioPath),
		SubtitlePath: s.resolveInputPath(req.SubtitlePath),
		Style:        req.Style,
		Composition:  req.Composition,
		Host: types.CastMember{
			Name:       req.HostName,
			Appearance: req.HostAppearance,
			IsHost:     true,
		},
		OutputDir: s.outputDir,
		MaxChars:  req.MaxChars,
	}

	result, err := s.processor.Run(c.Request.Context(), params)
	if err != nil {
		s.logger.Error("流水线执行失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sess := result.Session
	c.JSON(http.StatusOK, gin.H{
		"session_id":     sess.ID,
		"title":          sess.Title,
		"segment_count":  len(sess.Segments),
		"cast_count":     len(sess.Cast),
		"shot_count":     len(sess.Shots),
		"segment_status": sess.SegmentStatus,
		"cast_status":    sess.CastStatus,
		"plan_status":    sess.PlanStatus,
		"draft_path":     result.DraftPath,
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []session.Run{}})
		return
	}
	runs, err := s.store.ListRuns(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "未启用运行记录存储"})
		return
	}
	run, err := s.store.GetRunBySessionID(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "运行记录不存在"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// handleUpload 上传音频或字幕到input目录
func (s *Server) handleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未找到上传文件: " + err.Error()})
		return
	}

	// 只取文件名部分，防止路径穿越
	name := filepath.Base(file.Filename)
	if name == "." || name == "/" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "非法文件名"})
		return
	}

	dst := filepath.Join(s.inputDir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存文件失败: " + err.Error()})
		return
	}

	s.logger.Info("文件上传成功", zap.String("path", dst))
	c.JSON(http.StatusOK, gin.H{"path": dst, "size": file.Size})
}

// handleListFiles 列出input或output目录的文件
func (s *Server) handleListFiles(c *gin.Context) {
	dir := c.DefaultQuery("dir", "input")
	var root string
	switch dir {
	case "input":
		root = s.inputDir
	case "output":
		root = s.outputDir
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "dir只能是input或output"})
		return
	}

	type fileInfo struct {
		Name    string `json:"name"`
		Size    int64  `json:"size"`
		ModTime string `json:"mod_time"`
		IsDir   bool   `json:"is_dir"`
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	files := make([]fileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime().Format("2006-01-02 15:04:05"),
			IsDir:   entry.IsDir(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"dir": dir, "files": files})
}

// resolveInputPath 相对路径视为input目录下的文件
func (s *Server) resolveInputPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return filepath.Join(s.inputDir, p)
}
