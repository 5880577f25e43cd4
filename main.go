package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"mystery-narrator/cmd/web_server"
	"mystery-narrator/pkg/broadcast"
	"mystery-narrator/pkg/mcp"
	"mystery-narrator/pkg/session"
	"mystery-narrator/pkg/tools/drawthings"
	"mystery-narrator/pkg/tools/llm"
	"mystery-narrator/pkg/workflow"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	fmt.Println("启动悬疑解说视频工作流系统...")

	// .env缺失不是错误，环境变量可以直接给
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("创建logger失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := loadConfig(logger); err != nil {
		logger.Fatal("读取配置文件失败", zap.Error(err))
	}

	// 检查外部服务可用性，不可用只警告，流水线自身会降级
	if unavailable := runSelfCheck(logger); len(unavailable) > 0 {
		fmt.Printf("⚠️  以下服务不可用: %v\n", unavailable)
		fmt.Println("相关阶段会自动降级，请按需启动服务后重试。")
	}

	store, err := session.NewStore()
	if err != nil {
		logger.Fatal("初始化运行记录存储失败", zap.Error(err))
	}
	defer store.Close()

	completer := llm.NewChatClient(logger,
		viper.GetString("llm.base_url"),
		os.Getenv("LLM_API_KEY"),
		viper.GetStringSlice("llm.models"),
	)

	processor := workflow.NewProcessor(logger, completer, store)

	mcpServer, err := mcp.NewServer(processor, completer, logger)
	if err != nil {
		logger.Fatal("创建MCP服务器失败", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 广播服务先于Web服务器启动，WebSocket客户端依赖它
	var wg sync.WaitGroup
	broadcast.GlobalBroadcastService = broadcast.NewBroadcastService()
	wg.Add(1)
	go broadcast.GlobalBroadcastService.Start(&wg)

	go func() {
		if err := web_server.StartServer(ctx, logger, processor, store); err != nil {
			logger.Error("Web服务器退出", zap.Error(err))
		}
	}()

	// MCP服务器走stdio，供AI代理调用
	go func() {
		if err := mcpServer.Start(ctx); err != nil {
			logger.Error("MCP服务器退出", zap.Error(err))
		}
	}()

	fmt.Println("MCP 服务器和 Web 服务器正在后台运行...")
	fmt.Println("- MCP 服务器: 供 AI 代理和其他客户端调用")
	fmt.Println("- Web 服务器: http://localhost:8080 供用户界面操作")
	fmt.Println("按 Ctrl+C 停止服务")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n正在关闭服务器...")
	cancel()
	broadcast.GlobalBroadcastService.Close()
	wg.Wait()
}

// loadConfig 加载配置文件，先找当前工作目录，再找可执行文件目录
func loadConfig(logger *zap.Logger) error {
	wd, _ := os.Getwd()
	configPath := filepath.Join(wd, "config.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		exe, exeErr := os.Executable()
		if exeErr != nil {
			return fmt.Errorf("无法获取可执行文件路径: %w", exeErr)
		}
		configPath = filepath.Join(filepath.Dir(exe), "config.yaml")
	}

	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		return err
	}
	logger.Info("配置文件加载成功", zap.String("path", configPath))
	return nil
}

// runSelfCheck 检查各项外部服务，返回不可用的服务名
func runSelfCheck(logger *zap.Logger) []string {
	fmt.Println("🔍 执行自检程序...")

	serviceChecks := []struct {
		name string
		fn   func() error
	}{
		{"LLM服务", checkLLM},
		{"DrawThings", func() error { return checkDrawThings(logger) }},
		{"语音识别服务", checkASR},
	}

	var unavailable []string
	for _, check := range serviceChecks {
		fmt.Printf("  📋 检查%s...", check.name)
		if err := check.fn(); err != nil {
			fmt.Printf(" ❌ (%v)\n", err)
			unavailable = append(unavailable, check.name)
		} else {
			fmt.Printf(" ✅\n")
		}
	}

	if len(unavailable) == 0 {
		fmt.Println("✅ 所有服务均正常")
	}
	return unavailable
}

// checkLLM 检查对话补全服务
func checkLLM() error {
	base := viper.GetString("llm.base_url")
	if base == "" {
		base = "http://localhost:11434/v1"
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(base + "/models")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("状态码: %d", resp.StatusCode)
	}
	return nil
}

// checkDrawThings 检查图像生成服务
func checkDrawThings(logger *zap.Logger) error {
	client := drawthings.NewDrawThingsClient(logger, "")
	if !client.APIAvailable {
		return fmt.Errorf("DrawThings API不可用")
	}
	return nil
}

// checkASR 检查语音识别服务
func checkASR() error {
	base := viper.GetString("asr.base_url")
	if base == "" {
		base = "http://localhost:8000/v1"
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(base + "/models")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("状态码: %d", resp.StatusCode)
	}
	return nil
}
