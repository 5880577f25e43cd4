package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"mystery-narrator/pkg/session"
	"mystery-narrator/pkg/tools/llm"
	"mystery-narrator/pkg/types"
	"mystery-narrator/pkg/workflow"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// 命令行方式跑一次完整流水线：
//
//	go run cmd/process_script/main.go -script 文稿.txt -audio 解说.mp3 -style "写实电影感"
func main() {
	scriptPath := flag.String("script", "", "解说文稿文件路径")
	audioPath := flag.String("audio", "", "解说音频文件路径")
	subtitlePath := flag.String("srt", "", "已对齐的SRT字幕路径，提供时跳过语音识别")
	title := flag.String("title", "", "视频标题，默认取文稿文件名")
	style := flag.String("style", "", "画面风格约束")
	composition := flag.String("composition", "", "构图约束")
	hostName := flag.String("host", "", "主持人名称")
	hostAppearance := flag.String("host-appearance", "", "主持人形象描述")
	outputDir := flag.String("output", "output", "输出目录")
	flag.Parse()

	if *scriptPath == "" && *audioPath == "" && *subtitlePath == "" {
		fmt.Println("使用方法:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("创建logger失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	viper.SetConfigFile("config.yaml")
	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("配置文件未找到，使用默认配置", zap.Error(err))
	}

	var script string
	if *scriptPath != "" {
		content, err := os.ReadFile(*scriptPath)
		if err != nil {
			logger.Fatal("读取文稿文件失败", zap.String("path", *scriptPath), zap.Error(err))
		}
		script = string(content)
	}

	if *title == "" && *scriptPath != "" {
		base := filepath.Base(*scriptPath)
		*title = base[:len(base)-len(filepath.Ext(base))]
	}

	store, err := session.NewStore()
	if err != nil {
		logger.Warn("初始化运行记录存储失败，本次运行不落记录", zap.Error(err))
		store = nil
	} else {
		defer store.Close()
	}

	completer := llm.NewChatClient(logger,
		viper.GetString("llm.base_url"),
		os.Getenv("LLM_API_KEY"),
		viper.GetStringSlice("llm.models"),
	)

	processor := workflow.NewProcessor(logger, completer, store)

	result, err := processor.Run(context.Background(), workflow.RunParams{
		Title:        *title,
		Script:       script,
		AudioPath:    *audioPath,
		SubtitlePath: *subtitlePath,
		Style:        *style,
		Composition:  *composition,
		Host: types.CastMember{
			Name:       *hostName,
			Appearance: *hostAppearance,
			IsHost:     true,
		},
		OutputDir: *outputDir,
	})
	if err != nil {
		logger.Fatal("流水线执行失败", zap.Error(err))
	}

	sess := result.Session
	fmt.Println("处理完成:")
	fmt.Printf("  会话ID: %s\n", sess.ID)
	fmt.Printf("  分段数: %d (%s)\n", len(sess.Segments), sess.SegmentStatus)
	fmt.Printf("  人物数: %d (%s)\n", len(sess.Cast), sess.CastStatus)
	fmt.Printf("  分镜数: %d (%s)\n", len(sess.Shots), sess.PlanStatus)
	fmt.Printf("  草稿包: %s\n", result.DraftPath)
}
