package drawthings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mystery-narrator/pkg/tools/placeholder"
	"mystery-narrator/pkg/types"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ImageBackend 文生图后端契约，便于测试注入
type ImageBackend interface {
	GenerateShotImage(ctx context.Context, prompt, outputFile string, width, height int) error
}

// ShotRenderer 按顺序逐张渲染分镜图
// 外部服务限速由限流器保证，单张失败只标记不中断
type ShotRenderer struct {
	Backend     ImageBackend
	Placeholder *placeholder.Generator
	Logger      *zap.Logger
	Limiter     *rate.Limiter
	MaxRetries  int
	Width       int
	Height      int
}

// NewShotRenderer 创建分镜渲染器，限速和重试次数从配置读取
func NewShotRenderer(logger *zap.Logger, backend ImageBackend) *ShotRenderer {
	rps := viper.GetFloat64("render.requests_per_second")
	if rps <= 0 {
		rps = 0.5
	}
	maxRetries := viper.GetInt("render.max_retries")
	if maxRetries <= 0 {
		maxRetries = 2
	}
	width := viper.GetInt("render.width")
	if width <= 0 {
		width = 1080
	}
	height := viper.GetInt("render.height")
	if height <= 0 {
		height = 1920
	}

	return &ShotRenderer{
		Backend:     backend,
		Placeholder: placeholder.NewGenerator(logger),
		Logger:      logger,
		Limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		MaxRetries:  maxRetries,
		Width:       width,
		Height:      height,
	}
}

// RenderAll 逐张渲染，就地更新每个分镜的AssetRef和渲染状态
// 已渲染成功且文件仍在的分镜会被跳过，重复调用可续跑
func (r *ShotRenderer) RenderAll(ctx context.Context, shots []types.Shot, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("创建图像输出目录失败: %v", err)
	}

	for i := range shots {
		if err := ctx.Err(); err != nil {
			return err
		}

		outputFile := filepath.Join(outputDir, fmt.Sprintf("%d.png", i+1))

		if shots[i].RenderOK && fileExists(shots[i].AssetRef) {
			r.Logger.Info("分镜已渲染，跳过", zap.Int("index", i))
			continue
		}

		err := r.renderOne(ctx, shots[i].Prompt, outputFile)
		if err != nil {
			r.Logger.Warn("分镜渲染失败，使用占位图",
				zap.Int("index", i),
				zap.Error(err))
			shots[i].RenderOK = false
			shots[i].RenderErr = err.Error()
			if pErr := r.Placeholder.Draw(shots[i].Script, outputFile, r.Width, r.Height); pErr != nil {
				r.Logger.Error("占位图生成失败", zap.Int("index", i), zap.Error(pErr))
				continue
			}
			shots[i].AssetRef = outputFile
			continue
		}

		shots[i].AssetRef = outputFile
		shots[i].RenderOK = true
		shots[i].RenderErr = ""
		r.Logger.Info("分镜渲染完成",
			zap.Int("index", i),
			zap.String("file", outputFile))
	}

	return nil
}

// renderOne 渲染单张，带限速和有限次重试
func (r *ShotRenderer) renderOne(ctx context.Context, prompt, outputFile string) error {
	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if err := r.Limiter.Wait(ctx); err != nil {
			return err
		}
		lastErr = r.Backend.GenerateShotImage(ctx, prompt, outputFile, r.Width, r.Height)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.Logger.Warn("渲染请求失败，准备重试",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}
	return lastErr
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
