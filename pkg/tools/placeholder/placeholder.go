// Package placeholder 在图像服务不可用时生成占位卡片，
// 保证降级模式下每个分镜仍有可用画面
package placeholder

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/image/font"
)

// Generator 占位图生成器
type Generator struct {
	logger *zap.Logger
}

// NewGenerator 创建占位图生成器
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger}
}

// Draw 生成一张深色占位卡片，居中显示分镜文案
func (g *Generator) Draw(script, outputFile string, width, height int) error {
	if width <= 0 {
		width = 1080
	}
	if height <= 0 {
		height = 1920
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %v", err)
	}

	dc := gg.NewContext(width, height)

	// 深色底配暗角，贴合悬疑氛围
	dc.SetColor(color.RGBA{R: 18, G: 18, B: 24, A: 255})
	dc.Clear()
	dc.SetColor(color.RGBA{R: 40, G: 40, B: 56, A: 90})
	dc.DrawCircle(float64(width)/2, float64(height)/2, float64(height)/2.2)
	dc.Fill()

	fontSize := float64(width) / 18
	g.applyFont(dc, fontSize)

	dc.SetRGB(1, 1, 1)
	dc.DrawStringWrapped(script,
		float64(width)/2, float64(height)/2,
		0.5, 0.5,
		float64(width)*0.8, 1.6,
		gg.AlignCenter)

	if err := dc.SavePNG(outputFile); err != nil {
		return fmt.Errorf("保存占位图失败: %v", err)
	}

	g.logger.Info("占位图生成完成", zap.String("file", outputFile))
	return nil
}

// applyFont 优先加载配置的中文字体，失败则用gg默认字体
func (g *Generator) applyFont(dc *gg.Context, size float64) {
	fontPath := viper.GetString("image.font_path")
	if fontPath != "" {
		if fontBytes, err := os.ReadFile(fontPath); err == nil {
			if parsedFont, err := truetype.Parse(fontBytes); err == nil {
				var face font.Face = truetype.NewFace(parsedFont, &truetype.Options{Size: size})
				dc.SetFontFace(face)
				return
			}
		}
		g.logger.Warn("加载字体失败，使用默认字体", zap.String("font", fontPath))
	}
}
