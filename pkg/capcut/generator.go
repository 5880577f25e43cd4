// Package capcut 把渲染完成的分镜、字幕和解说音频打包成剪映草稿压缩包
// 产物可直接导入桌面端剪映做最终剪辑
package capcut

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mystery-narrator/pkg/capcut/internal/srt"
	"mystery-narrator/pkg/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 草稿画布规格，竖屏短视频
const (
	canvasWidth  = 1080
	canvasHeight = 1920
	canvasFPS    = 30
)

// Generator 剪映草稿生成器
type Generator struct {
	Logger *zap.Logger
}

// NewGenerator 创建草稿生成器
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{Logger: logger}
}

// Timerange 微秒时间区间
type Timerange struct {
	Start    int64 `json:"start"`
	Duration int64 `json:"duration"`
}

// 素材定义，与剪映draft_content.json的materials字段对应
type videoMaterial struct {
	ID           string `json:"id"`
	Type         string `json:"type"` // photo
	MaterialName string `json:"material_name"`
	Path         string `json:"path"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     int64  `json:"duration"`
}

type audioMaterial struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // extract_music
	Name     string `json:"name"`
	Path     string `json:"path"`
	Duration int64  `json:"duration"`
}

type textMaterial struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"` // subtitle
	Content   string  `json:"content"`
	TextColor string  `json:"text_color"`
	FontSize  float64 `json:"font_size"`
}

type draftMaterials struct {
	Videos []videoMaterial `json:"videos"`
	Audios []audioMaterial `json:"audios"`
	Texts  []textMaterial  `json:"texts"`
}

type trackSegment struct {
	ID              string    `json:"id"`
	MaterialID      string    `json:"material_id"`
	SourceTimerange Timerange `json:"source_timerange"`
	TargetTimerange Timerange `json:"target_timerange"`
	Speed           float64   `json:"speed"`
	Volume          float64   `json:"volume"`
}

type draftTrack struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"` // video / text / audio
	Name     string         `json:"name"`
	Segments []trackSegment `json:"segments"`
}

type canvasConfig struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Ratio  string `json:"ratio"`
}

// DraftContent draft_content.json顶层结构
type DraftContent struct {
	ID           string         `json:"id"`
	Duration     int64          `json:"duration"`
	FPS          int            `json:"fps"`
	CanvasConfig canvasConfig   `json:"canvas_config"`
	Materials    draftMaterials `json:"materials"`
	Tracks       []draftTrack   `json:"tracks"`
}

// DraftMetaInfo draft_meta_info.json顶层结构
type DraftMetaInfo struct {
	DraftID       string `json:"draft_id"`
	DraftName     string `json:"draft_name"`
	DraftRootPath string `json:"draft_root_path"`
	Duration      int64  `json:"tm_duration"`
	CreateTime    int64  `json:"tm_draft_create"`
	ModifiedTime  int64  `json:"tm_draft_modified"`
}

// GenerateDraft 生成草稿目录并打包
// 图像轨按分镜时长累计排布，末段钳到音频总长，字幕轨与图像轨同步
// 返回压缩包路径
func (g *Generator) GenerateDraft(shots []types.Shot, audioPath, outputDir, draftName string) (string, error) {
	if len(shots) == 0 {
		return "", fmt.Errorf("没有可打包的分镜")
	}
	if draftName == "" {
		draftName = "draft_" + time.Now().Format("20060102_150405")
	}

	draftDir := filepath.Join(outputDir, draftName)
	mediaDir := filepath.Join(draftDir, "media")
	if err := os.MkdirAll(mediaDir, 0755); err != nil {
		return "", fmt.Errorf("创建草稿目录失败: %v", err)
	}

	totalDuration := totalMicros(shots)

	content := &DraftContent{
		ID:       uuid.New().String(),
		Duration: totalDuration,
		FPS:      canvasFPS,
		CanvasConfig: canvasConfig{
			Width:  canvasWidth,
			Height: canvasHeight,
			Ratio:  "9:16",
		},
	}

	videoTrack := draftTrack{ID: uuid.New().String(), Type: "video", Name: "视频轨道"}
	textTrack := draftTrack{ID: uuid.New().String(), Type: "text", Name: "字幕轨道"}

	// 图像与字幕按分镜时长累计排布
	var cursor int64
	var srtEntries []srt.SrtEntry
	for i, shot := range shots {
		duration := int64(shot.Duration * 1e6)
		end := cursor + duration
		if i == len(shots)-1 {
			// 末段钳到总时长，消除逐段取整的累计误差
			end = totalDuration
			duration = end - cursor
		}

		mediaName := fmt.Sprintf("%d.png", i+1)
		if shot.AssetRef != "" {
			if err := copyFile(shot.AssetRef, filepath.Join(mediaDir, mediaName)); err != nil {
				return "", fmt.Errorf("复制分镜图像失败: %v", err)
			}
		}

		vm := videoMaterial{
			ID:           uuid.New().String(),
			Type:         "photo",
			MaterialName: mediaName,
			Path:         filepath.Join("media", mediaName),
			Width:        canvasWidth,
			Height:       canvasHeight,
			Duration:     duration,
		}
		content.Materials.Videos = append(content.Materials.Videos, vm)
		videoTrack.Segments = append(videoTrack.Segments, trackSegment{
			ID:              uuid.New().String(),
			MaterialID:      vm.ID,
			SourceTimerange: Timerange{Start: 0, Duration: duration},
			TargetTimerange: Timerange{Start: cursor, Duration: duration},
			Speed:           1.0,
			Volume:          1.0,
		})

		tm := textMaterial{
			ID:        uuid.New().String(),
			Type:      "subtitle",
			Content:   shot.Script,
			TextColor: "#FFFFFF",
			FontSize:  5.0,
		}
		content.Materials.Texts = append(content.Materials.Texts, tm)
		textTrack.Segments = append(textTrack.Segments, trackSegment{
			ID:              uuid.New().String(),
			MaterialID:      tm.ID,
			TargetTimerange: Timerange{Start: cursor, Duration: duration},
			Speed:           1.0,
			Volume:          1.0,
		})

		srtEntries = append(srtEntries, srt.SrtEntry{
			ID:    i + 1,
			Start: cursor,
			End:   end,
			Text:  shot.Script,
		})

		cursor = end
	}
	content.Tracks = append(content.Tracks, videoTrack, textTrack)

	// 单条音频轨覆盖整个草稿
	// 音频缺失时只出图像和字幕轨，草稿仍可用
	if audioPath != "" {
		audioName := "audio" + strings.ToLower(filepath.Ext(audioPath))
		if err := copyFile(audioPath, filepath.Join(mediaDir, audioName)); err != nil {
			g.Logger.Warn("复制解说音频失败，草稿不含音频轨",
				zap.String("audio", audioPath),
				zap.Error(err))
		} else {
			am := audioMaterial{
				ID:       uuid.New().String(),
				Type:     "extract_music",
				Name:     audioName,
				Path:     filepath.Join("media", audioName),
				Duration: totalDuration,
			}
			content.Materials.Audios = append(content.Materials.Audios, am)
			content.Tracks = append(content.Tracks, draftTrack{
				ID:   uuid.New().String(),
				Type: "audio",
				Name: "音频轨道",
				Segments: []trackSegment{{
					ID:              uuid.New().String(),
					MaterialID:      am.ID,
					SourceTimerange: Timerange{Start: 0, Duration: totalDuration},
					TargetTimerange: Timerange{Start: 0, Duration: totalDuration},
					Speed:           1.0,
					Volume:          1.0,
				}},
			})
		}
	}

	if err := writeJSON(filepath.Join(draftDir, "draft_content.json"), content); err != nil {
		return "", err
	}

	now := time.Now().Unix()
	meta := &DraftMetaInfo{
		DraftID:       content.ID,
		DraftName:     draftName,
		DraftRootPath: draftName,
		Duration:      totalDuration,
		CreateTime:    now,
		ModifiedTime:  now,
	}
	if err := writeJSON(filepath.Join(draftDir, "draft_meta_info.json"), meta); err != nil {
		return "", err
	}

	if err := srt.WriteSrtFile(filepath.Join(draftDir, draftName+".srt"), srtEntries); err != nil {
		return "", fmt.Errorf("写出字幕文件失败: %v", err)
	}

	zipPath := filepath.Join(outputDir, draftName+".zip")
	if err := zipDir(draftDir, zipPath); err != nil {
		return "", fmt.Errorf("打包草稿失败: %v", err)
	}

	g.Logger.Info("剪映草稿打包完成",
		zap.String("zip", zipPath),
		zap.Int("shot_count", len(shots)),
		zap.Int64("duration_us", totalDuration))

	return zipPath, nil
}

// ImportSubtitleSegments 从已有SRT字幕导入带时间戳的解说片段
// 用于复用外部工具已对齐好的字幕
func ImportSubtitleSegments(srtPath string) ([]types.Segment, error) {
	entries, err := srt.ParseSrtFile(srtPath)
	if err != nil {
		return nil, fmt.Errorf("解析字幕文件失败: %v", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("字幕文件不含任何条目")
	}

	segments := make([]types.Segment, 0, len(entries))
	for i, entry := range entries {
		segments = append(segments, types.Segment{
			Index: i,
			Text:  strings.ReplaceAll(entry.Text, "\n", " "),
			Start: float64(entry.Start) / 1e6,
			End:   float64(entry.End) / 1e6,
		})
	}
	return segments, nil
}

func totalMicros(shots []types.Shot) int64 {
	var total float64
	for _, s := range shots {
		total += s.Duration
	}
	return int64(total * 1e6)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化%s失败: %v", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入%s失败: %v", filepath.Base(path), err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// zipDir 把草稿目录打成zip，条目路径以草稿名为根
func zipDir(dir, zipPath string) error {
	zf, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer zf.Close()

	zw := zip.NewWriter(zf)
	defer zw.Close()

	base := filepath.Base(dir)
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(filepath.Join(base, rel)))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
}
