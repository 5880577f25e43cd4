// Package workflow 串联解说视频流水线的各个阶段：
// 切分/对齐 → 人物提取 → 分镜规划 → 提示词合成 → 图像渲染 → 草稿打包
// 阶段严格按序执行，外部服务失败一律降级，只有空输入会中止
package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"mystery-narrator/pkg/broadcast"
	"mystery-narrator/pkg/capcut"
	"mystery-narrator/pkg/session"
	"mystery-narrator/pkg/tools/asr"
	"mystery-narrator/pkg/tools/cast"
	"mystery-narrator/pkg/tools/drawthings"
	"mystery-narrator/pkg/tools/llm"
	"mystery-narrator/pkg/tools/segmenter"
	"mystery-narrator/pkg/tools/storyboard"
	"mystery-narrator/pkg/types"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Transcriber 语音识别契约，便于测试注入
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]types.Segment, error)
}

// RunParams 一次运行的输入参数
type RunParams struct {
	Title        string
	Script       string // 解说文稿，与音频至少提供一个
	AudioPath    string // 解说音频路径
	SubtitlePath string // 已对齐的SRT字幕，提供时优先于音频识别
	Style        string // 全局风格约束
	Composition  string // 构图约束
	Host         types.CastMember
	OutputDir    string
	MaxChars     int // 文本切分的单段字符上限
}

// RunResult 一次运行的产出
type RunResult struct {
	Session   *session.Session
	DraftPath string
}

// Processor 流水线处理器，每次Run使用独立会话
type Processor struct {
	segmenter *segmenter.Segmenter
	asrTool   Transcriber
	extractor *cast.Extractor
	planner   *storyboard.Planner
	renderer  *drawthings.ShotRenderer
	packager  *capcut.Generator
	store     *session.Store
	logger    *zap.Logger
}

// NewProcessor 按配置装配各阶段工具
// store可为nil，此时不落运行记录
func NewProcessor(logger *zap.Logger, completer llm.Completer, store *session.Store) *Processor {
	dtClient := drawthings.NewDrawThingsClient(logger, "")
	return &Processor{
		segmenter: segmenter.NewSegmenter(),
		asrTool:   asr.NewClient(logger),
		extractor: cast.NewExtractor(logger, completer),
		planner:   storyboard.NewPlanner(logger, completer),
		renderer:  drawthings.NewShotRenderer(logger, dtClient),
		packager:  capcut.NewGenerator(logger),
		store:     store,
		logger:    logger,
	}
}

// NewProcessorWithTools 直接注入各阶段依赖，测试用
func NewProcessorWithTools(logger *zap.Logger, seg *segmenter.Segmenter, asrTool Transcriber,
	extractor *cast.Extractor, planner *storyboard.Planner,
	renderer *drawthings.ShotRenderer, packager *capcut.Generator, store *session.Store) *Processor {
	return &Processor{
		segmenter: seg,
		asrTool:   asrTool,
		extractor: extractor,
		planner:   planner,
		renderer:  renderer,
		packager:  packager,
		store:     store,
		logger:    logger,
	}
}

// Run 执行完整流水线
func (p *Processor) Run(ctx context.Context, params RunParams) (*RunResult, error) {
	if strings.TrimSpace(params.Script) == "" && params.AudioPath == "" && params.SubtitlePath == "" {
		return nil, fmt.Errorf("未提供解说文稿、音频或字幕，无法开始处理")
	}
	if params.OutputDir == "" {
		params.OutputDir = "output"
	}
	if params.Host.Name == "" {
		params.Host.Name = viper.GetString("host.name")
		params.Host.Appearance = viper.GetString("host.appearance")
	}
	params.Host.IsHost = true

	sess := session.New(params.Title, params.Script, params.AudioPath,
		params.Style, params.Composition, params.Host)

	var run *session.Run
	if p.store != nil {
		var err error
		run, err = p.store.CreateRun(sess)
		if err != nil {
			p.logger.Warn("创建运行记录失败，继续处理", zap.Error(err))
		} else {
			_ = p.store.UpdateRunStatus(run.ID, session.RunProcessing, "")
		}
	}

	result, err := p.runStages(ctx, sess, params, run)

	if p.store != nil && run != nil {
		if err != nil {
			_ = p.store.UpdateRunStatus(run.ID, session.RunFailed, err.Error())
		} else {
			_ = p.store.UpdateRunProgress(run.ID, sess)
			_ = p.store.UpdateRunStatus(run.ID, session.RunCompleted, "")
		}
	}

	return result, err
}

func (p *Processor) runStages(ctx context.Context, sess *session.Session, params RunParams, run *session.Run) (*RunResult, error) {
	// 1. 切分或对齐
	p.stageSegments(ctx, sess, params, run)
	if len(sess.Segments) == 0 {
		return nil, fmt.Errorf("切分阶段没有产出任何片段")
	}

	// 2. 人物提取
	p.stageCast(ctx, sess, run)

	// 3. 分镜规划
	start := time.Now()
	shots, planStatus := p.planner.Plan(ctx, sess.Segments, sess.RosterNames(), sess.Style, sess.Composition)
	sess.Shots = shots
	sess.PlanStatus = planStatus
	p.recordStage(run, "plan", planStatus, start)
	p.announce("plan", fmt.Sprintf("分镜规划完成，共%d条（%s）", len(shots), planStatus), stageTone(planStatus))

	// 4. 提示词合成
	sess.Shots = storyboard.Compose(sess.Shots, sess.Roster(), sess.Style)
	p.announce("compose", "提示词合成完成", "success")

	// 5. 图像渲染
	start = time.Now()
	imageDir := filepath.Join(params.OutputDir, sess.ID, "images")
	if err := p.renderer.RenderAll(ctx, sess.Shots, imageDir); err != nil {
		return nil, fmt.Errorf("渲染阶段中止: %w", err)
	}
	failed := 0
	for _, shot := range sess.Shots {
		if !shot.RenderOK {
			failed++
		}
	}
	if failed > 0 {
		p.recordStage(run, "render", types.StageStatus(fmt.Sprintf("failed=%d", failed)), start)
		p.announce("render", fmt.Sprintf("渲染完成，%d/%d失败已用占位图", failed, len(sess.Shots)), "degraded")
	} else {
		p.recordStage(run, "render", "rendered", start)
		p.announce("render", fmt.Sprintf("渲染完成，共%d张", len(sess.Shots)), "success")
	}

	// 6. 草稿打包
	start = time.Now()
	draftName := sess.Title
	if draftName == "" {
		draftName = "draft_" + sess.ID[:8]
	}
	zipPath, err := p.packager.GenerateDraft(sess.Shots, sess.AudioPath, filepath.Join(params.OutputDir, sess.ID), draftName)
	if err != nil {
		return nil, fmt.Errorf("草稿打包失败: %w", err)
	}
	sess.DraftPath = zipPath
	p.recordStage(run, "package", "packaged", start)
	p.announce("package", "剪映草稿已打包: "+zipPath, "success")

	return &RunResult{Session: sess, DraftPath: zipPath}, nil
}

// stageSegments 产出带时间的片段：字幕导入 > 语音识别 > 文本估时
// 前两者失败都降级到文本估时并明确告知用户
func (p *Processor) stageSegments(ctx context.Context, sess *session.Session, params RunParams, run *session.Run) {
	start := time.Now()

	if params.SubtitlePath != "" {
		segments, err := capcut.ImportSubtitleSegments(params.SubtitlePath)
		if err == nil {
			sess.Segments = asr.SubdivideLongSegments(segments, asr.MaxAlignedChars())
			sess.SegmentStatus = types.StatusAlignedFromAudio
			p.fillScriptFromSegments(sess)
			p.recordStage(run, "segment", sess.SegmentStatus, start)
			p.announce("segment", fmt.Sprintf("从字幕导入%d个片段", len(sess.Segments)), "success")
			return
		}
		p.logger.Warn("字幕导入失败，尝试其他时间来源", zap.Error(err))
	}

	if params.AudioPath != "" && p.asrTool != nil {
		asrCtx, cancel := stageContext(ctx, "asr.timeout_seconds", 120)
		segments, err := p.asrTool.Transcribe(asrCtx, params.AudioPath)
		cancel()
		if err == nil {
			sess.Segments = asr.SubdivideLongSegments(segments, asr.MaxAlignedChars())
			sess.SegmentStatus = types.StatusAlignedFromAudio
			p.fillScriptFromSegments(sess)
			p.recordStage(run, "segment", sess.SegmentStatus, start)
			p.announce("segment", fmt.Sprintf("音频对齐完成，共%d个片段", len(sess.Segments)), "success")
			return
		}
		p.logger.Warn("语音识别失败，降级到文本估时", zap.Error(err))
		p.announce("segment", "语音识别失败，改用文本估算时间轴", "degraded")
	}

	sess.Segments = p.segmenter.Segment(sess.Script, params.MaxChars)
	sess.SegmentStatus = types.StatusEstimatedFromText
	p.recordStage(run, "segment", sess.SegmentStatus, start)
	p.announce("segment", fmt.Sprintf("文本切分完成，共%d个片段（时间为估算值）", len(sess.Segments)), "info")
}

func (p *Processor) stageCast(ctx context.Context, sess *session.Session, run *session.Run) {
	start := time.Now()
	llmCtx, cancel := stageContext(ctx, "llm.timeout_seconds", 120)
	members := p.extractor.Extract(llmCtx, sess.Script)
	cancel()

	sess.Cast = members
	if len(members) == 0 {
		sess.CastStatus = types.StatusCastUnavailable
		p.announce("cast", "人物提取不可用，名单仅含解说人", "degraded")
	} else {
		sess.CastStatus = types.StatusCastExtracted
		p.announce("cast", fmt.Sprintf("提取到%d个人物", len(members)), "success")
	}
	p.recordStage(run, "cast", sess.CastStatus, start)
}

// fillScriptFromSegments 仅有音频输入时，把识别文本拼回文稿供人物提取使用
func (p *Processor) fillScriptFromSegments(sess *session.Session) {
	if strings.TrimSpace(sess.Script) != "" {
		return
	}
	texts := make([]string, len(sess.Segments))
	for i, seg := range sess.Segments {
		texts[i] = seg.Text
	}
	sess.Script = strings.Join(texts, "")
}

func (p *Processor) recordStage(run *session.Run, name string, status types.StageStatus, start time.Time) {
	if p.store == nil || run == nil {
		return
	}
	_ = p.store.RecordStage(run.ID, name, session.RunCompleted, string(status), time.Since(start))
}

func (p *Processor) announce(stage, msg, tone string) {
	p.logger.Info(msg, zap.String("stage", stage))
	if broadcast.GlobalBroadcastService != nil {
		broadcast.GlobalBroadcastService.SendStage(stage, msg, tone)
	}
}

func stageTone(status types.StageStatus) string {
	switch status {
	case types.StatusPlanned, types.StatusCastExtracted, types.StatusAlignedFromAudio:
		return "success"
	default:
		return "degraded"
	}
}

func stageContext(ctx context.Context, timeoutKey string, defaultSeconds int) (context.Context, context.CancelFunc) {
	seconds := viper.GetInt(timeoutKey)
	if seconds <= 0 {
		seconds = defaultSeconds
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}
