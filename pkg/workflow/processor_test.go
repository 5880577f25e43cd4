package workflow

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"mystery-narrator/pkg/capcut"
	"mystery-narrator/pkg/tools/cast"
	"mystery-narrator/pkg/tools/drawthings"
	"mystery-narrator/pkg/tools/placeholder"
	"mystery-narrator/pkg/tools/segmenter"
	"mystery-narrator/pkg/tools/storyboard"
	"mystery-narrator/pkg/types"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// routingCompleter 按系统提示词区分选角和分镜两类调用
type routingCompleter struct {
	castResponse string
	planResponse string
	err          error
}

func (r *routingCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if strings.Contains(systemPrompt, "选角") {
		return r.castResponse, nil
	}
	return r.planResponse, nil
}

// failingTranscriber 永远失败的语音识别
type failingTranscriber struct{}

func (failingTranscriber) Transcribe(ctx context.Context, audioPath string) ([]types.Segment, error) {
	return nil, errors.New("dial tcp: connection refused")
}

// okBackend 总是成功落盘的文生图后端
type okBackend struct{}

func (okBackend) GenerateShotImage(ctx context.Context, prompt, outputFile string, width, height int) error {
	return os.WriteFile(outputFile, []byte("png"), 0644)
}

func newTestProcessor(completer *routingCompleter, asrTool Transcriber) *Processor {
	logger := zap.NewNop()
	renderer := &drawthings.ShotRenderer{
		Backend:     okBackend{},
		Placeholder: placeholder.NewGenerator(logger),
		Logger:      logger,
		Limiter:     rate.NewLimiter(rate.Inf, 1),
		MaxRetries:  1,
		Width:       64,
		Height:      64,
	}
	return NewProcessorWithTools(logger,
		segmenter.NewSegmenter(),
		asrTool,
		cast.NewExtractor(logger, completer),
		storyboard.NewPlanner(logger, completer),
		renderer,
		capcut.NewGenerator(logger),
		nil)
}

func testHost() types.CastMember {
	return types.CastMember{Name: "Host", Appearance: "a calm narrator in a dark study"}
}

func TestRunEmptyInput(t *testing.T) {
	p := newTestProcessor(&routingCompleter{}, nil)
	_, err := p.Run(context.Background(), RunParams{Host: testHost()})
	if err == nil {
		t.Fatal("空输入应返回校验错误")
	}
}

func TestRunFullPipeline(t *testing.T) {
	completer := &routingCompleter{
		castResponse: `[{"name": "李警官", "appearance": "a police officer in uniform"}]`,
		planResponse: `[{"index": 0, "type": "character", "final_prompt": "[李警官] examining the door"}, {"index": 1, "type": "scene", "final_prompt": "blood on the floor, dim light"}]`,
	}
	p := newTestProcessor(completer, nil)

	result, err := p.Run(context.Background(), RunParams{
		Title:     "case01",
		Script:    "The man opened the door. Blood stained the floor.",
		Style:     "dark suspense",
		Host:      testHost(),
		OutputDir: t.TempDir(),
		MaxChars:  40,
	})
	if err != nil {
		t.Fatal(err)
	}

	sess := result.Session
	if len(sess.Segments) != 2 {
		t.Fatalf("期望2个片段，实际%d", len(sess.Segments))
	}
	if sess.SegmentStatus != types.StatusEstimatedFromText {
		t.Errorf("纯文本输入状态应为%s，实际%s", types.StatusEstimatedFromText, sess.SegmentStatus)
	}
	if len(sess.Shots) != 2 {
		t.Fatalf("分镜数应与片段数一致，实际%d", len(sess.Shots))
	}
	if sess.CastStatus != types.StatusCastExtracted {
		t.Errorf("人物提取状态应为%s，实际%s", types.StatusCastExtracted, sess.CastStatus)
	}
	// 合成后占位符应被消除，风格标记已前置
	for i, shot := range sess.Shots {
		if strings.Contains(shot.Prompt, "[李警官]") {
			t.Errorf("分镜%d残留占位符: %q", i, shot.Prompt)
		}
		if !shot.RenderOK {
			t.Errorf("分镜%d应渲染成功", i)
		}
	}
	if result.DraftPath == "" {
		t.Fatal("应产出草稿压缩包")
	}
	if _, err := os.Stat(result.DraftPath); err != nil {
		t.Errorf("草稿压缩包应落盘: %v", err)
	}
}

func TestRunDegradedWhenAlignerFails(t *testing.T) {
	// 语音识别失败：必须降级到文本切分并标记降级状态，而不是崩溃
	completer := &routingCompleter{err: errors.New("llm down")}
	p := newTestProcessor(completer, failingTranscriber{})

	result, err := p.Run(context.Background(), RunParams{
		Title:     "case02",
		Script:    "旧仓库的铁门在深夜被人撬开。保安第二天才发现异常。",
		AudioPath: "/nonexistent/voice.mp3",
		Style:     "noir",
		Host:      testHost(),
		OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("对齐失败应降级而非报错: %v", err)
	}

	sess := result.Session
	if sess.SegmentStatus != types.StatusEstimatedFromText {
		t.Errorf("降级后状态应为%s，实际%s", types.StatusEstimatedFromText, sess.SegmentStatus)
	}
	if len(sess.Shots) == 0 {
		t.Fatal("降级模式仍应产出非空分镜列表")
	}
	if sess.CastStatus != types.StatusCastUnavailable {
		t.Errorf("提取失败状态应为%s，实际%s", types.StatusCastUnavailable, sess.CastStatus)
	}
	if sess.PlanStatus != types.StatusPlanFallback {
		t.Errorf("规划失败状态应为%s，实际%s", types.StatusPlanFallback, sess.PlanStatus)
	}
	for i, shot := range sess.Shots {
		if shot.Prompt == "" {
			t.Errorf("分镜%d提示词不应为空", i)
		}
	}
}

func TestRunAudioOnlyFillsScript(t *testing.T) {
	completer := &routingCompleter{
		castResponse: `[]`,
		planResponse: `[{"index": 0, "type": "scene", "final_prompt": "p0"}]`,
	}
	p := newTestProcessor(completer, stubTranscriber{segments: []types.Segment{
		{Index: 0, Text: "深夜的巷子空无一人。", Start: 0, End: 3.2},
	}})

	result, err := p.Run(context.Background(), RunParams{
		Title:     "case03",
		AudioPath: "/tmp/fake.mp3",
		Style:     "noir",
		Host:      testHost(),
		OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	sess := result.Session
	if sess.SegmentStatus != types.StatusAlignedFromAudio {
		t.Errorf("音频对齐状态应为%s，实际%s", types.StatusAlignedFromAudio, sess.SegmentStatus)
	}
	if sess.Script == "" {
		t.Error("仅音频输入时应把识别文本拼回文稿")
	}
}

type stubTranscriber struct {
	segments []types.Segment
}

func (s stubTranscriber) Transcribe(ctx context.Context, audioPath string) ([]types.Segment, error) {
	return s.segments, nil
}
