// Package storyboard 根据解说片段和人物名单规划分镜，
// 并将提示词中的人物占位符替换为完整形象描述
package storyboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mystery-narrator/pkg/tools/llm"
	"mystery-narrator/pkg/types"

	"go.uber.org/zap"
)

const planSystemPrompt = `你是一个悬疑解说视频的分镜师。给定编号的解说片段和人物名单，为每个片段设计一个画面。

要求：
1. 每个输入片段对应恰好一条输出，带上它的index
2. type取"character"（画面中出现名单人物）或"scene"（纯环境/空镜头）
3. final_prompt是英文的图像生成提示词；提到名单人物时必须用[人物名]占位符，绝对不要把人物的外貌描述写进提示词，占位符之外描述场景、光线、构图、氛围
4. 只返回JSON数组，格式：[{"index": 0, "type": "scene", "final_prompt": "..."}]
5. 不要添加任何解释`

// Planner 分镜规划器
type Planner struct {
	Client llm.Completer
	Logger *zap.Logger
}

// NewPlanner 创建分镜规划器
func NewPlanner(logger *zap.Logger, client llm.Completer) *Planner {
	return &Planner{
		Client: client,
		Logger: logger,
	}
}

// plannedShot 模型返回的单条分镜
type plannedShot struct {
	Index       int    `json:"index"`
	Type        string `json:"type"`
	FinalPrompt string `json:"final_prompt"`
}

// Plan 为每个片段生成一条分镜，输出数量与输入严格相等
// 模型漏掉的下标用合成提示词补齐，整次调用失败则全部合成
// 返回的status为StatusPlanned、StatusPlanPartial或StatusPlanFallback
func (p *Planner) Plan(ctx context.Context, segments []types.Segment, castNames []string, style, composition string) ([]types.Shot, types.StageStatus) {
	shots := make([]types.Shot, len(segments))
	for i, seg := range segments {
		shots[i] = types.Shot{
			Index:    i,
			Duration: seg.Duration(),
			Script:   seg.Text,
		}
	}
	if len(segments) == 0 {
		return shots, types.StatusPlanned
	}

	userPrompt := buildPlanPrompt(segments, castNames, style, composition)

	content, err := p.Client.Complete(ctx, planSystemPrompt, userPrompt)
	if err != nil {
		p.Logger.Warn("分镜规划调用失败，全部使用合成提示词", zap.Error(err))
		synthesizeAll(shots, segments, style)
		return shots, types.StatusPlanFallback
	}

	planned := parsePlannedShots(content)
	if planned == nil {
		p.Logger.Warn("分镜规划结果无法解析，全部使用合成提示词")
		synthesizeAll(shots, segments, style)
		return shots, types.StatusPlanFallback
	}

	// 严格按index回填，容忍模型乱序或缺项
	byIndex := make(map[int]plannedShot, len(planned))
	for _, ps := range planned {
		if ps.Index >= 0 && ps.Index < len(shots) {
			byIndex[ps.Index] = ps
		}
	}

	missing := 0
	for i := range shots {
		ps, ok := byIndex[i]
		if !ok || strings.TrimSpace(ps.FinalPrompt) == "" {
			shots[i].Type = types.ShotScene
			shots[i].Prompt = synthesizePrompt(style, segments[i].Text)
			missing++
			continue
		}
		shots[i].Type = parseShotType(ps.Type)
		shots[i].Prompt = strings.TrimSpace(ps.FinalPrompt)
	}

	if missing > 0 {
		p.Logger.Warn("分镜规划部分缺失，缺失项已合成",
			zap.Int("missing", missing),
			zap.Int("total", len(shots)))
		return shots, types.StatusPlanPartial
	}

	p.Logger.Info("分镜规划完成", zap.Int("shot_count", len(shots)))
	return shots, types.StatusPlanned
}

func buildPlanPrompt(segments []types.Segment, castNames []string, style, composition string) string {
	var b strings.Builder
	b.WriteString("人物名单：")
	if len(castNames) > 0 {
		b.WriteString(strings.Join(castNames, "、"))
	} else {
		b.WriteString("（无）")
	}
	b.WriteString("\n整体风格：")
	b.WriteString(style)
	if composition != "" {
		b.WriteString("\n构图要求：")
		b.WriteString(composition)
	}
	b.WriteString("\n\n解说片段：\n")
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d. %s\n", i, seg.Text)
	}
	b.WriteString("\n为每个片段设计画面。只返回JSON数组。")
	return b.String()
}

func parsePlannedShots(content string) []plannedShot {
	cleaned := llm.CleanResponse(content)

	if arr, ok := llm.ExtractJSONArray(cleaned); ok {
		var planned []plannedShot
		if err := json.Unmarshal([]byte(arr), &planned); err == nil {
			return planned
		}
	}

	if obj, ok := llm.ExtractJSONObject(cleaned); ok {
		var wrapper struct {
			Shots  []plannedShot `json:"shots"`
			Scenes []plannedShot `json:"scenes"`
		}
		if err := json.Unmarshal([]byte(obj), &wrapper); err == nil {
			switch {
			case len(wrapper.Shots) > 0:
				return wrapper.Shots
			case len(wrapper.Scenes) > 0:
				return wrapper.Scenes
			}
		}
	}

	return nil
}

func parseShotType(s string) types.ShotType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "character", "char", "人物":
		return types.ShotCharacter
	default:
		return types.ShotScene
	}
}

// synthesizePrompt 合成兜底提示词，保证任何片段至少有可渲染的画面
func synthesizePrompt(style, segmentText string) string {
	return style + ", scene depicting: " + segmentText
}

func synthesizeAll(shots []types.Shot, segments []types.Segment, style string) {
	for i := range shots {
		shots[i].Type = types.ShotScene
		shots[i].Prompt = synthesizePrompt(style, segments[i].Text)
	}
}
