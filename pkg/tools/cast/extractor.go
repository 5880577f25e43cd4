// Package cast 从解说文稿中提取出场人物及其形象描述
// 解说人不经提取，由配置提供并在工作流中置于名单首位
package cast

import (
	"context"
	"encoding/json"
	"strings"

	"mystery-narrator/pkg/tools/llm"
	"mystery-narrator/pkg/types"

	"go.uber.org/zap"
)

// 解说人同义词黑名单，命中的提取结果一律丢弃
// 防止模型无视排除指令把解说人也列进来
var hostSynonyms = []string{
	"narrator", "host", "旁白", "解说", "主持人", "叙述者", "讲述人",
}

const systemPrompt = `你是一个悬疑解说视频的选角助理。你的任务是从解说文稿中列出所有出场的视觉实体（受害者、嫌疑人、目击者、任何有名字或有明确描述的人物），但绝对不要包含解说人/旁白/叙述者本人。

要求：
1. 每个人物给出name（沿用文稿中的称呼）和appearance（英文的形象描述，可直接用作图像生成提示词片段，包含性别、年龄、衣着、神态等视觉细节）
2. 只返回JSON数组，格式：[{"name": "...", "appearance": "..."}]
3. 不要添加任何解释`

// Extractor 人物提取器
type Extractor struct {
	Client llm.Completer
	Logger *zap.Logger
}

// NewExtractor 创建人物提取器
func NewExtractor(logger *zap.Logger, client llm.Completer) *Extractor {
	return &Extractor{
		Client: client,
		Logger: logger,
	}
}

// rawMember 模型返回的人物条目，兼容几种常见字段名
type rawMember struct {
	Name             string `json:"name"`
	Appearance       string `json:"appearance"`
	AppearancePrompt string `json:"appearance_prompt"`
	Description      string `json:"description"`
}

func (m rawMember) appearance() string {
	if m.Appearance != "" {
		return m.Appearance
	}
	if m.AppearancePrompt != "" {
		return m.AppearancePrompt
	}
	return m.Description
}

// Extract 提取文稿中的出场人物（不含解说人）
// 任何失败都返回空名单而不是错误，流水线据此降级继续
func (e *Extractor) Extract(ctx context.Context, script string) []types.CastMember {
	userPrompt := "解说文稿如下：\n\n" + script + "\n\n请列出出场人物。只返回JSON数组，不要解释。"

	content, err := e.Client.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		e.Logger.Warn("人物提取调用失败，使用空名单继续", zap.Error(err))
		return nil
	}

	members := parseMembers(content)
	if members == nil {
		e.Logger.Warn("人物提取结果无法解析，使用空名单继续",
			zap.String("preview", preview(content, 120)))
		return nil
	}

	filtered := FilterHostSynonyms(members)
	e.Logger.Info("人物提取完成",
		zap.Int("raw_count", len(members)),
		zap.Int("kept_count", len(filtered)))

	return filtered
}

// parseMembers 解析模型回复，容忍代码围栏、推理块、数组或对象包装
func parseMembers(content string) []types.CastMember {
	cleaned := llm.CleanResponse(content)

	var raws []rawMember

	// 优先按裸数组解析
	if arr, ok := llm.ExtractJSONArray(cleaned); ok {
		if err := json.Unmarshal([]byte(arr), &raws); err == nil {
			return toMembers(raws)
		}
	}

	// 再尝试按对象包装解析
	if obj, ok := llm.ExtractJSONObject(cleaned); ok {
		var wrapper struct {
			Characters []rawMember `json:"characters"`
			Cast       []rawMember `json:"cast"`
			Members    []rawMember `json:"members"`
		}
		if err := json.Unmarshal([]byte(obj), &wrapper); err == nil {
			switch {
			case len(wrapper.Characters) > 0:
				return toMembers(wrapper.Characters)
			case len(wrapper.Cast) > 0:
				return toMembers(wrapper.Cast)
			case len(wrapper.Members) > 0:
				return toMembers(wrapper.Members)
			}
		}
	}

	return nil
}

func toMembers(raws []rawMember) []types.CastMember {
	members := make([]types.CastMember, 0, len(raws))
	for _, r := range raws {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			continue
		}
		members = append(members, types.CastMember{
			Name:       name,
			Appearance: strings.TrimSpace(r.appearance()),
		})
	}
	return members
}

// FilterHostSynonyms 丢弃名字命中解说人同义词的条目（大小写不敏感的子串匹配）
func FilterHostSynonyms(members []types.CastMember) []types.CastMember {
	var kept []types.CastMember
	for _, m := range members {
		lower := strings.ToLower(m.Name)
		blocked := false
		for _, syn := range hostSynonyms {
			if strings.Contains(lower, syn) {
				blocked = true
				break
			}
		}
		if !blocked {
			kept = append(kept, m)
		}
	}
	return kept
}

func preview(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
