// Package types 定义悬疑解说视频流水线的核心数据结构
package types

// ShotType 分镜类型
type ShotType string

const (
	// ShotCharacter 画面中出现角色
	ShotCharacter ShotType = "character"
	// ShotScene 空镜头（环境/氛围镜头，无角色）
	ShotScene ShotType = "scene"
)

// Segment 一段待配图的解说文本，带起止时间
type Segment struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Start float64 `json:"start"` // 秒
	End   float64 `json:"end"`   // 秒
}

// Duration 返回片段时长（秒）
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// CastMember 出场人物，appearance用于保证各分镜形象一致
type CastMember struct {
	Name       string `json:"name"`
	Appearance string `json:"appearance"` // 形象描述，直接用于图像提示词
	IsHost     bool   `json:"is_host"`    // 是否为解说人（由配置提供，不经提取）
}

// Shot 一个分镜，与Segment一一对应
type Shot struct {
	Index     int      `json:"index"`
	Duration  float64  `json:"duration"` // 秒
	Script    string   `json:"script"`   // 台词/字幕文本
	Type      ShotType `json:"type"`
	Prompt    string   `json:"prompt"`              // 图像提示词，合成前含[人名]占位符
	AssetRef  string   `json:"asset_ref,omitempty"` // 渲染成功后的图片路径
	RenderOK  bool     `json:"render_ok"`
	RenderErr string   `json:"render_err,omitempty"`
}

// StageStatus 流水线各阶段的状态，用于向用户区分真实数据与降级数据
type StageStatus string

const (
	// StatusAlignedFromAudio 时间轴来自语音识别，时间真实
	StatusAlignedFromAudio StageStatus = "aligned_from_audio"
	// StatusEstimatedFromText 时间轴按文本长度估算（降级）
	StatusEstimatedFromText StageStatus = "estimated_from_text"
	// StatusCastExtracted 人物列表由模型提取
	StatusCastExtracted StageStatus = "cast_extracted"
	// StatusCastUnavailable 人物提取失败，仅保留解说人（降级）
	StatusCastUnavailable StageStatus = "cast_unavailable"
	// StatusPlanned 分镜由模型规划
	StatusPlanned StageStatus = "planned"
	// StatusPlanFallback 分镜规划失败，全部使用合成提示词（降级）
	StatusPlanFallback StageStatus = "plan_fallback"
	// StatusPlanPartial 部分分镜缺失，缺失项使用合成提示词
	StatusPlanPartial StageStatus = "plan_partial"
)

// StageLog 阶段状态消息，通过broadcast推送给前端
type StageLog struct {
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	Type      string `json:"type"` // "info", "success", "degraded", "error"
	Timestamp string `json:"timestamp"`
}
