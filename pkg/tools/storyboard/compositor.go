package storyboard

import (
	"strings"

	"mystery-narrator/pkg/types"
)

// 提示词权重，人物描述权重高于全局风格
const (
	appearanceWeight = "1.3"
	styleWeight      = "1.2"
)

// Compose 把提示词中的[人物名]占位符替换为对应形象描述并加权重，
// 再确保每条提示词都带全局风格标记
// 纯字符串变换，无副作用，重复调用结果不变
func Compose(shots []types.Shot, cast []types.CastMember, style string) []types.Shot {
	out := make([]types.Shot, len(shots))
	copy(out, shots)

	styleMarker := "(" + style + ":" + styleWeight + ")"

	for i := range out {
		prompt := out[i].Prompt
		for _, member := range cast {
			token := "[" + member.Name + "]"
			if member.Appearance == "" {
				continue
			}
			replacement := "(" + member.Appearance + ":" + appearanceWeight + ")"
			prompt = strings.ReplaceAll(prompt, token, replacement)
		}
		// 名单之外的占位符原样保留，图像模型会按字面渲染，可见但不致命
		if style != "" && !strings.Contains(prompt, styleMarker) {
			prompt = styleMarker + ", " + prompt
		}
		out[i].Prompt = prompt
	}
	return out
}
