package asr

import (
	"strings"

	"mystery-narrator/pkg/types"

	"github.com/spf13/viper"
)

// DefaultMaxAlignedChars 识别片段超过该字符数时按句读细分
const DefaultMaxAlignedChars = 18

// MaxAlignedChars 字幕单段字符上限，可通过配置调整
func MaxAlignedChars() int {
	if v := viper.GetInt("aligner.max_segment_chars"); v > 0 {
		return v
	}
	return DefaultMaxAlignedChars
}

// SubdivideLongSegments 把过长的识别片段按标点切小，
// 时间在子片段间按字符数比例分摊，总时长不变
func SubdivideLongSegments(segments []types.Segment, maxChars int) []types.Segment {
	if maxChars <= 0 {
		maxChars = DefaultMaxAlignedChars
	}

	var out []types.Segment
	for _, seg := range segments {
		runes := []rune(seg.Text)
		if len(runes) <= maxChars {
			out = append(out, seg)
			continue
		}
		for _, piece := range splitProportional(seg, maxChars) {
			out = append(out, piece)
		}
	}

	for i := range out {
		out[i].Index = i
	}
	return out
}

// splitProportional 切分单个片段并按字符占比分配时间
func splitProportional(seg types.Segment, maxChars int) []types.Segment {
	parts := splitByPunct(seg.Text, maxChars)
	if len(parts) <= 1 {
		return []types.Segment{seg}
	}

	total := 0
	for _, p := range parts {
		total += len([]rune(p))
	}
	if total == 0 {
		return []types.Segment{seg}
	}

	span := seg.End - seg.Start
	out := make([]types.Segment, 0, len(parts))
	cursor := seg.Start
	for i, p := range parts {
		share := span * float64(len([]rune(p))) / float64(total)
		end := cursor + share
		if i == len(parts)-1 {
			// 末段对齐到原片段终点，避免浮点累积误差
			end = seg.End
		}
		out = append(out, types.Segment{
			Text:  p,
			Start: cursor,
			End:   end,
		})
		cursor = end
	}
	return out
}

// splitByPunct 按句读把文本切成不超过maxChars的块，
// 优先在标点处断开，实在没有标点就硬切
func splitByPunct(text string, maxChars int) []string {
	runes := []rune(text)
	var parts []string
	var buf []rune

	flush := func() {
		if len(strings.TrimSpace(string(buf))) > 0 {
			parts = append(parts, string(buf))
		}
		buf = buf[:0]
	}

	for _, r := range runes {
		buf = append(buf, r)
		if isBreakRune(r) && len(buf) >= maxChars/2 {
			flush()
			continue
		}
		if len(buf) >= maxChars {
			flush()
		}
	}
	flush()
	return parts
}

func isBreakRune(r rune) bool {
	switch r {
	case '，', '。', '！', '？', '；', '、', ',', '.', '!', '?', ';', ' ':
		return true
	}
	return false
}
