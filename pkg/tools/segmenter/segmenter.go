// Package segmenter 将原始解说文本切分为限长的口播片段
// 无音频时间轴时使用，时长按字数估算
package segmenter

import (
	"strings"
	"unicode/utf8"

	"mystery-narrator/pkg/types"

	"github.com/spf13/viper"
)

const (
	defaultMaxChars       = 40
	defaultMinDuration    = 2.5 // 秒，保证字幕可读
	defaultSecondsPerChar = 0.2 // 密集解说的语速估算
)

// Segmenter 文本切分器
type Segmenter struct {
	MinDuration    float64
	SecondsPerChar float64
}

// NewSegmenter 创建文本切分器，参数优先读取配置
func NewSegmenter() *Segmenter {
	s := &Segmenter{
		MinDuration:    defaultMinDuration,
		SecondsPerChar: defaultSecondsPerChar,
	}
	if v := viper.GetFloat64("segmenter.min_duration"); v > 0 {
		s.MinDuration = v
	}
	if v := viper.GetFloat64("segmenter.seconds_per_char"); v > 0 {
		s.SecondsPerChar = v
	}
	return s
}

// isSentenceEnd 判断是否为句末标点（中英文）
func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '…', '.', '!', '?', ';', '\n':
		return true
	}
	return false
}

// Segment 将文本按句末标点和最大字数切分为顺序片段
// 起止时间按估算时长累加，空输入返回空列表
func (s *Segmenter) Segment(text string, maxChars int) []types.Segment {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}

	var segments []types.Segment
	var buf strings.Builder
	bufRunes := 0
	offset := 0.0

	flush := func() {
		raw := buf.String()
		buf.Reset()
		bufRunes = 0
		if strings.TrimSpace(raw) == "" {
			// 纯空白不单独成段，留给下一段开头
			buf.WriteString(raw)
			bufRunes = utf8.RuneCountInString(raw)
			return
		}
		dur := float64(utf8.RuneCountInString(raw)) * s.SecondsPerChar
		if dur < s.MinDuration {
			dur = s.MinDuration
		}
		segments = append(segments, types.Segment{
			Index: len(segments),
			Text:  raw,
			Start: offset,
			End:   offset + dur,
		})
		offset += dur
	}

	for _, r := range text {
		if r == '\n' {
			// 换行本身不计入台词
			flush()
			continue
		}
		buf.WriteRune(r)
		bufRunes++
		if isSentenceEnd(r) || bufRunes >= maxChars {
			flush()
		}
	}

	// 末尾无标点的残段照常输出
	flush()

	return segments
}
