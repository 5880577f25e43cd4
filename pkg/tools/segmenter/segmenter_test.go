package segmenter

import (
	"math"
	"strings"
	"testing"
)

// TestSegmentEnglishSentences 测试英文句子切分与时长估算
func TestSegmentEnglishSentences(t *testing.T) {
	s := &Segmenter{MinDuration: 2.5, SecondsPerChar: 0.2}

	text := "The man opened the door. Blood stained the floor."
	segments := s.Segment(text, 40)

	if len(segments) != 2 {
		t.Fatalf("期望切分为2段，实际 %d 段", len(segments))
	}

	if segments[0].Text != "The man opened the door." {
		t.Errorf("第一段文本错误: %q", segments[0].Text)
	}
	if segments[1].Text != " Blood stained the floor." {
		t.Errorf("第二段文本错误: %q", segments[1].Text)
	}

	// 第一段24字符 * 0.2 = 4.8秒
	if math.Abs(segments[0].Duration()-4.8) > 1e-9 {
		t.Errorf("第一段时长错误: %f", segments[0].Duration())
	}

	// 起止时间连续累加
	if segments[0].Start != 0 {
		t.Errorf("首段起始时间应为0: %f", segments[0].Start)
	}
	if math.Abs(segments[1].Start-segments[0].End) > 1e-9 {
		t.Errorf("片段时间不连续: %f != %f", segments[1].Start, segments[0].End)
	}

	// 拼接后应还原原文
	var joined strings.Builder
	for _, seg := range segments {
		joined.WriteString(seg.Text)
	}
	if joined.String() != text {
		t.Errorf("拼接结果与原文不一致: %q", joined.String())
	}
}

// TestSegmentChinesePunctuation 测试中文标点切分
func TestSegmentChinesePunctuation(t *testing.T) {
	s := &Segmenter{MinDuration: 2.5, SecondsPerChar: 0.2}

	text := "深夜的旅馆走廊空无一人。谁在敲门？没有人回答！"
	segments := s.Segment(text, 40)

	if len(segments) != 3 {
		t.Fatalf("期望切分为3段，实际 %d 段", len(segments))
	}
	if segments[0].Text != "深夜的旅馆走廊空无一人。" {
		t.Errorf("第一段文本错误: %q", segments[0].Text)
	}
	if segments[2].Text != "没有人回答！" {
		t.Errorf("第三段文本错误: %q", segments[2].Text)
	}

	// 短句时长不低于下限
	if segments[2].Duration() < 2.5 {
		t.Errorf("短句时长低于下限: %f", segments[2].Duration())
	}
}

// TestSegmentMaxChars 测试超长无标点文本按最大字数强制切分
func TestSegmentMaxChars(t *testing.T) {
	s := &Segmenter{MinDuration: 2.5, SecondsPerChar: 0.2}

	text := strings.Repeat("a", 100)
	segments := s.Segment(text, 30)

	if len(segments) != 4 {
		t.Fatalf("期望切分为4段(30+30+30+10)，实际 %d 段", len(segments))
	}
	total := 0
	for _, seg := range segments {
		total += len(seg.Text)
	}
	if total != 100 {
		t.Errorf("切分后字符总数错误: %d", total)
	}
}

// TestSegmentTrailingFragment 测试末尾无标点残段仍然输出
func TestSegmentTrailingFragment(t *testing.T) {
	s := &Segmenter{MinDuration: 2.5, SecondsPerChar: 0.2}

	segments := s.Segment("他低头看了一眼。门缝下有一张纸条", 40)
	if len(segments) != 2 {
		t.Fatalf("期望切分为2段，实际 %d 段", len(segments))
	}
	if segments[1].Text != "门缝下有一张纸条" {
		t.Errorf("残段文本错误: %q", segments[1].Text)
	}
}

// TestSegmentEmptyInput 测试空输入返回空列表
func TestSegmentEmptyInput(t *testing.T) {
	s := &Segmenter{MinDuration: 2.5, SecondsPerChar: 0.2}

	if got := s.Segment("", 40); len(got) != 0 {
		t.Errorf("空输入应返回空列表，实际 %d 段", len(got))
	}
	if got := s.Segment("   \n  ", 40); len(got) != 0 {
		t.Errorf("纯空白输入应返回空列表，实际 %d 段", len(got))
	}
}

// TestSegmentIndexOrder 测试片段Index连续递增
func TestSegmentIndexOrder(t *testing.T) {
	s := &Segmenter{MinDuration: 2.5, SecondsPerChar: 0.2}

	segments := s.Segment("一。二。三。四。五。", 40)
	for i, seg := range segments {
		if seg.Index != i {
			t.Errorf("第%d段Index错误: %d", i, seg.Index)
		}
	}
}
