package asr

import (
	"math"
	"testing"

	"mystery-narrator/pkg/types"
)

func TestSubdivideKeepsShortSegments(t *testing.T) {
	in := []types.Segment{
		{Index: 0, Text: "他走了。", Start: 0, End: 1.2},
		{Index: 1, Text: "门开着。", Start: 1.2, End: 2.4},
	}
	out := SubdivideLongSegments(in, 18)
	if len(out) != 2 {
		t.Fatalf("短片段不应被切分，期望2个，实际%d", len(out))
	}
	if out[0].Text != "他走了。" || out[1].Text != "门开着。" {
		t.Errorf("短片段文本不应改变: %v", out)
	}
}

func TestSubdivideSplitsLongSegment(t *testing.T) {
	text := "凌晨三点，值班保安巡查到仓库后门，发现锁链被人剪断，地上散落着几枚烟头。"
	in := []types.Segment{{Index: 0, Text: text, Start: 10.0, End: 20.0}}

	out := SubdivideLongSegments(in, 18)
	if len(out) < 2 {
		t.Fatalf("长片段应被切分，实际%d个", len(out))
	}

	// 时间应连续且首尾与原片段一致
	if out[0].Start != 10.0 {
		t.Errorf("首段起点应为10.0，实际%f", out[0].Start)
	}
	if out[len(out)-1].End != 20.0 {
		t.Errorf("末段终点应为20.0，实际%f", out[len(out)-1].End)
	}
	for i := 1; i < len(out); i++ {
		if math.Abs(out[i].Start-out[i-1].End) > 1e-9 {
			t.Errorf("片段%d与前段时间不连续: %f != %f", i, out[i].Start, out[i-1].End)
		}
	}

	// 时间按字符数比例分摊
	for _, seg := range out {
		expected := 10.0 * float64(len([]rune(seg.Text))) / float64(len([]rune(text)))
		if math.Abs(seg.Duration()-expected) > 0.5 {
			t.Errorf("片段%q时长%f偏离比例值%f过多", seg.Text, seg.Duration(), expected)
		}
	}
}

func TestSubdivideReindexes(t *testing.T) {
	in := []types.Segment{
		{Index: 0, Text: "短句。", Start: 0, End: 1},
		{Index: 1, Text: "这是一个非常非常长的句子，需要被切分成好几个更短的块才行。", Start: 1, End: 8},
		{Index: 2, Text: "结尾。", Start: 8, End: 9},
	}
	out := SubdivideLongSegments(in, 18)
	for i, seg := range out {
		if seg.Index != i {
			t.Errorf("片段下标应重排为%d，实际%d", i, seg.Index)
		}
	}
}

func TestSubdivideEmptyInput(t *testing.T) {
	out := SubdivideLongSegments(nil, 18)
	if len(out) != 0 {
		t.Errorf("空输入应返回空结果，实际%v", out)
	}
}
