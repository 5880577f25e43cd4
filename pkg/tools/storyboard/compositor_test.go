package storyboard

import (
	"reflect"
	"strings"
	"testing"

	"mystery-narrator/pkg/types"
)

func sampleCast() []types.CastMember {
	return []types.CastMember{
		{Name: "Host", Appearance: "a calm male narrator in a dark study, dim lamp light", IsHost: true},
		{Name: "Officer Li", Appearance: "a middle-aged police officer in a navy uniform"},
	}
}

func TestComposeReplacesPlaceholders(t *testing.T) {
	shots := []types.Shot{
		{Prompt: "[Officer Li] kneeling beside the body, flashlight beam"},
	}
	out := Compose(shots, sampleCast(), "1980s Chinese town")

	if strings.Contains(out[0].Prompt, "[Officer Li]") {
		t.Errorf("匹配的占位符必须被消除，实际%q", out[0].Prompt)
	}
	if !strings.Contains(out[0].Prompt, "(a middle-aged police officer in a navy uniform:1.3)") {
		t.Errorf("形象描述应带1.3权重，实际%q", out[0].Prompt)
	}
}

func TestComposePrependsStyleMarker(t *testing.T) {
	shots := []types.Shot{{Prompt: "an empty alley at night"}}
	out := Compose(shots, nil, "1980s Chinese town")

	if !strings.HasPrefix(out[0].Prompt, "(1980s Chinese town:1.2), ") {
		t.Errorf("缺少风格标记时应前置加权标记，实际%q", out[0].Prompt)
	}
}

func TestComposeIdempotent(t *testing.T) {
	shots := []types.Shot{
		{Prompt: "[Host] speaking to camera, [Officer Li] in background"},
		{Prompt: "rain on a window"},
	}
	cast := sampleCast()

	once := Compose(shots, cast, "1980s Chinese town")
	twice := Compose(once, cast, "1980s Chinese town")

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("重复合成结果应完全一致\n一次: %v\n两次: %v", once, twice)
	}
	if strings.Count(twice[1].Prompt, "(1980s Chinese town:1.2)") != 1 {
		t.Errorf("风格标记不应重复前置，实际%q", twice[1].Prompt)
	}
}

func TestComposeLeavesUnknownPlaceholder(t *testing.T) {
	shots := []types.Shot{{Prompt: "[Mystery Man] in the doorway"}}
	out := Compose(shots, sampleCast(), "style")

	if !strings.Contains(out[0].Prompt, "[Mystery Man]") {
		t.Errorf("名单外占位符应原样保留，实际%q", out[0].Prompt)
	}
}

func TestComposeDoesNotMutateInput(t *testing.T) {
	shots := []types.Shot{{Prompt: "[Host] at the desk"}}
	Compose(shots, sampleCast(), "style")

	if shots[0].Prompt != "[Host] at the desk" {
		t.Errorf("输入切片不应被修改，实际%q", shots[0].Prompt)
	}
}

func TestComposeHostOnlyRoster(t *testing.T) {
	// 无可提取人物的脚本：名单只有解说人，合成后不应残留匹配占位符
	host := []types.CastMember{sampleCast()[0]}
	shots := []types.Shot{
		{Prompt: "[Host] introducing the case"},
		{Prompt: "an old factory gate"},
	}
	out := Compose(shots, host, "1980s Chinese town")

	for i, s := range out {
		if strings.Contains(s.Prompt, "[Host]") {
			t.Errorf("分镜%d仍残留[Host]占位符: %q", i, s.Prompt)
		}
	}
}
