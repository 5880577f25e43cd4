package session

import (
	"testing"

	"mystery-narrator/pkg/types"
)

func newTestSession() *Session {
	s := New("旧仓库失踪案", "script text", "", "1980s Chinese town", "cinematic wide shot",
		types.CastMember{Name: "Host", Appearance: "a calm narrator"})
	s.Segments = []types.Segment{
		{Index: 0, Text: "门虚掩着。", Start: 0, End: 2.5},
	}
	s.Cast = []types.CastMember{
		{Name: "李警官", Appearance: "a police officer"},
	}
	s.Shots = []types.Shot{
		{Index: 0, Duration: 2.5, Script: "门虚掩着。", Prompt: "p", RenderOK: true, AssetRef: "/tmp/1.png"},
	}
	return s
}

func TestRosterHostFirst(t *testing.T) {
	s := newTestSession()
	roster := s.Roster()
	if len(roster) != 2 {
		t.Fatalf("名单应含解说人和1个人物，实际%d", len(roster))
	}
	if !roster[0].IsHost || roster[0].Name != "Host" {
		t.Errorf("解说人应排在名单首位，实际%v", roster[0])
	}
	if names := s.RosterNames(); names[0] != "Host" || names[1] != "李警官" {
		t.Errorf("名单人名不符: %v", names)
	}
}

func TestUpdateSegmentText(t *testing.T) {
	s := newTestSession()
	if err := s.UpdateSegmentText(0, "门大开着。"); err != nil {
		t.Fatal(err)
	}
	if s.Segments[0].Text != "门大开着。" {
		t.Errorf("片段文本未更新: %q", s.Segments[0].Text)
	}
	if s.Segments[0].End != 2.5 {
		t.Errorf("用户修订不应改动时间戳: %f", s.Segments[0].End)
	}
	if err := s.UpdateSegmentText(5, "x"); err == nil {
		t.Error("越界下标应返回错误")
	}
	if err := s.UpdateSegmentText(0, ""); err == nil {
		t.Error("空文本应返回错误")
	}
}

func TestUpdateCastAppearance(t *testing.T) {
	s := newTestSession()
	if err := s.UpdateCastAppearance("李警官", "a tired officer in plain clothes"); err != nil {
		t.Fatal(err)
	}
	if s.Cast[0].Appearance != "a tired officer in plain clothes" {
		t.Error("人物形象未更新")
	}
	if err := s.UpdateCastAppearance("Host", "a hooded narrator"); err != nil {
		t.Fatal(err)
	}
	if s.Host.Appearance != "a hooded narrator" {
		t.Error("解说人形象未更新")
	}
	if err := s.UpdateCastAppearance("不存在", "x"); err == nil {
		t.Error("名单外人物应返回错误")
	}
}

func TestUpdateShotPromptResetsRender(t *testing.T) {
	s := newTestSession()
	if err := s.UpdateShotPrompt(0, "new prompt"); err != nil {
		t.Fatal(err)
	}
	shot := s.Shots[0]
	if shot.Prompt != "new prompt" {
		t.Error("提示词未更新")
	}
	if shot.RenderOK || shot.AssetRef != "" {
		t.Error("修订提示词后应重置渲染状态")
	}
}

func TestSessionIDsUnique(t *testing.T) {
	a := newTestSession()
	b := newTestSession()
	if a.ID == b.ID {
		t.Error("会话ID应唯一")
	}
}
