// Package session 持有一次交互运行的全部状态：
// 解说片段、人物名单、分镜列表，以及各阶段的权威性标记
// 会话之间完全隔离，不共享可变状态
package session

import (
	"fmt"

	"mystery-narrator/pkg/types"

	"github.com/google/uuid"
)

// Session 单次运行的会话状态
// 各阶段把它当作显式上下文传递，不使用全局变量
type Session struct {
	ID          string
	Title       string
	Script      string
	AudioPath   string
	Style       string
	Composition string
	Host        types.CastMember

	Segments []types.Segment
	Cast     []types.CastMember // 不含解说人
	Shots    []types.Shot

	// 各阶段的权威性标记，用户据此判断哪些数据是真实对齐、哪些是合成的
	SegmentStatus types.StageStatus
	CastStatus    types.StageStatus
	PlanStatus    types.StageStatus

	DraftPath string
}

// New 创建会话，解说人由配置提供而非提取
func New(title, script, audioPath, style, composition string, host types.CastMember) *Session {
	host.IsHost = true
	return &Session{
		ID:          uuid.New().String(),
		Title:       title,
		Script:      script,
		AudioPath:   audioPath,
		Style:       style,
		Composition: composition,
		Host:        host,
	}
}

// Roster 返回完整人物名单，解说人固定排在首位
func (s *Session) Roster() []types.CastMember {
	roster := make([]types.CastMember, 0, len(s.Cast)+1)
	roster = append(roster, s.Host)
	roster = append(roster, s.Cast...)
	return roster
}

// RosterNames 返回名单中的人物名，供分镜规划提示词使用
func (s *Session) RosterNames() []string {
	roster := s.Roster()
	names := make([]string, len(roster))
	for i, m := range roster {
		names[i] = m.Name
	}
	return names
}

// UpdateSegmentText 用户修订某个片段的文本，时间戳保持不变
func (s *Session) UpdateSegmentText(index int, text string) error {
	if index < 0 || index >= len(s.Segments) {
		return fmt.Errorf("片段下标%d越界，当前共%d个片段", index, len(s.Segments))
	}
	if text == "" {
		return fmt.Errorf("片段文本不能为空")
	}
	s.Segments[index].Text = text
	return nil
}

// UpdateCastAppearance 用户修订某个人物的形象描述
// 名字匹配解说人时修订解说人条目
func (s *Session) UpdateCastAppearance(name, appearance string) error {
	if name == s.Host.Name {
		s.Host.Appearance = appearance
		return nil
	}
	for i := range s.Cast {
		if s.Cast[i].Name == name {
			s.Cast[i].Appearance = appearance
			return nil
		}
	}
	return fmt.Errorf("名单中没有人物%q", name)
}

// UpdateShotPrompt 用户修订某条分镜的提示词，重置其渲染状态
func (s *Session) UpdateShotPrompt(index int, prompt string) error {
	if index < 0 || index >= len(s.Shots) {
		return fmt.Errorf("分镜下标%d越界，当前共%d条分镜", index, len(s.Shots))
	}
	if prompt == "" {
		return fmt.Errorf("分镜提示词不能为空")
	}
	s.Shots[index].Prompt = prompt
	s.Shots[index].RenderOK = false
	s.Shots[index].AssetRef = ""
	s.Shots[index].RenderErr = ""
	return nil
}

// TotalDuration 解说总时长（秒）
func (s *Session) TotalDuration() float64 {
	var total float64
	for _, shot := range s.Shots {
		total += shot.Duration
	}
	if total == 0 {
		for _, seg := range s.Segments {
			total += seg.Duration()
		}
	}
	return total
}
