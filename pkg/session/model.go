package session

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// RunStatus 运行状态
type RunStatus string

const (
	RunPending    RunStatus = "pending"    // 待处理
	RunProcessing RunStatus = "processing" // 处理中
	RunCompleted  RunStatus = "completed"  // 已完成
	RunFailed     RunStatus = "failed"     // 失败
)

// BaseModel 包含公共字段
type BaseModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt MyTime         `json:"created_at"`
	UpdatedAt MyTime         `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Run 一次解说视频处理运行的持久化记录
type Run struct {
	BaseModel
	SessionID    string        `json:"session_id" gorm:"uniqueIndex"` // 会话ID
	Title        string        `json:"title"`                         // 案件/视频标题
	Script       string        `json:"script"`                        // 解说文稿
	AudioPath    string        `json:"audio_path,omitempty"`          // 解说音频路径
	Style        string        `json:"style"`                         // 全局风格约束
	Status       RunStatus     `json:"status" gorm:"default:pending"` // 运行状态
	ErrorMsg     string        `json:"error_msg,omitempty"`           // 错误信息
	SegmentCount int           `json:"segment_count"`                 // 片段数
	CastCount    int           `json:"cast_count"`                    // 提取人物数（不含解说人）
	ShotCount    int           `json:"shot_count"`                    // 分镜数
	DraftPath    string        `json:"draft_path,omitempty"`          // 草稿压缩包路径
	Stages       []StageRecord `json:"stages" gorm:"foreignKey:RunID"`
}

// StageRecord 单个阶段的执行记录
type StageRecord struct {
	BaseModel
	RunID     uint      `json:"run_id"`                        // 关联运行ID
	StageName string    `json:"stage_name"`                    // 阶段名：segment, cast, plan, compose, render, package
	Status    RunStatus `json:"status" gorm:"default:pending"` // 阶段状态
	Detail    string    `json:"detail,omitempty"`              // 权威性标记或错误详情
	Duration  int64     `json:"duration"`                      // 耗时（毫秒）
}

// MyTime 自定义时间类型，用于处理时间戳
type MyTime struct {
	time.Time
}

// GormDataType GORM数据类型
func (MyTime) GormDataType() string {
	return "timestamp"
}

// Scan 实现scanner接口
func (t *MyTime) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case time.Time:
		t.Time = v
	case string:
		if parsedTime, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			t.Time = parsedTime
		} else {
			return fmt.Errorf("can't parse %s to MyTime", v)
		}
	case []byte:
		if parsedTime, err := time.Parse("2006-01-02 15:04:05", string(v)); err == nil {
			t.Time = parsedTime
		} else {
			return fmt.Errorf("can't parse %s to MyTime", string(v))
		}
	default:
		return fmt.Errorf("can't parse %v to MyTime", value)
	}
	return nil
}

// Value 实现valuer接口
func (t MyTime) Value() (driver.Value, error) {
	return t.Time, nil
}

// MarshalJSON 实现json序列化
func (t MyTime) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%s"`, t.Time.Format("2006-01-02 15:04:05"))), nil
}

// UnmarshalJSON 实现json反序列化
func (t *MyTime) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), "\"")
	if str == "null" {
		return nil
	}

	parsedTime, err := time.Parse("2006-01-02 15:04:05", str)
	if err != nil {
		return err
	}
	t.Time = parsedTime
	return nil
}
