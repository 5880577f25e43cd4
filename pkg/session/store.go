package session

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store 运行记录存储，基于SQLite
type Store struct {
	DB *gorm.DB
}

// NewStore 打开数据库并迁移表结构
// 路径从配置读取，默认data/runs.db
func NewStore() (*Store, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = filepath.Join("data", "runs.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %v", err)
	}

	newLogger := logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dsn := fmt.Sprintf("%s?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on", dbPath)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %v", err)
	}

	store := &Store{DB: db}
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %v", err)
	}

	return store, nil
}

// Migrate 执行数据库迁移
func (s *Store) Migrate() error {
	return s.DB.AutoMigrate(&Run{}, &StageRecord{})
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateRun 新建运行记录
func (s *Store) CreateRun(sess *Session) (*Run, error) {
	run := &Run{
		SessionID: sess.ID,
		Title:     sess.Title,
		Script:    sess.Script,
		AudioPath: sess.AudioPath,
		Style:     sess.Style,
		Status:    RunPending,
	}
	if err := s.DB.Create(run).Error; err != nil {
		return nil, fmt.Errorf("创建运行记录失败: %v", err)
	}
	return run, nil
}

// GetRunBySessionID 按会话ID查询运行记录，不存在时返回nil
func (s *Store) GetRunBySessionID(sessionID string) (*Run, error) {
	var run Run
	result := s.DB.Preload("Stages").First(&run, "session_id = ?", sessionID)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询运行记录失败: %v", result.Error)
	}
	return &run, nil
}

// ListRuns 按创建时间倒序列出最近的运行
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []Run
	result := s.DB.Preload("Stages").Order("created_at DESC").Limit(limit).Find(&runs)
	if result.Error != nil {
		return nil, fmt.Errorf("列出运行记录失败: %v", result.Error)
	}
	return runs, nil
}

// UpdateRunStatus 更新运行状态
func (s *Store) UpdateRunStatus(id uint, status RunStatus, errorMsg string) error {
	run := &Run{BaseModel: BaseModel{ID: id}}
	result := s.DB.Model(run).Updates(map[string]interface{}{
		"status":     status,
		"error_msg":  errorMsg,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return fmt.Errorf("更新运行状态失败: %v", result.Error)
	}
	return nil
}

// UpdateRunProgress 回填各阶段产物数量和草稿路径
func (s *Store) UpdateRunProgress(id uint, sess *Session) error {
	run := &Run{BaseModel: BaseModel{ID: id}}
	result := s.DB.Model(run).Updates(map[string]interface{}{
		"segment_count": len(sess.Segments),
		"cast_count":    len(sess.Cast),
		"shot_count":    len(sess.Shots),
		"draft_path":    sess.DraftPath,
		"updated_at":    time.Now(),
	})
	if result.Error != nil {
		return fmt.Errorf("更新运行进度失败: %v", result.Error)
	}
	return nil
}

// RecordStage 落一条阶段执行记录
func (s *Store) RecordStage(runID uint, stageName string, status RunStatus, detail string, duration time.Duration) error {
	record := &StageRecord{
		RunID:     runID,
		StageName: stageName,
		Status:    status,
		Detail:    detail,
		Duration:  duration.Milliseconds(),
	}
	if err := s.DB.Create(record).Error; err != nil {
		return fmt.Errorf("记录阶段状态失败: %v", err)
	}
	return nil
}
