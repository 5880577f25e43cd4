// Package asr 调用Whisper兼容接口对解说音频做语音识别，
// 得到带时间戳的片段用于字幕和分镜对齐
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"mystery-narrator/pkg/types"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Client Whisper兼容ASR客户端
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// NewClient 创建ASR客户端，地址和模型从配置读取
func NewClient(logger *zap.Logger) *Client {
	baseURL := viper.GetString("asr.base_url")
	if baseURL == "" {
		baseURL = "http://localhost:8000/v1"
	}
	model := viper.GetString("asr.model")
	if model == "" {
		model = "whisper-large-v3"
	}
	timeout := viper.GetInt("asr.timeout_seconds")
	if timeout <= 0 {
		timeout = 120
	}

	return &Client{
		BaseURL: baseURL,
		APIKey:  viper.GetString("asr.api_key"),
		Model:   model,
		Logger:  logger,
		HTTPClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

// verboseResponse verbose_json格式的识别结果
type verboseResponse struct {
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe 上传音频并返回带时间戳的片段
// 失败时返回错误，由调用方降级到纯文本估时
func (c *Client) Transcribe(ctx context.Context, audioPath string) ([]types.Segment, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("打开音频文件失败: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("构建上传表单失败: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("写入音频数据失败: %w", err)
	}
	_ = writer.WriteField("model", c.Model)
	_ = writer.WriteField("response_format", "verbose_json")
	_ = writer.WriteField("timestamp_granularities[]", "segment")
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("关闭上传表单失败: %w", err)
	}

	url := c.BaseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	c.Logger.Info("提交语音识别",
		zap.String("audio", audioPath),
		zap.String("model", c.Model))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("语音识别请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取识别结果失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("语音识别返回状态 %d: %s", resp.StatusCode, preview(respBody, 200))
	}

	var result verboseResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("解析识别结果失败: %w", err)
	}
	if len(result.Segments) == 0 {
		return nil, fmt.Errorf("识别结果不含任何片段")
	}

	segments := make([]types.Segment, 0, len(result.Segments))
	for i, s := range result.Segments {
		segments = append(segments, types.Segment{
			Index: i,
			Text:  s.Text,
			Start: s.Start,
			End:   s.End,
		})
	}

	c.Logger.Info("语音识别完成",
		zap.Int("segment_count", len(segments)),
		zap.Float64("duration", result.Duration))

	return segments, nil
}

func preview(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
