// Package drawthings 封装 DrawThings/SD WebUI 文生图接口，
// 并提供按分镜逐张渲染的渲染器
package drawthings

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DrawThingsClient 封装 DrawThings API 调用
type DrawThingsClient struct {
	BaseURL      string
	Model        string
	Logger       *zap.Logger
	HTTPClient   *http.Client
	APIAvailable bool // 记录API是否可用
}

// NewDrawThingsClient 创建新的客户端实例
func NewDrawThingsClient(logger *zap.Logger, baseURL string) *DrawThingsClient {
	if baseURL == "" {
		baseURL = viper.GetString("drawthings.base_url")
	}
	if baseURL == "" {
		baseURL = "http://localhost:7861" // 默认地址
	}
	model := viper.GetString("drawthings.model")
	if model == "" {
		model = "z_image_turbo_1.0_q6p.ckpt"
	}
	timeout := viper.GetInt("drawthings.timeout_seconds")
	if timeout <= 0 {
		timeout = 300 // 图像生成可能需要较长时间
	}

	client := &DrawThingsClient{
		BaseURL: baseURL,
		Model:   model,
		Logger:  logger,
		HTTPClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
		APIAvailable: false,
	}

	client.CheckAPIAvailability()

	return client
}

// Txt2ImgRequest 文生图请求参数
type Txt2ImgRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps"`
	Seed           int     `json:"seed"`
	SamplerName    string  `json:"sampler"`
	GuidanceScale  float64 `json:"cfg_scale"`
	BatchSize      int     `json:"batch_size"`
	Model          string  `json:"model,omitempty"`
}

// Txt2ImgResponse 文生图响应
type Txt2ImgResponse struct {
	Images     []string               `json:"images"` // Base64编码的图像数据
	Parameters map[string]interface{} `json:"parameters"`
	Info       string                 `json:"info"`
}

// CheckAPIAvailability 检查API是否可用
func (c *DrawThingsClient) CheckAPIAvailability() bool {
	req, err := http.NewRequest("GET", c.BaseURL, nil)
	if err != nil {
		c.Logger.Error("创建API可用性检查请求失败", zap.Error(err))
		c.APIAvailable = false
		return false
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.Info("DrawThings API不可用", zap.String("url", c.BaseURL), zap.Error(err))
		c.APIAvailable = false
		return false
	}
	resp.Body.Close()

	// 不检查响应状态，只要能连接就认为可用
	c.Logger.Info("DrawThings API可用", zap.String("url", c.BaseURL))
	c.APIAvailable = true
	return true
}

// Txt2Img 生成图像
func (c *DrawThingsClient) Txt2Img(ctx context.Context, params Txt2ImgRequest) (*Txt2ImgResponse, error) {
	if !c.APIAvailable {
		if !c.CheckAPIAvailability() {
			return nil, fmt.Errorf("DrawThings API不可用，请确保服务正在运行在 %s", c.BaseURL)
		}
	}

	endpoint := c.BaseURL + "/sdapi/v1/txt2img"

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("序列化请求参数失败: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.Logger.Info("发送文生图请求",
		zap.String("endpoint", endpoint),
		zap.String("prompt", params.Prompt),
		zap.Int("width", params.Width),
		zap.Int("height", params.Height),
		zap.String("model", params.Model))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.APIAvailable = false
		return nil, fmt.Errorf("发送请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.Logger.Error("API返回错误状态码",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("API返回错误状态码 %d: %s", resp.StatusCode, string(body))
	}

	var result Txt2ImgResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("解析响应失败: %v", err)
	}

	c.Logger.Info("文生图请求成功", zap.Int("images_count", len(result.Images)))

	return &result, nil
}

// GenerateShotImage 用合成后的提示词渲染一张分镜图并落盘
func (c *DrawThingsClient) GenerateShotImage(ctx context.Context, prompt, outputFile string, width, height int) error {
	params := Txt2ImgRequest{
		Prompt:         prompt,
		NegativePrompt: "人脸特写，模糊，比例失调，缺肢，文字水印",
		Width:          width,
		Height:         height,
		Steps:          8, // 快速生成
		Seed:           -1,
		SamplerName:    "DPM++ 2M Trailing",
		GuidanceScale:  1.0,
		BatchSize:      1,
		Model:          c.Model,
	}

	response, err := c.Txt2Img(ctx, params)
	if err != nil {
		return fmt.Errorf("生成图像失败: %v", err)
	}
	if len(response.Images) == 0 {
		return fmt.Errorf("API返回的图像数量为0")
	}

	return c.SaveImageFromBase64(response.Images[0], outputFile)
}

// SaveImageFromBase64 将Base64编码的图像数据保存到文件
func (c *DrawThingsClient) SaveImageFromBase64(base64Data, filePath string) error {
	// 移除Base64数据前缀（如果有）
	if len(base64Data) > 22 && base64Data[:22] == "data:image/png;base64," {
		base64Data = base64Data[22:]
	}

	imgData, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return fmt.Errorf("解码Base64图像数据失败: %v", err)
	}

	outputDir := filepath.Dir(filePath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %v", err)
	}

	if err := os.WriteFile(filePath, imgData, 0644); err != nil {
		return fmt.Errorf("保存图像文件失败: %v", err)
	}

	c.Logger.Info("图像保存成功", zap.String("file", filePath))

	return nil
}
