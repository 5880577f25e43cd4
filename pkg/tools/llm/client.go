// Package llm 封装对话补全服务调用
// 按优先级尝试候选模型列表，任一成功即返回
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Completer 对话补全接口，便于测试时注入假实现
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ChatClient 对话补全客户端，兼容OpenAI风格的chat/completions接口
type ChatClient struct {
	BaseURL    string
	APIKey     string
	Models     []string // 按优先级排列的候选模型
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// NewChatClient 创建对话补全客户端
func NewChatClient(logger *zap.Logger, baseURL, apiKey string, models []string) *ChatClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1" // 默认走本地Ollama的OpenAI兼容端点
	}
	if len(models) == 0 {
		models = []string{"qwen3:4b"}
	}

	timeout := 120 * time.Second
	if v := viper.GetInt("llm.timeout_seconds"); v > 0 {
		timeout = time.Duration(v) * time.Second
	}

	return &ChatClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Models:  models,
		Logger:  logger,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// chatRequest chat/completions请求结构
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

// chatResponse chat/completions响应结构
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete 发起对话补全，按顺序尝试候选模型，返回首个成功的回复文本
func (c *ChatClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var lastErr error
	for _, model := range c.Models {
		content, err := c.completeWithModel(ctx, model, systemPrompt, userPrompt)
		if err == nil {
			return content, nil
		}
		c.Logger.Warn("模型调用失败，尝试下一个候选模型",
			zap.String("model", model),
			zap.Error(err))
		lastErr = err

		// 上下文已取消时不再继续尝试
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("所有候选模型均失败: %v", lastErr)
}

// completeWithModel 调用指定模型
func (c *ChatClient) completeWithModel(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	request := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.7,
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %v", err)
	}

	endpoint := c.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	c.Logger.Info("发送对话补全请求",
		zap.String("endpoint", endpoint),
		zap.String("model", model))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API返回错误状态码 %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("解析响应失败: %v", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("服务端错误: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("响应中没有choices")
	}

	content := chatResp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("模型返回空内容")
	}

	return content, nil
}
