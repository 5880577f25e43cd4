package llm

import (
	"regexp"
	"strings"
)

// 部分模型会在回复前附带推理过程，解析JSON前需要剥离
var thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// CleanResponse 剥离模型回复中的推理块与markdown代码围栏
func CleanResponse(s string) string {
	s = thinkBlockRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSONArray 从清理后的文本中截取最外层JSON数组
func ExtractJSONArray(s string) (string, bool) {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// ExtractJSONObject 从清理后的文本中截取最外层JSON对象
func ExtractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
