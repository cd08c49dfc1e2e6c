package provider

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSONObject 从模型返回的文本里提取最外层的 JSON 对象。
// 模型经常把结构化数据包在代码围栏里或前后加一段说明，
// 这里做一次宽容的剥离再校验，绝不直接信任原始文本。
func ExtractJSONObject(text string) (string, bool) {
	return extractDelimited(text, '{', '}')
}

// ExtractJSONArray 从模型返回的文本里提取最外层的 JSON 数组
func ExtractJSONArray(text string) (string, bool) {
	return extractDelimited(text, '[', ']')
}

func extractDelimited(text string, open, close byte) (string, bool) {
	text = stripCodeFence(text)

	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return "", false
	}

	candidate := text[start : end+1]
	if !gjson.Valid(candidate) {
		return "", false
	}
	return candidate, true
}

// stripCodeFence 去掉包裹整个响应的 Markdown 代码围栏
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}

	// 第一行是 ``` 或 ```json 之类的围栏头
	lines = lines[1:]
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			lines = lines[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
