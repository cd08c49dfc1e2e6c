package validate

import "strings"

// SecurityPrefix 是所有安全类错误消息的固定前缀。
// 带此前缀的错误对整次翻译是致命的，不会进入重试。
const SecurityPrefix = "SECURITY:"

// Code 标识结构校验错误的种类
type Code string

const (
	CodeMissingKeys    Code = "missing_keys"
	CodeTypeMismatch   Code = "type_mismatch"
	CodeArrayLength    Code = "array_length"
	CodeEmptyValue     Code = "empty_value"
	CodeTagBalance     Code = "tag_balance"
	CodeProtectedName  Code = "protected_name"
	CodeProtectedTitle Code = "protected_title"
	CodeLengthRatio    Code = "length_ratio"
	CodeMarkerLost     Code = "marker_lost"
	CodeMarkdownLink   Code = "markdown_link"
	CodeUntranslated   Code = "untranslated_bulk"
	CodeSecurity       Code = "security"
)

// Issue 是一条校验错误。受影响的键从产生错误的那一刻起
// 就以结构化字段携带，后续重试不需要再从消息文本里反解析。
type Issue struct {
	Keys     []string // 受影响的键，聚合类错误会携带多个
	Code     Code
	Message  string
	Security bool // 安全类错误，致命且不可重试
}

// Report 是结构校验的结果：阻塞性的错误序列与非阻塞的警告序列
type Report struct {
	Errors   []Issue
	Warnings []string
}

// Clean 判断是否没有任何错误
func (r *Report) Clean() bool {
	return len(r.Errors) == 0
}

// HasSecurity 判断是否存在安全类错误
func (r *Report) HasSecurity() bool {
	for _, e := range r.Errors {
		if e.Security {
			return true
		}
	}
	return false
}

// RetryKeys 返回需要重试的键集合（按首次出现顺序去重）。
// 安全类错误不参与重试。
func (r *Report) RetryKeys() []string {
	var keys []string
	seen := make(map[string]bool)
	for _, e := range r.Errors {
		if e.Security {
			continue
		}
		for _, k := range e.Keys {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// KeyMessages 返回提及指定键的全部错误消息，作为重试时的纠正反馈
func (r *Report) KeyMessages(key string) []string {
	var msgs []string
	for _, e := range r.Errors {
		for _, k := range e.Keys {
			if k == key {
				msgs = append(msgs, e.Message)
				break
			}
		}
	}
	return msgs
}

// Messages 返回全部错误消息
func (r *Report) Messages() []string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return msgs
}

func (r *Report) addError(code Code, msg string, keys ...string) {
	r.Errors = append(r.Errors, Issue{Keys: keys, Code: code, Message: msg})
}

func (r *Report) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *Report) addIssues(issues []Issue) {
	r.Errors = append(r.Errors, issues...)
}

// securityIssue 构造一条安全类错误，并保证消息带固定前缀
func securityIssue(key, msg string) Issue {
	if !strings.HasPrefix(msg, SecurityPrefix) {
		msg = SecurityPrefix + " " + msg
	}
	return Issue{Keys: []string{key}, Code: CodeSecurity, Message: msg, Security: true}
}
