package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// 运行终态
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// PhaseRecord 一条阶段记录
type PhaseRecord struct {
	Phase  string    `json:"phase"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

// RunLog 一次翻译运行的只追加日志：执行过的阶段、累计 token
// 用量和终态。运行结束时一次性写出，之后不再修改。
type RunLog struct {
	ID        string        `json:"id"`
	Language  string        `json:"language"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Phases    []PhaseRecord `json:"phases"`
	TokensIn  int           `json:"tokens_in"`
	TokensOut int           `json:"tokens_out"`
	Result    string        `json:"result"`
}

// NewRunLog 开始一条新的运行日志
func NewRunLog(lang string) *RunLog {
	return &RunLog{
		ID:        uuid.NewString(),
		Language:  lang,
		StartedAt: time.Now().UTC(),
	}
}

// AddUsage 累计一次生成调用的 token 用量
func (l *RunLog) AddUsage(tokensIn, tokensOut int) {
	l.TokensIn += tokensIn
	l.TokensOut += tokensOut
}

// Record 追加一条阶段记录
func (l *RunLog) Record(phase, format string, args ...interface{}) {
	l.Phases = append(l.Phases, PhaseRecord{
		Phase:  phase,
		Detail: fmt.Sprintf(format, args...),
		At:     time.Now().UTC(),
	})
}

// Finish 记录终态
func (l *RunLog) Finish(result string) {
	l.Result = result
	l.EndedAt = time.Now().UTC()
}

// FileName 返回带时间戳的日志文件名
func (l *RunLog) FileName() string {
	return fmt.Sprintf("run_%s_%s.json", l.Language, l.StartedAt.Format("20060102T150405"))
}

// Marshal 序列化为 JSON
func (l *RunLog) Marshal() ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}
