package source

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
)

// Kind 表示值的类型
type Kind int

const (
	// KindString 字符串值
	KindString Kind = iota
	// KindArray 字符串数组值
	KindArray
)

// Value 是源文档中一个键对应的值，要么是字符串，要么是字符串数组
type Value struct {
	Kind Kind
	Text string
	List []string
}

// StringValue 构造字符串值
func StringValue(text string) Value {
	return Value{Kind: KindString, Text: text}
}

// ArrayValue 构造数组值
func ArrayValue(items []string) Value {
	return Value{Kind: KindArray, List: items}
}

// KindName 返回类型的可读名称
func (v Value) KindName() string {
	if v.Kind == KindArray {
		return "array"
	}
	return "string"
}

// Entry 是文档中按出现顺序排列的一个键值对
type Entry struct {
	Key   string
	Value Value
}

// Document 是源文档：键到值的有序映射。加载后不再修改，
// 定义了整个流水线的规范键集合与每个键的期望类型。
type Document struct {
	entries []Entry
	index   map[string]Value
}

// LoadDocument 从 JSON 文件加载源文档，保留键在文件中的出现顺序
func LoadDocument(fs afero.Fs, path string) (*Document, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("读取源文档失败 %s: %w", path, err)
	}
	return ParseDocument(data)
}

// ParseDocument 按文档顺序解析 JSON 对象
func ParseDocument(data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("源文档不是合法的 JSON")
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("源文档的顶层必须是 JSON 对象")
	}

	doc := &Document{index: make(map[string]Value)}
	var parseErr error

	root.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if _, dup := doc.index[k]; dup {
			parseErr = fmt.Errorf("源文档中存在重复的键 %q", k)
			return false
		}

		v, err := parseValue(k, value)
		if err != nil {
			parseErr = err
			return false
		}

		doc.entries = append(doc.entries, Entry{Key: k, Value: v})
		doc.index[k] = v
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}
	if len(doc.entries) == 0 {
		return nil, fmt.Errorf("源文档为空")
	}

	return doc, nil
}

func parseValue(key string, value gjson.Result) (Value, error) {
	switch {
	case value.Type == gjson.String:
		return StringValue(value.String()), nil
	case value.IsArray():
		var items []string
		for _, item := range value.Array() {
			if item.Type != gjson.String {
				return Value{}, fmt.Errorf("键 %q 的数组元素必须是字符串", key)
			}
			items = append(items, item.String())
		}
		return ArrayValue(items), nil
	default:
		return Value{}, fmt.Errorf("键 %q 的值必须是字符串或字符串数组", key)
	}
}

// Get 按键查找值
func (d *Document) Get(key string) (Value, bool) {
	v, ok := d.index[key]
	return v, ok
}

// Has 判断键是否存在
func (d *Document) Has(key string) bool {
	_, ok := d.index[key]
	return ok
}

// Keys 返回按文档顺序排列的全部键
func (d *Document) Keys() []string {
	keys := make([]string, len(d.entries))
	for i, e := range d.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries 返回按文档顺序排列的全部键值对
func (d *Document) Entries() []Entry {
	return d.entries
}

// Len 返回键的数量
func (d *Document) Len() int {
	return len(d.entries)
}
