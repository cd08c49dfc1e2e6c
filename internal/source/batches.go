package source

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
)

// Batch 是一组一起翻译的键。正文批次逐键顺序翻译，
// 后面的键可以看到前面已产出的译文；派生批次（SEO/元数据）
// 作为一个结构化请求整体翻译。
type Batch struct {
	Name    string   `toml:"name"`
	Context string   `toml:"context"` // 给模型看的批次说明
	Keys    []string `toml:"keys"`
	Derived bool     `toml:"derived"`
}

type batchFile struct {
	Batches []Batch `toml:"batch"`
}

// LoadBatches 从 TOML 文件加载批次定义，并校验其与源文档的一致性。
// 未被任何正文或派生批次覆盖的键会被归入一个隐式的收尾正文批次，
// 保证键空间总是被完整覆盖。
func LoadBatches(fs afero.Fs, path string, doc *Document) ([]Batch, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("读取批次定义失败 %s: %w", path, err)
	}

	var bf batchFile
	if err := toml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("解析批次定义失败 %s: %w", path, err)
	}

	seen := make(map[string]string) // key -> 所属批次名
	for _, b := range bf.Batches {
		if b.Name == "" {
			return nil, fmt.Errorf("批次缺少 name")
		}
		if len(b.Keys) == 0 {
			return nil, fmt.Errorf("批次 %q 没有任何键", b.Name)
		}
		for _, k := range b.Keys {
			if !doc.Has(k) {
				return nil, fmt.Errorf("批次 %q 引用了源文档中不存在的键 %q", b.Name, k)
			}
			// 派生批次可以为了交叉引用复用正文键，只有同类批次之间才算冲突
			if prev, dup := seen[k]; dup && !b.Derived {
				return nil, fmt.Errorf("键 %q 同时属于批次 %q 和 %q", k, prev, b.Name)
			}
			if !b.Derived {
				seen[k] = b.Name
			}
		}
	}

	batches := bf.Batches

	// 收集未被覆盖的键
	var uncovered []string
	covered := make(map[string]bool)
	for _, b := range batches {
		for _, k := range b.Keys {
			covered[k] = true
		}
	}
	for _, k := range doc.Keys() {
		if !covered[k] {
			uncovered = append(uncovered, k)
		}
	}
	if len(uncovered) > 0 {
		batches = append(batches, Batch{
			Name:    "ungrouped",
			Context: "Remaining site copy not assigned to a named section.",
			Keys:    uncovered,
		})
	}

	return batches, nil
}

// BodyBatches 返回全部正文批次，保持声明顺序
func BodyBatches(batches []Batch) []Batch {
	var out []Batch
	for _, b := range batches {
		if !b.Derived {
			out = append(out, b)
		}
	}
	return out
}

// DerivedBatches 返回全部派生批次，保持声明顺序
func DerivedBatches(batches []Batch) []Batch {
	var out []Batch
	for _, b := range batches {
		if b.Derived {
			out = append(out, b)
		}
	}
	return out
}
