package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ldelacroix/polyglossia/internal/source"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Store 管理流水线的全部磁盘产物：已发布译文、术语表缓存
// 和运行日志。所有文件都是整对象一次写入，永远不会出现
// 半成品文件。
type Store struct {
	fs          afero.Fs
	localesDir  string
	glossaryDir string
	logDir      string
}

// New 创建存储层
func New(fs afero.Fs, localesDir, glossaryDir, logDir string) *Store {
	return &Store{
		fs:          fs,
		localesDir:  localesDir,
		glossaryDir: glossaryDir,
		logDir:      logDir,
	}
}

// Fs 返回底层文件系统
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// TranslationPath 返回某语言已发布译文的路径
func (s *Store) TranslationPath(lang string) string {
	return filepath.Join(s.localesDir, lang+".json")
}

// GlossaryPath 返回某语言术语表缓存的路径
func (s *Store) GlossaryPath(lang string) string {
	return filepath.Join(s.glossaryDir, lang+".json")
}

// WriteTranslation 把通过校验的候选译文按源文档的键序一次性写出。
// 只应在候选译文包含源文档的全部键且零错误之后调用。
func (s *Store) WriteTranslation(lang string, doc *source.Document, cand map[string]source.Value) error {
	out := "{}"
	var err error

	for _, entry := range doc.Entries() {
		cv, ok := cand[entry.Key]
		if !ok {
			return fmt.Errorf("候选译文缺少键 %q，拒绝写出", entry.Key)
		}

		path := escapePath(entry.Key)
		if cv.Kind == source.KindArray {
			out, err = sjson.Set(out, path, cv.List)
		} else {
			out, err = sjson.Set(out, path, cv.Text)
		}
		if err != nil {
			return fmt.Errorf("构造译文 JSON 失败（键 %q）: %w", entry.Key, err)
		}
	}

	if err := s.fs.MkdirAll(s.localesDir, 0o755); err != nil {
		return fmt.Errorf("创建译文目录失败: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.TranslationPath(lang), []byte(out), 0o644); err != nil {
		return fmt.Errorf("写出译文文件失败: %w", err)
	}
	return nil
}

// LoadTranslation 加载某语言的已发布译文（供 validate 命令使用）
func (s *Store) LoadTranslation(lang string) (map[string]source.Value, error) {
	data, err := afero.ReadFile(s.fs, s.TranslationPath(lang))
	if err != nil {
		return nil, fmt.Errorf("读取译文文件失败: %w", err)
	}

	doc, err := source.ParseDocument(data)
	if err != nil {
		return nil, err
	}

	cand := make(map[string]source.Value, doc.Len())
	for _, entry := range doc.Entries() {
		cand[entry.Key] = entry.Value
	}
	return cand, nil
}

// HasTranslation 判断某语言是否已有发布的译文
func (s *Store) HasTranslation(lang string) bool {
	ok, _ := afero.Exists(s.fs, s.TranslationPath(lang))
	return ok
}

// LoadGlossary 加载某语言的术语表缓存，不存在时返回 nil
func (s *Store) LoadGlossary(lang string) (map[string]string, error) {
	path := s.GlossaryPath(lang)
	exists, err := afero.Exists(s.fs, path)
	if err != nil || !exists {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("读取术语表失败: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("术语表 %s 不是合法的 JSON", path)
	}

	terms := make(map[string]string)
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		terms[key.String()] = value.String()
		return true
	})
	return terms, nil
}

// WriteGlossary 整对象一次性写出术语表
func (s *Store) WriteGlossary(lang string, terms map[string]string) error {
	if len(terms) == 0 {
		return fmt.Errorf("拒绝写出空术语表")
	}

	out := "{}"
	var err error
	for term, translated := range terms {
		out, err = sjson.Set(out, escapePath(term), translated)
		if err != nil {
			return fmt.Errorf("构造术语表 JSON 失败: %w", err)
		}
	}

	if err := s.fs.MkdirAll(s.glossaryDir, 0o755); err != nil {
		return fmt.Errorf("创建术语表目录失败: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.GlossaryPath(lang), []byte(out), 0o644); err != nil {
		return fmt.Errorf("写出术语表失败: %w", err)
	}
	return nil
}

// WriteRunLog 写出一次运行的日志文件，返回文件路径。只写一次，
// 之后不再修改。
func (s *Store) WriteRunLog(name string, data []byte) (string, error) {
	if err := s.fs.MkdirAll(s.logDir, 0o755); err != nil {
		return "", fmt.Errorf("创建日志目录失败: %w", err)
	}

	path := filepath.Join(s.logDir, name)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("写出运行日志失败: %w", err)
	}
	return path, nil
}

// escapePath 转义键中的 sjson 路径元字符，保证键被当作
// 字面量而不是嵌套路径
func escapePath(key string) string {
	r := strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(key)
}
