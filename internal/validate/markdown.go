package validate

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// linkDestinations 解析 Markdown 文本，按出现顺序返回所有链接目标。
// 译文必须原样保留源文里的每一个链接目标。
func linkDestinations(src string) []string {
	if !strings.Contains(src, "](") && !strings.Contains(src, "http") {
		return nil
	}

	md := goldmark.New()
	reader := text.NewReader([]byte(src))
	root := md.Parser().Parse(reader)

	var dests []string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			dests = append(dests, string(node.Destination))
		case *ast.AutoLink:
			dests = append(dests, string(node.URL([]byte(src))))
		}
		return ast.WalkContinue, nil
	})

	return dests
}
