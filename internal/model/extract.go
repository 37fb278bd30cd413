package model

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// packageNameRe matches a plausible installable package name.
var packageNameRe = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

// ExtractCode pulls the program source out of a model reply. Replies are
// markdown; the source lives in a fenced code block, usually labeled python.
// Preference order: the longest python-labeled block, then the longest block
// of any language, then the reply itself trimmed (some local models skip the
// fence entirely).
func ExtractCode(reply string) string {
	blocks := fencedBlocks(reply)
	if len(blocks) == 0 {
		return strings.TrimSpace(reply)
	}

	best := ""
	for _, b := range blocks {
		if isPythonLang(b.lang) && len(b.code) > len(best) {
			best = b.code
		}
	}
	if best == "" {
		for _, b := range blocks {
			if len(b.code) > len(best) {
				best = b.code
			}
		}
	}
	return strings.TrimSpace(best)
}

// ExtractPackageName parses a reply that should contain nothing but a package
// name. Fences, backticks, and surrounding prose are tolerated; anything that
// doesn't reduce to a single valid name yields "".
func ExtractPackageName(reply string) string {
	candidate := ExtractCode(reply)
	candidate = strings.Trim(candidate, "`")
	candidate = strings.TrimSpace(candidate)

	// A valid answer is a single token; prose means the model didn't follow
	// the format and the caller should fall back.
	fields := strings.Fields(candidate)
	if len(fields) != 1 {
		return ""
	}
	candidate = strings.Trim(fields[0], `"'.,`)

	if !packageNameRe.MatchString(candidate) {
		return ""
	}
	return candidate
}

// ExtractNameList parses a reply expected to be a comma- or line-separated
// list of package names. Invalid entries are dropped.
func ExtractNameList(reply string) []string {
	raw := ExtractCode(reply)
	raw = strings.NewReplacer(",", "\n", ";", "\n").Replace(raw)

	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(raw, "\n") {
		name := ExtractPackageName(line)
		if name == "" || strings.EqualFold(name, "none") || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

type codeBlock struct {
	lang string
	code string
}

// fencedBlocks walks the markdown AST and collects fenced code blocks in
// document order.
func fencedBlocks(reply string) []codeBlock {
	src := []byte(reply)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var blocks []codeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var buf bytes.Buffer
		lines := fence.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		blocks = append(blocks, codeBlock{
			lang: string(fence.Language(src)),
			code: buf.String(),
		})
		return ast.WalkContinue, nil
	})
	return blocks
}

func isPythonLang(lang string) bool {
	switch strings.ToLower(lang) {
	case "python", "py", "python3":
		return true
	}
	return false
}
