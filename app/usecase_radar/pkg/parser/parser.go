// Package parser 从模型的自由文本输出中恢复结构化的用例。
//
// 输出格式并不可靠：可能带有 markdown 标题、加粗、编号、代码块或推理块。
// 解析器按优先级尝试三种分段方式（"Use Case N" 行、markdown 标题、顶层编号），
// 再在每段中按标签抽取字段。任何输入都不会 panic，无法识别的部分记入 Warnings。
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
)

var (
	thinkRe    = regexp.MustCompile(`(?is)<think>.*?</think>`)
	fenceRe    = regexp.MustCompile("^\\s*```")
	useCaseRe  = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*)?(?:\d+[.)]\s*)?use[\s-]*case\s*#?\s*(\d+)\b\s*[:.)\-–—]*\s*(.*)$`)
	headingRe  = regexp.MustCompile(`^\s*#{1,6}\s+(.+)$`)
	numberedRe = regexp.MustCompile(`^(\d+)[.)]\s+(.+)$`)
	labelRe    = regexp.MustCompile(`^([A-Za-z][A-Za-z /()-]{0,40}?)\s*[:：]\s*(.*)$`)
	bulletRe   = regexp.MustCompile(`^\s*(?:[-*•+]\s+|\d+[.)]\s+|[a-z][.)]\s+)`)
	levelRe    = regexp.MustCompile(`(?i)\b(low|medium|moderate|high)\b`)
)

type field int

const (
	fieldNone field = iota
	fieldTitle
	fieldDescription
	fieldProblem
	fieldComplexity
	fieldImpact
	fieldResources
)

var labelAliases = map[string]field{
	"title":         fieldTitle,
	"name":          fieldTitle,
	"use case name": fieldTitle,
	"use case":      fieldTitle,
	"description":   fieldDescription,
	"solution":      fieldDescription,
	"summary":       fieldDescription,
	"approach":      fieldDescription,
	"ai solution":   fieldDescription,
	"problem":       fieldProblem,
	"challenge":     fieldProblem,
	"complexity":    fieldComplexity,
	"difficulty":    fieldComplexity,
	"effort":        fieldComplexity,
	"impact":        fieldImpact,
	"benefit":       fieldImpact,
	"benefits":      fieldImpact,
	"value":         fieldImpact,
	"resources":     fieldResources,
	"requirements":  fieldResources,
	"data needed":   fieldResources,
}

// Result 解析结果
type Result struct {
	UseCases   []model.UseCase
	Candidates int // 识别到的分段数
	Dropped    int // 没有标题而被丢弃的分段
	Incomplete int // 缺少部分字段的用例
	Expected   int
	Warnings   []string
}

// Partial 输出只被部分恢复时为 true
func (r Result) Partial() bool {
	return len(r.Warnings) > 0
}

// Parser 用例解析器
type Parser struct {
	expected int
}

// New 创建解析器，expected 为期望的用例数量，0 表示不检查
func New(expected int) *Parser {
	if expected < 0 {
		expected = 0
	}
	return &Parser{expected: expected}
}

type strategy struct {
	segment     func([]string) []chunk
	labeledOnly bool
}

// 分段方式按优先级排列
var strategies = []strategy{
	{segment: byUseCase},
	{segment: byHeading, labeledOnly: true},
	{segment: byNumbered},
}

type chunk struct {
	titleHint string
	lines     []string
}

// Parse 解析模型输出
func (p *Parser) Parse(raw string) (res Result) {
	res.Expected = p.expected
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				UseCases: []model.UseCase{},
				Expected: p.expected,
				Warnings: []string{fmt.Sprintf("parser recovered from unexpected input: %v", r)},
			}
		}
	}()

	lines := clean(raw)
	res.UseCases = []model.UseCase{}

	var best []record
	for _, st := range strategies {
		chunks := st.segment(lines)
		if len(chunks) == 0 {
			continue
		}
		records := make([]record, 0, len(chunks))
		labeled := false
		for _, c := range chunks {
			r := parseChunk(c)
			records = append(records, r)
			labeled = labeled || r.labeled
		}
		if labeled && st.labeledOnly {
			// 标题也可能只是分组，没有任何字段的段落不算用例
			kept := records[:0]
			for _, r := range records {
				if r.labeled {
					kept = append(kept, r)
				}
			}
			records = kept
		}
		if best == nil {
			best = records
		}
		if labeled {
			best = records
			break
		}
	}

	if best == nil {
		if strings.TrimSpace(strings.Join(lines, "")) != "" {
			res.Warnings = append(res.Warnings, "no use case markers found in model output")
		}
		if p.expected > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("expected %d use cases, recovered 0", p.expected))
		}
		return res
	}

	res.Candidates = len(best)
	for i, r := range best {
		if r.useCase.Title == "" {
			res.Dropped++
			res.Warnings = append(res.Warnings, fmt.Sprintf("segment %d dropped: no title", i+1))
			continue
		}
		if len(r.missing) > 0 {
			res.Incomplete++
			res.Warnings = append(res.Warnings, fmt.Sprintf("use case %q missing %s", r.useCase.Title, strings.Join(r.missing, ", ")))
		}
		res.UseCases = append(res.UseCases, r.useCase)
	}
	if p.expected > 0 && len(res.UseCases) < p.expected {
		res.Warnings = append(res.Warnings, fmt.Sprintf("expected %d use cases, recovered %d", p.expected, len(res.UseCases)))
	}
	return res
}

// clean 去除推理块、代码块围栏和 CR
func clean(raw string) []string {
	raw = thinkRe.ReplaceAllString(raw, "")
	// 只有结束标签时，丢弃其之前的推理内容
	if i := strings.Index(strings.ToLower(raw), "</think>"); i >= 0 {
		raw = raw[i+len("</think>"):]
	}
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if fenceRe.MatchString(line) {
			continue
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return out
}

func stripEmphasis(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return s
}

func byUseCase(lines []string) []chunk {
	return split(lines, func(line string) (string, bool) {
		m := useCaseRe.FindStringSubmatch(stripEmphasis(line))
		if m == nil {
			return "", false
		}
		return m[2], true
	})
}

func byHeading(lines []string) []chunk {
	return split(lines, func(line string) (string, bool) {
		m := headingRe.FindStringSubmatch(stripEmphasis(line))
		if m == nil {
			return "", false
		}
		return m[1], true
	})
}

func byNumbered(lines []string) []chunk {
	return split(lines, func(line string) (string, bool) {
		m := numberedRe.FindStringSubmatch(stripEmphasis(line))
		if m == nil {
			return "", false
		}
		if _, _, ok := matchLabel(m[2]); ok {
			return "", false
		}
		return m[2], true
	})
}

// split 按 marker 分段，第一个 marker 之前的内容丢弃
func split(lines []string, marker func(string) (string, bool)) []chunk {
	var chunks []chunk
	for _, line := range lines {
		if hint, ok := marker(line); ok {
			chunks = append(chunks, chunk{titleHint: hint})
			continue
		}
		if len(chunks) == 0 {
			continue
		}
		last := &chunks[len(chunks)-1]
		last.lines = append(last.lines, line)
	}
	return chunks
}

// matchLabel 识别 "label: value" 行
func matchLabel(line string) (field, string, bool) {
	m := labelRe.FindStringSubmatch(line)
	if m == nil {
		return fieldNone, "", false
	}
	label := strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
	label = strings.TrimSuffix(label, "(s)")
	f, ok := labelAliases[label]
	if !ok {
		return fieldNone, "", false
	}
	return f, strings.TrimSpace(m[2]), true
}

type record struct {
	useCase model.UseCase
	labeled bool
	missing []string
}

func parseChunk(c chunk) record {
	values := map[field][]string{}
	var (
		current        = fieldNone
		firstUnlabeled string
		labeled        bool
		hint           = c.titleHint
	)

	// marker 行上可能直接带字段，如 "Use Case 1: Title: Smart Routing"
	if f, value, ok := matchLabel(strings.TrimSpace(hint)); ok {
		hint = ""
		current = f
		if f != fieldTitle {
			labeled = true
		}
		if value != "" {
			values[f] = append(values[f], value)
		}
	}

	for _, raw := range c.lines {
		line := strings.TrimSpace(stripEmphasis(raw))
		if line == "" {
			continue
		}
		content := strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
		if f, value, ok := matchLabel(content); ok {
			current = f
			if f != fieldTitle {
				labeled = true
			}
			if value != "" {
				values[f] = append(values[f], value)
			}
			continue
		}
		if current == fieldTitle && len(values[fieldTitle]) > 0 {
			// 标题只占一行，后续文本视为描述
			current = fieldDescription
		}
		if current == fieldNone {
			if firstUnlabeled == "" {
				firstUnlabeled = content
			}
			continue
		}
		values[current] = append(values[current], content)
	}

	uc := model.UseCase{
		Title:      cleanTitle(strings.Join(values[fieldTitle], " ")),
		Complexity: parseLevel(strings.Join(values[fieldComplexity], " ")),
		Impact:     parseLevel(strings.Join(values[fieldImpact], " ")),
		Resources:  splitResources(values[fieldResources]),
	}
	if uc.Title == "" {
		uc.Title = cleanTitle(hint)
	}
	if uc.Title == "" {
		uc.Title = cleanTitle(firstUnlabeled)
	}
	var missing []string
	if uc.Title == "" {
		// 没有标题时取问题或描述的第一个分句
		for _, f := range []field{fieldProblem, fieldDescription} {
			if t := firstClause(strings.Join(values[f], " ")); t != "" {
				uc.Title = t
				missing = append(missing, "title")
				break
			}
		}
	}

	var desc []string
	if problem := strings.Join(values[fieldProblem], " "); problem != "" {
		desc = append(desc, problem)
	}
	if d := strings.Join(values[fieldDescription], " "); d != "" {
		desc = append(desc, d)
	}
	uc.Description = strings.Join(desc, " ")

	if uc.Description == "" {
		missing = append(missing, "description")
	}
	if uc.Complexity == model.LevelUnknown {
		missing = append(missing, "complexity")
	}
	if uc.Impact == model.LevelUnknown {
		missing = append(missing, "impact")
	}
	if len(uc.Resources) == 0 {
		missing = append(missing, "resources")
	}
	return record{useCase: uc, labeled: labeled, missing: missing}
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(stripEmphasis(s))
	s = strings.Trim(s, "*_#`\"'[]:-–— ")
	return strings.Join(strings.Fields(s), " ")
}

const maxDerivedTitleWords = 8

func firstClause(s string) string {
	if i := strings.IndexAny(s, ".;:,!?"); i >= 0 {
		s = s[:i]
	}
	words := strings.Fields(s)
	if len(words) > maxDerivedTitleWords {
		words = words[:maxDerivedTitleWords]
	}
	return cleanTitle(strings.Join(words, " "))
}

// parseLevel 取第一个等级词，moderate 视为 medium
func parseLevel(s string) model.Level {
	m := levelRe.FindStringSubmatch(s)
	if m == nil {
		return model.LevelUnknown
	}
	switch strings.ToLower(m[1]) {
	case "low":
		return model.LevelLow
	case "medium", "moderate":
		return model.LevelMedium
	default:
		return model.LevelHigh
	}
}

func splitResources(lines []string) []string {
	out := []string{}
	for _, line := range lines {
		for _, part := range strings.FieldsFunc(line, func(r rune) bool {
			return r == ';' || r == ',' || r == '\n'
		}) {
			item := strings.TrimSpace(bulletRe.ReplaceAllString(strings.TrimSpace(part), ""))
			item = strings.Trim(item, "[]. ")
			if item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
