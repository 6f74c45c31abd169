// Package prompt 将调研结果组装为生成模型的 prompt，并保证长度不超过上限。
package prompt

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/aggregate"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
)

// Options 组装参数
type Options struct {
	MaxTokens       int
	CharsPerToken   int
	DetailsPerTopic int
	UseCaseCount    int
}

// DefaultOptions 默认 2048 token，每 token 约 4 字符
func DefaultOptions() Options {
	return Options{MaxTokens: 2048, CharsPerToken: 4, DetailsPerTopic: 3, UseCaseCount: 5}
}

var sectionTitles = map[model.Topic]string{
	model.TopicCompany: "Company Overview",
	model.TopicMarket:  "Market Position",
	model.TopicAI:      "AI Initiatives",
}

var focusAreas = []string{
	"Operational Efficiency",
	"Customer Experience",
	"Product Innovation",
	"Process Automation",
	"Data Analytics",
}

// Composer prompt 组装器，输出只依赖输入
type Composer struct {
	opts Options
}

// NewComposer 创建组装器
func NewComposer(opts Options) *Composer {
	def := DefaultOptions()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.CharsPerToken <= 0 {
		opts.CharsPerToken = def.CharsPerToken
	}
	if opts.DetailsPerTopic <= 0 {
		opts.DetailsPerTopic = def.DetailsPerTopic
	}
	if opts.UseCaseCount <= 0 {
		opts.UseCaseCount = def.UseCaseCount
	}
	c := &Composer{opts: opts}
	// 上限至少容纳最长公司名下的固定说明部分
	longest := strings.Repeat("W", model.MaxCompanyChars)
	if floor := c.EstimateTokens(c.header(longest) + c.instructions(longest)); c.opts.MaxTokens < floor {
		c.opts.MaxTokens = floor
	}
	return c
}

// Ceiling prompt 的字符上限，不低于固定说明部分的长度
func (c *Composer) Ceiling() int {
	return c.opts.MaxTokens * c.opts.CharsPerToken
}

// EstimateTokens 按字符数估算 token
func (c *Composer) EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + c.opts.CharsPerToken - 1) / c.opts.CharsPerToken
}

type fragment struct {
	section   int
	pos       int
	text      string
	relevance float64
	dropped   bool
}

type section struct {
	title     string
	summary   string
	fragments []*fragment
}

// Compose 组装 prompt。
// 超出上限时依次：按相关度从低到高丢弃细节，按句子截短摘要，最后硬截断调研部分；说明部分始终保留。
func (c *Composer) Compose(bundle model.ResearchBundle, company string) string {
	name := clipName(model.CleanCompany(company))
	header := c.header(name)
	footer := c.instructions(name)

	budget := c.Ceiling() - utf8.RuneCountInString(header) - utf8.RuneCountInString(footer)
	if budget < 0 {
		budget = 0
	}

	sections, fragments := c.sections(bundle)
	block := render(sections)

	// 相关度低的先丢；相同相关度时后面的话题、后面的位置先丢
	order := make([]*fragment, len(fragments))
	copy(order, fragments)
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.relevance != b.relevance {
			return a.relevance < b.relevance
		}
		if a.section != b.section {
			return a.section > b.section
		}
		return a.pos > b.pos
	})
	for _, f := range order {
		if utf8.RuneCountInString(block) <= budget {
			break
		}
		f.dropped = true
		block = render(sections)
	}

	for i := len(sections) - 1; i >= 0 && utf8.RuneCountInString(block) > budget; i-- {
		for utf8.RuneCountInString(block) > budget {
			shorter, ok := dropLastSentence(sections[i].summary)
			if !ok {
				break
			}
			sections[i].summary = shorter
			block = render(sections)
		}
	}

	if utf8.RuneCountInString(block) > budget {
		block = aggregate.Truncate(block, budget)
	}

	return header + block + footer
}

func (c *Composer) header(company string) string {
	var sb strings.Builder
	sb.WriteString("You are an enterprise AI strategy consultant.\n")
	fmt.Fprintf(&sb, "Company: %s\n\n", company)
	sb.WriteString("Research findings:\n\n")
	return sb.String()
}

func (c *Composer) instructions(company string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n\nBased on this research, generate %d practical AI/GenAI use cases for %s.\n\n", c.opts.UseCaseCount, company)
	sb.WriteString("Focus areas:\n")
	for _, area := range focusAreas {
		fmt.Fprintf(&sb, "- %s\n", area)
	}
	sb.WriteString("\nFormat each use case exactly as follows, with no other text:\n")
	sb.WriteString("Use Case 1:\n")
	sb.WriteString("Title: [short name]\n")
	sb.WriteString("Description: [the problem and the AI/ML approach]\n")
	sb.WriteString("Complexity: [Low/Medium/High]\n")
	sb.WriteString("Impact: [Low/Medium/High]\n")
	sb.WriteString("Resources: [requirement; requirement; requirement]\n")
	return sb.String()
}

func (c *Composer) sections(bundle model.ResearchBundle) ([]*section, []*fragment) {
	var (
		sections  []*section
		fragments []*fragment
	)
	for i, s := range bundle.Summaries() {
		sec := &section{title: sectionTitles[s.Topic], summary: oneLine(s.Summary)}
		if sec.summary == "" {
			sec.summary = model.NoInformationFound
		}
		for j, d := range s.Details {
			if j >= c.opts.DetailsPerTopic {
				break
			}
			text := oneLine(d)
			if text == "" {
				continue
			}
			var rel float64
			if j < len(s.DetailRelevance) {
				rel = s.DetailRelevance[j]
			}
			f := &fragment{section: i, pos: j, text: text, relevance: rel}
			sec.fragments = append(sec.fragments, f)
			fragments = append(fragments, f)
		}
		sections = append(sections, sec)
	}
	return sections, fragments
}

func render(sections []*section) string {
	var sb strings.Builder
	for i, s := range sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "## %s\n", s.title)
		fmt.Fprintf(&sb, "Summary: %s\n", s.summary)
		for _, f := range s.fragments {
			if f.dropped {
				continue
			}
			fmt.Fprintf(&sb, "- %s\n", f.text)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func clipName(name string) string {
	if utf8.RuneCountInString(name) <= model.MaxCompanyChars {
		return name
	}
	return string([]rune(name)[:model.MaxCompanyChars])
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dropLastSentence 去掉最后一句，只剩一句时返回 false
func dropLastSentence(s string) (string, bool) {
	trimmed := strings.TrimRight(s, " ")
	for i := len(trimmed) - 2; i > 0; i-- {
		switch trimmed[i] {
		case '.', '!', '?':
			if trimmed[i+1] == ' ' {
				return trimmed[:i+1], true
			}
		}
	}
	return s, false
}
