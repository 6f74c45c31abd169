// Package aggregate 将单个话题的原始搜索片段压缩为有界的摘要。
package aggregate

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
)

// ReasonNoResults 搜索成功但没有可用片段
const ReasonNoResults = "no results"

// Limits 聚合上限
type Limits struct {
	MaxDetails   int
	DetailChars  int
	SummaryChars int
}

// DefaultLimits 默认上限：5 条细节，每条 500 字符，摘要 300 字符
func DefaultLimits() Limits {
	return Limits{MaxDetails: 5, DetailChars: 500, SummaryChars: 300}
}

// Aggregator 上下文聚合器，无状态
type Aggregator struct {
	limits Limits
}

// New 创建聚合器，非正数的上限回退到默认值
func New(limits Limits) *Aggregator {
	def := DefaultLimits()
	if limits.MaxDetails <= 0 {
		limits.MaxDetails = def.MaxDetails
	}
	if limits.DetailChars <= 0 {
		limits.DetailChars = def.DetailChars
	}
	if limits.SummaryChars <= 0 {
		limits.SummaryChars = def.SummaryChars
	}
	return &Aggregator{limits: limits}
}

// Summarize 对原始结果排序、截断并生成摘要
func (a *Aggregator) Summarize(raw model.RawResult, topic model.Topic) model.TopicSummary {
	kept := make([]model.Snippet, 0, len(raw.Snippets))
	for _, s := range raw.Snippets {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		s.Text = text
		kept = append(kept, s)
	}

	// 相关度相同时保持到达顺序
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Relevance > kept[j].Relevance
	})

	summary := model.TopicSummary{
		Topic:           topic,
		Summary:         model.NoInformationFound,
		Details:         []string{},
		DetailRelevance: []float64{},
		FailureReason:   raw.FailureReason,
		Degraded:        raw.FailureReason != "",
	}
	if len(kept) == 0 {
		summary.Degraded = true
		if summary.FailureReason == "" {
			summary.FailureReason = ReasonNoResults
		}
		return summary
	}

	if len(kept) > a.limits.MaxDetails {
		kept = kept[:a.limits.MaxDetails]
	}
	for _, s := range kept {
		summary.Details = append(summary.Details, Truncate(s.Text, a.limits.DetailChars))
		summary.DetailRelevance = append(summary.DetailRelevance, s.Relevance)
	}
	summary.Summary = Truncate(kept[0].Text, a.limits.SummaryChars)
	return summary
}

// Truncate 按字符（rune）截断到 limit 以内，尽量在单词边界处断开，结果不超过 limit
func Truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	cut := runes[:limit]
	// 在后半段寻找空白，找不到就直接硬截断
	for i := len(cut) - 1; i >= limit/2; i-- {
		if unicode.IsSpace(cut[i]) {
			return strings.TrimRightFunc(string(cut[:i]), unicode.IsSpace)
		}
	}
	return string(cut)
}
