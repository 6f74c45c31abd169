package model

import (
	"strings"
	"time"
)

// NoInformationFound 话题无可用资料时使用的摘要占位
const NoInformationFound = "No information found."

// Topic 调研话题
type Topic string

const (
	TopicCompany Topic = "company"
	TopicMarket  Topic = "market"
	TopicAI      Topic = "ai"
)

// AllTopics 按固定顺序返回全部话题
func AllTopics() []Topic {
	return []Topic{TopicCompany, TopicMarket, TopicAI}
}

// TopicQuery 单个话题的搜索查询
type TopicQuery struct {
	Topic Topic
	Text  string
}

// Snippet 搜索服务返回的一条片段
type Snippet struct {
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
	Title     string  `json:"title,omitempty"`
	URL       string  `json:"url,omitempty"`
}

// RawResult 单个话题的原始搜索结果，Snippets 永不为 nil
type RawResult struct {
	Topic         Topic     `json:"topic"`
	Snippets      []Snippet `json:"snippets"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// EmptyResult 构造一个空结果，用于降级
func EmptyResult(topic Topic, reason string) RawResult {
	return RawResult{Topic: topic, Snippets: []Snippet{}, FailureReason: reason}
}

// TopicSummary 聚合后的话题摘要
type TopicSummary struct {
	Topic           Topic     `json:"topic"`
	Summary         string    `json:"summary"`
	Details         []string  `json:"details"`
	DetailRelevance []float64 `json:"-"`
	Degraded        bool      `json:"degraded,omitempty"`
	FailureReason   string    `json:"failure_reason,omitempty"`
}

// ResearchBundle 三个话题的调研结果，字段顺序固定
type ResearchBundle struct {
	CompanyInfo TopicSummary `json:"company_info"`
	MarketInfo  TopicSummary `json:"market_info"`
	AIInfo      TopicSummary `json:"ai_info"`
}

// Summaries 按 company, market, ai 顺序返回
func (b ResearchBundle) Summaries() []TopicSummary {
	return []TopicSummary{b.CompanyInfo, b.MarketInfo, b.AIInfo}
}

// Set 写入对应话题的摘要
func (b *ResearchBundle) Set(s TopicSummary) {
	switch s.Topic {
	case TopicCompany:
		b.CompanyInfo = s
	case TopicMarket:
		b.MarketInfo = s
	case TopicAI:
		b.AIInfo = s
	}
}

// Populated 返回有实际资料的话题数
func (b ResearchBundle) Populated() int {
	n := 0
	for _, s := range b.Summaries() {
		if len(s.Details) > 0 {
			n++
		}
	}
	return n
}

// Degraded 任一话题降级即为 true
func (b ResearchBundle) Degraded() bool {
	for _, s := range b.Summaries() {
		if s.Degraded {
			return true
		}
	}
	return false
}

// Level 复杂度 / 影响力等级
type Level string

const (
	LevelLow     Level = "low"
	LevelMedium  Level = "medium"
	LevelHigh    Level = "high"
	LevelUnknown Level = "unknown"
)

// UseCase AI 用例
type UseCase struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Complexity  Level    `json:"complexity"`
	Impact      Level    `json:"impact"`
	Resources   []string `json:"resources"`
}

// Report 最终报告
type Report struct {
	RunID         string         `json:"run_id"`
	CompanyName   string         `json:"company_name"`
	AnalysisDate  string         `json:"analysis_date"`
	GeneratedAt   time.Time      `json:"generated_at"`
	ResearchData  ResearchBundle `json:"research_data"`
	AIUseCases    []UseCase      `json:"ai_use_cases"`
	ParseWarnings []string       `json:"parse_warnings,omitempty"`
}

// MaxCompanyChars 公司名长度上限，搜索服务对 query 长度有限制
const MaxCompanyChars = 200

// CleanCompany 去除首尾空白并合并连续空白，保留大小写
func CleanCompany(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeCompany 报告中使用的公司名：合并空白并转小写
func NormalizeCompany(name string) string {
	return strings.ToLower(CleanCompany(name))
}
