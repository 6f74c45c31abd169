package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
)

func summary(topic model.Topic, text string, details []string, rel []float64) model.TopicSummary {
	return model.TopicSummary{Topic: topic, Summary: text, Details: details, DetailRelevance: rel}
}

func acmeBundle() model.ResearchBundle {
	return model.ResearchBundle{
		CompanyInfo: summary(model.TopicCompany, "Acme makes anvils.",
			[]string{"COMPANY-HIGH fact", "COMPANY-LOW fact"}, []float64{0.9, 0.2}),
		MarketInfo: summary(model.TopicMarket, "Acme leads the anvil market.",
			[]string{"MARKET-MID fact"}, []float64{0.5}),
		AIInfo: summary(model.TopicAI, "Acme pilots forecasting.",
			[]string{"AI-HIGH fact", "AI-LOW fact"}, []float64{0.8, 0.2}),
	}
}

func TestComposeStructure(t *testing.T) {
	c := NewComposer(DefaultOptions())
	out := c.Compose(acmeBundle(), "  Acme   Corp ")

	assert.Contains(t, out, "Company: Acme Corp\n")
	for _, title := range []string{"## Company Overview", "## Market Position", "## AI Initiatives"} {
		assert.Contains(t, out, title)
	}
	assert.Less(t, strings.Index(out, "## Company Overview"), strings.Index(out, "## Market Position"))
	assert.Less(t, strings.Index(out, "## Market Position"), strings.Index(out, "## AI Initiatives"))
	assert.Contains(t, out, "- COMPANY-HIGH fact\n")
	assert.Contains(t, out, "generate 5 practical AI/GenAI use cases for Acme Corp")
	assert.Contains(t, out, "Complexity: [Low/Medium/High]")
	assert.Contains(t, out, "- Process Automation\n")

	assert.Equal(t, out, c.Compose(acmeBundle(), "Acme Corp"))
}

func TestComposeLimitsDetailsPerTopic(t *testing.T) {
	b := acmeBundle()
	b.CompanyInfo.Details = []string{"d1", "d2", "d3", "d4"}
	b.CompanyInfo.DetailRelevance = []float64{0.4, 0.3, 0.2, 0.1}

	out := NewComposer(DefaultOptions()).Compose(b, "Acme")
	assert.Contains(t, out, "- d3\n")
	assert.NotContains(t, out, "- d4")
}

func TestComposeDropsLowestRelevanceFirst(t *testing.T) {
	// 长公司名让完整 prompt 高于上限的下限
	name := strings.Repeat("Acme ", 40)
	full := NewComposer(Options{MaxTokens: 100000, CharsPerToken: 1}).Compose(acmeBundle(), name)
	n := utf8.RuneCountInString(full)

	c := NewComposer(Options{MaxTokens: n - 1, CharsPerToken: 1})
	require.Equal(t, n-1, c.Ceiling())
	out := c.Compose(acmeBundle(), name)

	assert.LessOrEqual(t, utf8.RuneCountInString(out), c.Ceiling())
	// 两条相关度均为 0.2，后面话题的先丢
	assert.NotContains(t, out, "AI-LOW")
	assert.Contains(t, out, "COMPANY-LOW")
	assert.Contains(t, out, "MARKET-MID")
	assert.Contains(t, out, "AI-HIGH")
	assert.Contains(t, out, "COMPANY-HIGH")
}

func TestComposeTrimsSummariesAtSentences(t *testing.T) {
	long := strings.Repeat("Acme ships anvils worldwide. ", 40)
	b := model.ResearchBundle{
		CompanyInfo: summary(model.TopicCompany, long, []string{"detail"}, []float64{0.5}),
		MarketInfo:  summary(model.TopicMarket, long, nil, nil),
		AIInfo:      summary(model.TopicAI, long, nil, nil),
	}
	c := NewComposer(Options{MaxTokens: 400, CharsPerToken: 4})
	out := c.Compose(b, "Acme")

	require.LessOrEqual(t, utf8.RuneCountInString(out), c.Ceiling())
	assert.NotContains(t, out, "- detail")
	assert.Contains(t, out, "Resources: [requirement; requirement; requirement]")
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Summary: ") {
			assert.True(t, strings.HasSuffix(line, "."), line)
		}
	}
}

func TestComposeHardCutKeepsInstructions(t *testing.T) {
	b := model.ResearchBundle{
		CompanyInfo: summary(model.TopicCompany, strings.Repeat("x", 20000), nil, nil),
		MarketInfo:  summary(model.TopicMarket, model.NoInformationFound, nil, nil),
		AIInfo:      summary(model.TopicAI, model.NoInformationFound, nil, nil),
	}
	c := NewComposer(Options{MaxTokens: 300, CharsPerToken: 4})
	out := c.Compose(b, "Acme")

	assert.LessOrEqual(t, utf8.RuneCountInString(out), c.Ceiling())
	assert.Contains(t, out, "Format each use case exactly as follows")
	assert.True(t, strings.HasSuffix(out, "Resources: [requirement; requirement; requirement]\n"))
}

func TestComposeSentinelBundle(t *testing.T) {
	var b model.ResearchBundle
	for _, topic := range model.AllTopics() {
		b.Set(model.TopicSummary{Topic: topic, Summary: model.NoInformationFound, Details: []string{}})
	}
	out := NewComposer(DefaultOptions()).Compose(b, "Acme Corp")
	assert.Equal(t, 3, strings.Count(out, "Summary: "+model.NoInformationFound))
}

func TestComposeAlwaysWithinCeiling(t *testing.T) {
	detail := strings.Repeat("word ", 100)
	b := model.ResearchBundle{}
	for _, topic := range model.AllTopics() {
		b.Set(summary(topic, strings.Repeat("Sentence here. ", 20),
			[]string{detail, detail, detail}, []float64{0.3, 0.2, 0.1}))
	}
	for _, tokens := range []int{250, 400, 600, 1000, 2048} {
		c := NewComposer(Options{MaxTokens: tokens, CharsPerToken: 4})
		out := c.Compose(b, "Acme")
		assert.LessOrEqual(t, utf8.RuneCountInString(out), c.Ceiling(), "max tokens %d", tokens)
		assert.LessOrEqual(t, c.EstimateTokens(out), tokens)
	}
}

func TestComposeTinyCeilingKeepsInstructions(t *testing.T) {
	var b model.ResearchBundle
	for _, topic := range model.AllTopics() {
		b.Set(model.TopicSummary{Topic: topic, Summary: model.NoInformationFound, Details: []string{}})
	}
	for _, tokens := range []int{1, 50, 100} {
		c := NewComposer(Options{MaxTokens: tokens, CharsPerToken: 4})
		for _, name := range []string{"Acme", strings.Repeat("Acme ", 80)} {
			out := c.Compose(b, name)
			assert.LessOrEqual(t, utf8.RuneCountInString(out), c.Ceiling(), "max tokens %d", tokens)
			assert.True(t, strings.HasSuffix(out, "Resources: [requirement; requirement; requirement]\n"))
		}
	}
}

func TestDropLastSentence(t *testing.T) {
	s, ok := dropLastSentence("One. Two! Three?")
	assert.True(t, ok)
	assert.Equal(t, "One. Two!", s)

	_, ok = dropLastSentence("Only one sentence.")
	assert.False(t, ok)
}
