package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
)

const canonical = `Use Case 1:
Title: Demand Forecasting
Description: Predict anvil demand per region from order history.
Complexity: Medium
Impact: High
Resources: sales history; weather feeds; data engineer

Use Case 2:
Title: Support Assistant
Description: Answer dealer questions with a retrieval-augmented chatbot.
Complexity: Low
Impact: Medium
Resources: product manuals, support tickets
`

func TestParseCanonical(t *testing.T) {
	res := New(2).Parse(canonical)

	require.Len(t, res.UseCases, 2)
	assert.Equal(t, model.UseCase{
		Title:       "Demand Forecasting",
		Description: "Predict anvil demand per region from order history.",
		Complexity:  model.LevelMedium,
		Impact:      model.LevelHigh,
		Resources:   []string{"sales history", "weather feeds", "data engineer"},
	}, res.UseCases[0])
	assert.Equal(t, []string{"product manuals", "support tickets"}, res.UseCases[1].Resources)
	assert.False(t, res.Partial())
	assert.Equal(t, 2, res.Candidates)
}

func TestParseMarkdownDecorations(t *testing.T) {
	raw := "### **Use Case 1: Demand Forecasting**\r\n" +
		"- **Description:** Predict demand.\r\n" +
		"- **Complexity**: Medium-High\r\n" +
		"- **Impact:** High\r\n" +
		"- **Resources:**\r\n" +
		"  - Sales data\r\n" +
		"  - ML engineers\r\n"

	res := New(0).Parse(raw)
	require.Len(t, res.UseCases, 1)
	uc := res.UseCases[0]
	assert.Equal(t, "Demand Forecasting", uc.Title)
	assert.Equal(t, "Predict demand.", uc.Description)
	assert.Equal(t, model.LevelMedium, uc.Complexity)
	assert.Equal(t, model.LevelHigh, uc.Impact)
	assert.Equal(t, []string{"Sales data", "ML engineers"}, uc.Resources)
	assert.False(t, res.Partial())
}

func TestParseOriginalNumberedFields(t *testing.T) {
	raw := `Use Case #1: Smart Routing
1. Problem: Late deliveries
2. Solution: Route optimisation with reinforcement learning
3. Complexity: [High]
4. Impact: High - cuts fuel costs
5. Resources: GPS data, fleet telemetry`

	res := New(0).Parse(raw)
	require.Len(t, res.UseCases, 1)
	uc := res.UseCases[0]
	assert.Equal(t, "Smart Routing", uc.Title)
	assert.Equal(t, "Late deliveries Route optimisation with reinforcement learning", uc.Description)
	assert.Equal(t, model.LevelHigh, uc.Complexity)
	assert.Equal(t, []string{"GPS data", "fleet telemetry"}, uc.Resources)
}

func TestParseNumberedListMissingComplexity(t *testing.T) {
	raw := `Here are three ideas:

1. Demand Forecasting
   Description: Predict demand.
   Impact: High
   Resources: sales history; weather feeds
2. Support Chatbot
   Description: Answer dealer questions.
   Complexity: Low
   Impact: Medium
   Resources: manuals
3. Quality Inspection
   Description: Detect defects on the line.
   Complexity: High
   Impact: High
   Resources: camera feeds`

	res := New(3).Parse(raw)
	require.Len(t, res.UseCases, 3)

	first := res.UseCases[0]
	assert.Equal(t, "Demand Forecasting", first.Title)
	assert.Equal(t, model.LevelUnknown, first.Complexity)
	assert.Equal(t, "Predict demand.", first.Description)
	assert.Equal(t, model.LevelHigh, first.Impact)
	assert.Equal(t, []string{"sales history", "weather feeds"}, first.Resources)

	assert.Equal(t, "Support Chatbot", res.UseCases[1].Title)
	assert.Equal(t, "Quality Inspection", res.UseCases[2].Title)
	assert.Equal(t, 1, res.Incomplete)
	assert.True(t, res.Partial())
}

func TestParseHeadingsIgnoreGroupingHeading(t *testing.T) {
	raw := `# AI Opportunities for Acme

## Demand Forecasting
Description: Predict demand.
Complexity: High
Impact: High
Resources: data

## Support Chatbot
Description: Answer questions.
Complexity: Low
Impact: Moderate
Resources: manuals`

	res := New(0).Parse(raw)
	require.Len(t, res.UseCases, 2)
	assert.Equal(t, "Demand Forecasting", res.UseCases[0].Title)
	assert.Equal(t, model.LevelMedium, res.UseCases[1].Impact)
}

func TestParseNoMarkers(t *testing.T) {
	res := New(0).Parse("I am unable to suggest use cases for this company.")
	assert.Empty(t, res.UseCases)
	assert.NotNil(t, res.UseCases)
	assert.True(t, res.Partial())

	res = New(0).Parse("")
	assert.Empty(t, res.UseCases)
	assert.False(t, res.Partial())

	res = New(5).Parse("   ")
	assert.Empty(t, res.UseCases)
	assert.True(t, res.Partial())
}

func TestParseStripsThinkAndFences(t *testing.T) {
	raw := "<think>\nUse Case 9: bogus\n</think>\n```markdown\nUse Case 1: Real One\nDescription: d\nComplexity: low\nImpact: high\nResources: a\n```"

	res := New(0).Parse(raw)
	require.Len(t, res.UseCases, 1)
	assert.Equal(t, "Real One", res.UseCases[0].Title)
	assert.Equal(t, []string{"a"}, res.UseCases[0].Resources)
}

func TestParseDropsUntitledChunk(t *testing.T) {
	raw := `Use Case 1:
Complexity: Low
Impact: High

Use Case 2:
Title: Kept
Description: d
Complexity: Low
Impact: Low
Resources: r`

	res := New(2).Parse(raw)
	require.Len(t, res.UseCases, 1)
	assert.Equal(t, "Kept", res.UseCases[0].Title)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 2, res.Candidates)
	assert.True(t, res.Partial())
}

func TestParseLabelOnMarkerLine(t *testing.T) {
	raw := `Use Case 1: Title: Smart Routing
Description: Optimise delivery routes.
Complexity: Medium
Impact: High
Resources: GPS data

Use Case 2: **Title:** Churn Alerts
Description: Warn account managers early.
Complexity: Low
Impact: Medium
Resources: CRM history

Use Case 3: Description: Flag late invoices.
Title: Invoice Watch
Complexity: Low
Impact: Low
Resources: ledger`

	res := New(3).Parse(raw)
	require.Len(t, res.UseCases, 3)
	assert.Equal(t, "Smart Routing", res.UseCases[0].Title)
	assert.Equal(t, "Optimise delivery routes.", res.UseCases[0].Description)
	assert.Equal(t, "Churn Alerts", res.UseCases[1].Title)
	assert.Equal(t, "Invoice Watch", res.UseCases[2].Title)
	assert.Equal(t, "Flag late invoices.", res.UseCases[2].Description)
	assert.False(t, res.Partial(), res.Warnings)
}

func TestParseOriginalFormatWithoutTitle(t *testing.T) {
	raw := `Use Case #1:
1. Problem: Late deliveries in rural areas.
2. Solution: Route optimisation with reinforcement learning
3. Complexity: High
4. Impact: High
5. Resources: GPS data, fleet telemetry

Use Case #2:
1. Problem: Manual invoice matching, slow and error-prone
2. Solution: Document AI extracts invoice fields
3. Complexity: Low
4. Impact: Medium
5. Resources: scanned invoices`

	res := New(2).Parse(raw)
	require.Len(t, res.UseCases, 2)
	assert.Zero(t, res.Dropped)
	assert.Equal(t, "Late deliveries in rural areas", res.UseCases[0].Title)
	assert.Equal(t, "Late deliveries in rural areas. Route optimisation with reinforcement learning", res.UseCases[0].Description)
	assert.Equal(t, "Manual invoice matching", res.UseCases[1].Title)
	assert.Equal(t, model.LevelMedium, res.UseCases[1].Impact)
	assert.Equal(t, 2, res.Incomplete)
	assert.True(t, res.Partial())
}

func TestParseTitleFallbacks(t *testing.T) {
	raw := `Use Case 1:
Inventory Optimisation
Description: Keep stock lean.

Use Case 2:
Title: Pricing Engine
Adjusts prices daily.
Complexity: High`

	res := New(0).Parse(raw)
	require.Len(t, res.UseCases, 2)
	assert.Equal(t, "Inventory Optimisation", res.UseCases[0].Title)
	assert.Equal(t, "Pricing Engine", res.UseCases[1].Title)
	assert.Equal(t, "Adjusts prices daily.", res.UseCases[1].Description)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]model.Level{
		"Low":                   model.LevelLow,
		"HIGH":                  model.LevelHigh,
		"Medium-High":           model.LevelMedium,
		"moderate effort":       model.LevelMedium,
		"Significant savings":   model.LevelUnknown,
		"":                      model.LevelUnknown,
		"[Low/Medium/High]":     model.LevelLow,
		"Highly transformative": model.LevelUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestParseNeverPanics(t *testing.T) {
	inputs := []string{
		"Use Case",
		"Use Case 1",
		"###",
		"1.",
		"1. Title:",
		":::\n::",
		"<think>",
		"</think>",
		"```",
		strings.Repeat("Use Case 1:\n", 100),
		"Use Case 1: \x00\xff\xfe",
		"Resources: ;;;,,,",
		"Title: A\nResources:\n-\n- \n*",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { New(5).Parse(in) }, in)
	}
}
