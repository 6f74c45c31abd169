package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/errs"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/parser"
)

var fixed = time.Date(2026, 10, 19, 14, 5, 0, 0, time.UTC)

func clock() time.Time { return fixed }

func TestAssemble(t *testing.T) {
	parsed := parser.Result{
		UseCases: []model.UseCase{{Title: "Demand Forecasting", Complexity: model.LevelMedium, Impact: model.LevelHigh}},
		Warnings: []string{"use case \"Demand Forecasting\" missing resources"},
	}
	var bundle model.ResearchBundle
	bundle.Set(model.TopicSummary{Topic: model.TopicCompany, Summary: "Acme makes anvils"})

	r, err := NewAssembler(WithClock(clock)).Assemble("  Acme   Corp ", bundle, parsed)
	require.NoError(t, err)

	assert.Equal(t, "acme corp", r.CompanyName)
	assert.Equal(t, "2026-10-19", r.AnalysisDate)
	assert.Equal(t, fixed, r.GeneratedAt)
	assert.Equal(t, "Acme makes anvils", r.ResearchData.CompanyInfo.Summary)
	assert.Len(t, r.AIUseCases, 1)
	assert.Equal(t, parsed.Warnings, r.ParseWarnings)
	_, err = uuid.Parse(r.RunID)
	assert.NoError(t, err)
}

func TestAssembleJSONKeys(t *testing.T) {
	r, err := NewAssembler(WithClock(clock)).Assemble("Acme", model.ResearchBundle{}, parser.Result{})
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"company_name", "analysis_date", "research_data", "ai_use_cases"} {
		assert.Contains(t, m, key)
	}
	research := m["research_data"].(map[string]any)
	for _, key := range []string{"company_info", "market_info", "ai_info"} {
		assert.Contains(t, research, key)
	}
	assert.Equal(t, []any{}, m["ai_use_cases"])
}

func TestAssembleEmptyUseCasesPolicy(t *testing.T) {
	_, err := NewAssembler(WithFailOnEmpty(true)).Assemble("Acme", model.ResearchBundle{}, parser.Result{})
	assert.ErrorIs(t, err, errs.ErrNoUseCases)

	r, err := NewAssembler().Assemble("Acme", model.ResearchBundle{}, parser.Result{})
	require.NoError(t, err)
	assert.Empty(t, r.AIUseCases)
}

func TestAssembleRejectsBlankCompany(t *testing.T) {
	_, err := NewAssembler().Assemble(" ", model.ResearchBundle{}, parser.Result{})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}
