package research

import (
	"fmt"
	"unicode/utf8"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/errs"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
)

// MaxCompanyChars 公司名长度上限
const MaxCompanyChars = model.MaxCompanyChars

var queryTemplates = map[model.Topic]string{
	model.TopicCompany: "%s company overview and business model",
	model.TopicMarket:  "%s market position and competitors",
	model.TopicAI:      "%s AI and machine learning initiatives",
}

// BuildQueries 为公司生成三个话题的查询，顺序固定为 company, market, ai
func BuildQueries(company string) ([]model.TopicQuery, error) {
	name := model.CleanCompany(company)
	if name == "" {
		return nil, fmt.Errorf("%w: company name is blank", errs.ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > MaxCompanyChars {
		return nil, fmt.Errorf("%w: company name exceeds %d characters", errs.ErrInvalidInput, MaxCompanyChars)
	}

	queries := make([]model.TopicQuery, 0, len(queryTemplates))
	for _, topic := range model.AllTopics() {
		queries = append(queries, model.TopicQuery{
			Topic: topic,
			Text:  fmt.Sprintf(queryTemplates[topic], name),
		})
	}
	return queries, nil
}
