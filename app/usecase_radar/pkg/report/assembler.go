// Package report 将调研结果与解析出的用例组装为最终报告。
package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/errs"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/parser"
)

// Assembler 报告组装器
type Assembler struct {
	failOnEmpty bool
	now         func() time.Time
}

// Option 组装器可选项
type Option func(*Assembler)

// WithClock 替换时钟，测试中固定日期
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithFailOnEmpty 没有任何用例时返回 ErrNoUseCases
func WithFailOnEmpty(fail bool) Option {
	return func(a *Assembler) { a.failOnEmpty = fail }
}

// NewAssembler 创建组装器
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble 组装报告，公司名归一化为小写并合并空白
func (a *Assembler) Assemble(company string, bundle model.ResearchBundle, parsed parser.Result) (*model.Report, error) {
	name := model.NormalizeCompany(company)
	if name == "" {
		return nil, fmt.Errorf("%w: company name is blank", errs.ErrInvalidInput)
	}
	if len(parsed.UseCases) == 0 && a.failOnEmpty {
		return nil, fmt.Errorf("%w for %q", errs.ErrNoUseCases, name)
	}

	useCases := parsed.UseCases
	if useCases == nil {
		useCases = []model.UseCase{}
	}

	now := a.now()
	return &model.Report{
		RunID:         uuid.NewString(),
		CompanyName:   name,
		AnalysisDate:  now.Format(time.DateOnly),
		GeneratedAt:   now,
		ResearchData:  bundle,
		AIUseCases:    useCases,
		ParseWarnings: append([]string(nil), parsed.Warnings...),
	}, nil
}
