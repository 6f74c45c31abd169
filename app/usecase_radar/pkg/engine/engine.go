package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/aggregate"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/config"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/errs"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/generation"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/logger"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/metrics"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/parser"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/prompt"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/report"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/research"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/search/factory"
)

// Researcher 并行调研，*research.Orchestrator 实现了该接口
type Researcher interface {
	Research(ctx context.Context, company string) (model.ResearchBundle, error)
}

// Generator 生成模型调用，*generation.Client 实现了该接口
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options 引擎依赖，测试与服务端可直接注入
type Options struct {
	Researcher         Researcher
	Composer           *prompt.Composer
	Generator          Generator
	Parser             *parser.Parser
	Assembler          *report.Assembler
	MinPopulatedTopics int
}

// Engine 核心处理引擎
type Engine struct {
	researcher Researcher
	composer   *prompt.Composer
	generator  Generator
	parser     *parser.Parser
	assembler  *report.Assembler
	minTopics  int

	closer func() error
}

// New 使用注入的依赖创建引擎，未提供的组件使用默认配置
func New(opts Options) *Engine {
	e := &Engine{
		researcher: opts.Researcher,
		composer:   opts.Composer,
		generator:  opts.Generator,
		parser:     opts.Parser,
		assembler:  opts.Assembler,
		minTopics:  opts.MinPopulatedTopics,
	}
	if e.composer == nil {
		e.composer = prompt.NewComposer(prompt.DefaultOptions())
	}
	if e.parser == nil {
		e.parser = parser.New(prompt.DefaultOptions().UseCaseCount)
	}
	if e.assembler == nil {
		e.assembler = report.NewAssembler()
	}
	return e
}

// NewEngine 根据配置创建引擎实例
func NewEngine(ctx context.Context, cfg *config.Config) (*Engine, error) {
	// 初始化限流器
	limit := rate.Limit(float64(cfg.Concurrency.RPM) / 60.0)
	burst := cfg.Concurrency.QPS
	limiter := rate.NewLimiter(limit, burst)

	// 初始化搜索客户端
	searcher, err := factory.NewSearcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("搜索客户端初始化失败: %w", err)
	}

	clientOpts := research.ClientOptions{
		MaxResults:      cfg.Search.MaxResults,
		Timeout:         cfg.SearchTimeout(),
		Retries:         cfg.SearchRetries(),
		Backoff:         cfg.SearchBackoff(),
		Limiter:         limiter,
		MinSnippetChars: cfg.Search.MinSnippetChars,
	}
	if cfg.Search.Enrich {
		clientOpts.Fetcher = research.ReadabilityFetcher{Timeout: cfg.SearchTimeout()}
	}

	orchestrator := research.NewOrchestrator(
		research.NewClient(searcher, clientOpts),
		aggregate.New(aggregate.Limits{
			MaxDetails:   cfg.Aggregate.MaxDetails,
			DetailChars:  cfg.Aggregate.DetailChars,
			SummaryChars: cfg.Aggregate.SummaryChars,
		}),
		research.OrchestratorOptions{
			Deadline:  cfg.ResearchDeadline(),
			CacheTTL:  cfg.CacheTTL(),
			CacheSize: cfg.Research.CacheSize,
		},
	)

	// 初始化 LLM
	gen, err := generation.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	e := New(Options{
		Researcher: orchestrator,
		Composer: prompt.NewComposer(prompt.Options{
			MaxTokens:       cfg.Prompt.MaxTokens,
			CharsPerToken:   cfg.Prompt.CharsPerToken,
			DetailsPerTopic: cfg.Prompt.DetailsPerTopic,
			UseCaseCount:    cfg.Prompt.UseCaseCount,
		}),
		Generator:          gen,
		Parser:             parser.New(cfg.Prompt.UseCaseCount),
		Assembler:          report.NewAssembler(report.WithFailOnEmpty(cfg.Policy.FailOnEmptyUseCases)),
		MinPopulatedTopics: cfg.Policy.MinPopulatedTopics,
	})
	e.closer = gen.Close
	return e, nil
}

// Close 释放生成客户端
func (e *Engine) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

// Run 为一个公司执行完整流水线：调研、组装 prompt、生成、解析、出报告
func (e *Engine) Run(ctx context.Context, company string) (*model.Report, error) {
	rep, err := e.run(ctx, company)
	metrics.PipelineRuns.WithLabelValues(outcomeLabel(err)).Inc()
	return rep, err
}

func (e *Engine) run(ctx context.Context, company string) (*model.Report, error) {
	name := model.CleanCompany(company)
	log := logger.Log.WithField("company", name)
	start := time.Now()

	// 1. 调研
	log.Info("开始调研")
	bundle, err := e.researcher.Research(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("research failed: %w", err)
	}
	populated := bundle.Populated()
	log.WithFields(logrus.Fields{"populated": populated, "degraded": bundle.Degraded()}).Info("调研完成")

	if populated < e.minTopics {
		return nil, fmt.Errorf("%w: %d of %d topics populated", errs.ErrInsufficientResearch, populated, e.minTopics)
	}

	// 2. 组装 prompt
	text := e.composer.Compose(bundle, name)
	log.WithField("tokens", e.composer.EstimateTokens(text)).Debug("prompt 组装完成")

	// 3. 生成
	if e.generator == nil {
		return nil, fmt.Errorf("%w: no generator configured", errs.ErrModelUnavailable)
	}
	raw, err := e.generator.Generate(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	// 4. 解析
	parsed := e.parser.Parse(raw)
	metrics.ParsedUseCases.Observe(float64(len(parsed.UseCases)))
	if parsed.Partial() {
		metrics.PartialParses.Inc()
		log.WithField("warnings", len(parsed.Warnings)).Warnf("模型输出只被部分解析: %v", parsed.Warnings)
	}

	// 5. 出报告
	rep, err := e.assembler.Assemble(name, bundle, parsed)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"run_id":    rep.RunID,
		"use_cases": len(rep.AIUseCases),
		"elapsed":   time.Since(start).Round(time.Millisecond),
	}).Info("报告生成完成")
	return rep, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, errs.ErrInsufficientResearch):
		return "insufficient_research"
	case errors.Is(err, errs.ErrNoUseCases):
		return "no_use_cases"
	case errors.Is(err, errs.ErrGenerationTimeout):
		return "generation_timeout"
	default:
		return "error"
	}
}
