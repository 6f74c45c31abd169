package research

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/aggregate"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/logger"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/metrics"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
)

const (
	reasonDeadline  = "research deadline exceeded"
	reasonCancelled = "research cancelled"
)

// TopicSearcher 单话题搜索，*Client 实现了该接口
type TopicSearcher interface {
	Search(ctx context.Context, q model.TopicQuery) (model.RawResult, error)
}

// OrchestratorOptions 并行调研参数
type OrchestratorOptions struct {
	Deadline  time.Duration
	CacheTTL  time.Duration // <=0 关闭缓存
	CacheSize int
}

// Orchestrator 并行调研三个话题，并把结果聚合为 ResearchBundle
type Orchestrator struct {
	searcher   TopicSearcher
	aggregator *aggregate.Aggregator
	deadline   time.Duration
	cache      *expirable.LRU[string, model.ResearchBundle]
	group      singleflight.Group
}

// NewOrchestrator 创建调研编排器
func NewOrchestrator(searcher TopicSearcher, aggregator *aggregate.Aggregator, opts OrchestratorOptions) *Orchestrator {
	if opts.Deadline <= 0 {
		opts.Deadline = 30 * time.Second
	}
	if aggregator == nil {
		aggregator = aggregate.New(aggregate.DefaultLimits())
	}
	o := &Orchestrator{
		searcher:   searcher,
		aggregator: aggregator,
		deadline:   opts.Deadline,
	}
	if opts.CacheTTL > 0 {
		size := opts.CacheSize
		if size <= 0 {
			size = 128
		}
		o.cache = expirable.NewLRU[string, model.ResearchBundle](size, nil, opts.CacheTTL)
	}
	return o
}

// Research 为公司并行调研，只有公司名非法时返回错误。
// 超过截止时间仍未返回的话题以空结果代替，不会等待在途请求。
// 同一公司的并发调研共用一次搜索，调用方取消只结束自己的等待。
func (o *Orchestrator) Research(ctx context.Context, company string) (model.ResearchBundle, error) {
	queries, err := BuildQueries(company)
	if err != nil {
		return model.ResearchBundle{}, err
	}

	key := model.NormalizeCompany(company)
	if o.cache != nil {
		if bundle, ok := o.cache.Get(key); ok {
			metrics.ResearchCacheHits.Inc()
			logger.Log.WithField("company", key).Info("命中调研缓存")
			return bundle, nil
		}
	}

	// 共享的调研不继承任何调用方的取消，只受截止时间约束
	shared := context.WithoutCancel(ctx)
	ch := o.group.DoChan(key, func() (any, error) {
		bundle := o.collect(shared, key, queries)
		if o.cache != nil && !bundle.Degraded() {
			o.cache.Add(key, bundle)
		}
		return bundle, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			logger.Log.WithField("company", key).Debug("复用并发中的调研结果")
		}
		return res.Val.(model.ResearchBundle), nil
	case <-ctx.Done():
		logger.Log.WithField("company", key).Warnf("调研等待被取消: %v", ctx.Err())
		results := make([]model.RawResult, len(queries))
		for i, q := range queries {
			results[i] = model.EmptyResult(q.Topic, reasonCancelled)
		}
		return o.summarize(key, queries, results), nil
	}
}

func (o *Orchestrator) collect(ctx context.Context, company string, queries []model.TopicQuery) model.ResearchBundle {
	slots := make([]chan model.RawResult, len(queries))
	for i, q := range queries {
		slots[i] = make(chan model.RawResult, 1)
		go func(slot chan<- model.RawResult, q model.TopicQuery) {
			res, err := o.searcher.Search(ctx, q)
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"company": company, "topic": q.Topic}).Errorf("话题调研失败: %v", err)
				res = model.EmptyResult(q.Topic, err.Error())
			}
			slot <- res
		}(slots[i], q)
	}

	// 截止时间只结束等待，在途请求继续运行直到自身超时
	waitCtx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	results := make([]model.RawResult, len(queries))
	for i, q := range queries {
		select {
		case res := <-slots[i]:
			results[i] = res
		case <-waitCtx.Done():
			// 截止后仍检查已经写入的槽位
			select {
			case res := <-slots[i]:
				results[i] = res
			default:
				logger.Log.WithFields(logrus.Fields{"company": company, "topic": q.Topic}).Warn("话题调研未在截止时间内完成")
				results[i] = model.EmptyResult(q.Topic, reasonDeadline)
			}
		}
	}
	return o.summarize(company, queries, results)
}

func (o *Orchestrator) summarize(company string, queries []model.TopicQuery, results []model.RawResult) model.ResearchBundle {
	var bundle model.ResearchBundle
	for i, q := range queries {
		summary := o.aggregator.Summarize(results[i], q.Topic)
		if summary.Degraded {
			metrics.TopicDegraded.WithLabelValues(string(q.Topic), degradeLabel(summary.FailureReason)).Inc()
			logger.Log.WithFields(logrus.Fields{"company": company, "topic": q.Topic, "reason": summary.FailureReason}).Warn("话题降级为空结果")
		}
		bundle.Set(summary)
	}
	return bundle
}

// degradeLabel 将失败原因收敛为有限的指标标签
func degradeLabel(reason string) string {
	switch reason {
	case reasonDeadline:
		return "deadline"
	case reasonCancelled:
		return "cancelled"
	case aggregate.ReasonNoResults:
		return "empty"
	default:
		return "error"
	}
}
