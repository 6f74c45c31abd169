// Package research 负责生成话题查询并并行调用搜索服务。
package research

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/errs"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/logger"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/metrics"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/search"
)

// ClientOptions 搜索客户端参数
type ClientOptions struct {
	MaxResults int
	Timeout    time.Duration // 单次尝试超时
	Retries    int
	Backoff    time.Duration // 退避基数，每次翻倍
	Limiter    *rate.Limiter

	// 可选的正文补全
	Fetcher         Fetcher
	MinSnippetChars int
}

// Client 带重试与限流的搜索客户端
type Client struct {
	searcher search.Searcher
	opts     ClientOptions
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewClient 创建搜索客户端
func NewClient(searcher search.Searcher, opts ClientOptions) *Client {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.MinSnippetChars <= 0 {
		opts.MinSnippetChars = 200
	}
	return &Client{searcher: searcher, opts: opts, sleep: sleepCtx}
}

// Search 执行单个话题的搜索。
// 认证或额度错误立即返回 error；其余失败在重试耗尽后返回带 FailureReason 的空结果。
func (c *Client) Search(ctx context.Context, q model.TopicQuery) (model.RawResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			metrics.SearchRetries.WithLabelValues(string(q.Topic)).Inc()
			delay := c.opts.Backoff * time.Duration(1<<(attempt-1))
			logger.Log.WithField("topic", q.Topic).Warnf("搜索失败，%v 后第 %d 次重试: %v", delay, attempt, lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}
		if c.opts.Limiter != nil {
			if err := c.opts.Limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		res, err := c.attempt(ctx, q)
		if err == nil {
			metrics.SearchRequests.WithLabelValues(string(q.Topic), "ok").Inc()
			if c.opts.Fetcher != nil {
				enrich(ctx, c.opts.Fetcher, res.Snippets, c.opts.MinSnippetChars)
			}
			return res, nil
		}
		lastErr = err

		if errs.IsFatalProvider(err) {
			metrics.SearchRequests.WithLabelValues(string(q.Topic), "fatal").Inc()
			return model.EmptyResult(q.Topic, err.Error()), fmt.Errorf("search %s: %w", q.Topic, err)
		}
		if !errs.IsRetryable(err) {
			break
		}
	}

	metrics.SearchRequests.WithLabelValues(string(q.Topic), "failed").Inc()
	reason := "search failed"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	return model.EmptyResult(q.Topic, reason), nil
}

func (c *Client) attempt(ctx context.Context, q model.TopicQuery) (model.RawResult, error) {
	actx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	resp, err := c.searcher.Search(actx, &search.Request{
		Query:      q.Text,
		MaxResults: c.opts.MaxResults,
	})
	if err != nil {
		return model.RawResult{}, err
	}
	if resp == nil {
		return model.RawResult{}, errors.New("empty search response")
	}

	res := model.RawResult{Topic: q.Topic, Snippets: make([]model.Snippet, 0, len(resp.Results))}
	for _, r := range resp.Results {
		res.Snippets = append(res.Snippets, model.Snippet{
			Text:      r.Content,
			Relevance: r.Score,
			Title:     r.Title,
			URL:       r.URL,
		})
	}
	return res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
