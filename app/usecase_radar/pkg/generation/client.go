// Package generation 封装对生成模型的单次调用：串行化、超时与错误归类。
package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/errs"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/logger"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/metrics"
)

// MaxTemperature 生成温度上限，保证输出尽量稳定
const MaxTemperature float32 = 0.3

// Params 固定的生成参数
type Params struct {
	MaxTokens   int
	Temperature float32
}

// Backend 具体的模型后端
type Backend interface {
	Name() string
	Complete(ctx context.Context, prompt string, p Params) (string, error)
	Close() error
}

// Options 客户端参数
type Options struct {
	Params  Params
	Timeout time.Duration
	Limiter *rate.Limiter
}

// Client 生成客户端，同一时刻最多一个在途调用
type Client struct {
	backend Backend
	params  Params
	timeout time.Duration
	limiter *rate.Limiter

	slot      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient 包装一个后端
func NewClient(backend Backend, opts Options) *Client {
	if opts.Params.MaxTokens <= 0 {
		opts.Params.MaxTokens = 1000
	}
	// 0 是合法的确定性采样
	if opts.Params.Temperature < 0 {
		opts.Params.Temperature = 0.2
	}
	if opts.Params.Temperature > MaxTemperature {
		opts.Params.Temperature = MaxTemperature
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{
		backend: backend,
		params:  opts.Params,
		timeout: opts.Timeout,
		limiter: opts.Limiter,
		slot:    make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

// Params 返回生效的生成参数
func (c *Client) Params() Params {
	return c.params
}

// Generate 发送 prompt 并返回原始文本，不做重试。
// 超时返回 ErrGenerationTimeout；不可达、5xx 或已关闭返回 ErrModelUnavailable。
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case <-c.closed:
		return "", fmt.Errorf("%w: client closed", errs.ErrModelUnavailable)
	default:
	}

	// 等待槽位
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return "", classify(ctx.Err())
	case <-c.closed:
		return "", fmt.Errorf("%w: client closed", errs.ErrModelUnavailable)
	}
	defer func() { <-c.slot }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", classify(err)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := c.backend.Complete(cctx, prompt, c.params)
	if err == nil && cctx.Err() != nil {
		err = cctx.Err()
	}
	elapsed := time.Since(start)

	if err != nil {
		err = classify(err)
		metrics.GenerationDuration.WithLabelValues(c.backend.Name(), outcomeLabel(err)).Observe(elapsed.Seconds())
		logger.Log.WithField("backend", c.backend.Name()).Errorf("生成失败 (%v): %v", elapsed.Round(time.Millisecond), err)
		return "", err
	}

	metrics.GenerationDuration.WithLabelValues(c.backend.Name(), "ok").Observe(elapsed.Seconds())
	logger.Log.WithField("backend", c.backend.Name()).Debugf("生成完成，耗时 %v，%d 字符", elapsed.Round(time.Millisecond), len(text))
	return text, nil
}

// Close 释放后端，之后的调用返回 ErrModelUnavailable
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.backend.Close()
	})
	return err
}

// classify 将后端错误归入统一的分类
func classify(err error) error {
	switch {
	case errors.Is(err, errs.ErrGenerationTimeout),
		errors.Is(err, errs.ErrModelUnavailable),
		errors.Is(err, errs.ErrAuthentication),
		errors.Is(err, errs.ErrQuotaExceeded):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", errs.ErrGenerationTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", errs.ErrModelUnavailable, err)
	}

	var perr *errs.ProviderError
	if errors.As(err, &perr) {
		switch {
		case errors.Is(perr.Kind, errs.ErrAuthentication), errors.Is(perr.Kind, errs.ErrQuotaExceeded):
			return err
		}
		return fmt.Errorf("%w: %v", errs.ErrModelUnavailable, err)
	}

	switch kind := errs.ClassifyMessage(err); kind {
	case errs.ErrAuthentication, errs.ErrQuotaExceeded:
		return fmt.Errorf("%w: %v", kind, err)
	}
	return fmt.Errorf("%w: %v", errs.ErrModelUnavailable, err)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, errs.ErrGenerationTimeout):
		return "timeout"
	case errors.Is(err, errs.ErrAuthentication):
		return "auth"
	case errors.Is(err, errs.ErrQuotaExceeded):
		return "quota"
	default:
		return "unavailable"
	}
}
