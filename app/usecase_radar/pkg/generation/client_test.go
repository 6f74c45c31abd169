package generation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/config"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/errs"
)

type fakeBackend struct {
	complete func(ctx context.Context, prompt string, p Params) (string, error)
	closed   atomic.Bool
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Complete(ctx context.Context, prompt string, p Params) (string, error) {
	return f.complete(ctx, prompt, p)
}

func (f *fakeBackend) Close() error {
	f.closed.Store(true)
	return nil
}

func TestGenerateReturnsText(t *testing.T) {
	var got Params
	b := &fakeBackend{complete: func(_ context.Context, prompt string, p Params) (string, error) {
		got = p
		return "Use Case 1:\nTitle: " + prompt, nil
	}}
	c := NewClient(b, Options{Params: Params{MaxTokens: 1000, Temperature: 0.9}})

	text, err := c.Generate(context.Background(), "Forecasting")
	require.NoError(t, err)
	assert.Equal(t, "Use Case 1:\nTitle: Forecasting", text)
	assert.Equal(t, Params{MaxTokens: 1000, Temperature: MaxTemperature}, got)
}

func TestNewClientKeepsZeroTemperature(t *testing.T) {
	c := NewClient(&fakeBackend{}, Options{Params: Params{MaxTokens: 500}})
	assert.Equal(t, Params{MaxTokens: 500, Temperature: 0}, c.Params())

	c = NewClient(&fakeBackend{}, Options{Params: Params{MaxTokens: 500, Temperature: -1}})
	assert.Equal(t, float32(0.2), c.Params().Temperature)
}

func TestGenerateTimeout(t *testing.T) {
	b := &fakeBackend{complete: func(ctx context.Context, _ string, _ Params) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	c := NewClient(b, Options{Timeout: 20 * time.Millisecond})

	_, err := c.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, errs.ErrGenerationTimeout)
}

func TestGenerateClassifiesErrors(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{&errs.ProviderError{Provider: "openai", StatusCode: 401, Kind: errs.ErrAuthentication}, errs.ErrAuthentication},
		{&errs.ProviderError{Provider: "openai", StatusCode: 503, Kind: errs.ErrTransient}, errs.ErrModelUnavailable},
		{errors.New("error, status code: 401, message: Incorrect API key provided"), errs.ErrAuthentication},
		{errors.New("You exceeded your current quota"), errs.ErrQuotaExceeded},
		{errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), errs.ErrModelUnavailable},
		{errors.New("error, status code: 502, message: bad gateway"), errs.ErrModelUnavailable},
	}
	for _, tc := range cases {
		b := &fakeBackend{complete: func(context.Context, string, Params) (string, error) { return "", tc.err }}
		_, err := NewClient(b, Options{}).Generate(context.Background(), "p")
		assert.ErrorIs(t, err, tc.want, tc.err.Error())
	}
}

func TestGenerateSerializesCalls(t *testing.T) {
	var inFlight, peak atomic.Int32
	b := &fakeBackend{complete: func(context.Context, string, Params) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	}}
	c := NewClient(b, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Generate(context.Background(), "p")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, peak.Load())
}

func TestGenerateAfterClose(t *testing.T) {
	b := &fakeBackend{complete: func(context.Context, string, Params) (string, error) { return "ok", nil }}
	c := NewClient(b, Options{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, b.closed.Load())

	_, err := c.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, errs.ErrModelUnavailable)
}

// fakeChatModel 记录最后一次调用的消息与参数
type fakeChatModel struct {
	messages []*schema.Message
	opts     *model.Options
	reply    string
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.messages = input
	f.opts = model.GetCommonOptions(nil, opts...)
	return &schema.Message{Role: schema.Assistant, Content: "  " + f.reply + "\n"}, nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestOpenAIBackendPassesParams(t *testing.T) {
	cm := &fakeChatModel{reply: "Use Case 1:"}
	b := NewChatModelBackend(cm, "test")

	out, err := b.Complete(context.Background(), "prompt body", Params{MaxTokens: 1000, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "Use Case 1:", out)

	require.Len(t, cm.messages, 2)
	assert.Equal(t, schema.User, cm.messages[1].Role)
	assert.Equal(t, "prompt body", cm.messages[1].Content)
	require.NotNil(t, cm.opts.MaxTokens)
	assert.Equal(t, 1000, *cm.opts.MaxTokens)
	require.NotNil(t, cm.opts.Temperature)
	assert.InDelta(t, 0.2, *cm.opts.Temperature, 1e-6)
}

func TestOpen(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "http://127.0.0.1:11434/v1"
	cfg.LLM.APIKey = "k"
	cfg.LLM.Model = "qwen2.5"
	cfg.ApplyDefaults()

	c, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, Params{MaxTokens: 1000, Temperature: 0.2}, c.Params())

	zero := float32(0)
	cfg.LLM.Temperature = &zero
	c0, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer c0.Close()
	assert.Equal(t, float32(0), c0.Params().Temperature)

	cfg.LLM.Provider = "claude"
	_, err = Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown llm provider")
}
