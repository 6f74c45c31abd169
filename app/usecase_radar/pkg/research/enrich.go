package research

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/logger"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
)

// Fetcher 抓取网页正文
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ReadabilityFetcher 使用 go-readability 抽取正文
type ReadabilityFetcher struct {
	Timeout time.Duration
}

// Fetch implements Fetcher
func (f ReadabilityFetcher) Fetch(ctx context.Context, url string) (string, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	article, err := readability.FromURL(url, timeout)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(article.TextContent), nil
}

// enrich 将过短的片段替换为抓取到的正文，抓取失败时保留原片段
func enrich(ctx context.Context, f Fetcher, snippets []model.Snippet, minChars int) {
	for i := range snippets {
		s := &snippets[i]
		if s.URL == "" || utf8.RuneCountInString(s.Text) >= minChars {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		body, err := f.Fetch(ctx, s.URL)
		if err != nil {
			logger.Log.Debugf("抓取正文失败 [%s]: %v", s.URL, err)
			continue
		}
		if utf8.RuneCountInString(body) > utf8.RuneCountInString(s.Text) {
			s.Text = body
		}
	}
}
