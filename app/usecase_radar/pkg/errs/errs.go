// Package errs 定义流水线的错误分类，以及外部服务状态码到分类的映射。
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrAuthentication       = errors.New("provider authentication failed")
	ErrQuotaExceeded        = errors.New("provider quota exceeded")
	ErrTransient            = errors.New("provider transient failure")
	ErrBadRequest           = errors.New("provider rejected request")
	ErrModelUnavailable     = errors.New("model unavailable")
	ErrGenerationTimeout    = errors.New("generation timed out")
	ErrNoUseCases           = errors.New("no use cases recovered")
	ErrInsufficientResearch = errors.New("insufficient research data")
)

// ProviderError 外部服务返回的错误，同时携带分类和原始原因
type ProviderError struct {
	Provider   string
	StatusCode int
	Kind       error
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap 让 errors.Is 同时匹配分类和原因
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindForStatus 将 HTTP 状态码映射到错误分类，2xx 返回 nil
func KindForStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuthentication
	// Tavily 使用 432/433 表示套餐额度用尽
	case code == http.StatusPaymentRequired || code == 432 || code == 433:
		return ErrQuotaExceeded
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500:
		return ErrTransient
	default:
		return ErrBadRequest
	}
}

// FromStatus 根据状态码构造 ProviderError
func FromStatus(provider string, code int, body string) error {
	kind := KindForStatus(code)
	if kind == nil {
		return nil
	}
	var cause error
	if body = strings.TrimSpace(body); body != "" {
		if len(body) > 512 {
			body = body[:512]
		}
		cause = errors.New(body)
	}
	return &ProviderError{Provider: provider, StatusCode: code, Kind: kind, Err: cause}
}

// IsFatalProvider 认证或额度错误，重试无意义
func IsFatalProvider(err error) bool {
	return errors.Is(err, ErrAuthentication) || errors.Is(err, ErrQuotaExceeded)
}

// IsRetryable 判断错误是否为可重试的瞬时故障
func IsRetryable(err error) bool {
	if err == nil || IsFatalProvider(err) || errors.Is(err, ErrBadRequest) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection reset",
		"connection refused",
		"connection closed",
		"broken pipe",
		"tls handshake timeout",
		"client.timeout",
		"eof",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// ClassifyMessage 从第三方 SDK 的错误文本中推断分类，无法判断时返回 nil
func ClassifyMessage(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "quota"):
		return ErrQuotaExceeded
	case strings.Contains(msg, "status code: 401") || strings.Contains(msg, "status code: 403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "api key not valid") || strings.Contains(msg, "permission_denied"):
		return ErrAuthentication
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "resource_exhausted"):
		return ErrTransient
	}
	return nil
}
