package server

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/internal/storage"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/config"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/errs"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
)

// 一次完整流水线可能包含 30s 调研和 60s 生成
const defaultTimeout = 3 * time.Minute

// Runner 执行一次报告流水线，*engine.Engine 实现了该接口
type Runner interface {
	Run(ctx context.Context, company string) (*model.Report, error)
}

type reportRequest struct {
	Company string `json:"company"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewHTTPServer 创建报告服务，sink 可为 nil
func NewHTTPServer(c config.ServerConfig, runner Runner, sink storage.Sink, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	timeout := defaultTimeout
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err == nil {
			timeout = d
		}
	}
	opts = append(opts, http.Timeout(timeout))

	srv := http.NewServer(opts...)
	h := &reportHandler{runner: runner, sink: sink, log: log.NewHelper(logger)}

	srv.HandleFunc("/api/v1/reports", h.createReport)
	srv.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	srv.Handle("/metrics", promhttp.Handler())

	return srv
}

type reportHandler struct {
	runner Runner
	sink   storage.Sink
	log    *log.Helper
}

func (h *reportHandler) createReport(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		w.Header().Set("Allow", nethttp.MethodPost)
		writeJSON(w, nethttp.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Code: "method_not_allowed"})
		return
	}

	var req reportRequest
	if err := json.NewDecoder(nethttp.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeJSON(w, nethttp.StatusBadRequest, errorResponse{Error: "invalid request body", Code: "invalid_input"})
		return
	}

	rep, err := h.runner.Run(r.Context(), req.Company)
	if err != nil {
		status, code := statusFor(err)
		h.log.Errorf("report for %q failed: %v", req.Company, err)
		writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
		return
	}

	if h.sink != nil {
		if loc, err := h.sink.Save(r.Context(), rep); err != nil {
			h.log.Errorf("save report %s failed: %v", rep.RunID, err)
		} else {
			h.log.Infof("report %s saved to %s", rep.RunID, loc)
		}
	}
	writeJSON(w, nethttp.StatusOK, rep)
}

// statusFor 将流水线错误映射为 HTTP 状态码
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return nethttp.StatusBadRequest, "invalid_input"
	case errors.Is(err, errs.ErrInsufficientResearch):
		return nethttp.StatusUnprocessableEntity, "insufficient_research"
	case errors.Is(err, errs.ErrNoUseCases):
		return nethttp.StatusUnprocessableEntity, "no_use_cases"
	case errors.Is(err, errs.ErrAuthentication):
		return nethttp.StatusBadGateway, "provider_auth"
	case errors.Is(err, errs.ErrQuotaExceeded):
		return nethttp.StatusBadGateway, "provider_quota"
	case errors.Is(err, errs.ErrModelUnavailable):
		return nethttp.StatusServiceUnavailable, "model_unavailable"
	case errors.Is(err, errs.ErrGenerationTimeout):
		return nethttp.StatusGatewayTimeout, "generation_timeout"
	default:
		return nethttp.StatusInternalServerError, "internal"
	}
}

func writeJSON(w nethttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
