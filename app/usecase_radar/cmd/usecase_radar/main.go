package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/internal/server"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/internal/storage"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/aggregate"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/config"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/engine"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/errs"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/logger"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name = "usecase_radar"
	// Version 是服务的版本号
	Version string

	flagconf    string
	flagCompany string
	flagServe   bool

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "app/usecase_radar/configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.StringVar(&flagCompany, "company", "", "analyze a single company and exit")
	flag.BoolVar(&flagServe, "serve", false, "run the HTTP report service")
}

func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法加载配置文件: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "配置错误: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "无法初始化日志: %v\n", err)
		os.Exit(1)
	}
	logger.Log.Info("启动用例雷达...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 初始化引擎
	eng, err := engine.NewEngine(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("引擎初始化失败: %v", err)
	}
	defer eng.Close()

	sink := newSink(cfg)

	switch {
	case flagServe:
		if err := serve(cfg, eng, sink); err != nil {
			logger.Log.Fatalf("服务退出: %v", err)
		}
	case flagCompany != "":
		if err := analyze(ctx, eng, sink, flagCompany); err != nil {
			logger.Log.Fatalf("分析失败: %v", err)
		}
	default:
		interactive(ctx, eng, sink)
	}
}

// newSink 文件存储总是启用，配置了数据库时同时写入数据库
func newSink(cfg *config.Config) storage.Sink {
	sinks := storage.Multi{storage.NewFileStore(cfg.Output.Dir)}
	if !cfg.DBEnabled() {
		logger.Log.Info("未配置数据库信息，跳过数据库连接")
		return sinks
	}
	store, err := storage.NewPostgresStore(cfg.DB)
	if err != nil {
		logger.Log.Errorf("无法连接数据库: %v. 将仅生成 JSON 文件。", err)
		return sinks
	}
	logger.Log.Info("已成功连接到数据库")
	return append(sinks, store)
}

func serve(cfg *config.Config, eng *engine.Engine, sink storage.Sink) error {
	klog := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	hs := server.NewHTTPServer(cfg.Server, eng, sink, klog)
	app := kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Logger(klog),
		kratos.Server(hs),
	)
	return app.Run()
}

// interactive 循环读取公司名，输入 quit 退出
func interactive(ctx context.Context, eng *engine.Engine, sink storage.Sink) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nEnter company name (or 'quit' to exit): ")
		if !scanner.Scan() {
			return
		}
		company := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(company, "quit") {
			return
		}
		if err := analyze(ctx, eng, sink, company); err != nil {
			if errors.Is(err, errs.ErrInvalidInput) {
				fmt.Println("Please enter a company name.")
				continue
			}
			fmt.Printf("\nAnalysis failed: %v\n", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func analyze(ctx context.Context, eng *engine.Engine, sink storage.Sink, company string) error {
	fmt.Printf("\nResearching %s...\n", model.CleanCompany(company))
	rep, err := eng.Run(ctx, company)
	if err != nil {
		return err
	}

	loc, err := sink.Save(ctx, rep)
	if err != nil {
		logger.Log.Errorf("保存报告失败: %v", err)
	}
	if loc != "" {
		fmt.Printf("\nReport saved: %s\n", loc)
	}

	fmt.Println("\nKey Findings:")
	fmt.Println("\nCompany Overview:")
	fmt.Println(aggregate.Truncate(rep.ResearchData.CompanyInfo.Summary, 200))
	fmt.Printf("\nGenerated %d AI use cases:\n", len(rep.AIUseCases))
	for i, uc := range rep.AIUseCases {
		fmt.Printf("%d. %s (complexity: %s, impact: %s)\n", i+1, uc.Title, uc.Complexity, uc.Impact)
	}
	if len(rep.ParseWarnings) > 0 {
		fmt.Printf("\n%d parse warnings recorded in the report\n", len(rep.ParseWarnings))
	}
	return nil
}
