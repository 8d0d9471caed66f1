// KaoQin 考勤外勤服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/config"
	"github.com/kaoqin/kaoqin/internal/database"
	"github.com/kaoqin/kaoqin/internal/handler"
	"github.com/kaoqin/kaoqin/internal/metrics"
	"github.com/kaoqin/kaoqin/internal/middleware"
	policylib "github.com/kaoqin/kaoqin/internal/policy"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/internal/roster"
	"github.com/kaoqin/kaoqin/internal/security"
	"github.com/kaoqin/kaoqin/pkg/autocorrect"
	"github.com/kaoqin/kaoqin/pkg/followup"
	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/othours"
	"github.com/kaoqin/kaoqin/pkg/otreview"
	"github.com/kaoqin/kaoqin/pkg/photo"
	"github.com/kaoqin/kaoqin/pkg/policy"
	"github.com/kaoqin/kaoqin/pkg/policy/builtin"
	"github.com/kaoqin/kaoqin/pkg/quotation"
	"github.com/kaoqin/kaoqin/pkg/report"
	"github.com/kaoqin/kaoqin/pkg/validator"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logFormat := "console"
	if cfg.IsProduction() {
		logFormat = "json"
	}
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: logFormat,
	})

	fmt.Printf("KaoQin 考勤外勤服务 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	// 数据库
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Error().Err(err).Msg("连接数据库失败")
		os.Exit(1)
	}
	defer db.Close()

	// 仓储
	orgs := repository.NewOrganizationRepository(db)
	employees := repository.NewEmployeeRepository(db)
	attendance := repository.NewAttendanceRepository(db)
	otSessions := repository.NewOTSessionRepository(db)
	corrections := repository.NewCorrectionRepository(db)
	customers := repository.NewCustomerRepository(db)
	visits := repository.NewSiteVisitRepository(db)
	quotations := repository.NewQuotationRepository(db)

	// 认证与限流
	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	ipLimiter := security.NewRateLimiter(cfg.API.RateLimit, time.Second)

	// 考勤与加班规则
	derive := othours.DeriveConfig{
		GraceMinutes: cfg.Attendance.GraceMinutes,
		HalfDayRatio: cfg.Attendance.HalfDayRatio,
	}
	otCfg := othours.Config{
		MinClaimMinutes: cfg.Attendance.MinOTMinutes,
		MaxPerDayHours:  cfg.Attendance.MaxOTPerDay,
	}

	// 加班审核走外勤模板规则，应用配置覆盖模板默认参数
	fieldTemplate, _ := policylib.FindTemplate("field")
	ruleConfig := fieldTemplate.MergedConfig(map[string]interface{}{
		"grace_minutes":    cfg.Attendance.GraceMinutes,
		"max_ot_per_day":   cfg.Attendance.MaxOTPerDay,
		"max_ot_per_month": cfg.Attendance.MaxOTPerMonth,
		"max_daily_visits": cfg.Visit.MaxDailyVisits,
	})
	otManager := policy.NewManager()
	builtin.RegisterFieldRules(otManager, ruleConfig)
	otEvaluator := otreview.NewEvaluator(otManager)

	// 外访校验与照片处理
	visitValidator := validator.NewVisitValidator(&validator.ValidatorConfig{
		MaxVisitHours:   int(cfg.Visit.MaxVisitHours),
		MaxPhotos:       cfg.Visit.MaxPhotos,
		MaxDailyVisits:  cfg.Visit.MaxDailyVisits,
		RequireLocation: cfg.Visit.RequireLocation,
	})
	photos := photo.NewProcessor(cfg.Visit.PhotoDir)

	// 报价单
	builder := quotation.NewBuilderWithConfig(cfg.Quotation.TaxRate, cfg.Quotation.ValidDays, cfg.Quotation.Currency)
	renderer, err := quotation.NewRenderer()
	if err != nil {
		logger.Error().Err(err).Msg("初始化报价单模板失败")
		os.Exit(1)
	}

	// 月报与回访推荐
	generator := report.NewGenerator()
	recommender := followup.NewRecommenderWithConfig(followup.Config{
		FollowUpWindowDays: cfg.FollowUp.WindowDays,
		MaxDistanceKm:      cfg.FollowUp.MaxDistanceKm,
		MaxResults:         cfg.FollowUp.MaxResults,
	})

	// 花名册导入
	importer := roster.NewImporter(repository.NewRosterStore(db))

	// 自动补卡引擎
	engine := autocorrect.NewEngine(repository.NewCorrectionStore(db), autocorrect.Config{
		Workers:           cfg.AutoCorrect.Workers,
		QueueSize:         cfg.AutoCorrect.QueueSize,
		Interval:          cfg.AutoCorrect.Interval,
		CutoffHour:        cfg.AutoCorrect.CutoffHour,
		MaxAttempts:       cfg.AutoCorrect.MaxAttempts,
		InitialBackoff:    cfg.AutoCorrect.InitialBackoff,
		BackoffMultiplier: cfg.AutoCorrect.BackoffMultiplier,
		MaxBackoff:        cfg.AutoCorrect.MaxBackoff,
		Derive:            derive,
		OnSweep: func(res autocorrect.SweepResult) {
			metrics.RecordAutoCorrectSweep(res.Failed == 0, res.Duration)
			for source, n := range res.Sources {
				for i := 0; i < n; i++ {
					metrics.RecordAutoCorrectFill(source)
				}
			}
		},
	})
	engine.Start()

	// 处理器
	handlers := []interface {
		RegisterRoutes(r *mux.Router)
	}{
		handler.NewAuthHandler(orgs, employees, tokens, cfg.Auth.TokenTTL),
		handler.NewAttendanceHandler(attendance, employees, derive),
		handler.NewOTHandler(otSessions, attendance, visits, employees, otEvaluator, otCfg),
		handler.NewVisitHandler(db, visits, customers, employees, visitValidator, photos, &cfg.Visit),
		handler.NewCustomerHandler(customers),
		handler.NewQuotationHandler(quotations, customers, visits, employees, orgs, builder, renderer),
		handler.NewEmployeeHandler(employees, importer),
		handler.NewCorrectionHandler(db, corrections, engine),
		handler.NewPolicyHandler(employees, attendance, otSessions, visits),
		handler.NewReportHandler(generator, employees, attendance, otSessions, visits, customers),
		handler.NewStatsHandler(employees, attendance, otSessions),
		handler.NewFollowUpHandler(visits, customers, employees, recommender),
	}

	// 路由
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.Health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded","database":"down"}`))
			return
		}
		w.Write([]byte(`{"status":"ok","service":"kaoqin"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/version", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	}).Methods(http.MethodGet)

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(&middleware.AuthConfig{
		TokenManager: tokens,
		SkipPaths:    []string{"/api/v1/auth/login"},
	}))
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}

	// 中间件链，后包的在外层
	var root http.Handler = r
	root = middleware.RecoveryMiddleware(root)
	root = middleware.LoggingMiddleware(root)
	root = middleware.SecurityHeadersMiddleware(root)
	if cfg.API.CORS.Enabled {
		root = middleware.CORSMiddleware(cfg.API.CORS.Origins)(root)
	}
	root = middleware.RateLimitMiddleware(ipLimiter)(root)
	root = middleware.RequestIDMiddleware(root)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	engine.Stop(ctx)
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		os.Exit(1)
	}

	logger.Info().Msg("服务器已关闭")
}
