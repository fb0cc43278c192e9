package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ladder-optimizer/internal/config"
	"ladder-optimizer/internal/core/model"
	"ladder-optimizer/internal/core/optimizer"
	"ladder-optimizer/internal/core/store"
	"ladder-optimizer/internal/marketdata"
	"ladder-optimizer/internal/metrics"
	"ladder-optimizer/internal/output/jsonl"
	"ladder-optimizer/internal/output/push"
	"ladder-optimizer/internal/stats/cycle"
	"ladder-optimizer/internal/util/backoff"
	"ladder-optimizer/internal/util/timeutil"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "持续拉取行情并计算最优阶梯",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			logger := newLogger(cfg.App.LogLevel).Named(cfg.App.Name)
			defer func() { _ = logger.Sync() }()
			return runService(cfg, logger)
		},
	}
}

// service 服务主循环的状态
// 除 engine 外所有字段只由主循环 goroutine 访问。
type service struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *marketdata.Collector
	store     *store.Store
	metrics   *metrics.Registry
	tracker   *cycle.Tracker
	hub       *push.Hub
	server    *push.Server
	laddersW  *jsonl.Writer
	metricsW  *jsonl.Writer

	// engine 当前引擎参数，主循环写，HTTP 查询读
	engine atomic.Pointer[config.EngineConfig]

	lastCall *float64
	lastPut  *float64
}

func runService(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	reg := metrics.NewRegistry()
	fetcher := marketdata.NewHTTPFetcher(cfg.Feed, func(from, to gobreaker.State) {
		reg.SetBreakerState(to)
		logger.Warn("行情熔断器状态变化", zap.String("from", from.String()), zap.String("to", to.String()))
	})
	collector := marketdata.NewCollector(fetcher, cfg.Feed, logger)
	collector.OnError(reg.FeedError)

	s := &service{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		store:     store.New(),
		metrics:   reg,
		tracker:   cycle.NewTracker(1000),
		hub:       push.NewHub(logger),
	}
	engine := cfg.Engine
	s.engine.Store(&engine)

	var err error
	if cfg.Output.LaddersEnabled {
		s.laddersW, err = jsonl.NewWriter(filepath.Join(cfg.Output.Dir, jsonl.LaddersFile), jsonl.Options{
			QueueSize: cfg.Output.BufferSize,
			FlushEach: true,
		})
		if err != nil {
			return fmt.Errorf("创建 ladders writer 失败: %w", err)
		}
	}
	if cfg.Output.MetricsEnabled {
		s.metricsW, err = jsonl.NewWriter(filepath.Join(cfg.Output.Dir, jsonl.MetricsFile), jsonl.Options{QueueSize: cfg.Output.BufferSize})
		if err != nil {
			return fmt.Errorf("创建 metrics writer 失败: %w", err)
		}
	}

	go s.hub.Run(ctx)
	if cfg.Server.Enabled {
		s.server = push.NewServer(cfg.Server, s.hub, s.Engine, reg.Handler(), logger)
		go func() {
			if err := s.server.Start(); err != nil {
				logger.Error("HTTP 服务异常退出", zap.Error(err))
				cancel()
			}
		}()
	}

	logger.Info("阶梯优化引擎启动",
		zap.String("currency", collector.Currency()),
		zap.Int("refresh_interval_ms", cfg.Feed.RefreshIntervalMs),
		zap.Int("leg_count", engine.LegCount),
		zap.Bool("server", cfg.Server.Enabled))

	s.loop(ctx)

	// 输出最后一条 metrics 快照
	s.writeMetrics()

	// 优雅关闭（10s 超时）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if s.server != nil {
			_ = s.server.Shutdown(shutdownCtx)
		}
		if s.laddersW != nil {
			_ = s.laddersW.Close()
		}
		if s.metricsW != nil {
			_ = s.metricsW.Close()
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("关闭超时，强制退出")
	case <-done:
		logger.Info("关闭完成")
	}
	return nil
}

// Engine 返回当前引擎参数
func (s *service) Engine() config.EngineConfig {
	return *s.engine.Load()
}

// loop 主循环：定时刷新、参数修改、指标输出
// 拉取失败时按指数退避重试，成功后恢复正常周期。
func (s *service) loop(ctx context.Context) {
	refresh := time.Duration(s.cfg.Feed.RefreshIntervalMs) * time.Millisecond
	bo := backoff.NewDefault()

	timer := time.NewTimer(0)
	defer timer.Stop()
	metricsTicker := time.NewTicker(time.Duration(s.cfg.Output.MetricsIntervalMs) * time.Millisecond)
	defer metricsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := s.refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				delay := bo.Next()
				s.logger.Warn("刷新失败，稍后重试",
					zap.Error(err),
					zap.Int("attempt", bo.Attempt()),
					zap.Duration("retry_in", delay))
				timer.Reset(delay)
				continue
			}
			bo.Reset()
			timer.Reset(refresh)
		case u := <-s.hub.Updates():
			s.applyUpdate(u)
		case <-metricsTicker.C:
			s.writeMetrics()
		}
	}
}

// refresh 拉取一份新快照并计算
func (s *service) refresh(ctx context.Context) error {
	snap, err := s.collector.Collect(ctx)
	if err != nil {
		s.metrics.CycleFailed()
		s.tracker.Fail()
		return err
	}
	s.store.Update(snap)
	s.compute(snap)
	return nil
}

// compute 在快照上用当前参数运行一次优化并输出
func (s *service) compute(snap *model.Snapshot) *jsonl.LadderRecord {
	engine := s.Engine()
	startNs := timeutil.NowNano()
	res := optimizer.Optimize(snap.Quotes, snap.BenchmarkVol, snap.RiskFreeRatePct, engine)
	elapsed := timeutil.SinceNano(startNs)

	s.tracker.Observe(elapsed)
	s.metrics.ObserveCycle(&res, elapsed)
	s.lastCall = ladderScore(res.Call)
	s.lastPut = ladderScore(res.Put)

	rec := jsonl.NewLadderRecord(snap, engine, &res, elapsed, time.Now())
	if s.laddersW != nil {
		if err := s.laddersW.Write(rec); err != nil {
			s.logger.Warn("写入阶梯记录失败", zap.Error(err))
		}
	}
	if s.server != nil {
		s.server.Publish(rec)
	}

	s.logger.Info("周期完成",
		zap.String("cycle_id", rec.CycleID),
		zap.Int("quotes", len(snap.Quotes)),
		zap.Int("call_candidates", res.Candidates[model.KindCall]),
		zap.Int("put_candidates", res.Candidates[model.KindPut]),
		zap.Float64p("call_score", s.lastCall),
		zap.Float64p("put_score", s.lastPut),
		zap.Int("recommended", len(res.Recommended)),
		zap.Duration("elapsed", elapsed))
	return rec
}

// applyUpdate 应用一次参数修改；成功后立即在最新快照上重算
// 结果只回复给提交者。
func (s *service) applyUpdate(u push.Update) {
	next, err := s.Engine().Apply(u.Patch)
	if err != nil {
		s.logger.Warn("参数修改被拒绝", zap.Error(err))
		s.hub.Reply(u, push.MsgError, err.Error())
		return
	}
	s.engine.Store(&next)
	s.hub.Reply(u, push.MsgConfig, next)
	s.logger.Info("引擎参数已更新",
		zap.Int("leg_count", next.LegCount),
		zap.Bool("allow_repetition", next.AllowRepetition),
		zap.Float64("max_prob_exercise_cap_pct", next.MaxProbExerciseCapPct),
		zap.String("price_source", next.PriceSource),
		zap.Strings("excluded_expiries", next.ExcludedExpiries))

	if snap := s.store.Get(s.collector.Currency()); !snap.IsEmpty() {
		s.compute(snap)
	}
}

// writeMetrics 输出一条运行指标记录
func (s *service) writeMetrics() {
	clients := s.hub.ClientCount()
	s.metrics.PushClients.Set(float64(clients))
	if s.metricsW == nil {
		return
	}
	rec := jsonl.MetricsRecord{
		TsMs:          timeutil.NowMs(),
		Currency:      s.collector.Currency(),
		Cycle:         s.tracker.Stats(),
		FeedErrors:    s.metrics.FeedErrorCounts(),
		BreakerState:  s.metrics.BreakerStateName(),
		Clients:       clients,
		LastCallScore: s.lastCall,
		LastPutScore:  s.lastPut,
	}
	if err := s.metricsW.Write(rec); err != nil {
		s.logger.Warn("写入指标记录失败", zap.Error(err))
	}
}

func ladderScore(l *model.ScoredLadder) *float64 {
	if l == nil {
		return nil
	}
	v := l.Score
	return &v
}
