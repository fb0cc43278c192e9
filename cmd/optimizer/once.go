package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ladder-optimizer/internal/config"
	"ladder-optimizer/internal/core/optimizer"
	"ladder-optimizer/internal/marketdata"
	"ladder-optimizer/internal/output/jsonl"
)

// onceOptions once 子命令参数
type onceOptions struct {
	snapshot     string
	asOf         string
	benchmarkVol float64
	riskFree     float64
	legCount     int
	allowRep     bool
}

func newOnceCmd(configPath *string) *cobra.Command {
	var opts onceOptions
	cmd := &cobra.Command{
		Use:   "once",
		Short: "对本地行情文件计算一次最优阶梯并输出 JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			logger := newLogger(cfg.App.LogLevel).Named(cfg.App.Name)
			defer func() { _ = logger.Sync() }()

			engine, err := opts.engine(cmd, cfg.Engine)
			if err != nil {
				return err
			}
			rec, err := runOnce(cmd.Context(), cfg.Feed, engine, opts, logger)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.snapshot, "snapshot", "", "行情摘要 JSON 文件（与行情 API 响应格式一致）")
	f.StringVar(&opts.asOf, "as-of", "", "计算剩余天数的参考时刻（RFC3339），默认当前时间")
	f.Float64Var(&opts.benchmarkVol, "benchmark-vol", 0, "波动率指数（百分比），0 表示由期限结构估算")
	f.Float64Var(&opts.riskFree, "risk-free", 0, "无风险利率（百分比），未指定时不使用")
	f.IntVar(&opts.legCount, "leg-count", 0, "腿数 0-5，0 表示自动")
	f.BoolVar(&opts.allowRep, "allow-repetition", false, "允许同一合约重复出现")
	_ = cmd.MarkFlagRequired("snapshot")
	return cmd
}

// engine 用显式指定的命令行参数覆盖配置中的引擎参数
func (o *onceOptions) engine(cmd *cobra.Command, base config.EngineConfig) (config.EngineConfig, error) {
	var u config.EngineUpdate
	if cmd.Flags().Changed("leg-count") {
		u.LegCount = &o.legCount
	}
	if cmd.Flags().Changed("allow-repetition") {
		u.AllowRepetition = &o.allowRep
	}
	next, err := base.Apply(u)
	if err != nil {
		return base, fmt.Errorf("引擎参数无效: %w", err)
	}
	return next, nil
}

// runOnce 读取行情文件、构建快照并运行一次优化
func runOnce(ctx context.Context, feed config.FeedConfig, engine config.EngineConfig, opts onceOptions, logger *zap.Logger) (*jsonl.LadderRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	if opts.asOf != "" {
		t, err := time.Parse(time.RFC3339, opts.asOf)
		if err != nil {
			return nil, fmt.Errorf("参考时刻格式错误: %w", err)
		}
		now = t
	}

	fetcher := &marketdata.FileFetcher{
		Path:         opts.snapshot,
		BenchmarkVol: opts.benchmarkVol,
	}
	if opts.riskFree != 0 {
		fetcher.RiskFreeRatePct = &opts.riskFree
	}

	collector := marketdata.NewCollector(fetcher, feed, logger)
	collector.SetClock(func() time.Time { return now })
	snap, err := collector.Collect(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res := optimizer.Optimize(snap.Quotes, snap.BenchmarkVol, snap.RiskFreeRatePct, engine)
	return jsonl.NewLadderRecord(snap, engine, &res, time.Since(start), now), nil
}
