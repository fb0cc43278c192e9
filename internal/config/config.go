// Package config 负责加载和验证 YAML 配置文件。
// 提供应用程序所需的所有配置项，包括行情源、阶梯优化参数、输出与推送服务设置等。
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Feed 行情源配置
	Feed FeedConfig `yaml:"feed"`
	// Engine 阶梯优化引擎参数
	Engine EngineConfig `yaml:"engine"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
	// Server 推送/查询服务配置
	Server ServerConfig `yaml:"server"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// FeedConfig 行情源配置
type FeedConfig struct {
	// Currency 标的币种，如 BTC、ETH
	Currency string `yaml:"currency"`
	// BaseURL 期权交易所 REST API 根地址
	BaseURL string `yaml:"base_url"`
	// SOFRURL 无风险利率（SOFR 30 日）API 地址，为空则不获取
	SOFRURL string `yaml:"sofr_url"`
	// TimeoutMs HTTP 请求超时时间（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
	// RefreshIntervalMs 刷新周期（毫秒）
	RefreshIntervalMs int `yaml:"refresh_interval_ms"`
	// RateLimitRPS 每秒请求上限
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
	// RateLimitBurst 突发请求数
	RateLimitBurst int `yaml:"rate_limit_burst"`
	// BreakerMaxFailures 连续失败多少次后熔断
	BreakerMaxFailures int `yaml:"breaker_max_failures"`
	// BreakerOpenTimeoutMs 熔断打开后的冷却时间（毫秒）
	BreakerOpenTimeoutMs int `yaml:"breaker_open_timeout_ms"`
	// StrikeStep 行权价步长过滤（如 BTC 1000），0 表示不过滤
	StrikeStep float64 `yaml:"strike_step"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// LaddersEnabled 是否输出阶梯结果文件
	LaddersEnabled bool `yaml:"ladders_enabled"`
	// MetricsEnabled 是否输出指标文件
	MetricsEnabled bool `yaml:"metrics_enabled"`
	// MetricsIntervalMs 指标输出间隔（毫秒）
	MetricsIntervalMs int `yaml:"metrics_interval_ms"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// ServerConfig HTTP/WebSocket 服务配置
type ServerConfig struct {
	// Enabled 是否启动服务
	Enabled bool `yaml:"enabled"`
	// ListenAddr 监听地址，如 :8080
	ListenAddr string `yaml:"listen_addr"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	// 读取配置文件
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 引擎参数中 0 是合法取值（如 leg_count=0 表示自动），因此先填充默认值再解析
	cfg := Config{Engine: DefaultEngineConfig()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 设置默认值
	cfg.setDefaults()

	// 环境变量覆盖
	cfg.ApplyEnv()

	// 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// Default 返回全部取默认值并应用环境变量后的配置（无配置文件时使用）
func Default() *Config {
	cfg := Config{Engine: DefaultEngineConfig()}
	cfg.setDefaults()
	cfg.ApplyEnv()
	return &cfg
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	// 应用默认值
	if c.App.Name == "" {
		c.App.Name = "ladder-optimizer"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	// 行情源默认值
	if c.Feed.Currency == "" {
		c.Feed.Currency = "BTC"
	}
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = "https://www.deribit.com/api/v2"
	}
	if c.Feed.TimeoutMs == 0 {
		c.Feed.TimeoutMs = 10000 // 10 秒
	}
	if c.Feed.RefreshIntervalMs == 0 {
		c.Feed.RefreshIntervalMs = 15000 // 15 秒
	}
	if c.Feed.RateLimitRPS == 0 {
		c.Feed.RateLimitRPS = 5
	}
	if c.Feed.RateLimitBurst == 0 {
		c.Feed.RateLimitBurst = 2
	}
	if c.Feed.BreakerMaxFailures == 0 {
		c.Feed.BreakerMaxFailures = 3
	}
	if c.Feed.BreakerOpenTimeoutMs == 0 {
		c.Feed.BreakerOpenTimeoutMs = 30000 // 30 秒
	}

	// 输出默认值
	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.MetricsIntervalMs == 0 {
		c.Output.MetricsIntervalMs = 60000 // 60 秒
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}

	// 服务默认值
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
}

// ApplyEnv 使用环境变量覆盖部分配置
// 支持: LADDER_LOG_LEVEL, LADDER_CURRENCY, LADDER_LISTEN_ADDR
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LADDER_LOG_LEVEL"); v != "" {
		c.App.LogLevel = v
	}
	if v := os.Getenv("LADDER_CURRENCY"); v != "" {
		c.Feed.Currency = strings.ToUpper(v)
	}
	if v := os.Getenv("LADDER_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	// 验证行情源配置
	if c.Feed.Currency == "" {
		errs = append(errs, "feed.currency: 币种不能为空")
	}
	if c.Feed.BaseURL == "" {
		errs = append(errs, "feed.base_url: API 地址不能为空")
	}
	if c.Feed.TimeoutMs <= 0 {
		errs = append(errs, "feed.timeout_ms: 超时时间必须为正数")
	}
	if c.Feed.RefreshIntervalMs <= 0 {
		errs = append(errs, "feed.refresh_interval_ms: 刷新周期必须为正数")
	}
	if c.Feed.RateLimitRPS <= 0 {
		errs = append(errs, "feed.rate_limit_rps: 请求速率必须为正数")
	}
	if c.Feed.RateLimitBurst <= 0 {
		errs = append(errs, "feed.rate_limit_burst: 突发请求数必须为正数")
	}
	if c.Feed.BreakerMaxFailures <= 0 {
		errs = append(errs, "feed.breaker_max_failures: 熔断阈值必须为正数")
	}
	if c.Feed.StrikeStep < 0 {
		errs = append(errs, "feed.strike_step: 行权价步长不能为负数")
	}

	// 验证引擎参数
	errs = append(errs, c.Engine.validate("engine.")...)

	// 验证服务配置
	if c.Server.Enabled && c.Server.ListenAddr == "" {
		errs = append(errs, "server.listen_addr: 启用服务时监听地址不能为空")
	}

	// 验证日志级别
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
