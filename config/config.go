// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 主配置结构
type Config struct {
	Network   string         `yaml:"network"`
	Consensus Params         `yaml:"consensus"`
	Database  DatabaseConfig `yaml:"database"`
	Log       LogConfig      `yaml:"log"`
	Metrics   MetricsConfig  `yaml:"metrics"`
}

// DatabaseConfig 区块索引库配置
type DatabaseConfig struct {
	// BadgerDB配置
	Path             string `yaml:"path"`
	ValueLogFileSize int64  `yaml:"value_log_file_size"` // 64 << 20 (64MB)
	InMemory         bool   `yaml:"in_memory"`

	// 缓存配置
	RecordCacheSize int `yaml:"record_cache_size"` // 4096

	SyncWrites bool `yaml:"sync_writes"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"` // trace/debug/verbose/info/warn/error
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Namespace string        `yaml:"namespace"`
	Interval  time.Duration `yaml:"interval"`
}

// DefaultConfig 返回默认配置（主网）
func DefaultConfig() *Config {
	return &Config{
		Network:   MainNetParams.Name,
		Consensus: MainNetParams,
		Database: DatabaseConfig{
			Path:             "./data/blockindex",
			ValueLogFileSize: 64 << 20,
			RecordCacheSize:  4096,
			SyncWrites:       true,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "posd",
			Interval:  10 * time.Second,
		},
	}
}

// fileConfig 文件里 consensus 段是可选的，只写出的字段覆盖 network 对应的预置参数
type fileConfig struct {
	Network   string         `yaml:"network"`
	Consensus Params         `yaml:"consensus"`
	Database  DatabaseConfig `yaml:"database"`
	Log       LogConfig      `yaml:"log"`
	Metrics   MetricsConfig  `yaml:"metrics"`
}

// LoadFromFile 从 YAML 文件加载配置；path 为空时返回默认配置
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// 第一遍只取 network，确定预置参数后再整体解码
	head := struct {
		Network string `yaml:"network"`
	}{Network: cfg.Network}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	params, err := ParamsForNetwork(head.Network)
	if err != nil {
		return nil, err
	}

	fc := fileConfig{
		Network:   head.Network,
		Consensus: params,
		Database:  cfg.Database,
		Log:       cfg.Log,
		Metrics:   cfg.Metrics,
	}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if fc.Consensus.Name == "" {
		fc.Consensus.Name = fc.Network
	}

	cfg.Network = fc.Network
	cfg.Consensus = fc.Consensus
	cfg.Database = fc.Database
	cfg.Log = fc.Log
	cfg.Metrics = fc.Metrics
	return cfg, cfg.Validate()
}

// Validate 验证配置合法性
func (c *Config) Validate() error {
	if err := c.Consensus.Validate(); err != nil {
		return fmt.Errorf("consensus: %w", err)
	}
	if !c.Database.InMemory && c.Database.Path == "" {
		return errors.New("database path must be set unless in_memory")
	}
	if c.Database.RecordCacheSize <= 0 {
		return fmt.Errorf("record cache size must be positive")
	}
	return nil
}
