package main

import (
	"fmt"
	"os"
	"time"

	"posd/chain"
	"posd/config"
	"posd/db"
	"posd/logs"
	"posd/stats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	network    string
	dataDir    string
)

func main() {
	defer logs.Sync()
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "posd",
		Short:         "Proof-of-stake kernel and stake modifier tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "trace/debug/verbose/info/warn/error (overrides config)")
	root.PersistentFlags().StringVar(&network, "network", "", "mainnet/testnet/regtest (overrides config)")
	root.PersistentFlags().StringVar(&dataDir, "datadir", "", "block index database path (overrides config)")

	root.AddCommand(
		simulateCommand(),
		modifiersCommand(),
		kernelCommand(),
		stakeCommand(),
	)
	return root
}

// loadConfig 读配置文件并应用命令行覆盖
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, err
	}
	if network != "" {
		params, err := config.ParamsForNetwork(network)
		if err != nil {
			return nil, err
		}
		cfg.Network = params.Name
		cfg.Consensus = params
	}
	if dataDir != "" {
		cfg.Database.Path = dataDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	level, err := logs.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logs.SetLevel(level)
	return cfg, cfg.Validate()
}

// node 一次命令运行所需的组件
type node struct {
	cfg      *config.Config
	store    *db.Manager
	chain    *chain.Chain
	stats    *stats.Stats
	registry *prometheus.Registry
	done     chan struct{}
}

func openNode() (*node, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := db.NewManager(cfg.Database, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open block index: %w", err)
	}

	n := &node{cfg: cfg, store: store}
	var reg prometheus.Registerer
	if cfg.Metrics.Enabled {
		n.registry = prometheus.NewRegistry()
		reg = n.registry
	}
	n.stats, err = stats.NewStats(cfg.Metrics.Namespace, reg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	n.chain = chain.New(&cfg.Consensus, store, n.stats, nil)
	if err := n.chain.Load(); err != nil {
		store.Close()
		return nil, err
	}
	logs.Info("network %s, block index %s, tip %d", cfg.Network, cfg.Database.Path, n.chain.Index().Height())

	if n.registry != nil && cfg.Metrics.Interval > 0 {
		n.done = make(chan struct{})
		go n.reportLoop(cfg.Metrics.Interval)
	}
	return n, nil
}

// reportLoop 长时间运行的命令按周期打印指标
func (n *node) reportLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			reportMetrics(n.registry)
		case <-n.done:
			return
		}
	}
}

func (n *node) Close() {
	if n.done != nil {
		close(n.done)
	}
	if n.registry != nil {
		reportMetrics(n.registry)
	}
	if err := n.store.Close(); err != nil {
		logs.Error("failed to close block index: %v", err)
	}
}

// reportMetrics 把注册表里的计数打到日志
func reportMetrics(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		logs.Warn("failed to gather metrics: %v", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				logs.Info("metric %s%s = %.0f", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				logs.Info("metric %s%s count=%d sum=%.6fs", mf.GetName(), labels, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
}
