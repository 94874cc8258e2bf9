package stats

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 拒块原因（prometheus label）
const (
	ReasonChainLookup = "chain_lookup"
	ReasonStale       = "stale_modifier"
	ReasonTimestamp   = "timestamp"
	ReasonTargetMiss  = "target_miss"
	ReasonBadTarget   = "invalid_target"
	ReasonStructure   = "structure"
	ReasonStorage     = "storage"
)

// Stats 区块接收 / 质押搜索统计
// 同时写 prometheus 指标和一份内存计数（CLI 直接打印用）。
type Stats struct {
	statsLock sync.RWMutex
	rejects   map[string]uint64

	blocksAccepted     prometheus.Counter
	blocksRejected     *prometheus.CounterVec
	modifiersGenerated prometheus.Counter
	stakeSearches      *prometheus.CounterVec
	checkDuration      prometheus.Histogram
}

// NewStats 在 reg 上注册指标；reg 为 nil 时只做内存计数
func NewStats(namespace string, reg prometheus.Registerer) (*Stats, error) {
	s := &Stats{
		rejects: make(map[string]uint64),
		blocksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_accepted_total",
			Help:      "Number of blocks appended to the block index",
		}),
		blocksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_rejected_total",
			Help:      "Number of rejected blocks by reason",
		}, []string{"reason"}),
		modifiersGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stake_modifiers_generated_total",
			Help:      "Number of accepted blocks that generated a new stake modifier",
		}),
		stakeSearches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stake_searches_total",
			Help:      "Kernel searches run by the staking loop by result",
		}, []string{"result"}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proof_check_seconds",
			Help:      "Time spent validating a proof-of-stake header",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	if reg == nil {
		return s, nil
	}
	for _, c := range []prometheus.Collector{
		s.blocksAccepted, s.blocksRejected, s.modifiersGenerated, s.stakeSearches, s.checkDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RecordAccepted 记录接收的区块
func (s *Stats) RecordAccepted(generatedModifier bool) {
	s.blocksAccepted.Inc()
	if generatedModifier {
		s.modifiersGenerated.Inc()
	}
}

// RecordRejected 记录拒块原因
func (s *Stats) RecordRejected(reason string) {
	s.blocksRejected.WithLabelValues(reason).Inc()

	s.statsLock.Lock()
	defer s.statsLock.Unlock()
	s.rejects[reason]++
}

// RecordStakeSearch 记录一次质押搜索结果
func (s *Stats) RecordStakeSearch(found bool) {
	result := "miss"
	if found {
		result = "hit"
	}
	s.stakeSearches.WithLabelValues(result).Inc()
}

// ObserveCheck 记录一次 PoS 验证耗时
func (s *Stats) ObserveCheck(d time.Duration) {
	s.checkDuration.Observe(d.Seconds())
}

// GetRejectStats 拒块原因计数的副本
func (s *Stats) GetRejectStats() map[string]uint64 {
	s.statsLock.RLock()
	defer s.statsLock.RUnlock()

	out := make(map[string]uint64, len(s.rejects))
	for reason, count := range s.rejects {
		out[reason] = count
	}
	return out
}
