package consensus

import (
	"fmt"

	"posd/interfaces"
	"posd/logs"
	"posd/types"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/holiman/uint256"
)

// KernelRequest 一次 kernel 检查 / 搜索的输入
type KernelRequest struct {
	Bits uint32

	// 质押币所在区块
	CoinBlockHash chainhash.Hash
	CoinBlockTime int64

	Amount   btcutil.Amount
	Outpoint wire.OutPoint

	SpendTime int64

	// 搜索窗口（秒），CheckOnly 时忽略
	HashDrift int64
	CheckOnly bool
}

// StakeProof 命中的时间和 kernel 哈希
type StakeProof struct {
	Time  int64
	Hash  chainhash.Hash
	Epoch Epoch
}

type hitFunc func(hash *chainhash.Hash, amount btcutil.Amount, target *uint256.Int) bool

// ProofChecker 在一个只读区块索引快照上做 kernel 检查
// 本身不持有可变状态，不同快照可以各建一个并发使用。
type ProofChecker struct {
	view  interfaces.BlockIndexView
	coins interfaces.CoinView
	hit   hitFunc
}

// NewProofChecker 创建检查器
func NewProofChecker(view interfaces.BlockIndexView) *ProofChecker {
	return &ProofChecker{
		view: view,
		hit:  StakeTargetHit,
	}
}

// WithCoinView 设置 UTXO 视图，验证区块时用来核对区块头声明的质押币
func (pc *ProofChecker) WithCoinView(coins interfaces.CoinView) *ProofChecker {
	pc.coins = coins
	return pc
}

// CheckStakeKernelHash 检查（或在 hash drift 窗口内搜索）kernel 是否命中目标
//
// 未命中返回 (nil, false, nil)，不是错误。搜索模式从 SpendTime+HashDrift
// 倒序试到 SpendTime（含），每个时间点单独判定协议版本，第一个命中即返回。
func (pc *ProofChecker) CheckStakeKernelHash(prev *types.BlockRef, req *KernelRequest) (*StakeProof, bool, error) {
	params := pc.view.Params()

	if req.SpendTime < req.CoinBlockTime {
		return nil, false, fmt.Errorf("%w: spend time %d before coin block time %d",
			ErrTimestampViolation, req.SpendTime, req.CoinBlockTime)
	}
	if req.SpendTime < req.CoinBlockTime+params.StakeMinAge {
		return nil, false, fmt.Errorf("%w: min age violation, coin time %d spend time %d",
			ErrTimestampViolation, req.CoinBlockTime, req.SpendTime)
	}

	target, err := stakeTarget(req.Bits, params.PowLimitBits)
	if err != nil {
		return nil, false, err
	}

	height := prev.Height + 1
	var legacy *ModifierResolution
	modifierAt := func(t int64) (ModifierResolution, error) {
		// Legacy 的结果与 t 无关，缓存；Epoch2 每个 t 都要重新做成熟度检查
		if EpochAt(params, t) == EpochLegacy && legacy != nil {
			return *legacy, nil
		}
		res, err := GetKernelStakeModifier(pc.view, prev, req.CoinBlockHash, t)
		if err != nil {
			return ModifierResolution{}, err
		}
		if EpochAt(params, t) == EpochLegacy {
			legacy = &res
		}
		return res, nil
	}

	try := func(t int64) (*StakeProof, bool, error) {
		mod, err := modifierAt(t)
		if err != nil {
			return nil, false, fmt.Errorf("failed to get kernel stake modifier: %w", err)
		}
		epoch := EpochAt(params, t)
		hash := KernelHash(epoch, mod.Modifier, req.CoinBlockTime, height, req.Outpoint, t)
		if !pc.hit(&hash, req.Amount, target) {
			return nil, false, nil
		}
		logs.Debug("CheckStakeKernelHash: %s hit at %d modifier=0x%016x (height %d) hash=%s",
			epoch, t, mod.Modifier, mod.Height, hash)
		return &StakeProof{Time: t, Hash: hash, Epoch: epoch}, true, nil
	}

	if req.CheckOnly {
		return try(req.SpendTime)
	}

	for i := int64(0); i <= req.HashDrift; i++ {
		proof, ok, err := try(req.SpendTime + req.HashDrift - i)
		if err != nil || ok {
			return proof, ok, err
		}
	}
	return nil, false, nil
}
