package config

import (
	"fmt"
	"strings"
)

// Params 共识参数，对一个网络来说是不可变的
type Params struct {
	Name string `yaml:"name"`

	// PoW 难度上限（compact 编码），stake target 不能比它更宽
	PowLimitBits uint32 `yaml:"pow_limit_bits"`

	// 币龄下限（秒）：区块时间至少晚于币所在区块这么久才能 stake
	StakeMinAge int64 `yaml:"stake_min_age"`

	// 选块协议 legacy -> v2 的高度阈值（按候选集中最早区块的高度判断）
	ModifierUpgradeHeight int32 `yaml:"modifier_upgrade_height"`

	// Epoch2 切换时间（unix 秒），只按候选时间戳判断，不看高度
	Epoch2Time int64 `yaml:"epoch2_time"`

	// 最后一个 PoW 区块高度，之后全部是 PoS
	LastPOWBlock int32 `yaml:"last_pow_block"`

	// stake modifier 重新计算的时间桶长度（秒）
	ModifierInterval int64 `yaml:"modifier_interval"`

	// 选块区间比例常量
	ModifierIntervalRatio int64 `yaml:"modifier_interval_ratio"`

	// 搜索模式下向后回溯的时间窗口（秒）
	HashDrift int64 `yaml:"hash_drift"`

	// 高度 1 使用的固定种子
	GenesisStakeModifier uint64 `yaml:"genesis_stake_modifier"`
}

// "stakemod" 按小端读出的 64 位值
const defaultGenesisStakeModifier uint64 = 0x646f6d656b617473

// MainNetParams 主网参数
var MainNetParams = Params{
	Name:                  "mainnet",
	PowLimitBits:          0x1e0fffff,
	StakeMinAge:           60 * 60,
	ModifierUpgradeHeight: 615800,
	Epoch2Time:            1596045600,
	LastPOWBlock:          2000,
	ModifierInterval:      60,
	ModifierIntervalRatio: 3,
	HashDrift:             60,
	GenesisStakeModifier:  defaultGenesisStakeModifier,
}

// TestNetParams 测试网参数，modifier 周期更短
var TestNetParams = Params{
	Name:                  "testnet",
	PowLimitBits:          0x1f00ffff,
	StakeMinAge:           60 * 10,
	ModifierUpgradeHeight: 1000,
	Epoch2Time:            1593356400,
	LastPOWBlock:          250,
	ModifierInterval:      20,
	ModifierIntervalRatio: 3,
	HashDrift:             45,
	GenesisStakeModifier:  defaultGenesisStakeModifier,
}

// RegTestParams 本地回归测试参数
var RegTestParams = Params{
	Name:                  "regtest",
	PowLimitBits:          0x207fffff,
	StakeMinAge:           60,
	ModifierUpgradeHeight: 0,
	Epoch2Time:            0,
	LastPOWBlock:          100,
	ModifierInterval:      10,
	ModifierIntervalRatio: 3,
	HashDrift:             30,
	GenesisStakeModifier:  defaultGenesisStakeModifier,
}

// ParamsForNetwork 按名字取预置网络参数（返回副本）
func ParamsForNetwork(name string) (Params, error) {
	switch strings.ToLower(name) {
	case "", "main", "mainnet":
		return MainNetParams, nil
	case "test", "testnet":
		return TestNetParams, nil
	case "regtest":
		return RegTestParams, nil
	}
	return Params{}, fmt.Errorf("unknown network %q", name)
}

// IsProofOfStake 高度大于最后一个 PoW 高度即为 PoS 区块
func (p *Params) IsProofOfStake(height int32) bool {
	return height > p.LastPOWBlock
}

// IsEpoch2 时间戳是否已过 Epoch2 切换点
func (p *Params) IsEpoch2(t int64) bool {
	return t >= p.Epoch2Time
}

// Validate 检查参数合法性
func (p *Params) Validate() error {
	if p.ModifierInterval <= 0 {
		return fmt.Errorf("modifier interval must be positive, got %d", p.ModifierInterval)
	}
	if p.ModifierIntervalRatio < 1 {
		return fmt.Errorf("modifier interval ratio must be >= 1, got %d", p.ModifierIntervalRatio)
	}
	if p.StakeMinAge < 0 {
		return fmt.Errorf("stake min age must not be negative, got %d", p.StakeMinAge)
	}
	if p.HashDrift < 0 || p.HashDrift > 3600 {
		return fmt.Errorf("hash drift out of range [0, 3600]: %d", p.HashDrift)
	}
	if p.LastPOWBlock < 0 {
		return fmt.Errorf("last PoW block must not be negative, got %d", p.LastPOWBlock)
	}
	if p.PowLimitBits == 0 {
		return fmt.Errorf("pow limit bits must be set")
	}
	return nil
}
