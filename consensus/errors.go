package consensus

import (
	"errors"
	"fmt"
)

// 共识错误类型，调用方用 errors.Is 判断
var (
	// ErrChainLookup 引用的区块或 outpoint 不在索引里
	ErrChainLookup = errors.New("chain lookup failure")

	// ErrStaleModifier 找不到已生成的 stake modifier
	ErrStaleModifier = errors.New("stale modifier resolution failure")

	// ErrTimestampViolation 花费时间早于币所在区块，或未满最小币龄
	ErrTimestampViolation = errors.New("timestamp violation")

	// ErrTargetMiss kernel hash 未达到目标（区块验证时视为无效）
	ErrTargetMiss = errors.New("kernel hash does not meet target")

	// ErrInvalidTarget compact bits 为负、溢出、为零或超过 PoW 上限
	ErrInvalidTarget = errors.New("invalid stake target")
)

// AssertError 内部不变量被破坏（程序错误），以 panic 形式抛出
type AssertError string

func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

func assertf(format string, args ...interface{}) {
	panic(AssertError(fmt.Sprintf(format, args...)))
}
