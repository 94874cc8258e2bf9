// db/keys.go
package db

import (
	"fmt"
)

// ===================== 版本控制 =====================
// 全局 Key 版本前缀（"v1" → "v1_<key>"）
const KeyVersion = "v1"

func withVer(s string) string {
	if KeyVersion == "" {
		return s
	}
	return KeyVersion + "_" + s
}

// —— 区块索引 ——
// 例：blockidx_<blockHash>
func KeyBlockIndex(blockHash string) string {
	return withVer("blockidx_" + blockHash)
}

// 例：height_<height>  → blockHash
func KeyHeight(height int32) string {
	return withVer(fmt.Sprintf("height_%d", height))
}

// 例：tip → 最高区块高度
func KeyTip() string { return withVer("tip") }
