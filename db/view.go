package db

import (
	"fmt"

	"posd/config"
	"posd/interfaces"
	"posd/types"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var _ interfaces.BlockIndexView = (*View)(nil)

// View 以打开时的 tip 为界的只读索引视图
// 之后写入的更高区块对这个视图不可见。读错误记日志并按"找不到"处理。
type View struct {
	mgr    *Manager
	params *config.Params
	tip    *types.BlockRef
}

// NewView 以当前 tip 打开视图
func NewView(mgr *Manager, params *config.Params) (*View, error) {
	height, ok, err := mgr.TipHeight()
	if err != nil {
		return nil, err
	}
	if !ok {
		return &View{mgr: mgr, params: params}, nil
	}
	return NewViewAt(mgr, params, height)
}

// NewViewAt 以指定高度为 tip 打开视图
func NewViewAt(mgr *Manager, params *config.Params, height int32) (*View, error) {
	tip, ok, err := mgr.GetBlockByHeight(height)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no block index record at height %d", height)
	}
	return &View{mgr: mgr, params: params, tip: tip}, nil
}

func (v *View) Params() *config.Params {
	return v.params
}

func (v *View) Tip() *types.BlockRef {
	return v.tip
}

func (v *View) LookupBlock(hash chainhash.Hash) (*types.BlockRef, bool) {
	if v.tip == nil {
		return nil, false
	}
	ref, ok, err := v.mgr.GetBlock(hash)
	if err != nil {
		v.mgr.Logger.Warn("view lookup %s failed: %v", hash, err)
		return nil, false
	}
	if !ok || ref.Height > v.tip.Height {
		return nil, false
	}
	return ref, true
}

func (v *View) BlockAtHeight(height int32) (*types.BlockRef, bool) {
	if v.tip == nil || height < 0 || height > v.tip.Height {
		return nil, false
	}
	ref, ok, err := v.mgr.GetBlockByHeight(height)
	if err != nil {
		v.mgr.Logger.Warn("view lookup height %d failed: %v", height, err)
		return nil, false
	}
	return ref, ok
}
