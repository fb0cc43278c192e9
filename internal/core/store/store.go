// Package store 维护每个币种最新的市场快照。
// 使用单写者模式避免锁和竞态条件。
package store

import (
	"strings"

	"ladder-optimizer/internal/core/model"
)

// Store 最新快照缓存（单写者）
// 注意：本结构体默认由服务主循环单 goroutine 写入；若要跨 goroutine 读，请通过消息或拷贝传递快照。
type Store struct {
	// snapshots 按币种（大写，如 BTC）缓存最新快照
	snapshots map[string]*model.Snapshot
}

// New 创建新的快照缓存
func New() *Store {
	return &Store{
		snapshots: make(map[string]*model.Snapshot, 4),
	}
}

// Update 更新缓存
// 新快照整体替换旧快照，不做合并。
// 参数 snap: 一次刷新得到的快照
func (s *Store) Update(snap *model.Snapshot) {
	if snap == nil || snap.Currency == "" {
		return
	}
	s.snapshots[strings.ToUpper(snap.Currency)] = snap
}

// Get 获取指定币种的最新快照
// 返回值可能为 nil；返回的指针应视为只读。
func (s *Store) Get(currency string) *model.Snapshot {
	return s.snapshots[strings.ToUpper(currency)]
}
