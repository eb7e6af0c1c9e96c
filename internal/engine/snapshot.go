package engine

import (
	"context"
	"errors"
	"time"

	"github.com/betbot/flowsense/internal/metrics"
	"github.com/betbot/flowsense/pkg/persistence"
)

// Snapshot 引擎快照：跨重启保留预热进度与最近状态。
// 大资金价位走 levelstore 归档，不在快照里。
type Snapshot struct {
	Instrument   string    `json:"instrument"`
	LastPrice    int64     `json:"last_price"`
	Trades       int64     `json:"trades"`
	PriceUpdates int64     `json:"price_updates"`
	SavedAt      time.Time `json:"saved_at"`
}

const snapshotInterval = 30 * time.Second

// snapshot 当前状态的快照（只读）
func (e *Engine) snapshot() Snapshot {
	return Snapshot{
		Instrument:   e.cfg.Instrument,
		LastPrice:    e.lastPrice.Load(),
		Trades:       e.clock.Trades(),
		PriceUpdates: e.clock.PriceUpdates(),
		SavedAt:      time.Now(),
	}
}

// RunSnapshots 周期性保存快照，阻塞到 ctx 取消（退出前再存一次）
func (e *Engine) RunSnapshots(ctx context.Context, store persistence.Store) {
	if store == nil {
		return
	}
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.saveSnapshot(store)
			return
		case <-ticker.C:
			e.saveSnapshot(store)
		}
	}
}

func (e *Engine) saveSnapshot(store persistence.Store) {
	if err := store.Save(e.snapshot()); err != nil {
		engineLog.Warnf("保存快照失败: %v", err)
		return
	}
	metrics.SnapshotSaves.Add(1)
}

// LoadSnapshot 读取上次快照（仅用于启动日志与诊断；计数器不回灌，
// 预热从本次会话的真实事件重新累计）
func LoadSnapshot(store persistence.Store) (Snapshot, bool) {
	var snap Snapshot
	if store == nil {
		return snap, false
	}
	if err := store.Load(&snap); err != nil {
		if !errors.Is(err, persistence.ErrNotExists) {
			engineLog.Warnf("读取快照失败: %v", err)
		}
		return snap, false
	}
	metrics.SnapshotLoads.Add(1)
	return snap, true
}
