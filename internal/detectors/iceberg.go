package detectors

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/flowsense/internal/domain"
	"github.com/betbot/flowsense/internal/ledger"
	"github.com/betbot/flowsense/pkg/config"
)

var icebergLog = logrus.WithField("component", "iceberg")

// IcebergDetector 监测单一价位上挂单数/聚合量的异常聚集。
// 自适应阈值：threshold = max(下限, 3×滚动均值)，挂单数与数量都超阈值才触发
// （"3 倍常态活跃度"规则）。触发前还要过两道抑制：
//  1. 同价位冷却：冷却期内同价位不重复触发；
//  2. 方向锁：与最近一次信号相反方向的信号在更长的锁定期内被抑制，防止来回翻转。
type IcebergDetector struct {
	cfg config.IcebergConfig

	mu           sync.Mutex
	countHist    []float64 // 最近的挂单数观察值（有界滚动）
	sizeHist     []float64 // 最近的聚合量观察值
	lastSignalAt map[int64]time.Time
	lastSide     domain.Side
	lastSideAt   time.Time
}

// NewIcebergDetector 创建冰山检测器
func NewIcebergDetector(cfg config.IcebergConfig) *IcebergDetector {
	return &IcebergDetector{
		cfg:          cfg,
		countHist:    make([]float64, 0, cfg.HistoryWindow),
		sizeHist:     make([]float64, 0, cfg.HistoryWindow),
		lastSignalAt: make(map[int64]time.Time),
	}
}

// OnOrderAdd 在每次挂单新增后用目标价位的最新观测值做一次判定。
// 阈值基于本次观测**之前**的历史计算，判定完成后再把本次观测计入历史。
func (d *IcebergDetector) OnOrderAdd(stats ledger.LevelStats, side domain.Side, now time.Time) (*domain.Signal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	countLimit := adaptiveThreshold(d.countHist, float64(d.cfg.MinOrders))
	sizeLimit := adaptiveThreshold(d.sizeHist, float64(d.cfg.MinSize))

	fired := float64(stats.OrderCount) >= countLimit && float64(stats.TotalSize) >= sizeLimit

	d.countHist = pushBounded(d.countHist, float64(stats.OrderCount), d.cfg.HistoryWindow)
	d.sizeHist = pushBounded(d.sizeHist, float64(stats.TotalSize), d.cfg.HistoryWindow)

	if !fired {
		return nil, false
	}

	// 同价位冷却
	if last, ok := d.lastSignalAt[stats.Price]; ok && now.Sub(last) < d.cfg.Cooldown {
		return nil, false
	}
	// 方向锁：反向信号要等更长的锁定期
	if d.lastSide != "" && side != d.lastSide && now.Sub(d.lastSideAt) < d.cfg.DirectionCooldown {
		icebergLog.Debugf("方向锁抑制: price=%d side=%s last=%s", stats.Price, side, d.lastSide)
		return nil, false
	}

	d.lastSignalAt[stats.Price] = now
	d.lastSide = side
	d.lastSideAt = now

	return &domain.Signal{
		Type:       domain.SignalIceberg,
		Direction:  domain.DirectionFromSide(side),
		Price:      stats.Price,
		Size:       stats.TotalSize,
		OrderCount: stats.OrderCount,
		CountLimit: countLimit,
		SizeLimit:  sizeLimit,
		Time:       now,
	}, true
}

// 滚动均值至少要有这么多样本才参与阈值计算，避免冷启动时被前几笔观测带偏
const adaptiveMinSamples = 20

// adaptiveThreshold = max(下限, 3×滚动均值)；样本不足时只用下限
func adaptiveThreshold(hist []float64, min float64) float64 {
	if len(hist) < adaptiveMinSamples {
		return min
	}
	var sum float64
	for _, v := range hist {
		sum += v
	}
	avg := sum / float64(len(hist))
	if t := 3 * avg; t > min {
		return t
	}
	return min
}

// pushBounded 追加观察值并保持窗口有界
func pushBounded(hist []float64, v float64, max int) []float64 {
	hist = append(hist, v)
	if max > 0 && len(hist) > max {
		hist = hist[len(hist)-max:]
	}
	return hist
}
