package ledger

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/flowsense/internal/domain"
	"github.com/betbot/flowsense/pkg/config"
)

var deltaLog = logrus.WithField("component", "delta_ledger")

// DefenseSignal 大资金防守检测结果
type DefenseSignal struct {
	Level        *domain.BigFishLevel
	CurrentDelta int64 // 防守判定使用的是当前价位的实时差额
	Distance     int64
}

// DeltaStats 单笔差额滚动统计
type DeltaStats struct {
	Mean   float64
	StdDev float64
	Count  int
}

// PromoteFunc 大资金价位晋升回调（引擎用它写入归档）
type PromoteFunc func(level domain.BigFishLevel)

// DeltaLedger 按价位累计带符号成交量并跟踪大资金价位。
// 写入只发生在事件线程；后台清扫只删除或置 Active=false，
// 不修改累计值，所以 RWMutex 下竞争仅限可见性。
type DeltaLedger struct {
	cfg config.DeltaConfig

	mu        sync.RWMutex
	levels    map[int64]*domain.DeltaLevel
	bigFish   map[int64]*domain.BigFishLevel
	recent    []float64 // 最近单笔带符号成交量（统计用，有界）
	trades    int64
	onPromote PromoteFunc
}

// NewDeltaLedger 创建差额账本
func NewDeltaLedger(cfg config.DeltaConfig) *DeltaLedger {
	return &DeltaLedger{
		cfg:     cfg,
		levels:  make(map[int64]*domain.DeltaLevel),
		bigFish: make(map[int64]*domain.BigFishLevel),
		recent:  make([]float64, 0, cfg.RecentWindow),
	}
}

// OnPromote 注册晋升回调（在锁外触发）
func (d *DeltaLedger) OnPromote(fn PromoteFunc) {
	d.onPromote = fn
}

// OnTrade 记录一笔成交并更新对应价位。
// 每 SweepEvery 笔成交顺带做一次清扫。
func (d *DeltaLedger) OnTrade(t domain.Trade) {
	var promoted *domain.BigFishLevel

	d.mu.Lock()
	lv, ok := d.levels[t.Price]
	if !ok {
		lv = &domain.DeltaLevel{Price: t.Price}
		d.levels[t.Price] = lv
	}

	signed := t.SignedSize()
	lv.Delta += signed
	if t.Side == domain.SideBuy {
		lv.BuyVolume += t.Size
	} else {
		lv.SellVolume += t.Size
	}
	lv.Trades++
	lv.LastUpdate = t.Time

	abs := lv.Delta
	if abs < 0 {
		abs = -abs
	}
	lv.Outlier = abs >= d.cfg.OutlierThreshold

	// 晋升只发生一次：BigFish 置位后不再重复创建
	if !lv.BigFish && abs >= d.cfg.BigFishThreshold {
		lv.BigFish = true
		side := domain.SideBuy
		if lv.Delta < 0 {
			side = domain.SideSell
		}
		bf := &domain.BigFishLevel{
			Price:     t.Price,
			Delta:     lv.Delta,
			Side:      side,
			FirstSeen: t.Time,
			Active:    true,
		}
		d.bigFish[t.Price] = bf
		cp := *bf
		promoted = &cp
	}

	d.recent = append(d.recent, float64(signed))
	if max := d.cfg.RecentWindow; max > 0 && len(d.recent) > max {
		d.recent = d.recent[len(d.recent)-max:]
	}

	d.trades++
	if d.cfg.SweepEvery > 0 && d.trades%int64(d.cfg.SweepEvery) == 0 {
		d.sweepLocked(t.Time)
	}
	d.mu.Unlock()

	if promoted != nil {
		deltaLog.Infof("🐳 大资金价位晋升: price=%d delta=%d side=%s", promoted.Price, promoted.Delta, promoted.Side)
		if d.onPromote != nil {
			d.onPromote(*promoted)
		}
	}
}

// Sweep 立即执行一次清扫（后台循环与测试用）
func (d *DeltaLedger) Sweep(now time.Time) {
	d.mu.Lock()
	d.sweepLocked(now)
	d.mu.Unlock()
}

// sweepLocked 过期清理：
//   - 非大资金价位闲置超过 LevelExpiry 即删除；
//   - 大资金价位年龄超过 2×LevelExpiry 置 Active=false，档案保留不删除；
//   - 失活大资金价位对应的差额条目随之回收，防止 levels 无界增长。
func (d *DeltaLedger) sweepLocked(now time.Time) {
	for price, lv := range d.levels {
		if lv.BigFish {
			if bf, ok := d.bigFish[price]; !ok || !bf.Active {
				delete(d.levels, price)
			}
			continue
		}
		if now.Sub(lv.LastUpdate) > d.cfg.LevelExpiry {
			delete(d.levels, price)
		}
	}
	for price, bf := range d.bigFish {
		if !bf.Active {
			continue
		}
		if age := now.Sub(bf.FirstSeen); age > 2*d.cfg.LevelExpiry {
			bf.Active = false
			delete(d.levels, price)
			deltaLog.Debugf("大资金价位失效: price=%d age=%s", price, age)
		}
	}
}

// Run 后台定期清扫循环
func (d *DeltaLedger) Run(ctx context.Context) {
	interval := d.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.Sweep(now)
		}
	}
}

// Level 查询价位差额（副本）
func (d *DeltaLedger) Level(price int64) (domain.DeltaLevel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	lv, ok := d.levels[price]
	if !ok {
		return domain.DeltaLevel{}, false
	}
	return *lv, true
}

// NumLevels 当前跟踪的价位数
func (d *DeltaLedger) NumLevels() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.levels)
}

// NumBigFish 档案中的大资金价位总数（含已失活的）
func (d *DeltaLedger) NumBigFish() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.bigFish)
}

// ActiveBigFish 返回当前活跃大资金价位（副本）
func (d *DeltaLedger) ActiveBigFish() []domain.BigFishLevel {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.BigFishLevel, 0, len(d.bigFish))
	for _, bf := range d.bigFish {
		if bf.Active {
			out = append(out, *bf)
		}
	}
	return out
}

// SeedBigFish 启动时从归档恢复大资金价位（只添加，不覆盖已有）
func (d *DeltaLedger) SeedBigFish(levels []domain.BigFishLevel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range levels {
		bf := levels[i]
		if _, exists := d.bigFish[bf.Price]; exists {
			continue
		}
		cp := bf
		d.bigFish[bf.Price] = &cp
		if lv, ok := d.levels[bf.Price]; ok {
			lv.BigFish = true
		} else {
			d.levels[bf.Price] = &domain.DeltaLevel{
				Price:      bf.Price,
				BigFish:    true,
				LastUpdate: bf.FirstSeen,
			}
		}
	}
}

// AnalyzeForBigFish 在 lookback 范围内找最近的活跃大资金价位；
// 若当前价贴近（DefenseProximityTicks 内）且该价位的**当前**差额仍在
// 大资金原方向上超过 DefenseMinDelta，判定为一次防守。
func (d *DeltaLedger) AnalyzeForBigFish(currentPrice int64, now time.Time) (DefenseSignal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var nearest *domain.BigFishLevel
	var nearestDist int64
	for _, bf := range d.bigFish {
		if !bf.Active {
			continue
		}
		dist := bf.Price - currentPrice
		if dist < 0 {
			dist = -dist
		}
		if dist > d.cfg.LookbackTicks {
			continue
		}
		if nearest == nil || dist < nearestDist {
			nearest = bf
			nearestDist = dist
		}
	}
	if nearest == nil || nearestDist > d.cfg.DefenseProximityTicks {
		return DefenseSignal{}, false
	}

	// 关键：用当前价位的实时差额判断延续，而不是晋升时的历史值
	lv, ok := d.levels[currentPrice]
	if !ok {
		return DefenseSignal{}, false
	}
	continuing := false
	if nearest.Side == domain.SideBuy {
		continuing = lv.Delta >= d.cfg.DefenseMinDelta
	} else {
		continuing = lv.Delta <= -d.cfg.DefenseMinDelta
	}
	if !continuing {
		return DefenseSignal{}, false
	}

	nearest.DefenseCount++
	nearest.LastDefense = now
	cp := *nearest
	return DefenseSignal{Level: &cp, CurrentDelta: lv.Delta, Distance: nearestDist}, true
}

// Stats 返回最近单笔差额的均值与标准差
func (d *DeltaLedger) Stats() DeltaStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := len(d.recent)
	if n == 0 {
		return DeltaStats{}
	}
	var sum float64
	for _, v := range d.recent {
		sum += v
	}
	mean := sum / float64(n)
	var sq float64
	for _, v := range d.recent {
		sq += (v - mean) * (v - mean)
	}
	return DeltaStats{Mean: mean, StdDev: math.Sqrt(sq / float64(n)), Count: n}
}
