package domain

import "time"

// DeltaLevel 价位累计成交差额
// Delta 为该价位自创建以来的累计带符号成交量（买正卖负）。
// DeltaLevel 只会被老化出活跃离群集合，不会在活跃期间被删除重建。
type DeltaLevel struct {
	Price      int64     // 价格（tick）
	Delta      int64     // 累计带符号成交量
	BuyVolume  int64     // 累计买量
	SellVolume int64     // 累计卖量
	Trades     int64     // 成交笔数
	LastUpdate time.Time // 最近一次成交时间
	Outlier    bool      // |Delta| 是否超过离群阈值
	BigFish    bool      // 是否已晋升为大资金价位（只置位一次）
}

// BigFishLevel 大资金价位
// 晋升后即使失效也只是 Active=false，保留到年龄超过 2×过期时间才被移除。
type BigFishLevel struct {
	Price        int64     `json:"price"`         // 价格（tick）
	Delta        int64     `json:"delta"`         // 晋升时的累计差额
	Side         Side      `json:"side"`          // 买方大资金 or 卖方大资金（按晋升时 Delta 符号）
	FirstSeen    time.Time `json:"first_seen"`    // 晋升时间
	LastDefense  time.Time `json:"last_defense"`  // 最近一次防守时间
	DefenseCount int       `json:"defense_count"` // 防守次数
	Active       bool      `json:"active"`        // 是否仍在活跃集合
}

// Age 返回该价位自晋升起到 now 的年龄
func (b *BigFishLevel) Age(now time.Time) time.Duration {
	if b == nil {
		return 0
	}
	return now.Sub(b.FirstSeen)
}
