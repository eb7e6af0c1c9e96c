package domain

import "time"

// Trade 成交领域模型
// Trade 代表一次实际发生的成交，与 Order（可能未成交的挂单）分离。
type Trade struct {
	Price int64     // 成交价格（tick）
	Size  int64     // 成交数量
	Side  Side      // 主动方方向
	Time  time.Time // 成交时间
}

// SignedSize 返回带符号的成交数量（买为正，卖为负）
func (t Trade) SignedSize() int64 {
	if t.Side == SideBuy {
		return t.Size
	}
	return -t.Size
}
