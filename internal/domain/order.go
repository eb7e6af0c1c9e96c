package domain

import "time"

// Order 挂单领域模型
// 价格统一用整数 tick 表示，数量用整数。
// Order 由 OrderLedger 独占管理：add 创建、modify 修改、cancel/移除销毁。
type Order struct {
	ID        string    // 挂单 ID（在存续期间唯一）
	Side      Side      // 方向
	Price     int64     // 价格（tick）
	Size      int64     // 数量
	CreatedAt time.Time // 创建时间
}

// Age 返回挂单从创建到 now 的存续时间
func (o *Order) Age(now time.Time) time.Duration {
	if o == nil {
		return 0
	}
	return now.Sub(o.CreatedAt)
}

// PriceLevel 价位聚合
// 不变式：TotalSize == 该价位所有成员挂单 Size 之和；价位为空时即删除。
type PriceLevel struct {
	Price     int64    // 价格（tick）
	OrderIDs  []string // 按插入顺序排列的挂单 ID
	TotalSize int64    // 聚合数量
	BidSize   int64    // 买方挂单聚合数量
	AskSize   int64    // 卖方挂单聚合数量
}

// OrderCount 返回价位上的挂单数量
func (l *PriceLevel) OrderCount() int {
	if l == nil {
		return 0
	}
	return len(l.OrderIDs)
}
