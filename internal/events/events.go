package events

import (
	"time"

	"github.com/betbot/flowsense/internal/domain"
)

// TradeEvent 成交事件
type TradeEvent struct {
	Trade     domain.Trade
	Timestamp time.Time
}

// BboEvent 最优买卖盘更新事件
type BboEvent struct {
	BidPrice  int64
	BidSize   int64
	AskPrice  int64
	AskSize   int64
	Timestamp time.Time
}

// Mid 返回中间价（tick，向下取整）
func (e *BboEvent) Mid() int64 {
	return (e.BidPrice + e.AskPrice) / 2
}

// OrderAddEvent 挂单新增事件
type OrderAddEvent struct {
	ID        string
	Side      domain.Side
	Price     int64
	Size      int64
	Timestamp time.Time
}

// OrderModifyEvent 挂单修改事件
type OrderModifyEvent struct {
	ID        string
	NewPrice  int64
	NewSize   int64
	Timestamp time.Time
}

// OrderCancelEvent 挂单撤销事件
type OrderCancelEvent struct {
	ID        string
	Timestamp time.Time
}

// SignalEvent 检测器信号事件
type SignalEvent struct {
	Signal    *domain.Signal
	Timestamp time.Time
}

// DecisionEvent 置信决策事件
// Advisory 提示结果在异步咨询完成后单独回调，不包含在本事件里。
type DecisionEvent struct {
	Result    *domain.ConfluenceResult
	Timestamp time.Time
}
