package domain

// Side 订单/成交方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite 返回相反方向
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Direction 信号方向（与中继线路格式一致：BUY/SELL/FADE）
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionFade Direction = "FADE"
)

// DirectionFromSide 把订单方向转成信号方向
func DirectionFromSide(s Side) Direction {
	if s == SideBuy {
		return DirectionBuy
	}
	return DirectionSell
}

// IsLong 判断信号方向是否支持做多
func (d Direction) IsLong() bool {
	return d == DirectionBuy
}

// SignalType 信号类型
type SignalType string

const (
	SignalIceberg    SignalType = "ICEBERG"    // 冰山单：同价位异常密集的小单
	SignalSpoof      SignalType = "SPOOF"      // 幌骗单：挂出后迅速撤销的大单
	SignalAbsorption SignalType = "ABSORPTION" // 吸收：大额主动成交被挂单吃掉
	SignalDefense    SignalType = "DEFENSE"    // 大资金防守：价格回到大单价位且同向成交延续
)
