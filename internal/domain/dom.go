package domain

// Wall 订单簿上的单面大墙（最近支撑或压力）
type Wall struct {
	Price    int64 // 价格（tick）
	Volume   int64 // 墙体挂单量
	Side     Side  // 买墙=支撑，卖墙=压力
	Distance int64 // 与当前价的距离（tick，恒为正）
}

// DomSnapshot 订单簿分析快照
// 每次分析调用都基于当前簿内容完整重算，不做增量维护。
type DomSnapshot struct {
	Support        *Wall   // 最近支撑（可为 nil）
	Resistance     *Wall   // 最近压力（可为 nil）
	TotalBidVolume int64   // 买方总挂单量
	TotalAskVolume int64   // 卖方总挂单量
	ImbalanceRatio float64 // 买/卖失衡比（卖方为 0 时为 +Inf）
}
