package domain

import "time"

// Signal 检测器输出的部分信号
// OrderCount/CountLimit/SizeLimit 仅冰山信号填写（记录触发时观察值与自适应阈值）。
type Signal struct {
	ID         string     `json:"id"`                    // 信号 ID（uuid）
	Type       SignalType `json:"type"`                  // 信号类型
	Direction  Direction  `json:"direction"`             // 信号方向
	Price      int64      `json:"price"`                 // 触发价格（tick）
	Size       int64      `json:"size"`                  // 触发数量
	OrderCount int        `json:"order_count,omitempty"` // 冰山：观察到的挂单数
	CountLimit float64    `json:"count_limit,omitempty"` // 冰山：触发时使用的挂单数阈值
	SizeLimit  float64    `json:"size_limit,omitempty"`  // 冰山：触发时使用的数量阈值
	Time       time.Time  `json:"time"`                  // 触发时间
}

// ScoreComponent 置信分的单项贡献
type ScoreComponent struct {
	Name   string  `json:"name"`   // 贡献来源（iceberg / spoof / dom / tape / phase ...）
	Points float64 `json:"points"` // 贡献分值（可为负）
}

// ConfluenceResult 单个方向候选的置信评估结果
type ConfluenceResult struct {
	Direction  Direction        `json:"direction"`  // 评估方向（BUY=做多候选，SELL=做空候选）
	Score      float64          `json:"score"`      // 总分
	Threshold  float64          `json:"threshold"`  // 触发阈值（含时段调整）
	Components []ScoreComponent `json:"components"` // 各项贡献明细
	Decided    bool             `json:"decided"`    // 是否达到阈值并产生决策
	Price      int64            `json:"price"`      // 评估时的参考价（tick）
	Time       time.Time        `json:"time"`       // 评估时间
}
