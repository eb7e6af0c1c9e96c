package confluence

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/flowsense/internal/domain"
	"github.com/betbot/flowsense/internal/session"
	"github.com/betbot/flowsense/pkg/config"
)

var scoreLog = logrus.WithField("component", "confluence")

// EvalInput 一次评估周期的外部输入（由引擎装配）
type EvalInput struct {
	Now            time.Time
	Price          int64
	Phase          session.Phase
	WarmupComplete bool
	DomAdjLong     float64
	DomAdjShort    float64
	TapeAdjLong    float64
	TapeAdjShort   float64
}

// Evaluation 一次评估周期的输出：两个方向的结果与可选决策
type Evaluation struct {
	Long     *domain.ConfluenceResult
	Short    *domain.ConfluenceResult
	Decision *domain.ConfluenceResult // 达标方向中的最高分；无决策时为 nil
}

// Scorer 置信评分器。
// 汇总新鲜度窗口内各检测器信号的分值贡献、订单簿与成交带调整分，
// 再按时段乘数调整阈值；预热未完成时信号被压制，不评估。
type Scorer struct {
	cfg config.ConfluenceConfig

	mu     sync.Mutex
	recent []*domain.Signal
}

// NewScorer 创建评分器
func NewScorer(cfg config.ConfluenceConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// AddSignal 登记一个检测器信号（进入新鲜度窗口）
func (s *Scorer) AddSignal(sig *domain.Signal) {
	if sig == nil {
		return
	}
	s.mu.Lock()
	s.recent = append(s.recent, sig)
	s.mu.Unlock()
}

// RecentSignals 返回仍在新鲜度窗口内的信号（状态 API 用）
func (s *Scorer) RecentSignals(now time.Time) []*domain.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	out := make([]*domain.Signal, len(s.recent))
	copy(out, s.recent)
	return out
}

// Evaluate 评估两个方向候选。
// 预热未完成返回 nil（信号压制）；未达阈值时仍返回完整结果供记录。
func (s *Scorer) Evaluate(in EvalInput) *Evaluation {
	if !in.WarmupComplete {
		return nil
	}

	s.mu.Lock()
	s.pruneLocked(in.Now)
	signals := make([]*domain.Signal, len(s.recent))
	copy(signals, s.recent)
	s.mu.Unlock()

	mult := in.Phase.ThresholdMultiplier()
	long := s.scoreDirection(domain.DirectionBuy, signals, in.DomAdjLong, in.TapeAdjLong, s.cfg.LongThreshold*mult, in)
	short := s.scoreDirection(domain.DirectionSell, signals, in.DomAdjShort, in.TapeAdjShort, s.cfg.ShortThreshold*mult, in)

	ev := &Evaluation{Long: long, Short: short}
	switch {
	case long.Decided && short.Decided:
		if long.Score >= short.Score {
			ev.Decision = long
		} else {
			ev.Decision = short
		}
	case long.Decided:
		ev.Decision = long
	case short.Decided:
		ev.Decision = short
	}
	if ev.Decision != nil {
		scoreLog.Infof("🎯 置信决策: dir=%s score=%.1f threshold=%.1f phase=%s",
			ev.Decision.Direction, ev.Decision.Score, ev.Decision.Threshold, in.Phase)
	}
	return ev
}

// scoreDirection 单方向打分
func (s *Scorer) scoreDirection(dir domain.Direction, signals []*domain.Signal, domAdj, tapeAdj, threshold float64, in EvalInput) *domain.ConfluenceResult {
	res := &domain.ConfluenceResult{
		Direction: dir,
		Threshold: threshold,
		Price:     in.Price,
		Time:      in.Now,
	}

	for _, sig := range signals {
		pts := s.signalPoints(sig, dir)
		if pts == 0 {
			continue
		}
		res.Components = append(res.Components, domain.ScoreComponent{
			Name: string(sig.Type), Points: pts,
		})
		res.Score += pts
	}

	res.Components = append(res.Components,
		domain.ScoreComponent{Name: "dom", Points: domAdj},
		domain.ScoreComponent{Name: "tape", Points: tapeAdj},
	)
	res.Score += domAdj + tapeAdj
	res.Decided = res.Score >= threshold
	return res
}

// signalPoints 信号对某个方向候选的贡献分
func (s *Scorer) signalPoints(sig *domain.Signal, dir domain.Direction) float64 {
	var pts float64
	switch sig.Type {
	case domain.SignalIceberg:
		pts = s.cfg.IcebergPoints
	case domain.SignalSpoof:
		pts = s.cfg.SpoofPoints
	case domain.SignalAbsorption:
		pts = s.cfg.AbsorptionPoints
	case domain.SignalDefense:
		pts = s.cfg.DefensePoints
	default:
		return 0
	}

	switch sig.Direction {
	case dir:
		return pts
	case domain.DirectionFade:
		// 通用反转信号：对两个方向都给半分
		return pts / 2
	default:
		return 0
	}
}

// IsBorderline 分数距阈值在边界范围内（未达标但接近，或刚过线）时返回 true。
// 边界决策会被升级到咨询 provider。
func (s *Scorer) IsBorderline(res *domain.ConfluenceResult) bool {
	if res == nil {
		return false
	}
	diff := res.Score - res.Threshold
	if diff < 0 {
		diff = -diff
	}
	return diff <= s.cfg.BorderlineMargin
}

// pruneLocked 丢弃超出新鲜度窗口的信号
func (s *Scorer) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.cfg.RecencyWindow)
	i := 0
	for i < len(s.recent) && s.recent[i].Time.Before(cutoff) {
		i++
	}
	if i > 0 {
		copy(s.recent, s.recent[i:])
		s.recent = s.recent[:len(s.recent)-i]
	}
}
