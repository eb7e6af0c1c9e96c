// Package engine 把账本、检测器、时段时钟与置信评分器接成一条事件管线。
// 入站契约是五个行情回调；出站是信号/决策回调与可选的中继、日志库、归档。
// 引擎本身不落盘渲染，任何下游缺席都不影响事件路径。
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betbot/flowsense/internal/advisory"
	"github.com/betbot/flowsense/internal/confluence"
	"github.com/betbot/flowsense/internal/detectors"
	"github.com/betbot/flowsense/internal/domain"
	"github.com/betbot/flowsense/internal/events"
	"github.com/betbot/flowsense/internal/journal"
	"github.com/betbot/flowsense/internal/ledger"
	"github.com/betbot/flowsense/internal/metrics"
	"github.com/betbot/flowsense/internal/relay"
	"github.com/betbot/flowsense/internal/session"
	"github.com/betbot/flowsense/internal/status"
	"github.com/betbot/flowsense/pkg/config"
	"github.com/betbot/flowsense/pkg/levelstore"
)

var engineLog = logrus.WithField("component", "engine")

// SignalHandler 信号回调
type SignalHandler func(ev events.SignalEvent)

// DecisionHandler 决策回调
type DecisionHandler func(ev events.DecisionEvent)

// AdvisoryHandler 异步咨询完成回调
type AdvisoryHandler func(res advisory.Result)

// Options 引擎的可选下游（均可为 nil）
type Options struct {
	Orchestrator *advisory.Orchestrator
	Relay        *relay.Writer
	Journal      *journal.Journal
	LevelStore   *levelstore.Store
}

// Engine 信号引擎
type Engine struct {
	cfg  config.Config
	opts Options

	orders     *ledger.OrderLedger
	delta      *ledger.DeltaLedger
	iceberg    *detectors.IcebergDetector
	spoof      *detectors.SpoofDetector
	absorption *detectors.AbsorptionDetector
	tape       *detectors.TapeSpeedMeter
	dom        *detectors.DOMAnalyzer
	clock      *session.Clock
	scorer     *confluence.Scorer

	lastPrice atomic.Int64
	startedAt time.Time

	evalMu     sync.Mutex
	lastEvalAt time.Time
	lastEval   *domain.ConfluenceResult

	// 咨询按评估序号贴标，旧序号的迟到结果直接丢弃
	evalSeq atomic.Uint64

	handlerMu        sync.RWMutex
	signalHandlers   []SignalHandler
	decisionHandlers []DecisionHandler
	advisoryHandlers []AdvisoryHandler
}

// New 创建引擎
func New(cfg config.Config, opts Options) *Engine {
	e := &Engine{
		cfg:        cfg,
		opts:       opts,
		orders:     ledger.NewOrderLedger(),
		delta:      ledger.NewDeltaLedger(cfg.Delta),
		iceberg:    detectors.NewIcebergDetector(cfg.Iceberg),
		spoof:      detectors.NewSpoofDetector(cfg.Spoof),
		absorption: detectors.NewAbsorptionDetector(cfg.Absorption),
		tape:       detectors.NewTapeSpeedMeter(cfg.Tape),
		dom:        detectors.NewDOMAnalyzer(cfg.Dom),
		clock:      session.NewClock(cfg.Session, time.Now()),
		scorer:     confluence.NewScorer(cfg.Confluence),
		startedAt:  time.Now(),
	}

	e.delta.OnPromote(func(level domain.BigFishLevel) {
		if e.opts.LevelStore != nil {
			if err := e.opts.LevelStore.Put(&level); err != nil {
				engineLog.Warnf("大资金价位归档失败: %v", err)
			}
		}
	})
	return e
}

// RestoreBigFish 从归档恢复大资金价位（启动时调用一次）
func (e *Engine) RestoreBigFish(now time.Time) {
	if e.opts.LevelStore == nil {
		return
	}
	maxAge := 2 * e.cfg.Delta.LevelExpiry
	levels, err := e.opts.LevelStore.LoadActive(maxAge, now)
	if err != nil {
		engineLog.Warnf("恢复大资金价位失败: %v", err)
		return
	}
	if len(levels) == 0 {
		return
	}
	seed := make([]domain.BigFishLevel, 0, len(levels))
	for _, lv := range levels {
		seed = append(seed, *lv)
	}
	e.delta.SeedBigFish(seed)
	engineLog.Infof("🐳 从归档恢复 %d 个大资金价位", len(seed))
}

// OnSignal 注册信号回调
func (e *Engine) OnSignal(h SignalHandler) {
	if h == nil {
		return
	}
	e.handlerMu.Lock()
	e.signalHandlers = append(e.signalHandlers, h)
	e.handlerMu.Unlock()
}

// OnDecision 注册决策回调
func (e *Engine) OnDecision(h DecisionHandler) {
	if h == nil {
		return
	}
	e.handlerMu.Lock()
	e.decisionHandlers = append(e.decisionHandlers, h)
	e.handlerMu.Unlock()
}

// OnAdvisory 注册咨询结果回调
func (e *Engine) OnAdvisory(h AdvisoryHandler) {
	if h == nil {
		return
	}
	e.handlerMu.Lock()
	e.advisoryHandlers = append(e.advisoryHandlers, h)
	e.handlerMu.Unlock()
}

// OnTrade 成交事件入口
func (e *Engine) OnTrade(ev events.TradeEvent) {
	t := ev.Trade
	if t.Size <= 0 {
		metrics.MalformedEvents.Add(1)
		return
	}
	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	metrics.TradesIngested.Add(1)
	e.lastPrice.Store(t.Price)
	e.clock.RecordTrade(now)
	e.tape.Record(t)
	e.delta.OnTrade(t)

	if sig, ok := e.absorption.OnTrade(t); ok {
		e.emitSignal(sig)
	}
	if ds, ok := e.delta.AnalyzeForBigFish(t.Price, now); ok {
		e.emitSignal(&domain.Signal{
			Type:      domain.SignalDefense,
			Direction: domain.DirectionFromSide(ds.Level.Side),
			Price:     ds.Level.Price,
			Size:      abs64(ds.CurrentDelta),
			Time:      now,
		})
	}
	e.maybeEvaluate(now)
}

// OnBbo 最优买卖盘更新入口
func (e *Engine) OnBbo(ev events.BboEvent) {
	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	if ev.BidPrice > 0 && ev.AskPrice > 0 {
		e.lastPrice.Store(ev.Mid())
	}
	e.clock.RecordPriceUpdate(now)
	e.maybeEvaluate(now)
}

// OnOrderAdd 挂单新增入口
func (e *Engine) OnOrderAdd(ev events.OrderAddEvent) {
	metrics.OrderEvents.Add(1)
	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	stats, ok := e.orders.Add(ev.ID, ev.Side, ev.Price, ev.Size, now)
	if !ok {
		// 重复 ID：no-op，不传给检测器
		return
	}
	if sig, fired := e.iceberg.OnOrderAdd(stats, ev.Side, now); fired {
		e.emitSignal(sig)
	}
}

// OnOrderModify 挂单修改入口
func (e *Engine) OnOrderModify(ev events.OrderModifyEvent) {
	metrics.OrderEvents.Add(1)
	e.orders.Modify(ev.ID, ev.NewPrice, ev.NewSize)
}

// OnOrderCancel 挂单撤销入口
func (e *Engine) OnOrderCancel(ev events.OrderCancelEvent) {
	metrics.OrderEvents.Add(1)
	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	o, ok := e.orders.Cancel(ev.ID)
	if !ok {
		return
	}
	if sig, fired := e.spoof.OnOrderCancel(o, now); fired {
		e.emitSignal(sig)
	}
}

// emitSignal 信号出站：补 ID、入评分器、写中继/日志库、发回调
func (e *Engine) emitSignal(sig *domain.Signal) {
	if sig == nil {
		return
	}
	if sig.ID == "" {
		sig.ID = uuid.New().String()
	}
	metrics.SignalsEmitted.WithLabelValues(string(sig.Type)).Inc()

	// 预热期间只记录不传播
	if !e.clock.WarmupComplete() {
		engineLog.Debugf("预热未完成，压制信号: %s %s @ %d", sig.Type, sig.Direction, sig.Price)
		return
	}

	e.scorer.AddSignal(sig)
	if e.opts.Relay != nil {
		if err := e.opts.Relay.Append(sig); err != nil {
			engineLog.Warnf("中继写入失败: %v", err)
		}
	}
	if e.opts.Journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := e.opts.Journal.RecordSignal(ctx, sig); err != nil {
			engineLog.Warnf("信号落库失败: %v", err)
		}
		cancel()
	}

	engineLog.Infof("📈 信号: %s %s @ %d size=%d", sig.Type, sig.Direction, sig.Price, sig.Size)

	e.handlerMu.RLock()
	handlers := e.signalHandlers
	e.handlerMu.RUnlock()
	ev := events.SignalEvent{Signal: sig, Timestamp: sig.Time}
	for _, h := range handlers {
		h(ev)
	}
}

// maybeEvaluate 节流评估：距上次评估不足 EvalMinInterval 时跳过
func (e *Engine) maybeEvaluate(now time.Time) {
	e.evalMu.Lock()
	if now.Sub(e.lastEvalAt) < e.cfg.Confluence.EvalMinInterval {
		e.evalMu.Unlock()
		return
	}
	e.lastEvalAt = now
	e.evalMu.Unlock()

	price := e.lastPrice.Load()
	if price == 0 {
		return
	}

	metrics.TrackedLevels.Set(float64(e.delta.NumLevels()))
	metrics.ActiveBigFish.Set(float64(len(e.delta.ActiveBigFish())))

	snap := e.dom.Analyze(e.orders.LevelViews(), price)
	in := confluence.EvalInput{
		Now:            now,
		Price:          price,
		Phase:          e.clock.PhaseAt(now),
		WarmupComplete: e.clock.WarmupComplete(),
		DomAdjLong:     e.dom.ScoreAdjustment(snap, true),
		DomAdjShort:    e.dom.ScoreAdjustment(snap, false),
		TapeAdjLong:    e.tape.SpeedScoreAdjustment(true, now),
		TapeAdjShort:   e.tape.SpeedScoreAdjustment(false, now),
	}
	eval := e.scorer.Evaluate(in)
	if eval == nil {
		return
	}

	seq := e.evalSeq.Add(1)
	decision := eval.Decision
	record := decision
	if record == nil {
		// 未达阈值也落一行评估：取两方向中的高分侧
		record = eval.Long
		if eval.Short != nil && (record == nil || eval.Short.Score > record.Score) {
			record = eval.Short
		}
		metrics.Evaluations.WithLabelValues("passed").Inc()
	} else {
		metrics.Evaluations.WithLabelValues("decided").Inc()
	}

	e.evalMu.Lock()
	e.lastEval = record
	e.evalMu.Unlock()

	if e.opts.Journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := e.opts.Journal.RecordEvaluation(ctx, record); err != nil {
			engineLog.Warnf("评估落库失败: %v", err)
		}
		cancel()
	}

	if decision == nil {
		return
	}

	e.handlerMu.RLock()
	handlers := e.decisionHandlers
	e.handlerMu.RUnlock()
	ev := events.DecisionEvent{Result: decision, Timestamp: now}
	for _, h := range handlers {
		h(ev)
	}

	// 边界决策转咨询（异步，迟到结果按序号丢弃）
	if e.opts.Orchestrator != nil && e.scorer.IsBorderline(decision) {
		e.dispatchAdvisory(seq, decision, now)
	}
}

// dispatchAdvisory 把边界决策连同市场上下文异步送去咨询
func (e *Engine) dispatchAdvisory(seq uint64, decision *domain.ConfluenceResult, now time.Time) {
	sig := e.latestSignalFor(decision.Direction, now)
	mctx := e.buildMarketContext(decision, now)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*e.cfg.Advisory.Timeout+10*time.Second)
		defer cancel()

		d, err := e.opts.Orchestrator.Request(ctx, sig, mctx)
		if seq < e.evalSeq.Load() {
			engineLog.Debugf("咨询结果已过期（seq=%d < %d），丢弃", seq, e.evalSeq.Load())
			return
		}

		if err != nil {
			metrics.AdvisoryCalls.WithLabelValues("orchestrator", "error").Inc()
			engineLog.Warnf("咨询失败: %v", err)
		} else {
			metrics.AdvisoryCalls.WithLabelValues(d.Provider, "ok").Inc()
			metrics.AdvisoryLatency.WithLabelValues(d.Provider).Observe(float64(d.LatencyMs) / 1000)
			engineLog.Infof("🤖 咨询决策: %s (%.2f) by %s", d.Action, d.Confidence, d.Provider)
			if e.opts.Journal != nil && sig != nil {
				jctx, jcancel := context.WithTimeout(context.Background(), 2*time.Second)
				if jerr := e.opts.Journal.RecordAdvisory(jctx, sig.ID, d); jerr != nil {
					engineLog.Warnf("咨询落库失败: %v", jerr)
				}
				jcancel()
			}
		}

		e.handlerMu.RLock()
		handlers := e.advisoryHandlers
		e.handlerMu.RUnlock()
		res := advisory.Result{Seq: seq, Signal: sig, Decision: d, Err: err}
		for _, h := range handlers {
			h(res)
		}
	}()
}

// latestSignalFor 取新鲜度窗口内与方向一致的最新信号
func (e *Engine) latestSignalFor(dir domain.Direction, now time.Time) *domain.Signal {
	sigs := e.scorer.RecentSignals(now)
	for i := len(sigs) - 1; i >= 0; i-- {
		if sigs[i].Direction == dir || sigs[i].Direction == domain.DirectionFade {
			return sigs[i]
		}
	}
	if len(sigs) > 0 {
		return sigs[len(sigs)-1]
	}
	return nil
}

func (e *Engine) buildMarketContext(decision *domain.ConfluenceResult, now time.Time) *advisory.MarketContext {
	ta := e.tape.Analyze(now)
	sigs := e.scorer.RecentSignals(now)
	var hasBuy, hasSell bool
	for _, s := range sigs {
		switch s.Direction {
		case domain.DirectionBuy:
			hasBuy = true
		case domain.DirectionSell:
			hasSell = true
		}
	}
	return &advisory.MarketContext{
		Instrument:         e.cfg.Instrument,
		Price:              decision.Price,
		Phase:              string(e.clock.PhaseAt(now)),
		Score:              decision.Score,
		Threshold:          decision.Threshold,
		DominantSide:       ta.DominantSide,
		SpeedLevel:         ta.SpeedLevel.String(),
		HighMomentum:       ta.IsHighSpeed || ta.Acceleration,
		ConflictingSignals: hasBuy && hasSell,
		RegimeChange:       ta.Exhaustion,
	}
}

// Run 启动后台循环（差额清扫），阻塞到 ctx 取消
func (e *Engine) Run(ctx context.Context) {
	engineLog.Infof("引擎启动: instrument=%s phase=%s", e.cfg.Instrument, e.clock.PhaseAt(time.Now()))
	e.delta.Run(ctx)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ---- status.Source 实现 ----

var _ status.Source = (*Engine)(nil)

func (e *Engine) Overview() status.Overview {
	now := time.Now()
	var lat map[string]time.Duration
	if e.opts.Orchestrator != nil {
		lat = e.opts.Orchestrator.Latencies()
	}
	return status.Overview{
		Instrument:      e.cfg.Instrument,
		Phase:           string(e.clock.PhaseAt(now)),
		WarmupComplete:  e.clock.WarmupComplete(),
		Trades:          e.clock.Trades(),
		PriceUpdates:    e.clock.PriceUpdates(),
		TrackedOrders:   e.orders.NumOrders(),
		TrackedLevels:   e.delta.NumLevels(),
		ActiveBigFish:   len(e.delta.ActiveBigFish()),
		ProviderLatency: lat,
		StartedAt:       e.startedAt,
	}
}

func (e *Engine) RecentSignals(n int) []*domain.Signal {
	sigs := e.scorer.RecentSignals(time.Now())
	if len(sigs) > n {
		sigs = sigs[len(sigs)-n:]
	}
	return sigs
}

func (e *Engine) BigFishLevels() []*domain.BigFishLevel {
	levels := e.delta.ActiveBigFish()
	out := make([]*domain.BigFishLevel, 0, len(levels))
	for i := range levels {
		lv := levels[i]
		out = append(out, &lv)
	}
	return out
}

func (e *Engine) LastEvaluation() *domain.ConfluenceResult {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()
	return e.lastEval
}
