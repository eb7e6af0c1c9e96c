// Package feed 订阅逐笔行情 WebSocket（成交 / BBO / 挂单事件），
// 把十进制价格换算成整数 tick 后推给引擎。
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/flowsense/internal/domain"
	"github.com/betbot/flowsense/internal/events"
	"github.com/betbot/flowsense/internal/metrics"
	"github.com/betbot/flowsense/pkg/syncgroup"
)

var feedLog = logrus.WithField("component", "feed")

const (
	reconnectCoolDownPeriod = 15 * time.Second
	pingInterval            = 10 * time.Second
	readTimeout             = 30 * time.Second
	writeTimeout            = 10 * time.Second
)

// Sink 行情事件的消费方（引擎实现）
type Sink interface {
	OnTrade(ev events.TradeEvent)
	OnBbo(ev events.BboEvent)
	OnOrderAdd(ev events.OrderAddEvent)
	OnOrderModify(ev events.OrderModifyEvent)
	OnOrderCancel(ev events.OrderCancelEvent)
}

// Stream 行情流客户端
type Stream struct {
	url        string
	instrument string
	tickSize   decimal.Decimal
	sink       Sink

	conn       *websocket.Conn
	connCancel context.CancelFunc
	connMu     sync.Mutex

	reconnectC chan struct{}
	closeC     chan struct{}
	closeOnce  sync.Once

	sg     *syncgroup.SyncGroup
	connSg *syncgroup.SyncGroup
}

// NewStream 创建行情流。tickSize 为一个 tick 对应的价格增量（如 "0.25"）。
func NewStream(url, instrument string, tickSize decimal.Decimal, sink Sink) *Stream {
	return &Stream{
		url:        url,
		instrument: instrument,
		tickSize:   tickSize,
		sink:       sink,
		reconnectC: make(chan struct{}, 1),
		closeC:     make(chan struct{}),
		sg:         syncgroup.NewSyncGroup(),
		connSg:     syncgroup.NewSyncGroup(),
	}
}

// Connect 建立连接并启动重连器
func (s *Stream) Connect(ctx context.Context) error {
	s.sg.Add(func() { s.reconnector(ctx) })
	s.sg.Run()
	return s.dialAndConnect(ctx)
}

func (s *Stream) dialAndConnect(ctx context.Context) error {
	select {
	case <-s.closeC:
		return fmt.Errorf("行情流已关闭，取消重连")
	default:
	}

	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout * 2))
	})

	connCtx, connCancel := s.setConn(ctx, conn)

	// 等旧连接的 goroutine 退出，避免双读
	done := make(chan struct{})
	go func() {
		s.connSg.WaitAndClear()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		feedLog.Debugf("等待旧连接 goroutine 完成超时，继续启动新连接")
	}

	s.connSg.Add(func() { s.readLoop(connCtx, conn, connCancel) })
	s.connSg.Add(func() { s.pingLoop(connCtx, conn, connCancel) })
	s.connSg.Run()

	if err := s.subscribe(conn); err != nil {
		conn.Close()
		return err
	}
	feedLog.Infof("✅ 行情 WebSocket 已连接: %s (%s)", s.url, s.instrument)
	return nil
}

func (s *Stream) setConn(ctx context.Context, conn *websocket.Conn) (context.Context, context.CancelFunc) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.connCancel != nil {
		s.connCancel()
	}
	connCtx, connCancel := context.WithCancel(ctx)
	s.conn = conn
	s.connCancel = connCancel
	return connCtx, connCancel
}

func (s *Stream) subscribe(conn *websocket.Conn) error {
	msg := map[string]interface{}{
		"type":       "subscribe",
		"instrument": s.instrument,
		"channels":   []string{"trades", "bbo", "orders"},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

// Reconnect 触发重连（非阻塞，信号合并）
func (s *Stream) Reconnect() {
	select {
	case s.reconnectC <- struct{}{}:
	default:
	}
}

func (s *Stream) reconnector(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeC:
			return
		case <-s.reconnectC:
			feedLog.Warnf("收到重连信号，冷却 %s...", reconnectCoolDownPeriod)
			select {
			case <-s.closeC:
				return
			case <-ctx.Done():
				return
			case <-time.After(reconnectCoolDownPeriod):
			}
			if err := s.dialAndConnect(ctx); err != nil {
				feedLog.Warnf("重连失败: %v，将再次尝试...", err)
				s.Reconnect()
			}
		}
	}
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeC:
			return
		default:
		}

		// deadline 让 ReadMessage 至多阻塞 readTimeout，周期性回来检查 ctx
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			feedLog.Errorf("设置读取超时失败: %v", err)
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				continue
			}
			feedLog.Warnf("WebSocket 读取错误: %v，触发重连", err)
			_ = conn.Close()
			s.Reconnect()
			return
		}
		s.handleMessage(message)
	}
}

func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeC:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				feedLog.Warnf("发送 PING 失败: %v，触发重连", err)
				s.Reconnect()
				return
			}
		}
	}
}

// wireMessage 行情线格式（价格为十进制字符串）
type wireMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      int64  `json:"size"`
	BidPrice  string `json:"bid_price"`
	BidSize   int64  `json:"bid_size"`
	AskPrice  string `json:"ask_price"`
	AskSize   int64  `json:"ask_size"`
	Timestamp int64  `json:"ts"` // epoch 毫秒
}

func (s *Stream) handleMessage(message []byte) {
	var msg wireMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		metrics.MalformedEvents.Add(1)
		feedLog.Debugf("解析行情消息失败: %v", err)
		return
	}

	ts := time.UnixMilli(msg.Timestamp)
	if msg.Timestamp == 0 {
		ts = time.Now()
	}

	switch msg.Type {
	case "trade":
		price, ok := s.toTicks(msg.Price)
		if !ok || msg.Size <= 0 || !validSide(msg.Side) {
			metrics.MalformedEvents.Add(1)
			return
		}
		s.sink.OnTrade(events.TradeEvent{
			Trade: domain.Trade{
				Price: price,
				Size:  msg.Size,
				Side:  domain.Side(msg.Side),
				Time:  ts,
			},
			Timestamp: ts,
		})
	case "bbo":
		bid, okB := s.toTicks(msg.BidPrice)
		ask, okA := s.toTicks(msg.AskPrice)
		if !okB || !okA {
			metrics.MalformedEvents.Add(1)
			return
		}
		s.sink.OnBbo(events.BboEvent{
			BidPrice:  bid,
			BidSize:   msg.BidSize,
			AskPrice:  ask,
			AskSize:   msg.AskSize,
			Timestamp: ts,
		})
	case "order_add":
		price, ok := s.toTicks(msg.Price)
		if !ok || msg.ID == "" || msg.Size <= 0 || !validSide(msg.Side) {
			metrics.MalformedEvents.Add(1)
			return
		}
		s.sink.OnOrderAdd(events.OrderAddEvent{
			ID:        msg.ID,
			Side:      domain.Side(msg.Side),
			Price:     price,
			Size:      msg.Size,
			Timestamp: ts,
		})
	case "order_modify":
		price, ok := s.toTicks(msg.Price)
		if !ok || msg.ID == "" || msg.Size <= 0 {
			metrics.MalformedEvents.Add(1)
			return
		}
		s.sink.OnOrderModify(events.OrderModifyEvent{
			ID:        msg.ID,
			NewPrice:  price,
			NewSize:   msg.Size,
			Timestamp: ts,
		})
	case "order_cancel":
		if msg.ID == "" {
			metrics.MalformedEvents.Add(1)
			return
		}
		s.sink.OnOrderCancel(events.OrderCancelEvent{ID: msg.ID, Timestamp: ts})
	case "subscribed":
		feedLog.Infof("✅ 订阅成功: %s", s.instrument)
	default:
		feedLog.Debugf("收到未知消息类型: %s", msg.Type)
	}
}

// toTicks 十进制价格字符串 → 整数 tick（按 tickSize 取整）
func (s *Stream) toTicks(priceStr string) (int64, bool) {
	if priceStr == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(priceStr)
	if err != nil || d.IsNegative() {
		return 0, false
	}
	return d.Div(s.tickSize).Round(0).IntPart(), true
}

func validSide(s string) bool {
	return s == string(domain.SideBuy) || s == string(domain.SideSell)
}

// Close 关闭连接并等待 goroutine 退出
func (s *Stream) Close() error {
	s.closeOnce.Do(func() { close(s.closeC) })

	s.connMu.Lock()
	if s.connCancel != nil {
		s.connCancel()
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.connSg.WaitAndClear()
		s.sg.WaitAndClear()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		feedLog.Warnf("等待行情流 goroutine 退出超时，继续关闭")
	}
	return nil
}
