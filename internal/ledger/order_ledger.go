package ledger

import (
	"sync"
	"time"

	"github.com/betbot/flowsense/internal/domain"
)

// LevelStats 单次 add 之后目标价位的观测值（冰山检测的输入）
type LevelStats struct {
	Price      int64
	OrderCount int
	TotalSize  int64
}

// LevelView 订单簿分析用的价位只读视图
type LevelView struct {
	Price   int64
	BidSize int64
	AskSize int64
}

// OrderLedger 维护当前所有存续挂单并按价位聚合。
// 热路径是单事件流顺序处理；RWMutex 只为状态 API 等后台读者存在。
// 所有操作都是全函数：重复/未知 ID 一律静默 no-op，绝不中断事件管线。
type OrderLedger struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	levels map[int64]*domain.PriceLevel
}

// NewOrderLedger 创建空的挂单账本
func NewOrderLedger() *OrderLedger {
	return &OrderLedger{
		orders: make(map[string]*domain.Order),
		levels: make(map[int64]*domain.PriceLevel),
	}
}

// Add 新增挂单并挂到价位上（价位不存在则创建）。
// 返回目标价位的最新观测值；id 已存在时 no-op 并返回 ok=false。
func (l *OrderLedger) Add(id string, side domain.Side, price, size int64, t time.Time) (LevelStats, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.orders[id]; exists {
		return LevelStats{}, false
	}

	o := &domain.Order{ID: id, Side: side, Price: price, Size: size, CreatedAt: t}
	l.orders[id] = o
	lv := l.attachLocked(o)
	return LevelStats{Price: price, OrderCount: lv.OrderCount(), TotalSize: lv.TotalSize}, true
}

// Modify 修改挂单价格/数量。价格变化时在价位之间迁移；id 未知时 no-op。
func (l *OrderLedger) Modify(id string, newPrice, newSize int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, exists := l.orders[id]
	if !exists {
		return false
	}

	if newPrice == o.Price {
		if lv := l.levels[o.Price]; lv != nil {
			lv.TotalSize += newSize - o.Size
			if o.Side == domain.SideBuy {
				lv.BidSize += newSize - o.Size
			} else {
				lv.AskSize += newSize - o.Size
			}
		}
		o.Size = newSize
		return true
	}

	l.detachLocked(o)
	o.Price = newPrice
	o.Size = newSize
	l.attachLocked(o)
	return true
}

// Cancel 撤销挂单并从价位上摘除，返回被移除的挂单（含创建时间，供幌骗检测算存续时长）。
// id 未知时 no-op 并返回 ok=false。
func (l *OrderLedger) Cancel(id string) (*domain.Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, exists := l.orders[id]
	if !exists {
		return nil, false
	}
	delete(l.orders, id)
	l.detachLocked(o)
	return o, true
}

// Get 查询挂单
func (l *OrderLedger) Get(id string) (*domain.Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[id]
	return o, ok
}

// NumOrders 存续挂单数量
func (l *OrderLedger) NumOrders() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.orders)
}

// Level 查询价位聚合（副本）
func (l *OrderLedger) Level(price int64) (domain.PriceLevel, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lv, ok := l.levels[price]
	if !ok {
		return domain.PriceLevel{}, false
	}
	cp := *lv
	cp.OrderIDs = append([]string(nil), lv.OrderIDs...)
	return cp, true
}

// LevelViews 返回全部价位的只读视图（订单簿分析输入）
func (l *OrderLedger) LevelViews() []LevelView {
	l.mu.RLock()
	defer l.mu.RUnlock()

	views := make([]LevelView, 0, len(l.levels))
	for _, lv := range l.levels {
		views = append(views, LevelView{Price: lv.Price, BidSize: lv.BidSize, AskSize: lv.AskSize})
	}
	return views
}

// attachLocked 把挂单挂到价位上（价位懒创建）
func (l *OrderLedger) attachLocked(o *domain.Order) *domain.PriceLevel {
	lv, ok := l.levels[o.Price]
	if !ok {
		lv = &domain.PriceLevel{Price: o.Price}
		l.levels[o.Price] = lv
	}
	lv.OrderIDs = append(lv.OrderIDs, o.ID)
	lv.TotalSize += o.Size
	if o.Side == domain.SideBuy {
		lv.BidSize += o.Size
	} else {
		lv.AskSize += o.Size
	}
	return lv
}

// detachLocked 把挂单从价位上摘掉；价位清空即删除
func (l *OrderLedger) detachLocked(o *domain.Order) {
	lv, ok := l.levels[o.Price]
	if !ok {
		return
	}
	for i, id := range lv.OrderIDs {
		if id == o.ID {
			lv.OrderIDs = append(lv.OrderIDs[:i], lv.OrderIDs[i+1:]...)
			break
		}
	}
	lv.TotalSize -= o.Size
	if o.Side == domain.SideBuy {
		lv.BidSize -= o.Size
	} else {
		lv.AskSize -= o.Size
	}
	if len(lv.OrderIDs) == 0 {
		delete(l.levels, o.Price)
	}
}
