package exchange

import (
	"sync"
	"time"

	"tradebot/internal/signal"
)

type mark struct {
	price float64
	at    time.Time
}

// PriceBook caches the latest traded price per symbol from a Feed.
type PriceBook struct {
	mu     sync.RWMutex
	marks  map[string]mark
	maxAge time.Duration
	now    func() time.Time
}

// NewPriceBook keeps marks usable for maxAge after they were observed.
func NewPriceBook(maxAge time.Duration) *PriceBook {
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	return &PriceBook{marks: make(map[string]mark), maxAge: maxAge, now: time.Now}
}

// Update records a tick.
func (p *PriceBook) Update(tk signal.Tick) {
	if tk.Symbol == "" || tk.Price <= 0 {
		return
	}
	p.mu.Lock()
	p.marks[tk.Symbol] = mark{price: tk.Price, at: p.now()}
	p.mu.Unlock()
}

// Mark returns the cached price for symbol if it is fresh.
func (p *PriceBook) Mark(symbol string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	p.mu.RLock()
	m, ok := p.marks[symbol]
	p.mu.RUnlock()
	if !ok || p.now().Sub(m.at) > p.maxAge {
		return 0, false
	}
	return m.price, true
}
