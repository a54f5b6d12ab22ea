package broker

import (
	"strings"
	"sync"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/models"
)

// InstrumentCache maps exchange:symbol pairs and instrument tokens onto the
// same instrument. It lives in memory only and is emptied by Invalidate.
type InstrumentCache struct {
	mu       sync.RWMutex
	bySymbol map[string]models.Instrument // key: exchange:symbol
	byToken  map[uint32]models.Instrument
	loaded   map[models.Exchange]bool
	all      bool
}

// NewInstrumentCache creates an empty cache.
func NewInstrumentCache() *InstrumentCache {
	c := &InstrumentCache{}
	c.reset()
	return c
}

func (c *InstrumentCache) reset() {
	c.bySymbol = make(map[string]models.Instrument)
	c.byToken = make(map[uint32]models.Instrument)
	c.loaded = make(map[models.Exchange]bool)
	c.all = false
}

func symbolKey(exchange models.Exchange, symbol string) string {
	return strings.ToUpper(string(exchange)) + ":" + strings.ToUpper(symbol)
}

// Store records a dump for exchange. An empty exchange marks the full
// dump as loaded.
func (c *InstrumentCache) Store(exchange models.Exchange, insts []models.Instrument) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, inst := range insts {
		c.bySymbol[symbolKey(inst.Exchange, inst.TradingSymbol)] = inst
		c.byToken[inst.Token] = inst
	}
	if exchange == "" {
		c.all = true
		return
	}
	c.loaded[exchange] = true
}

// Loaded reports whether a dump covering exchange has been stored.
func (c *InstrumentCache) Loaded(exchange models.Exchange) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if exchange == "" {
		return c.all
	}
	return c.all || c.loaded[exchange]
}

// BySymbol looks up an instrument by exchange and trading symbol.
func (c *InstrumentCache) BySymbol(exchange models.Exchange, symbol string) (models.Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.bySymbol[symbolKey(exchange, symbol)]
	return inst, ok
}

// ByToken looks up an instrument by token.
func (c *InstrumentCache) ByToken(token uint32) (models.Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.byToken[token]
	return inst, ok
}

// Len returns the number of cached instruments.
func (c *InstrumentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byToken)
}

// Invalidate drops every cached instrument.
func (c *InstrumentCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}
