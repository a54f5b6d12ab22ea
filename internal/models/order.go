package models

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
)

// TransactionType represents the side of an order.
type TransactionType string

const (
	Buy  TransactionType = "BUY"
	Sell TransactionType = "SELL"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStopLoss  OrderType = "SL"
	OrderTypeStopLossM OrderType = "SL-M"
)

// Product represents the product type of an order.
type Product string

const (
	ProductMIS  Product = "MIS"  // Intraday
	ProductCNC  Product = "CNC"  // Delivery
	ProductNRML Product = "NRML" // F&O Normal
)

// Variety is the Kite order variety path segment.
type Variety string

const (
	VarietyRegular Variety = "regular"
	VarietyAMO     Variety = "amo"
	VarietyCO      Variety = "co"
	VarietyIceberg Variety = "iceberg"
	VarietyAuction Variety = "auction"
)

// Validity is an order's time in force.
type Validity string

const (
	ValidityDay Validity = "DAY"
	ValidityIOC Validity = "IOC"
	ValidityTTL Validity = "TTL"
)

// OrderStatus is the canonical order lifecycle state.
type OrderStatus string

const (
	StatusPlaced    OrderStatus = "PLACED"
	StatusOpen      OrderStatus = "OPEN"
	StatusModified  OrderStatus = "MODIFIED"
	StatusComplete  OrderStatus = "COMPLETE"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusRejected  OrderStatus = "REJECTED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPlaced:   {StatusOpen, StatusRejected},
	StatusOpen:     {StatusComplete, StatusCancelled, StatusModified},
	StatusModified: {StatusOpen},
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle permits moving from s to next.
// Observing the same state twice is not a transition and is always allowed.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// kiteStatuses maps the raw statuses Kite reports, including the
// intermediate ones, onto the canonical lifecycle. OPEN PENDING is an order
// sent to the exchange and not yet acknowledged, so it can still be rejected.
var kiteStatuses = map[string]OrderStatus{
	"PUT ORDER REQ RECEIVED":    StatusPlaced,
	"VALIDATION PENDING":        StatusPlaced,
	"OPEN PENDING":              StatusPlaced,
	"AMO REQ RECEIVED":          StatusOpen,
	"OPEN":                      StatusOpen,
	"TRIGGER PENDING":           StatusOpen,
	"CANCEL PENDING":            StatusOpen,
	"MODIFY VALIDATION PENDING": StatusModified,
	"MODIFY PENDING":            StatusModified,
	"MODIFIED":                  StatusModified,
	"COMPLETE":                  StatusComplete,
	"REJECTED":                  StatusRejected,
}

func lookupOrderStatus(raw string) (OrderStatus, bool) {
	r := strings.ToUpper(strings.TrimSpace(raw))
	if strings.HasPrefix(r, "CANCELLED") {
		return StatusCancelled, true
	}
	s, ok := kiteStatuses[r]
	return s, ok
}

// ParseOrderStatus maps a raw brokerage status onto the canonical lifecycle.
// A status with no known mapping is treated as PLACED.
func ParseOrderStatus(raw string) OrderStatus {
	if s, ok := lookupOrderStatus(raw); ok {
		return s
	}
	return StatusPlaced
}

// FollowOrderStatus maps raw as the entry that follows prev in an order's
// history. An unknown status seen once the order is live keeps the live
// state: the order cannot go back to PLACED.
func FollowOrderStatus(prev OrderStatus, raw string) OrderStatus {
	if s, ok := lookupOrderStatus(raw); ok {
		return s
	}
	switch prev {
	case StatusOpen, StatusModified:
		return prev
	}
	return StatusPlaced
}

// OrderSpec is the caller's description of an order to place or modify.
type OrderSpec struct {
	Instrument        InstrumentRef
	TransactionType   TransactionType
	OrderType         OrderType
	Product           Product
	Variety           Variety
	Quantity          int
	DisclosedQuantity int
	Price             float64
	TriggerPrice      float64
	Validity          Validity
	Tag               string
}

// Validate checks the fields required for placement.
func (s OrderSpec) Validate() error {
	if s.Instrument.Exchange == "" || s.Instrument.TradingSymbol == "" {
		return apperrors.NewValidationError("instrument", s.Instrument.Key(), "exchange and trading symbol are required")
	}
	if s.TransactionType != Buy && s.TransactionType != Sell {
		return apperrors.NewValidationError("transaction_type", s.TransactionType, "must be BUY or SELL")
	}
	if s.Quantity <= 0 {
		return apperrors.NewValidationError("quantity", s.Quantity, "must be positive")
	}
	switch s.OrderType {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if s.Price <= 0 {
			return apperrors.NewValidationError("price", s.Price, "LIMIT order requires a price")
		}
	case OrderTypeStopLoss:
		if s.Price <= 0 || s.TriggerPrice <= 0 {
			return apperrors.NewValidationError("trigger_price", s.TriggerPrice, "SL order requires price and trigger price")
		}
	case OrderTypeStopLossM:
		if s.TriggerPrice <= 0 {
			return apperrors.NewValidationError("trigger_price", s.TriggerPrice, "SL-M order requires a trigger price")
		}
	default:
		return apperrors.NewValidationError("order_type", s.OrderType, "unknown order type")
	}
	if s.Product == "" {
		return apperrors.NewValidationError("product", s.Product, "product is required")
	}
	return nil
}

// Order is a brokerage order as last observed.
type Order struct {
	OrderID         string          `json:"order_id"`
	ExchangeOrderID string          `json:"exchange_order_id,omitempty"`
	Status          OrderStatus     `json:"status"`
	RawStatus       string          `json:"raw_status"`
	StatusMessage   string          `json:"status_message,omitempty"`
	Instrument      InstrumentRef   `json:"instrument"`
	TransactionType TransactionType `json:"transaction_type"`
	OrderType       OrderType       `json:"order_type"`
	Product         Product         `json:"product"`
	Variety         Variety         `json:"variety"`
	Quantity        int             `json:"quantity"`
	FilledQuantity  int             `json:"filled_quantity"`
	PendingQuantity int             `json:"pending_quantity"`
	Price           float64         `json:"price"`
	TriggerPrice    float64         `json:"trigger_price"`
	AveragePrice    float64         `json:"average_price"`
	Validity        Validity        `json:"validity"`
	Tag             string          `json:"tag,omitempty"`
	OrderTimestamp  time.Time       `json:"order_timestamp"`
	ExchangeTime    time.Time       `json:"exchange_timestamp"`
	Extensions      map[string]any  `json:"extensions,omitempty"`
}

// OrderResult is returned by placement, modification and cancellation.
type OrderResult struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status,omitempty"`
}

// Trade is a single fill of an order.
type Trade struct {
	TradeID         string          `json:"trade_id"`
	OrderID         string          `json:"order_id"`
	Instrument      InstrumentRef   `json:"instrument"`
	TransactionType TransactionType `json:"transaction_type"`
	Product         Product         `json:"product"`
	Quantity        int             `json:"quantity"`
	AveragePrice    float64         `json:"average_price"`
	FillTimestamp   time.Time       `json:"fill_timestamp"`
	Extensions      map[string]any  `json:"extensions,omitempty"`
}

// GTTType distinguishes single-leg and OCO triggers.
type GTTType string

const (
	GTTSingle GTTType = "single"
	GTTTwoLeg GTTType = "two-leg"
)

// GTTCondition is the price condition a trigger watches.
type GTTCondition struct {
	Instrument    InstrumentRef
	TriggerValues []float64
	LastPrice     float64
}

// GTTOrderLeg is an order fired when a GTT condition is met.
type GTTOrderLeg struct {
	TransactionType TransactionType `json:"transaction_type"`
	OrderType       OrderType       `json:"order_type"`
	Product         Product         `json:"product"`
	Quantity        int             `json:"quantity"`
	Price           float64         `json:"price"`
	Extensions      map[string]any  `json:"extensions,omitempty"`
}

// GTTSpec describes a trigger to create or modify.
type GTTSpec struct {
	Type      GTTType
	Condition GTTCondition
	Orders    []GTTOrderLeg
}

// Validate checks trigger value and leg counts against the trigger type.
func (g GTTSpec) Validate() error {
	if g.Condition.Instrument.Exchange == "" || g.Condition.Instrument.TradingSymbol == "" {
		return apperrors.NewValidationError("condition.instrument", g.Condition.Instrument.Key(), "exchange and trading symbol are required")
	}
	want := 1
	switch g.Type {
	case GTTSingle:
	case GTTTwoLeg:
		want = 2
	default:
		return apperrors.NewValidationError("type", g.Type, "must be single or two-leg")
	}
	if len(g.Condition.TriggerValues) != want {
		return apperrors.NewValidationError("condition.trigger_values", g.Condition.TriggerValues,
			fmt.Sprintf("%s trigger needs %d value(s)", g.Type, want))
	}
	if len(g.Orders) != want {
		return apperrors.NewValidationError("orders", len(g.Orders),
			fmt.Sprintf("%s trigger needs %d order(s)", g.Type, want))
	}
	return nil
}

// GTTTrigger is a standing conditional order as stored by the broker.
type GTTTrigger struct {
	TriggerID  int            `json:"trigger_id"`
	Type       GTTType        `json:"type"`
	Status     string         `json:"status"`
	Condition  GTTCondition   `json:"condition"`
	Orders     []GTTOrderLeg  `json:"orders"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Extensions map[string]any `json:"extensions,omitempty"`
}
