package models

import "time"

// MFOrderSpec describes a mutual-fund purchase or redemption.
// Amount applies to BUY orders, Quantity (units) to SELL orders.
type MFOrderSpec struct {
	TradingSymbol   string
	TransactionType TransactionType
	Amount          float64
	Quantity        float64
	Tag             string
}

// MFOrder is a mutual-fund order as reported by the broker.
type MFOrder struct {
	OrderID         string          `json:"order_id"`
	ExchangeOrderID string          `json:"exchange_order_id,omitempty"`
	TradingSymbol   string          `json:"tradingsymbol"`
	Fund            string          `json:"fund"`
	Status          string          `json:"status"`
	StatusMessage   string          `json:"status_message,omitempty"`
	TransactionType TransactionType `json:"transaction_type"`
	Amount          float64         `json:"amount"`
	Quantity        float64         `json:"quantity"`
	AveragePrice    float64         `json:"average_price"`
	LastPrice       float64         `json:"last_price"`
	OrderTimestamp  time.Time       `json:"order_timestamp"`
	Tag             string          `json:"tag,omitempty"`
	Extensions      map[string]any  `json:"extensions,omitempty"`
}

// MFSIPSpec describes a systematic investment plan.
type MFSIPSpec struct {
	TradingSymbol string
	Amount        float64
	Instalments   int // -1 for perpetual
	Frequency     string
	InstalmentDay int
	InitialAmount float64
	Status        string // modify only: "active" or "paused"
	Tag           string
}

// MFSIP is a registered SIP.
type MFSIP struct {
	SIPID              string         `json:"sip_id"`
	TradingSymbol      string         `json:"tradingsymbol"`
	Fund               string         `json:"fund"`
	Status             string         `json:"status"`
	Frequency          string         `json:"frequency"`
	InstalmentAmount   float64        `json:"instalment_amount"`
	Instalments        int            `json:"instalments"`
	PendingInstalments int            `json:"pending_instalments"`
	InstalmentDay      int            `json:"instalment_day"`
	Created            time.Time      `json:"created"`
	NextInstalment     time.Time      `json:"next_instalment"`
	Extensions         map[string]any `json:"extensions,omitempty"`
}

// MFHolding is a mutual-fund holding.
type MFHolding struct {
	Folio         string         `json:"folio"`
	Fund          string         `json:"fund"`
	TradingSymbol string         `json:"tradingsymbol"`
	Quantity      float64        `json:"quantity"`
	AveragePrice  float64        `json:"average_price"`
	LastPrice     float64        `json:"last_price"`
	PnL           float64        `json:"pnl"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}
