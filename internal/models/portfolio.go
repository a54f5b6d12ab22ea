package models

// Holding represents a delivery holding in the demat account.
type Holding struct {
	Instrument          InstrumentRef  `json:"instrument"`
	ISIN                string         `json:"isin,omitempty"`
	Product             Product        `json:"product"`
	Quantity            int            `json:"quantity"`
	T1Quantity          int            `json:"t1_quantity"`
	AveragePrice        float64        `json:"average_price"`
	LastPrice           float64        `json:"last_price"`
	ClosePrice          float64        `json:"close_price"`
	PnL                 float64        `json:"pnl"`
	DayChange           float64        `json:"day_change"`
	DayChangePercentage float64        `json:"day_change_percentage"`
	Extensions          map[string]any `json:"extensions,omitempty"`
}

// Position represents an open net or day position.
type Position struct {
	Instrument          InstrumentRef  `json:"instrument"`
	Product             Product        `json:"product"`
	Quantity            int            `json:"quantity"`
	OvernightQuantity   int            `json:"overnight_quantity"`
	Multiplier          float64        `json:"multiplier"`
	AveragePrice        float64        `json:"average_price"`
	LastPrice           float64        `json:"last_price"`
	ClosePrice          float64        `json:"close_price"`
	Value               float64        `json:"value"`
	PnL                 float64        `json:"pnl"`
	M2M                 float64        `json:"m2m"`
	Realised            float64        `json:"realised"`
	Unrealised          float64        `json:"unrealised"`
	DayChange           float64        `json:"day_change"`
	DayChangePercentage float64        `json:"day_change_percentage"`
	Extensions          map[string]any `json:"extensions,omitempty"`
}

// Positions splits positions into the net (carried) and day books.
type Positions struct {
	Net []Position `json:"net"`
	Day []Position `json:"day"`
}
