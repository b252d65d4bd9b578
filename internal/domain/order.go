package domain

// Status is the position status exchanged with the trading transport.
// Integer values are part of the wire protocol and must not change.
type Status int

// Position statuses
const (
	StatusNothing Status = 0
	StatusBuy     Status = 1
	StatusSell    Status = 2
	StatusUnknown Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusNothing:
		return "not active"
	case StatusBuy:
		return "buy"
	case StatusSell:
		return "sell"
	case StatusUnknown:
		return "unknown"
	default:
		return "invalid status"
	}
}

// IsOpen reports whether the status denotes an open Buy or Sell position.
func (s Status) IsOpen() bool {
	return s == StatusBuy || s == StatusSell
}

// Order is the order intent exchanged with the trading transport.
// Integer values are part of the wire protocol and must not change.
type Order int

// Order intents
const (
	OrderNothing Order = 0
	OrderBuy     Order = 1
	OrderSell    Order = 2
	OrderClose   Order = 3
	OrderAdjust  Order = 4
)

func (o Order) String() string {
	switch o {
	case OrderNothing:
		return "nothing"
	case OrderBuy:
		return "buy"
	case OrderSell:
		return "sell"
	case OrderClose:
		return "close"
	case OrderAdjust:
		return "adjust"
	default:
		return "invalid order"
	}
}

// Output is the order produced for a single tick or trade event.
// Lots, SL and TP are -1 when unset.
type Output struct {
	Order Order
	Lots  float64
	SL    float64
	TP    float64
}

// Reset puts the output back to "no order".
func (o *Output) Reset() {
	o.Order = OrderNothing
	o.Lots = -1
	o.SL = -1
	o.TP = -1
}
