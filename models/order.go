package models

// OrderRequest is a canonical order built by the trading engine. Adapters only
// read it.
type OrderRequest struct {
	Price        float64
	Volume       float64
	Instrument   Instrument
	Side         Side
	OrderType    OrderType
	OrderSubType OrderSubType
}

// HasMappedType reports whether the order type is one every adapter can encode.
func (r OrderRequest) HasMappedType() bool {
	return r.OrderType == OrderTypeLimit || r.OrderType == OrderTypeMarket
}
