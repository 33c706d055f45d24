package coinbase

// subscribeMessage asks the feed for one product's full channel.
type subscribeMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
}

// heartbeatMessage toggles per-product heartbeat frames.
type heartbeatMessage struct {
	Type string `json:"type"`
	On   bool   `json:"on"`
}

// Inbound frame fields.
const (
	fieldType          = "type"
	fieldSequence      = "sequence"
	fieldTime          = "time"
	fieldPrice         = "price"
	fieldSize          = "size"
	fieldProductID     = "product_id"
	fieldOrderType     = "order_type"
	fieldSide          = "side"
	fieldRemainingSize = "remaining_size"
	fieldReason        = "reason"
)

// Outbound order parameter keys.
const (
	ParamPrice       = "price"
	ParamSize        = "size"
	ParamProductID   = "product_id"
	ParamType        = "type"
	ParamSide        = "side"
	ParamTimeInForce = "time_in_force"
	ParamPostOnly    = "post_only"
)
