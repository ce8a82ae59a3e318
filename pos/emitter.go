package pos

// EventEmitter is the interface the pos package uses to emit events.
type EventEmitter interface {
	EmitOrderCreated(orderID string, total float64)
	EmitOrderCompleted(orderID string, total float64, paymentMethod string)
}

type noopEmitter struct{}

func (noopEmitter) EmitOrderCreated(string, float64)           {}
func (noopEmitter) EmitOrderCompleted(string, float64, string) {}
