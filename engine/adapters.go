package engine

// Emitter adapters bridge the subsystem emitter interfaces onto the EventBus.

type posEmitter struct {
	bus *EventBus
}

func (e *posEmitter) EmitOrderCreated(orderID string, total float64) {
	e.bus.Emit(Event{Type: EventOrderCreated, Payload: OrderCreatedEvent{OrderID: orderID, Total: total}})
}

func (e *posEmitter) EmitOrderCompleted(orderID string, total float64, paymentMethod string) {
	e.bus.Emit(Event{Type: EventOrderCompleted, Payload: OrderCompletedEvent{OrderID: orderID, Total: total, PaymentMethod: paymentMethod}})
}

type ledgerEmitter struct {
	bus *EventBus
}

func (e *ledgerEmitter) EmitInventoryRecorded(eventID, stockID, eventType string, quantityChange float64) {
	e.bus.Emit(Event{Type: EventInventoryRecorded, Payload: InventoryRecordedEvent{
		EventID:          eventID,
		InventoryStockID: stockID,
		EventType:        eventType,
		QuantityChange:   quantityChange,
	}})
}

type busdayEmitter struct {
	bus *EventBus
}

func (e *busdayEmitter) EmitDayOpened(businessDayID, dayDate string) {
	e.bus.Emit(Event{Type: EventDayOpened, Payload: DayOpenedEvent{BusinessDayID: businessDayID, DayDate: dayDate}})
}

func (e *busdayEmitter) EmitDayClosed(businessDayID string, pendingSync bool) {
	e.bus.Emit(Event{Type: EventDayClosed, Payload: DayClosedEvent{BusinessDayID: businessDayID, PendingSync: pendingSync}})
}
