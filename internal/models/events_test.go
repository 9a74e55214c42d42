package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventRoundTrip(t *testing.T) {
	orderID := uuid.New()
	original := &InventoryReservedEvent{
		BaseEvent:   NewBaseEvent(EventTypeInventoryReserved, orderID),
		UserID:      1,
		ProductID:   3,
		ProductName: "laptop",
		Quantity:    5,
		UnitPrice:   150000,
		TotalPrice:  750000,
		Username:    "alice",
	}
	payload, err := json.Marshal(original)
	require.NoError(t, err)

	decoded, err := DecodeEvent(payload)
	require.NoError(t, err)

	reserved, ok := decoded.(*InventoryReservedEvent)
	require.True(t, ok, "tag must select the concrete variant")
	assert.Equal(t, original, reserved)
	assert.Equal(t, orderID, decoded.Correlation())
	assert.Equal(t, EventTypeInventoryReserved, decoded.Type())
}

func TestDecodeEventUnknownType(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"event_id":"x","event_type":"ORDER_SHIPPED","order_id":"00000000-0000-0000-0000-000000000000"}`))
	assert.Error(t, err, "the event union is closed")
}

func TestDecodeEventMalformedPayload(t *testing.T) {
	_, err := DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeEventVariants(t *testing.T) {
	orderID := uuid.New()
	cases := []struct {
		event Event
		want  any
	}{
		{&OrderCreatedEvent{BaseEvent: NewBaseEvent(EventTypeOrderCreated, orderID)}, &OrderCreatedEvent{}},
		{&InventoryReservationFailedEvent{BaseEvent: NewBaseEvent(EventTypeInventoryReservationFailed, orderID)}, &InventoryReservationFailedEvent{}},
		{&BalanceDebitedEvent{BaseEvent: NewBaseEvent(EventTypeBalanceDebited, orderID)}, &BalanceDebitedEvent{}},
		{&BalanceDebitFailedEvent{BaseEvent: NewBaseEvent(EventTypeBalanceDebitFailed, orderID)}, &BalanceDebitFailedEvent{}},
	}

	for _, tc := range cases {
		payload, err := json.Marshal(tc.event)
		require.NoError(t, err)
		decoded, err := DecodeEvent(payload)
		require.NoError(t, err)
		assert.IsType(t, tc.want, decoded)
		assert.Equal(t, orderID, decoded.Correlation())
	}
}
