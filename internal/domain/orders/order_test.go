package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmPickupThenDelivery(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	o := Order{ID: "o1", Status: StatusPending, PickupCode: "RT-12345", DeliveryCode: "ET-67890"}

	_, err := o.Confirm(ConfirmDelivery, "ET-67890", now)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = o.Confirm(ConfirmPickup, "RT-00000", now)
	assert.ErrorIs(t, err, ErrInvalidCode)

	picked, err := o.Confirm(ConfirmPickup, " RT-12345 ", now)
	require.NoError(t, err)
	assert.Equal(t, StatusPickedUp, picked.Status)
	require.NotNil(t, picked.ConfirmedAt)
	assert.Equal(t, StatusPending, o.Status)

	delivered, err := picked.Confirm(ConfirmDelivery, "ET-67890", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, delivered.Status)
	assert.Equal(t, "Entregue", delivered.Status.Label())
}

func TestConfirmUnknownKind(t *testing.T) {
	_, err := Order{Status: StatusPending}.Confirm("return", "x", time.Now())
	assert.ErrorIs(t, err, ErrUnknownKind)
}
