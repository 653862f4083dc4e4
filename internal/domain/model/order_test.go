package model_test

import (
	"testing"

	"bookstore/internal/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to model.OrderStatus
		want     bool
	}{
		{model.OrderStatusPending, model.OrderStatusPreparing, true},
		{model.OrderStatusPending, model.OrderStatusCanceled, false},
		{model.OrderStatusPreparing, model.OrderStatusInTransit, true},
		{model.OrderStatusPreparing, model.OrderStatusCanceled, true},
		{model.OrderStatusPreparing, model.OrderStatusDelivered, false},
		{model.OrderStatusInTransit, model.OrderStatusRefundRequested, true},
		{model.OrderStatusRefundRequested, model.OrderStatusRefundDenied, true},
		{model.OrderStatusDelivered, model.OrderStatusRefundRequested, false},
		{model.OrderStatusCanceled, model.OrderStatusPreparing, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, model.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderStatus_Parse(t *testing.T) {
	st, ok := model.ParseOrderStatus("IN_TRANSIT")
	assert.True(t, ok)
	assert.Equal(t, "In transit", st.Label())

	_, ok = model.ParseOrderStatus("in_transit")
	assert.False(t, ok)
	_, ok = model.ParseOrderStatus("")
	assert.False(t, ok)

	assert.True(t, model.OrderStatusRefundAccepted.IsTerminal())
	assert.False(t, model.OrderStatusPending.IsTerminal())
}

func TestSumLines(t *testing.T) {
	lines := []model.OrderLine{
		{ProductID: "b1", Quantity: 3, Price: decimal.RequireFromString("0.10")},
		{ProductID: "b2", Quantity: 1, Price: decimal.RequireFromString("19.99")},
	}
	assert.True(t, model.SumLines(lines).Equal(decimal.RequireFromString("20.29")))
	assert.True(t, model.SumLines(nil).IsZero())
}
