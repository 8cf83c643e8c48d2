package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrent(t *testing.T) {
	cases := []struct {
		name string
		st   State
		want Stage
	}{
		{"empty cart", State{CartEmpty: true, HasOpenOrder: true}, StageCart},
		{"no order yet", State{}, StageCart},
		{"order without shipping", State{HasOpenOrder: true}, StageInfo},
		{"shipping filled", State{HasOpenOrder: true, ShippingComplete: true}, StageShippingPayment},
		{"paid", State{CartEmpty: true, Paid: true}, StageConfirm},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Current(tc.st))
		})
	}
}

func TestGuard(t *testing.T) {
	empty := State{CartEmpty: true, HasOpenOrder: true, ShippingComplete: true}
	for _, s := range []Stage{StageInfo, StageShippingPayment, StageConfirm} {
		redirect, ok := Guard(s, empty)
		assert.False(t, ok, s.String())
		assert.Equal(t, "/cart", redirect, s.String())
	}

	_, ok := Guard(StageCart, empty)
	assert.True(t, ok)

	noOrder := State{}
	redirect, ok := Guard(StageInfo, noOrder)
	assert.False(t, ok)
	assert.Equal(t, "/cart", redirect)

	draft := State{HasOpenOrder: true}
	_, ok = Guard(StageInfo, draft)
	assert.True(t, ok)
	redirect, ok = Guard(StageShippingPayment, draft)
	assert.False(t, ok)
	assert.Equal(t, "/checkout/info", redirect)
	redirect, ok = Guard(StageConfirm, draft)
	assert.False(t, ok)
	assert.Equal(t, "/checkout/info", redirect)

	ready := State{HasOpenOrder: true, ShippingComplete: true}
	for _, s := range []Stage{StageInfo, StageShippingPayment, StageConfirm} {
		_, ok := Guard(s, ready)
		assert.True(t, ok, s.String())
	}
}

func TestStagePaths(t *testing.T) {
	assert.Equal(t, "/checkout/shipping", StageShippingPayment.Path())
	assert.Equal(t, "confirm", StageConfirm.String())
}
