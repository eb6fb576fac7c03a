package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrder_StockChanges_MergesDuplicateProducts(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p1", Quantity: 3},
	}}

	assert.Equal(t, []StockChange{{ProductID: "p1", Delta: -5}, {ProductID: "p2", Delta: -1}}, o.StockChanges(-1))
	assert.Equal(t, []StockChange{{ProductID: "p1", Delta: 5}, {ProductID: "p2", Delta: 1}}, o.StockChanges(1))
}

func TestOrderStatus(t *testing.T) {
	assert.True(t, OrderShipped.Valid())
	assert.False(t, OrderStatus("lost").Valid())
	assert.True(t, OrderPending.HoldsStock())
	assert.False(t, OrderCancelled.HoldsStock())
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleCustomer.Valid())
	assert.False(t, Role("Root").Valid())
}

func TestCustomizations_AssetURLs(t *testing.T) {
	c := Customizations{Logo: "l", HomeBanners: []string{"b1", "b2"}}
	assert.Equal(t, []string{"l", "b1", "b2"}, c.AssetURLs())
	assert.Empty(t, Customizations{}.AssetURLs())
}
