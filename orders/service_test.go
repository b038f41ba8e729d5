package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCreateRequest_AcceptsWellFormedBody(t *testing.T) {
	req := CreateOrderRequest{
		CustomerID: "cust_1",
		Items:      []CreateOrderItem{{ProductID: "p1", Quantity: 2, UnitPrice: 100}},
	}
	assert.NoError(t, validateCreateRequest(req))
}

func TestValidateCreateRequest_RejectsBadBodies(t *testing.T) {
	cases := map[string]CreateOrderRequest{
		"empty customerId": {
			Items: []CreateOrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 10}},
		},
		"no items": {
			CustomerID: "cust_1",
		},
		"zero quantity": {
			CustomerID: "cust_1",
			Items:      []CreateOrderItem{{ProductID: "p1", Quantity: 0, UnitPrice: 10}},
		},
		"negative unit price": {
			CustomerID: "cust_1",
			Items:      []CreateOrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: -1}},
		},
		"empty productId": {
			CustomerID: "cust_1",
			Items:      []CreateOrderItem{{Quantity: 1, UnitPrice: 10}},
		},
	}
	for name, req := range cases {
		err := validateCreateRequest(req)
		require.Error(t, err, name)

		var validationErr *ErrValidation
		assert.ErrorAs(t, err, &validationErr, name)
	}
}

func TestNewOrderID_HasPrefixAndIsUnique(t *testing.T) {
	a := newOrderID()
	b := newOrderID()
	assert.True(t, strings.HasPrefix(a, "ord_"))
	assert.Len(t, a, len("ord_")+12)
	assert.NotEqual(t, a, b)
}
