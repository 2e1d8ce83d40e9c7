package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPendingPayment, StatusPaid, true},
		{StatusPendingPayment, StatusCancelled, true},
		{StatusPaid, StatusCancelled, false},
		{StatusPaid, StatusPendingPayment, false},
		{StatusCancelled, StatusPaid, false},
		{StatusCancelled, StatusPendingPayment, false},
		{StatusPaid, StatusPaid, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
