package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserFilter_Window(t *testing.T) {
	tests := []struct {
		name       string
		filter     UserFilter
		wantLimit  int
		wantOffset int
		wantOK     bool
	}{
		{"defaults", UserFilter{}, DefaultListLimit, 0, true},
		{"third page", UserFilter{Page: 3, Limit: 10}, 10, 20, true},
		{"max limit", UserFilter{Limit: MaxListLimit}, MaxListLimit, 0, true},
		{"limit too large", UserFilter{Limit: MaxListLimit + 1}, 0, 0, false},
		{"offset overflows", UserFilter{Page: math.MaxInt, Limit: 2}, 0, 0, false},
		{"largest page", UserFilter{Page: math.MaxInt/2 + 1, Limit: 2}, 2, math.MaxInt - 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset, ok := tt.filter.Window()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
