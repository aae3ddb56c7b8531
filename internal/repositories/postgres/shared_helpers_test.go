package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, defaultPageSize},
		{-5, defaultPageSize},
		{10, 10},
		{maxPageSize + 1, maxPageSize},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLimit(tt.in))
	}
}
