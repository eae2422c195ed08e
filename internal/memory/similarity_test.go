package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExactNormalized(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, ExactNormalized("What is the revenue?", "what is   the revenue?"))
	assert.Equal(t, 1.0, ExactNormalized("TOTAL EQUITY", "total equity"))
	assert.Equal(t, 0.0, ExactNormalized("What is the revenue?", "What is the profit?"))
}

func TestWordOverlap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "what is the revenue", "what is the revenue", 1.0},
		{"case insensitive", "What Is The Revenue", "what is the revenue", 1.0},
		{"partial overlap", "what is the revenue", "what is the profit", 0.6},
		{"disjoint", "total equity", "fiscal year", 0.0},
		{"empty", "", "what is the revenue", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, WordOverlap(tt.a, tt.b), 1e-9)
		})
	}
}
