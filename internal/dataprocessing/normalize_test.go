package dataprocessing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"plain", "  X-100 ", "X-100"},
		{"line breaks", "A\r\nB", "A  B"},
		{"ideographic space", "　型番　", "型番"},
		{"integral float", 1001.0, "1001"},
		{"fraction", 12.5, "12.5"},
		{"int", 7, "7"},
		{"time", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), "2025-01-02 00:00:00"},
		{"nan", math.NaN(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestNormalizeHeaderText(t *testing.T) {
	assert.Equal(t, "型番", NormalizeHeaderText("型　番"))
	assert.Equal(t, "Lot No", NormalizeHeaderText("Lot\nNo"))
	assert.Equal(t, "", NormalizeHeaderText(nil))
}

func TestNormalizeQuantity(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   int
		wantOK bool
	}{
		{"nil", nil, 0, false},
		{"int", 5, 5, true},
		{"int64", int64(-3), -3, true},
		{"float", 10.0, 10, true},
		{"half to even down", 2.5, 2, true},
		{"half to even up", 3.5, 4, true},
		{"nan", math.NaN(), 0, false},
		{"inf", math.Inf(1), 0, false},
		{"thousands", "1,234", 1234, true},
		{"full width", "１２", 12, true},
		{"full width separators", "１，２３４", 1234, true},
		{"full width minus", "－５", -5, true},
		{"unit suffix", "10個", 10, true},
		{"leading space", "  7 pcs", 7, true},
		{"decimal text", "2.5", 2, true},
		{"signed text", "+8", 8, true},
		{"zero", "0", 0, true},
		{"text", "abc", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeQuantity(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"2024/3/5", "2024/3/5", true},
		{"2024/13/5", "", false},
		{"2024-03-05", "2024/3/5", true},
		{"2025.01.31 00:00:00", "2025/1/31", true},
		{"2023/2/29", "", false},
		{"2024/2/29", "2024/2/29", true},
		{"期限 2024/12/01 まで", "2024/12/1", true},
		{"２０２４/３/５", "2024/3/5", true},
		{"24/3/5", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeDate(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
