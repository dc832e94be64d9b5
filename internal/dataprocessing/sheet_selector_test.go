package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectSheet(t *testing.T) {
	tests := []struct {
		name       string
		sheets     []string
		wantSheet  string
		wantReason string
	}{
		{
			name:       "preferred sheet wins over dates",
			sheets:     []string{"入力 2024.06.01", "編集用"},
			wantSheet:  "編集用",
			wantReason: ReasonPreferred,
		},
		{
			name:       "latest dated sheet",
			sheets:     []string{"入力 2024.05.01", "入力 2024.06.01", "確認"},
			wantSheet:  "入力 2024.06.01",
			wantReason: "most recent dated sheet (2024-06-01)",
		},
		{
			name:       "date tie keeps list order",
			sheets:     []string{"A 2024/6/1", "B 2024-06-01"},
			wantSheet:  "A 2024/6/1",
			wantReason: "most recent dated sheet (2024-06-01)",
		},
		{
			name:       "bare date name",
			sheets:     []string{"Sheet1", "2023-12-31"},
			wantSheet:  "2023-12-31",
			wantReason: "most recent dated sheet (2023-12-31)",
		},
		{
			name:       "invalid date is ignored",
			sheets:     []string{"確認用", "x 2024.13.01"},
			wantSheet:  "x 2024.13.01",
			wantReason: ReasonNonExcluded,
		},
		{
			name:       "date glued to text is not a token",
			sheets:     []string{"基本シート", "data2024.05.01"},
			wantSheet:  "data2024.05.01",
			wantReason: ReasonNonExcluded,
		},
		{
			name:       "excluded sheets skipped",
			sheets:     []string{"基本シート", "確認(編集後)", "CHECK", "払出"},
			wantSheet:  "払出",
			wantReason: ReasonNonExcluded,
		},
		{
			name:       "fallback to first",
			sheets:     []string{"基本シート", "チェック表", "DL用"},
			wantSheet:  "基本シート",
			wantReason: ReasonFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, reason := SelectSheet(tt.sheets)
			assert.Equal(t, tt.wantSheet, sheet)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestSelectSheet_Empty(t *testing.T) {
	sheet, reason := SelectSheet(nil)
	assert.Empty(t, sheet)
	assert.Empty(t, reason)
}
