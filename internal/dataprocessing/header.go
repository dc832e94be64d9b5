package dataprocessing

import (
	"strings"

	"disbursex/pkg/contracts/domain"
)

// DefaultHeaderScanRows bounds how far down a sheet the header is searched.
const DefaultHeaderScanRows = 60

// Header keyword tables. Matching is a case-insensitive substring test and
// list order is priority order.
var (
	ModelKeywords = []string{"型番", "品目", "品番", "型 式", "型式"}
	LotNoKeywords = []string{"Lot No", "LotNo", "LOT NO", "ロット", "Lot"}
	ExpKeywords   = []string{"有効期限", "期限", "賞味期限", "Exp", "有効期日"}

	// QtyPrimaryKeywords name the disbursed quantity and outrank
	// QtySecondaryKeywords anywhere in the row.
	QtyPrimaryKeywords   = []string{"払出数", "払い出し", "払出", "出庫", "出数"}
	QtySecondaryKeywords = []string{"数量", "個数", "数"}
)

// headerHit is the set of columns found in one candidate row; -1 is a miss.
type headerHit struct {
	model, lotNo, qty, exp int
}

// qualifies reports whether the hit has a model column and at least two of
// the lot, quantity and expiry columns.
func (h headerHit) qualifies() bool {
	if h.model < 0 {
		return false
	}
	n := 0
	for _, c := range []int{h.lotNo, h.qty, h.exp} {
		if c >= 0 {
			n++
		}
	}
	return n >= 2
}

func (h headerHit) toMap(row int, merged bool) domain.HeaderMap {
	return domain.HeaderMap{
		Row:    row,
		Model:  h.model,
		LotNo:  h.lotNo,
		Qty:    h.qty,
		Exp:    h.exp,
		Merged: merged,
	}
}

// LocateHeader finds the header row within the first scanRows rows of grid.
// A single-row match anywhere in the window always wins; two adjacent rows
// are merged only when no single row qualifies.
func LocateHeader(grid Grid, scanRows int) (domain.HeaderMap, bool) {
	if scanRows <= 0 {
		scanRows = DefaultHeaderScanRows
	}
	if scanRows > len(grid) {
		scanRows = len(grid)
	}
	if hm, ok := locateSingleRow(grid, scanRows); ok {
		return hm, true
	}
	return locateMergedRows(grid, scanRows)
}

func locateSingleRow(grid Grid, scanRows int) (domain.HeaderMap, bool) {
	for r := 0; r < scanRows; r++ {
		cells := headerCells(grid[r])
		if allBlank(cells) {
			continue
		}
		if hit := matchHeaderRow(cells); hit.qualifies() {
			return hit.toMap(r, false), true
		}
	}
	return domain.HeaderMap{}, false
}

func locateMergedRows(grid Grid, scanRows int) (domain.HeaderMap, bool) {
	for r := 0; r+1 < scanRows; r++ {
		combo := mergeHeaderRows(headerCells(grid[r]), headerCells(grid[r+1]))
		if allBlank(combo) {
			continue
		}
		if hit := matchHeaderRow(combo); hit.qualifies() {
			return hit.toMap(r, true), true
		}
	}
	return domain.HeaderMap{}, false
}

// mergeHeaderRows overlays two rows column by column, preferring the upper
// row's text, for labels split across two physical rows.
func mergeHeaderRows(upper, lower []string) []string {
	n := len(upper)
	if len(lower) > n {
		n = len(lower)
	}
	combo := make([]string, n)
	for c := 0; c < n; c++ {
		if c < len(upper) && upper[c] != "" {
			combo[c] = upper[c]
		} else if c < len(lower) {
			combo[c] = lower[c]
		}
	}
	return combo
}

func matchHeaderRow(cells []string) headerHit {
	lower := lowerAll(cells)
	return headerHit{
		model: firstKeywordColumn(lower, ModelKeywords),
		lotNo: firstKeywordColumn(lower, LotNoKeywords),
		qty:   chooseQtyColumn(lower),
		exp:   firstKeywordColumn(lower, ExpKeywords),
	}
}

// chooseQtyColumn searches every column for the primary quantity keywords
// before trying the secondary ones.
func chooseQtyColumn(lower []string) int {
	if c := firstKeywordColumn(lower, QtyPrimaryKeywords); c >= 0 {
		return c
	}
	return firstKeywordColumn(lower, QtySecondaryKeywords)
}

// firstKeywordColumn returns the column of the first keyword (in keyword
// order) contained in any cell, or -1.
func firstKeywordColumn(lower []string, keywords []string) int {
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		for c, txt := range lower {
			if strings.Contains(txt, kw) {
				return c
			}
		}
	}
	return -1
}

func headerCells(row []any) []string {
	cells := make([]string, len(row))
	for i, v := range row {
		cells[i] = NormalizeHeaderText(v)
	}
	return cells
}

func lowerAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ToLower(c)
	}
	return out
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
