package dataprocessing

import (
	"strings"

	"disbursex/pkg/contracts/domain"
)

// ReturnToken in a file label marks a return-to-stock file whose quantities
// are booked negative.
const ReturnToken = "返庫"

// QuantitySign returns -1 for return-to-stock files and +1 otherwise.
func QuantitySign(fileLabel string) int {
	if strings.Contains(fileLabel, ReturnToken) {
		return -1
	}
	return 1
}

// scanRow holds the normalized values of one data row.
type scanRow struct {
	model   string
	lotNo   string
	qty     int
	hasQty  bool
	expText string
	exp     string
}

func (r scanRow) empty() bool {
	return r.model == "" && r.lotNo == "" && !r.hasQty && r.expText == ""
}

// carryState is the value carried forward across sparse rows of one sheet.
type carryState struct {
	model string
	lotNo string
	exp   string
}

// aggKey identifies one output record.
type aggKey struct {
	model string
	lotNo string
	exp   string
}

// blockIndex answers the per-row lookahead questions in O(1) after one
// backward pass. A block runs from a model-bearing row up to, not including,
// the next model-bearing row.
type blockIndex struct {
	// firstExp[i] is the first parseable expiry from row i to its block end.
	firstExp []string
	// lotAhead[i] reports whether a row after i, within i's block, carries
	// a lot number.
	lotAhead []bool
}

func buildBlockIndex(rows []scanRow) blockIndex {
	n := len(rows)
	idx := blockIndex{
		firstExp: make([]string, n),
		lotAhead: make([]bool, n),
	}
	for i := n - 1; i >= 0; i-- {
		idx.firstExp[i] = rows[i].exp
		next := i + 1
		if next >= n || rows[next].model != "" {
			continue
		}
		if idx.firstExp[i] == "" {
			idx.firstExp[i] = idx.firstExp[next]
		}
		idx.lotAhead[i] = rows[next].lotNo != "" || idx.lotAhead[next]
	}
	return idx
}

func normalizeRows(rows Grid, hm domain.HeaderMap) []scanRow {
	out := make([]scanRow, len(rows))
	for i := range rows {
		r := scanRow{
			model:   NormalizeText(rows.cell(i, hm.Model)),
			lotNo:   NormalizeText(rows.cell(i, hm.LotNo)),
			expText: NormalizeText(rows.cell(i, hm.Exp)),
		}
		r.qty, r.hasQty = NormalizeQuantity(rows.cell(i, hm.Qty))
		r.exp, _ = NormalizeDate(r.expText)
		out[i] = r
	}
	return out
}

// ExtractRows runs the Row-Carry scan over the data rows below a header and
// returns one aggregated row per (model, lot number, expiry) key in
// first-seen order, plus the per-reason rejection tally.
//
// Model, lot number and expiry are carried forward over rows that leave them
// blank. A row that names a model opens a new block and voids the carried
// lot number and expiry before its own values apply. When an expiry is
// required but not yet known, the first expiry later in the same block is
// adopted. When a lot number is required but missing, the row is rejected
// only if some later row of the block has one; a block with no lot number
// anywhere is accepted with an empty lot number.
func ExtractRows(rows Grid, hm domain.HeaderMap, opts ScanOptions) ([]domain.ExtractedRow, domain.RejectionStats) {
	stats := domain.NewRejectionStats()
	sign := 1
	if opts.QuantitySign < 0 {
		sign = -1
	}

	scan := normalizeRows(rows, hm)
	idx := buildBlockIndex(scan)

	sums := make(map[aggKey]int)
	var order []aggKey
	var state carryState

	for i, row := range scan {
		if row.empty() {
			stats[domain.RejectEmptyRow]++
			continue
		}

		if row.model != "" {
			state.model = row.model
			state.lotNo = ""
			state.exp = ""
		}
		if row.lotNo != "" {
			state.lotNo = row.lotNo
		}
		if row.exp != "" {
			state.exp = row.exp
		}

		if state.model == "" {
			stats[domain.RejectModelMissing]++
			continue
		}

		if !row.hasQty {
			// serial or expiry-only rows only feed the carry
			continue
		}
		if row.qty == 0 {
			stats[domain.RejectQuantityZero]++
			continue
		}
		qty := abs(row.qty) * sign

		exp := state.exp
		if opts.RequireExp && exp == "" {
			if peek := idx.firstExp[i]; peek != "" {
				exp = peek
				state.exp = peek
			} else {
				stats[domain.RejectDateInvalid]++
				continue
			}
		}

		lotNo := state.lotNo
		if opts.RequireLotNo && lotNo == "" && idx.lotAhead[i] {
			stats[domain.RejectLotMissing]++
			continue
		}

		key := aggKey{model: state.model, lotNo: lotNo, exp: exp}
		if _, seen := sums[key]; !seen {
			order = append(order, key)
		}
		sums[key] += qty
	}

	out := make([]domain.ExtractedRow, 0, len(order))
	for _, k := range order {
		out = append(out, domain.ExtractedRow{
			Process:         opts.Process,
			Lot:             opts.Lot,
			Model:           k.model,
			LotNo:           k.lotNo,
			QuantityTotal:   sums[k],
			Expiry:          k.exp,
			SourceFileLabel: opts.FileLabel,
		})
	}
	return out, stats
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
