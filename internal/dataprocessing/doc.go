// Package dataprocessing extracts disbursement records from loosely formatted
// spreadsheet exports.
//
// # Architecture
//
// Extraction of one workbook runs five steps over a Grid of raw cells:
//
//  1. SelectSheet picks the sheet: the 編集用 working sheet, else the latest
//     dated sheet, else the first sheet that is not a base/check/download
//     sheet, else the first sheet.
//  2. ExtractMetadata reads the process name and lot code printed above the
//     table.
//  3. LocateHeader finds the header row by keyword, falling back to labels
//     split across two rows.
//  4. ExtractRows walks the data rows, carrying model, lot number and expiry
//     over sparse rows and summing quantities per (model, lot number, expiry).
//  5. Rows it cannot use are tallied in domain.RejectionStats.
//
// # Usage
//
//	res, err := dataprocessing.ParseFile("0401_払出.xlsx", dataprocessing.DefaultParseOptions())
//	if err != nil {
//	    // errors.ErrTypeHeaderNotFound or errors.ErrTypeInput
//	}
//	for _, row := range res.Rows {
//	    fmt.Println(row.Model, row.LotNo, row.QuantityTotal, row.Expiry)
//	}
//
// Files whose name contains 返庫 are returns; their quantities come out
// negative.
//
// # Data Flow
//
//	Excel File → SelectSheet → Grid → LocateHeader → ExtractRows → ExtractedRow
//
// # Error Handling
//
// Row problems never fail an extraction; they are counted. A sheet with no
// recognizable header fails with an AppError of type HEADER_NOT_FOUND that
// carries the sheet name and selection reason. An unreadable workbook fails
// with type INPUT.
package dataprocessing
