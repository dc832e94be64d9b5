// Package ledger writes extracted disbursement rows to their destinations.
//
// Workbook is the ledger spreadsheet. Append adds rows to the 編集用 working
// sheet; RefreshReports rebuilds the 品名ごと (per model) and 工程ごと (per
// process and model) sheets from it, naming products through the 品名マスタ
// master sheet:
//
//	wb, err := ledger.OpenWorkbookFile("ledger.xlsx", "")
//	if err != nil {
//	    return err
//	}
//	defer wb.Close()
//	if _, err := wb.Append(rows); err != nil {
//	    return err
//	}
//	if _, err := wb.RefreshReports(); err != nil {
//	    return err
//	}
//	return wb.SaveAs("ledger.xlsx")
//
// CSVWriter exports the same rows as UTF-8 CSV with a BOM so Excel opens it
// correctly. Store persists rows per batch; PostgresStore is backed by the
// disbursements table and MemoryStore keeps them in process.
package ledger
