// Package services coordinates the extraction engine with its collaborators.
//
// ExtractionService runs a batch of workbooks through
// dataprocessing.ParseReader on a bounded worker pool, records one
// domain.FileResult per input in input order and summarizes the batch. A
// file that cannot be read or has no header is reported in its FileResult
// and never aborts the rest of the batch; only a batch without a single row
// fails, with ErrNoRowsExtracted.
//
// Ledger merges append a batch to a ledger workbook, regenerate its report
// sheets and optionally persist the rows to a ledger.Store. Merges are
// serialized so concurrent requests never interleave their writes.
//
// HealthService backs the liveness and readiness endpoints.
package services
