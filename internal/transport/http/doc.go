// Package http implements the HTTP handlers of the extraction service.
// Handlers stay thin: they parse multipart uploads, call the services layer
// and render the result or an RFC 7807 problem.
//
// # Endpoints
//
//	POST /api/extract   multipart "files" (+ require_lot_no, require_exp, format=csv)
//	POST /api/ledger    multipart "files" and optional "ledger"; returns the updated .xlsx
//	GET  /api/totals    per-model totals from the configured store
//	GET  /healthz       liveness summary; /healthz/ready and /healthz/live
//
// # Error Handling
//
// Errors are rendered by errors.ErrorHandler as problem documents:
//
//	{
//	    "type": "/errors/unprocessable",
//	    "title": "Unprocessable Entity",
//	    "status": 422,
//	    "detail": "No valid data rows could be extracted",
//	    "instance": "/api/extract",
//	    "details": [ ...per-file results... ]
//	}
//
// A batch in which no file yields a row is answered with 422 and the
// per-file outcomes; a batch with at least one row always succeeds and
// reports the failing files inside its result.
package http
