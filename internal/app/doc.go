// Package app wires the extraction service together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration (defaults, YAML file, DISBURSEX_* environment)
//	2. Initialize logging and OpenTelemetry
//	3. Open the ledger store (Postgres when configured, in-memory otherwise)
//	4. Create the extraction and health services
//	5. Set up middleware, handlers and the HTTP server
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests within
// the configured shutdown timeout, closes the store and flushes telemetry.
// Initialization errors are returned to the caller; the package never calls
// os.Exit.
package app
