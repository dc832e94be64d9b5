// Package shared holds helpers used across packages that belong to no
// single layer.
//
// The testutil subpackage provides log capture for asserting on slog
// output and builders for in-memory .xlsx fixtures. It is imported from
// _test.go files only.
package shared
