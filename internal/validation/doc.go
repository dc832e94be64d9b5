// Package validation checks local input and output locations before a
// command-line extraction run starts.
package validation
