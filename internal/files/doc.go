// Package files finds the input workbooks of an extraction run.
//
// Discovery lists the .xlsx files of a directory, skipping the ~$ lock
// files Excel leaves beside open workbooks, or validates an explicit list of
// paths. Relative paths resolve against the base path given to
// NewDiscovery.
//
//	found, err := files.NewDiscovery("").FindWorkbooks("exports")
package files
