package dataprocessing

import (
	"regexp"
	"strings"
)

// Default window scanned for sheet metadata.
const (
	DefaultMetaRows = 8
	DefaultMetaCols = 8
)

var (
	// lotWordPattern marks cells that talk about a lot rather than naming
	// the process. The boundaries are Unicode-aware so katakana counts as
	// word characters.
	lotWordPattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(?:lot|ロット)(?:$|[^\p{L}\p{N}_])`)

	// lotCodePattern captures the token after "Lot", "Lot." or "ロット" and a
	// separator, e.g. "Lot: A123", "Lot.A123", "ロット：A123". "Lot" must not
	// follow a word character, kana and kanji included; the separator class
	// already closes the word on the right.
	lotCodePattern = regexp.MustCompile(`(?i)(?:(?:^|[^\p{L}\p{N}_])Lot\.?|ロット)\s*[：:.\s]\s*(\S+)`)
)

// Metadata is the free-text process name and lot code printed above the
// table. Either may be empty.
type Metadata struct {
	Process string `json:"process"`
	Lot     string `json:"lot"`
}

// ExtractMetadata scans the top-left maxRows x maxCols window row-major. The
// process name is the first non-blank cell that does not mention a lot; the
// lot code is taken from the first cell matching the lot label pattern.
func ExtractMetadata(grid Grid, maxRows, maxCols int) Metadata {
	if maxRows <= 0 {
		maxRows = DefaultMetaRows
	}
	if maxCols <= 0 {
		maxCols = DefaultMetaCols
	}

	var meta Metadata
	window := metadataWindow(grid, maxRows, maxCols)

	for _, row := range window {
		for _, v := range row {
			if v != "" && !lotWordPattern.MatchString(v) {
				meta.Process = v
				break
			}
		}
		if meta.Process != "" {
			break
		}
	}

	for _, row := range window {
		for _, v := range row {
			if v == "" {
				continue
			}
			if m := lotCodePattern.FindStringSubmatch(v); m != nil {
				meta.Lot = strings.TrimSpace(m[1])
				break
			}
		}
		if meta.Lot != "" {
			break
		}
	}

	return meta
}

func metadataWindow(grid Grid, maxRows, maxCols int) [][]string {
	rows := maxRows
	if rows > len(grid) {
		rows = len(grid)
	}
	window := make([][]string, rows)
	for r := 0; r < rows; r++ {
		cols := maxCols
		if cols > len(grid[r]) {
			cols = len(grid[r])
		}
		window[r] = make([]string, cols)
		for c := 0; c < cols; c++ {
			window[r][c] = NormalizeHeaderText(grid[r][c])
		}
	}
	return window
}
