package testutil

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

// Sheet is a named sheet fixture; rows start at A1.
type Sheet struct {
	Name string
	Rows [][]interface{}
}

// WorkbookBytes builds an .xlsx holding rows on its default sheet.
func WorkbookBytes(t testing.TB, rows [][]interface{}) []byte {
	t.Helper()
	return MultiSheetBytes(t, Sheet{Name: "Sheet1", Rows: rows})
}

// MultiSheetBytes builds an .xlsx with the given sheets in order. The
// default sheet is renamed to the first one.
func MultiSheetBytes(t testing.TB, sheets ...Sheet) []byte {
	t.Helper()
	f := buildWorkbook(t, sheets)
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// WriteWorkbook saves a single-sheet workbook to path.
func WriteWorkbook(t testing.TB, path string, rows [][]interface{}) {
	t.Helper()
	f := buildWorkbook(t, []Sheet{{Name: "Sheet1", Rows: rows}})
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook %s: %v", path, err)
	}
}

func buildWorkbook(t testing.TB, sheets []Sheet) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	for i, s := range sheets {
		if i == 0 {
			if s.Name != "Sheet1" {
				if err := f.SetSheetName("Sheet1", s.Name); err != nil {
					t.Fatalf("rename sheet: %v", err)
				}
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			t.Fatalf("new sheet %s: %v", s.Name, err)
		}
		for r, cells := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			row := cells
			if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
				t.Fatalf("set row %d of %s: %v", r+1, s.Name, err)
			}
		}
	}
	return f
}
