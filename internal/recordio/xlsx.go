package recordio

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX loads the first sheet of an XLSX workbook. The first row is
// treated as the header.
func ReadXLSX(path string, cols Columns) (*File, error) {
	wb, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "recordio: open xlsx")
	}
	if len(wb.Sheets) == 0 {
		return nil, eris.New("recordio: workbook has no sheets")
	}
	sheet := wb.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("recordio: sheet is empty")
	}

	header := rowStrings(sheet.Rows[0])
	idx, err := detect(header, cols)
	if err != nil {
		return nil, err
	}

	file := &File{Header: header}
	for _, r := range sheet.Rows[1:] {
		row := rowStrings(r)
		if emptyRow(row) {
			continue
		}
		file.Records = append(file.Records, recordFrom(row, idx, len(file.Records)))
	}
	return file, nil
}

func rowStrings(r *xlsx.Row) []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.String()
	}
	return out
}

func emptyRow(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
