// Package recordio reads business rows from CSV and XLSX files and writes
// the augmented output. Readers keep the original header and raw rows so the
// writer can emit input columns unchanged with result columns appended.
package recordio

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
)

// Columns carries optional header-name overrides. Empty fields fall back to
// auto-detection against the synonym lists.
type Columns struct {
	Name    string
	Address string
	City    string
	State   string
	Zip     string
	Permit  string
}

// File is a fully read input: the header, the raw rows, and the records
// extracted from them. Records[i].RowIndex is the position in Rows.
type File struct {
	Header  []string
	Records []model.Record
}

// Synonym lists for header auto-detection, compared case-insensitively with
// punctuation collapsed.
var columnSynonyms = map[string][]string{
	"name":    {"name", "business name", "location name", "trade name", "tradename", "taxpayer name"},
	"address": {"address", "street address", "location address", "address 1", "address line 1"},
	"city":    {"city", "location city"},
	"state":   {"state", "location state"},
	"zip":     {"zip", "zip code", "zipcode", "postal code", "location zip"},
	"permit":  {"permit", "permit number", "license", "license number"},
}

type columnIndex struct {
	name, address, city, state, zip, permit int
}

// Read loads an input file, dispatching on the extension. Supported formats
// are .csv and .xlsx.
func Read(path string, cols Columns) (*File, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path, cols)
	case ".xlsx":
		return ReadXLSX(path, cols)
	default:
		return nil, eris.Errorf("recordio: unsupported input format %q", filepath.Ext(path))
	}
}

// ReadCSV loads a CSV input file. The first row is treated as the header.
func ReadCSV(path string, cols Columns) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "recordio: open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "recordio: read header")
	}

	idx, err := detect(header, cols)
	if err != nil {
		return nil, err
	}

	file := &File{Header: header}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "recordio: read row")
		}
		file.Records = append(file.Records, recordFrom(row, idx, len(file.Records)))
	}
	return file, nil
}

// detect resolves the identity columns from the header. Name is mandatory;
// every other column is optional and resolves to -1 when absent.
func detect(header []string, cols Columns) (columnIndex, error) {
	idx := columnIndex{
		name:    find(header, cols.Name, columnSynonyms["name"]),
		address: find(header, cols.Address, columnSynonyms["address"]),
		city:    find(header, cols.City, columnSynonyms["city"]),
		state:   find(header, cols.State, columnSynonyms["state"]),
		zip:     find(header, cols.Zip, columnSynonyms["zip"]),
		permit:  find(header, cols.Permit, columnSynonyms["permit"]),
	}
	if idx.name < 0 {
		return idx, eris.New("recordio: no name column found; set an explicit column override")
	}
	return idx, nil
}

func find(header []string, override string, synonyms []string) int {
	if override != "" {
		for i, h := range header {
			if canonical(h) == canonical(override) {
				return i
			}
		}
		return -1
	}
	for _, syn := range synonyms {
		for i, h := range header {
			if canonical(h) == syn {
				return i
			}
		}
	}
	return -1
}

func canonical(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", " ")
	h = strings.ReplaceAll(h, "-", " ")
	return strings.Join(strings.Fields(h), " ")
}

func recordFrom(row []string, idx columnIndex, rowIndex int) model.Record {
	return model.Record{
		Name:     cell(row, idx.name),
		Address:  cell(row, idx.address),
		City:     cell(row, idx.city),
		State:    cell(row, idx.state),
		Zip:      cell(row, idx.zip),
		Permit:   cell(row, idx.permit),
		RowIndex: rowIndex,
		Row:      row,
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
