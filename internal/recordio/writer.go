package recordio

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
)

// ResultColumns are appended to the input header in the output file.
var ResultColumns = []string{
	"website", "outcome", "source", "confidence", "match_method",
	"place_id", "maps_url", "rating", "reviews", "error",
}

// Writer emits augmented rows in input order with incremental flushes, so a
// crash loses at most the unflushed window.
type Writer struct {
	f *os.File
	w *csv.Writer
	n int
	// flushEvery is the row count between flushes; <=0 flushes every row.
	flushEvery int
}

// NewWriter creates the output file, truncating any previous contents, and
// writes the augmented header. A resumed run rewrites the whole output from
// the cache rather than seeking in a partial file.
func NewWriter(path string, header []string, flushEvery int) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, eris.Wrap(err, "recordio: open output")
	}

	w := &Writer{f: f, w: csv.NewWriter(f), flushEvery: flushEvery}

	out := make([]string, 0, len(header)+len(ResultColumns))
	out = append(out, header...)
	out = append(out, ResultColumns...)
	if err := w.w.Write(out); err != nil {
		f.Close()
		return nil, eris.Wrap(err, "recordio: write header")
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		f.Close()
		return nil, eris.Wrap(err, "recordio: flush header")
	}
	return w, nil
}

// Write emits one input row augmented with its resolution result.
func (w *Writer) Write(rec model.Record, res *model.ResolutionResult) error {
	if err := w.w.Write(AppendResult(rec.Row, res)); err != nil {
		return eris.Wrap(err, "recordio: write row")
	}
	w.n++
	if w.flushEvery <= 0 || w.n%w.flushEvery == 0 {
		return w.Flush()
	}
	return nil
}

// Flush forces buffered rows to disk.
func (w *Writer) Flush() error {
	w.w.Flush()
	return eris.Wrap(w.w.Error(), "recordio: flush")
}

// Close flushes and closes the output file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return eris.Wrap(w.f.Close(), "recordio: close output")
}

// AppendResult returns the row with the result columns appended, matching
// ResultColumns order.
func AppendResult(row []string, res *model.ResolutionResult) []string {
	out := make([]string, 0, len(row)+len(ResultColumns))
	out = append(out, row...)
	out = append(out,
		res.Website,
		string(res.Outcome),
		string(res.Source),
		formatFloat(res.Confidence),
		string(res.MatchMethod),
		res.PlaceID,
		res.MapsURL,
		formatFloat(res.Rating),
		formatInt(res.Reviews),
		res.Error,
	)
	return out
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}
