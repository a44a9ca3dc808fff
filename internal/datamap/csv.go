package datamap

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/dbasik/dbasik/internal/model"
)

func readCSVFile(path string) ([]model.DatamapLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "datamap: open csv")
	}
	defer f.Close() //nolint:errcheck
	return ReadCSV(f)
}

// ReadCSV parses a datamap CSV. A leading byte order mark, which Excel adds
// when saving as CSV, is dropped.
func ReadCSV(r io.Reader) ([]model.DatamapLine, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrIncorrectHeaders
	}
	if err != nil {
		return nil, eris.Wrap(err, "datamap: read csv header")
	}
	header, err = normalizeHeader(header)
	if err != nil {
		return nil, err
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err != nil {
		return nil, eris.Wrap(err, "datamap: csv decoder")
	}

	var lines []model.DatamapLine
	for n := 2; ; n++ {
		var r row
		if err := dec.Decode(&r); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "datamap: row %d", n)
		}
		if r.blank() {
			continue
		}
		line, err := toLine(n, r)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}
