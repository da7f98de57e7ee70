package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	// Delimiter defaults to ','. NCES flat-file exports are sometimes
	// tab-delimited.
	Delimiter rune
	// HasHeader routes the first row to HeaderCh instead of the row
	// channel.
	HasHeader bool
	HeaderCh  chan<- []string
	// TrimSpace trims every field. Hand-edited workbooks pad cells.
	TrimSpace  bool
	LazyQuotes bool
}

// StreamCSV reads rows from r onto a channel. Rows may have varying
// field counts; column mapping is the caller's problem. Both channels
// close when the stream ends.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = opts.LazyQuotes
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}

		if opts.HasHeader {
			header, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "fetcher: read csv header")
				return
			}
			if opts.TrimSpace {
				trimFields(header)
			}
			if opts.HeaderCh != nil {
				select {
				case opts.HeaderCh <- header:
				case <-ctx.Done():
					errCh <- eris.Wrap(ctx.Err(), "fetcher: stream csv")
					return
				}
			}
		}

		for {
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "fetcher: read csv row")
				return
			}
			if opts.TrimSpace {
				trimFields(record)
			}
			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "fetcher: stream csv")
				return
			}
		}
	}()

	return rowCh, errCh
}

func trimFields(record []string) {
	for i, field := range record {
		record[i] = strings.TrimSpace(field)
	}
}
