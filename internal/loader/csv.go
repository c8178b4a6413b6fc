package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/vinodismyname/mcpreports/internal/dataset"
)

var csvDelimiters = []rune{',', ';', '\t'}

// readCSV reads a delimited text file. The delimiter is the candidate that
// occurs most often outside quotes on the first non-blank line.
func readCSV(ctx context.Context, path string, o Options) (*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	skipBOM(br)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}

	r := csv.NewReader(br)
	r.Comma = sniffDelimiter(head)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	sink := newSink(ctx, path, o)
	// Semicolon exports come from locales that write decimal commas.
	sink.table.DecimalComma = r.Comma == ';'
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := sink.take(rec); err != nil {
			return nil, err
		}
	}
	return &sink.table, nil
}

func skipBOM(br *bufio.Reader) {
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
}

func sniffDelimiter(head []byte) rune {
	line := head
	for len(line) > 0 {
		i := bytes.IndexByte(line, '\n')
		var cur []byte
		if i < 0 {
			cur, line = line, nil
		} else {
			cur, line = line[:i], line[i+1:]
		}
		if len(bytes.TrimSpace(cur)) == 0 {
			continue
		}
		counts := make(map[rune]int, len(csvDelimiters))
		quoted := false
		for _, b := range cur {
			if b == '"' {
				quoted = !quoted
				continue
			}
			if !quoted {
				counts[rune(b)]++
			}
		}
		best, n := ',', 0
		for _, d := range csvDelimiters {
			if counts[d] > n {
				best, n = d, counts[d]
			}
		}
		return best
	}
	return ','
}
