package loader

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/mcpreports/internal/dataset"
)

type dtaColumn struct {
	name   string
	typ    uint16
	format string
}

// writeDTA118 writes a little-endian release 118 file with the given columns.
// Each row holds raw values: string, int8, int32 or float64 matching typ.
func writeDTA118(t *testing.T, cols []dtaColumn, rows [][]any) string {
	t.Helper()
	le := binary.LittleEndian
	var b bytes.Buffer
	put := func(v any) { require.NoError(t, binary.Write(&b, le, v)) }
	fixed := func(s string, n int) {
		buf := make([]byte, n)
		copy(buf, s)
		b.Write(buf)
	}

	var offsets [mapEntries]uint64
	b.WriteString("<stata_dta><header><release>118</release><byteorder>LSF</byteorder><K>")
	put(uint16(len(cols)))
	b.WriteString("</K><N>")
	put(uint64(len(rows)))
	b.WriteString("</N><label>")
	put(uint16(0))
	b.WriteString("</label><timestamp>")
	b.WriteByte(0)
	b.WriteString("</timestamp></header>")

	offsets[1] = uint64(b.Len())
	b.WriteString("<map>")
	b.Write(make([]byte, 8*mapEntries))
	b.WriteString("</map>")

	section := func(i int, tag string, body func()) {
		offsets[i] = uint64(b.Len())
		b.WriteString("<" + tag + ">")
		body()
		b.WriteString("</" + tag + ">")
	}
	section(2, "variable_types", func() {
		for _, c := range cols {
			put(c.typ)
		}
	})
	section(3, "varnames", func() {
		for _, c := range cols {
			fixed(c.name, 129)
		}
	})
	section(4, "sortlist", func() { b.Write(make([]byte, 2*(len(cols)+1))) })
	section(5, "formats", func() {
		for _, c := range cols {
			fixed(c.format, 57)
		}
	})
	section(6, "value_label_names", func() { b.Write(make([]byte, 129*len(cols))) })
	section(7, "variable_labels", func() { b.Write(make([]byte, 321*len(cols))) })
	section(8, "characteristics", func() {})
	section(9, "data", func() {
		for _, r := range rows {
			for i, c := range cols {
				switch v := r[i].(type) {
				case string:
					fixed(v, int(c.typ))
				default:
					put(v)
				}
			}
		}
	})
	section(10, "strls", func() {})
	section(11, "value_labels", func() {})
	offsets[12] = uint64(b.Len())
	b.WriteString("</stata_dta>")
	offsets[13] = uint64(b.Len())

	out := b.Bytes()
	for i, off := range offsets {
		le.PutUint64(out[int(offsets[1])+len("<map>")+8*i:], off)
	}
	path := filepath.Join(t.TempDir(), "survey.dta")
	require.NoError(t, os.WriteFile(path, out, 0o644))
	return path
}

func TestLoad_StataDecodesTypesDatesAndMissing(t *testing.T) {
	cols := []dtaColumn{
		{name: "publicador", typ: 6, format: "%6s"},
		{name: "fecha", typ: dtaLong, format: "%td"},
		{name: "key", typ: 4, format: "%4s"},
		{name: "duration", typ: dtaDouble, format: "%9.0g"},
		{name: "visits", typ: dtaByte, format: "%8.0g"},
	}
	jan1 := int32(day(2024, 1, 1).Sub(dtaEpoch).Hours() / 24)
	missingDouble := math.Float64frombits(0x7fe0000000000000)
	path := writeDTA118(t, cols, [][]any{
		{"Ana", jan1, "k1", 12.5, int8(3)},
		{"Ana", jan1 + 1, "k2", missingDouble, int8(101)},
	})

	ds, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"publisher_id", "date", "activity_key", "duration_minutes", "visits"}, ds.Columns())
	require.Equal(t, 2, ds.Len())

	r0, r1 := ds.Row(0), ds.Row(1)
	require.Equal(t, "Ana", r0.Get(dataset.ColPublisher).String())
	require.Equal(t, "2024-01-01", r0.Get(dataset.ColDate).String())
	require.Equal(t, "2024-01-02", r1.Get(dataset.ColDate).String())
	require.Equal(t, 12.5, r0.Get(dataset.ColDuration).Float())
	require.True(t, r1.Get(dataset.ColDuration).IsNull())
	require.Equal(t, 3.0, r0.Get("visits").Float())
	require.True(t, r1.Get("visits").IsNull())
}

func TestLoad_StataRejectsStrL(t *testing.T) {
	path := writeDTA118(t, []dtaColumn{{name: "notes", typ: dtaStrL, format: "%9s"}}, nil)
	_, err := Load(context.Background(), path, Options{Schema: dataset.Schema{}})

	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.Equal(t, Unsupported, le.Kind)
	require.ErrorIs(t, err, ErrStrL)
}

func TestLoad_StataRejectsOldFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.dta")
	require.NoError(t, os.WriteFile(path, []byte{114, 2, 1, 0}, 0o644))
	_, err := Load(context.Background(), path, Options{})

	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.Equal(t, Unsupported, le.Kind)
	require.Equal(t, path, le.Path)
}

func TestDateFormat(t *testing.T) {
	require.Equal(t, "td", dateFormat("%td"))
	require.Equal(t, "td", dateFormat("%-tdDD/NN/CCYY"))
	require.Equal(t, "tc", dateFormat("%tcHH:MM"))
	require.Equal(t, "tc", dateFormat("%tC"))
	require.Equal(t, "", dateFormat("%9.0g"))
}
