package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/vinodismyname/mcpreports/internal/dataset"
)

// Stata variable type codes for the tagged (117+) formats.
const (
	dtaStrL   = 32768
	dtaDouble = 65526
	dtaFloat  = 65527
	dtaLong   = 65528
	dtaInt    = 65529
	dtaByte   = 65530
)

// Largest non-missing values; anything above is one of the missing codes.
const (
	dtaMaxByte  = 100
	dtaMaxInt   = 32740
	dtaMaxLong  = 2147483620
	dtaMissingF = 0x1p127
	dtaMissingD = 0x1p1023
)

var dtaEpoch = time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)

// ErrStrL is wrapped when a file stores long strings, which are not decoded.
var ErrStrL = errors.New("loader: strL variables are not supported")

type dtaVar struct {
	name   string
	typ    uint16
	format string
}

func (v dtaVar) width() int {
	switch v.typ {
	case dtaDouble:
		return 8
	case dtaFloat, dtaLong:
		return 4
	case dtaInt:
		return 2
	case dtaByte:
		return 1
	}
	return int(v.typ)
}

// dtaLayout carries the release-dependent field sizes.
type dtaLayout struct {
	release  int
	order    binary.ByteOrder
	nameLen  int
	fmtLen   int
	kWidth   int
	nWidth   int
	labelLen int
}

func layoutFor(release int) (dtaLayout, bool) {
	switch release {
	case 117:
		return dtaLayout{release: 117, nameLen: 33, fmtLen: 49, kWidth: 2, nWidth: 4, labelLen: 1}, true
	case 118:
		return dtaLayout{release: 118, nameLen: 129, fmtLen: 57, kWidth: 2, nWidth: 8, labelLen: 2}, true
	case 119:
		return dtaLayout{release: 119, nameLen: 129, fmtLen: 57, kWidth: 4, nWidth: 8, labelLen: 2}, true
	}
	return dtaLayout{}, false
}

// Indices into the <map> section.
const (
	mapVarTypes = 2
	mapVarNames = 3
	mapFormats  = 5
	mapData     = 9
	mapEntries  = 14
)

// readStata extracts rows and columns from a Stata 13+ dataset. Numeric
// columns formatted %td or %tc become dates; value labels, strLs and
// characteristics are not interpreted.
func readStata(ctx context.Context, path string, o Options) (*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	d := &dtaDecoder{f: f, r: bufio.NewReader(f)}
	lay, k, n, err := d.header()
	if err != nil {
		return nil, err
	}
	if n > uint64(o.maxRows()) {
		return nil, &LoadError{Path: path, Kind: TooLarge, Err: fmt.Errorf("%d rows exceeds limit %d", n, o.maxRows())}
	}
	d.order = lay.order

	var offsets [mapEntries]uint64
	if err := d.expect("<map>"); err != nil {
		return nil, err
	}
	for i := range offsets {
		if err := binary.Read(d.r, d.order, &offsets[i]); err != nil {
			return nil, err
		}
	}

	vars := make([]dtaVar, k)
	if err := d.seek(offsets[mapVarTypes], "<variable_types>"); err != nil {
		return nil, err
	}
	for i := range vars {
		if err := binary.Read(d.r, d.order, &vars[i].typ); err != nil {
			return nil, err
		}
		if vars[i].typ == dtaStrL {
			return nil, &LoadError{Path: path, Kind: Unsupported, Err: ErrStrL}
		}
		if vars[i].typ == 0 || (vars[i].typ > 2045 && vars[i].typ < dtaDouble) || vars[i].typ > dtaByte {
			return nil, fmt.Errorf("variable %d: unknown type code %d", i+1, vars[i].typ)
		}
	}
	if err := d.seek(offsets[mapVarNames], "<varnames>"); err != nil {
		return nil, err
	}
	for i := range vars {
		s, err := d.fixed(lay.nameLen, lay.release)
		if err != nil {
			return nil, err
		}
		vars[i].name = s
	}
	if err := d.seek(offsets[mapFormats], "<formats>"); err != nil {
		return nil, err
	}
	for i := range vars {
		s, err := d.fixed(lay.fmtLen, lay.release)
		if err != nil {
			return nil, err
		}
		vars[i].format = s
	}

	if err := d.seek(offsets[mapData], "<data>"); err != nil {
		return nil, err
	}
	sink := newSink(ctx, path, o)
	sink.table.Header = make([]string, k)
	width := 0
	for i, v := range vars {
		sink.table.Header[i] = v.name
		width += v.width()
	}
	buf := make([]byte, width)
	for row := uint64(0); row < n; row++ {
		if _, err := io.ReadFull(d.r, buf); err != nil {
			return nil, fmt.Errorf("row %d: %w", row+1, err)
		}
		vals := make([]dataset.Value, k)
		off := 0
		for i, v := range vars {
			w := v.width()
			vals[i] = d.decode(v, buf[off:off+w], lay.release)
			off += w
		}
		if err := sink.add(vals); err != nil {
			return nil, err
		}
	}
	return &sink.table, nil
}

type dtaDecoder struct {
	f     *os.File
	r     *bufio.Reader
	order binary.ByteOrder
}

func (d *dtaDecoder) expect(tag string) error {
	buf := make([]byte, len(tag))
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return err
	}
	if string(buf) != tag {
		return fmt.Errorf("expected %s, found %q", tag, buf)
	}
	return nil
}

func (d *dtaDecoder) seek(off uint64, tag string) error {
	if _, err := d.f.Seek(int64(off), io.SeekStart); err != nil {
		return err
	}
	d.r.Reset(d.f)
	return d.expect(tag)
}

// header parses the <header> section and returns the layout, variable count
// and observation count.
func (d *dtaDecoder) header() (dtaLayout, int, uint64, error) {
	var lay dtaLayout
	if err := d.expect("<stata_dta><header><release>"); err != nil {
		return lay, 0, 0, &LoadError{Kind: Unsupported, Err: fmt.Errorf("not a Stata 13+ file: %w", err)}
	}
	rel := make([]byte, 3)
	if _, err := io.ReadFull(d.r, rel); err != nil {
		return lay, 0, 0, err
	}
	var release int
	if _, err := fmt.Sscanf(string(rel), "%d", &release); err != nil {
		return lay, 0, 0, fmt.Errorf("release %q: %w", rel, err)
	}
	lay, ok := layoutFor(release)
	if !ok {
		return lay, 0, 0, &LoadError{Kind: Unsupported, Err: fmt.Errorf("Stata release %d", release)}
	}
	if err := d.expect("</release><byteorder>"); err != nil {
		return lay, 0, 0, err
	}
	bo := make([]byte, 3)
	if _, err := io.ReadFull(d.r, bo); err != nil {
		return lay, 0, 0, err
	}
	switch string(bo) {
	case "MSF":
		lay.order = binary.BigEndian
	case "LSF":
		lay.order = binary.LittleEndian
	default:
		return lay, 0, 0, fmt.Errorf("byte order %q", bo)
	}
	d.order = lay.order
	if err := d.expect("</byteorder><K>"); err != nil {
		return lay, 0, 0, err
	}
	k, err := d.uint(lay.kWidth)
	if err != nil {
		return lay, 0, 0, err
	}
	if err := d.expect("</K><N>"); err != nil {
		return lay, 0, 0, err
	}
	n, err := d.uint(lay.nWidth)
	if err != nil {
		return lay, 0, 0, err
	}
	if err := d.expect("</N><label>"); err != nil {
		return lay, 0, 0, err
	}
	if err := d.skipCounted(lay.labelLen); err != nil {
		return lay, 0, 0, err
	}
	if err := d.expect("</label><timestamp>"); err != nil {
		return lay, 0, 0, err
	}
	if err := d.skipCounted(1); err != nil {
		return lay, 0, 0, err
	}
	if err := d.expect("</timestamp></header>"); err != nil {
		return lay, 0, 0, err
	}
	return lay, int(k), n, nil
}

func (d *dtaDecoder) uint(width int) (uint64, error) {
	buf := make([]byte, width)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(d.order.Uint16(buf)), nil
	case 4:
		return uint64(d.order.Uint32(buf)), nil
	}
	return d.order.Uint64(buf), nil
}

// skipCounted skips a length-prefixed string.
func (d *dtaDecoder) skipCounted(width int) error {
	n, err := d.uint(width)
	if err != nil {
		return err
	}
	_, err = d.r.Discard(int(n))
	return err
}

func (d *dtaDecoder) fixed(n, release int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", err
	}
	return cString(buf, release), nil
}

// cString decodes a NUL-terminated field. Release 117 stores Latin-1.
func cString(b []byte, release int) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if release > 117 {
		return string(b)
	}
	var sb strings.Builder
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

func (d *dtaDecoder) decode(v dtaVar, b []byte, release int) dataset.Value {
	var (
		f  float64
		ok = true
	)
	switch v.typ {
	case dtaByte:
		x := int8(b[0])
		f, ok = float64(x), x <= dtaMaxByte
	case dtaInt:
		x := int16(d.order.Uint16(b))
		f, ok = float64(x), x <= dtaMaxInt
	case dtaLong:
		x := int32(d.order.Uint32(b))
		f, ok = float64(x), x <= dtaMaxLong
	case dtaFloat:
		x := math.Float32frombits(d.order.Uint32(b))
		f = float64(x)
		ok = !math.IsNaN(f) && f < dtaMissingF
	case dtaDouble:
		f = math.Float64frombits(d.order.Uint64(b))
		ok = !math.IsNaN(f) && f < dtaMissingD
	default:
		return dataset.Text(cString(b, release))
	}
	if !ok {
		return dataset.Null
	}
	switch dateFormat(v.format) {
	case "td":
		return dataset.Date(dtaEpoch.AddDate(0, 0, int(f)))
	case "tc":
		return dataset.Date(dtaEpoch.Add(time.Duration(f) * time.Millisecond))
	}
	return dataset.Number(f)
}

// dateFormat returns "td" for daily and "tc" for datetime display formats.
func dateFormat(format string) string {
	f := strings.TrimLeft(strings.TrimPrefix(format, "%"), "-")
	switch {
	case strings.HasPrefix(f, "td"), strings.HasPrefix(f, "d"):
		return "td"
	case strings.HasPrefix(f, "tc"), strings.HasPrefix(f, "tC"):
		return "tc"
	}
	return ""
}
