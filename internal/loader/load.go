package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/vinodismyname/mcpreports/config"
	"github.com/vinodismyname/mcpreports/internal/dataset"
)

// Kind classifies load failures.
type Kind uint8

const (
	// NotFound means the path does not exist; callers should ask for a file.
	NotFound Kind = iota + 1
	// Unsupported means the extension or an encoding feature is not handled.
	Unsupported
	// Corrupt means the file could not be parsed.
	Corrupt
	// TooLarge means the file holds more rows than allowed.
	TooLarge
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Unsupported:
		return "unsupported"
	case Corrupt:
		return "corrupt"
	case TooLarge:
		return "too large"
	}
	return "unknown"
}

// LoadError reports a failure to turn a file into a raw table.
type LoadError struct {
	Path string
	Kind Kind
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("loader: %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("loader: %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Extensions lists the file extensions Load understands.
var Extensions = []string{".xlsx", ".xlsm", ".xltx", ".xltm", ".csv", ".dta"}

// Options controls a load.
type Options struct {
	// Schema is applied by dataset.Build; nil means DatePublisherSchema.
	Schema dataset.Schema
	// Sheet selects a worksheet in Excel files; empty means the first sheet.
	Sheet string
	// Aliases are merged over dataset.DefaultAliases.
	Aliases map[string]string
	// MaxRows bounds data rows; <= 0 uses config.DefaultMaxRowsPerLoad.
	MaxRows int
}

func (o Options) maxRows() int {
	if o.MaxRows > 0 {
		return o.MaxRows
	}
	return config.DefaultMaxRowsPerLoad
}

func (o Options) aliases() map[string]string {
	out := maps.Clone(dataset.DefaultAliases)
	for k, v := range o.Aliases {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

type readFunc func(ctx context.Context, path string, o Options) (*dataset.Table, error)

func readerFor(path string) (readFunc, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return readExcel, true
	case ".csv":
		return readCSV, true
	case ".dta":
		return readStata, true
	}
	return nil, false
}

// Supported reports whether Load has a reader for the path's extension.
func Supported(path string) bool {
	_, ok := readerFor(path)
	return ok
}

// Load reads a tabular file, resolves header aliases and builds a Dataset
// against the requested schema. Read failures are *LoadError; schema and
// coercion failures are returned unchanged from dataset.Build.
func Load(ctx context.Context, path string, o Options) (*dataset.Dataset, error) {
	t, err := ReadTable(ctx, path, o)
	if err != nil {
		return nil, err
	}
	schema := o.Schema
	if schema == nil {
		schema = dataset.DatePublisherSchema
	}
	return dataset.Build(t, schema)
}

// ReadTable reads the raw table with aliases applied but no schema checks.
func ReadTable(ctx context.Context, path string, o Options) (*dataset.Table, error) {
	read, ok := readerFor(path)
	if !ok {
		return nil, &LoadError{Path: path, Kind: Unsupported, Err: fmt.Errorf("extension %q", filepath.Ext(path))}
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: path, Kind: NotFound, Err: err}
		}
		return nil, &LoadError{Path: path, Kind: Corrupt, Err: err}
	}
	if info.IsDir() {
		return nil, &LoadError{Path: path, Kind: NotFound, Err: errors.New("path is a directory")}
	}

	t, err := read(ctx, path, o)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		var le *LoadError
		if errors.As(err, &le) {
			if le.Path == "" {
				le.Path = path
			}
			return nil, err
		}
		return nil, &LoadError{Path: path, Kind: Corrupt, Err: err}
	}
	if t.Header == nil {
		return nil, &LoadError{Path: path, Kind: Corrupt, Err: errors.New("no header row")}
	}
	t.Normalize(o.aliases())
	return t, nil
}

// rowSink accumulates raw rows, enforcing the row limit and cancellation.
type rowSink struct {
	ctx   context.Context
	path  string
	limit int
	table dataset.Table
}

func newSink(ctx context.Context, path string, o Options) *rowSink {
	return &rowSink{ctx: ctx, path: path, limit: o.maxRows()}
}

// take consumes one row of text cells. The first non-blank row becomes the
// header; blank rows are skipped.
func (s *rowSink) take(cells []string) error {
	if blank(cells) {
		return s.ctx.Err()
	}
	if s.table.Header == nil {
		s.table.Header = trimTrailing(cells)
		return nil
	}
	row := make([]dataset.Value, len(cells))
	for i, c := range cells {
		row[i] = dataset.Text(c)
	}
	return s.add(row)
}

func (s *rowSink) add(row []dataset.Value) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if len(s.table.Rows) >= s.limit {
		return &LoadError{Path: s.path, Kind: TooLarge, Err: fmt.Errorf("more than %d rows", s.limit)}
	}
	s.table.Rows = append(s.table.Rows, row)
	return nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimTrailing(xs []string) []string {
	i := len(xs)
	for i > 0 && strings.TrimSpace(xs[i-1]) == "" {
		i--
	}
	return xs[:i]
}
