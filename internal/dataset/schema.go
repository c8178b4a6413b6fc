package dataset

import "strings"

// Canonical column names used by the reports.
const (
	ColPublisher   = "publisher_id"
	ColMonitor     = "monitor_id"
	ColDate        = "date"
	ColActivityKey = "activity_key"
	ColDuration    = "duration_minutes"
	ColNumeroTotal = "numero_total"
	ColDistrict    = "district"
	ColProvince    = "province"
)

// Type is the semantic type a column is coerced to at load time.
type Type uint8

const (
	// TypeAny keeps whatever the loader produced.
	TypeAny Type = iota
	TypeText
	TypeNumber
	TypeDate
)

func (t Type) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeNumber:
		return "number"
	case TypeDate:
		return "date"
	default:
		return "any"
	}
}

// Field declares one column of a Schema.
type Field struct {
	Name        string
	Type        Type
	Required    bool
	NonNegative bool
}

// Schema is the set of columns a report depends on.
type Schema []Field

// Required lists the names of required fields in declaration order.
func (s Schema) Required() []string {
	var out []string
	for _, f := range s {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// Lookup finds a field by name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// DatePublisherSchema backs the per-date and per-publisher reports.
var DatePublisherSchema = Schema{
	{Name: ColPublisher, Type: TypeText, Required: true},
	{Name: ColDate, Type: TypeDate, Required: true},
	{Name: ColActivityKey, Type: TypeText, Required: true},
	{Name: ColDuration, Type: TypeNumber, Required: true, NonNegative: true},
}

// MonitorSchema backs the monitor-scoped reports.
var MonitorSchema = Schema{
	{Name: ColPublisher, Type: TypeText, Required: true},
	{Name: ColMonitor, Type: TypeText, Required: true},
	{Name: ColDate, Type: TypeDate, Required: true},
	{Name: ColActivityKey, Type: TypeText, Required: true},
	{Name: ColDuration, Type: TypeNumber, Required: true, NonNegative: true},
	{Name: ColNumeroTotal, Type: TypeNumber, NonNegative: true},
	{Name: ColDistrict, Type: TypeText},
	{Name: ColProvince, Type: TypeText},
}

// SchemaByName resolves the schema names accepted by tools and the CLI.
func SchemaByName(name string) (Schema, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "date_publisher":
		return DatePublisherSchema, true
	case "monitor":
		return MonitorSchema, true
	case "none":
		return Schema{}, true
	}
	return nil, false
}

// DefaultAliases maps source headers found in the survey exports to canonical names.
var DefaultAliases = map[string]string{
	"publicador": ColPublisher,
	"publisher":  ColPublisher,
	"monitor":    ColMonitor,
	"fecha":      ColDate,
	"key":        ColActivityKey,
	"duration":   ColDuration,
	"duracion":   ColDuration,
	"distrito":   ColDistrict,
	"provincia":  ColProvince,
}

// Columnar is anything exposing an ordered column list.
type Columnar interface {
	Columns() []string
}

// ValidateSchema fails with a SchemaError naming every required column that
// is absent, in the order requested.
func ValidateSchema(c Columnar, required []string) error {
	present := make(map[string]struct{})
	for _, col := range c.Columns() {
		present[col] = struct{}{}
	}
	var missing []string
	for _, col := range required {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
			present[col] = struct{}{} // report duplicates once
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}
