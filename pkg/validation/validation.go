package validation

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/vinodismyname/mcpreports/internal/dataset"
	"github.com/vinodismyname/mcpreports/internal/loader"
	"github.com/vinodismyname/mcpreports/internal/report"
	"github.com/vinodismyname/mcpreports/pkg/pagination"
)

var (
	v    *validator.Validate
	once sync.Once
)

// Validator returns a singleton validator with custom rules registered.
// Field names in errors follow the json tags.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		// Data file path must have an extension the loader reads
		_ = v.RegisterValidation("datafile_ext", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			return s != "" && loader.Supported(s)
		})
		// Report workbooks are always .xlsx
		_ = v.RegisterValidation("xlsx_ext", func(fl validator.FieldLevel) bool {
			return strings.EqualFold(filepath.Ext(strings.TrimSpace(fl.Field().String())), ".xlsx")
		})
		_ = v.RegisterValidation("metric", func(fl validator.FieldLevel) bool {
			_, err := report.ParseMetric(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("schema_name", func(fl validator.FieldLevel) bool {
			_, ok := dataset.SchemaByName(fl.Field().String())
			return ok
		})
		// Cursor must be decodable via pagination.DecodeCursor
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
				return false
			}
			_, err := pagination.DecodeCursor(s)
			return err == nil
		})
	})
	return v
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for MCP tool errors. Returns empty string when valid.
func ValidateStruct(s any) string {
	err := Validator().Struct(s)
	if err == nil {
		return ""
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "VALIDATION: invalid inputs"
	}
	fe := ve[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("VALIDATION: %s is required", field)
	case "required_without":
		return fmt.Sprintf("VALIDATION: %s is required (or supply cursor)", field)
	case "datafile_ext":
		return "VALIDATION: path must be a data file (" + strings.Join(loader.Extensions, ", ") + ")"
	case "xlsx_ext":
		return "VALIDATION: output path must end in .xlsx"
	case "metric":
		return fmt.Sprintf("UNKNOWN_METRIC: %s: %q; use count, count(field), sum(field), mean(field) or distinct(field)", field, fe.Value())
	case "schema_name":
		return "VALIDATION: schema must be date_publisher, monitor or none"
	case "cursor":
		return "CURSOR_INVALID: failed to decode cursor; restart pagination from the first page"
	case "min", "max", "gte", "lte":
		return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("VALIDATION: invalid %s", field)
}
