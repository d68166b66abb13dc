// ABOUTME: Column selection and per-cell value resolution for CSV rows
// ABOUTME: Record values win; absent or nil values fall back to admin-provided columns

package csvexport

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/2389/csvexport/internal/admin"
	"github.com/2389/csvexport/internal/model"
)

// ErrFieldNotFound is returned by Lookup when neither the record nor the
// admin provides a value for a column.
var ErrFieldNotFound = errors.New("field not found")

// ColumnFunc computes a column value from a record.
type ColumnFunc func(rec model.Record) (any, error)

// FieldNames returns the export columns for ma in order. An admin listing
// explicit fields gets exactly that list, otherwise every declared model
// field is exported, sorted by name.
func FieldNames(ma admin.ModelAdmin) []string {
	if fl, ok := ma.(FieldLister); ok {
		if fields := fl.CSVFields(); len(fields) > 0 {
			return slices.Clone(fields)
		}
	}
	names := ma.Meta().FieldNames()
	slices.Sort(names)
	return names
}

// Lookup resolves the raw value of field for rec.
//
// A non-nil record value is used as is, even when it is a zero value. A nil
// or missing value falls back to the admin's ColumnResolver. Callable values
// are invoked with the record. ErrFieldNotFound means neither side had it.
func Lookup(ma admin.ModelAdmin, rec model.Record, field string) (any, error) {
	v, ok := rec.Value(field)
	if !ok || v == nil {
		ok = false
		if cr, isResolver := ma.(ColumnResolver); isResolver {
			v, ok = cr.CSVColumn(field)
		}
	}
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", ma.Meta().Label(), field, ErrFieldNotFound)
	}
	return call(v, rec)
}

// Value returns the text of field for rec as it appears in the CSV cell.
// Unresolvable fields render as the empty string.
func Value(ma admin.ModelAdmin, rec model.Record, field string) (string, error) {
	v, err := Lookup(ma, rec, field)
	if errors.Is(err, ErrFieldNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return Text(v), nil
}

func call(v any, rec model.Record) (any, error) {
	switch fn := v.(type) {
	case ColumnFunc:
		return fn(rec)
	case func(model.Record) (any, error):
		return fn(rec)
	case func(model.Record) any:
		return fn(rec), nil
	case func(model.Record) string:
		return fn(rec), nil
	}
	return v, nil
}

// Text converts a resolved value to its CSV cell text. Invalid UTF-8 is
// replaced with U+FFFD.
func Text(v any) string {
	if isNilPointer(v) {
		return ""
	}

	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s = x
	case []byte:
		s = string(x)
	case time.Time:
		s = x.Format(time.RFC3339)
	case fmt.Stringer:
		s = x.String()
	case error:
		s = x.Error()
	case bool:
		s = strconv.FormatBool(x)
	case int:
		s = strconv.Itoa(x)
	case int8:
		s = strconv.FormatInt(int64(x), 10)
	case int16:
		s = strconv.FormatInt(int64(x), 10)
	case int32:
		s = strconv.FormatInt(int64(x), 10)
	case int64:
		s = strconv.FormatInt(x, 10)
	case uint:
		s = strconv.FormatUint(uint64(x), 10)
	case uint8:
		s = strconv.FormatUint(uint64(x), 10)
	case uint16:
		s = strconv.FormatUint(uint64(x), 10)
	case uint32:
		s = strconv.FormatUint(uint64(x), 10)
	case uint64:
		s = strconv.FormatUint(x, 10)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

// isNilPointer reports whether v is a typed nil pointer, whose String or
// Error method may dereference it.
func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
