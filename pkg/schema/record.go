package schema

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateLayout is the canonical text form of date columns
const DateLayout = "2006-01-02"

// ErrInvalidValue is returned when a form value cannot be coerced to its column type
var ErrInvalidValue = errors.New("invalid value")

// Record is one row's values, positionally aligned with TableDescriptor.Fields
type Record []any

// Key returns the primary key held in the first column
func (r Record) Key() (int64, bool) {
	if len(r) == 0 {
		return 0, false
	}
	return toInt64(r[0])
}

// Strings formats every value for display; NULL becomes the empty string
func (r Record) Strings() []string {
	out := make([]string, len(r))
	for i, v := range r {
		out[i] = FormatValue(v)
	}
	return out
}

// FormatValue renders a scalar column value as text
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(DateLayout)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(val)
	}
}

// EmptyRecord returns a record with every column unset
func (d *TableDescriptor) EmptyRecord() Record {
	return make(Record, len(d.Fields))
}

// RecordFromForm builds a record from submitted form values.
// Only type coercion is applied; missing optional values become NULL.
func (d *TableDescriptor) RecordFromForm(values url.Values) (Record, error) {
	rec := make(Record, len(d.Fields))
	for i, f := range d.Fields {
		v, err := coerce(f, strings.TrimSpace(values.Get(f.Name)), values.Has(f.Name))
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", d.Name, f.Name, err)
		}
		rec[i] = v
	}
	return rec, nil
}

func coerce(f Field, raw string, present bool) (any, error) {
	switch f.Type {
	case InputHidden, InputNumber:
		if raw == "" {
			return nil, nil
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n, nil
		}
		n, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, raw)
		}
		return n, nil
	case InputDate:
		if raw == "" {
			return nil, nil
		}
		t, err := dateparse.ParseIn(raw, time.UTC, dateparse.PreferMonthFirst(false))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a date", ErrInvalidValue, raw)
		}
		return t.Format(DateLayout), nil
	case InputCheckbox:
		if !present {
			return false, nil
		}
		switch strings.ToLower(raw) {
		case "on", "true", "1", "yes", "tak":
			return true, nil
		}
		return false, nil
	default:
		if raw == "" && !f.Required {
			return nil, nil
		}
		return raw, nil
	}
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float64:
		if val != float64(int64(val)) {
			return 0, false
		}
		return int64(val), true
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(string(val), 10, 64)
		return n, err == nil
	}
	return 0, false
}
