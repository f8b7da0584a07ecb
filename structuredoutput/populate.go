package structuredoutput

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/airuntime/core/errs"
)

// Populate copies fields from data (a map[string]any, typically decoded
// from a provider's JSON response) onto target (a pointer to a struct, or
// a pointer to a slice of structs for the "[classInstance]" array form),
// matching by case-insensitive field name and coercing numeric strings to
// numbers and "true"/"false" to booleans (spec §4.9 step 4). Extra fields
// in data are ignored; missing fields keep target's existing (zero/
// default) value. Performs no AI call — exposed standalone for testing
// and cache rehydration per spec §4.9.
func Populate(target any, data any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errs.New(errs.InvalidArgument, "structuredoutput.Populate: target must be a non-nil pointer")
	}
	return populateValue(v.Elem(), reflect.ValueOf(data))
}

func populateValue(dst reflect.Value, src reflect.Value) error {
	if !src.IsValid() {
		return nil
	}
	for src.Kind() == reflect.Interface {
		src = src.Elem()
		if !src.IsValid() {
			return nil
		}
	}

	switch dst.Kind() {
	case reflect.Ptr:
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return populateValue(dst.Elem(), src)

	case reflect.Struct:
		m, ok := src.Interface().(map[string]any)
		if !ok {
			return errs.New(errs.SchemaViolation, "structuredoutput: expected object for struct field, got %s", src.Kind())
		}
		return populateStruct(dst, m)

	case reflect.Slice:
		items, ok := asSlice(src)
		if !ok {
			return errs.New(errs.SchemaViolation, "structuredoutput: expected array, got %s", src.Kind())
		}
		out := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			if err := populateValue(out.Index(i), reflect.ValueOf(item)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil

	case reflect.String:
		dst.SetString(coerceToString(src))
		return nil

	case reflect.Bool:
		b, err := coerceToBool(src)
		if err != nil {
			return err
		}
		dst.SetBool(b)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := coerceToFloat(src)
		if err != nil {
			return err
		}
		dst.SetInt(int64(n))
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := coerceToFloat(src)
		if err != nil {
			return err
		}
		dst.SetUint(uint64(n))
		return nil

	case reflect.Float32, reflect.Float64:
		n, err := coerceToFloat(src)
		if err != nil {
			return err
		}
		dst.SetFloat(n)
		return nil

	default:
		if src.Type().AssignableTo(dst.Type()) {
			dst.Set(src)
			return nil
		}
		return errs.New(errs.SchemaViolation, "structuredoutput: cannot populate field of kind %s", dst.Kind())
	}
}

func populateStruct(dst reflect.Value, data map[string]any) error {
	t := dst.Type()
	lookup := make(map[string]any, len(data))
	for k, v := range data {
		lookup[strings.ToLower(k)] = v
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := jsonFieldName(f)
		val, ok := lookup[strings.ToLower(name)]
		if !ok {
			val, ok = lookup[strings.ToLower(f.Name)]
		}
		if !ok {
			continue // missing field: leave target's declared default
		}
		if err := populateValue(dst.Field(i), reflect.ValueOf(val)); err != nil {
			return err
		}
	}
	return nil
}

func asSlice(v reflect.Value) ([]any, bool) {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out, true
}

func coerceToString(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Float64, reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return ""
	}
}

func coerceToBool(v reflect.Value) (bool, error) {
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		s := strings.ToLower(strings.TrimSpace(v.String()))
		if s == "true" {
			return true, nil
		}
		if s == "false" {
			return false, nil
		}
		return false, errs.New(errs.SchemaViolation, "structuredoutput: cannot coerce %q to bool", v.String())
	default:
		return false, errs.New(errs.SchemaViolation, "structuredoutput: cannot coerce %s to bool", v.Kind())
	}
}

func coerceToFloat(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Float64, reflect.Float32:
		return v.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.String:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err != nil {
			return 0, errs.New(errs.SchemaViolation, "structuredoutput: cannot coerce %q to number", v.String())
		}
		return n, nil
	default:
		return 0, errs.New(errs.SchemaViolation, "structuredoutput: cannot coerce %s to number", v.Kind())
	}
}
