package env

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

type options struct {
	maskSecrets bool
}

type Option func(*options)

// WithMaskedSecrets replaces values of keys that look like credentials with "***".
func WithMaskedSecrets() Option {
	return func(o *options) { o.maskSecrets = true }
}

// MarshalEnv reflects over one or more config structs and renders .env content from their tags.
// Nested struct fields are flattened. Zero values are skipped.
func MarshalEnv(c any, opts ...Option) (string, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	v := reflect.ValueOf(c)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", fmt.Errorf("marshal env: expected struct, got %s", v.Kind())
	}

	lines := collect(v, o)
	result := strings.Join(lines, "\n")
	if result != "" && !strings.HasSuffix(result, "\n") {
		result += "\n"
	}

	return result, nil
}

func collect(v reflect.Value, o *options) []string {
	var lines []string
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		val := v.Field(i)
		tag := field.Tag.Get("env")

		if tag == "" {
			if inner := indirect(val); inner.Kind() == reflect.Struct {
				lines = append(lines, collect(inner, o)...)
			}
			continue
		}

		// "KEY,required,notEmpty" or "KEY"
		key := strings.Split(tag, ",")[0]
		if key == "" || isZeroValue(val) {
			continue
		}

		strVal := formatValue(val)
		if o.maskSecrets && isSecretKey(key) {
			strVal = "***"
		}
		lines = append(lines, fmt.Sprintf("%s=%s", key, strVal))
	}
	return lines
}

func indirect(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return v
		}
		return v.Elem()
	}
	return v
}

func isSecretKey(key string) bool {
	for _, marker := range []string{"KEY", "TOKEN", "SECRET", "PASSWORD"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}

func formatValue(v reflect.Value) string {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Slice:
		parts := make([]string, v.Len())
		for i := 0; i < v.Len(); i++ {
			parts[i] = formatValue(v.Index(i))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}
