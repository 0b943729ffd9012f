package rpc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// ErrArgs reports missing or mistyped call parameters.
var ErrArgs = errors.New("invalid arguments")

// Args are the positional parameters of a call.
type Args []any

func (a Args) at(i int) (any, bool) {
	if i < 0 || i >= len(a) {
		return nil, false
	}
	return a[i], true
}

// String returns parameter i as a string. Integers are accepted and
// formatted, since clients often send IDs as ints.
func (a Args) String(i int) (string, error) {
	v, ok := a.at(i)
	if !ok {
		return "", fmt.Errorf("%w: parameter %d is required", ErrArgs, i+1)
	}
	s, err := asString(v)
	if err != nil {
		return "", fmt.Errorf("parameter %d: %w", i+1, err)
	}
	return s, nil
}

// OptString returns parameter i as a string, or def when absent.
func (a Args) OptString(i int, def string) (string, error) {
	if _, ok := a.at(i); !ok {
		return def, nil
	}
	return a.String(i)
}

// Int returns parameter i as an int.
func (a Args) Int(i int) (int, error) {
	v, ok := a.at(i)
	if !ok {
		return 0, fmt.Errorf("%w: parameter %d is required", ErrArgs, i+1)
	}
	n, err := asInt(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %d: %w", i+1, err)
	}
	return n, nil
}

// OptInt returns parameter i as an int, or def when absent.
func (a Args) OptInt(i, def int) (int, error) {
	if _, ok := a.at(i); !ok {
		return def, nil
	}
	return a.Int(i)
}

// Struct returns parameter i as a struct.
func (a Args) Struct(i int) (Fields, error) {
	v, ok := a.at(i)
	if !ok {
		return nil, fmt.Errorf("%w: parameter %d is required", ErrArgs, i+1)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: parameter %d must be a struct", ErrArgs, i+1)
	}
	return Fields(m), nil
}

// OptStruct returns parameter i as a struct, or an empty one when absent.
func (a Args) OptStruct(i int) (Fields, error) {
	if _, ok := a.at(i); !ok {
		return Fields{}, nil
	}
	return a.Struct(i)
}

// List returns parameter i as a list of strings. A scalar counts as a
// one-element list and a string is split on commas.
func (a Args) List(i int) ([]string, error) {
	v, ok := a.at(i)
	if !ok {
		return nil, fmt.Errorf("%w: parameter %d is required", ErrArgs, i+1)
	}
	l, err := asList(v)
	if err != nil {
		return nil, fmt.Errorf("parameter %d: %w", i+1, err)
	}
	return l, nil
}

// Fields is a struct parameter.
type Fields map[string]any

// Has reports whether key is present.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// String returns the string at key, "" when absent.
func (f Fields) String(key string) (string, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return "", nil
	}
	s, err := asString(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return s, nil
}

// Required returns the non-empty string at key.
func (f Fields) Required(key string) (string, error) {
	s, err := f.String(key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%w: %s is required", ErrArgs, key)
	}
	return s, nil
}

// Int returns the int at key, def when absent.
func (f Fields) Int(key string, def int) (int, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return def, nil
	}
	n, err := asInt(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// Bool returns the boolean at key, def when absent. Integers and the
// strings "true"/"false" are accepted.
func (f Fields) Bool(key string, def bool) (bool, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return def, nil
	}
	b, err := asBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// List returns the list at key, nil when absent.
func (f Fields) List(key string) ([]string, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return nil, nil
	}
	l, err := asList(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return l, nil
}

// Filter converts the struct into a table filter. Lists become []string
// and numbers stay ints.
func (f Fields) Filter() (types.Filter, error) {
	out := make(types.Filter, len(f))
	for k, v := range f {
		switch x := v.(type) {
		case string, int, bool:
			out[k] = x
		case []any:
			l, err := asList(x)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = l
		default:
			return nil, fmt.Errorf("%w: filter %s has unsupported type %T", ErrArgs, k, v)
		}
	}
	return out, nil
}

func asString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int:
		return strconv.Itoa(x), nil
	}
	return "", fmt.Errorf("%w: expected a string, got %T", ErrArgs, v)
}

func asInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err == nil {
			return n, nil
		}
	case float64:
		if x == float64(int(x)) {
			return int(x), nil
		}
	}
	return 0, fmt.Errorf("%w: expected an int, got %v", ErrArgs, v)
}

func asBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int:
		return x != 0, nil
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("%w: expected a boolean, got %v", ErrArgs, v)
}

func asList(v any) ([]string, error) {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, err := asString(e)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		var out []string
		for _, part := range strings.Split(x, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case int:
		return []string{strconv.Itoa(x)}, nil
	}
	return nil, fmt.Errorf("%w: expected a list, got %T", ErrArgs, v)
}
