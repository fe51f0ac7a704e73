package config

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	errspkg "github.com/drblury/simflow/internal/runtime/errors"
	"github.com/drblury/simflow/internal/runtime/jsoncodec"
)

// Section is one named group of simulation parameters, typically the settings
// of a single module instance. Values are whatever the loader decoded (JSON
// scalars and arrays) or whatever Set stored; the typed getters coerce on
// access and report failures against the owning section and key, so a module
// never has to assemble its own error context.
type Section struct {
	name   string
	values map[string]any
}

// NewSection creates an empty section with the given name.
func NewSection(name string) *Section {
	return &Section{name: name, values: make(map[string]any)}
}

// Name returns the section name, usually the module instance it configures.
func (s *Section) Name() string { return s.name }

// Has reports whether key holds a value.
func (s *Section) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Set stores value under key, replacing any previous value.
func (s *Section) Set(key string, value any) {
	s.values[key] = value
}

// SetDefault stores value under key only when the key is still unset. Modules
// call this for every tunable before reading, so a section always prints
// complete.
func (s *Section) SetDefault(key string, value any) {
	if !s.Has(key) {
		s.values[key] = value
	}
}

// Keys returns all set keys in lexical order.
func (s *Section) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Text returns the value under key as a string.
func (s *Section) Text(key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", errspkg.MissingKeyError{Section: s.name, Key: key}
	}
	return s.coerceText(key, v)
}

// TextOr returns the value under key as a string, or def when the key is
// unset. A present but malformed value is still an error.
func (s *Section) TextOr(key, def string) (string, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.Text(key)
}

// Int returns the value under key as an int.
func (s *Section) Int(key string) (int, error) {
	v, ok := s.values[key]
	if !ok {
		return 0, errspkg.MissingKeyError{Section: s.name, Key: key}
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, errspkg.InvalidValueError{Section: s.name, Key: key, Reason: "not an integer"}
		}
		return int(n), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, errspkg.InvalidValueError{Section: s.name, Key: key, Reason: "not an integer"}
		}
		return parsed, nil
	default:
		return 0, errspkg.InvalidValueError{Section: s.name, Key: key, Reason: fmt.Sprintf("cannot read %T as integer", v)}
	}
}

// IntOr returns the value under key as an int, or def when the key is unset.
func (s *Section) IntOr(key string, def int) (int, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.Int(key)
}

// Float returns the value under key as a float64.
func (s *Section) Float(key string) (float64, error) {
	v, ok := s.values[key]
	if !ok {
		return 0, errspkg.MissingKeyError{Section: s.name, Key: key}
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, errspkg.InvalidValueError{Section: s.name, Key: key, Reason: "not a number"}
		}
		return parsed, nil
	default:
		return 0, errspkg.InvalidValueError{Section: s.name, Key: key, Reason: fmt.Sprintf("cannot read %T as number", v)}
	}
}

// FloatOr returns the value under key as a float64, or def when the key is
// unset.
func (s *Section) FloatOr(key string, def float64) (float64, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.Float(key)
}

// Bool returns the value under key as a bool.
func (s *Section) Bool(key string) (bool, error) {
	v, ok := s.values[key]
	if !ok {
		return false, errspkg.MissingKeyError{Section: s.name, Key: key}
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, errspkg.InvalidValueError{Section: s.name, Key: key, Reason: "not a boolean"}
		}
		return parsed, nil
	default:
		return false, errspkg.InvalidValueError{Section: s.name, Key: key, Reason: fmt.Sprintf("cannot read %T as boolean", v)}
	}
}

// BoolOr returns the value under key as a bool, or def when the key is unset.
func (s *Section) BoolOr(key string, def bool) (bool, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.Bool(key)
}

// Strings returns the value under key as a string slice.
func (s *Section) Strings(key string) ([]string, error) {
	v, ok := s.values[key]
	if !ok {
		return nil, errspkg.MissingKeyError{Section: s.name, Key: key}
	}
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, elem := range list {
			text, err := s.coerceText(key, elem)
			if err != nil {
				return nil, err
			}
			out = append(out, text)
		}
		return out, nil
	default:
		return nil, errspkg.InvalidValueError{Section: s.name, Key: key, Reason: fmt.Sprintf("cannot read %T as string list", v)}
	}
}

// Matrix returns the value under key as rows of strings. Modules use this for
// tabular parameters such as collection mappings.
func (s *Section) Matrix(key string) ([][]string, error) {
	v, ok := s.values[key]
	if !ok {
		return nil, errspkg.MissingKeyError{Section: s.name, Key: key}
	}
	switch rows := v.(type) {
	case [][]string:
		out := make([][]string, len(rows))
		for i, row := range rows {
			out[i] = make([]string, len(row))
			copy(out[i], row)
		}
		return out, nil
	case []any:
		out := make([][]string, 0, len(rows))
		for _, rawRow := range rows {
			cells, ok := rawRow.([]any)
			if !ok {
				return nil, errspkg.InvalidValueError{Section: s.name, Key: key, Reason: "matrix rows must be lists"}
			}
			row := make([]string, 0, len(cells))
			for _, cell := range cells {
				text, err := s.coerceText(key, cell)
				if err != nil {
					return nil, err
				}
				row = append(row, text)
			}
			out = append(out, row)
		}
		return out, nil
	default:
		return nil, errspkg.InvalidValueError{Section: s.name, Key: key, Reason: fmt.Sprintf("cannot read %T as matrix", v)}
	}
}

// String renders the section in an INI-like layout for log output.
func (s *Section) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", s.name)
	for _, key := range s.Keys() {
		fmt.Fprintf(&b, "%s = %v\n", key, s.values[key])
	}
	return b.String()
}

func (s *Section) coerceText(key string, v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int, int64:
		return fmt.Sprint(t), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	default:
		return "", errspkg.InvalidValueError{Section: s.name, Key: key, Reason: fmt.Sprintf("cannot read %T as text", v)}
	}
}

// LoadSections reads a JSON document of the form {"SectionName": {"key":
// value}} and returns one Section per top-level entry.
func LoadSections(path string) (map[string]*Section, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sections file: %w", err)
	}
	defer f.Close()

	var raw map[string]map[string]any
	if err := jsoncodec.Decode(f, &raw); err != nil {
		return nil, fmt.Errorf("parse sections file %s: %w", path, err)
	}

	out := make(map[string]*Section, len(raw))
	for name, kv := range raw {
		sec := NewSection(name)
		for k, v := range kv {
			sec.Set(k, v)
		}
		out[name] = sec
	}
	return out, nil
}
