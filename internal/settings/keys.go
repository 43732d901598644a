package settings

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrUnknownKey is returned by Get and Set for a section or key that does
// not exist.
var ErrUnknownKey = errors.New("unknown settings key")

type tree map[string]map[string]any

func (s *Settings) tree() (tree, error) {
	data, err := toml.Marshal(s)
	if err != nil {
		return nil, err
	}
	var t tree
	if err := toml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return t, nil
}

func (t tree) lookup(section, key string) (any, error) {
	sec, ok := t[section]
	if !ok {
		return nil, fmt.Errorf("%w: section %q", ErrUnknownKey, section)
	}
	v, ok := sec[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownKey, section, key)
	}
	return v, nil
}

// Get returns the value of section.key as a string.
func (s *Settings) Get(section, key string) (string, error) {
	t, err := s.tree()
	if err != nil {
		return "", err
	}
	v, err := t.lookup(section, key)
	if err != nil {
		return "", err
	}
	return formatValue(v), nil
}

// Set parses value according to the type of section.key and stores it.
// The whole result is validated; on error s is unchanged.
func (s *Settings) Set(section, key, value string) error {
	t, err := s.tree()
	if err != nil {
		return err
	}
	current, err := t.lookup(section, key)
	if err != nil {
		return err
	}

	parsed, err := parseValue(current, strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s.%s: %w", section, key, err)
	}
	t[section][key] = parsed

	data, err := toml.Marshal(t)
	if err != nil {
		return err
	}
	next := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		return fmt.Errorf("%s.%s: %w", section, key, err)
	}
	next.normalize()
	if err := next.Validate(); err != nil {
		return err
	}
	*s = next
	return nil
}

// SplitKey splits a dotted "section.key" name.
func SplitKey(dotted string) (section, key string, err error) {
	section, key, ok := strings.Cut(strings.TrimSpace(dotted), ".")
	if !ok || section == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q, want section.key", ErrUnknownKey, dotted)
	}
	return section, key, nil
}

// Keys returns every dotted key with its current value, sorted.
func (s *Settings) Keys() ([][2]string, error) {
	t, err := s.tree()
	if err != nil {
		return nil, err
	}
	var out [][2]string
	for section, values := range t {
		for key, v := range values {
			out = append(out, [2]string{section + "." + key, formatValue(v)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out, nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func parseValue(current any, value string) (any, error) {
	switch current.(type) {
	case string:
		return value, nil
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("want true or false, got %q", value)
		}
		return b, nil
	case int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("want an integer, got %q", value)
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("want a number, got %q", value)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", current)
	}
}
