package zarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	consolidatedKey = ".zmetadata"
	groupKey        = ".zgroup"
	arrayKey        = ".zarray"
	attrsKey        = ".zattrs"
	dimsAttr        = "_ARRAY_DIMENSIONS"
)

// codecConfig is a numcodecs compressor description
type codecConfig struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// arrayMeta is the content of a .zarray document
type arrayMeta struct {
	ZarrFormat int             `json:"zarr_format"`
	Shape      []int           `json:"shape"`
	Chunks     []int           `json:"chunks"`
	Dtype      string          `json:"dtype"`
	Compressor *codecConfig    `json:"compressor"`
	FillValue  json.RawMessage `json:"fill_value"`
	Order      string          `json:"order"`
	Filters    []codecConfig   `json:"filters"`
	Separator  string          `json:"dimension_separator"`
}

// Attrs holds an array's user attributes
type Attrs map[string]any

// Text returns a string attribute, or "" when absent or not a string
func (a Attrs) Text(key string) string {
	s, _ := a[key].(string)
	return s
}

// Float returns a numeric attribute. Single-element lists count as numbers.
func (a Attrs) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case string:
		return parseSpecialFloat(v)
	case []any:
		if len(v) == 1 {
			return Attrs{key: v[0]}.Float(key)
		}
	}
	return 0, false
}

// Dims returns the xarray dimension names of the array
func (a Attrs) Dims() []string {
	raw, _ := a[dimsAttr].([]any)
	dims := make([]string, 0, len(raw))
	for _, d := range raw {
		s, ok := d.(string)
		if !ok {
			return nil
		}
		dims = append(dims, s)
	}
	return dims
}

func parseSpecialFloat(s string) (float64, bool) {
	switch s {
	case "NaN":
		return math.NaN(), true
	case "Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	return 0, false
}

// fill decodes the fill_value, which may be null, a number or a special
// float string
func (m *arrayMeta) fill() (float64, bool, error) {
	raw := strings.TrimSpace(string(m.FillValue))
	if raw == "" || raw == "null" {
		return 0, false, nil
	}
	var v any
	if err := json.Unmarshal(m.FillValue, &v); err != nil {
		return 0, false, fmt.Errorf("fill_value %s: %w", raw, err)
	}
	switch x := v.(type) {
	case float64:
		return x, true, nil
	case bool:
		if x {
			return 1, true, nil
		}
		return 0, true, nil
	case string:
		if f, ok := parseSpecialFloat(x); ok {
			return f, true, nil
		}
	}
	return 0, false, fmt.Errorf("unsupported fill_value %s", raw)
}

func (m *arrayMeta) validate(name string) error {
	if m.ZarrFormat != 2 {
		return fmt.Errorf("array %s: zarr format %d, only 2 is supported", name, m.ZarrFormat)
	}
	if len(m.Shape) != len(m.Chunks) {
		return fmt.Errorf("array %s: shape has %d dimensions, chunks %d", name, len(m.Shape), len(m.Chunks))
	}
	for i, c := range m.Chunks {
		if c <= 0 {
			return fmt.Errorf("array %s: chunk size %d in dimension %d", name, c, i)
		}
	}
	if m.Order != "" && m.Order != "C" {
		return fmt.Errorf("array %s: order %q, only C order is supported", name, m.Order)
	}
	if len(m.Filters) > 0 {
		return fmt.Errorf("array %s: filter %s: %w", name, m.Filters[0].ID, ErrUnsupportedCodec)
	}
	return nil
}

// hierarchy is the metadata of every array directly under the root
type hierarchy struct {
	arrays map[string]*arrayMeta
	attrs  map[string]Attrs
}

// readHierarchy prefers consolidated metadata and falls back to reading
// each child's .zarray and .zattrs
func readHierarchy(ctx context.Context, s Store) (*hierarchy, error) {
	h := &hierarchy{arrays: map[string]*arrayMeta{}, attrs: map[string]Attrs{}}

	raw, err := s.Get(ctx, consolidatedKey)
	switch {
	case err == nil:
		return h, h.consolidated(raw)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		raw, err := s.Get(ctx, name+"/"+arrayKey)
		if errors.Is(err, ErrNotFound) {
			// a subgroup
			continue
		}
		if err != nil {
			return nil, err
		}
		var m arrayMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parsing %s/%s: %w", name, arrayKey, err)
		}
		h.arrays[name] = &m

		attrs := Attrs{}
		raw, err = s.Get(ctx, name+"/"+attrsKey)
		switch {
		case err == nil:
			if err := json.Unmarshal(raw, &attrs); err != nil {
				return nil, fmt.Errorf("parsing %s/%s: %w", name, attrsKey, err)
			}
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
		h.attrs[name] = attrs
	}
	return h, nil
}

func (h *hierarchy) consolidated(raw []byte) error {
	var doc struct {
		Metadata map[string]json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", consolidatedKey, err)
	}
	for key, body := range doc.Metadata {
		name, leaf, ok := strings.Cut(key, "/")
		if !ok || strings.Contains(leaf, "/") {
			continue
		}
		switch leaf {
		case arrayKey:
			var m arrayMeta
			if err := json.Unmarshal(body, &m); err != nil {
				return fmt.Errorf("parsing %s: %w", key, err)
			}
			h.arrays[name] = &m
		case attrsKey:
			attrs := Attrs{}
			if err := json.Unmarshal(body, &attrs); err != nil {
				return fmt.Errorf("parsing %s: %w", key, err)
			}
			h.attrs[name] = attrs
		}
	}
	return nil
}
