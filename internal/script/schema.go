package script

import (
	"regexp"
	"strconv"
	"strings"
)

// PropertyType is the declared type of an editable script property.
type PropertyType string

const (
	TypeNumber  PropertyType = "number"
	TypeString  PropertyType = "string"
	TypeBoolean PropertyType = "boolean"
	TypeVector3 PropertyType = "vector3"
	TypeColor   PropertyType = "color"
	TypeObject  PropertyType = "object"
)

// Property is one entry of a script's editable property schema, extracted
// from an annotation of the form:
//
//	-- @property {number} speed = 5 [0, 100]
type Property struct {
	Name    string
	Type    PropertyType
	Default interface{}
	Min     float64
	Max     float64
	HasMin  bool
	HasMax  bool
}

var (
	propertyPattern = regexp.MustCompile(`^\s*--+\s*@property\s+\{([\w-]+)\}\s+([A-Za-z_]\w*)\s*(?:=\s*([^\[]+?))?\s*(?:\[([^\]]*)\])?\s*$`)
	vectorPattern   = regexp.MustCompile(`^\(\s*(-?[\d.]+)\s*,\s*(-?[\d.]+)\s*,\s*(-?[\d.]+)\s*\)$`)
	colorTuple      = regexp.MustCompile(`^\(\s*([\d.]+)\s*,\s*([\d.]+)\s*,\s*([\d.]+)\s*(?:,\s*([\d.]+)\s*)?\)$`)
	colorHex        = regexp.MustCompile(`^#([0-9a-fA-F]{6})([0-9a-fA-F]{2})?$`)
)

// ParseSchema scans source line by line for @property annotations. Malformed
// annotations are skipped; duplicate names keep the first declaration.
// Unknown types fall back to generic object with a nil default.
func ParseSchema(source string) []Property {
	var schema []Property
	seen := make(map[string]bool)

	for _, line := range strings.Split(source, "\n") {
		m := propertyPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[2]
		if seen[name] {
			continue
		}

		ptype := PropertyType(strings.ToLower(m[1]))
		switch ptype {
		case TypeNumber, TypeString, TypeBoolean, TypeVector3, TypeColor, TypeObject:
		default:
			ptype = TypeObject
		}

		prop := Property{Name: name, Type: ptype, Default: zeroDefault(ptype)}
		if raw := strings.TrimSpace(m[3]); raw != "" {
			def, ok := parseDefault(ptype, raw)
			if !ok {
				continue
			}
			prop.Default = def
		}
		parseConstraints(&prop, m[4])

		seen[name] = true
		schema = append(schema, prop)
	}
	return schema
}

func zeroDefault(t PropertyType) interface{} {
	switch t {
	case TypeNumber:
		return float64(0)
	case TypeString:
		return ""
	case TypeBoolean:
		return false
	case TypeVector3:
		return [3]float64{}
	case TypeColor:
		return [4]float64{1, 1, 1, 1}
	}
	return nil
}

func parseDefault(t PropertyType, raw string) (interface{}, bool) {
	switch t {
	case TypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case TypeString:
		if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
			return raw[1 : len(raw)-1], true
		}
		return raw, true
	case TypeBoolean:
		switch strings.ToLower(raw) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
		return nil, false
	case TypeVector3:
		m := vectorPattern.FindStringSubmatch(raw)
		if m == nil {
			return nil, false
		}
		var v [3]float64
		for i := 0; i < 3; i++ {
			f, err := strconv.ParseFloat(m[i+1], 64)
			if err != nil {
				return nil, false
			}
			v[i] = f
		}
		return v, true
	case TypeColor:
		return parseColorDefault(raw)
	}
	// Generic object defaults stay null whatever the annotation says.
	return nil, true
}

func parseColorDefault(raw string) (interface{}, bool) {
	if m := colorHex.FindStringSubmatch(raw); m != nil {
		var c [4]float64
		for i := 0; i < 3; i++ {
			n, _ := strconv.ParseUint(m[1][i*2:i*2+2], 16, 8)
			c[i] = float64(n) / 255
		}
		c[3] = 1
		if m[2] != "" {
			n, _ := strconv.ParseUint(m[2], 16, 8)
			c[3] = float64(n) / 255
		}
		return c, true
	}
	if m := colorTuple.FindStringSubmatch(raw); m != nil {
		c := [4]float64{0, 0, 0, 1}
		for i := 0; i < 3; i++ {
			f, err := strconv.ParseFloat(m[i+1], 64)
			if err != nil {
				return nil, false
			}
			c[i] = f
		}
		if m[4] != "" {
			f, err := strconv.ParseFloat(m[4], 64)
			if err != nil {
				return nil, false
			}
			c[3] = f
		}
		return c, true
	}
	return nil, false
}

func parseConstraints(prop *Property, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	plain := 0
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		switch {
		case strings.HasPrefix(tok, "min="):
			if f, err := strconv.ParseFloat(tok[4:], 64); err == nil {
				prop.Min, prop.HasMin = f, true
			}
		case strings.HasPrefix(tok, "max="):
			if f, err := strconv.ParseFloat(tok[4:], 64); err == nil {
				prop.Max, prop.HasMax = f, true
			}
		default:
			f, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				continue
			}
			if plain == 0 {
				prop.Min, prop.HasMin = f, true
			} else if plain == 1 {
				prop.Max, prop.HasMax = f, true
			}
			plain++
		}
	}
}

// Coerce normalizes a raw value (override, serialized state, editor input)
// to the property's declared type, applying numeric constraints. Returns the
// default when the value cannot represent the type.
func (p Property) Coerce(raw interface{}) interface{} {
	switch p.Type {
	case TypeNumber:
		f, ok := toFloat(raw)
		if !ok {
			return p.Default
		}
		if p.HasMin && f < p.Min {
			f = p.Min
		}
		if p.HasMax && f > p.Max {
			f = p.Max
		}
		return f
	case TypeString:
		if s, ok := raw.(string); ok {
			return s
		}
		return p.Default
	case TypeBoolean:
		if b, ok := raw.(bool); ok {
			return b
		}
		return p.Default
	case TypeVector3:
		if v, ok := toFloatSlice(raw, 3); ok {
			return [3]float64{v[0], v[1], v[2]}
		}
		return p.Default
	case TypeColor:
		if v, ok := toFloatSlice(raw, 4); ok {
			return [4]float64{v[0], v[1], v[2], v[3]}
		}
		if v, ok := toFloatSlice(raw, 3); ok {
			return [4]float64{v[0], v[1], v[2], 1}
		}
		return p.Default
	}
	return raw
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toFloatSlice(v interface{}, n int) ([]float64, bool) {
	switch arr := v.(type) {
	case [3]float64:
		if n == 3 {
			return arr[:], true
		}
	case [4]float64:
		if n == 4 {
			return arr[:], true
		}
	case []float64:
		if len(arr) == n {
			return arr, true
		}
	case []interface{}:
		if len(arr) != n {
			return nil, false
		}
		out := make([]float64, n)
		for i, item := range arr {
			f, ok := toFloat(item)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}
