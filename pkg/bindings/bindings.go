// Package bindings reads closure bindings for the translator from a HuJSON
// file (JSON with comments and trailing commas).
//
//	{
//		"N":     {"type": "int32", "value": 1024},
//		"SCALE": {"type": "float32", "value": 0.5},
//		"DEBUG": true,   // bare values: bool, int or float64
//		"NONE":  {"type": "none"},
//	}
package bindings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/tailscale/hujson"
)

type typedValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Load reads and parses the bindings file at path.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	globals, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return globals, nil
}

// Parse converts a bindings document into Go values the translator
// recognizes as kernel primitives.
func Parse(data []byte) (map[string]any, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(std, &raw); err != nil {
		return nil, fmt.Errorf("bindings must be an object: %w", err)
	}

	globals := make(map[string]any, len(raw))
	for name, msg := range raw {
		v, err := value(msg)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", name, err)
		}
		globals[name] = v
	}
	return globals, nil
}

func value(msg json.RawMessage) (any, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	switch msg[0] {
	case '{':
		var tv typedValue
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&tv); err != nil {
			return nil, err
		}
		return convert(tv.Type, tv.Value)
	case 'n':
		return nil, nil
	case 't', 'f':
		return convert("bool", msg)
	case '"', '[':
		return nil, fmt.Errorf("unsupported value %s", msg)
	}
	if bytes.ContainsAny(msg, ".eE") {
		return convert("float64", msg)
	}
	return convert("int", msg)
}

var typeNames = map[string]bool{
	"none": true, "bool": true,
	"int8": true, "int16": true, "int32": true, "int64": true, "int": true,
	"uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true,
}

// convert decodes raw as the named type.
func convert(typ string, raw json.RawMessage) (any, error) {
	if !typeNames[typ] {
		return nil, fmt.Errorf("unknown type %q", typ)
	}
	if typ == "none" {
		return nil, nil
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("type %s needs a value", typ)
	}

	if typ == "bool" {
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("invalid bool %s", raw)
		}
		return b, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("invalid %s %s", typ, raw)
	}
	s := n.String()

	switch typ {
	case "int8", "int16", "int32", "int64", "int":
		bits := map[string]int{"int8": 8, "int16": 16, "int32": 32, "int64": 64, "int": strconv.IntSize}[typ]
		i, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %s", typ, s)
		}
		switch typ {
		case "int8":
			return int8(i), nil
		case "int16":
			return int16(i), nil
		case "int32":
			return int32(i), nil
		case "int64":
			return i, nil
		}
		return int(i), nil

	case "uint8", "uint16", "uint32", "uint64":
		bits := map[string]int{"uint8": 8, "uint16": 16, "uint32": 32, "uint64": 64}[typ]
		u, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %s", typ, s)
		}
		switch typ {
		case "uint8":
			return uint8(u), nil
		case "uint16":
			return uint16(u), nil
		case "uint32":
			return uint32(u), nil
		}
		return u, nil

	case "float32":
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %s", typ, s)
		}
		return float32(f), nil

	case "float64":
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %s", typ, s)
		}
		return f, nil
	}
	return nil, fmt.Errorf("unknown type %q", typ)
}
