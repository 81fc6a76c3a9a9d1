package strategy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// CoerceParams parses a raw JSON parameter bundle leniently: numbers
// and numeric strings ("14", "0.05") both become float64, booleans
// become 0/1, null is skipped. Nested values are rejected because the
// bundle is flat by contract.
func CoerceParams(raw []byte) (Params, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return Params{}, nil
	}
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("params: invalid json")
	}
	parsed := gjson.Parse(text)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("params: expected a json object")
	}
	out := Params{}
	var firstErr error
	parsed.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.Number:
			out[key.String()] = value.Float()
		case gjson.True:
			out[key.String()] = 1
		case gjson.False:
			out[key.String()] = 0
		case gjson.Null:
			// absent key, defaults apply
		case gjson.String:
			s := strings.TrimSpace(value.String())
			if s == "" {
				return true
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				firstErr = fmt.Errorf("params: %q is not numeric", key.String())
				return false
			}
			out[key.String()] = f
		default:
			firstErr = fmt.Errorf("params: %q must be a scalar", key.String())
			return false
		}
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// Merge overlays explicit params on top of the strategy defaults.
func Merge(kind Kind, explicit Params) Params {
	out := Defaults(kind)
	for k, v := range explicit {
		out[k] = v
	}
	return out
}
