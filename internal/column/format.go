package column

import (
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// NullText is how Format renders null and unknown values.
const NullText = "<null>"

// Format renders v for humans: strings as is, numbers without exponent,
// and collections as JSON.
func Format(v cty.Value) string {
	if v.IsNull() || !v.IsKnown() {
		return NullText
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Number:
		return v.AsBigFloat().Text('f', -1)
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	}
	b, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return v.GoString()
	}
	return string(b)
}
