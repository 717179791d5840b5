package outfmt

import (
	"encoding/json"
	"io"
)

// WriteJson writes v as indented json. Decimals are written as strings.
func WriteJson(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
