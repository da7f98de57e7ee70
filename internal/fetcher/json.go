package fetcher

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONObject decodes one JSON object from r. The Education Data
// API wraps its result lists in a paging envelope, so callers decode
// whole pages rather than streaming elements.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "fetcher: decode json")
	}
	return &obj, nil
}
