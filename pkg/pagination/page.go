package pagination

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Page is one decoded JSON object response. Numbers are kept as json.Number
// so large identifiers survive untouched.
type Page map[string]any

// Items returns the item records stored under field. The boolean is false when
// the field is absent or does not hold a list. Elements that are not JSON
// objects are dropped with a warning.
func (p Page) Items(field string) ([]map[string]any, bool) {
	raw, ok := p[field]
	if !ok {
		return nil, false
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}

	items := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if obj, ok := v.(map[string]any); ok {
			items = append(items, obj)
		}
	}
	if dropped := len(list) - len(items); dropped > 0 {
		log.Warn().
			Str("component", "pagination").
			Str("field", field).
			Int("dropped", dropped).
			Int("kept", len(items)).
			Msg("Item list holds non-object elements, dropping them")
	}
	return items, true
}

// decodePage parses a response body into a Page. Anything other than a single
// JSON object is rejected.
func decodePage(body []byte) (Page, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var page Page
	if err := dec.Decode(&page); err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("response body is not a JSON object")
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON object")
	}
	return page, nil
}
