package decode

import (
	"encoding/json"
	"fmt"

	rchan "github.com/rchanio/rchan/internal"
)

// Catalog decodes a board's catalog endpoint: a list of pages, each with
// OP-plus-preview thread entries.
func Catalog(body []byte) ([]rchan.CatalogPage, error) {
	var pages []rchan.CatalogPage
	if err := json.Unmarshal(body, &pages); err != nil {
		return nil, fmt.Errorf("%w: %v", rchan.ErrInvalidResponse, err)
	}
	return pages, nil
}
