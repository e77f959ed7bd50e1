package decode

import (
	"encoding/json"
	"fmt"

	rchan "github.com/rchanio/rchan/internal"
)

// Threads decodes a board's threads-summary endpoint: a list of pages,
// each containing thread summaries with {no, last_modified}
// (spec.md Section 4.6 step 1).
func Threads(body []byte) ([]rchan.ThreadsPage, error) {
	var pages []rchan.ThreadsPage
	if err := json.Unmarshal(body, &pages); err != nil {
		return nil, fmt.Errorf("%w: %v", rchan.ErrInvalidResponse, err)
	}
	return pages, nil
}

// Index decodes one page of a board's index. Unlike Threads, the index
// endpoint is addressed one page at a time, so its body is a single
// page object rather than an array of pages.
func Index(body []byte) (rchan.ThreadsPage, error) {
	var page rchan.ThreadsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return rchan.ThreadsPage{}, fmt.Errorf("%w: %v", rchan.ErrInvalidResponse, err)
	}
	return page, nil
}
