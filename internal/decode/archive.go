package decode

import (
	"encoding/json"
	"fmt"

	rchan "github.com/rchanio/rchan/internal"
)

// Archive decodes a board's archive endpoint: a flat list of thread
// numbers that have fallen off the board but remain archived upstream.
func Archive(body []byte) ([]int, error) {
	var nos []int
	if err := json.Unmarshal(body, &nos); err != nil {
		return nil, fmt.Errorf("%w: %v", rchan.ErrInvalidResponse, err)
	}
	return nos, nil
}
