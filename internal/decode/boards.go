package decode

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	rchan "github.com/rchanio/rchan/internal"
)

// Boards decodes the board-list endpoint. Its body is a wrapper object
// whose "boards" field carries the array (spec.md Section 4.5); gjson
// pulls that one field out so we don't need a throwaway wrapper struct
// just to get at it.
func Boards(body []byte) ([]rchan.Board, error) {
	field := gjson.GetBytes(body, "boards")
	if !field.Exists() {
		return nil, fmt.Errorf("%w: missing \"boards\" field", rchan.ErrInvalidResponse)
	}

	var boards []rchan.Board
	if err := json.Unmarshal([]byte(field.Raw), &boards); err != nil {
		return nil, fmt.Errorf("%w: %v", rchan.ErrInvalidResponse, err)
	}
	return boards, nil
}
