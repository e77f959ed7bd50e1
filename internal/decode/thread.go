package decode

import (
	"encoding/json"
	"fmt"

	rchan "github.com/rchanio/rchan/internal"
)

// Thread decodes a single thread's full body: its posts in upstream
// order, OP first.
func Thread(body []byte) (rchan.ThreadBody, error) {
	var t rchan.ThreadBody
	if err := json.Unmarshal(body, &t); err != nil {
		return rchan.ThreadBody{}, fmt.Errorf("%w: %v", rchan.ErrInvalidResponse, err)
	}
	if len(t.Posts) == 0 {
		return rchan.ThreadBody{}, fmt.Errorf("%w: thread body has no posts", rchan.ErrInvalidResponse)
	}
	return t, nil
}
