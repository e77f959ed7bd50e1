package httpclient

import (
	"context"
	"fmt"

	rchan "github.com/rchanio/rchan/internal"
)

// Per-shape convenience wrappers around GetWithRetry, grounded on
// original_source/crates/api/src/client.rs's get_boards/get_threads/...
// methods alongside its generic get. Each type-asserts the variant it
// expects and surfaces InvalidResponse on a mismatch -- a mismatch here
// is a bug in the facade's own dispatch, not an upstream condition a
// caller can act on (spec.md Section 9).

// Boards fetches and decodes the board list.
func (c *Client) Boards(ctx context.Context) ([]rchan.Board, error) {
	decoded, err := c.GetWithRetry(ctx, rchan.Boards())
	if err != nil {
		return nil, err
	}
	boards, ok := decoded.AsBoards()
	if !ok {
		return nil, fmt.Errorf("%w: expected boards variant", rchan.ErrInvalidResponse)
	}
	return boards, nil
}

// Threads fetches and decodes a board's threads-summary endpoint.
func (c *Client) Threads(ctx context.Context, board string) ([]rchan.ThreadsPage, error) {
	decoded, err := c.GetWithRetry(ctx, rchan.Threads(board))
	if err != nil {
		return nil, err
	}
	pages, ok := decoded.AsThreads()
	if !ok {
		return nil, fmt.Errorf("%w: expected threads variant", rchan.ErrInvalidResponse)
	}
	return pages, nil
}

// Catalog fetches and decodes a board's catalog.
func (c *Client) Catalog(ctx context.Context, board string) ([]rchan.CatalogPage, error) {
	decoded, err := c.GetWithRetry(ctx, rchan.Catalog(board))
	if err != nil {
		return nil, err
	}
	pages, ok := decoded.AsCatalog()
	if !ok {
		return nil, fmt.Errorf("%w: expected catalog variant", rchan.ErrInvalidResponse)
	}
	return pages, nil
}

// Archive fetches and decodes a board's archive (thread numbers that
// have fallen off the board but remain available).
func (c *Client) Archive(ctx context.Context, board string) ([]int, error) {
	decoded, err := c.GetWithRetry(ctx, rchan.Archive(board))
	if err != nil {
		return nil, err
	}
	nos, ok := decoded.AsArchive()
	if !ok {
		return nil, fmt.Errorf("%w: expected archive variant", rchan.ErrInvalidResponse)
	}
	return nos, nil
}

// Index fetches and decodes one page of a board's index.
func (c *Client) Index(ctx context.Context, board string, page int) (rchan.ThreadsPage, error) {
	decoded, err := c.GetWithRetry(ctx, rchan.Index(board, page))
	if err != nil {
		return rchan.ThreadsPage{}, err
	}
	idx, ok := decoded.AsIndex()
	if !ok {
		return rchan.ThreadsPage{}, fmt.Errorf("%w: expected index variant", rchan.ErrInvalidResponse)
	}
	return idx, nil
}

// Thread fetches and decodes a single thread's full body.
func (c *Client) Thread(ctx context.Context, board string, no int) (rchan.ThreadBody, error) {
	decoded, err := c.GetWithRetry(ctx, rchan.Thread(board, no))
	if err != nil {
		return rchan.ThreadBody{}, err
	}
	thread, ok := decoded.AsThread()
	if !ok {
		return rchan.ThreadBody{}, fmt.Errorf("%w: expected thread variant", rchan.ErrInvalidResponse)
	}
	return thread, nil
}
