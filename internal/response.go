package rchan

// Board describes one board as returned by the board list endpoint.
type Board struct {
	Board       string `json:"board"`
	Title       string `json:"title"`
	WSBoard     int    `json:"ws_board"`
	PerPage     int    `json:"per_page"`
	Pages       int    `json:"pages"`
	MaxFilesize int    `json:"max_filesize"`
}

// ThreadLimit returns the board's advertised thread-limit (pages *
// per_page), used as the capacity hint for BoardState.watermarks
// (spec.md Section 3).
func (b Board) ThreadLimit() int { return b.Pages * b.PerPage }

// ThreadSummary is the lightweight per-thread record returned by the
// threads-list endpoint: just enough to detect and order change.
type ThreadSummary struct {
	No           int   `json:"no"`
	LastModified int64 `json:"last_modified"`
}

// ThreadsPage is one page of the threads-list endpoint's response: a page
// number plus the thread summaries on it.
type ThreadsPage struct {
	Page    int             `json:"page"`
	Threads []ThreadSummary `json:"threads"`
}

// CatalogThread is one thread entry in a catalog page, carrying the OP
// post plus any posts shown in the catalog preview.
type CatalogThread struct {
	Post
	LastModified int64  `json:"last_modified"`
	Replies      int    `json:"replies"`
	Images       int    `json:"images"`
	LastReplies  []Post `json:"last_replies,omitempty"`
}

// CatalogPage is one page of a board's catalog.
type CatalogPage struct {
	Page    int             `json:"page"`
	Threads []CatalogThread `json:"threads"`
}

// ThreadBody is the full content of one thread: its posts in upstream order,
// OP first.
type ThreadBody struct {
	Posts []Post `json:"posts"`
}

// Variant identifies which shape a DecodedResponse carries.
type Variant int

const (
	VariantBoards Variant = iota
	VariantThreads
	VariantCatalog
	VariantArchive
	VariantIndex
	VariantThread
)

// DecodedResponse is a tagged union of every shape the upstream API can
// return, one variant per Endpoint Kind (spec.md Section 4.5). A decoded
// response is immutable once constructed and is shared, never mutated,
// across the cache and any 304-driven replay -- callers must treat the
// slices and nested structs as read-only.
type DecodedResponse struct {
	Variant Variant
	Boards  []Board
	Threads []ThreadsPage
	Catalog []CatalogPage
	Archive []int
	Index   ThreadsPage
	Thread  ThreadBody
}

// AsBoards returns the Boards payload and true if this response is the
// Boards variant, or (nil, false) otherwise. A call site that knows the
// endpoint kind is expected to use the matching As* accessor; a mismatch
// is a bug in the HTTP facade, not a runtime condition a caller can act
// on (spec.md Section 9).
func (r DecodedResponse) AsBoards() ([]Board, bool) {
	if r.Variant != VariantBoards {
		return nil, false
	}
	return r.Boards, true
}

// AsThreads returns the Threads payload and true if this response is the
// Threads variant.
func (r DecodedResponse) AsThreads() ([]ThreadsPage, bool) {
	if r.Variant != VariantThreads {
		return nil, false
	}
	return r.Threads, true
}

// AsCatalog returns the Catalog payload and true if this response is the
// Catalog variant.
func (r DecodedResponse) AsCatalog() ([]CatalogPage, bool) {
	if r.Variant != VariantCatalog {
		return nil, false
	}
	return r.Catalog, true
}

// AsArchive returns the Archive payload (a list of thread numbers) and
// true if this response is the Archive variant.
func (r DecodedResponse) AsArchive() ([]int, bool) {
	if r.Variant != VariantArchive {
		return nil, false
	}
	return r.Archive, true
}

// AsIndex returns the Index payload and true if this response is the
// Index variant.
func (r DecodedResponse) AsIndex() (ThreadsPage, bool) {
	if r.Variant != VariantIndex {
		return ThreadsPage{}, false
	}
	return r.Index, true
}

// AsThread returns the Thread payload and true if this response is the
// Thread variant.
func (r DecodedResponse) AsThread() (ThreadBody, bool) {
	if r.Variant != VariantThread {
		return ThreadBody{}, false
	}
	return r.Thread, true
}

// AllThreadSummaries flattens every page of a Threads response into a
// single slice, since the board worker's diff step operates per-thread
// regardless of which page a thread summary arrived on.
func AllThreadSummaries(pages []ThreadsPage) []ThreadSummary {
	var out []ThreadSummary
	for _, p := range pages {
		out = append(out, p.Threads...)
	}
	return out
}
